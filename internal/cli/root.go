// Package cli wires configuration, logging and the service client into the
// sheet2xml commands.
package cli

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/nconklindev/sheet2xml/internal/api"
	"github.com/nconklindev/sheet2xml/internal/config"
	"github.com/nconklindev/sheet2xml/internal/logger"
	"github.com/nconklindev/sheet2xml/internal/ui"
	"github.com/nconklindev/sheet2xml/internal/workflow"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/rs/zerolog"
	"github.com/spf13/cobra"
)

var (
	cfgFile  string
	apiURL   string
	token    string
	logLevel string
)

var rootCmd = &cobra.Command{
	Use:   "sheet2xml",
	Short: "Convert Excel spreadsheets to XML with custom header fields",
	Long: `sheet2xml sends an Excel workbook and a set of header fields to the
conversion service and saves the XML document it produces.

Run without a command to open the interactive terminal UI.

Commands:
  convert   Convert one file non-interactively.
  download  Fetch a converted document by id.
  health    Check that the conversion service is up.
  serve     Serve the conversion form to browsers.

Examples:
  sheet2xml
  sheet2xml convert report.xlsx --field CALLREPORT_ID=DTR001
  sheet2xml --api-url https://convert.example.com health`,
	SilenceUsage: true,
	Args:         cobra.NoArgs,
	RunE:         runTUI,
}

func init() {
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default ~/.sheet2xml/config.toml)")
	rootCmd.PersistentFlags().StringVar(&apiURL, "api-url", "", "conversion service base URL")
	rootCmd.PersistentFlags().StringVar(&token, "token", "", "session token (default $SHEET2XML_TOKEN)")
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "", "debug, info, warn or error")
}

// Execute runs the command line.
func Execute() error {
	return rootCmd.ExecuteContext(context.Background())
}

// app is what every command needs: settings, a logger and a client.
type app struct {
	cfg    *config.Config
	client *api.Client
	log    zerolog.Logger
	closer io.Closer
}

func (a *app) Close() {
	if a.closer != nil {
		_ = a.closer.Close()
	}
}

func loadConfig() (*config.Config, error) {
	var (
		cfg *config.Config
		err error
	)
	if cfgFile != "" {
		cfg, err = config.LoadFromPath(cfgFile)
	} else {
		cfg, err = config.Load()
	}
	if err != nil {
		return nil, err
	}

	if apiURL != "" {
		cfg.APIURL = strings.TrimRight(apiURL, "/")
	}
	if logLevel != "" {
		cfg.Log.Level = strings.ToLower(logLevel)
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid flags: %w", err)
	}
	return cfg, nil
}

// setup loads settings and builds the client. The terminal UI logs to the
// configured file since it owns the screen; other commands log to stderr.
func setup(logToFile bool, onUnauthorized api.UnauthorizedHandler) (*app, error) {
	cfg, err := loadConfig()
	if err != nil {
		return nil, err
	}

	logFile := ""
	if logToFile {
		logFile = cfg.Log.File
	}
	closer, err := logger.Init(cfg.Log.Level, cfg.Log.Format, logFile)
	if err != nil {
		return nil, fmt.Errorf("failed to open log: %w", err)
	}
	log := logger.Get()

	tok := token
	if tok == "" {
		tok = os.Getenv("SHEET2XML_TOKEN")
	}

	client := api.New(cfg.APIURL,
		api.WithTimeout(cfg.Timeout()),
		api.WithCredentials(api.NewMemoryStore(tok)),
		api.WithRateLimit(cfg.RequestsPerMinute),
		api.WithUnauthorizedHandler(onUnauthorized),
		api.WithLogger(log),
	)

	return &app{cfg: cfg, client: client, log: log, closer: closer}, nil
}

func runTUI(cmd *cobra.Command, _ []string) error {
	var prog *tea.Program
	a, err := setup(true, func(string) {
		if prog != nil {
			prog.Send(ui.SessionExpiredMsg{})
		}
	})
	if err != nil {
		return err
	}
	defer a.Close()

	var orch *workflow.Orchestrator
	nav := workflow.NewSaveNavigator(a.client, func() string {
		return downloadDir(a.cfg.DownloadDir, orch)
	})
	orch = workflow.New(a.client, nav, workflow.WithLogger(a.log))

	m := ui.New(orch, a.client, nav, ui.Options{
		Escape:    a.cfg.Preview.Escape,
		Highlight: a.cfg.Preview.Highlight,
		Theme:     a.cfg.Preview.Theme,
	})

	a.log.Info().Str("api_url", a.cfg.APIURL).Msg("Starting terminal UI")
	prog = tea.NewProgram(m, tea.WithAltScreen(), tea.WithMouseCellMotion(), tea.WithContext(cmd.Context()))
	_, err = prog.Run()
	return err
}

// downloadDir is the configured directory, else the directory of the
// selected file.
func downloadDir(configured string, orch *workflow.Orchestrator) string {
	if configured != "" {
		return configured
	}
	if orch == nil {
		return ""
	}
	if f := orch.File(); f != nil && f.Path != "" {
		return filepath.Dir(f.Path)
	}
	return ""
}
