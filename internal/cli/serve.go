package cli

import (
	"os"
	"os/signal"
	"syscall"

	"github.com/nconklindev/sheet2xml/internal/web"

	"github.com/gin-gonic/gin"
	"github.com/spf13/cobra"
)

var (
	serveListen  string
	serveRelease bool
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Serve the conversion form over HTTP",
	Long: `Serve a browser form for converting spreadsheets. Requests to the
conversion service are made with the token stored in the visitor's
session cookie (see /login).

Prometheus metrics are exposed at /metrics.`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, _ []string) error {
		a, err := setup(false, nil)
		if err != nil {
			return err
		}
		defer a.Close()

		if serveListen != "" {
			a.cfg.Server.Listen = serveListen
		}
		if serveRelease {
			gin.SetMode(gin.ReleaseMode)
		}

		s, err := web.New(a.cfg)
		if err != nil {
			return err
		}

		ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
		defer stop()
		return s.Run(ctx)
	},
}

func init() {
	serveCmd.Flags().StringVar(&serveListen, "listen", "", "listen address (default from config, :3000)")
	serveCmd.Flags().BoolVar(&serveRelease, "release", false, "run gin in release mode")
	rootCmd.AddCommand(serveCmd)
}
