package cli

import (
	"errors"
	"fmt"
	"path/filepath"
	"strings"

	"github.com/nconklindev/sheet2xml/internal/api"
	"github.com/nconklindev/sheet2xml/internal/header"
	"github.com/nconklindev/sheet2xml/internal/sheet"
	"github.com/nconklindev/sheet2xml/internal/types"
	"github.com/nconklindev/sheet2xml/internal/ui"
	"github.com/nconklindev/sheet2xml/internal/upload"
	"github.com/nconklindev/sheet2xml/internal/workflow"

	"github.com/spf13/cobra"
)

var (
	convertFields    []string
	convertOutputDir string
	convertQuiet     bool
)

var convertCmd = &cobra.Command{
	Use:   "convert FILE",
	Short: "Convert one spreadsheet",
	Long: `Upload FILE with the given header fields and save the converted
document. The path of the saved document is printed on success.

Header fields are NAME=VALUE pairs, in the order they should appear.

Examples:
  sheet2xml convert report.xlsx -f CALLREPORT_ID=DTR001 -f PERIOD=2024Q1
  sheet2xml convert report.xls -o out/`,
	Args: cobra.ExactArgs(1),
	RunE: runConvert,
}

func init() {
	convertCmd.Flags().StringArrayVarP(&convertFields, "field", "f", nil, "header field as NAME=VALUE (repeatable)")
	convertCmd.Flags().StringVarP(&convertOutputDir, "output-dir", "o", "", "directory for the converted document (default: next to FILE)")
	convertCmd.Flags().BoolVarP(&convertQuiet, "quiet", "q", false, "do not print progress")
	rootCmd.AddCommand(convertCmd)
}

// parseFields turns NAME=VALUE arguments into header fields. Values may
// contain '='.
func parseFields(args []string) ([]types.HeaderField, error) {
	fields := make([]types.HeaderField, 0, len(args))
	for _, arg := range args {
		name, value, ok := strings.Cut(arg, "=")
		if !ok {
			return nil, fmt.Errorf("invalid field %q: want NAME=VALUE", arg)
		}
		fields = append(fields, types.HeaderField{TagName: name, TagValue: value})
	}
	return fields, nil
}

func runConvert(cmd *cobra.Command, args []string) error {
	a, err := setup(false, nil)
	if err != nil {
		return err
	}
	defer a.Close()

	path := args[0]
	fields, err := parseFields(convertFields)
	if err != nil {
		return err
	}

	dir := convertOutputDir
	if dir == "" {
		dir = a.cfg.DownloadDir
	}
	if dir == "" {
		dir = filepath.Dir(path)
	}

	nav := workflow.NewSaveNavigator(a.client, func() string { return dir })
	nav.OnSaved = func(p string) { fmt.Fprintln(cmd.OutOrStdout(), p) }
	orch := workflow.New(a.client, nav, workflow.WithLogger(a.log))

	candidate, err := upload.FromPath(path)
	if err != nil {
		return err
	}
	if err := orch.SelectFile([]types.SelectedFile{candidate}); err != nil {
		return err
	}

	var fieldErrs []string
	_ = orch.Edit(func(e *header.Editor) error {
		e.Set(fields)
		for i, msg := range e.Errors() {
			if msg != "" {
				fieldErrs = append(fieldErrs, fmt.Sprintf("field %d (%s): %s", i+1, fields[i].TagName, msg))
			}
		}
		return nil
	})
	if len(fieldErrs) > 0 {
		return errors.New(strings.Join(fieldErrs, "\n"))
	}

	if f := orch.File(); f != nil {
		summary, err := sheet.Inspect(*f)
		switch {
		case err == nil && summary.HeaderMismatch():
			fmt.Fprintf(cmd.ErrOrStderr(), "warning: row %d of sheet %q looks like the header row, but column names are read from row %d\n",
				summary.DetectedHeader+1, summary.SheetName, summary.HeaderRow+1)
		case err != nil && !errors.Is(err, sheet.ErrUnsupported):
			a.log.Warn().Err(err).Str("file", f.Name).Msg("Workbook could not be inspected")
		}
	}

	if !convertQuiet {
		out := cmd.ErrOrStderr()
		orch.OnProgress = func(p float64) {
			n, status := ui.ProgressStatus(p)
			fmt.Fprintf(out, "\r%s (%d%%)", status, n)
		}
		defer fmt.Fprintln(out)
	}

	if err := orch.Submit(cmd.Context()); err != nil {
		if api.IsUnauthorized(err) {
			return errors.New("the service rejected the session token; pass --token or set SHEET2XML_TOKEN")
		}
		if msg := orch.Err(); msg != "" {
			return errors.New(msg)
		}
		return err
	}
	return nil
}
