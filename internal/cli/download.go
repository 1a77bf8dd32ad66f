package cli

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

var downloadOutput string

var downloadCmd = &cobra.Command{
	Use:   "download ID",
	Short: "Fetch a converted document",
	Long: `Fetch the converted document with the given id from the service.

Use -o - to write it to standard output.`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := setup(false, nil)
		if err != nil {
			return err
		}
		defer a.Close()

		d, err := a.client.FetchDownload(cmd.Context(), args[0])
		if err != nil {
			return err
		}

		if downloadOutput == "-" {
			_, err := cmd.OutOrStdout().Write(d.Data)
			return err
		}
		path := downloadOutput
		if path == "" {
			path = d.Name
		}
		if err := os.WriteFile(path, d.Data, 0o644); err != nil {
			return fmt.Errorf("write %s: %w", path, err)
		}
		fmt.Fprintln(cmd.OutOrStdout(), path)
		return nil
	},
}

func init() {
	downloadCmd.Flags().StringVarP(&downloadOutput, "output", "o", "", "output path (default: the document's name)")
	rootCmd.AddCommand(downloadCmd)
}
