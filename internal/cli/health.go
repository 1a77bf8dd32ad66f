package cli

import (
	"fmt"

	"github.com/nconklindev/sheet2xml/internal/api"

	"github.com/spf13/cobra"
)

var healthCmd = &cobra.Command{
	Use:   "health",
	Short: "Check the conversion service",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, _ []string) error {
		a, err := setup(false, nil)
		if err != nil {
			return err
		}
		defer a.Close()

		h, err := a.client.Health(cmd.Context())
		if err != nil {
			return fmt.Errorf("%s: %w", a.client.BaseURL(), err)
		}

		out := cmd.OutOrStdout()
		fmt.Fprintf(out, "%s: %s\n", a.client.BaseURL(), h.Status)
		if h.Version != "" {
			fmt.Fprintf(out, "version: %s\n", h.Version)
		}
		if h.Timestamp != "" {
			fmt.Fprintf(out, "timestamp: %s\n", h.Timestamp)
		}
		if h.Status != api.StatusHealthy {
			return fmt.Errorf("service reports %q", h.Status)
		}
		return nil
	},
}

func init() {
	rootCmd.AddCommand(healthCmd)
}
