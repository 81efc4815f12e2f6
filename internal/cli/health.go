package cli

import (
	"net/http"

	"github.com/spf13/cobra"
)

func newHealthCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "health",
		Short: "Check server health",
		RunE: func(cmd *cobra.Command, args []string) error {
			out := NewOutput(cfg.Output)

			var result map[string]string
			if err := client.Do(http.MethodGet, "/api/v1/health", nil, &result); err != nil {
				out.PrintError(err)
				return err
			}

			if out.JSON() {
				out.PrintJSON(result)
			} else {
				out.PrintMessage("Server is healthy")
			}
			return nil
		},
	}
}
