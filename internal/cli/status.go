package cli

import (
	"fmt"
	"net/http"
	"time"

	"github.com/spf13/cobra"

	"github.com/mcoot/discordgate/internal/model"
)

// statusResponse mirrors the gate status payload
type statusResponse struct {
	Links           int                    `json:"links"`
	PendingSessions int                    `json:"pending_sessions"`
	AllowListSize   int                    `json:"allow_list_size"`
	Blocked         []model.BlockedAddress `json:"blocked"`
}

func newStatusCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "status",
		Short: "Show gate status",
		RunE: func(cmd *cobra.Command, args []string) error {
			out := NewOutput(cfg.Output)

			var status statusResponse
			if err := client.Do(http.MethodGet, "/api/v1/status", nil, &status); err != nil {
				out.PrintError(err)
				return err
			}

			if out.JSON() {
				out.PrintJSON(status)
				return nil
			}

			fmt.Printf("Verified links:    %d\n", status.Links)
			fmt.Printf("Pending sessions:  %d\n", status.PendingSessions)
			fmt.Printf("Allow-list size:   %d\n", status.AllowListSize)
			fmt.Printf("Blocked addresses: %d\n", len(status.Blocked))
			for _, b := range status.Blocked {
				fmt.Printf("  %s until %s\n", b.Address, b.Until.Format(time.RFC3339))
			}
			return nil
		},
	}
}
