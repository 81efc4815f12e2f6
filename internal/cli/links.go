package cli

import (
	"fmt"
	"net/http"

	"github.com/spf13/cobra"

	"github.com/mcoot/discordgate/internal/model"
)

func newLinksCmd() *cobra.Command {
	linksCmd := &cobra.Command{
		Use:   "links",
		Short: "Manage verified links",
	}

	linksCmd.AddCommand(newLinksListCmd())
	linksCmd.AddCommand(newLinksRevokeCmd())
	return linksCmd
}

func newLinksListCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List all verified links",
		RunE: func(cmd *cobra.Command, args []string) error {
			out := NewOutput(cfg.Output)

			var result struct {
				Links []model.VerifiedLink `json:"links"`
			}
			if err := client.Do(http.MethodGet, "/api/v1/links", nil, &result); err != nil {
				out.PrintError(err)
				return err
			}

			if out.JSON() {
				out.PrintJSON(result)
				return nil
			}

			if len(result.Links) == 0 {
				out.PrintMessage("No verified links")
				return nil
			}
			for _, link := range result.Links {
				fmt.Printf("%s  %s\n", link.PlayerID, link.DiscordID)
			}
			return nil
		},
	}
}

func newLinksRevokeCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "revoke <discord-id>",
		Short: "Revoke a player's verification by Discord ID",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			out := NewOutput(cfg.Output)

			var result map[string]string
			if err := client.Do(http.MethodDelete, "/api/v1/links/"+args[0], nil, &result); err != nil {
				out.PrintError(err)
				return err
			}

			if out.JSON() {
				out.PrintJSON(result)
				return nil
			}
			out.PrintMessage(fmt.Sprintf("Revoked link for player %s", result["player_id"]))
			return nil
		},
	}
}
