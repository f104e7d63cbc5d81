package auth

import (
	"time"

	"github.com/pterm/pterm"
	"github.com/spf13/cobra"

	"github.com/terraconstructs/estate/cmd/estatectl/internal/client"
)

var tokenCmd = &cobra.Command{
	Use:   "token <access-token>",
	Short: "Adopt an access token issued elsewhere",
	Long: `Stores an access token obtained outside the CLI, for example from a
browser session, and uses it for subsequent commands.`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		p := client.MustFromContext(cmd.Context())
		c, err := p.SDK()
		if err != nil {
			return err
		}
		sess, err := c.SetSession(cmd.Context(), args[0])
		if err != nil {
			return err
		}
		pterm.Success.Printf("Using session for %s\n", sess.Principal.Email)
		pterm.Info.Printf("Session expires at %s\n", sess.ExpiresAt.Local().Format(time.RFC1123))
		return nil
	},
}
