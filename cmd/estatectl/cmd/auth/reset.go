package auth

import (
	"github.com/pterm/pterm"
	"github.com/spf13/cobra"

	"github.com/terraconstructs/estate/cmd/estatectl/internal/client"
)

var resetCmd = &cobra.Command{
	Use:   "reset <email>",
	Short: "Email a password-reset link",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		p := client.MustFromContext(cmd.Context())
		a, _, err := p.Authority(cmd.Context())
		if err != nil {
			return err
		}
		if err := a.SendPasswordResetEmail(cmd.Context(), args[0]); err != nil {
			return err
		}
		pterm.Success.Println("If the address has an account, a reset link is on its way.")
		pterm.Info.Printf("The link opens %s\n", a.ResetRedirectURL())
		return nil
	},
}

var confirmPassword string

var resetConfirmCmd = &cobra.Command{
	Use:   "confirm <token>",
	Short: "Set a new password using the token from a reset link",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		p := client.MustFromContext(cmd.Context())
		password, err := readPassword(confirmPassword, "New password")
		if err != nil {
			return err
		}
		c, err := p.SDK()
		if err != nil {
			return err
		}
		if err := c.ConfirmPasswordReset(cmd.Context(), args[0], password); err != nil {
			return err
		}
		pterm.Success.Println("Password updated. Sign in with the new password.")
		return nil
	},
}

func init() {
	resetConfirmCmd.Flags().StringVar(&confirmPassword, "password", "", "New password (prompted when omitted)")
	resetCmd.AddCommand(resetConfirmCmd)
}
