package auth

import (
	"time"

	"github.com/pterm/pterm"
	"github.com/spf13/cobra"

	"github.com/terraconstructs/estate/cmd/estatectl/internal/client"
)

var (
	signinEmail    string
	signinPassword string
)

var signinCmd = &cobra.Command{
	Use:   "signin",
	Short: "Sign in with email and password",
	RunE: func(cmd *cobra.Command, args []string) error {
		p := client.MustFromContext(cmd.Context())
		password, err := readPassword(signinPassword, "Password")
		if err != nil {
			return err
		}

		a, _, err := p.Authority(cmd.Context())
		if err != nil {
			return err
		}
		sess, err := a.SignIn(cmd.Context(), signinEmail, password)
		if err != nil {
			return err
		}

		pterm.Success.Printf("Signed in as %s\n", sess.Principal.Email)
		pterm.Info.Printf("Session expires at %s\n", sess.ExpiresAt.Local().Format(time.RFC1123))
		return nil
	},
}

func init() {
	signinCmd.Flags().StringVar(&signinEmail, "email", "", "Account email")
	signinCmd.Flags().StringVar(&signinPassword, "password", "", "Account password (prompted when omitted)")
	_ = signinCmd.MarkFlagRequired("email")
}
