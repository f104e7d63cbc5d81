package auth

import (
	"github.com/pterm/pterm"
	"github.com/spf13/cobra"

	"github.com/terraconstructs/estate/cmd/estatectl/internal/client"
)

var (
	signupEmail     string
	signupPassword  string
	signupFirstName string
	signupLastName  string
)

var signupCmd = &cobra.Command{
	Use:   "signup",
	Short: "Register a new account",
	Long: `Registers a new account. When the server signs the account in straight
away, the profile and the default tenant role are created too; either step
can fail without failing registration.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		p := client.MustFromContext(cmd.Context())
		password, err := readPassword(signupPassword, "Choose a password")
		if err != nil {
			return err
		}

		a, _, err := p.Authority(cmd.Context())
		if err != nil {
			return err
		}
		res, err := a.SignUp(cmd.Context(), signupEmail, password, signupFirstName, signupLastName)
		if err != nil {
			return err
		}

		if res.Session == nil {
			pterm.Success.Println("Account created. Confirm your email address, then sign in.")
			return nil
		}
		pterm.Success.Printf("Account created and signed in as %s\n", res.Session.Principal.Email)
		if !res.ProfileCreated {
			pterm.Warning.Println("Profile could not be created; run 'estatectl profile set' to retry.")
		}
		if !res.RoleAssigned {
			pterm.Warning.Println("Default role could not be assigned; contact an administrator.")
		}
		return nil
	},
}

func init() {
	signupCmd.Flags().StringVar(&signupEmail, "email", "", "Account email")
	signupCmd.Flags().StringVar(&signupPassword, "password", "", "Account password (prompted when omitted)")
	signupCmd.Flags().StringVar(&signupFirstName, "first-name", "", "Given name")
	signupCmd.Flags().StringVar(&signupLastName, "last-name", "", "Family name")
	_ = signupCmd.MarkFlagRequired("email")
	_ = signupCmd.MarkFlagRequired("first-name")
	_ = signupCmd.MarkFlagRequired("last-name")
}
