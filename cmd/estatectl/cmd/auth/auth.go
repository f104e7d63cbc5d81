package auth

import (
	"os"

	"github.com/pterm/pterm"
	"github.com/spf13/cobra"
)

// AuthCmd is the parent command for session operations
var AuthCmd = &cobra.Command{
	Use:   "auth",
	Short: "Manage authentication",
	Long:  `Commands for signing in and out, registering and recovering passwords.`,
}

func init() {
	AuthCmd.AddCommand(signinCmd)
	AuthCmd.AddCommand(signupCmd)
	AuthCmd.AddCommand(signoutCmd)
	AuthCmd.AddCommand(statusCmd)
	AuthCmd.AddCommand(resetCmd)
	AuthCmd.AddCommand(tokenCmd)
}

// readPassword returns flagValue, then $ESTATE_PASSWORD, then prompts.
func readPassword(flagValue, prompt string) (string, error) {
	if flagValue != "" {
		return flagValue, nil
	}
	if v := os.Getenv("ESTATE_PASSWORD"); v != "" {
		return v, nil
	}
	return pterm.DefaultInteractiveTextInput.WithMask("*").Show(prompt)
}
