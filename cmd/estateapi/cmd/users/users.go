package users

import "github.com/spf13/cobra"

// UsersCmd is the parent command for account management operations
var UsersCmd = &cobra.Command{
	Use:   "users",
	Short: "Manage accounts",
	Long:  `Commands for managing accounts directly against the database.`,
}

func init() {
	createCmd.Flags().StringVar(&emailFlag, "email", "", "Email address of the user")
	createCmd.Flags().StringVar(&firstNameFlag, "first-name", "", "First name")
	createCmd.Flags().StringVar(&lastNameFlag, "last-name", "", "Last name")
	createCmd.Flags().StringVar(&passwordFlag, "password", "", "Password for the user (use --stdin to avoid shell history)")
	createCmd.Flags().StringSliceVar(&rolesInput, "role", nil, "Additional role(s) to assign; tenant is always assigned")
	createCmd.Flags().BoolVar(&stdinFlag, "stdin", false, "Read password from stdin instead of --password flag")

	UsersCmd.AddCommand(createCmd, disableCmd)
}
