package users

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/terraconstructs/estate/cmd/estateapi/cmd/cmdutil"
)

var disableCmd = &cobra.Command{
	Use:   "disable <user-id>",
	Short: "Disable an account and revoke its sessions",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		backend, err := cmdutil.OpenForCLI(cmd.Context())
		if err != nil {
			return err
		}
		defer backend.Close()

		if err := backend.IAM.DisableUser(cmd.Context(), args[0]); err != nil {
			return fmt.Errorf("failed to disable user: %w", err)
		}
		fmt.Printf("User %s disabled\n", args[0])
		return nil
	},
}
