// Package role holds the operator commands for role assignments.
package role

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/terraconstructs/estate/cmd/estateapi/cmd/cmdutil"
	"github.com/terraconstructs/estate/internal/roles"
	"github.com/terraconstructs/estate/internal/services/directory"
)

// RolesCmd is the parent command for role assignment operations
var RolesCmd = &cobra.Command{
	Use:   "roles",
	Short: "Grant, revoke and list user roles",
	Long: `Operator commands that change role assignments without an
authorization check. Valid roles: ` + strings.Join(roles.Strings(roles.All), ", "),
}

var grantCmd = &cobra.Command{
	Use:   "grant <user-id> <role>",
	Short: "Grant a role to a user",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		role, err := roles.Parse(args[1])
		if err != nil {
			return err
		}
		backend, err := cmdutil.OpenForCLI(cmd.Context())
		if err != nil {
			return err
		}
		defer backend.Close()

		created, err := backend.Directory.AssignRole(cmd.Context(), args[0], role, directory.SystemActor)
		if err != nil {
			return fmt.Errorf("failed to grant role: %w", err)
		}
		if created {
			fmt.Printf("✓ Granted role '%s' to %s\n", role, args[0])
		} else {
			fmt.Printf("User %s already has role '%s'\n", args[0], role)
		}
		return nil
	},
}

var revokeCmd = &cobra.Command{
	Use:   "revoke <user-id> <role>",
	Short: "Revoke a role from a user",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		role, err := roles.Parse(args[1])
		if err != nil {
			return err
		}
		backend, err := cmdutil.OpenForCLI(cmd.Context())
		if err != nil {
			return err
		}
		defer backend.Close()

		removed, err := backend.Directory.UnassignRole(cmd.Context(), args[0], role)
		if err != nil {
			return fmt.Errorf("failed to revoke role: %w", err)
		}
		if removed {
			fmt.Printf("✓ Revoked role '%s' from %s\n", role, args[0])
		} else {
			fmt.Printf("User %s does not have role '%s'\n", args[0], role)
		}
		return nil
	},
}

var listCmd = &cobra.Command{
	Use:   "list <user-id>",
	Short: "List a user's roles in assignment order",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		backend, err := cmdutil.OpenForCLI(cmd.Context())
		if err != nil {
			return err
		}
		defer backend.Close()

		assigned, err := backend.Directory.AssignedRoles(cmd.Context(), args[0])
		if err != nil {
			return fmt.Errorf("failed to list roles: %w", err)
		}
		if len(assigned) == 0 {
			fmt.Println("No roles assigned")
			return nil
		}
		for _, r := range assigned {
			fmt.Println(r)
		}
		return nil
	},
}

func init() {
	RolesCmd.AddCommand(grantCmd, revokeCmd, listCmd)
}
