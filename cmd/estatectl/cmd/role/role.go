package role

import (
	"errors"
	"fmt"

	"github.com/pterm/pterm"
	"github.com/spf13/cobra"

	"github.com/terraconstructs/estate/cmd/estatectl/internal/client"
	"github.com/terraconstructs/estate/internal/authority"
	"github.com/terraconstructs/estate/internal/roles"
)

var errNotSignedIn = errors.New("not signed in (run 'estatectl auth signin')")

// RoleCmd is the parent command for role selection
var RoleCmd = &cobra.Command{
	Use:   "role",
	Short: "List assigned roles and choose the active one",
}

var listCmd = &cobra.Command{
	Use:   "list",
	Short: "List the roles assigned to the signed-in user",
	RunE: func(cmd *cobra.Command, args []string) error {
		_, snap, err := client.MustFromContext(cmd.Context()).Authority(cmd.Context())
		if err != nil {
			return err
		}
		if snap.Session == nil {
			return errNotSignedIn
		}
		return render(snap)
	},
}

var useCmd = &cobra.Command{
	Use:   "use <role>",
	Short: "Switch the active role on this device",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		r, err := roles.Parse(args[0])
		if err != nil {
			return err
		}
		a, snap, err := client.MustFromContext(cmd.Context()).Authority(cmd.Context())
		if err != nil {
			return err
		}
		if snap.Session == nil {
			return errNotSignedIn
		}
		if !snap.HasRole(r) {
			return fmt.Errorf("role %q is not assigned to %s", r, snap.Session.Principal.Email)
		}

		a.SetActiveRole(cmd.Context(), r)
		pterm.Success.Printf("Active role is now %s\n", a.Snapshot().ActiveRole)
		return nil
	},
}

func render(snap authority.Snapshot) error {
	if len(snap.Roles) == 0 {
		pterm.Warning.Printf("No roles assigned; acting as %s\n", snap.ActiveRole)
		return nil
	}
	data := pterm.TableData{{"ROLE", "ACTIVE"}}
	for _, r := range snap.Roles {
		active := ""
		if r == snap.ActiveRole {
			active = "*"
		}
		data = append(data, []string{r.String(), active})
	}
	return pterm.DefaultTable.WithHasHeader().WithData(data).Render()
}

func init() {
	RoleCmd.AddCommand(listCmd)
	RoleCmd.AddCommand(useCmd)
}
