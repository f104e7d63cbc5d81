package auth

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/terraconstructs/estate/cmd/estatectl/internal/client"
)

var signoutCmd = &cobra.Command{
	Use:   "signout",
	Short: "Sign out and forget the stored session",
	RunE: func(cmd *cobra.Command, args []string) error {
		p := client.MustFromContext(cmd.Context())
		a, snap, err := p.Authority(cmd.Context())
		if err != nil {
			return err
		}
		if snap.Session == nil {
			fmt.Println("Not signed in")
			return nil
		}
		a.SignOut(cmd.Context())
		fmt.Println("Signed out successfully")
		return nil
	},
}
