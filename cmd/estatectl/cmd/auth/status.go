package auth

import (
	"fmt"
	"os"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/pterm/pterm"
	"github.com/spf13/cobra"

	"github.com/terraconstructs/estate/cmd/estatectl/internal/client"
	"github.com/terraconstructs/estate/internal/roles"
)

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Display session, roles and verification status",
	RunE: func(cmd *cobra.Command, args []string) error {
		p := client.MustFromContext(cmd.Context())
		_, snap, err := p.Authority(cmd.Context())
		if err != nil {
			return err
		}

		pterm.DefaultSection.Println("Authentication Status")
		if snap.Session == nil {
			pterm.Info.Println("Not signed in")
			return nil
		}
		pterm.Info.Printf("Signed in as %s (%s)\n", snap.Session.Principal.Email, snap.Session.Principal.ID)
		pterm.Info.Printf("Session expires at %s\n", snap.Session.ExpiresAt.Local().Format(time.RFC1123))
		if snap.ProvisioningIncomplete {
			pterm.Warning.Println("Account setup is incomplete: profile or default role is missing")
		}

		kyc := "pending"
		if snap.HasCompletedKyc {
			kyc = "approved"
		}

		w := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
		fmt.Fprintln(w, "ROLES\tACTIVE ROLE\tKYC")
		fmt.Fprintf(w, "%s\t%s\t%s\n",
			strings.Join(roles.Strings(snap.Roles), ", "),
			snap.ActiveRole,
			kyc,
		)
		return w.Flush()
	},
}
