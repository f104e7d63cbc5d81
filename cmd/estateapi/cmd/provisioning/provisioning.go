// Package provisioning exposes the sign-up reconciler as a one-shot command.
package provisioning

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/terraconstructs/estate/cmd/estateapi/cmd/cmdutil"
)

// ProvisioningCmd is the parent command for sign-up reconciliation
var ProvisioningCmd = &cobra.Command{
	Use:   "provisioning",
	Short: "Inspect and repair sign-up provisioning",
}

var reconcileCmd = &cobra.Command{
	Use:   "reconcile",
	Short: "Backfill missing profiles and default roles once",
	Long: `Processes pending provisioning tasks older than PROVISIONING_GRACE, creating
the profile and the tenant role for accounts whose sign-up follow-up never
finished.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		backend, err := cmdutil.OpenForCLI(cmd.Context())
		if err != nil {
			return err
		}
		defer backend.Close()

		report, err := backend.ProvisioningJob().ReconcileOnce(cmd.Context())
		if err != nil {
			return fmt.Errorf("reconcile failed: %w", err)
		}
		fmt.Printf("Done: %d  Retrying: %d  Failed: %d\n", report.Done, report.Retrying, report.Failed)
		fmt.Printf("Backfilled profiles: %d  roles: %d\n", report.Profiles, report.Roles)
		return nil
	},
}

func init() {
	ProvisioningCmd.AddCommand(reconcileCmd)
}
