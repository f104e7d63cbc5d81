// Package kyc holds the back-office command that records identity
// verification outcomes.
package kyc

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/terraconstructs/estate/cmd/estateapi/cmd/cmdutil"
)

// KycCmd is the parent command for identity verification records
var KycCmd = &cobra.Command{
	Use:   "kyc",
	Short: "Manage identity verification records",
}

var recordCmd = &cobra.Command{
	Use:   "record <user-id> <pending|approved|rejected>",
	Short: "Record the outcome of a user's identity verification",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		backend, err := cmdutil.OpenForCLI(cmd.Context())
		if err != nil {
			return err
		}
		defer backend.Close()

		v, err := backend.Directory.RecordVerification(cmd.Context(), args[0], args[1])
		if err != nil {
			return fmt.Errorf("failed to record verification: %w", err)
		}
		fmt.Printf("Verification for %s is now %s\n", v.UserID, v.Status)
		return nil
	},
}

func init() {
	KycCmd.AddCommand(recordCmd)
}
