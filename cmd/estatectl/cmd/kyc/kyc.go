package kyc

import (
	"errors"

	"github.com/pterm/pterm"
	"github.com/spf13/cobra"

	"github.com/terraconstructs/estate/cmd/estatectl/internal/client"
)

// KycCmd is the parent command for identity-verification status
var KycCmd = &cobra.Command{
	Use:   "kyc",
	Short: "Identity verification",
}

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Re-check whether identity verification is approved",
	RunE: func(cmd *cobra.Command, args []string) error {
		a, snap, err := client.MustFromContext(cmd.Context()).Authority(cmd.Context())
		if err != nil {
			return err
		}
		if snap.Session == nil {
			return errors.New("not signed in (run 'estatectl auth signin')")
		}

		if a.CheckKycStatus(cmd.Context()) {
			pterm.Success.Println("Identity verification approved")
			return nil
		}
		pterm.Info.Println("Identity verification not approved yet")
		return nil
	},
}

func init() {
	KycCmd.AddCommand(statusCmd)
}
