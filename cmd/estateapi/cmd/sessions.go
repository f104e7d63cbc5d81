package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/terraconstructs/estate/cmd/estateapi/cmd/cmdutil"
)

var sessionsCmd = &cobra.Command{
	Use:   "sessions",
	Short: "Manage issued sessions",
}

var sessionsPruneCmd = &cobra.Command{
	Use:   "prune",
	Short: "Delete expired sessions",
	RunE: func(cmd *cobra.Command, args []string) error {
		backend, err := cmdutil.NewBackend(cmd.Context(), cfg, cmdutil.BackendOptions{})
		if err != nil {
			return err
		}
		defer backend.Close()

		n, err := backend.IAM.PruneSessions(cmd.Context())
		if err != nil {
			return fmt.Errorf("failed to prune sessions: %w", err)
		}
		fmt.Printf("Deleted %d expired session(s)\n", n)
		return nil
	},
}

func init() {
	sessionsCmd.AddCommand(sessionsPruneCmd)
	rootCmd.AddCommand(sessionsCmd)
}
