package cmd

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/terraconstructs/estate/cmd/estateapi/cmd/kyc"
	"github.com/terraconstructs/estate/cmd/estateapi/cmd/provisioning"
	"github.com/terraconstructs/estate/cmd/estateapi/cmd/role"
	"github.com/terraconstructs/estate/cmd/estateapi/cmd/users"
	"github.com/terraconstructs/estate/internal/config"
)

var cfg *config.Config

var rootCmd = &cobra.Command{
	Use:   "estateapi",
	Short: "Estate identity API server",
	Long: `Estate API Server handles accounts, sessions, role assignments, profiles
and identity verification records for the property-management platform.`,
	SilenceUsage: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		if err := applyFlagOverrides(cmd); err != nil {
			return err
		}
		var err error
		cfg, err = config.Load()
		if err != nil {
			return fmt.Errorf("failed to load configuration: %w", err)
		}
		return nil
	},
}

func init() {
	rootCmd.PersistentFlags().String("db-url", "", "Database connection URL (env: DATABASE_URL)")
	rootCmd.PersistentFlags().String("server-addr", "", "Server bind address (env: SERVER_ADDR)")
	rootCmd.PersistentFlags().Bool("debug", false, "Enable debug logging (env: DEBUG)")

	rootCmd.AddCommand(users.UsersCmd)
	rootCmd.AddCommand(role.RolesCmd)
	rootCmd.AddCommand(kyc.KycCmd)
	rootCmd.AddCommand(provisioning.ProvisioningCmd)
}

// flagEnv maps global flags onto the environment variables config.Load
// reads, so subcommands that load configuration themselves see them too.
var flagEnv = map[string]string{
	"db-url":      "DATABASE_URL",
	"server-addr": "SERVER_ADDR",
}

func applyFlagOverrides(cmd *cobra.Command) error {
	for flag, env := range flagEnv {
		if v, _ := cmd.Flags().GetString(flag); v != "" {
			if err := os.Setenv(env, v); err != nil {
				return err
			}
		}
	}
	if debug, _ := cmd.Flags().GetBool("debug"); debug {
		return os.Setenv("DEBUG", "true")
	}
	return nil
}

// Execute runs the root command
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
