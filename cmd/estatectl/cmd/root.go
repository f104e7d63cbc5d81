package cmd

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/terraconstructs/estate/cmd/estatectl/cmd/auth"
	"github.com/terraconstructs/estate/cmd/estatectl/cmd/kyc"
	"github.com/terraconstructs/estate/cmd/estatectl/cmd/profile"
	"github.com/terraconstructs/estate/cmd/estatectl/cmd/role"
	"github.com/terraconstructs/estate/cmd/estatectl/internal/client"
	"github.com/terraconstructs/estate/internal/config"
	"github.com/terraconstructs/estate/internal/logging"
)

// version is stamped at build time with -ldflags.
var version = "dev"

var (
	serverURL string
	debug     bool

	provider *client.Provider
)

var rootCmd = &cobra.Command{
	Use:   "estatectl",
	Short: "Estate CLI - account, role and verification client",
	Long: `estatectl signs in to the Estate API and inspects the session the way
the applications see it: assigned roles, the active role, the profile and
the identity-verification status.`,
	SilenceUsage: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		if serverURL != "" {
			os.Setenv("ESTATE_API_URL", serverURL)
		}
		if debug {
			os.Setenv("ESTATE_LOG_LEVEL", "debug")
		}

		cfg, err := config.LoadClient()
		if err != nil {
			return fmt.Errorf("failed to load configuration: %w", err)
		}
		log := logging.New(cfg.Logging(), "estatectl", version)

		provider = client.NewProvider(cfg, log.Logger)
		cmd.SetContext(client.Inject(cmd.Context(), provider))
		return nil
	},
	PersistentPostRun: func(cmd *cobra.Command, args []string) {
		if provider != nil {
			provider.Close()
		}
	},
}

// Execute runs the root command
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func init() {
	rootCmd.PersistentFlags().StringVar(&serverURL, "server", "", "Estate API server URL (overrides ESTATE_API_URL)")
	rootCmd.PersistentFlags().BoolVar(&debug, "debug", false, "Enable debug logging")
	rootCmd.AddCommand(auth.AuthCmd)
	rootCmd.AddCommand(role.RoleCmd)
	rootCmd.AddCommand(profile.ProfileCmd)
	rootCmd.AddCommand(kyc.KycCmd)
}
