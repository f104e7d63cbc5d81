package cmd

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/terraconstructs/estate/cmd/estateapi/cmd/cmdutil"
	"github.com/terraconstructs/estate/internal/server"
	"github.com/terraconstructs/estate/internal/telemetry"
)

var (
	sessionCacheSize int
	sessionCacheTTL  time.Duration
	pruneInterval    time.Duration
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the Estate API server",
	Long: `Starts the HTTP server with the /auth/v1 and /rest/v1 endpoints and the
background provisioning reconciler.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		logger := cmdutil.NewLogger(cfg)
		log := logger.Logger

		ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
		defer stop()

		shutdownTelemetry, err := telemetry.Init(ctx, cfg.Observability, logger)
		if err != nil {
			return fmt.Errorf("failed to initialize telemetry: %w", err)
		}
		defer func() {
			sctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			if err := shutdownTelemetry(sctx); err != nil {
				log.Warn("telemetry shutdown failed", "error", err)
			}
		}()

		backend, err := cmdutil.NewBackend(ctx, cfg, cmdutil.BackendOptions{Logger: log, Instrument: true})
		if err != nil {
			return err
		}
		defer backend.Close()
		log.Info("connected to database")

		go backend.ProvisioningJob().Run(ctx)
		go pruneSessions(ctx, backend, pruneInterval)

		handler := server.NewH2CHandler(server.RouterOptions{
			IAM:              backend.IAM,
			Directory:        backend.Directory,
			Logger:           log,
			Metrics:          backend.ServerMetrics,
			CORSOrigins:      cfg.CORSAllowedOrigins,
			SessionCacheSize: sessionCacheSize,
			SessionCacheTTL:  sessionCacheTTL,
		})

		srv := &http.Server{
			Addr:         cfg.ServerAddr,
			Handler:      handler,
			ReadTimeout:  15 * time.Second,
			WriteTimeout: 15 * time.Second,
			IdleTimeout:  60 * time.Second,
		}

		serverErrors := make(chan error, 1)
		go func() {
			log.Info("starting server", "addr", cfg.ServerAddr, "url", cfg.ServerURL)
			serverErrors <- srv.ListenAndServe()
		}()

		select {
		case err := <-serverErrors:
			return fmt.Errorf("server error: %w", err)
		case <-ctx.Done():
			log.Info("shutting down gracefully")
		}

		sctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := srv.Shutdown(sctx); err != nil {
			srv.Close()
			return fmt.Errorf("graceful shutdown failed: %w", err)
		}
		log.Info("server stopped")
		return nil
	},
}

func pruneSessions(ctx context.Context, backend *cmdutil.Backend, every time.Duration) {
	if every <= 0 {
		return
	}
	ticker := time.NewTicker(every)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			n, err := backend.IAM.PruneSessions(ctx)
			if err != nil {
				if ctx.Err() == nil {
					backend.Logger().Error("session prune failed", "error", err)
				}
				continue
			}
			if n > 0 {
				backend.Logger().Info("pruned expired sessions", "count", n)
			}
		}
	}
}

func init() {
	serveCmd.Flags().IntVar(&sessionCacheSize, "session-cache-size", 1024, "Authenticated tokens cached in memory (0 disables)")
	serveCmd.Flags().DurationVar(&sessionCacheTTL, "session-cache-ttl", 30*time.Second, "How long a cached token is trusted without a database check")
	serveCmd.Flags().DurationVar(&pruneInterval, "prune-interval", time.Hour, "How often expired sessions are deleted (0 disables)")
	rootCmd.AddCommand(serveCmd)
}
