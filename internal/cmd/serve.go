package cmd

import (
	"context"
	"errors"
	"os"
	"os/signal"
	"syscall"

	"github.com/fulmenhq/gofulmen/foundry"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/3leaps/bucketnav/internal/config"
	"github.com/3leaps/bucketnav/internal/observability"
	"github.com/3leaps/bucketnav/internal/server"
	"github.com/3leaps/bucketnav/internal/server/handlers"
	"github.com/3leaps/bucketnav/pkg/session"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Serve the browse API over HTTP",
	Long: `Serve the browse API over HTTP.

Each POST /api/v1/sessions opens one browser view on a bucket URI. The view
is then driven through its session endpoints: listing, navigation,
selection, delete and upload. Health probes live under /health.

Examples:
  bucketnav serve --port 8080
  BUCKETNAV_READONLY=true bucketnav serve`,
	Args: cobra.NoArgs,
	RunE: runServe,
}

var (
	serveHost string
	servePort int
)

func init() {
	rootCmd.AddCommand(serveCmd)

	serveCmd.Flags().StringVar(&serveHost, "host", "", "Listen host (default from config)")
	serveCmd.Flags().IntVarP(&servePort, "port", "p", 0, "Listen port (default from config)")
}

// identityHealthChecker fails when the binary identity is incomplete.
type identityHealthChecker struct {
	binaryName string
	envPrefix  string
	configName string
}

func (c identityHealthChecker) CheckHealth(ctx context.Context) error {
	switch {
	case c.binaryName == "":
		return errors.New("missing binary name")
	case c.envPrefix == "":
		return errors.New("missing env prefix")
	case c.configName == "":
		return errors.New("missing config name")
	}
	return nil
}

// configHealthChecker fails until a valid configuration is loaded.
type configHealthChecker struct{}

func (configHealthChecker) CheckHealth(ctx context.Context) error {
	cfg := config.GetConfig()
	if cfg == nil {
		return errors.New("configuration not loaded")
	}
	return config.Validate(cfg)
}

func sessionOpener(cfg *config.Config) handlers.Opener {
	return func(ctx context.Context, raw string) (*session.Session, error) {
		u, err := ParseURI(raw)
		if err != nil {
			return nil, handlers.InvalidURI(err)
		}
		return openSession(ctx, cfg, u)
	}
}

func runServe(cmd *cobra.Command, args []string) error {
	cfg, err := loadedConfig(cmd.Context())
	if err != nil {
		return exitError(foundry.ExitInvalidArgument, "Failed to load configuration", err)
	}
	host, port := cfg.Server.Host, cfg.Server.Port
	if cmd.Flags().Changed("host") {
		host = serveHost
	}
	if cmd.Flags().Changed("port") {
		port = servePort
	}

	observability.InitServerLogger(binaryName, observability.Options{
		Level:   cfg.Logging.Level,
		Profile: cfg.Logging.Profile,
		Verbose: verbose,
	})
	logger := observability.CLILogger
	defer observability.Sync()

	handlers.InitHealthManager(versionInfo.Version)
	health := handlers.GetHealthManager()
	health.RegisterChecker("identity", identityHealthChecker{binaryName: binaryName, envPrefix: config.EnvPrefix, configName: binaryName})
	health.RegisterChecker("config", configHealthChecker{})

	sessions := handlers.NewSessions(sessionOpener(cfg), handlers.SessionsConfig{
		ReadOnly:       IsReadOnly(),
		MaxUploadBytes: cfg.Server.MaxUploadBytes,
		Logger:         logger,
	})
	srv := server.New(host, port,
		server.WithLogger(logger),
		server.WithSessions(sessions),
		server.WithTimeouts(cfg.Server.ReadTimeout, cfg.Server.WriteTimeout, cfg.Server.IdleTimeout),
	)

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	errCh := make(chan error, 1)
	go func() { errCh <- srv.Start() }()
	logger.Info("Server started",
		zap.String("addr", srv.Addr()),
		zap.Bool("readonly", IsReadOnly()),
		zap.String("version", versionInfo.Version))

	select {
	case err := <-errCh:
		if err != nil {
			return exitError(foundry.ExitExternalServiceUnavailable, "Server failed", err)
		}
		return nil
	case <-ctx.Done():
	}

	logger.Info("Shutting down", zap.Duration("timeout", cfg.Server.ShutdownTimeout))
	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return exitError(foundry.ExitSignalInt, "Shutdown incomplete", err)
	}
	if err := <-errCh; err != nil {
		return exitError(foundry.ExitExternalServiceUnavailable, "Server failed", err)
	}
	return nil
}
