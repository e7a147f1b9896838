package cli

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"content-sync/internal/di"
	"content-sync/internal/shared/logger"

	"github.com/spf13/cobra"
)

// ServeOptions holds flags for the serve command.
type ServeOptions struct {
	*RootOptions
	Addr string
}

// NewServeCommand creates the serve command.
func NewServeCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &ServeOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Serve the dashboard API and the change relay",
		Long: `Mount every dashboard collection and serve the HTTP API and the
WebSocket change relay until interrupted.

Example:
  contentsync serve
  contentsync serve --addr 127.0.0.1:9090`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServe(cmd, opts)
		},
	}
	cmd.Flags().StringVar(&opts.Addr, "addr", "", "listen address (default SERVER_HOST:SERVER_PORT)")
	return cmd
}

func runServe(cmd *cobra.Command, opts *ServeOptions) error {
	cfg, err := opts.config()
	if err != nil {
		return err
	}
	log := logger.NewLogger()
	if opts.Verbose {
		log = logger.NewLoggerWithConfig(os.Getenv("LOG_BACKEND"), "debug", os.Getenv("LOG_FORMAT"))
	}

	ctx, stop := signal.NotifyContext(commandContext(cmd), os.Interrupt, syscall.SIGTERM)
	defer stop()

	container := di.NewContainer(cfg, log)
	defer func() {
		if err := container.Close(); err != nil {
			log.Errorf("Failed to close container: %v", err)
		}
	}()

	if err := container.InitializeCollection(ctx); err != nil {
		return WrapExitError(ExitCommandError, "failed to start collections", err)
	}
	if err := container.InitializeDashboard(ctx); err != nil {
		return WrapExitError(ExitCommandError, "failed to start dashboard", err)
	}
	if err := container.InitializeServer(); err != nil {
		return WrapExitError(ExitCommandError, "failed to start server", err)
	}

	addr := opts.Addr
	if addr == "" {
		addr = cfg.Server.Addr()
	}
	serverErr := make(chan error, 1)
	go func() {
		serverErr <- container.Server.Listen(addr)
	}()

	select {
	case err := <-serverErr:
		if err != nil {
			return WrapExitError(ExitCommandError, "server stopped", err)
		}
		return nil
	case <-ctx.Done():
		// The deferred Close shuts the server down within its timeout.
		log.Info("Shutting down server gracefully...")
		return nil
	}
}

func commandContext(cmd *cobra.Command) context.Context {
	if ctx := cmd.Context(); ctx != nil {
		return ctx
	}
	return context.Background()
}

func commandLogger(cmd *cobra.Command, verbose bool) logger.Logger {
	level := "warn"
	if verbose {
		level = "debug"
	}
	return logger.NewWriterLogger(cmd.ErrOrStderr(), level)
}
