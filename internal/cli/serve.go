package cli

import (
	"context"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/roach88/runproof/internal/api"
)

// ServeOptions holds flags for the serve command.
type ServeOptions struct {
	*RootOptions
	Listen string
}

// NewServeCommand creates the serve command.
func NewServeCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &ServeOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Serve the diff, assert and replay HTTP API",
		Long: `Serve the HTTP API over the run store until interrupted.

Endpoints:
  POST /v1/diff            POST /v1/assert
  POST /v1/replay/stub     POST /v1/replay/hybrid
  POST /v1/runs            GET  /v1/runs
  GET  /v1/runs/:id        GET  /v1/runs/:id/reports
  GET  /healthz

Examples:
  runproof serve
  runproof serve --listen :9000 --db ./runs.db`,
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
			defer stop()
			return runServe(ctx, opts, cmd)
		},
	}

	cmd.Flags().StringVar(&opts.Listen, "listen", "", "listen address (default from config)")

	return cmd
}

func runServe(ctx context.Context, opts *ServeOptions, cmd *cobra.Command) error {
	f := newFormatter(opts.RootOptions, cmd)
	cfg := opts.settings()

	addr := opts.Listen
	if addr == "" {
		addr = cfg.Listen
	}

	hasher := hasherFor(opts.RootOptions, nil)
	st, err := openStore(opts.RootOptions, f, hasher)
	if err != nil {
		return err
	}
	defer st.Close()

	logger := opts.loggerAt(cmd.ErrOrStderr(), slog.LevelInfo)

	h := api.NewHandler(
		api.WithStore(st),
		api.WithHasher(hasher),
		api.WithMaxChangesPerStep(cfg.MaxChangesPerStep),
		api.WithLogger(logger),
	)
	if err := api.Serve(ctx, addr, h); err != nil {
		return commandError(f, ErrCodeGeneric, "server failed", err)
	}
	return nil
}
