package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"leasecheck-backend/app"
	"leasecheck-backend/config"
	"leasecheck-backend/logging"
)

type rootOptions struct {
	logLevel  string
	logFormat string
}

func newRootCmd() *cobra.Command {
	opts := &rootOptions{}

	cmd := &cobra.Command{
		Use:   "leasecheck",
		Short: "Assess rental contract clauses against tenancy law",
		Long: `leasecheck checks residential tenancy agreements clause by clause.

Each clause is tested against the jurisdiction's rule table and compared with
relevant legislation, then given a verdict (legal, illegal or questionable)
with citations. Configuration comes from the environment and .env, the same
as the HTTP server.`,
		SilenceUsage: true,
	}

	cmd.PersistentFlags().StringVar(&opts.logLevel, "log-level", "warn", "log level (debug, info, warn, error)")
	cmd.PersistentFlags().StringVar(&opts.logFormat, "log-format", "console", "log format (console, json)")

	cmd.AddCommand(assessCmd(opts))
	cmd.AddCommand(askCmd(opts))
	cmd.AddCommand(rulesCmd(opts))

	return cmd
}

// newApp builds the analysis pipeline from the environment
func (o *rootOptions) newApp(ctx context.Context) (*app.App, *zap.Logger, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, nil, err
	}
	logger, err := logging.New(o.logLevel, o.logFormat)
	if err != nil {
		return nil, nil, err
	}
	a, err := app.New(ctx, cfg, logger)
	if err != nil {
		_ = logger.Sync()
		return nil, nil, err
	}
	return a, logger, nil
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := newRootCmd().ExecuteContext(ctx); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(1)
	}
}
