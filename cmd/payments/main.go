package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"payments-reconciler/internal/config"
)

func newLogger() (*zap.Logger, error) {
	zapConfig := zap.NewProductionConfig()
	zapConfig.EncoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder
	zapConfig.EncoderConfig.TimeKey = "timestamp"
	return zapConfig.Build()
}

func newRootCmd() *cobra.Command {
	var (
		cfg       *config.Config
		appLogger *zap.Logger
	)

	root := &cobra.Command{
		Use:           "payments",
		Short:         "Braintree transaction reconciliation service",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			var err error
			cfg, err = config.LoadConfig()
			if err != nil {
				return fmt.Errorf("error loading configuration: %w", err)
			}
			appLogger, err = newLogger()
			if err != nil {
				return fmt.Errorf("failed to create zap logger: %w", err)
			}
			return nil
		},
		PersistentPostRun: func(cmd *cobra.Command, args []string) {
			if appLogger != nil {
				_ = appLogger.Sync()
			}
		},
	}

	deps := func() (*config.Config, *zap.Logger) { return cfg, appLogger }

	serve := newServeCmd(deps)
	root.AddCommand(serve, newMigrateCmd(deps), newSyncCmd(deps))
	root.RunE = serve.RunE
	root.Flags().AddFlagSet(serve.Flags())

	return root
}

func main() {
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}
