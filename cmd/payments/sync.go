package main

import (
	"fmt"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

func newSyncCmd(deps depsFunc) *cobra.Command {
	return &cobra.Command{
		Use:   "sync <transaction-id>",
		Short: "Poll Braintree for a transaction and reconcile its state",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, logger := deps()
			ctx := cmd.Context()

			a, err := buildApp(ctx, cfg, logger, 1)
			if err != nil {
				return err
			}
			defer a.Close(logger)

			transactionID := args[0]
			ok, err := a.processor.FetchTransactionStatus(ctx, transactionID)
			if err != nil {
				return fmt.Errorf("failed to sync transaction %s: %w", transactionID, err)
			}

			t, err := a.processor.GetTransaction(ctx, transactionID)
			if err != nil {
				return err
			}
			logger.Info("Transaction synced",
				zap.String("transaction_id", t.ID),
				zap.String("state", string(t.State)),
				zap.String("gateway_status", string(t.Data.Status)),
				zap.Bool("ok", ok))
			fmt.Fprintf(cmd.OutOrStdout(), "%s\t%s\t%s\n", t.ID, t.State, t.Data.Status)
			return nil
		},
	}
}
