package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5/middleware"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	payments_http "payments-reconciler/internal/handler/http/payments"
	kafka_handler "payments-reconciler/internal/handler/kafka"
	kafka_infra "payments-reconciler/internal/infrastructure/kafka"
	"payments-reconciler/internal/outbox"
)

func newServeCmd(deps depsFunc) *cobra.Command {
	var skipMigrations bool
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the HTTP API, the status report consumer and the outbox processor",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, appLogger := deps()
			appLogger.Info("Payments reconciler starting...")

			ctxMain, cancelMain := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer cancelMain()

			a, err := buildApp(ctxMain, cfg, appLogger, 10)
			if err != nil {
				return err
			}
			defer a.Close(appLogger)

			if !skipMigrations {
				if err := runMigrations(cfg, appLogger, false); err != nil {
					return err
				}
			}

			kafkaBrokers := cfg.GetKafkaBrokers()
			topicsCtx, cancelTopics := context.WithTimeout(ctxMain, 10*time.Second)
			err = kafka_infra.EnsureTopics(topicsCtx, kafkaBrokers, []string{
				cfg.KafkaStatusReportsTopic,
				cfg.KafkaStateChangesTopic,
			}, appLogger)
			cancelTopics()
			if err != nil {
				return fmt.Errorf("failed to ensure Kafka topics: %w", err)
			}

			router := payments_http.NewRouter(a.processor, cfg.GetCORSAllowedOrigins(), cfg.RequestTimeout(), appLogger)
			httpServer := &http.Server{
				Addr:              fmt.Sprintf(":%d", cfg.HTTPPort),
				Handler:           middleware.Logger(router),
				ReadHeaderTimeout: 10 * time.Second,
			}

			stateChangesPublisher := kafka_infra.NewPublisher(
				kafkaBrokers,
				cfg.KafkaStateChangesTopic,
				appLogger.With(zap.String("component", "StateChangesPublisher")),
			)
			defer func() {
				if err := stateChangesPublisher.Close(); err != nil {
					appLogger.Error("Error closing Kafka publisher", zap.Error(err))
				}
			}()

			outboxProcessor := outbox.NewProcessor(
				a.transactor,
				a.outboxRepo,
				stateChangesPublisher,
				cfg.OutboxPollInterval,
				cfg.OutboxPollTimeout,
				appLogger.With(zap.String("component", "OutboxProcessor")),
			)

			statusReportsConsumer := kafka_infra.NewConsumer(
				kafkaBrokers,
				cfg.KafkaConsumerGroup,
				cfg.KafkaStatusReportsTopic,
				appLogger.With(zap.String("component", "StatusReportsConsumer")),
			)
			statusReportHandler := kafka_handler.StatusReportMessageHandler(
				a.processor,
				appLogger.With(zap.String("component", "StatusReportHandler")),
			)

			serverErr := make(chan error, 1)
			go func() {
				appLogger.Info("Starting HTTP server", zap.String("address", httpServer.Addr))
				if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
					serverErr <- err
				}
			}()

			outboxProcessor.Start(ctxMain)

			consumerDone := make(chan struct{})
			go func() {
				defer close(consumerDone)
				if err := statusReportsConsumer.Start(ctxMain, statusReportHandler); err != nil {
					appLogger.Error("Status reports consumer stopped with error", zap.Error(err))
				}
			}()

			var runErr error
			select {
			case <-ctxMain.Done():
				appLogger.Info("Shutting down application...")
			case runErr = <-serverErr:
				appLogger.Error("HTTP server failed", zap.Error(runErr))
				cancelMain()
			}

			shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 15*time.Second)
			defer shutdownCancel()

			if err := httpServer.Shutdown(shutdownCtx); err != nil {
				appLogger.Error("HTTP server graceful shutdown failed", zap.Error(err))
			} else {
				appLogger.Info("HTTP server gracefully shut down.")
			}

			statusReportsConsumer.Stop()
			outboxProcessor.Stop()
			for name, done := range map[string]<-chan struct{}{
				"status reports consumer": consumerDone,
				"outbox processor":        outboxProcessor.Done(),
			} {
				select {
				case <-done:
				case <-shutdownCtx.Done():
					appLogger.Warn("Component did not stop in time", zap.String("component", name))
				}
			}

			appLogger.Info("Application gracefully shut down.")
			return runErr
		},
	}
	cmd.Flags().BoolVar(&skipMigrations, "skip-migrations", false, "do not apply migrations on startup")
	return cmd
}
