package main

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"payments-reconciler/internal/app/payments"
	"payments-reconciler/internal/config"
	"payments-reconciler/internal/gateway/braintree"
	"payments-reconciler/internal/infrastructure/database"
	"payments-reconciler/internal/infrastructure/redislock"
	"payments-reconciler/internal/repository/customers_repo"
	"payments-reconciler/internal/repository/inbox_repo"
	"payments-reconciler/internal/repository/outbox_repo"
	"payments-reconciler/internal/repository/payment_methods_repo"
	"payments-reconciler/internal/repository/transactions_repo"
)

type depsFunc func() (*config.Config, *zap.Logger)

// app holds the collaborators shared by serve and sync.
type app struct {
	db          *sql.DB
	redisClient *redis.Client
	transactor  database.Transactor
	outboxRepo  outbox_repo.OutboxRepository
	processor   payments.PaymentProcessor
}

func (a *app) Close(logger *zap.Logger) {
	if err := a.redisClient.Close(); err != nil {
		logger.Error("Error closing redis client", zap.Error(err))
	}
	if err := a.db.Close(); err != nil {
		logger.Error("Error closing database connection", zap.Error(err))
	} else {
		logger.Info("Database connection closed.")
	}
}

func dbConfig(cfg *config.Config) database.DBConfig {
	return database.DBConfig{
		Host:     cfg.DBConfig.Host,
		Port:     cfg.DBConfig.Port,
		User:     cfg.DBConfig.User,
		Password: cfg.DBConfig.Password,
		DBName:   cfg.DBConfig.Name,
		SSLMode:  cfg.DBConfig.SSLMode,
	}
}

func connectDB(cfg *config.Config, logger *zap.Logger, maxRetries int) (*sql.DB, error) {
	logger.Info("Waiting for database to be available...")
	retryDelay := 5 * time.Second

	var db *sql.DB
	var err error
	for i := 0; i < maxRetries; i++ {
		db, err = database.NewPostgresDB(dbConfig(cfg))
		if err == nil {
			logger.Info("Successfully connected to PostgreSQL database!")
			return db, nil
		}
		logger.Warn("Failed to connect to database",
			zap.Int("attempt", i+1),
			zap.Int("max_attempts", maxRetries),
			zap.Duration("retry_in", retryDelay),
			zap.Error(err))
		if i < maxRetries-1 {
			time.Sleep(retryDelay)
		}
	}
	return nil, fmt.Errorf("could not connect to database after %d attempts: %w", maxRetries, err)
}

func newGateway(cfg *config.Config, logger *zap.Logger) (*braintree.Client, error) {
	env, err := braintree.ParseEnvironment(cfg.BraintreeConfig.Environment)
	if err != nil {
		return nil, err
	}
	return braintree.NewClient(braintree.Config{
		Environment:        env,
		MerchantID:         cfg.BraintreeConfig.MerchantID,
		PublicKey:          cfg.BraintreeConfig.PublicKey,
		PrivateKey:         cfg.BraintreeConfig.PrivateKey,
		Timeout:            cfg.BraintreeConfig.Timeout,
		BreakerMaxFailures: uint32(cfg.BraintreeConfig.BreakerMaxFailures),
		BreakerOpenTimeout: cfg.BraintreeConfig.BreakerOpenTimeout,
	}, logger.With(zap.String("component", "BraintreeClient")))
}

func buildApp(ctx context.Context, cfg *config.Config, logger *zap.Logger, dbRetries int) (*app, error) {
	gateway, err := newGateway(cfg, logger)
	if err != nil {
		return nil, fmt.Errorf("failed to configure braintree client: %w", err)
	}

	db, err := connectDB(cfg, logger, dbRetries)
	if err != nil {
		return nil, err
	}

	redisClient := redislock.NewClient(redislock.Options{
		Addr:     cfg.RedisConfig.Addr,
		Password: cfg.RedisConfig.Password,
		DB:       cfg.RedisConfig.DB,
	})
	locker := redislock.NewLocker(redisClient, cfg.RedisConfig.LockTTL, logger.With(zap.String("component", "TransactionLocker")))
	if err := locker.Ping(ctx); err != nil {
		db.Close()
		redisClient.Close()
		return nil, fmt.Errorf("failed to reach redis at %s: %w", cfg.RedisConfig.Addr, err)
	}

	transactor := database.NewTransactor(db)
	outboxRepository := outbox_repo.NewOutboxRepository(db)

	processor := payments.NewPaymentProcessor(
		transactor,
		transactions_repo.NewTransactionRepository(db),
		payment_methods_repo.NewPaymentMethodRepository(db),
		customers_repo.NewCustomerRepository(db),
		inbox_repo.NewInboxRepository(db),
		outboxRepository,
		gateway,
		locker,
		logger.With(zap.String("component", "PaymentProcessor")),
	)

	return &app{
		db:          db,
		redisClient: redisClient,
		transactor:  transactor,
		outboxRepo:  outboxRepository,
		processor:   processor,
	}, nil
}
