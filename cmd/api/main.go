package main

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/Dan9191/microloan/internal/config"
	"github.com/Dan9191/microloan/internal/handler"
	"github.com/Dan9191/microloan/internal/middleware"
	"github.com/Dan9191/microloan/internal/repository"
	"github.com/Dan9191/microloan/internal/scheduler"
	"github.com/Dan9191/microloan/internal/service"
	"github.com/Dan9191/microloan/internal/utils/email"
	_ "github.com/lib/pq"
	"github.com/sirupsen/logrus"
)

func main() {
	// Initialize logger
	logger := logrus.New()
	logger.SetFormatter(&logrus.JSONFormatter{})

	// Load configuration
	cfg, err := config.NewConfig()
	if err != nil {
		logger.Fatalf("Failed to load config: %v", err)
	}
	logLevel, err := logrus.ParseLevel(cfg.LogLevel)
	if err != nil {
		logLevel = logrus.InfoLevel
	}
	logger.SetLevel(logLevel)

	// Initialize store
	store, err := openStore(cfg, logger)
	if err != nil {
		logger.Fatalf("Failed to initialize store: %v", err)
	}
	defer store.Close()

	if err := seedBalances(store, cfg, logger); err != nil {
		logger.Fatalf("Failed to seed balances: %v", err)
	}

	// Initialize layers
	svc := service.NewService(store, logger, cfg)
	h, err := handler.NewHandler(svc, logger)
	if err != nil {
		logger.Fatalf("Failed to initialize handler: %v", err)
	}

	// Repayment digest
	var mailer scheduler.DigestMailer
	if cfg.DigestEnabled() {
		mailer = email.NewSender(cfg, logger)
	}
	digest := scheduler.NewDigestJob(svc, mailer, cfg.DigestRecipient, logger)
	runner, err := scheduler.Start(cfg.DigestSchedule, digest, logger)
	if err != nil {
		logger.Fatalf("Failed to schedule repayment digest: %v", err)
	}
	defer func() { <-runner.Stop().Done() }()

	// Start server
	addr := fmt.Sprintf(":%s", cfg.Port)
	server := &http.Server{
		Addr:         addr,
		Handler:      h.Routes(middleware.AuthMiddleware(cfg)),
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 10 * time.Second,
	}

	go func() {
		logger.Infof("Starting server on %s", addr)
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Fatalf("Server failed: %v", err)
		}
	}()

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)
	<-stop

	logger.Info("Shutting down")
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := server.Shutdown(ctx); err != nil {
		logger.Errorf("Graceful shutdown failed: %v", err)
	}
}

// openStore connects the configured store driver
func openStore(cfg *config.Config, logger *logrus.Logger) (repository.Store, error) {
	if cfg.StoreDriver == config.DriverMemory {
		logger.Warn("Using in-memory store, state is lost on restart")
		return repository.NewMemoryStore(), nil
	}

	db, err := sql.Open("postgres", cfg.DBConn)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}
	db.SetMaxOpenConns(10)
	db.SetMaxIdleConns(10)
	db.SetConnMaxLifetime(5 * time.Minute)

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	store := repository.NewPostgresStore(db)
	if err := store.Migrate(ctx); err != nil {
		db.Close()
		return nil, err
	}
	return store, nil
}

// seedBalances mints SEED_BALANCES into the store
func seedBalances(store repository.Store, cfg *config.Config, logger *logrus.Logger) error {
	if len(cfg.SeedBalances) == 0 {
		return nil
	}
	minter, ok := store.(repository.Minter)
	if !ok {
		return fmt.Errorf("store driver %q cannot mint balances", cfg.StoreDriver)
	}
	for account, amount := range cfg.SeedBalances {
		if err := minter.Mint(context.Background(), account, amount); err != nil {
			return fmt.Errorf("mint %d to %s: %w", amount, account, err)
		}
		logger.WithFields(logrus.Fields{"account": account, "amount": amount}).Info("Balance seeded")
	}
	return nil
}
