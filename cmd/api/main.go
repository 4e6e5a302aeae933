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

	"github.com/Dan9191/vesting-service/internal/config"
	"github.com/Dan9191/vesting-service/internal/handler"
	"github.com/Dan9191/vesting-service/internal/jobs"
	"github.com/Dan9191/vesting-service/internal/repository"
	"github.com/Dan9191/vesting-service/internal/service"
	"github.com/Dan9191/vesting-service/internal/utils/email"
	_ "github.com/lib/pq"
	"github.com/sirupsen/logrus"
)

func main() {
	// Initialize logger
	logger := logrus.New()
	logger.SetFormatter(&logrus.JSONFormatter{})
	logLevel, err := logrus.ParseLevel(os.Getenv("LOG_LEVEL"))
	if err != nil {
		logLevel = logrus.InfoLevel
	}
	logger.SetLevel(logLevel)

	// Load configuration
	cfg, err := config.NewConfig()
	if err != nil {
		logger.Fatalf("Failed to load config: %v", err)
	}

	// Initialize database
	db, err := sql.Open("postgres", cfg.DBConn)
	if err != nil {
		logger.Fatalf("Failed to connect to database: %v", err)
	}
	defer db.Close()
	if err := db.Ping(); err != nil {
		logger.Fatalf("Failed to ping database: %v", err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// Initialize layers
	repo := repository.NewRepository(db)
	sender := email.NewSender(cfg, logger)
	svc := service.NewService(repo, repo.TokenLedger(cfg.Vesting.Token), logger, cfg, sender)
	if err := svc.Bootstrap(ctx); err != nil {
		logger.Fatalf("Failed to load vesting schedule: %v", err)
	}
	h := handler.NewHandler(svc, logger)

	// Auto-release
	if cfg.ReleaseCron != "" {
		job, err := jobs.NewReleaseJob(svc, logger, cfg.ReleaseCron)
		if err != nil {
			logger.Fatalf("Failed to schedule releases: %v", err)
		}
		job.Start()
		defer job.Stop()
		logger.Infof("Automatic release scheduled: %s", cfg.ReleaseCron)
	}

	// Start server
	addr := fmt.Sprintf(":%s", cfg.Port)
	server := &http.Server{
		Addr:         addr,
		Handler:      handler.NewRouter(h, cfg),
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 10 * time.Second,
	}
	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		server.Shutdown(shutdownCtx)
	}()

	logger.Infof("Starting server on %s", addr)
	if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		logger.Fatalf("Server failed: %v", err)
	}
	logger.Info("Server stopped")
}
