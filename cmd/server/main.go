package main

import (
	"context"
	"io"
	"log"
	"os"
	"os/signal"
	"syscall"

	"go.opentelemetry.io/otel"

	"newsletter-go/internal/app"
	"newsletter-go/internal/config"
	"newsletter-go/internal/database"
	"newsletter-go/internal/logging"
	"newsletter-go/internal/repository"
	"newsletter-go/internal/telemetry"
)

func main() {
	if err := config.LoadDotEnv(".env", "../.env"); err != nil {
		log.Fatalf("Failed to load .env: %v", err)
	}
	cfg := config.Load()

	logger := logging.NewLogger(cfg.LogLevel)
	if err := cfg.Validate(); err != nil {
		logger.WithError(err).Fatal("Invalid configuration")
	}

	var traceOut io.Writer
	if cfg.TracingEnabled {
		traceOut = os.Stdout
	}
	tp, err := telemetry.InitTracing(cfg.ServiceName, cfg.ServiceVersion, traceOut)
	if err != nil {
		logger.WithError(err).Fatal("Failed to initialize tracing")
	}
	defer func() {
		if err := telemetry.ShutdownTracing(context.Background(), tp); err != nil {
			logger.WithError(err).Error("Error shutting down tracer provider")
		}
	}()

	dbOpts := database.Options{
		ForceIPv4:       cfg.Database.ForceIPv4,
		MaxOpenConns:    cfg.Database.MaxOpenConns,
		MaxIdleConns:    cfg.Database.MaxIdleConns,
		ConnMaxLifetime: cfg.Database.ConnMaxLifetime,
		ConnectTimeout:  cfg.Database.ConnectTimeout,
	}

	ctx := context.Background()
	if cfg.Database.MigrateOnStart {
		if err := database.Migrate(ctx, cfg.Database.URL, dbOpts, logger); err != nil {
			logger.WithError(err).Fatal("Failed to apply migrations")
		}
	}

	db, err := database.Open(ctx, cfg.Database.URL, dbOpts)
	if err != nil {
		logger.WithError(err).Fatal("Failed to connect to database")
	}

	application := app.Build(&app.Config{
		ServiceName:    cfg.ServiceName,
		ServiceVersion: cfg.ServiceVersion,
		GitSHA:         cfg.GitSHA,
		Port:           cfg.Port,
		Logger:         logger,
		TracerProvider: otel.GetTracerProvider(),
		GinMode:        cfg.GinMode,
		AllowedOrigins: cfg.AllowedOrigins,
		TrustedProxies: cfg.TrustedProxies,
		BodyLimit:      cfg.BodyLimit,
		RateLimit:      cfg.RateLimit,
		Repository:     repository.NewPostgresSubscriberRepository(db, cfg.Database.QueryTimeout),
	})

	go func() {
		if err := application.Run(); err != nil {
			logger.WithError(err).Fatal("Failed to start server")
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	sig := <-quit
	logger.WithField("signal", sig.String()).Info("Shutdown signal received")

	// no deadline: in-flight requests are allowed to finish
	if err := application.Shutdown(context.Background()); err != nil {
		logger.WithError(err).Error("Server shutdown failed")
	}

	if err := db.Close(); err != nil {
		logger.WithError(err).Error("Failed to close database pool")
	}

	logger.Info("Server exited")
}
