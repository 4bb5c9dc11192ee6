package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"newsletter-go/internal/config"
	"newsletter-go/internal/logging"
	"newsletter-go/internal/web"
)

func main() {
	if err := config.LoadDotEnv(".env", "../.env"); err != nil {
		log.Fatalf("Failed to load .env: %v", err)
	}
	cfg := config.LoadWeb()
	logger := logging.NewLogger(cfg.LogLevel)

	server, err := web.NewServer(&web.Config{
		Port:      cfg.Port,
		GinMode:   cfg.GinMode,
		BodyLimit: cfg.BodyLimit,
		Logger:    logger,
		Client:    web.NewClient(cfg.APIBase, cfg.APITimeout),
	})
	if err != nil {
		logger.WithError(err).Fatal("Failed to build web client")
	}
	logger.WithField("api_base", cfg.APIBase).Info("Web client configured")

	go func() {
		if err := server.Run(); err != nil {
			logger.WithError(err).Fatal("Failed to start web client")
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := server.Shutdown(ctx); err != nil {
		logger.WithError(err).Error("Web client shutdown failed")
	}
	logger.Info("Web client exited")
}
