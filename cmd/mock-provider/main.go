package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	env "github.com/caarlos0/env/v11"

	"github.com/josh-kwaku/crowdfund-payments/internal/logging"
	"github.com/josh-kwaku/crowdfund-payments/internal/mockgateway"
)

type config struct {
	Port          int    `env:"MOCK_PORT" envDefault:"8081"`
	PublicURL     string `env:"MOCK_PUBLIC_URL" envDefault:"http://localhost:8081"`
	CallbackURL   string `env:"MOCK_CALLBACK_URL" envDefault:"http://localhost:8080"`
	CallbackToken string `env:"WEBHOOK_CALLBACK_TOKEN,required"`
	LogLevel      string `env:"LOG_LEVEL" envDefault:"info"`
	AppEnv        string `env:"APP_ENV" envDefault:"development"`
}

func main() {
	cfg, err := env.ParseAs[config]()
	if err != nil {
		slog.Error("invalid configuration", "error", err)
		os.Exit(1)
	}
	logger := logging.Init("mock-provider", cfg.LogLevel, cfg.AppEnv)

	srv := &http.Server{
		Addr: fmt.Sprintf(":%d", cfg.Port),
		Handler: mockgateway.New(mockgateway.Config{
			PublicURL:     cfg.PublicURL,
			CallbackURL:   cfg.CallbackURL,
			CallbackToken: cfg.CallbackToken,
		}).Routes(),
		ReadHeaderTimeout: 5 * time.Second,
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = srv.Shutdown(shutdownCtx)
	}()

	logger.Info("mock provider started", "addr", srv.Addr, "callback_url", cfg.CallbackURL)
	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		logger.Error("server error", "error", err)
		os.Exit(1)
	}
}
