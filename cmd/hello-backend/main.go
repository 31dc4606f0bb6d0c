package main

import (
	"context"
	"errors"
	"io/fs"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"
	"golang.org/x/time/rate"

	"github.com/projecthelena/hello-backend/internal/api"
	"github.com/projecthelena/hello-backend/internal/config"
	"github.com/projecthelena/hello-backend/internal/logging"
	"github.com/projecthelena/hello-backend/internal/metrics"
	"github.com/projecthelena/hello-backend/internal/server"
)

func main() {
	logger := logging.New("hello-backend")
	errLogger := logging.NewWriter("hello-backend", os.Stderr)

	// Variables already in the environment take precedence over .env.
	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		errLogger.Fatalf("load .env: %v", err)
	}

	cfg, err := config.Load()
	if err != nil {
		errLogger.Fatalf("load config: %v", err)
	}
	for _, w := range cfg.Warnings {
		logger.Printf("config: %s", w)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	deps := api.Deps{Logger: logger}

	var metricsHandler http.Handler
	if cfg.MetricsAddr != "" {
		ms := metrics.NewService()
		deps.Metrics = ms
		metricsHandler = api.NewOpsRouter(ms)
	}

	if cfg.RateLimitEnabled() {
		deps.Limiter = api.NewIPRateLimiter(ctx, rate.Limit(cfg.RateLimitRPS), cfg.RateLimitBurst)
	}

	srv := server.New(cfg, api.NewRouter(cfg, deps), metricsHandler, logger)
	if err := srv.Run(ctx); err != nil {
		stop()
		errLogger.Fatalf("server: %v", err)
	}

	logger.Println("Server exiting")
}
