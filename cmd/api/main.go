package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/melsimpson1023/project-2-gemstone/internal/app/migrate"
	"github.com/melsimpson1023/project-2-gemstone/internal/app/store"
	httpx "github.com/melsimpson1023/project-2-gemstone/internal/http"
	"github.com/melsimpson1023/project-2-gemstone/internal/service/auth"
	"github.com/melsimpson1023/project-2-gemstone/internal/service/gemstone"
	"github.com/melsimpson1023/project-2-gemstone/internal/ws"
	"github.com/melsimpson1023/project-2-gemstone/pkg/config"
	"github.com/melsimpson1023/project-2-gemstone/pkg/logger"
)

func main() {
	if err := config.LoadDotEnv(); err != nil {
		slog.Error("failed to load .env", "error", err)
		os.Exit(1)
	}
	cfg := config.LoadAPIConfig()
	log := logger.New("api", cfg.LogLevel)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if cfg.AutoMigrate && cfg.StoreDriver != config.StoreDriverMemory {
		runner, err := migrate.New(cfg.StoreDriver, cfg.DSN(), cfg.MigrationsDir, log)
		if err != nil {
			log.Error("failed to configure migrations", "error", err)
			os.Exit(1)
		}
		if err := runner.Ensure(ctx); err != nil {
			log.Error("migrations failed", "error", err, "dir", runner.Dir())
			os.Exit(1)
		}
	}

	repo, err := store.Open(ctx, cfg)
	if err != nil {
		log.Error("failed to open store", "driver", cfg.StoreDriver, "error", err)
		os.Exit(1)
	}
	defer repo.Close()
	log.Info("store ready", "driver", cfg.StoreDriver, "env", cfg.Environment)

	hub := ws.NewHub()
	defer hub.Stop()

	authSvc := auth.New(repo, log)
	gemSvc := gemstone.New(repo, ws.NewFeed(hub, log), log)

	limiter := httpx.NewMemoryRateLimiter()
	if addr := strings.TrimSpace(cfg.RateLimitRedisAddr); addr != "" {
		redisLimiter, err := httpx.NewRedisRateLimiter(addr, cfg.RateLimitRedisPass, cfg.RateLimitRedisDB, log)
		if err != nil {
			log.Warn("redis rate limiter unavailable", "error", err)
		} else {
			limiter.Close()
			limiter = redisLimiter
		}
	}

	router := httpx.NewRouter(log, authSvc, gemSvc, hub, limiter, repo.Ping, cfg.EventHeartbeat)
	defer router.Close()

	srv := &http.Server{
		Addr:              cfg.Addr,
		Handler:           router,
		ReadHeaderTimeout: 5 * time.Second,
	}

	errorCh := make(chan error, 1)
	go func() {
		log.Info("api server starting", "addr", cfg.Addr)
		errorCh <- srv.ListenAndServe()
	}()

	select {
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		// Streams only end when their clients go away; stop the hub first.
		hub.Stop()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			log.Error("graceful shutdown failed", "error", err)
		}
		log.Info("api server stopped")
	case err := <-errorCh:
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Error("server error", "error", err)
			os.Exit(1)
		}
	}
}
