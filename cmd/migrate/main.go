package main

import (
	"context"
	"flag"
	"log/slog"
	"os"
	"time"

	"github.com/melsimpson1023/project-2-gemstone/internal/app/migrate"
	"github.com/melsimpson1023/project-2-gemstone/pkg/config"
	"github.com/melsimpson1023/project-2-gemstone/pkg/logger"
)

func main() {
	command := flag.String("command", "up", "migrate command (up|status|down)")
	timeout := flag.Duration("timeout", time.Minute, "command timeout")
	target := flag.Int64("target", 0, "target version for down command (optional)")
	driver := flag.String("driver", "", "store driver override (postgres|mysql)")
	flag.Parse()

	if err := config.LoadDotEnv(); err != nil {
		slog.Error("failed to load .env", "error", err)
		os.Exit(1)
	}
	cfg := config.LoadAPIConfig()
	if *driver != "" {
		cfg.StoreDriver = *driver
	}
	log := logger.New("migrate", cfg.LogLevel)

	ctx, cancel := context.WithTimeout(context.Background(), *timeout)
	defer cancel()

	runner, err := migrate.New(cfg.StoreDriver, cfg.DSN(), cfg.MigrationsDir, log)
	if err != nil {
		log.Error("failed to configure migration runner", "driver", cfg.StoreDriver, "error", err)
		os.Exit(1)
	}

	switch *command {
	case "up":
		if err := runner.Ensure(ctx); err != nil {
			log.Error("failed to apply migrations", "error", err)
			os.Exit(1)
		}
	case "status":
		if err := runner.Status(ctx); err != nil {
			log.Error("failed to fetch migration status", "error", err)
			os.Exit(1)
		}
	case "down":
		if err := runner.Down(ctx, *target); err != nil {
			log.Error("failed to roll back migrations", "error", err)
			os.Exit(1)
		}
	default:
		log.Error("unsupported command", "command", *command)
		os.Exit(1)
	}

	log.Info("migration command completed", "command", *command, "driver", cfg.StoreDriver, "dir", runner.Dir())
}
