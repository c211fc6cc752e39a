// Package store opens the repository backend selected by configuration.
package store

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/melsimpson1023/project-2-gemstone/internal/repository"
	"github.com/melsimpson1023/project-2-gemstone/internal/repository/memory"
	"github.com/melsimpson1023/project-2-gemstone/internal/repository/mysql"
	"github.com/melsimpson1023/project-2-gemstone/internal/repository/postgres"
	"github.com/melsimpson1023/project-2-gemstone/pkg/config"
)

const connectTimeout = 10 * time.Second

// Open connects to the configured backend and verifies it is reachable.
func Open(ctx context.Context, cfg config.APIConfig) (repository.Store, error) {
	ctx, cancel := context.WithTimeout(ctx, connectTimeout)
	defer cancel()

	switch cfg.StoreDriver {
	case config.StoreDriverPostgres:
		pool, err := pgxpool.New(ctx, cfg.DatabaseURL)
		if err != nil {
			return nil, fmt.Errorf("connect postgres: %w", err)
		}
		if err := pool.Ping(ctx); err != nil {
			pool.Close()
			return nil, fmt.Errorf("ping postgres: %w", err)
		}
		return postgres.New(pool), nil
	case config.StoreDriverMySQL:
		repo, err := mysql.Open(ctx, cfg.MySQLDSN)
		if err != nil {
			return nil, fmt.Errorf("connect mysql: %w", err)
		}
		return repo, nil
	case config.StoreDriverMemory:
		return memory.New(), nil
	default:
		return nil, fmt.Errorf("unknown store driver %q", cfg.StoreDriver)
	}
}
