// Package statestore persists the per-monitor gap state between restarts.
package statestore

import (
	"context"
	"database/sql"
	"fmt"

	"GapWatchAPI/internal/config"
	"GapWatchAPI/internal/gap"
)

// Store holds one gap.State per monitor. Load of an unknown monitor returns
// the zero State and no error.
type Store interface {
	Load(ctx context.Context, monitorID string) (gap.State, error)
	Save(ctx context.Context, monitorID string, st gap.State) error
	Delete(ctx context.Context, monitorID string) error
	Ping(ctx context.Context) error
	Close() error
}

// Open returns the backend selected by cfg.State.Backend. db is only used by
// the postgres backend.
func Open(ctx context.Context, cfg *config.Config, db *sql.DB) (Store, error) {
	switch cfg.State.Backend {
	case config.StateBackendPostgres:
		if db == nil {
			return nil, fmt.Errorf("postgres state backend needs a database connection")
		}
		return NewPostgresStore(db), nil
	case config.StateBackendRedis:
		return NewRedisStore(ctx, cfg.Redis)
	case config.StateBackendMemory:
		return NewMemoryStore(), nil
	default:
		return nil, fmt.Errorf("unknown state backend %q", cfg.State.Backend)
	}
}
