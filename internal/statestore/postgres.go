package statestore

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"

	"GapWatchAPI/internal/gap"
)

// PostgresStore keeps state as JSONB rows in monitor_state.
type PostgresStore struct {
	db *sql.DB
}

func NewPostgresStore(db *sql.DB) *PostgresStore {
	return &PostgresStore{db: db}
}

func (s *PostgresStore) Load(ctx context.Context, monitorID string) (gap.State, error) {
	var raw []byte
	err := s.db.QueryRowContext(ctx,
		`SELECT state FROM monitor_state WHERE monitor_id = $1`, monitorID,
	).Scan(&raw)

	if errors.Is(err, sql.ErrNoRows) {
		return gap.State{}, nil
	}
	if err != nil {
		return gap.State{}, fmt.Errorf("failed to load state for %s: %w", monitorID, err)
	}

	return decodeState(monitorID, raw)
}

func (s *PostgresStore) Save(ctx context.Context, monitorID string, st gap.State) error {
	raw, err := json.Marshal(st)
	if err != nil {
		return fmt.Errorf("failed to encode state: %w", err)
	}

	query := `
		INSERT INTO monitor_state (monitor_id, state, updated_at)
		VALUES ($1, $2, NOW())
		ON CONFLICT (monitor_id)
		DO UPDATE SET state = EXCLUDED.state, updated_at = EXCLUDED.updated_at
	`
	if _, err := s.db.ExecContext(ctx, query, monitorID, raw); err != nil {
		return fmt.Errorf("failed to save state for %s: %w", monitorID, err)
	}
	return nil
}

func (s *PostgresStore) Delete(ctx context.Context, monitorID string) error {
	if _, err := s.db.ExecContext(ctx, `DELETE FROM monitor_state WHERE monitor_id = $1`, monitorID); err != nil {
		return fmt.Errorf("failed to delete state for %s: %w", monitorID, err)
	}
	return nil
}

func (s *PostgresStore) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

// Close is a no-op; the pool belongs to database.Database.
func (s *PostgresStore) Close() error { return nil }

func decodeState(monitorID string, raw []byte) (gap.State, error) {
	var st gap.State
	if err := json.Unmarshal(raw, &st); err != nil {
		return gap.State{}, fmt.Errorf("corrupt state for %s: %w", monitorID, err)
	}
	return st, nil
}
