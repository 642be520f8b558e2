package repository

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"GapWatchAPI/internal/models"
)

// IMonitorRepository persists monitor definitions.
type IMonitorRepository interface {
	Create(ctx context.Context, m *models.Monitor) error
	Update(ctx context.Context, m *models.Monitor) error
	GetByID(ctx context.Context, id string) (*models.Monitor, error)
	List(ctx context.Context) ([]*models.Monitor, error)
	ListEnabled(ctx context.Context) ([]*models.Monitor, error)
	Delete(ctx context.Context, id string) error
}

type MonitorRepository struct {
	db *sql.DB
}

func NewMonitorRepository(db *sql.DB) *MonitorRepository {
	return &MonitorRepository{db: db}
}

const monitorColumns = `id, name, description, source_kind, source_topic, config, enabled, created_at, updated_at`

func (r *MonitorRepository) Create(ctx context.Context, m *models.Monitor) error {
	cfgJSON, err := json.Marshal(m.Config)
	if err != nil {
		return fmt.Errorf("failed to encode monitor config: %w", err)
	}

	query := `
		INSERT INTO monitors (
			id, name, description, source_kind, source_topic, config, enabled
		) VALUES ($1, $2, $3, $4, $5, $6, $7)
		RETURNING created_at, updated_at
	`

	err = r.db.QueryRowContext(
		ctx, query,
		m.ID,
		m.Name,
		m.Description,
		m.SourceKind,
		m.SourceTopic,
		cfgJSON,
		m.Enabled,
	).Scan(&m.CreatedAt, &m.UpdatedAt)

	if err != nil {
		if isUniqueViolation(err) {
			return fmt.Errorf("monitor %s (%s): %w", m.ID, m.Name, ErrConflict)
		}
		return fmt.Errorf("failed to create monitor: %w", err)
	}

	return nil
}

func (r *MonitorRepository) Update(ctx context.Context, m *models.Monitor) error {
	cfgJSON, err := json.Marshal(m.Config)
	if err != nil {
		return fmt.Errorf("failed to encode monitor config: %w", err)
	}

	query := `
		UPDATE monitors
		SET name = $2, description = $3, source_kind = $4, source_topic = $5,
		    config = $6, enabled = $7, updated_at = $8
		WHERE id = $1
		RETURNING updated_at
	`

	err = r.db.QueryRowContext(
		ctx, query,
		m.ID,
		m.Name,
		m.Description,
		m.SourceKind,
		m.SourceTopic,
		cfgJSON,
		m.Enabled,
		time.Now(),
	).Scan(&m.UpdatedAt)

	if errors.Is(err, sql.ErrNoRows) {
		return fmt.Errorf("monitor %s: %w", m.ID, ErrNotFound)
	}
	if err != nil {
		if isUniqueViolation(err) {
			return fmt.Errorf("monitor name %s: %w", m.Name, ErrConflict)
		}
		return fmt.Errorf("failed to update monitor: %w", err)
	}

	return nil
}

func (r *MonitorRepository) GetByID(ctx context.Context, id string) (*models.Monitor, error) {
	query := `SELECT ` + monitorColumns + ` FROM monitors WHERE id = $1`

	m, err := scanMonitor(r.db.QueryRowContext(ctx, query, id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("monitor %s: %w", id, ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get monitor: %w", err)
	}

	return m, nil
}

func (r *MonitorRepository) List(ctx context.Context) ([]*models.Monitor, error) {
	return r.list(ctx, `SELECT `+monitorColumns+` FROM monitors ORDER BY name`)
}

func (r *MonitorRepository) ListEnabled(ctx context.Context) ([]*models.Monitor, error) {
	return r.list(ctx, `SELECT `+monitorColumns+` FROM monitors WHERE enabled = TRUE ORDER BY name`)
}

func (r *MonitorRepository) list(ctx context.Context, query string, args ...interface{}) ([]*models.Monitor, error) {
	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list monitors: %w", err)
	}
	defer rows.Close()

	var monitors []*models.Monitor
	for rows.Next() {
		m, err := scanMonitor(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan monitor: %w", err)
		}
		monitors = append(monitors, m)
	}

	return monitors, rows.Err()
}

func (r *MonitorRepository) Delete(ctx context.Context, id string) error {
	result, err := r.db.ExecContext(ctx, `DELETE FROM monitors WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("failed to delete monitor: %w", err)
	}

	n, err := result.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return fmt.Errorf("monitor %s: %w", id, ErrNotFound)
	}

	return nil
}

type rowScanner interface {
	Scan(dest ...interface{}) error
}

func scanMonitor(row rowScanner) (*models.Monitor, error) {
	var m models.Monitor
	var cfgJSON []byte

	err := row.Scan(
		&m.ID,
		&m.Name,
		&m.Description,
		&m.SourceKind,
		&m.SourceTopic,
		&cfgJSON,
		&m.Enabled,
		&m.CreatedAt,
		&m.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}

	if err := json.Unmarshal(cfgJSON, &m.Config); err != nil {
		return nil, fmt.Errorf("monitor %s has unreadable config: %w", m.ID, err)
	}

	return &m, nil
}
