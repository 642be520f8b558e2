package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"GapWatchAPI/internal/models"
)

// IAlertRepository defines the operations for managing gap alerts.
type IAlertRepository interface {
	Create(ctx context.Context, alert *models.Alert) error
	GetByID(ctx context.Context, id string) (*models.Alert, error)
	FindActive(ctx context.Context, monitorID string, gapStartedAt int64) (*models.Alert, error)
	ResolveOpen(ctx context.Context, monitorID string, at time.Time) ([]models.Alert, error)
	ListByMonitor(ctx context.Context, monitorID string, limit int) ([]models.Alert, error)
	History(ctx context.Context, limit int, offset int) ([]models.Alert, error)
	DeleteOld(ctx context.Context, olderThan time.Duration) (int64, error)
}

type AlertRepository struct {
	db *sql.DB
}

func NewAlertRepository(db *sql.DB) *AlertRepository {
	return &AlertRepository{db: db}
}

const alertColumns = `id, monitor_id, message, gap_started_at, status, created_at, resolved_at`

// Create inserts a new alert record. ID and CreatedAt must already be set.
func (r *AlertRepository) Create(ctx context.Context, alert *models.Alert) error {
	query := `
		INSERT INTO gap_alerts (` + alertColumns + `)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
	`

	if alert.Status == "" {
		alert.Status = models.StatusActive
	}

	_, err := r.db.ExecContext(
		ctx, query,
		alert.ID,
		alert.MonitorID,
		alert.Message,
		alert.GapStartedAt,
		alert.Status,
		alert.CreatedAt,
		alert.ResolvedAt,
	)
	if err != nil {
		if isUniqueViolation(err) {
			return fmt.Errorf("alert %s: %w", alert.ID, ErrConflict)
		}
		return fmt.Errorf("failed to create alert: %w", err)
	}

	return nil
}

func (r *AlertRepository) GetByID(ctx context.Context, id string) (*models.Alert, error) {
	query := `SELECT ` + alertColumns + ` FROM gap_alerts WHERE id = $1`

	a, err := scanAlert(r.db.QueryRowContext(ctx, query, id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("alert %s: %w", id, ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get alert by id: %w", err)
	}

	return a, nil
}

// FindActive returns the unresolved alert raised for one gap of a monitor.
func (r *AlertRepository) FindActive(ctx context.Context, monitorID string, gapStartedAt int64) (*models.Alert, error) {
	query := `
		SELECT ` + alertColumns + `
		FROM gap_alerts
		WHERE monitor_id = $1 AND gap_started_at = $2 AND status = $3
		ORDER BY created_at
		LIMIT 1
	`

	a, err := scanAlert(r.db.QueryRowContext(ctx, query, monitorID, gapStartedAt, models.StatusActive))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("active alert for %s at %d: %w", monitorID, gapStartedAt, ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to find active alert: %w", err)
	}

	return a, nil
}

// ResolveOpen marks every active alert of a monitor resolved and returns them.
func (r *AlertRepository) ResolveOpen(ctx context.Context, monitorID string, at time.Time) ([]models.Alert, error) {
	query := `
		UPDATE gap_alerts
		SET status = $1, resolved_at = $2
		WHERE monitor_id = $3 AND status = $4
		RETURNING ` + alertColumns

	return r.query(ctx, query, models.StatusResolved, at, monitorID, models.StatusActive)
}

func (r *AlertRepository) ListByMonitor(ctx context.Context, monitorID string, limit int) ([]models.Alert, error) {
	query := `
		SELECT ` + alertColumns + `
		FROM gap_alerts
		WHERE monitor_id = $1
		ORDER BY created_at DESC
		LIMIT $2
	`
	return r.query(ctx, query, monitorID, limit)
}

// History returns a paginated list of all alerts, newest first.
func (r *AlertRepository) History(ctx context.Context, limit int, offset int) ([]models.Alert, error) {
	query := `
		SELECT ` + alertColumns + `
		FROM gap_alerts
		ORDER BY created_at DESC
		LIMIT $1 OFFSET $2
	`
	return r.query(ctx, query, limit, offset)
}

// DeleteOld removes resolved alerts older than the specified duration.
func (r *AlertRepository) DeleteOld(ctx context.Context, olderThan time.Duration) (int64, error) {
	query := `DELETE FROM gap_alerts WHERE status = $1 AND resolved_at < $2`
	cutoff := time.Now().Add(-olderThan)
	result, err := r.db.ExecContext(ctx, query, models.StatusResolved, cutoff)
	if err != nil {
		return 0, err
	}
	return result.RowsAffected()
}

func (r *AlertRepository) query(ctx context.Context, query string, args ...interface{}) ([]models.Alert, error) {
	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query alerts: %w", err)
	}
	defer rows.Close()

	alerts := []models.Alert{}
	for rows.Next() {
		a, err := scanAlert(rows)
		if err != nil {
			return nil, err
		}
		alerts = append(alerts, *a)
	}
	return alerts, rows.Err()
}

func scanAlert(row rowScanner) (*models.Alert, error) {
	var a models.Alert
	var resolvedAt sql.NullTime

	err := row.Scan(
		&a.ID,
		&a.MonitorID,
		&a.Message,
		&a.GapStartedAt,
		&a.Status,
		&a.CreatedAt,
		&resolvedAt,
	)
	if err != nil {
		return nil, err
	}
	if resolvedAt.Valid {
		t := resolvedAt.Time
		a.ResolvedAt = &t
	}
	return &a, nil
}
