package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"GapWatchAPI/internal/gap"
	"GapWatchAPI/internal/logger"
	"GapWatchAPI/internal/metrics"
	"GapWatchAPI/internal/models"
	"GapWatchAPI/internal/repository"
	"GapWatchAPI/internal/sink"
	"GapWatchAPI/internal/websocket"

	"github.com/google/uuid"
)

// IAlertService defines the business logic for handling gap alerts.
type IAlertService interface {
	Dispatch(ctx context.Context, m *models.Monitor, a *gap.Alert, at time.Time) (*models.Alert, error)
	ResolveGap(ctx context.Context, m *models.Monitor, at time.Time) error
	GetAlert(ctx context.Context, id string) (*models.Alert, error)
	GetMonitorAlerts(ctx context.Context, monitorID string, limit int) ([]models.Alert, error)
	GetAlertHistory(ctx context.Context, limit, offset int) ([]models.Alert, error)
}

// Broadcaster is satisfied by *websocket.Hub.
type Broadcaster interface {
	Broadcast(msgType string, payload interface{}) bool
}

type AlertService struct {
	repo  repository.IAlertRepository
	hub   Broadcaster
	sinks []sink.Sink
	log   *logger.Logger
	newID func() string
}

func NewAlertService(repo repository.IAlertRepository, hub Broadcaster, sinks []sink.Sink, log *logger.Logger) *AlertService {
	return &AlertService{
		repo:  repo,
		hub:   hub,
		sinks: sinks,
		log:   log.With("alerts"),
		newID: uuid.NewString,
	}
}

// Dispatch persists a freshly raised alert and then notifies websocket
// clients and sinks. Only the persist step can fail the call; notification
// failures are logged and counted.
//
// An alert is recorded once per gap. If the monitor already has an active
// alert for the same gap start, because the state save after an earlier
// dispatch failed, that record is returned and nobody is notified again.
func (s *AlertService) Dispatch(ctx context.Context, m *models.Monitor, a *gap.Alert, at time.Time) (*models.Alert, error) {
	if existing, err := s.findActive(ctx, m.ID, a.GapStartedAt); err != nil || existing != nil {
		return existing, err
	}

	record := models.NewAlert(s.newID(), m.ID, a, at)

	if err := s.repo.Create(ctx, record); err != nil {
		if errors.Is(err, repository.ErrConflict) {
			if existing, ferr := s.findActive(ctx, m.ID, a.GapStartedAt); ferr == nil && existing != nil {
				return existing, nil
			}
		}
		return nil, fmt.Errorf("failed to persist alert history: %w", err)
	}

	metrics.AlertsRaised.Inc()
	s.log.Warn("Monitor %s (%s): %s [quiet since %d]", m.Name, m.ID, a.Message, a.GapStartedAt)

	s.notify(ctx, websocket.EventGapAlert, record.Event(m.Name))
	return record, nil
}

func (s *AlertService) findActive(ctx context.Context, monitorID string, gapStartedAt int64) (*models.Alert, error) {
	existing, err := s.repo.FindActive(ctx, monitorID, gapStartedAt)
	switch {
	case errors.Is(err, repository.ErrNotFound):
		return nil, nil
	case err != nil:
		return nil, fmt.Errorf("failed to look up open alert: %w", err)
	}
	s.log.Warn("Monitor %s already has alert %s for the gap since %d, not notifying again", monitorID, existing.ID, gapStartedAt)
	return existing, nil
}

// ResolveGap closes every open alert of the monitor once data flows again.
func (s *AlertService) ResolveGap(ctx context.Context, m *models.Monitor, at time.Time) error {
	resolved, err := s.repo.ResolveOpen(ctx, m.ID, at)
	if err != nil {
		return fmt.Errorf("failed to resolve alerts for %s: %w", m.ID, err)
	}

	for i := range resolved {
		metrics.AlertsResolved.Inc()
		s.log.Info("Monitor %s (%s) receiving data again, alert %s resolved", m.Name, m.ID, resolved[i].ID)
		s.notify(ctx, websocket.EventGapResolved, resolved[i].Event(m.Name))
	}
	return nil
}

func (s *AlertService) GetAlert(ctx context.Context, id string) (*models.Alert, error) {
	return s.repo.GetByID(ctx, id)
}

func (s *AlertService) GetMonitorAlerts(ctx context.Context, monitorID string, limit int) ([]models.Alert, error) {
	return s.repo.ListByMonitor(ctx, monitorID, limit)
}

// GetAlertHistory provides the full audit trail for reporting.
func (s *AlertService) GetAlertHistory(ctx context.Context, limit, offset int) ([]models.Alert, error) {
	return s.repo.History(ctx, limit, offset)
}

// CleanUpTask removes resolved alerts older than retention.
func (s *AlertService) CleanUpTask(ctx context.Context, retention time.Duration) {
	count, err := s.repo.DeleteOld(ctx, retention)
	if err != nil {
		s.log.Error("Alert cleanup failed: %v", err)
		return
	}
	if count > 0 {
		s.log.Info("Removed %d old resolved alerts from history", count)
	}
}

func (s *AlertService) notify(ctx context.Context, eventType string, ev models.AlertEvent) {
	if s.hub != nil {
		s.hub.Broadcast(eventType, ev)
	}

	for _, sk := range s.sinks {
		if err := sk.Publish(ctx, ev); err != nil {
			metrics.SinkPublishTotal.WithLabelValues(sk.Name(), "failure").Inc()
			s.log.Error("Sink %s failed for alert %s: %v", sk.Name(), ev.AlertID, err)
			continue
		}
		metrics.SinkPublishTotal.WithLabelValues(sk.Name(), "success").Inc()
	}
}
