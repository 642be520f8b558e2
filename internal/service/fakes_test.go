package service

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"
	"time"

	"GapWatchAPI/internal/models"
	"GapWatchAPI/internal/repository"
)

type fakeMonitorRepo struct {
	mu       sync.Mutex
	monitors map[string]models.Monitor
}

func newFakeMonitorRepo() *fakeMonitorRepo {
	return &fakeMonitorRepo{monitors: map[string]models.Monitor{}}
}

func (r *fakeMonitorRepo) Create(_ context.Context, m *models.Monitor) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.monitors[m.ID]; ok {
		return fmt.Errorf("monitor %s: %w", m.ID, repository.ErrConflict)
	}
	m.CreatedAt = time.Now()
	m.UpdatedAt = m.CreatedAt
	r.monitors[m.ID] = *m
	return nil
}

func (r *fakeMonitorRepo) Update(_ context.Context, m *models.Monitor) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.monitors[m.ID]; !ok {
		return fmt.Errorf("monitor %s: %w", m.ID, repository.ErrNotFound)
	}
	m.UpdatedAt = time.Now()
	r.monitors[m.ID] = *m
	return nil
}

func (r *fakeMonitorRepo) GetByID(_ context.Context, id string) (*models.Monitor, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	m, ok := r.monitors[id]
	if !ok {
		return nil, fmt.Errorf("monitor %s: %w", id, repository.ErrNotFound)
	}
	return &m, nil
}

func (r *fakeMonitorRepo) List(context.Context) ([]*models.Monitor, error) {
	return r.list(false), nil
}

func (r *fakeMonitorRepo) ListEnabled(context.Context) ([]*models.Monitor, error) {
	return r.list(true), nil
}

func (r *fakeMonitorRepo) list(enabledOnly bool) []*models.Monitor {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []*models.Monitor
	for _, m := range r.monitors {
		if enabledOnly && !m.Enabled {
			continue
		}
		m := m
		out = append(out, &m)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

func (r *fakeMonitorRepo) Delete(_ context.Context, id string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.monitors[id]; !ok {
		return fmt.Errorf("monitor %s: %w", id, repository.ErrNotFound)
	}
	delete(r.monitors, id)
	return nil
}

type fakeAlertRepo struct {
	mu        sync.Mutex
	alerts    []models.Alert
	createErr error
}

func (r *fakeAlertRepo) Create(_ context.Context, a *models.Alert) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.createErr != nil {
		return r.createErr
	}
	r.alerts = append(r.alerts, *a)
	return nil
}

func (r *fakeAlertRepo) GetByID(_ context.Context, id string) (*models.Alert, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, a := range r.alerts {
		if a.ID == id {
			return &a, nil
		}
	}
	return nil, fmt.Errorf("alert %s: %w", id, repository.ErrNotFound)
}

func (r *fakeAlertRepo) FindActive(_ context.Context, monitorID string, gapStartedAt int64) (*models.Alert, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, a := range r.alerts {
		if a.MonitorID == monitorID && a.GapStartedAt == gapStartedAt && a.Status == models.StatusActive {
			return &a, nil
		}
	}
	return nil, fmt.Errorf("active alert for %s: %w", monitorID, repository.ErrNotFound)
}

func (r *fakeAlertRepo) ResolveOpen(_ context.Context, monitorID string, at time.Time) ([]models.Alert, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []models.Alert
	for i := range r.alerts {
		a := &r.alerts[i]
		if a.MonitorID == monitorID && a.Status == models.StatusActive {
			a.Status = models.StatusResolved
			t := at
			a.ResolvedAt = &t
			out = append(out, *a)
		}
	}
	return out, nil
}

func (r *fakeAlertRepo) ListByMonitor(_ context.Context, monitorID string, limit int) ([]models.Alert, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []models.Alert
	for i := len(r.alerts) - 1; i >= 0 && len(out) < limit; i-- {
		if r.alerts[i].MonitorID == monitorID {
			out = append(out, r.alerts[i])
		}
	}
	return out, nil
}

func (r *fakeAlertRepo) History(_ context.Context, limit, offset int) ([]models.Alert, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []models.Alert
	for i := len(r.alerts) - 1 - offset; i >= 0 && len(out) < limit; i-- {
		out = append(out, r.alerts[i])
	}
	return out, nil
}

func (r *fakeAlertRepo) DeleteOld(context.Context, time.Duration) (int64, error) {
	return 0, nil
}

type broadcast struct {
	Type    string
	Payload interface{}
}

type fakeHub struct {
	mu   sync.Mutex
	sent []broadcast
}

func (h *fakeHub) Broadcast(msgType string, payload interface{}) bool {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.sent = append(h.sent, broadcast{msgType, payload})
	return true
}

func (h *fakeHub) types() []string {
	h.mu.Lock()
	defer h.mu.Unlock()
	var out []string
	for _, b := range h.sent {
		out = append(out, b.Type)
	}
	return out
}

type fakeSink struct {
	mu     sync.Mutex
	events []models.AlertEvent
	err    error
}

func (s *fakeSink) Name() string { return "fake" }

func (s *fakeSink) Publish(_ context.Context, ev models.AlertEvent) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.events = append(s.events, ev)
	return s.err
}

type fakeSyncer struct {
	calls int
	last  []*models.Monitor
}

func (f *fakeSyncer) Sync(monitors []*models.Monitor) error {
	f.calls++
	f.last = monitors
	return nil
}

var errStoreDown = errors.New("store down")
