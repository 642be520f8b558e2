package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"GapWatchAPI/internal/gap"
	"GapWatchAPI/internal/logger"
	"GapWatchAPI/internal/metrics"
	"GapWatchAPI/internal/models"
	"GapWatchAPI/internal/mqtt"
	"GapWatchAPI/internal/repository"
	"GapWatchAPI/internal/statestore"

	"github.com/google/uuid"
)

var (
	ErrMonitorDisabled = errors.New("monitor is disabled")
	ErrNameRequired    = errors.New("name is required")
	ErrInvalidSource   = errors.New("source_kind must be one of mqtt, nats, kafka, http")
	ErrTopicRequired   = errors.New("source_topic is required for broker sources")
)

// BindingSyncer is satisfied by *ingest.Router.
type BindingSyncer interface {
	Sync(monitors []*models.Monitor) error
}

// IMonitorService is the monitor API used by the HTTP handlers.
type IMonitorService interface {
	CreateMonitor(ctx context.Context, req *models.CreateMonitorRequest) (*models.Monitor, error)
	UpdateMonitor(ctx context.Context, id string, req *models.UpdateMonitorRequest) (*models.Monitor, error)
	GetMonitor(ctx context.Context, id string) (*models.Monitor, error)
	ListMonitors(ctx context.Context) ([]*models.Monitor, error)
	DeleteMonitor(ctx context.Context, id string) error
	HandleMessage(ctx context.Context, monitorID string, msg models.InboundMessage) error
	Check(ctx context.Context, monitorID string, now time.Time) (*CheckResult, error)
	Status(ctx context.Context, monitorID string, now time.Time) (*models.MonitorStatus, error)
	ResetState(ctx context.Context, monitorID string) error
}

type CheckResult struct {
	MonitorID string                `json:"monitor_id"`
	Outcome   string                `json:"outcome"`
	Alert     *models.Alert         `json:"alert,omitempty"`
	Status    *models.MonitorStatus `json:"status,omitempty"`
}

type MonitorService struct {
	repo   repository.IMonitorRepository
	store  statestore.Store
	alerts IAlertService
	router BindingSyncer
	log    *logger.Logger

	mu    sync.Mutex
	locks map[string]*monitorLock
}

type monitorLock struct {
	sync.Mutex
	refs int
}

func NewMonitorService(
	repo repository.IMonitorRepository,
	store statestore.Store,
	alerts IAlertService,
	log *logger.Logger,
) *MonitorService {
	return &MonitorService{
		repo:   repo,
		store:  store,
		alerts: alerts,
		log:    log.With("monitors"),
		locks:  make(map[string]*monitorLock),
	}
}

// SetRouter enables resubscription after monitor changes.
func (s *MonitorService) SetRouter(r BindingSyncer) {
	s.router = r
}

// lock serialises all state transitions of one monitor. The entry is
// dropped once no caller holds or waits for it.
func (s *MonitorService) lock(id string) func() {
	s.mu.Lock()
	l, ok := s.locks[id]
	if !ok {
		l = &monitorLock{}
		s.locks[id] = l
	}
	l.refs++
	s.mu.Unlock()

	l.Lock()
	return func() {
		l.Unlock()

		s.mu.Lock()
		l.refs--
		if l.refs == 0 {
			delete(s.locks, id)
		}
		s.mu.Unlock()
	}
}

func (s *MonitorService) CreateMonitor(ctx context.Context, req *models.CreateMonitorRequest) (*models.Monitor, error) {
	m := requestToMonitor(req)
	if m.ID == "" {
		m.ID = uuid.NewString()
	}

	if err := ValidateMonitor(m); err != nil {
		return nil, err
	}

	s.log.Info("Creating monitor %s (%s) on %s", m.Name, m.ID, m.Binding())

	if err := s.repo.Create(ctx, m); err != nil {
		return nil, err
	}

	s.resync(ctx)
	return m, nil
}

func (s *MonitorService) UpdateMonitor(ctx context.Context, id string, req *models.UpdateMonitorRequest) (*models.Monitor, error) {
	unlock := s.lock(id)
	defer unlock()

	m, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}

	if req.Name != nil {
		m.Name = strings.TrimSpace(*req.Name)
	}
	if req.Description != nil {
		m.Description = *req.Description
	}
	if req.SourceKind != nil {
		m.SourceKind = strings.ToLower(strings.TrimSpace(*req.SourceKind))
	}
	if req.SourceTopic != nil {
		m.SourceTopic = strings.TrimSpace(*req.SourceTopic)
	}
	if req.Config != nil {
		m.Config = *req.Config
	}
	if req.Enabled != nil {
		m.Enabled = *req.Enabled
	}

	if err := ValidateMonitor(m); err != nil {
		return nil, err
	}

	if err := s.repo.Update(ctx, m); err != nil {
		return nil, err
	}

	s.log.Info("Updated monitor %s (%s)", m.Name, m.ID)
	s.resync(ctx)
	return m, nil
}

func (s *MonitorService) GetMonitor(ctx context.Context, id string) (*models.Monitor, error) {
	return s.repo.GetByID(ctx, id)
}

func (s *MonitorService) ListMonitors(ctx context.Context) ([]*models.Monitor, error) {
	return s.repo.List(ctx)
}

// DeleteMonitor removes the definition and its stored state. Alert history
// is kept.
func (s *MonitorService) DeleteMonitor(ctx context.Context, id string) error {
	unlock := s.lock(id)
	defer unlock()

	if err := s.repo.Delete(ctx, id); err != nil {
		return err
	}
	if err := s.store.Delete(ctx, id); err != nil {
		s.log.Warn("Monitor %s deleted but its state was not: %v", id, err)
	}

	s.log.Info("Deleted monitor %s", id)
	s.resync(ctx)
	return nil
}

// HandleMessage applies one inbound message to one monitor. Closing a gap
// also resolves the stored alert.
func (s *MonitorService) HandleMessage(ctx context.Context, monitorID string, msg models.InboundMessage) error {
	unlock := s.lock(monitorID)
	defer unlock()

	m, err := s.repo.GetByID(ctx, monitorID)
	if err != nil {
		return err
	}
	if !m.Enabled {
		return fmt.Errorf("monitor %s: %w", monitorID, ErrMonitorDisabled)
	}

	rule, err := gap.New(m.Config)
	if err != nil {
		return fmt.Errorf("monitor %s: %w", monitorID, err)
	}

	st, err := s.store.Load(ctx, monitorID)
	if err != nil {
		return err
	}

	next := rule.OnMessage(msg.GapMessage(), st)
	if next == st {
		return nil
	}

	metrics.MessagesRecorded.WithLabelValues(monitorID).Inc()

	if err := s.store.Save(ctx, monitorID, next); err != nil {
		return err
	}

	if st.IsAlerted() && !next.IsAlerted() {
		if err := s.alerts.ResolveGap(ctx, m, msg.CreatedAt); err != nil {
			s.log.Error("Monitor %s: %v", monitorID, err)
		}
	}
	return nil
}

// Check runs the rule for one monitor at now. When an alert is raised it is
// dispatched before the state is saved; a failed dispatch leaves the state
// untouched so the next check raises it again.
func (s *MonitorService) Check(ctx context.Context, monitorID string, now time.Time) (*CheckResult, error) {
	unlock := s.lock(monitorID)
	defer unlock()

	m, err := s.repo.GetByID(ctx, monitorID)
	if err != nil {
		return nil, err
	}
	return s.check(ctx, m, now)
}

func (s *MonitorService) check(ctx context.Context, m *models.Monitor, now time.Time) (*CheckResult, error) {
	result := &CheckResult{MonitorID: m.ID}

	rule, err := gap.New(m.Config)
	if err != nil {
		metrics.ChecksTotal.WithLabelValues(metrics.OutcomeError).Inc()
		return nil, fmt.Errorf("monitor %s: %w", m.ID, err)
	}

	st, err := s.store.Load(ctx, m.ID)
	if err != nil {
		metrics.ChecksTotal.WithLabelValues(metrics.OutcomeError).Inc()
		return nil, err
	}

	next, alert := rule.Check(now, st)

	switch {
	case alert != nil:
		record, err := s.alerts.Dispatch(ctx, m, alert, now)
		if err != nil {
			metrics.ChecksTotal.WithLabelValues(metrics.OutcomeError).Inc()
			return nil, err
		}
		if err := s.store.Save(ctx, m.ID, next); err != nil {
			metrics.ChecksTotal.WithLabelValues(metrics.OutcomeError).Inc()
			return nil, err
		}
		result.Outcome = metrics.OutcomeAlerted
		result.Alert = record
	case !next.HasData():
		result.Outcome = metrics.OutcomeNoData
	case next.IsAlerted():
		result.Outcome = metrics.OutcomeSuppressed
	default:
		result.Outcome = metrics.OutcomeOK
	}

	metrics.ChecksTotal.WithLabelValues(result.Outcome).Inc()
	if next.HasData() {
		metrics.MonitorGapSeconds.WithLabelValues(m.ID).Set(next.Gap(now).Seconds())
	}

	result.Status = buildStatus(m, next, now)
	return result, nil
}

// CheckAll checks every enabled monitor. A failing monitor does not stop
// the others; its error is joined into the result.
func (s *MonitorService) CheckAll(ctx context.Context, now time.Time) ([]*CheckResult, error) {
	monitors, err := s.repo.ListEnabled(ctx)
	if err != nil {
		return nil, err
	}

	var (
		results []*CheckResult
		errs    []error
		alerted int
	)
	for _, m := range monitors {
		if ctx.Err() != nil {
			errs = append(errs, ctx.Err())
			break
		}

		unlock := s.lock(m.ID)
		res, err := s.check(ctx, m, now)
		unlock()

		if err != nil {
			s.log.Error("Check failed for monitor %s: %v", m.ID, err)
			errs = append(errs, err)
			continue
		}
		if res.Status.Alerted {
			alerted++
		}
		results = append(results, res)
	}

	metrics.MonitorsAlerted.Set(float64(alerted))
	return results, errors.Join(errs...)
}

func (s *MonitorService) Status(ctx context.Context, monitorID string, now time.Time) (*models.MonitorStatus, error) {
	m, err := s.repo.GetByID(ctx, monitorID)
	if err != nil {
		return nil, err
	}

	st, err := s.store.Load(ctx, monitorID)
	if err != nil {
		return nil, err
	}
	return buildStatus(m, st, now), nil
}

// ResetState forgets everything the monitor has seen.
func (s *MonitorService) ResetState(ctx context.Context, monitorID string) error {
	unlock := s.lock(monitorID)
	defer unlock()

	if _, err := s.repo.GetByID(ctx, monitorID); err != nil {
		return err
	}
	if err := s.store.Delete(ctx, monitorID); err != nil {
		return err
	}

	metrics.MonitorGapSeconds.DeleteLabelValues(monitorID)
	s.log.Info("Reset state of monitor %s", monitorID)
	return nil
}

// SyncBindings pushes the current enabled monitors to the router.
func (s *MonitorService) SyncBindings(ctx context.Context) error {
	if s.router == nil {
		return nil
	}
	monitors, err := s.repo.ListEnabled(ctx)
	if err != nil {
		return err
	}
	return s.router.Sync(monitors)
}

func (s *MonitorService) resync(ctx context.Context) {
	if err := s.SyncBindings(ctx); err != nil {
		s.log.Error("Failed to resync source bindings: %v", err)
	}
}

func buildStatus(m *models.Monitor, st gap.State, now time.Time) *models.MonitorStatus {
	status := &models.MonitorStatus{
		Monitor: m,
		State:   st,
		HasData: st.HasData(),
		Alerted: st.IsAlerted(),
	}
	if st.HasData() {
		last := time.Unix(st.NewestMessageCreatedAt, 0).UTC()
		ends := last.Add(m.Config.Window())
		status.LastDataAt = &last
		status.WindowEndsAt = &ends
		status.GapSeconds = int64(st.Gap(now).Seconds())
	}
	return status
}

func requestToMonitor(req *models.CreateMonitorRequest) *models.Monitor {
	m := &models.Monitor{
		ID:          strings.TrimSpace(req.ID),
		Name:        strings.TrimSpace(req.Name),
		Description: req.Description,
		SourceKind:  strings.ToLower(strings.TrimSpace(req.SourceKind)),
		SourceTopic: strings.TrimSpace(req.SourceTopic),
		Config:      withDefaults(req.Config),
		Enabled:     true,
	}
	if req.Enabled != nil {
		m.Enabled = *req.Enabled
	}
	return m
}

func withDefaults(cfg *gap.Config) gap.Config {
	def := gap.DefaultConfig()
	if cfg == nil {
		return def
	}
	out := *cfg
	if strings.TrimSpace(out.Message) == "" {
		out.Message = def.Message
	}
	if !out.WindowDurationDays.Set {
		out.WindowDurationDays = def.WindowDurationDays
	}
	return out
}

// ValidateMonitor reports every problem with a monitor definition, rule
// configuration included.
func ValidateMonitor(m *models.Monitor) error {
	var problems []error

	if m.Name == "" {
		problems = append(problems, ErrNameRequired)
	}

	switch {
	case !models.ValidSourceKind(m.SourceKind):
		problems = append(problems, ErrInvalidSource)
	case m.SourceKind == models.SourceHTTP:
	case m.SourceTopic == "":
		problems = append(problems, ErrTopicRequired)
	case m.SourceKind == models.SourceMQTT:
		if err := mqtt.ValidatePattern(m.SourceTopic); err != nil {
			problems = append(problems, err)
		}
	}

	if err := gap.Validate(m.Config); err != nil {
		var ve *gap.ValidationError
		if errors.As(err, &ve) {
			problems = append(problems, ve.Problems...)
		} else {
			problems = append(problems, err)
		}
	}

	if len(problems) > 0 {
		return &gap.ValidationError{Problems: problems}
	}
	return nil
}
