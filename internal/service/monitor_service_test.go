package service

import (
	"context"
	"errors"
	"math/rand"
	"sync"
	"testing"
	"time"

	"GapWatchAPI/internal/gap"
	"GapWatchAPI/internal/logger"
	"GapWatchAPI/internal/metrics"
	"GapWatchAPI/internal/models"
	"GapWatchAPI/internal/repository"
	"GapWatchAPI/internal/sink"
	"GapWatchAPI/internal/statestore"
	"GapWatchAPI/internal/websocket"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const day = 24 * time.Hour

type fixture struct {
	monitors *fakeMonitorRepo
	alerts   *fakeAlertRepo
	store    *statestore.MemoryStore
	hub      *fakeHub
	sink     *fakeSink
	syncer   *fakeSyncer
	svc      *MonitorService
	alertSvc *AlertService
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	f := &fixture{
		monitors: newFakeMonitorRepo(),
		alerts:   &fakeAlertRepo{},
		store:    statestore.NewMemoryStore(),
		hub:      &fakeHub{},
		sink:     &fakeSink{},
		syncer:   &fakeSyncer{},
	}
	log := logger.Discard()
	f.alertSvc = NewAlertService(f.alerts, f.hub, []sink.Sink{f.sink}, log)
	f.svc = NewMonitorService(f.monitors, f.store, f.alertSvc, log)
	f.svc.SetRouter(f.syncer)
	return f
}

func (f *fixture) create(t *testing.T, id string, cfg *gap.Config) *models.Monitor {
	t.Helper()
	m, err := f.svc.CreateMonitor(context.Background(), &models.CreateMonitorRequest{
		ID:         id,
		Name:       "monitor " + id,
		SourceKind: models.SourceHTTP,
		Config:     cfg,
	})
	require.NoError(t, err)
	return m
}

func msgAt(ts time.Time, payload string) models.InboundMessage {
	return models.InboundMessage{SourceKind: models.SourceHTTP, Payload: []byte(payload), CreatedAt: ts}
}

func TestMonitorService_GapLifecycle(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	f.create(t, "m1", nil)
	t0 := time.Unix(1700000000, 0)

	require.NoError(t, f.svc.HandleMessage(ctx, "m1", msgAt(t0, `{}`)))

	res, err := f.svc.Check(ctx, "m1", t0.Add(day))
	require.NoError(t, err)
	assert.Equal(t, metrics.OutcomeOK, res.Outcome)
	assert.Nil(t, res.Alert)

	res, err = f.svc.Check(ctx, "m1", t0.Add(2*day+time.Second))
	require.NoError(t, err)
	assert.Equal(t, metrics.OutcomeAlerted, res.Outcome)
	require.NotNil(t, res.Alert)
	assert.Equal(t, gap.DefaultMessage, res.Alert.Message)
	assert.Equal(t, t0.Unix(), res.Alert.GapStartedAt)
	assert.True(t, res.Status.Alerted)

	res, err = f.svc.Check(ctx, "m1", t0.Add(5*day))
	require.NoError(t, err)
	assert.Equal(t, metrics.OutcomeSuppressed, res.Outcome)
	assert.Len(t, f.alerts.alerts, 1)

	require.NoError(t, f.svc.HandleMessage(ctx, "m1", msgAt(t0.Add(6*day), `{}`)))

	assert.Equal(t, []string{websocket.EventGapAlert, websocket.EventGapResolved}, f.hub.types())
	require.Len(t, f.sink.events, 2)
	assert.Equal(t, models.StatusActive, f.sink.events[0].Status)
	assert.Equal(t, models.StatusResolved, f.sink.events[1].Status)
	assert.Equal(t, models.StatusResolved, f.alerts.alerts[0].Status)

	st, err := f.svc.Status(ctx, "m1", t0.Add(6*day+time.Hour))
	require.NoError(t, err)
	assert.False(t, st.Alerted)
	assert.Equal(t, int64(3600), st.GapSeconds)
	require.NotNil(t, st.LastDataAt)
	assert.Equal(t, t0.Add(6*day).Unix(), st.LastDataAt.Unix())
}

func TestMonitorService_NoDataNeverAlerts(t *testing.T) {
	f := newFixture(t)
	f.create(t, "m1", nil)

	res, err := f.svc.Check(context.Background(), "m1", time.Unix(1700000000, 0))
	require.NoError(t, err)
	assert.Equal(t, metrics.OutcomeNoData, res.Outcome)
	assert.Empty(t, f.alerts.alerts)
}

func TestMonitorService_ValuePathFiltersMessages(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	f.create(t, "m1", &gap.Config{Message: "no temperature", WindowDurationDays: gap.NewDays(1), ValuePath: "$.temp"})
	t0 := time.Unix(1700000000, 0)

	require.NoError(t, f.svc.HandleMessage(ctx, "m1", msgAt(t0, `{"temp": 21.5}`)))
	require.NoError(t, f.svc.HandleMessage(ctx, "m1", msgAt(t0.Add(day), `{"temp": null}`)))
	require.NoError(t, f.svc.HandleMessage(ctx, "m1", msgAt(t0.Add(day), `{"humidity": 40}`)))

	st, err := f.store.Load(ctx, "m1")
	require.NoError(t, err)
	assert.Equal(t, t0.Unix(), st.NewestMessageCreatedAt)

	res, err := f.svc.Check(ctx, "m1", t0.Add(day+time.Second))
	require.NoError(t, err)
	require.NotNil(t, res.Alert)
	assert.Equal(t, "no temperature", res.Alert.Message)
}

func TestMonitorService_DispatchFailureKeepsState(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	f.create(t, "m1", nil)
	t0 := time.Unix(1700000000, 0)
	require.NoError(t, f.svc.HandleMessage(ctx, "m1", msgAt(t0, `{}`)))

	f.alerts.createErr = errors.New("db down")
	_, err := f.svc.Check(ctx, "m1", t0.Add(3*day))
	require.Error(t, err)

	st, err := f.store.Load(ctx, "m1")
	require.NoError(t, err)
	assert.False(t, st.IsAlerted())
	assert.Empty(t, f.hub.types())

	f.alerts.createErr = nil
	res, err := f.svc.Check(ctx, "m1", t0.Add(3*day+10*time.Minute))
	require.NoError(t, err)
	assert.NotNil(t, res.Alert)
}

type saveFailStore struct {
	*statestore.MemoryStore
	saveErr error
}

func (s *saveFailStore) Save(ctx context.Context, id string, st gap.State) error {
	if s.saveErr != nil && st.IsAlerted() {
		return s.saveErr
	}
	return s.MemoryStore.Save(ctx, id, st)
}

func TestMonitorService_SaveFailureDoesNotDuplicateAlert(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	f.create(t, "m1", nil)
	store := &saveFailStore{MemoryStore: f.store, saveErr: errStoreDown}
	svc := NewMonitorService(f.monitors, store, f.alertSvc, logger.Discard())

	t0 := time.Unix(1700000000, 0)
	require.NoError(t, svc.HandleMessage(ctx, "m1", msgAt(t0, `{}`)))

	_, err := svc.Check(ctx, "m1", t0.Add(3*day))
	require.ErrorIs(t, err, errStoreDown)
	require.Len(t, f.alerts.alerts, 1)
	first := f.alerts.alerts[0].ID

	store.saveErr = nil
	res, err := svc.Check(ctx, "m1", t0.Add(3*day+10*time.Minute))
	require.NoError(t, err)
	require.NotNil(t, res.Alert)
	assert.Equal(t, first, res.Alert.ID)
	assert.Len(t, f.alerts.alerts, 1)
	assert.Len(t, f.sink.events, 1)
	assert.Equal(t, []string{websocket.EventGapAlert}, f.hub.types())

	st, err := store.Load(ctx, "m1")
	require.NoError(t, err)
	assert.True(t, st.IsAlerted())
}

func TestMonitorService_SinkFailureIsNotFatal(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	f.create(t, "m1", nil)
	f.sink.err = errors.New("broker gone")
	t0 := time.Unix(1700000000, 0)
	require.NoError(t, f.svc.HandleMessage(ctx, "m1", msgAt(t0, `{}`)))

	res, err := f.svc.Check(ctx, "m1", t0.Add(3*day))
	require.NoError(t, err)
	assert.NotNil(t, res.Alert)

	st, _ := f.store.Load(ctx, "m1")
	assert.True(t, st.IsAlerted())
}

func TestMonitorService_DisabledMonitorRejectsMessages(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	disabled := false
	_, err := f.svc.CreateMonitor(ctx, &models.CreateMonitorRequest{
		ID: "m1", Name: "off", SourceKind: models.SourceHTTP, Enabled: &disabled,
	})
	require.NoError(t, err)

	err = f.svc.HandleMessage(ctx, "m1", msgAt(time.Now(), `{}`))
	assert.ErrorIs(t, err, ErrMonitorDisabled)

	err = f.svc.HandleMessage(ctx, "missing", msgAt(time.Now(), `{}`))
	assert.ErrorIs(t, err, repository.ErrNotFound)
}

func TestMonitorService_CreateFillsDefaults(t *testing.T) {
	f := newFixture(t)
	m, err := f.svc.CreateMonitor(context.Background(), &models.CreateMonitorRequest{
		Name:        "orders",
		SourceKind:  "KAFKA",
		SourceTopic: "orders",
		Config:      &gap.Config{ValuePath: "id"},
	})
	require.NoError(t, err)

	assert.NotEmpty(t, m.ID)
	assert.Equal(t, models.SourceKafka, m.SourceKind)
	assert.Equal(t, gap.DefaultMessage, m.Config.Message)
	assert.Equal(t, gap.DefaultWindowDays, m.Config.WindowDurationDays.Value)
	assert.Equal(t, "id", m.Config.ValuePath)
	assert.True(t, m.Enabled)
	assert.Equal(t, 1, f.syncer.calls)
}

func TestMonitorService_UpdateValidatesAndResyncs(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	f.create(t, "m1", nil)

	bad := gap.Config{Message: " ", WindowDurationDays: gap.NewDays(-1)}
	_, err := f.svc.UpdateMonitor(ctx, "m1", &models.UpdateMonitorRequest{Config: &bad})
	var ve *gap.ValidationError
	require.ErrorAs(t, err, &ve)
	assert.ErrorIs(t, err, gap.ErrMessageRequired)
	assert.ErrorIs(t, err, gap.ErrInvalidWindow)

	kind, topic := models.SourceNATS, "metrics.cpu"
	m, err := f.svc.UpdateMonitor(ctx, "m1", &models.UpdateMonitorRequest{SourceKind: &kind, SourceTopic: &topic})
	require.NoError(t, err)
	assert.Equal(t, models.SourceNATS, m.SourceKind)
	assert.Equal(t, 2, f.syncer.calls)
	require.Len(t, f.syncer.last, 1)
	assert.Equal(t, "metrics.cpu", f.syncer.last[0].SourceTopic)
}

func TestMonitorService_DeleteAndReset(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	f.create(t, "m1", nil)
	require.NoError(t, f.svc.HandleMessage(ctx, "m1", msgAt(time.Unix(1700000000, 0), `{}`)))

	require.NoError(t, f.svc.ResetState(ctx, "m1"))
	st, _ := f.store.Load(ctx, "m1")
	assert.False(t, st.HasData())

	require.NoError(t, f.svc.DeleteMonitor(ctx, "m1"))
	assert.ErrorIs(t, f.svc.DeleteMonitor(ctx, "m1"), repository.ErrNotFound)
	assert.ErrorIs(t, f.svc.ResetState(ctx, "m1"), repository.ErrNotFound)
}

func TestMonitorService_CheckAllContinuesPastFailures(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	t0 := time.Unix(1700000000, 0)

	f.create(t, "a", nil)
	f.create(t, "c", nil)
	f.monitors.monitors["b"] = models.Monitor{ID: "b", Name: "broken", SourceKind: models.SourceHTTP, Enabled: true}

	require.NoError(t, f.svc.HandleMessage(ctx, "a", msgAt(t0, `{}`)))
	require.NoError(t, f.svc.HandleMessage(ctx, "c", msgAt(t0, `{}`)))

	results, err := f.svc.CheckAll(ctx, t0.Add(3*day))
	require.Error(t, err)
	assert.ErrorIs(t, err, gap.ErrInvalidWindow)
	require.Len(t, results, 2)
	assert.NotNil(t, results[0].Alert)
	assert.NotNil(t, results[1].Alert)
}

func TestMonitorService_ConcurrentMessagesKeepNewest(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	f.create(t, "m1", nil)

	base := int64(1700000000)
	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func(offset int64) {
			defer wg.Done()
			assert.NoError(t, f.svc.HandleMessage(ctx, "m1", msgAt(time.Unix(base+offset, 0), `{}`)))
		}(rand.Int63n(1000))
	}
	wg.Add(1)
	go func() {
		defer wg.Done()
		assert.NoError(t, f.svc.HandleMessage(ctx, "m1", msgAt(time.Unix(base+5000, 0), `{}`)))
	}()
	wg.Wait()

	st, err := f.store.Load(ctx, "m1")
	require.NoError(t, err)
	assert.Equal(t, base+5000, st.NewestMessageCreatedAt)
}

func TestMonitorService_LocksAreReleased(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	base := time.Unix(1700000000, 0)

	var wg sync.WaitGroup
	for i := 0; i < 20; i++ {
		id := "m" + string(rune('a'+i))
		f.create(t, id, nil)
		for j := 0; j < 5; j++ {
			wg.Add(1)
			go func(id string, offset int) {
				defer wg.Done()
				assert.NoError(t, f.svc.HandleMessage(ctx, id, msgAt(base.Add(time.Duration(offset)*time.Second), `{}`)))
			}(id, j)
		}
	}
	wg.Wait()

	require.NoError(t, f.svc.DeleteMonitor(ctx, "ma"))
	_, err := f.svc.Check(ctx, "mb", base.Add(time.Hour))
	require.NoError(t, err)

	f.svc.mu.Lock()
	defer f.svc.mu.Unlock()
	assert.Empty(t, f.svc.locks)
}

func TestValidateMonitor(t *testing.T) {
	valid := gap.DefaultConfig()

	tests := []struct {
		name    string
		monitor models.Monitor
		want    []error
	}{
		{"http without topic", models.Monitor{Name: "a", SourceKind: models.SourceHTTP, Config: valid}, nil},
		{"mqtt wildcard", models.Monitor{Name: "a", SourceKind: models.SourceMQTT, SourceTopic: "s/+/t", Config: valid}, nil},
		{"missing name", models.Monitor{SourceKind: models.SourceHTTP, Config: valid}, []error{ErrNameRequired}},
		{"bad source", models.Monitor{Name: "a", SourceKind: "amqp", Config: valid}, []error{ErrInvalidSource}},
		{"broker without topic", models.Monitor{Name: "a", SourceKind: models.SourceNATS, Config: valid}, []error{ErrTopicRequired}},
		{"bad config", models.Monitor{Name: "a", SourceKind: models.SourceHTTP}, []error{gap.ErrMessageRequired, gap.ErrInvalidWindow}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := ValidateMonitor(&tt.monitor)
			if tt.want == nil {
				assert.NoError(t, err)
				return
			}
			for _, w := range tt.want {
				assert.ErrorIs(t, err, w)
			}
		})
	}

	err := ValidateMonitor(&models.Monitor{Name: "a", SourceKind: models.SourceMQTT, SourceTopic: "s/#/t", Config: valid})
	assert.ErrorContains(t, err, "'#' must be the last level")
}

type failingStore struct {
	statestore.MemoryStore
}

func (*failingStore) Load(context.Context, string) (gap.State, error) {
	return gap.State{}, errStoreDown
}

func TestMonitorService_StoreErrorsPropagate(t *testing.T) {
	f := newFixture(t)
	f.create(t, "m1", nil)
	svc := NewMonitorService(f.monitors, &failingStore{}, f.alertSvc, logger.Discard())

	assert.ErrorIs(t, svc.HandleMessage(context.Background(), "m1", msgAt(time.Now(), `{}`)), errStoreDown)
	_, err := svc.Check(context.Background(), "m1", time.Now())
	assert.ErrorIs(t, err, errStoreDown)
}
