package service

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"GapWatchAPI/internal/logger"
	"GapWatchAPI/internal/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const seedYAML = `
monitors:
  - id: orders
    name: Orders feed
    source_kind: kafka
    source_topic: orders
    config:
      message: "No orders for 1.5 days"
      window_duration_in_days: "1.5"
      value_path: $.order.id
  - id: weather
    name: Weather station
    source_kind: mqtt
    source_topic: weather/+/reading
    enabled: false
`

func TestParseMonitorFile(t *testing.T) {
	f, err := ParseMonitorFile(strings.NewReader(seedYAML))
	require.NoError(t, err)
	require.Len(t, f.Monitors, 2)

	orders := f.Monitors[0]
	require.NotNil(t, orders.Config)
	assert.Equal(t, 1.5, orders.Config.WindowDurationDays.Value)
	assert.Equal(t, "$.order.id", orders.Config.ValuePath)
	assert.Nil(t, orders.Enabled)

	require.NotNil(t, f.Monitors[1].Enabled)
	assert.False(t, *f.Monitors[1].Enabled)
	assert.NoError(t, f.Check())
}

func TestParseMonitorFile_UnknownKey(t *testing.T) {
	_, err := ParseMonitorFile(strings.NewReader("monitors:\n  - id: a\n    windw: 3\n"))
	assert.Error(t, err)
}

func TestParseMonitorFile_Empty(t *testing.T) {
	f, err := ParseMonitorFile(strings.NewReader(""))
	require.NoError(t, err)
	assert.Empty(t, f.Monitors)
}

func TestMonitorFile_Check(t *testing.T) {
	f, err := ParseMonitorFile(strings.NewReader(`
monitors:
  - name: no id
    source_kind: http
  - id: dup
    name: first
    source_kind: http
  - id: dup
    name: second
    source_kind: http
    config:
      window_duration_in_days: soon
`))
	require.NoError(t, err)

	err = f.Check()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "monitors[0]: id is required")
	assert.Contains(t, err.Error(), "monitors[2] (dup): duplicate id")
	assert.Contains(t, err.Error(), "window_duration_in_days")
}

func TestSeedService_ApplyFile(t *testing.T) {
	fx := newFixture(t)
	seed := NewSeedService(fx.svc, logger.Discard())
	ctx := context.Background()

	path := filepath.Join(t.TempDir(), "monitors.yaml")
	require.NoError(t, os.WriteFile(path, []byte(seedYAML), 0o600))

	require.NoError(t, seed.ApplyFile(ctx, path))
	orders, err := fx.svc.GetMonitor(ctx, "orders")
	require.NoError(t, err)
	assert.Equal(t, models.SourceKafka, orders.SourceKind)
	assert.Equal(t, "No orders for 1.5 days", orders.Config.Message)

	weather, err := fx.svc.GetMonitor(ctx, "weather")
	require.NoError(t, err)
	assert.False(t, weather.Enabled)
	assert.Equal(t, "No data has been received!", weather.Config.Message)

	f, err := LoadMonitorFile(path)
	require.NoError(t, err)
	f.Monitors[0].Name = "Orders (renamed)"
	created, updated, err := seed.Apply(ctx, f)
	require.NoError(t, err)
	assert.Equal(t, 0, created)
	assert.Equal(t, 2, updated)

	orders, err = fx.svc.GetMonitor(ctx, "orders")
	require.NoError(t, err)
	assert.Equal(t, "Orders (renamed)", orders.Name)

	assert.NoError(t, seed.ApplyFile(ctx, ""))
}
