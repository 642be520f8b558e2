package gap

import (
	"errors"
	"math/rand"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const day = 24 * time.Hour

func newMonitor(t *testing.T, cfg Config) *Monitor {
	t.Helper()
	m, err := New(cfg)
	require.NoError(t, err)
	return m
}

func at(sec int64) time.Time {
	return time.Unix(sec, 0)
}

func msgAt(sec int64, payload string) Message {
	return Message{Payload: []byte(payload), CreatedAt: at(sec)}
}

func TestMonitor_OnMessageKeepsMaximum(t *testing.T) {
	m := newMonitor(t, Config{Message: "gap", WindowDurationDays: NewDays(1)})

	stamps := []int64{500, 1200, 90, 1199, 7000, 6999, 3}
	r := rand.New(rand.NewSource(42))

	for i := 0; i < 20; i++ {
		r.Shuffle(len(stamps), func(a, b int) { stamps[a], stamps[b] = stamps[b], stamps[a] })

		var st State
		for _, ts := range stamps {
			st = m.OnMessage(msgAt(ts, `{}`), st)
		}
		assert.Equal(t, int64(7000), st.NewestMessageCreatedAt)
	}
}

func TestMonitor_OnMessageClearsAlert(t *testing.T) {
	m := newMonitor(t, Config{Message: "gap", WindowDurationDays: NewDays(1)})

	st := State{NewestMessageCreatedAt: 100, Status: Alerted, AlertedAt: 200000}

	older := m.OnMessage(msgAt(50, `{}`), st)
	assert.True(t, older.IsAlerted(), "older message must not reset the alert")
	assert.Equal(t, int64(100), older.NewestMessageCreatedAt)

	same := m.OnMessage(msgAt(100, `{}`), st)
	assert.True(t, same.IsAlerted(), "equal timestamp is not strictly newer")

	newer := m.OnMessage(msgAt(101, `{}`), st)
	assert.False(t, newer.IsAlerted())
	assert.Zero(t, newer.AlertedAt)
	assert.Equal(t, int64(101), newer.NewestMessageCreatedAt)
}

func TestMonitor_CheckDoesNotRepeat(t *testing.T) {
	m := newMonitor(t, Config{Message: "gap", WindowDurationDays: NewDays(1)})
	st := m.OnMessage(msgAt(1000, `{}`), State{})

	st, alert := m.Check(at(1000).Add(2*day), st)
	require.NotNil(t, alert)

	for i := 3; i < 10; i++ {
		var again *Alert
		st, again = m.Check(at(1000).Add(time.Duration(i)*day), st)
		assert.Nil(t, again)
	}
}

func TestMonitor_CheckThreshold(t *testing.T) {
	m := newMonitor(t, Config{Message: "gap", WindowDurationDays: NewDays(2)})
	const T = int64(1_700_000_000)
	st := m.OnMessage(msgAt(T, `{}`), State{})

	_, alert := m.Check(at(T).Add(2*day-time.Second), st)
	assert.Nil(t, alert)

	_, alert = m.Check(at(T).Add(2*day), st)
	assert.Nil(t, alert, "exactly at the window edge is not a breach")

	next, alert := m.Check(at(T).Add(2*day+time.Second), st)
	require.NotNil(t, alert)
	assert.Equal(t, T, alert.GapStartedAt)
	assert.Equal(t, "gap", alert.Message)
	assert.True(t, next.IsAlerted())
	assert.Equal(t, at(T).Add(2*day+time.Second).Unix(), next.AlertedAt)
}

func TestMonitor_FractionalWindow(t *testing.T) {
	m := newMonitor(t, Config{Message: "gap", WindowDurationDays: NewDays(0.5)})
	st := m.OnMessage(msgAt(1000, `{}`), State{})

	_, alert := m.Check(at(1000).Add(11*time.Hour), st)
	assert.Nil(t, alert)

	_, alert = m.Check(at(1000).Add(13*time.Hour), st)
	assert.NotNil(t, alert)
}

func TestMonitor_NeverAlertsWithoutData(t *testing.T) {
	m := newMonitor(t, Config{Message: "gap", WindowDurationDays: NewDays(1), ValuePath: "temp"})

	st := m.OnMessage(msgAt(10, `{"humidity": 3}`), State{})
	for _, now := range []int64{0, 90000, 1_000_000, 1 << 40} {
		var alert *Alert
		st, alert = m.Check(at(now), st)
		assert.Nil(t, alert)
	}
	assert.False(t, st.HasData())
}

func TestMonitor_EpochZeroCountsAsData(t *testing.T) {
	m := newMonitor(t, Config{Message: "gap", WindowDurationDays: NewDays(1)})

	st := m.OnMessage(msgAt(0, `{}`), State{})
	assert.True(t, st.HasData())
	assert.Zero(t, st.NewestMessageCreatedAt)

	_, alert := m.Check(at(10*86400), st)
	require.NotNil(t, alert)
	assert.Zero(t, alert.GapStartedAt)
}

func TestState_LegacyZeroMeansNoData(t *testing.T) {
	m := newMonitor(t, Config{Message: "gap", WindowDurationDays: NewDays(1)})

	_, alert := m.Check(at(10*86400), State{NewestMessageCreatedAt: 0})
	assert.Nil(t, alert)

	_, alert = m.Check(at(10*86400), State{NewestMessageCreatedAt: 5})
	assert.NotNil(t, alert)
}

func TestScenario_AlertThenSuppress(t *testing.T) {
	m := newMonitor(t, Config{Message: "No data!", WindowDurationDays: NewDays(1)})

	st := m.OnMessage(msgAt(0, `{"v": 1}`), State{})

	st, alert := m.Check(at(90000), st)
	require.NotNil(t, alert)
	assert.Equal(t, Alert{Message: "No data!", GapStartedAt: 0}, *alert)

	_, alert = m.Check(at(100000), st)
	assert.Nil(t, alert)
}

func TestScenario_NewDataClosesGap(t *testing.T) {
	m := newMonitor(t, Config{Message: "No data!", WindowDurationDays: NewDays(1)})

	st := m.OnMessage(msgAt(0, `{}`), State{})
	st, alert := m.Check(at(90000), st)
	require.NotNil(t, alert)

	st = m.OnMessage(msgAt(95000, `{}`), st)
	assert.False(t, st.IsAlerted())
	assert.Zero(t, st.AlertedAt)

	st, alert = m.Check(at(100000), st)
	assert.Nil(t, alert)
	assert.False(t, st.IsAlerted())
}

func TestScenario_ValuePathAbsent(t *testing.T) {
	m := newMonitor(t, Config{Message: "No data!", WindowDurationDays: NewDays(1), ValuePath: "$.reading.value"})

	st := m.OnMessage(msgAt(500, `{"reading": {"unit": "C"}}`), State{})
	assert.Zero(t, st.NewestMessageCreatedAt)

	st = m.OnMessage(msgAt(600, `{"reading": {"value": 21.5}}`), st)
	assert.Equal(t, int64(600), st.NewestMessageCreatedAt)
}

func TestMonitor_QualifiesPresence(t *testing.T) {
	m := newMonitor(t, Config{Message: "gap", WindowDurationDays: NewDays(1), ValuePath: "data.v"})

	cases := []struct {
		payload string
		want    bool
	}{
		{`{"data": {"v": 0}}`, true},
		{`{"data": {"v": "x"}}`, true},
		{`{"data": {"v": true}}`, true},
		{`{"data": {"v": [1]}}`, true},
		{`{"data": {"v": null}}`, false},
		{`{"data": {"v": ""}}`, false},
		{`{"data": {"v": "   "}}`, false},
		{`{"data": {"v": false}}`, false},
		{`{"data": {"v": []}}`, false},
		{`{"data": {"v": {}}}`, false},
		{`{"data": {}}`, false},
		{`not json at all`, false},
		{``, false},
	}

	for _, tc := range cases {
		t.Run(tc.payload, func(t *testing.T) {
			assert.Equal(t, tc.want, m.Qualifies(Message{Payload: []byte(tc.payload)}))
		})
	}
}

func TestMonitor_QualifiesJSONPathForms(t *testing.T) {
	payload := []byte(`{"readings": [{"unit": "C"}, {"value": 21.5}], "data": {"v": 1}}`)

	cases := []struct {
		path string
		want bool
	}{
		{"data.v", true},
		{"$.data.v", true},
		{"$['data']['v']", true},
		{"$.readings[1].value", true},
		{"$['readings'][1]['value']", true},
		{"$.readings[*].value", true},
		{"$..value", true},
		{"readings[0].value", false},
		{"$.readings[0].unit", true},
		{"$.readings[5].value", false},
		{"$.missing", false},
		{"$", true},
	}

	for _, tc := range cases {
		t.Run(tc.path, func(t *testing.T) {
			m := newMonitor(t, Config{Message: "gap", WindowDurationDays: NewDays(1), ValuePath: tc.path})
			assert.Equal(t, tc.want, m.Qualifies(Message{Payload: payload}))
		})
	}
}

func TestJSONPathQuery_FirstMatchWins(t *testing.T) {
	v, found, err := JSONPathQuery{}.Lookup([]byte(`{"readings": [{"value": ""}, {"value": 7}]}`), "$.readings[*].value")
	require.NoError(t, err)
	assert.True(t, found)
	assert.Equal(t, "", v)
}

func TestJSONPathQuery_Errors(t *testing.T) {
	_, _, err := JSONPathQuery{}.Lookup([]byte(`{`), "$.a")
	assert.ErrorIs(t, err, ErrInvalidPayload)

	_, _, err = JSONPathQuery{}.Lookup([]byte(`{}`), "$.a[")
	assert.ErrorIs(t, err, ErrInvalidValuePath)
}

type failingQuery struct{}

func (failingQuery) Lookup([]byte, string) (interface{}, bool, error) {
	return "value", true, errors.New("boom")
}

func TestMonitor_QueryErrorMeansAbsent(t *testing.T) {
	m, err := New(Config{Message: "gap", WindowDurationDays: NewDays(1), ValuePath: "x"}, WithPathQuery(failingQuery{}))
	require.NoError(t, err)

	st := m.OnMessage(msgAt(100, `{"x": 1}`), State{})
	assert.Zero(t, st.NewestMessageCreatedAt)
}

func TestMonitor_NoValuePathAcceptsAnything(t *testing.T) {
	m := newMonitor(t, Config{Message: "gap", WindowDurationDays: NewDays(1)})
	st := m.OnMessage(msgAt(100, `garbage`), State{})
	assert.Equal(t, int64(100), st.NewestMessageCreatedAt)
}

func TestMonitor_SubSecondTimestampsTruncate(t *testing.T) {
	m := newMonitor(t, Config{Message: "gap", WindowDurationDays: NewDays(1)})

	st := m.OnMessage(Message{Payload: []byte(`{}`), CreatedAt: time.Unix(100, 900_000_000)}, State{})
	assert.Equal(t, int64(100), st.NewestMessageCreatedAt)

	st = m.OnMessage(Message{Payload: []byte(`{}`), CreatedAt: time.Unix(100, 999_000_000)}, st)
	assert.Equal(t, int64(100), st.NewestMessageCreatedAt)
}
