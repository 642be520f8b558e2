// Package gap implements the no-data rule: track the newest qualifying
// message of a stream and raise a single alert once the stream has been
// quiet for longer than the configured window.
//
// Monitor methods are pure. Callers load State before each call, store the
// returned State afterwards, and must not run two calls against the same
// State concurrently.
package gap

import "time"

// Message is one incoming stream item.
type Message struct {
	Payload   []byte
	CreatedAt time.Time
}

type Monitor struct {
	cfg   Config
	query PathQuery
}

type Option func(*Monitor)

// WithPathQuery replaces the default JSONPath lookup.
func WithPathQuery(q PathQuery) Option {
	return func(m *Monitor) {
		m.query = q
	}
}

// New validates cfg and returns a Monitor bound to it.
func New(cfg Config, opts ...Option) (*Monitor, error) {
	if err := Validate(cfg); err != nil {
		return nil, err
	}

	m := &Monitor{
		cfg:   cfg,
		query: JSONPathQuery{},
	}
	for _, opt := range opts {
		opt(m)
	}
	return m, nil
}

func (m *Monitor) Config() Config {
	return m.cfg
}

// Qualifies reports whether msg counts as data for this monitor. Lookup
// errors are treated as an absent value.
func (m *Monitor) Qualifies(msg Message) bool {
	if m.cfg.ValuePath == "" {
		return true
	}

	v, found, err := m.query.Lookup(msg.Payload, m.cfg.ValuePath)
	if err != nil || !found {
		return false
	}
	return Present(v)
}

// OnMessage records msg if it qualifies and is strictly newer than anything
// seen so far. The first qualifying message is always recorded, whatever its
// timestamp. It never emits an alert.
func (m *Monitor) OnMessage(msg Message, st State) State {
	if !m.Qualifies(msg) {
		return st
	}

	createdAt := msg.CreatedAt.Unix()
	if !st.HasData() || createdAt > st.NewestMessageCreatedAt {
		st.NewestMessageCreatedAt = createdAt
		st.Seen = true
		st = st.clearAlert()
	}
	return st
}

// Check evaluates the gap at now. It returns an alert only on the first
// check that finds the window exceeded; later checks stay silent until
// OnMessage closes the gap.
func (m *Monitor) Check(now time.Time, st State) (State, *Alert) {
	if !st.HasData() {
		return st, nil
	}

	windowStart := now.Add(-m.cfg.Window())
	if !time.Unix(st.NewestMessageCreatedAt, 0).Before(windowStart) {
		return st, nil
	}

	if st.IsAlerted() {
		return st, nil
	}

	st = st.markAlerted(now)
	return st, &Alert{
		Message:      m.cfg.Message,
		GapStartedAt: st.NewestMessageCreatedAt,
	}
}
