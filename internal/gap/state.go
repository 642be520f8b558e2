package gap

import "time"

// AlertStatus is the per-gap alert flag.
type AlertStatus string

const (
	NotAlerted AlertStatus = "not_alerted"
	Alerted    AlertStatus = "alerted"
)

// State is the persistent memory of one monitor. The zero value is the
// initial state: no data seen, not alerted.
type State struct {
	NewestMessageCreatedAt int64       `json:"newest_message_created_at"`
	Seen                   bool        `json:"seen,omitempty"`
	Status                 AlertStatus `json:"status,omitempty"`
	AlertedAt              int64       `json:"alerted_at,omitempty"`
}

func (s State) IsAlerted() bool {
	return s.Status == Alerted
}

// HasData reports whether a qualifying message was ever recorded. Records
// written without the Seen flag fall back to treating a zero timestamp as
// "never seen".
func (s State) HasData() bool {
	return s.Seen || s.NewestMessageCreatedAt != 0
}

// Gap returns how long it has been since the newest qualifying message.
func (s State) Gap(now time.Time) time.Duration {
	if !s.HasData() {
		return 0
	}
	return now.Sub(time.Unix(s.NewestMessageCreatedAt, 0))
}

func (s State) markAlerted(now time.Time) State {
	s.Status = Alerted
	s.AlertedAt = now.Unix()
	return s
}

func (s State) clearAlert() State {
	s.Status = NotAlerted
	s.AlertedAt = 0
	return s
}

// Alert is what a monitor emits when the gap exceeds its window.
type Alert struct {
	Message      string `json:"message"`
	GapStartedAt int64  `json:"gap_started_at"`
}
