package models

import (
	"time"

	"GapWatchAPI/internal/gap"
)

// Alert Constants
const (
	StatusActive   = "ACTIVE"
	StatusResolved = "RESOLVED"
)

// Alert is the stored history record of one no-data alert.
type Alert struct {
	ID           string     `json:"id" db:"id"`
	MonitorID    string     `json:"monitor_id" db:"monitor_id"`
	Message      string     `json:"message" db:"message"`
	GapStartedAt int64      `json:"gap_started_at" db:"gap_started_at"`
	Status       string     `json:"status" db:"status"`
	CreatedAt    time.Time  `json:"created_at" db:"created_at"`
	ResolvedAt   *time.Time `json:"resolved_at,omitempty" db:"resolved_at"`
}

func NewAlert(id, monitorID string, a *gap.Alert, at time.Time) *Alert {
	return &Alert{
		ID:           id,
		MonitorID:    monitorID,
		Message:      a.Message,
		GapStartedAt: a.GapStartedAt,
		Status:       StatusActive,
		CreatedAt:    at,
	}
}

// AlertEvent is the payload published to sinks and websocket clients.
type AlertEvent struct {
	AlertID      string `json:"alert_id"`
	MonitorID    string `json:"monitor_id"`
	MonitorName  string `json:"monitor_name,omitempty"`
	Message      string `json:"message"`
	GapStartedAt int64  `json:"gap_started_at"`
	Status       string `json:"status"`
	At           int64  `json:"at"`
}

// MonitorKey lets websocket clients filter events by monitor.
func (e AlertEvent) MonitorKey() string {
	return e.MonitorID
}

func (a *Alert) Event(monitorName string) AlertEvent {
	at := a.CreatedAt
	if a.Status == StatusResolved && a.ResolvedAt != nil {
		at = *a.ResolvedAt
	}
	return AlertEvent{
		AlertID:      a.ID,
		MonitorID:    a.MonitorID,
		MonitorName:  monitorName,
		Message:      a.Message,
		GapStartedAt: a.GapStartedAt,
		Status:       a.Status,
		At:           at.Unix(),
	}
}
