// internal/models/models.go

package models

import (
	"encoding/json"
	"time"

	"GapWatchAPI/internal/gap"
)

// Source kinds a monitor can be bound to.
const (
	SourceMQTT  = "mqtt"
	SourceNATS  = "nats"
	SourceKafka = "kafka"
	SourceHTTP  = "http"
)

func ValidSourceKind(kind string) bool {
	switch kind {
	case SourceMQTT, SourceNATS, SourceKafka, SourceHTTP:
		return true
	}
	return false
}

type Monitor struct {
	ID          string     `json:"id" yaml:"id" db:"id"`
	Name        string     `json:"name" yaml:"name" db:"name"`
	Description string     `json:"description,omitempty" yaml:"description,omitempty" db:"description"`
	SourceKind  string     `json:"source_kind" yaml:"source_kind" db:"source_kind"`
	SourceTopic string     `json:"source_topic,omitempty" yaml:"source_topic,omitempty" db:"source_topic"`
	Config      gap.Config `json:"config" yaml:"config" db:"config"`
	Enabled     bool       `json:"enabled" yaml:"enabled" db:"enabled"`
	CreatedAt   time.Time  `json:"created_at" yaml:"-" db:"created_at"`
	UpdatedAt   time.Time  `json:"updated_at" yaml:"-" db:"updated_at"`
}

// Binding identifies the stream a monitor listens to.
func (m *Monitor) Binding() Binding {
	return Binding{Kind: m.SourceKind, Topic: m.SourceTopic}
}

type Binding struct {
	Kind  string
	Topic string
}

func (b Binding) String() string {
	return b.Kind + ":" + b.Topic
}

// CreateMonitorRequest is also the entry format of the monitors seed file.
type CreateMonitorRequest struct {
	ID          string      `json:"id" yaml:"id"`
	Name        string      `json:"name" yaml:"name"`
	Description string      `json:"description" yaml:"description"`
	SourceKind  string      `json:"source_kind" yaml:"source_kind"`
	SourceTopic string      `json:"source_topic" yaml:"source_topic"`
	Config      *gap.Config `json:"config" yaml:"config"`
	Enabled     *bool       `json:"enabled" yaml:"enabled"`
}

type UpdateMonitorRequest struct {
	Name        *string     `json:"name"`
	Description *string     `json:"description"`
	SourceKind  *string     `json:"source_kind"`
	SourceTopic *string     `json:"source_topic"`
	Config      *gap.Config `json:"config"`
	Enabled     *bool       `json:"enabled"`
}

// MonitorStatus is the read model served by the status endpoint.
type MonitorStatus struct {
	Monitor      *Monitor   `json:"monitor"`
	State        gap.State  `json:"state"`
	HasData      bool       `json:"has_data"`
	Alerted      bool       `json:"alerted"`
	LastDataAt   *time.Time `json:"last_data_at,omitempty"`
	GapSeconds   int64      `json:"gap_seconds"`
	WindowEndsAt *time.Time `json:"window_ends_at,omitempty"`
}

// InboundMessage is one payload delivered by a source.
type InboundMessage struct {
	SourceKind string          `json:"source_kind"`
	Topic      string          `json:"topic"`
	Payload    json.RawMessage `json:"payload"`
	CreatedAt  time.Time       `json:"created_at"`
}

func (m InboundMessage) GapMessage() gap.Message {
	return gap.Message{Payload: m.Payload, CreatedAt: m.CreatedAt}
}

type HealthResponse struct {
	Status    string    `json:"status"`
	Timestamp time.Time `json:"timestamp"`
	Services  struct {
		Database bool            `json:"database"`
		State    bool            `json:"state"`
		Sources  map[string]bool `json:"sources"`
	} `json:"services"`
}
