package mqtt

import (
	"sort"
	"time"

	"GapWatchAPI/internal/config"
)

// HealthStatus is a snapshot of the broker link and its subscriptions.
type HealthStatus struct {
	Broker         string     `json:"broker"`
	Connected      bool       `json:"connected"`
	LastConnected  *time.Time `json:"last_connected,omitempty"`
	LastDisconnect *time.Time `json:"last_disconnect,omitempty"`
	Subscriptions  int        `json:"subscriptions"`
	Patterns       []string   `json:"patterns,omitempty"`
}

func (c *Client) Health() *HealthStatus {
	c.mu.RLock()
	defer c.mu.RUnlock()

	patterns := make([]string, 0, len(c.handlers))
	for p := range c.handlers {
		patterns = append(patterns, p)
	}
	sort.Strings(patterns)

	return &HealthStatus{
		Broker:         config.MQTTBrokerURL(c.cfg),
		Connected:      c.connected && c.client.IsConnected(),
		LastConnected:  timePtr(c.lastConnected),
		LastDisconnect: timePtr(c.lastDisconnect),
		Subscriptions:  len(patterns),
		Patterns:       patterns,
	}
}

func timePtr(t time.Time) *time.Time {
	if t.IsZero() {
		return nil
	}
	return &t
}
