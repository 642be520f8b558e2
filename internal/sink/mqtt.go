package sink

import (
	"context"
	"strings"

	"GapWatchAPI/internal/models"
	"GapWatchAPI/internal/mqtt"
)

// JSONPublisher is satisfied by *mqtt.Client.
type JSONPublisher interface {
	PublishJSON(topic string, data interface{}) error
}

// MQTTSink publishes each event to <prefix>/<monitor_id>.
type MQTTSink struct {
	pub    JSONPublisher
	prefix string
}

func NewMQTTSink(pub JSONPublisher, prefix string) *MQTTSink {
	return &MQTTSink{pub: pub, prefix: strings.TrimRight(prefix, "/")}
}

func (s *MQTTSink) Name() string { return "mqtt" }

func (s *MQTTSink) Topic(monitorID string) string {
	return s.prefix + "/" + monitorID
}

// Owns reports whether topic is one this sink publishes alerts on.
func (s *MQTTSink) Owns(topic string) bool {
	return mqtt.MatchTopic(s.prefix+"/#", topic)
}

func (s *MQTTSink) Publish(ctx context.Context, ev models.AlertEvent) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	return s.pub.PublishJSON(s.Topic(ev.MonitorID), ev)
}
