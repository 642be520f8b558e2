package ingest

import (
	"time"

	"GapWatchAPI/internal/models"
	"GapWatchAPI/internal/mqtt"
)

// MQTTSource adapts the shared broker client. Closing it only drops its
// subscriptions; the connection belongs to the caller.
type MQTTSource struct {
	client *mqtt.Client
}

func NewMQTTSource(client *mqtt.Client) *MQTTSource {
	return &MQTTSource{client: client}
}

func (s *MQTTSource) Kind() string { return models.SourceMQTT }

func (s *MQTTSource) Subscribe(topic string, h Handler) error {
	return s.client.Subscribe(topic, func(t string, payload []byte, receivedAt time.Time) error {
		h(models.InboundMessage{
			SourceKind: models.SourceMQTT,
			Topic:      t,
			Payload:    payload,
			CreatedAt:  receivedAt,
		})
		return nil
	})
}

func (s *MQTTSource) Unsubscribe(topic string) error {
	return s.client.Unsubscribe(topic)
}

func (s *MQTTSource) Healthy() bool {
	return s.client.Health().Connected
}

func (s *MQTTSource) Close() error {
	return nil
}
