package sink

import (
	"context"
	"encoding/json"
	"fmt"

	"GapWatchAPI/internal/models"
)

// Publisher is satisfied by *nats.Conn.
type Publisher interface {
	Publish(subject string, data []byte) error
}

type NATSSink struct {
	conn    Publisher
	subject string
}

func NewNATSSink(conn Publisher, subject string) *NATSSink {
	return &NATSSink{conn: conn, subject: subject}
}

func (s *NATSSink) Name() string { return "nats" }

// Owns reports whether subject is the alert subject.
func (s *NATSSink) Owns(subject string) bool {
	return subject == s.subject
}

func (s *NATSSink) Publish(ctx context.Context, ev models.AlertEvent) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	data, err := json.Marshal(ev)
	if err != nil {
		return fmt.Errorf("failed to marshal alert event: %w", err)
	}

	if err := s.conn.Publish(s.subject, data); err != nil {
		return fmt.Errorf("failed to publish alert to %s: %w", s.subject, err)
	}
	return nil
}
