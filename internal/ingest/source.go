// Package ingest subscribes to the message streams monitors are bound to
// and forwards every delivered message to the monitors of that stream.
package ingest

import (
	"errors"

	"GapWatchAPI/internal/models"
)

var ErrSourceClosed = errors.New("source is closed")

// Handler receives one message from a subscription. It must not block for
// long; sources call it on their delivery goroutine.
type Handler func(msg models.InboundMessage)

// Source is one transport monitors can be bound to.
type Source interface {
	Kind() string
	Subscribe(topic string, h Handler) error
	Unsubscribe(topic string) error
	Healthy() bool
	Close() error
}
