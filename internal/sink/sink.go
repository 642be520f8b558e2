// Package sink delivers alert events to external consumers.
package sink

import (
	"context"

	"GapWatchAPI/internal/models"
)

// Sink publishes raised and resolved alerts somewhere outside the service.
type Sink interface {
	Name() string
	Publish(ctx context.Context, ev models.AlertEvent) error
}
