package ingest

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"
	"time"

	"GapWatchAPI/internal/logger"
	"GapWatchAPI/internal/metrics"
	"GapWatchAPI/internal/models"
)

// Receiver applies one message to one monitor.
type Receiver interface {
	HandleMessage(ctx context.Context, monitorID string, msg models.InboundMessage) error
}

// Router keeps one subscription per (kind, topic) pair in use and fans each
// delivered message out to every enabled monitor bound to that pair.
type Router struct {
	log     *logger.Logger
	timeout time.Duration

	syncMu   sync.Mutex
	mu       sync.RWMutex
	receiver Receiver
	sources  map[string]Source
	bindings map[models.Binding][]string
	excludes map[string][]func(topic string) bool
}

func NewRouter(log *logger.Logger, timeout time.Duration) *Router {
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	return &Router{
		log:      log.With("router"),
		timeout:  timeout,
		sources:  make(map[string]Source),
		bindings: make(map[models.Binding][]string),
		excludes: make(map[string][]func(topic string) bool),
	}
}

// SetReceiver wires the monitor service in after construction, since the
// service itself needs the router to resync on changes.
func (r *Router) SetReceiver(recv Receiver) {
	r.mu.Lock()
	r.receiver = recv
	r.mu.Unlock()
}

// Exclude drops messages of kind whose topic matches fn before any monitor
// sees them. Alert topics are excluded so a wide pattern such as "#" cannot
// pick up the service's own alerts and close the gap they report.
func (r *Router) Exclude(kind string, fn func(topic string) bool) {
	r.mu.Lock()
	r.excludes[kind] = append(r.excludes[kind], fn)
	r.mu.Unlock()
}

func (r *Router) Register(src Source) {
	r.mu.Lock()
	r.sources[src.Kind()] = src
	r.mu.Unlock()
	r.log.Info("Registered %s source", src.Kind())
}

// Sync makes the subscriptions match monitors: new pairs are subscribed,
// pairs no enabled monitor uses any more are dropped. HTTP monitors are fed
// directly and never subscribed. Errors for individual pairs are joined; the
// remaining pairs are still applied.
func (r *Router) Sync(monitors []*models.Monitor) error {
	next := make(map[models.Binding][]string)
	for _, m := range monitors {
		if !m.Enabled || m.SourceKind == models.SourceHTTP {
			continue
		}
		b := m.Binding()
		next[b] = append(next[b], m.ID)
	}
	for b := range next {
		sort.Strings(next[b])
	}

	r.syncMu.Lock()
	defer r.syncMu.Unlock()

	// Swap bindings first so messages arriving on a fresh subscription
	// already find their monitors. Subscribing happens outside mu because
	// a broker may deliver before the subscribe call returns.
	r.mu.Lock()
	prev := r.bindings
	r.bindings = next
	sources := make(map[string]Source, len(r.sources))
	for kind, src := range r.sources {
		sources[kind] = src
	}
	r.mu.Unlock()

	var added, removed []models.Binding
	for b := range next {
		if _, had := prev[b]; !had {
			added = append(added, b)
		}
	}
	for b := range prev {
		if _, keep := next[b]; !keep {
			removed = append(removed, b)
		}
	}

	var errs []error

	for _, b := range removed {
		if src, ok := sources[b.Kind]; ok {
			if err := src.Unsubscribe(b.Topic); err != nil {
				errs = append(errs, fmt.Errorf("unsubscribe %s: %w", b, err))
			}
		}
		r.log.Info("Dropped binding %s", b)
	}

	for _, b := range added {
		src, ok := sources[b.Kind]
		if !ok {
			r.log.Warn("No %s source configured, monitors %v will receive nothing", b.Kind, next[b])
			r.unbind(b)
			continue
		}
		binding := b
		if err := src.Subscribe(b.Topic, func(msg models.InboundMessage) {
			r.deliver(binding, msg)
		}); err != nil {
			errs = append(errs, fmt.Errorf("subscribe %s: %w", b, err))
			r.unbind(b)
			continue
		}
		r.log.Info("Bound %s to %d monitor(s)", b, len(next[b]))
	}

	return errors.Join(errs...)
}

func (r *Router) unbind(b models.Binding) {
	r.mu.Lock()
	delete(r.bindings, b)
	r.mu.Unlock()
}

// Bindings returns a copy of the active pairs and their monitor IDs.
func (r *Router) Bindings() map[models.Binding][]string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make(map[models.Binding][]string, len(r.bindings))
	for b, ids := range r.bindings {
		out[b] = append([]string(nil), ids...)
	}
	return out
}

func (r *Router) deliver(b models.Binding, msg models.InboundMessage) {
	metrics.MessagesReceived.WithLabelValues(b.Kind).Inc()

	r.mu.RLock()
	ids := r.bindings[b]
	recv := r.receiver
	excludes := r.excludes[b.Kind]
	r.mu.RUnlock()

	for _, excluded := range excludes {
		if excluded(msg.Topic) {
			r.log.Debug("Ignoring message on alert topic %s", msg.Topic)
			return
		}
	}

	if recv == nil {
		r.log.Warn("Message on %s dropped, no receiver", b)
		return
	}

	for _, id := range ids {
		ctx, cancel := context.WithTimeout(context.Background(), r.timeout)
		if err := recv.HandleMessage(ctx, id, msg); err != nil {
			metrics.MessageErrors.WithLabelValues(b.Kind).Inc()
			r.log.Error("Monitor %s failed to take message from %s: %v", id, b, err)
		}
		cancel()
	}
}

// Health reports each registered source's connectivity.
func (r *Router) Health() map[string]bool {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make(map[string]bool, len(r.sources))
	for kind, src := range r.sources {
		out[kind] = src.Healthy()
	}
	return out
}

func (r *Router) Close() error {
	r.mu.Lock()
	sources := r.sources
	r.sources = map[string]Source{}
	r.bindings = map[models.Binding][]string{}
	r.mu.Unlock()

	var errs []error
	for kind, src := range sources {
		if err := src.Close(); err != nil {
			errs = append(errs, fmt.Errorf("close %s source: %w", kind, err))
		}
	}
	return errors.Join(errs...)
}
