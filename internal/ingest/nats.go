package ingest

import (
	"fmt"
	"sync"
	"time"

	"GapWatchAPI/internal/config"
	"GapWatchAPI/internal/logger"
	"GapWatchAPI/internal/models"

	"github.com/nats-io/nats.go"
)

type NATSSource struct {
	conn *nats.Conn
	log  *logger.Logger

	mu   sync.Mutex
	subs map[string]*nats.Subscription
}

// ConnectNATS dials the configured server, retrying in the background when
// it is not reachable yet.
func ConnectNATS(cfg config.NATSConfig, log *logger.Logger) (*nats.Conn, error) {
	conn, err := nats.Connect(cfg.URL,
		nats.Name("gapwatch"),
		nats.RetryOnFailedConnect(true),
		nats.MaxReconnects(cfg.MaxReconnects),
		nats.ReconnectWait(cfg.ReconnectWait),
		nats.DisconnectErrHandler(func(_ *nats.Conn, err error) {
			if err != nil {
				log.Warn("NATS disconnected: %v", err)
			}
		}),
		nats.ReconnectHandler(func(c *nats.Conn) {
			log.Info("NATS reconnected to %s", c.ConnectedUrl())
		}),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to NATS at %s: %w", cfg.URL, err)
	}

	log.Info("Connected to NATS at %s", cfg.URL)
	return conn, nil
}

func NewNATSSource(conn *nats.Conn, log *logger.Logger) *NATSSource {
	return &NATSSource{
		conn: conn,
		log:  log.With("nats"),
		subs: make(map[string]*nats.Subscription),
	}
}

func (s *NATSSource) Kind() string { return models.SourceNATS }

func (s *NATSSource) Subscribe(subject string, h Handler) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.subs == nil {
		return ErrSourceClosed
	}
	if _, ok := s.subs[subject]; ok {
		return nil
	}

	sub, err := s.conn.Subscribe(subject, func(msg *nats.Msg) {
		h(models.InboundMessage{
			SourceKind: models.SourceNATS,
			Topic:      msg.Subject,
			Payload:    msg.Data,
			CreatedAt:  time.Now(),
		})
	})
	if err != nil {
		return fmt.Errorf("subscribe failed for subject %s: %w", subject, err)
	}

	s.subs[subject] = sub
	s.log.Info("Subscribed to '%s'", subject)
	return nil
}

func (s *NATSSource) Unsubscribe(subject string) error {
	s.mu.Lock()
	sub, ok := s.subs[subject]
	delete(s.subs, subject)
	s.mu.Unlock()

	if !ok {
		return nil
	}
	return sub.Unsubscribe()
}

func (s *NATSSource) Healthy() bool {
	return s.conn.IsConnected()
}

// Close drains subscriptions. The connection is closed by its owner.
func (s *NATSSource) Close() error {
	s.mu.Lock()
	subs := s.subs
	s.subs = nil
	s.mu.Unlock()

	for subject, sub := range subs {
		if err := sub.Unsubscribe(); err != nil {
			s.log.Warn("Failed to unsubscribe from '%s': %v", subject, err)
		}
	}
	return nil
}
