package ingest

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"GapWatchAPI/internal/config"
	"GapWatchAPI/internal/logger"
	"GapWatchAPI/internal/models"

	"github.com/segmentio/kafka-go"
)

// KafkaSource runs one consumer-group reader per topic. Message time is the
// Kafka record timestamp.
type KafkaSource struct {
	cfg config.KafkaConfig
	log *logger.Logger

	mu      sync.Mutex
	readers map[string]*kafkaReader
	closed  bool
	wg      sync.WaitGroup
	lastErr error
}

type kafkaReader struct {
	reader *kafka.Reader
	cancel context.CancelFunc
}

func NewKafkaSource(cfg config.KafkaConfig, log *logger.Logger) (*KafkaSource, error) {
	if len(cfg.Brokers) == 0 {
		return nil, errors.New("at least one broker is required")
	}
	return &KafkaSource{
		cfg:     cfg,
		log:     log.With("kafka"),
		readers: make(map[string]*kafkaReader),
	}, nil
}

func (s *KafkaSource) Kind() string { return models.SourceKafka }

func (s *KafkaSource) Subscribe(topic string, h Handler) error {
	if topic == "" {
		return errors.New("topic is required")
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return ErrSourceClosed
	}
	if _, ok := s.readers[topic]; ok {
		return nil
	}

	reader := kafka.NewReader(kafka.ReaderConfig{
		Brokers:  s.cfg.Brokers,
		GroupID:  s.cfg.GroupID,
		Topic:    topic,
		MinBytes: s.cfg.MinBytes,
		MaxBytes: s.cfg.MaxBytes,
		MaxWait:  s.cfg.MaxWait,
	})

	ctx, cancel := context.WithCancel(context.Background())
	s.readers[topic] = &kafkaReader{reader: reader, cancel: cancel}

	s.wg.Add(1)
	go s.consume(ctx, topic, reader, h)

	s.log.Info("Consuming topic %s (group %s)", topic, s.cfg.GroupID)
	return nil
}

func (s *KafkaSource) consume(ctx context.Context, topic string, reader *kafka.Reader, h Handler) {
	defer s.wg.Done()

	for {
		msg, err := reader.ReadMessage(ctx)
		if err != nil {
			if ctx.Err() != nil || errors.Is(err, context.Canceled) {
				return
			}
			s.setErr(err)
			s.log.Error("Read failed on topic %s: %v", topic, err)

			select {
			case <-ctx.Done():
				return
			case <-time.After(time.Second):
			}
			continue
		}
		s.setErr(nil)

		h(toInbound(msg))
	}
}

func toInbound(msg kafka.Message) models.InboundMessage {
	createdAt := msg.Time
	if createdAt.IsZero() {
		createdAt = time.Now()
	}
	return models.InboundMessage{
		SourceKind: models.SourceKafka,
		Topic:      msg.Topic,
		Payload:    msg.Value,
		CreatedAt:  createdAt,
	}
}

func (s *KafkaSource) setErr(err error) {
	s.mu.Lock()
	s.lastErr = err
	s.mu.Unlock()
}

func (s *KafkaSource) Unsubscribe(topic string) error {
	s.mu.Lock()
	r, ok := s.readers[topic]
	delete(s.readers, topic)
	s.mu.Unlock()

	if !ok {
		return nil
	}
	r.cancel()
	return r.reader.Close()
}

// Healthy reports false once a read has failed and no read has succeeded
// since.
func (s *KafkaSource) Healthy() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return !s.closed && s.lastErr == nil
}

func (s *KafkaSource) Close() error {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return nil
	}
	s.closed = true
	readers := s.readers
	s.readers = map[string]*kafkaReader{}
	s.mu.Unlock()

	var errs []error
	for topic, r := range readers {
		r.cancel()
		if err := r.reader.Close(); err != nil {
			errs = append(errs, fmt.Errorf("close reader %s: %w", topic, err))
		}
	}
	s.wg.Wait()
	return errors.Join(errs...)
}
