package audit

import (
	"context"
	"fmt"
	"slices"
	"sync"
	"time"

	retry "github.com/avast/retry-go/v4"
	"github.com/rs/zerolog"
	"github.com/segmentio/kafka-go"
)

type Config struct {
	Brokers       []string      `envconfig:"AUDIT_KAFKA_BROKERS,optional"`
	Topic         string        `envconfig:"AUDIT_KAFKA_TOPIC,default=orchestrator-decisions"`
	RetryInterval time.Duration `envconfig:"AUDIT_RETRY_INTERVAL,default=10s"`
	QueueSize     int           `envconfig:"AUDIT_QUEUE_SIZE,default=1024"`
}

type MessageWriter interface {
	WriteMessages(ctx context.Context, msgs ...kafka.Message) error
}

func NewKafkaWriter(cfg Config) *kafka.Writer {
	return &kafka.Writer{
		Addr:                   kafka.TCP(cfg.Brokers...),
		Topic:                  cfg.Topic,
		Balancer:               &kafka.Hash{},
		RequiredAcks:           kafka.RequireAll,
		AllowAutoTopicCreation: true,
	}
}

// Sender publishes records in the background. Records that could not be
// written after a few attempts wait in memory for the next flush.
type Sender struct {
	records     chan Record
	writer      MessageWriter
	ttlTicker   *time.Ticker
	unsentGuard *sync.Mutex
	unsent      []kafka.Message
	maxUnsent   int
	logger      zerolog.Logger
}

func NewSender(cfg Config, writer MessageWriter, logger zerolog.Logger) *Sender {
	return &Sender{
		records:     make(chan Record, max(cfg.QueueSize, 1)),
		writer:      writer,
		ttlTicker:   time.NewTicker(cfg.RetryInterval),
		unsentGuard: &sync.Mutex{},
		unsent:      make([]kafka.Message, 0),
		maxUnsent:   max(cfg.QueueSize, 1),
		logger:      logger.With().Str("component", "audit-sender").Logger(),
	}
}

// Publish never blocks the decision path, a full queue drops the record.
func (s *Sender) Publish(record Record) {
	select {
	case s.records <- record:
	default:
		s.logger.Error().Msgf("audit queue is full, dropping record %s", record.ID)
	}
}

func (s *Sender) Run(ctx context.Context) {
	defer s.ttlTicker.Stop()
	for {
		select {
		case <-ctx.Done():
			s.drain(context.WithoutCancel(ctx))
			return
		case <-s.ttlTicker.C:
			s.sendUnsent(ctx)
		case record := <-s.records:
			s.send(ctx, record)
		}
	}
}

func (s *Sender) send(ctx context.Context, record Record) {
	msg, err := toMessage(record)
	if err != nil {
		s.logger.Error().Err(err).Msgf("dropping audit record %s", record.ID)
		return
	}
	err = retry.Do(
		func() error {
			return s.writer.WriteMessages(ctx, msg)
		},
		retry.Context(ctx),
		retry.Attempts(3),
	)
	if err != nil {
		s.logger.Error().Err(err).Msg("failed to publish audit record, put it into unsent queue")
		s.keepUnsent(msg)
	}
}

// keepUnsent queues msg for the next flush. Past maxUnsent the oldest
// records are dropped.
func (s *Sender) keepUnsent(msg kafka.Message) {
	s.unsentGuard.Lock()
	defer s.unsentGuard.Unlock()

	s.unsent = append(s.unsent, msg)
	dropped := len(s.unsent) - s.maxUnsent
	if dropped <= 0 {
		return
	}
	s.unsent = slices.Delete(s.unsent, 0, dropped)
	s.logger.Error().Msgf("unsent audit queue is full, dropped %d oldest records", dropped)
}

func (s *Sender) sendUnsent(ctx context.Context) {
	s.unsentGuard.Lock()
	defer s.unsentGuard.Unlock()

	if len(s.unsent) == 0 {
		return
	}
	err := s.writer.WriteMessages(ctx, s.unsent...)
	if err != nil {
		s.logger.Warn().Err(err).Msgf("failed to publish %d unsent audit records", len(s.unsent))
		return
	}
	s.unsent = s.unsent[:0]
}

// drain flushes what is queued when the sender stops.
func (s *Sender) drain(ctx context.Context) {
	for {
		select {
		case record := <-s.records:
			msg, err := toMessage(record)
			if err != nil {
				continue
			}
			s.keepUnsent(msg)
		default:
			s.sendUnsent(ctx)
			return
		}
	}
}

func (s *Sender) Unsent() int {
	s.unsentGuard.Lock()
	defer s.unsentGuard.Unlock()

	return len(s.unsent)
}

func toMessage(record Record) (kafka.Message, error) {
	value, err := record.Marshal()
	if err != nil {
		return kafka.Message{}, fmt.Errorf("failed to marshal audit record: %w", err)
	}
	return kafka.Message{
		Key:   []byte(record.Application),
		Value: value,
		Time:  record.Time,
	}, nil
}

// LogOnly is used when no brokers are configured.
type LogOnly struct {
	logger zerolog.Logger
}

func NewLogOnly(logger zerolog.Logger) *LogOnly {
	return &LogOnly{logger: logger.With().Str("component", "audit").Logger()}
}

func (l *LogOnly) Publish(record Record) {
	l.logger.Debug().Msgf(
		"decision %s: %s of %v in %s is %s", record.ID, record.Operation, record.Hosts, record.Application, record.Outcome,
	)
}
