package downlink

import (
	"context"
	"sync"
	"time"

	"github.com/segmentio/kafka-go"

	"orbitcam/internal/models"
)

type messageWriter interface {
	WriteMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

// WarningLogger receives delivery failures reported after Publish returned.
type WarningLogger interface {
	Warning(format string, v ...interface{})
}

// KafkaPublisher writes observations keyed by run ID. The writer is
// asynchronous, so delivery failures surface through the logger rather
// than from Publish.
type KafkaPublisher struct {
	writer messageWriter
	logger WarningLogger

	mu     sync.Mutex
	failed uint64
}

func NewKafkaPublisher(brokers []string, topic string, logger WarningLogger) *KafkaPublisher {
	p := &KafkaPublisher{logger: logger}
	p.writer = &kafka.Writer{
		Addr:         kafka.TCP(brokers...),
		Topic:        topic,
		Balancer:     &kafka.Hash{},
		BatchSize:    10,
		BatchTimeout: 10 * time.Millisecond,
		Async:        true,
		RequiredAcks: kafka.RequireOne,
		Completion:   p.completed,
	}
	return p
}

func (p *KafkaPublisher) Publish(ctx context.Context, obs models.Observation) error {
	data, err := encode(obs)
	if err != nil {
		return err
	}
	return p.writer.WriteMessages(ctx, kafka.Message{
		Key:   []byte(obs.RunID),
		Value: data,
		Time:  obs.Timestamp,
	})
}

// completed logs one warning per undelivered message.
func (p *KafkaPublisher) completed(messages []kafka.Message, err error) {
	if err == nil {
		return
	}
	p.mu.Lock()
	p.failed += uint64(len(messages))
	p.mu.Unlock()

	for _, msg := range messages {
		p.logger.Warning("Kafka delivery failed for observation at %s: %v", msg.Time.Format(time.RFC3339), err)
	}
}

// Failed returns the number of messages that could not be delivered.
func (p *KafkaPublisher) Failed() uint64 {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.failed
}

// Close flushes pending messages.
func (p *KafkaPublisher) Close() error {
	return p.writer.Close()
}
