package kafka

import (
	"context"
	"strconv"
	"time"

	"github.com/Gobusters/ectologger"
	"github.com/segmentio/kafka-go"

	"github.com/Ramsey-B/clover/pkg/metrics"
	"github.com/Ramsey-B/clover/pkg/tracing"
)

// Header keys set on dead-lettered messages
const (
	HeaderError           = "x-clover-error"
	HeaderOriginTopic     = "x-clover-origin-topic"
	HeaderOriginPartition = "x-clover-origin-partition"
	HeaderOriginOffset    = "x-clover-origin-offset"
)

// DeadLetterPublisher forwards a message that can never be handled
type DeadLetterPublisher interface {
	Publish(ctx context.Context, msg kafka.Message, cause error) error
}

// Writer is the subset of *kafka.Writer the producer needs
type Writer interface {
	WriteMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

// ProducerConfig holds dead-letter producer configuration
type ProducerConfig struct {
	Brokers      []string
	Topic        string
	BatchSize    int
	BatchTimeout time.Duration
	RequiredAcks int
	Compression  string
}

// DeadLetterProducer publishes rejected envelopes with the rejection reason in headers
type DeadLetterProducer struct {
	writer Writer
	topic  string
	logger ectologger.Logger
}

// NewDeadLetterProducer creates a producer writing to cfg.Topic
func NewDeadLetterProducer(cfg ProducerConfig, logger ectologger.Logger) *DeadLetterProducer {
	compression := kafka.Snappy
	switch cfg.Compression {
	case "gzip":
		compression = kafka.Gzip
	case "lz4":
		compression = kafka.Lz4
	case "zstd":
		compression = kafka.Zstd
	case "none":
		compression = 0
	}

	writer := &kafka.Writer{
		Addr:                   kafka.TCP(cfg.Brokers...),
		Balancer:               &kafka.LeastBytes{},
		BatchSize:              cfg.BatchSize,
		BatchTimeout:           cfg.BatchTimeout,
		RequiredAcks:           kafka.RequiredAcks(cfg.RequiredAcks),
		Compression:            compression,
		AllowAutoTopicCreation: true,
	}
	return NewDeadLetterProducerWithWriter(writer, cfg.Topic, logger)
}

// NewDeadLetterProducerWithWriter creates a producer over an existing writer
func NewDeadLetterProducerWithWriter(writer Writer, topic string, logger ectologger.Logger) *DeadLetterProducer {
	return &DeadLetterProducer{writer: writer, topic: topic, logger: logger}
}

func (p *DeadLetterProducer) Publish(ctx context.Context, msg kafka.Message, cause error) error {
	ctx, span := tracing.StartSpan(ctx, "kafka.DeadLetterProducer.Publish")
	defer span.End()

	reason := ""
	if cause != nil {
		reason = cause.Error()
	}

	out := kafka.Message{
		Topic: p.topic,
		Key:   msg.Key,
		Value: msg.Value,
		Headers: append(append([]kafka.Header(nil), msg.Headers...),
			kafka.Header{Key: HeaderError, Value: []byte(reason)},
			kafka.Header{Key: HeaderOriginTopic, Value: []byte(msg.Topic)},
			kafka.Header{Key: HeaderOriginPartition, Value: []byte(strconv.Itoa(msg.Partition))},
			kafka.Header{Key: HeaderOriginOffset, Value: []byte(strconv.FormatInt(msg.Offset, 10))},
		),
	}

	if err := p.writer.WriteMessages(ctx, out); err != nil {
		p.logger.WithContext(ctx).WithError(err).Error("Failed to publish dead-letter message")
		return err
	}

	metrics.DeadLetteredTotal.Inc()
	p.logger.WithContext(ctx).WithFields(map[string]any{
		"topic":  p.topic,
		"offset": msg.Offset,
		"reason": reason,
	}).Warn("Dead-lettered message")
	return nil
}

// Close closes the producer
func (p *DeadLetterProducer) Close() error {
	return p.writer.Close()
}
