package kafka

import (
	"context"
	"errors"
	"io"
	"sync"
	"time"

	"github.com/Gobusters/ectologger"
	"github.com/segmentio/kafka-go"

	"github.com/Ramsey-B/clover/pkg/metrics"
	"github.com/Ramsey-B/clover/pkg/processor"
	"github.com/Ramsey-B/clover/pkg/tracing"
)

// Handler turns one raw payload into an outcome. A nil error means the offset may be committed.
type Handler interface {
	Handle(ctx context.Context, payload []byte) (processor.Outcome, error)
}

// Reader is the subset of *kafka.Reader the consumer needs
type Reader interface {
	FetchMessage(ctx context.Context) (kafka.Message, error)
	CommitMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

// ConsumerConfig holds Kafka consumer configuration
type ConsumerConfig struct {
	Brokers        []string
	Topic          string
	ConsumerGroup  string
	ProcessTimeout time.Duration
}

// Consumer fetches messages one at a time and hands them to a Handler in fetch order.
type Consumer struct {
	reader     Reader
	handler    Handler
	deadLetter DeadLetterPublisher
	logger     ectologger.Logger
	timeout    time.Duration
	retryMin   time.Duration
	retryMax   time.Duration
	wg         sync.WaitGroup
	cancel     context.CancelFunc
}

// NewConsumer creates a consumer backed by a kafka-go group reader
func NewConsumer(cfg ConsumerConfig, handler Handler, deadLetter DeadLetterPublisher, logger ectologger.Logger) *Consumer {
	reader := kafka.NewReader(kafka.ReaderConfig{
		Brokers:     cfg.Brokers,
		Topic:       cfg.Topic,
		GroupID:     cfg.ConsumerGroup,
		MinBytes:    10e3, // 10KB
		MaxBytes:    10e6, // 10MB
		MaxWait:     500 * time.Millisecond,
		StartOffset: kafka.FirstOffset,
		// commits are explicit and synchronous
		CommitInterval: 0,
	})
	return NewConsumerWithReader(reader, cfg.ProcessTimeout, handler, deadLetter, logger)
}

// NewConsumerWithReader creates a consumer over an existing reader
func NewConsumerWithReader(reader Reader, timeout time.Duration, handler Handler, deadLetter DeadLetterPublisher, logger ectologger.Logger) *Consumer {
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	return &Consumer{
		reader:     reader,
		handler:    handler,
		deadLetter: deadLetter,
		logger:     logger,
		timeout:    timeout,
		retryMin:   100 * time.Millisecond,
		retryMax:   5 * time.Second,
	}
}

// Start begins consuming in the background
func (c *Consumer) Start(ctx context.Context) error {
	ctx, cancel := context.WithCancel(ctx)
	c.cancel = cancel

	c.wg.Add(1)
	go c.consumeLoop(ctx)

	c.logger.WithContext(ctx).Info("Kafka consumer started")
	return nil
}

// Stop cancels fetching, waits for the in-flight message and closes the reader
func (c *Consumer) Stop() error {
	if c.cancel != nil {
		c.cancel()
	}
	c.wg.Wait()
	return c.reader.Close()
}

// Run consumes until ctx is cancelled. The message in flight at cancellation is finished first.
// A failed message is retried in place: committing a later offset would acknowledge it.
func (c *Consumer) Run(ctx context.Context) {
	backoff := c.retryMin
	for {
		if ctx.Err() != nil {
			c.logger.WithContext(ctx).Info("Consumer loop stopping")
			return
		}

		msg, err := c.reader.FetchMessage(ctx)
		if err != nil {
			if errors.Is(err, context.Canceled) || errors.Is(err, io.EOF) || ctx.Err() != nil {
				c.logger.WithContext(ctx).Info("Consumer loop stopping")
				return
			}
			metrics.FetchErrorsTotal.Inc()
			c.logger.WithContext(ctx).WithError(err).WithField("retry_in", backoff.String()).Error("Failed to fetch message")
			if !c.wait(ctx, backoff) {
				return
			}
			backoff = min(backoff*2, c.retryMax)
			continue
		}
		backoff = c.retryMin

		c.settle(ctx, msg)
	}
}

// wait sleeps for d and reports false if ctx is cancelled first.
func (c *Consumer) wait(ctx context.Context, d time.Duration) bool {
	select {
	case <-ctx.Done():
		return false
	case <-time.After(d):
		return true
	}
}

// settle handles msg until it is committed, dead-lettered or skipped, or ctx is cancelled.
func (c *Consumer) settle(ctx context.Context, msg kafka.Message) {
	backoff := c.retryMin
	for {
		procCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), c.timeout)
		settled := c.processMessage(procCtx, msg)
		cancel()
		if settled {
			return
		}

		if !c.wait(ctx, backoff) {
			return
		}
		backoff = min(backoff*2, c.retryMax)
	}
}

func (c *Consumer) consumeLoop(ctx context.Context) {
	defer c.wg.Done()
	c.Run(ctx)
}

// processMessage reports false when msg should be handled again.
func (c *Consumer) processMessage(ctx context.Context, msg kafka.Message) bool {
	headers := make(map[string]string, len(msg.Headers))
	for _, h := range msg.Headers {
		headers[h.Key] = string(h.Value)
	}
	ctx = tracing.Extract(ctx, headers)

	ctx, span := tracing.StartSpan(ctx, "kafka.Consumer.processMessage")
	defer span.End()

	log := c.logger.WithContext(ctx).WithFields(map[string]any{
		"topic":     msg.Topic,
		"partition": msg.Partition,
		"offset":    msg.Offset,
		"trace_id":  tracing.GetTraceID(ctx),
	})

	outcome, err := c.handler.Handle(ctx, msg.Value)
	switch {
	case err == nil:
		// committed and ignored messages are both acknowledged
	case outcome == processor.OutcomeRejected && c.deadLetter != nil:
		if dlErr := c.deadLetter.Publish(ctx, msg, err); dlErr != nil {
			log.WithError(dlErr).Error("Failed to dead-letter message (not committing)")
			return false
		}
	case outcome == processor.OutcomeRejected:
		// no handling can fix it; the next commit moves past it
		metrics.SkippedTotal.Inc()
		log.WithError(err).Error("Skipping malformed message with no dead-letter topic (not committing)")
		return true
	default:
		log.WithError(err).WithField("outcome", outcome.String()).Error("Failed to process message (not committing)")
		return false
	}

	if err := c.reader.CommitMessages(ctx, msg); err != nil {
		log.WithError(err).Error("Failed to commit message")
	}
	return true
}
