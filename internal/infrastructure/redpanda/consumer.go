package redpanda

import (
	"context"
	"errors"
	"fmt"
	"sync/atomic"
	"time"

	"github.com/twmb/franz-go/pkg/kgo"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"
)

// ConsumerConfig configures a group consumer of the lifecycle topics
type ConsumerConfig struct {
	Brokers        []string
	GroupID        string
	Topics         []string
	SessionTimeout time.Duration
	// StartOffset applies when the group has no committed offset: "earliest"
	// or "latest". Anything else keeps the client default.
	StartOffset string
}

// DefaultConsumerConfig tails every lifecycle topic from its current end.
func DefaultConsumerConfig(brokers []string) ConsumerConfig {
	return ConsumerConfig{
		Brokers:        brokers,
		GroupID:        "pharmacy-event-monitor",
		Topics:         LifecycleTopics(),
		SessionTimeout: 30 * time.Second,
		StartOffset:    "latest",
	}
}

// MessageHandler processes one record. A non-nil error leaves the record
// uncommitted.
type MessageHandler func(ctx context.Context, msg *ConsumedMessage) error

// ConsumedMessage is a record as seen by a MessageHandler
type ConsumedMessage struct {
	Topic     string
	Partition int32
	Offset    int64
	Key       []byte
	Value     []byte
	Headers   map[string]string
	Timestamp time.Time
}

func newConsumedMessage(r *kgo.Record) *ConsumedMessage {
	headers := make(map[string]string, len(r.Headers))
	for _, h := range r.Headers {
		headers[h.Key] = string(h.Value)
	}
	return &ConsumedMessage{
		Topic:     r.Topic,
		Partition: r.Partition,
		Offset:    r.Offset,
		Key:       r.Key,
		Value:     r.Value,
		Headers:   headers,
		Timestamp: r.Timestamp,
	}
}

// Consumer polls a consumer group and marks a record for commit once its
// handler returns nil.
type Consumer struct {
	client  *kgo.Client
	handle  MessageHandler
	logger  *zap.Logger
	tracer  trace.Tracer
	stop    context.CancelFunc
	stopped chan struct{}

	handled atomic.Int64
	failed  atomic.Int64
}

// NewConsumer joins cfg.GroupID. Polling starts with Start.
func NewConsumer(cfg ConsumerConfig, handler MessageHandler, logger *zap.Logger) (*Consumer, error) {
	if handler == nil {
		return nil, errors.New("message handler is required")
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	opts := []kgo.Opt{
		kgo.SeedBrokers(cfg.Brokers...),
		kgo.ConsumerGroup(cfg.GroupID),
		kgo.ConsumeTopics(cfg.Topics...),
		kgo.AutoCommitMarks(),
		kgo.OnPartitionsAssigned(func(_ context.Context, _ *kgo.Client, assigned map[string][]int32) {
			logger.Info("partitions assigned", zap.Any("partitions", assigned))
		}),
		kgo.OnPartitionsRevoked(func(ctx context.Context, cl *kgo.Client, revoked map[string][]int32) {
			logger.Info("partitions revoked", zap.Any("partitions", revoked))
			if err := cl.CommitMarkedOffsets(ctx); err != nil {
				logger.Warn("commit on revoke failed", zap.Error(err))
			}
		}),
	}
	if cfg.SessionTimeout > 0 {
		opts = append(opts, kgo.SessionTimeout(cfg.SessionTimeout))
	}
	if reset, ok := resetOffset(cfg.StartOffset); ok {
		opts = append(opts, kgo.ConsumeResetOffset(reset))
	}

	client, err := kgo.NewClient(opts...)
	if err != nil {
		return nil, fmt.Errorf("create consumer client: %w", err)
	}
	return &Consumer{
		client:  client,
		handle:  handler,
		logger:  logger.With(zap.String("group", cfg.GroupID)),
		tracer:  otel.Tracer("pharmasim/redpanda"),
		stopped: make(chan struct{}),
	}, nil
}

func resetOffset(start string) (kgo.Offset, bool) {
	switch start {
	case "earliest":
		return kgo.NewOffset().AtStart(), true
	case "latest":
		return kgo.NewOffset().AtEnd(), true
	}
	return kgo.Offset{}, false
}

// Start launches the poll loop
func (c *Consumer) Start() {
	ctx, cancel := context.WithCancel(context.Background())
	c.stop = cancel
	go c.poll(ctx)
}

// Stop ends the poll loop, commits what was handled and closes the client.
func (c *Consumer) Stop(ctx context.Context) error {
	if c.stop != nil {
		c.stop()
		select {
		case <-c.stopped:
		case <-ctx.Done():
			c.client.Close()
			return ctx.Err()
		}
	}
	defer c.client.Close()
	if err := c.client.CommitMarkedOffsets(ctx); err != nil {
		return fmt.Errorf("commit offsets on stop: %w", err)
	}
	return nil
}

func (c *Consumer) poll(ctx context.Context) {
	defer close(c.stopped)
	for {
		fetches := c.client.PollFetches(ctx)
		if ctx.Err() != nil || fetches.IsClientClosed() {
			return
		}
		fetches.EachError(func(topic string, partition int32, err error) {
			c.failed.Add(1)
			c.logger.Error("fetch failed",
				zap.String("topic", topic),
				zap.Int32("partition", partition),
				zap.Error(err))
		})
		fetches.EachRecord(func(r *kgo.Record) {
			c.dispatch(ctx, r)
		})
	}
}

func (c *Consumer) dispatch(ctx context.Context, r *kgo.Record) {
	ctx, span := c.tracer.Start(extractTraceContext(ctx, r), "consume "+r.Topic,
		trace.WithSpanKind(trace.SpanKindConsumer),
		trace.WithAttributes(
			attribute.String("messaging.destination.name", r.Topic),
			attribute.Int64("messaging.kafka.partition", int64(r.Partition)),
			attribute.Int64("messaging.kafka.offset", r.Offset),
		))
	defer span.End()

	if err := c.handle(ctx, newConsumedMessage(r)); err != nil {
		c.failed.Add(1)
		span.RecordError(err)
		c.logger.Error("message handler failed",
			zap.String("topic", r.Topic),
			zap.Int32("partition", r.Partition),
			zap.Int64("offset", r.Offset),
			zap.Error(err))
		return
	}
	c.handled.Add(1)
	c.client.MarkCommitRecords(r)
}

// ConsumerStats counts handled records and failures
type ConsumerStats struct {
	MessagesRead int64
	ErrorCount   int64
}

func (c *Consumer) Stats() ConsumerStats {
	return ConsumerStats{
		MessagesRead: c.handled.Load(),
		ErrorCount:   c.failed.Load(),
	}
}
