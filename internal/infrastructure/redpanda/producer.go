// Package redpanda provides Kafka-compatible streaming of pharmacy lifecycle
// events with franz-go.
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

// ProducerConfig configures the lifecycle event producer
type ProducerConfig struct {
	Brokers  []string
	ClientID string
	Linger   time.Duration
	// Compression is one of lz4, snappy, gzip, zstd or none.
	Compression string
	// Acks is "all", "leader" or "none". Anything but "all" turns off
	// idempotent writes, which franz-go requires.
	Acks string
	// DeliveryTimeout bounds how long a record may wait for acknowledgment.
	DeliveryTimeout time.Duration
}

// DefaultProducerConfig suits the low, bursty volume of a pharmacy demo.
func DefaultProducerConfig(brokers []string) ProducerConfig {
	return ProducerConfig{
		Brokers:         brokers,
		ClientID:        "pharma-api",
		Linger:          5 * time.Millisecond,
		Compression:     "lz4",
		Acks:            "all",
		DeliveryTimeout: 10 * time.Second,
	}
}

var codecs = map[string]kgo.CompressionCodec{
	"lz4":    kgo.Lz4Compression(),
	"snappy": kgo.SnappyCompression(),
	"gzip":   kgo.GzipCompression(),
	"zstd":   kgo.ZstdCompression(),
	"none":   kgo.NoCompression(),
}

func (c ProducerConfig) options() ([]kgo.Opt, error) {
	opts := []kgo.Opt{
		kgo.SeedBrokers(c.Brokers...),
		kgo.ProducerLinger(c.Linger),
		// The publisher's worker pool owns retries.
		kgo.RecordRetries(1),
	}
	if c.ClientID != "" {
		opts = append(opts, kgo.ClientID(c.ClientID))
	}
	if c.DeliveryTimeout > 0 {
		opts = append(opts, kgo.RecordDeliveryTimeout(c.DeliveryTimeout))
	}

	switch c.Acks {
	case "", "all":
		opts = append(opts, kgo.RequiredAcks(kgo.AllISRAcks()))
	case "leader":
		opts = append(opts, kgo.RequiredAcks(kgo.LeaderAck()), kgo.DisableIdempotentWrite())
	case "none":
		opts = append(opts, kgo.RequiredAcks(kgo.NoAck()), kgo.DisableIdempotentWrite())
	default:
		return nil, fmt.Errorf("unknown acks %q", c.Acks)
	}

	if c.Compression != "" {
		codec, ok := codecs[c.Compression]
		if !ok {
			return nil, fmt.Errorf("unknown compression %q", c.Compression)
		}
		opts = append(opts, kgo.ProducerBatchCompression(codec))
	}
	return opts, nil
}

// Record is one outgoing lifecycle message
type Record struct {
	Topic   string
	Key     string
	Value   []byte
	Headers map[string]string
}

func (r Record) kgoRecord() *kgo.Record {
	out := &kgo.Record{
		Topic:   r.Topic,
		Key:     []byte(r.Key),
		Value:   r.Value,
		Headers: make([]kgo.RecordHeader, 0, len(r.Headers)+1),
	}
	for k, v := range r.Headers {
		out.Headers = append(out.Headers, kgo.RecordHeader{Key: k, Value: []byte(v)})
	}
	return out
}

// Producer writes records synchronously: Produce returns once the brokers
// acknowledge.
type Producer struct {
	client *kgo.Client
	logger *zap.Logger
	tracer trace.Tracer

	sent   atomic.Int64
	bytes  atomic.Int64
	failed atomic.Int64
}

func NewProducer(cfg ProducerConfig, logger *zap.Logger) (*Producer, error) {
	if len(cfg.Brokers) == 0 {
		return nil, errors.New("at least one broker is required")
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	opts, err := cfg.options()
	if err != nil {
		return nil, err
	}
	client, err := kgo.NewClient(opts...)
	if err != nil {
		return nil, fmt.Errorf("create producer client: %w", err)
	}
	return &Producer{
		client: client,
		logger: logger,
		tracer: otel.Tracer("pharmasim/redpanda"),
	}, nil
}

// Produce sends rec and waits for its acknowledgment or for ctx. The span
// context of ctx travels in the record headers.
func (p *Producer) Produce(ctx context.Context, rec Record) error {
	ctx, span := p.tracer.Start(ctx, "publish "+rec.Topic,
		trace.WithSpanKind(trace.SpanKindProducer),
		trace.WithAttributes(
			attribute.String("messaging.destination.name", rec.Topic),
			attribute.String("messaging.kafka.message.key", rec.Key),
			attribute.Int("messaging.message.body.size", len(rec.Value)),
		))
	defer span.End()

	out := rec.kgoRecord()
	injectTraceHeaders(ctx, out)

	acked, err := p.client.ProduceSync(ctx, out).First()
	if err != nil {
		p.failed.Add(1)
		span.RecordError(err)
		return fmt.Errorf("produce to %s: %w", rec.Topic, err)
	}
	p.sent.Add(1)
	p.bytes.Add(int64(len(acked.Value)))
	p.logger.Debug("record acknowledged",
		zap.String("topic", acked.Topic),
		zap.Int32("partition", acked.Partition),
		zap.Int64("offset", acked.Offset))
	return nil
}

// Close flushes buffered records, then closes the client.
func (p *Producer) Close(ctx context.Context) error {
	defer p.client.Close()
	if err := p.client.Flush(ctx); err != nil {
		return fmt.Errorf("flush on close: %w", err)
	}
	return nil
}

// ProducerStats counts acknowledged and failed records
type ProducerStats struct {
	MessagesSent int64
	BytesSent    int64
	ErrorCount   int64
}

func (p *Producer) Stats() ProducerStats {
	return ProducerStats{
		MessagesSent: p.sent.Load(),
		BytesSent:    p.bytes.Load(),
		ErrorCount:   p.failed.Load(),
	}
}
