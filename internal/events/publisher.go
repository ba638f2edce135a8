package events

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"go.uber.org/zap"

	"github.com/drfirst/go-pharmasim/internal/domain/pharmacy"
	"github.com/drfirst/go-pharmasim/internal/infrastructure/redpanda"
	"github.com/drfirst/go-pharmasim/internal/observability/metrics"
	"github.com/drfirst/go-pharmasim/pkg/circuitbreaker"
	"github.com/drfirst/go-pharmasim/pkg/workerpool"
)

// Producer sends one record to the broker
type Producer interface {
	Produce(ctx context.Context, rec redpanda.Record) error
}

// Publish results reported in pharmacy_events_published_total
const (
	ResultPublished = "published"
	ResultFailed    = "failed"
	ResultRejected  = "rejected"
	ResultDropped   = "dropped"
)

// TopicFor returns the topic and record key of a lifecycle event.
// Order and shipment events are keyed by order id so one order's history
// lands on one partition. With more than one publish worker, two events for
// the same order may still be produced out of order; set EVENT_WORKERS=1
// when consumers need strict per-order ordering.
func TopicFor(ev pharmacy.LifecycleEvent) (topic, key string, err error) {
	switch ev.Type {
	case pharmacy.EventOrderCreated, pharmacy.EventOrderCompleted:
		return redpanda.TopicOrders, ev.OrderID, nil
	case pharmacy.EventShipmentDispatched, pharmacy.EventShipmentDelivered:
		return redpanda.TopicShipments, ev.OrderID, nil
	case pharmacy.EventLogAppended:
		switch ev.Log {
		case pharmacy.LogCompliance:
			return redpanda.TopicCompliance, ev.Log, nil
		case pharmacy.LogTaxReports:
			return redpanda.TopicTaxReports, ev.Log, nil
		case pharmacy.LogProcessorEvents:
			return redpanda.TopicProcessorEvents, ev.Log, nil
		case pharmacy.LogTechAlerts:
			return redpanda.TopicTechAlerts, ev.Log, nil
		}
	}
	return "", "", fmt.Errorf("no topic for event %s (log %q)", ev.Type, ev.Log)
}

// PublisherConfig configures the publish queue
type PublisherConfig struct {
	Workers   int
	QueueSize int
}

// Publisher hands lifecycle events to a bounded worker pool that produces
// them to Redpanda. Emit never blocks: when the queue is full the event is
// dropped and counted.
type Publisher struct {
	producer Producer
	pool     *workerpool.Pool
	breakers *circuitbreaker.Set
	metrics  *metrics.Metrics
	logger   *zap.Logger
}

// NewPublisher creates a publisher and starts its workers. m may be nil.
func NewPublisher(producer Producer, cfg PublisherConfig, m *metrics.Metrics, logger *zap.Logger) (*Publisher, error) {
	if producer == nil {
		return nil, errors.New("producer is required")
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	p := &Publisher{
		producer: producer,
		metrics:  m,
		logger:   logger,
	}
	p.breakers = circuitbreaker.NewSet(circuitbreaker.DefaultConfig, p.observeBreaker, logger)

	poolCfg := workerpool.DefaultConfig()
	poolCfg.Workers = cfg.Workers
	poolCfg.QueueSize = cfg.QueueSize
	pool, err := workerpool.New(poolCfg, p.publish, logger, workerpool.WithResultFunc(p.onResult))
	if err != nil {
		return nil, fmt.Errorf("create publish pool: %w", err)
	}
	p.pool = pool
	pool.Start()
	return p, nil
}

// Emit implements pharmacy.EventSink
func (p *Publisher) Emit(ctx context.Context, ev pharmacy.LifecycleEvent) {
	topic, key, err := TopicFor(ev)
	if err != nil {
		p.logger.Warn("unroutable lifecycle event", zap.Error(err))
		return
	}
	value, err := json.Marshal(ev)
	if err != nil {
		p.logger.Error("encode lifecycle event", zap.String("event_id", ev.ID), zap.Error(err))
		return
	}

	rec := redpanda.Record{Topic: topic, Key: key, Value: value}
	if ev.CorrelationID != "" {
		rec.Headers = map[string]string{redpanda.HeaderCorrelationID: ev.CorrelationID}
	}

	// The request context ends with the response; keep only its values
	// (span context for traceparent).
	task := &workerpool.Task{ID: ev.ID, Payload: rec, Context: context.WithoutCancel(ctx)}
	if err := p.pool.Submit(task); err != nil {
		p.count(ResultDropped)
		p.logger.Warn("lifecycle event dropped",
			zap.String("event_id", ev.ID),
			zap.String("type", string(ev.Type)),
			zap.String("topic", topic),
			zap.Error(err))
	}
}

func (p *Publisher) publish(ctx context.Context, task *workerpool.Task) error {
	rec, ok := task.Payload.(redpanda.Record)
	if !ok {
		return workerpool.Permanent(fmt.Errorf("unexpected payload %T", task.Payload))
	}
	err := p.breakers.For(rec.Topic).Execute(ctx, func(ctx context.Context) error {
		return p.producer.Produce(ctx, rec)
	})
	if circuitbreaker.IsRejected(err) {
		return workerpool.Permanent(err)
	}
	return err
}

func (p *Publisher) onResult(task *workerpool.Task, err error) {
	switch {
	case err == nil:
		p.count(ResultPublished)
	case circuitbreaker.IsRejected(err):
		p.count(ResultRejected)
	default:
		p.count(ResultFailed)
	}
}

func (p *Publisher) count(result string) {
	if p.metrics != nil {
		p.metrics.EventsPublished.WithLabelValues(result).Inc()
	}
}

func (p *Publisher) observeBreaker(topic, outcome string) {
	if p.metrics != nil {
		p.metrics.BreakerCalls.WithLabelValues(topic, outcome).Inc()
	}
}

// Breakers reports the state of the per-topic circuit breakers
func (p *Publisher) Breakers() []circuitbreaker.Status {
	return p.breakers.Statuses()
}

// Close stops accepting events and waits for queued ones until ctx is done
func (p *Publisher) Close(ctx context.Context) error {
	err := p.pool.Stop(ctx)
	stats := p.pool.Stats()
	p.logger.Info("event publisher stopped",
		zap.Int64("published", stats.TasksCompleted),
		zap.Int64("failed", stats.TasksFailed),
		zap.Int64("dropped", stats.TasksRejected))
	return err
}
