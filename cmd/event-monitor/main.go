// Package main provides the event monitor entry point.
// Tails the pharmacy lifecycle topics and logs every event it sees.
package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"go.uber.org/zap"

	"github.com/drfirst/go-pharmasim/internal/config"
	"github.com/drfirst/go-pharmasim/internal/domain/pharmacy"
	"github.com/drfirst/go-pharmasim/internal/infrastructure/redpanda"
	"github.com/drfirst/go-pharmasim/internal/observability/logs"
	"github.com/drfirst/go-pharmasim/internal/observability/tracing"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		zap.NewExample().Fatal("invalid configuration", zap.Error(err))
	}
	logger, err := cfg.NewLogger()
	if err != nil {
		zap.NewExample().Fatal("build logger", zap.Error(err))
	}
	logProvider, err := logs.Init(context.Background(), logs.Config{
		ServiceName: "event-monitor",
		Endpoint:    cfg.OTLPLogsEndpoint,
		Insecure:    true,
	})
	if err != nil {
		logger.Fatal("failed to initialize log export", zap.Error(err))
	}
	logger = logProvider.Attach(logger, "event-monitor", cfg.Level())
	defer logger.Sync()

	if !cfg.EventsEnabled() {
		logger.Fatal("KAFKA_BROKERS is required")
	}

	traceCfg := tracing.DefaultConfig("event-monitor")
	traceCfg.OTLPEndpoint = cfg.OTLPEndpoint
	traceCfg.SampleRate = cfg.SampleRate
	tp, err := tracing.Init(context.Background(), traceCfg)
	if err != nil {
		logger.Fatal("failed to initialize tracing", zap.Error(err))
	}

	if err := redpanda.HealthCheck(context.Background(), cfg.KafkaBrokers); err != nil {
		logger.Fatal("redpanda unreachable", zap.Error(err))
	}
	logTopics(cfg.KafkaBrokers, logger)

	tally := newTally()
	consumer, err := redpanda.NewConsumer(
		redpanda.DefaultConsumerConfig(cfg.KafkaBrokers),
		handleEvent(tally, logger),
		logger,
	)
	if err != nil {
		logger.Fatal("consumer creation failed", zap.Error(err))
	}

	consumer.Start()
	logger.Info("event monitor started", zap.Strings("topics", redpanda.LifecycleTopics()))

	// Wait for shutdown
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
	<-sigChan

	logger.Info("shutting down")
	ctx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
	defer cancel()
	if err := consumer.Stop(ctx); err != nil {
		logger.Error("consumer stop", zap.Error(err))
	}
	if err := tp.Shutdown(ctx); err != nil {
		logger.Warn("tracer shutdown", zap.Error(err))
	}
	if err := logProvider.Shutdown(ctx); err != nil {
		logger.Warn("log provider shutdown", zap.Error(err))
	}

	stats := consumer.Stats()
	logger.Info("event monitor stopped",
		zap.Int64("messages_read", stats.MessagesRead),
		zap.Int64("errors", stats.ErrorCount),
		zap.Any("by_type", tally.snapshot()),
	)
}

func logTopics(brokers []string, logger *zap.Logger) {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	admin, err := redpanda.NewAdmin(brokers, logger)
	if err != nil {
		logger.Warn("topic admin unavailable", zap.Error(err))
		return
	}
	defer admin.Close()

	topics, err := admin.ListTopics(ctx)
	if err != nil {
		logger.Warn("list topics", zap.Error(err))
		return
	}
	logger.Info("broker topics", zap.Strings("topics", topics))
}

// tally counts events per type
type tally struct {
	mu     sync.Mutex
	counts map[pharmacy.EventType]int
}

func newTally() *tally {
	return &tally{counts: make(map[pharmacy.EventType]int)}
}

func (t *tally) add(typ pharmacy.EventType) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.counts[typ]++
}

func (t *tally) snapshot() map[pharmacy.EventType]int {
	t.mu.Lock()
	defer t.mu.Unlock()
	out := make(map[pharmacy.EventType]int, len(t.counts))
	for k, v := range t.counts {
		out[k] = v
	}
	return out
}

// handleEvent decodes a lifecycle event and logs it. Undecodable records
// are reported as errors and left uncommitted.
func handleEvent(t *tally, logger *zap.Logger) redpanda.MessageHandler {
	return func(_ context.Context, msg *redpanda.ConsumedMessage) error {
		var ev pharmacy.LifecycleEvent
		if err := json.Unmarshal(msg.Value, &ev); err != nil {
			return fmt.Errorf("decode %s@%d: %w", msg.Topic, msg.Offset, err)
		}
		if ev.Type == "" {
			return fmt.Errorf("decode %s@%d: missing event type", msg.Topic, msg.Offset)
		}
		t.add(ev.Type)

		fields := []zap.Field{
			zap.String("topic", msg.Topic),
			zap.String("event_id", ev.ID),
			zap.String("type", string(ev.Type)),
			zap.String("occurred_at", ev.OccurredAt.String()),
			zap.String("correlation_id", msg.Headers[redpanda.HeaderCorrelationID]),
		}
		switch ev.Type {
		case pharmacy.EventLogAppended:
			fields = append(fields, zap.String("log", ev.Log))
		default:
			fields = append(fields,
				zap.String("order_id", ev.OrderID),
				zap.String("shipment_id", ev.ShipmentID),
				zap.String("sku", ev.SKU),
				zap.Int("stock_debited", ev.StockDebited),
			)
		}
		logger.Info("lifecycle event", fields...)
		return nil
	}
}
