// Package main provides the pharmacy API service entry point.
package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"go.uber.org/zap"

	"github.com/drfirst/go-pharmasim/internal/api"
	"github.com/drfirst/go-pharmasim/internal/api/handlers"
	"github.com/drfirst/go-pharmasim/internal/config"
	"github.com/drfirst/go-pharmasim/internal/domain/pharmacy"
	"github.com/drfirst/go-pharmasim/internal/events"
	"github.com/drfirst/go-pharmasim/internal/infrastructure/redpanda"
	"github.com/drfirst/go-pharmasim/internal/observability/logs"
	"github.com/drfirst/go-pharmasim/internal/observability/metrics"
	"github.com/drfirst/go-pharmasim/internal/observability/tracing"
)

const serviceName = "pharma-api"

func main() {
	// Load configuration
	cfg, err := config.Load()
	if err != nil {
		// No logger yet; zap's example logger writes JSON to stdout.
		zap.NewExample().Fatal("invalid configuration", zap.Error(err))
	}

	// Initialize logger
	logger, err := cfg.NewLogger()
	if err != nil {
		zap.NewExample().Fatal("build logger", zap.Error(err))
	}
	logProvider, err := logs.Init(context.Background(), logs.Config{
		ServiceName: serviceName,
		Endpoint:    cfg.OTLPLogsEndpoint,
		Insecure:    true,
	})
	if err != nil {
		logger.Fatal("failed to initialize log export", zap.Error(err))
	}
	logger = logProvider.Attach(logger, serviceName, cfg.Level())
	defer logger.Sync()

	// Tracing
	traceCfg := tracing.DefaultConfig(serviceName)
	traceCfg.OTLPEndpoint = cfg.OTLPEndpoint
	traceCfg.SampleRate = cfg.SampleRate
	tp, err := tracing.Init(context.Background(), traceCfg)
	if err != nil {
		logger.Fatal("failed to initialize tracing", zap.Error(err))
	}

	m := metrics.New()
	sinks := pharmacy.MultiSink{events.NewMetricsSink(m)}

	// Redpanda is optional; without brokers events only feed metrics.
	var (
		producer  *redpanda.Producer
		publisher *events.Publisher
	)
	if cfg.EventsEnabled() {
		if cfg.KafkaEnsureTopics {
			ensureTopics(cfg.KafkaBrokers, logger)
		}
		producer, err = redpanda.NewProducer(redpanda.DefaultProducerConfig(cfg.KafkaBrokers), logger)
		if err != nil {
			logger.Fatal("failed to create producer", zap.Error(err))
		}
		publisher, err = events.NewPublisher(producer, events.PublisherConfig{
			Workers:   cfg.EventWorkers,
			QueueSize: cfg.EventQueueSize,
		}, m, logger)
		if err != nil {
			logger.Fatal("failed to create event publisher", zap.Error(err))
		}
		sinks = append(sinks, publisher)
		logger.Info("lifecycle events enabled", zap.Strings("brokers", cfg.KafkaBrokers))
	}

	engine := pharmacy.NewEngine(
		pharmacy.WithEventSink(sinks),
		pharmacy.WithLogger(logger),
	)
	health := handlers.NewHealthHandler()

	server := &http.Server{
		Addr: ":" + cfg.Port,
		Handler: api.NewRouter(api.Deps{
			Engine:      engine,
			Metrics:     m,
			Health:      health,
			Logger:      logger,
			ServiceName: serviceName,
		}),
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	// Graceful shutdown
	done := make(chan struct{})
	go func() {
		defer close(done)
		sigChan := make(chan os.Signal, 1)
		signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
		<-sigChan

		logger.Info("shutting down server")
		health.Drain()
		ctx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
		defer cancel()

		if err := server.Shutdown(ctx); err != nil {
			logger.Error("shutdown error", zap.Error(err))
		}
		if publisher != nil {
			if err := publisher.Close(ctx); err != nil {
				logger.Warn("event publisher did not drain", zap.Error(err))
			}
			for _, b := range publisher.Breakers() {
				logger.Info("circuit breaker status",
					zap.String("name", b.Name),
					zap.String("state", string(b.State)),
					zap.Uint32("requests", b.Requests),
					zap.Uint32("failures", b.Failures),
				)
			}
		}
		if producer != nil {
			if err := producer.Close(ctx); err != nil {
				logger.Warn("producer close", zap.Error(err))
			}
			stats := producer.Stats()
			logger.Info("producer stopped",
				zap.Int64("messages_sent", stats.MessagesSent),
				zap.Int64("errors", stats.ErrorCount),
			)
		}
		if err := tp.Shutdown(ctx); err != nil {
			logger.Warn("tracer shutdown", zap.Error(err))
		}
		if err := logProvider.Shutdown(ctx); err != nil {
			logger.Warn("log provider shutdown", zap.Error(err))
		}
	}()

	logger.Info("starting pharmacy API", zap.String("port", cfg.Port))
	if err := server.ListenAndServe(); !errors.Is(err, http.ErrServerClosed) {
		logger.Fatal("server error", zap.Error(err))
	}

	<-done
	logger.Info("server stopped")
}

// ensureTopics creates the lifecycle topics. Failure is logged, not fatal:
// the producer retries and the brokers may auto-create topics.
func ensureTopics(brokers []string, logger *zap.Logger) {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	admin, err := redpanda.NewAdmin(brokers, logger)
	if err != nil {
		logger.Warn("topic admin unavailable", zap.Error(err))
		return
	}
	defer admin.Close()

	if err := admin.EnsureTopics(ctx); err != nil {
		logger.Warn("failed to ensure topics", zap.Error(err))
	}
}
