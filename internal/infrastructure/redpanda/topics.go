package redpanda

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/twmb/franz-go/pkg/kadm"
	"github.com/twmb/franz-go/pkg/kerr"
	"github.com/twmb/franz-go/pkg/kgo"
	"go.uber.org/zap"
)

// Lifecycle topic names
const (
	TopicOrders          = "pharmacy.orders"
	TopicShipments       = "pharmacy.shipments"
	TopicCompliance      = "pharmacy.compliance"
	TopicTaxReports      = "pharmacy.tax-reports"
	TopicProcessorEvents = "pharmacy.processor-events"
	TopicTechAlerts      = "pharmacy.tech-alerts"
)

// TopicConfig describes a topic to create
type TopicConfig struct {
	Name              string
	Partitions        int32
	ReplicationFactor int16
	Configs           map[string]*string
}

// Retention per topic family. Audit trails outlive order traffic; ops
// chatter is short-lived.
const (
	retentionLifecycle = 7 * 24 * time.Hour
	retentionAudit     = 30 * 24 * time.Hour
	retentionOps       = 24 * time.Hour
)

func topicSettings(retention time.Duration) map[string]*string {
	ms := strconv.FormatInt(retention.Milliseconds(), 10)
	return map[string]*string{
		"retention.ms":     kadm.StringPtr(ms),
		"cleanup.policy":   kadm.StringPtr("delete"),
		"compression.type": kadm.StringPtr("lz4"),
	}
}

// DefaultTopicConfigs lists the lifecycle topics in publish order. Order and
// shipment records are keyed by order id and get the most partitions.
func DefaultTopicConfigs() []TopicConfig {
	topic := func(name string, partitions int32, retention time.Duration) TopicConfig {
		return TopicConfig{
			Name:              name,
			Partitions:        partitions,
			ReplicationFactor: 1,
			Configs:           topicSettings(retention),
		}
	}
	return []TopicConfig{
		topic(TopicOrders, 6, retentionLifecycle),
		topic(TopicShipments, 6, retentionLifecycle),
		topic(TopicCompliance, 3, retentionAudit),
		topic(TopicTaxReports, 3, retentionAudit),
		topic(TopicProcessorEvents, 3, retentionOps),
		topic(TopicTechAlerts, 1, retentionOps),
	}
}

// LifecycleTopics returns the topic names from DefaultTopicConfigs
func LifecycleTopics() []string {
	cfgs := DefaultTopicConfigs()
	names := make([]string, len(cfgs))
	for i, c := range cfgs {
		names[i] = c.Name
	}
	return names
}

// Admin manages topics on the cluster
type Admin struct {
	adm    *kadm.Client
	logger *zap.Logger
}

func NewAdmin(brokers []string, logger *zap.Logger) (*Admin, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	cl, err := kgo.NewClient(kgo.SeedBrokers(brokers...))
	if err != nil {
		return nil, fmt.Errorf("create admin client: %w", err)
	}
	return &Admin{adm: kadm.NewClient(cl), logger: logger}, nil
}

// CreateTopics creates each topic in configs. Topics that already exist are
// left as they are.
func (a *Admin) CreateTopics(ctx context.Context, configs []TopicConfig) error {
	var errs []error
	for _, tc := range configs {
		res, err := a.adm.CreateTopic(ctx, tc.Partitions, tc.ReplicationFactor, tc.Configs, tc.Name)
		switch {
		case err == nil:
			a.logger.Info("topic created",
				zap.String("topic", res.Topic),
				zap.Int32("partitions", tc.Partitions))
		case errors.Is(err, kerr.TopicAlreadyExists):
			a.logger.Debug("topic already exists", zap.String("topic", tc.Name))
		default:
			errs = append(errs, fmt.Errorf("topic %s: %w", tc.Name, err))
		}
	}
	return errors.Join(errs...)
}

// EnsureTopics creates any missing lifecycle topic
func (a *Admin) EnsureTopics(ctx context.Context) error {
	return a.CreateTopics(ctx, DefaultTopicConfigs())
}

// ListTopics returns the non-internal topic names on the cluster, sorted.
func (a *Admin) ListTopics(ctx context.Context) ([]string, error) {
	details, err := a.adm.ListTopics(ctx)
	if err != nil {
		return nil, fmt.Errorf("list topics: %w", err)
	}
	return details.Names(), nil
}

func (a *Admin) Close() {
	a.adm.Close()
}

// HealthCheck pings the brokers, giving up after five seconds.
func HealthCheck(ctx context.Context, brokers []string) error {
	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	cl, err := kgo.NewClient(kgo.SeedBrokers(brokers...))
	if err != nil {
		return fmt.Errorf("create client: %w", err)
	}
	defer cl.Close()
	if err := cl.Ping(ctx); err != nil {
		return fmt.Errorf("ping brokers: %w", err)
	}
	return nil
}
