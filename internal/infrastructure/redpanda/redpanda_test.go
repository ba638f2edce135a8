package redpanda

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/twmb/franz-go/pkg/kgo"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/propagation"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/trace"
)

func TestTraceContextRoundTripsThroughHeaders(t *testing.T) {
	otel.SetTextMapPropagator(propagation.TraceContext{})
	tp := sdktrace.NewTracerProvider()
	defer func() { _ = tp.Shutdown(context.Background()) }()

	ctx, span := tp.Tracer("test").Start(context.Background(), "publish")
	defer span.End()

	record := &kgo.Record{
		Topic:   TopicOrders,
		Headers: []kgo.RecordHeader{{Key: HeaderCorrelationID, Value: []byte("corr-1")}},
	}
	injectTraceHeaders(ctx, record)

	carrier := recordCarrier{record: record}
	assert.NotEmpty(t, carrier.Get("traceparent"))
	assert.Equal(t, "corr-1", carrier.Get(HeaderCorrelationID))
	assert.ElementsMatch(t, []string{HeaderCorrelationID, "traceparent"}, carrier.Keys())

	restored := trace.SpanContextFromContext(extractTraceContext(context.Background(), record))
	require.True(t, restored.IsValid())
	assert.Equal(t, span.SpanContext().TraceID(), restored.TraceID())
	assert.True(t, restored.IsRemote())
}

func TestCarrierSetReplacesExistingHeader(t *testing.T) {
	record := &kgo.Record{}
	carrier := recordCarrier{record: record}
	carrier.Set("traceparent", "a")
	carrier.Set("traceparent", "b")

	require.Len(t, record.Headers, 1)
	assert.Equal(t, "b", carrier.Get("traceparent"))
	assert.Equal(t, "", carrier.Get("missing"))
}

func TestLifecycleTopics(t *testing.T) {
	topics := LifecycleTopics()
	assert.Equal(t, []string{
		TopicOrders,
		TopicShipments,
		TopicCompliance,
		TopicTaxReports,
		TopicProcessorEvents,
		TopicTechAlerts,
	}, topics)
	for _, cfg := range DefaultTopicConfigs() {
		assert.Positive(t, cfg.Partitions, cfg.Name)
		assert.NotNil(t, cfg.Configs["retention.ms"], cfg.Name)
	}
}

func TestNewProducerRequiresBrokers(t *testing.T) {
	_, err := NewProducer(DefaultProducerConfig(nil), nil)
	assert.Error(t, err)
}

func TestAuditTopicsOutliveOrderTraffic(t *testing.T) {
	retention := map[string]string{}
	for _, cfg := range DefaultTopicConfigs() {
		retention[cfg.Name] = *cfg.Configs["retention.ms"]
	}
	assert.Equal(t, "604800000", retention[TopicOrders])
	assert.Equal(t, "2592000000", retention[TopicCompliance])
	assert.Equal(t, "86400000", retention[TopicTechAlerts])
}

func TestResetOffset(t *testing.T) {
	_, ok := resetOffset("earliest")
	assert.True(t, ok)
	_, ok = resetOffset("latest")
	assert.True(t, ok)
	_, ok = resetOffset("")
	assert.False(t, ok)
}

func TestNewConsumerRequiresHandler(t *testing.T) {
	_, err := NewConsumer(DefaultConsumerConfig([]string{"127.0.0.1:9092"}), nil, nil)
	assert.Error(t, err)
}

func TestProducerOptionsRejectUnknownSettings(t *testing.T) {
	cfg := DefaultProducerConfig([]string{"127.0.0.1:9092"})
	_, err := cfg.options()
	require.NoError(t, err)

	bad := cfg
	bad.Acks = "most"
	_, err = bad.options()
	assert.ErrorContains(t, err, "acks")

	bad = cfg
	bad.Compression = "brotli"
	_, err = bad.options()
	assert.ErrorContains(t, err, "compression")
}

func TestRecordHeadersCarryOver(t *testing.T) {
	r := Record{Topic: TopicOrders, Key: "ORD-1", Value: []byte("{}"),
		Headers: map[string]string{HeaderCorrelationID: "corr-9"}}.kgoRecord()
	assert.Equal(t, []byte("ORD-1"), r.Key)
	assert.Equal(t, "corr-9", recordCarrier{record: r}.Get(HeaderCorrelationID))
}
