package redpanda

import (
	"context"

	"github.com/twmb/franz-go/pkg/kgo"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/propagation"
)

// HeaderCorrelationID carries the HTTP correlation id of the request that
// produced a record.
const HeaderCorrelationID = "x-correlation-id"

// recordCarrier adapts kgo record headers to propagation.TextMapCarrier.
type recordCarrier struct {
	record *kgo.Record
}

var _ propagation.TextMapCarrier = recordCarrier{}

func (c recordCarrier) Get(key string) string {
	for _, h := range c.record.Headers {
		if h.Key == key {
			return string(h.Value)
		}
	}
	return ""
}

func (c recordCarrier) Set(key, value string) {
	for i, h := range c.record.Headers {
		if h.Key == key {
			c.record.Headers[i].Value = []byte(value)
			return
		}
	}
	c.record.Headers = append(c.record.Headers, kgo.RecordHeader{Key: key, Value: []byte(value)})
}

func (c recordCarrier) Keys() []string {
	keys := make([]string, 0, len(c.record.Headers))
	for _, h := range c.record.Headers {
		keys = append(keys, h.Key)
	}
	return keys
}

// injectTraceHeaders writes the span context of ctx (traceparent, baggage)
// into the record headers using the global propagator.
func injectTraceHeaders(ctx context.Context, record *kgo.Record) {
	otel.GetTextMapPropagator().Inject(ctx, recordCarrier{record: record})
}

// extractTraceContext restores the producer's span context from the record headers.
func extractTraceContext(ctx context.Context, record *kgo.Record) context.Context {
	return otel.GetTextMapPropagator().Extract(ctx, recordCarrier{record: record})
}
