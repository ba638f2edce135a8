package main

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"

	"github.com/drfirst/go-pharmasim/internal/domain/pharmacy"
	"github.com/drfirst/go-pharmasim/internal/infrastructure/redpanda"
)

func TestHandleEventLogsAndCounts(t *testing.T) {
	core, logs := observer.New(zap.InfoLevel)
	tl := newTally()
	handle := handleEvent(tl, zap.New(core))

	msg := &redpanda.ConsumedMessage{
		Topic:   redpanda.TopicOrders,
		Value:   []byte(`{"id":"evt-1","type":"OrderCompleted","orderId":"ORD-1","sku":"MED-INSULINA","stockDebited":2,"occurredAt":"2026-01-02T03:04:05.000Z"}`),
		Headers: map[string]string{redpanda.HeaderCorrelationID: "corr-1"},
	}
	require.NoError(t, handle(context.Background(), msg))

	assert.Equal(t, map[pharmacy.EventType]int{pharmacy.EventOrderCompleted: 1}, tl.snapshot())
	entries := logs.FilterMessage("lifecycle event").All()
	require.Len(t, entries, 1)
	fields := entries[0].ContextMap()
	assert.Equal(t, "ORD-1", fields["order_id"])
	assert.Equal(t, "corr-1", fields["correlation_id"])
	assert.Equal(t, int64(2), fields["stock_debited"])
	assert.Equal(t, "2026-01-02T03:04:05.000Z", fields["occurred_at"])
}

func TestHandleEventRejectsGarbage(t *testing.T) {
	tl := newTally()
	handle := handleEvent(tl, zap.NewNop())

	err := handle(context.Background(), &redpanda.ConsumedMessage{Topic: "t", Value: []byte("nope")})
	assert.Error(t, err)

	err = handle(context.Background(), &redpanda.ConsumedMessage{Topic: "t", Value: []byte(`{"id":"x"}`)})
	assert.ErrorContains(t, err, "missing event type")
	assert.Empty(t, tl.snapshot())
}
