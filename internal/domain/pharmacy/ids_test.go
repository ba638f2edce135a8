package pharmacy

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestIDTokenFormat(t *testing.T) {
	ts := time.Date(2025, 1, 10, 10, 0, 0, 7_000_000, time.UTC)
	assert.Equal(t, "20250110T100000007Z", formatIDToken(ts))

	// Non-UTC input is normalized.
	loc := time.FixedZone("BRT", -3*60*60)
	assert.Equal(t, "20250110T100000007Z", formatIDToken(ts.In(loc)))
}

func TestIDClockIsStrictlyIncreasing(t *testing.T) {
	var c idClock
	now := time.Date(2025, 1, 10, 10, 0, 0, 999_500_000, time.UTC)

	assert.Equal(t, "20250110T100000999Z", c.token(now))
	assert.Equal(t, "20250110T100001000Z", c.token(now))
	assert.Equal(t, "20250110T100001001Z", c.token(now))

	// A clock that moves backwards still yields increasing tokens.
	assert.Equal(t, "20250110T100001002Z", c.token(now.Add(-time.Hour)))

	assert.Equal(t, "20250110T100005000Z", c.token(now.Add(4*time.Second+500*time.Microsecond)))
}

func TestIDShapes(t *testing.T) {
	o := orderID("LOJA-SP-001", "MED-INSULINA", "20250110T100000000Z")
	assert.Equal(t, "ORD-LOJA-SP-001-MED-INSULINA-20250110T100000000Z", o)
	assert.Equal(t, "SHP-"+o+"-20250110T100001000Z", shipmentID(o, "20250110T100001000Z"))
}

func TestTimestampJSON(t *testing.T) {
	ts := NewTimestamp(time.Date(2025, 1, 10, 10, 0, 0, 123_456_789, time.UTC))
	b, err := json.Marshal(ts)
	require.NoError(t, err)
	assert.Equal(t, `"2025-01-10T10:00:00.123Z"`, string(b))

	var back Timestamp
	require.NoError(t, json.Unmarshal(b, &back))
	assert.True(t, ts.Equal(back.Time))

	assert.Error(t, json.Unmarshal([]byte(`"yesterday"`), &back))
}

func TestStockDebitClamps(t *testing.T) {
	rec := &StockRecord{SKU: "MED-X", QuantityOnHand: 3}
	assert.Equal(t, 2, rec.debit(2))
	assert.Equal(t, 1, rec.debit(5))
	assert.Equal(t, 0, rec.QuantityOnHand)
	assert.Equal(t, 0, rec.debit(1))
	assert.Equal(t, 0, rec.debit(-4))
}

func TestSeedIsIndependent(t *testing.T) {
	a, b := Seed(), Seed()
	a.Stores["LOJA-SP-001"].Items["MED-INSULINA"].QuantityOnHand = 0
	assert.Equal(t, 3, b.Stores["LOJA-SP-001"].Items["MED-INSULINA"].QuantityOnHand)
	assert.Equal(t, Summary{Patients: 3, Stores: 3, DCs: 2, Orders: 2, Shipments: 1}, b.Summarize())

	c := b.Clone()
	c.DCs["CD-SP-01"].Items["MED-INSULINA"].QuantityOnHand = 1
	assert.Equal(t, 200, b.DCs["CD-SP-01"].Items["MED-INSULINA"].QuantityOnHand)
}
