package api

import (
	"bytes"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/drfirst/go-pharmasim/internal/api/handlers"
	"github.com/drfirst/go-pharmasim/internal/domain/pharmacy"
	"github.com/drfirst/go-pharmasim/internal/events"
	"github.com/drfirst/go-pharmasim/internal/observability/metrics"
	"github.com/drfirst/go-pharmasim/pkg/correlation"
)

type clock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *clock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *clock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

type testServer struct {
	handler http.Handler
	clock   *clock
	health  *handlers.HealthHandler
}

func newTestServer(t *testing.T) *testServer {
	t.Helper()
	c := &clock{now: time.Date(2026, 5, 4, 9, 0, 0, 0, time.UTC)}
	m := metrics.New()
	engine := pharmacy.NewEngine(
		pharmacy.WithClock(c.Now),
		pharmacy.WithEventSink(events.NewMetricsSink(m)),
	)
	health := handlers.NewHealthHandler()
	return &testServer{
		handler: NewRouter(Deps{Engine: engine, Metrics: m, Health: health}),
		clock:   c,
		health:  health,
	}
}

func (s *testServer) do(t *testing.T, method, path string, body any, headers ...string) *httptest.ResponseRecorder {
	t.Helper()
	var reader io.Reader
	switch b := body.(type) {
	case nil:
	case string:
		reader = strings.NewReader(b)
	default:
		data, err := json.Marshal(b)
		require.NoError(t, err)
		reader = bytes.NewReader(data)
	}
	req := httptest.NewRequest(method, path, reader)
	if reader != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	for i := 0; i+1 < len(headers); i += 2 {
		req.Header.Set(headers[i], headers[i+1])
	}
	rec := httptest.NewRecorder()
	s.handler.ServeHTTP(rec, req)
	return rec
}

func decode(t *testing.T, rec *httptest.ResponseRecorder) map[string]any {
	t.Helper()
	var out map[string]any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &out), rec.Body.String())
	return out
}

func decodeList(t *testing.T, rec *httptest.ResponseRecorder) []map[string]any {
	t.Helper()
	var out []map[string]any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &out), rec.Body.String())
	return out
}

func insulinOrder() map[string]any {
	return map[string]any{
		"patientId": "PAT-BR-001",
		"storeId":   "LOJA-SP-001",
		"sku":       "MED-INSULINA",
		"quantity":  1,
		"channel":   "APP_MOBILE",
	}
}

func TestHealth(t *testing.T) {
	s := newTestServer(t)

	rec := s.do(t, http.MethodGet, "/health", nil, "X-Fapi-Interaction-Id", "fapi-123")
	require.Equal(t, http.StatusOK, rec.Code)
	body := decode(t, rec)
	assert.Equal(t, "UP", body["status"])
	assert.Equal(t, "Pharma-Backend-BR", body["component"])
	assert.Equal(t, "fapi-123", body["correlationId"])
	assert.Equal(t, "fapi-123", rec.Header().Get(correlation.Header))
}

func TestCorrelationIDGeneratedWhenMissing(t *testing.T) {
	s := newTestServer(t)

	rec := s.do(t, http.MethodGet, "/health", nil)
	id := rec.Header().Get(correlation.Header)
	assert.True(t, strings.HasPrefix(id, "corr-"), id)
	assert.Equal(t, id, decode(t, rec)["correlationId"])
}

func TestReadyFailsWhileDraining(t *testing.T) {
	s := newTestServer(t)

	rec := s.do(t, http.MethodGet, "/ready", nil)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "ready", rec.Body.String())

	s.health.Drain()
	rec = s.do(t, http.MethodGet, "/ready", nil)
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
}

func TestPatientProfile(t *testing.T) {
	s := newTestServer(t)

	rec := s.do(t, http.MethodGet, "/patients/profile/PAT-BR-001", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	body := decode(t, rec)
	assert.Equal(t, true, body["exists"])
	assert.Equal(t, "PAT-BR-001", body["patientId"])
	assert.Equal(t, "Ana Silva", body["name"])
	rxs, ok := body["activePrescriptions"].([]any)
	require.True(t, ok)
	require.Len(t, rxs, 1)
	assert.Equal(t, true, rxs[0].(map[string]any)["refillEligible"])
}

func TestUnknownPatientIsNotAnError(t *testing.T) {
	s := newTestServer(t)

	rec := s.do(t, http.MethodGet, "/patients/profile/UNKNOWN", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, map[string]any{
		"exists":    false,
		"patientId": "UNKNOWN",
		"message":   "Patient not found in the demo database",
	}, decode(t, rec))
}

func TestStoreInventory(t *testing.T) {
	s := newTestServer(t)

	rec := s.do(t, http.MethodGet, "/stores/LOJA-RJ-001/inventory", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	body := decode(t, rec)
	assert.Equal(t, "LOJA-RJ-001", body["storeId"])
	assert.Len(t, body["items"], 2)

	rec = s.do(t, http.MethodGet, "/stores/LOJA-SP-001/inventory?sku=MED-INSULINA", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	body = decode(t, rec)
	assert.Equal(t, "LOJA-SP-001", body["storeId"])
	assert.Equal(t, "MED-INSULINA", body["sku"])
	assert.Equal(t, float64(3), body["quantityOnHand"])
	assert.Equal(t, true, body["coldChain"])

	rec = s.do(t, http.MethodGet, "/stores/LOJA-XX-999/inventory", nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)

	rec = s.do(t, http.MethodGet, "/stores/LOJA-SP-001/inventory?sku=MED-NOPE", nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestDCInventory(t *testing.T) {
	s := newTestServer(t)

	rec := s.do(t, http.MethodGet, "/dcs/CD-RJ-01/inventory?sku=MED-INSULINA", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	body := decode(t, rec)
	assert.Equal(t, "CD-RJ-01", body["dcId"])
	assert.Equal(t, float64(80), body["quantityOnHand"])

	rec = s.do(t, http.MethodGet, "/dcs/CD-XX-01/inventory", nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestOrderLifecycle(t *testing.T) {
	s := newTestServer(t)

	rec := s.do(t, http.MethodPost, "/orders/prescriptions", insulinOrder())
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	created := decode(t, rec)
	id := created["orderId"].(string)
	assert.True(t, strings.HasPrefix(id, "ORD-LOJA-SP-001-MED-INSULINA-"), id)
	assert.Equal(t, "PENDING_FULFILLMENT", created["status"])
	assert.Equal(t, true, created["coldChain"])
	assert.Equal(t, float64(24), created["slaHours"])

	rec = s.do(t, http.MethodGet, "/orders/"+id, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "PENDING_FULFILLMENT", decode(t, rec)["status"])

	s.clock.Advance(7 * time.Minute)
	rec = s.do(t, http.MethodGet, "/orders/"+id, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "COMPLETED", decode(t, rec)["status"])

	rec = s.do(t, http.MethodGet, "/stores/LOJA-SP-001/inventory?sku=MED-INSULINA", nil)
	assert.Equal(t, float64(2), decode(t, rec)["quantityOnHand"])

	orders := decodeList(t, s.do(t, http.MethodGet, "/orders", nil))
	assert.Len(t, orders, 3)
}

func TestCreateOrderValidation(t *testing.T) {
	s := newTestServer(t)

	tests := []struct {
		name    string
		body    any
		status  int
		message string
	}{
		{
			name:    "empty body",
			body:    "",
			status:  http.StatusBadRequest,
			message: "Body must contain patientId, storeId, sku, quantity, channel",
		},
		{
			name:    "malformed json",
			body:    `{"patientId":`,
			status:  http.StatusBadRequest,
			message: "invalid JSON body",
		},
		{
			name:    "array body",
			body:    `[1,2]`,
			status:  http.StatusBadRequest,
			message: "request body must be a JSON object",
		},
		{
			name: "quantity as string",
			body: func() map[string]any {
				b := insulinOrder()
				b["quantity"] = "5"
				return b
			}(),
			status:  http.StatusBadRequest,
			message: "quantity must be a number greater than 0",
		},
		{
			name: "fractional quantity",
			body: func() map[string]any {
				b := insulinOrder()
				b["quantity"] = 1.5
				return b
			}(),
			status:  http.StatusBadRequest,
			message: "quantity must be a number greater than 0",
		},
		{
			name: "zero quantity",
			body: func() map[string]any {
				b := insulinOrder()
				b["quantity"] = 0
				return b
			}(),
			status:  http.StatusBadRequest,
			message: "quantity must be a number greater than 0",
		},
		{
			name: "unknown patient",
			body: func() map[string]any {
				b := insulinOrder()
				b["patientId"] = "PAT-NOPE"
				return b
			}(),
			status:  http.StatusNotFound,
			message: "patient PAT-NOPE not found",
		},
		{
			name: "unknown store",
			body: func() map[string]any {
				b := insulinOrder()
				b["storeId"] = "LOJA-NOPE"
				return b
			}(),
			status:  http.StatusNotFound,
			message: "store LOJA-NOPE not found",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := s.do(t, http.MethodPost, "/orders/prescriptions", tt.body, correlation.Header, "corr-test")
			require.Equal(t, tt.status, rec.Code, rec.Body.String())
			body := decode(t, rec)
			assert.Equal(t, "An error occurred while processing the request", body["message"])
			assert.Equal(t, tt.message, body["error"])
			assert.Equal(t, "corr-test", body["correlationId"])
		})
	}
}

func TestWholeNumberQuantityNotations(t *testing.T) {
	s := newTestServer(t)

	for raw, want := range map[string]float64{"2.0": 2, "1e1": 10, "3": 3} {
		body := `{"patientId":"PAT-BR-001","storeId":"LOJA-SP-001","sku":"MED-INSULINA","channel":"APP_MOBILE","quantity":` + raw + `}`
		rec := s.do(t, http.MethodPost, "/orders/prescriptions", body)
		require.Equal(t, http.StatusCreated, rec.Code, raw)
		assert.Equal(t, want, decode(t, rec)["quantity"], raw)
	}

	for _, raw := range []string{"2.5", "1e10", "-1"} {
		body := `{"patientId":"PAT-BR-001","storeId":"LOJA-SP-001","sku":"MED-INSULINA","channel":"APP_MOBILE","quantity":` + raw + `}`
		rec := s.do(t, http.MethodPost, "/orders/prescriptions", body)
		assert.Equal(t, http.StatusBadRequest, rec.Code, raw)
	}
}

func TestMissingFieldsAreListed(t *testing.T) {
	s := newTestServer(t)

	rec := s.do(t, http.MethodPost, "/orders/prescriptions", map[string]any{
		"patientId": "PAT-BR-001",
		"sku":       "",
		"quantity":  1,
	})
	require.Equal(t, http.StatusBadRequest, rec.Code)
	body := decode(t, rec)
	assert.Equal(t, "Body must contain storeId, sku, channel", body["error"])
	assert.Equal(t, map[string]any{"missing": []any{"storeId", "sku", "channel"}}, body["details"])
}

func TestOrderNotFound(t *testing.T) {
	s := newTestServer(t)

	rec := s.do(t, http.MethodGet, "/orders/ORD-NOPE", nil)
	require.Equal(t, http.StatusNotFound, rec.Code)
	assert.Equal(t, "order ORD-NOPE not found", decode(t, rec)["error"])
}

func TestShipmentLifecycle(t *testing.T) {
	s := newTestServer(t)

	order := decode(t, s.do(t, http.MethodPost, "/orders/prescriptions", insulinOrder()))
	rec := s.do(t, http.MethodPost, "/shipments/dispatch", map[string]any{
		"orderId": order["orderId"],
		"dcId":    "CD-SP-01",
	})
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	shipment := decode(t, rec)
	id := shipment["shipmentId"].(string)
	assert.Equal(t, "IN_TRANSIT", shipment["status"])
	assert.Equal(t, "LOJA-SP-001", shipment["storeId"])
	assert.Equal(t, float64(12), shipment["etaHours"])

	rec = s.do(t, http.MethodGet, "/dcs/CD-SP-01/inventory?sku=MED-INSULINA", nil)
	assert.Equal(t, float64(199), decode(t, rec)["quantityOnHand"])

	s.clock.Advance(10 * time.Minute)
	rec = s.do(t, http.MethodGet, "/shipments/"+id, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "DELIVERED", decode(t, rec)["status"])

	assert.Len(t, decodeList(t, s.do(t, http.MethodGet, "/shipments", nil)), 2)
}

func TestDispatchValidation(t *testing.T) {
	s := newTestServer(t)

	rec := s.do(t, http.MethodPost, "/shipments/dispatch", map[string]any{})
	require.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, "Body must contain orderId, dcId", decode(t, rec)["error"])

	rec = s.do(t, http.MethodPost, "/shipments/dispatch", map[string]any{"orderId": "ORD-NOPE", "dcId": "CD-SP-01"})
	require.Equal(t, http.StatusNotFound, rec.Code)
	assert.Equal(t, "order ORD-NOPE not found", decode(t, rec)["error"])

	rec = s.do(t, http.MethodPost, "/shipments/dispatch", map[string]any{"orderId": 42, "dcId": "CD-SP-01"})
	require.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, "orderId must be a string", decode(t, rec)["error"])
}

func TestEventLogs(t *testing.T) {
	s := newTestServer(t)

	rec := s.do(t, http.MethodPost, "/compliance/audit", map[string]any{"type": "DISPENSE", "orderId": "ORD-1"})
	require.Equal(t, http.StatusCreated, rec.Code)
	entry := decode(t, rec)
	assert.Equal(t, "CMP-2026-05-04T09:00:00.000Z", entry["complianceId"])
	assert.Equal(t, "DISPENSE", entry["type"])
	assert.NotEmpty(t, entry["createdAt"])
	assert.Len(t, decodeList(t, s.do(t, http.MethodGet, "/compliance/audit", nil)), 1)

	rec = s.do(t, http.MethodPost, "/finance/tax-report", map[string]any{"amount": 10.5})
	require.Equal(t, http.StatusCreated, rec.Code)
	report := decode(t, rec)
	assert.Equal(t, "TAX-2026-05-04T09:00:00.000Z", report["reportId"])
	assert.NotEmpty(t, report["receivedAt"])
	assert.Len(t, decodeList(t, s.do(t, http.MethodGet, "/finance/tax-report", nil)), 1)

	for i := 1; i <= 2; i++ {
		rec = s.do(t, http.MethodPost, "/ops/processor-events", map[string]any{"seq": i})
		require.Equal(t, http.StatusAccepted, rec.Code)
		assert.Equal(t, map[string]any{"status": "RECEIVED", "count": float64(i)}, decode(t, rec))
	}
	processor := decodeList(t, s.do(t, http.MethodGet, "/ops/processor-events", nil))
	require.Len(t, processor, 2)
	assert.Equal(t, float64(2), processor[0]["seq"])

	rec = s.do(t, http.MethodPost, "/tech/alerts", map[string]any{"severity": "HIGH"})
	require.Equal(t, http.StatusAccepted, rec.Code)
	alert := decode(t, rec)
	assert.Equal(t, "RECEIVED", alert["status"])
	assert.Equal(t, "2026-05-04T09:00:00.000Z", alert["at"])
}

func TestAdminResetAndSnapshot(t *testing.T) {
	s := newTestServer(t)

	s.do(t, http.MethodPost, "/orders/prescriptions", insulinOrder())
	s.do(t, http.MethodPost, "/compliance/audit", map[string]any{"type": "X"})

	snap := decode(t, s.do(t, http.MethodGet, "/admin/snapshot", nil))["snapshot"].(map[string]any)
	assert.Equal(t, float64(3), snap["orders"])
	assert.Equal(t, float64(1), snap["complianceEvents"])

	rec := s.do(t, http.MethodPost, "/admin/reset", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	body := decode(t, rec)
	assert.Equal(t, "RESET", body["status"])
	snap = body["snapshot"].(map[string]any)
	assert.Equal(t, float64(2), snap["orders"])
	assert.Equal(t, float64(0), snap["complianceEvents"])
	assert.Equal(t, float64(3), snap["patients"])
}

func TestUnknownRoute(t *testing.T) {
	s := newTestServer(t)

	rec := s.do(t, http.MethodGet, "/nope/here", nil)
	require.Equal(t, http.StatusNotFound, rec.Code)
	assert.Equal(t, map[string]any{"message": "Resource not found", "path": "/nope/here"}, decode(t, rec))
}

func TestCORSPreflight(t *testing.T) {
	s := newTestServer(t)

	rec := s.do(t, http.MethodOptions, "/orders/prescriptions", nil, "Origin", "http://example.com")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "*", rec.Header().Get("Access-Control-Allow-Origin"))
	assert.Equal(t, correlation.Header, rec.Header().Get("Access-Control-Expose-Headers"))
}

func TestBodyTooLarge(t *testing.T) {
	s := newTestServer(t)

	body := `{"note":"` + strings.Repeat("x", MaxBodyBytes) + `"}`
	rec := s.do(t, http.MethodPost, "/compliance/audit", body)
	require.Equal(t, http.StatusRequestEntityTooLarge, rec.Code)
	assert.Equal(t, "request body too large", decode(t, rec)["error"])
}

func TestMetricsEndpoint(t *testing.T) {
	s := newTestServer(t)

	s.do(t, http.MethodPost, "/orders/prescriptions", insulinOrder())
	rec := s.do(t, http.MethodGet, "/metrics", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	out := rec.Body.String()
	assert.Contains(t, out, "pharmacy_orders_created_total 1")
	assert.Contains(t, out, `route="/orders/prescriptions"`)
}
