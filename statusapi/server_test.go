package statusapi

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/synnergy-labs/agentwallet/bridge"
	"github.com/synnergy-labs/agentwallet/core"
)

type fakeTransport struct {
	responses map[string]json.RawMessage
}

func newFakeTransport() *fakeTransport {
	return &fakeTransport{responses: map[string]json.RawMessage{}}
}

func (f *fakeTransport) stub(method string, value any) {
	raw, _ := json.Marshal(value)
	f.responses[method] = raw
}

func (f *fakeTransport) Call(ctx context.Context, method string, params ...any) (json.RawMessage, error) {
	if raw, ok := f.responses[method]; ok {
		return raw, nil
	}
	return nil, nil
}

func testAccount(t *testing.T) *core.Account {
	t.Helper()
	key := make([]byte, 32)
	key[31] = 7
	acct, err := core.NewAccount(key)
	if err != nil {
		t.Fatalf("new account: %v", err)
	}
	return acct
}

func TestHealthEndpointReportsOK(t *testing.T) {
	srv := New(nil, nil, nil, nil, nil)
	req := httptest.NewRequest(http.MethodGet, "/healthz", nil)
	rec := httptest.NewRecorder()
	srv.Handler().ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	var body map[string]string
	if err := json.Unmarshal(rec.Body.Bytes(), &body); err != nil {
		t.Fatalf("decode body: %v", err)
	}
	if body["status"] != "ok" {
		t.Fatalf("unexpected status body: %+v", body)
	}
}

func TestLimitsEndpointReturnsServiceUnavailableWithoutPolicy(t *testing.T) {
	srv := New(nil, nil, nil, nil, nil)
	req := httptest.NewRequest(http.MethodGet, "/limits", nil)
	rec := httptest.NewRecorder()
	srv.Handler().ServeHTTP(rec, req)

	if rec.Code != http.StatusServiceUnavailable {
		t.Fatalf("expected 503, got %d", rec.Code)
	}
}

func TestLimitsEndpointReportsRemainingHeadroom(t *testing.T) {
	limit := uint64(1000)
	policy := core.NewPolicyEngine(core.SpendingLimits{Daily: limit}, core.AddressPolicy{}, core.ApprovalConfig{}, nil)
	srv := New(nil, policy, nil, nil, nil)

	req := httptest.NewRequest(http.MethodGet, "/limits", nil)
	rec := httptest.NewRecorder()
	srv.Handler().ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	var remaining core.LimitsRemaining
	if err := json.Unmarshal(rec.Body.Bytes(), &remaining); err != nil {
		t.Fatalf("decode body: %v", err)
	}
	if remaining.Daily == nil || *remaining.Daily != limit {
		t.Fatalf("expected full daily headroom %d, got %+v", limit, remaining)
	}
}

func TestBridgeStatusEndpointReturnsNotFoundForUnknownTrackingID(t *testing.T) {
	account := testAccount(t)
	ft := newFakeTransport()
	rpc := core.NewRPC(ft, core.RPCConfig{})
	nonces := core.NewNonceManager(account.Address(), rpc)
	gas := core.NewGasOracle(rpc)
	router := bridge.NewRouter(account, rpc, nonces, gas, nil, 1, 0)

	srv := New(nil, nil, router, nil, nil)
	req := httptest.NewRequest(http.MethodGet, "/bridge/status/0xdeadbeef", nil)
	rec := httptest.NewRecorder()
	srv.Handler().ServeHTTP(rec, req)

	if rec.Code != http.StatusNotFound {
		t.Fatalf("expected 404, got %d", rec.Code)
	}
}

func TestMetricsEndpointServesPrometheusFormat(t *testing.T) {
	account := testAccount(t)
	ft := newFakeTransport()
	rpc := core.NewRPC(ft, core.RPCConfig{})
	nonces := core.NewNonceManager(account.Address(), rpc)
	gas := core.NewGasOracle(rpc)
	router := bridge.NewRouter(account, rpc, nonces, gas, nil, 1, 0)

	srv := New(nil, nil, router, rpc, nonces)
	req := httptest.NewRequest(http.MethodGet, "/metrics", nil)
	rec := httptest.NewRecorder()
	srv.Handler().ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	if rec.Body.Len() == 0 {
		t.Fatalf("expected non-empty metrics body")
	}
}
