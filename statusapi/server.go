// Package statusapi exposes a small read-only HTTP surface for
// monitoring a running agent wallet: a health check, the native
// spending ledger's current headroom, a bridge tracking ID's status,
// and a Prometheus scrape endpoint.
//
// Adapted from the teacher's walletserver/ package: the same
// controller-holds-a-service, routes-register-against-a-router shape,
// and the same logrus request-logging middleware, but the router
// library is github.com/go-chi/chi/v5 (spec SPEC_FULL.md §11's
// assignment for this surface) in place of the teacher's gorilla/mux,
// and every handler is read-only — this spec's Non-goals (§1) exclude
// a send/sign HTTP surface entirely.
package statusapi

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/sirupsen/logrus"

	"github.com/synnergy-labs/agentwallet/bridge"
	"github.com/synnergy-labs/agentwallet/core"
)

// Server holds the dependencies the status endpoints read from; no
// field is ever mutated by a handler.
type Server struct {
	wallet *core.Wallet
	policy *core.PolicyEngine
	router *bridge.Router
	rpc    *core.RPC
	nonces *core.NonceManager
}

// New constructs a Server. router, rpc, and nonces may be nil if the
// embedding application does not wire a bridge or wants those
// collectors skipped from /metrics.
func New(wallet *core.Wallet, policy *core.PolicyEngine, router *bridge.Router, rpc *core.RPC, nonces *core.NonceManager) *Server {
	return &Server{wallet: wallet, policy: policy, router: router, rpc: rpc, nonces: nonces}
}

// Handler builds the chi router for this server's endpoints.
func (s *Server) Handler() http.Handler {
	r := chi.NewRouter()
	r.Use(requestLogger)
	r.Get("/healthz", s.handleHealth)
	r.Get("/limits", s.handleLimits)
	r.Get("/bridge/status/{trackingId}", s.handleBridgeStatus)
	r.Get("/metrics", s.handleMetrics)
	return r
}

func requestLogger(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		next.ServeHTTP(w, r)
		logrus.WithFields(logrus.Fields{
			"method":   r.Method,
			"path":     r.URL.Path,
			"duration": time.Since(start),
		}).Info("statusapi request")
	})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) handleLimits(w http.ResponseWriter, r *http.Request) {
	if s.policy == nil {
		writeJSON(w, http.StatusServiceUnavailable, map[string]string{"error": "policy engine not configured"})
		return
	}
	writeJSON(w, http.StatusOK, s.policy.NativeLimitsRemaining())
}

func (s *Server) handleBridgeStatus(w http.ResponseWriter, r *http.Request) {
	if s.router == nil {
		writeJSON(w, http.StatusServiceUnavailable, map[string]string{"error": "bridge router not configured"})
		return
	}
	trackingID := chi.URLParam(r, "trackingId")
	status, err := s.router.GetBridgeStatusByTrackingID(r.Context(), trackingID)
	if err != nil {
		if ce, ok := err.(*core.CoreError); ok {
			writeJSON(w, http.StatusNotFound, ce)
			return
		}
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": err.Error()})
		return
	}
	writeJSON(w, http.StatusOK, status)
}

// handleMetrics gathers every component's own instance-scoped
// collectors into one fresh registry per request, since core/rpc.go and
// core/nonce.go expose unregistered collectors and bridge/router.go holds
// its own private registry, rather than registering against
// prometheus.DefaultRegisterer (spec SPEC_FULL.md §10.5's metrics design
// note).
func (s *Server) handleMetrics(w http.ResponseWriter, r *http.Request) {
	reg := prometheus.NewRegistry()
	if s.rpc != nil {
		for _, c := range s.rpc.Collectors() {
			_ = reg.Register(c)
		}
	}
	if s.nonces != nil {
		_ = reg.Register(s.nonces.Metric())
	}
	gatherers := prometheus.Gatherers{reg}
	if s.router != nil {
		gatherers = append(gatherers, s.router.Registry())
	}
	promhttp.HandlerFor(gatherers, promhttp.HandlerOpts{}).ServeHTTP(w, r)
}
