package server

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/kelseyhightower/envconfig"

	contractx "github.com/noeguerin/bistro-concierge/agent/contract"
	"github.com/noeguerin/bistro-concierge/agent/executor"
	"github.com/noeguerin/bistro-concierge/agent/orchestrator"
	"github.com/noeguerin/bistro-concierge/agent/session"
)

type fixedClassifier struct {
	cls contractx.Classification
}

func (c fixedClassifier) Classify(context.Context, string) (contractx.Classification, error) {
	return c.cls, nil
}

type fixedReasoner struct {
	reply string
}

func (r fixedReasoner) Decide(context.Context, contractx.Intent, []contractx.Turn, []contractx.ToolSpec) (contractx.Decision, error) {
	return contractx.Decision{Reply: r.reply}, nil
}

type emptyRegistry struct{}

func (emptyRegistry) Toolset(contractx.Intent) []contractx.Tool { return nil }

func newTestServer(t *testing.T) *Server {
	t.Helper()

	orch, err := orchestrator.New(
		fixedClassifier{cls: contractx.Classification{Intent: contractx.IntentGeneralInquiry, Confidence: 0.9}},
		emptyRegistry{},
		executor.New(fixedReasoner{reply: "We open at noon."}, executor.Config{}),
		session.NewMemoryStore(),
		nil,
		orchestrator.Config{},
	)
	if err != nil {
		t.Fatalf("build orchestrator: %v", err)
	}
	return New(orch, nil, nil, Config{AllowedOrigins: []string{"*"}})
}

func TestHealthz(t *testing.T) {
	t.Parallel()

	srv := newTestServer(t)
	rec := httptest.NewRecorder()
	srv.Router().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/healthz", nil))

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}
}

func TestTurnEndpoint(t *testing.T) {
	t.Parallel()

	srv := newTestServer(t)
	body := strings.NewReader(`{"utterance": "when do you open?"}`)
	req := httptest.NewRequest(http.MethodPost, "/v1/sessions/call-1/turns", body)
	rec := httptest.NewRecorder()
	srv.Router().ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, body %s", rec.Code, rec.Body.String())
	}

	var result orchestrator.TurnResult
	if err := json.NewDecoder(rec.Body).Decode(&result); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if result.Reply != "We open at noon." {
		t.Fatalf("reply = %q", result.Reply)
	}
	if result.Intent != contractx.IntentGeneralInquiry {
		t.Fatalf("intent = %s", result.Intent)
	}
}

func TestTurnEndpointBadRequests(t *testing.T) {
	t.Parallel()

	srv := newTestServer(t)

	// Malformed body.
	req := httptest.NewRequest(http.MethodPost, "/v1/sessions/call-1/turns", strings.NewReader("{"))
	rec := httptest.NewRecorder()
	srv.Router().ServeHTTP(rec, req)
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("malformed body status = %d, want 400", rec.Code)
	}

	// Empty utterance maps the validation error to 400.
	req = httptest.NewRequest(http.MethodPost, "/v1/sessions/call-1/turns", strings.NewReader(`{"utterance": ""}`))
	rec = httptest.NewRecorder()
	srv.Router().ServeHTTP(rec, req)
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("empty utterance status = %d, want 400", rec.Code)
	}
}

func TestEndSessionEndpoint(t *testing.T) {
	t.Parallel()

	srv := newTestServer(t)
	req := httptest.NewRequest(http.MethodDelete, "/v1/sessions/call-1", nil)
	rec := httptest.NewRecorder()
	srv.Router().ServeHTTP(rec, req)

	if rec.Code != http.StatusNoContent {
		t.Fatalf("status = %d, want 204", rec.Code)
	}
}

func TestConfigDefaultWriteTimeoutCoversHandlerLoop(t *testing.T) {
	t.Parallel()

	var cfg Config
	if err := envconfig.Process("serverdefaults", &cfg); err != nil {
		t.Fatalf("process defaults: %v", err)
	}
	// Worst case for one turn: 6 reasoning steps at the 30s think timeout.
	if cfg.WriteTimeout <= 6*30*time.Second {
		t.Fatalf("write timeout %s does not outlast the handler loop", cfg.WriteTimeout)
	}
}

func TestAdvanceOrderRejectsBadID(t *testing.T) {
	t.Parallel()

	srv := newTestServer(t)
	req := httptest.NewRequest(http.MethodPost, "/v1/orders/abc/advance", nil)
	rec := httptest.NewRecorder()
	srv.Router().ServeHTTP(rec, req)

	if rec.Code != http.StatusBadRequest {
		t.Fatalf("status = %d, want 400", rec.Code)
	}
}
