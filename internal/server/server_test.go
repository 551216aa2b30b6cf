package server

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/orakle-ai/orakle/config"
	"github.com/orakle-ai/orakle/internal/capability"
)

type echoSkill struct{}

func (echoSkill) Name() string                { return "echo" }
func (echoSkill) Description() string         { return "returns its arguments" }
func (echoSkill) InputSchema() map[string]any { return map[string]any{"type": "object"} }
func (echoSkill) Run(ctx context.Context, args map[string]any) (any, error) {
	return args, nil
}

func testServer(t *testing.T, cfg config.ServerConfig) *Server {
	t.Helper()
	registry := capability.NewRegistry(nil)
	registry.RegisterSkill(echoSkill{})
	if err := registry.Refresh(context.Background()); err != nil {
		t.Fatalf("refresh: %v", err)
	}
	return New(cfg, registry, nil)
}

func TestHealthz(t *testing.T) {
	t.Parallel()
	s := testServer(t, config.ServerConfig{})
	rec := httptest.NewRecorder()
	s.Echo().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/healthz", nil))
	if rec.Code != http.StatusOK {
		t.Fatalf("healthz status = %d", rec.Code)
	}
}

func TestListCapabilities(t *testing.T) {
	t.Parallel()
	s := testServer(t, config.ServerConfig{})
	rec := httptest.NewRecorder()
	s.Echo().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/capabilities", nil))
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, body %s", rec.Code, rec.Body.String())
	}
	var caps []capability.Capability
	if err := json.Unmarshal(rec.Body.Bytes(), &caps); err != nil {
		t.Fatalf("decoding: %v", err)
	}
	if len(caps) != 1 || caps[0].Name != "echo" {
		t.Fatalf("capabilities = %+v", caps)
	}
}

func TestRunCapability(t *testing.T) {
	t.Parallel()
	s := testServer(t, config.ServerConfig{})

	body := strings.NewReader(`{"message":"hi"}`)
	req := httptest.NewRequest(http.MethodPost, "/api/run/echo", body)
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	s.Echo().ServeHTTP(rec, req)
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, body %s", rec.Code, rec.Body.String())
	}
	var out struct {
		Result map[string]any `json:"result"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &out); err != nil {
		t.Fatalf("decoding: %v", err)
	}
	if out.Result["message"] != "hi" {
		t.Fatalf("result = %v", out.Result)
	}
}

func TestRunUnknownCapabilityIs404(t *testing.T) {
	t.Parallel()
	s := testServer(t, config.ServerConfig{})
	req := httptest.NewRequest(http.MethodPost, "/api/run/missing", strings.NewReader(`{}`))
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	s.Echo().ServeHTTP(rec, req)
	if rec.Code != http.StatusNotFound {
		t.Fatalf("status = %d, want 404", rec.Code)
	}
	var resp map[string]string
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("error body must be JSON: %v", err)
	}
	if resp["error"] == "" {
		t.Fatalf("expected error field, got %v", resp)
	}
}

func TestMatchEndpoint(t *testing.T) {
	t.Parallel()
	s := testServer(t, config.ServerConfig{})
	rec := httptest.NewRecorder()
	s.Echo().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/match?q=arguments", nil))
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, body %s", rec.Code, rec.Body.String())
	}

	rec = httptest.NewRecorder()
	s.Echo().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/match", nil))
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("missing q: status = %d, want 400", rec.Code)
	}
}

func TestJWTProtection(t *testing.T) {
	t.Parallel()
	secret := "test-secret"
	s := testServer(t, config.ServerConfig{JWTSecret: secret})

	rec := httptest.NewRecorder()
	s.Echo().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/capabilities", nil))
	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("without token: status = %d, want 401", rec.Code)
	}

	tok, err := SignJWT("user-1", []byte(secret), time.Hour)
	if err != nil {
		t.Fatalf("signing: %v", err)
	}
	req := httptest.NewRequest(http.MethodGet, "/api/capabilities", nil)
	req.Header.Set("Authorization", "Bearer "+tok)
	rec = httptest.NewRecorder()
	s.Echo().ServeHTTP(rec, req)
	if rec.Code != http.StatusOK {
		t.Fatalf("with token: status = %d, body %s", rec.Code, rec.Body.String())
	}

	// Health stays open.
	rec = httptest.NewRecorder()
	s.Echo().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/healthz", nil))
	if rec.Code != http.StatusOK {
		t.Fatalf("healthz must not require auth, status = %d", rec.Code)
	}
}
