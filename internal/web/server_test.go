package web

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/kozaktomas/face-auth/internal/auth"
	"github.com/kozaktomas/face-auth/internal/config"
	"github.com/kozaktomas/face-auth/internal/database/memory"
	"github.com/kozaktomas/face-auth/internal/facematch"
)

func newTestServer(t *testing.T, registerToken string) *Server {
	t.Helper()
	cfg := config.Defaults()
	cfg.Auth.RegisterToken = registerToken
	service := auth.NewService(memory.New(), nil, auth.Options{
		Threshold: cfg.Auth.Threshold,
		Dimension: cfg.Auth.Dimension,
	})
	return NewServer(&cfg, service, nil)
}

func descriptor(lead float64) []float64 {
	d := make([]float64, facematch.DefaultDimension)
	d[0] = lead
	return d
}

func do(t *testing.T, s *Server, method, path string, body any, header map[string]string) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		if err := json.NewEncoder(&buf).Encode(body); err != nil {
			t.Fatalf("failed to encode body: %v", err)
		}
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	for k, v := range header {
		req.Header.Set(k, v)
	}
	recorder := httptest.NewRecorder()
	s.Router().ServeHTTP(recorder, req)
	return recorder
}

func decode(t *testing.T, recorder *httptest.ResponseRecorder) map[string]any {
	t.Helper()
	var out map[string]any
	if err := json.Unmarshal(recorder.Body.Bytes(), &out); err != nil {
		t.Fatalf("failed to parse response: %v\nBody: %s", err, recorder.Body.String())
	}
	return out
}

func TestServer_RegisterThenLogin(t *testing.T) {
	s := newTestServer(t, "")

	rec := do(t, s, "POST", "/api/auth/register-face", map[string]any{
		"userId":         "alice",
		"faceDescriptor": descriptor(0.2),
	}, nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("register: expected 200, got %d: %s", rec.Code, rec.Body.String())
	}
	if msg := decode(t, rec)["message"]; msg != "Face registered successfully!" {
		t.Errorf("unexpected register message %v", msg)
	}

	rec = do(t, s, "POST", "/api/auth/face-login", map[string]any{"faceDescriptor": descriptor(0.2)}, nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("login: expected 200, got %d: %s", rec.Code, rec.Body.String())
	}
	body := decode(t, rec)
	if body["message"] != "Login successful! Welcome, alice" {
		t.Errorf("unexpected login message %v", body["message"])
	}
	if body["userId"] != "alice" {
		t.Errorf("expected userId alice, got %v", body["userId"])
	}

	rec = do(t, s, "POST", "/api/auth/face-login", map[string]any{"faceDescriptor": descriptor(5)}, nil)
	if rec.Code != http.StatusUnauthorized {
		t.Errorf("far login: expected 401, got %d", rec.Code)
	}
	if msg := decode(t, rec)["message"]; msg != "Face not recognized" {
		t.Errorf("unexpected message %v", msg)
	}
}

func TestServer_Health(t *testing.T) {
	s := newTestServer(t, "")
	do(t, s, "POST", "/api/auth/register-face", map[string]any{"userId": "alice", "faceDescriptor": descriptor(0)}, nil)

	rec := do(t, s, "GET", "/api/health", nil, nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	body := decode(t, rec)
	if body["status"] != "ok" {
		t.Errorf("expected status ok, got %v", body["status"])
	}
	if body["identities"] != float64(1) {
		t.Errorf("expected 1 identity, got %v", body["identities"])
	}
}

func TestServer_RegisterToken(t *testing.T) {
	s := newTestServer(t, "enroll-me")
	payload := map[string]any{"userId": "alice", "faceDescriptor": descriptor(0)}

	rec := do(t, s, "POST", "/api/auth/register-face", payload, nil)
	if rec.Code != http.StatusUnauthorized {
		t.Errorf("expected 401 without token, got %d", rec.Code)
	}

	rec = do(t, s, "POST", "/api/auth/register-face", payload, map[string]string{"Authorization": "Bearer enroll-me"})
	if rec.Code != http.StatusOK {
		t.Errorf("expected 200 with token, got %d: %s", rec.Code, rec.Body.String())
	}

	// Login stays open.
	rec = do(t, s, "POST", "/api/auth/face-login", map[string]any{"faceDescriptor": descriptor(0)}, nil)
	if rec.Code != http.StatusOK {
		t.Errorf("expected login without token to succeed, got %d", rec.Code)
	}
}

func TestServer_MethodAndRouteErrors(t *testing.T) {
	s := newTestServer(t, "")

	rec := do(t, s, "GET", "/api/auth/face-login", nil, nil)
	if rec.Code != http.StatusMethodNotAllowed {
		t.Errorf("expected 405, got %d", rec.Code)
	}

	rec = do(t, s, "GET", "/api/unknown", nil, nil)
	if rec.Code != http.StatusNotFound {
		t.Errorf("expected 404, got %d", rec.Code)
	}
}

func TestServer_CORSPreflight(t *testing.T) {
	s := newTestServer(t, "")

	req := httptest.NewRequest(http.MethodOptions, "/api/auth/face-login", nil)
	req.Header.Set("Origin", "http://localhost:3000")
	req.Header.Set("Access-Control-Request-Method", "POST")
	recorder := httptest.NewRecorder()

	s.Router().ServeHTTP(recorder, req)

	if recorder.Code != http.StatusOK {
		t.Errorf("expected 200, got %d", recorder.Code)
	}
	if got := recorder.Header().Get("Access-Control-Allow-Origin"); got != "http://localhost:3000" {
		t.Errorf("expected origin to be echoed, got '%s'", got)
	}
}
