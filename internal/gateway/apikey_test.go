package gateway

import (
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
)

// recordingHandler captures the request the middleware forwarded.
type recordingHandler struct {
	called bool
	path   string
}

func (h *recordingHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	h.called = true
	h.path = r.URL.Path
	w.WriteHeader(http.StatusOK)
	_, _ = io.WriteString(w, "downstream")
}

func serveGateway(t *testing.T, cfg Config, req *http.Request) (*httptest.ResponseRecorder, *recordingHandler) {
	t.Helper()
	downstream := &recordingHandler{}
	handler := APIKeyGateway(cfg)(downstream)
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)
	return rec, downstream
}

func TestAPIKeyGateway(t *testing.T) {
	cfg := Config{
		ExpectedKey:  "secret",
		ExternalPath: "/mcp",
		InternalPath: "/sse",
	}

	tests := []struct {
		name       string
		path       string
		header     string
		key        string
		wantStatus int
		wantCalled bool
		wantPath   string
	}{
		{
			name:       "valid key rewrites path",
			path:       "/mcp",
			header:     "x-api-key",
			key:        "secret",
			wantStatus: http.StatusOK,
			wantCalled: true,
			wantPath:   "/sse",
		},
		{
			name:       "valid key rewrites sub path",
			path:       "/mcp/messages",
			header:     "x-api-key",
			key:        "secret",
			wantStatus: http.StatusOK,
			wantCalled: true,
			wantPath:   "/sse/messages",
		},
		{
			name:       "header name is case-insensitive",
			path:       "/mcp",
			header:     "X-Api-Key",
			key:        "secret",
			wantStatus: http.StatusOK,
			wantCalled: true,
			wantPath:   "/sse",
		},
		{
			name:       "wrong key rejected",
			path:       "/mcp",
			header:     "x-api-key",
			key:        "wrong",
			wantStatus: http.StatusUnauthorized,
		},
		{
			name:       "missing key rejected",
			path:       "/mcp",
			wantStatus: http.StatusUnauthorized,
		},
		{
			name:       "internal path also guarded",
			path:       "/sse",
			wantStatus: http.StatusUnauthorized,
		},
		{
			name:       "internal path with valid key passes unrewritten",
			path:       "/sse/messages",
			header:     "x-api-key",
			key:        "secret",
			wantStatus: http.StatusOK,
			wantCalled: true,
			wantPath:   "/sse/messages",
		},
		{
			name:       "unguarded path passes without key",
			path:       "/health",
			wantStatus: http.StatusOK,
			wantCalled: true,
			wantPath:   "/health",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodPost, tt.path, nil)
			if tt.header != "" {
				req.Header.Set(tt.header, tt.key)
			}

			rec, downstream := serveGateway(t, cfg, req)

			if rec.Code != tt.wantStatus {
				t.Errorf("status = %d, want %d", rec.Code, tt.wantStatus)
			}
			if downstream.called != tt.wantCalled {
				t.Errorf("downstream called = %v, want %v", downstream.called, tt.wantCalled)
			}
			if tt.wantCalled && downstream.path != tt.wantPath {
				t.Errorf("downstream path = %q, want %q", downstream.path, tt.wantPath)
			}
		})
	}
}

func TestAPIKeyGatewayUnauthorizedBody(t *testing.T) {
	cfg := Config{ExpectedKey: "secret", ExternalPath: "/mcp"}
	req := httptest.NewRequest(http.MethodPost, "/mcp", nil)

	rec, _ := serveGateway(t, cfg, req)

	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("status = %d, want %d", rec.Code, http.StatusUnauthorized)
	}
	body := rec.Body.String()
	if body != "Unauthorized: missing or invalid x-api-key" {
		t.Errorf("body = %q", body)
	}
	if ct := rec.Header().Get("Content-Type"); !strings.HasPrefix(ct, "text/plain") {
		t.Errorf("Content-Type = %q, want text/plain", ct)
	}
}

func TestAPIKeyGatewayCustomHeader(t *testing.T) {
	cfg := Config{HeaderName: "x-gateway-token", ExpectedKey: "secret", ExternalPath: "/mcp"}

	req := httptest.NewRequest(http.MethodPost, "/mcp", nil)
	req.Header.Set("X-Gateway-Token", "secret")
	rec, downstream := serveGateway(t, cfg, req)
	if rec.Code != http.StatusOK || !downstream.called {
		t.Errorf("custom header not accepted: status = %d", rec.Code)
	}

	req = httptest.NewRequest(http.MethodPost, "/mcp", nil)
	rec, _ = serveGateway(t, cfg, req)
	if body := rec.Body.String(); !strings.Contains(body, "x-gateway-token") {
		t.Errorf("error body should name the configured header, got %q", body)
	}
}

func TestAPIKeyGatewayNoRewriteWithoutInternalPath(t *testing.T) {
	cfg := Config{ExpectedKey: "secret", ExternalPath: "/mcp"}

	req := httptest.NewRequest(http.MethodPost, "/mcp/messages", nil)
	req.Header.Set("x-api-key", "secret")
	rec, downstream := serveGateway(t, cfg, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want %d", rec.Code, http.StatusOK)
	}
	if downstream.path != "/mcp/messages" {
		t.Errorf("path = %q, want unchanged /mcp/messages", downstream.path)
	}
}

func TestAPIKeyGatewayDefaults(t *testing.T) {
	// Zero-value paths fall back to /mcp and the x-api-key header.
	cfg := Config{ExpectedKey: "secret"}

	req := httptest.NewRequest(http.MethodPost, "/mcp", nil)
	rec, _ := serveGateway(t, cfg, req)
	if rec.Code != http.StatusUnauthorized {
		t.Errorf("default external path not guarded: status = %d", rec.Code)
	}

	req = httptest.NewRequest(http.MethodPost, "/mcp", nil)
	req.Header.Set("x-api-key", "secret")
	rec, downstream := serveGateway(t, cfg, req)
	if rec.Code != http.StatusOK || !downstream.called {
		t.Errorf("default header not honored: status = %d", rec.Code)
	}
}
