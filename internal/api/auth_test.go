package api

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
)

const testKey = "0123456789abcdef0123456789abcdef"

func authedHandler(cfg AuthConfig) http.Handler {
	return AuthMiddleware(cfg, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))
}

func TestAuthMiddlewareDisabled(t *testing.T) {
	handler := authedHandler(AuthConfig{Enabled: false})

	req := httptest.NewRequest(http.MethodGet, "/api/v1/documents", nil)
	w := httptest.NewRecorder()
	handler.ServeHTTP(w, req)

	if w.Result().StatusCode != http.StatusOK {
		t.Errorf("disabled auth should pass, got %d", w.Result().StatusCode)
	}
}

func TestAuthMiddlewareMissingKey(t *testing.T) {
	handler := authedHandler(AuthConfig{Enabled: true, APIKey: testKey})

	req := httptest.NewRequest(http.MethodGet, "/api/v1/documents", nil)
	w := httptest.NewRecorder()
	handler.ServeHTTP(w, req)

	if w.Result().StatusCode != http.StatusUnauthorized {
		t.Errorf("expected 401 without key, got %d", w.Result().StatusCode)
	}
}

func TestAuthMiddlewareWrongKey(t *testing.T) {
	handler := authedHandler(AuthConfig{Enabled: true, APIKey: testKey})

	req := httptest.NewRequest(http.MethodGet, "/api/v1/documents", nil)
	req.Header.Set("X-API-Key", "wrong-key-wrong-key")
	w := httptest.NewRecorder()
	handler.ServeHTTP(w, req)

	if w.Result().StatusCode != http.StatusUnauthorized {
		t.Errorf("expected 401 with wrong key, got %d", w.Result().StatusCode)
	}
}

func TestAuthMiddlewareValidKey(t *testing.T) {
	handler := authedHandler(AuthConfig{Enabled: true, APIKey: testKey})

	req := httptest.NewRequest(http.MethodGet, "/api/v1/documents", nil)
	req.Header.Set("X-API-Key", testKey)
	w := httptest.NewRecorder()
	handler.ServeHTTP(w, req)

	if w.Result().StatusCode != http.StatusOK {
		t.Errorf("expected 200 with valid key, got %d", w.Result().StatusCode)
	}
}

func TestAuthMiddlewarePublicEndpoints(t *testing.T) {
	handler := authedHandler(AuthConfig{Enabled: true, APIKey: testKey})

	for _, path := range []string{"/", "/health"} {
		req := httptest.NewRequest(http.MethodGet, path, nil)
		w := httptest.NewRecorder()
		handler.ServeHTTP(w, req)

		if w.Result().StatusCode != http.StatusOK {
			t.Errorf("public endpoint %s required auth: %d", path, w.Result().StatusCode)
		}
	}
}

func TestValidateAuthConfig(t *testing.T) {
	tests := []struct {
		name    string
		cfg     AuthConfig
		wantErr bool
	}{
		{"disabled", AuthConfig{Enabled: false}, false},
		{"enabled without key", AuthConfig{Enabled: true}, true},
		{"enabled short key", AuthConfig{Enabled: true, APIKey: "short"}, true},
		{"enabled valid key", AuthConfig{Enabled: true, APIKey: testKey}, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := ValidateAuthConfig(tt.cfg)
			if (err != nil) != tt.wantErr {
				t.Errorf("ValidateAuthConfig() error = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}

func TestGenerateAPIKeyExample(t *testing.T) {
	if !strings.Contains(GenerateAPIKeyExample(), "MARGINALIA_API_KEY") {
		t.Error("example should name the environment variable")
	}
}
