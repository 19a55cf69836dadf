package server

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
)

func TestAPICSPConfig(t *testing.T) {
	cfg := APICSPConfig()
	if len(cfg.DefaultSrc) != 1 || cfg.DefaultSrc[0] != "'none'" {
		t.Errorf("API CSP should deny all sources, got %v", cfg.DefaultSrc)
	}
	if len(cfg.FrameAncestors) != 1 || cfg.FrameAncestors[0] != "'none'" {
		t.Errorf("FrameAncestors = %v", cfg.FrameAncestors)
	}
}

func TestBuildCSPHeader(t *testing.T) {
	tests := []struct {
		name string
		cfg  CSPConfig
		want string
	}{
		{
			name: "empty config",
			cfg:  CSPConfig{},
			want: "",
		},
		{
			name: "default only",
			cfg:  CSPConfig{DefaultSrc: []string{"'self'"}},
			want: "default-src 'self'",
		},
		{
			name: "multiple directives",
			cfg: CSPConfig{
				DefaultSrc: []string{"'self'"},
				ScriptSrc:  []string{"'self'", "'unsafe-inline'"},
			},
			want: "default-src 'self'; script-src 'self' 'unsafe-inline'",
		},
		{
			name: "upgrade insecure",
			cfg: CSPConfig{
				DefaultSrc:              []string{"'self'"},
				UpgradeInsecureRequests: true,
			},
			want: "default-src 'self'; upgrade-insecure-requests",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.cfg.BuildCSPHeader(); got != tt.want {
				t.Errorf("BuildCSPHeader() = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestSecurityHeadersWithCSP(t *testing.T) {
	handler := SecurityHeadersWithCSP(APICSPConfig(), http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))

	req := httptest.NewRequest(http.MethodGet, "/api/v1/health", nil)
	w := httptest.NewRecorder()
	handler.ServeHTTP(w, req)

	resp := w.Result()
	if resp.Header.Get("X-Content-Type-Options") != "nosniff" {
		t.Error("missing nosniff header")
	}
	csp := resp.Header.Get("Content-Security-Policy")
	if !strings.Contains(csp, "default-src 'none'") {
		t.Errorf("CSP = %q", csp)
	}
}

func TestValidateContentType(t *testing.T) {
	allowed := []string{"application/json"}

	tests := []struct {
		contentType string
		want        bool
	}{
		{"application/json", true},
		{"application/json; charset=utf-8", true},
		{"APPLICATION/JSON", true},
		{"text/html", false},
		{"", false},
	}

	for _, tt := range tests {
		if got := ValidateContentType(tt.contentType, allowed); got != tt.want {
			t.Errorf("ValidateContentType(%q) = %v, want %v", tt.contentType, got, tt.want)
		}
	}
}
