package api

import (
	"fmt"
	"net/http"
	"os"
	"path/filepath"

	"github.com/FocuswithJustin/marginalia/core/store"
	"github.com/FocuswithJustin/marginalia/internal/logging"
	"github.com/FocuswithJustin/marginalia/internal/server"
)

// Start starts the API server with the given configuration.
func Start(cfg Config) error {
	ServerConfig = cfg

	if err := ValidateAuthConfig(cfg.Auth); err != nil {
		return fmt.Errorf("invalid auth config: %w", err)
	}

	if cfg.TLS.Enabled {
		if cfg.TLS.CertFile == "" || cfg.TLS.KeyFile == "" {
			return fmt.Errorf("TLS enabled but cert or key file not specified")
		}
		if _, err := os.Stat(cfg.TLS.CertFile); err != nil {
			return fmt.Errorf("TLS cert file not found: %w", err)
		}
		if _, err := os.Stat(cfg.TLS.KeyFile); err != nil {
			return fmt.Errorf("TLS key file not found: %w", err)
		}
	}

	if err := os.MkdirAll(ServerConfig.LibraryDir, 0755); err != nil {
		return fmt.Errorf("failed to create library directory: %w", err)
	}

	var err error
	docStore, err = openStore(cfg)
	if err != nil {
		return fmt.Errorf("failed to open highlight store: %w", err)
	}

	// Initialize WebSocket hub
	GlobalHub = NewHub()
	go GlobalHub.Run()

	mux := setupRoutes()

	protocol := "http"
	wsProtocol := "ws"
	if cfg.TLS.Enabled {
		protocol = "https"
		wsProtocol = "wss"
		logging.Info("TLS enabled", "cert_file", cfg.TLS.CertFile)
	} else {
		logging.Warn("TLS disabled - using plain HTTP",
			"recommendation", "consider using TLS or reverse proxy for production")
	}
	logging.ServerStartup("rest_api", protocol, ServerConfig.Port,
		"websocket_protocol", wsProtocol,
		"library_dir", server.AbsPath(ServerConfig.LibraryDir),
		"backend", storeBackend(cfg))

	// Build middleware chain with security headers
	cspConfig := server.APICSPConfig()
	var handler http.Handler = server.SecurityHeadersWithCSP(cspConfig, mux)

	if cfg.Auth.Enabled {
		handler = AuthMiddleware(cfg.Auth, handler)
		logging.SecurityEvent("authentication_configured", "api",
			"enabled", true,
			"note", "API key required")
	} else {
		logging.SecurityEvent("authentication_configured", "api",
			"enabled", false,
			"note", "all requests allowed")
	}

	if cfg.RateLimitRequests > 0 {
		rateLimitConfig := RateLimiterConfig{
			RequestsPerMinute: cfg.RateLimitRequests,
			BurstSize:         cfg.RateLimitBurst,
		}
		if rateLimitConfig.BurstSize == 0 {
			rateLimitConfig.BurstSize = 10 // Default burst size
		}
		rateLimiter := NewRateLimiter(rateLimitConfig)
		handler = rateLimiter.Middleware(handler)
		logging.Info("rate limiting enabled",
			"requests_per_minute", rateLimitConfig.RequestsPerMinute,
			"burst_size", rateLimitConfig.BurstSize)
	}

	corsConfig := server.CORSConfig{
		AllowedOrigins: cfg.AllowedOrigins,
	}
	handler = server.CORSMiddlewareWithConfig(corsConfig, handler)
	if len(cfg.AllowedOrigins) > 0 {
		logging.SecurityEvent("cors_configured", "api",
			"mode", "restricted",
			"allowed_origins_count", len(cfg.AllowedOrigins))
	} else {
		logging.SecurityEvent("cors_configured", "api",
			"mode", "permissive",
			"note", "allowing all origins (*) - consider restricting for production")
	}

	handler = server.TimingMiddleware(handler)
	handler = logging.CombinedMiddleware(handler)

	addr := fmt.Sprintf(":%d", ServerConfig.Port)
	if cfg.TLS.Enabled {
		return http.ListenAndServeTLS(addr, cfg.TLS.CertFile, cfg.TLS.KeyFile, handler)
	}
	return http.ListenAndServe(addr, handler)
}

// openStore builds the configured store backend. Highlights live beside the
// library under .marginalia so the markdown tree stays clean.
func openStore(cfg Config) (store.Store, error) {
	switch storeBackend(cfg) {
	case "sqlite":
		dbPath := cfg.DBPath
		if dbPath == "" {
			dbPath = filepath.Join(cfg.LibraryDir, ".marginalia", "highlights.db")
		}
		if err := os.MkdirAll(filepath.Dir(dbPath), 0755); err != nil {
			return nil, err
		}
		return store.OpenSQLite(dbPath)
	case "file":
		return store.NewFileStore(filepath.Join(cfg.LibraryDir, ".marginalia"))
	default:
		return nil, fmt.Errorf("unknown store backend %q", cfg.Backend)
	}
}

func storeBackend(cfg Config) string {
	if cfg.Backend == "" {
		return "file"
	}
	return cfg.Backend
}

// setupRoutes configures all HTTP routes.
func setupRoutes() *http.ServeMux {
	mux := http.NewServeMux()

	mux.HandleFunc("/", handleRoot)
	mux.HandleFunc("/health", handleHealth)
	mux.HandleFunc("/api/v1/documents", handleDocuments)
	mux.HandleFunc("/api/v1/highlights/", handleHighlights)
	mux.HandleFunc("/api/v1/ws", handleWebSocket)

	return mux
}
