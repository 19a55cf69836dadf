package api

import (
	"encoding/json"
	"net/http"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/FocuswithJustin/marginalia/core/highlight"
	"github.com/FocuswithJustin/marginalia/core/marker"
	"github.com/FocuswithJustin/marginalia/core/store"
	"github.com/FocuswithJustin/marginalia/internal/logging"
	"github.com/FocuswithJustin/marginalia/internal/server"
)

// Version is the API version reported by the root and health endpoints.
const Version = "0.3.0"

// docStore is the active highlight store, set by Start. Tests inject their
// own instance.
var docStore store.Store

// APIResponse is the standard API response wrapper.
type APIResponse struct {
	Success bool        `json:"success"`
	Data    interface{} `json:"data,omitempty"`
	Error   *APIError   `json:"error,omitempty"`
	Meta    *APIMeta    `json:"meta,omitempty"`
}

// APIError represents an API error.
type APIError struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

// APIMeta contains response metadata.
type APIMeta struct {
	Total     int    `json:"total,omitempty"`
	Timestamp string `json:"timestamp"`
}

// DocumentInfo summarizes one document's highlight record.
type DocumentInfo struct {
	Path       string `json:"path"`
	Title      string `json:"title,omitempty"`
	Highlights int    `json:"highlights"`
	UpdatedAt  string `json:"updated_at,omitempty"`
}

// CheckResult is the response for existence probes (?check=1).
type CheckResult struct {
	Path   string `json:"path"`
	Exists bool   `json:"exists"`
}

// SaveResult is the response for a successful save.
type SaveResult struct {
	Document *highlight.Document `json:"document"`
	// MarkersSkipped lists highlight ids that could not be located in the
	// markdown source during the marker rewrite. They remain in the saved
	// record.
	MarkersSkipped []string `json:"markers_skipped,omitempty"`
}

// HealthInfo is the health check response.
type HealthInfo struct {
	Status    string `json:"status"`
	Version   string `json:"version"`
	Uptime    string `json:"uptime"`
	Documents int    `json:"documents"`
	Backend   string `json:"backend"`
}

var startTime = time.Now()

func handleRoot(w http.ResponseWriter, r *http.Request) {
	if r.URL.Path != "/" {
		respondError(w, http.StatusNotFound, "NOT_FOUND", "Endpoint not found")
		return
	}

	respond(w, http.StatusOK, map[string]interface{}{
		"name":    "Marginalia API",
		"version": Version,
		"endpoints": []string{
			"GET /health",
			"GET /api/v1/documents",
			"GET /api/v1/highlights/:path",
			"GET /api/v1/highlights/:path?check=1",
			"PUT /api/v1/highlights/:path",
			"DELETE /api/v1/highlights/:path",
			"WS /api/v1/ws",
		},
	})
}

func handleHealth(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		respondError(w, http.StatusMethodNotAllowed, "METHOD_NOT_ALLOWED", "Only GET is allowed")
		return
	}

	backend := ServerConfig.Backend
	if backend == "" {
		backend = "file"
	}

	docs, _ := docStore.List()
	respond(w, http.StatusOK, HealthInfo{
		Status:    "healthy",
		Version:   Version,
		Uptime:    time.Since(startTime).String(),
		Documents: len(docs),
		Backend:   backend,
	})
}

func handleDocuments(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		respondError(w, http.StatusMethodNotAllowed, "METHOD_NOT_ALLOWED", "Only GET is allowed")
		return
	}

	paths, err := docStore.List()
	if err != nil {
		respondError(w, http.StatusInternalServerError, "LIST_FAILED", err.Error())
		return
	}

	infos := make([]DocumentInfo, 0, len(paths))
	for _, p := range paths {
		doc, err := docStore.Load(p)
		if err != nil {
			continue
		}
		info := DocumentInfo{
			Path:       doc.Path,
			Title:      doc.Title,
			Highlights: len(doc.Highlights),
		}
		if !doc.UpdatedAt.IsZero() {
			info.UpdatedAt = doc.UpdatedAt.UTC().Format(time.RFC3339)
		}
		infos = append(infos, info)
	}
	sort.Slice(infos, func(i, j int) bool { return infos[i].Path < infos[j].Path })

	response := APIResponse{
		Success: true,
		Data:    infos,
		Meta: &APIMeta{
			Total:     len(infos),
			Timestamp: time.Now().UTC().Format(time.RFC3339),
		},
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(response)
}

func handleHighlights(w http.ResponseWriter, r *http.Request) {
	raw := strings.TrimPrefix(r.URL.Path, "/api/v1/highlights/")
	path := highlight.NormalizePath(raw)
	if path == "" {
		respondError(w, http.StatusBadRequest, "MISSING_PATH", "Document path is required")
		return
	}
	// Defense in depth: the normalized path must also be safe to join onto
	// the library root for marker rewrites.
	if _, err := ValidatePath(ServerConfig.LibraryDir, path); err != nil {
		respondError(w, http.StatusBadRequest, "INVALID_PATH", err.Error())
		return
	}

	switch r.Method {
	case http.MethodGet:
		if r.URL.Query().Get("check") == "1" {
			respond(w, http.StatusOK, CheckResult{Path: path, Exists: docStore.Exists(path)})
			return
		}
		getHighlightsHandler(w, r, path)
	case http.MethodPut:
		putHighlightsHandler(w, r, path)
	case http.MethodDelete:
		deleteHighlightsHandler(w, r, path)
	default:
		respondError(w, http.StatusMethodNotAllowed, "METHOD_NOT_ALLOWED", "Only GET, PUT and DELETE are allowed")
	}
}

func getHighlightsHandler(w http.ResponseWriter, r *http.Request, path string) {
	doc, err := docStore.Load(path)
	if err != nil {
		respondError(w, http.StatusInternalServerError, "LOAD_FAILED", err.Error())
		return
	}
	respond(w, http.StatusOK, doc)
}

func putHighlightsHandler(w http.ResponseWriter, r *http.Request, path string) {
	// A missing Content-Type passes; a wrong one is rejected outright.
	if ct := r.Header.Get("Content-Type"); ct != "" && !server.ValidateContentType(ct, []string{"application/json"}) {
		respondError(w, http.StatusUnsupportedMediaType, "UNSUPPORTED_MEDIA_TYPE", "Content-Type must be application/json")
		return
	}

	var doc highlight.Document
	if err := json.NewDecoder(r.Body).Decode(&doc); err != nil {
		respondError(w, http.StatusBadRequest, "INVALID_JSON", "Malformed document body: "+err.Error())
		return
	}

	doc.Path = path
	if err := doc.Normalize(time.Now()); err != nil {
		respondError(w, http.StatusBadRequest, "INVALID_DOCUMENT", err.Error())
		return
	}

	saved, err := docStore.Save(path, &doc)
	if err != nil {
		respondError(w, http.StatusInternalServerError, "SAVE_FAILED", err.Error())
		return
	}

	skipped := rewriteMarkers(path, saved)
	BroadcastHighlightsUpdated(path, len(saved.Highlights))

	respond(w, http.StatusOK, SaveResult{Document: saved, MarkersSkipped: skipped})
}

func deleteHighlightsHandler(w http.ResponseWriter, r *http.Request, path string) {
	if err := docStore.Delete(path); err != nil {
		respondError(w, http.StatusInternalServerError, "DELETE_FAILED", err.Error())
		return
	}

	rewriteMarkers(path, highlight.NewDocument(path))
	BroadcastHighlightsUpdated(path, 0)

	respond(w, http.StatusOK, map[string]string{"message": "Highlights deleted"})
}

// rewriteMarkers refreshes the invisible markers in the markdown source when
// the file exists under the library root. Markers are a derived view of the
// canonical record, so failures here are logged, not fatal.
func rewriteMarkers(path string, doc *highlight.Document) []string {
	if ServerConfig.LibraryDir == "" {
		return nil
	}
	filePath := filepath.Join(ServerConfig.LibraryDir, filepath.FromSlash(path))
	src, err := os.ReadFile(filePath)
	if err != nil {
		if !os.IsNotExist(err) {
			logging.Warn("marker rewrite: source unreadable", "path", path, "error", err)
		}
		return nil
	}

	out, skippedHL := marker.Write(string(src), doc.Highlights)
	if out != string(src) {
		if err := os.WriteFile(filePath, []byte(out), 0644); err != nil {
			logging.Warn("marker rewrite failed", "path", path, "error", err)
			return nil
		}
	}

	var skipped []string
	for _, h := range skippedHL {
		skipped = append(skipped, h.ID)
	}
	if len(skipped) > 0 {
		logging.AnchorEvent(path, len(doc.Highlights)-len(skipped), len(doc.Highlights))
	}
	return skipped
}

func respond(w http.ResponseWriter, status int, data interface{}) {
	response := APIResponse{
		Success: true,
		Data:    data,
		Meta: &APIMeta{
			Timestamp: time.Now().UTC().Format(time.RFC3339),
		},
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(response)
}

func respondError(w http.ResponseWriter, status int, code, message string) {
	response := APIResponse{
		Success: false,
		Error: &APIError{
			Code:    code,
			Message: message,
		},
		Meta: &APIMeta{
			Timestamp: time.Now().UTC().Format(time.RFC3339),
		},
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(response)
}
