package importer

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"

	"github.com/tmasson/registre/internal/auth"
	"github.com/tmasson/registre/internal/domain"
	"github.com/tmasson/registre/internal/repository"
)

// Handler exposes the import pipeline over HTTP: preview for the mapping
// wizard, the run itself, and the append-only error log.
type Handler struct {
	service    *Service
	importLogs repository.ImportLogRepository
}

// NewHTTPHandler wraps the import service.
func NewHTTPHandler(service *Service, importLogs repository.ImportLogRepository) http.Handler {
	return &Handler{service: service, importLogs: importLogs}
}

func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	switch {
	case r.Method == http.MethodPost && strings.HasSuffix(r.URL.Path, "/preview"):
		h.handlePreview(w, r)
	case r.Method == http.MethodGet && strings.HasSuffix(r.URL.Path, "/logs"):
		h.handleListLogs(w, r)
	case r.Method == http.MethodPost:
		h.handleRun(w, r)
	default:
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
	}
}

func (h *Handler) handleRun(w http.ResponseWriter, r *http.Request) {
	fileName, payload, ok := h.readUpload(w, r)
	if !ok {
		return
	}

	mappingRaw := strings.TrimSpace(r.FormValue("mapping"))
	if mappingRaw == "" {
		http.Error(w, "mapping is required", http.StatusBadRequest)
		return
	}
	var actions map[string]domain.ColumnAction
	if err := json.Unmarshal([]byte(mappingRaw), &actions); err != nil {
		http.Error(w, fmt.Sprintf("invalid mapping: %v", err), http.StatusBadRequest)
		return
	}

	actingUserID, err := auth.UserIDFromRequest(r)
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	summary := h.service.Run(r.Context(), RunRequest{
		FileName:     fileName,
		Data:         bytes.NewReader(payload),
		Actions:      actions,
		ActingUserID: actingUserID,
	})

	writeJSON(w, http.StatusOK, summary)
}

func (h *Handler) handlePreview(w http.ResponseWriter, r *http.Request) {
	fileName, payload, ok := h.readUpload(w, r)
	if !ok {
		return
	}

	table, err := ParseFile(fileName, payload)
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	writeJSON(w, http.StatusOK, BuildPreview(table))
}

func (h *Handler) handleListLogs(w http.ResponseWriter, r *http.Request) {
	query := r.URL.Query()
	fileName := strings.TrimSpace(query.Get("file"))

	limit := 200
	if raw := strings.TrimSpace(query.Get("limit")); raw != "" {
		parsed, err := strconv.Atoi(raw)
		if err != nil || parsed <= 0 {
			http.Error(w, "limit must be a positive integer", http.StatusBadRequest)
			return
		}
		limit = parsed
	}
	offset := 0
	if raw := strings.TrimSpace(query.Get("offset")); raw != "" {
		parsed, err := strconv.Atoi(raw)
		if err != nil || parsed < 0 {
			http.Error(w, "offset must be zero or positive", http.StatusBadRequest)
			return
		}
		offset = parsed
	}

	entries, err := h.importLogs.List(r.Context(), fileName, limit, offset)
	if err != nil {
		http.Error(w, fmt.Sprintf("list logs: %v", err), http.StatusInternalServerError)
		return
	}
	writeJSON(w, http.StatusOK, entries)
}

func (h *Handler) readUpload(w http.ResponseWriter, r *http.Request) (string, []byte, bool) {
	if err := r.ParseMultipartForm(32 << 20); err != nil {
		http.Error(w, fmt.Sprintf("invalid form data: %v", err), http.StatusBadRequest)
		return "", nil, false
	}

	file, header, err := r.FormFile("file")
	if err != nil {
		http.Error(w, fmt.Sprintf("file required: %v", err), http.StatusBadRequest)
		return "", nil, false
	}
	defer file.Close()

	payload, err := io.ReadAll(file)
	if err != nil {
		http.Error(w, fmt.Sprintf("failed to read file: %v", err), http.StatusBadRequest)
		return "", nil, false
	}
	return header.Filename, payload, true
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	_ = enc.Encode(payload)
}
