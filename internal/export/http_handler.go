package export

import (
	"fmt"
	"net/http"
	"strings"

	"github.com/google/uuid"
)

type Handler struct {
	service *Service
}

// NewHTTPHandler wraps the export service with a GET endpoint. The format is
// selected by the "format" query parameter, the optional "category" parameter
// restricts the export to one category.
func NewHTTPHandler(service *Service) http.Handler {
	return &Handler{service: service}
}

func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}

	query := r.URL.Query()

	format, err := ParseFormat(query.Get("format"))
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	var categoryID *uuid.UUID
	if raw := strings.TrimSpace(query.Get("category")); raw != "" {
		id, parseErr := uuid.Parse(raw)
		if parseErr != nil {
			http.Error(w, fmt.Sprintf("invalid category id: %v", parseErr), http.StatusBadRequest)
			return
		}
		categoryID = &id
	}

	result, err := h.service.Export(r.Context(), categoryID, format)
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", result.ContentType)
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", result.FileName))
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(result.Data)
}
