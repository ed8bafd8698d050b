package records

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/tmasson/registre/internal/domain"
	"github.com/tmasson/registre/internal/repository"
)

// CatalogHandler serves the reference data the mapping wizard and assignment
// dialogs need: categories with their field definitions, and users.
type CatalogHandler struct {
	categories repository.CategoryRepository
	users      repository.UserRepository
}

// NewCatalogHandler wraps the category and user stores.
func NewCatalogHandler(categories repository.CategoryRepository, users repository.UserRepository) *CatalogHandler {
	return &CatalogHandler{categories: categories, users: users}
}

// Categories handles GET list, POST ensure and POST {id}/hide.
func (h *CatalogHandler) Categories() http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch {
		case r.Method == http.MethodGet:
			list, err := h.categories.List(r.Context())
			if err != nil {
				http.Error(w, fmt.Sprintf("list categories: %v", err), http.StatusInternalServerError)
				return
			}
			writeJSON(w, http.StatusOK, list)
		case r.Method == http.MethodPost && strings.HasSuffix(r.URL.Path, "/hide"):
			h.hideCategory(w, r)
		case r.Method == http.MethodPost:
			h.ensureCategory(w, r)
		default:
			http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		}
	})
}

type ensureCategoryPayload struct {
	Name   string                   `json:"name"`
	Fields []domain.FieldDefinition `json:"fields"`
}

func (h *CatalogHandler) ensureCategory(w http.ResponseWriter, r *http.Request) {
	defer r.Body.Close()
	var payload ensureCategoryPayload
	if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
		http.Error(w, fmt.Sprintf("invalid payload: %v", err), http.StatusBadRequest)
		return
	}
	name := strings.TrimSpace(payload.Name)
	if name == "" {
		http.Error(w, "name is required", http.StatusBadRequest)
		return
	}
	for _, field := range payload.Fields {
		if !domain.ValidFieldKey(field.Key) {
			http.Error(w, fmt.Sprintf("invalid field key %q", field.Key), http.StatusBadRequest)
			return
		}
	}

	category, err := h.categories.EnsureCategory(r.Context(), name, payload.Fields)
	if err != nil {
		if errors.Is(err, repository.ErrFieldKeyInUse) {
			http.Error(w, err.Error(), http.StatusConflict)
			return
		}
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	writeJSON(w, http.StatusOK, category)
}

func (h *CatalogHandler) hideCategory(w http.ResponseWriter, r *http.Request) {
	path := strings.TrimSuffix(r.URL.Path, "/hide")
	id, ok := trailingID(path)
	if !ok {
		http.Error(w, "category id is required", http.StatusBadRequest)
		return
	}
	if err := h.categories.Hide(r.Context(), id); err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			http.Error(w, err.Error(), http.StatusNotFound)
			return
		}
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// Users handles GET list.
func (h *CatalogHandler) Users() http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodGet {
			http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
			return
		}
		list, err := h.users.List(r.Context())
		if err != nil {
			http.Error(w, fmt.Sprintf("list users: %v", err), http.StatusInternalServerError)
			return
		}
		writeJSON(w, http.StatusOK, list)
	})
}
