// internal/handlers/materials.go
package handlers

import (
	"log/slog"
	"net/http"

	"github.com/ammerola/beadledger/internal/core/ports"
	"github.com/ammerola/beadledger/internal/handlers/middleware"
)

// MaterialHandler serves raw material batches and customers
type MaterialHandler struct {
	service ports.LedgerService
	logger  *slog.Logger
}

// NewMaterialHandler creates a new material handler
func NewMaterialHandler(service ports.LedgerService, logger *slog.Logger) *MaterialHandler {
	return &MaterialHandler{
		service: service,
		logger:  logger.With(slog.String("handler", "material")),
	}
}

// CreateMaterial handles POST /api/v1/materials
func (h *MaterialHandler) CreateMaterial(w http.ResponseWriter, r *http.Request) {
	var req ports.CreateMaterialRequest
	if err := decodeJSON(r, &req); err != nil {
		respondServiceError(w, r, h.logger, "create_material", err)
		return
	}
	req.Actor = middleware.ActorFrom(r.Context())

	m, err := h.service.CreateMaterialBatch(r.Context(), req)
	if err != nil {
		respondServiceError(w, r, h.logger, "create_material", err)
		return
	}
	respondJSON(w, http.StatusCreated, "created material batch "+m.Code, m)
}

// ListMaterials handles GET /api/v1/materials
func (h *MaterialHandler) ListMaterials(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	params := ports.MaterialListParams{
		Search:      q.Get("search"),
		Type:        q.Get("type"),
		InStockOnly: q.Get("in_stock") == "true",
		Page:        queryInt(r, "page", 1),
		PageSize:    queryInt(r, "page_size", 0),
	}

	result, err := h.service.ListMaterials(r.Context(), params)
	if err != nil {
		respondServiceError(w, r, h.logger, "list_materials", err)
		return
	}
	respondJSON(w, http.StatusOK, "ok", result)
}

// GetMaterial handles GET /api/v1/materials/{id}
func (h *MaterialHandler) GetMaterial(w http.ResponseWriter, r *http.Request) {
	id, err := pathUUID(r, "id")
	if err != nil {
		respondServiceError(w, r, h.logger, "get_material", err)
		return
	}
	m, err := h.service.GetMaterial(r.Context(), id)
	if err != nil {
		respondServiceError(w, r, h.logger, "get_material", err)
		return
	}
	respondJSON(w, http.StatusOK, "ok", m)
}

// GetMaterialLedger handles GET /api/v1/materials/{id}/ledger
func (h *MaterialHandler) GetMaterialLedger(w http.ResponseWriter, r *http.Request) {
	id, err := pathUUID(r, "id")
	if err != nil {
		respondServiceError(w, r, h.logger, "get_material_ledger", err)
		return
	}
	entries, err := h.service.GetMaterialLedger(r.Context(), id)
	if err != nil {
		respondServiceError(w, r, h.logger, "get_material_ledger", err)
		return
	}
	respondJSON(w, http.StatusOK, "ok", entries)
}

// GetCustomer handles GET /api/v1/customers/{id}
func (h *MaterialHandler) GetCustomer(w http.ResponseWriter, r *http.Request) {
	id, err := pathUUID(r, "id")
	if err != nil {
		respondServiceError(w, r, h.logger, "get_customer", err)
		return
	}
	c, err := h.service.GetCustomer(r.Context(), id)
	if err != nil {
		respondServiceError(w, r, h.logger, "get_customer", err)
		return
	}
	respondJSON(w, http.StatusOK, "ok", c)
}
