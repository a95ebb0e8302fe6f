// internal/handlers/sku.go
package handlers

import (
	"log/slog"
	"net/http"
	"strconv"

	"github.com/ammerola/beadledger/internal/core/ports"
	"github.com/ammerola/beadledger/internal/handlers/middleware"
)

// SKUHandler serves production, SKU reads and quantity operations
type SKUHandler struct {
	service ports.LedgerService
	logger  *slog.Logger
}

// NewSKUHandler creates a new SKU handler
func NewSKUHandler(service ports.LedgerService, logger *slog.Logger) *SKUHandler {
	return &SKUHandler{
		service: service,
		logger:  logger.With(slog.String("handler", "sku")),
	}
}

// DirectTransform handles POST /api/v1/production/direct-transform
func (h *SKUHandler) DirectTransform(w http.ResponseWriter, r *http.Request) {
	var req ports.DirectTransformRequest
	if err := decodeJSON(r, &req); err != nil {
		respondServiceError(w, r, h.logger, "direct_transform", err)
		return
	}
	req.Actor = middleware.ActorFrom(r.Context())

	result, err := h.service.DirectTransform(r.Context(), req)
	if err != nil {
		respondServiceError(w, r, h.logger, "direct_transform", err)
		return
	}
	respondJSON(w, productionStatus(result), productionMessage(result), result)
}

// CombinationCraft handles POST /api/v1/production/combination-craft
func (h *SKUHandler) CombinationCraft(w http.ResponseWriter, r *http.Request) {
	var req ports.ProductionRequest
	if err := decodeJSON(r, &req); err != nil {
		respondServiceError(w, r, h.logger, "combination_craft", err)
		return
	}
	req.Actor = middleware.ActorFrom(r.Context())

	result, err := h.service.CombinationCraft(r.Context(), req)
	if err != nil {
		respondServiceError(w, r, h.logger, "combination_craft", err)
		return
	}
	respondJSON(w, productionStatus(result), productionMessage(result), result)
}

func productionStatus(result *ports.ProductionResult) int {
	if result.IsNew {
		return http.StatusCreated
	}
	return http.StatusOK
}

func productionMessage(result *ports.ProductionResult) string {
	msg := "produced into existing SKU " + result.SKU.Code
	if result.IsNew {
		msg = "created SKU " + result.SKU.Code
	}
	if result.PriceFlagged {
		msg += "; requested price differs from the SKU price, existing price kept"
	}
	return msg
}

// ListSKUs handles GET /api/v1/skus
func (h *SKUHandler) ListSKUs(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	params := ports.SKUListParams{
		Search:    q.Get("search"),
		Status:    q.Get("status"),
		SortBy:    q.Get("sort_by"),
		SortOrder: q.Get("sort_order"),
		Page:      queryInt(r, "page", 1),
		PageSize:  queryInt(r, "page_size", 0),
	}
	if v := q.Get("min_available"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			params.MinAvailable = &n
		}
	}

	result, err := h.service.ListSKUs(r.Context(), params)
	if err != nil {
		respondServiceError(w, r, h.logger, "list_skus", err)
		return
	}
	respondJSON(w, http.StatusOK, "ok", result)
}

// GetSKU handles GET /api/v1/skus/{id}
func (h *SKUHandler) GetSKU(w http.ResponseWriter, r *http.Request) {
	id, err := pathUUID(r, "id")
	if err != nil {
		respondServiceError(w, r, h.logger, "get_sku", err)
		return
	}
	sku, err := h.service.GetSKU(r.Context(), id)
	if err != nil {
		respondServiceError(w, r, h.logger, "get_sku", err)
		return
	}
	respondJSON(w, http.StatusOK, "ok", sku)
}

// GetLedger handles GET /api/v1/skus/{id}/ledger
func (h *SKUHandler) GetLedger(w http.ResponseWriter, r *http.Request) {
	id, err := pathUUID(r, "id")
	if err != nil {
		respondServiceError(w, r, h.logger, "get_ledger", err)
		return
	}
	entries, err := h.service.GetLedger(r.Context(), id)
	if err != nil {
		respondServiceError(w, r, h.logger, "get_ledger", err)
		return
	}
	respondJSON(w, http.StatusOK, "ok", entries)
}

// GetRecipe handles GET /api/v1/skus/{id}/recipe
func (h *SKUHandler) GetRecipe(w http.ResponseWriter, r *http.Request) {
	id, err := pathUUID(r, "id")
	if err != nil {
		respondServiceError(w, r, h.logger, "get_recipe", err)
		return
	}
	recipe, err := h.service.GetRecipe(r.Context(), id)
	if err != nil {
		respondServiceError(w, r, h.logger, "get_recipe", err)
		return
	}
	respondJSON(w, http.StatusOK, "ok", recipe)
}

// VerifyLedger handles GET /api/v1/skus/{id}/verify
func (h *SKUHandler) VerifyLedger(w http.ResponseWriter, r *http.Request) {
	id, err := pathUUID(r, "id")
	if err != nil {
		respondServiceError(w, r, h.logger, "verify_ledger", err)
		return
	}
	report, err := h.service.VerifyLedger(r.Context(), id)
	if err != nil {
		respondServiceError(w, r, h.logger, "verify_ledger", err)
		return
	}
	msg := "ledger consistent"
	if !report.Consistent {
		msg = "ledger inconsistent"
	}
	respondJSON(w, http.StatusOK, msg, report)
}

// Sell handles POST /api/v1/skus/{id}/sell
func (h *SKUHandler) Sell(w http.ResponseWriter, r *http.Request) {
	id, err := pathUUID(r, "id")
	if err != nil {
		respondServiceError(w, r, h.logger, "sell", err)
		return
	}
	var req ports.SellRequest
	if err := decodeJSON(r, &req); err != nil {
		respondServiceError(w, r, h.logger, "sell", err)
		return
	}
	req.Actor = middleware.ActorFrom(r.Context())

	result, err := h.service.Sell(r.Context(), id, req)
	if err != nil {
		respondServiceError(w, r, h.logger, "sell", err)
		return
	}
	respondJSON(w, http.StatusOK, "sold "+strconv.Itoa(req.Quantity)+" of "+result.SKU.Code, result)
}

// Destroy handles POST /api/v1/skus/{id}/destroy
func (h *SKUHandler) Destroy(w http.ResponseWriter, r *http.Request) {
	id, err := pathUUID(r, "id")
	if err != nil {
		respondServiceError(w, r, h.logger, "destroy", err)
		return
	}
	var req ports.DestroyRequest
	if err := decodeJSON(r, &req); err != nil {
		respondServiceError(w, r, h.logger, "destroy", err)
		return
	}
	req.Actor = middleware.ActorFrom(r.Context())

	result, err := h.service.Destroy(r.Context(), id, req)
	if err != nil {
		respondServiceError(w, r, h.logger, "destroy", err)
		return
	}
	respondJSON(w, http.StatusOK, "destroyed "+strconv.Itoa(req.Quantity)+" of "+result.SKU.Code, result)
}

// Adjust handles POST /api/v1/skus/{id}/adjust
func (h *SKUHandler) Adjust(w http.ResponseWriter, r *http.Request) {
	id, err := pathUUID(r, "id")
	if err != nil {
		respondServiceError(w, r, h.logger, "adjust", err)
		return
	}
	var req ports.AdjustRequest
	if err := decodeJSON(r, &req); err != nil {
		respondServiceError(w, r, h.logger, "adjust", err)
		return
	}
	req.Actor = middleware.ActorFrom(r.Context())

	result, err := h.service.Adjust(r.Context(), id, req)
	if err != nil {
		respondServiceError(w, r, h.logger, "adjust", err)
		return
	}
	respondJSON(w, http.StatusOK, "adjusted "+result.SKU.Code, result)
}

// Restock handles POST /api/v1/skus/{id}/restock
func (h *SKUHandler) Restock(w http.ResponseWriter, r *http.Request) {
	id, err := pathUUID(r, "id")
	if err != nil {
		respondServiceError(w, r, h.logger, "restock", err)
		return
	}
	var req ports.RestockRequest
	if err := decodeJSON(r, &req); err != nil {
		respondServiceError(w, r, h.logger, "restock", err)
		return
	}
	req.Actor = middleware.ActorFrom(r.Context())

	result, err := h.service.Restock(r.Context(), id, req)
	if err != nil {
		respondServiceError(w, r, h.logger, "restock", err)
		return
	}
	respondJSON(w, http.StatusOK, "restocked "+strconv.Itoa(req.Quantity)+" of "+result.SKU.Code, result)
}

// Control handles POST /api/v1/skus/{id}/control
func (h *SKUHandler) Control(w http.ResponseWriter, r *http.Request) {
	id, err := pathUUID(r, "id")
	if err != nil {
		respondServiceError(w, r, h.logger, "control", err)
		return
	}
	var req ports.ControlRequest
	if err := decodeJSON(r, &req); err != nil {
		respondServiceError(w, r, h.logger, "control", err)
		return
	}
	req.Actor = middleware.ActorFrom(r.Context())

	result, err := h.service.Control(r.Context(), id, req)
	if err != nil {
		respondServiceError(w, r, h.logger, "control", err)
		return
	}
	respondJSON(w, http.StatusOK, result.Ledger.Note, result)
}

// Refund handles POST /api/v1/purchases/{id}/refund
func (h *SKUHandler) Refund(w http.ResponseWriter, r *http.Request) {
	id, err := pathUUID(r, "id")
	if err != nil {
		respondServiceError(w, r, h.logger, "refund", err)
		return
	}
	var req ports.RefundRequest
	if err := decodeJSON(r, &req); err != nil {
		respondServiceError(w, r, h.logger, "refund", err)
		return
	}
	req.Actor = middleware.ActorFrom(r.Context())

	result, err := h.service.Refund(r.Context(), id, req)
	if err != nil {
		respondServiceError(w, r, h.logger, "refund", err)
		return
	}
	respondJSON(w, http.StatusOK, "refunded purchase of "+result.SKU.Code, result)
}
