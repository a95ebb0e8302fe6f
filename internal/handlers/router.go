// internal/handlers/router.go
package handlers

import (
	"net/http"

	"github.com/ammerola/beadledger/internal/handlers/middleware"
)

// Routes registers every endpoint on a new ServeMux. Corrective operations are limited to the BOSS role.
func Routes(sku *SKUHandler, material *MaterialHandler, health *HealthHandler) *http.ServeMux {
	mux := http.NewServeMux()
	boss := middleware.RequireRole(middleware.RoleBoss)

	mux.HandleFunc("GET /health", health.Health)
	mux.HandleFunc("GET /health/live", health.Liveness)
	mux.HandleFunc("GET /health/ready", health.Readiness)

	mux.HandleFunc("POST /api/v1/production/direct-transform", sku.DirectTransform)
	mux.HandleFunc("POST /api/v1/production/combination-craft", sku.CombinationCraft)

	mux.HandleFunc("GET /api/v1/skus", sku.ListSKUs)
	mux.HandleFunc("GET /api/v1/skus/{id}", sku.GetSKU)
	mux.HandleFunc("GET /api/v1/skus/{id}/ledger", sku.GetLedger)
	mux.HandleFunc("GET /api/v1/skus/{id}/recipe", sku.GetRecipe)
	mux.HandleFunc("GET /api/v1/skus/{id}/verify", sku.VerifyLedger)
	mux.HandleFunc("POST /api/v1/skus/{id}/sell", sku.Sell)
	mux.Handle("POST /api/v1/skus/{id}/destroy", boss(http.HandlerFunc(sku.Destroy)))
	mux.Handle("POST /api/v1/skus/{id}/adjust", boss(http.HandlerFunc(sku.Adjust)))
	mux.HandleFunc("POST /api/v1/skus/{id}/restock", sku.Restock)
	mux.Handle("POST /api/v1/skus/{id}/control", boss(http.HandlerFunc(sku.Control)))
	mux.HandleFunc("POST /api/v1/purchases/{id}/refund", sku.Refund)

	mux.HandleFunc("POST /api/v1/materials", material.CreateMaterial)
	mux.HandleFunc("GET /api/v1/materials", material.ListMaterials)
	mux.HandleFunc("GET /api/v1/materials/{id}", material.GetMaterial)
	mux.HandleFunc("GET /api/v1/materials/{id}/ledger", material.GetMaterialLedger)
	mux.HandleFunc("GET /api/v1/customers/{id}", material.GetCustomer)

	return mux
}
