// internal/core/services/operations.go
package services

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/ammerola/beadledger/internal/core/domain"
	"github.com/ammerola/beadledger/internal/core/ports"
)

// Sell removes units from stock, upserts the customer and records the purchase.
func (s *LedgerService) Sell(ctx context.Context, skuID uuid.UUID, req ports.SellRequest) (*ports.SellResult, error) {
	if err := validateRequest(req); err != nil {
		return nil, err
	}

	var result *ports.SellResult
	err := s.store.WithinTx(ctx, func(ctx context.Context, tx ports.Tx) error {
		sku, err := tx.GetSKUForUpdate(ctx, skuID)
		if err != nil {
			return err
		}
		if sku.AvailableQuantity < req.Quantity {
			return &domain.InsufficientStockError{SKUCode: sku.Code, Available: sku.AvailableQuantity, Requested: req.Quantity}
		}

		now := s.clock()
		customer, err := s.upsertCustomer(ctx, tx, req.CustomerPhone, req.CustomerName)
		if err != nil {
			return err
		}

		qty := decimal.NewFromInt(int64(req.Quantity))
		total := sku.SellingPrice.Mul(qty)
		if req.ActualTotalPrice != nil {
			total = *req.ActualTotalPrice
		}
		purchase := &domain.CustomerPurchase{
			ID:           uuid.New(),
			CustomerID:   customer.ID,
			SKUID:        sku.ID,
			SKUCode:      sku.Code,
			SKUName:      sku.Name,
			Quantity:     req.Quantity,
			UnitPrice:    total.Div(qty).Round(2),
			TotalPrice:   total,
			SaleChannel:  req.SaleChannel,
			Status:       domain.PurchaseStatusCompleted,
			PurchaseDate: now,
			CreatedBy:    req.Actor.ID,
		}
		if err := tx.InsertPurchase(ctx, purchase); err != nil {
			return fmt.Errorf("failed to insert purchase: %w", err)
		}

		customer.RecordPurchase(total, now)
		if err := tx.UpdateCustomer(ctx, customer); err != nil {
			return fmt.Errorf("failed to update customer totals: %w", err)
		}

		note := fmt.Sprintf("sold %d to %s", req.Quantity, customer.Name)
		if req.SaleChannel != "" {
			note += " via " + req.SaleChannel
		}
		entry, err := s.applyAndLog(ctx, tx, sku, domain.QuantityChange{
			Action:        domain.LedgerActionSell,
			Delta:         -req.Quantity,
			ReferenceType: domain.RefPurchase,
			ReferenceID:   purchase.ID.String(),
			Note:          note,
			Actor:         req.Actor,
		})
		if err != nil {
			return err
		}

		result = &ports.SellResult{SKU: sku, Customer: customer, Purchase: purchase, Ledger: entry}
		return nil
	})

	s.logOutcome(ctx, "sell", err, slog.String("sku_id", skuID.String()), slog.Int("quantity", req.Quantity))
	if err != nil {
		return nil, err
	}
	s.afterCommit(ctx, result.SKU, domain.LedgerActionSell)
	return result, nil
}

// upsertCustomer matches by phone when one is given, otherwise by name.
func (s *LedgerService) upsertCustomer(ctx context.Context, tx ports.Tx, phone, name string) (*domain.Customer, error) {
	phone = strings.TrimSpace(phone)
	name = strings.TrimSpace(name)

	customer, err := tx.FindCustomer(ctx, phone, name)
	if err != nil {
		return nil, fmt.Errorf("failed to look up customer: %w", err)
	}
	if customer != nil {
		if customer.Phone == "" && phone != "" {
			customer.Phone = phone
		}
		if customer.Name == "" && name != "" {
			customer.Name = name
		}
		return customer, nil
	}

	if name == "" {
		name = phone
	}
	now := s.clock()
	customer = &domain.Customer{
		ID:        uuid.New(),
		Name:      name,
		Phone:     phone,
		CreatedAt: now,
		UpdatedAt: now,
	}
	if err := tx.InsertCustomer(ctx, customer); err != nil {
		return nil, fmt.Errorf("failed to insert customer: %w", err)
	}
	return customer, nil
}

// Destroy writes units off. With ReturnToMaterial it gives each recipe material back in
// proportion to the SKU's all-time production, or the caller's explicit quantity.
func (s *LedgerService) Destroy(ctx context.Context, skuID uuid.UUID, req ports.DestroyRequest) (*ports.DestroyResult, error) {
	if err := validateRequest(req); err != nil {
		return nil, err
	}

	var result *ports.DestroyResult
	err := s.store.WithinTx(ctx, func(ctx context.Context, tx ports.Tx) error {
		sku, err := tx.GetSKUForUpdate(ctx, skuID)
		if err != nil {
			return err
		}
		if sku.AvailableQuantity < req.Quantity {
			return &domain.InsufficientStockError{SKUCode: sku.Code, Available: sku.AvailableQuantity, Requested: req.Quantity}
		}

		var returned []ports.MaterialMovement
		if req.ReturnToMaterial {
			returned, err = s.returnMaterials(ctx, tx, sku, req)
			if err != nil {
				return err
			}
		}

		note := "destroyed: " + req.Reason
		if len(returned) > 0 {
			parts := make([]string, 0, len(returned))
			for _, r := range returned {
				parts = append(parts, fmt.Sprintf("%s+%d", r.MaterialCode, r.Quantity))
			}
			note += "; returned " + strings.Join(parts, ", ")
		}
		entry, err := s.applyAndLog(ctx, tx, sku, domain.QuantityChange{
			Action:        domain.LedgerActionDestroy,
			Delta:         -req.Quantity,
			ReferenceType: domain.RefDestroy,
			ReferenceID:   uuid.NewString(),
			Note:          note,
			Actor:         req.Actor,
		})
		if err != nil {
			return err
		}

		result = &ports.DestroyResult{SKU: sku, Returned: returned, Ledger: entry}
		return nil
	})

	s.logOutcome(ctx, "destroy", err,
		slog.String("sku_id", skuID.String()),
		slog.Int("quantity", req.Quantity),
		slog.Bool("return_to_material", req.ReturnToMaterial))
	if err != nil {
		return nil, err
	}
	s.afterCommit(ctx, result.SKU, domain.LedgerActionDestroy)
	return result, nil
}

func (s *LedgerService) returnMaterials(ctx context.Context, tx ports.Tx, sku *domain.SKU, req ports.DestroyRequest) ([]ports.MaterialMovement, error) {
	usages, err := tx.ListUsagesBySKU(ctx, sku.ID)
	if err != nil {
		return nil, fmt.Errorf("failed to load usage records: %w", err)
	}
	recipe := domain.DeriveRecipe(usages)

	inRecipe := make(map[uuid.UUID]domain.RecipeItem, len(recipe))
	for _, item := range recipe {
		inRecipe[item.MaterialID] = item
	}
	selected := make(map[uuid.UUID]bool, len(req.SelectedMaterials))
	for _, id := range req.SelectedMaterials {
		if _, ok := inRecipe[id]; !ok {
			return nil, domain.NewValidationError("selected_materials", fmt.Sprintf("%s is not part of %s", id, sku.Code))
		}
		selected[id] = true
	}
	for id := range req.CustomReturnQuantities {
		if _, ok := inRecipe[id]; !ok {
			return nil, domain.NewValidationError("custom_return_quantities", fmt.Sprintf("%s is not part of %s", id, sku.Code))
		}
	}

	amounts := make(map[uuid.UUID]int, len(recipe))
	ids := make([]uuid.UUID, 0, len(recipe))
	for _, item := range recipe {
		if len(selected) > 0 && !selected[item.MaterialID] {
			continue
		}
		qty, custom := req.CustomReturnQuantities[item.MaterialID]
		if !custom {
			qty = domain.ProportionalReturn(item.QuantityPerUnit, req.Quantity, sku.TotalQuantity)
		}
		if qty <= 0 {
			continue
		}
		amounts[item.MaterialID] = qty
		ids = append(ids, item.MaterialID)
	}
	if len(ids) == 0 {
		return nil, nil
	}

	batches, err := lockMaterials(ctx, tx, ids)
	if err != nil {
		return nil, err
	}

	movements := make([]ports.MaterialMovement, 0, len(ids))
	for _, id := range sortedIDs(ids) {
		m := batches[id]
		qty := amounts[id]
		moved, err := m.Return(qty)
		if err != nil {
			return nil, err
		}
		if err := s.moveMaterial(ctx, tx, m, moved, &sku.ID, "returned from destroyed "+sku.Code, req.Actor); err != nil {
			return nil, err
		}

		rec := &domain.MaterialUsageRecord{
			ID:           uuid.New(),
			SKUID:        sku.ID,
			MaterialID:   m.ID,
			Action:       domain.UsageActionReturn,
			QuantityUsed: -qty,
			CreatedBy:    req.Actor.ID,
			CreatedAt:    s.clock(),
		}
		if m.Type.CountsBeads() {
			rec.BeadsUsed = -qty
		} else {
			rec.PiecesUsed = -qty
		}
		if err := tx.InsertUsage(ctx, rec); err != nil {
			return nil, fmt.Errorf("failed to record return of %s: %w", m.Code, err)
		}

		movements = append(movements, ports.MaterialMovement{
			MaterialID:     m.ID,
			MaterialCode:   m.Code,
			MaterialName:   m.Name,
			Quantity:       qty,
			RemainingAfter: m.RemainingQuantity,
		})
	}
	return movements, nil
}

// Adjust sets available quantity to an absolute value and logs the difference.
func (s *LedgerService) Adjust(ctx context.Context, skuID uuid.UUID, req ports.AdjustRequest) (*ports.OperationResult, error) {
	if err := validateRequest(req); err != nil {
		return nil, err
	}
	target := *req.NewAvailableQuantity

	var result *ports.OperationResult
	err := s.store.WithinTx(ctx, func(ctx context.Context, tx ports.Tx) error {
		sku, err := tx.GetSKUForUpdate(ctx, skuID)
		if err != nil {
			return err
		}

		old := sku.AvailableQuantity
		entry, err := s.applyAndLog(ctx, tx, sku, domain.QuantityChange{
			Action:        domain.LedgerActionAdjust,
			Delta:         target - old,
			ReferenceType: domain.RefAdjust,
			Note:          fmt.Sprintf("manual adjustment %d -> %d: %s", old, target, req.Reason),
			Actor:         req.Actor,
		})
		if err != nil {
			return err
		}

		result = &ports.OperationResult{SKU: sku, Ledger: entry}
		return nil
	})

	s.logOutcome(ctx, "adjust", err, slog.String("sku_id", skuID.String()), slog.Int("new_available", target))
	if err != nil {
		return nil, err
	}
	s.afterCommit(ctx, result.SKU, domain.LedgerActionAdjust)
	return result, nil
}

// Restock re-runs the SKU's original recipe quantity times. Either every material
// covers its requirement and all are consumed, or nothing changes.
func (s *LedgerService) Restock(ctx context.Context, skuID uuid.UUID, req ports.RestockRequest) (*ports.RestockResult, error) {
	if err := validateRequest(req); err != nil {
		return nil, err
	}

	var result *ports.RestockResult
	err := s.store.WithinTx(ctx, func(ctx context.Context, tx ports.Tx) error {
		sku, err := tx.GetSKUForUpdate(ctx, skuID)
		if err != nil {
			return err
		}

		usages, err := tx.ListUsagesBySKU(ctx, sku.ID)
		if err != nil {
			return fmt.Errorf("failed to load usage records: %w", err)
		}
		recipe := domain.DeriveRecipe(usages)
		if len(recipe) == 0 {
			return domain.NewValidationError("sku", fmt.Sprintf("%s has no recorded recipe", sku.Code))
		}

		// every batch the sku was ever made from can stand in for an equivalent recipe line
		var candidates []uuid.UUID
		for _, u := range usages {
			if u.Action == domain.UsageActionCreate {
				candidates = append(candidates, u.MaterialID)
			}
		}
		batches, err := lockMaterials(ctx, tx, candidates)
		if err != nil {
			return err
		}

		sources, shortfalls, err := pickRestockBatches(recipe, candidates, batches, req.Quantity)
		if err != nil {
			return err
		}
		if len(shortfalls) > 0 {
			return &domain.InsufficientMaterialError{Shortfalls: shortfalls}
		}

		production := uuid.New()
		consumed := make([]ports.MaterialMovement, 0, len(recipe))
		for i, item := range recipe {
			m := sources[i]
			need := item.QuantityPerUnit * req.Quantity
			moved, err := m.Consume(need)
			if err != nil {
				return err
			}
			if err := s.moveMaterial(ctx, tx, m, moved, &sku.ID,
				fmt.Sprintf("restock %s x%d", sku.Code, req.Quantity), req.Actor); err != nil {
				return err
			}
			if err := tx.InsertUsage(ctx, &domain.MaterialUsageRecord{
				ID:            uuid.New(),
				SKUID:         sku.ID,
				MaterialID:    m.ID,
				Action:        domain.UsageActionCreate,
				ProductionID:  production,
				BeadsUsed:     item.BeadsPerUnit,
				PiecesUsed:    item.PiecesPerUnit,
				QuantityUsed:  need,
				UnitsProduced: req.Quantity,
				CreatedBy:     req.Actor.ID,
				CreatedAt:     s.clock(),
			}); err != nil {
				return fmt.Errorf("failed to record usage of %s: %w", m.Code, err)
			}
			consumed = append(consumed, ports.MaterialMovement{
				MaterialID:     m.ID,
				MaterialCode:   m.Code,
				MaterialName:   m.Name,
				Quantity:       need,
				RemainingAfter: m.RemainingQuantity,
			})
		}

		totalCost := sku.Cost.BatchCost(req.Quantity)
		note := fmt.Sprintf("restocked %d, total cost %s (material %s + labor %s x%d + craft %s x%d)",
			req.Quantity, totalCost.StringFixed(2),
			sku.Cost.MaterialCost.Mul(decimal.NewFromInt(int64(req.Quantity))).StringFixed(2),
			sku.Cost.LaborCost.StringFixed(2), req.Quantity,
			sku.Cost.CraftCost.StringFixed(2), req.Quantity)
		if req.Note != "" {
			note += ": " + req.Note
		}
		entry, err := s.applyAndLog(ctx, tx, sku, domain.QuantityChange{
			Action:        domain.LedgerActionAdjust,
			Delta:         req.Quantity,
			Produced:      true,
			ReferenceType: domain.RefRestock,
			Note:          note,
			Actor:         req.Actor,
		})
		if err != nil {
			return err
		}

		result = &ports.RestockResult{SKU: sku, Consumed: consumed, TotalCost: totalCost, Ledger: entry}
		return nil
	})

	s.logOutcome(ctx, "restock", err, slog.String("sku_id", skuID.String()), slog.Int("quantity", req.Quantity))
	if err != nil {
		return nil, err
	}
	s.afterCommit(ctx, result.SKU, domain.LedgerActionAdjust)
	return result, nil
}

// pickRestockBatches maps each recipe line onto the one batch that will cover it: the line's own
// batch when it has enough left, otherwise the earliest equivalent batch with enough left after
// earlier lines took their share. Lines nothing can cover are reported against their own batch.
func pickRestockBatches(recipe []domain.RecipeItem, candidates []uuid.UUID,
	batches map[uuid.UUID]*domain.RawMaterialBatch, quantity int) ([]*domain.RawMaterialBatch, []domain.MaterialShortfall, error) {

	order := make([]uuid.UUID, 0, len(candidates))
	seen := make(map[uuid.UUID]bool, len(candidates))
	for _, id := range candidates {
		if !seen[id] {
			seen[id] = true
			order = append(order, id)
		}
	}

	reserved := make(map[uuid.UUID]int, len(order))
	free := func(m *domain.RawMaterialBatch) int { return m.RemainingQuantity - reserved[m.ID] }

	picked := make([]*domain.RawMaterialBatch, len(recipe))
	var shortfalls []domain.MaterialShortfall
	for i, item := range recipe {
		own := batches[item.MaterialID]
		need := item.QuantityPerUnit * quantity

		source := own
		if free(own) < need {
			source = nil
			key, err := domain.UsageKey(domain.PurchaseSourceFor(own, item.BeadsPerUnit, item.PiecesPerUnit))
			if err != nil {
				return nil, nil, err
			}
			for _, id := range order {
				alt := batches[id]
				if id == own.ID || free(alt) < need {
					continue
				}
				altKey, err := domain.UsageKey(domain.PurchaseSourceFor(alt, item.BeadsPerUnit, item.PiecesPerUnit))
				if err != nil {
					return nil, nil, err
				}
				if altKey == key {
					source = alt
					break
				}
			}
		}
		if source == nil {
			shortfalls = append(shortfalls, domain.MaterialShortfall{
				MaterialID:   own.ID,
				MaterialCode: own.Code,
				MaterialName: own.Name,
				Required:     need,
				Remaining:    free(own),
			})
			continue
		}
		reserved[source.ID] += need
		picked[i] = source
	}
	return picked, shortfalls, nil
}

// Control changes price and/or status. It always writes a zero-change ledger entry describing what changed.
func (s *LedgerService) Control(ctx context.Context, skuID uuid.UUID, req ports.ControlRequest) (*ports.OperationResult, error) {
	if err := validateRequest(req); err != nil {
		return nil, err
	}
	if req.SellingPrice == nil && req.Status == nil {
		return nil, domain.NewValidationError("", "selling_price or status is required")
	}

	var result *ports.OperationResult
	err := s.store.WithinTx(ctx, func(ctx context.Context, tx ports.Tx) error {
		sku, err := tx.GetSKUForUpdate(ctx, skuID)
		if err != nil {
			return err
		}

		var changes []string
		if req.SellingPrice != nil && !req.SellingPrice.Equal(sku.SellingPrice) {
			changes = append(changes, withReason(
				fmt.Sprintf("price %s -> %s", sku.SellingPrice.StringFixed(2), req.SellingPrice.StringFixed(2)),
				req.PriceReason))
			sku.SellingPrice = *req.SellingPrice
		}
		if req.Status != nil && *req.Status != sku.Status {
			changes = append(changes, withReason(fmt.Sprintf("status %s -> %s", sku.Status, *req.Status), req.StatusReason))
			sku.Status = *req.Status
		}
		note := "no changes"
		if len(changes) > 0 {
			note = strings.Join(changes, "; ")
		}

		entry, err := s.applyAndLog(ctx, tx, sku, domain.QuantityChange{
			Action:        domain.LedgerActionAdjust,
			Delta:         0,
			ReferenceType: domain.RefControl,
			Note:          note,
			Actor:         req.Actor,
		})
		if err != nil {
			return err
		}

		result = &ports.OperationResult{SKU: sku, Ledger: entry}
		return nil
	})

	s.logOutcome(ctx, "control", err, slog.String("sku_id", skuID.String()))
	if err != nil {
		return nil, err
	}
	s.afterCommit(ctx, result.SKU, domain.LedgerActionAdjust)
	return result, nil
}

func withReason(change, reason string) string {
	if reason == "" {
		return change
	}
	return change + " (" + reason + ")"
}

// Refund takes a completed purchase back into stock and out of the customer's totals.
func (s *LedgerService) Refund(ctx context.Context, purchaseID uuid.UUID, req ports.RefundRequest) (*ports.RefundResult, error) {
	if err := validateRequest(req); err != nil {
		return nil, err
	}

	var result *ports.RefundResult
	err := s.store.WithinTx(ctx, func(ctx context.Context, tx ports.Tx) error {
		purchase, err := tx.GetPurchaseForUpdate(ctx, purchaseID)
		if err != nil {
			return err
		}
		if purchase.Status != domain.PurchaseStatusCompleted {
			return domain.NewValidationError("purchase", fmt.Sprintf("is %s and cannot be refunded", purchase.Status))
		}

		sku, err := tx.GetSKUForUpdate(ctx, purchase.SKUID)
		if err != nil {
			return err
		}
		customer, err := tx.GetCustomerForUpdate(ctx, purchase.CustomerID)
		if err != nil {
			return err
		}

		now := s.clock()
		purchase.Status = domain.PurchaseStatusRefunded
		purchase.RefundReason = req.Reason
		purchase.RefundedAt = &now
		if err := tx.UpdatePurchase(ctx, purchase); err != nil {
			return fmt.Errorf("failed to update purchase: %w", err)
		}

		customer.RecordRefund(purchase.TotalPrice, now)
		if err := tx.UpdateCustomer(ctx, customer); err != nil {
			return fmt.Errorf("failed to update customer totals: %w", err)
		}

		// stock adjusted back up since the sale leaves less room than the purchase quantity
		restocked := purchase.Quantity
		if room := sku.TotalQuantity - sku.AvailableQuantity; restocked > room {
			restocked = max(room, 0)
		}
		note := fmt.Sprintf("refund of %d from %s: %s", purchase.Quantity, customer.Name, req.Reason)
		if restocked != purchase.Quantity {
			note = fmt.Sprintf("refund of %d from %s, %d back in stock: %s",
				purchase.Quantity, customer.Name, restocked, req.Reason)
		}
		entry, err := s.applyAndLog(ctx, tx, sku, domain.QuantityChange{
			Action:        domain.LedgerActionReturn,
			Delta:         restocked,
			ReferenceType: domain.RefRefund,
			ReferenceID:   purchase.ID.String(),
			Note:          note,
			Actor:         req.Actor,
		})
		if err != nil {
			return err
		}

		result = &ports.RefundResult{SKU: sku, Customer: customer, Purchase: purchase, Ledger: entry}
		return nil
	})

	s.logOutcome(ctx, "refund", err, slog.String("purchase_id", purchaseID.String()))
	if err != nil {
		return nil, err
	}
	s.afterCommit(ctx, result.SKU, domain.LedgerActionReturn)
	return result, nil
}
