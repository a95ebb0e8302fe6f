// internal/core/services/resolver.go
package services

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/ammerola/beadledger/internal/core/domain"
	"github.com/ammerola/beadledger/internal/core/ports"
)

// CreateMaterialBatch registers a purchased batch with a fresh daily code
func (s *LedgerService) CreateMaterialBatch(ctx context.Context, req ports.CreateMaterialRequest) (*domain.RawMaterialBatch, error) {
	if err := validateRequest(req); err != nil {
		return nil, err
	}

	var created *domain.RawMaterialBatch
	err := s.store.WithinTx(ctx, func(ctx context.Context, tx ports.Tx) error {
		now := s.clock()
		seq, err := tx.CountMaterialsCreatedSince(ctx, domain.StartOfDay(now))
		if err != nil {
			return fmt.Errorf("failed to count today's materials: %w", err)
		}

		m := &domain.RawMaterialBatch{
			Code:              domain.DailyCode(domain.MaterialCodePrefix, now, seq+1),
			Name:              req.Name,
			Type:              req.Type,
			Quality:           req.Quality,
			BeadDiameter:      req.BeadDiameter,
			Specification:     req.Specification,
			TotalQuantity:     req.Quantity,
			RemainingQuantity: req.Quantity,
			UnitCost:          req.UnitCost,
			Supplier:          req.Supplier,
			CreatedBy:         req.Actor.ID,
		}
		m.PrepareForStorage(now)
		if err := m.Validate(); err != nil {
			return err
		}
		if err := tx.InsertMaterial(ctx, m); err != nil {
			return fmt.Errorf("failed to insert material: %w", err)
		}

		entry := domain.MaterialLedgerEntry{
			MaterialID:     m.ID,
			Action:         domain.MaterialActionPurchase,
			QuantityChange: m.TotalQuantity,
			QuantityBefore: 0,
			QuantityAfter:  m.TotalQuantity,
		}
		entry.Stamp(nil, "purchase "+m.Code, req.Actor, now)
		if err := tx.InsertMaterialLedgerEntry(ctx, &entry); err != nil {
			return fmt.Errorf("failed to write material ledger: %w", err)
		}

		created = m
		return nil
	})

	s.logOutcome(ctx, "create_material", err, slog.String("name", req.Name))
	if err != nil {
		return nil, err
	}
	return created, nil
}

// CombinationCraft produces a SKU from several materials in chosen per-unit quantities.
func (s *LedgerService) CombinationCraft(ctx context.Context, req ports.ProductionRequest) (*ports.ProductionResult, error) {
	return s.FindOrCreateSKU(ctx, req)
}

// DirectTransform turns a finished-material batch into SKU units, one piece each.
func (s *LedgerService) DirectTransform(ctx context.Context, req ports.DirectTransformRequest) (*ports.ProductionResult, error) {
	if err := validateRequest(req); err != nil {
		return nil, err
	}
	if req.Quantity == 0 {
		req.Quantity = 1
	}

	prod := ports.ProductionRequest{
		Materials:    []ports.MaterialUsageRequest{{PurchaseID: req.PurchaseID, QuantityUsedPieces: 1}},
		ProductName:  req.ProductName,
		SellingPrice: req.SellingPrice,
		LaborCost:    req.LaborCost,
		CraftCost:    req.CraftCost,
		Quantity:     req.Quantity,
		Actor:        req.Actor,
	}
	finished := domain.MaterialFinishedMaterial
	return s.resolve(ctx, prod, &finished)
}

// FindOrCreateSKU consumes the requested materials and either merges the production into
// the SKU with the same signature or creates a new SKU. It runs as one transaction.
func (s *LedgerService) FindOrCreateSKU(ctx context.Context, req ports.ProductionRequest) (*ports.ProductionResult, error) {
	if req.Quantity == 0 {
		req.Quantity = 1
	}
	if err := validateRequest(req); err != nil {
		return nil, err
	}
	if domain.CanonicalSKUName(req.ProductName) == "" {
		return nil, domain.NewValidationError("product_name", "is empty once the batch suffix is removed")
	}
	return s.resolve(ctx, req, nil)
}

func (s *LedgerService) resolve(ctx context.Context, req ports.ProductionRequest, requiredType *domain.MaterialType) (*ports.ProductionResult, error) {
	ids := make([]uuid.UUID, 0, len(req.Materials))
	seen := make(map[uuid.UUID]struct{}, len(req.Materials))
	for i, u := range req.Materials {
		if _, dup := seen[u.PurchaseID]; dup {
			return nil, domain.NewValidationError(fmt.Sprintf("materials[%d].purchase_id", i), "is listed more than once")
		}
		seen[u.PurchaseID] = struct{}{}
		ids = append(ids, u.PurchaseID)
	}

	if release := s.lockSignature(ctx, req, ids); release != nil {
		defer release()
	}

	var result *ports.ProductionResult
	err := s.store.WithinTx(ctx, func(ctx context.Context, tx ports.Tx) error {
		r, err := s.resolveTx(ctx, tx, req, ids, requiredType)
		if err != nil {
			return err
		}
		result = r
		return nil
	})

	attrs := []slog.Attr{slog.Int("quantity", req.Quantity)}
	if result != nil {
		attrs = append(attrs,
			slog.String("sku_id", result.SKU.ID.String()),
			slog.String("sku_code", result.SKU.Code),
			slog.String("signature", result.Signature),
			slog.Bool("is_new", result.IsNew))
	}
	s.logOutcome(ctx, "produce", err, attrs...)
	if err != nil {
		return nil, err
	}

	s.afterCommit(ctx, result.SKU, domain.LedgerActionCreate)
	return result, nil
}

func (s *LedgerService) resolveTx(ctx context.Context, tx ports.Tx, req ports.ProductionRequest,
	ids []uuid.UUID, requiredType *domain.MaterialType) (*ports.ProductionResult, error) {

	batches, err := lockMaterials(ctx, tx, ids)
	if err != nil {
		return nil, err
	}

	inputs := make([]domain.SignatureInput, 0, len(req.Materials))
	perUnit := make([]int, len(req.Materials))
	materialCost := decimal.Zero
	var shortfalls []domain.MaterialShortfall

	for i, u := range req.Materials {
		m := batches[u.PurchaseID]
		if requiredType != nil && m.Type != *requiredType {
			return nil, domain.NewValidationError("purchase_id",
				fmt.Sprintf("%s is %s, expected %s", m.Code, m.Type, *requiredType))
		}

		inputs = append(inputs, domain.PurchaseSourceFor(m, u.QuantityUsedBeads, u.QuantityUsedPieces))
		perUnit[i] = m.UnitsFor(u.QuantityUsedBeads, u.QuantityUsedPieces)
		materialCost = materialCost.Add(m.UnitCost.Mul(decimal.NewFromInt(int64(perUnit[i]))))

		if need := perUnit[i] * req.Quantity; need > m.RemainingQuantity {
			shortfalls = append(shortfalls, domain.MaterialShortfall{
				MaterialID:   m.ID,
				MaterialCode: m.Code,
				MaterialName: m.Name,
				Required:     need,
				Remaining:    m.RemainingQuantity,
			})
		}
	}
	if len(shortfalls) > 0 {
		return nil, &domain.InsufficientMaterialError{Shortfalls: shortfalls}
	}

	sig, err := domain.ComputeSignature(inputs)
	if err != nil {
		return nil, err
	}

	name := req.ProductName
	if name == "" && len(req.Materials) == 1 {
		name = batches[req.Materials[0].PurchaseID].Name
	}

	result := &ports.ProductionResult{Signature: sig.Hash}

	sku, err := tx.FindSKUBySignature(ctx, sig.Hash)
	if err != nil {
		return nil, fmt.Errorf("failed to look up signature %s: %w", sig.Hash, err)
	}
	if sku != nil {
		result.PriceFlagged = s.priceOutsideTolerance(sku.SellingPrice, req.SellingPrice)
		if result.PriceFlagged {
			s.logger.WarnContext(ctx, "production price differs from existing sku price beyond tolerance",
				slog.String("sku_code", sku.Code),
				slog.String("existing_price", sku.SellingPrice.String()),
				slog.String("requested_price", req.SellingPrice.String()),
				slog.String("tolerance", s.cfg.PriceTolerance.String()))
		}
	} else {
		if domain.CanonicalSKUName(name) == "" {
			return nil, domain.NewValidationError("product_name", "is empty once the batch suffix is removed")
		}
		sku, err = s.newSKU(ctx, tx, domain.CanonicalSKUName(name), sig.Hash, req, materialCost)
		if err != nil {
			return nil, err
		}
		result.IsNew = true
	}

	note := fmt.Sprintf("produced %d", req.Quantity)
	if !result.IsNew {
		note = fmt.Sprintf("produced %d, merged by signature %s", req.Quantity, sig.Hash)
	}
	entry, err := s.applyAndLog(ctx, tx, sku, domain.QuantityChange{
		Action:        domain.LedgerActionCreate,
		Delta:         req.Quantity,
		Produced:      true,
		ReferenceType: domain.RefProduction,
		ReferenceID:   sig.Hash,
		Note:          note,
		Actor:         req.Actor,
	})
	if err != nil {
		return nil, err
	}
	result.SKU = sku
	result.Ledger = entry

	production := uuid.New()
	for i, u := range req.Materials {
		m := batches[u.PurchaseID]
		units := perUnit[i] * req.Quantity
		moved, err := m.Consume(units)
		if err != nil {
			return nil, err
		}
		if err := s.moveMaterial(ctx, tx, m, moved, &sku.ID, "production of "+sku.Code, req.Actor); err != nil {
			return nil, err
		}
		if err := tx.InsertUsage(ctx, &domain.MaterialUsageRecord{
			ID:            uuid.New(),
			SKUID:         sku.ID,
			MaterialID:    m.ID,
			Action:        domain.UsageActionCreate,
			ProductionID:  production,
			BeadsUsed:     u.QuantityUsedBeads,
			PiecesUsed:    u.QuantityUsedPieces,
			QuantityUsed:  units,
			UnitsProduced: req.Quantity,
			CreatedBy:     req.Actor.ID,
			CreatedAt:     s.clock(),
		}); err != nil {
			return nil, fmt.Errorf("failed to record usage of %s: %w", m.Code, err)
		}
		result.Consumed = append(result.Consumed, ports.MaterialMovement{
			MaterialID:     m.ID,
			MaterialCode:   m.Code,
			MaterialName:   m.Name,
			Quantity:       units,
			RemainingAfter: m.RemainingQuantity,
		})
	}

	return result, nil
}

// newSKU allocates the next daily code and inserts an empty SKU; the production itself goes through applyAndLog.
func (s *LedgerService) newSKU(ctx context.Context, tx ports.Tx, name, hash string,
	req ports.ProductionRequest, materialCost decimal.Decimal) (*domain.SKU, error) {

	now := s.clock()
	seq, err := tx.CountSKUsCreatedSince(ctx, domain.StartOfDay(now))
	if err != nil {
		return nil, fmt.Errorf("failed to count today's skus: %w", err)
	}

	sku := &domain.SKU{
		ID:            uuid.New(),
		Code:          domain.DailyCode(domain.SKUCodePrefix, now, seq+1),
		Name:          name,
		SignatureHash: hash,
		Cost:          domain.NewCostBreakdown(materialCost, req.LaborCost, req.CraftCost),
		SellingPrice:  req.SellingPrice,
		Status:        domain.SKUStatusActive,
		CreatedBy:     req.Actor.ID,
		CreatedAt:     now,
		UpdatedAt:     now,
	}
	sku.Recompute()

	if err := tx.InsertSKU(ctx, sku); err != nil {
		return nil, fmt.Errorf("failed to insert sku %s: %w", sku.Code, err)
	}
	return sku, nil
}

// priceOutsideTolerance reports whether requested differs from existing by more than the tolerance, relative to existing.
func (s *LedgerService) priceOutsideTolerance(existing, requested decimal.Decimal) bool {
	if existing.IsZero() {
		return !requested.IsZero()
	}
	diff := requested.Sub(existing).Abs().Div(existing.Abs())
	return diff.GreaterThan(s.cfg.PriceTolerance)
}

// lockSignature takes a best-effort cross-process lock on the recipe's signature so identical
// productions queue up instead of colliding in the database. The database stays the authority:
// when the lock is unavailable the production simply proceeds.
func (s *LedgerService) lockSignature(ctx context.Context, req ports.ProductionRequest, ids []uuid.UUID) func() {
	if s.locker == nil {
		return nil
	}

	batches, err := s.queries.GetMaterials(ctx, ids)
	if err != nil {
		s.logger.WarnContext(ctx, "skipping signature lock, materials unavailable", slog.String("error", err.Error()))
		return nil
	}
	inputs := make([]domain.SignatureInput, 0, len(req.Materials))
	for _, u := range req.Materials {
		m, ok := batches[u.PurchaseID]
		if !ok {
			return nil
		}
		inputs = append(inputs, domain.PurchaseSourceFor(m, u.QuantityUsedBeads, u.QuantityUsedPieces))
	}
	sig, err := domain.ComputeSignature(inputs)
	if err != nil {
		return nil
	}

	lock, err := s.locker.TryLock(ctx, "lock:sku-signature:"+sig.Hash, s.cfg.LockTTL)
	if err != nil {
		if !errors.Is(err, ports.ErrLockNotObtained) {
			s.logger.WarnContext(ctx, "error obtaining signature lock; proceeding without it",
				slog.String("signature", sig.Hash),
				slog.String("error", err.Error()))
		}
		return nil
	}
	return func() {
		if err := lock.Release(context.WithoutCancel(ctx)); err != nil {
			s.logger.DebugContext(ctx, "failed to release signature lock", slog.String("error", err.Error()))
		}
	}
}
