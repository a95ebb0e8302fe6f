// internal/core/domain/errors.go
package domain

import (
	"errors"
	"fmt"
	"strings"

	"github.com/google/uuid"
)

// Sentinel errors. Callers match them with errors.Is; the typed errors below carry the details.
var (
	ErrNotFound             = errors.New("not found")
	ErrInsufficientStock    = errors.New("insufficient stock")
	ErrInsufficientMaterial = errors.New("insufficient material")
	ErrValidation           = errors.New("validation failed")
	ErrConflict             = errors.New("concurrent update conflict, try again")
)

// NotFoundError reports a missing SKU, material batch, customer or purchase.
type NotFoundError struct {
	Entity string
	ID     string
}

func (e *NotFoundError) Error() string {
	return fmt.Sprintf("%s not found: %s", e.Entity, e.ID)
}

func (e *NotFoundError) Is(target error) bool { return target == ErrNotFound }

// NewNotFoundError builds a NotFoundError for an entity keyed by uuid
func NewNotFoundError(entity string, id uuid.UUID) error {
	return &NotFoundError{Entity: entity, ID: id.String()}
}

// InsufficientStockError is returned when a sell or destroy asks for more than is available.
type InsufficientStockError struct {
	SKUCode   string
	Available int
	Requested int
}

func (e *InsufficientStockError) Error() string {
	return fmt.Sprintf("insufficient stock for %s: available %d, requested %d", e.SKUCode, e.Available, e.Requested)
}

func (e *InsufficientStockError) Is(target error) bool { return target == ErrInsufficientStock }

// MaterialShortfall describes one material that cannot cover a requirement
type MaterialShortfall struct {
	MaterialID   uuid.UUID `json:"material_id"`
	MaterialCode string    `json:"material_code"`
	MaterialName string    `json:"material_name"`
	Required     int       `json:"required"`
	Remaining    int       `json:"remaining"`
}

// Missing returns how many units are lacking
func (s MaterialShortfall) Missing() int {
	return s.Required - s.Remaining
}

// InsufficientMaterialError lists every material that is short, not just the first one found.
type InsufficientMaterialError struct {
	Shortfalls []MaterialShortfall
}

func (e *InsufficientMaterialError) Error() string {
	parts := make([]string, 0, len(e.Shortfalls))
	for _, s := range e.Shortfalls {
		parts = append(parts, fmt.Sprintf("%s (%s): need %d, have %d, short %d",
			s.MaterialName, s.MaterialCode, s.Required, s.Remaining, s.Missing()))
	}
	return "insufficient material: " + strings.Join(parts, "; ")
}

func (e *InsufficientMaterialError) Is(target error) bool { return target == ErrInsufficientMaterial }

// ValidationError reports malformed input
type ValidationError struct {
	Field   string
	Message string
}

func (e *ValidationError) Error() string {
	if e.Field == "" {
		return "validation failed: " + e.Message
	}
	return fmt.Sprintf("validation failed: %s %s", e.Field, e.Message)
}

func (e *ValidationError) Is(target error) bool { return target == ErrValidation }

// NewValidationError creates a ValidationError
func NewValidationError(field, message string) error {
	return &ValidationError{Field: field, Message: message}
}
