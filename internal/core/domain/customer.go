// internal/core/domain/customer.go
package domain

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// Customer is a buyer, matched by phone or, failing that, by name
type Customer struct {
	ID                uuid.UUID       `json:"id"`
	Name              string          `json:"name"`
	Phone             string          `json:"phone,omitempty"`
	TotalPurchases    decimal.Decimal `json:"total_purchases"`
	TotalOrders       int             `json:"total_orders"`
	RefundedOrders    int             `json:"refunded_orders"`
	FirstPurchaseDate *time.Time      `json:"first_purchase_date,omitempty"`
	LastPurchaseDate  *time.Time      `json:"last_purchase_date,omitempty"`
	CreatedAt         time.Time       `json:"created_at"`
	UpdatedAt         time.Time       `json:"updated_at"`
}

// RecordPurchase updates the running totals for a completed order
func (c *Customer) RecordPurchase(amount decimal.Decimal, at time.Time) {
	c.TotalPurchases = c.TotalPurchases.Add(amount)
	c.TotalOrders++
	if c.FirstPurchaseDate == nil {
		first := at
		c.FirstPurchaseDate = &first
	}
	last := at
	c.LastPurchaseDate = &last
	c.UpdatedAt = at
}

// RecordRefund takes a refunded order back out of the totals
func (c *Customer) RecordRefund(amount decimal.Decimal, at time.Time) {
	c.TotalPurchases = c.TotalPurchases.Sub(amount)
	if c.TotalPurchases.IsNegative() {
		c.TotalPurchases = decimal.Zero
	}
	if c.TotalOrders > 0 {
		c.TotalOrders--
	}
	c.RefundedOrders++
	c.UpdatedAt = at
}

// PurchaseStatus is the state of a customer purchase
type PurchaseStatus string

const (
	PurchaseStatusCompleted PurchaseStatus = "COMPLETED"
	PurchaseStatusRefunded  PurchaseStatus = "REFUNDED"
)

// CustomerPurchase records one sale of a SKU
type CustomerPurchase struct {
	ID           uuid.UUID       `json:"id"`
	CustomerID   uuid.UUID       `json:"customer_id"`
	SKUID        uuid.UUID       `json:"sku_id"`
	SKUCode      string          `json:"sku_code"`
	SKUName      string          `json:"sku_name"`
	Quantity     int             `json:"quantity"`
	UnitPrice    decimal.Decimal `json:"unit_price"`
	TotalPrice   decimal.Decimal `json:"total_price"`
	SaleChannel  string          `json:"sale_channel,omitempty"`
	Status       PurchaseStatus  `json:"status"`
	RefundReason string          `json:"refund_reason,omitempty"`
	PurchaseDate time.Time       `json:"purchase_date"`
	RefundedAt   *time.Time      `json:"refunded_at,omitempty"`
	CreatedBy    string          `json:"created_by,omitempty"`
}
