package model

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	apperrors "github.com/jwalitptl/hospital-core/pkg/errors"
)

type InventoryStatus string

const (
	InventoryStatusInStock    InventoryStatus = "in-stock"
	InventoryStatusLowStock   InventoryStatus = "low-stock"
	InventoryStatusOutOfStock InventoryStatus = "out-of-stock"
)

// DeriveInventoryStatus is the only source of an item's status.
func DeriveInventoryStatus(quantity, minimumLevel int) InventoryStatus {
	switch {
	case quantity <= 0:
		return InventoryStatusOutOfStock
	case quantity <= minimumLevel:
		return InventoryStatusLowStock
	default:
		return InventoryStatusInStock
	}
}

// InventoryStatusSQL is DeriveInventoryStatus as a SQL expression over the
// given quantity and minimum level expressions.
func InventoryStatusSQL(quantity, minimumLevel string) string {
	return "CASE WHEN " + quantity + " <= 0 THEN '" + string(InventoryStatusOutOfStock) +
		"' WHEN " + quantity + " <= " + minimumLevel + " THEN '" + string(InventoryStatusLowStock) +
		"' ELSE '" + string(InventoryStatusInStock) + "' END"
}

type InventoryItem struct {
	Base
	ItemCode        string          `db:"item_code" json:"item_code" validate:"required,max=50"`
	Name            string          `db:"name" json:"name" validate:"required,max=255"`
	Category        *string         `db:"category" json:"category,omitempty" validate:"omitempty,max=100"`
	MedicationID    *uuid.UUID      `db:"medication_id" json:"medication_id,omitempty"`
	Quantity        int             `db:"quantity" json:"quantity" validate:"gte=0"`
	MinimumLevel    int             `db:"minimum_level" json:"minimum_level" validate:"gte=0"`
	Unit            *string         `db:"unit" json:"unit,omitempty" validate:"omitempty,max=30"`
	UnitPrice       decimal.Decimal `db:"unit_price" json:"unit_price" validate:"nonneg_decimal"`
	Status          InventoryStatus `db:"status" json:"status" validate:"required,vocab=inventory_status"`
	Supplier        *string         `db:"supplier" json:"supplier,omitempty" validate:"omitempty,max=255"`
	ExpiryDate      *time.Time      `db:"expiry_date" json:"expiry_date,omitempty"`
	LastRestockedAt *time.Time      `db:"last_restocked_at" json:"last_restocked_at,omitempty"`
}

// Refresh recomputes the derived status.
func (i *InventoryItem) Refresh() {
	i.Status = DeriveInventoryStatus(i.Quantity, i.MinimumLevel)
}

func (i *InventoryItem) Validate() error {
	i.Refresh()
	return validateTags(i)
}

// Adjust applies a quantity delta and recomputes the status.
func (i *InventoryItem) Adjust(delta int, now time.Time) error {
	if i.Quantity+delta < 0 {
		return apperrors.NewValidation("quantity", "quantity cannot go below zero")
	}
	i.Quantity += delta
	if delta > 0 {
		i.LastRestockedAt = &now
	}
	i.Refresh()
	return nil
}

func (i *InventoryItem) IsExpired(now time.Time) bool {
	return i.ExpiryDate != nil && !i.ExpiryDate.After(now)
}

func (i *InventoryItem) Derive() { i.Refresh() }
