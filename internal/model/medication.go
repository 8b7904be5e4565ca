package model

import (
	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	apperrors "github.com/jwalitptl/hospital-core/pkg/errors"
)

type Medication struct {
	Base
	ItemCode             string          `db:"item_code" json:"item_code" validate:"required,max=50"`
	Name                 string          `db:"name" json:"name" validate:"required,max=255"`
	GenericName          *string         `db:"generic_name" json:"generic_name,omitempty" validate:"omitempty,max=255"`
	Manufacturer         *string         `db:"manufacturer" json:"manufacturer,omitempty" validate:"omitempty,max=255"`
	Category             *string         `db:"category" json:"category,omitempty" validate:"omitempty,max=100"`
	DosageForm           *string         `db:"dosage_form" json:"dosage_form,omitempty" validate:"omitempty,max=50"`
	Strength             *string         `db:"strength" json:"strength,omitempty" validate:"omitempty,max=50"`
	UnitPrice            decimal.Decimal `db:"unit_price" json:"unit_price"`
	RequiresPrescription bool            `db:"requires_prescription" json:"requires_prescription"`
}

func (m *Medication) Validate() error {
	return validateTags(m)
}

// OmaeraMedication is a partner-priced catalog entry. Every price change is
// attributed to the user who made it.
type OmaeraMedication struct {
	Base
	ItemCode      string          `db:"item_code" json:"item_code" validate:"required,max=50"`
	Name          string          `db:"name" json:"name" validate:"required,max=255"`
	OriginalPrice decimal.Decimal `db:"original_price" json:"original_price" validate:"nonneg_decimal"`
	CurrentPrice  decimal.Decimal `db:"current_price" json:"current_price" validate:"nonneg_decimal"`
	LastUpdatedBy uuid.UUID       `db:"last_updated_by" json:"last_updated_by" validate:"required"`
}

func (o *OmaeraMedication) Validate() error {
	return validateTags(o)
}

// SetPrice changes the current price on behalf of actor.
func (o *OmaeraMedication) SetPrice(price decimal.Decimal, actor uuid.UUID) error {
	if actor == uuid.Nil {
		return apperrors.NewValidation("last_updated_by", "price changes require an acting user")
	}
	if price.IsNegative() {
		return apperrors.NewValidation("current_price", "current_price must not be negative")
	}
	o.CurrentPrice = price
	o.LastUpdatedBy = actor
	return nil
}

// Markdown is the fraction the current price sits below the original.
func (o *OmaeraMedication) Markdown() decimal.Decimal {
	if o.OriginalPrice.IsZero() {
		return decimal.Zero
	}
	return o.OriginalPrice.Sub(o.CurrentPrice).Div(o.OriginalPrice)
}
