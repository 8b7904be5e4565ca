package model

import (
	"database/sql/driver"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	apperrors "github.com/jwalitptl/hospital-core/pkg/errors"
)

type BillStatus string

const (
	BillStatusPending       BillStatus = "pending"
	BillStatusPartiallyPaid BillStatus = "partially-paid"
	BillStatusPaid          BillStatus = "paid"
	BillStatusCancelled     BillStatus = "cancelled"
	BillStatusRefunded      BillStatus = "refunded"
)

type PaymentMethod string

const (
	PaymentMethodCash      PaymentMethod = "cash"
	PaymentMethodCard      PaymentMethod = "card"
	PaymentMethodInsurance PaymentMethod = "insurance"
	PaymentMethodOnline    PaymentMethod = "online"
)

// moneyPlaces matches the DECIMAL(12,2) storage of amounts.
const moneyPlaces = 2

type BillItem struct {
	Description string          `json:"description" validate:"required"`
	Quantity    int             `json:"quantity" validate:"gt=0"`
	UnitPrice   decimal.Decimal `json:"unit_price" validate:"nonneg_decimal"`
}

func (i BillItem) Amount() decimal.Decimal {
	return i.UnitPrice.Mul(decimal.NewFromInt(int64(i.Quantity)))
}

type BillItems []BillItem

func (b *BillItems) Scan(src interface{}) error { return scanJSON(src, b) }

func (b BillItems) Value() (driver.Value, error) {
	if b == nil {
		return []byte("[]"), nil
	}
	return valueJSON(b)
}

type Bill struct {
	Base
	BillNumber    string          `db:"bill_number" json:"bill_number" validate:"required,max=50"`
	PatientID     uuid.UUID       `db:"patient_id" json:"patient_id" validate:"required"`
	AppointmentID *uuid.UUID      `db:"appointment_id" json:"appointment_id,omitempty"`
	Items         BillItems       `db:"items" json:"items" validate:"dive"`
	TotalAmount   decimal.Decimal `db:"total_amount" json:"total_amount" validate:"nonneg_decimal"`
	Tax           decimal.Decimal `db:"tax" json:"tax" validate:"nonneg_decimal"`
	Discount      decimal.Decimal `db:"discount" json:"discount" validate:"nonneg_decimal"`
	FinalAmount   decimal.Decimal `db:"final_amount" json:"final_amount"`
	Status        BillStatus      `db:"status" json:"status" validate:"required,vocab=bill_status"`
	PaymentMethod *PaymentMethod  `db:"payment_method" json:"payment_method,omitempty" validate:"omitempty,vocab=payment_method"`
	PaidAt        *time.Time      `db:"paid_at" json:"paid_at,omitempty"`
	DueDate       *time.Time      `db:"due_date" json:"due_date,omitempty"`
	CreatedBy     *uuid.UUID      `db:"created_by" json:"created_by,omitempty"`
	Notes         *string         `db:"notes" json:"notes,omitempty"`
}

// Recalculate derives the total from the items and the final amount from
// total, discount and tax.
func (b *Bill) Recalculate() {
	total := decimal.Zero
	for _, it := range b.Items {
		total = total.Add(it.Amount())
	}
	b.TotalAmount = total.Round(moneyPlaces)
	b.Tax = b.Tax.Round(moneyPlaces)
	b.Discount = b.Discount.Round(moneyPlaces)
	b.FinalAmount = b.TotalAmount.Sub(b.Discount).Add(b.Tax)
}

func (b *Bill) Validate() error {
	if b.Status == "" {
		b.Status = BillStatusPending
	}
	if err := validateTags(b); err != nil {
		return err
	}
	if b.Discount.GreaterThan(b.TotalAmount.Add(b.Tax)) {
		return apperrors.NewValidation("discount", "discount exceeds the billed amount")
	}
	if want := b.TotalAmount.Sub(b.Discount).Add(b.Tax); !b.FinalAmount.Equal(want) {
		return apperrors.NewValidation("final_amount", fmt.Sprintf("final_amount %s does not equal %s", b.FinalAmount, want))
	}
	if b.Status == BillStatusPaid && b.PaymentMethod == nil {
		return apperrors.NewValidation("payment_method", "payment_method is required on a paid bill")
	}
	return nil
}

// MarkPaid settles the bill.
func (b *Bill) MarkPaid(method PaymentMethod, at time.Time) error {
	if b.Status != BillStatusPending && b.Status != BillStatusPartiallyPaid {
		return apperrors.NewInvalidTransition("bill", string(b.Status), string(BillStatusPaid))
	}
	b.Status = BillStatusPaid
	b.PaymentMethod = &method
	b.PaidAt = &at
	return nil
}

func (b *Bill) Derive() { b.Recalculate() }
