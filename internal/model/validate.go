package model

import (
	"reflect"

	"github.com/go-playground/validator/v10"
	"github.com/shopspring/decimal"

	"github.com/jwalitptl/hospital-core/internal/schema"
	pkgvalidator "github.com/jwalitptl/hospital-core/pkg/validator"
)

// Validatable is implemented by every record; Validate runs the tag rules
// and then the record's own cross-field rules.
type Validatable interface {
	Validate() error
}

// Validate runs v's validation contract.
func Validate(v Validatable) error {
	return v.Validate()
}

var tags = mustValidator()

func mustValidator() pkgvalidator.Validator {
	v, err := pkgvalidator.New(
		[]pkgvalidator.Rule{
			{Tag: "vocab", Fn: vocabulary, Message: "is not an accepted value"},
			{Tag: "nonneg_decimal", Fn: nonNegativeDecimal, Message: "must not be negative"},
		},
		pkgvalidator.TypeFunc{Fn: decimalString, Types: []interface{}{decimal.Decimal{}, decimal.NullDecimal{}}},
	)
	if err != nil {
		panic(err)
	}
	return v
}

// vocabulary accepts values of the enum named by the tag parameter that are
// not deprecated. Empty values are left to required/omitempty.
func vocabulary(fl validator.FieldLevel) bool {
	value := fl.Field().String()
	if value == "" {
		return true
	}
	e, ok := schema.Current().Enum(fl.Param())
	if !ok {
		return false
	}
	return e.Accepts(value)
}

func nonNegativeDecimal(fl validator.FieldLevel) bool {
	if fl.Field().Kind() != reflect.String {
		return false
	}
	s := fl.Field().String()
	if s == "" {
		return true
	}
	d, err := decimal.NewFromString(s)
	return err == nil && !d.IsNegative()
}

func decimalString(field reflect.Value) interface{} {
	switch d := field.Interface().(type) {
	case decimal.Decimal:
		return d.String()
	case decimal.NullDecimal:
		if !d.Valid {
			return ""
		}
		return d.Decimal.String()
	}
	return nil
}

func validateTags(v interface{}) error {
	return tags.Validate(v)
}
