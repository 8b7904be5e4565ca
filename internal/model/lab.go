package model

import (
	"database/sql/driver"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	apperrors "github.com/jwalitptl/hospital-core/pkg/errors"
)

type LabCategory string

const (
	LabCategoryHematology   LabCategory = "hematology"
	LabCategoryBiochemistry LabCategory = "biochemistry"
	LabCategoryMicrobiology LabCategory = "microbiology"
	LabCategoryImmunology   LabCategory = "immunology"
	LabCategoryPathology    LabCategory = "pathology"
	LabCategoryRadiology    LabCategory = "radiology"
	LabCategoryCardiology   LabCategory = "cardiology"
)

type ParameterValueType string

const (
	ValueTypeNumeric ParameterValueType = "numeric"
	ValueTypeText    ParameterValueType = "text"
	ValueTypeBoolean ParameterValueType = "boolean"
)

// TestParameter is one expected measurement of a template. Numeric
// parameters carry a normal range; text and boolean ones carry the normal
// value.
type TestParameter struct {
	Name        string             `json:"name" validate:"required"`
	Unit        string             `json:"unit,omitempty"`
	ValueType   ParameterValueType `json:"value_type" validate:"required,vocab=parameter_value_type"`
	Min         *decimal.Decimal   `json:"min,omitempty"`
	Max         *decimal.Decimal   `json:"max,omitempty"`
	NormalValue string             `json:"normal_value,omitempty"`
}

// IsAbnormal compares raw against the parameter's normal range or value.
func (p TestParameter) IsAbnormal(raw string) (bool, error) {
	raw = strings.TrimSpace(raw)
	switch p.ValueType {
	case ValueTypeNumeric:
		v, err := decimal.NewFromString(raw)
		if err != nil {
			return false, apperrors.NewValidation("parameter_values", fmt.Sprintf("%s: %q is not numeric", p.Name, raw))
		}
		return (p.Min != nil && v.LessThan(*p.Min)) || (p.Max != nil && v.GreaterThan(*p.Max)), nil
	case ValueTypeBoolean:
		v, err := strconv.ParseBool(raw)
		if err != nil {
			return false, apperrors.NewValidation("parameter_values", fmt.Sprintf("%s: %q is not a boolean", p.Name, raw))
		}
		if p.NormalValue == "" {
			return false, nil
		}
		normal, err := strconv.ParseBool(p.NormalValue)
		return err == nil && v != normal, nil
	default:
		return p.NormalValue != "" && !strings.EqualFold(raw, p.NormalValue), nil
	}
}

type TestParameters []TestParameter

func (t *TestParameters) Scan(src interface{}) error { return scanJSON(src, t) }

func (t TestParameters) Value() (driver.Value, error) {
	if t == nil {
		return []byte("[]"), nil
	}
	return valueJSON(t)
}

type LabTestTemplate struct {
	Base
	Name            string          `db:"name" json:"name" validate:"required,max=255"`
	Category        LabCategory     `db:"category" json:"category" validate:"required,vocab=lab_category"`
	Description     *string         `db:"description" json:"description,omitempty"`
	Parameters      TestParameters  `db:"parameters" json:"parameters" validate:"dive"`
	Price           decimal.Decimal `db:"price" json:"price" validate:"nonneg_decimal"`
	TurnaroundHours int             `db:"turnaround_hours" json:"turnaround_hours" validate:"gt=0"`
	Active          bool            `db:"active" json:"active"`
}

func (t *LabTestTemplate) Validate() error {
	if err := validateTags(t); err != nil {
		return err
	}
	seen := make(map[string]struct{}, len(t.Parameters))
	for _, p := range t.Parameters {
		key := strings.ToLower(p.Name)
		if _, dup := seen[key]; dup {
			return apperrors.NewValidation("parameters", fmt.Sprintf("parameter %s defined twice", p.Name))
		}
		seen[key] = struct{}{}
		if p.Min != nil && p.Max != nil && p.Min.GreaterThan(*p.Max) {
			return apperrors.NewValidation("parameters", fmt.Sprintf("parameter %s has min above max", p.Name))
		}
	}
	return nil
}

func (t *LabTestTemplate) Parameter(name string) (TestParameter, bool) {
	for _, p := range t.Parameters {
		if strings.EqualFold(p.Name, name) {
			return p, true
		}
	}
	return TestParameter{}, false
}

// Evaluate reports whether any value falls outside the template's normal
// range. Values naming unknown parameters are rejected.
func (t *LabTestTemplate) Evaluate(values []ParameterValue) (bool, error) {
	abnormal := false
	for _, v := range values {
		p, ok := t.Parameter(v.Name)
		if !ok {
			return false, apperrors.NewValidation("parameter_values", fmt.Sprintf("%s is not a parameter of %s", v.Name, t.Name))
		}
		out, err := p.IsAbnormal(v.Value)
		if err != nil {
			return false, err
		}
		abnormal = abnormal || out
	}
	return abnormal, nil
}

type TestResultStatus string

const (
	TestResultStatusPending    TestResultStatus = "pending"
	TestResultStatusInProgress TestResultStatus = "in-progress"
	TestResultStatusCompleted  TestResultStatus = "completed"
	TestResultStatusCancelled  TestResultStatus = "cancelled"
)

// ParameterValue is a measured value for a template parameter.
type ParameterValue struct {
	Name  string `json:"name" validate:"required"`
	Value string `json:"value" validate:"required"`
}

type ParameterValues []ParameterValue

func (p *ParameterValues) Scan(src interface{}) error { return scanJSON(src, p) }

func (p ParameterValues) Value() (driver.Value, error) {
	if p == nil {
		return []byte("[]"), nil
	}
	return valueJSON(p)
}

type TestResult struct {
	Base
	PatientID       uuid.UUID        `db:"patient_id" json:"patient_id" validate:"required"`
	DoctorID        uuid.UUID        `db:"doctor_id" json:"doctor_id" validate:"required"`
	TemplateID      *uuid.UUID       `db:"template_id" json:"template_id,omitempty"`
	Result          string           `db:"result" json:"result" validate:"required"`
	ParameterValues ParameterValues  `db:"parameter_values" json:"parameter_values" validate:"dive"`
	Status          TestResultStatus `db:"status" json:"status" validate:"required,vocab=test_result_status"`
	IsAbnormal      bool             `db:"is_abnormal" json:"is_abnormal"`
	Notes           *string          `db:"notes" json:"notes,omitempty"`
	PerformedBy     *uuid.UUID       `db:"performed_by" json:"performed_by,omitempty"`
	ResultDate      *time.Time       `db:"result_date" json:"result_date,omitempty"`
}

func (r *TestResult) Validate() error {
	if r.Status == "" {
		r.Status = TestResultStatusPending
	}
	return validateTags(r)
}

// ApplyTemplate derives IsAbnormal from the template. Results without a
// template keep the flag the caller supplied.
func (r *TestResult) ApplyTemplate(t *LabTestTemplate) error {
	if t == nil {
		return nil
	}
	if r.TemplateID == nil || *r.TemplateID != t.ID {
		return apperrors.NewValidation("template_id", "template does not match the result")
	}
	abnormal, err := t.Evaluate(r.ParameterValues)
	if err != nil {
		return err
	}
	r.IsAbnormal = abnormal
	return nil
}
