package model

import "database/sql/driver"

type DepartmentStatus string

const (
	DepartmentStatusActive   DepartmentStatus = "active"
	DepartmentStatusInactive DepartmentStatus = "inactive"
)

// OpeningHours maps a weekday name to an "HH:MM-HH:MM" window.
type OpeningHours map[string]string

func (h *OpeningHours) Scan(src interface{}) error { return scanJSON(src, h) }

func (h OpeningHours) Value() (driver.Value, error) {
	if h == nil {
		return nil, nil
	}
	return valueJSON(h)
}

type Department struct {
	Base
	Name         string           `db:"name" json:"name" validate:"required,max=100"`
	Description  *string          `db:"description" json:"description,omitempty"`
	Location     *string          `db:"location" json:"location,omitempty" validate:"omitempty,max=255"`
	Phone        *string          `db:"phone" json:"phone,omitempty" validate:"omitempty,max=20"`
	OpeningHours OpeningHours     `db:"opening_hours" json:"opening_hours,omitempty"`
	Status       DepartmentStatus `db:"status" json:"status" validate:"required,vocab=department_status"`
}

func (d *Department) Validate() error {
	if d.Status == "" {
		d.Status = DepartmentStatusActive
	}
	return validateTags(d)
}
