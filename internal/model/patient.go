package model

import (
	"database/sql/driver"
	"time"

	"github.com/google/uuid"
	"github.com/lib/pq"
)

type Gender string

const (
	GenderMale   Gender = "male"
	GenderFemale Gender = "female"
	GenderOther  Gender = "other"
)

type EmergencyContact struct {
	Name         string `json:"name" validate:"required"`
	Relationship string `json:"relationship,omitempty"`
	Phone        string `json:"phone" validate:"required,max=20"`
}

func (c *EmergencyContact) Scan(src interface{}) error { return scanJSON(src, c) }

func (c *EmergencyContact) Value() (driver.Value, error) {
	if c == nil {
		return nil, nil
	}
	return valueJSON(c)
}

type InsuranceInfo struct {
	Provider     string     `json:"provider" validate:"required"`
	PolicyNumber string     `json:"policy_number" validate:"required"`
	GroupNumber  string     `json:"group_number,omitempty"`
	ValidUntil   *time.Time `json:"valid_until,omitempty"`
}

func (i *InsuranceInfo) Scan(src interface{}) error { return scanJSON(src, i) }

func (i *InsuranceInfo) Value() (driver.Value, error) {
	if i == nil {
		return nil, nil
	}
	return valueJSON(i)
}

type Patient struct {
	Base
	SoftDelete
	UserID             uuid.UUID         `db:"user_id" json:"user_id" validate:"required"`
	DateOfBirth        *time.Time        `db:"date_of_birth" json:"date_of_birth,omitempty"`
	Gender             *Gender           `db:"gender" json:"gender,omitempty" validate:"omitempty,vocab=gender"`
	BloodGroup         *string           `db:"blood_group" json:"blood_group,omitempty" validate:"omitempty,oneof=A+ A- B+ B- AB+ AB- O+ O-"`
	Address            *string           `db:"address" json:"address,omitempty"`
	EmergencyContact   *EmergencyContact `db:"emergency_contact" json:"emergency_contact,omitempty" validate:"omitempty"`
	MedicalHistory     *string           `db:"medical_history" json:"medical_history,omitempty"`
	Allergies          pq.StringArray    `db:"allergies" json:"allergies"`
	CurrentMedications pq.StringArray    `db:"current_medications" json:"current_medications"`
	InsuranceInfo      *InsuranceInfo    `db:"insurance_info" json:"insurance_info,omitempty" validate:"omitempty"`

	User *User `db:"-" json:"user,omitempty" validate:"-"`
}

func (p *Patient) Validate() error {
	return validateTags(p)
}

// Age in whole years at now, or -1 when the birth date is unknown.
func (p *Patient) Age(now time.Time) int {
	if p.DateOfBirth == nil {
		return -1
	}
	dob := *p.DateOfBirth
	age := now.Year() - dob.Year()
	if now.Month() < dob.Month() || (now.Month() == dob.Month() && now.Day() < dob.Day()) {
		age--
	}
	return age
}
