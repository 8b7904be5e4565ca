package model

import (
	"database/sql/driver"
	"fmt"
	"sort"
	"time"

	"github.com/google/uuid"
	"github.com/lib/pq"
	"github.com/shopspring/decimal"

	apperrors "github.com/jwalitptl/hospital-core/pkg/errors"
)

const clockLayout = "15:04"

// AvailabilitySlot is a weekly window in which the doctor takes appointments.
type AvailabilitySlot struct {
	Day   string `json:"day" validate:"required,oneof=monday tuesday wednesday thursday friday saturday sunday"`
	Start string `json:"start" validate:"required"`
	End   string `json:"end" validate:"required"`
}

func (s AvailabilitySlot) bounds() (time.Time, time.Time, error) {
	start, err := time.Parse(clockLayout, s.Start)
	if err != nil {
		return time.Time{}, time.Time{}, apperrors.NewValidation("availability", fmt.Sprintf("invalid start time %q", s.Start))
	}
	end, err := time.Parse(clockLayout, s.End)
	if err != nil {
		return time.Time{}, time.Time{}, apperrors.NewValidation("availability", fmt.Sprintf("invalid end time %q", s.End))
	}
	if !end.After(start) {
		return time.Time{}, time.Time{}, apperrors.NewValidation("availability",
			fmt.Sprintf("%s slot %s-%s ends before it starts", s.Day, s.Start, s.End))
	}
	return start, end, nil
}

// Covers reports whether t falls inside the slot.
func (s AvailabilitySlot) Covers(t time.Time) bool {
	if s.Day != weekday(t) {
		return false
	}
	start, end, err := s.bounds()
	if err != nil {
		return false
	}
	clock, _ := time.Parse(clockLayout, t.Format(clockLayout))
	return !clock.Before(start) && clock.Before(end)
}

func weekday(t time.Time) string {
	return map[time.Weekday]string{
		time.Monday: "monday", time.Tuesday: "tuesday", time.Wednesday: "wednesday",
		time.Thursday: "thursday", time.Friday: "friday", time.Saturday: "saturday", time.Sunday: "sunday",
	}[t.Weekday()]
}

type Availability []AvailabilitySlot

func (a *Availability) Scan(src interface{}) error { return scanJSON(src, a) }

func (a Availability) Value() (driver.Value, error) {
	if a == nil {
		return []byte("[]"), nil
	}
	return valueJSON(a)
}

// Validate rejects malformed slots and slots overlapping on the same day.
func (a Availability) Validate() error {
	type window struct {
		start, end time.Time
		slot       AvailabilitySlot
	}
	byDay := make(map[string][]window)
	for _, s := range a {
		if err := validateTags(s); err != nil {
			return err
		}
		start, end, err := s.bounds()
		if err != nil {
			return err
		}
		byDay[s.Day] = append(byDay[s.Day], window{start, end, s})
	}
	for day, ws := range byDay {
		sort.Slice(ws, func(i, j int) bool { return ws[i].start.Before(ws[j].start) })
		for i := 1; i < len(ws); i++ {
			if ws[i].start.Before(ws[i-1].end) {
				return apperrors.NewValidation("availability", fmt.Sprintf("%s slots %s-%s and %s-%s overlap",
					day, ws[i-1].slot.Start, ws[i-1].slot.End, ws[i].slot.Start, ws[i].slot.End))
			}
		}
	}
	return nil
}

// Covers reports whether any slot contains t.
func (a Availability) Covers(t time.Time) bool {
	for _, s := range a {
		if s.Covers(t) {
			return true
		}
	}
	return false
}

type Doctor struct {
	Base
	SoftDelete
	UserID          uuid.UUID       `db:"user_id" json:"user_id" validate:"required"`
	DepartmentID    *uuid.UUID      `db:"department_id" json:"department_id,omitempty"`
	Specialization  string          `db:"specialization" json:"specialization" validate:"required,max=100"`
	LicenseNumber   string          `db:"license_number" json:"license_number" validate:"required,max=50"`
	Qualifications  pq.StringArray  `db:"qualifications" json:"qualifications"`
	ExperienceYears int             `db:"experience_years" json:"experience_years" validate:"gte=0"`
	ConsultationFee decimal.Decimal `db:"consultation_fee" json:"consultation_fee" validate:"nonneg_decimal"`
	Availability    Availability    `db:"availability" json:"availability"`
	Bio             *string         `db:"bio" json:"bio,omitempty"`

	User *User `db:"-" json:"user,omitempty" validate:"-"`
}

func (d *Doctor) Validate() error {
	if err := validateTags(d); err != nil {
		return err
	}
	return d.Availability.Validate()
}
