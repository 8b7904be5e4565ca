package model

import (
	"fmt"
	"strings"
	"time"

	"github.com/jwalitptl/hospital-core/pkg/security"
)

type Role string

const (
	RolePatient       Role = "patient"
	RoleDoctor        Role = "doctor"
	RoleAdmin         Role = "admin"
	RoleStaff         Role = "staff"
	RoleNurse         Role = "nurse"
	RoleReceptionist  Role = "receptionist"
	RoleLabTechnician Role = "lab-technician"
	RolePharmacist    Role = "pharmacist"
)

type User struct {
	Base
	SoftDelete
	Email        string     `db:"email" json:"email" validate:"required,email,max=255"`
	PasswordHash string     `db:"password_hash" json:"-" validate:"required"`
	FirstName    string     `db:"first_name" json:"first_name" validate:"required,max=100"`
	LastName     string     `db:"last_name" json:"last_name" validate:"required,max=100"`
	Phone        *string    `db:"phone" json:"phone,omitempty" validate:"omitempty,max=20"`
	Role         Role       `db:"role" json:"role" validate:"required,vocab=user_role"`
	Active       bool       `db:"active" json:"active"`
	LastLoginAt  *time.Time `db:"last_login_at" json:"last_login_at,omitempty"`
}

func (u *User) Validate() error {
	u.Email = strings.ToLower(strings.TrimSpace(u.Email))
	return validateTags(u)
}

func (u *User) FullName() string {
	return strings.TrimSpace(u.FirstName + " " + u.LastName)
}

// SetPassword stores only the salted hash of password.
func (u *User) SetPassword(h security.PasswordHasher, password string) error {
	hash, err := h.Hash(password)
	if err != nil {
		return err
	}
	u.PasswordHash = hash
	return nil
}

// CanLogin checks the password and the active flag.
func (u *User) CanLogin(h security.PasswordHasher, password string) error {
	if !u.Active || u.IsDeleted() {
		return fmt.Errorf("account %s is inactive", u.Email)
	}
	return h.Compare(u.PasswordHash, password)
}
