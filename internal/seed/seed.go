// Package seed populates a fresh database with baseline reference data and
// demo accounts. It goes through the repository interfaces only and can be
// re-run: rows that already exist are skipped.
package seed

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"

	"github.com/jwalitptl/hospital-core/internal/repository"
	apperrors "github.com/jwalitptl/hospital-core/pkg/errors"
	"github.com/jwalitptl/hospital-core/pkg/logger"
	"github.com/jwalitptl/hospital-core/pkg/security"
)

// Namespace roots the name-based (v5) ids of every seeded row.
var Namespace = uuid.MustParse("5b0e6d1c-3f0a-4c53-9a7e-8f1d2b6c4e90")

// ID returns the deterministic id of the seeded row kind/key.
func ID(kind, key string) uuid.UUID {
	return uuid.NewSHA1(Namespace, []byte(kind+"/"+key))
}

// Repositories is the subset of the persistence layer the seeder writes to.
type Repositories struct {
	Users            repository.UserRepository
	Departments      repository.DepartmentRepository
	Doctors          repository.DoctorRepository
	Patients         repository.PatientRepository
	LabTestTemplates repository.LabTestTemplateRepository
	Medications      repository.MedicationRepository
	Inventory        repository.InventoryRepository
}

// Report counts what a run wrote.
type Report struct {
	Created int
	Skipped int
}

type Seeder struct {
	repos    Repositories
	hasher   security.PasswordHasher
	password string
	logger   *logger.Logger
	report   Report
}

// New returns a seeder whose demo accounts all log in with password.
func New(repos Repositories, hasher security.PasswordHasher, password string, log *logger.Logger) *Seeder {
	if log == nil {
		log = logger.Nop()
	}
	return &Seeder{repos: repos, hasher: hasher, password: password, logger: log}
}

// Run writes every fixture in dependency order. A failure other than an
// already existing row stops the run.
func (s *Seeder) Run(ctx context.Context) (Report, error) {
	s.report = Report{}
	steps := []struct {
		name string
		fn   func(context.Context) error
	}{
		{"departments", s.departments},
		{"users", s.users},
		{"doctors", s.doctors},
		{"patients", s.patients},
		{"lab test templates", s.labTemplates},
		{"medications", s.medications},
		{"inventory", s.inventory},
	}
	for _, step := range steps {
		if err := step.fn(ctx); err != nil {
			return s.report, fmt.Errorf("failed to seed %s: %w", step.name, err)
		}
	}
	s.logger.Info("Seed completed", "created", s.report.Created, "skipped", s.report.Skipped)
	return s.report, nil
}

// put runs create and counts a uniqueness violation as already seeded.
func (s *Seeder) put(kind, key string, create func() error) error {
	err := create()
	switch {
	case err == nil:
		s.report.Created++
		s.logger.Debug("Seeded row", "kind", kind, "key", key)
		return nil
	case errors.Is(err, apperrors.ErrUniqueness):
		s.report.Skipped++
		return nil
	default:
		return fmt.Errorf("%s %s: %w", kind, key, err)
	}
}

func str(s string) *string { return &s }
