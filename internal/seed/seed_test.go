package seed

import (
	"context"
	"errors"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"

	"github.com/jwalitptl/hospital-core/internal/model"
	"github.com/jwalitptl/hospital-core/internal/repository"
	apperrors "github.com/jwalitptl/hospital-core/pkg/errors"
	"github.com/jwalitptl/hospital-core/pkg/security"
)

type row interface {
	Meta() *model.Base
	Validate() error
}

// table stores validated rows and rejects duplicate ids the way a primary
// key would.
type table[P row] struct {
	rows map[uuid.UUID]P
	fail error
}

func newTable[P row]() *table[P] { return &table[P]{rows: map[uuid.UUID]P{}} }

func (t *table[P]) insert(v P) error {
	if t.fail != nil {
		return t.fail
	}
	if err := v.Validate(); err != nil {
		return err
	}
	if _, ok := t.rows[v.Meta().ID]; ok {
		return apperrors.NewUniqueness("pkey", nil)
	}
	t.rows[v.Meta().ID] = v
	return nil
}

type users struct {
	repository.UserRepository
	*table[*model.User]
}

func (u users) Create(ctx context.Context, v *model.User) error { return u.insert(v) }

type departments struct {
	repository.DepartmentRepository
	*table[*model.Department]
}

func (d departments) Create(ctx context.Context, v *model.Department) error { return d.insert(v) }

type doctors struct {
	repository.DoctorRepository
	*table[*model.Doctor]
}

func (d doctors) Create(ctx context.Context, v *model.Doctor) error { return d.insert(v) }

type patients struct {
	repository.PatientRepository
	*table[*model.Patient]
}

func (p patients) Create(ctx context.Context, v *model.Patient) error { return p.insert(v) }

type templates struct {
	repository.LabTestTemplateRepository
	*table[*model.LabTestTemplate]
}

func (t templates) Create(ctx context.Context, v *model.LabTestTemplate) error { return t.insert(v) }

type medications struct {
	repository.MedicationRepository
	*table[*model.Medication]
}

func (m medications) Create(ctx context.Context, v *model.Medication) error { return m.insert(v) }

type inventory struct {
	repository.InventoryRepository
	*table[*model.InventoryItem]
}

func (i inventory) Create(ctx context.Context, v *model.InventoryItem) error { return i.insert(v) }

type fixture struct {
	users     users
	doctors   doctors
	inventory inventory
	repos     Repositories
}

func newFixture() *fixture {
	f := &fixture{
		users:     users{table: newTable[*model.User]()},
		doctors:   doctors{table: newTable[*model.Doctor]()},
		inventory: inventory{table: newTable[*model.InventoryItem]()},
	}
	f.repos = Repositories{
		Users:            f.users,
		Departments:      departments{table: newTable[*model.Department]()},
		Doctors:          f.doctors,
		Patients:         patients{table: newTable[*model.Patient]()},
		LabTestTemplates: templates{table: newTable[*model.LabTestTemplate]()},
		Medications:      medications{table: newTable[*model.Medication]()},
		Inventory:        f.inventory,
	}
	return f
}

const demoPassword = "ChangeMe!2024"

func TestSeeder_RunIsIdempotent(t *testing.T) {
	f := newFixture()
	s := New(f.repos, security.NewBcryptHasher(bcrypt.MinCost), demoPassword, nil)

	first, err := s.Run(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 22, first.Created)
	assert.Zero(t, first.Skipped)

	second, err := s.Run(context.Background())
	require.NoError(t, err)
	assert.Zero(t, second.Created)
	assert.Equal(t, first.Created, second.Skipped)
}

func TestSeeder_DeterministicIDs(t *testing.T) {
	f := newFixture()
	_, err := New(f.repos, security.NewBcryptHasher(bcrypt.MinCost), demoPassword, nil).Run(context.Background())
	require.NoError(t, err)

	doc, ok := f.doctors.rows[ID(kindDoctor, "doctor@hospital.local")]
	require.True(t, ok)
	assert.Equal(t, ID(kindUser, "doctor@hospital.local"), doc.UserID)
	assert.Equal(t, ID(kindDepartment, "Cardiology"), *doc.DepartmentID)
	assert.Equal(t, uuid.NewSHA1(Namespace, []byte("user/doctor@hospital.local")), doc.UserID)
}

func TestSeeder_HashesPasswords(t *testing.T) {
	f := newFixture()
	hasher := security.NewBcryptHasher(bcrypt.MinCost)
	_, err := New(f.repos, hasher, demoPassword, nil).Run(context.Background())
	require.NoError(t, err)

	require.Len(t, f.users.rows, len(accounts))
	for _, u := range f.users.rows {
		assert.NotEqual(t, demoPassword, u.PasswordHash)
		assert.NoError(t, hasher.Compare(u.PasswordHash, demoPassword))
	}
}

func TestSeeder_InventoryStatusDerived(t *testing.T) {
	f := newFixture()
	_, err := New(f.repos, security.NewBcryptHasher(bcrypt.MinCost), demoPassword, nil).Run(context.Background())
	require.NoError(t, err)

	want := map[string]model.InventoryStatus{
		"INV-MED-001": model.InventoryStatusInStock,
		"INV-MED-003": model.InventoryStatusLowStock,
		"INV-MED-004": model.InventoryStatusOutOfStock,
	}
	for code, status := range want {
		item, ok := f.inventory.rows[ID(kindInventory, code)]
		require.True(t, ok, code)
		assert.Equal(t, status, item.Status, code)
	}
}

func TestSeeder_StopsOnFailure(t *testing.T) {
	f := newFixture()
	boom := errors.New("connection refused")
	f.doctors.fail = boom

	report, err := New(f.repos, security.NewBcryptHasher(bcrypt.MinCost), demoPassword, nil).Run(context.Background())
	assert.ErrorIs(t, err, boom)
	assert.Contains(t, err.Error(), "doctors")
	assert.Empty(t, f.inventory.rows)
	assert.Equal(t, 9, report.Created)
}

func TestSeeder_WeakPasswordRejected(t *testing.T) {
	f := newFixture()
	_, err := New(f.repos, security.NewBcryptHasher(bcrypt.MinCost), "short", nil).Run(context.Background())
	assert.ErrorIs(t, err, apperrors.ErrValidation)
	assert.Empty(t, f.users.rows)
}
