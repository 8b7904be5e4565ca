package repository

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/jwalitptl/hospital-core/internal/model"
)

// Filter restricts a list to rows whose columns equal the given values.
// Keys must be column names of the listed table.
type Filter map[string]interface{}

// Scope is a caller supplied predicate appended to a query. Expr refers to
// the listed table as %[1]s and binds its Args with ?.
type Scope struct {
	Expr string
	Args []interface{}
}

// VisibleToDoctor keeps rows authored by or assigned to the doctor.
func VisibleToDoctor(doctorID uuid.UUID) Scope {
	return Scope{Expr: "%[1]s.doctor_id = ?", Args: []interface{}{doctorID}}
}

// CreatedBetween keeps rows created in [from, to).
func CreatedBetween(from, to time.Time) Scope {
	return Scope{Expr: "%[1]s.created_at >= ? AND %[1]s.created_at < ?", Args: []interface{}{from, to}}
}

func WithStatus(status string) Scope {
	return Scope{Expr: "%[1]s.status = ?", Args: []interface{}{status}}
}

// ScheduledBetween keeps appointments whose start falls in [from, to).
func ScheduledBetween(from, to time.Time) Scope {
	return Scope{Expr: "%[1]s.date_time >= ? AND %[1]s.date_time < ?", Args: []interface{}{from, to}}
}

// All repository interfaces in one file
type (
	UserRepository interface {
		Create(ctx context.Context, user *model.User) error
		Get(ctx context.Context, id uuid.UUID) (*model.User, error)
		GetByEmail(ctx context.Context, email string) (*model.User, error)
		List(ctx context.Context, filter Filter, page model.Pagination, scopes ...Scope) (model.Page[*model.User], error)
		Update(ctx context.Context, user *model.User) error
		Patch(ctx context.Context, id uuid.UUID, mutate func(*model.User) error) (*model.User, error)
		Delete(ctx context.Context, id uuid.UUID) error
		RecordLogin(ctx context.Context, id uuid.UUID, at time.Time) error
	}

	DepartmentRepository interface {
		Create(ctx context.Context, dept *model.Department) error
		Get(ctx context.Context, id uuid.UUID) (*model.Department, error)
		GetByName(ctx context.Context, name string) (*model.Department, error)
		List(ctx context.Context, filter Filter, page model.Pagination, scopes ...Scope) (model.Page[*model.Department], error)
		Update(ctx context.Context, dept *model.Department) error
		Patch(ctx context.Context, id uuid.UUID, mutate func(*model.Department) error) (*model.Department, error)
		Delete(ctx context.Context, id uuid.UUID) error
	}

	DoctorRepository interface {
		Create(ctx context.Context, doctor *model.Doctor) error
		Get(ctx context.Context, id uuid.UUID) (*model.Doctor, error)
		GetByUserID(ctx context.Context, userID uuid.UUID) (*model.Doctor, error)
		// LoadUser resolves doctor.User. Get and List leave it nil.
		LoadUser(ctx context.Context, doctor *model.Doctor) error
		List(ctx context.Context, filter Filter, page model.Pagination, scopes ...Scope) (model.Page[*model.Doctor], error)
		Update(ctx context.Context, doctor *model.Doctor) error
		Patch(ctx context.Context, id uuid.UUID, mutate func(*model.Doctor) error) (*model.Doctor, error)
		Delete(ctx context.Context, id uuid.UUID) error
	}

	PatientRepository interface {
		Create(ctx context.Context, patient *model.Patient) error
		Get(ctx context.Context, id uuid.UUID) (*model.Patient, error)
		GetByUserID(ctx context.Context, userID uuid.UUID) (*model.Patient, error)
		// LoadUser resolves patient.User. Get and List leave it nil.
		LoadUser(ctx context.Context, patient *model.Patient) error
		List(ctx context.Context, filter Filter, page model.Pagination, scopes ...Scope) (model.Page[*model.Patient], error)
		Update(ctx context.Context, patient *model.Patient) error
		Patch(ctx context.Context, id uuid.UUID, mutate func(*model.Patient) error) (*model.Patient, error)
		Delete(ctx context.Context, id uuid.UUID) error
	}

	AppointmentRepository interface {
		// Create rejects a second scheduled appointment for the same doctor
		// and start time.
		Create(ctx context.Context, appt *model.Appointment) error
		Get(ctx context.Context, id uuid.UUID) (*model.Appointment, error)
		List(ctx context.Context, filter Filter, page model.Pagination, scopes ...Scope) (model.Page[*model.Appointment], error)
		Update(ctx context.Context, appt *model.Appointment) error
		Patch(ctx context.Context, id uuid.UUID, mutate func(*model.Appointment) error) (*model.Appointment, error)
		// Transition moves the appointment through its state machine and
		// enqueues a status change event.
		Transition(ctx context.Context, id uuid.UUID, to model.AppointmentStatus, reason string) (*model.Appointment, error)
		Delete(ctx context.Context, id uuid.UUID) error
	}

	MedicalRecordRepository interface {
		Create(ctx context.Context, record *model.MedicalRecord) error
		Get(ctx context.Context, id uuid.UUID) (*model.MedicalRecord, error)
		List(ctx context.Context, filter Filter, page model.Pagination, scopes ...Scope) (model.Page[*model.MedicalRecord], error)
		// ForPatient lists a live patient's records narrowed by scopes.
		ForPatient(ctx context.Context, patientID uuid.UUID, page model.Pagination, scopes ...Scope) (model.Page[*model.MedicalRecord], error)
		Update(ctx context.Context, record *model.MedicalRecord) error
		Patch(ctx context.Context, id uuid.UUID, mutate func(*model.MedicalRecord) error) (*model.MedicalRecord, error)
		Finalize(ctx context.Context, id uuid.UUID) (*model.MedicalRecord, error)
		Delete(ctx context.Context, id uuid.UUID) error
	}

	MedicationRepository interface {
		Create(ctx context.Context, med *model.Medication) error
		Get(ctx context.Context, id uuid.UUID) (*model.Medication, error)
		GetByItemCode(ctx context.Context, code string) (*model.Medication, error)
		List(ctx context.Context, filter Filter, page model.Pagination, scopes ...Scope) (model.Page[*model.Medication], error)
		Update(ctx context.Context, med *model.Medication) error
		Patch(ctx context.Context, id uuid.UUID, mutate func(*model.Medication) error) (*model.Medication, error)
		Delete(ctx context.Context, id uuid.UUID) error
	}

	OmaeraMedicationRepository interface {
		Create(ctx context.Context, med *model.OmaeraMedication) error
		Get(ctx context.Context, id uuid.UUID) (*model.OmaeraMedication, error)
		List(ctx context.Context, filter Filter, page model.Pagination, scopes ...Scope) (model.Page[*model.OmaeraMedication], error)
		// SetPrice changes the current price on behalf of the context actor.
		SetPrice(ctx context.Context, id uuid.UUID, price decimal.Decimal) (*model.OmaeraMedication, error)
		Delete(ctx context.Context, id uuid.UUID) error
	}

	PrescriptionRepository interface {
		// Create stores the prescription and its lines.
		Create(ctx context.Context, p *model.Prescription) error
		Get(ctx context.Context, id uuid.UUID) (*model.Prescription, error)
		List(ctx context.Context, filter Filter, page model.Pagination, scopes ...Scope) (model.Page[*model.Prescription], error)
		// Update replaces the prescription. Its lines are replaced when
		// p.Lines is non-nil and kept otherwise. Status follows the state
		// machine and refill_count is left to RecordRefill, on Patch too.
		Update(ctx context.Context, p *model.Prescription) error
		Patch(ctx context.Context, id uuid.UUID, mutate func(*model.Prescription) error) (*model.Prescription, error)
		// RecordRefill counts one refill and completes the prescription on
		// the last one.
		RecordRefill(ctx context.Context, id uuid.UUID) (*model.Prescription, error)
		Medications(ctx context.Context, id uuid.UUID) ([]*model.Medication, error)
		// Delete removes the prescription and its lines together.
		Delete(ctx context.Context, id uuid.UUID) error
	}

	LabTestTemplateRepository interface {
		Create(ctx context.Context, tmpl *model.LabTestTemplate) error
		Get(ctx context.Context, id uuid.UUID) (*model.LabTestTemplate, error)
		GetByName(ctx context.Context, name string) (*model.LabTestTemplate, error)
		List(ctx context.Context, filter Filter, page model.Pagination, scopes ...Scope) (model.Page[*model.LabTestTemplate], error)
		Update(ctx context.Context, tmpl *model.LabTestTemplate) error
		Patch(ctx context.Context, id uuid.UUID, mutate func(*model.LabTestTemplate) error) (*model.LabTestTemplate, error)
		Delete(ctx context.Context, id uuid.UUID) error
	}

	TestResultRepository interface {
		// Create and the update paths derive IsAbnormal from the template
		// read in the same transaction.
		Create(ctx context.Context, result *model.TestResult) error
		Get(ctx context.Context, id uuid.UUID) (*model.TestResult, error)
		List(ctx context.Context, filter Filter, page model.Pagination, scopes ...Scope) (model.Page[*model.TestResult], error)
		Update(ctx context.Context, result *model.TestResult) error
		Patch(ctx context.Context, id uuid.UUID, mutate func(*model.TestResult) error) (*model.TestResult, error)
		Delete(ctx context.Context, id uuid.UUID) error
	}

	InventoryRepository interface {
		Create(ctx context.Context, item *model.InventoryItem) error
		Get(ctx context.Context, id uuid.UUID) (*model.InventoryItem, error)
		GetByItemCode(ctx context.Context, code string) (*model.InventoryItem, error)
		List(ctx context.Context, filter Filter, page model.Pagination, scopes ...Scope) (model.Page[*model.InventoryItem], error)
		Update(ctx context.Context, item *model.InventoryItem) error
		Patch(ctx context.Context, id uuid.UUID, mutate func(*model.InventoryItem) error) (*model.InventoryItem, error)
		// AdjustQuantity adds delta to the quantity and recomputes the
		// status in one statement.
		AdjustQuantity(ctx context.Context, id uuid.UUID, delta int) (*model.InventoryItem, error)
		Delete(ctx context.Context, id uuid.UUID) error
	}

	BillRepository interface {
		Create(ctx context.Context, bill *model.Bill) error
		Get(ctx context.Context, id uuid.UUID) (*model.Bill, error)
		List(ctx context.Context, filter Filter, page model.Pagination, scopes ...Scope) (model.Page[*model.Bill], error)
		Update(ctx context.Context, bill *model.Bill) error
		Patch(ctx context.Context, id uuid.UUID, mutate func(*model.Bill) error) (*model.Bill, error)
		Delete(ctx context.Context, id uuid.UUID) error
	}

	AuditRepository interface {
		Create(ctx context.Context, log *model.AuditLog) error
		ListForEntity(ctx context.Context, entityType string, entityID uuid.UUID) ([]*model.AuditLog, error)
	}

	OutboxRepository interface {
		Create(ctx context.Context, event *model.OutboxEvent) error
		// GetPendingEventsWithLock claims pending events, skipping rows other
		// workers hold.
		GetPendingEventsWithLock(ctx context.Context, limit int) ([]*model.OutboxEvent, error)
		UpdateStatus(ctx context.Context, id uuid.UUID, status model.OutboxStatus, errMsg *string) error
		DeleteProcessedBefore(ctx context.Context, before time.Time) (int64, error)
	}

	// Associations loads the targets of a relation for a set of owners.
	// dest is a pointer to a slice of the target record type.
	Associations interface {
		Load(ctx context.Context, rel model.Relation, ownerIDs []uuid.UUID, dest interface{}) error
	}

	// TxRunner runs fn in one transaction shared by every repository that
	// is handed the derived context.
	TxRunner interface {
		InTx(ctx context.Context, fn func(ctx context.Context) error) error
	}
)
