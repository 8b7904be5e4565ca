package postgres

import (
	"context"
	"database/sql"
	"database/sql/driver"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jwalitptl/hospital-core/internal/model"
	"github.com/jwalitptl/hospital-core/internal/repository"
	"github.com/jwalitptl/hospital-core/internal/schema"
	apperrors "github.com/jwalitptl/hospital-core/pkg/errors"
	"github.com/jwalitptl/hospital-core/pkg/logger"
)

func newMockStore(t *testing.T) (*Store, sqlmock.Sqlmock) {
	t.Helper()
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	return NewStore(sqlx.NewDb(db, "postgres"), logger.Nop(), nil), mock
}

func newMockRepos(t *testing.T) (*Repositories, sqlmock.Sqlmock) {
	t.Helper()
	store, mock := newMockStore(t)
	return NewRepositories(store), mock
}

func TestMapError(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want error
	}{
		{"no rows", sql.ErrNoRows, apperrors.ErrNotFound},
		{"unique", &pq.Error{Code: "23505", Constraint: "medications_item_code_key"}, apperrors.ErrUniqueness},
		{"referenced", &pq.Error{Code: "23503", Message: "update or delete on table \"departments\" violates foreign key constraint"}, apperrors.ErrReferentialIntegrity},
		{"dangling", &pq.Error{Code: "23503", Message: "insert or update on table \"doctors\" violates foreign key constraint"}, apperrors.ErrReferentialIntegrity},
		{"check", &pq.Error{Code: "23514", Constraint: "chk_bills_final_amount"}, apperrors.ErrValidation},
		{"passthrough", apperrors.NewInvalidTransition("appointment", "completed", "scheduled"), apperrors.ErrInvalidTransition},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.ErrorIs(t, mapError("thing", tt.err), tt.want)
		})
	}

	plain := errors.New("connection reset")
	err := mapError("thing", plain)
	assert.ErrorIs(t, err, plain)
	assert.Equal(t, apperrors.KindInternal, apperrors.KindOf(err))
	assert.NoError(t, mapError("thing", nil))
}

func TestChangeSet(t *testing.T) {
	before := &model.Department{Name: "Cardiology", Status: model.DepartmentStatusActive}
	after := &model.Department{Name: "Cardiology", Status: model.DepartmentStatusInactive}

	diff := changeSet(before, after)
	assert.Equal(t, map[string]interface{}{"from": "active", "to": "inactive"}, diff["status"])
	assert.NotContains(t, diff, "name")

	created := changeSet(nil, after)
	assert.Equal(t, "Cardiology", created["name"])
	assert.NotContains(t, created, "created_at")
}

func TestStore_InTxRollsBackOnError(t *testing.T) {
	store, mock := newMockStore(t)
	boom := errors.New("boom")

	mock.ExpectBegin()
	mock.ExpectRollback()

	err := store.InTx(context.Background(), func(ctx context.Context) error {
		// nested calls join the outer transaction
		return store.InTx(ctx, func(ctx context.Context) error { return boom })
	})
	assert.ErrorIs(t, err, boom)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestStore_InTxCommits(t *testing.T) {
	store, mock := newMockStore(t)

	mock.ExpectBegin()
	mock.ExpectExec("SELECT 1").WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectCommit()

	err := store.InTx(context.Background(), func(ctx context.Context) error {
		_, err := store.querier(ctx).ExecContext(ctx, "SELECT 1")
		return err
	})
	require.NoError(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestMedicationRepository_DuplicateItemCode(t *testing.T) {
	repos, mock := newMockRepos(t)

	mock.ExpectBegin()
	mock.ExpectExec("INSERT INTO medications").
		WillReturnError(&pq.Error{Code: "23505", Constraint: "medications_item_code_key"})
	mock.ExpectRollback()

	err := repos.Medications.Create(context.Background(), &model.Medication{
		ItemCode:  "MED-001",
		Name:      "Paracetamol 500mg",
		UnitPrice: decimal.RequireFromString("2.50"),
	})
	require.Error(t, err)
	assert.ErrorIs(t, err, apperrors.ErrUniqueness)

	var appErr *apperrors.AppError
	require.True(t, errors.As(err, &appErr))
	assert.Contains(t, appErr.Error(), "medications_item_code_key")
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestInventoryRepository_CreateDerivesStatus(t *testing.T) {
	repos, mock := newMockRepos(t)

	mock.ExpectBegin()
	mock.ExpectExec("INSERT INTO inventory_items").WillReturnResult(sqlmock.NewResult(1, 1))
	mock.ExpectCommit()

	item := &model.InventoryItem{
		ItemCode:     "INV-001",
		Name:         "Syringe 5ml",
		Quantity:     5,
		MinimumLevel: 10,
		Status:       model.InventoryStatusInStock,
	}
	require.NoError(t, repos.Inventory.Create(context.Background(), item))
	assert.Equal(t, model.InventoryStatusLowStock, item.Status)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestInventoryRepository_AdjustQuantityToZero(t *testing.T) {
	repos, mock := newMockRepos(t)
	id := uuid.New()

	mock.ExpectBegin()
	mock.ExpectQuery("SELECT status FROM inventory_items WHERE id = \\$1 FOR UPDATE").
		WithArgs(id).
		WillReturnRows(sqlmock.NewRows([]string{"status"}).AddRow("low-stock"))
	mock.ExpectQuery("UPDATE inventory_items AS t SET").
		WillReturnRows(sqlmock.NewRows([]string{"id", "item_code", "name", "quantity", "minimum_level", "unit_price", "status"}).
			AddRow(id, "INV-001", "Syringe 5ml", 0, 10, "0.25", "out-of-stock"))
	mock.ExpectExec("INSERT INTO outbox_events").WillReturnResult(sqlmock.NewResult(1, 1))
	mock.ExpectCommit()

	item, err := repos.Inventory.AdjustQuantity(context.Background(), id, -5)
	require.NoError(t, err)
	assert.Equal(t, 0, item.Quantity)
	assert.Equal(t, model.InventoryStatusOutOfStock, item.Status)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestInventoryRepository_AdjustQuantityBelowZero(t *testing.T) {
	repos, mock := newMockRepos(t)
	id := uuid.New()

	mock.ExpectBegin()
	mock.ExpectQuery("SELECT status FROM inventory_items").
		WillReturnRows(sqlmock.NewRows([]string{"status"}).AddRow("low-stock"))
	mock.ExpectQuery("UPDATE inventory_items AS t SET").
		WillReturnRows(sqlmock.NewRows([]string{"id"}))
	mock.ExpectRollback()

	_, err := repos.Inventory.AdjustQuantity(context.Background(), id, -50)
	assert.ErrorIs(t, err, apperrors.ErrValidation)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestAppointmentRepository_CreateRejectsDoubleBooking(t *testing.T) {
	repos, mock := newMockRepos(t)
	appt := model.NewAppointment(uuid.New(), uuid.New(), time.Date(2024, 4, 1, 9, 0, 0, 0, time.UTC), model.AppointmentTypeInPerson)

	mock.ExpectBegin()
	mock.ExpectQuery("SELECT EXISTS").
		WillReturnRows(sqlmock.NewRows([]string{"exists"}).AddRow(true))
	mock.ExpectRollback()

	err := repos.Appointments.Create(context.Background(), appt)
	assert.ErrorIs(t, err, apperrors.ErrUniqueness)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func appointmentRow(id uuid.UUID, status model.AppointmentStatus) *sqlmock.Rows {
	at := time.Date(2024, 4, 1, 9, 0, 0, 0, time.UTC)
	return sqlmock.NewRows([]string{"id", "patient_id", "doctor_id", "date_time", "duration_minutes", "type", "status", "created_at", "updated_at"}).
		AddRow(id, uuid.New(), uuid.New(), at, 30, "in-person", string(status), at, at)
}

func TestAppointmentRepository_TransitionEnqueuesEvent(t *testing.T) {
	repos, mock := newMockRepos(t)
	id := uuid.New()

	mock.ExpectBegin()
	mock.ExpectQuery("SELECT .+ FROM appointments t WHERE t.id = \\$1 AND t.deleted_at IS NULL FOR UPDATE").
		WithArgs(id).
		WillReturnRows(appointmentRow(id, model.AppointmentStatusScheduled))
	mock.ExpectExec("UPDATE appointments SET").WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec("INSERT INTO outbox_events").WillReturnResult(sqlmock.NewResult(1, 1))
	mock.ExpectCommit()

	appt, err := repos.Appointments.Transition(context.Background(), id, model.AppointmentStatusCompleted, "")
	require.NoError(t, err)
	assert.Equal(t, model.AppointmentStatusCompleted, appt.Status)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestAppointmentRepository_TransitionFromTerminal(t *testing.T) {
	repos, mock := newMockRepos(t)
	id := uuid.New()

	mock.ExpectBegin()
	mock.ExpectQuery("SELECT .+ FROM appointments").
		WillReturnRows(appointmentRow(id, model.AppointmentStatusCompleted))
	mock.ExpectRollback()

	_, err := repos.Appointments.Transition(context.Background(), id, model.AppointmentStatusScheduled, "")
	assert.ErrorIs(t, err, apperrors.ErrInvalidTransition)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestList_RejectsUnknownFilter(t *testing.T) {
	repos, mock := newMockRepos(t)

	_, err := repos.Departments.List(context.Background(), repository.Filter{"password": "x"}, model.Pagination{})
	assert.ErrorIs(t, err, apperrors.ErrValidation)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestList_AppliesFilterScopesAndPaging(t *testing.T) {
	repos, mock := newMockRepos(t)
	doctorID := uuid.New()

	mock.ExpectQuery("SELECT COUNT\\(\\*\\) FROM appointments t WHERE t.deleted_at IS NULL AND t.status = \\$1 AND \\(t.doctor_id = \\$2\\)").
		WithArgs("scheduled", doctorID).
		WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(25))
	mock.ExpectQuery("ORDER BY t.created_at DESC, t.id LIMIT \\$3 OFFSET \\$4").
		WithArgs("scheduled", doctorID, 10, 10).
		WillReturnRows(appointmentRow(uuid.New(), model.AppointmentStatusScheduled))

	page, err := repos.Appointments.List(context.Background(),
		repository.Filter{"status": "scheduled"},
		model.Pagination{Page: 2, PageSize: 10},
		repository.VisibleToDoctor(doctorID))
	require.NoError(t, err)
	assert.Equal(t, 25, page.Total)
	assert.Len(t, page.Items, 1)
	assert.True(t, page.HasNext())
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestMedicalRecordRepository_CreateWritesAudit(t *testing.T) {
	repos, mock := newMockRepos(t)
	actor := uuid.New()
	ctx := model.WithActor(context.Background(), model.Actor{UserID: actor, Role: model.RoleDoctor})

	mock.ExpectBegin()
	mock.ExpectExec("INSERT INTO medical_records").WillReturnResult(sqlmock.NewResult(1, 1))
	mock.ExpectExec("INSERT INTO audit_logs").WillReturnResult(sqlmock.NewResult(1, 1))
	mock.ExpectCommit()

	rec := &model.MedicalRecord{PatientID: uuid.New(), DoctorID: uuid.New(), Diagnosis: "Hypertension"}
	require.NoError(t, repos.MedicalRecords.Create(ctx, rec))
	require.NotNil(t, rec.CreatedBy)
	assert.Equal(t, actor, *rec.CreatedBy)
	assert.Equal(t, model.RecordStatusDraft, rec.Status)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestMedicalRecordRepository_AuditFailureRollsBack(t *testing.T) {
	repos, mock := newMockRepos(t)

	mock.ExpectBegin()
	mock.ExpectExec("INSERT INTO medical_records").WillReturnResult(sqlmock.NewResult(1, 1))
	mock.ExpectExec("INSERT INTO audit_logs").WillReturnError(errors.New("disk full"))
	mock.ExpectRollback()

	rec := &model.MedicalRecord{PatientID: uuid.New(), DoctorID: uuid.New(), Diagnosis: "Hypertension"}
	assert.Error(t, repos.MedicalRecords.Create(context.Background(), rec))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPrescriptionRepository_DeleteRemovesLines(t *testing.T) {
	repos, mock := newMockRepos(t)
	id := uuid.New()
	now := time.Now().UTC()

	mock.ExpectBegin()
	mock.ExpectQuery("SELECT .+ FROM prescriptions t WHERE t.id = \\$1 AND t.deleted_at IS NULL FOR UPDATE").
		WillReturnRows(sqlmock.NewRows([]string{"id", "patient_id", "doctor_id", "status", "issued_at", "created_at", "updated_at"}).
			AddRow(id, uuid.New(), uuid.New(), "active", now, now, now))
	mock.ExpectExec("UPDATE prescriptions SET deleted_at = \\$1, updated_at = \\$2 WHERE id = \\$3").
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec("DELETE FROM prescription_medications WHERE prescription_id = \\$1").
		WithArgs(id).
		WillReturnResult(sqlmock.NewResult(0, 2))
	mock.ExpectExec("INSERT INTO audit_logs").WillReturnResult(sqlmock.NewResult(1, 1))
	mock.ExpectCommit()

	require.NoError(t, repos.Prescriptions.Delete(context.Background(), id))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestTestResultRepository_CreateDerivesAbnormal(t *testing.T) {
	repos, mock := newMockRepos(t)
	templateID := uuid.New()
	now := time.Now().UTC()

	mock.ExpectBegin()
	mock.ExpectQuery("SELECT .+ FROM lab_test_templates t WHERE t.id = \\$1").
		WithArgs(templateID).
		WillReturnRows(sqlmock.NewRows([]string{"id", "name", "category", "parameters", "price", "turnaround_hours", "active", "created_at", "updated_at"}).
			AddRow(templateID, "Lipid Panel", "biochemistry", []byte(`[{"name":"LDL","unit":"mg/dL","value_type":"numeric","max":"130"}]`), "40.00", 24, true, now, now))
	mock.ExpectExec("INSERT INTO test_results").WillReturnResult(sqlmock.NewResult(1, 1))
	mock.ExpectCommit()

	res := &model.TestResult{
		PatientID:       uuid.New(),
		DoctorID:        uuid.New(),
		TemplateID:      &templateID,
		Result:          "LDL elevated",
		ParameterValues: model.ParameterValues{{Name: "LDL", Value: "162"}},
	}
	require.NoError(t, repos.TestResults.Create(context.Background(), res))
	assert.True(t, res.IsAbnormal)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestOutboxRepository_UpdateStatusMissingEvent(t *testing.T) {
	repos, mock := newMockRepos(t)
	id := uuid.New()

	mock.ExpectExec("UPDATE outbox_events").WillReturnResult(sqlmock.NewResult(0, 0))

	err := repos.Outbox.UpdateStatus(context.Background(), id, model.OutboxStatusProcessed, nil)
	assert.ErrorIs(t, err, apperrors.ErrNotFound)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestOutboxRepository_ClaimPending(t *testing.T) {
	repos, mock := newMockRepos(t)
	now := time.Now().UTC()

	mock.ExpectQuery("FROM outbox_events\\s+WHERE status = \\$1\\s+ORDER BY created_at ASC\\s+LIMIT \\$2\\s+FOR UPDATE SKIP LOCKED").
		WithArgs(model.OutboxStatusPending, 50).
		WillReturnRows(sqlmock.NewRows([]string{"id", "event_type", "aggregate_id", "payload", "status", "error_message", "retry_count", "created_at", "processed_at"}).
			AddRow(uuid.New(), model.EventInventoryStatusChanged, uuid.New(), []byte(`{}`), "PENDING", nil, 0, now, nil))

	events, err := repos.Outbox.GetPendingEventsWithLock(context.Background(), 50)
	require.NoError(t, err)
	require.Len(t, events, 1)
	assert.Equal(t, model.EventInventoryStatusChanged, events[0].EventType)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func columnsOf(t *testing.T, table string) []string {
	t.Helper()
	tbl, ok := schema.Current().Table(table)
	require.True(t, ok, table)
	return tbl.ColumnNames()
}

func TestMedicalRecordRepository_ForPatientJoinsLivePatient(t *testing.T) {
	repos, mock := newMockRepos(t)
	patientID, doctorID := uuid.New(), uuid.New()

	mock.ExpectQuery("SELECT COUNT\\(\\*\\) FROM medical_records t JOIN patients p ON p.id = t.patient_id " +
		"WHERE p.id = \\$1 AND p.deleted_at IS NULL AND t.deleted_at IS NULL AND \\(t.doctor_id = \\$2\\)").
		WithArgs(patientID, doctorID).
		WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(0))
	mock.ExpectQuery("FROM medical_records t JOIN patients p .* LIMIT \\$3 OFFSET \\$4").
		WithArgs(patientID, doctorID, 20, 0).
		WillReturnRows(sqlmock.NewRows(columnsOf(t, schema.TableMedicalRecords)))

	page, err := repos.MedicalRecords.ForPatient(context.Background(), patientID,
		model.Pagination{Page: 1, PageSize: 20}, repository.VisibleToDoctor(doctorID))
	require.NoError(t, err)
	assert.Equal(t, 0, page.Total)
	assert.Empty(t, page.Items)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestAssociations_LoadThroughJoinTable(t *testing.T) {
	repos, mock := newMockRepos(t)

	mock.ExpectQuery("FROM prescriptions o JOIN prescription_medications t_through ON t_through.prescription_id = o.id " +
		"JOIN medications t ON t.id = t_through.medication_id WHERE o.id = ANY\\(\\$1::uuid\\[\\]\\) ORDER BY t.created_at").
		WithArgs(sqlmock.AnyArg()).
		WillReturnRows(sqlmock.NewRows(columnsOf(t, schema.TableMedications)))

	var meds []*model.Medication
	err := repos.Associations.Load(context.Background(), model.PrescriptionMedications, []uuid.UUID{uuid.New()}, &meds)
	require.NoError(t, err)
	assert.Empty(t, meds)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestAssociations_LoadWithoutOwnersSkipsQuery(t *testing.T) {
	repos, mock := newMockRepos(t)

	var users []*model.User
	require.NoError(t, repos.Associations.Load(context.Background(), model.DoctorUser, nil, &users))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestDoctorRepository_GetLeavesUserUnresolved(t *testing.T) {
	repos, mock := newMockRepos(t)
	id, userID := uuid.New(), uuid.New()
	now := time.Now().UTC()

	mock.ExpectQuery("SELECT .+ FROM doctors t WHERE t.id = \\$1 AND t.deleted_at IS NULL$").
		WithArgs(id).
		WillReturnRows(sqlmock.NewRows([]string{"id", "user_id", "specialization", "license_number", "created_at", "updated_at"}).
			AddRow(id, userID, "Cardiology", "MD-4411", now, now))

	doc, err := repos.Doctors.Get(context.Background(), id)
	require.NoError(t, err)
	assert.Nil(t, doc.User)
	require.NoError(t, mock.ExpectationsWereMet())

	mock.ExpectQuery("FROM doctors o JOIN users t ON t.id = o.user_id WHERE o.id = ANY\\(\\$1::uuid\\[\\]\\)").
		WithArgs(sqlmock.AnyArg()).
		WillReturnRows(sqlmock.NewRows([]string{"id", "email", "first_name", "last_name", "created_at", "updated_at"}).
			AddRow(userID, "house@example.org", "Gregory", "House", now, now))

	require.NoError(t, repos.Doctors.LoadUser(context.Background(), doc))
	require.NotNil(t, doc.User)
	assert.Equal(t, userID, doc.User.ID)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func prescriptionRow(id uuid.UUID, status model.PrescriptionStatus, refills, maxRefills int) *sqlmock.Rows {
	at := time.Date(2024, 4, 1, 9, 0, 0, 0, time.UTC)
	return sqlmock.NewRows([]string{"id", "patient_id", "doctor_id", "status", "refill_count", "max_refills", "issued_at", "created_at", "updated_at"}).
		AddRow(id, uuid.New(), uuid.New(), string(status), refills, maxRefills, at, at, at)
}

func prescriptionLineRows(prescriptionID uuid.UUID, medicationIDs ...uuid.UUID) *sqlmock.Rows {
	at := time.Date(2024, 4, 1, 9, 0, 0, 0, time.UTC)
	rows := sqlmock.NewRows([]string{"id", "prescription_id", "medication_id", "quantity", "dosage", "frequency", "created_at"})
	for _, med := range medicationIDs {
		rows.AddRow(uuid.New(), prescriptionID, med, 30, "10mg", "once daily", at)
	}
	return rows
}

// expectPrescriptionForWrite queues the locked read and the line load that
// precede every prescription write.
func expectPrescriptionForWrite(mock sqlmock.Sqlmock, id uuid.UUID, row, lines *sqlmock.Rows) {
	mock.ExpectQuery("SELECT .+ FROM prescriptions t WHERE t.id = \\$1 AND t.deleted_at IS NULL FOR UPDATE").
		WithArgs(id).
		WillReturnRows(row)
	mock.ExpectQuery("FROM prescriptions o JOIN prescription_medications t ON t.prescription_id = o.id").
		WithArgs(sqlmock.AnyArg()).
		WillReturnRows(lines)
}

func TestPrescriptionRepository_UpdateGuards(t *testing.T) {
	tests := []struct {
		name          string
		storedStatus  model.PrescriptionStatus
		storedRefills int
		status        model.PrescriptionStatus
		refills       int
	}{
		{"reopen completed", model.PrescriptionStatusCompleted, 2, model.PrescriptionStatusActive, 2},
		{"reopen cancelled", model.PrescriptionStatusCancelled, 0, model.PrescriptionStatusActive, 0},
		{"rewrite refill count", model.PrescriptionStatusActive, 0, model.PrescriptionStatusActive, 2},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			repos, mock := newMockRepos(t)
			id := uuid.New()

			mock.ExpectBegin()
			expectPrescriptionForWrite(mock, id,
				prescriptionRow(id, tt.storedStatus, tt.storedRefills, 2),
				prescriptionLineRows(id, uuid.New()))
			mock.ExpectRollback()

			p := &model.Prescription{
				PatientID:   uuid.New(),
				DoctorID:    uuid.New(),
				Status:      tt.status,
				RefillCount: tt.refills,
				MaxRefills:  2,
			}
			p.ID = id
			err := repos.Prescriptions.Update(context.Background(), p)
			assert.ErrorIs(t, err, apperrors.ErrInvalidTransition)
			assert.NoError(t, mock.ExpectationsWereMet())
		})
	}
}

func TestPrescriptionRepository_UpdateWithoutLinesKeepsThem(t *testing.T) {
	repos, mock := newMockRepos(t)
	id, medID := uuid.New(), uuid.New()

	mock.ExpectBegin()
	expectPrescriptionForWrite(mock, id,
		prescriptionRow(id, model.PrescriptionStatusActive, 0, 2),
		prescriptionLineRows(id, medID))
	mock.ExpectExec("UPDATE prescriptions SET").WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec("INSERT INTO audit_logs").WillReturnResult(sqlmock.NewResult(1, 1))
	mock.ExpectCommit()

	notes := "take with food"
	p := &model.Prescription{
		PatientID:  uuid.New(),
		DoctorID:   uuid.New(),
		Status:     model.PrescriptionStatusActive,
		MaxRefills: 2,
		Notes:      &notes,
	}
	p.ID = id
	require.NoError(t, repos.Prescriptions.Update(context.Background(), p))
	require.Len(t, p.Lines, 1)
	assert.Equal(t, medID, p.Lines[0].MedicationID)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPrescriptionRepository_UpdateReplacesChangedLines(t *testing.T) {
	repos, mock := newMockRepos(t)
	id, newMed := uuid.New(), uuid.New()

	mock.ExpectBegin()
	expectPrescriptionForWrite(mock, id,
		prescriptionRow(id, model.PrescriptionStatusActive, 0, 2),
		prescriptionLineRows(id, uuid.New()))
	mock.ExpectExec("UPDATE prescriptions SET").WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec("DELETE FROM prescription_medications WHERE prescription_id = \\$1").
		WithArgs(id).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec("INSERT INTO prescription_medications").WillReturnResult(sqlmock.NewResult(1, 1))
	mock.ExpectExec("INSERT INTO audit_logs").WillReturnResult(sqlmock.NewResult(1, 1))
	mock.ExpectCommit()

	p := &model.Prescription{
		PatientID:  uuid.New(),
		DoctorID:   uuid.New(),
		Status:     model.PrescriptionStatusActive,
		MaxRefills: 2,
		Lines:      []model.PrescriptionMedication{{MedicationID: newMed, Quantity: 10, Dosage: "5mg", Frequency: "twice daily"}},
	}
	p.ID = id
	require.NoError(t, repos.Prescriptions.Update(context.Background(), p))
	assert.Equal(t, id, p.Lines[0].PrescriptionID)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPrescriptionRepository_PatchCannotRewriteRefillCount(t *testing.T) {
	repos, mock := newMockRepos(t)
	id := uuid.New()

	mock.ExpectBegin()
	expectPrescriptionForWrite(mock, id,
		prescriptionRow(id, model.PrescriptionStatusActive, 1, 2),
		prescriptionLineRows(id))
	mock.ExpectRollback()

	_, err := repos.Prescriptions.Patch(context.Background(), id, func(p *model.Prescription) error {
		p.RefillCount = 0
		return nil
	})
	assert.ErrorIs(t, err, apperrors.ErrInvalidTransition)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPrescriptionRepository_PatchCancels(t *testing.T) {
	repos, mock := newMockRepos(t)
	id := uuid.New()

	mock.ExpectBegin()
	expectPrescriptionForWrite(mock, id,
		prescriptionRow(id, model.PrescriptionStatusActive, 0, 2),
		prescriptionLineRows(id, uuid.New()))
	mock.ExpectExec("UPDATE prescriptions SET").WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec("INSERT INTO audit_logs").
		WithArgs(sqlmock.AnyArg(), sqlmock.AnyArg(), sqlmock.AnyArg(), sqlmock.AnyArg(), sqlmock.AnyArg(),
			auditChanges{"status"}, sqlmock.AnyArg()).
		WillReturnResult(sqlmock.NewResult(1, 1))
	mock.ExpectCommit()

	p, err := repos.Prescriptions.Patch(context.Background(), id, func(p *model.Prescription) error {
		return p.TransitionTo(model.PrescriptionStatusCancelled)
	})
	require.NoError(t, err)
	assert.Equal(t, model.PrescriptionStatusCancelled, p.Status)
	assert.Len(t, p.Lines, 1)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPrescriptionRepository_RecordRefill(t *testing.T) {
	repos, mock := newMockRepos(t)
	id := uuid.New()

	mock.ExpectBegin()
	expectPrescriptionForWrite(mock, id,
		prescriptionRow(id, model.PrescriptionStatusActive, 1, 2),
		prescriptionLineRows(id, uuid.New()))
	mock.ExpectExec("UPDATE prescriptions SET").WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec("INSERT INTO audit_logs").
		WithArgs(sqlmock.AnyArg(), sqlmock.AnyArg(), sqlmock.AnyArg(), sqlmock.AnyArg(), sqlmock.AnyArg(),
			auditChanges{"refill_count"}, sqlmock.AnyArg()).
		WillReturnResult(sqlmock.NewResult(1, 1))
	mock.ExpectCommit()

	p, err := repos.Prescriptions.RecordRefill(context.Background(), id)
	require.NoError(t, err)
	assert.Equal(t, 2, p.RefillCount)
	assert.Equal(t, model.PrescriptionStatusCompleted, p.Status)
	assert.Len(t, p.Lines, 1)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPrescriptionRepository_RecordRefillBeyondMax(t *testing.T) {
	repos, mock := newMockRepos(t)
	id := uuid.New()

	mock.ExpectBegin()
	expectPrescriptionForWrite(mock, id,
		prescriptionRow(id, model.PrescriptionStatusActive, 2, 2),
		prescriptionLineRows(id))
	mock.ExpectRollback()

	_, err := repos.Prescriptions.RecordRefill(context.Background(), id)
	assert.ErrorIs(t, err, apperrors.ErrInvalidTransition)
	assert.NoError(t, mock.ExpectationsWereMet())
}

// auditChanges matches an audit_logs changes value that records field.
type auditChanges struct {
	field string
}

func (a auditChanges) Match(v driver.Value) bool {
	var raw []byte
	switch x := v.(type) {
	case []byte:
		raw = x
	case string:
		raw = []byte(x)
	default:
		return false
	}
	var changes map[string]interface{}
	if err := json.Unmarshal(raw, &changes); err != nil {
		return false
	}
	_, ok := changes[a.field]
	return ok
}

func TestMedicalRecordRepository_PatchAuditsInPlaceEdits(t *testing.T) {
	repos, mock := newMockRepos(t)
	id := uuid.New()
	now := time.Now().UTC()

	mock.ExpectBegin()
	mock.ExpectQuery("SELECT .+ FROM medical_records t WHERE t.id = \\$1 AND t.deleted_at IS NULL FOR UPDATE").
		WithArgs(id).
		WillReturnRows(sqlmock.NewRows([]string{"id", "patient_id", "doctor_id", "diagnosis", "symptoms", "status", "created_at", "updated_at"}).
			AddRow(id, uuid.New(), uuid.New(), "Influenza", []byte(`{cough,fever}`), "draft", now, now))
	mock.ExpectExec("UPDATE medical_records SET").WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec("INSERT INTO audit_logs").
		WithArgs(sqlmock.AnyArg(), sqlmock.AnyArg(), sqlmock.AnyArg(), sqlmock.AnyArg(), sqlmock.AnyArg(),
			auditChanges{"symptoms"}, sqlmock.AnyArg()).
		WillReturnResult(sqlmock.NewResult(1, 1))
	mock.ExpectCommit()

	rec, err := repos.MedicalRecords.Patch(context.Background(), id, func(m *model.MedicalRecord) error {
		m.Symptoms[1] = "high fever"
		return nil
	})
	require.NoError(t, err)
	assert.Equal(t, pq.StringArray{"cough", "high fever"}, rec.Symptoms)
	assert.NoError(t, mock.ExpectationsWereMet())
}
