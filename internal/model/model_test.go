package model

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jwalitptl/hospital-core/internal/schema"
	apperrors "github.com/jwalitptl/hospital-core/pkg/errors"
)

func strPtr(s string) *string { return &s }

func dec(s string) decimal.Decimal { return decimal.RequireFromString(s) }

func TestAppointmentStateMachine(t *testing.T) {
	a := NewAppointment(uuid.New(), uuid.New(), time.Now().Add(time.Hour), AppointmentTypeInPerson)
	require.NoError(t, a.Validate())

	require.NoError(t, a.TransitionTo(AppointmentStatusCompleted))
	err := a.TransitionTo(AppointmentStatusCancelled)
	assert.True(t, errors.Is(err, apperrors.ErrInvalidTransition))
	assert.Equal(t, AppointmentStatusCompleted, a.Status)
}

func TestAppointmentTerminalStatesNeverMove(t *testing.T) {
	all := []AppointmentStatus{
		AppointmentStatusScheduled, AppointmentStatusCompleted,
		AppointmentStatusCancelled, AppointmentStatusNoShow,
	}
	for _, terminal := range all[1:] {
		assert.True(t, terminal.IsTerminal(), terminal)
		for _, to := range all {
			a := &Appointment{Status: terminal}
			assert.Error(t, a.TransitionTo(to), "%s -> %s", terminal, to)
			assert.Equal(t, terminal, a.Status)
		}
	}
	assert.False(t, AppointmentStatusScheduled.IsTerminal())
	a := &Appointment{Status: AppointmentStatusScheduled}
	assert.Error(t, a.TransitionTo(AppointmentStatusScheduled))
}

func TestAppointmentValidation(t *testing.T) {
	a := NewAppointment(uuid.New(), uuid.New(), time.Now(), AppointmentTypeInPerson)
	a.MeetingLink = strPtr("https://meet.example.com/abc")
	err := a.Validate()
	require.Error(t, err)
	assert.Equal(t, apperrors.KindValidation, apperrors.KindOf(err))

	a.Type = AppointmentTypeTelehealth
	assert.NoError(t, a.Validate())

	a.DurationMinutes = 0
	assert.Error(t, a.Validate())

	a.DurationMinutes = 15
	a.Type = "video"
	assert.Error(t, a.Validate())
}

func TestAppointmentCancelNeedsReason(t *testing.T) {
	a := NewAppointment(uuid.New(), uuid.New(), time.Now(), AppointmentTypeInPerson)
	assert.Error(t, a.Cancel("  "))
	assert.Equal(t, AppointmentStatusScheduled, a.Status)

	require.NoError(t, a.Cancel("patient unwell"))
	assert.Equal(t, AppointmentStatusCancelled, a.Status)
	assert.NoError(t, a.Validate())
	assert.False(t, a.OccupiesSlot())
}

func TestPrescriptionRefills(t *testing.T) {
	p := &Prescription{Status: PrescriptionStatusActive, MaxRefills: 2}

	require.NoError(t, p.RecordRefill())
	assert.Equal(t, PrescriptionStatusActive, p.Status)
	require.NoError(t, p.RecordRefill())
	assert.Equal(t, PrescriptionStatusCompleted, p.Status)
	assert.Equal(t, 2, p.RefillCount)

	err := p.RecordRefill()
	assert.True(t, errors.Is(err, apperrors.ErrInvalidTransition))
	assert.Equal(t, 2, p.RefillCount)
}

func TestPrescriptionRefillBeyondMaxWhileActive(t *testing.T) {
	p := &Prescription{Status: PrescriptionStatusActive, MaxRefills: 0}
	err := p.RecordRefill()
	assert.True(t, errors.Is(err, apperrors.ErrInvalidTransition))
	assert.Zero(t, p.RefillCount)
}

func TestPrescriptionTransitions(t *testing.T) {
	p := &Prescription{Status: PrescriptionStatusActive}
	require.NoError(t, p.TransitionTo(PrescriptionStatusCancelled))
	assert.Error(t, p.TransitionTo(PrescriptionStatusActive))
	assert.Error(t, p.TransitionTo(PrescriptionStatusCompleted))
	assert.Error(t, p.RecordRefill())
}

func TestPrescriptionStatusCanTransitionTo(t *testing.T) {
	tests := []struct {
		from, to PrescriptionStatus
		want     bool
	}{
		{PrescriptionStatusActive, PrescriptionStatusCompleted, true},
		{PrescriptionStatusActive, PrescriptionStatusCancelled, true},
		{PrescriptionStatusActive, PrescriptionStatusActive, false},
		{PrescriptionStatusCompleted, PrescriptionStatusActive, false},
		{PrescriptionStatusCancelled, PrescriptionStatusActive, false},
		{PrescriptionStatusCancelled, PrescriptionStatusCompleted, false},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, tt.from.CanTransitionTo(tt.to), string(tt.from)+"->"+string(tt.to))
	}
}

func TestPrescriptionValidate(t *testing.T) {
	med := uuid.New()
	p := &Prescription{
		PatientID:  uuid.New(),
		DoctorID:   uuid.New(),
		Status:     PrescriptionStatusActive,
		MaxRefills: 1,
		IssuedAt:   time.Now(),
		Lines: []PrescriptionMedication{
			{MedicationID: med, Quantity: 10, Dosage: "500mg", Frequency: "twice daily"},
		},
	}
	require.NoError(t, p.Validate())

	p.RefillCount = 2
	assert.Error(t, p.Validate())

	p.RefillCount = 0
	p.Lines = append(p.Lines, PrescriptionMedication{MedicationID: med, Quantity: 1, Dosage: "x", Frequency: "y"})
	assert.Error(t, p.Validate())

	p.Lines = p.Lines[:1]
	p.Lines[0].Quantity = 0
	assert.Error(t, p.Validate())
}

func TestDeriveInventoryStatus(t *testing.T) {
	for q := 0; q <= 20; q++ {
		for min := 0; min <= 10; min++ {
			got := DeriveInventoryStatus(q, min)
			switch {
			case q == 0:
				assert.Equal(t, InventoryStatusOutOfStock, got)
			case q <= min:
				assert.Equal(t, InventoryStatusLowStock, got)
			default:
				assert.Equal(t, InventoryStatusInStock, got)
			}
		}
	}
}

func TestInventoryAdjust(t *testing.T) {
	item := &InventoryItem{ItemCode: "MED-001", Name: "Paracetamol", Quantity: 5, MinimumLevel: 10}
	require.NoError(t, item.Validate())
	assert.Equal(t, InventoryStatusLowStock, item.Status)

	require.NoError(t, item.Adjust(-5, time.Now()))
	assert.Equal(t, InventoryStatusOutOfStock, item.Status)

	assert.Error(t, item.Adjust(-1, time.Now()))
	assert.Zero(t, item.Quantity)

	now := time.Now()
	require.NoError(t, item.Adjust(50, now))
	assert.Equal(t, InventoryStatusInStock, item.Status)
	assert.Equal(t, &now, item.LastRestockedAt)
}

func TestInventoryStatusSQL(t *testing.T) {
	assert.Equal(t,
		"CASE WHEN quantity <= 0 THEN 'out-of-stock' WHEN quantity <= minimum_level THEN 'low-stock' ELSE 'in-stock' END",
		InventoryStatusSQL("quantity", "minimum_level"))
}

func TestBillArithmetic(t *testing.T) {
	b := &Bill{
		BillNumber: "B-1",
		PatientID:  uuid.New(),
		Items: BillItems{
			{Description: "Consultation", Quantity: 1, UnitPrice: dec("50.00")},
			{Description: "CBC", Quantity: 2, UnitPrice: dec("12.505")},
		},
		Tax:      dec("4.10"),
		Discount: dec("10"),
	}
	b.Recalculate()
	require.NoError(t, b.Validate())

	assert.True(t, b.TotalAmount.Equal(dec("75.01")), b.TotalAmount.String())
	assert.True(t, b.FinalAmount.Equal(b.TotalAmount.Sub(b.Discount).Add(b.Tax)))
	assert.True(t, b.FinalAmount.Equal(dec("69.11")), b.FinalAmount.String())

	b.FinalAmount = dec("1")
	assert.Error(t, b.Validate())
}

func TestBillRejectsNegativeAndOversizedDiscount(t *testing.T) {
	b := &Bill{BillNumber: "B-2", PatientID: uuid.New(), Items: BillItems{{Description: "x", Quantity: 1, UnitPrice: dec("5")}}}
	b.Discount = dec("-1")
	b.Recalculate()
	assert.Error(t, b.Validate())

	b.Discount = dec("6")
	b.Recalculate()
	assert.Error(t, b.Validate())
}

func TestBillMarkPaid(t *testing.T) {
	b := &Bill{Status: BillStatusPending}
	require.NoError(t, b.MarkPaid(PaymentMethodCard, time.Now()))
	assert.Equal(t, BillStatusPaid, b.Status)
	assert.Error(t, b.MarkPaid(PaymentMethodCash, time.Now()))
}

func TestMedicalRecordFinalize(t *testing.T) {
	r := &MedicalRecord{PatientID: uuid.New(), DoctorID: uuid.New(), Diagnosis: "Flu"}
	require.NoError(t, r.Validate())
	assert.Equal(t, RecordStatusDraft, r.Status)
	assert.NoError(t, r.EnsureMutable())

	require.NoError(t, r.Finalize())
	assert.True(t, errors.Is(r.EnsureMutable(), apperrors.ErrInvalidTransition))
	assert.Error(t, r.Finalize())
}

func TestMedicalRecordAttachmentsValidated(t *testing.T) {
	r := &MedicalRecord{
		PatientID:   uuid.New(),
		DoctorID:    uuid.New(),
		Diagnosis:   "Fracture",
		Attachments: Attachments{{Name: "xray.png", ContentType: "image/png", URL: "not a url"}},
	}
	assert.Error(t, r.Validate())
	r.Attachments[0].URL = "https://files.example.com/xray.png"
	assert.NoError(t, r.Validate())
}

func TestAvailabilityOverlap(t *testing.T) {
	a := Availability{
		{Day: "monday", Start: "09:00", End: "12:00"},
		{Day: "monday", Start: "13:00", End: "17:00"},
		{Day: "tuesday", Start: "09:00", End: "17:00"},
	}
	require.NoError(t, a.Validate())

	a = append(a, AvailabilitySlot{Day: "monday", Start: "11:30", End: "13:30"})
	assert.Error(t, a.Validate())

	assert.Error(t, Availability{{Day: "monday", Start: "12:00", End: "09:00"}}.Validate())
	assert.Error(t, Availability{{Day: "funday", Start: "09:00", End: "10:00"}}.Validate())
}

func TestAvailabilityCovers(t *testing.T) {
	a := Availability{{Day: "monday", Start: "09:00", End: "12:00"}}
	monday := time.Date(2024, 4, 1, 10, 0, 0, 0, time.UTC)
	assert.True(t, a.Covers(monday))
	assert.False(t, a.Covers(monday.Add(2*time.Hour)))
	assert.False(t, a.Covers(monday.AddDate(0, 0, 1)))
}

func TestLabTemplateEvaluate(t *testing.T) {
	low, high := dec("4.5"), dec("11.0")
	tmpl := &LabTestTemplate{
		Base:            Base{ID: uuid.New()},
		Name:            "Complete Blood Count",
		Category:        LabCategoryHematology,
		TurnaroundHours: 24,
		Parameters: TestParameters{
			{Name: "WBC", Unit: "10^9/L", ValueType: ValueTypeNumeric, Min: &low, Max: &high},
			{Name: "Appearance", ValueType: ValueTypeText, NormalValue: "clear"},
		},
	}
	require.NoError(t, tmpl.Validate())

	abnormal, err := tmpl.Evaluate([]ParameterValue{{Name: "WBC", Value: "7.2"}, {Name: "Appearance", Value: "Clear"}})
	require.NoError(t, err)
	assert.False(t, abnormal)

	abnormal, err = tmpl.Evaluate([]ParameterValue{{Name: "wbc", Value: "12"}})
	require.NoError(t, err)
	assert.True(t, abnormal)

	_, err = tmpl.Evaluate([]ParameterValue{{Name: "WBC", Value: "high"}})
	assert.Error(t, err)
	_, err = tmpl.Evaluate([]ParameterValue{{Name: "Platelets", Value: "200"}})
	assert.Error(t, err)
}

func TestTestResultApplyTemplate(t *testing.T) {
	max := dec("5.6")
	tmpl := &LabTestTemplate{
		Base:       Base{ID: uuid.New()},
		Name:       "Fasting Glucose",
		Parameters: TestParameters{{Name: "Glucose", ValueType: ValueTypeNumeric, Max: &max}},
	}
	r := &TestResult{TemplateID: &tmpl.ID, ParameterValues: ParameterValues{{Name: "Glucose", Value: "7.1"}}}
	require.NoError(t, r.ApplyTemplate(tmpl))
	assert.True(t, r.IsAbnormal)

	manual := &TestResult{IsAbnormal: true}
	require.NoError(t, manual.ApplyTemplate(nil))
	assert.True(t, manual.IsAbnormal)

	other := uuid.New()
	r.TemplateID = &other
	assert.Error(t, r.ApplyTemplate(tmpl))
}

func TestTemplateRejectsInvertedRange(t *testing.T) {
	min, max := dec("10"), dec("1")
	tmpl := &LabTestTemplate{
		Name:            "Bad",
		Category:        LabCategoryBiochemistry,
		TurnaroundHours: 1,
		Parameters:      TestParameters{{Name: "X", ValueType: ValueTypeNumeric, Min: &min, Max: &max}},
	}
	assert.Error(t, tmpl.Validate())
}

func TestUserRoleVocabulary(t *testing.T) {
	u := &User{Email: " Nurse@Example.com ", PasswordHash: "x", FirstName: "Ada", LastName: "Lovelace", Role: RoleNurse}
	require.NoError(t, u.Validate())
	assert.Equal(t, "nurse@example.com", u.Email)

	u.Role = "janitor"
	err := u.Validate()
	require.Error(t, err)
	var appErr *apperrors.AppError
	require.True(t, errors.As(err, &appErr))
	assert.Equal(t, "role", appErr.Field)
}

func TestOmaeraSetPriceIsAttributed(t *testing.T) {
	o := &OmaeraMedication{ItemCode: "OM-1", Name: "Amoxicillin", OriginalPrice: dec("10"), CurrentPrice: dec("10")}
	assert.Error(t, o.SetPrice(dec("8"), uuid.Nil))
	assert.Error(t, o.SetPrice(dec("-1"), uuid.New()))

	actor := uuid.New()
	require.NoError(t, o.SetPrice(dec("8"), actor))
	assert.Equal(t, actor, o.LastUpdatedBy)
	assert.True(t, o.Markdown().Equal(dec("0.2")))
	assert.NoError(t, o.Validate())

	o.OriginalPrice = dec("-3")
	assert.Error(t, o.Validate())
}

func TestRelationsMatchRegistry(t *testing.T) {
	reg := schema.Current()
	for _, r := range Relations() {
		assert.NoError(t, r.Check(reg), r.Owner+"."+r.Name)
	}
}

func TestRelationCheckCatchesWrongTarget(t *testing.T) {
	bad := Relation{Name: "user", Kind: BelongsTo, Owner: schema.TableDoctors, Target: schema.TablePatients, ForeignKey: "user_id"}
	assert.Error(t, bad.Check(schema.Current()))
}

func TestRelationJoin(t *testing.T) {
	assert.Equal(t, "JOIN doctors d ON d.id = mr.doctor_id", MedicalRecordDoctor.Join("mr", "d"))
	assert.Equal(t, "JOIN bills b ON b.patient_id = p.id", PatientBills.Join("p", "b"))
	assert.Equal(t,
		"JOIN prescription_medications m_through ON m_through.prescription_id = p.id JOIN medications m ON m.id = m_through.medication_id",
		PrescriptionMedications.Join("p", "m"))
	assert.Equal(t, "JOIN prescription_medications l ON l.prescription_id = p.id", PrescriptionLineItems.Join("p", "l"))
}

func TestPagination(t *testing.T) {
	p := Pagination{Page: 0, PageSize: 500}.Normalize()
	assert.Equal(t, 1, p.Page)
	assert.Equal(t, MaxPageSize, p.PageSize)
	assert.Equal(t, 40, Pagination{Page: 3, PageSize: 20}.Offset())

	page := NewPage[int](nil, 45, Pagination{Page: 2, PageSize: 20})
	assert.NotNil(t, page.Items)
	assert.True(t, page.HasNext())
}

func TestActorContext(t *testing.T) {
	ctx := WithActor(context.Background(), Actor{UserID: uuid.New(), Role: RoleDoctor})
	assert.NotNil(t, ActorID(ctx))
	assert.Nil(t, ActorID(context.Background()))
}

func TestJSONColumnsRoundTrip(t *testing.T) {
	v := &Vitals{BloodPressure: "120/80"}
	raw, err := v.Value()
	require.NoError(t, err)

	var back Vitals
	require.NoError(t, back.Scan(raw))
	assert.Equal(t, "120/80", back.BloodPressure)

	var empty Attachments
	require.NoError(t, empty.Scan(nil))
	val, err := Attachments(nil).Value()
	require.NoError(t, err)
	assert.Equal(t, []byte("[]"), val)
}
