package model

import (
	"fmt"

	"github.com/jwalitptl/hospital-core/internal/schema"
)

// RelationKind names how two records are linked.
type RelationKind int

const (
	BelongsTo RelationKind = iota + 1
	HasOne
	HasMany
	ManyToManyThrough
)

func (k RelationKind) String() string {
	switch k {
	case BelongsTo:
		return "belongs_to"
	case HasOne:
		return "has_one"
	case HasMany:
		return "has_many"
	case ManyToManyThrough:
		return "many_to_many_through"
	}
	return "unknown"
}

// Relation is an explicit link between two tables. Keys are spelled out;
// nothing is inferred from names.
//
//   - BelongsTo: Owner.ForeignKey -> Target.id
//   - HasOne/HasMany: Target.ForeignKey -> Owner.id
//   - ManyToManyThrough: Through.ForeignKey -> Owner.id and
//     Through.TargetKey -> Target.id
type Relation struct {
	Name       string
	Kind       RelationKind
	Owner      string
	Target     string
	ForeignKey string
	Through    string
	TargetKey  string
	Optional   bool
}

// Relations declared for the record store.
var (
	DoctorUser       = Relation{Name: "user", Kind: BelongsTo, Owner: schema.TableDoctors, Target: schema.TableUsers, ForeignKey: "user_id"}
	DoctorDepartment = Relation{Name: "department", Kind: BelongsTo, Owner: schema.TableDoctors, Target: schema.TableDepartments, ForeignKey: "department_id", Optional: true}
	PatientUser      = Relation{Name: "user", Kind: BelongsTo, Owner: schema.TablePatients, Target: schema.TableUsers, ForeignKey: "user_id"}
	UserDoctor       = Relation{Name: "doctor", Kind: HasOne, Owner: schema.TableUsers, Target: schema.TableDoctors, ForeignKey: "user_id"}
	UserPatient      = Relation{Name: "patient", Kind: HasOne, Owner: schema.TableUsers, Target: schema.TablePatients, ForeignKey: "user_id"}

	AppointmentPatient  = Relation{Name: "patient", Kind: BelongsTo, Owner: schema.TableAppointments, Target: schema.TablePatients, ForeignKey: "patient_id"}
	AppointmentDoctor   = Relation{Name: "doctor", Kind: BelongsTo, Owner: schema.TableAppointments, Target: schema.TableDoctors, ForeignKey: "doctor_id"}
	PatientAppointments = Relation{Name: "appointments", Kind: HasMany, Owner: schema.TablePatients, Target: schema.TableAppointments, ForeignKey: "patient_id"}
	DoctorAppointments  = Relation{Name: "appointments", Kind: HasMany, Owner: schema.TableDoctors, Target: schema.TableAppointments, ForeignKey: "doctor_id"}

	MedicalRecordPatient     = Relation{Name: "patient", Kind: BelongsTo, Owner: schema.TableMedicalRecords, Target: schema.TablePatients, ForeignKey: "patient_id"}
	MedicalRecordDoctor      = Relation{Name: "doctor", Kind: BelongsTo, Owner: schema.TableMedicalRecords, Target: schema.TableDoctors, ForeignKey: "doctor_id"}
	MedicalRecordAppointment = Relation{Name: "appointment", Kind: BelongsTo, Owner: schema.TableMedicalRecords, Target: schema.TableAppointments, ForeignKey: "appointment_id", Optional: true}
	PatientMedicalRecords    = Relation{Name: "medical_records", Kind: HasMany, Owner: schema.TablePatients, Target: schema.TableMedicalRecords, ForeignKey: "patient_id"}

	PrescriptionPatient     = Relation{Name: "patient", Kind: BelongsTo, Owner: schema.TablePrescriptions, Target: schema.TablePatients, ForeignKey: "patient_id"}
	PrescriptionDoctor      = Relation{Name: "doctor", Kind: BelongsTo, Owner: schema.TablePrescriptions, Target: schema.TableDoctors, ForeignKey: "doctor_id"}
	PrescriptionLineItems   = Relation{Name: "lines", Kind: HasMany, Owner: schema.TablePrescriptions, Target: schema.TablePrescriptionMedications, ForeignKey: "prescription_id"}
	PrescriptionMedications = Relation{Name: "medications", Kind: ManyToManyThrough, Owner: schema.TablePrescriptions, Target: schema.TableMedications,
		Through: schema.TablePrescriptionMedications, ForeignKey: "prescription_id", TargetKey: "medication_id"}
	PatientPrescriptions = Relation{Name: "prescriptions", Kind: HasMany, Owner: schema.TablePatients, Target: schema.TablePrescriptions, ForeignKey: "patient_id"}

	TestResultTemplate = Relation{Name: "template", Kind: BelongsTo, Owner: schema.TableTestResults, Target: schema.TableLabTestTemplates, ForeignKey: "template_id", Optional: true}
	PatientTestResults = Relation{Name: "test_results", Kind: HasMany, Owner: schema.TablePatients, Target: schema.TableTestResults, ForeignKey: "patient_id"}

	InventoryMedication = Relation{Name: "medication", Kind: BelongsTo, Owner: schema.TableInventoryItems, Target: schema.TableMedications, ForeignKey: "medication_id", Optional: true}
	OmaeraLastUpdatedBy = Relation{Name: "last_updated_by", Kind: BelongsTo, Owner: schema.TableOmaeraMedications, Target: schema.TableUsers, ForeignKey: "last_updated_by"}
	BillPatient         = Relation{Name: "patient", Kind: BelongsTo, Owner: schema.TableBills, Target: schema.TablePatients, ForeignKey: "patient_id"}
	PatientBills        = Relation{Name: "bills", Kind: HasMany, Owner: schema.TablePatients, Target: schema.TableBills, ForeignKey: "patient_id"}
)

// Relations lists every declared relation.
func Relations() []Relation {
	return []Relation{
		DoctorUser, DoctorDepartment, PatientUser, UserDoctor, UserPatient,
		AppointmentPatient, AppointmentDoctor, PatientAppointments, DoctorAppointments,
		MedicalRecordPatient, MedicalRecordDoctor, MedicalRecordAppointment, PatientMedicalRecords,
		PrescriptionPatient, PrescriptionDoctor, PrescriptionLineItems, PrescriptionMedications, PatientPrescriptions,
		TestResultTemplate, PatientTestResults,
		InventoryMedication, OmaeraLastUpdatedBy, BillPatient, PatientBills,
	}
}

// Check verifies the relation against the registry: every key column
// exists and carries a foreign key to the expected table.
func (r Relation) Check(reg *schema.Registry) error {
	switch r.Kind {
	case BelongsTo:
		return checkFK(reg, r.Owner, r.ForeignKey, r.Target)
	case HasOne, HasMany:
		return checkFK(reg, r.Target, r.ForeignKey, r.Owner)
	case ManyToManyThrough:
		if err := checkFK(reg, r.Through, r.ForeignKey, r.Owner); err != nil {
			return err
		}
		return checkFK(reg, r.Through, r.TargetKey, r.Target)
	}
	return fmt.Errorf("relation %s has unknown kind", r.Name)
}

func checkFK(reg *schema.Registry, table, column, target string) error {
	t, ok := reg.Table(table)
	if !ok {
		return fmt.Errorf("unknown table %s", table)
	}
	c, ok := t.Column(column)
	if !ok {
		return fmt.Errorf("unknown column %s.%s", table, column)
	}
	if c.References == nil || c.References.Table != target {
		return fmt.Errorf("%s.%s does not reference %s", table, column, target)
	}
	return nil
}

// Join renders the SQL join from Owner to Target for the relation.
func (r Relation) Join(ownerAlias, targetAlias string) string {
	switch r.Kind {
	case BelongsTo:
		return fmt.Sprintf("JOIN %s %s ON %s.id = %s.%s", r.Target, targetAlias, targetAlias, ownerAlias, r.ForeignKey)
	case HasOne, HasMany:
		return fmt.Sprintf("JOIN %s %s ON %s.%s = %s.id", r.Target, targetAlias, targetAlias, r.ForeignKey, ownerAlias)
	case ManyToManyThrough:
		through := targetAlias + "_through"
		return fmt.Sprintf("JOIN %s %s ON %s.%s = %s.id JOIN %s %s ON %s.id = %s.%s",
			r.Through, through, through, r.ForeignKey, ownerAlias,
			r.Target, targetAlias, targetAlias, through, r.TargetKey)
	}
	return ""
}
