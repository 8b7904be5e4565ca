// Package steps is the ordered migration history of the record store.
package steps

import (
	"github.com/jwalitptl/hospital-core/internal/migration"
	s "github.com/jwalitptl/hospital-core/internal/schema"
)

// GeneralMedicineID is the fixed id of the department seeded by migration
// 20240402083000.
const GeneralMedicineID = "0b6f3c1e-4a55-4f0c-9c5e-6d2f1a7e8b01"

func create(key, name string, t s.Table) migration.Step {
	return migration.Step{Key: key, Name: name, Up: []migration.Op{migration.CreateTable{Table: t}}}
}

// All returns every step in application order.
func All() []migration.Step {
	generalMedicine := migration.Row{
		"id":          GeneralMedicineID,
		"name":        "General Medicine",
		"description": "Default department for doctors without an assignment",
		"status":      "active",
	}

	return []migration.Step{
		create("20240105090000", "create_users", usersV1()),
		create("20240105090100", "create_departments", departmentsV1()),
		create("20240105090200", "create_doctors", doctorsV1()),
		create("20240105090300", "create_patients", patientsV1()),
		create("20240105090400", "create_appointments", appointmentsV1()),
		create("20240105090500", "create_medical_records", medicalRecordsV1()),
		create("20240105090600", "create_medications", medicationsV1()),
		create("20240105090700", "create_prescriptions", prescriptionsV1()),
		create("20240105090800", "create_prescription_medications", prescriptionMedicationsV1()),
		create("20240105090900", "create_lab_test_templates", labTestTemplatesV1()),
		create("20240105091000", "create_test_results", testResultsV1()),
		create("20240105091100", "create_inventory_items", inventoryItemsV1()),
		create("20240105091200", "create_bills", billsV1()),
		create("20240105091300", "create_audit_logs", auditLogsV1()),
		create("20240105091400", "create_outbox_events", outboxEventsV1()),
		{
			Key:  "20240312100000",
			Name: "add_appointment_meeting_link",
			Up: []migration.Op{migration.AddColumn{
				Table:  s.TableAppointments,
				Column: s.Column{Name: "meeting_link", Type: s.String(500), Nullable: true},
			}},
		},
		{
			Key:  "20240312100100",
			Name: "index_appointments_doctor_date_time",
			Up: []migration.Op{migration.CreateIndex{Index: s.Index{
				Name: "idx_appointments_doctor_date_time", Table: s.TableAppointments,
				Columns: []string{"doctor_id", "date_time"},
			}}},
		},
		{
			Key:  "20240318140000",
			Name: "extend_user_roles",
			Up: []migration.Op{migration.SetEnumVocabulary{
				Table: s.TableUsers, Column: "role", Enum: s.EnumUserRole,
				From: userRoleV1, To: userRoleV2,
			}},
		},
		{
			Key:  "20240318140100",
			Name: "add_cardiology_lab_category",
			Up: []migration.Op{migration.SetEnumVocabulary{
				Table: s.TableLabTestTemplates, Column: "category", Enum: s.EnumLabCategory,
				From: labCategoryV1, To: labCategoryV2,
			}},
		},
		{
			Key:  "20240402083000",
			Name: "seed_general_medicine_department",
			Up: []migration.Op{migration.InsertRows{
				Table: s.TableDepartments, Key: "id", Rows: []migration.Row{generalMedicine},
			}},
		},
		{
			Key:  "20240402083100",
			Name: "add_doctor_department",
			Up: []migration.Op{migration.AddColumn{
				Table:  s.TableDoctors,
				Column: s.Ref("department_id", s.TableDepartments, s.Restrict, true),
			}},
		},
		{
			Key:  "20240402083200",
			Name: "backfill_doctor_departments",
			Up: []migration.Op{
				migration.RequireRow{
					Table:  s.TableDepartments,
					Where:  migration.Row{"name": "General Medicine"},
					Reason: "assigning unassigned doctors to General Medicine",
				},
				migration.Exec{
					Description: "assign unassigned doctors to General Medicine",
					SQL: `UPDATE doctors SET department_id = (SELECT id FROM departments WHERE name = 'General Medicine')
						WHERE department_id IS NULL`,
				},
			},
			Down: []migration.Op{migration.Noop{
				Reason: "assignments are indistinguishable from manual ones; the column itself is dropped by 20240402083100",
			}},
		},
		create("20240415110000", "create_omaera_medications", omaeraMedicationsV1()),
		{
			Key:  "20240501092900",
			Name: "check_user_phone_length",
			Up: []migration.Op{migration.AssertEmpty{
				Description: "no user phone number is longer than 20 characters",
				Query:       `SELECT id FROM users WHERE length(phone) > 20`,
			}},
			Down: []migration.Op{migration.Noop{Reason: "read-only check, nothing was changed"}},
		},
		{
			Key:  "20240501093000",
			Name: "shorten_user_phone",
			Up: []migration.Op{migration.AlterColumnType{
				Table: s.TableUsers, Column: "phone", From: s.String(50), To: s.String(20),
			}},
		},
		{
			Key:  "20240520120000",
			Name: "check_bill_arithmetic",
			Up: []migration.Op{migration.AssertEmpty{
				Description: "every bill has final_amount = total_amount - discount + tax",
				Query:       `SELECT id FROM bills WHERE final_amount <> total_amount - discount + tax`,
			}},
			Down: []migration.Op{migration.Noop{Reason: "read-only check, nothing was changed"}},
		},
		{
			Key:  "20240520120100",
			Name: "enforce_bill_arithmetic",
			Up: []migration.Op{migration.AddCheck{
				Table: s.TableBills,
				Check: s.Check{Name: "chk_bills_final_amount", Expr: "final_amount = total_amount - discount + tax"},
			}},
		},
	}
}
