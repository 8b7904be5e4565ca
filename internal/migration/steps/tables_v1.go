package steps

import (
	s "github.com/jwalitptl/hospital-core/internal/schema"
)

// Table definitions as released on 2024-01-05. They are frozen: later
// changes go into new steps, never into these bodies.

var (
	userRoleV1 = []string{"patient", "doctor", "admin", "staff"}
	userRoleV2 = append(append([]string(nil), userRoleV1...),
		"nurse", "receptionist", "lab-technician", "pharmacist")

	labCategoryV1 = []string{"hematology", "biochemistry", "microbiology", "immunology", "pathology", "radiology"}
	labCategoryV2 = append(append([]string(nil), labCategoryV1...), "cardiology")
)

func cols(groups ...[]s.Column) []s.Column {
	var out []s.Column
	for _, g := range groups {
		out = append(out, g...)
	}
	return out
}

func enum(name, vocab string, nullable bool, def string, values ...string) s.Column {
	return s.Column{Name: name, Type: s.EnumOf(vocab, values...), Nullable: nullable, Default: def}
}

func unique(c s.Column) s.Column {
	c.Unique = true
	return c
}

func usersV1() s.Table {
	return s.Table{
		Name:       s.TableUsers,
		SoftDelete: true,
		Columns: cols([]s.Column{
			s.ID(),
			{Name: "email", Type: s.String(255), Unique: true},
			{Name: "password_hash", Type: s.String(255)},
			{Name: "first_name", Type: s.String(100)},
			{Name: "last_name", Type: s.String(100)},
			{Name: "phone", Type: s.String(50), Nullable: true},
			enum("role", s.EnumUserRole, false, "", userRoleV1...),
			{Name: "active", Type: s.Boolean(), Default: "TRUE"},
			{Name: "last_login_at", Type: s.Timestamp(), Nullable: true},
		}, s.Timestamps(), []s.Column{s.DeletedAt()}),
		Indexes: []s.Index{
			{Name: "idx_users_role", Table: s.TableUsers, Columns: []string{"role"}},
		},
	}
}

func departmentsV1() s.Table {
	return s.Table{
		Name: s.TableDepartments,
		Columns: cols([]s.Column{
			s.ID(),
			{Name: "name", Type: s.String(100), Unique: true},
			{Name: "description", Type: s.Text(), Nullable: true},
			{Name: "location", Type: s.String(255), Nullable: true},
			{Name: "phone", Type: s.String(20), Nullable: true},
			{Name: "opening_hours", Type: s.JSON(), Nullable: true},
			enum("status", s.EnumDepartmentStatus, false, "'active'", "active", "inactive"),
		}, s.Timestamps()),
	}
}

func doctorsV1() s.Table {
	return s.Table{
		Name:       s.TableDoctors,
		SoftDelete: true,
		Columns: cols([]s.Column{
			s.ID(),
			unique(s.Ref("user_id", s.TableUsers, s.Restrict, false)),
			{Name: "specialization", Type: s.String(100)},
			{Name: "license_number", Type: s.String(50), Unique: true},
			{Name: "qualifications", Type: s.StringArray(), Default: "'{}'"},
			{Name: "experience_years", Type: s.Integer(), Default: "0"},
			{Name: "consultation_fee", Type: s.Decimal(10, 2), Default: "0"},
			{Name: "availability", Type: s.JSON(), Default: "'[]'"},
			{Name: "bio", Type: s.Text(), Nullable: true},
		}, s.Timestamps(), []s.Column{s.DeletedAt()}),
		Indexes: []s.Index{
			{Name: "idx_doctors_specialization", Table: s.TableDoctors, Columns: []string{"specialization"}},
		},
	}
}

func patientsV1() s.Table {
	return s.Table{
		Name:       s.TablePatients,
		SoftDelete: true,
		Columns: cols([]s.Column{
			s.ID(),
			unique(s.Ref("user_id", s.TableUsers, s.Restrict, false)),
			{Name: "date_of_birth", Type: s.Timestamp(), Nullable: true},
			enum("gender", s.EnumGender, true, "", "male", "female", "other"),
			{Name: "blood_group", Type: s.String(5), Nullable: true},
			{Name: "address", Type: s.Text(), Nullable: true},
			{Name: "emergency_contact", Type: s.JSON(), Nullable: true},
			{Name: "medical_history", Type: s.Text(), Nullable: true},
			{Name: "allergies", Type: s.StringArray(), Default: "'{}'"},
			{Name: "current_medications", Type: s.StringArray(), Default: "'{}'"},
			{Name: "insurance_info", Type: s.JSON(), Nullable: true},
		}, s.Timestamps(), []s.Column{s.DeletedAt()}),
	}
}

func appointmentsV1() s.Table {
	return s.Table{
		Name:       s.TableAppointments,
		SoftDelete: true,
		Columns: cols([]s.Column{
			s.ID(),
			s.Ref("patient_id", s.TablePatients, s.Restrict, false),
			s.Ref("doctor_id", s.TableDoctors, s.Restrict, false),
			{Name: "date_time", Type: s.Timestamp()},
			{Name: "duration_minutes", Type: s.Integer(), Default: "30"},
			enum("type", s.EnumAppointmentType, false, "'in-person'", "in-person", "telehealth"),
			enum("status", s.EnumAppointmentStatus, false, "'scheduled'", "scheduled", "completed", "cancelled", "no-show"),
			{Name: "reason", Type: s.Text(), Nullable: true},
			{Name: "notes", Type: s.Text(), Nullable: true},
			{Name: "cancellation_reason", Type: s.Text(), Nullable: true},
		}, s.Timestamps(), []s.Column{s.DeletedAt()}),
		Indexes: []s.Index{
			{Name: "idx_appointments_patient", Table: s.TableAppointments, Columns: []string{"patient_id"}},
			{Name: "idx_appointments_doctor_slot", Table: s.TableAppointments, Columns: []string{"doctor_id", "date_time"}, Unique: true,
				Where: "status = 'scheduled' AND deleted_at IS NULL"},
		},
		Checks: []s.Check{
			{Name: "chk_appointments_duration", Expr: "duration_minutes > 0"},
		},
	}
}

func medicalRecordsV1() s.Table {
	return s.Table{
		Name:       s.TableMedicalRecords,
		SoftDelete: true,
		Columns: cols([]s.Column{
			s.ID(),
			s.Ref("patient_id", s.TablePatients, s.Restrict, false),
			s.Ref("doctor_id", s.TableDoctors, s.Restrict, false),
			s.Ref("appointment_id", s.TableAppointments, s.SetNull, true),
			{Name: "diagnosis", Type: s.Text()},
			{Name: "symptoms", Type: s.StringArray(), Default: "'{}'"},
			{Name: "vitals", Type: s.JSON(), Nullable: true},
			{Name: "prescriptions", Type: s.JSON(), Default: "'[]'"},
			{Name: "notes", Type: s.Text(), Nullable: true},
			{Name: "attachments", Type: s.JSON(), Default: "'[]'"},
			enum("status", s.EnumRecordStatus, false, "'draft'", "draft", "final"),
			s.Ref("created_by", s.TableUsers, s.Restrict, true),
		}, s.Timestamps(), []s.Column{s.DeletedAt()}),
		Indexes: []s.Index{
			{Name: "idx_medical_records_patient", Table: s.TableMedicalRecords, Columns: []string{"patient_id"}},
			{Name: "idx_medical_records_doctor", Table: s.TableMedicalRecords, Columns: []string{"doctor_id"}},
		},
	}
}

func medicationsV1() s.Table {
	return s.Table{
		Name: s.TableMedications,
		Columns: cols([]s.Column{
			s.ID(),
			{Name: "item_code", Type: s.String(50), Unique: true},
			{Name: "name", Type: s.String(255)},
			{Name: "generic_name", Type: s.String(255), Nullable: true},
			{Name: "manufacturer", Type: s.String(255), Nullable: true},
			{Name: "category", Type: s.String(100), Nullable: true},
			{Name: "dosage_form", Type: s.String(50), Nullable: true},
			{Name: "strength", Type: s.String(50), Nullable: true},
			{Name: "unit_price", Type: s.Decimal(10, 2), Default: "0"},
			{Name: "requires_prescription", Type: s.Boolean(), Default: "TRUE"},
		}, s.Timestamps()),
		Indexes: []s.Index{
			{Name: "idx_medications_name", Table: s.TableMedications, Columns: []string{"name"}},
		},
	}
}

func prescriptionsV1() s.Table {
	return s.Table{
		Name:       s.TablePrescriptions,
		SoftDelete: true,
		Columns: cols([]s.Column{
			s.ID(),
			s.Ref("patient_id", s.TablePatients, s.Restrict, false),
			s.Ref("doctor_id", s.TableDoctors, s.Restrict, false),
			s.Ref("appointment_id", s.TableAppointments, s.SetNull, true),
			enum("status", s.EnumPrescriptionStatus, false, "'active'", "active", "completed", "cancelled"),
			{Name: "refill_count", Type: s.Integer(), Default: "0"},
			{Name: "max_refills", Type: s.Integer(), Default: "0"},
			{Name: "notes", Type: s.Text(), Nullable: true},
			{Name: "issued_at", Type: s.Timestamp(), Default: "NOW()"},
			{Name: "expires_at", Type: s.Timestamp(), Nullable: true},
		}, s.Timestamps(), []s.Column{s.DeletedAt()}),
		Indexes: []s.Index{
			{Name: "idx_prescriptions_patient", Table: s.TablePrescriptions, Columns: []string{"patient_id"}},
		},
		Checks: []s.Check{
			{Name: "chk_prescriptions_refills", Expr: "refill_count >= 0 AND refill_count <= max_refills"},
		},
	}
}

func prescriptionMedicationsV1() s.Table {
	return s.Table{
		Name: s.TablePrescriptionMedications,
		Columns: []s.Column{
			s.ID(),
			s.Ref("prescription_id", s.TablePrescriptions, s.Cascade, false),
			s.Ref("medication_id", s.TableMedications, s.Restrict, false),
			{Name: "quantity", Type: s.Integer()},
			{Name: "dosage", Type: s.String(100)},
			{Name: "frequency", Type: s.String(100)},
			{Name: "duration", Type: s.String(100), Nullable: true},
			{Name: "instructions", Type: s.Text(), Nullable: true},
			{Name: "created_at", Type: s.Timestamp(), Default: "NOW()"},
		},
		Indexes: []s.Index{
			{Name: "idx_prescription_medications_line", Table: s.TablePrescriptionMedications,
				Columns: []string{"prescription_id", "medication_id"}, Unique: true},
		},
		Checks: []s.Check{
			{Name: "chk_prescription_medications_quantity", Expr: "quantity > 0"},
		},
	}
}

func labTestTemplatesV1() s.Table {
	return s.Table{
		Name: s.TableLabTestTemplates,
		Columns: cols([]s.Column{
			s.ID(),
			{Name: "name", Type: s.String(255), Unique: true},
			enum("category", s.EnumLabCategory, false, "", labCategoryV1...),
			{Name: "description", Type: s.Text(), Nullable: true},
			{Name: "parameters", Type: s.JSON(), Default: "'[]'"},
			{Name: "price", Type: s.Decimal(10, 2), Default: "0"},
			{Name: "turnaround_hours", Type: s.Integer(), Default: "24"},
			{Name: "active", Type: s.Boolean(), Default: "TRUE"},
		}, s.Timestamps()),
	}
}

func testResultsV1() s.Table {
	return s.Table{
		Name: s.TableTestResults,
		Columns: cols([]s.Column{
			s.ID(),
			s.Ref("patient_id", s.TablePatients, s.Restrict, false),
			s.Ref("doctor_id", s.TableDoctors, s.Restrict, false),
			s.Ref("template_id", s.TableLabTestTemplates, s.Restrict, true),
			{Name: "result", Type: s.Text()},
			{Name: "parameter_values", Type: s.JSON(), Default: "'[]'"},
			enum("status", s.EnumTestResultStatus, false, "'pending'", "pending", "in-progress", "completed", "cancelled"),
			{Name: "is_abnormal", Type: s.Boolean(), Default: "FALSE"},
			{Name: "notes", Type: s.Text(), Nullable: true},
			s.Ref("performed_by", s.TableUsers, s.Restrict, true),
			{Name: "result_date", Type: s.Timestamp(), Nullable: true},
		}, s.Timestamps()),
		Indexes: []s.Index{
			{Name: "idx_test_results_patient", Table: s.TableTestResults, Columns: []string{"patient_id"}},
		},
	}
}

func inventoryItemsV1() s.Table {
	return s.Table{
		Name: s.TableInventoryItems,
		Columns: cols([]s.Column{
			s.ID(),
			{Name: "item_code", Type: s.String(50), Unique: true},
			{Name: "name", Type: s.String(255)},
			{Name: "category", Type: s.String(100), Nullable: true},
			s.Ref("medication_id", s.TableMedications, s.SetNull, true),
			{Name: "quantity", Type: s.Integer(), Default: "0"},
			{Name: "minimum_level", Type: s.Integer(), Default: "0"},
			{Name: "unit", Type: s.String(30), Nullable: true},
			{Name: "unit_price", Type: s.Decimal(10, 2), Default: "0"},
			enum("status", s.EnumInventoryStatus, false, "'out-of-stock'", "in-stock", "low-stock", "out-of-stock"),
			{Name: "supplier", Type: s.String(255), Nullable: true},
			{Name: "expiry_date", Type: s.Timestamp(), Nullable: true},
			{Name: "last_restocked_at", Type: s.Timestamp(), Nullable: true},
		}, s.Timestamps()),
		Indexes: []s.Index{
			{Name: "idx_inventory_items_status", Table: s.TableInventoryItems, Columns: []string{"status"}},
		},
		Checks: []s.Check{
			{Name: "chk_inventory_items_levels", Expr: "quantity >= 0 AND minimum_level >= 0"},
		},
	}
}

func billsV1() s.Table {
	return s.Table{
		Name: s.TableBills,
		Columns: cols([]s.Column{
			s.ID(),
			{Name: "bill_number", Type: s.String(50), Unique: true},
			s.Ref("patient_id", s.TablePatients, s.Restrict, false),
			s.Ref("appointment_id", s.TableAppointments, s.SetNull, true),
			{Name: "items", Type: s.JSON(), Default: "'[]'"},
			{Name: "total_amount", Type: s.Decimal(12, 2)},
			{Name: "tax", Type: s.Decimal(12, 2), Default: "0"},
			{Name: "discount", Type: s.Decimal(12, 2), Default: "0"},
			{Name: "final_amount", Type: s.Decimal(12, 2)},
			enum("status", s.EnumBillStatus, false, "'pending'", "pending", "partially-paid", "paid", "cancelled", "refunded"),
			enum("payment_method", s.EnumPaymentMethod, true, "", "cash", "card", "insurance", "online"),
			{Name: "paid_at", Type: s.Timestamp(), Nullable: true},
			{Name: "due_date", Type: s.Timestamp(), Nullable: true},
			s.Ref("created_by", s.TableUsers, s.Restrict, true),
			{Name: "notes", Type: s.Text(), Nullable: true},
		}, s.Timestamps()),
		Indexes: []s.Index{
			{Name: "idx_bills_patient", Table: s.TableBills, Columns: []string{"patient_id"}},
		},
		Checks: []s.Check{
			{Name: "chk_bills_amounts_nonneg", Expr: "total_amount >= 0 AND tax >= 0 AND discount >= 0"},
		},
	}
}

func auditLogsV1() s.Table {
	return s.Table{
		Name: s.TableAuditLogs,
		Columns: []s.Column{
			s.ID(),
			{Name: "user_id", Type: s.UUID(), Nullable: true},
			{Name: "entity_type", Type: s.String(50)},
			{Name: "entity_id", Type: s.UUID()},
			{Name: "action", Type: s.String(20)},
			{Name: "changes", Type: s.JSON(), Nullable: true},
			{Name: "created_at", Type: s.Timestamp(), Default: "NOW()"},
		},
		Indexes: []s.Index{
			{Name: "idx_audit_logs_entity", Table: s.TableAuditLogs, Columns: []string{"entity_type", "entity_id"}},
		},
	}
}

func outboxEventsV1() s.Table {
	return s.Table{
		Name: s.TableOutboxEvents,
		Columns: []s.Column{
			s.ID(),
			{Name: "event_type", Type: s.String(100)},
			{Name: "aggregate_id", Type: s.UUID()},
			{Name: "payload", Type: s.JSON()},
			enum("status", s.EnumOutboxStatus, false, "'PENDING'", "PENDING", "PROCESSED", "FAILED"),
			{Name: "error_message", Type: s.Text(), Nullable: true},
			{Name: "retry_count", Type: s.Integer(), Default: "0"},
			{Name: "created_at", Type: s.Timestamp(), Default: "NOW()"},
			{Name: "processed_at", Type: s.Timestamp(), Nullable: true},
		},
		Indexes: []s.Index{
			{Name: "idx_outbox_events_pending", Table: s.TableOutboxEvents, Columns: []string{"created_at"}, Where: "status = 'PENDING'"},
		},
	}
}

func omaeraMedicationsV1() s.Table {
	return s.Table{
		Name: s.TableOmaeraMedications,
		Columns: cols([]s.Column{
			s.ID(),
			{Name: "item_code", Type: s.String(50), Unique: true},
			{Name: "name", Type: s.String(255)},
			{Name: "original_price", Type: s.Decimal(10, 2)},
			{Name: "current_price", Type: s.Decimal(10, 2)},
			s.Ref("last_updated_by", s.TableUsers, s.Restrict, false),
		}, s.Timestamps()),
		Checks: []s.Check{
			{Name: "chk_omaera_medications_prices", Expr: "original_price >= 0 AND current_price >= 0"},
		},
	}
}
