package schema

// Table names.
const (
	TableUsers                   = "users"
	TableDepartments             = "departments"
	TableDoctors                 = "doctors"
	TablePatients                = "patients"
	TableAppointments            = "appointments"
	TableMedicalRecords          = "medical_records"
	TableMedications             = "medications"
	TableOmaeraMedications       = "omaera_medications"
	TablePrescriptions           = "prescriptions"
	TablePrescriptionMedications = "prescription_medications"
	TableLabTestTemplates        = "lab_test_templates"
	TableTestResults             = "test_results"
	TableInventoryItems          = "inventory_items"
	TableBills                   = "bills"
	TableAuditLogs               = "audit_logs"
	TableOutboxEvents            = "outbox_events"
)

func concat(groups ...[]Column) []Column {
	var out []Column
	for _, g := range groups {
		out = append(out, g...)
	}
	return out
}

func enumCol(name, enum string, nullable bool, def string) Column {
	return Column{Name: name, Type: EnumOf(enum), Nullable: nullable, Default: def}
}

// tables returns the current target shape in creation order: every foreign
// key points at a table declared earlier.
func tables() []Table {
	return []Table{
		{
			Name:       TableUsers,
			SoftDelete: true,
			Columns: concat([]Column{
				ID(),
				{Name: "email", Type: String(255), Unique: true},
				{Name: "password_hash", Type: String(255)},
				{Name: "first_name", Type: String(100)},
				{Name: "last_name", Type: String(100)},
				{Name: "phone", Type: String(20), Nullable: true},
				enumCol("role", EnumUserRole, false, ""),
				{Name: "active", Type: Boolean(), Default: "TRUE"},
				{Name: "last_login_at", Type: Timestamp(), Nullable: true},
			}, Timestamps(), []Column{DeletedAt()}),
			Indexes: []Index{
				{Name: "idx_users_role", Table: TableUsers, Columns: []string{"role"}},
			},
		},
		{
			Name: TableDepartments,
			Columns: concat([]Column{
				ID(),
				{Name: "name", Type: String(100), Unique: true},
				{Name: "description", Type: Text(), Nullable: true},
				{Name: "location", Type: String(255), Nullable: true},
				{Name: "phone", Type: String(20), Nullable: true},
				{Name: "opening_hours", Type: JSON(), Nullable: true},
				enumCol("status", EnumDepartmentStatus, false, "'active'"),
			}, Timestamps()),
		},
		{
			Name:       TableDoctors,
			SoftDelete: true,
			Columns: concat([]Column{
				ID(),
				withUnique(Ref("user_id", TableUsers, Restrict, false)),
				{Name: "specialization", Type: String(100)},
				{Name: "license_number", Type: String(50), Unique: true},
				{Name: "qualifications", Type: StringArray(), Default: "'{}'"},
				{Name: "experience_years", Type: Integer(), Default: "0"},
				{Name: "consultation_fee", Type: Decimal(10, 2), Default: "0"},
				{Name: "availability", Type: JSON(), Default: "'[]'"},
				{Name: "bio", Type: Text(), Nullable: true},
			}, Timestamps(), []Column{
				DeletedAt(),
				Ref("department_id", TableDepartments, Restrict, true),
			}),
			Indexes: []Index{
				{Name: "idx_doctors_specialization", Table: TableDoctors, Columns: []string{"specialization"}},
			},
		},
		{
			Name:       TablePatients,
			SoftDelete: true,
			Columns: concat([]Column{
				ID(),
				withUnique(Ref("user_id", TableUsers, Restrict, false)),
				{Name: "date_of_birth", Type: Timestamp(), Nullable: true},
				enumCol("gender", EnumGender, true, ""),
				{Name: "blood_group", Type: String(5), Nullable: true},
				{Name: "address", Type: Text(), Nullable: true},
				{Name: "emergency_contact", Type: JSON(), Nullable: true},
				{Name: "medical_history", Type: Text(), Nullable: true},
				{Name: "allergies", Type: StringArray(), Default: "'{}'"},
				{Name: "current_medications", Type: StringArray(), Default: "'{}'"},
				{Name: "insurance_info", Type: JSON(), Nullable: true},
			}, Timestamps(), []Column{DeletedAt()}),
		},
		{
			Name:       TableAppointments,
			SoftDelete: true,
			Columns: concat([]Column{
				ID(),
				Ref("patient_id", TablePatients, Restrict, false),
				Ref("doctor_id", TableDoctors, Restrict, false),
				{Name: "date_time", Type: Timestamp()},
				{Name: "duration_minutes", Type: Integer(), Default: "30"},
				enumCol("type", EnumAppointmentType, false, "'in-person'"),
				enumCol("status", EnumAppointmentStatus, false, "'scheduled'"),
				{Name: "reason", Type: Text(), Nullable: true},
				{Name: "notes", Type: Text(), Nullable: true},
				{Name: "cancellation_reason", Type: Text(), Nullable: true},
			}, Timestamps(), []Column{
				DeletedAt(),
				{Name: "meeting_link", Type: String(500), Nullable: true},
			}),
			Indexes: []Index{
				{Name: "idx_appointments_patient", Table: TableAppointments, Columns: []string{"patient_id"}},
				{Name: "idx_appointments_doctor_slot", Table: TableAppointments, Columns: []string{"doctor_id", "date_time"}, Unique: true,
					Where: "status = 'scheduled' AND deleted_at IS NULL"},
				{Name: "idx_appointments_doctor_date_time", Table: TableAppointments, Columns: []string{"doctor_id", "date_time"}},
			},
			Checks: []Check{
				{Name: "chk_appointments_duration", Expr: "duration_minutes > 0"},
			},
		},
		{
			Name:       TableMedicalRecords,
			SoftDelete: true,
			Columns: concat([]Column{
				ID(),
				Ref("patient_id", TablePatients, Restrict, false),
				Ref("doctor_id", TableDoctors, Restrict, false),
				Ref("appointment_id", TableAppointments, SetNull, true),
				{Name: "diagnosis", Type: Text()},
				{Name: "symptoms", Type: StringArray(), Default: "'{}'"},
				{Name: "vitals", Type: JSON(), Nullable: true},
				{Name: "prescriptions", Type: JSON(), Default: "'[]'"},
				{Name: "notes", Type: Text(), Nullable: true},
				{Name: "attachments", Type: JSON(), Default: "'[]'"},
				enumCol("status", EnumRecordStatus, false, "'draft'"),
				Ref("created_by", TableUsers, Restrict, true),
			}, Timestamps(), []Column{DeletedAt()}),
			Indexes: []Index{
				{Name: "idx_medical_records_patient", Table: TableMedicalRecords, Columns: []string{"patient_id"}},
				{Name: "idx_medical_records_doctor", Table: TableMedicalRecords, Columns: []string{"doctor_id"}},
			},
		},
		{
			Name: TableMedications,
			Columns: concat([]Column{
				ID(),
				{Name: "item_code", Type: String(50), Unique: true},
				{Name: "name", Type: String(255)},
				{Name: "generic_name", Type: String(255), Nullable: true},
				{Name: "manufacturer", Type: String(255), Nullable: true},
				{Name: "category", Type: String(100), Nullable: true},
				{Name: "dosage_form", Type: String(50), Nullable: true},
				{Name: "strength", Type: String(50), Nullable: true},
				{Name: "unit_price", Type: Decimal(10, 2), Default: "0"},
				{Name: "requires_prescription", Type: Boolean(), Default: "TRUE"},
			}, Timestamps()),
			Indexes: []Index{
				{Name: "idx_medications_name", Table: TableMedications, Columns: []string{"name"}},
			},
		},
		{
			Name:       TablePrescriptions,
			SoftDelete: true,
			Columns: concat([]Column{
				ID(),
				Ref("patient_id", TablePatients, Restrict, false),
				Ref("doctor_id", TableDoctors, Restrict, false),
				Ref("appointment_id", TableAppointments, SetNull, true),
				enumCol("status", EnumPrescriptionStatus, false, "'active'"),
				{Name: "refill_count", Type: Integer(), Default: "0"},
				{Name: "max_refills", Type: Integer(), Default: "0"},
				{Name: "notes", Type: Text(), Nullable: true},
				{Name: "issued_at", Type: Timestamp(), Default: "NOW()"},
				{Name: "expires_at", Type: Timestamp(), Nullable: true},
			}, Timestamps(), []Column{DeletedAt()}),
			Indexes: []Index{
				{Name: "idx_prescriptions_patient", Table: TablePrescriptions, Columns: []string{"patient_id"}},
			},
			Checks: []Check{
				{Name: "chk_prescriptions_refills", Expr: "refill_count >= 0 AND refill_count <= max_refills"},
			},
		},
		{
			Name: TablePrescriptionMedications,
			Columns: []Column{
				ID(),
				Ref("prescription_id", TablePrescriptions, Cascade, false),
				Ref("medication_id", TableMedications, Restrict, false),
				{Name: "quantity", Type: Integer()},
				{Name: "dosage", Type: String(100)},
				{Name: "frequency", Type: String(100)},
				{Name: "duration", Type: String(100), Nullable: true},
				{Name: "instructions", Type: Text(), Nullable: true},
				{Name: "created_at", Type: Timestamp(), Default: "NOW()"},
			},
			Indexes: []Index{
				{Name: "idx_prescription_medications_line", Table: TablePrescriptionMedications,
					Columns: []string{"prescription_id", "medication_id"}, Unique: true},
			},
			Checks: []Check{
				{Name: "chk_prescription_medications_quantity", Expr: "quantity > 0"},
			},
		},
		{
			Name: TableLabTestTemplates,
			Columns: concat([]Column{
				ID(),
				{Name: "name", Type: String(255), Unique: true},
				enumCol("category", EnumLabCategory, false, ""),
				{Name: "description", Type: Text(), Nullable: true},
				{Name: "parameters", Type: JSON(), Default: "'[]'"},
				{Name: "price", Type: Decimal(10, 2), Default: "0"},
				{Name: "turnaround_hours", Type: Integer(), Default: "24"},
				{Name: "active", Type: Boolean(), Default: "TRUE"},
			}, Timestamps()),
		},
		{
			Name: TableTestResults,
			Columns: concat([]Column{
				ID(),
				Ref("patient_id", TablePatients, Restrict, false),
				Ref("doctor_id", TableDoctors, Restrict, false),
				Ref("template_id", TableLabTestTemplates, Restrict, true),
				{Name: "result", Type: Text()},
				{Name: "parameter_values", Type: JSON(), Default: "'[]'"},
				enumCol("status", EnumTestResultStatus, false, "'pending'"),
				{Name: "is_abnormal", Type: Boolean(), Default: "FALSE"},
				{Name: "notes", Type: Text(), Nullable: true},
				Ref("performed_by", TableUsers, Restrict, true),
				{Name: "result_date", Type: Timestamp(), Nullable: true},
			}, Timestamps()),
			Indexes: []Index{
				{Name: "idx_test_results_patient", Table: TableTestResults, Columns: []string{"patient_id"}},
			},
		},
		{
			Name: TableInventoryItems,
			Columns: concat([]Column{
				ID(),
				{Name: "item_code", Type: String(50), Unique: true},
				{Name: "name", Type: String(255)},
				{Name: "category", Type: String(100), Nullable: true},
				Ref("medication_id", TableMedications, SetNull, true),
				{Name: "quantity", Type: Integer(), Default: "0"},
				{Name: "minimum_level", Type: Integer(), Default: "0"},
				{Name: "unit", Type: String(30), Nullable: true},
				{Name: "unit_price", Type: Decimal(10, 2), Default: "0"},
				enumCol("status", EnumInventoryStatus, false, "'out-of-stock'"),
				{Name: "supplier", Type: String(255), Nullable: true},
				{Name: "expiry_date", Type: Timestamp(), Nullable: true},
				{Name: "last_restocked_at", Type: Timestamp(), Nullable: true},
			}, Timestamps()),
			Indexes: []Index{
				{Name: "idx_inventory_items_status", Table: TableInventoryItems, Columns: []string{"status"}},
			},
			Checks: []Check{
				{Name: "chk_inventory_items_levels", Expr: "quantity >= 0 AND minimum_level >= 0"},
			},
		},
		{
			Name: TableBills,
			Columns: concat([]Column{
				ID(),
				{Name: "bill_number", Type: String(50), Unique: true},
				Ref("patient_id", TablePatients, Restrict, false),
				Ref("appointment_id", TableAppointments, SetNull, true),
				{Name: "items", Type: JSON(), Default: "'[]'"},
				{Name: "total_amount", Type: Decimal(12, 2)},
				{Name: "tax", Type: Decimal(12, 2), Default: "0"},
				{Name: "discount", Type: Decimal(12, 2), Default: "0"},
				{Name: "final_amount", Type: Decimal(12, 2)},
				enumCol("status", EnumBillStatus, false, "'pending'"),
				enumCol("payment_method", EnumPaymentMethod, true, ""),
				{Name: "paid_at", Type: Timestamp(), Nullable: true},
				{Name: "due_date", Type: Timestamp(), Nullable: true},
				Ref("created_by", TableUsers, Restrict, true),
				{Name: "notes", Type: Text(), Nullable: true},
			}, Timestamps()),
			Indexes: []Index{
				{Name: "idx_bills_patient", Table: TableBills, Columns: []string{"patient_id"}},
			},
			Checks: []Check{
				{Name: "chk_bills_amounts_nonneg", Expr: "total_amount >= 0 AND tax >= 0 AND discount >= 0"},
				{Name: "chk_bills_final_amount", Expr: "final_amount = total_amount - discount + tax"},
			},
		},
		{
			Name: TableAuditLogs,
			Columns: []Column{
				ID(),
				{Name: "user_id", Type: UUID(), Nullable: true},
				{Name: "entity_type", Type: String(50)},
				{Name: "entity_id", Type: UUID()},
				{Name: "action", Type: String(20)},
				{Name: "changes", Type: JSON(), Nullable: true},
				{Name: "created_at", Type: Timestamp(), Default: "NOW()"},
			},
			Indexes: []Index{
				{Name: "idx_audit_logs_entity", Table: TableAuditLogs, Columns: []string{"entity_type", "entity_id"}},
			},
		},
		{
			Name: TableOutboxEvents,
			Columns: []Column{
				ID(),
				{Name: "event_type", Type: String(100)},
				{Name: "aggregate_id", Type: UUID()},
				{Name: "payload", Type: JSON()},
				enumCol("status", EnumOutboxStatus, false, "'PENDING'"),
				{Name: "error_message", Type: Text(), Nullable: true},
				{Name: "retry_count", Type: Integer(), Default: "0"},
				{Name: "created_at", Type: Timestamp(), Default: "NOW()"},
				{Name: "processed_at", Type: Timestamp(), Nullable: true},
			},
			Indexes: []Index{
				{Name: "idx_outbox_events_pending", Table: TableOutboxEvents, Columns: []string{"created_at"}, Where: "status = 'PENDING'"},
			},
		},
		{
			Name: TableOmaeraMedications,
			Columns: concat([]Column{
				ID(),
				{Name: "item_code", Type: String(50), Unique: true},
				{Name: "name", Type: String(255)},
				{Name: "original_price", Type: Decimal(10, 2)},
				{Name: "current_price", Type: Decimal(10, 2)},
				Ref("last_updated_by", TableUsers, Restrict, false),
			}, Timestamps()),
			Checks: []Check{
				{Name: "chk_omaera_medications_prices", Expr: "original_price >= 0 AND current_price >= 0"},
			},
		},
	}
}

func withUnique(c Column) Column {
	c.Unique = true
	return c
}
