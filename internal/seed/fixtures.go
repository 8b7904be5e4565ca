package seed

import (
	"context"

	"github.com/shopspring/decimal"

	"github.com/jwalitptl/hospital-core/internal/model"
)

const (
	kindDepartment = "department"
	kindUser       = "user"
	kindDoctor     = "doctor"
	kindPatient    = "patient"
	kindTemplate   = "lab_test_template"
	kindMedication = "medication"
	kindInventory  = "inventory_item"
)

var weekdays = []string{"monday", "tuesday", "wednesday", "thursday", "friday"}

func officeHours() model.OpeningHours {
	h := model.OpeningHours{}
	for _, d := range weekdays {
		h[d] = "08:00-18:00"
	}
	return h
}

func (s *Seeder) departments(ctx context.Context) error {
	for _, d := range []struct{ name, location string }{
		{"General Medicine", "Block A, Ground Floor"},
		{"Cardiology", "Block B, First Floor"},
		{"Pediatrics", "Block A, Second Floor"},
		{"Laboratory", "Block C, Basement"},
		{"Pharmacy", "Block A, Ground Floor"},
	} {
		dept := &model.Department{
			Base:         model.Base{ID: ID(kindDepartment, d.name)},
			Name:         d.name,
			Location:     str(d.location),
			OpeningHours: officeHours(),
			Status:       model.DepartmentStatusActive,
		}
		if err := s.put(kindDepartment, d.name, func() error { return s.repos.Departments.Create(ctx, dept) }); err != nil {
			return err
		}
	}
	return nil
}

type account struct {
	email, first, last string
	role               model.Role
}

var accounts = []account{
	{"admin@hospital.local", "System", "Admin", model.RoleAdmin},
	{"doctor@hospital.local", "Meera", "Iyer", model.RoleDoctor},
	{"patient@hospital.local", "Arjun", "Shah", model.RolePatient},
	{"pharmacist@hospital.local", "Lena", "Fischer", model.RolePharmacist},
}

func (s *Seeder) users(ctx context.Context) error {
	for _, a := range accounts {
		u := &model.User{
			Base:      model.Base{ID: ID(kindUser, a.email)},
			Email:     a.email,
			FirstName: a.first,
			LastName:  a.last,
			Role:      a.role,
			Active:    true,
		}
		if err := u.SetPassword(s.hasher, s.password); err != nil {
			return err
		}
		if err := s.put(kindUser, a.email, func() error { return s.repos.Users.Create(ctx, u) }); err != nil {
			return err
		}
	}
	return nil
}

func (s *Seeder) doctors(ctx context.Context) error {
	dept := ID(kindDepartment, "Cardiology")
	slots := make(model.Availability, 0, len(weekdays))
	for _, d := range weekdays {
		slots = append(slots, model.AvailabilitySlot{Day: d, Start: "09:00", End: "13:00"})
	}
	doc := &model.Doctor{
		Base:            model.Base{ID: ID(kindDoctor, "doctor@hospital.local")},
		UserID:          ID(kindUser, "doctor@hospital.local"),
		DepartmentID:    &dept,
		Specialization:  "Cardiology",
		LicenseNumber:   "MCI-2011-04512",
		Qualifications:  []string{"MBBS", "MD (Internal Medicine)", "DM (Cardiology)"},
		ExperienceYears: 12,
		ConsultationFee: decimal.RequireFromString("800.00"),
		Availability:    slots,
	}
	return s.put(kindDoctor, doc.LicenseNumber, func() error { return s.repos.Doctors.Create(ctx, doc) })
}

func (s *Seeder) patients(ctx context.Context) error {
	gender := model.GenderMale
	p := &model.Patient{
		Base:       model.Base{ID: ID(kindPatient, "patient@hospital.local")},
		UserID:     ID(kindUser, "patient@hospital.local"),
		Gender:     &gender,
		BloodGroup: str("O+"),
		Allergies:  []string{"penicillin"},
	}
	return s.put(kindPatient, "patient@hospital.local", func() error { return s.repos.Patients.Create(ctx, p) })
}

func numeric(name, unit, min, max string) model.TestParameter {
	lo, hi := decimal.RequireFromString(min), decimal.RequireFromString(max)
	return model.TestParameter{Name: name, Unit: unit, ValueType: model.ValueTypeNumeric, Min: &lo, Max: &hi}
}

func (s *Seeder) labTemplates(ctx context.Context) error {
	for _, t := range []model.LabTestTemplate{
		{
			Name:     "Complete Blood Count",
			Category: model.LabCategoryHematology,
			Parameters: model.TestParameters{
				numeric("Hemoglobin", "g/dL", "12.0", "17.5"),
				numeric("WBC", "10^3/uL", "4.0", "11.0"),
				numeric("Platelets", "10^3/uL", "150", "450"),
			},
			Price:           decimal.RequireFromString("350.00"),
			TurnaroundHours: 6,
			Active:          true,
		},
		{
			Name:     "Lipid Panel",
			Category: model.LabCategoryBiochemistry,
			Parameters: model.TestParameters{
				numeric("Total Cholesterol", "mg/dL", "0", "200"),
				numeric("LDL", "mg/dL", "0", "130"),
				numeric("HDL", "mg/dL", "40", "100"),
			},
			Price:           decimal.RequireFromString("600.00"),
			TurnaroundHours: 24,
			Active:          true,
		},
		{
			Name:     "Urine Culture",
			Category: model.LabCategoryMicrobiology,
			Parameters: model.TestParameters{
				{Name: "Growth", ValueType: model.ValueTypeBoolean, NormalValue: "false"},
				{Name: "Organism", ValueType: model.ValueTypeText, NormalValue: "none"},
			},
			Price:           decimal.RequireFromString("450.00"),
			TurnaroundHours: 48,
			Active:          true,
		},
	} {
		tmpl := t
		tmpl.ID = ID(kindTemplate, t.Name)
		if err := s.put(kindTemplate, t.Name, func() error { return s.repos.LabTestTemplates.Create(ctx, &tmpl) }); err != nil {
			return err
		}
	}
	return nil
}

type stocked struct {
	code, name, form, strength, price string
	rx                                bool
	quantity, minimum                 int
}

var formulary = []stocked{
	{"MED-001", "Paracetamol", "tablet", "500mg", "2.50", false, 500, 100},
	{"MED-002", "Amoxicillin", "capsule", "250mg", "6.75", true, 200, 50},
	{"MED-003", "Atorvastatin", "tablet", "20mg", "9.20", true, 40, 60},
	{"MED-004", "Salbutamol Inhaler", "inhaler", "100mcg", "145.00", true, 0, 10},
}

func (s *Seeder) medications(ctx context.Context) error {
	for _, m := range formulary {
		med := &model.Medication{
			Base:                 model.Base{ID: ID(kindMedication, m.code)},
			ItemCode:             m.code,
			Name:                 m.name,
			DosageForm:           str(m.form),
			Strength:             str(m.strength),
			UnitPrice:            decimal.RequireFromString(m.price),
			RequiresPrescription: m.rx,
		}
		if err := s.put(kindMedication, m.code, func() error { return s.repos.Medications.Create(ctx, med) }); err != nil {
			return err
		}
	}
	return nil
}

// inventory stocks every formulary entry; the status is derived on write.
func (s *Seeder) inventory(ctx context.Context) error {
	for _, m := range formulary {
		medID := ID(kindMedication, m.code)
		code := "INV-" + m.code
		item := &model.InventoryItem{
			Base:         model.Base{ID: ID(kindInventory, code)},
			ItemCode:     code,
			Name:         m.name + " " + m.strength,
			Category:     str("pharmacy"),
			MedicationID: &medID,
			Quantity:     m.quantity,
			MinimumLevel: m.minimum,
			Unit:         str(m.form),
			UnitPrice:    decimal.RequireFromString(m.price),
		}
		if err := s.put(kindInventory, code, func() error { return s.repos.Inventory.Create(ctx, item) }); err != nil {
			return err
		}
	}
	return nil
}
