package schema

import (
	"fmt"
	"sort"
	"strings"
)

// Member is one value of a vocabulary. Since is the schema version that
// introduced it; DeprecatedIn, when non-zero, is the version from which new
// writes must stop using it. Deprecated members stay storable until a later
// step removes them.
type Member struct {
	Value        string
	Since        int
	DeprecatedIn int
}

// Enum is a closed, versioned vocabulary.
type Enum struct {
	Name    string
	Members []Member
}

// ValuesAt returns the storage vocabulary at schema version v.
func (e Enum) ValuesAt(v int) []string {
	var out []string
	for _, m := range e.Members {
		if m.Since <= v {
			out = append(out, m.Value)
		}
	}
	return out
}

// StorageValues returns every value the store must still accept.
func (e Enum) StorageValues() []string {
	out := make([]string, 0, len(e.Members))
	for _, m := range e.Members {
		out = append(out, m.Value)
	}
	return out
}

// Accepts reports whether v may be used in a new write.
func (e Enum) Accepts(v string) bool {
	for _, m := range e.Members {
		if m.Value == v {
			return m.DeprecatedIn == 0
		}
	}
	return false
}

// IsDeprecated reports whether v has been through a deprecation step.
func (e Enum) IsDeprecated(v string) bool {
	for _, m := range e.Members {
		if m.Value == v {
			return m.DeprecatedIn != 0
		}
	}
	return false
}

// CheckEvolution enforces the additive-only rule between two storage
// vocabularies of the same enum: a member may only disappear when it has
// already been deprecated.
func CheckEvolution(name string, from, to []string, deprecated func(string) bool) error {
	next := make(map[string]struct{}, len(to))
	for _, v := range to {
		next[v] = struct{}{}
	}
	var removed []string
	for _, v := range from {
		if _, ok := next[v]; ok {
			continue
		}
		if deprecated == nil || !deprecated(v) {
			removed = append(removed, v)
		}
	}
	if len(removed) > 0 {
		sort.Strings(removed)
		return fmt.Errorf("enum %s: removing %s requires a prior deprecation step", name, strings.Join(removed, ", "))
	}
	return nil
}

const (
	EnumUserRole           = "user_role"
	EnumGender             = "gender"
	EnumAppointmentType    = "appointment_type"
	EnumAppointmentStatus  = "appointment_status"
	EnumRecordStatus       = "record_status"
	EnumPrescriptionStatus = "prescription_status"
	EnumLabCategory        = "lab_category"
	EnumParameterValueType = "parameter_value_type"
	EnumTestResultStatus   = "test_result_status"
	EnumInventoryStatus    = "inventory_status"
	EnumBillStatus         = "bill_status"
	EnumPaymentMethod      = "payment_method"
	EnumDepartmentStatus   = "department_status"
	EnumOutboxStatus       = "outbox_status"
)

func members(since int, values ...string) []Member {
	out := make([]Member, len(values))
	for i, v := range values {
		out[i] = Member{Value: v, Since: since}
	}
	return out
}

func enums() []Enum {
	return []Enum{
		{Name: EnumUserRole, Members: append(
			members(1, "patient", "doctor", "admin", "staff"),
			members(2, "nurse", "receptionist", "lab-technician", "pharmacist")...)},
		{Name: EnumGender, Members: members(1, "male", "female", "other")},
		{Name: EnumAppointmentType, Members: members(1, "in-person", "telehealth")},
		{Name: EnumAppointmentStatus, Members: members(1, "scheduled", "completed", "cancelled", "no-show")},
		{Name: EnumRecordStatus, Members: members(1, "draft", "final")},
		{Name: EnumPrescriptionStatus, Members: members(1, "active", "completed", "cancelled")},
		{Name: EnumLabCategory, Members: append(
			members(1, "hematology", "biochemistry", "microbiology", "immunology", "pathology", "radiology"),
			members(2, "cardiology")...)},
		{Name: EnumParameterValueType, Members: members(1, "numeric", "text", "boolean")},
		{Name: EnumTestResultStatus, Members: members(1, "pending", "in-progress", "completed", "cancelled")},
		{Name: EnumInventoryStatus, Members: members(1, "in-stock", "low-stock", "out-of-stock")},
		{Name: EnumBillStatus, Members: members(1, "pending", "partially-paid", "paid", "cancelled", "refunded")},
		{Name: EnumPaymentMethod, Members: members(1, "cash", "card", "insurance", "online")},
		{Name: EnumDepartmentStatus, Members: members(1, "active", "inactive")},
		{Name: EnumOutboxStatus, Members: members(1, "PENDING", "PROCESSED", "FAILED")},
	}
}
