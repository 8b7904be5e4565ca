package postgres

import (
	"testing"

	"github.com/google/uuid"
	"github.com/lib/pq"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jwalitptl/hospital-core/internal/model"
)

func TestClone_SharesNothingMutable(t *testing.T) {
	notes := "follow up in two weeks"
	src := &model.MedicalRecord{
		PatientID: uuid.New(),
		Diagnosis: "Influenza",
		Symptoms:  pq.StringArray{"cough", "fever"},
		Notes:     &notes,
	}
	src.ID = uuid.New()

	cp := clone(src)
	require.Equal(t, src, cp)

	cp.Symptoms[0] = "sore throat"
	*cp.Notes = "discharged"
	cp.Diagnosis = "Common cold"

	assert.Equal(t, pq.StringArray{"cough", "fever"}, src.Symptoms)
	assert.Equal(t, "follow up in two weeks", *src.Notes)
	assert.Equal(t, "Influenza", src.Diagnosis)
}

func TestClone_CopiesMapsAndKeepsNils(t *testing.T) {
	src := &model.AuditLog{Changes: model.JSONMap{"status": map[string]interface{}{"from": "draft", "to": "final"}}}

	cp := clone(src)
	cp.Changes["status"].(map[string]interface{})["to"] = "draft"
	cp.Changes["diagnosis"] = "edited"

	assert.Equal(t, "final", src.Changes["status"].(map[string]interface{})["to"])
	assert.NotContains(t, src.Changes, "diagnosis")
	assert.Nil(t, clone(&model.MedicalRecord{}).Symptoms)
}
