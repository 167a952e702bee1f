package sources

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ternarybob/scribo/internal/models"
)

func TestDeriveVariablesSingleRow(t *testing.T) {
	result := &models.DataSourceResult{
		Source: "expenses_summary",
		Payload: map[string]interface{}{
			"invoice_count": 4,
			"total_net":     15040.65,
			"total_gross":   18500.0,
			"vendor_name":   "Helion SA",
		},
	}
	deriveVariables(result)

	require.NotNil(t, result.Variables)
	assert.Equal(t, 18500.0, result.Variables["total_gross"])
	assert.Equal(t, 15040.65, result.Variables["total_net"])
	_, hasCount := result.Variables["invoice_count"]
	assert.False(t, hasCount, "only recognised scalar keys are promoted")
	_, hasVendor := result.Variables["vendor_name"]
	assert.False(t, hasVendor)
}

func TestDeriveVariablesNexusRow(t *testing.T) {
	result := &models.DataSourceResult{
		Source: "nexus_calculation",
		Payload: map[string]interface{}{
			"a": 30000.0, "b": 5000.0, "c": 0.0, "d": 0.0,
			"nexus": 1.0,
		},
	}
	deriveVariables(result)
	require.NotNil(t, result.Variables)
	assert.Equal(t, 1.0, result.Variables["nexus"])
}

func TestDeriveVariablesMultiRowSums(t *testing.T) {
	result := &models.DataSourceResult{
		Source: "timesheet_summary",
		Payload: []map[string]interface{}{
			{"worker": "Jan Kowalski", "hours": 160.0},
			{"worker": "Anna Nowak", "hours": 152.5},
			{"worker": "Piotr Wiśniewski", "hours": 40.0},
		},
	}
	deriveVariables(result)

	require.NotNil(t, result.Variables)
	assert.InDelta(t, 352.5, result.Variables["sum_hours"], 0.001)
	assert.Equal(t, 3, result.Variables["count_hours"])
	_, hasGross := result.Variables["sum_gross_amount"]
	assert.False(t, hasGross, "fields absent from every row derive nothing")
}

func TestDeriveVariablesMixedNumericKinds(t *testing.T) {
	// pgx can yield int64 for ::int casts alongside float64 columns
	result := &models.DataSourceResult{
		Payload: []map[string]interface{}{
			{"gross_amount": int64(1230)},
			{"gross_amount": 4500.0},
		},
	}
	deriveVariables(result)
	require.NotNil(t, result.Variables)
	assert.InDelta(t, 5730.0, result.Variables["sum_gross_amount"], 0.001)
	assert.Equal(t, 2, result.Variables["count_gross_amount"])
}

func TestDeriveVariablesScalarPayload(t *testing.T) {
	result := &models.DataSourceResult{Payload: "# Ulga B+R\n\ntekst"}
	deriveVariables(result)
	assert.Nil(t, result.Variables)
}

func TestDeriveVariablesNilValuesSkipped(t *testing.T) {
	result := &models.DataSourceResult{
		Payload: map[string]interface{}{"total_gross": nil, "nexus": 0.87},
	}
	deriveVariables(result)
	require.NotNil(t, result.Variables)
	_, hasGross := result.Variables["total_gross"]
	assert.False(t, hasGross)
	assert.Equal(t, 0.87, result.Variables["nexus"])
}
