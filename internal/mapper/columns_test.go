package mapper

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hpumc/family-mapper/internal/model"
)

func TestLooksLikeData(t *testing.T) {
	tests := []struct {
		name string
		row  []string
		want bool
	}{
		{"digit in cell", []string{"Smith", "123 Main St", "", "Dallas"}, true},
		{"multi-word cell", []string{"Family Name", "x", "y"}, true},
		{"state abbreviation", []string{"a", "b", "c", "d", "TX"}, true},
		{"plain headers", []string{"name", "address", "suite", "city", "state"}, false},
		{"signal beyond fifth cell ignored", []string{"a", "b", "c", "d", "e", "75001"}, false},
		{"empty row", []string{}, false},
		{"blank cells only", []string{" ", "", "  "}, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, LooksLikeData(tt.row))
		})
	}
}

func TestResolveHeaderless(t *testing.T) {
	rows := [][]string{
		{"Smith", "123 Main St", "", "Dallas", "TX", "75001", "42"},
		{"Jones", "456 Oak Ave", "Apt 2", "Plano", "TX", "75024-1234", "77"},
	}

	records, err := Resolve(rows)
	require.NoError(t, err)
	require.Len(t, records, 2)

	assert.Equal(t, model.AddressRecord{
		Name: "Smith", Address: "123 Main St", City: "Dallas",
		State: "TX", Zip: "75001", PeopleID: "42",
	}, records[0])
	// Zip truncated at hyphen, index 2 (suite) ignored.
	assert.Equal(t, "75024", records[1].Zip)
	assert.Equal(t, "Plano", records[1].City)
}

func TestResolveShortRows(t *testing.T) {
	rows := [][]string{
		{"Smith", "123 Main St", "", "Dallas", "TX"},
	}

	records, err := Resolve(rows)
	require.NoError(t, err)
	require.Len(t, records, 1)
	assert.Empty(t, records[0].Zip)
	assert.Empty(t, records[0].PeopleID)
}

func TestResolveExactCanonicalHeaders(t *testing.T) {
	rows := [][]string{
		{"Family Name", "Address", "City", "State", "Zip", "PeopleID"},
		{"Smith", "123 Main St", "Dallas", "TX", "75001", "42"},
	}

	records, err := Resolve(rows)
	require.NoError(t, err)
	require.Len(t, records, 1)
	assert.Equal(t, model.AddressRecord{
		Name: "Smith", Address: "123 Main St", City: "Dallas",
		State: "TX", Zip: "75001", PeopleID: "42",
	}, records[0])
}

func TestResolveKeywordHeaders(t *testing.T) {
	// Columns out of canonical order, matched by keyword.
	rows := [][]string{
		{"household", "street_address", "unit", "town_city", "state_code", "postal", "person_id"},
		{"Smith", "123 Main St", "B", "Dallas", "TX", "75001-9999", "42"},
	}

	records, err := Resolve(rows)
	require.NoError(t, err)
	require.Len(t, records, 1)

	rec := records[0]
	assert.Equal(t, "Smith", rec.Name)
	assert.Equal(t, "123 Main St", rec.Address)
	assert.Equal(t, "Dallas", rec.City)
	assert.Equal(t, "TX", rec.State)
	assert.Equal(t, "75001", rec.Zip)
	assert.Equal(t, "42", rec.PeopleID)
}

func TestInferColumnsExclusions(t *testing.T) {
	// "filename" must not claim the name field; "email_address" must not
	// claim the address field. Positions 0 and 1 still map them.
	idx := inferColumns([]string{"filename", "email_address", "x", "city", "state", "zip"})
	assert.Equal(t, 0, idx[fieldName])
	assert.Equal(t, 1, idx[fieldAddress])

	idx = inferColumns([]string{"a", "b", "filename", "c", "d", "e", "f", "email_address"})
	_, hasName := idx[fieldName]
	_, hasAddr := idx[fieldAddress]
	assert.Equal(t, 0, idx[fieldName])
	assert.Equal(t, 1, idx[fieldAddress])
	assert.True(t, hasName)
	assert.True(t, hasAddr)
}

func TestResolveMalformedHeadersFallsBackToPositional(t *testing.T) {
	// Headers with fewer than four recognizable fields: positional mapping
	// applies to the data rows.
	rows := [][]string{
		{"alpha", "beta"},
		{"Smith", "123 Main St", "", "Dallas", "TX", "75001", "42"},
	}

	records, err := Resolve(rows)
	require.NoError(t, err)
	require.Len(t, records, 1)
	assert.Equal(t, "Dallas", records[0].City)
	assert.Equal(t, "42", records[0].PeopleID)
}

func TestResolveFiltersInvalidRows(t *testing.T) {
	rows := make([][]string, 0, 10)
	for i := 0; i < 8; i++ {
		rows = append(rows, []string{"Smith", "123 Main St", "", "Dallas", "TX", "75001", "1"})
	}
	rows = append(rows, []string{"NoCity", "123 Main St", "", "   ", "TX", "75001", "2"})
	rows = append(rows, []string{"NoAddress", "", "", "Dallas", "TX", "75001", "3"})

	records, err := Resolve(rows)
	require.NoError(t, err)
	assert.Len(t, records, 8)
}

func TestResolveNoValidAddresses(t *testing.T) {
	rows := [][]string{
		{"Smith1", "", "", "Dallas", "TX", "75001", "42"},
		{"Smith2", "123 Main St", "", "", "TX", "75001", "42"},
	}

	_, err := Resolve(rows)
	assert.ErrorIs(t, err, ErrNoValidAddresses)
}

func TestResolveEmptyInput(t *testing.T) {
	_, err := Resolve(nil)
	assert.ErrorIs(t, err, ErrEmptyInput)
}
