package tabular

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tealeg/xlsx/v2"
)

func TestAllowedExtension(t *testing.T) {
	assert.True(t, AllowedExtension("families.csv"))
	assert.True(t, AllowedExtension("Families.CSV"))
	assert.True(t, AllowedExtension("roster.xlsx"))
	assert.False(t, AllowedExtension("roster.xls"))
	assert.False(t, AllowedExtension("notes.txt"))
	assert.False(t, AllowedExtension("noext"))
}

func TestReadCSV(t *testing.T) {
	in := "Smith,\"123 Main St\",,Dallas,TX,75001,42\nJones,456 Oak Ave,Apt 2,Plano,TX\n"

	rows, err := ReadCSV(strings.NewReader(in))
	require.NoError(t, err)
	require.Len(t, rows, 2)
	assert.Equal(t, []string{"Smith", "123 Main St", "", "Dallas", "TX", "75001", "42"}, rows[0])
	// Variable field counts are tolerated.
	assert.Len(t, rows[1], 5)
}

func TestReadCSVEmpty(t *testing.T) {
	rows, err := ReadCSV(strings.NewReader(""))
	require.NoError(t, err)
	assert.Empty(t, rows)
}

func TestReadFileCSV(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "upload.csv")
	require.NoError(t, os.WriteFile(path, []byte("a,b,c\n1,2,3\n"), 0644))

	rows, err := ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, [][]string{{"a", "b", "c"}, {"1", "2", "3"}}, rows)
}

func TestReadFileUnsupported(t *testing.T) {
	_, err := ReadFile("upload.txt")
	assert.Error(t, err)
}

func TestReadXLSX(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "upload.xlsx")

	f := xlsx.NewFile()
	sheet, err := f.AddSheet("Sheet1")
	require.NoError(t, err)
	for _, vals := range [][]string{
		{"Family Name", "Address", "City", "State", "Zip", "PeopleID"},
		{"Smith", "123 Main St", "Dallas", "TX", "75001", "42"},
	} {
		row := sheet.AddRow()
		for _, v := range vals {
			row.AddCell().SetString(v)
		}
	}
	require.NoError(t, f.Save(path))

	rows, err := ReadFile(path)
	require.NoError(t, err)
	require.Len(t, rows, 2)
	assert.Equal(t, "Smith", rows[1][0])
	assert.Equal(t, "75001", rows[1][4])
}
