// Package tabular parses uploaded CSV and XLSX files into raw string rows
// for column inference. Datasets are small, so files are read whole.
package tabular

import (
	"encoding/csv"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/rotisserie/eris"
	"github.com/tealeg/xlsx/v2"
)

// AllowedExtension reports whether the filename has a supported upload
// extension.
func AllowedExtension(filename string) bool {
	switch strings.ToLower(filepath.Ext(filename)) {
	case ".csv", ".xlsx":
		return true
	default:
		return false
	}
}

// ReadFile parses a tabular file by extension.
func ReadFile(path string) ([][]string, error) {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".csv":
		f, err := os.Open(path)
		if err != nil {
			return nil, eris.Wrap(err, "tabular: open csv")
		}
		defer f.Close() //nolint:errcheck
		return ReadCSV(f)
	case ".xlsx":
		return ReadXLSX(path)
	default:
		return nil, eris.Errorf("tabular: unsupported file type %q", filepath.Ext(path))
	}
}

// ReadCSV reads all CSV rows, tolerating variable field counts and lazy
// quoting typical of hand-exported files.
func ReadCSV(r io.Reader) ([][]string, error) {
	reader := csv.NewReader(r)
	reader.FieldsPerRecord = -1 // allow variable fields
	reader.LazyQuotes = true

	var rows [][]string
	for {
		record, err := reader.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, eris.Wrap(err, "tabular: read csv row")
		}
		rows = append(rows, record)
	}
	return rows, nil
}

// ReadXLSX reads all rows of the first sheet of an XLSX file.
func ReadXLSX(path string) ([][]string, error) {
	f, err := xlsx.OpenFile(path)
	if err != nil {
		return nil, eris.Wrap(err, "tabular: open xlsx")
	}
	if len(f.Sheets) == 0 {
		return nil, eris.New("tabular: xlsx file has no sheets")
	}

	sheet := f.Sheets[0]
	rows := make([][]string, 0, len(sheet.Rows))
	for _, row := range sheet.Rows {
		cells := make([]string, len(row.Cells))
		for j, cell := range row.Cells {
			cells[j] = cell.String()
		}
		rows = append(rows, cells)
	}
	return rows, nil
}
