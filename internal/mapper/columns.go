// Package mapper infers the canonical address schema from arbitrary tabular
// uploads and normalizes rows for geocoding. All functions are pure.
package mapper

import (
	"strings"
	"unicode"

	"github.com/rotisserie/eris"

	"github.com/hpumc/family-mapper/internal/model"
)

// Canonical field keys used during column inference.
const (
	fieldName     = "Family Name"
	fieldAddress  = "Address"
	fieldCity     = "City"
	fieldState    = "State"
	fieldZip      = "Zip"
	fieldPeopleID = "PeopleID"
)

var canonicalFields = []string{fieldName, fieldAddress, fieldCity, fieldState, fieldZip, fieldPeopleID}

// ErrEmptyInput indicates the upload contained no rows at all.
var ErrEmptyInput = eris.New("mapper: input has no rows")

// ErrNoValidAddresses indicates no row survived validation (non-empty
// address, city, and state).
var ErrNoValidAddresses = eris.New("mapper: no valid addresses in input")

// stateHints are two-letter values that mark a first row as data rather
// than headers.
var stateHints = map[string]struct{}{
	"tx": {}, "ca": {}, "ny": {}, "fl": {},
}

// LooksLikeData reports whether a row reads as data instead of headers.
// It scans the first five cells for a digit, a multi-word value, or a known
// state abbreviation.
func LooksLikeData(row []string) bool {
	limit := min(len(row), 5)
	for _, cell := range row[:limit] {
		v := strings.TrimSpace(cell)
		if v == "" {
			continue
		}
		if strings.ContainsFunc(v, unicode.IsDigit) {
			return true
		}
		if len(strings.Fields(v)) > 1 {
			return true
		}
		if _, ok := stateHints[strings.ToLower(v)]; ok {
			return true
		}
	}
	return false
}

// Resolve maps raw tabular rows onto canonical AddressRecords, dropping
// rows whose address, city, or state is empty after trimming. Zip codes are
// truncated at the first hyphen.
func Resolve(rows [][]string) ([]model.AddressRecord, error) {
	if len(rows) == 0 {
		return nil, ErrEmptyInput
	}

	var records []model.AddressRecord
	header := rows[0]
	switch {
	case hasCanonicalColumns(header):
		// An exact canonical header wins even when it would otherwise read
		// as data ("Family Name" is multi-word).
		idx := exactIndex(header)
		for _, row := range rows[1:] {
			records = append(records, fromIndex(row, idx))
		}
	case LooksLikeData(header):
		for _, row := range rows {
			records = append(records, positional(row))
		}
	default:
		idx := inferColumns(header)
		if len(idx) >= 4 {
			for _, row := range rows[1:] {
				records = append(records, fromIndex(row, idx))
			}
		} else {
			// Malformed headers: fall back to positions.
			for _, row := range rows[1:] {
				records = append(records, positional(row))
			}
		}
	}

	valid := make([]model.AddressRecord, 0, len(records))
	for _, rec := range records {
		if strings.TrimSpace(rec.Address) == "" ||
			strings.TrimSpace(rec.City) == "" ||
			strings.TrimSpace(rec.State) == "" {
			continue
		}
		rec.Zip = CleanZip(rec.Zip)
		valid = append(valid, rec)
	}
	if len(valid) == 0 {
		return nil, ErrNoValidAddresses
	}
	return valid, nil
}

// positional maps a row by fixed positions. Index 2 is skipped: the typical
// export carries a suite/unit field there with no geocoding value.
func positional(row []string) model.AddressRecord {
	at := func(i int) string {
		if i < len(row) {
			return row[i]
		}
		return ""
	}
	return model.AddressRecord{
		Name:     at(0),
		Address:  at(1),
		City:     at(3),
		State:    at(4),
		Zip:      at(5),
		PeopleID: at(6),
	}
}

// hasCanonicalColumns reports whether every canonical column name appears in
// the header verbatim.
func hasCanonicalColumns(header []string) bool {
	present := make(map[string]struct{}, len(header))
	for _, col := range header {
		present[strings.TrimSpace(col)] = struct{}{}
	}
	for _, field := range canonicalFields {
		if _, ok := present[field]; !ok {
			return false
		}
	}
	return true
}

// exactIndex maps canonical fields to their verbatim header positions.
func exactIndex(header []string) map[string]int {
	idx := make(map[string]int, len(canonicalFields))
	for i, col := range header {
		name := strings.TrimSpace(col)
		for _, field := range canonicalFields {
			if name == field {
				idx[field] = i
			}
		}
	}
	return idx
}

// inferColumns assigns each header column to at most one canonical field by
// position or keyword. A later column claiming the same field wins.
func inferColumns(header []string) map[string]int {
	idx := make(map[string]int)
	for i, col := range header {
		lower := strings.ToLower(strings.TrimSpace(col))
		switch {
		case i == 0 || strings.Contains(lower, "family") ||
			(strings.Contains(lower, "name") && !strings.Contains(lower, "file")):
			idx[fieldName] = i
		case i == 1 || (strings.Contains(lower, "address") && !strings.Contains(lower, "email")):
			idx[fieldAddress] = i
		case i == 3 || strings.Contains(lower, "city"):
			idx[fieldCity] = i
		case i == 4 || strings.Contains(lower, "state"):
			idx[fieldState] = i
		case i == 5 || strings.Contains(lower, "zip") || strings.Contains(lower, "postal"):
			idx[fieldZip] = i
		case i == 6 || strings.Contains(lower, "people") || strings.Contains(lower, "id"):
			idx[fieldPeopleID] = i
		}
	}
	return idx
}

// fromIndex builds a record from a resolved field-to-column index. Fields
// without a mapped column, or mapped beyond the row's width, are empty.
func fromIndex(row []string, idx map[string]int) model.AddressRecord {
	at := func(field string) string {
		i, ok := idx[field]
		if !ok || i >= len(row) {
			return ""
		}
		return row[i]
	}
	return model.AddressRecord{
		Name:     at(fieldName),
		Address:  at(fieldAddress),
		City:     at(fieldCity),
		State:    at(fieldState),
		Zip:      at(fieldZip),
		PeopleID: at(fieldPeopleID),
	}
}
