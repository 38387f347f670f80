package mapper

import (
	"strings"

	"github.com/hpumc/family-mapper/internal/model"
)

// FullAddress builds the geocoder query for a record by joining the
// non-empty trimmed address, city, state, and zip with ", ".
func FullAddress(rec model.AddressRecord) string {
	parts := []string{rec.Address, rec.City, rec.State, rec.Zip}
	nonEmpty := make([]string, 0, len(parts))
	for _, p := range parts {
		p = strings.TrimSpace(p)
		if p != "" {
			nonEmpty = append(nonEmpty, p)
		}
	}
	return strings.Join(nonEmpty, ", ")
}

// CleanZip keeps only the leading ZIP5-like segment, truncating at the
// first hyphen. Idempotent.
func CleanZip(zip string) string {
	z := strings.TrimSpace(zip)
	if i := strings.IndexByte(z, '-'); i >= 0 {
		return z[:i]
	}
	return z
}
