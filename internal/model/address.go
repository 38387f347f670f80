// Package model defines the canonical address record shapes shared by the
// mapper, the geocoding job, and the dataset store.
package model

import "strings"

// AddressRecord is one input row normalized to the canonical six-field
// schema. Empty string stands for "absent"; fields are never null.
type AddressRecord struct {
	Name     string `csv:"Family Name" json:"name"`
	Address  string `csv:"Address" json:"address"`
	City     string `csv:"City" json:"city"`
	State    string `csv:"State" json:"state"`
	Zip      string `csv:"Zip" json:"zip"`
	PeopleID string `csv:"PeopleID" json:"people_id"`
}

// GeocodeResult is an AddressRecord plus the geocoder outcome. Latitude and
// Longitude are both set or both nil, never one without the other.
type GeocodeResult struct {
	AddressRecord
	Latitude    *float64 `csv:"Latitude" json:"latitude"`
	Longitude   *float64 `csv:"Longitude" json:"longitude"`
	FullAddress string   `csv:"Full_Address" json:"full_address"`
}

// HasCoords reports whether the record carries a usable coordinate pair.
func (r GeocodeResult) HasCoords() bool {
	return r.Latitude != nil && r.Longitude != nil
}

// FailedAddress is an AddressRecord that did not geocode, with the query
// that was attempted and why it failed.
type FailedAddress struct {
	AddressRecord
	FullAddress   string `csv:"Full_Address" json:"full_address"`
	FailureReason string `csv:"Failure_Reason" json:"failure_reason"`
}

// PersonLink builds a clickable profile link for an external person id.
// Returns empty when the base or the id is empty.
func PersonLink(base, peopleID string) string {
	id := strings.TrimSpace(peopleID)
	if base == "" || id == "" {
		return ""
	}
	return base + id
}
