package dataset

import (
	"github.com/jszwec/csvutil"
	"github.com/rotisserie/eris"

	"github.com/hpumc/family-mapper/internal/model"
	"github.com/hpumc/family-mapper/internal/spatial"
)

// SelectWithin returns the records within radiusMeters of the center,
// by great-circle distance. A linear scan: datasets are small.
func SelectWithin(records []model.GeocodeResult, centerLat, centerLon, radiusMeters float64) []model.GeocodeResult {
	selected := make([]model.GeocodeResult, 0, len(records))
	for _, rec := range records {
		if !rec.HasCoords() {
			continue
		}
		d := spatial.HaversineDistance(centerLat, centerLon, *rec.Latitude, *rec.Longitude)
		if d <= radiusMeters {
			selected = append(selected, rec)
		}
	}
	return selected
}

// exportRow is the selection-export presentation: relabeled name column
// plus a profile link.
type exportRow struct {
	Name         string  `csv:"Name"`
	Address      string  `csv:"Address"`
	City         string  `csv:"City"`
	State        string  `csv:"State"`
	Zip          string  `csv:"Zip"`
	PeopleID     string  `csv:"PeopleID"`
	Latitude     float64 `csv:"Latitude"`
	Longitude    float64 `csv:"Longitude"`
	PeopleIDLink string  `csv:"PeopleID Link"`
}

type exportRowNoLink struct {
	Name      string  `csv:"Name"`
	Address   string  `csv:"Address"`
	City      string  `csv:"City"`
	State     string  `csv:"State"`
	Zip       string  `csv:"Zip"`
	PeopleID  string  `csv:"PeopleID"`
	Latitude  float64 `csv:"Latitude"`
	Longitude float64 `csv:"Longitude"`
}

// MarshalExport renders selected records as a CSV attachment body.
func MarshalExport(records []model.GeocodeResult, linkBase string) ([]byte, error) {
	var data []byte
	var err error

	if linkBase == "" {
		rows := make([]exportRowNoLink, len(records))
		for i, r := range records {
			rows[i] = exportRowNoLink{
				Name: r.Name, Address: r.Address, City: r.City, State: r.State,
				Zip: r.Zip, PeopleID: r.PeopleID,
				Latitude: *r.Latitude, Longitude: *r.Longitude,
			}
		}
		data, err = csvutil.Marshal(rows)
	} else {
		rows := make([]exportRow, len(records))
		for i, r := range records {
			rows[i] = exportRow{
				Name: r.Name, Address: r.Address, City: r.City, State: r.State,
				Zip: r.Zip, PeopleID: r.PeopleID,
				Latitude: *r.Latitude, Longitude: *r.Longitude,
				PeopleIDLink: model.PersonLink(linkBase, r.PeopleID),
			}
		}
		data, err = csvutil.Marshal(rows)
	}
	if err != nil {
		return nil, eris.Wrap(err, "dataset: marshal export")
	}
	return data, nil
}
