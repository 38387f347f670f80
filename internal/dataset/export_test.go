package dataset

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hpumc/family-mapper/internal/model"
)

func located(name string, lat, lon float64) model.GeocodeResult {
	return model.GeocodeResult{
		AddressRecord: model.AddressRecord{Name: name, PeopleID: "42"},
		Latitude:      &lat,
		Longitude:     &lon,
	}
}

func TestSelectWithin(t *testing.T) {
	downtown := located("Downtown", 32.7767, -96.797)
	nearby := located("Nearby", 32.78, -96.80) // a few hundred meters out
	fortWorth := located("FortWorth", 32.7555, -97.3308)
	unlocated := model.GeocodeResult{AddressRecord: model.AddressRecord{Name: "NoCoords"}}

	records := []model.GeocodeResult{downtown, nearby, fortWorth, unlocated}

	selected := SelectWithin(records, 32.7767, -96.797, 1000)
	require.Len(t, selected, 2)
	assert.Equal(t, "Downtown", selected[0].Name)
	assert.Equal(t, "Nearby", selected[1].Name)

	// A big enough circle catches Fort Worth too, but never the
	// coordinate-less record.
	selected = SelectWithin(records, 32.7767, -96.797, 100000)
	assert.Len(t, selected, 3)

	assert.Empty(t, SelectWithin(records, 0, 0, 1000))
}

func TestMarshalExport(t *testing.T) {
	records := []model.GeocodeResult{located("Smith", 32.7767, -96.797)}

	data, err := MarshalExport(records, "https://my.hpumc.org/Person2/")
	require.NoError(t, err)
	content := string(data)

	lines := strings.Split(strings.TrimSpace(content), "\n")
	require.Len(t, lines, 2)
	assert.True(t, strings.HasPrefix(lines[0], "Name,"))
	assert.Contains(t, lines[0], "PeopleID Link")
	assert.Contains(t, lines[1], "https://my.hpumc.org/Person2/42")
	assert.Contains(t, lines[1], "32.7767")
}

func TestMarshalExportNoLinkBase(t *testing.T) {
	records := []model.GeocodeResult{located("Smith", 32.7767, -96.797)}

	data, err := MarshalExport(records, "")
	require.NoError(t, err)
	assert.NotContains(t, string(data), "PeopleID Link")
}

func TestMarshalExportEmptySelection(t *testing.T) {
	data, err := MarshalExport(nil, "base/")
	require.NoError(t, err)
	// Header only.
	assert.Equal(t, 1, strings.Count(strings.TrimSpace(string(data)), "\n")+1)
}
