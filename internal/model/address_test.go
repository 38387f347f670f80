package model

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestHasCoords(t *testing.T) {
	lat, lon := 32.7767, -96.797

	assert.False(t, GeocodeResult{}.HasCoords())
	assert.False(t, GeocodeResult{Latitude: &lat}.HasCoords())
	assert.False(t, GeocodeResult{Longitude: &lon}.HasCoords())
	assert.True(t, GeocodeResult{Latitude: &lat, Longitude: &lon}.HasCoords())
}

func TestPersonLink(t *testing.T) {
	base := "https://my.hpumc.org/Person2/"

	assert.Equal(t, "https://my.hpumc.org/Person2/42", PersonLink(base, "42"))
	assert.Equal(t, "https://my.hpumc.org/Person2/42", PersonLink(base, "  42  "))
	assert.Empty(t, PersonLink(base, ""))
	assert.Empty(t, PersonLink(base, "   "))
	assert.Empty(t, PersonLink("", "42"))
}
