package crs

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFromEPSG(t *testing.T) {
	tests := []struct {
		name     string
		code     int
		contains string
	}{
		{name: "wgs84", code: 4326, contains: "+proj=longlat"},
		{name: "utm north", code: 32610, contains: "+zone=10 +datum=WGS84"},
		{name: "utm south", code: 32733, contains: "+zone=33 +south"},
		{name: "nad83 utm", code: 26911, contains: "+zone=11 +datum=NAD83"},
		{name: "california albers", code: 3310, contains: "+proj=aea"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c, err := FromEPSG(tt.code)
			require.NoError(t, err)
			assert.Equal(t, tt.code, c.EPSG)
			assert.Contains(t, c.Def, tt.contains)
		})
	}
}

func TestFromEPSG_Unsupported(t *testing.T) {
	_, err := FromEPSG(99999)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unsupported EPSG code")
}

func TestParse_EPSGPrefix(t *testing.T) {
	c, err := Parse("epsg:4326")
	require.NoError(t, err)
	assert.True(t, c.Equal(WGS84))
	assert.True(t, c.Geographic())
}

func TestParse_Empty(t *testing.T) {
	_, err := Parse("   ")
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrNoCRS)
}

func TestParse_WKTAuthority(t *testing.T) {
	wkt := `PROJCS["WGS 84 / UTM zone 10N",GEOGCS["WGS 84",DATUM["WGS_1984",SPHEROID["WGS 84",6378137,298.257223563]],` +
		`PRIMEM["Greenwich",0],UNIT["degree",0.0174532925199433]],PROJECTION["Transverse_Mercator"],` +
		`PARAMETER["central_meridian",-123],UNIT["metre",1],AUTHORITY["EPSG","32610"]]`
	c, err := Parse(wkt)
	require.NoError(t, err)
	assert.Equal(t, 32610, c.EPSG)
	assert.False(t, c.Geographic())
}

func TestParse_ESRIGeographicWKT(t *testing.T) {
	wkt := `GEOGCS["GCS_WGS_1984",DATUM["D_WGS_1984",SPHEROID["WGS_1984",6378137.0,298.257223563]],` +
		`PRIMEM["Greenwich",0.0],UNIT["Degree",0.0174532925199433]]`
	c, err := Parse(wkt)
	require.NoError(t, err)
	assert.Equal(t, 4326, c.EPSG)
}

func TestCRS_Equal(t *testing.T) {
	utm, err := FromEPSG(32611)
	require.NoError(t, err)

	assert.True(t, WGS84.Equal(WGS84))
	assert.False(t, WGS84.Equal(utm))
	assert.False(t, CRS{}.Equal(CRS{}))
	assert.True(t, WGS84.Equal(CRS{Def: WGS84.Def}))
}

func TestCRS_String(t *testing.T) {
	assert.Equal(t, "EPSG:4326", WGS84.String())
	assert.Equal(t, "+proj=longlat +datum=WGS84", CRS{Def: "+proj=longlat +datum=WGS84"}.String())
}

func TestNewTransformer_Identity(t *testing.T) {
	tr, err := NewTransformer(WGS84, WGS84)
	require.NoError(t, err)

	x, y, err := tr(-119.5, 34.2)
	require.NoError(t, err)
	assert.Equal(t, -119.5, x)
	assert.Equal(t, 34.2, y)
}

func TestNewTransformer_MissingCRS(t *testing.T) {
	_, err := NewTransformer(CRS{}, WGS84)
	assert.ErrorIs(t, err, ErrNoCRS)
}

func TestNewTransformer_RoundTripUTM(t *testing.T) {
	utm, err := FromEPSG(32611)
	require.NoError(t, err)

	fwd, err := NewTransformer(WGS84, utm)
	require.NoError(t, err)
	inv, err := NewTransformer(utm, WGS84)
	require.NoError(t, err)

	// Central meridian of zone 11 maps to the 500 km false easting.
	e, n, err := fwd(-117, 34)
	require.NoError(t, err)
	assert.InDelta(t, 500000, e, 1)
	assert.InDelta(t, 3762155, n, 50)

	lon, lat, err := inv(e, n)
	require.NoError(t, err)
	assert.InDelta(t, -117, lon, 1e-6)
	assert.InDelta(t, 34, lat, 1e-6)
}

func TestUTMFor(t *testing.T) {
	c, err := UTMFor(-119.7, 34.4)
	require.NoError(t, err)
	assert.Equal(t, 32611, c.EPSG)

	south, err := UTMFor(151.2, -33.9)
	require.NoError(t, err)
	assert.Equal(t, 32756, south.EPSG)
}
