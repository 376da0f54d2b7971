package crs

import (
	"math"

	"github.com/ctessum/geom/proj"
	"github.com/im7mortal/UTM"
	"github.com/rotisserie/eris"
)

// Transformer maps a coordinate from one CRS into another.
type Transformer func(x, y float64) (float64, float64, error)

// NewTransformer returns a Transformer from src to dst. When the two systems
// are equal the identity transform is returned.
func NewTransformer(src, dst CRS) (Transformer, error) {
	if src.IsZero() || dst.IsZero() {
		return nil, ErrNoCRS
	}
	if src.Equal(dst) {
		return func(x, y float64) (float64, float64, error) { return x, y, nil }, nil
	}

	from, err := proj.Parse(src.Def)
	if err != nil {
		return nil, eris.Wrapf(err, "crs: parse source %s", src)
	}
	to, err := proj.Parse(dst.Def)
	if err != nil {
		return nil, eris.Wrapf(err, "crs: parse destination %s", dst)
	}
	t, err := from.NewTransform(to)
	if err != nil {
		return nil, eris.Wrapf(err, "crs: transform %s -> %s", src, dst)
	}

	return func(x, y float64) (float64, float64, error) {
		tx, ty, err := t(x, y)
		if err != nil {
			return math.NaN(), math.NaN(), err
		}
		return tx, ty, nil
	}, nil
}

// UTMFor returns the WGS 84 UTM zone CRS containing the given longitude and
// latitude.
func UTMFor(lon, lat float64) (CRS, error) {
	northern := lat >= 0
	_, _, zone, _, err := UTM.FromLatLon(lat, lon, northern)
	if err != nil {
		return CRS{}, eris.Wrapf(err, "crs: utm zone for (%g, %g)", lon, lat)
	}
	code := 32600 + zone
	if !northern {
		code = 32700 + zone
	}
	return FromEPSG(code)
}
