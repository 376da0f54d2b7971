// Package suitability evaluates where both temperature and depth fall inside
// their suitable ranges, masks the result to region boundaries, and tabulates
// suitable area per region.
package suitability

import (
	"github.com/rotisserie/eris"

	"github.com/sells-group/aquasite/internal/raster"
)

// Sentinel errors returned by Evaluate.
var (
	ErrInvalidCriteria = eris.New("suitability: invalid criteria")
	ErrMisaligned      = eris.New("suitability: grids are not aligned")
	ErrNoData          = eris.New("suitability: input has no valid cells")
)

// Criteria holds the two suitability ranges. Both use the half-open (Low, High]
// convention of raster.Range.
type Criteria struct {
	Temperature raster.Range `json:"temperature_c" yaml:"temperature_c"`
	Depth       raster.Range `json:"depth_m" yaml:"depth_m"`
}

// DefaultCriteria returns 14.8-22.3 °C sea-surface temperature and 0-150 m
// depth below sea level.
func DefaultCriteria() Criteria {
	return Criteria{
		Temperature: raster.Range{Low: 14.8, High: 22.3},
		Depth:       raster.Range{Low: -150, High: 0},
	}
}

// Validate rejects inverted, empty or non-finite ranges.
func (c Criteria) Validate() error {
	if err := c.Temperature.Validate(); err != nil {
		return eris.Wrapf(ErrInvalidCriteria, "temperature: %v", err)
	}
	if err := c.Depth.Validate(); err != nil {
		return eris.Wrapf(ErrInvalidCriteria, "depth: %v", err)
	}
	return nil
}
