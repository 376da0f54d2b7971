// Package crs identifies coordinate reference systems and builds coordinate
// transforms between them.
package crs

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"

	"github.com/ctessum/geom/proj"
	"github.com/rotisserie/eris"
)

// ErrNoCRS is returned when an input carries no usable spatial reference.
var ErrNoCRS = eris.New("crs: missing coordinate reference system")

// CRS identifies a coordinate reference system. EPSG is zero when the system
// was given only as a PROJ.4 or WKT definition.
type CRS struct {
	EPSG int
	Def  string
}

// WGS84 is geographic longitude/latitude on the WGS 84 datum (EPSG:4326).
var WGS84 = CRS{EPSG: 4326, Def: "+proj=longlat +datum=WGS84 +no_defs"}

// Known EPSG definitions. UTM zones on WGS 84 and NAD83 are generated in FromEPSG.
var epsgDefs = map[int]string{
	4326: "+proj=longlat +datum=WGS84 +no_defs",
	4269: "+proj=longlat +datum=NAD83 +no_defs",
	4267: "+proj=longlat +datum=NAD27 +no_defs",
	3857: "+proj=merc +a=6378137 +b=6378137 +lat_ts=0 +lon_0=0 +x_0=0 +y_0=0 +k=1 +units=m +nadgrids=@null +no_defs",
	3310: "+proj=aea +lat_1=34 +lat_2=40.5 +lat_0=0 +lon_0=-120 +x_0=0 +y_0=-4000000 +datum=NAD83 +units=m +no_defs",
	5070: "+proj=aea +lat_1=29.5 +lat_2=45.5 +lat_0=23 +lon_0=-96 +x_0=0 +y_0=0 +datum=NAD83 +units=m +no_defs",
}

var (
	epsgPrefix    = regexp.MustCompile(`(?i)^\s*epsg:(\d+)\s*$`)
	wktAuthority  = regexp.MustCompile(`AUTHORITY\["EPSG",\s*"?(\d+)"?\]\s*\]\s*$`)
	wktWGS84Datum = regexp.MustCompile(`(?i)DATUM\["(D_)?WGS_?1984"`)
)

// FromEPSG returns the CRS for an EPSG code.
func FromEPSG(code int) (CRS, error) {
	if def, ok := epsgDefs[code]; ok {
		return CRS{EPSG: code, Def: def}, nil
	}
	switch {
	case code > 32600 && code <= 32660:
		return CRS{EPSG: code, Def: utmDef(code-32600, false, "WGS84")}, nil
	case code > 32700 && code <= 32760:
		return CRS{EPSG: code, Def: utmDef(code-32700, true, "WGS84")}, nil
	case code > 26900 && code <= 26923:
		return CRS{EPSG: code, Def: utmDef(code-26900, false, "NAD83")}, nil
	}
	return CRS{}, eris.Errorf("crs: unsupported EPSG code %d", code)
}

// Parse accepts "EPSG:<code>", a PROJ.4 string, or a WKT definition such as the
// contents of a shapefile .prj file.
func Parse(def string) (CRS, error) {
	def = strings.TrimSpace(def)
	if def == "" {
		return CRS{}, ErrNoCRS
	}

	if m := epsgPrefix.FindStringSubmatch(def); m != nil {
		code, _ := strconv.Atoi(m[1])
		return FromEPSG(code)
	}

	if strings.HasPrefix(def, "+") {
		if _, err := proj.Parse(def); err != nil {
			return CRS{}, eris.Wrapf(err, "crs: parse proj4 %q", def)
		}
		return CRS{Def: def}, nil
	}

	// WKT. Prefer the top-level authority code when present.
	if m := wktAuthority.FindStringSubmatch(def); m != nil {
		code, _ := strconv.Atoi(m[1])
		if c, err := FromEPSG(code); err == nil {
			return c, nil
		}
	}
	if strings.HasPrefix(strings.ToUpper(def), "GEOGCS") && wktWGS84Datum.MatchString(def) {
		return WGS84, nil
	}
	if _, err := proj.Parse(def); err != nil {
		return CRS{}, eris.Wrap(err, "crs: parse wkt")
	}
	return CRS{Def: def}, nil
}

// IsZero reports whether c is unset.
func (c CRS) IsZero() bool { return c.EPSG == 0 && c.Def == "" }

// Geographic reports whether coordinates are longitude/latitude degrees.
func (c CRS) Geographic() bool {
	if strings.HasPrefix(c.Def, "+") {
		return strings.Contains(c.Def, "+proj=longlat") || strings.Contains(c.Def, "+proj=latlong")
	}
	return strings.HasPrefix(strings.ToUpper(c.Def), "GEOGCS")
}

// Equal reports whether c and o describe the same reference system.
func (c CRS) Equal(o CRS) bool {
	if c.EPSG != 0 && o.EPSG != 0 {
		return c.EPSG == o.EPSG
	}
	if c.Def == o.Def {
		return c.Def != ""
	}
	a, err := proj.Parse(c.Def)
	if err != nil {
		return false
	}
	b, err := proj.Parse(o.Def)
	if err != nil {
		return false
	}
	return a.Equal(b, 100)
}

func (c CRS) String() string {
	if c.EPSG != 0 {
		return fmt.Sprintf("EPSG:%d", c.EPSG)
	}
	if len(c.Def) > 60 {
		return c.Def[:57] + "..."
	}
	return c.Def
}

func utmDef(zone int, south bool, datum string) string {
	def := fmt.Sprintf("+proj=utm +zone=%d", zone)
	if south {
		def += " +south"
	}
	return def + fmt.Sprintf(" +datum=%s +units=m +no_defs", datum)
}
