// Package crs identifies coordinate reference systems from shapefile .prj
// files, EPSG codes and GeoJSON crs members, and converts projected
// coordinates to geographic EPSG:4326.
//
// Datums, conic projections and datum shifts come from
// github.com/wroge/wgs84; this package maps definitions onto them.
package crs

import (
	"fmt"
	"math"
	"strconv"
	"strings"

	"github.com/rotisserie/eris"
	"github.com/wroge/wgs84"
)

// WGS84SRID is the SRID every geometry is reprojected to.
const WGS84SRID = 4326

// usSurveyFoot is the length of the US survey foot in meters.
const usSurveyFoot = 0.3048006096012192

// Ellipsoid describes a reference ellipsoid by semi-major axis and inverse
// flattening. It satisfies wgs84.Spheroid.
type Ellipsoid struct {
	SemiMajor         float64
	InverseFlattening float64
}

// A returns the semi-major axis in meters.
func (e Ellipsoid) A() float64 { return e.SemiMajor }

// Fi returns the inverse flattening.
func (e Ellipsoid) Fi() float64 { return e.InverseFlattening }

var (
	// WGS84Ellipsoid is the WGS 84 reference ellipsoid.
	WGS84Ellipsoid = Ellipsoid{SemiMajor: wgs84.A, InverseFlattening: wgs84.Fi}
	// GRS80Ellipsoid is the GRS 1980 reference ellipsoid used by NAD83.
	GRS80Ellipsoid = Ellipsoid{SemiMajor: wgs84.GRS80{}.A(), InverseFlattening: wgs84.GRS80{}.Fi()}
)

// CRS is a coordinate reference system convertible to EPSG:4326.
type CRS struct {
	Name string
	EPSG int

	// sys carries the datum for every system. Its Projection is nil for
	// geographic systems.
	sys wgs84.ProjectedReferenceSystem
	// unit converts native units to meters (projected) or to degrees (geographic).
	unit float64
}

func geographic(name string, epsg int, datum wgs84.Datum) *CRS {
	return &CRS{Name: name, EPSG: epsg, sys: wgs84.ProjectedReferenceSystem{Datum: datum}, unit: 1}
}

func projected(name string, epsg int, datum wgs84.Datum, p wgs84.Projection, unit float64) *CRS {
	return &CRS{Name: name, EPSG: epsg, sys: wgs84.ProjectedReferenceSystem{Datum: datum, Projection: p}, unit: unit}
}

// WGS84 returns the geographic WGS 84 reference system.
func WGS84() *CRS {
	return geographic("WGS 84", WGS84SRID, wgs84.WGS84())
}

// IsGeographic reports whether coordinates are longitude/latitude.
func (c *CRS) IsGeographic() bool {
	return c.sys.Projection == nil
}

// IsWGS84 reports whether no conversion is needed to reach EPSG:4326.
func (c *CRS) IsWGS84() bool {
	return c.IsGeographic() && !c.shifted() && math.Abs(c.unit-1) < 1e-12
}

// shifted reports whether the datum carries a Helmert transformation to WGS 84.
// Datums without one are taken as coincident with WGS 84.
func (c *CRS) shifted() bool {
	return c.sys.Datum.Transformation != nil
}

func (c *CRS) String() string {
	if c.EPSG != 0 {
		return fmt.Sprintf("%s (EPSG:%d)", c.Name, c.EPSG)
	}
	return c.Name
}

// ToWGS84 converts a native (x, y) coordinate to (lon, lat) degrees.
func (c *CRS) ToWGS84(x, y float64) (lon, lat float64, err error) {
	x, y = x*c.unit, y*c.unit
	switch {
	case c.IsGeographic() && c.shifted():
		lon, lat, _ = wgs84.Transform(c.sys.Datum.LonLat(), wgs84.LonLat())(x, y, 0)
	case c.IsGeographic():
		lon, lat = x, y
	case c.shifted():
		lon, lat, _ = wgs84.Transform(c.sys, wgs84.LonLat())(x, y, 0)
	default:
		lon, lat = c.sys.Projection.ToLonLat(x, y, c.sys.Datum)
	}
	if math.IsNaN(lon) || math.IsNaN(lat) || math.IsInf(lon, 0) || math.IsInf(lat, 0) {
		return 0, 0, eris.Errorf("crs: %s: coordinate (%g, %g) has no geographic equivalent", c, x/c.unit, y/c.unit)
	}
	return lon, lat, nil
}

// FromWGS84 converts (lon, lat) degrees to native coordinates.
func (c *CRS) FromWGS84(lon, lat float64) (x, y float64, err error) {
	switch {
	case c.IsGeographic() && c.shifted():
		x, y, _ = wgs84.Transform(wgs84.LonLat(), c.sys.Datum.LonLat())(lon, lat, 0)
	case c.IsGeographic():
		x, y = lon, lat
	case c.shifted():
		x, y, _ = wgs84.Transform(wgs84.LonLat(), c.sys)(lon, lat, 0)
	default:
		x, y = c.sys.Projection.FromLonLat(lon, lat, c.sys.Datum)
	}
	if math.IsNaN(x) || math.IsNaN(y) || math.IsInf(x, 0) || math.IsInf(y, 0) {
		return 0, 0, eris.Errorf("crs: %s: (%g, %g) cannot be projected", c, lon, lat)
	}
	return x / c.unit, y / c.unit, nil
}

// FromEPSG returns the reference system for a supported EPSG code.
func FromEPSG(code int) (*CRS, error) {
	nad83 := wgs84.NAD83()
	switch {
	case code == 4326:
		return WGS84(), nil
	case code == 4269:
		return geographic("NAD83", code, nad83), nil
	case code == 4617 || code == 4258 || code == 4283 || code == 4167 || code == 4171:
		return geographic(fmt.Sprintf("EPSG:%d", code), code, wgs84.Datum{Spheroid: GRS80Ellipsoid}), nil
	case code == 3857 || code == 900913 || code == 102100 || code == 102113 || code == 3785:
		wm := wgs84.WebMercator()
		return projected("WGS 84 / Pseudo-Mercator", code, wm.Datum, wm.Projection, 1), nil
	case code >= 32601 && code <= 32660:
		return utm(code, code-32600, false, wgs84.WGS84(), "WGS 84"), nil
	case code >= 32701 && code <= 32760:
		return utm(code, code-32700, true, wgs84.WGS84(), "WGS 84"), nil
	case code >= 26901 && code <= 26923:
		return utm(code, code-26900, false, nad83, "NAD83"), nil
	case code == 2154:
		lcc := wgs84.RGF93().LambertConformalConic2SP(3, 46.5, 49, 44, 700000, 6600000)
		return projected("RGF93 / Lambert-93", code, lcc.Datum, lcc.Projection, 1), nil
	case code == 2229:
		lcc := nad83.LambertConformalConic2SP(-118, 33.5, 35+28.0/60, 34+2.0/60, 2000000, 500000)
		return projected("NAD83 / California zone 5 (ftUS)", code, lcc.Datum, lcc.Projection, usSurveyFoot), nil
	case code == 2263:
		lcc := nad83.LambertConformalConic2SP(-74, 40+10.0/60, 41+2.0/60, 40+40.0/60, 300000, 0)
		return projected("NAD83 / New York Long Island (ftUS)", code, lcc.Datum, lcc.Projection, usSurveyFoot), nil
	case code == 3310:
		aea := nad83.AlbersEqualAreaConic(-120, 0, 34, 40.5, 0, -4000000)
		return projected("NAD83 / California Albers", code, aea.Datum, aea.Projection, 1), nil
	case code == 5070:
		aea := nad83.AlbersEqualAreaConic(-96, 23, 29.5, 45.5, 0, 0)
		return projected("NAD83 / Conus Albers", code, aea.Datum, aea.Projection, 1), nil
	}
	return nil, eris.Errorf("crs: unsupported EPSG code %d", code)
}

func utm(code, zone int, south bool, datum wgs84.Datum, datumName string) *CRS {
	hemi := "N"
	fn := 0.0
	if south {
		hemi = "S"
		fn = 10000000
	}
	tm := transverseMercator{
		lonf:   float64(zone*6 - 183),
		scale:  0.9996,
		eastf:  500000,
		northf: fn,
	}
	return projected(fmt.Sprintf("%s / UTM zone %d%s", datumName, zone, hemi), code, datum, tm, 1)
}

// Parse accepts "EPSG:<code>", an OGC URN ("urn:ogc:def:crs:EPSG::3857",
// "urn:ogc:def:crs:OGC:1.3:CRS84") or a WKT definition.
func Parse(s string) (*CRS, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return nil, eris.New("crs: empty definition")
	}
	upper := strings.ToUpper(s)

	if strings.HasSuffix(upper, "CRS84") {
		return WGS84(), nil
	}
	if strings.HasPrefix(upper, "EPSG:") || strings.HasPrefix(upper, "URN:OGC:DEF:CRS:EPSG:") {
		i := strings.LastIndex(s, ":")
		code, err := strconv.Atoi(strings.TrimSpace(s[i+1:]))
		if err != nil {
			return nil, eris.Wrapf(err, "crs: parse EPSG code %q", s)
		}
		return FromEPSG(code)
	}
	if code, err := strconv.Atoi(s); err == nil {
		return FromEPSG(code)
	}
	return ParseWKT(s)
}
