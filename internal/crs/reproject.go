package crs

import (
	"github.com/rotisserie/eris"
	"github.com/twpayne/go-geom"
)

// Reproject returns a copy of g with every coordinate converted from c to
// EPSG:4326. The input geometry is not modified.
func (c *CRS) Reproject(g geom.T) (geom.T, error) {
	if g == nil {
		return nil, nil
	}

	layout := g.Layout()
	flat, err := c.transformFlat(layout, g.FlatCoords())
	if err != nil {
		return nil, err
	}

	switch t := g.(type) {
	case *geom.Point:
		return geom.NewPointFlat(layout, flat).SetSRID(WGS84SRID), nil
	case *geom.MultiPoint:
		return geom.NewMultiPointFlat(layout, flat).SetSRID(WGS84SRID), nil
	case *geom.LineString:
		return geom.NewLineStringFlat(layout, flat).SetSRID(WGS84SRID), nil
	case *geom.MultiLineString:
		return geom.NewMultiLineStringFlat(layout, flat, cloneEnds(t.Ends())).SetSRID(WGS84SRID), nil
	case *geom.Polygon:
		return geom.NewPolygonFlat(layout, flat, cloneEnds(t.Ends())).SetSRID(WGS84SRID), nil
	case *geom.MultiPolygon:
		endss := make([][]int, len(t.Endss()))
		for i, ends := range t.Endss() {
			endss[i] = cloneEnds(ends)
		}
		return geom.NewMultiPolygonFlat(layout, flat, endss).SetSRID(WGS84SRID), nil
	}
	return nil, eris.Errorf("crs: cannot reproject geometry of type %T", g)
}

func (c *CRS) transformFlat(layout geom.Layout, in []float64) ([]float64, error) {
	out := make([]float64, len(in))
	copy(out, in)
	if c.IsWGS84() {
		return out, nil
	}
	stride := layout.Stride()
	for i := 0; i+1 < len(out); i += stride {
		lon, lat, err := c.ToWGS84(out[i], out[i+1])
		if err != nil {
			return nil, err
		}
		out[i], out[i+1] = lon, lat
	}
	return out, nil
}

func cloneEnds(ends []int) []int {
	out := make([]int, len(ends))
	copy(out, ends)
	return out
}
