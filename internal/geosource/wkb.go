package geosource

import (
	"github.com/rotisserie/eris"
	"github.com/twpayne/go-geom"
	"github.com/twpayne/go-geom/encoding/ewkb"

	"github.com/sells-group/walkability-cli/internal/crs"
)

// EncodeWKB converts a geometry to little-endian EWKB with SRID 4326.
// Returns nil, nil for a nil geometry.
func EncodeWKB(g geom.T) ([]byte, error) {
	if g == nil {
		return nil, nil
	}
	if g.SRID() != crs.WGS84SRID {
		g = withSRID(g)
	}
	data, err := ewkb.Marshal(g, ewkb.NDR)
	if err != nil {
		return nil, eris.Wrap(err, "geosource: encode WKB")
	}
	return data, nil
}

// DecodeWKB parses EWKB bytes produced by EncodeWKB or PostGIS.
func DecodeWKB(data []byte) (geom.T, error) {
	if len(data) == 0 {
		return nil, nil
	}
	g, err := ewkb.Unmarshal(data)
	if err != nil {
		return nil, eris.Wrap(err, "geosource: decode WKB")
	}
	return g, nil
}

func withSRID(g geom.T) geom.T {
	switch t := g.(type) {
	case *geom.Point:
		return geom.NewPointFlat(t.Layout(), t.FlatCoords()).SetSRID(crs.WGS84SRID)
	case *geom.MultiPoint:
		return geom.NewMultiPointFlat(t.Layout(), t.FlatCoords()).SetSRID(crs.WGS84SRID)
	case *geom.LineString:
		return geom.NewLineStringFlat(t.Layout(), t.FlatCoords()).SetSRID(crs.WGS84SRID)
	case *geom.MultiLineString:
		return geom.NewMultiLineStringFlat(t.Layout(), t.FlatCoords(), t.Ends()).SetSRID(crs.WGS84SRID)
	case *geom.Polygon:
		return geom.NewPolygonFlat(t.Layout(), t.FlatCoords(), t.Ends()).SetSRID(crs.WGS84SRID)
	case *geom.MultiPolygon:
		return geom.NewMultiPolygonFlat(t.Layout(), t.FlatCoords(), t.Endss()).SetSRID(crs.WGS84SRID)
	}
	return g
}
