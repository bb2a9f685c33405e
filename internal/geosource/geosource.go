// Package geosource loads vector geometry files (Shapefile, GeoJSON, WKT)
// into features tagged with their coordinate reference system.
package geosource

import (
	"os"
	"path/filepath"
	"strings"

	"github.com/rotisserie/eris"
	"github.com/twpayne/go-geom"
	"go.uber.org/zap"

	"github.com/sells-group/walkability-cli/internal/crs"
)

// Feature is one record of a geometry file.
type Feature struct {
	Geometry   geom.T
	Properties map[string]any
}

// Collection is the content of one geometry file.
type Collection struct {
	Path     string
	CRS      *crs.CRS
	Features []Feature
}

// LoadOptions configures Load.
type LoadOptions struct {
	// DefaultCRS is used when the file carries no CRS metadata
	// (e.g. a shapefile without .prj, or a WKT file). Any form accepted by
	// crs.Parse.
	DefaultCRS string
	// TempDir receives extracted archives. Defaults to os.TempDir().
	TempDir string
}

// Load reads the geometry file at path. The format is chosen by extension:
// .shp, .zip (containing one shapefile), .geojson/.json, or .wkt.
func Load(path string, opts LoadOptions) (*Collection, error) {
	if _, err := os.Stat(path); err != nil {
		return nil, eris.Wrapf(err, "geosource: stat %s", path)
	}

	var (
		c   *Collection
		err error
	)
	switch ext := strings.ToLower(filepath.Ext(path)); ext {
	case ".shp":
		c, err = loadShapefile(path)
	case ".zip":
		c, err = loadZippedShapefile(path, opts.TempDir)
	case ".geojson", ".json":
		c, err = loadGeoJSON(path)
	case ".wkt", ".txt":
		c, err = loadWKT(path)
	default:
		return nil, eris.Errorf("geosource: unsupported file extension %q", ext)
	}
	if err != nil {
		return nil, err
	}

	if c.CRS == nil && opts.DefaultCRS != "" {
		def, err := crs.Parse(opts.DefaultCRS)
		if err != nil {
			return nil, eris.Wrap(err, "geosource: default CRS")
		}
		c.CRS = def
	}
	if c.CRS == nil {
		return nil, eris.Errorf("geosource: %s has no coordinate reference system; set a default CRS", path)
	}

	zap.L().Debug("geosource: loaded",
		zap.String("path", path),
		zap.Int("features", len(c.Features)),
		zap.String("crs", c.CRS.String()),
	)
	return c, nil
}

// Reproject returns a copy of the collection with every geometry converted
// to EPSG:4326.
func (c *Collection) Reproject() (*Collection, error) {
	if c.CRS == nil {
		return nil, eris.Errorf("geosource: %s has no coordinate reference system", c.Path)
	}
	out := &Collection{
		Path:     c.Path,
		CRS:      crs.WGS84(),
		Features: make([]Feature, len(c.Features)),
	}
	for i, f := range c.Features {
		g, err := c.CRS.Reproject(f.Geometry)
		if err != nil {
			return nil, eris.Wrapf(err, "geosource: reproject feature %d of %s", i, c.Path)
		}
		out.Features[i] = Feature{Geometry: g, Properties: f.Properties}
	}
	return out, nil
}

// Geometries returns the non-nil geometries in record order.
func (c *Collection) Geometries() []geom.T {
	out := make([]geom.T, 0, len(c.Features))
	for _, f := range c.Features {
		if f.Geometry != nil {
			out = append(out, f.Geometry)
		}
	}
	return out
}
