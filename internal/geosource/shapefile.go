package geosource

import (
	"archive/zip"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/jonas-p/go-shp"
	"github.com/rotisserie/eris"
	"github.com/twpayne/go-geom"
	"github.com/twpayne/go-geom/xy"
	"go.uber.org/zap"

	"github.com/sells-group/walkability-cli/internal/crs"
)

func loadShapefile(shpPath string) (*Collection, error) {
	reader, err := shp.Open(shpPath)
	if err != nil {
		return nil, eris.Wrapf(err, "geosource: open shapefile %s", shpPath)
	}
	defer func() { _ = reader.Close() }()

	fields := reader.Fields()
	names := make([]string, len(fields))
	for i, f := range fields {
		names[i] = strings.TrimRight(f.String(), "\x00")
	}

	c := &Collection{Path: shpPath}
	var skipped int
	for reader.Next() {
		_, shape := reader.Shape()

		props := make(map[string]any, len(names))
		for i, name := range names {
			val := strings.TrimSpace(strings.TrimRight(reader.Attribute(i), "\x00"))
			if val != "" {
				props[name] = val
			}
		}

		g := ShapeToGeom(shape)
		if g == nil {
			skipped++
		}
		c.Features = append(c.Features, Feature{Geometry: g, Properties: props})
	}

	if skipped > 0 {
		zap.L().Debug("geosource: shapefile records without usable geometry",
			zap.String("path", shpPath),
			zap.Int("skipped", skipped),
		)
	}

	prj, err := readPRJ(shpPath)
	if err != nil {
		return nil, err
	}
	if prj != "" {
		c.CRS, err = crs.ParseWKT(prj)
		if err != nil {
			return nil, eris.Wrapf(err, "geosource: parse projection of %s", shpPath)
		}
	}
	return c, nil
}

// readPRJ returns the content of the .prj sidecar, or "" when none exists.
func readPRJ(shpPath string) (string, error) {
	base := strings.TrimSuffix(shpPath, filepath.Ext(shpPath))
	for _, ext := range []string{".prj", ".PRJ"} {
		data, err := os.ReadFile(base + ext)
		if err == nil {
			return strings.TrimSpace(string(data)), nil
		}
		if !os.IsNotExist(err) {
			return "", eris.Wrapf(err, "geosource: read %s", base+ext)
		}
	}
	return "", nil
}

func loadZippedShapefile(zipPath, tempDir string) (*Collection, error) {
	dir, err := os.MkdirTemp(tempDir, "geosource-*")
	if err != nil {
		return nil, eris.Wrap(err, "geosource: create extract dir")
	}
	defer func() { _ = os.RemoveAll(dir) }()

	if err := extractZIP(zipPath, dir); err != nil {
		return nil, eris.Wrapf(err, "geosource: extract %s", zipPath)
	}
	shpPath, err := findFileByExt(dir, ".shp")
	if err != nil {
		return nil, eris.Wrapf(err, "geosource: %s", zipPath)
	}
	c, err := loadShapefile(shpPath)
	if err != nil {
		return nil, err
	}
	c.Path = zipPath
	return c, nil
}

// ShapeToGeom converts a go-shp shape to a go-geom geometry. Single-part
// polylines become LineStrings and multi-part ones MultiLineStrings. Polygon
// rings are grouped into shells and holes by orientation. Returns nil for
// null or unsupported shapes.
func ShapeToGeom(shape shp.Shape) geom.T {
	switch s := shape.(type) {
	case *shp.Point:
		return geom.NewPointFlat(geom.XY, []float64{s.X, s.Y})
	case *shp.PointZ:
		return geom.NewPointFlat(geom.XY, []float64{s.X, s.Y})
	case *shp.PointM:
		return geom.NewPointFlat(geom.XY, []float64{s.X, s.Y})
	case *shp.MultiPoint:
		if len(s.Points) == 0 {
			return nil
		}
		return geom.NewMultiPointFlat(geom.XY, flatPoints(s.Points))
	case *shp.PolyLine:
		return polyLineToGeom(splitParts(s.NumParts, s.Parts, s.Points))
	case *shp.PolyLineZ:
		return polyLineToGeom(splitParts(s.NumParts, s.Parts, s.Points))
	case *shp.PolyLineM:
		return polyLineToGeom(splitParts(s.NumParts, s.Parts, s.Points))
	case *shp.Polygon:
		return ringsToGeom(splitParts(s.NumParts, s.Parts, s.Points))
	case *shp.PolygonZ:
		return ringsToGeom(splitParts(s.NumParts, s.Parts, s.Points))
	}
	return nil
}

// splitParts slices a shapefile point array into its parts as flat XY coords.
func splitParts(numParts int32, parts []int32, points []shp.Point) [][]float64 {
	if numParts == 0 || len(points) == 0 {
		return nil
	}
	out := make([][]float64, 0, numParts)
	for i := int32(0); i < numParts && int(i) < len(parts); i++ {
		start := parts[i]
		end := int32(len(points))
		if i+1 < numParts && int(i+1) < len(parts) {
			end = parts[i+1]
		}
		if start < 0 || start >= end || int(end) > len(points) {
			continue
		}
		out = append(out, flatPoints(points[start:end]))
	}
	return out
}

func flatPoints(points []shp.Point) []float64 {
	flat := make([]float64, 0, len(points)*2)
	for _, p := range points {
		flat = append(flat, p.X, p.Y)
	}
	return flat
}

func polyLineToGeom(parts [][]float64) geom.T {
	var valid [][]float64
	for _, p := range parts {
		if len(p) >= 4 {
			valid = append(valid, p)
		}
	}
	switch len(valid) {
	case 0:
		return nil
	case 1:
		return geom.NewLineStringFlat(geom.XY, valid[0])
	}
	var flat []float64
	ends := make([]int, 0, len(valid))
	for _, p := range valid {
		flat = append(flat, p...)
		ends = append(ends, len(flat))
	}
	return geom.NewMultiLineStringFlat(geom.XY, flat, ends)
}

// ringsToGeom groups shapefile rings into polygons. Shapefile shells are
// clockwise and holes counter-clockwise; a hole is attached to the most
// recent shell.
func ringsToGeom(rings [][]float64) geom.T {
	type poly struct {
		flat []float64
		ends []int
	}
	var polys []*poly
	for _, r := range rings {
		if len(r) < 8 {
			zap.L().Debug("geosource: skipping degenerate polygon ring", zap.Int("coords", len(r)/2))
			continue
		}
		// xy.SignedArea is positive for clockwise rings.
		if xy.SignedArea(geom.XY, r) >= 0 || len(polys) == 0 {
			polys = append(polys, &poly{})
		}
		cur := polys[len(polys)-1]
		cur.flat = append(cur.flat, r...)
		cur.ends = append(cur.ends, len(cur.flat))
	}

	switch len(polys) {
	case 0:
		return nil
	case 1:
		return geom.NewPolygonFlat(geom.XY, polys[0].flat, polys[0].ends)
	}

	var flat []float64
	endss := make([][]int, 0, len(polys))
	for _, p := range polys {
		offset := len(flat)
		flat = append(flat, p.flat...)
		ends := make([]int, len(p.ends))
		for i, e := range p.ends {
			ends[i] = e + offset
		}
		endss = append(endss, ends)
	}
	return geom.NewMultiPolygonFlat(geom.XY, flat, endss)
}

func extractZIP(zipPath, destDir string) error {
	r, err := zip.OpenReader(zipPath)
	if err != nil {
		return eris.Wrap(err, "open zip")
	}
	defer r.Close() //nolint:errcheck

	for _, f := range r.File {
		if f.FileInfo().IsDir() {
			continue
		}
		destPath := filepath.Join(destDir, filepath.Base(f.Name))

		rc, err := f.Open()
		if err != nil {
			return eris.Wrapf(err, "open zip entry %s", f.Name)
		}
		outFile, err := os.Create(destPath)
		if err != nil {
			_ = rc.Close()
			return eris.Wrapf(err, "create %s", destPath)
		}
		if _, err := io.Copy(outFile, rc); err != nil {
			_ = outFile.Close()
			_ = rc.Close()
			return eris.Wrapf(err, "extract %s", f.Name)
		}
		_ = outFile.Close()
		_ = rc.Close()
	}
	return nil
}

func findFileByExt(dir, ext string) (string, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return "", eris.Wrap(err, "read directory")
	}
	for _, e := range entries {
		if !e.IsDir() && strings.HasSuffix(strings.ToLower(e.Name()), ext) {
			return filepath.Join(dir, e.Name()), nil
		}
	}
	return "", eris.Errorf("no %s file found in %s", ext, dir)
}
