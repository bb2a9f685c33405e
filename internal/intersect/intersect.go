// Package intersect finds the pairwise crossings of road polylines that lie
// inside a bounding region.
package intersect

import (
	"context"
	"fmt"

	"github.com/rotisserie/eris"
	"github.com/twpayne/go-geom"
	"go.uber.org/zap"

	"github.com/sells-group/walkability-cli/internal/geosource"
	"github.com/sells-group/walkability-cli/internal/model"
)

// progressEvery is how many pairs are tested between progress logs and
// context checks.
const progressEvery = 1000

// Options configures an extraction.
type Options struct {
	// IncludeBoundary accepts crossings that lie exactly on the region
	// boundary. By default only interior points are accepted.
	IncludeBoundary bool
	// Load is passed to geosource.Load by ExtractFiles.
	Load geosource.LoadOptions
}

// Result is a successful extraction. Points are in pair order and may repeat
// when several pairs cross at the same location.
type Result struct {
	Points []model.LatLng `json:"intersections"`

	Roads      int `json:"roads"`      // input geometries
	Segments   int `json:"segments"`   // simple polylines kept
	Candidates int `json:"candidates"` // polylines touching the region
	Pairs      int `json:"pairs"`      // pairs tested

	// Region is the EPSG:4326 region geometry the points were tested against.
	Region geom.T `json:"-"`
}

// Extract returns every point where two road polylines cross inside the
// region. Inputs must already be in EPSG:4326. region must hold exactly one
// Polygon or MultiPolygon.
func Extract(ctx context.Context, roads []geom.T, region []geom.T, opts Options) (res *Result, err error) {
	log := zap.L().With(zap.String("component", "intersect"))

	defer func() {
		if r := recover(); r != nil {
			res = nil
			err = newError(KindComputation, eris.Errorf("intersect: panic during extraction: %v", r))
		}
		if err != nil {
			log.Error("intersect: extraction failed",
				zap.String("kind", string(KindOf(err))),
				zap.Error(err),
			)
		}
	}()

	reg, err := singleRegion(region)
	if err != nil {
		return nil, err
	}

	res = &Result{Roads: len(roads), Points: []model.LatLng{}, Region: region[0]}

	var segs []*Segment
	for i, g := range roads {
		ls, ok := g.(*geom.LineString)
		if !ok {
			continue
		}
		s, ok, err := NewSegment(ls)
		if err != nil {
			return nil, newError(KindComputation, eris.Wrapf(err, "intersect: road %d", i))
		}
		if ok {
			segs = append(segs, s)
		}
	}
	res.Segments = len(segs)

	candidates := segs[:0:0]
	for _, s := range segs {
		if reg.Intersects(s) {
			candidates = append(candidates, s)
		}
	}
	res.Candidates = len(candidates)

	log.Info("intersect: filtered roads",
		zap.Int("roads", res.Roads),
		zap.Int("polylines", res.Segments),
		zap.Int("candidates", res.Candidates),
	)
	if len(candidates) < 2 {
		return res, nil
	}

	total := len(candidates) * (len(candidates) - 1) / 2
	for i := 0; i < len(candidates); i++ {
		for j := i + 1; j < len(candidates); j++ {
			res.Pairs++
			if res.Pairs%progressEvery == 0 {
				if err := ctx.Err(); err != nil {
					return nil, newError(KindComputation, eris.Wrap(err, "intersect: cancelled"))
				}
				log.Debug("intersect: progress",
					zap.Int("pairs", res.Pairs),
					zap.Int("total", total),
					zap.Int("points", len(res.Points)),
				)
			}

			pts, ok := intersectPolylines(candidates[i], candidates[j])
			if !ok {
				continue
			}
			for _, p := range pts {
				if reg.Contains(p, opts.IncludeBoundary) {
					res.Points = append(res.Points, model.LatLng{Lat: p.Y, Lon: p.X})
				}
			}
		}
	}

	log.Info("intersect: done",
		zap.Int("pairs", res.Pairs),
		zap.Int("points", len(res.Points)),
	)
	return res, nil
}

// ExtractFiles loads the road and region files, reprojects both to EPSG:4326
// and runs Extract.
func ExtractFiles(ctx context.Context, roadsPath, regionPath string, opts Options) (*Result, error) {
	roads, err := load(roadsPath, opts.Load)
	if err != nil {
		return nil, err
	}
	region, err := load(regionPath, opts.Load)
	if err != nil {
		return nil, err
	}
	return ExtractCollections(ctx, roads, region, opts)
}

// ExtractGeoJSON runs Extract on two GeoJSON documents.
func ExtractGeoJSON(ctx context.Context, roadsDoc, regionDoc []byte, opts Options) (*Result, error) {
	roads, err := geosource.ParseGeoJSON(roadsDoc)
	if err != nil {
		return nil, loadFailed("roads", err)
	}
	region, err := geosource.ParseGeoJSON(regionDoc)
	if err != nil {
		return nil, loadFailed("region", err)
	}
	return ExtractCollections(ctx, roads, region, opts)
}

// ExtractCollections reprojects loaded collections to EPSG:4326 and runs
// Extract. Every region feature counts toward the single-polygon check.
func ExtractCollections(ctx context.Context, roads, region *geosource.Collection, opts Options) (*Result, error) {
	roads, err := reproject(roads)
	if err != nil {
		return nil, err
	}
	region, err = reproject(region)
	if err != nil {
		return nil, err
	}

	return Extract(ctx, roads.Geometries(), featureGeometries(region), opts)
}

// LoadRegion loads a single-polygon region file in EPSG:4326.
func LoadRegion(path string, lo geosource.LoadOptions) (*Region, error) {
	c, err := load(path, lo)
	if err != nil {
		return nil, err
	}
	c, err = reproject(c)
	if err != nil {
		return nil, err
	}
	return singleRegion(featureGeometries(c))
}

// singleRegion builds the Region from a region input that must hold exactly
// one Polygon or MultiPolygon. Failures are KindInputShape.
func singleRegion(region []geom.T) (*Region, error) {
	if len(region) != 1 {
		return nil, newError(KindInputShape, eris.Errorf("intersect: region must contain exactly one polygon, found %d", len(region)))
	}
	r, err := NewRegion(region[0])
	if err != nil {
		return nil, newError(KindInputShape, err)
	}
	return r, nil
}

// featureGeometries lists one geometry per feature, so a feature without a
// supported geometry still counts toward the single-polygon check.
func featureGeometries(c *geosource.Collection) []geom.T {
	out := make([]geom.T, len(c.Features))
	for i, f := range c.Features {
		out[i] = f.Geometry
	}
	return out
}

func load(path string, lo geosource.LoadOptions) (*geosource.Collection, error) {
	c, err := geosource.Load(path, lo)
	if err != nil {
		return nil, loadFailed(path, err)
	}
	return c, nil
}

func loadFailed(source string, err error) error {
	err = newError(KindGeometryLoad, err)
	zap.L().Error("intersect: load failed", zap.String("source", source), zap.Error(err))
	return err
}

func reproject(c *geosource.Collection) (*geosource.Collection, error) {
	out, err := c.Reproject()
	if err != nil {
		kind := KindComputation
		if c.CRS == nil {
			kind = KindGeometryLoad
		}
		err = newError(kind, eris.Wrapf(err, "intersect: reproject %s", c.Path))
		zap.L().Error("intersect: reprojection failed", zap.String("path", c.Path), zap.Error(err))
		return nil, err
	}
	return out, nil
}

// String summarizes the result for logs and CLI output.
func (r *Result) String() string {
	return fmt.Sprintf("%d intersections (%d candidate roads, %d pairs)", len(r.Points), r.Candidates, r.Pairs)
}
