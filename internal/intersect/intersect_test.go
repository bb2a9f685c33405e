package intersect

import (
	"context"
	"errors"
	"math"
	"math/rand"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/twpayne/go-geom"

	"github.com/sells-group/walkability-cli/internal/geosource"
	"github.com/sells-group/walkability-cli/internal/model"
)

func line(coords ...float64) *geom.LineString {
	return geom.NewLineStringFlat(geom.XY, coords)
}

func unitSquare() []geom.T {
	return []geom.T{geom.NewPolygonFlat(geom.XY, []float64{0, 0, 1, 0, 1, 1, 0, 1, 0, 0}, []int{10})}
}

func TestExtract_UnitSquareThreeLines(t *testing.T) {
	roads := []geom.T{
		line(-1, 0.5, 2, 0.5),
		line(0.5, -1, 0.5, 2),
		line(-1, -1, 2, 2),
	}

	res, err := Extract(context.Background(), roads, unitSquare(), Options{})
	require.NoError(t, err)

	want := model.LatLng{Lat: 0.5, Lon: 0.5}
	assert.Equal(t, []model.LatLng{want, want, want}, res.Points)
	assert.Equal(t, 3, res.Candidates)
	assert.Equal(t, 3, res.Pairs)
}

func TestExtract_SingleInteriorCrossing(t *testing.T) {
	roads := []geom.T{
		line(0.1, 0.25, 0.9, 0.25),
		line(0.75, 0.1, 0.75, 0.9),
	}
	res, err := Extract(context.Background(), roads, unitSquare(), Options{})
	require.NoError(t, err)
	require.Len(t, res.Points, 1)
	assert.Equal(t, model.LatLng{Lat: 0.25, Lon: 0.75}, res.Points[0])
}

func TestExtract_TouchOutsideRegion(t *testing.T) {
	roads := []geom.T{
		line(0.2, 0.2, 3, 3),
		line(3, 3, 0.8, 0.2),
	}
	res, err := Extract(context.Background(), roads, unitSquare(), Options{})
	require.NoError(t, err)
	assert.Equal(t, 2, res.Candidates)
	assert.Empty(t, res.Points)
}

func TestExtract_CollinearOverlap(t *testing.T) {
	roads := []geom.T{
		line(-1, 0.5, 0.6, 0.5),
		line(0.4, 0.5, 2, 0.5),
	}
	res, err := Extract(context.Background(), roads, unitSquare(), Options{})
	require.NoError(t, err)
	assert.Empty(t, res.Points)
}

func TestExtract_OverlapWithCrossingContributesNothing(t *testing.T) {
	roads := []geom.T{
		line(0.1, 0.5, 0.9, 0.5),
		line(0.5, 0.1, 0.5, 0.5, 0.8, 0.5),
	}
	res, err := Extract(context.Background(), roads, unitSquare(), Options{})
	require.NoError(t, err)
	assert.Empty(t, res.Points)
}

func TestExtract_CollinearEndToEndIsPoint(t *testing.T) {
	roads := []geom.T{
		line(0.1, 0.5, 0.5, 0.5),
		line(0.5, 0.5, 0.9, 0.5),
	}
	res, err := Extract(context.Background(), roads, unitSquare(), Options{})
	require.NoError(t, err)
	assert.Equal(t, []model.LatLng{{Lat: 0.5, Lon: 0.5}}, res.Points)
}

func TestExtract_TJunction(t *testing.T) {
	roads := []geom.T{
		line(0.1, 0.5, 0.9, 0.5),
		line(0.5, 0.5, 0.5, 2),
	}
	res, err := Extract(context.Background(), roads, unitSquare(), Options{})
	require.NoError(t, err)
	assert.Equal(t, []model.LatLng{{Lat: 0.5, Lon: 0.5}}, res.Points)
}

func TestExtract_SharedVertexCountsOncePerPair(t *testing.T) {
	roads := []geom.T{
		line(0.2, 0.2, 0.5, 0.5, 0.8, 0.2),
		line(0.5, 0.1, 0.5, 0.9),
	}
	res, err := Extract(context.Background(), roads, unitSquare(), Options{})
	require.NoError(t, err)
	assert.Equal(t, []model.LatLng{{Lat: 0.5, Lon: 0.5}}, res.Points)
}

func TestExtract_MultiPointPairSortedByX(t *testing.T) {
	roads := []geom.T{
		line(0.7, 0.7, 0.5, 0.3, 0.3, 0.7, 0.1, 0.3),
		line(0, 0.5, 1, 0.5),
	}
	res, err := Extract(context.Background(), roads, unitSquare(), Options{})
	require.NoError(t, err)
	require.Len(t, res.Points, 3)
	for i, x := range []float64{0.2, 0.4, 0.6} {
		assert.InDelta(t, x, res.Points[i].Lon, 1e-12)
		assert.InDelta(t, 0.5, res.Points[i].Lat, 1e-12)
	}
}

func TestExtract_Boundary(t *testing.T) {
	roads := []geom.T{
		line(0.5, 0.5, 1.5, 0.5),
		line(1, 0, 1, 1),
	}

	res, err := Extract(context.Background(), roads, unitSquare(), Options{})
	require.NoError(t, err)
	assert.Empty(t, res.Points)

	res, err = Extract(context.Background(), roads, unitSquare(), Options{IncludeBoundary: true})
	require.NoError(t, err)
	assert.Equal(t, []model.LatLng{{Lat: 0.5, Lon: 1}}, res.Points)
}

func TestExtract_RegionHole(t *testing.T) {
	region := []geom.T{geom.NewPolygonFlat(geom.XY, []float64{
		0, 0, 10, 0, 10, 10, 0, 10, 0, 0,
		4, 4, 4, 6, 6, 6, 6, 4, 4, 4,
	}, []int{10, 20})}
	roads := []geom.T{
		line(1, 5, 9, 5),
		line(5, 1, 5, 9), // crosses the first in the hole
		line(2, 1, 2, 9), // crosses the first in the interior
	}
	res, err := Extract(context.Background(), roads, region, Options{})
	require.NoError(t, err)
	assert.Equal(t, []model.LatLng{{Lat: 5, Lon: 2}}, res.Points)
}

func TestExtract_MultiPolygonRegion(t *testing.T) {
	region := []geom.T{geom.NewMultiPolygonFlat(geom.XY, []float64{
		0, 0, 1, 0, 1, 1, 0, 1, 0, 0,
		2, 0, 3, 0, 3, 1, 2, 1, 2, 0,
	}, [][]int{{10}, {20}})}
	roads := []geom.T{
		line(-1, 0.5, 4, 0.5),
		line(0.5, -1, 0.5, 2),
		line(1.5, -1, 1.5, 2),
		line(2.5, -1, 2.5, 2),
	}
	res, err := Extract(context.Background(), roads, region, Options{})
	require.NoError(t, err)
	assert.Equal(t, []model.LatLng{{Lat: 0.5, Lon: 0.5}, {Lat: 0.5, Lon: 2.5}}, res.Points)
}

func TestExtract_FiltersNonPolylines(t *testing.T) {
	roads := []geom.T{
		line(-1, 0.5, 2, 0.5),
		geom.NewMultiLineStringFlat(geom.XY, []float64{0.5, -1, 0.5, 2}, []int{4}),
		geom.NewPointFlat(geom.XY, []float64{0.5, 0.5}),
		unitSquare()[0],
		line(0.3, 0.3, 0.3, 0.3), // degenerate
		nil,
	}
	res, err := Extract(context.Background(), roads, unitSquare(), Options{})
	require.NoError(t, err)
	assert.Equal(t, 6, res.Roads)
	assert.Equal(t, 1, res.Segments)
	assert.Empty(t, res.Points)
}

func TestExtract_NoCandidatesSkipsPairs(t *testing.T) {
	roads := []geom.T{
		line(5, 5, 6, 6),
		line(5, 6, 6, 5),
	}
	res, err := Extract(context.Background(), roads, unitSquare(), Options{})
	require.NoError(t, err)
	assert.Equal(t, 0, res.Candidates)
	assert.Equal(t, 0, res.Pairs)
	assert.NotNil(t, res.Points)
	assert.Empty(t, res.Points)
}

func TestExtract_RegionShape(t *testing.T) {
	sq := unitSquare()[0]
	tests := map[string][]geom.T{
		"none":      nil,
		"two":       {sq, sq},
		"not area":  {line(0, 0, 1, 1)},
		"nil":       {nil},
		"too small": {geom.NewPolygonFlat(geom.XY, []float64{0, 0, 1, 1}, []int{4})},
	}
	for name, region := range tests {
		t.Run(name, func(t *testing.T) {
			res, err := Extract(context.Background(), []geom.T{line(0, 0, 1, 1)}, region, Options{})
			require.Error(t, err)
			assert.Nil(t, res)
			assert.True(t, errors.Is(err, ErrInputShape))
			assert.Equal(t, KindInputShape, KindOf(err))
		})
	}
}

func TestSingleRegion_SharedByExtractAndLoadRegion(t *testing.T) {
	sq := unitSquare()[0]
	_, err := singleRegion([]geom.T{sq, sq})
	require.Error(t, err)
	assert.Equal(t, KindInputShape, KindOf(err))
	assert.Contains(t, err.Error(), "found 2")

	_, err = singleRegion([]geom.T{line(0, 0, 1, 1)})
	assert.Equal(t, KindInputShape, KindOf(err))

	r, err := singleRegion([]geom.T{sq})
	require.NoError(t, err)
	assert.True(t, r.Contains(Point{0.5, 0.5}, false))
}

func TestExtract_NonFiniteIsComputationError(t *testing.T) {
	_, err := Extract(context.Background(), []geom.T{line(0, 0, math.NaN(), 1)}, unitSquare(), Options{})
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrComputation)
}

func TestExtract_Cancelled(t *testing.T) {
	var roads []geom.T
	for i := 0; i < 50; i++ {
		y := 0.01 + float64(i)*0.019
		roads = append(roads, line(0.1, y, 0.9, y))
	}
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := Extract(ctx, roads, unitSquare(), Options{})
	require.Error(t, err)
	assert.Equal(t, KindComputation, KindOf(err))
	assert.ErrorIs(t, err, context.Canceled)
}

func TestExtract_PointsAlwaysContainedAndIdempotent(t *testing.T) {
	rng := rand.New(rand.NewSource(7))
	var roads []geom.T
	for i := 0; i < 60; i++ {
		coords := make([]float64, 0, 6)
		for k := 0; k < 3; k++ {
			coords = append(coords, rng.Float64()*3-1, rng.Float64()*3-1)
		}
		roads = append(roads, line(coords...))
	}

	first, err := Extract(context.Background(), roads, unitSquare(), Options{})
	require.NoError(t, err)
	require.NotEmpty(t, first.Points)
	for _, p := range first.Points {
		assert.True(t, p.Lon > 0 && p.Lon < 1 && p.Lat > 0 && p.Lat < 1, "point %v outside region", p)
	}

	second, err := Extract(context.Background(), roads, unitSquare(), Options{})
	require.NoError(t, err)
	assert.ElementsMatch(t, first.Points, second.Points)
}

func TestKindOf(t *testing.T) {
	assert.Equal(t, Kind(""), KindOf(nil))
	assert.Equal(t, Kind(""), KindOf(errors.New("plain")))
	assert.Equal(t, KindGeometryLoad, KindOf(newError(KindGeometryLoad, errors.New("x"))))
	assert.False(t, errors.Is(newError(KindGeometryLoad, errors.New("x")), ErrInputShape))
}

func writeFile(t *testing.T, dir, name, content string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

const squareFeature = `{"type":"Feature","properties":{},"geometry":{"type":"Polygon","coordinates":[[[0,0],[1,0],[1,1],[0,1],[0,0]]]}}`

func TestExtractFiles(t *testing.T) {
	dir := t.TempDir()
	roads := writeFile(t, dir, "roads.geojson", `{"type":"FeatureCollection","features":[
		{"type":"Feature","properties":{},"geometry":{"type":"LineString","coordinates":[[-1,0.5],[2,0.5]]}},
		{"type":"Feature","properties":{},"geometry":{"type":"LineString","coordinates":[[0.5,-1],[0.5,2]]}}
	]}`)
	region := writeFile(t, dir, "region.geojson", `{"type":"FeatureCollection","features":[`+squareFeature+`]}`)

	res, err := ExtractFiles(context.Background(), roads, region, Options{})
	require.NoError(t, err)
	assert.Equal(t, []model.LatLng{{Lat: 0.5, Lon: 0.5}}, res.Points)
}

func TestExtractFiles_Errors(t *testing.T) {
	dir := t.TempDir()
	region := writeFile(t, dir, "region.geojson", squareFeature)
	twoRegions := writeFile(t, dir, "two.geojson", `{"type":"FeatureCollection","features":[`+squareFeature+`,`+squareFeature+`]}`)
	roads := writeFile(t, dir, "roads.wkt", "LINESTRING (0 0, 1 1)\n")
	broken := writeFile(t, dir, "broken.geojson", `{"type":`)

	_, err := ExtractFiles(context.Background(), filepath.Join(dir, "missing.shp"), region, Options{})
	assert.ErrorIs(t, err, ErrGeometryLoad)

	_, err = ExtractFiles(context.Background(), broken, region, Options{})
	assert.ErrorIs(t, err, ErrGeometryLoad)

	// WKT has no CRS of its own.
	_, err = ExtractFiles(context.Background(), roads, region, Options{})
	assert.ErrorIs(t, err, ErrGeometryLoad)

	opts := Options{}
	opts.Load.DefaultCRS = "EPSG:4326"
	_, err = ExtractFiles(context.Background(), roads, twoRegions, opts)
	assert.ErrorIs(t, err, ErrInputShape)

	res, err := ExtractFiles(context.Background(), roads, region, opts)
	require.NoError(t, err)
	assert.Empty(t, res.Points)
}

func TestSegmentIntersection(t *testing.T) {
	p, hit := segmentIntersection(Point{0, 0}, Point{2, 2}, Point{0, 2}, Point{2, 0})
	assert.Equal(t, pointHit, hit)
	assert.Equal(t, Point{1, 1}, p)

	_, hit = segmentIntersection(Point{0, 0}, Point{1, 0}, Point{0, 1}, Point{1, 1})
	assert.Equal(t, noHit, hit)

	_, hit = segmentIntersection(Point{0, 0}, Point{2, 0}, Point{1, 0}, Point{3, 0})
	assert.Equal(t, overlapHit, hit)

	_, hit = segmentIntersection(Point{0, 0}, Point{1, 0}, Point{2, 0}, Point{3, 0})
	assert.Equal(t, noHit, hit)

	_, hit = segmentIntersection(Point{0, 0}, Point{1, 0}, Point{2, -1}, Point{2, 1})
	assert.Equal(t, noHit, hit)

	p, hit = segmentIntersection(Point{0, 0}, Point{0, 2}, Point{0, 2}, Point{0, 5})
	assert.Equal(t, pointHit, hit)
	assert.Equal(t, Point{0, 2}, p)

	// Reversed direction, still touching end to end.
	p, hit = segmentIntersection(Point{0, 2}, Point{0, 0}, Point{0, 5}, Point{0, 2})
	assert.Equal(t, pointHit, hit)
	assert.Equal(t, Point{0, 2}, p)

	// An endpoint on the other segment's interior is returned exactly.
	p, hit = segmentIntersection(Point{0.1, 0.3}, Point{0.9, 0.3}, Point{0.7, 0.3}, Point{0.7, 2})
	assert.Equal(t, pointHit, hit)
	assert.Equal(t, Point{0.7, 0.3}, p)

	// One segment contains the other.
	_, hit = segmentIntersection(Point{0, 0}, Point{4, 4}, Point{1, 1}, Point{2, 2})
	assert.Equal(t, overlapHit, hit)

	// Proper crossing far from the origin keeps full precision.
	p, hit = segmentIntersection(Point{-79.4, 43.65}, Point{-79.3, 43.65}, Point{-79.35, 43.6}, Point{-79.35, 43.7})
	assert.Equal(t, pointHit, hit)
	assert.InDelta(t, -79.35, p.X, 1e-12)
	assert.InDelta(t, 43.65, p.Y, 1e-12)
}

func TestRegionLocate(t *testing.T) {
	reg, err := NewRegion(unitSquare()[0])
	require.NoError(t, err)

	assert.Equal(t, interior, reg.locate(Point{0.5, 0.5}))
	assert.Equal(t, boundary, reg.locate(Point{0, 0.5}))
	assert.Equal(t, boundary, reg.locate(Point{1, 1}))
	assert.Equal(t, exterior, reg.locate(Point{1.5, 0.5}))
	assert.Equal(t, exterior, reg.locate(Point{-0.1, 0.5}))
}

func TestRegionLocate_HolesAndParts(t *testing.T) {
	mp := geom.NewMultiPolygonFlat(geom.XY, []float64{
		0, 0, 1, 0, 1, 1, 0, 1, 0, 0,
		0.4, 0.4, 0.4, 0.6, 0.6, 0.6, 0.6, 0.4, 0.4, 0.4,
		2, 2, 3, 2, 3, 3, 2, 3, 2, 2,
	}, [][]int{{10, 20}, {30}})
	reg, err := NewRegion(mp)
	require.NoError(t, err)

	tests := []struct {
		p    Point
		want placement
	}{
		{Point{0.2, 0.2}, interior},
		{Point{0.5, 0.5}, exterior},
		{Point{0.4, 0.5}, boundary},
		{Point{0.6, 0.6}, boundary},
		{Point{2.5, 2.5}, interior},
		{Point{3, 2.5}, boundary},
		{Point{1.5, 1.5}, exterior},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, reg.locate(tt.p), "%v", tt.p)
	}

	// An open ring is closed before use.
	open := geom.NewPolygonFlat(geom.XY, []float64{0, 0, 1, 0, 1, 1, 0, 1}, []int{8})
	reg, err = NewRegion(open)
	require.NoError(t, err)
	assert.Equal(t, boundary, reg.locate(Point{0, 0.5}))
	assert.Equal(t, interior, reg.locate(Point{0.5, 0.5}))
}

func TestRegionIntersects(t *testing.T) {
	reg, err := NewRegion(unitSquare()[0])
	require.NoError(t, err)

	seg := func(coords ...float64) *Segment {
		s, ok, err := NewSegment(line(coords...))
		require.NoError(t, err)
		require.True(t, ok)
		return s
	}
	assert.True(t, reg.Intersects(seg(0.2, 0.2, 0.8, 0.8)), "inside")
	assert.True(t, reg.Intersects(seg(-1, 0.5, 2, 0.5)), "crossing with no vertex inside")
	assert.True(t, reg.Intersects(seg(1, -1, 1, 2)), "along an edge")
	assert.False(t, reg.Intersects(seg(-1, 1.5, 0.6, 1.1, 2, 1.5)), "near miss")
	assert.False(t, reg.Intersects(seg(5, 5, 6, 6)), "disjoint")
}

func TestExtractGeoJSON(t *testing.T) {
	roads := []byte(`{"type":"FeatureCollection","features":[
		{"type":"Feature","properties":{},"geometry":{"type":"LineString","coordinates":[[-1,0.5],[2,0.5]]}},
		{"type":"Feature","properties":{},"geometry":{"type":"LineString","coordinates":[[0.5,-1],[0.5,2]]}}
	]}`)

	res, err := ExtractGeoJSON(context.Background(), roads, []byte(squareFeature), Options{})
	require.NoError(t, err)
	assert.Equal(t, []model.LatLng{{Lat: 0.5, Lon: 0.5}}, res.Points)

	_, err = ExtractGeoJSON(context.Background(), []byte(`{`), []byte(squareFeature), Options{})
	assert.ErrorIs(t, err, ErrGeometryLoad)

	_, err = ExtractGeoJSON(context.Background(), roads, []byte(`{"type":"FeatureCollection","features":[]}`), Options{})
	assert.ErrorIs(t, err, ErrInputShape)
}

func TestLoadRegion(t *testing.T) {
	dir := t.TempDir()
	region := writeFile(t, dir, "region.geojson", squareFeature)
	two := writeFile(t, dir, "two.geojson", `{"type":"FeatureCollection","features":[`+squareFeature+`,`+squareFeature+`]}`)

	r, err := LoadRegion(region, geosource.LoadOptions{})
	require.NoError(t, err)
	assert.True(t, r.Contains(Point{X: 0.5, Y: 0.5}, false))
	assert.False(t, r.Contains(Point{X: 1, Y: 0.5}, false))

	_, err = LoadRegion(two, geosource.LoadOptions{})
	assert.ErrorIs(t, err, ErrInputShape)

	empty := writeFile(t, dir, "empty.geojson", `{"type":"FeatureCollection","features":[]}`)
	_, err = LoadRegion(empty, geosource.LoadOptions{})
	assert.ErrorIs(t, err, ErrInputShape)

	road := writeFile(t, dir, "road.geojson", `{"type":"Feature","properties":{},"geometry":{"type":"LineString","coordinates":[[0,0],[1,1]]}}`)
	_, err = LoadRegion(road, geosource.LoadOptions{})
	assert.ErrorIs(t, err, ErrInputShape)

	_, err = LoadRegion(filepath.Join(dir, "missing.geojson"), geosource.LoadOptions{})
	assert.ErrorIs(t, err, ErrGeometryLoad)
}
