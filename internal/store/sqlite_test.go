package store

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/twpayne/go-geom"

	"github.com/sells-group/walkability-cli/internal/model"
)

func newTestSQLiteStore(t *testing.T) *SQLiteStore {
	t.Helper()
	dbPath := filepath.Join(t.TempDir(), "test.db")
	st, err := NewSQLite(dbPath)
	require.NoError(t, err)
	t.Cleanup(func() { st.Close() }) //nolint:errcheck
	require.NoError(t, st.Migrate(context.Background()))
	return st
}

var testArea = model.StudyArea{Name: "annex", RoadsPath: "roads.shp", RegionPath: "annex.shp"}

// --- Runs ---

func TestSQLite_CreateRun_And_GetRun(t *testing.T) {
	st := newTestSQLiteStore(t)
	ctx := context.Background()

	run, err := st.CreateRun(ctx, testArea, model.RunModeSentiment)
	require.NoError(t, err)
	assert.NotEmpty(t, run.ID)
	assert.Equal(t, model.RunStatusQueued, run.Status)

	got, err := st.GetRun(ctx, run.ID)
	require.NoError(t, err)
	assert.Equal(t, run.ID, got.ID)
	assert.Equal(t, testArea, got.Area)
	assert.Equal(t, model.RunModeSentiment, got.Mode)
	assert.Equal(t, model.RunStatusQueued, got.Status)
	assert.Nil(t, got.Result)
}

func TestSQLite_GetRun_NotFound(t *testing.T) {
	st := newTestSQLiteStore(t)

	_, err := st.GetRun(context.Background(), "missing")
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestSQLite_UpdateRunStatus(t *testing.T) {
	st := newTestSQLiteStore(t)
	ctx := context.Background()

	run, err := st.CreateRun(ctx, testArea, model.RunModeExtract)
	require.NoError(t, err)

	for _, status := range []model.RunStatus{model.RunStatusExtracting, model.RunStatusFetching, model.RunStatusScoring} {
		require.NoError(t, st.UpdateRunStatus(ctx, run.ID, status))
		got, err := st.GetRun(ctx, run.ID)
		require.NoError(t, err)
		assert.Equal(t, status, got.Status)
	}

	err = st.UpdateRunStatus(ctx, "missing", model.RunStatusFailed)
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestSQLite_UpdateRunResult(t *testing.T) {
	st := newTestSQLiteStore(t)
	ctx := context.Background()

	run, err := st.CreateRun(ctx, testArea, model.RunModeSentiment)
	require.NoError(t, err)

	result := &model.RunResult{
		Intersections:   12,
		Places:          2,
		SentimentScores: []model.SentimentScore{{PlaceID: "p1", Score: 80}, {PlaceID: "p2", Score: 40}},
		Summary:         &model.FiveNumberSummary{Min: 40, Q1: 50, Median: 60, Q3: 70, Max: 80, Count: 2},
		TotalCost:       0.12,
	}
	require.NoError(t, st.UpdateRunResult(ctx, run.ID, result))

	got, err := st.GetRun(ctx, run.ID)
	require.NoError(t, err)
	assert.Equal(t, model.RunStatusComplete, got.Status)
	require.NotNil(t, got.Result)
	assert.Equal(t, 12, got.Result.Intersections)
	assert.Equal(t, result.SentimentScores, got.Result.SentimentScores)
	assert.InDelta(t, 60, got.Result.Summary.Median, 1e-9)
}

func TestSQLite_UpdateRunResult_ErrorMarksFailed(t *testing.T) {
	st := newTestSQLiteStore(t)
	ctx := context.Background()

	run, err := st.CreateRun(ctx, testArea, model.RunModeExtract)
	require.NoError(t, err)
	require.NoError(t, st.UpdateRunResult(ctx, run.ID, &model.RunResult{Error: "input_shape: region must contain exactly one polygon"}))

	got, err := st.GetRun(ctx, run.ID)
	require.NoError(t, err)
	assert.Equal(t, model.RunStatusFailed, got.Status)
	assert.Contains(t, got.Result.Error, "input_shape")
}

func TestSQLite_ListRuns_Filters(t *testing.T) {
	st := newTestSQLiteStore(t)
	ctx := context.Background()

	a, err := st.CreateRun(ctx, testArea, model.RunModeSentiment)
	require.NoError(t, err)
	_, err = st.CreateRun(ctx, testArea, model.RunModeStreetView)
	require.NoError(t, err)
	_, err = st.CreateRun(ctx, testArea, model.RunModeSentiment)
	require.NoError(t, err)
	require.NoError(t, st.UpdateRunStatus(ctx, a.ID, model.RunStatusComplete))

	all, err := st.ListRuns(ctx, RunFilter{})
	require.NoError(t, err)
	assert.Len(t, all, 3)

	sentiment, err := st.ListRuns(ctx, RunFilter{Mode: model.RunModeSentiment})
	require.NoError(t, err)
	assert.Len(t, sentiment, 2)

	complete, err := st.ListRuns(ctx, RunFilter{Status: model.RunStatusComplete})
	require.NoError(t, err)
	require.Len(t, complete, 1)
	assert.Equal(t, a.ID, complete[0].ID)

	limited, err := st.ListRuns(ctx, RunFilter{Limit: 1, Offset: 1})
	require.NoError(t, err)
	assert.Len(t, limited, 1)
}

func TestSQLite_RunRegion(t *testing.T) {
	st := newTestSQLiteStore(t)
	ctx := context.Background()

	run, err := st.CreateRun(ctx, testArea, model.RunModeExtract)
	require.NoError(t, err)

	empty, err := st.RunRegion(ctx, run.ID)
	require.NoError(t, err)
	assert.Nil(t, empty)

	poly := geom.NewPolygonFlat(geom.XY, []float64{-79.41, 43.66, -79.39, 43.66, -79.39, 43.68, -79.41, 43.68, -79.41, 43.66}, []int{10})
	require.NoError(t, st.SetRunRegion(ctx, run.ID, poly))

	got, err := st.RunRegion(ctx, run.ID)
	require.NoError(t, err)
	p, ok := got.(*geom.Polygon)
	require.True(t, ok)
	assert.Equal(t, poly.FlatCoords(), p.FlatCoords())
	assert.Equal(t, 4326, p.SRID())

	assert.ErrorIs(t, st.SetRunRegion(ctx, "missing", poly), ErrNotFound)
}

// --- Phases ---

func TestSQLite_CreatePhase_And_CompletePhase(t *testing.T) {
	st := newTestSQLiteStore(t)
	ctx := context.Background()

	run, err := st.CreateRun(ctx, testArea, model.RunModeExtract)
	require.NoError(t, err)

	phase, err := st.CreatePhase(ctx, run.ID, "extract")
	require.NoError(t, err)
	assert.Equal(t, model.PhaseStatusRunning, phase.Status)
	assert.Equal(t, run.ID, phase.RunID)

	err = st.CompletePhase(ctx, phase.ID, &model.PhaseResult{
		Name:     "extract",
		Status:   model.PhaseStatusComplete,
		Duration: 42,
		Metadata: map[string]any{"points": 3},
	})
	require.NoError(t, err)

	err = st.CompletePhase(ctx, "missing", &model.PhaseResult{Status: model.PhaseStatusFailed})
	assert.ErrorIs(t, err, ErrNotFound)
}

// --- Intersections ---

func TestSQLite_Intersections_SaveAndList(t *testing.T) {
	st := newTestSQLiteStore(t)
	ctx := context.Background()

	run, err := st.CreateRun(ctx, testArea, model.RunModeExtract)
	require.NoError(t, err)

	empty, err := st.ListIntersections(ctx, run.ID)
	require.NoError(t, err)
	assert.Empty(t, empty)

	// Duplicates are kept and order is preserved.
	pts := []model.LatLng{{Lat: 0.5, Lon: 0.5}, {Lat: 0.5, Lon: 0.5}, {Lat: 43.6532, Lon: -79.3832}}
	n, err := st.SaveIntersections(ctx, run.ID, pts)
	require.NoError(t, err)
	assert.Equal(t, int64(3), n)

	got, err := st.ListIntersections(ctx, run.ID)
	require.NoError(t, err)
	assert.Equal(t, pts, got)

	// Saving again replaces the previous set.
	_, err = st.SaveIntersections(ctx, run.ID, pts[2:])
	require.NoError(t, err)
	got, err = st.ListIntersections(ctx, run.ID)
	require.NoError(t, err)
	assert.Equal(t, pts[2:], got)
}

// --- Place cache ---

func testDetails(id string) model.PlaceDetails {
	return model.PlaceDetails{
		Place:   model.Place{ID: id, Name: "Cafe " + id, Location: model.LatLng{Lat: 43.66, Lon: -79.4}},
		Rating:  4.5,
		Reviews: []model.Review{{Rating: 5, Text: "Great coffee"}},
	}
}

func TestSQLite_PlaceCache_SetAndGet(t *testing.T) {
	st := newTestSQLiteStore(t)
	ctx := context.Background()

	require.NoError(t, st.SetCachedPlaces(ctx, []model.PlaceDetails{testDetails("a"), testDetails("b")}, time.Hour))

	pc, err := st.GetCachedPlace(ctx, "b")
	require.NoError(t, err)
	require.NotNil(t, pc)
	assert.Equal(t, testDetails("b"), pc.Details)
	assert.True(t, pc.ExpiresAt.After(pc.CachedAt))
}

func TestSQLite_PlaceCache_Missing(t *testing.T) {
	st := newTestSQLiteStore(t)

	pc, err := st.GetCachedPlace(context.Background(), "nope")
	require.NoError(t, err)
	assert.Nil(t, pc)
}

func TestSQLite_PlaceCache_Overwrite(t *testing.T) {
	st := newTestSQLiteStore(t)
	ctx := context.Background()

	require.NoError(t, st.SetCachedPlaces(ctx, []model.PlaceDetails{testDetails("a")}, time.Hour))
	updated := testDetails("a")
	updated.Rating = 2
	require.NoError(t, st.SetCachedPlaces(ctx, []model.PlaceDetails{updated}, time.Hour))

	pc, err := st.GetCachedPlace(ctx, "a")
	require.NoError(t, err)
	require.NotNil(t, pc)
	assert.InDelta(t, 2, pc.Details.Rating, 1e-9)
}

func TestSQLite_PlaceCache_ExpiredAndDelete(t *testing.T) {
	st := newTestSQLiteStore(t)
	ctx := context.Background()

	require.NoError(t, st.SetCachedPlaces(ctx, []model.PlaceDetails{testDetails("old1"), testDetails("old2")}, -time.Hour))
	require.NoError(t, st.SetCachedPlaces(ctx, []model.PlaceDetails{testDetails("fresh")}, time.Hour))

	pc, err := st.GetCachedPlace(ctx, "old1")
	require.NoError(t, err)
	assert.Nil(t, pc)

	n, err := st.DeleteExpiredPlaces(ctx)
	require.NoError(t, err)
	assert.Equal(t, 2, n)

	pc, err = st.GetCachedPlace(ctx, "fresh")
	require.NoError(t, err)
	assert.NotNil(t, pc)
}

func TestSQLite_SetCachedPlaces_Empty(t *testing.T) {
	st := newTestSQLiteStore(t)
	assert.NoError(t, st.SetCachedPlaces(context.Background(), nil, time.Hour))
}

// --- Lifecycle ---

func TestSQLite_Migrate_Idempotent(t *testing.T) {
	st := newTestSQLiteStore(t)
	assert.NoError(t, st.Migrate(context.Background()))
}

func TestOpen_SQLite(t *testing.T) {
	dsn := filepath.Join(t.TempDir(), "open.db")
	st, err := Open(context.Background(), Config{Driver: "sqlite", DSN: dsn, AutoMigrate: true})
	require.NoError(t, err)
	defer st.Close() //nolint:errcheck

	_, err = st.ListRuns(context.Background(), RunFilter{})
	assert.NoError(t, err)
}

func TestOpen_UnknownDriver(t *testing.T) {
	_, err := Open(context.Background(), Config{Driver: "mysql"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unknown driver")
}
