package store

import (
	"context"
	"encoding/json"
	"fmt"
	"testing"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/pashagolub/pgxmock/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/twpayne/go-geom"

	"github.com/sells-group/walkability-cli/internal/model"
)

// newMockPostgresStore creates a PostgresStore backed by pgxmock for unit testing.
func newMockPostgresStore(t *testing.T) (*PostgresStore, pgxmock.PgxPoolIface) {
	t.Helper()
	mock, err := pgxmock.NewPool(pgxmock.QueryMatcherOption(pgxmock.QueryMatcherRegexp))
	require.NoError(t, err)
	t.Cleanup(func() { mock.Close() })

	return &PostgresStore{pool: mock}, mock
}

var runColumns = []string{"id", "area", "mode", "status", "result", "created_at", "updated_at"}

func TestPostgresStore_CreateRun(t *testing.T) {
	s, mock := newMockPostgresStore(t)

	mock.ExpectExec(`INSERT INTO runs`).
		WithArgs(pgxmock.AnyArg(), pgxmock.AnyArg(), "sentiment", "queued", pgxmock.AnyArg(), pgxmock.AnyArg()).
		WillReturnResult(pgxmock.NewResult("INSERT", 1))

	run, err := s.CreateRun(context.Background(), testArea, model.RunModeSentiment)
	require.NoError(t, err)
	assert.NotEmpty(t, run.ID)
	assert.Equal(t, model.RunStatusQueued, run.Status)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresStore_GetRun(t *testing.T) {
	s, mock := newMockPostgresStore(t)
	now := time.Now().UTC()

	areaJSON, _ := json.Marshal(testArea)
	resultJSON := []byte(`{"intersections":3,"places":0,"total_tokens":0,"total_cost":0,"phases":null}`)
	mock.ExpectQuery(`SELECT id, area, mode, status, result, created_at, updated_at FROM runs WHERE id = \$1`).
		WithArgs("run-1").
		WillReturnRows(pgxmock.NewRows(runColumns).
			AddRow("run-1", areaJSON, "extract", "complete", &resultJSON, now, now))

	run, err := s.GetRun(context.Background(), "run-1")
	require.NoError(t, err)
	assert.Equal(t, testArea, run.Area)
	assert.Equal(t, model.RunModeExtract, run.Mode)
	assert.Equal(t, model.RunStatusComplete, run.Status)
	require.NotNil(t, run.Result)
	assert.Equal(t, 3, run.Result.Intersections)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresStore_GetRun_NotFound(t *testing.T) {
	s, mock := newMockPostgresStore(t)

	mock.ExpectQuery(`SELECT id, area, mode, status, result, created_at, updated_at FROM runs WHERE id = \$1`).
		WithArgs("nonexistent-run").
		WillReturnError(pgx.ErrNoRows)

	_, err := s.GetRun(context.Background(), "nonexistent-run")
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrNotFound)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresStore_ListRuns_Filter(t *testing.T) {
	s, mock := newMockPostgresStore(t)
	now := time.Now().UTC()
	areaJSON, _ := json.Marshal(testArea)

	mock.ExpectQuery(`FROM runs WHERE true AND status = \$1 AND mode = \$2 ORDER BY created_at DESC LIMIT \$3 OFFSET \$4`).
		WithArgs("complete", "streetview", 10, 5).
		WillReturnRows(pgxmock.NewRows(runColumns).
			AddRow("r1", areaJSON, "streetview", "complete", (*[]byte)(nil), now, now).
			AddRow("r2", areaJSON, "streetview", "complete", (*[]byte)(nil), now, now))

	runs, err := s.ListRuns(context.Background(), RunFilter{
		Status: model.RunStatusComplete,
		Mode:   model.RunModeStreetView,
		Limit:  10,
		Offset: 5,
	})
	require.NoError(t, err)
	require.Len(t, runs, 2)
	assert.Equal(t, "r2", runs[1].ID)
	assert.Nil(t, runs[0].Result)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresStore_UpdateRunStatus_NotFound(t *testing.T) {
	s, mock := newMockPostgresStore(t)

	mock.ExpectExec(`UPDATE runs SET status`).
		WithArgs("failed", pgxmock.AnyArg(), "missing").
		WillReturnResult(pgxmock.NewResult("UPDATE", 0))

	err := s.UpdateRunStatus(context.Background(), "missing", model.RunStatusFailed)
	assert.ErrorIs(t, err, ErrNotFound)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresStore_UpdateRunResult_Failed(t *testing.T) {
	s, mock := newMockPostgresStore(t)

	mock.ExpectExec(`UPDATE runs SET result`).
		WithArgs(pgxmock.AnyArg(), "failed", pgxmock.AnyArg(), "run-1").
		WillReturnResult(pgxmock.NewResult("UPDATE", 1))

	err := s.UpdateRunResult(context.Background(), "run-1", &model.RunResult{Error: "boom"})
	require.NoError(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresStore_SetRunRegion(t *testing.T) {
	s, mock := newMockPostgresStore(t)

	mock.ExpectExec(`UPDATE runs SET region`).
		WithArgs(pgxmock.AnyArg(), pgxmock.AnyArg(), "run-1").
		WillReturnResult(pgxmock.NewResult("UPDATE", 1))

	poly := geom.NewPolygonFlat(geom.XY, []float64{0, 0, 1, 0, 1, 1, 0, 0}, []int{8})
	require.NoError(t, s.SetRunRegion(context.Background(), "run-1", poly))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresStore_CompletePhase(t *testing.T) {
	s, mock := newMockPostgresStore(t)

	mock.ExpectExec(`UPDATE run_phases SET status = \$1, result = \$2 WHERE id = \$3`).
		WithArgs("complete", pgxmock.AnyArg(), "phase-1").
		WillReturnResult(pgxmock.NewResult("UPDATE", 1))

	err := s.CompletePhase(context.Background(), "phase-1", &model.PhaseResult{Name: "places", Status: model.PhaseStatusComplete})
	require.NoError(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresStore_SaveIntersections_UsesCopy(t *testing.T) {
	s, mock := newMockPostgresStore(t)

	mock.ExpectExec(`DELETE FROM intersections WHERE run_id = \$1`).
		WithArgs("run-1").
		WillReturnResult(pgxmock.NewResult("DELETE", 0))
	mock.ExpectCopyFrom(pgx.Identifier{"intersections"}, []string{"run_id", "seq", "lat", "lon"}).
		WillReturnResult(2)

	n, err := s.SaveIntersections(context.Background(), "run-1", []model.LatLng{{Lat: 0.5, Lon: 0.5}, {Lat: 0.5, Lon: 0.5}})
	require.NoError(t, err)
	assert.Equal(t, int64(2), n)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresStore_ListIntersections(t *testing.T) {
	s, mock := newMockPostgresStore(t)

	mock.ExpectQuery(`SELECT lat, lon FROM intersections WHERE run_id = \$1 ORDER BY seq`).
		WithArgs("run-1").
		WillReturnRows(pgxmock.NewRows([]string{"lat", "lon"}).AddRow(43.65, -79.38).AddRow(43.66, -79.39))

	pts, err := s.ListIntersections(context.Background(), "run-1")
	require.NoError(t, err)
	assert.Equal(t, []model.LatLng{{Lat: 43.65, Lon: -79.38}, {Lat: 43.66, Lon: -79.39}}, pts)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresStore_GetCachedPlace_NotFound(t *testing.T) {
	s, mock := newMockPostgresStore(t)

	mock.ExpectQuery(`SELECT details, cached_at, expires_at FROM place_cache`).
		WithArgs("unknown").
		WillReturnError(pgx.ErrNoRows)

	pc, err := s.GetCachedPlace(context.Background(), "unknown")
	require.NoError(t, err)
	assert.Nil(t, pc)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresStore_GetCachedPlace_Hit(t *testing.T) {
	s, mock := newMockPostgresStore(t)
	now := time.Now().UTC()
	details, _ := json.Marshal(testDetails("p1"))

	mock.ExpectQuery(`SELECT details, cached_at, expires_at FROM place_cache`).
		WithArgs("p1").
		WillReturnRows(pgxmock.NewRows([]string{"details", "cached_at", "expires_at"}).
			AddRow(details, now, now.Add(time.Hour)))

	pc, err := s.GetCachedPlace(context.Background(), "p1")
	require.NoError(t, err)
	require.NotNil(t, pc)
	assert.Equal(t, testDetails("p1"), pc.Details)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresStore_SetCachedPlaces_BulkUpsert(t *testing.T) {
	s, mock := newMockPostgresStore(t)

	mock.ExpectBegin()
	mock.ExpectExec(`CREATE TEMP TABLE "_tmp_upsert_place_cache"`).
		WillReturnResult(pgxmock.NewResult("CREATE TABLE", 0))
	mock.ExpectCopyFrom(pgx.Identifier{"_tmp_upsert_place_cache"}, placeCacheColumns).WillReturnResult(2)
	mock.ExpectExec(`INSERT INTO "place_cache" .* ON CONFLICT \("place_id"\) DO UPDATE`).
		WillReturnResult(pgxmock.NewResult("INSERT", 2))
	mock.ExpectCommit()

	err := s.SetCachedPlaces(context.Background(), []model.PlaceDetails{testDetails("a"), testDetails("b")}, 24*time.Hour)
	require.NoError(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresStore_DeleteExpiredPlaces(t *testing.T) {
	s, mock := newMockPostgresStore(t)

	mock.ExpectExec(`DELETE FROM place_cache WHERE expires_at <= now\(\)`).
		WillReturnResult(pgxmock.NewResult("DELETE", 4))

	n, err := s.DeleteExpiredPlaces(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 4, n)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresStore_Migrate_Error(t *testing.T) {
	s, mock := newMockPostgresStore(t)

	mock.ExpectExec(`CREATE TABLE IF NOT EXISTS runs`).WillReturnError(fmt.Errorf("permission denied"))

	err := s.Migrate(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "postgres: migrate")
	assert.NoError(t, mock.ExpectationsWereMet())
}
