package api

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sells-group/walkability-cli/internal/model"
	"github.com/sells-group/walkability-cli/internal/store"
)

const (
	roadsDoc = `{"type":"FeatureCollection","features":[
		{"type":"Feature","properties":{},"geometry":{"type":"LineString","coordinates":[[-1,0.5],[2,0.5]]}},
		{"type":"Feature","properties":{},"geometry":{"type":"LineString","coordinates":[[0.5,-1],[0.5,2]]}},
		{"type":"Feature","properties":{},"geometry":{"type":"LineString","coordinates":[[-1,1],[2,1]]}}
	]}`
	squareDoc = `{"type":"Polygon","coordinates":[[[0,0],[1,0],[1,1],[0,1],[0,0]]]}`
)

func newTestStore(t *testing.T) *store.SQLiteStore {
	t.Helper()
	st, err := store.NewSQLite(filepath.Join(t.TempDir(), "api.db"))
	require.NoError(t, err)
	require.NoError(t, st.Migrate(context.Background()))
	t.Cleanup(func() { _ = st.Close() })
	return st
}

func do(t *testing.T, h http.Handler, method, path string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	switch b := body.(type) {
	case nil:
	case string:
		buf.WriteString(b)
	default:
		require.NoError(t, json.NewEncoder(&buf).Encode(b))
	}
	req := httptest.NewRequest(method, path, &buf)
	w := httptest.NewRecorder()
	h.ServeHTTP(w, req)
	return w
}

func extractBody(region string, includeBoundary bool) map[string]any {
	return map[string]any{
		"roads":            json.RawMessage(roadsDoc),
		"region":           json.RawMessage(region),
		"include_boundary": includeBoundary,
	}
}

func TestHealth(t *testing.T) {
	w := do(t, NewServer(nil, Options{}).Handler(), http.MethodGet, "/health", nil)
	assert.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `{"status":"ok"}`, w.Body.String())
}

func TestExtract(t *testing.T) {
	h := NewServer(nil, Options{}).Handler()

	w := do(t, h, http.MethodPost, "/v1/intersections", extractBody(squareDoc, false))
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	assert.JSONEq(t, `{"count":1,"intersections":[[0.5,0.5]]}`, w.Body.String())

	// The y=1 road crosses x=0.5 on the boundary.
	w = do(t, h, http.MethodPost, "/v1/intersections", extractBody(squareDoc, true))
	require.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `{"count":2,"intersections":[[0.5,0.5],[1,0.5]]}`, w.Body.String())
}

func TestExtract_EmptyResult(t *testing.T) {
	far := `{"type":"Polygon","coordinates":[[[10,10],[11,10],[11,11],[10,11],[10,10]]]}`
	w := do(t, NewServer(nil, Options{}).Handler(), http.MethodPost, "/v1/intersections", extractBody(far, false))
	require.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `{"count":0,"intersections":[]}`, w.Body.String())
}

func TestExtract_Failures(t *testing.T) {
	h := NewServer(nil, Options{}).Handler()
	two := `{"type":"FeatureCollection","features":[
		{"type":"Feature","properties":{},"geometry":` + squareDoc + `},
		{"type":"Feature","properties":{},"geometry":` + squareDoc + `}
	]}`

	tests := []struct {
		name   string
		body   any
		status int
		kind   string
	}{
		{"bad json", `{`, http.StatusBadRequest, ""},
		{"missing region", map[string]any{"roads": json.RawMessage(roadsDoc)}, http.StatusBadRequest, ""},
		{"two polygons", extractBody(two, false), http.StatusUnprocessableEntity, "input_shape"},
		{"malformed geometry", extractBody(`{"type":"Polygon","coordinates":"x"}`, false), http.StatusUnprocessableEntity, "geometry_load"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := do(t, h, http.MethodPost, "/v1/intersections", tt.body)
			assert.Equal(t, tt.status, w.Code)

			var body errorBody
			require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
			assert.NotEmpty(t, body.Error)
			assert.Equal(t, tt.kind, body.Kind)
		})
	}
}

func TestExtract_Cache(t *testing.T) {
	s := NewServer(nil, Options{CacheEntries: 10, CacheTTL: time.Hour})
	h := s.Handler()

	w := do(t, h, http.MethodPost, "/v1/intersections", extractBody(squareDoc, false))
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "miss", w.Header().Get("X-Cache"))

	w2 := do(t, h, http.MethodPost, "/v1/intersections", extractBody(squareDoc, false))
	require.Equal(t, http.StatusOK, w2.Code)
	assert.Equal(t, "hit", w2.Header().Get("X-Cache"))
	assert.Equal(t, w.Body.String(), w2.Body.String())

	// A different boundary mode is a different key.
	w3 := do(t, h, http.MethodPost, "/v1/intersections", extractBody(squareDoc, true))
	assert.Equal(t, "miss", w3.Header().Get("X-Cache"))

	w = do(t, h, http.MethodGet, "/v1/cache/stats", nil)
	var stats CacheStats
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &stats))
	assert.Equal(t, 2, stats.Entries)
	assert.Equal(t, int64(1), stats.Hits)
}

func TestRuns(t *testing.T) {
	st := newTestStore(t)
	ctx := context.Background()
	area := model.StudyArea{Name: "downtown", RoadsPath: "roads.shp", RegionPath: "region.shp"}

	run, err := st.CreateRun(ctx, area, model.RunModeSentiment)
	require.NoError(t, err)
	_, err = st.SaveIntersections(ctx, run.ID, []model.LatLng{{Lat: 43.65, Lon: -79.38}})
	require.NoError(t, err)
	other, err := st.CreateRun(ctx, area, model.RunModeExtract)
	require.NoError(t, err)
	require.NoError(t, st.UpdateRunResult(ctx, other.ID, &model.RunResult{Intersections: 0}))

	h := NewServer(st, Options{}).Handler()

	w := do(t, h, http.MethodGet, "/v1/runs", nil)
	require.Equal(t, http.StatusOK, w.Code)
	var runs []model.Run
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &runs))
	assert.Len(t, runs, 2)

	w = do(t, h, http.MethodGet, "/v1/runs?status=complete", nil)
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &runs))
	require.Len(t, runs, 1)
	assert.Equal(t, other.ID, runs[0].ID)

	w = do(t, h, http.MethodGet, "/v1/runs/"+run.ID, nil)
	require.Equal(t, http.StatusOK, w.Code)
	var got model.Run
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &got))
	assert.Equal(t, "downtown", got.Area.Name)
	assert.Equal(t, model.RunModeSentiment, got.Mode)

	w = do(t, h, http.MethodGet, "/v1/runs/"+run.ID+"/intersections", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `{"count":1,"intersections":[[43.65,-79.38]]}`, w.Body.String())

	w = do(t, h, http.MethodGet, "/v1/runs/missing", nil)
	assert.Equal(t, http.StatusNotFound, w.Code)
	w = do(t, h, http.MethodGet, "/v1/runs/missing/intersections", nil)
	assert.Equal(t, http.StatusNotFound, w.Code)

	w = do(t, h, http.MethodGet, "/v1/runs?limit=x", nil)
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

type failingStore struct {
	store.Store
}

func (failingStore) ListRuns(context.Context, store.RunFilter) ([]model.Run, error) {
	return nil, errors.New("database is locked")
}

func (failingStore) GetRun(context.Context, string) (*model.Run, error) {
	return nil, errors.New("database is locked")
}

func TestRuns_StoreErrors(t *testing.T) {
	h := NewServer(failingStore{}, Options{}).Handler()
	assert.Equal(t, http.StatusInternalServerError, do(t, h, http.MethodGet, "/v1/runs", nil).Code)
	assert.Equal(t, http.StatusInternalServerError, do(t, h, http.MethodGet, "/v1/runs/x", nil).Code)

	h = NewServer(nil, Options{}).Handler()
	assert.Equal(t, http.StatusServiceUnavailable, do(t, h, http.MethodGet, "/v1/runs", nil).Code)
}

func TestCORS(t *testing.T) {
	h := NewServer(nil, Options{AllowedOrigins: []string{"https://maps.example.com"}}).Handler()

	req := httptest.NewRequest(http.MethodOptions, "/v1/intersections", nil)
	req.Header.Set("Origin", "https://maps.example.com")
	req.Header.Set("Access-Control-Request-Method", http.MethodPost)
	w := httptest.NewRecorder()
	h.ServeHTTP(w, req)

	assert.Equal(t, "https://maps.example.com", w.Header().Get("Access-Control-Allow-Origin"))
}
