package api

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"github.com/sells-group/walkability-cli/internal/intersect"
	"github.com/sells-group/walkability-cli/internal/model"
	"github.com/sells-group/walkability-cli/internal/store"
)

// ExtractRequest is the body of POST /v1/intersections.
type ExtractRequest struct {
	Roads           json.RawMessage `json:"roads"`
	Region          json.RawMessage `json:"region"`
	IncludeBoundary bool            `json:"include_boundary"`
}

// ExtractResponse lists the intersections as [lat, lon] pairs.
type ExtractResponse struct {
	Count         int          `json:"count"`
	Intersections [][2]float64 `json:"intersections"`
}

func (s *Server) health(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) extract(w http.ResponseWriter, r *http.Request) {
	var req ExtractRequest
	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, s.opts.MaxBodyBytes)).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if len(req.Roads) == 0 || len(req.Region) == 0 {
		writeError(w, http.StatusBadRequest, "roads and region are required")
		return
	}

	key := requestKey(req)
	if s.cache != nil {
		if cached := s.cache.Get(key); cached != nil {
			w.Header().Set("Content-Type", "application/json")
			w.Header().Set("X-Cache", "hit")
			_, _ = w.Write(cached)
			return
		}
	}

	res, err := intersect.ExtractGeoJSON(r.Context(), req.Roads, req.Region, intersect.Options{IncludeBoundary: req.IncludeBoundary})
	if err != nil {
		writeJSON(w, http.StatusUnprocessableEntity, errorBody{
			Error: err.Error(),
			Kind:  string(intersect.KindOf(err)),
		})
		return
	}

	resp := ExtractResponse{Count: len(res.Points), Intersections: make([][2]float64, len(res.Points))}
	for i, p := range res.Points {
		resp.Intersections[i] = [2]float64{p.Lat, p.Lon}
	}
	data, err := json.Marshal(resp)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "encode response")
		return
	}
	if s.cache != nil {
		s.cache.Put(key, data)
	}
	w.Header().Set("Content-Type", "application/json")
	w.Header().Set("X-Cache", "miss")
	_, _ = w.Write(data)
}

// requestKey digests the inputs that determine an extraction result.
func requestKey(req ExtractRequest) string {
	h := sha256.New()
	h.Write(req.Roads)
	h.Write([]byte{0})
	h.Write(req.Region)
	if req.IncludeBoundary {
		h.Write([]byte{1})
	}
	return hex.EncodeToString(h.Sum(nil))
}

func (s *Server) cacheStats(w http.ResponseWriter, _ *http.Request) {
	if s.cache == nil {
		writeJSON(w, http.StatusOK, CacheStats{})
		return
	}
	writeJSON(w, http.StatusOK, s.cache.Stats())
}

func (s *Server) listRuns(w http.ResponseWriter, r *http.Request) {
	if s.store == nil {
		writeError(w, http.StatusServiceUnavailable, "store not configured")
		return
	}

	q := r.URL.Query()
	filter := store.RunFilter{
		Status: model.RunStatus(q.Get("status")),
		Mode:   model.RunMode(q.Get("mode")),
		Limit:  50,
	}
	for name, dst := range map[string]*int{"limit": &filter.Limit, "offset": &filter.Offset} {
		if v := q.Get(name); v != "" {
			n, err := strconv.Atoi(v)
			if err != nil || n < 0 {
				writeError(w, http.StatusBadRequest, "invalid "+name)
				return
			}
			*dst = n
		}
	}

	runs, err := s.store.ListRuns(r.Context(), filter)
	if err != nil {
		zap.L().Error("api: list runs", zap.Error(err))
		writeError(w, http.StatusInternalServerError, "list runs failed")
		return
	}
	if runs == nil {
		runs = []model.Run{}
	}
	writeJSON(w, http.StatusOK, runs)
}

func (s *Server) getRun(w http.ResponseWriter, r *http.Request) {
	if s.store == nil {
		writeError(w, http.StatusServiceUnavailable, "store not configured")
		return
	}
	id := chi.URLParam(r, "id")
	run, err := s.store.GetRun(r.Context(), id)
	if errors.Is(err, store.ErrNotFound) {
		writeError(w, http.StatusNotFound, "run not found")
		return
	}
	if err != nil {
		zap.L().Error("api: get run", zap.String("run_id", id), zap.Error(err))
		writeError(w, http.StatusInternalServerError, "get run failed")
		return
	}
	writeJSON(w, http.StatusOK, run)
}

func (s *Server) runIntersections(w http.ResponseWriter, r *http.Request) {
	if s.store == nil {
		writeError(w, http.StatusServiceUnavailable, "store not configured")
		return
	}
	id := chi.URLParam(r, "id")
	if _, err := s.store.GetRun(r.Context(), id); err != nil {
		if errors.Is(err, store.ErrNotFound) {
			writeError(w, http.StatusNotFound, "run not found")
			return
		}
		zap.L().Error("api: get run", zap.String("run_id", id), zap.Error(err))
		writeError(w, http.StatusInternalServerError, "get run failed")
		return
	}

	points, err := s.store.ListIntersections(r.Context(), id)
	if err != nil {
		zap.L().Error("api: list intersections", zap.String("run_id", id), zap.Error(err))
		writeError(w, http.StatusInternalServerError, "list intersections failed")
		return
	}
	resp := ExtractResponse{Count: len(points), Intersections: make([][2]float64, len(points))}
	for i, p := range points {
		resp.Intersections[i] = [2]float64{p.Lat, p.Lon}
	}
	writeJSON(w, http.StatusOK, resp)
}
