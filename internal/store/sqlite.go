package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/rotisserie/eris"
	"github.com/twpayne/go-geom"
	_ "modernc.org/sqlite"

	"github.com/sells-group/walkability-cli/internal/geosource"
	"github.com/sells-group/walkability-cli/internal/model"
)

// SQLiteStore implements Store using modernc.org/sqlite.
type SQLiteStore struct {
	db *sql.DB
}

// NewSQLite opens a SQLite database at the given path and configures WAL mode.
func NewSQLite(dsn string) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: open")
	}
	for _, pragma := range []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA busy_timeout=5000",
		"PRAGMA synchronous=NORMAL",
	} {
		if _, err := db.Exec(pragma); err != nil {
			db.Close() //nolint:errcheck
			return nil, eris.Wrapf(err, "sqlite: exec %s", pragma)
		}
	}
	return &SQLiteStore{db: db}, nil
}

// Cache timestamps are unix seconds so expiry compares numerically.
const sqliteMigration = `
CREATE TABLE IF NOT EXISTS runs (
	id         TEXT PRIMARY KEY,
	area       TEXT NOT NULL,
	mode       TEXT NOT NULL,
	status     TEXT NOT NULL DEFAULT 'queued',
	region     BLOB,
	result     TEXT,
	created_at DATETIME NOT NULL DEFAULT (datetime('now')),
	updated_at DATETIME NOT NULL DEFAULT (datetime('now'))
);

CREATE TABLE IF NOT EXISTS run_phases (
	id         TEXT PRIMARY KEY,
	run_id     TEXT NOT NULL REFERENCES runs(id),
	name       TEXT NOT NULL,
	status     TEXT NOT NULL DEFAULT 'running',
	result     TEXT,
	started_at DATETIME NOT NULL DEFAULT (datetime('now'))
);

CREATE TABLE IF NOT EXISTS intersections (
	run_id TEXT NOT NULL REFERENCES runs(id),
	seq    INTEGER NOT NULL,
	lat    REAL NOT NULL,
	lon    REAL NOT NULL,
	PRIMARY KEY (run_id, seq)
);

CREATE TABLE IF NOT EXISTS place_cache (
	place_id   TEXT PRIMARY KEY,
	details    TEXT NOT NULL,
	cached_at  INTEGER NOT NULL,
	expires_at INTEGER NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_runs_status ON runs(status);
CREATE INDEX IF NOT EXISTS idx_runs_mode ON runs(mode);
CREATE INDEX IF NOT EXISTS idx_run_phases_run_id ON run_phases(run_id);
CREATE INDEX IF NOT EXISTS idx_place_cache_expires_at ON place_cache(expires_at);
`

func (s *SQLiteStore) Migrate(ctx context.Context) error {
	_, err := s.db.ExecContext(ctx, sqliteMigration)
	return eris.Wrap(err, "sqlite: migrate")
}

func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

func (s *SQLiteStore) CreateRun(ctx context.Context, area model.StudyArea, mode model.RunMode) (*model.Run, error) {
	id := uuid.New().String()
	now := time.Now().UTC()

	areaJSON, err := json.Marshal(area)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: marshal area")
	}

	_, err = s.db.ExecContext(ctx,
		`INSERT INTO runs (id, area, mode, status, created_at, updated_at) VALUES (?, ?, ?, ?, ?, ?)`,
		id, string(areaJSON), string(mode), string(model.RunStatusQueued), now, now,
	)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: insert run")
	}

	return &model.Run{
		ID:        id,
		Area:      area,
		Mode:      mode,
		Status:    model.RunStatusQueued,
		CreatedAt: now,
		UpdatedAt: now,
	}, nil
}

func (s *SQLiteStore) UpdateRunStatus(ctx context.Context, runID string, status model.RunStatus) error {
	res, err := s.db.ExecContext(ctx,
		`UPDATE runs SET status = ?, updated_at = ? WHERE id = ?`,
		string(status), time.Now().UTC(), runID,
	)
	if err != nil {
		return eris.Wrapf(err, "sqlite: update run status %s", runID)
	}
	return checkRowsAffected(res, "run", runID)
}

// UpdateRunResult stores the final result and marks the run complete, or
// failed when the result carries an error.
func (s *SQLiteStore) UpdateRunResult(ctx context.Context, runID string, result *model.RunResult) error {
	resultJSON, err := json.Marshal(result)
	if err != nil {
		return eris.Wrap(err, "sqlite: marshal result")
	}

	res, err := s.db.ExecContext(ctx,
		`UPDATE runs SET result = ?, status = ?, updated_at = ? WHERE id = ?`,
		string(resultJSON), string(runStatusFor(result)), time.Now().UTC(), runID,
	)
	if err != nil {
		return eris.Wrapf(err, "sqlite: update run result %s", runID)
	}
	return checkRowsAffected(res, "run", runID)
}

func (s *SQLiteStore) SetRunRegion(ctx context.Context, runID string, region geom.T) error {
	wkb, err := geosource.EncodeWKB(region)
	if err != nil {
		return eris.Wrap(err, "sqlite: encode region")
	}
	res, err := s.db.ExecContext(ctx,
		`UPDATE runs SET region = ?, updated_at = ? WHERE id = ?`,
		wkb, time.Now().UTC(), runID,
	)
	if err != nil {
		return eris.Wrapf(err, "sqlite: set run region %s", runID)
	}
	return checkRowsAffected(res, "run", runID)
}

// RunRegion returns the stored region of a run, or nil when none was set.
func (s *SQLiteStore) RunRegion(ctx context.Context, runID string) (geom.T, error) {
	var wkb []byte
	err := s.db.QueryRowContext(ctx, `SELECT region FROM runs WHERE id = ?`, runID).Scan(&wkb)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, notFound("run", runID)
	}
	if err != nil {
		return nil, eris.Wrapf(err, "sqlite: get run region %s", runID)
	}
	if len(wkb) == 0 {
		return nil, nil
	}
	return geosource.DecodeWKB(wkb)
}

func (s *SQLiteStore) GetRun(ctx context.Context, runID string) (*model.Run, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT id, area, mode, status, result, created_at, updated_at FROM runs WHERE id = ?`,
		runID,
	)
	r, err := scanRun(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, notFound("run", runID)
	}
	return r, err
}

func (s *SQLiteStore) ListRuns(ctx context.Context, filter RunFilter) ([]model.Run, error) {
	query := `SELECT id, area, mode, status, result, created_at, updated_at FROM runs WHERE 1=1`
	var args []any

	if filter.Status != "" {
		query += ` AND status = ?`
		args = append(args, string(filter.Status))
	}
	if filter.Mode != "" {
		query += ` AND mode = ?`
		args = append(args, string(filter.Mode))
	}
	query += ` ORDER BY created_at DESC`

	limit := filter.Limit
	if limit <= 0 {
		limit = 100
	}
	query += ` LIMIT ?`
	args = append(args, limit)

	if filter.Offset > 0 {
		query += ` OFFSET ?`
		args = append(args, filter.Offset)
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: list runs")
	}
	defer rows.Close() //nolint:errcheck

	var runs []model.Run
	for rows.Next() {
		r, err := scanRun(rows)
		if err != nil {
			return nil, err
		}
		runs = append(runs, *r)
	}
	return runs, eris.Wrap(rows.Err(), "sqlite: list runs iterate")
}

func (s *SQLiteStore) CreatePhase(ctx context.Context, runID string, name string) (*model.RunPhase, error) {
	id := uuid.New().String()
	now := time.Now().UTC()

	_, err := s.db.ExecContext(ctx,
		`INSERT INTO run_phases (id, run_id, name, status, started_at) VALUES (?, ?, ?, ?, ?)`,
		id, runID, name, string(model.PhaseStatusRunning), now,
	)
	if err != nil {
		return nil, eris.Wrapf(err, "sqlite: insert phase for run %s", runID)
	}

	return &model.RunPhase{
		ID:        id,
		RunID:     runID,
		Name:      name,
		Status:    model.PhaseStatusRunning,
		StartedAt: now,
	}, nil
}

func (s *SQLiteStore) CompletePhase(ctx context.Context, phaseID string, result *model.PhaseResult) error {
	resultJSON, err := json.Marshal(result)
	if err != nil {
		return eris.Wrap(err, "sqlite: marshal phase result")
	}

	res, err := s.db.ExecContext(ctx,
		`UPDATE run_phases SET status = ?, result = ? WHERE id = ?`,
		string(result.Status), string(resultJSON), phaseID,
	)
	if err != nil {
		return eris.Wrapf(err, "sqlite: complete phase %s", phaseID)
	}
	return checkRowsAffected(res, "phase", phaseID)
}

// SaveIntersections replaces the stored intersections of a run, keeping
// their order.
func (s *SQLiteStore) SaveIntersections(ctx context.Context, runID string, points []model.LatLng) (int64, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, eris.Wrap(err, "sqlite: begin intersections tx")
	}
	defer tx.Rollback() //nolint:errcheck

	if _, err := tx.ExecContext(ctx, `DELETE FROM intersections WHERE run_id = ?`, runID); err != nil {
		return 0, eris.Wrapf(err, "sqlite: clear intersections %s", runID)
	}
	stmt, err := tx.PrepareContext(ctx, `INSERT INTO intersections (run_id, seq, lat, lon) VALUES (?, ?, ?, ?)`)
	if err != nil {
		return 0, eris.Wrap(err, "sqlite: prepare intersection insert")
	}
	defer stmt.Close() //nolint:errcheck

	for i, p := range points {
		if _, err := stmt.ExecContext(ctx, runID, i, p.Lat, p.Lon); err != nil {
			return 0, eris.Wrapf(err, "sqlite: insert intersection %d for run %s", i, runID)
		}
	}
	if err := tx.Commit(); err != nil {
		return 0, eris.Wrap(err, "sqlite: commit intersections")
	}
	return int64(len(points)), nil
}

func (s *SQLiteStore) ListIntersections(ctx context.Context, runID string) ([]model.LatLng, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT lat, lon FROM intersections WHERE run_id = ? ORDER BY seq`, runID)
	if err != nil {
		return nil, eris.Wrapf(err, "sqlite: list intersections %s", runID)
	}
	defer rows.Close() //nolint:errcheck

	out := []model.LatLng{}
	for rows.Next() {
		var p model.LatLng
		if err := rows.Scan(&p.Lat, &p.Lon); err != nil {
			return nil, eris.Wrap(err, "sqlite: scan intersection")
		}
		out = append(out, p)
	}
	return out, eris.Wrap(rows.Err(), "sqlite: list intersections iterate")
}

// GetCachedPlace returns the unexpired cache entry for placeID, or nil on a miss.
func (s *SQLiteStore) GetCachedPlace(ctx context.Context, placeID string) (*model.PlaceCache, error) {
	var (
		detailsJSON       string
		cachedAt, expires int64
	)
	err := s.db.QueryRowContext(ctx,
		`SELECT details, cached_at, expires_at FROM place_cache WHERE place_id = ? AND expires_at > ?`,
		placeID, time.Now().Unix(),
	).Scan(&detailsJSON, &cachedAt, &expires)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: get cached place")
	}

	pc := model.PlaceCache{
		PlaceID:   placeID,
		CachedAt:  time.Unix(cachedAt, 0).UTC(),
		ExpiresAt: time.Unix(expires, 0).UTC(),
	}
	if err := json.Unmarshal([]byte(detailsJSON), &pc.Details); err != nil {
		return nil, eris.Wrap(err, "sqlite: unmarshal cached place")
	}
	return &pc, nil
}

func (s *SQLiteStore) SetCachedPlaces(ctx context.Context, details []model.PlaceDetails, ttl time.Duration) error {
	if len(details) == 0 {
		return nil
	}
	now := time.Now()
	expires := now.Add(ttl).Unix()

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return eris.Wrap(err, "sqlite: begin place cache tx")
	}
	defer tx.Rollback() //nolint:errcheck

	for _, d := range details {
		b, err := json.Marshal(d)
		if err != nil {
			return eris.Wrapf(err, "sqlite: marshal place %s", d.Place.ID)
		}
		_, err = tx.ExecContext(ctx,
			`INSERT INTO place_cache (place_id, details, cached_at, expires_at) VALUES (?, ?, ?, ?)
			 ON CONFLICT (place_id) DO UPDATE SET details = excluded.details,
			 cached_at = excluded.cached_at, expires_at = excluded.expires_at`,
			d.Place.ID, string(b), now.Unix(), expires,
		)
		if err != nil {
			return eris.Wrapf(err, "sqlite: set cached place %s", d.Place.ID)
		}
	}
	return eris.Wrap(tx.Commit(), "sqlite: commit place cache")
}

func (s *SQLiteStore) DeleteExpiredPlaces(ctx context.Context) (int, error) {
	res, err := s.db.ExecContext(ctx,
		`DELETE FROM place_cache WHERE expires_at <= ?`, time.Now().Unix())
	if err != nil {
		return 0, eris.Wrap(err, "sqlite: delete expired places")
	}
	n, err := res.RowsAffected()
	return int(n), eris.Wrap(err, "sqlite: rows affected")
}

// helpers

func checkRowsAffected(res sql.Result, entity, id string) error {
	n, err := res.RowsAffected()
	if err != nil {
		return eris.Wrap(err, "rows affected")
	}
	if n == 0 {
		return notFound(entity, id)
	}
	return nil
}

type scannable interface {
	Scan(dest ...any) error
}

func scanRun(row scannable) (*model.Run, error) {
	var r model.Run
	var areaJSON string
	var resultJSON sql.NullString

	err := row.Scan(&r.ID, &areaJSON, &r.Mode, &r.Status, &resultJSON, &r.CreatedAt, &r.UpdatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, err
	}
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: scan run")
	}

	if err := json.Unmarshal([]byte(areaJSON), &r.Area); err != nil {
		return nil, eris.Wrap(err, "sqlite: unmarshal area")
	}
	if resultJSON.Valid {
		r.Result = &model.RunResult{}
		if err := json.Unmarshal([]byte(resultJSON.String), r.Result); err != nil {
			return nil, eris.Wrap(err, "sqlite: unmarshal result")
		}
	}
	return &r, nil
}
