package db

import (
	"context"
	"fmt"
	"testing"

	"github.com/jackc/pgx/v5"
	"github.com/pashagolub/pgxmock/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var placeCacheCfg = UpsertConfig{
	Table:        "place_cache",
	Columns:      []string{"place_id", "details", "cached_at", "expires_at"},
	ConflictKeys: []string{"place_id"},
}

func TestBulkUpsert_EmptyRows(t *testing.T) {
	n, err := BulkUpsert(context.Background(), nil, placeCacheCfg, nil)
	assert.NoError(t, err)
	assert.Equal(t, int64(0), n)
}

func TestBulkUpsert_Validation(t *testing.T) {
	_, err := BulkUpsert(context.Background(), nil, UpsertConfig{Table: "t", ConflictKeys: []string{"id"}}, [][]any{{1}})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "no columns specified")

	_, err = BulkUpsert(context.Background(), nil, UpsertConfig{Table: "t", Columns: []string{"id"}}, [][]any{{1}})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "no conflict keys specified")
}

func TestBulkUpsert_Success(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	mock.ExpectBegin()
	mock.ExpectExec(`CREATE TEMP TABLE "_tmp_upsert_place_cache" \(LIKE "place_cache" INCLUDING DEFAULTS\)`).
		WillReturnResult(pgxmock.NewResult("CREATE TABLE", 0))
	mock.ExpectCopyFrom(pgx.Identifier{"_tmp_upsert_place_cache"}, placeCacheCfg.Columns).WillReturnResult(2)
	mock.ExpectExec(`INSERT INTO "place_cache" .* ON CONFLICT \("place_id"\) DO UPDATE SET "details" = EXCLUDED."details"`).
		WillReturnResult(pgxmock.NewResult("INSERT", 2))
	mock.ExpectCommit()

	rows := [][]any{{"a", []byte(`{}`), nil, nil}, {"b", []byte(`{}`), nil, nil}}
	n, err := BulkUpsert(context.Background(), mock, placeCacheCfg, rows)
	require.NoError(t, err)
	assert.Equal(t, int64(2), n)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestBulkUpsert_CopyError(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	mock.ExpectBegin()
	mock.ExpectExec(`CREATE TEMP TABLE`).WillReturnResult(pgxmock.NewResult("CREATE TABLE", 0))
	mock.ExpectCopyFrom(pgx.Identifier{"_tmp_upsert_place_cache"}, placeCacheCfg.Columns).
		WillReturnError(fmt.Errorf("disk full"))
	mock.ExpectRollback()

	_, err = BulkUpsert(context.Background(), mock, placeCacheCfg, [][]any{{"a", nil, nil, nil}})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "COPY into temp table")
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestUpsertSQL_DoNothing(t *testing.T) {
	cfg := UpsertConfig{Table: "walkability.places", Columns: []string{"id"}, ConflictKeys: []string{"id"}}
	got := upsertSQL(cfg, tempTableName(cfg.Table), nil)
	assert.Equal(t, `INSERT INTO "walkability"."places" ("id") SELECT "id" FROM "_tmp_upsert_walkability_places" ON CONFLICT ("id") DO NOTHING`, got)
}

func TestIdentifier(t *testing.T) {
	assert.Equal(t, `"simple"`, identifier("simple").Sanitize())
	assert.Equal(t, `"walkability"."runs"`, identifier("walkability.runs").Sanitize())
}
