package db

import (
	"context"
	"errors"
	"testing"

	"github.com/jackc/pgx/v5"
	"github.com/pashagolub/pgxmock/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var memberUpsert = UpsertConfig{
	Table:        "members",
	Columns:      []string{"id", "organization_id", "name", "email"},
	ConflictKeys: []string{"id"},
}

func TestBulkUpsert_EmptyRows(t *testing.T) {
	n, err := BulkUpsert(context.Background(), nil, memberUpsert, nil)
	assert.NoError(t, err)
	assert.Equal(t, int64(0), n)
}

func TestBulkUpsert_NoColumns(t *testing.T) {
	_, err := BulkUpsert(context.Background(), nil, UpsertConfig{
		Table:        "members",
		ConflictKeys: []string{"id"},
	}, [][]any{{"m1"}})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "no columns specified")
}

func TestBulkUpsert_NoConflictKeys(t *testing.T) {
	_, err := BulkUpsert(context.Background(), nil, UpsertConfig{
		Table:   "members",
		Columns: []string{"id", "name"},
	}, [][]any{{"m1", "Ann"}})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "no conflict keys specified")
}

func TestBulkUpsert_Success(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	mock.ExpectBegin()
	mock.ExpectExec(`CREATE TEMP TABLE "_tmp_upsert_members" \(LIKE "members" INCLUDING DEFAULTS\)`).
		WillReturnResult(pgxmock.NewResult("CREATE TABLE", 0))
	mock.ExpectCopyFrom(pgx.Identifier{"_tmp_upsert_members"}, memberUpsert.Columns).WillReturnResult(2)
	mock.ExpectExec(`INSERT INTO "members" .* ON CONFLICT \("id"\) DO UPDATE SET`).
		WillReturnResult(pgxmock.NewResult("INSERT", 2))
	mock.ExpectCommit()

	rows := [][]any{{"m1", "org1", "Ann", "ann@example.com"}, {"m2", "org1", "Bo", ""}}
	n, err := BulkUpsert(context.Background(), mock, memberUpsert, rows)
	require.NoError(t, err)
	assert.Equal(t, int64(2), n)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestBulkUpsert_CopyFailsRollsBack(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	mock.ExpectBegin()
	mock.ExpectExec(`CREATE TEMP TABLE`).WillReturnResult(pgxmock.NewResult("CREATE TABLE", 0))
	mock.ExpectCopyFrom(pgx.Identifier{"_tmp_upsert_members"}, memberUpsert.Columns).
		WillReturnError(errors.New("bad row"))
	mock.ExpectRollback()

	_, err = BulkUpsert(context.Background(), mock, memberUpsert, [][]any{{"m1", "org1", "Ann", ""}})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "COPY into temp table for members")
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestMergeSQL(t *testing.T) {
	got := mergeSQL(memberUpsert, "_tmp")
	assert.Equal(t,
		`INSERT INTO "members" ("id", "organization_id", "name", "email") SELECT "id", "organization_id", "name", "email" FROM "_tmp" ON CONFLICT ("id") DO UPDATE SET "organization_id" = EXCLUDED."organization_id", "name" = EXCLUDED."name", "email" = EXCLUDED."email"`,
		got,
	)
}

func TestMergeSQL_OnlyKeysDoesNothing(t *testing.T) {
	got := mergeSQL(UpsertConfig{Table: "tags", Columns: []string{"id"}, ConflictKeys: []string{"id"}}, "_tmp")
	assert.Contains(t, got, "ON CONFLICT (\"id\") DO NOTHING")
}

func TestSanitizeTable(t *testing.T) {
	tests := []struct {
		input    string
		expected string
	}{
		{"members", `"members"`},
		{"connect.members", `"connect"."members"`},
	}
	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			assert.Equal(t, tt.expected, sanitizeTable(tt.input))
		})
	}
}
