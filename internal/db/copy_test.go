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

func TestCopyFrom_EmptyRows(t *testing.T) {
	n, err := CopyFrom(context.TODO(), nil, "connect_cards", []string{"id", "name"}, nil)
	assert.NoError(t, err)
	assert.Equal(t, int64(0), n)
}

func TestCopyFrom_Success(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	mock.ExpectCopyFrom(pgx.Identifier{"connect_cards"}, []string{"id", "name"}).WillReturnResult(3)

	rows := [][]any{{"c1", "Ann"}, {"c2", "Bo"}, {"c3", ""}}
	n, err := CopyFrom(context.Background(), mock, "connect_cards", []string{"id", "name"}, rows)
	assert.NoError(t, err)
	assert.Equal(t, int64(3), n)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestCopyFrom_Error(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	mock.ExpectCopyFrom(pgx.Identifier{"connect_cards"}, []string{"id", "name"}).WillReturnError(fmt.Errorf("copy failed"))

	_, err = CopyFrom(context.Background(), mock, "connect_cards", []string{"id", "name"}, [][]any{{"c1", "Ann"}})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "COPY INTO connect_cards")
	assert.NoError(t, mock.ExpectationsWereMet())
}
