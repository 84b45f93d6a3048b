package adapter

import (
	"context"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// newMockAdapter returns a BaseSQLAdapter backed by sqlmock.
func newMockAdapter(t *testing.T) (*BaseSQLAdapter, sqlmock.Sqlmock) {
	t.Helper()
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })
	return &BaseSQLAdapter{DB: db}, mock
}

func TestBaseSQLAdapter_NotConnected(t *testing.T) {
	ctx := context.Background()
	base := &BaseSQLAdapter{}

	assert.False(t, base.IsConnected())
	assert.NoError(t, base.Close())

	err := base.Exec(ctx, "SELECT 1")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "database connection not established")

	rows, err := base.Query(ctx, "SELECT 1")
	require.Error(t, err)
	assert.Nil(t, rows)

	cols, err := base.Describe(ctx, "DESCRIBE (SELECT 1);")
	require.Error(t, err)
	assert.Nil(t, cols)
}

func TestBaseSQLAdapter_Exec(t *testing.T) {
	tests := []struct {
		name      string
		setupMock func(mock sqlmock.Sqlmock)
		sql       string
		expectErr string
	}{
		{
			name: "exec success",
			setupMock: func(mock sqlmock.Sqlmock) {
				mock.ExpectExec("CREATE OR REPLACE VIEW data").WillReturnResult(sqlmock.NewResult(0, 0))
			},
			sql: "CREATE OR REPLACE VIEW data AS SELECT * FROM read_csv('x.csv');",
		},
		{
			name: "exec with error",
			setupMock: func(mock sqlmock.Sqlmock) {
				mock.ExpectExec("INVALID SQL").WillReturnError(assert.AnError)
			},
			sql:       "INVALID SQL",
			expectErr: "failed to execute SQL",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			base, mock := newMockAdapter(t)
			tt.setupMock(mock)

			err := base.Exec(context.Background(), tt.sql)
			if tt.expectErr != "" {
				require.Error(t, err)
				assert.Contains(t, err.Error(), tt.expectErr)
				assert.ErrorIs(t, err, assert.AnError)
			} else {
				assert.NoError(t, err)
			}
			assert.NoError(t, mock.ExpectationsWereMet())
		})
	}
}

func TestBaseSQLAdapter_Query(t *testing.T) {
	base, mock := newMockAdapter(t)
	mock.ExpectQuery("SELECT").WillReturnRows(
		sqlmock.NewRows([]string{"id", "name"}).AddRow(1, "alice").AddRow(2, "bob"),
	)

	rows, err := base.Query(context.Background(), "SELECT id, name FROM data")
	require.NoError(t, err)
	defer func() { _ = rows.Close() }()

	count := 0
	for rows.Next() {
		count++
	}
	require.NoError(t, rows.Err())
	assert.Equal(t, 2, count)
}

func TestBaseSQLAdapter_Describe(t *testing.T) {
	tests := []struct {
		name      string
		rows      *sqlmock.Rows
		err       error
		expected  []Column
		expectErr string
	}{
		{
			name: "duckdb describe shape",
			rows: sqlmock.NewRows([]string{"column_name", "column_type", "null", "key", "default", "extra"}).
				AddRow("id", "BIGINT", "YES", nil, nil, nil).
				AddRow([]byte("name"), []byte("VARCHAR"), "YES", nil, nil, nil),
			expected: []Column{{Name: "id", Type: "BIGINT"}, {Name: "name", Type: "VARCHAR"}},
		},
		{
			name:      "missing type column",
			rows:      sqlmock.NewRows([]string{"column_name"}).AddRow("id"),
			expectErr: "missing column_name/column_type",
		},
		{
			name:      "engine failure",
			err:       assert.AnError,
			expectErr: "failed to describe query",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			base, mock := newMockAdapter(t)
			expect := mock.ExpectQuery("DESCRIBE")
			if tt.err != nil {
				expect.WillReturnError(tt.err)
			} else {
				expect.WillReturnRows(tt.rows)
			}

			cols, err := base.Describe(context.Background(), "DESCRIBE (SELECT * FROM data);")
			if tt.expectErr != "" {
				require.Error(t, err)
				assert.Contains(t, err.Error(), tt.expectErr)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.expected, cols)
		})
	}
}
