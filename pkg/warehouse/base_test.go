package warehouse

import (
	"context"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBaseSQLWarehouse_Close(t *testing.T) {
	tests := []struct {
		name    string
		setupDB bool
	}{
		{name: "close with nil DB", setupDB: false},
		{name: "close with open DB", setupDB: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			base := &BaseSQLWarehouse{}

			if tt.setupDB {
				db, mock, err := sqlmock.New()
				require.NoError(t, err)
				mock.ExpectClose()
				base.DB = db
			}

			assert.NoError(t, base.Close())
		})
	}
}

func TestBaseSQLWarehouse_Exec(t *testing.T) {
	tests := []struct {
		name      string
		setupDB   bool
		setupMock func(mock sqlmock.Sqlmock)
		sql       string
		errMsg    string
	}{
		{
			name:    "exec without connection",
			setupDB: false,
			sql:     "SELECT 1",
			errMsg:  "warehouse connection not established",
		},
		{
			name:    "exec success",
			setupDB: true,
			setupMock: func(mock sqlmock.Sqlmock) {
				mock.ExpectExec("CREATE TABLE marketing").WillReturnResult(sqlmock.NewResult(0, 0))
			},
			sql: "CREATE TABLE marketing (Year INT)",
		},
		{
			name:    "exec with error",
			setupDB: true,
			setupMock: func(mock sqlmock.Sqlmock) {
				mock.ExpectExec("INVALID SQL").WillReturnError(assert.AnError)
			},
			sql:    "INVALID SQL",
			errMsg: "failed to execute SQL",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			base := &BaseSQLWarehouse{}

			if tt.setupDB {
				db, mock, err := sqlmock.New()
				require.NoError(t, err)
				defer func() { _ = db.Close() }()
				tt.setupMock(mock)
				base.DB = db
			}

			err := base.Exec(context.Background(), tt.sql)
			if tt.errMsg != "" {
				require.Error(t, err)
				assert.Contains(t, err.Error(), tt.errMsg)
				return
			}
			assert.NoError(t, err)
		})
	}
}

func TestBaseSQLWarehouse_Query(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer func() { _ = db.Close() }()

	rows := sqlmock.NewRowsWithColumnDefinition(
		sqlmock.NewColumn("Search_Term").OfType("VARCHAR", ""),
		sqlmock.NewColumn("TY_Search_Vol").OfType("BIGINT", int64(0)),
	).
		AddRow([]byte("shoes"), int64(120)).
		AddRow("boots", int64(80))
	mock.ExpectQuery("SELECT Search_Term").WillReturnRows(rows)

	base := &BaseSQLWarehouse{DB: db}
	tbl, err := base.Query(context.Background(), "SELECT Search_Term, TY_Search_Vol FROM search")
	require.NoError(t, err)

	assert.Equal(t, []string{"Search_Term", "TY_Search_Vol"}, tbl.ColumnNames())
	require.Equal(t, 2, tbl.Len())
	assert.Equal(t, "VARCHAR", tbl.Columns[0].Type)
	assert.Equal(t, "shoes", tbl.Rows[0][0], "[]byte values should be converted to string")
	assert.Equal(t, int64(80), tbl.Rows[1][1])
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestBaseSQLWarehouse_QueryErrors(t *testing.T) {
	t.Run("not connected", func(t *testing.T) {
		_, err := (&BaseSQLWarehouse{}).Query(context.Background(), "SELECT 1")
		require.Error(t, err)
		assert.Contains(t, err.Error(), "not established")
	})

	t.Run("driver error", func(t *testing.T) {
		db, mock, err := sqlmock.New()
		require.NoError(t, err)
		defer func() { _ = db.Close() }()
		mock.ExpectQuery("SELECT").WillReturnError(assert.AnError)

		_, err = (&BaseSQLWarehouse{DB: db}).Query(context.Background(), "SELECT 1")
		require.Error(t, err)
		assert.ErrorIs(t, err, assert.AnError)
	})

	t.Run("row error", func(t *testing.T) {
		db, mock, err := sqlmock.New()
		require.NoError(t, err)
		defer func() { _ = db.Close() }()
		rows := sqlmock.NewRowsWithColumnDefinition(sqlmock.NewColumn("a").OfType("INTEGER", int64(0))).
			AddRow(int64(1)).
			RowError(0, assert.AnError)
		mock.ExpectQuery("SELECT").WillReturnRows(rows)

		_, err = (&BaseSQLWarehouse{DB: db}).Query(context.Background(), "SELECT a")
		require.Error(t, err)
	})
}

func TestQuoteParts(t *testing.T) {
	tests := []struct {
		name  string
		in    string
		quote string
		want  string
	}{
		{"single", "marketing", `"`, `"marketing"`},
		{"qualified", "analytics.marketing", `"`, `"analytics"."marketing"`},
		{"already quoted", `"analytics"."marketing"`, `"`, `"analytics"."marketing"`},
		{"embedded quote", `odd"name`, `"`, `"odd""name"`},
		{"backticks", "proj.ds.tbl", "`", "`proj`.`ds`.`tbl`"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, QuoteParts(tt.in, tt.quote))
		})
	}
}
