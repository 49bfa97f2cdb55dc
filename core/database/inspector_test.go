package database

import (
	"context"
	"errors"
	"regexp"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"
	mssql "github.com/microsoft/go-mssqldb"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/mysql"
	"gorm.io/gorm"
)

func setupMockDB(t *testing.T) (*gorm.DB, sqlmock.Sqlmock) {
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("Failed to open mock sql db: %v", err)
	}

	dialector := mysql.New(mysql.Config{
		Conn:                      db,
		SkipInitializeWithVersion: true,
	})

	gormDB, err := gorm.Open(dialector, &gorm.Config{})
	if err != nil {
		t.Fatalf("Failed to open gorm db: %v", err)
	}

	return gormDB, mock
}

var ordersRef = TableRef{Database: "Sales", Schema: "dbo", Name: "Orders"}

func TestInspector_SQLServer(t *testing.T) {
	t.Run("Resolves Columns", func(t *testing.T) {
		db, mock := setupMockDB(t)
		mock.ExpectQuery(regexp.QuoteMeta("SELECT OBJECT_ID(?)")).
			WithArgs("[Sales].[dbo].[Orders]").
			WillReturnRows(sqlmock.NewRows([]string{"id"}).AddRow(581577110))
		mock.ExpectQuery(regexp.QuoteMeta("sys.dm_exec_describe_first_result_set")).
			WithArgs("SELECT * FROM [Sales].[dbo].[Orders]").
			WillReturnRows(sqlmock.NewRows([]string{"name", "system_type_name", "is_nullable", "column_ordinal"}).
				AddRow("Id", "int", false, 1).
				AddRow("Region", "nvarchar(20)", true, 2))

		cols, err := NewInspector(db, DriverSQLServer).Resolve(context.Background(), ordersRef)
		require.NoError(t, err)
		assert.Equal(t, []ColumnInfo{
			{Name: "Id", Type: "int", Nullable: false, Ordinal: 1},
			{Name: "Region", Type: "nvarchar(20)", Nullable: true, Ordinal: 2},
		}, cols)
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("Missing Table", func(t *testing.T) {
		db, mock := setupMockDB(t)
		mock.ExpectQuery(regexp.QuoteMeta("SELECT OBJECT_ID(?)")).
			WillReturnRows(sqlmock.NewRows([]string{"id"}).AddRow(nil))

		_, err := NewInspector(db, DriverSQLServer).Resolve(context.Background(), ordersRef)
		require.Error(t, err)
		assert.True(t, errors.Is(err, ErrTableNotFound))
		assert.False(t, errors.Is(err, ErrIntrospectionUnavailable))
	})

	t.Run("Empty Result Shape", func(t *testing.T) {
		db, mock := setupMockDB(t)
		mock.ExpectQuery(regexp.QuoteMeta("SELECT OBJECT_ID(?)")).
			WillReturnRows(sqlmock.NewRows([]string{"id"}).AddRow(581577110))
		mock.ExpectQuery(regexp.QuoteMeta("sys.dm_exec_describe_first_result_set")).
			WillReturnRows(sqlmock.NewRows([]string{"name", "system_type_name", "is_nullable", "column_ordinal"}))

		_, err := NewInspector(db, DriverSQLServer).Resolve(context.Background(), ordersRef)
		require.Error(t, err)
		assert.True(t, errors.Is(err, ErrIntrospectionUnavailable))
		assert.False(t, errors.Is(err, ErrTableNotFound))
	})

	t.Run("Temp Table Lookup", func(t *testing.T) {
		db, mock := setupMockDB(t)
		mock.ExpectQuery(regexp.QuoteMeta("SELECT OBJECT_ID(?)")).
			WithArgs("tempdb..[#Staging]").
			WillReturnRows(sqlmock.NewRows([]string{"id"}).AddRow(-1200))
		mock.ExpectQuery(regexp.QuoteMeta("sys.dm_exec_describe_first_result_set")).
			WithArgs("SELECT * FROM [#Staging]").
			WillReturnRows(sqlmock.NewRows([]string{"name", "system_type_name", "is_nullable", "column_ordinal"}).
				AddRow("Id", "int", false, 1))

		cols, err := NewInspector(db, DriverSQLServer).Resolve(context.Background(), TableRef{Name: "#Staging"})
		require.NoError(t, err)
		assert.Len(t, cols, 1)
	})

	t.Run("Classifies Server Errors", func(t *testing.T) {
		db, mock := setupMockDB(t)
		mock.ExpectQuery(regexp.QuoteMeta("SELECT OBJECT_ID(?)")).
			WillReturnRows(sqlmock.NewRows([]string{"id"}).AddRow(581577110))
		mock.ExpectQuery(regexp.QuoteMeta("sys.dm_exec_describe_first_result_set")).
			WillReturnError(mssql.Error{Number: 11529, Message: "The metadata could not be determined"})

		_, err := NewInspector(db, DriverSQLServer).Resolve(context.Background(), ordersRef)
		assert.True(t, errors.Is(err, ErrIntrospectionUnavailable))
	})
}

func TestClassifyError(t *testing.T) {
	err := classifyError(mssql.Error{Number: 208, Message: "Invalid object name"}, ordersRef)
	assert.True(t, errors.Is(err, ErrTableNotFound))

	err = classifyError(errors.New("connection reset"), ordersRef)
	assert.False(t, errors.Is(err, ErrTableNotFound))
	assert.False(t, errors.Is(err, ErrIntrospectionUnavailable))
	assert.Contains(t, err.Error(), "Sales.dbo.Orders")
}

func TestInspector_MySQL(t *testing.T) {
	db, mock := setupMockDB(t)
	mock.ExpectQuery(regexp.QuoteMeta("FROM information_schema.columns")).
		WithArgs("Sales", "Orders").
		WillReturnRows(sqlmock.NewRows([]string{"name", "type_name", "is_nullable", "ordinal"}).
			AddRow("id", "int(11)", "NO", 1).
			AddRow("region", "varchar(20)", "YES", 2))

	cols, err := NewInspector(db, "").Resolve(context.Background(), ordersRef)
	require.NoError(t, err)
	require.Len(t, cols, 2)
	assert.False(t, cols[0].Nullable)
	assert.True(t, cols[1].Nullable)
	assert.Equal(t, "varchar(20)", cols[1].Type)
}

func TestInspector_SQLite(t *testing.T) {
	db, err := Connect(Config{Driver: DriverSQLite, Name: ":memory:"})
	require.NoError(t, err)

	err = db.Exec("CREATE TABLE orders (id INTEGER PRIMARY KEY, region TEXT NOT NULL, note TEXT)").Error
	require.NoError(t, err)

	inspector := NewInspector(db, "")
	cols, err := inspector.Resolve(context.Background(), TableRef{Name: "orders"})
	require.NoError(t, err)
	assert.Equal(t, []ColumnInfo{
		{Name: "id", Type: "INTEGER", Nullable: false, Ordinal: 1},
		{Name: "region", Type: "TEXT", Nullable: false, Ordinal: 2},
		{Name: "note", Type: "TEXT", Nullable: true, Ordinal: 3},
	}, cols)

	_, err = inspector.Resolve(context.Background(), TableRef{Name: "missing"})
	assert.True(t, errors.Is(err, ErrTableNotFound))
}

func TestInspector_NoConnection(t *testing.T) {
	_, err := NewInspector(nil, DriverSQLServer).Resolve(context.Background(), ordersRef)
	assert.True(t, errors.Is(err, ErrIntrospectionUnavailable))
}
