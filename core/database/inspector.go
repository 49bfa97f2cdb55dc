package database

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	mssql "github.com/microsoft/go-mssqldb"
	"gorm.io/gorm"
)

var (
	// ErrTableNotFound is returned when an identifier does not resolve to a table.
	ErrTableNotFound = errors.New("table not found")
	// ErrIntrospectionUnavailable is returned when the table exists but its result
	// shape cannot be described in the current session, for example when
	// SET FMTONLY or SET SHOWPLAN_* is enabled.
	ErrIntrospectionUnavailable = errors.New("schema introspection unavailable")
)

// SQL Server error numbers.
const (
	errInvalidObjectName  = 208
	errDescribeRangeStart = 11500
	errDescribeRangeEnd   = 11599
)

// ColumnInfo describes a single column of a table's result shape.
type ColumnInfo struct {
	Name     string `json:"name"`
	Type     string `json:"type"`
	Nullable bool   `json:"nullable"`
	// Ordinal is the 1-based position of the column.
	Ordinal int `json:"ordinal"`
}

// Inspector resolves table identifiers to their ordered column sets.
type Inspector struct {
	db     *gorm.DB
	driver string
}

// NewInspector creates an inspector. If driver is empty the dialector name is used.
func NewInspector(db *gorm.DB, driver string) *Inspector {
	if driver == "" && db != nil {
		driver = db.Dialector.Name()
	}
	return &Inspector{db: db, driver: driver}
}

// Resolve returns the ordered columns of ref.
// It fails with ErrTableNotFound when the table does not exist and with
// ErrIntrospectionUnavailable when it exists but cannot be described.
func (i *Inspector) Resolve(ctx context.Context, ref TableRef) ([]ColumnInfo, error) {
	if i.db == nil {
		return nil, fmt.Errorf("%w: no database connection", ErrIntrospectionUnavailable)
	}
	switch i.driver {
	case DriverSQLServer:
		return i.resolveSQLServer(ctx, ref)
	case DriverMySQL:
		return i.resolveMySQL(ctx, ref)
	case DriverSQLite:
		return i.resolveSQLite(ctx, ref)
	default:
		return nil, fmt.Errorf("%w: unsupported driver %q", ErrIntrospectionUnavailable, i.driver)
	}
}

const describeFirstResultSetSQL = `SELECT name, system_type_name, is_nullable, column_ordinal
FROM sys.dm_exec_describe_first_result_set(?, NULL, 0)
WHERE is_hidden = 0
ORDER BY column_ordinal`

type describedColumn struct {
	Name           string
	SystemTypeName string
	IsNullable     bool
	ColumnOrdinal  int
}

func (i *Inspector) resolveSQLServer(ctx context.Context, ref TableRef) ([]ColumnInfo, error) {
	db := i.db.WithContext(ctx)

	var objectID sql.NullInt64
	if err := db.Raw("SELECT OBJECT_ID(?)", ref.ObjectName()).Row().Scan(&objectID); err != nil {
		return nil, classifyError(err, ref)
	}
	if !objectID.Valid {
		return nil, fmt.Errorf("%w: %s", ErrTableNotFound, ref)
	}

	var described []describedColumn
	if err := db.Raw(describeFirstResultSetSQL, "SELECT * FROM "+ref.Quoted()).Scan(&described).Error; err != nil {
		return nil, classifyError(err, ref)
	}
	if len(described) == 0 {
		return nil, fmt.Errorf("%w: %s returned no result shape; check SET FMTONLY and SET SHOWPLAN options", ErrIntrospectionUnavailable, ref)
	}

	columns := make([]ColumnInfo, 0, len(described))
	for _, col := range described {
		columns = append(columns, ColumnInfo{
			Name:     col.Name,
			Type:     col.SystemTypeName,
			Nullable: col.IsNullable,
			Ordinal:  col.ColumnOrdinal,
		})
	}
	return columns, nil
}

type mysqlColumn struct {
	Name       string
	TypeName   string
	IsNullable string
	Ordinal    int
}

func (i *Inspector) resolveMySQL(ctx context.Context, ref TableRef) ([]ColumnInfo, error) {
	if ref.Temporary() {
		return nil, fmt.Errorf("%w: temporary tables are not listed in information_schema", ErrIntrospectionUnavailable)
	}

	var rows []mysqlColumn
	err := i.db.WithContext(ctx).Raw(`SELECT column_name AS name, column_type AS type_name,
	is_nullable AS is_nullable, ordinal_position AS ordinal
FROM information_schema.columns
WHERE table_schema = ? AND table_name = ?
ORDER BY ordinal_position`, ref.Database, ref.Name).Scan(&rows).Error
	if err != nil {
		return nil, fmt.Errorf("failed to get columns for table %s: %w", ref, err)
	}
	if len(rows) == 0 {
		return nil, fmt.Errorf("%w: %s", ErrTableNotFound, ref)
	}

	columns := make([]ColumnInfo, 0, len(rows))
	for _, row := range rows {
		columns = append(columns, ColumnInfo{
			Name:     row.Name,
			Type:     row.TypeName,
			Nullable: row.IsNullable == "YES",
			Ordinal:  row.Ordinal,
		})
	}
	return columns, nil
}

type sqliteColumn struct {
	Cid     int
	Name    string
	Type    string
	Notnull int
	Pk      int
}

func (i *Inspector) resolveSQLite(ctx context.Context, ref TableRef) ([]ColumnInfo, error) {
	// PRAGMA does not accept bind parameters
	query := fmt.Sprintf("PRAGMA table_info(%s)", sqliteLiteral(ref.Name))

	var rows []sqliteColumn
	if err := i.db.WithContext(ctx).Raw(query).Scan(&rows).Error; err != nil {
		return nil, fmt.Errorf("failed to get columns for table %s: %w", ref, err)
	}
	// PRAGMA table_info returns an empty result for a missing table
	if len(rows) == 0 {
		return nil, fmt.Errorf("%w: %s", ErrTableNotFound, ref)
	}

	columns := make([]ColumnInfo, 0, len(rows))
	for _, row := range rows {
		columns = append(columns, ColumnInfo{
			Name:     row.Name,
			Type:     row.Type,
			Nullable: row.Notnull == 0 && row.Pk == 0,
			Ordinal:  row.Cid + 1,
		})
	}
	return columns, nil
}

func sqliteLiteral(value string) string {
	return "'" + strings.ReplaceAll(value, "'", "''") + "'"
}

// classifyError maps SQL Server error numbers onto the package sentinels.
func classifyError(err error, ref TableRef) error {
	var msErr mssql.Error
	if errors.As(err, &msErr) {
		switch {
		case msErr.Number == errInvalidObjectName:
			return fmt.Errorf("%w: %s: %w", ErrTableNotFound, ref, err)
		case msErr.Number >= errDescribeRangeStart && msErr.Number <= errDescribeRangeEnd:
			return fmt.Errorf("%w: %s: %w", ErrIntrospectionUnavailable, ref, err)
		}
	}
	return fmt.Errorf("failed to inspect %s: %w", ref, err)
}
