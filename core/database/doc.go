// Package database handles database connections, table identifiers and schema inspection.
//
// It wraps GORM to open SQL Server, MySQL or SQLite connections based on the
// application's configuration.
//
// # Identifiers
//
// ParseTableRef parses database.schema.table identifiers, stripping bracket,
// double quote and backtick decoration. Temporary tables (#name) may be given
// without a database and schema. TableRef.Quoted renders the bracket-quoted form.
//
// # Schema Inspection
//
// Inspector.Resolve returns the ordered column set of a table. On SQL Server the
// result shape comes from sys.dm_exec_describe_first_result_set, so a missing
// table (ErrTableNotFound) is reported separately from a table whose shape
// cannot be described in the current session (ErrIntrospectionUnavailable).
//
// # Extended Properties
//
// PropertyRecorder writes table-level extended properties, used to stamp a
// target with the time of its last successful merge.
//
// # Usage
//
//	db, err := database.Connect(cfg.Database)
//	if err != nil {
//	    log.Fatal("Database connection failed", err)
//	}
//
//	ref, _ := database.ParseTableRef("Sales.dbo.Orders")
//	columns, err := database.NewInspector(db, cfg.Database.Driver).Resolve(ctx, ref)
package database
