// Package reconcile synthesizes and executes set-reconciliation (MERGE)
// statements that replace the contents of a target table with the contents of
// a source table, matched on caller-supplied key columns.
//
// # Architecture
//
// A merge flows through the following steps, leaves first:
//
// 1. Validation: identifiers must be fully qualified (database.schema.table)
// unless they name a #temporary table. Key lists are capped at MaxKeyColumns
// and may carry bracket or quote decoration.
//
// 2. Reconcile: aligns the source columns, the target columns and the key list
// into a ColumnSet. Keys must exist on both sides and the source columns must
// be a subset of the target columns.
//
// 3. BuildJoinPredicate and Synthesize: derive the key join (null-safe for
// nullable keys, rank-paired in duplicate-tolerant mode) and the typed clause
// fragments: matched update guarded by an EXCEPT change test, insert,
// not-matched-by-source action and the optional audit OUTPUT projection.
//
// 4. Assemble: renders the fragments to T-SQL and rejects statements with
// parameter leakage or verbatim fragments that could break out of the
// statement.
//
// 5. Executor: counts the target, runs the statement in a transaction and
// commits only if the changed-row variance is within the threshold. After a
// commit the target is stamped through a MetadataRecorder; a failure there is
// a warning, not an error.
//
// # Duplicate keys
//
// In duplicate-tolerant mode both sides are ranked with ROW_NUMBER within each
// key partition, ordered by physical row location. Which duplicate pairs with
// which is not defined, so audit rows may show swapped duplicates.
//
// # Usage Example
//
//	engine := reconcile.NewEngine(db, database.NewInspector(db, "sqlserver"),
//	    database.NewPropertyRecorder(db), cfg.Merge, logger)
//
//	result, err := engine.Run(ctx, reconcile.Request{
//	    Target:     "Sales.dbo.Orders",
//	    Source:     "#OrdersStaging",
//	    KeyColumns: []string{"[OrderId]"},
//	    Threshold:  "15%",
//	})
package reconcile
