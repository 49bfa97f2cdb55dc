package reconcile

import (
	"context"
	"errors"
	"fmt"
	"regexp"
	"strings"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"sqlmerge/core/database"
)

// fakeResolver serves column sets keyed by TableRef.String().
type fakeResolver struct {
	tables map[string][]database.ColumnInfo
	errs   map[string]error
	calls  []string
}

func (f *fakeResolver) Resolve(_ context.Context, table database.TableRef) ([]database.ColumnInfo, error) {
	f.calls = append(f.calls, table.String())
	if err, ok := f.errs[table.String()]; ok {
		return nil, err
	}
	cols, ok := f.tables[table.String()]
	if !ok {
		return nil, fmt.Errorf("%w: %s", database.ErrTableNotFound, table)
	}
	return cols, nil
}

func newResolver() *fakeResolver {
	return &fakeResolver{
		tables: map[string][]database.ColumnInfo{
			"Sales.dbo.Orders":        targetColumns(),
			"Sales.dbo.OrdersStaging": sourceColumns(),
		},
		errs: map[string]error{},
	}
}

func baseRequest() Request {
	return Request{
		Target:     "[Sales].[dbo].[Orders]",
		Source:     "Sales.dbo.OrdersStaging",
		KeyColumns: []string{"[Id]"},
	}
}

func TestEngine_DryRun(t *testing.T) {
	resolver := newResolver()
	engine := NewEngine(nil, resolver, nil, Config{}, zap.NewNop())

	req := baseRequest()
	req.DryRun = true
	req.Threshold = "15%"

	result, err := engine.Run(context.Background(), req)
	require.NoError(t, err)
	assert.Equal(t, StatusDryRun, result.Status)
	assert.True(t, strings.HasPrefix(result.Statement, "MERGE INTO [Sales].[dbo].[Orders] AS [t]"))
	assert.True(t, strings.HasPrefix(result.AuditTableScript, "CREATE TABLE [Sales].[dbo].[Orders_MergeAudit] ("))
	assert.Contains(t, result.AuditTableScript, "[d_Amount] decimal(10,2) NULL")
	assert.Equal(t, []string{"Sales.dbo.OrdersStaging", "Sales.dbo.Orders"}, resolver.calls)
}

func TestEngine_DryRunWithAuditTable(t *testing.T) {
	engine := NewEngine(nil, newResolver(), nil, Config{}, nil)

	req := baseRequest()
	req.DryRun = true
	req.AuditTable = "Sales.audit.OrdersLog"

	result, err := engine.Run(context.Background(), req)
	require.NoError(t, err)
	assert.Contains(t, result.Statement, "INTO [Sales].[audit].[OrdersLog] ([MergeTimestamp], [MergeAction], [Id]")
	assert.True(t, strings.HasPrefix(result.AuditTableScript, "CREATE TABLE [Sales].[audit].[OrdersLog] ("))
}

func TestEngine_Validation(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(r *Request)
		field  string
	}{
		{"Unqualified Target", func(r *Request) { r.Target = "Orders" }, "target"},
		{"Two Part Source", func(r *Request) { r.Source = "dbo.OrdersStaging" }, "source"},
		{"Bad Audit Table", func(r *Request) { r.AuditTable = "OrdersLog" }, "audit table"},
		{"No Keys", func(r *Request) { r.KeyColumns = nil }, "key columns"},
		{"Injected Key", func(r *Request) { r.KeyColumns = []string{"' OR 1=1--"} }, "key column"},
		{"Bad Threshold", func(r *Request) { r.Threshold = "lots" }, "threshold"},
		{"Update Without Expression", func(r *Request) { r.Policy = UpdateWith(" ") }, "policy"},
		{"Unknown Policy", func(r *Request) { r.Policy = Policy{Kind: "truncate"} }, "policy"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			resolver := newResolver()
			engine := NewEngine(nil, resolver, nil, Config{}, nil)
			req := baseRequest()
			tt.mutate(&req)

			_, err := engine.Run(context.Background(), req)
			var validationErr *ValidationError
			require.True(t, errors.As(err, &validationErr), "expected ValidationError, got %v", err)
			assert.Equal(t, tt.field, validationErr.Field)
			assert.Empty(t, resolver.calls, "validation happens before resolution")
		})
	}
}

func TestEngine_SelfMerge(t *testing.T) {
	resolver := newResolver()
	resolver.tables["Sales.dbo.Orders"] = []database.ColumnInfo{
		{Name: "Code", Type: "nvarchar(20)", Nullable: true, Ordinal: 1},
		{Name: "Amount", Type: "decimal(10,2)", Nullable: true, Ordinal: 2},
	}
	req := Request{
		Target:     "Sales.dbo.Orders",
		Source:     "[Sales].[dbo].[Orders]",
		KeyColumns: []string{"Code"},
		Threshold:  "0%",
	}

	t.Run("Plan Uses Null Safe Key", func(t *testing.T) {
		plan, err := NewEngine(nil, resolver, nil, Config{}, nil).Plan(context.Background(), req)
		require.NoError(t, err)
		assert.Contains(t, plan.Statement,
			"USING [Sales].[dbo].[Orders] AS [s]\n    ON ([t].[Code] = [s].[Code] OR ([t].[Code] IS NULL AND [s].[Code] IS NULL))")
	})

	t.Run("Run Changes Nothing", func(t *testing.T) {
		db, m := setupMockDB(t)
		expectCount(m, 40)
		m.ExpectBegin()
		expectMerge(m, 0)
		m.ExpectCommit()

		result, err := NewEngine(db, resolver, nil, Config{}, nil).Run(context.Background(), req)
		require.NoError(t, err)
		assert.Equal(t, StatusCommitted, result.Status)
		assert.Equal(t, int64(0), result.RowsChanged)
		assert.Equal(t, 0.0, result.Variance)
		assert.True(t, result.VarianceChecked)
		assert.NoError(t, m.ExpectationsWereMet())
	})
}

func TestEngine_TempTables(t *testing.T) {
	resolver := newResolver()
	resolver.tables["#Staging"] = sourceColumns()
	engine := NewEngine(nil, resolver, nil, Config{}, nil)

	req := baseRequest()
	req.Source = "#Staging"
	req.DryRun = true

	result, err := engine.Run(context.Background(), req)
	require.NoError(t, err)
	assert.Contains(t, result.Statement, "USING [#Staging] AS [s]")
}

func TestEngine_SchemaErrors(t *testing.T) {
	t.Run("Key Missing From Source Opens No Transaction", func(t *testing.T) {
		db, m := setupMockDB(t)
		resolver := newResolver()
		resolver.tables["Sales.dbo.OrdersStaging"] = sourceColumns()[1:]

		engine := NewEngine(db, resolver, nil, Config{}, nil)
		_, err := engine.Run(context.Background(), baseRequest())

		var schemaErr *SchemaError
		require.True(t, errors.As(err, &schemaErr))
		assert.Equal(t, SideSource, schemaErr.Side)
		assert.Equal(t, "Id", schemaErr.Column)
		assert.Equal(t, "Sales.dbo.OrdersStaging", schemaErr.Table)
		assert.NoError(t, m.ExpectationsWereMet())
	})

	t.Run("Target Not Found", func(t *testing.T) {
		resolver := newResolver()
		delete(resolver.tables, "Sales.dbo.Orders")

		_, err := NewEngine(nil, resolver, nil, Config{}, nil).Run(context.Background(), baseRequest())
		var schemaErr *SchemaError
		require.True(t, errors.As(err, &schemaErr))
		assert.Equal(t, SideTarget, schemaErr.Side)
		assert.True(t, errors.Is(err, database.ErrTableNotFound))
		assert.False(t, errors.Is(err, database.ErrIntrospectionUnavailable))
	})

	t.Run("Introspection Unavailable", func(t *testing.T) {
		resolver := newResolver()
		resolver.errs["Sales.dbo.Orders"] = fmt.Errorf("%w: FMTONLY", database.ErrIntrospectionUnavailable)

		_, err := NewEngine(nil, resolver, nil, Config{}, nil).Run(context.Background(), baseRequest())
		assert.True(t, errors.Is(err, database.ErrIntrospectionUnavailable))
		assert.False(t, errors.Is(err, database.ErrTableNotFound))
	})

	t.Run("Other Resolver Failure", func(t *testing.T) {
		resolver := newResolver()
		resolver.errs["Sales.dbo.OrdersStaging"] = errors.New("login failed")

		_, err := NewEngine(nil, resolver, nil, Config{}, nil).Run(context.Background(), baseRequest())
		var schemaErr *SchemaError
		assert.False(t, errors.As(err, &schemaErr))
		assert.Contains(t, err.Error(), "login failed")
	})
}

func TestEngine_Hazard(t *testing.T) {
	db, m := setupMockDB(t)
	req := baseRequest()
	req.TargetFilter = "[Region] = 'EU'; DELETE FROM [Sales].[dbo].[Orders]"

	_, err := NewEngine(db, newResolver(), nil, Config{}, nil).Run(context.Background(), req)
	var hazard *HazardError
	require.True(t, errors.As(err, &hazard))
	assert.NoError(t, m.ExpectationsWereMet())
}

func TestEngine_Live(t *testing.T) {
	t.Run("Rolls Back Over Threshold", func(t *testing.T) {
		db, m := setupMockDB(t)
		expectCount(m, 100)
		m.ExpectBegin()
		expectMerge(m, 20)
		m.ExpectRollback()

		req := baseRequest()
		req.Threshold = "15%"
		result, err := NewEngine(db, newResolver(), nil, Config{}, nil).Run(context.Background(), req)

		var varianceErr *VarianceExceededError
		require.True(t, errors.As(err, &varianceErr))
		assert.Equal(t, 20.0, varianceErr.Variance)
		assert.Equal(t, StatusRolledBack, result.Status)
		assert.NoError(t, m.ExpectationsWereMet())
	})

	t.Run("Default Threshold From Config", func(t *testing.T) {
		db, m := setupMockDB(t)
		expectCount(m, 100)
		m.ExpectBegin()
		expectMerge(m, 20)
		m.ExpectRollback()

		engine := NewEngine(db, newResolver(), nil, Config{DefaultThreshold: "10%"}, nil)
		_, err := engine.Run(context.Background(), baseRequest())

		var varianceErr *VarianceExceededError
		require.True(t, errors.As(err, &varianceErr))
		assert.Equal(t, 10.0, varianceErr.Threshold)
	})

	t.Run("Commits And Stamps Target", func(t *testing.T) {
		db, m := setupMockDB(t)
		expectCount(m, 100)
		m.ExpectBegin()
		expectMerge(m, 20)
		m.ExpectCommit()

		rec := new(mockRecorder)
		rec.On("EnsureProperty", mock.Anything, ordersTable, "LastMergedAt").Return(nil)
		rec.On("SetProperty", mock.Anything, ordersTable, "LastMergedAt", mock.AnythingOfType("string")).Return(nil)

		req := baseRequest()
		req.Threshold = "25%"
		result, err := NewEngine(db, newResolver(), rec, Config{MetadataKey: "LastMergedAt"}, nil).Run(context.Background(), req)
		require.NoError(t, err)
		assert.Equal(t, StatusCommitted, result.Status)
		assert.Equal(t, int64(20), result.RowsChanged)
		assert.Equal(t, 20.0, result.Variance)
		assert.NoError(t, m.ExpectationsWereMet())
		rec.AssertExpectations(t)
	})

	t.Run("Identical Source Changes Nothing", func(t *testing.T) {
		db, m := setupMockDB(t)
		expectCount(m, 100)
		m.ExpectBegin()
		m.ExpectExec(regexp.QuoteMeta("WHEN MATCHED AND EXISTS")).WillReturnResult(sqlmock.NewResult(0, 0))
		m.ExpectCommit()

		req := baseRequest()
		req.Threshold = "0%"
		result, err := NewEngine(db, newResolver(), nil, Config{}, nil).Run(context.Background(), req)
		require.NoError(t, err)
		assert.Equal(t, StatusCommitted, result.Status)
		assert.Equal(t, int64(0), result.RowsChanged)
	})
}
