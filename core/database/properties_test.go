package database

import (
	"context"
	"errors"
	"regexp"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPropertyRecorder(t *testing.T) {
	ctx := context.Background()

	t.Run("Ensure", func(t *testing.T) {
		db, mock := setupMockDB(t)
		mock.ExpectExec(regexp.QuoteMeta("EXEC [Sales].sys.sp_addextendedproperty")).
			WithArgs("[Sales].[dbo].[Orders]", "LastMergedAt", "LastMergedAt", "", "dbo", "Orders").
			WillReturnResult(sqlmock.NewResult(0, 1))

		err := NewPropertyRecorder(db).EnsureProperty(ctx, ordersRef, "LastMergedAt")
		require.NoError(t, err)
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("Set", func(t *testing.T) {
		db, mock := setupMockDB(t)
		mock.ExpectExec(regexp.QuoteMeta("EXEC [Sales].sys.sp_updateextendedproperty")).
			WithArgs("LastMergedAt", "2026-10-18T09:30:00Z", "dbo", "Orders").
			WillReturnResult(sqlmock.NewResult(0, 1))

		err := NewPropertyRecorder(db).SetProperty(ctx, ordersRef, "LastMergedAt", "2026-10-18T09:30:00Z")
		require.NoError(t, err)
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("Failure Is Wrapped", func(t *testing.T) {
		db, mock := setupMockDB(t)
		mock.ExpectExec(regexp.QuoteMeta("sp_updateextendedproperty")).
			WillReturnError(errors.New("permission denied"))

		err := NewPropertyRecorder(db).SetProperty(ctx, ordersRef, "LastMergedAt", "x")
		require.Error(t, err)
		assert.Contains(t, err.Error(), "permission denied")
	})

	t.Run("Temp Table", func(t *testing.T) {
		db, _ := setupMockDB(t)
		err := NewPropertyRecorder(db).EnsureProperty(ctx, TableRef{Name: "#Staging"}, "LastMergedAt")
		assert.True(t, errors.Is(err, ErrPropertiesUnsupported))
	})
}
