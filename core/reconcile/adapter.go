package reconcile

import (
	"context"

	"sqlmerge/core/database"
)

// SchemaResolver resolves a table to its ordered column set.
// Implementations return errors wrapping database.ErrTableNotFound or
// database.ErrIntrospectionUnavailable so the two cases can be told apart.
// database.Inspector is the production implementation.
type SchemaResolver interface {
	Resolve(ctx context.Context, table database.TableRef) ([]database.ColumnInfo, error)
}

// MetadataRecorder stamps a target with metadata after a successful merge.
// Both operations must be idempotent upserts.
type MetadataRecorder interface {
	// EnsureProperty creates the property if it does not exist yet.
	EnsureProperty(ctx context.Context, target database.TableRef, key string) error

	// SetProperty overwrites the property value.
	SetProperty(ctx context.Context, target database.TableRef, key, value string) error
}
