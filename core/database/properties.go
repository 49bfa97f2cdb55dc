package database

import (
	"context"
	"errors"
	"fmt"

	"gorm.io/gorm"
)

// ErrPropertiesUnsupported is returned when a table cannot carry extended properties.
var ErrPropertiesUnsupported = errors.New("extended properties are not supported for this table")

// PropertyRecorder stores table metadata as SQL Server extended properties.
type PropertyRecorder struct {
	db *gorm.DB
}

// NewPropertyRecorder creates a recorder writing through db.
func NewPropertyRecorder(db *gorm.DB) *PropertyRecorder {
	return &PropertyRecorder{db: db}
}

const ensurePropertySQL = `IF NOT EXISTS (
	SELECT 1 FROM %[1]s.sys.extended_properties
	WHERE class = 1 AND major_id = OBJECT_ID(?) AND minor_id = 0 AND name = ?
)
EXEC %[1]s.sys.sp_addextendedproperty
	@name = ?, @value = ?,
	@level0type = N'SCHEMA', @level0name = ?,
	@level1type = N'TABLE', @level1name = ?`

const setPropertySQL = `EXEC %s.sys.sp_updateextendedproperty
	@name = ?, @value = ?,
	@level0type = N'SCHEMA', @level0name = ?,
	@level1type = N'TABLE', @level1name = ?`

// EnsureProperty creates the property with an empty value if it does not exist.
func (r *PropertyRecorder) EnsureProperty(ctx context.Context, target TableRef, key string) error {
	if err := r.check(target); err != nil {
		return err
	}
	query := fmt.Sprintf(ensurePropertySQL, QuoteName(target.Database))
	err := r.db.WithContext(ctx).Exec(query, target.ObjectName(), key, key, "", target.Schema, target.Name).Error
	if err != nil {
		return fmt.Errorf("failed to ensure property %s on %s: %w", key, target, err)
	}
	return nil
}

// SetProperty updates the value of an existing property.
func (r *PropertyRecorder) SetProperty(ctx context.Context, target TableRef, key, value string) error {
	if err := r.check(target); err != nil {
		return err
	}
	query := fmt.Sprintf(setPropertySQL, QuoteName(target.Database))
	err := r.db.WithContext(ctx).Exec(query, key, value, target.Schema, target.Name).Error
	if err != nil {
		return fmt.Errorf("failed to set property %s on %s: %w", key, target, err)
	}
	return nil
}

func (r *PropertyRecorder) check(target TableRef) error {
	if r.db == nil {
		return errors.New("no database connection")
	}
	if target.Temporary() {
		return fmt.Errorf("%w: %s is a temporary table", ErrPropertiesUnsupported, target)
	}
	return nil
}
