package reconcile

import (
	"sort"

	"sqlmerge/core/database"
)

// ColumnSet is the aligned column model of a merge.
type ColumnSet struct {
	descriptors []ColumnDescriptor
}

// Descriptors returns every column seen in the source, the target or the key list.
func (s *ColumnSet) Descriptors() []ColumnDescriptor {
	return append([]ColumnDescriptor(nil), s.descriptors...)
}

// Keys returns the key columns in key list order.
func (s *ColumnSet) Keys() []ColumnDescriptor {
	return s.filter(ColumnDescriptor.IsKey, func(c ColumnDescriptor) int { return c.KeyPosition })
}

// Shared returns the non-key columns present on both sides, in source order.
func (s *ColumnSet) Shared() []ColumnDescriptor {
	return s.filter(func(c ColumnDescriptor) bool {
		return !c.IsKey() && c.InSource() && c.InTarget()
	}, func(c ColumnDescriptor) int { return c.SourceOrdinal })
}

// TargetOnly returns the columns present only in the target, in target order.
func (s *ColumnSet) TargetOnly() []ColumnDescriptor {
	return s.filter(func(c ColumnDescriptor) bool {
		return !c.IsKey() && !c.InSource() && c.InTarget()
	}, func(c ColumnDescriptor) int { return c.TargetOrdinal })
}

// Inserted returns the columns written by the insert clause: keys, then shared columns.
func (s *ColumnSet) Inserted() []ColumnDescriptor {
	return append(s.Keys(), s.Shared()...)
}

func (s *ColumnSet) filter(keep func(ColumnDescriptor) bool, order func(ColumnDescriptor) int) []ColumnDescriptor {
	var out []ColumnDescriptor
	for _, c := range s.descriptors {
		if keep(c) {
			out = append(out, c)
		}
	}
	sort.SliceStable(out, func(i, j int) bool { return order(out[i]) < order(out[j]) })
	return out
}

// Reconcile aligns the source columns, the target columns and the key list by
// name. Names are matched exactly. It fails with a SchemaError when a key is
// missing on either side or a source column is missing from the target.
func Reconcile(source, target []database.ColumnInfo, keys []string) (*ColumnSet, error) {
	if len(target) == 0 {
		return nil, &SchemaError{Side: SideTarget, Err: database.ErrIntrospectionUnavailable}
	}

	index := make(map[string]int)
	var descriptors []ColumnDescriptor
	lookup := func(name string) *ColumnDescriptor {
		if i, ok := index[name]; ok {
			return &descriptors[i]
		}
		index[name] = len(descriptors)
		descriptors = append(descriptors, ColumnDescriptor{Name: name})
		return &descriptors[len(descriptors)-1]
	}

	for i, col := range source {
		d := lookup(col.Name)
		d.SourceOrdinal = ordinal(col, i)
		d.TypeName = col.Type
		d.Nullable = col.Nullable
	}
	for i, col := range target {
		d := lookup(col.Name)
		d.TargetOrdinal = ordinal(col, i)
		if col.Type != "" {
			d.TypeName = col.Type
		}
		d.Nullable = d.Nullable || col.Nullable
	}
	for i, name := range keys {
		lookup(name).KeyPosition = i + 1
	}

	set := &ColumnSet{descriptors: descriptors}
	for _, key := range set.Keys() {
		if !key.InSource() {
			return nil, &SchemaError{Side: SideSource, Column: key.Name, Reason: "is a key column but does not exist"}
		}
		if !key.InTarget() {
			return nil, &SchemaError{Side: SideTarget, Column: key.Name, Reason: "is a key column but does not exist"}
		}
	}
	for _, col := range set.filter(ColumnDescriptor.InSource, func(c ColumnDescriptor) int { return c.SourceOrdinal }) {
		if !col.InTarget() {
			return nil, &SchemaError{Side: SideTarget, Column: col.Name, Reason: "exists in the source but not"}
		}
	}
	return set, nil
}

func ordinal(col database.ColumnInfo, index int) int {
	if col.Ordinal > 0 {
		return col.Ordinal
	}
	return index + 1
}
