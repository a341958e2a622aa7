// Package recordstore defines the uniform access contract for the metadata
// tier: named buckets of keyed records, filtered list queries, and
// schema-versioned bucket migrations.  Backends live in the memory, boltdb
// and sqlite subpackages.
package recordstore

import (
	"context"
	"errors"
	"strings"
)

var (
	// ErrNoSuchRecord is returned by Get and Delete when the key is not
	// present in the bucket.
	ErrNoSuchRecord = errors.New("no such record")
	// ErrNoSuchBucket is returned when a store is asked about a bucket it
	// was not opened with.
	ErrNoSuchBucket = errors.New("no such bucket")
)

// Record is a single row of a bucket.  Implementations are plain structs in
// the record package; they are persisted as JSON and queried through Field.
type Record interface {
	// Key returns the record's identity tuple, joined into the bucket key.
	Key() string
	// Field returns the values of a named indexed field, used for filter
	// evaluation.  Multi-valued fields (e.g. a list of back-references)
	// return one entry per element.
	Field(name string) ([]string, bool)
}

// Migration upgrades a single record by one schema version.  Migrations must
// be idempotent: applying one to an already-upgraded record reports
// changed=false and no error.
type Migration func(Record) (changed bool, err error)

// Bucket describes one record population: its name, the current schema
// version, a factory for decoding rows, and the ordered migrations that take
// a bucket from version n to n+1 (Migrations[0] upgrades 1->2, and so on).
type Bucket struct {
	Name       string
	Version    uint32
	New        func() Record
	Migrations []Migration
}

// Op is a filter constraint operator.
type Op int

const (
	// OpEq matches records where some value of the field equals Value.
	OpEq Op = iota
	// OpPrefix matches records where some value of the field starts with
	// Value.
	OpPrefix
	// OpPresent matches records that have the field at all, regardless of
	// value.
	OpPresent
	// OpIn matches records where some value of the field equals one of
	// Values.
	OpIn
)

// Constraint is a single field condition.
type Constraint struct {
	Field  string
	Op     Op
	Value  string
	Values []string
}

// Filter is a conjunction of constraints.  The zero value matches every
// record in the bucket.
type Filter []Constraint

// Eq appends an equality constraint.
func (f Filter) Eq(field, value string) Filter {
	return append(f, Constraint{Field: field, Op: OpEq, Value: value})
}

// Prefix appends a starts-with constraint.
func (f Filter) Prefix(field, value string) Filter {
	return append(f, Constraint{Field: field, Op: OpPrefix, Value: value})
}

// Present appends a field-exists constraint.
func (f Filter) Present(field string) Filter {
	return append(f, Constraint{Field: field, Op: OpPresent})
}

// In appends a membership constraint.
func (f Filter) In(field string, values ...string) Filter {
	return append(f, Constraint{Field: field, Op: OpIn, Values: values})
}

// Matches reports whether every constraint holds for r.
func (f Filter) Matches(r Record) bool {
	for _, c := range f {
		values, ok := r.Field(c.Field)
		if !ok || len(values) == 0 {
			return false
		}
		if c.Op == OpPresent {
			continue
		}
		matched := false
		for _, v := range values {
			switch c.Op {
			case OpEq:
				matched = v == c.Value
			case OpPrefix:
				matched = strings.HasPrefix(v, c.Value)
			case OpIn:
				for _, want := range c.Values {
					if v == want {
						matched = true
						break
					}
				}
			}
			if matched {
				break
			}
		}
		if !matched {
			return false
		}
	}
	return true
}

// Store is the Record Store Adapter.  All methods are safe for concurrent
// use.  List with a filter that does not constrain the owner field performs a
// cross-tenant scan; the engine restricts that to blob refcounting.
type Store interface {
	// List returns every record of the bucket matching the filter, in
	// unspecified order.
	List(ctx context.Context, b *Bucket, f Filter) ([]Record, error)
	// Get returns the record stored under key, or ErrNoSuchRecord.
	Get(ctx context.Context, b *Bucket, key string) (Record, error)
	// Put stores the record under its Key, overwriting any previous
	// record with the same key.
	Put(ctx context.Context, b *Bucket, r Record) error
	// Delete removes the record stored under key, or returns
	// ErrNoSuchRecord.
	Delete(ctx context.Context, b *Bucket, key string) error
	// Close releases the store's resources.
	Close() error
}
