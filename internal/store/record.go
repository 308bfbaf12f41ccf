// Package store is the record-store contract the core depends on: rows are
// addressed by table name and integer id and carry a loose field map.
package store

import (
	"context"
	"errors"
	"iter"
	"strconv"
)

// ErrNotFound is returned by lookups and writes that address a row that does
// not exist.
var ErrNotFound = errors.New("store: record not found")

// Fields holds one row's column values keyed by column name. The id column is
// carried on Record, never in Fields.
type Fields map[string]any

func (f Fields) String(key string) string {
	switch v := f[key].(type) {
	case string:
		return v
	case []byte:
		return string(v)
	case nil:
		return ""
	case int64:
		return strconv.FormatInt(v, 10)
	case int:
		return strconv.Itoa(v)
	case bool:
		return strconv.FormatBool(v)
	default:
		return ""
	}
}

func (f Fields) Int(key string) int64 {
	switch v := f[key].(type) {
	case int64:
		return v
	case int:
		return int64(v)
	case int32:
		return int64(v)
	case float64:
		return int64(v)
	case bool:
		if v {
			return 1
		}
		return 0
	case string:
		n, _ := strconv.ParseInt(v, 10, 64)
		return n
	case []byte:
		n, _ := strconv.ParseInt(string(v), 10, 64)
		return n
	default:
		return 0
	}
}

// Bool accepts native booleans and the 0/1 integers SQLite stores them as.
func (f Fields) Bool(key string) bool {
	switch v := f[key].(type) {
	case bool:
		return v
	case string:
		b, _ := strconv.ParseBool(v)
		return b
	case nil:
		return false
	default:
		return f.Int(key) != 0
	}
}

func (f Fields) clone() Fields {
	out := make(Fields, len(f))
	for k, v := range f {
		out[k] = v
	}
	return out
}

type Record struct {
	ID     int64
	Fields Fields
}

// Empty reports whether r is the no-such-row sentinel.
func (r Record) Empty() bool { return r.ID <= 0 }

type Connector int

const (
	And Connector = iota
	Or
)

// Predicate is an equality test joined to the previous predicate by
// Connector (ignored on the first one). AND binds tighter than OR.
type Predicate struct {
	Field     string
	Value     any
	Connector Connector
}

func Eq(field string, value any) Predicate { return Predicate{Field: field, Value: value} }

func OrEq(field string, value any) Predicate {
	return Predicate{Field: field, Value: value, Connector: Or}
}

// Store is the storage contract. Sequences returned by ScanAll and ScanByField
// are lazy and restartable; an SQL-backed sequence holds a connection until it
// is exhausted, so callers collect before issuing further calls.
type Store interface {
	ScanAll(ctx context.Context, table string) iter.Seq2[Record, error]
	ScanByField(ctx context.Context, table, field string, value any) iter.Seq2[Record, error]
	FindOne(ctx context.Context, table string, preds ...Predicate) (Record, error)
	FindByID(ctx context.Context, table string, id int64) (Record, error)
	Create(ctx context.Context, table string, fields Fields) (int64, error)
	Update(ctx context.Context, table string, id int64, fields Fields) error
	// Increment adds each delta to its column in a single statement.
	Increment(ctx context.Context, table string, id int64, deltas map[string]int64) error
	Delete(ctx context.Context, table string, id int64) error
	DeleteByField(ctx context.Context, table, field string, value any) (int64, error)
	CreateTable(ctx context.Context, t Table) error
	// InTx runs fn against a transactional view: committed when fn returns
	// nil, rolled back otherwise. Nested calls join the outer transaction.
	InTx(ctx context.Context, fn func(Store) error) error
}

// Collect drains seq into a slice, stopping at the first error.
func Collect(seq iter.Seq2[Record, error]) ([]Record, error) {
	var out []Record
	for rec, err := range seq {
		if err != nil {
			return nil, err
		}
		out = append(out, rec)
	}
	return out, nil
}

// Provision creates every table of Schema in order.
func Provision(ctx context.Context, s Store) error {
	for _, t := range Schema() {
		if err := s.CreateTable(ctx, t); err != nil {
			return err
		}
	}
	return nil
}
