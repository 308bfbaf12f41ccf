package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"iter"
	"sort"
	"strings"
	"sync"

	"github.com/mind-engage/mindengage-mobile/internal/db"
)

type querier interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

// SQLStore implements Store over database/sql. Table and column names are
// checked against the registered schema before they reach a statement.
type SQLStore struct {
	db      *sql.DB
	q       querier
	inTx    bool
	dialect dialect
	tables  *tableSet
}

type tableSet struct {
	mu sync.RWMutex
	m  map[string]Table
}

func (ts *tableSet) get(name string) (Table, bool) {
	ts.mu.RLock()
	defer ts.mu.RUnlock()
	t, ok := ts.m[name]
	return t, ok
}

func (ts *tableSet) put(t Table) {
	ts.mu.Lock()
	defer ts.mu.Unlock()
	ts.m[t.Name] = t
}

// NewSQLStore wraps handle. driver is "sqlite" or "postgres". Tables become
// addressable once registered through CreateTable.
func NewSQLStore(handle *sql.DB, driver db.Driver) *SQLStore {
	d := dialectSQLite
	if driver == db.DriverPostgres {
		d = dialectPostgres
	}
	return &SQLStore{
		db:      handle,
		q:       handle,
		dialect: d,
		tables:  &tableSet{m: map[string]Table{}},
	}
}

func (s *SQLStore) CreateTable(ctx context.Context, t Table) error {
	if _, err := s.q.ExecContext(ctx, s.dialect.createTable(t)); err != nil {
		return fmt.Errorf("store: create table %s: %w", t.Name, err)
	}
	s.tables.put(t)
	return nil
}

func (s *SQLStore) table(name string) (Table, error) {
	t, ok := s.tables.get(name)
	if !ok {
		return Table{}, fmt.Errorf("store: unknown table %q", name)
	}
	return t, nil
}

func (s *SQLStore) checkColumns(t Table, names ...string) error {
	for _, n := range names {
		if n == "id" {
			continue
		}
		if _, ok := t.column(n); !ok {
			return fmt.Errorf("store: unknown column %s.%s", t.Name, n)
		}
	}
	return nil
}

func (s *SQLStore) ScanAll(ctx context.Context, table string) iter.Seq2[Record, error] {
	return s.selectSeq(ctx, table, nil)
}

func (s *SQLStore) ScanByField(ctx context.Context, table, field string, value any) iter.Seq2[Record, error] {
	return s.selectSeq(ctx, table, []Predicate{Eq(field, value)})
}

func (s *SQLStore) FindOne(ctx context.Context, table string, preds ...Predicate) (Record, error) {
	for rec, err := range s.selectSeq(ctx, table, preds) {
		if err != nil {
			return Record{}, err
		}
		return rec, nil
	}
	return Record{}, ErrNotFound
}

func (s *SQLStore) FindByID(ctx context.Context, table string, id int64) (Record, error) {
	return s.FindOne(ctx, table, Eq("id", id))
}

func (s *SQLStore) selectSeq(ctx context.Context, table string, preds []Predicate) iter.Seq2[Record, error] {
	return func(yield func(Record, error) bool) {
		t, err := s.table(table)
		if err != nil {
			yield(Record{}, err)
			return
		}
		where, args, err := s.where(t, preds, 1)
		if err != nil {
			yield(Record{}, err)
			return
		}
		query := fmt.Sprintf("SELECT * FROM %s%s ORDER BY %s", quote(t.Name), where, quote("id"))

		rows, err := s.q.QueryContext(ctx, query, args...)
		if err != nil {
			yield(Record{}, fmt.Errorf("store: select %s: %w", t.Name, err))
			return
		}
		defer rows.Close()

		cols, err := rows.Columns()
		if err != nil {
			yield(Record{}, err)
			return
		}
		for rows.Next() {
			rec, err := scanRecord(rows, cols)
			if err != nil {
				yield(Record{}, err)
				return
			}
			if !yield(rec, nil) {
				return
			}
		}
		if err := rows.Err(); err != nil {
			yield(Record{}, fmt.Errorf("store: iterate %s: %w", t.Name, err))
		}
	}
}

func (s *SQLStore) where(t Table, preds []Predicate, start int) (string, []any, error) {
	if len(preds) == 0 {
		return "", nil, nil
	}
	var b strings.Builder
	args := make([]any, 0, len(preds))
	b.WriteString(" WHERE ")
	for i, p := range preds {
		if err := s.checkColumns(t, p.Field); err != nil {
			return "", nil, err
		}
		if i > 0 {
			if p.Connector == Or {
				b.WriteString(" OR ")
			} else {
				b.WriteString(" AND ")
			}
		}
		fmt.Fprintf(&b, "%s = %s", quote(p.Field), s.dialect.placeholder(start+i))
		args = append(args, p.Value)
	}
	return b.String(), args, nil
}

func scanRecord(rows *sql.Rows, cols []string) (Record, error) {
	vals := make([]any, len(cols))
	ptrs := make([]any, len(cols))
	for i := range vals {
		ptrs[i] = &vals[i]
	}
	if err := rows.Scan(ptrs...); err != nil {
		return Record{}, fmt.Errorf("store: scan: %w", err)
	}
	rec := Record{Fields: make(Fields, len(cols))}
	for i, c := range cols {
		v := vals[i]
		if b, ok := v.([]byte); ok {
			v = string(b)
		}
		if c == "id" {
			rec.ID = Fields{"id": v}.Int("id")
			continue
		}
		rec.Fields[c] = v
	}
	return rec, nil
}

func sortedKeys[V any](m map[string]V) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

func (s *SQLStore) Create(ctx context.Context, table string, fields Fields) (int64, error) {
	t, err := s.table(table)
	if err != nil {
		return 0, err
	}
	keys := sortedKeys(fields)
	if err := s.checkColumns(t, keys...); err != nil {
		return 0, err
	}

	cols := make([]string, 0, len(keys))
	marks := make([]string, 0, len(keys))
	args := make([]any, 0, len(keys))
	for i, k := range keys {
		cols = append(cols, quote(k))
		marks = append(marks, s.dialect.placeholder(i+1))
		args = append(args, fields[k])
	}

	var query string
	if len(keys) == 0 {
		query = fmt.Sprintf("INSERT INTO %s DEFAULT VALUES RETURNING %s", quote(t.Name), quote("id"))
	} else {
		query = fmt.Sprintf("INSERT INTO %s (%s) VALUES (%s) RETURNING %s",
			quote(t.Name), strings.Join(cols, ","), strings.Join(marks, ","), quote("id"))
	}

	var id int64
	if err := s.q.QueryRowContext(ctx, query, args...).Scan(&id); err != nil {
		return 0, fmt.Errorf("store: insert %s: %w", t.Name, err)
	}
	return id, nil
}

func (s *SQLStore) Update(ctx context.Context, table string, id int64, fields Fields) error {
	t, err := s.table(table)
	if err != nil {
		return err
	}
	keys := sortedKeys(fields)
	if len(keys) == 0 {
		return nil
	}
	if err := s.checkColumns(t, keys...); err != nil {
		return err
	}
	sets := make([]string, 0, len(keys))
	args := make([]any, 0, len(keys)+1)
	for i, k := range keys {
		sets = append(sets, fmt.Sprintf("%s = %s", quote(k), s.dialect.placeholder(i+1)))
		args = append(args, fields[k])
	}
	args = append(args, id)
	query := fmt.Sprintf("UPDATE %s SET %s WHERE %s = %s",
		quote(t.Name), strings.Join(sets, ", "), quote("id"), s.dialect.placeholder(len(keys)+1))
	return s.execOne(ctx, t.Name, query, args...)
}

func (s *SQLStore) Increment(ctx context.Context, table string, id int64, deltas map[string]int64) error {
	t, err := s.table(table)
	if err != nil {
		return err
	}
	keys := sortedKeys(deltas)
	if len(keys) == 0 {
		return nil
	}
	if err := s.checkColumns(t, keys...); err != nil {
		return err
	}
	sets := make([]string, 0, len(keys))
	args := make([]any, 0, len(keys)+1)
	for i, k := range keys {
		sets = append(sets, fmt.Sprintf("%s = %s + %s", quote(k), quote(k), s.dialect.placeholder(i+1)))
		args = append(args, deltas[k])
	}
	args = append(args, id)
	query := fmt.Sprintf("UPDATE %s SET %s WHERE %s = %s",
		quote(t.Name), strings.Join(sets, ", "), quote("id"), s.dialect.placeholder(len(keys)+1))
	return s.execOne(ctx, t.Name, query, args...)
}

func (s *SQLStore) Delete(ctx context.Context, table string, id int64) error {
	t, err := s.table(table)
	if err != nil {
		return err
	}
	query := fmt.Sprintf("DELETE FROM %s WHERE %s = %s", quote(t.Name), quote("id"), s.dialect.placeholder(1))
	return s.execOne(ctx, t.Name, query, id)
}

func (s *SQLStore) DeleteByField(ctx context.Context, table, field string, value any) (int64, error) {
	t, err := s.table(table)
	if err != nil {
		return 0, err
	}
	if err := s.checkColumns(t, field); err != nil {
		return 0, err
	}
	query := fmt.Sprintf("DELETE FROM %s WHERE %s = %s", quote(t.Name), quote(field), s.dialect.placeholder(1))
	res, err := s.q.ExecContext(ctx, query, value)
	if err != nil {
		return 0, fmt.Errorf("store: delete %s: %w", t.Name, err)
	}
	n, _ := res.RowsAffected()
	return n, nil
}

func (s *SQLStore) execOne(ctx context.Context, table, query string, args ...any) error {
	res, err := s.q.ExecContext(ctx, query, args...)
	if err != nil {
		return fmt.Errorf("store: write %s: %w", table, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("store: write %s: %w", table, err)
	}
	if n == 0 {
		return ErrNotFound
	}
	return nil
}

func (s *SQLStore) InTx(ctx context.Context, fn func(Store) error) error {
	if s.inTx {
		return fn(s)
	}
	if s.db == nil {
		return errors.New("store: no database handle")
	}
	return db.WithTx(ctx, s.db, nil, func(tx *sql.Tx) error {
		return fn(&SQLStore{db: s.db, q: tx, inTx: true, dialect: s.dialect, tables: s.tables})
	})
}
