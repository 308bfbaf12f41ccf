package store

import (
	"context"
	"fmt"
	"iter"
	"sort"
	"sync"
)

type memTable struct {
	schema Table
	nextID int64
	rows   map[int64]Fields
}

func (t *memTable) clone() *memTable {
	out := &memTable{schema: t.schema, nextID: t.nextID, rows: make(map[int64]Fields, len(t.rows))}
	for id, f := range t.rows {
		out.rows[id] = f.clone()
	}
	return out
}

// MemoryStore is an in-process Store for tests. Writes made outside a
// transaction wait for a running one to finish, so restoring its snapshot
// on failure never discards them.
type MemoryStore struct {
	mu     sync.RWMutex
	txMu   sync.Mutex
	tables map[string]*memTable
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{tables: map[string]*memTable{}}
}

func (m *MemoryStore) CreateTable(_ context.Context, t Table) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.tables[t.Name]; ok {
		return nil
	}
	m.tables[t.Name] = &memTable{schema: t, rows: map[int64]Fields{}}
	return nil
}

func (m *MemoryStore) table(name string) (*memTable, error) {
	t, ok := m.tables[name]
	if !ok {
		return nil, fmt.Errorf("store: unknown table %q", name)
	}
	return t, nil
}

func checkMemColumns(t *memTable, names ...string) error {
	for _, n := range names {
		if n == "id" {
			continue
		}
		if _, ok := t.schema.column(n); !ok {
			return fmt.Errorf("store: unknown column %s.%s", t.schema.Name, n)
		}
	}
	return nil
}

func (m *MemoryStore) ScanAll(ctx context.Context, table string) iter.Seq2[Record, error] {
	return m.selectSeq(table, nil)
}

func (m *MemoryStore) ScanByField(ctx context.Context, table, field string, value any) iter.Seq2[Record, error] {
	return m.selectSeq(table, []Predicate{Eq(field, value)})
}

func (m *MemoryStore) FindOne(ctx context.Context, table string, preds ...Predicate) (Record, error) {
	for rec, err := range m.selectSeq(table, preds) {
		if err != nil {
			return Record{}, err
		}
		return rec, nil
	}
	return Record{}, ErrNotFound
}

func (m *MemoryStore) FindByID(ctx context.Context, table string, id int64) (Record, error) {
	return m.FindOne(ctx, table, Eq("id", id))
}

// selectSeq snapshots matching rows under the read lock and yields them
// without holding it, so callers may write from inside the loop.
func (m *MemoryStore) selectSeq(table string, preds []Predicate) iter.Seq2[Record, error] {
	return func(yield func(Record, error) bool) {
		m.mu.RLock()
		t, err := m.table(table)
		if err == nil {
			for _, p := range preds {
				if err = checkMemColumns(t, p.Field); err != nil {
					break
				}
			}
		}
		if err != nil {
			m.mu.RUnlock()
			yield(Record{}, err)
			return
		}
		ids := make([]int64, 0, len(t.rows))
		for id, f := range t.rows {
			if matches(id, f, preds) {
				ids = append(ids, id)
			}
		}
		sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
		recs := make([]Record, 0, len(ids))
		for _, id := range ids {
			recs = append(recs, Record{ID: id, Fields: t.rows[id].clone()})
		}
		m.mu.RUnlock()

		for _, rec := range recs {
			if !yield(rec, nil) {
				return
			}
		}
	}
}

// matches evaluates preds with SQL precedence: OR separates groups of
// AND-ed equality tests.
func matches(id int64, f Fields, preds []Predicate) bool {
	if len(preds) == 0 {
		return true
	}
	group := true
	for i, p := range preds {
		if i > 0 && p.Connector == Or {
			if group {
				return true
			}
			group = true
		}
		group = group && equalValue(id, f, p)
	}
	return group
}

func equalValue(id int64, f Fields, p Predicate) bool {
	if p.Field == "id" {
		return Fields{"v": p.Value}.Int("v") == id
	}
	switch p.Value.(type) {
	case bool:
		return f.Bool(p.Field) == Fields{"v": p.Value}.Bool("v")
	case int, int32, int64:
		return f.Int(p.Field) == Fields{"v": p.Value}.Int("v")
	default:
		return f.String(p.Field) == Fields{"v": p.Value}.String("v")
	}
}

func (m *MemoryStore) create(ctx context.Context, table string, fields Fields) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	t, err := m.table(table)
	if err != nil {
		return 0, err
	}
	if err := checkMemColumns(t, sortedKeys(fields)...); err != nil {
		return 0, err
	}

	row := Fields{}
	for _, c := range t.schema.Columns {
		if c.PrimaryKey {
			continue
		}
		v, ok := fields[c.Name]
		if !ok || v == nil {
			if c.Default != nil {
				v = c.Default
			} else if !c.Nullable {
				return 0, fmt.Errorf("store: insert %s: %s is required", t.schema.Name, c.Name)
			}
		}
		row[c.Name] = v
	}
	if err := checkUnique(t, 0, row); err != nil {
		return 0, err
	}
	t.nextID++
	t.rows[t.nextID] = row
	return t.nextID, nil
}

func checkUnique(t *memTable, self int64, row Fields) error {
	for _, c := range t.schema.Columns {
		if !c.Unique || c.PrimaryKey {
			continue
		}
		v, ok := row[c.Name]
		if !ok || v == nil {
			continue
		}
		for id, other := range t.rows {
			if id != self && other.String(c.Name) == row.String(c.Name) {
				return fmt.Errorf("store: unique constraint failed: %s.%s", t.schema.Name, c.Name)
			}
		}
	}
	return nil
}

func (m *MemoryStore) update(ctx context.Context, table string, id int64, fields Fields) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	t, err := m.table(table)
	if err != nil {
		return err
	}
	if err := checkMemColumns(t, sortedKeys(fields)...); err != nil {
		return err
	}
	row, ok := t.rows[id]
	if !ok {
		return ErrNotFound
	}
	next := row.clone()
	for k, v := range fields {
		next[k] = v
	}
	if err := checkUnique(t, id, next); err != nil {
		return err
	}
	t.rows[id] = next
	return nil
}

func (m *MemoryStore) increment(ctx context.Context, table string, id int64, deltas map[string]int64) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	t, err := m.table(table)
	if err != nil {
		return err
	}
	if err := checkMemColumns(t, sortedKeys(deltas)...); err != nil {
		return err
	}
	row, ok := t.rows[id]
	if !ok {
		return ErrNotFound
	}
	for k, d := range deltas {
		row[k] = row.Int(k) + d
	}
	return nil
}

func (m *MemoryStore) delete(ctx context.Context, table string, id int64) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	t, err := m.table(table)
	if err != nil {
		return err
	}
	if _, ok := t.rows[id]; !ok {
		return ErrNotFound
	}
	delete(t.rows, id)
	return nil
}

func (m *MemoryStore) deleteByField(ctx context.Context, table, field string, value any) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	t, err := m.table(table)
	if err != nil {
		return 0, err
	}
	if err := checkMemColumns(t, field); err != nil {
		return 0, err
	}
	var n int64
	pred := []Predicate{Eq(field, value)}
	for id, f := range t.rows {
		if matches(id, f, pred) {
			delete(t.rows, id)
			n++
		}
	}
	return n, nil
}

func (m *MemoryStore) InTx(ctx context.Context, fn func(Store) error) error {
	m.txMu.Lock()
	defer m.txMu.Unlock()

	m.mu.RLock()
	snapshot := make(map[string]*memTable, len(m.tables))
	for name, t := range m.tables {
		snapshot[name] = t.clone()
	}
	m.mu.RUnlock()

	if err := fn(memTx{m}); err != nil {
		m.mu.Lock()
		m.tables = snapshot
		m.mu.Unlock()
		return err
	}
	return nil
}

func (m *MemoryStore) Create(ctx context.Context, table string, fields Fields) (int64, error) {
	m.txMu.Lock()
	defer m.txMu.Unlock()
	return m.create(ctx, table, fields)
}

func (m *MemoryStore) Update(ctx context.Context, table string, id int64, fields Fields) error {
	m.txMu.Lock()
	defer m.txMu.Unlock()
	return m.update(ctx, table, id, fields)
}

func (m *MemoryStore) Increment(ctx context.Context, table string, id int64, deltas map[string]int64) error {
	m.txMu.Lock()
	defer m.txMu.Unlock()
	return m.increment(ctx, table, id, deltas)
}

func (m *MemoryStore) Delete(ctx context.Context, table string, id int64) error {
	m.txMu.Lock()
	defer m.txMu.Unlock()
	return m.delete(ctx, table, id)
}

func (m *MemoryStore) DeleteByField(ctx context.Context, table, field string, value any) (int64, error) {
	m.txMu.Lock()
	defer m.txMu.Unlock()
	return m.deleteByField(ctx, table, field, value)
}

// memTx is the view handed to InTx callbacks. It already holds txMu, so its
// writes go straight to the tables and nested InTx joins the outer one.
type memTx struct{ *MemoryStore }

func (t memTx) Create(ctx context.Context, table string, fields Fields) (int64, error) {
	return t.create(ctx, table, fields)
}

func (t memTx) Update(ctx context.Context, table string, id int64, fields Fields) error {
	return t.update(ctx, table, id, fields)
}

func (t memTx) Increment(ctx context.Context, table string, id int64, deltas map[string]int64) error {
	return t.increment(ctx, table, id, deltas)
}

func (t memTx) Delete(ctx context.Context, table string, id int64) error {
	return t.delete(ctx, table, id)
}

func (t memTx) DeleteByField(ctx context.Context, table, field string, value any) (int64, error) {
	return t.deleteByField(ctx, table, field, value)
}

func (t memTx) InTx(_ context.Context, fn func(Store) error) error { return fn(t) }
