package store_test

import (
	"context"
	"errors"
	"path/filepath"
	"testing"
	"time"

	"github.com/mind-engage/mindengage-mobile/internal/db"
	"github.com/mind-engage/mindengage-mobile/internal/store"
)

// backends returns a freshly provisioned store per implementation.
func backends(t *testing.T) map[string]store.Store {
	t.Helper()
	ctx := context.Background()

	dsn := "file:" + filepath.Join(t.TempDir(), "store.db") + "?mode=rwc"
	handle, err := db.Open(ctx, db.DriverSQLite, dsn)
	if err != nil {
		t.Fatalf("open sqlite: %v", err)
	}
	t.Cleanup(func() { _ = handle.Close() })

	out := map[string]store.Store{
		"memory": store.NewMemoryStore(),
		"sqlite": store.NewSQLStore(handle, db.DriverSQLite),
	}
	for name, s := range out {
		if err := store.Provision(ctx, s); err != nil {
			t.Fatalf("%s: provision: %v", name, err)
		}
	}
	return out
}

func seedUser(t *testing.T, s store.Store, name, token string) int64 {
	t.Helper()
	id, err := s.Create(context.Background(), store.TableUsers, store.Fields{
		"username": name, "password": "x", "token": token,
	})
	if err != nil {
		t.Fatalf("create user %s: %v", name, err)
	}
	return id
}

func TestCreateFindAndDefaults(t *testing.T) {
	ctx := context.Background()
	for name, s := range backends(t) {
		t.Run(name, func(t *testing.T) {
			id := seedUser(t, s, "ann", "tok-a")
			if id <= 0 {
				t.Fatalf("want positive id, got %d", id)
			}
			rec, err := s.FindByID(ctx, store.TableUsers, id)
			if err != nil {
				t.Fatalf("find: %v", err)
			}
			if rec.ID != id || rec.Fields.String("username") != "ann" {
				t.Fatalf("unexpected record %+v", rec)
			}
			if rec.Fields.Int("count") != 0 || rec.Fields.Bool("is_admin") {
				t.Fatalf("defaults not applied: %+v", rec.Fields)
			}
			if _, err := s.FindByID(ctx, store.TableUsers, id+100); !errors.Is(err, store.ErrNotFound) {
				t.Fatalf("want ErrNotFound, got %v", err)
			}
		})
	}
}

func TestFindOnePrecedence(t *testing.T) {
	ctx := context.Background()
	for name, s := range backends(t) {
		t.Run(name, func(t *testing.T) {
			a := seedUser(t, s, "ann", "tok-a")
			b := seedUser(t, s, "bob", "tok-b")

			rec, err := s.FindOne(ctx, store.TableUsers, store.Eq("id", a), store.Eq("token", "tok-a"))
			if err != nil || rec.ID != a {
				t.Fatalf("AND match: rec=%+v err=%v", rec, err)
			}
			if _, err := s.FindOne(ctx, store.TableUsers, store.Eq("id", a), store.Eq("token", "tok-b")); !errors.Is(err, store.ErrNotFound) {
				t.Fatalf("mismatched AND should miss, got %v", err)
			}
			// id=a AND token=nope OR username=bob  ->  (false) OR (bob)
			rec, err = s.FindOne(ctx, store.TableUsers,
				store.Eq("id", a), store.Eq("token", "nope"), store.OrEq("username", "bob"))
			if err != nil || rec.ID != b {
				t.Fatalf("OR group: rec=%+v err=%v", rec, err)
			}
		})
	}
}

func TestScanOrderAndUnknownNames(t *testing.T) {
	ctx := context.Background()
	for name, s := range backends(t) {
		t.Run(name, func(t *testing.T) {
			ids := []int64{seedUser(t, s, "a", "1"), seedUser(t, s, "b", "2"), seedUser(t, s, "c", "3")}
			recs, err := store.Collect(s.ScanAll(ctx, store.TableUsers))
			if err != nil {
				t.Fatalf("scan: %v", err)
			}
			if len(recs) != 3 {
				t.Fatalf("want 3 rows, got %d", len(recs))
			}
			for i, r := range recs {
				if r.ID != ids[i] {
					t.Fatalf("row %d: want id %d got %d", i, ids[i], r.ID)
				}
			}
			if _, err := store.Collect(s.ScanAll(ctx, "nope")); err == nil {
				t.Fatal("expected error for unknown table")
			}
			if _, err := store.Collect(s.ScanByField(ctx, store.TableUsers, "nope", 1)); err == nil {
				t.Fatal("expected error for unknown column")
			}
		})
	}
}

func TestIncrementUpdateDelete(t *testing.T) {
	ctx := context.Background()
	for name, s := range backends(t) {
		t.Run(name, func(t *testing.T) {
			id := seedUser(t, s, "ann", "tok")
			if err := s.Increment(ctx, store.TableUsers, id, map[string]int64{"count": 1, "count_tasks": 4}); err != nil {
				t.Fatalf("increment: %v", err)
			}
			if err := s.Increment(ctx, store.TableUsers, id, map[string]int64{"count": 1}); err != nil {
				t.Fatalf("increment: %v", err)
			}
			if err := s.Update(ctx, store.TableUsers, id, store.Fields{"is_admin": true}); err != nil {
				t.Fatalf("update: %v", err)
			}
			rec, _ := s.FindByID(ctx, store.TableUsers, id)
			if rec.Fields.Int("count") != 2 || rec.Fields.Int("count_tasks") != 4 || !rec.Fields.Bool("is_admin") {
				t.Fatalf("unexpected fields: %+v", rec.Fields)
			}
			if err := s.Increment(ctx, store.TableUsers, 999, map[string]int64{"count": 1}); !errors.Is(err, store.ErrNotFound) {
				t.Fatalf("increment missing: %v", err)
			}
			if err := s.Delete(ctx, store.TableUsers, id); err != nil {
				t.Fatalf("delete: %v", err)
			}
			if err := s.Delete(ctx, store.TableUsers, id); !errors.Is(err, store.ErrNotFound) {
				t.Fatalf("second delete: %v", err)
			}
		})
	}
}

func TestDeleteByField(t *testing.T) {
	ctx := context.Background()
	for name, s := range backends(t) {
		t.Run(name, func(t *testing.T) {
			u := seedUser(t, s, "ann", "tok")
			task, err := s.Create(ctx, store.TableTasks, store.Fields{"title": "t", "visibility": "global"})
			if err != nil {
				t.Fatalf("create task: %v", err)
			}
			for i := 0; i < 2; i++ {
				if _, err := s.Create(ctx, store.TableAssignments, store.Fields{"user_id": u, "task_id": task}); err != nil {
					t.Fatalf("assign: %v", err)
				}
			}
			n, err := s.DeleteByField(ctx, store.TableAssignments, "task_id", task)
			if err != nil || n != 2 {
				t.Fatalf("delete by field: n=%d err=%v", n, err)
			}
			rest, _ := store.Collect(s.ScanByField(ctx, store.TableAssignments, "task_id", task))
			if len(rest) != 0 {
				t.Fatalf("want no rows left, got %d", len(rest))
			}
		})
	}
}

func TestInTxRollsBack(t *testing.T) {
	ctx := context.Background()
	boom := errors.New("boom")
	for name, s := range backends(t) {
		t.Run(name, func(t *testing.T) {
			err := s.InTx(ctx, func(tx store.Store) error {
				if _, err := tx.Create(ctx, store.TableUsers, store.Fields{"username": "ghost", "password": "x", "token": "g"}); err != nil {
					return err
				}
				// nested calls join the outer transaction
				return tx.InTx(ctx, func(inner store.Store) error {
					if _, err := inner.FindOne(ctx, store.TableUsers, store.Eq("username", "ghost")); err != nil {
						t.Fatalf("row not visible inside tx: %v", err)
					}
					return boom
				})
			})
			if !errors.Is(err, boom) {
				t.Fatalf("want boom, got %v", err)
			}
			if _, err := s.FindOne(ctx, store.TableUsers, store.Eq("username", "ghost")); !errors.Is(err, store.ErrNotFound) {
				t.Fatalf("row survived rollback: %v", err)
			}

			if err := s.InTx(ctx, func(tx store.Store) error {
				_, err := tx.Create(ctx, store.TableUsers, store.Fields{"username": "kept", "password": "x", "token": "k"})
				return err
			}); err != nil {
				t.Fatalf("commit: %v", err)
			}
			if _, err := s.FindOne(ctx, store.TableUsers, store.Eq("username", "kept")); err != nil {
				t.Fatalf("committed row missing: %v", err)
			}
		})
	}
}

func TestMemoryRollbackKeepsOutsideWrites(t *testing.T) {
	ctx := context.Background()
	s := store.NewMemoryStore()
	if err := store.Provision(ctx, s); err != nil {
		t.Fatalf("provision: %v", err)
	}
	boom := errors.New("boom")
	done := make(chan error, 1)

	err := s.InTx(ctx, func(tx store.Store) error {
		if _, err := tx.Create(ctx, store.TableUsers, store.Fields{"username": "ghost", "password": "x", "token": "g"}); err != nil {
			return err
		}
		go func() {
			_, err := s.Create(ctx, store.TableUsers, store.Fields{"username": "outside", "password": "x", "token": "o"})
			done <- err
		}()
		select {
		case err := <-done:
			t.Errorf("outside write finished during tx: %v", err)
		case <-time.After(50 * time.Millisecond):
		}
		return boom
	})
	if !errors.Is(err, boom) {
		t.Fatalf("want boom, got %v", err)
	}
	select {
	case err := <-done:
		if err != nil {
			t.Fatalf("outside create: %v", err)
		}
	case <-time.After(time.Second):
		t.Fatal("outside write never finished")
	}
	if _, err := s.FindOne(ctx, store.TableUsers, store.Eq("username", "outside")); err != nil {
		t.Fatalf("outside write lost: %v", err)
	}
	if _, err := s.FindOne(ctx, store.TableUsers, store.Eq("username", "ghost")); !errors.Is(err, store.ErrNotFound) {
		t.Fatalf("tx row survived rollback: %v", err)
	}
}

func TestUniqueUsername(t *testing.T) {
	for name, s := range backends(t) {
		t.Run(name, func(t *testing.T) {
			seedUser(t, s, "ann", "t1")
			if _, err := s.Create(context.Background(), store.TableUsers, store.Fields{
				"username": "ann", "password": "x", "token": "t2",
			}); err == nil {
				t.Fatal("expected unique violation")
			}
		})
	}
}
