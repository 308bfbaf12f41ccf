package grading_test

import (
	"context"
	"errors"
	"reflect"
	"testing"

	"golang.org/x/crypto/bcrypt"

	"github.com/mind-engage/mindengage-mobile/internal/apperr"
	"github.com/mind-engage/mindengage-mobile/internal/grading"
	"github.com/mind-engage/mindengage-mobile/internal/identity"
	"github.com/mind-engage/mindengage-mobile/internal/ledger"
	"github.com/mind-engage/mindengage-mobile/internal/store"
	"github.com/mind-engage/mindengage-mobile/internal/task"
)

// fourItems has correct indices [0,1,0,2].
func fourItems() []task.NewItem {
	mk := func(correct, n int) task.NewItem {
		opts := make([]task.AnswerOption, n)
		for i := range opts {
			opts[i] = task.AnswerOption{Text: string(rune('a' + i)), IsCorrect: i == correct}
		}
		return task.NewItem{Question: "q", Options: opts}
	}
	return []task.NewItem{mk(0, 2), mk(1, 3), mk(0, 2), mk(2, 3)}
}

func toItems(in []task.NewItem) []task.Item {
	out := make([]task.Item, len(in))
	for i, it := range in {
		out[i] = task.Item{ID: int64(i + 1), Question: it.Question, Options: it.Options}
	}
	return out
}

func TestGrade(t *testing.T) {
	items := toItems(fourItems())
	cases := []struct {
		name    string
		answers []int
		want    []bool
		passed  bool
		err     error
	}{
		{"example", []int{0, 1, 1, 2}, []bool{true, true, false, true}, true, nil},
		{"all right", []int{0, 1, 0, 2}, []bool{true, true, true, true}, true, nil},
		{"tie fails", []int{0, 1, 1, 0}, []bool{true, true, false, false}, false, nil},
		{"too few", []int{0, 1, 0}, nil, false, apperr.ErrConflict},
		{"too many", []int{0, 1, 0, 2, 0}, nil, false, apperr.ErrConflict},
		{"negative", []int{0, -1, 0, 2}, nil, false, apperr.ErrConflict},
		{"past end", []int{0, 1, 2, 2}, nil, false, apperr.ErrConflict},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			got, err := grading.Grade(items, tc.answers)
			if tc.err != nil {
				if !errors.Is(err, tc.err) {
					t.Fatalf("want %v got %v", tc.err, err)
				}
				return
			}
			if err != nil {
				t.Fatalf("grade: %v", err)
			}
			if !reflect.DeepEqual(got.Correctness, tc.want) || got.Passed() != tc.passed || got.Total != 4 {
				t.Fatalf("unexpected outcome %+v", got)
			}
		})
	}
}

func TestPassedFollowsLedgerRule(t *testing.T) {
	for total := 0; total <= 5; total++ {
		for correct := 0; correct <= total; correct++ {
			o := grading.Outcome{CorrectCount: correct, Total: total}
			r := ledger.Rollup{Correct: correct, Total: total}
			if o.Passed() != r.Passed() {
				t.Fatalf("%d/%d: outcome passed=%v rollup passed=%v", correct, total, o.Passed(), r.Passed())
			}
		}
	}
}

type env struct {
	store  store.Store
	ids    *identity.Resolver
	cat    *task.Catalogue
	ledger *ledger.Ledger
	engine *grading.Engine
	admin  identity.Credentials
	ann    identity.User
	bob    identity.User
}

func newEnv(t *testing.T) env {
	t.Helper()
	ctx := context.Background()
	s := store.NewMemoryStore()
	if err := store.Provision(ctx, s); err != nil {
		t.Fatalf("provision: %v", err)
	}
	ids := identity.NewResolver(s, bcrypt.MinCost)
	admin, _, err := ids.EnsureAdmin(ctx, "root", "pw")
	if err != nil {
		t.Fatalf("admin: %v", err)
	}
	ann, _ := ids.Register(ctx, "ann", "pw")
	bob, _ := ids.Register(ctx, "bob", "pw")
	led := ledger.New(s, ids)
	cat := task.NewCatalogue(s, ids, led)
	return env{
		store: s, ids: ids, cat: cat, ledger: led,
		engine: grading.NewEngine(s, ids, cat, led),
		admin:  identity.Credentials{UserID: admin.ID, Token: admin.Token},
		ann:    ann, bob: bob,
	}
}

func creds(u identity.User) identity.Credentials {
	return identity.Credentials{UserID: u.ID, Token: u.Token}
}

func TestSubmitUpdatesLedger(t *testing.T) {
	ctx := context.Background()
	e := newEnv(t)
	taskID, err := e.cat.Create(ctx, e.admin, task.NewTask{Title: "quiz", Items: fourItems()})
	if err != nil {
		t.Fatalf("create: %v", err)
	}

	for attempt := int64(1); attempt <= 2; attempt++ {
		res, err := e.engine.Submit(ctx, creds(e.ann), taskID, []int{0, 1, 1, 2})
		if err != nil {
			t.Fatalf("submit %d: %v", attempt, err)
		}
		if res.CorrectCount != 3 || !res.Passed || res.Attempt != attempt {
			t.Fatalf("submit %d: %+v", attempt, res)
		}
		if !reflect.DeepEqual(res.Correctness, []bool{true, true, false, true}) {
			t.Fatalf("correctness %v", res.Correctness)
		}
	}

	u, err := e.ids.Resolve(ctx, creds(e.ann))
	if err != nil {
		t.Fatalf("resolve: %v", err)
	}
	if u.PassCount != 2 || u.Count != 2 || u.ErrorCount != 2 || u.CountTasks != 8 {
		t.Fatalf("counters %+v", u)
	}
	if n, _ := e.ledger.AttemptsFor(ctx, e.ann.ID, taskID); n != 2 {
		t.Fatalf("attempts %d", n)
	}
	subs, _ := store.Collect(e.store.ScanByField(ctx, store.TableSolutions, "task_id", taskID))
	if len(subs) != 2 {
		t.Fatalf("want 2 submissions retained, got %d", len(subs))
	}
	if subs[0].Fields.String("solution") != "[true,true,false,true]" {
		t.Fatalf("stored correctness %q", subs[0].Fields.String("solution"))
	}
}

func TestSubmitRejections(t *testing.T) {
	ctx := context.Background()
	e := newEnv(t)
	private, err := e.cat.Create(ctx, e.admin, task.NewTask{Title: "private", Items: fourItems(), AssignedUsers: []int64{e.ann.ID}})
	if err != nil {
		t.Fatalf("create: %v", err)
	}

	cases := []struct {
		name   string
		caller identity.Credentials
		taskID int64
		ans    []int
		want   error
	}{
		{"bad token", identity.Credentials{UserID: e.ann.ID, Token: "x"}, private, []int{0, 1, 0, 2}, apperr.ErrUnauthorized},
		{"anonymous", identity.Credentials{}, private, []int{0, 1, 0, 2}, apperr.ErrInvalidArgument},
		{"zero task", creds(e.ann), 0, []int{0, 1, 0, 2}, apperr.ErrInvalidArgument},
		{"missing task", creds(e.ann), 999, []int{0, 1, 0, 2}, apperr.ErrNotFound},
		{"not assigned", creds(e.bob), private, []int{0, 1, 0, 2}, apperr.ErrNotFound},
		{"count mismatch", creds(e.ann), private, []int{0}, apperr.ErrConflict},
		{"index out of range", creds(e.ann), private, []int{0, 1, 0, 9}, apperr.ErrConflict},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if _, err := e.engine.Submit(ctx, tc.caller, tc.taskID, tc.ans); !errors.Is(err, tc.want) {
				t.Fatalf("want %v got %v", tc.want, err)
			}
		})
	}

	u, _ := e.ids.Resolve(ctx, creds(e.ann))
	if u.Count != 0 {
		t.Fatalf("rejected submissions moved counters: %+v", u)
	}
	subs, _ := store.Collect(e.store.ScanAll(ctx, store.TableSolutions))
	if len(subs) != 0 {
		t.Fatalf("rejected submissions were stored: %d", len(subs))
	}
}

func TestSubmitWithMissingItem(t *testing.T) {
	ctx := context.Background()
	e := newEnv(t)
	taskID, err := e.cat.Create(ctx, e.admin, task.NewTask{Title: "quiz", Items: fourItems()})
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	tk, err := e.cat.Load(ctx, taskID)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	last := tk.ItemIDs[len(tk.ItemIDs)-1]
	if err := e.store.Delete(ctx, store.TableTaskItems, last); err != nil {
		t.Fatalf("delete item: %v", err)
	}

	cases := []struct {
		name string
		ans  []int
		want error
	}{
		{"valid answers", []int{0, 1, 0, 2}, apperr.ErrNotFound},
		{"bad index before gap", []int{9, 1, 0, 2}, apperr.ErrConflict},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if _, err := e.engine.Submit(ctx, creds(e.ann), taskID, tc.ans); !errors.Is(err, tc.want) {
				t.Fatalf("want %v got %v", tc.want, err)
			}
		})
	}

	u, _ := e.ids.Resolve(ctx, creds(e.ann))
	if u.Count != 0 || u.CountTasks != 0 {
		t.Fatalf("counters moved: %+v", u)
	}
	if n, _ := e.ledger.AttemptsFor(ctx, e.ann.ID, taskID); n != ledger.NoAssignment {
		t.Fatalf("attempts %d", n)
	}
	subs, _ := store.Collect(e.store.ScanAll(ctx, store.TableSolutions))
	if len(subs) != 0 {
		t.Fatalf("submissions stored: %d", len(subs))
	}
}

func TestGradingIsDeterministic(t *testing.T) {
	ctx := context.Background()
	e := newEnv(t)
	taskID, _ := e.cat.Create(ctx, e.admin, task.NewTask{Title: "quiz", Items: fourItems()})

	a, err := e.engine.Submit(ctx, creds(e.ann), taskID, []int{1, 1, 0, 0})
	if err != nil {
		t.Fatalf("ann: %v", err)
	}
	if _, err := e.engine.Submit(ctx, creds(e.bob), taskID, []int{0, 0, 0, 0}); err != nil {
		t.Fatalf("bob: %v", err)
	}
	b, err := e.engine.Submit(ctx, creds(e.ann), taskID, []int{1, 1, 0, 0})
	if err != nil {
		t.Fatalf("ann again: %v", err)
	}
	if !reflect.DeepEqual(a.Correctness, b.Correctness) || a.Passed != b.Passed {
		t.Fatalf("grading changed between calls: %+v vs %+v", a, b)
	}
}
