package grading

import (
	"context"

	"github.com/mind-engage/mindengage-mobile/internal/apperr"
	"github.com/mind-engage/mindengage-mobile/internal/identity"
	"github.com/mind-engage/mindengage-mobile/internal/ledger"
	"github.com/mind-engage/mindengage-mobile/internal/store"
	"github.com/mind-engage/mindengage-mobile/internal/task"
)

type Identities interface {
	Resolve(ctx context.Context, c identity.Credentials) (identity.User, error)
}

// Catalogue is the slice of the task catalogue grading reads from.
type Catalogue interface {
	Load(ctx context.Context, taskID int64) (task.Task, error)
	Item(ctx context.Context, id int64) (task.Item, error)
	CanAccess(ctx context.Context, u identity.User, t task.Task) (bool, error)
}

// Result is what a submitter gets back.
type Result struct {
	Outcome
	Passed       bool  `json:"passed"`
	Attempt      int64 `json:"attempt"`
	SubmissionID int64 `json:"submissionId"`
}

// Engine is the single entry point that moves a user's rollup counters.
type Engine struct {
	store  store.Store
	ids    Identities
	tasks  Catalogue
	ledger *ledger.Ledger
}

func NewEngine(s store.Store, ids Identities, tasks Catalogue, led *ledger.Ledger) *Engine {
	return &Engine{store: s, ids: ids, tasks: tasks, ledger: led}
}

// Submit grades answers for taskID and, in one transaction, appends the
// submission, applies the rollup and bumps the caller's attempt counter.
func (e *Engine) Submit(ctx context.Context, caller identity.Credentials, taskID int64, answers []int) (Result, error) {
	const op = "grading.Submit"
	if taskID <= 0 {
		return Result{}, apperr.New(apperr.InvalidArgument, op, "taskId must be positive")
	}
	u, err := e.ids.Resolve(ctx, caller)
	if err != nil {
		return Result{}, err
	}
	t, err := e.tasks.Load(ctx, taskID)
	if err != nil {
		return Result{}, err
	}
	ok, err := e.tasks.CanAccess(ctx, u, t)
	if err != nil {
		return Result{}, err
	}
	if !ok {
		return Result{}, apperr.Newf(apperr.NotFound, op, "task %d not found", taskID)
	}
	if len(answers) != len(t.ItemIDs) {
		return Result{}, apperr.Newf(apperr.Conflict, op,
			"answer-count mismatch: got %d answers for %d items", len(answers), len(t.ItemIDs))
	}
	// Items are checked in order, so the first bad position decides the error.
	items := make([]task.Item, 0, len(t.ItemIDs))
	for i, id := range t.ItemIDs {
		it, err := e.tasks.Item(ctx, id)
		if err != nil {
			return Result{}, err
		}
		if err := checkAnswer(it, answers[i]); err != nil {
			return Result{}, err
		}
		items = append(items, it)
	}
	out, err := Grade(items, answers)
	if err != nil {
		return Result{}, err
	}

	res := Result{Outcome: out, Passed: out.Passed()}
	err = e.store.InTx(ctx, func(tx store.Store) error {
		led := e.ledger.WithStore(tx)
		var err error
		if res.SubmissionID, err = led.AppendSubmission(ctx, u.ID, t.ID, out.Correctness); err != nil {
			return err
		}
		if err := led.ApplyRollup(ctx, u.ID, ledger.Rollup{Correct: out.CorrectCount, Total: out.Total}); err != nil {
			return err
		}
		res.Attempt, err = led.RecordAttempt(ctx, u.ID, t.ID)
		return err
	})
	if err != nil {
		return Result{}, err
	}
	return res, nil
}
