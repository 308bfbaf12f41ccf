// Package ledger keeps per-(user, task) assignment rows with their attempt
// counters, the append-only submission log, and the per-user rollup counters.
package ledger

import (
	"context"
	"encoding/json"
	"errors"

	"github.com/mind-engage/mindengage-mobile/internal/apperr"
	"github.com/mind-engage/mindengage-mobile/internal/identity"
	"github.com/mind-engage/mindengage-mobile/internal/store"
)

// NoAssignment is returned by AttemptsFor when the pair has no assignment row.
const NoAssignment int64 = -1

type Identities interface {
	Resolve(ctx context.Context, c identity.Credentials) (identity.User, error)
	RequireAdmin(ctx context.Context, c identity.Credentials) (identity.User, error)
}

type Ledger struct {
	store store.Store
	ids   Identities
}

func New(s store.Store, ids Identities) *Ledger {
	return &Ledger{store: s, ids: ids}
}

// WithStore returns a Ledger writing through s, typically a transaction view.
func (l *Ledger) WithStore(s store.Store) *Ledger {
	return &Ledger{store: s, ids: l.ids}
}

func (l *Ledger) assignment(ctx context.Context, userID, taskID int64) (store.Record, error) {
	return l.store.FindOne(ctx, store.TableAssignments, store.Eq("user_id", userID), store.Eq("task_id", taskID))
}

// AttemptsFor reports the attempt count of (userID, taskID), or NoAssignment.
func (l *Ledger) AttemptsFor(ctx context.Context, userID, taskID int64) (int64, error) {
	rec, err := l.assignment(ctx, userID, taskID)
	switch {
	case errors.Is(err, store.ErrNotFound):
		return NoAssignment, nil
	case err != nil:
		return 0, apperr.Wrap(apperr.Storage, "ledger.AttemptsFor", err)
	case rec.Empty():
		return NoAssignment, nil
	}
	return rec.Fields.Int("attempt_count"), nil
}

// Assigned reports whether any assignment row links userID to taskID.
func (l *Ledger) Assigned(ctx context.Context, userID, taskID int64) (bool, error) {
	n, err := l.AttemptsFor(ctx, userID, taskID)
	return n != NoAssignment, err
}

// Assign creates an assignment row with zero attempts. Duplicate pairs are
// not rejected here.
func (l *Ledger) Assign(ctx context.Context, userID, taskID int64) error {
	if userID <= 0 || taskID <= 0 {
		return apperr.Newf(apperr.InvalidArgument, "ledger.Assign", "invalid assignment %d/%d", userID, taskID)
	}
	_, err := l.store.Create(ctx, store.TableAssignments, store.Fields{
		"user_id":       userID,
		"task_id":       taskID,
		"attempt_count": int64(0),
	})
	return apperr.Wrap(apperr.Storage, "ledger.Assign", err)
}

// RecordAttempt upserts the assignment for (userID, taskID), creating it at
// one attempt or incrementing the existing counter, and returns the new count.
func (l *Ledger) RecordAttempt(ctx context.Context, userID, taskID int64) (int64, error) {
	const op = "ledger.RecordAttempt"
	rec, err := l.assignment(ctx, userID, taskID)
	switch {
	case errors.Is(err, store.ErrNotFound):
		_, err := l.store.Create(ctx, store.TableAssignments, store.Fields{
			"user_id":       userID,
			"task_id":       taskID,
			"attempt_count": int64(1),
		})
		if err != nil {
			return 0, apperr.Wrap(apperr.Storage, op, err)
		}
		return 1, nil
	case err != nil:
		return 0, apperr.Wrap(apperr.Storage, op, err)
	}
	if err := l.store.Increment(ctx, store.TableAssignments, rec.ID, map[string]int64{"attempt_count": 1}); err != nil {
		return 0, apperr.Wrap(apperr.Storage, op, err)
	}
	return rec.Fields.Int("attempt_count") + 1, nil
}

// Rollup is one graded submission's contribution to the user's counters.
type Rollup struct {
	Correct int
	Total   int
}

// Passed is a strict majority: ties do not pass.
func (r Rollup) Passed() bool { return r.Correct > r.Total/2 }

func (r Rollup) deltas() map[string]int64 {
	var pass int64
	if r.Passed() {
		pass = 1
	}
	return map[string]int64{
		"pass_count":  pass,
		"count":       1,
		"error_count": int64(r.Total - r.Correct),
		"count_tasks": int64(r.Total),
	}
}

// ApplyRollup adds r to the user's counters in one atomic increment.
func (l *Ledger) ApplyRollup(ctx context.Context, userID int64, r Rollup) error {
	err := l.store.Increment(ctx, store.TableUsers, userID, r.deltas())
	if errors.Is(err, store.ErrNotFound) {
		return apperr.Newf(apperr.NotFound, "ledger.ApplyRollup", "user %d not found", userID)
	}
	return apperr.Wrap(apperr.Storage, "ledger.ApplyRollup", err)
}

// AppendSubmission stores one submission's correctness sequence.
func (l *Ledger) AppendSubmission(ctx context.Context, userID, taskID int64, correctness []bool) (int64, error) {
	raw, err := json.Marshal(correctness)
	if err != nil {
		return 0, apperr.Wrap(apperr.Internal, "ledger.AppendSubmission", err)
	}
	id, err := l.store.Create(ctx, store.TableSolutions, store.Fields{
		"user_id":  userID,
		"task_id":  taskID,
		"solution": string(raw),
	})
	if err != nil {
		return 0, apperr.Wrap(apperr.Storage, "ledger.AppendSubmission", err)
	}
	return id, nil
}

// Purge removes every submission and assignment that references taskID.
func (l *Ledger) Purge(ctx context.Context, taskID int64) error {
	if _, err := l.store.DeleteByField(ctx, store.TableSolutions, "task_id", taskID); err != nil {
		return apperr.Wrap(apperr.Storage, "ledger.Purge", err)
	}
	if _, err := l.store.DeleteByField(ctx, store.TableAssignments, "task_id", taskID); err != nil {
		return apperr.Wrap(apperr.Storage, "ledger.Purge", err)
	}
	return nil
}

// AssignedTaskIDs lists the task ids userID holds assignments for, in
// assignment order and possibly with repeats.
func (l *Ledger) AssignedTaskIDs(ctx context.Context, userID int64) ([]int64, error) {
	recs, err := store.Collect(l.store.ScanByField(ctx, store.TableAssignments, "user_id", userID))
	if err != nil {
		return nil, apperr.Wrap(apperr.Storage, "ledger.AssignedTaskIDs", err)
	}
	ids := make([]int64, 0, len(recs))
	for _, rec := range recs {
		ids = append(ids, rec.Fields.Int("task_id"))
	}
	return ids, nil
}
