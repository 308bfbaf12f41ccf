package task

import (
	"context"
	"errors"

	"github.com/mind-engage/mindengage-mobile/internal/apperr"
	"github.com/mind-engage/mindengage-mobile/internal/identity"
	"github.com/mind-engage/mindengage-mobile/internal/ledger"
	"github.com/mind-engage/mindengage-mobile/internal/store"
)

type Identities interface {
	Resolve(ctx context.Context, c identity.Credentials) (identity.User, error)
	RequireAdmin(ctx context.Context, c identity.Credentials) (identity.User, error)
}

type Catalogue struct {
	store  store.Store
	ids    Identities
	ledger *ledger.Ledger
}

func NewCatalogue(s store.Store, ids Identities, led *ledger.Ledger) *Catalogue {
	return &Catalogue{store: s, ids: ids, ledger: led}
}

// ListVisible returns global tasks followed by the caller's assigned tasks,
// each task at most once. Callers with a non-positive id get the global
// tasks only; any other caller must resolve.
func (c *Catalogue) ListVisible(ctx context.Context, caller identity.Credentials) ([]Summary, error) {
	const op = "task.ListVisible"
	all, err := store.Collect(c.store.ScanAll(ctx, store.TableTasks))
	if err != nil {
		return nil, apperr.Wrap(apperr.Storage, op, err)
	}

	seen := make(map[int64]struct{}, len(all))
	out := []Summary{}
	for _, rec := range all {
		t, err := taskFromRecord(rec)
		if err != nil {
			return nil, apperr.Wrap(apperr.Internal, op, err)
		}
		if t.Visibility == Global {
			seen[t.ID] = struct{}{}
			out = append(out, t.Summary())
		}
	}
	if caller.UserID <= 0 {
		return out, nil
	}

	u, err := c.ids.Resolve(ctx, caller)
	if err != nil {
		return nil, err
	}
	assigned, err := c.ledger.AssignedTaskIDs(ctx, u.ID)
	if err != nil {
		return nil, err
	}
	for _, id := range assigned {
		if _, dup := seen[id]; dup {
			continue
		}
		t, err := c.Load(ctx, id)
		if errors.Is(err, apperr.ErrNotFound) {
			continue
		}
		if err != nil {
			return nil, err
		}
		seen[id] = struct{}{}
		out = append(out, t.Summary())
	}
	return out, nil
}

// Load fetches one task.
func (c *Catalogue) Load(ctx context.Context, taskID int64) (Task, error) {
	const op = "task.Load"
	if taskID <= 0 {
		return Task{}, apperr.New(apperr.InvalidArgument, op, "taskId must be positive")
	}
	rec, err := c.store.FindByID(ctx, store.TableTasks, taskID)
	switch {
	case errors.Is(err, store.ErrNotFound) || (err == nil && rec.Empty()):
		return Task{}, apperr.Newf(apperr.NotFound, op, "task %d not found", taskID)
	case err != nil:
		return Task{}, apperr.Wrap(apperr.Storage, op, err)
	}
	t, err := taskFromRecord(rec)
	if err != nil {
		return Task{}, apperr.Wrap(apperr.Internal, op, err)
	}
	return t, nil
}

// Item loads one task item. A missing item is a data-integrity fault
// reported as NotFound.
func (c *Catalogue) Item(ctx context.Context, id int64) (Item, error) {
	const op = "task.Item"
	rec, err := c.store.FindByID(ctx, store.TableTaskItems, id)
	switch {
	case errors.Is(err, store.ErrNotFound) || (err == nil && rec.Empty()):
		return Item{}, apperr.Newf(apperr.NotFound, op, "task item %d missing", id)
	case err != nil:
		return Item{}, apperr.Wrap(apperr.Storage, op, err)
	}
	it, err := itemFromRecord(rec)
	if err != nil {
		return Item{}, apperr.Wrap(apperr.Internal, op, err)
	}
	return it, nil
}

// Items loads t's items in stored item-id order.
func (c *Catalogue) Items(ctx context.Context, t Task) ([]Item, error) {
	items := make([]Item, 0, len(t.ItemIDs))
	for _, id := range t.ItemIDs {
		it, err := c.Item(ctx, id)
		if err != nil {
			return nil, err
		}
		items = append(items, it)
	}
	return items, nil
}

// CanAccess reports whether u may open or submit t. Restricted tasks need
// an assignment unless u is an admin.
func (c *Catalogue) CanAccess(ctx context.Context, u identity.User, t Task) (bool, error) {
	if t.Visibility == Global || u.IsAdmin {
		return true, nil
	}
	return c.ledger.Assigned(ctx, u.ID, t.ID)
}

// Detail opens a task for answering. Anonymous callers may open global
// tasks; CountUserAttempts is ledger.NoAssignment for them.
func (c *Catalogue) Detail(ctx context.Context, caller identity.Credentials, taskID int64) (Detail, error) {
	const op = "task.Detail"
	var (
		u    identity.User
		anon = caller.UserID <= 0
	)
	if !anon {
		var err error
		if u, err = c.ids.Resolve(ctx, caller); err != nil {
			return Detail{}, err
		}
	}
	t, err := c.Load(ctx, taskID)
	if err != nil {
		return Detail{}, err
	}

	attempts := ledger.NoAssignment
	if anon {
		if t.Visibility != Global {
			return Detail{}, apperr.Newf(apperr.NotFound, op, "task %d not found", taskID)
		}
	} else {
		ok, err := c.CanAccess(ctx, u, t)
		if err != nil {
			return Detail{}, err
		}
		if !ok {
			return Detail{}, apperr.Newf(apperr.NotFound, op, "task %d not found", taskID)
		}
		if attempts, err = c.ledger.AttemptsFor(ctx, u.ID, t.ID); err != nil {
			return Detail{}, err
		}
	}

	items, err := c.Items(ctx, t)
	if err != nil {
		return Detail{}, err
	}
	views := make([]ItemView, len(items))
	for i, it := range items {
		views[i] = it.AnswerView()
	}
	return Detail{
		ID:                t.ID,
		Title:             t.Title,
		Description:       t.Description,
		FullDescription:   t.FullDescription,
		CountAttempts:     t.CountAttempts,
		CountUserAttempts: attempts,
		Items:             views,
	}, nil
}

// Review returns a task with correctness flags intact. Admin only.
func (c *Catalogue) Review(ctx context.Context, caller identity.Credentials, taskID int64) (Review, error) {
	if _, err := c.ids.RequireAdmin(ctx, caller); err != nil {
		return Review{}, err
	}
	t, err := c.Load(ctx, taskID)
	if err != nil {
		return Review{}, err
	}
	items, err := c.Items(ctx, t)
	if err != nil {
		return Review{}, err
	}
	rows, err := store.Collect(c.store.ScanByField(ctx, store.TableAssignments, "task_id", t.ID))
	if err != nil {
		return Review{}, apperr.Wrap(apperr.Storage, "task.Review", err)
	}

	rv := Review{
		ID:              t.ID,
		Title:           t.Title,
		Description:     t.Description,
		FullDescription: t.FullDescription,
		CountAttempts:   t.CountAttempts,
		Visibility:      t.Visibility,
		Assignees:       []int64{},
		Items:           make([]ReviewItem, len(items)),
	}
	seen := map[int64]bool{}
	for _, r := range rows {
		if uid := r.Fields.Int("user_id"); !seen[uid] {
			seen[uid] = true
			rv.Assignees = append(rv.Assignees, uid)
		}
	}
	for i, it := range items {
		rv.Items[i] = it.ReviewView()
	}
	return rv, nil
}
