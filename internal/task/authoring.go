package task

import (
	"context"
	"errors"
	"strings"

	"github.com/mind-engage/mindengage-mobile/internal/apperr"
	"github.com/mind-engage/mindengage-mobile/internal/identity"
	"github.com/mind-engage/mindengage-mobile/internal/store"
)

type NewItem struct {
	Question string
	Options  []AnswerOption
}

type NewTask struct {
	Title           string
	Description     string
	FullDescription string
	Items           []NewItem
	// AssignedUsers restricts the task to these users; empty means global.
	AssignedUsers []int64
}

func (n NewTask) validate() error {
	const op = "task.Create"
	if strings.TrimSpace(n.Title) == "" {
		return apperr.New(apperr.InvalidArgument, op, "title is required")
	}
	if len(n.Items) == 0 {
		return apperr.New(apperr.InvalidArgument, op, "at least one item is required")
	}
	for i, it := range n.Items {
		if len(it.Options) == 0 {
			return apperr.Newf(apperr.InvalidArgument, op, "item %d has no options", i)
		}
	}
	for _, id := range n.AssignedUsers {
		if id <= 0 {
			return apperr.Newf(apperr.InvalidArgument, op, "invalid user id %d", id)
		}
	}
	return nil
}

// Create writes the task shell, its items, the item-id list and the
// assignment rows in one transaction and returns the new task id. Global
// tasks enroll every admin; repeated AssignedUsers entries yield repeated
// assignment rows.
func (c *Catalogue) Create(ctx context.Context, caller identity.Credentials, n NewTask) (int64, error) {
	const op = "task.Create"
	if _, err := c.ids.RequireAdmin(ctx, caller); err != nil {
		return 0, err
	}
	if err := n.validate(); err != nil {
		return 0, err
	}
	vis := Global
	if len(n.AssignedUsers) > 0 {
		vis = Restricted
	}

	var taskID int64
	err := c.store.InTx(ctx, func(tx store.Store) error {
		var err error
		taskID, err = tx.Create(ctx, store.TableTasks, store.Fields{
			"title":            strings.TrimSpace(n.Title),
			"description":      n.Description,
			"full_description": n.FullDescription,
			"count_attempts":   int64(0),
			"item_ids":         "[]",
			"visibility":       string(vis),
		})
		if err != nil {
			return apperr.Wrap(apperr.Storage, op, err)
		}

		itemIDs := make([]int64, 0, len(n.Items))
		for _, it := range n.Items {
			opts, err := encodeOptions(it.Options)
			if err != nil {
				return apperr.Wrap(apperr.Internal, op, err)
			}
			id, err := tx.Create(ctx, store.TableTaskItems, store.Fields{
				"task_id":  taskID,
				"question": it.Question,
				"options":  opts,
			})
			if err != nil {
				return apperr.Wrap(apperr.Storage, op, err)
			}
			itemIDs = append(itemIDs, id)
		}
		raw, err := encodeIDs(itemIDs)
		if err != nil {
			return apperr.Wrap(apperr.Internal, op, err)
		}
		if err := tx.Update(ctx, store.TableTasks, taskID, store.Fields{"item_ids": raw}); err != nil {
			return apperr.Wrap(apperr.Storage, op, err)
		}

		led := c.ledger.WithStore(tx)
		enroll := n.AssignedUsers
		if vis == Global {
			admins, err := store.Collect(tx.ScanByField(ctx, store.TableUsers, "is_admin", true))
			if err != nil {
				return apperr.Wrap(apperr.Storage, op, err)
			}
			enroll = make([]int64, 0, len(admins))
			for _, a := range admins {
				enroll = append(enroll, a.ID)
			}
		} else {
			for _, uid := range enroll {
				if _, err := tx.FindByID(ctx, store.TableUsers, uid); errors.Is(err, store.ErrNotFound) {
					return apperr.Newf(apperr.NotFound, op, "user %d not found", uid)
				} else if err != nil {
					return apperr.Wrap(apperr.Storage, op, err)
				}
			}
		}
		for _, uid := range enroll {
			if err := led.Assign(ctx, uid, taskID); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return 0, err
	}
	return taskID, nil
}

// Delete removes a task with its items, submissions and assignments.
func (c *Catalogue) Delete(ctx context.Context, caller identity.Credentials, taskID int64) error {
	const op = "task.Delete"
	if _, err := c.ids.RequireAdmin(ctx, caller); err != nil {
		return err
	}
	if taskID <= 0 {
		return apperr.New(apperr.InvalidArgument, op, "taskId must be positive")
	}
	return c.store.InTx(ctx, func(tx store.Store) error {
		if _, err := tx.FindByID(ctx, store.TableTasks, taskID); errors.Is(err, store.ErrNotFound) {
			return apperr.Newf(apperr.NotFound, op, "task %d not found", taskID)
		} else if err != nil {
			return apperr.Wrap(apperr.Storage, op, err)
		}
		if _, err := tx.DeleteByField(ctx, store.TableTaskItems, "task_id", taskID); err != nil {
			return apperr.Wrap(apperr.Storage, op, err)
		}
		if err := c.ledger.WithStore(tx).Purge(ctx, taskID); err != nil {
			return err
		}
		if err := tx.Delete(ctx, store.TableTasks, taskID); err != nil {
			return apperr.Wrap(apperr.Storage, op, err)
		}
		return nil
	})
}
