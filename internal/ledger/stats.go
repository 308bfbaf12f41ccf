package ledger

import (
	"context"
	"encoding/json"
	"errors"

	"github.com/mind-engage/mindengage-mobile/internal/apperr"
	"github.com/mind-engage/mindengage-mobile/internal/identity"
	"github.com/mind-engage/mindengage-mobile/internal/store"
)

type Stats struct {
	PassRate  int64 `json:"passRate"`
	ErrorRate int64 `json:"errorRate"`
}

// ComputeStats derives truncated percentages from the rollup counters. A user
// with no submissions reports a 100% pass rate.
func ComputeStats(u identity.User) Stats {
	s := Stats{PassRate: 100}
	if u.Count > 0 {
		s.PassRate = u.PassCount * 100 / u.Count
	}
	if u.CountTasks > 0 {
		s.ErrorRate = u.ErrorCount * 100 / u.CountTasks
	}
	return s
}

// Stats returns the caller's own statistics.
func (l *Ledger) Stats(ctx context.Context, caller identity.Credentials) (Stats, error) {
	u, err := l.ids.Resolve(ctx, caller)
	if err != nil {
		return Stats{}, err
	}
	return ComputeStats(u), nil
}

type UserStat struct {
	identity.Member
	Stats
	PassCount  int64 `json:"passCount"`
	Count      int64 `json:"count"`
	ErrorCount int64 `json:"errorCount"`
	CountTasks int64 `json:"countTasks"`
}

// UserStats reports statistics for every user. Admin only.
func (l *Ledger) UserStats(ctx context.Context, caller identity.Credentials) ([]UserStat, error) {
	if _, err := l.ids.RequireAdmin(ctx, caller); err != nil {
		return nil, err
	}
	recs, err := store.Collect(l.store.ScanAll(ctx, store.TableUsers))
	if err != nil {
		return nil, apperr.Wrap(apperr.Storage, "ledger.UserStats", err)
	}
	out := make([]UserStat, 0, len(recs))
	for _, rec := range recs {
		f := rec.Fields
		u := identity.User{
			PassCount:  f.Int("pass_count"),
			Count:      f.Int("count"),
			ErrorCount: f.Int("error_count"),
			CountTasks: f.Int("count_tasks"),
		}
		out = append(out, UserStat{
			Member:     identity.Member{ID: rec.ID, Name: f.String("username"), IsAdmin: f.Bool("is_admin")},
			Stats:      ComputeStats(u),
			PassCount:  u.PassCount,
			Count:      u.Count,
			ErrorCount: u.ErrorCount,
			CountTasks: u.CountTasks,
		})
	}
	return out, nil
}

// Solution is one submission as shown to reviewers.
type Solution struct {
	ID        int64  `json:"id"`
	UserID    int64  `json:"userId"`
	Username  string `json:"username"`
	IsAdmin   bool   `json:"isAdmin"`
	Solutions []bool `json:"solutions"`
}

// Solutions lists every submission for taskID in submission order. Admin only.
func (l *Ledger) Solutions(ctx context.Context, caller identity.Credentials, taskID int64) ([]Solution, error) {
	const op = "ledger.Solutions"
	if _, err := l.ids.RequireAdmin(ctx, caller); err != nil {
		return nil, err
	}
	if taskID <= 0 {
		return nil, apperr.New(apperr.InvalidArgument, op, "taskId must be positive")
	}
	recs, err := store.Collect(l.store.ScanByField(ctx, store.TableSolutions, "task_id", taskID))
	if err != nil {
		return nil, apperr.Wrap(apperr.Storage, op, err)
	}

	users := map[int64]store.Record{}
	out := make([]Solution, 0, len(recs))
	for _, rec := range recs {
		uid := rec.Fields.Int("user_id")
		u, ok := users[uid]
		if !ok {
			u, err = l.store.FindByID(ctx, store.TableUsers, uid)
			if err != nil && !errors.Is(err, store.ErrNotFound) {
				return nil, apperr.Wrap(apperr.Storage, op, err)
			}
			users[uid] = u
		}
		var seq []bool
		if raw := rec.Fields.String("solution"); raw != "" {
			if err := json.Unmarshal([]byte(raw), &seq); err != nil {
				return nil, apperr.Newf(apperr.Internal, op, "submission %d: %v", rec.ID, err)
			}
		}
		out = append(out, Solution{
			ID:        rec.ID,
			UserID:    uid,
			Username:  u.Fields.String("username"),
			IsAdmin:   u.Fields.Bool("is_admin"),
			Solutions: seq,
		})
	}
	return out, nil
}
