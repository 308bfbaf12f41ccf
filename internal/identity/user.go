// Package identity resolves credentials to users and owns user registration.
package identity

import "github.com/mind-engage/mindengage-mobile/internal/store"

type User struct {
	ID       int64  `json:"id"`
	Username string `json:"name"`
	IsAdmin  bool   `json:"isAdmin"`
	Token    string `json:"-"`

	// Rollup counters; only the grading engine moves them.
	PassCount  int64 `json:"passCount"`
	Count      int64 `json:"count"`
	ErrorCount int64 `json:"errorCount"`
	CountTasks int64 `json:"countTasks"`
}

// Credentials is the (userId, token) pair a mobile client presents.
type Credentials struct {
	UserID int64
	Token  string
}

// Anonymous reports whether c carries no usable identity.
func (c Credentials) Anonymous() bool { return c.UserID <= 0 || c.Token == "" }

// Member is the roster projection handed to task authoring pickers.
type Member struct {
	ID      int64  `json:"id"`
	Name    string `json:"name"`
	IsAdmin bool   `json:"isAdmin"`
}

func userFromRecord(rec store.Record) User {
	f := rec.Fields
	return User{
		ID:         rec.ID,
		Username:   f.String("username"),
		IsAdmin:    f.Bool("is_admin"),
		Token:      f.String("token"),
		PassCount:  f.Int("pass_count"),
		Count:      f.Int("count"),
		ErrorCount: f.Int("error_count"),
		CountTasks: f.Int("count_tasks"),
	}
}
