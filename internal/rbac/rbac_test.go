package rbac

import (
	"net/http"
	"net/http/httptest"
	"testing"
)

func TestCheckerDefaultPolicy(t *testing.T) {
	c := NewChecker(nil)
	cases := []struct {
		role, perm string
		want       bool
	}{
		{"user", "task:submit", true},
		{"user", "stats:view-own", true},
		{"user", "task:create", false},
		{"user", "stats:view-all", false},
		{"admin", "task:create", true},
		{"admin", "anything", true},
		{"", "task:list", false},
	}
	for _, tc := range cases {
		if got := c.Has(tc.role, tc.perm); got != tc.want {
			t.Fatalf("%s/%s: want %v", tc.role, tc.perm, tc.want)
		}
	}
	prefix := NewChecker(map[string][]string{"reviewer": {"task:*"}})
	if !prefix.Has("reviewer", "task:review") || prefix.Has("reviewer", "stats:view-all") {
		t.Fatal("prefix wildcard")
	}
}

func TestRequire(t *testing.T) {
	ok := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) { w.WriteHeader(http.StatusNoContent) })
	h := Require("task:create")(ok)

	for role, want := range map[string]int{"admin": http.StatusNoContent, "user": http.StatusForbidden, "": http.StatusForbidden} {
		req := httptest.NewRequest(http.MethodPost, "/", nil)
		req = req.WithContext(WithRole(req.Context(), role))
		rec := httptest.NewRecorder()
		h.ServeHTTP(rec, req)
		if rec.Code != want {
			t.Fatalf("role %q: want %d got %d", role, want, rec.Code)
		}
	}
}
