package rbac

import "net/http"

var defaultChecker = NewChecker(nil)

// Require admits the request when the role in context holds any of perms.
func (c *Checker) Require(perms ...string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			role := RoleFromContext(r.Context())
			if role == "" || !c.Any(role, perms...) {
				http.Error(w, "forbidden", http.StatusForbidden)
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

// Require checks perms against the default policy.
func Require(perms ...string) func(http.Handler) http.Handler {
	return defaultChecker.Require(perms...)
}
