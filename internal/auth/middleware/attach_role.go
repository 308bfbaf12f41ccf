package auth

import (
	"context"
	"log"
	"net/http"

	"github.com/mind-engage/mindengage-mobile/internal/apperr"
	"github.com/mind-engage/mindengage-mobile/internal/identity"
	"github.com/mind-engage/mindengage-mobile/internal/rbac"
)

const (
	RoleUser  = "user"
	RoleAdmin = "admin"
)

type Resolver interface {
	Resolve(ctx context.Context, c identity.Credentials) (identity.User, error)
}

// AttachRole resolves the caller from the credentials in context and puts
// the stored role (never a claim) into the context for rbac checks.
func AttachRole(ids Resolver) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ctx := r.Context()
			u, err := ids.Resolve(ctx, CredentialsFromContext(ctx))
			if err != nil {
				log.Printf("attach role: %s: %v", apperr.KindOf(err), err)
				http.Error(w, "user isn't found or invalid", apperr.HTTPStatus(err))
				return
			}
			role := RoleUser
			if u.IsAdmin {
				role = RoleAdmin
			}
			next.ServeHTTP(w, r.WithContext(rbac.WithRole(ctx, role)))
		})
	}
}
