package identity

import (
	"context"
	"crypto/subtle"
	"errors"
	"strings"

	"golang.org/x/crypto/bcrypt"

	"github.com/mind-engage/mindengage-mobile/internal/apperr"
	"github.com/mind-engage/mindengage-mobile/internal/store"
)

// Resolver is the single authorization primitive: every user-scoped
// operation resolves its caller through it first.
type Resolver struct {
	store store.Store
	cost  int
}

func NewResolver(s store.Store, bcryptCost int) *Resolver {
	if bcryptCost < bcrypt.MinCost || bcryptCost > bcrypt.MaxCost {
		bcryptCost = bcrypt.DefaultCost
	}
	return &Resolver{store: s, cost: bcryptCost}
}

// ByToken resolves a (userId, token) pair. A missing user and a wrong token
// are the same Unauthorized outcome.
func (r *Resolver) ByToken(ctx context.Context, userID int64, token string) (User, error) {
	const op = "identity.ByToken"
	if userID <= 0 || token == "" {
		return User{}, apperr.New(apperr.InvalidArgument, op, "userId and token are required")
	}
	rec, err := r.store.FindOne(ctx, store.TableUsers, store.Eq("id", userID), store.Eq("token", token))
	return r.resolved(op, rec, err)
}

// Resolve is ByToken over a Credentials pair.
func (r *Resolver) Resolve(ctx context.Context, c Credentials) (User, error) {
	return r.ByToken(ctx, c.UserID, c.Token)
}

// BySession resolves a session that names userID and the digest of the
// user's current token. Rotating the stored token invalidates the session.
func (r *Resolver) BySession(ctx context.Context, userID int64, digest string) (User, error) {
	const op = "identity.BySession"
	if userID <= 0 || digest == "" {
		return User{}, apperr.New(apperr.Unauthorized, op, "invalid session")
	}
	rec, err := r.store.FindByID(ctx, store.TableUsers, userID)
	u, err := r.resolved(op, rec, err)
	if err != nil {
		return User{}, err
	}
	if subtle.ConstantTimeCompare([]byte(TokenDigest(u.Token)), []byte(digest)) != 1 {
		return User{}, apperr.New(apperr.Unauthorized, op, "invalid session")
	}
	return u, nil
}

// ByCredentials resolves a username/password login.
func (r *Resolver) ByCredentials(ctx context.Context, username, password string) (User, error) {
	const op = "identity.ByCredentials"
	username = strings.TrimSpace(username)
	if username == "" || password == "" {
		return User{}, apperr.New(apperr.InvalidArgument, op, "username and password are required")
	}
	rec, err := r.store.FindOne(ctx, store.TableUsers, store.Eq("username", username))
	u, err := r.resolved(op, rec, err)
	if err != nil {
		return User{}, err
	}
	if bcrypt.CompareHashAndPassword([]byte(rec.Fields.String("password")), []byte(password)) != nil {
		return User{}, apperr.New(apperr.Unauthorized, op, "invalid credentials")
	}
	return u, nil
}

// RequireAdmin resolves c and fails with Forbidden unless the user is an admin.
func (r *Resolver) RequireAdmin(ctx context.Context, c Credentials) (User, error) {
	u, err := r.Resolve(ctx, c)
	if err != nil {
		return User{}, err
	}
	if !u.IsAdmin {
		return User{}, apperr.New(apperr.Forbidden, "identity.RequireAdmin", "admin privilege required")
	}
	return u, nil
}

func (r *Resolver) resolved(op string, rec store.Record, err error) (User, error) {
	switch {
	case errors.Is(err, store.ErrNotFound):
		return User{}, apperr.New(apperr.Unauthorized, op, "invalid credentials")
	case err != nil:
		return User{}, apperr.Wrap(apperr.Storage, op, err)
	case rec.Empty():
		return User{}, apperr.New(apperr.Unauthorized, op, "invalid credentials")
	}
	return userFromRecord(rec), nil
}

// Register creates a non-admin user with zeroed counters and a fresh token.
func (r *Resolver) Register(ctx context.Context, username, password string) (User, error) {
	return r.create(ctx, "identity.Register", username, password, false)
}

// EnsureAdmin creates the bootstrap admin, or promotes an existing account
// with that username. created reports whether a new row was written.
func (r *Resolver) EnsureAdmin(ctx context.Context, username, password string) (u User, created bool, err error) {
	const op = "identity.EnsureAdmin"
	rec, err := r.store.FindOne(ctx, store.TableUsers, store.Eq("username", strings.TrimSpace(username)))
	switch {
	case errors.Is(err, store.ErrNotFound):
		u, err = r.create(ctx, op, username, password, true)
		return u, err == nil, err
	case err != nil:
		return User{}, false, apperr.Wrap(apperr.Storage, op, err)
	}
	if !rec.Fields.Bool("is_admin") {
		if err := r.store.Update(ctx, store.TableUsers, rec.ID, store.Fields{"is_admin": true}); err != nil {
			return User{}, false, apperr.Wrap(apperr.Storage, op, err)
		}
		rec.Fields["is_admin"] = true
	}
	return userFromRecord(rec), false, nil
}

func (r *Resolver) create(ctx context.Context, op, username, password string, admin bool) (User, error) {
	username = strings.TrimSpace(username)
	if username == "" || password == "" {
		return User{}, apperr.New(apperr.InvalidArgument, op, "username and password are required")
	}
	hash, err := bcrypt.GenerateFromPassword([]byte(password), r.cost)
	if err != nil {
		return User{}, apperr.Wrap(apperr.InvalidArgument, op, err)
	}
	token, err := GenToken()
	if err != nil {
		return User{}, apperr.Wrap(apperr.Internal, op, err)
	}

	var u User
	err = r.store.InTx(ctx, func(tx store.Store) error {
		_, err := tx.FindOne(ctx, store.TableUsers, store.Eq("username", username))
		switch {
		case err == nil:
			return apperr.Newf(apperr.Conflict, op, "username %q is taken", username)
		case !errors.Is(err, store.ErrNotFound):
			return apperr.Wrap(apperr.Storage, op, err)
		}
		id, err := tx.Create(ctx, store.TableUsers, store.Fields{
			"username":    username,
			"password":    string(hash),
			"token":       token,
			"is_admin":    admin,
			"pass_count":  int64(0),
			"count":       int64(0),
			"error_count": int64(0),
			"count_tasks": int64(0),
		})
		if err != nil {
			return apperr.Wrap(apperr.Storage, op, err)
		}
		u = User{ID: id, Username: username, IsAdmin: admin, Token: token}
		return nil
	})
	return u, err
}

// ListUsers returns the roster for admins.
func (r *Resolver) ListUsers(ctx context.Context, caller Credentials) ([]Member, error) {
	if _, err := r.RequireAdmin(ctx, caller); err != nil {
		return nil, err
	}
	recs, err := store.Collect(r.store.ScanAll(ctx, store.TableUsers))
	if err != nil {
		return nil, apperr.Wrap(apperr.Storage, "identity.ListUsers", err)
	}
	out := make([]Member, 0, len(recs))
	for _, rec := range recs {
		out = append(out, Member{ID: rec.ID, Name: rec.Fields.String("username"), IsAdmin: rec.Fields.Bool("is_admin")})
	}
	return out, nil
}
