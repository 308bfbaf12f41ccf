package auth

import (
	"context"
	"errors"
	"log"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"github.com/mind-engage/mindengage-mobile/internal/apperr"
	"github.com/mind-engage/mindengage-mobile/internal/identity"
)

// AuthService issues and parses session JWTs. A session names the user and
// a digest of their token; the identity resolver still decides who the
// caller is.
type AuthService struct {
	hmac []byte
	ttl  time.Duration
}

func NewAuthService(secret string, ttl time.Duration) *AuthService {
	if ttl <= 0 {
		ttl = 8 * time.Hour
	}
	return &AuthService{hmac: []byte(secret), ttl: ttl}
}

type Claims struct {
	UserID      int64  `json:"uid"`
	TokenDigest string `json:"tdg"`
	Role        string `json:"role"` // "user" or "admin"; informational only
	jwt.RegisteredClaims
}

func (a *AuthService) IssueSession(u identity.User) (string, error) {
	now := time.Now()
	role := RoleUser
	if u.IsAdmin {
		role = RoleAdmin
	}
	claims := &Claims{
		UserID:      u.ID,
		TokenDigest: identity.TokenDigest(u.Token),
		Role:        role,
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    "mindengage-mobile",
			Subject:   strconv.FormatInt(u.ID, 10),
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(a.ttl)),
		},
	}
	t := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return t.SignedString(a.hmac)
}

func (a *AuthService) Parse(tokenStr string) (*Claims, error) {
	token, err := jwt.ParseWithClaims(tokenStr, &Claims{}, func(t *jwt.Token) (interface{}, error) {
		return a.hmac, nil
	}, jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}))
	if err != nil {
		return nil, err
	}
	c, ok := token.Claims.(*Claims)
	if !ok || !token.Valid {
		return nil, errors.New("invalid session")
	}
	return c, nil
}

// SessionResolver maps a verified session back to its stored user.
type SessionResolver interface {
	BySession(ctx context.Context, userID int64, digest string) (identity.User, error)
}

// Credentials extracts the caller's (userId, token) pair into the request
// context. A bearer session takes precedence over the mobile pair sent as
// the userId query parameter (or header) and the token header. No
// credentials at all is the anonymous caller.
func Credentials(a *AuthService, sessions SessionResolver) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			var c identity.Credentials
			if h := r.Header.Get("Authorization"); strings.HasPrefix(h, "Bearer ") {
				claims, err := a.Parse(strings.TrimPrefix(h, "Bearer "))
				if err != nil {
					http.Error(w, "bad session", http.StatusUnauthorized)
					return
				}
				u, err := sessions.BySession(r.Context(), claims.UserID, claims.TokenDigest)
				if err != nil {
					log.Printf("session: %s: %v", apperr.KindOf(err), err)
					http.Error(w, "bad session", apperr.HTTPStatus(err))
					return
				}
				c = identity.Credentials{UserID: u.ID, Token: u.Token}
			} else {
				raw := r.URL.Query().Get("userId")
				if raw == "" {
					raw = r.Header.Get("userId")
				}
				if raw != "" {
					id, err := strconv.ParseInt(raw, 10, 64)
					if err != nil {
						http.Error(w, "userId must be an integer", http.StatusBadRequest)
						return
					}
					c.UserID = id
				}
				c.Token = r.Header.Get("token")
			}
			next.ServeHTTP(w, r.WithContext(WithCredentials(r.Context(), c)))
		})
	}
}
