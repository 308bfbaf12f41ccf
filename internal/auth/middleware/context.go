package auth

import (
	"context"

	"github.com/mind-engage/mindengage-mobile/internal/identity"
)

type ctxKey string

const ctxKeyCreds ctxKey = "credentials"

func WithCredentials(ctx context.Context, c identity.Credentials) context.Context {
	return context.WithValue(ctx, ctxKeyCreds, c)
}

func CredentialsFromContext(ctx context.Context) identity.Credentials {
	if v, ok := ctx.Value(ctxKeyCreds).(identity.Credentials); ok {
		return v
	}
	return identity.Credentials{}
}
