package user

import "context"

// Principal is the authenticated caller. Identity is owned by the account
// service; the roster engine only needs a stable user id.
type Principal struct {
	UserID string
	Email  string
}

// TokenVerifier resolves a bearer token into a Principal.
type TokenVerifier interface {
	VerifyAccessToken(ctx context.Context, token string) (Principal, error)
}
