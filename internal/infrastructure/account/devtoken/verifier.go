// Package devtoken accepts "Bearer <user-id>" for local development, where
// no account service is available.
package devtoken

import (
	"context"
	"fmt"
	"strings"
	"unicode"

	"github.com/riskibarqy/fantasy-roster/internal/domain/user"
	"github.com/riskibarqy/fantasy-roster/internal/usecase"
)

const maxUserIDLength = 64

type Verifier struct{}

func NewVerifier() Verifier {
	return Verifier{}
}

// VerifyAccessToken treats the token itself as the user id.
func (Verifier) VerifyAccessToken(_ context.Context, token string) (user.Principal, error) {
	token = strings.TrimSpace(token)
	if token == "" {
		return user.Principal{}, fmt.Errorf("%w: token is required", usecase.ErrUnauthorized)
	}
	if len(token) > maxUserIDLength {
		return user.Principal{}, fmt.Errorf("%w: dev token longer than %d characters", usecase.ErrUnauthorized, maxUserIDLength)
	}
	for _, r := range token {
		if !(unicode.IsLetter(r) || unicode.IsDigit(r) || r == '-' || r == '_' || r == '.') {
			return user.Principal{}, fmt.Errorf("%w: dev token contains %q", usecase.ErrUnauthorized, r)
		}
	}
	return user.Principal{UserID: token}, nil
}
