package middleware

import (
	"errors"
	"net/http"

	"campuspay/internal/auth"
)

type contextKey string

const UserContextKey contextKey = "user"

var ErrNoUser = errors.New("user not found in context")

// ExtractUser returns the token claims the auth middleware stored on the
// request context.
func ExtractUser(r *http.Request) (*auth.Claims, error) {
	claims, ok := r.Context().Value(UserContextKey).(*auth.Claims)
	if !ok {
		return nil, ErrNoUser
	}
	return claims, nil
}
