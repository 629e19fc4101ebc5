package auth

import (
	"context"

	"github.com/labstack/echo/v4"
)

type contextKey string

const principalKey contextKey = "principal"

// Principal is the authenticated caller resolved from a bearer token.
type Principal struct {
	UserID    int64
	Username  string
	IsStaff   bool
	ProfileID int64
}

// PrincipalLoader resolves the current state of a user id taken from a
// verified token. It returns apierr.ErrNotFound when the user no longer
// exists; the boolean is false when the account is disabled.
type PrincipalLoader interface {
	LoadPrincipal(ctx context.Context, userID int64) (*Principal, bool, error)
}

func WithPrincipal(ctx context.Context, p *Principal) context.Context {
	return context.WithValue(ctx, principalKey, p)
}

// PrincipalFromContext returns the caller, or nil for anonymous requests.
func PrincipalFromContext(ctx context.Context) *Principal {
	p, _ := ctx.Value(principalKey).(*Principal)
	return p
}

// CurrentPrincipal is PrincipalFromContext for an echo context.
func CurrentPrincipal(c echo.Context) *Principal {
	return PrincipalFromContext(c.Request().Context())
}
