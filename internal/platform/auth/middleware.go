package auth

import (
	"errors"
	"strings"

	"github.com/labstack/echo/v4"

	"github.com/medrec/medrec/internal/platform/apierr"
)

type JWTConfig struct {
	Tokens *TokenIssuer
	Loader PrincipalLoader
	// Skipper marks routes that do not require a bearer token. Defaults to
	// AuthSkipper.
	Skipper func(c echo.Context) bool
}

// JWTMiddleware verifies the bearer access token, reloads the user it names
// and stores the resulting Principal on the request context. Requests
// without valid credentials are rejected with 401 unless skipped.
func JWTMiddleware(cfg JWTConfig) echo.MiddlewareFunc {
	skipper := cfg.Skipper
	if skipper == nil {
		skipper = AuthSkipper
	}

	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			if skipper(c) {
				return next(c)
			}

			authHeader := c.Request().Header.Get(echo.HeaderAuthorization)
			if authHeader == "" {
				return apierr.ErrUnauthenticated
			}

			scheme, tokenStr, ok := strings.Cut(authHeader, " ")
			tokenStr = strings.TrimSpace(tokenStr)
			if !ok || !strings.EqualFold(scheme, "bearer") || tokenStr == "" {
				return apierr.Unauthenticated("Authorization header must contain two space-delimited values")
			}

			ctx := c.Request().Context()
			claims, err := cfg.Tokens.Parse(ctx, tokenStr, TokenTypeAccess)
			if errors.Is(err, ErrTokenInvalid) {
				return apierr.Unauthenticated("Given token not valid for any token type")
			}
			if err != nil {
				return err
			}

			principal, active, err := cfg.Loader.LoadPrincipal(ctx, claims.UserID)
			if errors.Is(err, apierr.ErrNotFound) {
				return apierr.Unauthenticated("User not found")
			}
			if err != nil {
				return err
			}
			if !active {
				return apierr.Unauthenticated("User is inactive")
			}

			c.Set("user_id", principal.UserID)
			c.SetRequest(c.Request().WithContext(WithPrincipal(ctx, principal)))

			return next(c)
		}
	}
}
