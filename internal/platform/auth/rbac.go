package auth

import (
	"github.com/labstack/echo/v4"

	"github.com/medrec/medrec/internal/platform/apierr"
)

// RequireStaff rejects anonymous callers with 401 and non-staff callers
// with 403.
func RequireStaff() echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			p := CurrentPrincipal(c)
			if p == nil {
				return apierr.ErrUnauthenticated
			}
			if !p.IsStaff {
				return apierr.ErrForbidden
			}
			return next(c)
		}
	}
}
