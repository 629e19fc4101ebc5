package auth

import (
	"net/http"

	"github.com/labstack/echo/v4"
)

// publicRoutes lists "METHOD route" pairs that bypass authentication:
// health checks, registration, the token endpoints and served media. Keys
// use the registered route pattern, not the raw URL.
var publicRoutes = map[string]bool{
	"GET /health":              true,
	"GET /health/db":           true,
	"POST /auth/users":         true,
	"POST /auth/jwt/create":    true,
	"POST /auth/jwt/refresh":   true,
	"POST /auth/jwt/verify":    true,
	"POST /auth/jwt/blacklist": true,
	"GET /media/*":             true,
	"HEAD /media/*":            true,
}

// AuthSkipper returns true for requests whose route should skip authentication.
// Unmatched routes are also skipped so the router can answer 404/405.
func AuthSkipper(c echo.Context) bool {
	path := c.Path()
	if path == "" {
		return true
	}
	return IsPublicRoute(c.Request().Method, path)
}

// IsPublicRoute reports whether method and route pattern are public.
func IsPublicRoute(method, route string) bool {
	if method == http.MethodOptions {
		return true
	}
	return publicRoutes[method+" "+route]
}
