package apierr

import (
	"errors"
	"net/http"

	"github.com/labstack/echo/v4"
	"github.com/rs/zerolog"
)

// Handler returns an echo.HTTPErrorHandler that renders *Error values,
// echo HTTP errors as {"detail": ...}, and everything else as a logged 500.
func Handler(logger zerolog.Logger) echo.HTTPErrorHandler {
	return func(err error, c echo.Context) {
		if c.Response().Committed {
			return
		}

		status, body := render(err)
		if status == http.StatusInternalServerError {
			rid, _ := c.Get("request_id").(string)
			logger.Error().Err(err).
				Str("request_id", rid).
				Str("method", c.Request().Method).
				Str("path", c.Request().URL.Path).
				Msg("unhandled error")
		}

		if status == http.StatusUnauthorized {
			c.Response().Header().Set(echo.HeaderWWWAuthenticate, `Bearer realm="api"`)
		}

		var writeErr error
		if c.Request().Method == http.MethodHead {
			writeErr = c.NoContent(status)
		} else {
			writeErr = c.JSON(status, body)
		}
		if writeErr != nil {
			logger.Error().Err(writeErr).Msg("write error response")
		}
	}
}

func render(err error) (int, interface{}) {
	var apiErr *Error
	if errors.As(err, &apiErr) {
		return apiErr.Status(), apiErr.Body()
	}

	var he *echo.HTTPError
	if errors.As(err, &he) {
		if he.Internal != nil {
			if errors.As(he.Internal, &apiErr) {
				return apiErr.Status(), apiErr.Body()
			}
		}
		msg, ok := he.Message.(string)
		if !ok {
			return he.Code, map[string]interface{}{"detail": he.Message}
		}
		if he.Code == http.StatusInternalServerError {
			msg = "internal server error"
		}
		return he.Code, map[string]string{"detail": msg}
	}

	return http.StatusInternalServerError, map[string]string{"detail": "internal server error"}
}
