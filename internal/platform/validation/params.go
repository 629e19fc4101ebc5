package validation

import (
	"strconv"
	"strings"
	"time"

	"github.com/labstack/echo/v4"

	"github.com/medrec/medrec/internal/platform/apierr"
)

// ParamID parses a positive integer path parameter. Anything else cannot
// name a row and is reported as not found.
func ParamID(c echo.Context, name string) (int64, error) {
	id, err := strconv.ParseInt(c.Param(name), 10, 64)
	if err != nil || id < 1 {
		return 0, apierr.ErrNotFound
	}
	return id, nil
}

// BlankToNil maps a pointer to an empty or whitespace string to nil.
func BlankToNil(s *string) *string {
	if s == nil || strings.TrimSpace(*s) == "" {
		return nil
	}
	return s
}

// ParseDate parses an already validated YYYY-MM-DD value. nil stays nil.
func ParseDate(s *string) (*time.Time, error) {
	if s == nil {
		return nil, nil
	}
	t, err := time.Parse(DateLayout, *s)
	if err != nil {
		return nil, err
	}
	return &t, nil
}

// FormatDate renders t as YYYY-MM-DD, or nil.
func FormatDate(t *time.Time) *string {
	if t == nil {
		return nil
	}
	s := t.Format(DateLayout)
	return &s
}
