// Package pagination implements fixed-size page-number pagination:
// ?page=N selects a 1-based page and responses carry count plus absolute
// next/previous links.
package pagination

import (
	"net/http"
	"net/url"
	"strconv"
	"strings"

	"github.com/labstack/echo/v4"
)

const (
	DefaultPageSize = 10
	PageParam       = "page"
)

// ErrInvalidPage is returned for malformed or out-of-range page numbers.
var ErrInvalidPage = echo.NewHTTPError(http.StatusNotFound, "Invalid page.")

// Params holds the requested page and the fixed page size.
type Params struct {
	Page int
	Size int
}

// FromContext reads ?page from the request. A missing page is page 1;
// anything that is not a positive integer is ErrInvalidPage.
func FromContext(c echo.Context, size int) (Params, error) {
	if size <= 0 {
		size = DefaultPageSize
	}
	p := Params{Page: 1, Size: size}

	raw := strings.TrimSpace(c.QueryParam(PageParam))
	if raw == "" {
		return p, nil
	}
	n, err := strconv.Atoi(raw)
	if err != nil || n < 1 {
		return p, ErrInvalidPage
	}
	p.Page = n
	return p, nil
}

func (p Params) Limit() int  { return p.Size }
func (p Params) Offset() int { return (p.Page - 1) * p.Size }

// NumPages returns the page count for total items. An empty result still
// has one (empty) page.
func (p Params) NumPages(total int) int {
	if total <= 0 {
		return 1
	}
	return (total + p.Size - 1) / p.Size
}

// Page is the paginated response envelope.
type Page[T any] struct {
	Count    int     `json:"count"`
	Next     *string `json:"next"`
	Previous *string `json:"previous"`
	Results  []T     `json:"results"`
}

// NewPage validates p against total and builds the envelope with links
// derived from the current request URL.
func NewPage[T any](c echo.Context, p Params, total int, results []T) (*Page[T], error) {
	if p.Page > p.NumPages(total) {
		return nil, ErrInvalidPage
	}
	if results == nil {
		results = []T{}
	}

	page := &Page[T]{Count: total, Results: results}
	if p.Page < p.NumPages(total) {
		next := pageURL(c, p.Page+1)
		page.Next = &next
	}
	if p.Page > 1 {
		prev := pageURL(c, p.Page-1)
		page.Previous = &prev
	}
	return page, nil
}

// pageURL rebuilds the absolute request URL pointing at page n. Page 1 is
// expressed by dropping the page parameter.
func pageURL(c echo.Context, n int) string {
	req := c.Request()
	u := url.URL{
		Scheme: c.Scheme(),
		Host:   req.Host,
		Path:   req.URL.Path,
	}
	q := req.URL.Query()
	if n <= 1 {
		q.Del(PageParam)
	} else {
		q.Set(PageParam, strconv.Itoa(n))
	}
	u.RawQuery = q.Encode()
	return u.String()
}
