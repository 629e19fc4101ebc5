package db

import (
	"fmt"
	"strings"
)

// SearchQuery incrementally builds a filtered, ordered and paginated SELECT
// with positional arguments.
type SearchQuery struct {
	from    string
	cols    string
	where   string
	args    []interface{}
	idx     int
	orderBy string
}

// NewSearchQuery creates a query over from (a table or join expression)
// selecting cols.
func NewSearchQuery(from, cols string) *SearchQuery {
	return &SearchQuery{
		from: from,
		cols: cols,
		idx:  1,
	}
}

// Idx returns the next available parameter index.
func (q *SearchQuery) Idx() int { return q.idx }

// Add appends a WHERE fragment (without leading "AND"). Placeholders in
// clause must start at Idx().
func (q *SearchQuery) Add(clause string, args ...interface{}) {
	q.where += " AND " + clause
	q.args = append(q.args, args...)
	q.idx += len(args)
}

// AddEqual adds "column = $n".
func (q *SearchQuery) AddEqual(column string, value interface{}) {
	q.Add(fmt.Sprintf("%s = $%d", column, q.idx), value)
}

// AddContainsAny adds a case-insensitive substring match of term against
// any of columns, using a single bound argument.
func (q *SearchQuery) AddContainsAny(columns []string, term string) {
	if len(columns) == 0 {
		return
	}
	parts := make([]string, len(columns))
	for i, col := range columns {
		parts[i] = fmt.Sprintf("%s ILIKE $%d", col, q.idx)
	}
	q.Add("("+strings.Join(parts, " OR ")+")", "%"+escapeLike(term)+"%")
}

// ApplySort sets ORDER BY from a comma-separated list of field names, each
// optionally prefixed with "-" for descending. Fields missing from columns
// are ignored; when none match, defaultOrder is used. tiebreak is always
// appended so paging is stable.
func (q *SearchQuery) ApplySort(sortParam string, columns map[string]string, defaultOrder, tiebreak string) {
	var parts []string
	for _, field := range strings.Split(sortParam, ",") {
		field = strings.TrimSpace(field)
		desc := false
		if strings.HasPrefix(field, "-") {
			desc = true
			field = field[1:]
		}
		col, ok := columns[field]
		if !ok {
			continue
		}
		if desc {
			parts = append(parts, col+" DESC")
		} else {
			parts = append(parts, col+" ASC")
		}
	}

	order := defaultOrder
	if len(parts) > 0 {
		order = strings.Join(parts, ", ")
	}
	if tiebreak != "" {
		if order != "" {
			order += ", "
		}
		order += tiebreak
	}
	q.orderBy = order
}

// OrderBy returns the ORDER BY expression (without the keyword).
func (q *SearchQuery) OrderBy() string { return q.orderBy }

// CountSQL returns the count query SQL.
func (q *SearchQuery) CountSQL() string {
	return fmt.Sprintf("SELECT COUNT(*) FROM %s WHERE 1=1%s", q.from, q.where)
}

// CountArgs returns the arguments for the count query.
func (q *SearchQuery) CountArgs() []interface{} {
	return q.args
}

// RowSQL returns the filtered SELECT without ORDER BY or LIMIT, for
// single-row lookups. It takes CountArgs.
func (q *SearchQuery) RowSQL() string {
	return fmt.Sprintf("SELECT %s FROM %s WHERE 1=1%s", q.cols, q.from, q.where)
}

// DataSQL returns the data query SQL with ORDER BY and LIMIT/OFFSET.
func (q *SearchQuery) DataSQL() string {
	sql := fmt.Sprintf("SELECT %s FROM %s WHERE 1=1%s", q.cols, q.from, q.where)
	if q.orderBy != "" {
		sql += " ORDER BY " + q.orderBy
	}
	sql += fmt.Sprintf(" LIMIT $%d OFFSET $%d", q.idx, q.idx+1)
	return sql
}

// DataArgs returns the arguments for the data query (filter args + limit + offset).
func (q *SearchQuery) DataArgs(limit, offset int) []interface{} {
	result := make([]interface{}, len(q.args)+2)
	copy(result, q.args)
	result[len(q.args)] = limit
	result[len(q.args)+1] = offset
	return result
}

var likeEscaper = strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`)

func escapeLike(s string) string {
	return likeEscaper.Replace(s)
}
