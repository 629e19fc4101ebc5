package db

// Lock selects the row lock taken by a single-row read inside a
// transaction.
type Lock int

const (
	NoLock Lock = iota
	ForShare
	ForUpdate
)

// Suffix returns the locking clause to append to a SELECT, with a leading
// space, or "" for NoLock.
func (l Lock) Suffix() string {
	switch l {
	case ForShare:
		return " FOR SHARE"
	case ForUpdate:
		return " FOR UPDATE"
	}
	return ""
}

// SuffixOf is Suffix restricted to the rows of table, for queries that
// join rows which must stay unlocked.
func (l Lock) SuffixOf(table string) string {
	if s := l.Suffix(); s != "" {
		return s + " OF " + table
	}
	return ""
}
