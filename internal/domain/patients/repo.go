package patients

import (
	"context"
	"time"

	"github.com/medrec/medrec/internal/platform/access"
	"github.com/medrec/medrec/internal/platform/db"
)

// ListFilter narrows and orders a patient listing.
type ListFilter struct {
	Scope     access.Scope
	BirthDate *time.Time
	// Terms must each match first name, last name or condition.
	Terms []string
	// Ordering is a comma list of sortable fields, "-" for descending.
	Ordering string
	Limit    int
	Offset   int
}

type Repository interface {
	List(ctx context.Context, f ListFilter) ([]*Patient, int, error)
	// Get returns patient id if scope permits it, else apierr.ErrNotFound.
	Get(ctx context.Context, id int64, scope access.Scope, lock db.Lock) (*Patient, error)
	Create(ctx context.Context, p *Patient) error
	// Update saves p and moves Updated strictly forward.
	Update(ctx context.Context, p *Patient) error
	// Delete removes patient id with its materials and returns the file
	// keys those materials referenced.
	Delete(ctx context.Context, id int64, scope access.Scope) ([]string, error)
}
