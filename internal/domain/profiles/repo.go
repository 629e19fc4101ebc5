package profiles

import (
	"context"

	"github.com/medrec/medrec/internal/platform/db"
)

type Repository interface {
	// Create inserts the empty profile of userID.
	Create(ctx context.Context, userID int64) (*Profile, error)
	GetByID(ctx context.Context, id int64, lock db.Lock) (*Profile, error)
	GetByUserID(ctx context.Context, userID int64) (*Profile, error)
	// GetByIDs returns the profiles found among ids, keyed by id.
	GetByIDs(ctx context.Context, ids []int64) (map[int64]*Profile, error)
	List(ctx context.Context, limit, offset int) ([]*Profile, int, error)
	Update(ctx context.Context, p *Profile) error
}
