package materials

import (
	"context"

	"github.com/medrec/medrec/internal/platform/access"
	"github.com/medrec/medrec/internal/platform/db"
)

// Repository reads and writes materials of one patient. Every query is
// restricted to the patient and, for a restricted scope, to patients of
// the scope's doctor.
type Repository interface {
	List(ctx context.Context, patientID int64, scope access.Scope, limit, offset int) ([]*Material, int, error)
	Get(ctx context.Context, id, patientID int64, scope access.Scope, lock db.Lock) (*Material, error)
	Create(ctx context.Context, m *Material) error
	// Update saves the file key and moves Updated strictly forward.
	Update(ctx context.Context, m *Material) error
	Delete(ctx context.Context, id, patientID int64, scope access.Scope) error
}
