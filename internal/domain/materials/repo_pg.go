package materials

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/medrec/medrec/internal/platform/access"
	"github.com/medrec/medrec/internal/platform/apierr"
	"github.com/medrec/medrec/internal/platform/db"
)

type repoPG struct {
	pool *pgxpool.Pool
}

func NewRepo(pool *pgxpool.Pool) Repository {
	return &repoPG{pool: pool}
}

func (r *repoPG) conn(ctx context.Context) db.Querier {
	return db.Conn(ctx, r.pool)
}

const (
	materialCols = `m.id, m.patient_id, m.file, m.created, m.updated`
	materialFrom = `material m JOIN patient p ON p.id = m.patient_id`
)

func scanMaterial(row pgx.Row) (*Material, error) {
	var m Material
	err := row.Scan(&m.ID, &m.PatientID, &m.File, &m.Created, &m.Updated)
	if db.IsNoRows(err) {
		return nil, apierr.ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &m, nil
}

func scoped(patientID int64, scope access.Scope) *db.SearchQuery {
	q := db.NewSearchQuery(materialFrom, materialCols)
	q.AddEqual("m.patient_id", patientID)
	scope.Apply(q, "p.doctor_id")
	return q
}

func (r *repoPG) List(ctx context.Context, patientID int64, scope access.Scope, limit, offset int) ([]*Material, int, error) {
	q := scoped(patientID, scope)
	q.ApplySort("", nil, "m.id ASC", "")

	var total int
	if err := r.conn(ctx).QueryRow(ctx, q.CountSQL(), q.CountArgs()...).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("count materials: %w", err)
	}

	rows, err := r.conn(ctx).Query(ctx, q.DataSQL(), q.DataArgs(limit, offset)...)
	if err != nil {
		return nil, 0, fmt.Errorf("list materials: %w", err)
	}
	defer rows.Close()

	var items []*Material
	for rows.Next() {
		m, err := scanMaterial(rows)
		if err != nil {
			return nil, 0, err
		}
		items = append(items, m)
	}
	return items, total, rows.Err()
}

func (r *repoPG) Get(ctx context.Context, id, patientID int64, scope access.Scope, lock db.Lock) (*Material, error) {
	q := scoped(patientID, scope)
	q.AddEqual("m.id", id)
	return scanMaterial(r.conn(ctx).QueryRow(ctx, q.RowSQL()+lock.SuffixOf("m"), q.CountArgs()...))
}

func (r *repoPG) Create(ctx context.Context, m *Material) error {
	err := r.conn(ctx).QueryRow(ctx, `
		INSERT INTO material (file, patient_id) VALUES ($1, $2)
		RETURNING id, created, updated`,
		m.File, m.PatientID,
	).Scan(&m.ID, &m.Created, &m.Updated)
	if err != nil {
		return fmt.Errorf("insert material: %w", err)
	}
	return nil
}

func (r *repoPG) Update(ctx context.Context, m *Material) error {
	err := r.conn(ctx).QueryRow(ctx, `
		UPDATE material SET
			file = $2,
			updated = GREATEST(clock_timestamp(), updated + interval '1 microsecond')
		WHERE id = $1
		RETURNING updated`,
		m.ID, m.File,
	).Scan(&m.Updated)
	if db.IsNoRows(err) {
		return apierr.ErrNotFound
	}
	if err != nil {
		return fmt.Errorf("update material: %w", err)
	}
	return nil
}

func (r *repoPG) Delete(ctx context.Context, id, patientID int64, scope access.Scope) error {
	q := `DELETE FROM material m USING patient p
		WHERE p.id = m.patient_id AND m.id = $1 AND m.patient_id = $2`
	args := []interface{}{id, patientID}
	if profileID, ok := scope.ProfileID(); ok {
		q += ` AND p.doctor_id = $3`
		args = append(args, profileID)
	}
	tag, err := r.conn(ctx).Exec(ctx, q, args...)
	if err != nil {
		return fmt.Errorf("delete material: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return apierr.ErrNotFound
	}
	return nil
}
