package patients

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
	patientCols  = `id, first_name, last_name, birth_date, gender, med_condition, doctor_id, created, updated`
	patientOrder = `updated ASC, first_name ASC, last_name ASC`
)

var (
	sortColumns = map[string]string{
		"birth_date": "birth_date",
		"created":    "created",
	}
	searchColumns = []string{"first_name", "last_name", "med_condition"}
)

func scanPatient(row pgx.Row) (*Patient, error) {
	var p Patient
	err := row.Scan(&p.ID, &p.FirstName, &p.LastName, &p.BirthDate, &p.Gender,
		&p.MedCondition, &p.DoctorID, &p.Created, &p.Updated)
	if db.IsNoRows(err) {
		return nil, apierr.ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &p, nil
}

func (r *repoPG) List(ctx context.Context, f ListFilter) ([]*Patient, int, error) {
	q := db.NewSearchQuery("patient", patientCols)
	f.Scope.Apply(q, "doctor_id")
	if f.BirthDate != nil {
		q.AddEqual("birth_date", *f.BirthDate)
	}
	for _, term := range f.Terms {
		q.AddContainsAny(searchColumns, term)
	}
	q.ApplySort(f.Ordering, sortColumns, patientOrder, "id ASC")

	var total int
	if err := r.conn(ctx).QueryRow(ctx, q.CountSQL(), q.CountArgs()...).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("count patients: %w", err)
	}

	rows, err := r.conn(ctx).Query(ctx, q.DataSQL(), q.DataArgs(f.Limit, f.Offset)...)
	if err != nil {
		return nil, 0, fmt.Errorf("search patients: %w", err)
	}
	defer rows.Close()

	var items []*Patient
	for rows.Next() {
		p, err := scanPatient(rows)
		if err != nil {
			return nil, 0, err
		}
		items = append(items, p)
	}
	return items, total, rows.Err()
}

func (r *repoPG) Get(ctx context.Context, id int64, scope access.Scope, lock db.Lock) (*Patient, error) {
	q := `SELECT ` + patientCols + ` FROM patient WHERE id = $1`
	args := []interface{}{id}
	if profileID, ok := scope.ProfileID(); ok {
		q += ` AND doctor_id = $2`
		args = append(args, profileID)
	}
	return scanPatient(r.conn(ctx).QueryRow(ctx, q+lock.Suffix(), args...))
}

func (r *repoPG) Create(ctx context.Context, p *Patient) error {
	err := r.conn(ctx).QueryRow(ctx, `
		INSERT INTO patient (first_name, last_name, birth_date, gender, med_condition, doctor_id)
		VALUES ($1, $2, $3, $4, $5, $6)
		RETURNING id, created, updated`,
		p.FirstName, p.LastName, p.BirthDate, p.Gender, p.MedCondition, p.DoctorID,
	).Scan(&p.ID, &p.Created, &p.Updated)
	if db.IsForeignKeyViolation(err) {
		return apierr.Field("doctor", msgInvalidPK(p.DoctorID))
	}
	if err != nil {
		return fmt.Errorf("insert patient: %w", err)
	}
	return nil
}

func (r *repoPG) Update(ctx context.Context, p *Patient) error {
	err := r.conn(ctx).QueryRow(ctx, `
		UPDATE patient SET
			first_name = $2, last_name = $3, birth_date = $4, gender = $5,
			med_condition = $6, doctor_id = $7,
			updated = GREATEST(clock_timestamp(), updated + interval '1 microsecond')
		WHERE id = $1
		RETURNING updated`,
		p.ID, p.FirstName, p.LastName, p.BirthDate, p.Gender, p.MedCondition, p.DoctorID,
	).Scan(&p.Updated)
	if db.IsNoRows(err) {
		return apierr.ErrNotFound
	}
	if db.IsForeignKeyViolation(err) {
		return apierr.Field("doctor", msgInvalidPK(p.DoctorID))
	}
	if err != nil {
		return fmt.Errorf("update patient: %w", err)
	}
	return nil
}

// Delete reads the cascaded material files from the pre-delete snapshot.
// The left join yields one row per file, or a single NULL row for a
// patient without materials.
func (r *repoPG) Delete(ctx context.Context, id int64, scope access.Scope) ([]string, error) {
	del := `DELETE FROM patient WHERE id = $1`
	args := []interface{}{id}
	if profileID, ok := scope.ProfileID(); ok {
		del += ` AND doctor_id = $2`
		args = append(args, profileID)
	}
	q := `WITH gone AS (` + del + ` RETURNING id)
		SELECT m.file FROM gone LEFT JOIN material m ON m.patient_id = gone.id`

	rows, err := r.conn(ctx).Query(ctx, q, args...)
	if err != nil {
		return nil, fmt.Errorf("delete patient: %w", err)
	}
	defer rows.Close()

	var (
		files   []string
		deleted bool
	)
	for rows.Next() {
		deleted = true
		var file *string
		if err := rows.Scan(&file); err != nil {
			return nil, fmt.Errorf("scan material file: %w", err)
		}
		if file != nil {
			files = append(files, *file)
		}
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("delete patient: %w", err)
	}
	if !deleted {
		return nil, apierr.ErrNotFound
	}
	return files, nil
}
