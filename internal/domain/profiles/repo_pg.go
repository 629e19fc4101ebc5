package profiles

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

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
	profileCols  = `p.id, p.user_id, p.company_name, p.birth_date, u.first_name, u.last_name`
	profileFrom  = `profile p JOIN app_user u ON u.id = p.user_id`
	profileOrder = `u.first_name, u.last_name, p.id`
)

func scanProfile(row pgx.Row) (*Profile, error) {
	var p Profile
	err := row.Scan(&p.ID, &p.UserID, &p.CompanyName, &p.BirthDate, &p.FirstName, &p.LastName)
	if db.IsNoRows(err) {
		return nil, apierr.ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &p, nil
}

func (r *repoPG) Create(ctx context.Context, userID int64) (*Profile, error) {
	var id int64
	err := r.conn(ctx).QueryRow(ctx,
		`INSERT INTO profile (user_id) VALUES ($1) RETURNING id`, userID).Scan(&id)
	if err != nil {
		return nil, fmt.Errorf("insert profile: %w", err)
	}
	return r.GetByID(ctx, id, db.NoLock)
}

func (r *repoPG) GetByID(ctx context.Context, id int64, lock db.Lock) (*Profile, error) {
	return scanProfile(r.conn(ctx).QueryRow(ctx,
		`SELECT `+profileCols+` FROM `+profileFrom+` WHERE p.id = $1`+lock.SuffixOf("p"), id))
}

func (r *repoPG) GetByUserID(ctx context.Context, userID int64) (*Profile, error) {
	return scanProfile(r.conn(ctx).QueryRow(ctx,
		`SELECT `+profileCols+` FROM `+profileFrom+` WHERE p.user_id = $1`, userID))
}

func (r *repoPG) GetByIDs(ctx context.Context, ids []int64) (map[int64]*Profile, error) {
	out := make(map[int64]*Profile, len(ids))
	if len(ids) == 0 {
		return out, nil
	}
	rows, err := r.conn(ctx).Query(ctx,
		`SELECT `+profileCols+` FROM `+profileFrom+` WHERE p.id = ANY($1)`, ids)
	if err != nil {
		return nil, fmt.Errorf("select profiles: %w", err)
	}
	defer rows.Close()
	for rows.Next() {
		p, err := scanProfile(rows)
		if err != nil {
			return nil, err
		}
		out[p.ID] = p
	}
	return out, rows.Err()
}

func (r *repoPG) List(ctx context.Context, limit, offset int) ([]*Profile, int, error) {
	q := db.NewSearchQuery(profileFrom, profileCols)
	q.ApplySort("", nil, profileOrder, "")

	var total int
	if err := r.conn(ctx).QueryRow(ctx, q.CountSQL(), q.CountArgs()...).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("count profiles: %w", err)
	}

	rows, err := r.conn(ctx).Query(ctx, q.DataSQL(), q.DataArgs(limit, offset)...)
	if err != nil {
		return nil, 0, fmt.Errorf("list profiles: %w", err)
	}
	defer rows.Close()

	var items []*Profile
	for rows.Next() {
		p, err := scanProfile(rows)
		if err != nil {
			return nil, 0, err
		}
		items = append(items, p)
	}
	return items, total, rows.Err()
}

func (r *repoPG) Update(ctx context.Context, p *Profile) error {
	tag, err := r.conn(ctx).Exec(ctx,
		`UPDATE profile SET company_name = $2, birth_date = $3 WHERE id = $1`,
		p.ID, p.CompanyName, p.BirthDate)
	if constraint, ok := db.UniqueViolation(err); ok && constraint == companyNameConstraint {
		return apierr.Field("company_name", msgCompanyNameTaken)
	}
	if err != nil {
		return fmt.Errorf("update profile: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return apierr.ErrNotFound
	}
	return nil
}
