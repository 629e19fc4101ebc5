package users

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/medrec/medrec/internal/platform/apierr"
	"github.com/medrec/medrec/internal/platform/auth"
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

const userCols = `id, username, password_hash, email, first_name, last_name, is_staff, is_active, date_joined, last_login`

func scanUser(row pgx.Row) (*User, error) {
	var u User
	err := row.Scan(&u.ID, &u.Username, &u.PasswordHash, &u.Email, &u.FirstName, &u.LastName,
		&u.IsStaff, &u.IsActive, &u.DateJoined, &u.LastLogin)
	if db.IsNoRows(err) {
		return nil, apierr.ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &u, nil
}

// usernameTaken maps a unique violation on the username to a field error
// on field.
func usernameTaken(err error, field string) error {
	if constraint, ok := db.UniqueViolation(err); ok && constraint == usernameConstraint {
		return apierr.Field(field, msgUsernameTaken)
	}
	return err
}

func (r *repoPG) Create(ctx context.Context, u *User) error {
	err := r.conn(ctx).QueryRow(ctx, `
		INSERT INTO app_user (username, password_hash, email, first_name, last_name, is_staff, is_active)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		RETURNING id, date_joined`,
		u.Username, u.PasswordHash, u.Email, u.FirstName, u.LastName, u.IsStaff, u.IsActive,
	).Scan(&u.ID, &u.DateJoined)
	if err != nil {
		if taken := usernameTaken(err, "username"); taken != err {
			return taken
		}
		return fmt.Errorf("insert user: %w", err)
	}
	return nil
}

func (r *repoPG) GetByID(ctx context.Context, id int64, lock db.Lock) (*User, error) {
	return scanUser(r.conn(ctx).QueryRow(ctx,
		`SELECT `+userCols+` FROM app_user WHERE id = $1`+lock.Suffix(), id))
}

func (r *repoPG) GetByUsername(ctx context.Context, username string) (*User, error) {
	return scanUser(r.conn(ctx).QueryRow(ctx,
		`SELECT `+userCols+` FROM app_user WHERE username = $1`, username))
}

func (r *repoPG) List(ctx context.Context) ([]*User, error) {
	rows, err := r.conn(ctx).Query(ctx, `SELECT `+userCols+` FROM app_user ORDER BY id`)
	if err != nil {
		return nil, fmt.Errorf("list users: %w", err)
	}
	defer rows.Close()

	var items []*User
	for rows.Next() {
		u, err := scanUser(rows)
		if err != nil {
			return nil, err
		}
		items = append(items, u)
	}
	return items, rows.Err()
}

func (r *repoPG) exec(ctx context.Context, op, sql string, args ...interface{}) error {
	tag, err := r.conn(ctx).Exec(ctx, sql, args...)
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	if tag.RowsAffected() == 0 {
		return apierr.ErrNotFound
	}
	return nil
}

func (r *repoPG) Update(ctx context.Context, u *User) error {
	return r.exec(ctx, "update user",
		`UPDATE app_user SET email = $2, first_name = $3, last_name = $4 WHERE id = $1`,
		u.ID, u.Email, u.FirstName, u.LastName)
}

func (r *repoPG) SetPassword(ctx context.Context, id int64, hash string) error {
	return r.exec(ctx, "set password", `UPDATE app_user SET password_hash = $2 WHERE id = $1`, id, hash)
}

func (r *repoPG) SetUsername(ctx context.Context, id int64, username string) error {
	tag, err := r.conn(ctx).Exec(ctx, `UPDATE app_user SET username = $2 WHERE id = $1`, id, username)
	if err != nil {
		if taken := usernameTaken(err, "new_username"); taken != err {
			return taken
		}
		return fmt.Errorf("set username: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return apierr.ErrNotFound
	}
	return nil
}

func (r *repoPG) TouchLastLogin(ctx context.Context, id int64, at time.Time) error {
	return r.exec(ctx, "touch last login", `UPDATE app_user SET last_login = $2 WHERE id = $1`, id, at)
}

// Delete removes the user. The profile, its patients and their materials
// go with it through ON DELETE CASCADE.
func (r *repoPG) Delete(ctx context.Context, id int64) error {
	return r.exec(ctx, "delete user", `DELETE FROM app_user WHERE id = $1`, id)
}

func (r *repoPG) LoadPrincipal(ctx context.Context, id int64) (*auth.Principal, bool, error) {
	var (
		p      auth.Principal
		active bool
	)
	err := r.conn(ctx).QueryRow(ctx, `
		SELECT u.id, u.username, u.is_staff, u.is_active, COALESCE(p.id, 0)
		FROM app_user u LEFT JOIN profile p ON p.user_id = u.id
		WHERE u.id = $1`, id,
	).Scan(&p.UserID, &p.Username, &p.IsStaff, &active, &p.ProfileID)
	if db.IsNoRows(err) {
		return nil, false, apierr.ErrNotFound
	}
	if err != nil {
		return nil, false, fmt.Errorf("load principal: %w", err)
	}
	return &p, active, nil
}
