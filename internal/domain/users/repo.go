package users

import (
	"context"
	"time"

	"github.com/medrec/medrec/internal/platform/auth"
	"github.com/medrec/medrec/internal/platform/db"
)

type Repository interface {
	Create(ctx context.Context, u *User) error
	GetByID(ctx context.Context, id int64, lock db.Lock) (*User, error)
	GetByUsername(ctx context.Context, username string) (*User, error)
	List(ctx context.Context) ([]*User, error)
	Update(ctx context.Context, u *User) error
	SetPassword(ctx context.Context, id int64, hash string) error
	SetUsername(ctx context.Context, id int64, username string) error
	TouchLastLogin(ctx context.Context, id int64, at time.Time) error
	Delete(ctx context.Context, id int64) error
	// LoadPrincipal resolves a user id to a caller identity.
	LoadPrincipal(ctx context.Context, id int64) (*auth.Principal, bool, error)
}
