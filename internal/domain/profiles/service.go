package profiles

import (
	"context"

	"github.com/medrec/medrec/internal/platform/apierr"
	"github.com/medrec/medrec/internal/platform/auth"
	"github.com/medrec/medrec/internal/platform/db"
	"github.com/medrec/medrec/internal/platform/validation"
)

type Service struct {
	repo     Repository
	tx       db.Transactor
	validate *validation.Validator
}

func NewService(repo Repository, tx db.Transactor, v *validation.Validator) *Service {
	return &Service{repo: repo, tx: tx, validate: v}
}

// Provision creates the profile of a newly created user. It runs in the
// caller's transaction when ctx carries one.
func (s *Service) Provision(ctx context.Context, userID int64) (*Profile, error) {
	return s.repo.Create(ctx, userID)
}

// Me returns the caller's own profile.
func (s *Service) Me(ctx context.Context, caller *auth.Principal) (*Profile, error) {
	if caller == nil {
		return nil, apierr.ErrUnauthenticated
	}
	return s.repo.GetByID(ctx, caller.ProfileID, db.NoLock)
}

func (s *Service) Get(ctx context.Context, id int64) (*Profile, error) {
	return s.repo.GetByID(ctx, id, db.NoLock)
}

func (s *Service) GetMany(ctx context.Context, ids []int64) (map[int64]*Profile, error) {
	return s.repo.GetByIDs(ctx, ids)
}

func (s *Service) List(ctx context.Context, limit, offset int) ([]*Profile, int, error) {
	return s.repo.List(ctx, limit, offset)
}

// Update locks profile id, decodes the request onto its input with decode
// and saves it. A full update starts from an empty company name, which is
// then required.
func (s *Service) Update(ctx context.Context, id int64, partial bool, decode func(*Input) error) (*Profile, error) {
	var out *Profile
	err := s.tx.WithinTx(ctx, func(ctx context.Context) error {
		p, err := s.repo.GetByID(ctx, id, db.ForUpdate)
		if err != nil {
			return err
		}

		in := InputFrom(p)
		if !partial {
			in.CompanyName = nil
		}
		if err := decode(&in); err != nil {
			return err
		}
		in.normalize()

		fields, err := validation.FieldsOf(s.validate.Validate(&in))
		if err != nil {
			return err
		}
		if !partial && in.CompanyName == nil {
			fields.Add("company_name", validation.MsgRequired)
		}
		if len(fields) > 0 {
			return apierr.Validation(fields)
		}

		if err := in.apply(p); err != nil {
			return err
		}
		if err := s.repo.Update(ctx, p); err != nil {
			return err
		}
		out = p
		return nil
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}
