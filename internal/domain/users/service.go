package users

import (
	"context"
	"errors"
	"time"

	"github.com/medrec/medrec/internal/domain/profiles"
	"github.com/medrec/medrec/internal/platform/apierr"
	"github.com/medrec/medrec/internal/platform/auth"
	"github.com/medrec/medrec/internal/platform/db"
	"github.com/medrec/medrec/internal/platform/validation"
)

// ProfileProvisioner creates the profile that every user owns.
type ProfileProvisioner interface {
	Provision(ctx context.Context, userID int64) (*profiles.Profile, error)
}

type Service struct {
	repo     Repository
	profiles ProfileProvisioner
	tx       db.Transactor
	hasher   *auth.PasswordHasher
	tokens   *auth.TokenIssuer
	validate *validation.Validator
	now      func() time.Time
}

func NewService(repo Repository, provisioner ProfileProvisioner, tx db.Transactor,
	hasher *auth.PasswordHasher, tokens *auth.TokenIssuer, v *validation.Validator) *Service {
	return &Service{
		repo:     repo,
		profiles: provisioner,
		tx:       tx,
		hasher:   hasher,
		tokens:   tokens,
		validate: v,
		now:      time.Now,
	}
}

func (s *Service) check(in interface{}) (apierr.FieldErrors, error) {
	return validation.FieldsOf(s.validate.Validate(in))
}

// Register creates an active, non-staff user together with its profile.
func (s *Service) Register(ctx context.Context, in RegisterInput) (*User, error) {
	return s.create(ctx, in, false)
}

// CreateSuperuser creates a staff user together with its profile.
func (s *Service) CreateSuperuser(ctx context.Context, in RegisterInput) (*User, error) {
	return s.create(ctx, in, true)
}

func (s *Service) create(ctx context.Context, in RegisterInput, staff bool) (*User, error) {
	fields, err := s.check(&in)
	if err != nil {
		return nil, err
	}
	if in.Password != nil && len(fields["password"]) == 0 {
		for _, msg := range passwordProblems(*in.Password, deref(in.Username)) {
			fields.Add("password", msg)
		}
	}
	if len(fields) > 0 {
		return nil, apierr.Validation(fields)
	}

	hash, err := s.hasher.Hash(*in.Password)
	if err != nil {
		return nil, err
	}
	u := &User{
		Username:     *in.Username,
		PasswordHash: hash,
		Email:        deref(in.Email),
		FirstName:    deref(in.FirstName),
		LastName:     deref(in.LastName),
		IsStaff:      staff,
		IsActive:     true,
	}
	err = s.tx.WithinTx(ctx, func(ctx context.Context) error {
		if err := s.repo.Create(ctx, u); err != nil {
			return err
		}
		_, err := s.profiles.Provision(ctx, u.ID)
		return err
	})
	if err != nil {
		return nil, err
	}
	return u, nil
}

// target resolves the user id a caller may act on. Non-staff callers only
// see themselves; any other id is reported as absent.
func target(caller *auth.Principal, id int64) error {
	if caller == nil {
		return apierr.ErrUnauthenticated
	}
	if !caller.IsStaff && id != caller.UserID {
		return apierr.ErrNotFound
	}
	return nil
}

func (s *Service) Get(ctx context.Context, caller *auth.Principal, id int64) (*User, error) {
	if err := target(caller, id); err != nil {
		return nil, err
	}
	return s.repo.GetByID(ctx, id, db.NoLock)
}

// List returns every user to staff and only the caller otherwise.
func (s *Service) List(ctx context.Context, caller *auth.Principal) ([]*User, error) {
	if caller == nil {
		return nil, apierr.ErrUnauthenticated
	}
	if caller.IsStaff {
		return s.repo.List(ctx)
	}
	u, err := s.repo.GetByID(ctx, caller.UserID, db.NoLock)
	if err != nil {
		return nil, err
	}
	return []*User{u}, nil
}

// Update applies decode onto the user's current fields. None of the fields
// are required, so full and partial updates behave the same.
func (s *Service) Update(ctx context.Context, caller *auth.Principal, id int64, decode func(*UpdateInput) error) (*User, error) {
	if err := target(caller, id); err != nil {
		return nil, err
	}
	var out *User
	err := s.tx.WithinTx(ctx, func(ctx context.Context) error {
		u, err := s.repo.GetByID(ctx, id, db.ForUpdate)
		if err != nil {
			return err
		}
		in := updateInputFrom(u)
		if err := decode(&in); err != nil {
			return err
		}
		fields, err := s.check(&in)
		if err != nil {
			return err
		}
		if len(fields) > 0 {
			return apierr.Validation(fields)
		}
		in.apply(u)
		if err := s.repo.Update(ctx, u); err != nil {
			return err
		}
		out = u
		return nil
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

// confirm validates in and checks current against the caller's password.
// A wrong password is reported on current_password.
func (s *Service) confirm(ctx context.Context, caller *auth.Principal, in interface{}, current *string) (*User, apierr.FieldErrors, error) {
	fields, err := s.check(in)
	if err != nil {
		return nil, nil, err
	}
	me, err := s.repo.GetByID(ctx, caller.UserID, db.NoLock)
	if errors.Is(err, apierr.ErrNotFound) {
		return nil, nil, apierr.ErrUnauthenticated
	}
	if err != nil {
		return nil, nil, err
	}
	if current != nil && len(fields["current_password"]) == 0 && !s.hasher.Check(me.PasswordHash, *current) {
		fields.Add("current_password", msgInvalidPassword)
	}
	return me, fields, nil
}

// Delete removes user id after re-confirming the caller's password and
// revokes every token issued to it.
func (s *Service) Delete(ctx context.Context, caller *auth.Principal, id int64, in DeleteInput) error {
	if err := target(caller, id); err != nil {
		return err
	}
	if _, err := s.repo.GetByID(ctx, id, db.NoLock); err != nil {
		return err
	}
	_, fields, err := s.confirm(ctx, caller, &in, in.CurrentPassword)
	if err != nil {
		return err
	}
	if len(fields) > 0 {
		return apierr.Validation(fields)
	}
	if err := s.repo.Delete(ctx, id); err != nil {
		return err
	}
	return s.tokens.RevokeUser(ctx, id)
}

// SetPassword changes the caller's password and revokes their tokens.
func (s *Service) SetPassword(ctx context.Context, caller *auth.Principal, in SetPasswordInput) error {
	if caller == nil {
		return apierr.ErrUnauthenticated
	}
	me, fields, err := s.confirm(ctx, caller, &in, in.CurrentPassword)
	if err != nil {
		return err
	}
	if in.NewPassword != nil && len(fields["new_password"]) == 0 {
		for _, msg := range passwordProblems(*in.NewPassword, me.Username) {
			fields.Add("new_password", msg)
		}
	}
	if len(fields) > 0 {
		return apierr.Validation(fields)
	}

	hash, err := s.hasher.Hash(*in.NewPassword)
	if err != nil {
		return err
	}
	if err := s.repo.SetPassword(ctx, me.ID, hash); err != nil {
		return err
	}
	return s.tokens.RevokeUser(ctx, me.ID)
}

func (s *Service) SetUsername(ctx context.Context, caller *auth.Principal, in SetUsernameInput) error {
	if caller == nil {
		return apierr.ErrUnauthenticated
	}
	me, fields, err := s.confirm(ctx, caller, &in, in.CurrentPassword)
	if err != nil {
		return err
	}
	if len(fields) > 0 {
		return apierr.Validation(fields)
	}
	return s.repo.SetUsername(ctx, me.ID, *in.NewUsername)
}

// Login checks credentials and issues a token pair. Unknown users, wrong
// passwords and inactive accounts all fail the same way.
func (s *Service) Login(ctx context.Context, in LoginInput) (*auth.TokenPair, error) {
	fields, err := s.check(&in)
	if err != nil {
		return nil, err
	}
	if len(fields) > 0 {
		return nil, apierr.Validation(fields)
	}

	u, err := s.repo.GetByUsername(ctx, *in.Username)
	if errors.Is(err, apierr.ErrNotFound) {
		return nil, apierr.Unauthenticated(msgNoActiveAccount)
	}
	if err != nil {
		return nil, err
	}
	if !u.IsActive || !s.hasher.Check(u.PasswordHash, *in.Password) {
		return nil, apierr.Unauthenticated(msgNoActiveAccount)
	}

	pair, err := s.tokens.Issue(u.ID)
	if err != nil {
		return nil, err
	}
	if err := s.repo.TouchLastLogin(ctx, u.ID, s.now()); err != nil {
		return nil, err
	}
	return pair, nil
}

// parse verifies raw, mapping every token failure to a 401.
func (s *Service) parse(ctx context.Context, raw, tokenType string) (*auth.Claims, error) {
	claims, err := s.tokens.Parse(ctx, raw, tokenType)
	if errors.Is(err, auth.ErrTokenInvalid) {
		return nil, apierr.Unauthenticated(msgTokenInvalid)
	}
	return claims, err
}

// Refresh exchanges a refresh token for a new access token, rotating the
// refresh token when enabled. The user must still be active.
func (s *Service) Refresh(ctx context.Context, in RefreshInput) (*auth.RefreshResult, error) {
	fields, err := s.check(&in)
	if err != nil {
		return nil, err
	}
	if len(fields) > 0 {
		return nil, apierr.Validation(fields)
	}
	claims, err := s.parse(ctx, *in.Refresh, auth.TokenTypeRefresh)
	if err != nil {
		return nil, err
	}

	_, active, err := s.repo.LoadPrincipal(ctx, claims.UserID)
	if errors.Is(err, apierr.ErrNotFound) || (err == nil && !active) {
		return nil, apierr.Unauthenticated(msgNoActiveForToken)
	}
	if err != nil {
		return nil, err
	}
	return s.tokens.Rotate(ctx, claims)
}

// Verify checks a token of either type.
func (s *Service) Verify(ctx context.Context, in VerifyInput) error {
	fields, err := s.check(&in)
	if err != nil {
		return err
	}
	if len(fields) > 0 {
		return apierr.Validation(fields)
	}
	_, err = s.parse(ctx, *in.Token, "")
	return err
}

// Blacklist revokes a refresh token.
func (s *Service) Blacklist(ctx context.Context, in RefreshInput) error {
	fields, err := s.check(&in)
	if err != nil {
		return err
	}
	if len(fields) > 0 {
		return apierr.Validation(fields)
	}
	claims, err := s.parse(ctx, *in.Refresh, auth.TokenTypeRefresh)
	if err != nil {
		return err
	}
	return s.tokens.Revoke(ctx, claims)
}
