package patients

import (
	"context"
	"errors"
	"strings"
	"time"
	"unicode"

	"github.com/medrec/medrec/internal/domain/profiles"
	"github.com/medrec/medrec/internal/platform/access"
	"github.com/medrec/medrec/internal/platform/apierr"
	"github.com/medrec/medrec/internal/platform/db"
	"github.com/medrec/medrec/internal/platform/validation"
)

// DoctorStore looks up the profiles patients are assigned to.
type DoctorStore interface {
	GetByID(ctx context.Context, id int64, lock db.Lock) (*profiles.Profile, error)
	GetByIDs(ctx context.Context, ids []int64) (map[int64]*profiles.Profile, error)
}

// ListParams are the raw query refinements of a listing.
type ListParams struct {
	BirthDate string
	Search    string
	Ordering  string
	Limit     int
	Offset    int
}

// FileRemover deletes stored files. Patient deletes use it for the files
// of cascaded materials.
type FileRemover interface {
	Delete(ctx context.Context, key string) error
}

type Service struct {
	repo     Repository
	doctors  DoctorStore
	files    FileRemover
	tx       db.Transactor
	validate *validation.Validator
}

// NewService wires the patient service. files may be nil, in which case
// material files outlive their patient.
func NewService(repo Repository, doctors DoctorStore, files FileRemover, tx db.Transactor, v *validation.Validator) *Service {
	return &Service{repo: repo, doctors: doctors, files: files, tx: tx, validate: v}
}

// searchTerms splits a search string on whitespace and commas.
func searchTerms(s string) []string {
	return strings.FieldsFunc(s, func(r rune) bool {
		return r == ',' || unicode.IsSpace(r)
	})
}

func (s *Service) List(ctx context.Context, st access.PatientStrategy, params ListParams) ([]*Patient, int, error) {
	f := ListFilter{
		Scope:    st.Scope,
		Terms:    searchTerms(params.Search),
		Ordering: params.Ordering,
		Limit:    params.Limit,
		Offset:   params.Offset,
	}
	if params.BirthDate != "" {
		d, err := time.Parse(validation.DateLayout, params.BirthDate)
		if err != nil {
			return nil, 0, apierr.Field("birth_date", msgInvalidDate)
		}
		f.BirthDate = &d
	}
	return s.repo.List(ctx, f)
}

func (s *Service) Get(ctx context.Context, st access.PatientStrategy, id int64) (*Patient, error) {
	p, err := s.repo.Get(ctx, id, st.Scope, db.NoLock)
	return p, access.Conceal(err, "")
}

// Resolve returns patient id under scope, taking lock inside a transaction.
func (s *Service) Resolve(ctx context.Context, id int64, scope access.Scope, lock db.Lock) (*Patient, error) {
	return s.repo.Get(ctx, id, scope, lock)
}

// Doctors loads the doctor profiles of items, keyed by profile id.
func (s *Service) Doctors(ctx context.Context, items ...*Patient) (map[int64]*profiles.Profile, error) {
	seen := make(map[int64]bool, len(items))
	ids := make([]int64, 0, len(items))
	for _, p := range items {
		if !seen[p.DoctorID] {
			seen[p.DoctorID] = true
			ids = append(ids, p.DoctorID)
		}
	}
	return s.doctors.GetByIDs(ctx, ids)
}

// Create validates the decoded input and inserts the patient. Non-staff
// callers always own what they create.
func (s *Service) Create(ctx context.Context, st access.PatientStrategy, decode func(*Input) error) (*Patient, error) {
	var out *Patient
	err := s.tx.WithinTx(ctx, func(ctx context.Context) error {
		var in Input
		if err := decode(&in); err != nil {
			return err
		}
		p := &Patient{}
		if err := s.prepare(ctx, st, &in, p); err != nil {
			return err
		}
		if err := s.repo.Create(ctx, p); err != nil {
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

// Update locks the patient within scope, merges the decoded input onto it
// and saves. A full update must resupply every required field.
func (s *Service) Update(ctx context.Context, st access.PatientStrategy, id int64, decode func(*Input) error) (*Patient, error) {
	var out *Patient
	err := s.tx.WithinTx(ctx, func(ctx context.Context) error {
		p, err := s.repo.Get(ctx, id, st.Scope, db.ForUpdate)
		if err != nil {
			return access.Conceal(err, "")
		}

		in := inputFrom(p)
		if st.Op == access.Update {
			in.clearRequired()
			if st.Doctor == access.DoctorExplicit {
				in.Doctor = nil
			}
		}
		if err := decode(&in); err != nil {
			return err
		}
		if err := s.prepare(ctx, st, &in, p); err != nil {
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

// prepare validates in, settles the doctor according to st and applies
// the result to p. A named doctor is share-locked so it cannot disappear
// before the write commits.
func (s *Service) prepare(ctx context.Context, st access.PatientStrategy, in *Input, p *Patient) error {
	in.normalize()
	fields, err := validation.FieldsOf(s.validate.Validate(in))
	if err != nil {
		return err
	}

	var doctor *int64
	switch st.Doctor {
	case access.DoctorImplicit:
		if st.Op == access.Create {
			p.DoctorID = st.Self
		}
	case access.DoctorExplicit:
		id, msg := parseDoctor(in.Doctor)
		switch {
		case len(in.Doctor) == 0 && st.DoctorRequired():
			fields.Add("doctor", validation.MsgRequired)
		case msg != "":
			fields.Add("doctor", msg)
		case id == nil:
			fields.Add("doctor", msgNotNull)
		default:
			_, err := s.doctors.GetByID(ctx, *id, db.ForShare)
			if errors.Is(err, apierr.ErrNotFound) {
				fields.Add("doctor", msgInvalidPK(*id))
			} else if err != nil {
				return err
			}
			doctor = id
		}
	}
	if len(fields) > 0 {
		return apierr.Validation(fields)
	}

	if doctor != nil {
		p.DoctorID = *doctor
	}
	return in.apply(p)
}

// Delete removes the patient, cascading to its materials, then their files.
// A file that fails to delete is left behind and not reported.
func (s *Service) Delete(ctx context.Context, st access.PatientStrategy, id int64) error {
	files, err := s.repo.Delete(ctx, id, st.Scope)
	if err != nil {
		return access.Conceal(err, "")
	}
	if s.files == nil {
		return nil
	}
	for _, key := range files {
		_ = s.files.Delete(context.Background(), key)
	}
	return nil
}
