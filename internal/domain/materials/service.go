package materials

import (
	"context"
	"errors"

	"github.com/medrec/medrec/internal/domain/patients"
	"github.com/medrec/medrec/internal/platform/access"
	"github.com/medrec/medrec/internal/platform/apierr"
	"github.com/medrec/medrec/internal/platform/blobstore"
	"github.com/medrec/medrec/internal/platform/db"
)

// Parents resolves the patient a material belongs to.
type Parents interface {
	Resolve(ctx context.Context, id int64, scope access.Scope, lock db.Lock) (*patients.Patient, error)
}

type Service struct {
	repo    Repository
	parents Parents
	blobs   blobstore.BlobStore
	tx      db.Transactor
}

func NewService(repo Repository, parents Parents, blobs blobstore.BlobStore, tx db.Transactor) *Service {
	return &Service{repo: repo, parents: parents, blobs: blobs, tx: tx}
}

// parent resolves patientID under the strategy's parent scope. Absent and
// out-of-scope patients are both reported as "Patient not found".
func (s *Service) parent(ctx context.Context, st access.MaterialStrategy, patientID int64, lock db.Lock) error {
	_, err := s.parents.Resolve(ctx, patientID, st.ParentScope, lock)
	if errors.Is(err, apierr.ErrNotFound) {
		return access.ParentNotFound()
	}
	return err
}

// Authorize checks that patientID, and material id when non-zero, resolve
// for st. Handlers call it before reading an upload so that out-of-scope
// targets fail as not found ahead of any file errors.
func (s *Service) Authorize(ctx context.Context, st access.MaterialStrategy, patientID, id int64) error {
	if err := s.parent(ctx, st, patientID, db.NoLock); err != nil {
		return err
	}
	if id == 0 {
		return nil
	}
	_, err := s.repo.Get(ctx, id, patientID, st.ParentScope, db.NoLock)
	return access.Conceal(err, "")
}

// FileURL returns the public path of a stored file.
func (s *Service) FileURL(key string) string {
	return s.blobs.URL(key)
}

func (s *Service) List(ctx context.Context, st access.MaterialStrategy, patientID int64, limit, offset int) ([]*Material, int, error) {
	if err := s.parent(ctx, st, patientID, db.NoLock); err != nil {
		return nil, 0, err
	}
	return s.repo.List(ctx, patientID, st.ParentScope, limit, offset)
}

func (s *Service) Get(ctx context.Context, st access.MaterialStrategy, patientID, id int64) (*Material, error) {
	if err := s.parent(ctx, st, patientID, db.NoLock); err != nil {
		return nil, err
	}
	m, err := s.repo.Get(ctx, id, patientID, st.ParentScope, db.NoLock)
	return m, access.Conceal(err, "")
}

// put stores an upload and maps rejected files to field errors.
func (s *Service) put(ctx context.Context, up *Upload) (string, error) {
	if up == nil {
		return "", apierr.Field("file", msgNoFile)
	}
	key, err := s.blobs.Put(ctx, blobDir, up.Name, up.Content)
	switch {
	case errors.Is(err, blobstore.ErrEmptyFile):
		return "", apierr.Field("file", msgEmptyFile)
	case errors.Is(err, blobstore.ErrMissingFileName):
		return "", apierr.Field("file", msgNoFileName)
	case err != nil:
		return "", err
	}
	return key, nil
}

// discard removes a blob that is no longer referenced. Failures leave an
// orphaned file behind and are not reported.
func (s *Service) discard(key string) {
	if key != "" {
		_ = s.blobs.Delete(context.Background(), key)
	}
}

// Create stores up and attaches it to patientID. The parent stays
// share-locked until the row is inserted.
func (s *Service) Create(ctx context.Context, st access.MaterialStrategy, patientID int64, up *Upload) (*Material, error) {
	var (
		out *Material
		key string
	)
	err := s.tx.WithinTx(ctx, func(ctx context.Context) error {
		if err := s.parent(ctx, st, patientID, db.ForShare); err != nil {
			return err
		}
		var err error
		key, err = s.put(ctx, up)
		if err != nil {
			return err
		}
		m := &Material{PatientID: patientID, File: key}
		if err := s.repo.Create(ctx, m); err != nil {
			return err
		}
		out = m
		return nil
	})
	if err != nil {
		s.discard(key)
		return nil, err
	}
	return out, nil
}

// Update replaces the file of material id. A partial update without a file
// only refreshes the timestamp. The replaced file is removed once the
// change is committed.
func (s *Service) Update(ctx context.Context, st access.MaterialStrategy, patientID, id int64, up *Upload) (*Material, error) {
	var (
		out      *Material
		newKey   string
		replaced string
	)
	err := s.tx.WithinTx(ctx, func(ctx context.Context) error {
		if err := s.parent(ctx, st, patientID, db.ForShare); err != nil {
			return err
		}
		m, err := s.repo.Get(ctx, id, patientID, st.ParentScope, db.ForUpdate)
		if err != nil {
			return access.Conceal(err, "")
		}

		if up != nil || st.Op == access.Update {
			newKey, err = s.put(ctx, up)
			if err != nil {
				return err
			}
			replaced, m.File = m.File, newKey
		}
		if err := s.repo.Update(ctx, m); err != nil {
			return err
		}
		out = m
		return nil
	})
	if err != nil {
		s.discard(newKey)
		return nil, err
	}
	s.discard(replaced)
	return out, nil
}

// Delete removes material id and then its file.
func (s *Service) Delete(ctx context.Context, st access.MaterialStrategy, patientID, id int64) error {
	var key string
	err := s.tx.WithinTx(ctx, func(ctx context.Context) error {
		if err := s.parent(ctx, st, patientID, db.ForShare); err != nil {
			return err
		}
		m, err := s.repo.Get(ctx, id, patientID, st.ParentScope, db.ForUpdate)
		if err != nil {
			return access.Conceal(err, "")
		}
		if err := s.repo.Delete(ctx, id, patientID, st.ParentScope); err != nil {
			return err
		}
		key = m.File
		return nil
	})
	if err != nil {
		return err
	}
	s.discard(key)
	return nil
}
