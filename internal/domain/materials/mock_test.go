package materials

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/medrec/medrec/internal/domain/patients"
	"github.com/medrec/medrec/internal/platform/access"
	"github.com/medrec/medrec/internal/platform/apierr"
	"github.com/medrec/medrec/internal/platform/db"
)

// mockParents maps patient ids to their doctor profile.
type mockParents struct {
	doctors map[int64]int64
	locks   []db.Lock
}

func (p *mockParents) Resolve(_ context.Context, id int64, scope access.Scope, lock db.Lock) (*patients.Patient, error) {
	p.locks = append(p.locks, lock)
	doctor, ok := p.doctors[id]
	if !ok || !scope.Permits(doctor) {
		return nil, apierr.ErrNotFound
	}
	return &patients.Patient{ID: id, DoctorID: doctor}, nil
}

type mockRepo struct {
	mu        sync.Mutex
	materials map[int64]*Material
	nextID    int64
	parents   *mockParents
}

func newMockRepo(parents *mockParents) *mockRepo {
	return &mockRepo{materials: make(map[int64]*Material), nextID: 1, parents: parents}
}

func clone(m *Material) *Material {
	cp := *m
	return &cp
}

func (r *mockRepo) visible(m *Material, patientID int64, scope access.Scope) bool {
	return m.PatientID == patientID && scope.Permits(r.parents.doctors[m.PatientID])
}

func (r *mockRepo) List(_ context.Context, patientID int64, scope access.Scope, limit, offset int) ([]*Material, int, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var all []*Material
	for _, m := range r.materials {
		if r.visible(m, patientID, scope) {
			all = append(all, clone(m))
		}
	}
	sort.Slice(all, func(i, j int) bool { return all[i].ID < all[j].ID })
	total := len(all)
	if offset >= total {
		return nil, total, nil
	}
	end := offset + limit
	if end > total {
		end = total
	}
	return all[offset:end], total, nil
}

func (r *mockRepo) Get(_ context.Context, id, patientID int64, scope access.Scope, _ db.Lock) (*Material, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	m, ok := r.materials[id]
	if !ok || !r.visible(m, patientID, scope) {
		return nil, apierr.ErrNotFound
	}
	return clone(m), nil
}

func (r *mockRepo) Create(_ context.Context, m *Material) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	now := time.Now()
	m.ID = r.nextID
	m.Created, m.Updated = now, now
	r.nextID++
	r.materials[m.ID] = clone(m)
	return nil
}

func (r *mockRepo) Update(_ context.Context, m *Material) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	cur, ok := r.materials[m.ID]
	if !ok {
		return apierr.ErrNotFound
	}
	updated := time.Now()
	if floor := cur.Updated.Add(time.Microsecond); updated.Before(floor) {
		updated = floor
	}
	m.Updated = updated
	r.materials[m.ID] = clone(m)
	return nil
}

func (r *mockRepo) Delete(_ context.Context, id, patientID int64, scope access.Scope) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	m, ok := r.materials[id]
	if !ok || !r.visible(m, patientID, scope) {
		return apierr.ErrNotFound
	}
	delete(r.materials, id)
	return nil
}
