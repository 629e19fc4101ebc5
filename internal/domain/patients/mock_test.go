package patients

import (
	"context"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/medrec/medrec/internal/domain/profiles"
	"github.com/medrec/medrec/internal/platform/access"
	"github.com/medrec/medrec/internal/platform/apierr"
	"github.com/medrec/medrec/internal/platform/db"
)

type mockRepo struct {
	mu       sync.Mutex
	patients map[int64]*Patient
	nextID   int64
	// locks records the lock taken by each Get.
	locks []db.Lock
	// files holds the material file keys attached to each patient.
	files map[int64][]string
}

func newMockRepo() *mockRepo {
	return &mockRepo{patients: make(map[int64]*Patient), nextID: 1, files: make(map[int64][]string)}
}

func clone(p *Patient) *Patient {
	cp := *p
	return &cp
}

func matches(p *Patient, f ListFilter) bool {
	if id, ok := f.Scope.ProfileID(); ok && p.DoctorID != id {
		return false
	}
	if f.BirthDate != nil && (p.BirthDate == nil || !p.BirthDate.Equal(*f.BirthDate)) {
		return false
	}
	for _, term := range f.Terms {
		term = strings.ToLower(term)
		if !strings.Contains(strings.ToLower(p.FirstName), term) &&
			!strings.Contains(strings.ToLower(p.LastName), term) &&
			!strings.Contains(strings.ToLower(p.MedCondition), term) {
			return false
		}
	}
	return true
}

func birthUnix(p *Patient) int64 {
	if p.BirthDate == nil {
		return 0
	}
	return p.BirthDate.Unix()
}

// less orders like the database: explicit fields first, else the default
// order, always ending with id.
func less(a, b *Patient, ordering string) bool {
	var keys []func(a, b *Patient) int
	for _, field := range strings.Split(ordering, ",") {
		desc := strings.HasPrefix(field, "-")
		field = strings.TrimPrefix(field, "-")
		var cmp func(a, b *Patient) int
		switch field {
		case "birth_date":
			cmp = func(a, b *Patient) int { return compareInt(birthUnix(a), birthUnix(b)) }
		case "created":
			cmp = func(a, b *Patient) int { return compareInt(a.Created.UnixNano(), b.Created.UnixNano()) }
		default:
			continue
		}
		if desc {
			asc := cmp
			cmp = func(a, b *Patient) int { return -asc(a, b) }
		}
		keys = append(keys, cmp)
	}
	if len(keys) == 0 {
		keys = []func(a, b *Patient) int{
			func(a, b *Patient) int { return compareInt(a.Updated.UnixNano(), b.Updated.UnixNano()) },
			func(a, b *Patient) int { return strings.Compare(a.FirstName, b.FirstName) },
			func(a, b *Patient) int { return strings.Compare(a.LastName, b.LastName) },
		}
	}
	for _, cmp := range keys {
		if c := cmp(a, b); c != 0 {
			return c < 0
		}
	}
	return a.ID < b.ID
}

func compareInt(a, b int64) int {
	switch {
	case a < b:
		return -1
	case a > b:
		return 1
	}
	return 0
}

func (m *mockRepo) List(_ context.Context, f ListFilter) ([]*Patient, int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var all []*Patient
	for _, p := range m.patients {
		if matches(p, f) {
			all = append(all, clone(p))
		}
	}
	sort.Slice(all, func(i, j int) bool { return less(all[i], all[j], f.Ordering) })

	total := len(all)
	if f.Offset >= total {
		return nil, total, nil
	}
	end := f.Offset + f.Limit
	if end > total {
		end = total
	}
	return all[f.Offset:end], total, nil
}

func (m *mockRepo) Get(_ context.Context, id int64, scope access.Scope, lock db.Lock) (*Patient, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.locks = append(m.locks, lock)
	p, ok := m.patients[id]
	if !ok || !scope.Permits(p.DoctorID) {
		return nil, apierr.ErrNotFound
	}
	return clone(p), nil
}

func (m *mockRepo) Create(_ context.Context, p *Patient) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	now := time.Now()
	p.ID = m.nextID
	p.Created, p.Updated = now, now
	m.nextID++
	m.patients[p.ID] = clone(p)
	return nil
}

func (m *mockRepo) Update(_ context.Context, p *Patient) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	cur, ok := m.patients[p.ID]
	if !ok {
		return apierr.ErrNotFound
	}
	updated := time.Now()
	if floor := cur.Updated.Add(time.Microsecond); updated.Before(floor) {
		updated = floor
	}
	p.Created = cur.Created
	p.Updated = updated
	m.patients[p.ID] = clone(p)
	return nil
}

func (m *mockRepo) Delete(_ context.Context, id int64, scope access.Scope) ([]string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	p, ok := m.patients[id]
	if !ok || !scope.Permits(p.DoctorID) {
		return nil, apierr.ErrNotFound
	}
	files := m.files[id]
	delete(m.patients, id)
	delete(m.files, id)
	return files, nil
}

// mockFiles records deleted file keys.
type mockFiles struct {
	deleted []string
}

func (f *mockFiles) Delete(_ context.Context, key string) error {
	f.deleted = append(f.deleted, key)
	return nil
}

type mockDoctors struct {
	profiles map[int64]*profiles.Profile
	locks    []db.Lock
}

func newMockDoctors(ids ...int64) *mockDoctors {
	d := &mockDoctors{profiles: make(map[int64]*profiles.Profile)}
	for _, id := range ids {
		d.profiles[id] = &profiles.Profile{ID: id, UserID: id * 10, FirstName: "Doc", LastName: "Tor"}
	}
	return d
}

func (d *mockDoctors) GetByID(_ context.Context, id int64, lock db.Lock) (*profiles.Profile, error) {
	d.locks = append(d.locks, lock)
	p, ok := d.profiles[id]
	if !ok {
		return nil, apierr.ErrNotFound
	}
	return p, nil
}

func (d *mockDoctors) GetByIDs(_ context.Context, ids []int64) (map[int64]*profiles.Profile, error) {
	out := make(map[int64]*profiles.Profile, len(ids))
	for _, id := range ids {
		if p, ok := d.profiles[id]; ok {
			out[id] = p
		}
	}
	return out, nil
}
