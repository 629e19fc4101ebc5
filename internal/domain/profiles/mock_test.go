package profiles

import (
	"context"
	"sort"
	"sync"

	"github.com/rs/zerolog"

	"github.com/medrec/medrec/internal/platform/apierr"
	"github.com/medrec/medrec/internal/platform/db"
)

type mockRepo struct {
	mu       sync.Mutex
	profiles map[int64]*Profile
	nextID   int64
}

func newMockRepo() *mockRepo {
	return &mockRepo{profiles: make(map[int64]*Profile), nextID: 1}
}

func clone(p *Profile) *Profile {
	cp := *p
	return &cp
}

// seed adds a profile for a user with the given names.
func (m *mockRepo) seed(userID int64, first, last string) *Profile {
	m.mu.Lock()
	defer m.mu.Unlock()
	p := &Profile{ID: m.nextID, UserID: userID, FirstName: first, LastName: last}
	m.nextID++
	m.profiles[p.ID] = p
	return clone(p)
}

func (m *mockRepo) Create(_ context.Context, userID int64) (*Profile, error) {
	return m.seed(userID, "", ""), nil
}

func (m *mockRepo) GetByID(_ context.Context, id int64, _ db.Lock) (*Profile, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	p, ok := m.profiles[id]
	if !ok {
		return nil, apierr.ErrNotFound
	}
	return clone(p), nil
}

func (m *mockRepo) GetByUserID(_ context.Context, userID int64) (*Profile, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, p := range m.profiles {
		if p.UserID == userID {
			return clone(p), nil
		}
	}
	return nil, apierr.ErrNotFound
}

func (m *mockRepo) GetByIDs(_ context.Context, ids []int64) (map[int64]*Profile, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make(map[int64]*Profile)
	for _, id := range ids {
		if p, ok := m.profiles[id]; ok {
			out[id] = clone(p)
		}
	}
	return out, nil
}

func (m *mockRepo) List(_ context.Context, limit, offset int) ([]*Profile, int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var all []*Profile
	for _, p := range m.profiles {
		all = append(all, clone(p))
	}
	sort.Slice(all, func(i, j int) bool {
		if all[i].FirstName != all[j].FirstName {
			return all[i].FirstName < all[j].FirstName
		}
		if all[i].LastName != all[j].LastName {
			return all[i].LastName < all[j].LastName
		}
		return all[i].ID < all[j].ID
	})
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

func (m *mockRepo) Update(_ context.Context, p *Profile) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	cur, ok := m.profiles[p.ID]
	if !ok {
		return apierr.ErrNotFound
	}
	if p.CompanyName != nil {
		for id, other := range m.profiles {
			if id != p.ID && other.CompanyName != nil && *other.CompanyName == *p.CompanyName {
				return apierr.Field("company_name", msgCompanyNameTaken)
			}
		}
	}
	cur.CompanyName = p.CompanyName
	cur.BirthDate = p.BirthDate
	return nil
}

func nopLogger() zerolog.Logger { return zerolog.Nop() }
