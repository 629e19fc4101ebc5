package users

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/medrec/medrec/internal/domain/profiles"
	"github.com/medrec/medrec/internal/platform/apierr"
	"github.com/medrec/medrec/internal/platform/auth"
	"github.com/medrec/medrec/internal/platform/db"
)

type mockRepo struct {
	mu     sync.Mutex
	users  map[int64]*User
	nextID int64
}

func newMockRepo() *mockRepo {
	return &mockRepo{users: make(map[int64]*User), nextID: 1}
}

func clone(u *User) *User {
	cp := *u
	return &cp
}

func (m *mockRepo) usernameTaken(name string, except int64) bool {
	for _, u := range m.users {
		if u.Username == name && u.ID != except {
			return true
		}
	}
	return false
}

func (m *mockRepo) Create(_ context.Context, u *User) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.usernameTaken(u.Username, 0) {
		return apierr.Field("username", msgUsernameTaken)
	}
	u.ID = m.nextID
	u.DateJoined = time.Now()
	m.nextID++
	m.users[u.ID] = clone(u)
	return nil
}

func (m *mockRepo) GetByID(_ context.Context, id int64, _ db.Lock) (*User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	u, ok := m.users[id]
	if !ok {
		return nil, apierr.ErrNotFound
	}
	return clone(u), nil
}

func (m *mockRepo) GetByUsername(_ context.Context, username string) (*User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, u := range m.users {
		if u.Username == username {
			return clone(u), nil
		}
	}
	return nil, apierr.ErrNotFound
}

func (m *mockRepo) List(_ context.Context) ([]*User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]*User, 0, len(m.users))
	for _, u := range m.users {
		out = append(out, clone(u))
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (m *mockRepo) modify(id int64, fn func(u *User)) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	u, ok := m.users[id]
	if !ok {
		return apierr.ErrNotFound
	}
	fn(u)
	return nil
}

func (m *mockRepo) Update(_ context.Context, u *User) error {
	return m.modify(u.ID, func(cur *User) {
		cur.Email, cur.FirstName, cur.LastName = u.Email, u.FirstName, u.LastName
	})
}

func (m *mockRepo) SetPassword(_ context.Context, id int64, hash string) error {
	return m.modify(id, func(u *User) { u.PasswordHash = hash })
}

func (m *mockRepo) SetUsername(_ context.Context, id int64, username string) error {
	m.mu.Lock()
	taken := m.usernameTaken(username, id)
	m.mu.Unlock()
	if taken {
		return apierr.Field("new_username", msgUsernameTaken)
	}
	return m.modify(id, func(u *User) { u.Username = username })
}

func (m *mockRepo) TouchLastLogin(_ context.Context, id int64, at time.Time) error {
	return m.modify(id, func(u *User) { u.LastLogin = &at })
}

func (m *mockRepo) Delete(_ context.Context, id int64) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.users[id]; !ok {
		return apierr.ErrNotFound
	}
	delete(m.users, id)
	return nil
}

func (m *mockRepo) LoadPrincipal(_ context.Context, id int64) (*auth.Principal, bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	u, ok := m.users[id]
	if !ok {
		return nil, false, apierr.ErrNotFound
	}
	return &auth.Principal{UserID: u.ID, Username: u.Username, IsStaff: u.IsStaff, ProfileID: u.ID}, u.IsActive, nil
}

type mockProvisioner struct {
	mu      sync.Mutex
	created []int64
	err     error
}

func (p *mockProvisioner) Provision(_ context.Context, userID int64) (*profiles.Profile, error) {
	if p.err != nil {
		return nil, p.err
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	p.created = append(p.created, userID)
	return &profiles.Profile{ID: userID, UserID: userID}, nil
}
