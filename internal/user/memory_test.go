// AngelaMos | 2026
// memory_test.go

package user

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/carterperez-dev/tfg-registry/internal/core"
)

type memoryRepo struct {
	mu    sync.Mutex
	users map[string]*User
	clock time.Time
}

func newMemoryRepo() *memoryRepo {
	return &memoryRepo{
		users: map[string]*User{},
		clock: time.Date(2026, time.January, 1, 0, 0, 0, 0, time.UTC),
	}
}

func (m *memoryRepo) live(id string) (*User, error) {
	u, ok := m.users[id]
	if !ok || u.DeletedAt != nil {
		return nil, fmt.Errorf("user %s: %w", id, core.ErrNotFound)
	}
	return u, nil
}

func (m *memoryRepo) emailTaken(email, except string) bool {
	for _, u := range m.users {
		if u.DeletedAt == nil && u.ID != except && strings.EqualFold(u.Email, email) {
			return true
		}
	}
	return false
}

func (m *memoryRepo) Create(_ context.Context, user *User) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.emailTaken(user.Email, "") {
		return fmt.Errorf("create user: %w", core.ErrDuplicateKey)
	}
	m.clock = m.clock.Add(time.Minute)
	user.CreatedAt, user.UpdatedAt = m.clock, m.clock
	c := *user
	m.users[user.ID] = &c
	return nil
}

func (m *memoryRepo) GetByID(_ context.Context, id string) (*User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	u, err := m.live(id)
	if err != nil {
		return nil, err
	}
	c := *u
	return &c, nil
}

func (m *memoryRepo) GetByEmail(_ context.Context, email string) (*User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, u := range m.users {
		if u.DeletedAt == nil && strings.EqualFold(u.Email, email) {
			c := *u
			return &c, nil
		}
	}
	return nil, fmt.Errorf("get user by email: %w", core.ErrNotFound)
}

func (m *memoryRepo) mutate(id string, fn func(*User)) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	u, err := m.live(id)
	if err != nil {
		return err
	}
	fn(u)
	return nil
}

func (m *memoryRepo) Update(_ context.Context, user *User) error {
	m.mu.Lock()
	taken := m.emailTaken(user.Email, user.ID)
	m.mu.Unlock()
	if taken {
		return fmt.Errorf("update user: %w", core.ErrDuplicateKey)
	}
	return m.mutate(user.ID, func(u *User) {
		u.Name, u.Email, u.PasswordHash = user.Name, user.Email, user.PasswordHash
	})
}

func (m *memoryRepo) UpdatePassword(_ context.Context, id, hash string) error {
	return m.mutate(id, func(u *User) {
		u.PasswordHash, u.VerificationCode, u.Attempts = hash, nil, 0
	})
}

func (m *memoryRepo) UpdateRole(_ context.Context, id, role string) error {
	return m.mutate(id, func(u *User) { u.Role = role })
}

func (m *memoryRepo) IncrementAttempts(_ context.Context, id string) (int, error) {
	var n int
	err := m.mutate(id, func(u *User) {
		u.Attempts++
		n = u.Attempts
	})
	return n, err
}

func (m *memoryRepo) ResetAttempts(_ context.Context, id string) error {
	return m.mutate(id, func(u *User) { u.Attempts = 0 })
}

func (m *memoryRepo) SetCode(_ context.Context, id string, codeHash *string) error {
	return m.mutate(id, func(u *User) { u.VerificationCode, u.Attempts = codeHash, 0 })
}

func (m *memoryRepo) ClearCode(_ context.Context, id string) error {
	return m.mutate(id, func(u *User) { u.VerificationCode = nil })
}

func (m *memoryRepo) MarkValidated(_ context.Context, id string) error {
	return m.mutate(id, func(u *User) {
		u.Validated, u.VerificationCode, u.Attempts = true, nil, 0
	})
}

func (m *memoryRepo) SoftDelete(_ context.Context, id string) error {
	return m.mutate(id, func(u *User) {
		now := m.clock
		u.DeletedAt = &now
	})
}

func (m *memoryRepo) List(_ context.Context, p ListUsersParams) ([]User, int, error) {
	p.Normalize()
	m.mu.Lock()
	defer m.mu.Unlock()

	var out []User
	for _, u := range m.users {
		if u.DeletedAt != nil ||
			p.Role != "" && u.Role != p.Role ||
			p.Validated != nil && u.Validated != *p.Validated {
			continue
		}
		if p.Search != "" &&
			!strings.Contains(strings.ToLower(u.Email), strings.ToLower(p.Search)) &&
			!strings.Contains(strings.ToLower(u.Name), strings.ToLower(p.Search)) {
			continue
		}
		out = append(out, *u)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })

	total := len(out)
	start := min(p.Offset(), total)
	end := min(start+p.PageSize, total)
	return out[start:end], total, nil
}

func (m *memoryRepo) Counts(_ context.Context, lockAt int) (Counts, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	var c Counts
	for _, u := range m.users {
		if u.DeletedAt != nil {
			continue
		}
		c.Total++
		if u.Validated {
			c.Validated++
		}
		if u.Attempts >= lockAt {
			c.Locked++
		}
		switch u.Role {
		case core.RoleAdmin:
			c.Admins++
		case core.RoleCoordinator:
			c.Coordinators++
		default:
			c.Users++
		}
	}
	return c, nil
}

// seed stores a validated account with the given role.
func (m *memoryRepo) seed(id, name, email, role string) {
	hash, err := core.HashPassword("seed password")
	if err != nil {
		panic(err)
	}
	if err := m.Create(context.Background(), &User{
		ID:           id,
		Name:         name,
		Email:        email,
		PasswordHash: hash,
		Role:         role,
		Validated:    true,
	}); err != nil {
		panic(err)
	}
}

const (
	adminID = "c0a1d2e3-f405-4617-8829-3a4b5c6d7e8f"
	anaID   = "8b0c6a9e-55a5-4d4f-9a8e-0d5c2b7f1a10"
	bobID   = "3f1f4a3e-9d0b-4c2e-8f51-7a6b2c9d0e21"
	ghostID = "5e6f7a8b-9c0d-4e1f-8a2b-3c4d5e6f7a8b"
)

func newSeededService() (*Service, *memoryRepo) {
	repo := newMemoryRepo()
	repo.seed(adminID, "Admin", "admin@example.com", core.RoleAdmin)
	repo.seed(anaID, "Ana Lopez", "ana@example.com", core.RoleUser)
	repo.seed(bobID, "Bob Ruiz", "bob@example.com", core.RoleCoordinator)
	return NewService(repo, nil), repo
}
