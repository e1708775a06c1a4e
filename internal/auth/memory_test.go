// AngelaMos | 2026
// memory_test.go

package auth

import (
	"context"
	"crypto/ecdsa"
	"crypto/elliptic"
	"crypto/rand"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/carterperez-dev/tfg-registry/internal/config"
	"github.com/carterperez-dev/tfg-registry/internal/core"
	"github.com/carterperez-dev/tfg-registry/internal/mail"
)

type memoryUsers struct {
	mu    sync.Mutex
	users map[string]*UserInfo
}

func newMemoryUsers() *memoryUsers {
	return &memoryUsers{users: map[string]*UserInfo{}}
}

func (m *memoryUsers) get(id string) (*UserInfo, error) {
	u, ok := m.users[id]
	if !ok {
		return nil, core.E(core.CodeUserNotExists)
	}
	return u, nil
}

func (m *memoryUsers) snapshot(id string) UserInfo {
	m.mu.Lock()
	defer m.mu.Unlock()
	return *m.users[id]
}

func (m *memoryUsers) delete(id string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.users, id)
}

func (m *memoryUsers) update(id string, fn func(*UserInfo)) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	u, err := m.get(id)
	if err != nil {
		return err
	}
	fn(u)
	return nil
}

func (m *memoryUsers) GetByID(_ context.Context, id string) (*UserInfo, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	u, err := m.get(id)
	if err != nil {
		return nil, err
	}
	c := *u
	return &c, nil
}

func (m *memoryUsers) GetByEmail(_ context.Context, email string) (*UserInfo, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, u := range m.users {
		if strings.EqualFold(u.Email, strings.TrimSpace(email)) {
			c := *u
			return &c, nil
		}
	}
	return nil, core.E(core.CodeUserNotExists)
}

func (m *memoryUsers) Create(_ context.Context, a NewAccount) (*UserInfo, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, u := range m.users {
		if strings.EqualFold(u.Email, a.Email) {
			return nil, core.E(core.CodeEmailExists)
		}
	}
	u := &UserInfo{
		ID:           uuid.New().String(),
		Name:         a.Name,
		Email:        a.Email,
		PasswordHash: a.PasswordHash,
		Role:         core.RoleUser,
		CodeHash:     a.CodeHash,
	}
	m.users[u.ID] = u
	c := *u
	return &c, nil
}

func (m *memoryUsers) IncrementAttempts(_ context.Context, id string) (int, error) {
	var n int
	err := m.update(id, func(u *UserInfo) {
		u.Attempts++
		n = u.Attempts
	})
	return n, err
}

func (m *memoryUsers) ResetAttempts(_ context.Context, id string) error {
	return m.update(id, func(u *UserInfo) { u.Attempts = 0 })
}

func (m *memoryUsers) SetCode(_ context.Context, id string, codeHash *string) error {
	return m.update(id, func(u *UserInfo) {
		u.CodeHash = codeHash
		u.Attempts = 0
	})
}

func (m *memoryUsers) ClearCode(_ context.Context, id string) error {
	return m.update(id, func(u *UserInfo) { u.CodeHash = nil })
}

func (m *memoryUsers) MarkValidated(_ context.Context, id string) error {
	return m.update(id, func(u *UserInfo) {
		u.Validated = true
		u.CodeHash = nil
		u.Attempts = 0
	})
}

func (m *memoryUsers) UpdatePassword(_ context.Context, id, hash string) error {
	return m.update(id, func(u *UserInfo) {
		u.PasswordHash = hash
		u.CodeHash = nil
		u.Attempts = 0
	})
}

type memoryRevocations struct {
	mu      sync.Mutex
	revoked map[string]time.Duration
}

func (m *memoryRevocations) Revoke(_ context.Context, id string, ttl time.Duration) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.revoked == nil {
		m.revoked = map[string]time.Duration{}
	}
	m.revoked[id] = ttl
	return nil
}

func (m *memoryRevocations) IsRevoked(_ context.Context, id string) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	_, ok := m.revoked[id]
	return ok, nil
}

type mockSender struct {
	mock.Mock
}

func (m *mockSender) Send(ctx context.Context, msg mail.Message) error {
	return m.Called(ctx, msg).Error(0)
}

// lastCode pulls the six digit code out of the most recent mail body.
func (m *mockSender) lastCode(t *testing.T) string {
	t.Helper()
	require.NotEmpty(t, m.Calls)
	msg := m.Calls[len(m.Calls)-1].Arguments.Get(1).(mail.Message)
	for _, field := range strings.Fields(msg.Body) {
		field = strings.TrimSuffix(field, ".")
		if len(field) == 6 && strings.Trim(field, "0123456789") == "" {
			return field
		}
	}
	t.Fatalf("no code in mail body %q", msg.Body)
	return ""
}

func testJWTConfig() config.JWTConfig {
	return config.JWTConfig{
		AccessTokenExpire: time.Hour,
		Issuer:            "tfg-registry",
		Audience:          "tfg-registry-api",
	}
}

func newTestManager(t *testing.T) *JWTManager {
	t.Helper()
	key, err := ecdsa.GenerateKey(elliptic.P256(), rand.Reader)
	require.NoError(t, err)
	m, err := NewJWTManagerFromKey(key, testJWTConfig())
	require.NoError(t, err)
	return m
}

type fixture struct {
	svc         *Service
	users       *memoryUsers
	revocations *memoryRevocations
	mail        *mockSender
	tokens      *JWTManager
}

func newFixture(t *testing.T, opts ...func(*config.AuthConfig)) *fixture {
	t.Helper()

	cfg := config.AuthConfig{
		MaxLoginAttempts:  5,
		MaxCodeAttempts:   3,
		MinPasswordLength: 6,
	}
	for _, opt := range opts {
		opt(&cfg)
	}

	f := &fixture{
		users:       newMemoryUsers(),
		revocations: &memoryRevocations{},
		mail:        &mockSender{},
		tokens:      newTestManager(t),
	}
	f.mail.On("Send", mock.Anything, mock.Anything).Return(nil)

	f.svc = NewService(Deps{
		Users:       f.users,
		Tokens:      f.tokens,
		Revocations: f.revocations,
		Mail:        f.mail,
		Config:      cfg,
	})
	return f
}

const password = "correct horse"

// register creates an account and returns its session and validation code.
func (f *fixture) register(t *testing.T, email string) *Session {
	t.Helper()
	s, err := f.svc.Register(context.Background(), RegisterRequest{
		Name:     "Ana Lopez",
		Email:    email,
		Password: password,
	})
	require.NoError(t, err)
	return s
}

func (f *fixture) registerValidated(t *testing.T, email string) *Session {
	t.Helper()
	s := f.register(t, email)
	require.NoError(t, f.svc.ValidateAccount(context.Background(), s.User.ID, s.Code))
	return s
}
