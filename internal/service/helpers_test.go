package service

import (
	"context"
	"encoding/base64"
	"errors"
	"fmt"
	"strings"
	"sync"
	"testing"
	"time"

	"go.uber.org/zap"

	"identity-auth/internal/domain"
	"identity-auth/internal/hrsink"
	"identity-auth/internal/repository"
)

var testSecret = base64.StdEncoding.EncodeToString([]byte(strings.Repeat("s", 32)))

// plainHasher evita el costo de bcrypt en tests de servicio.
type plainHasher struct{}

func (plainHasher) Hash(p string) (string, error) { return "hashed:" + p, nil }
func (plainHasher) Verify(p, v string) bool       { return v == "hashed:"+p }

type recordingCache struct {
	mu      sync.Mutex
	saves   []string
	deletes []int64
	err     error
}

func (c *recordingCache) Save(_ context.Context, userID int64, status domain.UserStatus) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.saves = append(c.saves, fmt.Sprintf("%d:%s", userID, status))
	return c.err
}

func (c *recordingCache) Delete(_ context.Context, userID int64) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.deletes = append(c.deletes, userID)
	return c.err
}

func (c *recordingCache) Get(context.Context, int64) (domain.UserStatus, bool, error) {
	return "", false, nil
}

func (c *recordingCache) savedCount() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.saves)
}

type captureSender struct {
	mu      sync.Mutex
	to      string
	code    string
	expires time.Time
	calls   int
	err     error
}

func (s *captureSender) SendPasswordResetOTP(_ context.Context, to, code string, expiresAt time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.to = to
	s.code = code
	s.expires = expiresAt
	s.calls++
	return s.err
}

// commitFailStore ejecuta fn y luego simula una falla de commit.
type commitFailStore struct {
	*repository.MemoryStore
}

func (s commitFailStore) WithTx(ctx context.Context, fn func(tx repository.Store) error) error {
	return s.MemoryStore.WithTx(ctx, func(tx repository.Store) error {
		if err := fn(tx); err != nil {
			return err
		}
		return errors.New("commit failed")
	})
}

type testEnv struct {
	store  *repository.MemoryStore
	cache  *recordingCache
	hr     *hrsink.MockClient
	status *StatusWriter
	disp   *hrsink.Dispatcher
	tokens *JWTService
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()
	tokens, err := NewJWTService(testSecret, time.Hour, 0, zap.NewNop())
	if err != nil {
		t.Fatalf("jwt service: %v", err)
	}
	cache := &recordingCache{}
	hr := &hrsink.MockClient{}
	return &testEnv{
		store:  repository.NewMemoryStore(),
		cache:  cache,
		hr:     hr,
		status: NewStatusWriter(cache, zap.NewNop()),
		disp:   hrsink.NewDispatcher(hr, time.Second, zap.NewNop()),
		tokens: tokens,
	}
}

func (e *testEnv) authService(store repository.Store) *AuthService {
	return NewAuthService(zap.NewNop(), store, plainHasher{}, e.tokens, e.status, e.disp)
}

func (e *testEnv) userService(store repository.Store) *UserService {
	return NewUserService(zap.NewNop(), store, e.status, e.disp)
}

func (e *testEnv) seedUser(t *testing.T, username, mail string, enabled bool) domain.User {
	t.Helper()
	user, err := e.store.Users().Save(context.Background(), domain.User{
		Username:     username,
		Email:        mail,
		PasswordHash: "hashed:password123",
		Role:         domain.RoleUser,
		Enabled:      enabled,
	})
	if err != nil {
		t.Fatalf("seed user: %v", err)
	}
	return user
}

func expectKind(t *testing.T, err error, kind Kind) *Error {
	t.Helper()
	var svcErr *Error
	if !errors.As(err, &svcErr) {
		t.Fatalf("expected *Error of kind %s, got %v", kind, err)
	}
	if svcErr.Kind != kind {
		t.Fatalf("expected kind %s, got %s (%s)", kind, svcErr.Kind, svcErr.Message)
	}
	return svcErr
}

func formatStatus(id int64, status domain.UserStatus) string {
	return fmt.Sprintf("%d:%s", id, status)
}
