package http

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"net/netip"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"

	"identity-auth/internal/domain"
	"identity-auth/internal/hrsink"
	"identity-auth/internal/repository"
	"identity-auth/internal/service"
)

var testSecret = base64.StdEncoding.EncodeToString([]byte(strings.Repeat("h", 32)))

type captureSender struct {
	mu    sync.Mutex
	codes map[string]string
}

func (s *captureSender) SendPasswordResetOTP(_ context.Context, to, code string, _ time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.codes == nil {
		s.codes = map[string]string{}
	}
	s.codes[to] = code
	return nil
}

func (s *captureSender) codeFor(mail string) string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.codes[mail]
}

type testServer struct {
	router   *gin.Engine
	internal *gin.Engine
	store    *repository.MemoryStore
	hasher   *service.BcryptHasher
	tokens   *service.JWTService
	sender   *captureSender
	hr       *hrsink.MockClient
	cache    service.StatusCache
}

func newTestServer(t *testing.T) *testServer {
	t.Helper()
	gin.SetMode(gin.TestMode)
	logger := zap.NewNop()

	tokens, err := service.NewJWTService(testSecret, time.Hour, 0, logger)
	if err != nil {
		t.Fatalf("jwt service: %v", err)
	}
	store := repository.NewMemoryStore()
	hasher := service.NewBcryptHasher(bcrypt.MinCost)
	cache := service.NewMemoryStatusCache(time.Hour)
	status := service.NewStatusWriter(cache, logger)
	hr := &hrsink.MockClient{}
	disp := hrsink.NewDispatcher(hr, time.Second, logger)
	sender := &captureSender{}

	authSvc := service.NewAuthService(logger, store, hasher, tokens, status, disp)
	userSvc := service.NewUserService(logger, store, status, disp)
	resetSvc := service.NewResetService(logger, store, hasher, sender, 5*time.Minute, false)

	router := NewRouter(
		logger,
		AuthenticationFilter(tokens, store.Users(), logger),
		NewAuthHandler(logger, authSvc, resetSvc),
		NewUserHandler(logger, userSvc),
		nil,
	)
	internal := NewInternalRouter(logger, NewInternalHandler(logger, userSvc), []netip.Prefix{
		netip.MustParsePrefix("127.0.0.0/8"),
		netip.MustParsePrefix("::1/128"),
	})

	return &testServer{
		router:   router,
		internal: internal,
		store:    store,
		hasher:   hasher,
		tokens:   tokens,
		sender:   sender,
		hr:       hr,
		cache:    cache,
	}
}

func (s *testServer) seedUser(t *testing.T, username, mail string, role domain.Role, enabled bool) domain.User {
	t.Helper()
	hash, err := s.hasher.Hash("password123")
	if err != nil {
		t.Fatalf("hash: %v", err)
	}
	user, err := s.store.Users().Save(context.Background(), domain.User{
		Username:     username,
		Email:        mail,
		PasswordHash: hash,
		Role:         role,
		Enabled:      enabled,
	})
	if err != nil {
		t.Fatalf("seed user: %v", err)
	}
	return user
}

func (s *testServer) tokenFor(t *testing.T, user domain.User) string {
	t.Helper()
	token, err := s.tokens.Issue(user.ID, user.Role)
	if err != nil {
		t.Fatalf("issue token: %v", err)
	}
	return token
}

func performRequest(r http.Handler, method, path string, body any, token string) *httptest.ResponseRecorder {
	var buf bytes.Buffer
	if body != nil {
		switch b := body.(type) {
		case string:
			buf.WriteString(b)
		default:
			_ = json.NewEncoder(&buf).Encode(b)
		}
	}
	req := httptest.NewRequest(method, path, &buf)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, req)
	return rec
}

type envelope struct {
	Success bool            `json:"success"`
	Message string          `json:"message"`
	Data    json.RawMessage `json:"data"`
}

func decodeEnvelope(t *testing.T, rec *httptest.ResponseRecorder) envelope {
	t.Helper()
	var env envelope
	if err := json.Unmarshal(rec.Body.Bytes(), &env); err != nil {
		t.Fatalf("decode response %q: %v", rec.Body.String(), err)
	}
	return env
}

func decodeData(t *testing.T, env envelope, out any) {
	t.Helper()
	if err := json.Unmarshal(env.Data, out); err != nil {
		t.Fatalf("decode data %q: %v", env.Data, err)
	}
}
