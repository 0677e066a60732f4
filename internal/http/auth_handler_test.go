package http

import (
	"context"
	"net/http"
	"strings"
	"testing"
	"time"

	"identity-auth/internal/domain"
)

func TestRegister_HappyPath(t *testing.T) {
	srv := newTestServer(t)

	rec := performRequest(srv.router, http.MethodPost, "/api/users/register", map[string]string{
		"username": "newuser",
		"email":    "newuser@example.com",
		"password": "password123",
	}, "")
	if rec.Code != http.StatusCreated {
		t.Fatalf("expected 201, got %d: %s", rec.Code, rec.Body.String())
	}
	env := decodeEnvelope(t, rec)
	if !env.Success || env.Message != "User registered successfully" {
		t.Fatalf("unexpected envelope %+v", env)
	}
	var user map[string]any
	decodeData(t, env, &user)
	if user["role"] != "USER" || user["enabled"] != true {
		t.Fatalf("unexpected user %v", user)
	}
	if _, leaked := user["password"]; leaked {
		t.Fatalf("password material must not be exposed")
	}
	if _, leaked := user["PasswordHash"]; leaked {
		t.Fatalf("password material must not be exposed")
	}

	status, ok, _ := srv.cache.Get(context.Background(), 1)
	if !ok || status != domain.StatusActive {
		t.Fatalf("expected ACTIVE cached, got %q %v", status, ok)
	}
	if calls := srv.hr.Recorded(); len(calls) != 1 {
		t.Fatalf("expected HR create call, got %v", calls)
	}
}

func TestRegister_DuplicateHandle(t *testing.T) {
	srv := newTestServer(t)
	srv.seedUser(t, "existinguser", "existing@example.com", domain.RoleUser, true)

	rec := performRequest(srv.router, http.MethodPost, "/api/users/register", map[string]string{
		"username": "existinguser",
		"email":    "newuser@example.com",
		"password": "password123",
	}, "")
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", rec.Code)
	}
	if env := decodeEnvelope(t, rec); env.Success || !strings.Contains(env.Message, "already exists") {
		t.Fatalf("unexpected envelope %+v", env)
	}
}

func TestRegister_ValidationErrors(t *testing.T) {
	srv := newTestServer(t)

	rec := performRequest(srv.router, http.MethodPost, "/api/users/register", map[string]string{
		"username": "has@sign",
		"email":    "not-an-email",
		"password": "short",
	}, "")
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", rec.Code)
	}
	env := decodeEnvelope(t, rec)
	if env.Message != "Validation failed" {
		t.Fatalf("unexpected message %q", env.Message)
	}
	var fields map[string]string
	decodeData(t, env, &fields)
	for _, f := range []string{"username", "email", "password"} {
		if fields[f] == "" {
			t.Fatalf("expected field error for %s, got %v", f, fields)
		}
	}

	rec = performRequest(srv.router, http.MethodPost, "/api/users/register", "{not json", "")
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 on malformed json, got %d", rec.Code)
	}
}

func TestLogin_HappyPath(t *testing.T) {
	srv := newTestServer(t)
	srv.seedUser(t, "testuser", "test@example.com", domain.RoleUser, true)

	rec := performRequest(srv.router, http.MethodPost, "/api/auth/login", map[string]string{
		"usernameOrEmail": "testuser",
		"password":        "password123",
	}, "")
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rec.Code, rec.Body.String())
	}
	env := decodeEnvelope(t, rec)
	var data struct {
		Token     string `json:"token"`
		TokenType string `json:"tokenType"`
	}
	decodeData(t, env, &data)
	if data.Token == "" || data.TokenType != "Bearer" {
		t.Fatalf("unexpected login data %+v", data)
	}
}

func TestLogin_Disabled(t *testing.T) {
	srv := newTestServer(t)
	srv.seedUser(t, "testuser", "test@example.com", domain.RoleUser, false)

	rec := performRequest(srv.router, http.MethodPost, "/api/auth/login", map[string]string{
		"usernameOrEmail": "testuser",
		"password":        "password123",
	}, "")
	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401, got %d", rec.Code)
	}
	if env := decodeEnvelope(t, rec); !strings.Contains(env.Message, "disabled") {
		t.Fatalf("expected message to mention disabled, got %q", env.Message)
	}
}

func TestLogin_BadCredentials(t *testing.T) {
	srv := newTestServer(t)
	srv.seedUser(t, "testuser", "test@example.com", domain.RoleUser, true)

	for _, body := range []map[string]string{
		{"usernameOrEmail": "testuser", "password": "wrong-password"},
		{"usernameOrEmail": "nobody", "password": "password123"},
	} {
		rec := performRequest(srv.router, http.MethodPost, "/api/auth/login", body, "")
		if rec.Code != http.StatusUnauthorized {
			t.Fatalf("expected 401 for %v, got %d", body, rec.Code)
		}
	}
}

func TestPasswordReset_FullCycle(t *testing.T) {
	srv := newTestServer(t)
	srv.seedUser(t, "testuser", "test@example.com", domain.RoleUser, true)

	rec := performRequest(srv.router, http.MethodPost, "/api/auth/forgot-password", map[string]string{"email": "test@example.com"}, "")
	if rec.Code != http.StatusOK {
		t.Fatalf("forgot: expected 200, got %d", rec.Code)
	}
	n, err := srv.store.ResetCodes().CountUnused(context.Background(), "test@example.com")
	if err != nil || n != 1 {
		t.Fatalf("expected one unused code, got %d (%v)", n, err)
	}
	code := srv.sender.codeFor("test@example.com")
	if len(code) != 6 {
		t.Fatalf("expected 6-digit code, got %q", code)
	}

	validate := map[string]string{"email": "test@example.com", "otpCode": code}
	rec = performRequest(srv.router, http.MethodPost, "/api/auth/validate-otp", validate, "")
	if rec.Code != http.StatusOK {
		t.Fatalf("validate: expected 200, got %d", rec.Code)
	}

	rec = performRequest(srv.router, http.MethodPost, "/api/auth/reset-password", map[string]string{
		"email":       "test@example.com",
		"otpCode":     code,
		"newPassword": "newPassword123",
	}, "")
	if rec.Code != http.StatusOK {
		t.Fatalf("reset: expected 200, got %d: %s", rec.Code, rec.Body.String())
	}

	rec = performRequest(srv.router, http.MethodPost, "/api/auth/validate-otp", validate, "")
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("validate after reset: expected 400, got %d", rec.Code)
	}

	rec = performRequest(srv.router, http.MethodPost, "/api/auth/login", map[string]string{
		"usernameOrEmail": "test@example.com",
		"password":        "newPassword123",
	}, "")
	if rec.Code != http.StatusOK {
		t.Fatalf("login with new password: expected 200, got %d", rec.Code)
	}
}

func TestForgotPassword_UnknownEmailLooksTheSame(t *testing.T) {
	srv := newTestServer(t)

	rec := performRequest(srv.router, http.MethodPost, "/api/auth/forgot-password", map[string]string{"email": "ghost@example.com"}, "")
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	if code := srv.sender.codeFor("ghost@example.com"); code != "" {
		t.Fatalf("expected no code sent")
	}
}

func TestValidateOTP_Expired(t *testing.T) {
	srv := newTestServer(t)
	srv.seedUser(t, "testuser", "test@example.com", domain.RoleUser, true)
	_, err := srv.store.ResetCodes().Insert(context.Background(), domain.ResetCode{
		Email:     "test@example.com",
		Code:      "123456",
		ExpiresAt: time.Now().Add(-10 * time.Minute),
	})
	if err != nil {
		t.Fatalf("insert code: %v", err)
	}

	rec := performRequest(srv.router, http.MethodPost, "/api/auth/validate-otp", map[string]string{
		"email":   "test@example.com",
		"otpCode": "123456",
	}, "")
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", rec.Code)
	}
	if env := decodeEnvelope(t, rec); env.Message != "OTP has expired" {
		t.Fatalf("unexpected message %q", env.Message)
	}
}

func TestValidateOTP_RejectsMalformedCode(t *testing.T) {
	srv := newTestServer(t)

	rec := performRequest(srv.router, http.MethodPost, "/api/auth/validate-otp", map[string]string{
		"email":   "test@example.com",
		"otpCode": "12ab",
	}, "")
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", rec.Code)
	}
	env := decodeEnvelope(t, rec)
	var fields map[string]string
	decodeData(t, env, &fields)
	if fields["otpCode"] == "" {
		t.Fatalf("expected otpCode field error, got %v", fields)
	}
}
