package main

import (
	"bytes"
	"context"
	"encoding/base64"
	"strings"
	"testing"
	"time"

	"go.uber.org/zap"

	"identity-auth/internal/config"
	"identity-auth/internal/domain"
	"identity-auth/internal/hrsink"
	"identity-auth/internal/repository"
	"identity-auth/internal/service"
)

func testAuth(t *testing.T, store repository.Store, hr hrsink.Client) *service.AuthService {
	t.Helper()
	cfg := &config.Config{
		JWTSecret:       base64.StdEncoding.EncodeToString([]byte(strings.Repeat("a", 32))),
		JWTExpirationMs: time.Hour.Milliseconds(),
		HRSinkTimeoutMs: 1000,
	}
	auth, err := newAuthService(cfg, zap.NewNop(), store, hr)
	if err != nil {
		t.Fatalf("auth service: %v", err)
	}
	return auth
}

func TestCreateAdmin(t *testing.T) {
	store := repository.NewMemoryStore()
	hr := &hrsink.MockClient{}
	var out bytes.Buffer

	err := createAdmin(context.Background(), testAuth(t, store, hr), service.RegisterInput{
		Username: "root",
		Email:    "root@example.com",
		Password: "supersecret",
	}, &out)
	if err != nil {
		t.Fatalf("createAdmin: %v", err)
	}
	if !strings.Contains(out.String(), "admin created") {
		t.Fatalf("unexpected output %q", out.String())
	}

	user, err := store.Users().FindByHandle(context.Background(), "root")
	if err != nil {
		t.Fatalf("find admin: %v", err)
	}
	if user.Role != domain.RoleAdmin || !user.Enabled {
		t.Fatalf("expected enabled ADMIN, got %+v", user)
	}
	if len(hr.Recorded()) != 1 {
		t.Fatalf("expected one HR create call, got %v", hr.Recorded())
	}
}

func TestCreateAdmin_ReportsValidation(t *testing.T) {
	var out bytes.Buffer
	err := createAdmin(context.Background(), testAuth(t, repository.NewMemoryStore(), hrsink.NoopClient{}), service.RegisterInput{
		Username: "root",
		Email:    "not-an-email",
		Password: "short",
	}, &out)
	if err == nil {
		t.Fatalf("expected validation error")
	}
	if service.KindOf(err) != service.KindValidation {
		t.Fatalf("expected validation kind, got %v", err)
	}
	if !strings.Contains(out.String(), "email") {
		t.Fatalf("expected field messages, got %q", out.String())
	}
}

func TestCreateAdmin_DuplicateUsername(t *testing.T) {
	store := repository.NewMemoryStore()
	auth := testAuth(t, store, hrsink.NoopClient{})
	in := service.RegisterInput{Username: "root", Email: "root@example.com", Password: "supersecret"}

	if err := createAdmin(context.Background(), auth, in, &bytes.Buffer{}); err != nil {
		t.Fatalf("first create: %v", err)
	}
	in.Email = "other@example.com"
	err := createAdmin(context.Background(), auth, in, &bytes.Buffer{})
	if service.KindOf(err) != service.KindBadRequest {
		t.Fatalf("expected bad request, got %v", err)
	}
}
