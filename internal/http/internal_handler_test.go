package http

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"identity-auth/internal/domain"
)

func performInternal(srv *testServer, method, path, remote string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, path, nil)
	req.RemoteAddr = remote
	rec := httptest.NewRecorder()
	srv.internal.ServeHTTP(rec, req)
	return rec
}

func TestInternal_UpdateEmail(t *testing.T) {
	srv := newTestServer(t)
	user := srv.seedUser(t, "employee", "old@example.com", domain.RoleUser, true)
	srv.seedUser(t, "other", "taken@example.com", domain.RoleUser, true)

	rec := performInternal(srv, http.MethodPatch, "/api/internal/users/1/email?email=new@example.com", "127.0.0.1:5555")
	if rec.Code != http.StatusNoContent {
		t.Fatalf("expected 204, got %d (%s)", rec.Code, rec.Body.String())
	}
	got, err := srv.store.Users().FindByID(context.Background(), user.ID)
	if err != nil || got.Email != "new@example.com" {
		t.Fatalf("expected email updated, got %+v (%v)", got, err)
	}

	// misma dirección: idempotente
	rec = performInternal(srv, http.MethodPatch, "/api/internal/users/1/email?email=new@example.com", "127.0.0.1:5555")
	if rec.Code != http.StatusNoContent {
		t.Fatalf("expected idempotent 204, got %d", rec.Code)
	}

	rec = performInternal(srv, http.MethodPatch, "/api/internal/users/999/email?email=ghost@example.com", "127.0.0.1:5555")
	if rec.Code != http.StatusNoContent {
		t.Fatalf("expected 204 for unknown user, got %d", rec.Code)
	}

	rec = performInternal(srv, http.MethodPatch, "/api/internal/users/1/email?email=taken@example.com", "127.0.0.1:5555")
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 for taken email, got %d", rec.Code)
	}

	rec = performInternal(srv, http.MethodPatch, "/api/internal/users/1/email?email=not-an-email", "127.0.0.1:5555")
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 for invalid email, got %d", rec.Code)
	}

	if calls := srv.hr.Recorded(); len(calls) != 0 {
		t.Fatalf("internal updates must not call back into HR, got %v", calls)
	}
}

func TestInternal_UpdateStatus(t *testing.T) {
	srv := newTestServer(t)
	user := srv.seedUser(t, "employee", "employee@example.com", domain.RoleUser, true)

	rec := performInternal(srv, http.MethodPatch, "/api/internal/users/1/status?enabled=false", "127.0.0.1:5555")
	if rec.Code != http.StatusNoContent {
		t.Fatalf("expected 204, got %d (%s)", rec.Code, rec.Body.String())
	}
	got, _ := srv.store.Users().FindByID(context.Background(), user.ID)
	if got.Enabled {
		t.Fatalf("expected user disabled")
	}
	status, ok, err := srv.cache.Get(context.Background(), user.ID)
	if err != nil || !ok || status != domain.StatusDisabled {
		t.Fatalf("expected cached DISABLED, got %q ok=%v err=%v", status, ok, err)
	}

	rec = performInternal(srv, http.MethodPatch, "/api/internal/users/1/status?enabled=maybe", "127.0.0.1:5555")
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 for bad flag, got %d", rec.Code)
	}

	rec = performInternal(srv, http.MethodPatch, "/api/internal/users/999/status?enabled=true", "127.0.0.1:5555")
	if rec.Code != http.StatusNoContent {
		t.Fatalf("expected 204 for unknown user, got %d", rec.Code)
	}
	if _, ok, _ := srv.cache.Get(context.Background(), 999); ok {
		t.Fatalf("unknown user must not be cached")
	}

	if calls := srv.hr.Recorded(); len(calls) != 0 {
		t.Fatalf("internal updates must not call back into HR, got %v", calls)
	}
}

func TestInternal_RejectsUntrustedNetwork(t *testing.T) {
	srv := newTestServer(t)
	srv.seedUser(t, "employee", "employee@example.com", domain.RoleUser, true)

	rec := performInternal(srv, http.MethodPatch, "/api/internal/users/1/status?enabled=false", "203.0.113.7:4444")
	if rec.Code != http.StatusForbidden {
		t.Fatalf("expected 403, got %d", rec.Code)
	}
	got, _ := srv.store.Users().FindByID(context.Background(), 1)
	if !got.Enabled {
		t.Fatalf("rejected call must not change state")
	}

	rec = performInternal(srv, http.MethodPatch, "/api/internal/users/1/status?enabled=false", "[::1]:4444")
	if rec.Code != http.StatusNoContent {
		t.Fatalf("expected loopback v6 allowed, got %d", rec.Code)
	}
}

func TestInternal_NotMountedOnPublicRouter(t *testing.T) {
	srv := newTestServer(t)
	srv.seedUser(t, "employee", "employee@example.com", domain.RoleUser, true)

	rec := performRequest(srv.router, http.MethodPatch, "/api/internal/users/1/status?enabled=false", nil, "")
	if rec.Code != http.StatusNotFound {
		t.Fatalf("expected 404 on public router, got %d", rec.Code)
	}
}
