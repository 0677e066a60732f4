package hrsink

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"

	"identity-auth/internal/domain"
)

type recordedRequest struct {
	method    string
	path      string
	query     string
	requestID string
	body      []byte
}

type recorder struct {
	mu   sync.Mutex
	reqs []recordedRequest
}

func (r *recorder) all() []recordedRequest {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]recordedRequest(nil), r.reqs...)
}

func newRecordingServer(t *testing.T, status int) (*httptest.Server, *recorder) {
	t.Helper()
	rec := &recorder{}
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		body, _ := io.ReadAll(r.Body)
		rec.mu.Lock()
		rec.reqs = append(rec.reqs, recordedRequest{
			method:    r.Method,
			path:      r.URL.Path,
			query:     r.URL.RawQuery,
			requestID: r.Header.Get("X-Request-ID"),
			body:      body,
		})
		rec.mu.Unlock()
		w.WriteHeader(status)
		_, _ = w.Write([]byte(`{"message":"nope"}`))
	}))
	t.Cleanup(srv.Close)
	return srv, rec
}

func TestHTTPClient_CreateEmployee(t *testing.T) {
	srv, rec := newRecordingServer(t, http.StatusCreated)
	client := NewHTTPClient(srv.URL+"/", time.Second, zap.NewNop())

	ctx := domain.WithRequestID(context.Background(), "req-1")
	err := client.CreateEmployee(ctx, EmployeeCreate{UserID: 7, Email: "a@example.com", FirstName: "Ana"})
	require.NoError(t, err)
	got := rec.all()
	require.Len(t, got, 1)

	req := got[0]
	assert.Equal(t, http.MethodPost, req.method)
	assert.Equal(t, "/api/internal/employees", req.path)
	assert.Equal(t, "req-1", req.requestID)

	var payload map[string]any
	require.NoError(t, json.Unmarshal(req.body, &payload))
	assert.Equal(t, float64(7), payload["userId"])
	assert.Equal(t, "a@example.com", payload["email"])
	assert.Equal(t, "Ana", payload["firstName"])
	assert.NotContains(t, payload, "lastName")
}

func TestHTTPClient_PatchCalls(t *testing.T) {
	srv, rec := newRecordingServer(t, http.StatusNoContent)
	client := NewHTTPClient(srv.URL, time.Second, nil)

	require.NoError(t, client.UpdateEmail(context.Background(), 3, "new+tag@example.com"))
	require.NoError(t, client.UpdateStatus(context.Background(), 3, EmployeeInactive))
	got := rec.all()
	require.Len(t, got, 2)

	assert.Equal(t, http.MethodPatch, got[0].method)
	assert.Equal(t, "/api/internal/employees/3/email", got[0].path)
	assert.Equal(t, "email=new%2Btag%40example.com", got[0].query)

	assert.Equal(t, "/api/internal/employees/3/status", got[1].path)
	assert.Equal(t, "status=INACTIVE", got[1].query)
}

func TestHTTPClient_ErrorStatus(t *testing.T) {
	srv, _ := newRecordingServer(t, http.StatusConflict)
	client := NewHTTPClient(srv.URL, time.Second, nil)

	err := client.UpdateStatus(context.Background(), 1, EmployeeActive)
	var statusErr *StatusError
	require.ErrorAs(t, err, &statusErr)
	assert.Equal(t, http.StatusConflict, statusErr.StatusCode)
	assert.Contains(t, statusErr.Body, "nope")
}

func TestHTTPClient_ErrorStatusIsLogged(t *testing.T) {
	srv, _ := newRecordingServer(t, http.StatusBadRequest)
	core, logs := observer.New(zap.WarnLevel)
	client := NewHTTPClient(srv.URL, time.Second, zap.New(core))

	ctx := domain.WithRequestID(context.Background(), "req-9")
	err := client.UpdateEmail(ctx, 4, "b@example.com")
	require.Error(t, err)

	entries := logs.FilterMessage("hr sink returned error status").All()
	require.Len(t, entries, 1)
	fields := entries[0].ContextMap()
	assert.Equal(t, int64(http.StatusBadRequest), fields["status"])
	assert.Equal(t, "/api/internal/employees/4/email", fields["path"])
	assert.Equal(t, "req-9", fields["request_id"])
	assert.Contains(t, fields["body"], "nope")
}

func TestHTTPClient_Timeout(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-r.Context().Done():
		case <-time.After(time.Second):
		}
	}))
	defer srv.Close()

	client := NewHTTPClient(srv.URL, 50*time.Millisecond, nil)
	err := client.UpdateEmail(context.Background(), 1, "a@example.com")
	require.Error(t, err)
}

func TestDispatcher_SwallowsErrors(t *testing.T) {
	mock := &MockClient{Err: errors.New("hr down")}
	d := NewDispatcher(mock, time.Second, zap.NewNop())

	d.UserRegistered(context.Background(), domain.User{ID: 1, Email: "a@example.com"}, "", "")
	d.EmailChanged(context.Background(), 1, "b@example.com")
	d.StatusChanged(context.Background(), 1, false)
	d.StatusChanged(context.Background(), 1, true)

	assert.Equal(t, []string{
		"create:1:a@example.com",
		"email:1:b@example.com",
		"status:1:INACTIVE",
		"status:1:ACTIVE",
	}, mock.Recorded())
}

func TestDispatcher_IgnoresCallerCancellation(t *testing.T) {
	srv, rec := newRecordingServer(t, http.StatusOK)
	d := NewDispatcher(NewHTTPClient(srv.URL, time.Second, nil), time.Second, nil)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	d.StatusChanged(ctx, 9, true)

	got := rec.all()
	require.Len(t, got, 1)
	assert.Equal(t, "status=ACTIVE", got[0].query)
}

func TestNewDispatcher_DefaultsToNoop(t *testing.T) {
	d := NewDispatcher(nil, 0, nil)
	d.EmailChanged(context.Background(), 1, "a@example.com")
}
