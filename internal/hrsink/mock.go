package hrsink

import (
	"context"
	"fmt"
	"sync"
)

// MockClient permite tests sin llamar al sistema de RRHH real.
type MockClient struct {
	mu    sync.Mutex
	Calls []string
	Err   error
}

func (m *MockClient) record(call string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.Calls = append(m.Calls, call)
	return m.Err
}

func (m *MockClient) CreateEmployee(_ context.Context, req EmployeeCreate) error {
	return m.record(fmt.Sprintf("create:%d:%s", req.UserID, req.Email))
}

func (m *MockClient) UpdateEmail(_ context.Context, userID int64, email string) error {
	return m.record(fmt.Sprintf("email:%d:%s", userID, email))
}

func (m *MockClient) UpdateStatus(_ context.Context, userID int64, status EmployeeStatus) error {
	return m.record(fmt.Sprintf("status:%d:%s", userID, status))
}

// Recorded devuelve una copia de las llamadas registradas.
func (m *MockClient) Recorded() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]string(nil), m.Calls...)
}
