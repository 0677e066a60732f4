package hrsink

import "context"

// NoopClient descarta todas las llamadas; se usa con HR_SINK_ENABLED=false.
type NoopClient struct{}

func (NoopClient) CreateEmployee(context.Context, EmployeeCreate) error       { return nil }
func (NoopClient) UpdateEmail(context.Context, int64, string) error           { return nil }
func (NoopClient) UpdateStatus(context.Context, int64, EmployeeStatus) error { return nil }
