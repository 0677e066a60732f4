package hrsink

import (
	"context"
	"time"

	"go.uber.org/zap"

	"identity-auth/internal/domain"
)

// Dispatcher propaga cambios al sistema de RRHH después del commit local.
// Es best-effort: los errores se registran y nunca se devuelven.
type Dispatcher struct {
	client  Client
	logger  *zap.Logger
	timeout time.Duration
}

func NewDispatcher(client Client, timeout time.Duration, logger *zap.Logger) *Dispatcher {
	if client == nil {
		client = NoopClient{}
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	if timeout <= 0 {
		timeout = 3 * time.Second
	}
	return &Dispatcher{client: client, logger: logger, timeout: timeout}
}

// UserRegistered da de alta al empleado.
func (d *Dispatcher) UserRegistered(ctx context.Context, user domain.User, firstName, lastName string) {
	d.dispatch(ctx, "create_employee", user.ID, func(ctx context.Context) error {
		return d.client.CreateEmployee(ctx, EmployeeCreate{
			UserID:    user.ID,
			Email:     user.Email,
			FirstName: firstName,
			LastName:  lastName,
		})
	})
}

// EmailChanged sincroniza el nuevo email.
func (d *Dispatcher) EmailChanged(ctx context.Context, userID int64, email string) {
	d.dispatch(ctx, "update_email", userID, func(ctx context.Context) error {
		return d.client.UpdateEmail(ctx, userID, email)
	})
}

// StatusChanged sincroniza el estado habilitado/deshabilitado.
func (d *Dispatcher) StatusChanged(ctx context.Context, userID int64, enabled bool) {
	status := EmployeeActive
	if !enabled {
		status = EmployeeInactive
	}
	d.dispatch(ctx, "update_status", userID, func(ctx context.Context) error {
		return d.client.UpdateStatus(ctx, userID, status)
	})
}

func (d *Dispatcher) dispatch(ctx context.Context, op string, userID int64, call func(context.Context) error) {
	// la transacción local ya hizo commit: la cancelación del request no aplica
	callCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), d.timeout)
	defer cancel()

	if err := call(callCtx); err != nil {
		d.logger.Error("hr sink sync failed",
			zap.String("op", op),
			zap.Int64("user_id", userID),
			zap.String("request_id", domain.RequestIDFrom(ctx)),
			zap.Error(err),
		)
	}
}
