package service

import (
	"context"
	"fmt"
	"strings"

	"go.uber.org/zap"

	"identity-auth/internal/domain"
	"identity-auth/internal/hrsink"
	"identity-auth/internal/repository"
)

// UserService coordina reglas de negocio para usuarios.
type UserService struct {
	logger *zap.Logger
	store  repository.Store
	status *StatusWriter
	hr     *hrsink.Dispatcher
}

func NewUserService(logger *zap.Logger, store repository.Store, status *StatusWriter, hr *hrsink.Dispatcher) *UserService {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &UserService{
		logger: logger,
		store:  store,
		status: status,
		hr:     hr,
	}
}

// UpdateInput aplica a la edición de admin y a la del propio usuario.
// Los campos vacíos se ignoran.
type UpdateInput struct {
	Username string
	Email    string
}

func (s *UserService) List(ctx context.Context, pageNo, pageSize int) (domain.Page[domain.User], error) {
	page, err := s.store.Users().ListPage(ctx, pageNo, pageSize)
	if err != nil {
		return domain.Page[domain.User]{}, Internal(err)
	}
	return page, nil
}

func (s *UserService) Get(ctx context.Context, id int64) (domain.User, error) {
	user, err := s.store.Users().FindByID(ctx, id)
	if err != nil {
		return domain.User{}, notFoundByID(err, id)
	}
	return user, nil
}

// Update es la edición de otro usuario por un ADMIN.
func (s *UserService) Update(ctx context.Context, id int64, in UpdateInput) (domain.User, error) {
	return s.update(ctx, id, in, func(err error) error { return notFoundByID(err, id) })
}

func (s *UserService) Delete(ctx context.Context, id int64) error {
	err := s.store.WithTx(ctx, func(tx repository.Store) error {
		if _, err := tx.Users().FindByID(ctx, id); err != nil {
			return notFoundByID(err, id)
		}
		return tx.Users().Delete(ctx, id)
	})
	if err != nil {
		return fromStore(err)
	}
	s.logger.Info("user deleted", zap.Int64("user_id", id))
	s.status.Remove(ctx, id)
	return nil
}

func (s *UserService) Enable(ctx context.Context, id int64) (domain.User, error) {
	return s.setEnabled(ctx, id, true)
}

func (s *UserService) Disable(ctx context.Context, id int64) (domain.User, error) {
	return s.setEnabled(ctx, id, false)
}

func (s *UserService) setEnabled(ctx context.Context, id int64, enabled bool) (domain.User, error) {
	var updated domain.User
	err := s.store.WithTx(ctx, func(tx repository.Store) error {
		user, err := tx.Users().FindByID(ctx, id)
		if err != nil {
			return notFoundByID(err, id)
		}
		user.Enabled = enabled
		updated, err = tx.Users().Save(ctx, user)
		return err
	})
	if err != nil {
		return domain.User{}, fromStore(err)
	}
	s.logger.Info("user status changed", zap.Int64("user_id", id), zap.Bool("enabled", enabled))
	s.status.Put(ctx, id, enabled)
	s.hr.StatusChanged(ctx, id, enabled)
	return updated, nil
}

// Me devuelve el usuario autenticado del contexto.
func (s *UserService) Me(ctx context.Context) (domain.User, error) {
	p, err := currentPrincipal(ctx)
	if err != nil {
		return domain.User{}, err
	}
	user, err := s.store.Users().FindByID(ctx, p.ID)
	if err != nil {
		return domain.User{}, currentNotFound(err)
	}
	return user, nil
}

// UpdateMe edita al usuario autenticado; PUT y PATCH comparten reglas.
func (s *UserService) UpdateMe(ctx context.Context, in UpdateInput) (domain.User, error) {
	p, err := currentPrincipal(ctx)
	if err != nil {
		return domain.User{}, err
	}
	return s.update(ctx, p.ID, in, currentNotFound)
}

func (s *UserService) update(ctx context.Context, id int64, in UpdateInput, onMissing func(error) error) (domain.User, error) {
	if fields := validateUpdate(in); len(fields) > 0 {
		return domain.User{}, Validation("Validation failed", fields)
	}

	var (
		updated      domain.User
		emailChanged bool
	)
	err := s.store.WithTx(ctx, func(tx repository.Store) error {
		users := tx.Users()
		user, err := users.FindByID(ctx, id)
		if err != nil {
			return onMissing(err)
		}
		if hasText(in.Username) && in.Username != user.Username {
			taken, err := users.ExistsByHandle(ctx, in.Username)
			if err != nil {
				return err
			}
			if taken {
				return BadRequest(MsgUsernameTaken)
			}
			user.Username = in.Username
		}
		if hasText(in.Email) && in.Email != user.Email {
			taken, err := users.ExistsByMail(ctx, in.Email)
			if err != nil {
				return err
			}
			if taken {
				return BadRequest(MsgEmailTaken)
			}
			if err := dropResetCodes(ctx, tx, user.Email); err != nil {
				return err
			}
			user.Email = in.Email
			emailChanged = true
		}
		updated, err = users.Save(ctx, user)
		return err
	})
	if err != nil {
		return domain.User{}, fromStore(err)
	}

	if emailChanged {
		s.hr.EmailChanged(ctx, updated.ID, updated.Email)
	}
	return updated, nil
}

// UpdateEmailInternal la invoca RRHH. Ids desconocidos no hacen nada.
func (s *UserService) UpdateEmailInternal(ctx context.Context, id int64, email string) error {
	if !validMail(email) {
		return Validation("Validation failed", map[string]string{"email": "Email must be valid"})
	}
	err := s.store.WithTx(ctx, func(tx repository.Store) error {
		user, err := tx.Users().FindByID(ctx, id)
		if err != nil {
			return ignoreNotFound(err)
		}
		if user.Email == email {
			return nil
		}
		owner, err := tx.Users().FindByMail(ctx, email)
		if err == nil && owner.ID != user.ID {
			return BadRequest(MsgEmailTaken)
		}
		if err = ignoreNotFound(err); err != nil {
			return err
		}
		if err := dropResetCodes(ctx, tx, user.Email); err != nil {
			return err
		}
		user.Email = email
		_, err = tx.Users().Save(ctx, user)
		return err
	})
	return fromStore(err)
}

// UpdateStatusInternal la invoca RRHH: actualiza la cache pero no vuelve a
// notificar a RRHH.
func (s *UserService) UpdateStatusInternal(ctx context.Context, id int64, enabled bool) error {
	found := false
	err := s.store.WithTx(ctx, func(tx repository.Store) error {
		user, err := tx.Users().FindByID(ctx, id)
		if err != nil {
			return ignoreNotFound(err)
		}
		found = true
		if user.Enabled == enabled {
			return nil
		}
		user.Enabled = enabled
		_, err = tx.Users().Save(ctx, user)
		return err
	})
	if err != nil {
		return fromStore(err)
	}
	if found {
		s.status.Put(ctx, id, enabled)
	}
	return nil
}

// dropResetCodes invalida los códigos emitidos para la dirección anterior: si
// esa dirección pasa a otra cuenta, no pueden restablecer su contraseña.
func dropResetCodes(ctx context.Context, tx repository.Store, oldMail string) error {
	codes := tx.ResetCodes()
	if err := codes.LockMail(ctx, oldMail); err != nil {
		return err
	}
	return codes.DeleteByMail(ctx, oldMail)
}

func currentPrincipal(ctx context.Context) (domain.Principal, error) {
	p, ok := domain.PrincipalFrom(ctx)
	if !ok {
		return domain.Principal{}, Unauthorized("No authenticated user found")
	}
	return p, nil
}

func notFoundByID(err error, id int64) error {
	if isNotFound(err) {
		return &Error{Kind: KindNotFound, Message: fmt.Sprintf("User not found with id: %d", id), Err: err}
	}
	return err
}

func currentNotFound(err error) error {
	if isNotFound(err) {
		return &Error{Kind: KindNotFound, Message: "Current user not found", Err: err}
	}
	return err
}

func validateUpdate(in UpdateInput) map[string]string {
	fields := map[string]string{}
	if hasText(in.Username) && !domain.ValidHandle(in.Username) {
		fields["username"] = "Username cannot contain '@'"
	}
	if hasText(in.Email) && !validMail(in.Email) {
		fields["email"] = "Email must be valid"
	}
	return fields
}

func hasText(s string) bool {
	return strings.TrimSpace(s) != ""
}
