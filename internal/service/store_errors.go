package service

import (
	"errors"
	"strings"

	"identity-auth/internal/repository"
)

// fromStore traduce errores de repositorio a la taxonomía del servicio. Los
// *Error ya tipados pasan sin cambios.
func fromStore(err error) error {
	if err == nil {
		return nil
	}
	var svcErr *Error
	if errors.As(err, &svcErr) {
		return svcErr
	}
	switch {
	case errors.Is(err, repository.ErrConflict):
		msg := err.Error()
		switch {
		case strings.Contains(msg, "username"):
			return &Error{Kind: KindBadRequest, Message: MsgUsernameTaken, Err: err}
		case strings.Contains(msg, "email"):
			return &Error{Kind: KindBadRequest, Message: MsgEmailTaken, Err: err}
		default:
			return &Error{Kind: KindBadRequest, Message: "Resource already exists", Err: err}
		}
	case errors.Is(err, repository.ErrNotFound):
		return &Error{Kind: KindNotFound, Message: MsgUserNotFound, Err: err}
	default:
		return Internal(err)
	}
}

func isNotFound(err error) bool {
	return errors.Is(err, repository.ErrNotFound)
}

func ignoreNotFound(err error) error {
	if isNotFound(err) {
		return nil
	}
	return err
}
