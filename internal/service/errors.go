package service

import (
	"errors"
	"fmt"
	"net/http"
)

// Kind clasifica los errores de negocio; el handler HTTP es el único que los
// traduce a códigos de estado.
type Kind string

const (
	KindValidation   Kind = "VALIDATION_FAILURE"
	KindBadRequest   Kind = "BAD_REQUEST"
	KindUnauthorized Kind = "UNAUTHORIZED"
	KindForbidden    Kind = "FORBIDDEN"
	KindNotFound     Kind = "NOT_FOUND"
	KindTooMany      Kind = "TOO_MANY_REQUESTS"
	KindExternal     Kind = "EXTERNAL_SERVICE_ERROR"
	KindInternal     Kind = "INTERNAL"
)

// Mensajes compartidos entre servicios y tests.
const (
	MsgInvalidCredentials = "Invalid username/email or password"
	MsgAccountDisabled    = "Account is disabled. Please contact administrator."
	MsgUsernameTaken      = "Username already exists"
	MsgEmailTaken         = "Email already exists"
	MsgInvalidOTP         = "Invalid or already used OTP"
	MsgExpiredOTP         = "OTP has expired"
	MsgUserNotFound       = "User not found"
	MsgInternal           = "An unexpected error occurred"
	MsgTooManyResets      = "Too many password reset requests. Please try again later."
)

// Error es el error tipado que devuelven los servicios.
type Error struct {
	Kind    Kind
	Message string
	// Fields se completa solo para KindValidation.
	Fields map[string]string
	// Status se usa solo para KindExternal.
	Status int
	Err    error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s: %v", e.Kind, e.Message, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Kind, e.Message)
}

func (e *Error) Unwrap() error { return e.Err }

// HTTPStatus traduce el kind a código HTTP.
func (e *Error) HTTPStatus() int {
	switch e.Kind {
	case KindValidation, KindBadRequest:
		return http.StatusBadRequest
	case KindUnauthorized:
		return http.StatusUnauthorized
	case KindForbidden:
		return http.StatusForbidden
	case KindNotFound:
		return http.StatusNotFound
	case KindTooMany:
		return http.StatusTooManyRequests
	case KindExternal:
		if e.Status >= 400 && e.Status <= 599 {
			return e.Status
		}
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}

func Validation(msg string, fields map[string]string) *Error {
	return &Error{Kind: KindValidation, Message: msg, Fields: fields}
}

func BadRequest(msg string) *Error { return &Error{Kind: KindBadRequest, Message: msg} }

func Unauthorized(msg string) *Error { return &Error{Kind: KindUnauthorized, Message: msg} }

func Forbidden(msg string) *Error { return &Error{Kind: KindForbidden, Message: msg} }

func NotFound(msg string) *Error { return &Error{Kind: KindNotFound, Message: msg} }

func TooMany(msg string) *Error { return &Error{Kind: KindTooMany, Message: msg} }

func External(status int, msg string, err error) *Error {
	return &Error{Kind: KindExternal, Message: msg, Status: status, Err: err}
}

// Internal envuelve una falla inesperada; el mensaje nunca expone err.
func Internal(err error) *Error {
	return &Error{Kind: KindInternal, Message: MsgInternal, Err: err}
}

// KindOf devuelve el kind de err, o KindInternal si no es un *Error.
func KindOf(err error) Kind {
	var svcErr *Error
	if errors.As(err, &svcErr) {
		return svcErr.Kind
	}
	return KindInternal
}
