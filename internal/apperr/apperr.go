package apperr

import (
	"errors"
	"fmt"
	"net/http"
)

// Kind classifies an AppError for HTTP mapping and caller decisions.
type Kind string

const (
	Validation        Kind = "validation"
	NotFound          Kind = "not_found"
	CredentialMissing Kind = "credential_missing"
	Gateway           Kind = "gateway"
	UnsupportedStatus Kind = "unsupported_status"
	Conflict          Kind = "conflict"
	Unauthorized      Kind = "unauthorized"
	Forbidden         Kind = "forbidden"
	Internal          Kind = "internal"
)

const genericMessage = "internal error"

// AppError carries a kind, a message safe to show to callers and an optional cause.
type AppError struct {
	Kind      Kind
	PublicMsg string
	Err       error
}

func (e *AppError) Error() string {
	if e.Err != nil {
		if e.PublicMsg != "" {
			return fmt.Sprintf("%s: %s: %v", e.Kind, e.PublicMsg, e.Err)
		}
		return fmt.Sprintf("%s: %v", e.Kind, e.Err)
	}
	if e.PublicMsg != "" {
		return fmt.Sprintf("%s: %s", e.Kind, e.PublicMsg)
	}
	return string(e.Kind)
}

func (e *AppError) Unwrap() error { return e.Err }

// Is lets errors.Is match on kind alone, e.g. errors.Is(err, apperr.ErrNotFound).
func (e *AppError) Is(target error) bool {
	t, ok := target.(*AppError)
	if !ok {
		return false
	}
	return t.PublicMsg == "" && t.Err == nil && t.Kind == e.Kind
}

// Sentinels for errors.Is checks.
var (
	ErrValidation        = &AppError{Kind: Validation}
	ErrNotFound          = &AppError{Kind: NotFound}
	ErrCredentialMissing = &AppError{Kind: CredentialMissing}
	ErrGateway           = &AppError{Kind: Gateway}
	ErrUnsupportedStatus = &AppError{Kind: UnsupportedStatus}
	ErrConflict          = &AppError{Kind: Conflict}
)

func ValidationErr(format string, args ...any) *AppError {
	return &AppError{Kind: Validation, PublicMsg: fmt.Sprintf(format, args...)}
}

func NotFoundErr(format string, args ...any) *AppError {
	return &AppError{Kind: NotFound, PublicMsg: fmt.Sprintf(format, args...)}
}

func CredentialMissingErr(companyID fmt.Stringer) *AppError {
	return &AppError{Kind: CredentialMissing, PublicMsg: fmt.Sprintf("gateway credentials missing for company %s", companyID)}
}

// GatewayErr wraps a failed call to the payment gateway.
func GatewayErr(err error) *AppError {
	return &AppError{Kind: Gateway, PublicMsg: "payment gateway request failed", Err: err}
}

func UnsupportedStatusErr(status string) *AppError {
	return &AppError{Kind: UnsupportedStatus, PublicMsg: fmt.Sprintf("status %q has no gateway counterpart", status)}
}

func ConflictErr(format string, args ...any) *AppError {
	return &AppError{Kind: Conflict, PublicMsg: fmt.Sprintf(format, args...)}
}

func UnauthorizedErr(msg string) *AppError {
	return &AppError{Kind: Unauthorized, PublicMsg: msg}
}

func ForbiddenErr(msg string) *AppError {
	return &AppError{Kind: Forbidden, PublicMsg: msg}
}

// Wrap marks an unexpected error as internal. The cause is never shown to callers.
func Wrap(err error) *AppError {
	if err == nil {
		return nil
	}
	if ae, ok := As(err); ok {
		return ae
	}
	return &AppError{Kind: Internal, Err: err}
}

func As(err error) (*AppError, bool) {
	var ae *AppError
	if errors.As(err, &ae) {
		return ae, true
	}
	return nil, false
}

func HTTPStatus(err error) int {
	ae, ok := As(err)
	if !ok {
		return http.StatusInternalServerError
	}
	switch ae.Kind {
	case Validation, UnsupportedStatus:
		return http.StatusBadRequest
	case NotFound:
		return http.StatusNotFound
	case CredentialMissing:
		return http.StatusUnprocessableEntity
	case Gateway:
		return http.StatusBadGateway
	case Conflict:
		return http.StatusConflict
	case Unauthorized:
		return http.StatusUnauthorized
	case Forbidden:
		return http.StatusForbidden
	default:
		return http.StatusInternalServerError
	}
}

func PublicMessage(err error) string {
	ae, ok := As(err)
	if !ok || ae.Kind == Internal || ae.PublicMsg == "" {
		return genericMessage
	}
	if ae.Kind == Gateway && ae.Err != nil {
		return fmt.Sprintf("%s: %v", ae.PublicMsg, ae.Err)
	}
	return ae.PublicMsg
}
