// Package apperr carries the application error taxonomy and its HTTP mapping.
package apperr

import (
	"errors"
	"fmt"
	"net/http"
)

type Kind string

const (
	Invalid            Kind = "invalid"
	NotFound           Kind = "not_found"
	Unauthorized       Kind = "unauthorized"
	Conflict           Kind = "conflict"
	GatewayRejected    Kind = "gateway_rejected"
	GatewayUnavailable Kind = "gateway_unavailable"
	GenerationFailed   Kind = "generation_failed"
	Internal           Kind = "internal"
)

type AppError struct {
	Kind      Kind
	PublicMsg string            // safe to show to the caller
	Fields    map[string]string // per-field validation errors (optional)
	Err       error             // internal cause, for logs only
}

func (e *AppError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.Kind, e.Err)
	}
	if e.PublicMsg != "" {
		return fmt.Sprintf("%s: %s", e.Kind, e.PublicMsg)
	}
	return string(e.Kind)
}

func (e *AppError) Unwrap() error { return e.Err }

func InvalidErr(publicMsg string, fields map[string]string) *AppError {
	return &AppError{Kind: Invalid, PublicMsg: publicMsg, Fields: fields}
}

func NotFoundErr(publicMsg string) *AppError {
	return &AppError{Kind: NotFound, PublicMsg: publicMsg}
}

func UnauthorizedErr(publicMsg string) *AppError {
	return &AppError{Kind: Unauthorized, PublicMsg: publicMsg}
}

func ConflictErr(publicMsg string) *AppError {
	return &AppError{Kind: Conflict, PublicMsg: publicMsg}
}

func GatewayRejectedErr(publicMsg string, cause error) *AppError {
	return &AppError{Kind: GatewayRejected, PublicMsg: publicMsg, Err: cause}
}

func GatewayUnavailableErr(cause error) *AppError {
	return &AppError{Kind: GatewayUnavailable, PublicMsg: "Payment service is unavailable, please try again.", Err: cause}
}

func GenerationFailedErr(cause error) *AppError {
	return &AppError{Kind: GenerationFailed, PublicMsg: "Failed to generate an answer.", Err: cause}
}

// Wrap hides an internal error behind a generic public message.
func Wrap(err error) *AppError {
	if err == nil {
		return nil
	}
	return &AppError{Kind: Internal, PublicMsg: "Something went wrong.", Err: err}
}

func As(err error) (*AppError, bool) {
	var ae *AppError
	if errors.As(err, &ae) {
		return ae, true
	}
	return nil, false
}

func HTTPStatus(err error) int {
	if ae, ok := As(err); ok {
		switch ae.Kind {
		case Invalid:
			return http.StatusBadRequest
		case Unauthorized:
			return http.StatusUnauthorized
		case NotFound:
			return http.StatusNotFound
		case Conflict:
			return http.StatusConflict
		case GatewayRejected:
			return http.StatusBadRequest
		case GatewayUnavailable:
			return http.StatusBadGateway
		case GenerationFailed:
			return http.StatusBadGateway
		default:
			return http.StatusInternalServerError
		}
	}
	return http.StatusInternalServerError
}

func PublicMessage(err error) string {
	if ae, ok := As(err); ok && ae.PublicMsg != "" {
		return ae.PublicMsg
	}
	return "Something went wrong."
}
