package errors

import (
	"errors"
	"net/http"
)

var (
	ErrNotFound         = errors.New("not found")
	ErrUnauthorized     = errors.New("unauthorized")
	ErrForbidden        = errors.New("forbidden")
	ErrBadRequest       = errors.New("bad request")
	ErrInternalServer   = errors.New("internal server error")
	ErrRoomNotFound     = errors.New("room not found")
	ErrMessageNotFound  = errors.New("message not found")
	ErrMemberNotFound   = errors.New("member not found")
	ErrInvalidToken     = errors.New("invalid token")
	ErrTokenExpired     = errors.New("token expired")
	ErrRateLimited      = errors.New("rate limit exceeded")
	ErrAlreadyMember    = errors.New("user already in this room")
	ErrNotMember        = errors.New("user doesn't belong in this room")
	ErrNoSystemMember   = errors.New("room has no system member")
	ErrMessageDeleted   = errors.New("message is deleted")
	ErrNotMessageAuthor = errors.New("only the author can change this message")
)

// Kind классифицирует ошибку для клиента (websocket код и HTTP статус)
type Kind string

const (
	KindAuthentication  Kind = "AUTHENTICATION"
	KindAuthorization   Kind = "AUTHORIZATION"
	KindConflict        Kind = "CONFLICT"
	KindNotFound        Kind = "NOT_FOUND"
	KindInvalidArgument Kind = "INVALID_ARGUMENT"
	KindRateLimited     Kind = "RATE_LIMITED"
	KindSystem          Kind = "SYSTEM"
)

type Error struct {
	Kind    Kind
	Message string
	Err     error
}

func (e *Error) Error() string {
	if e.Message != "" {
		return e.Message
	}
	if e.Err != nil {
		return e.Err.Error()
	}
	return string(e.Kind)
}

func (e *Error) Unwrap() error {
	return e.Err
}

func newError(kind Kind, err error, message string) *Error {
	return &Error{Kind: kind, Message: message, Err: err}
}

func Unauthenticated(err error, message string) *Error {
	return newError(KindAuthentication, err, message)
}

func Unauthorized(err error, message string) *Error {
	return newError(KindAuthorization, err, message)
}

func Conflict(err error, message string) *Error {
	return newError(KindConflict, err, message)
}

func NotFound(err error, message string) *Error {
	return newError(KindNotFound, err, message)
}

func Invalid(message string) *Error {
	return newError(KindInvalidArgument, ErrBadRequest, message)
}

func RateLimited() *Error {
	return newError(KindRateLimited, ErrRateLimited, ErrRateLimited.Error())
}

func System(err error, message string) *Error {
	return newError(KindSystem, err, message)
}

// KindOf возвращает Kind ошибки. Неизвестные ошибки считаются системными.
func KindOf(err error) Kind {
	if err == nil {
		return ""
	}
	var appErr *Error
	if errors.As(err, &appErr) {
		return appErr.Kind
	}
	switch {
	case errors.Is(err, ErrInvalidToken), errors.Is(err, ErrTokenExpired), errors.Is(err, ErrUnauthorized):
		return KindAuthentication
	case errors.Is(err, ErrForbidden), errors.Is(err, ErrNotMessageAuthor):
		return KindAuthorization
	case errors.Is(err, ErrAlreadyMember), errors.Is(err, ErrNotMember), errors.Is(err, ErrMessageDeleted):
		return KindConflict
	case errors.Is(err, ErrNotFound), errors.Is(err, ErrRoomNotFound),
		errors.Is(err, ErrMessageNotFound), errors.Is(err, ErrMemberNotFound):
		return KindNotFound
	case errors.Is(err, ErrBadRequest):
		return KindInvalidArgument
	case errors.Is(err, ErrRateLimited):
		return KindRateLimited
	default:
		return KindSystem
	}
}

type APIError struct {
	Message string `json:"error"`
	Code    int    `json:"code"`
}

func (e *APIError) Error() string {
	return e.Message
}

func NewAPIError(message string, code int) *APIError {
	return &APIError{
		Message: message,
		Code:    code,
	}
}

func HTTPStatusFromError(err error) int {
	switch KindOf(err) {
	case KindNotFound:
		return http.StatusNotFound
	case KindAuthentication:
		return http.StatusUnauthorized
	case KindAuthorization:
		return http.StatusForbidden
	case KindConflict:
		return http.StatusConflict
	case KindInvalidArgument:
		return http.StatusBadRequest
	case KindRateLimited:
		return http.StatusTooManyRequests
	default:
		return http.StatusInternalServerError
	}
}

// PublicMessage возвращает текст, который можно отдать клиенту.
// Детали системных ошибок наружу не уходят.
func PublicMessage(err error) string {
	if KindOf(err) == KindSystem {
		return "internal error"
	}
	return err.Error()
}
