package apperr

import (
	"errors"
	"net/http"
)

// Kind 错误分类，决定 HTTP 状态码
type Kind int

const (
	Internal Kind = iota
	Validation
	AuthRequired
	Forbidden
	NotFound
	Conflict
	InsufficientCredits
	Upstream
)

// Error 面向调用方的业务错误
// Title 对应响应里的 error 字段，Message 为可读提示
type Error struct {
	Kind    Kind
	Title   string
	Message string
	// Status 非 0 时覆盖 Kind 对应的状态码
	Status int
	Err    error
}

func New(kind Kind, title, message string) *Error {
	return &Error{Kind: kind, Title: title, Message: message}
}

func (e *Error) Error() string {
	if e.Err != nil {
		return e.Title + ": " + e.Err.Error()
	}
	return e.Title
}

func (e *Error) Unwrap() error {
	return e.Err
}

// WithStatus 返回指定状态码的副本
func (e *Error) WithStatus(status int) *Error {
	cp := *e
	cp.Status = status
	return &cp
}

// Is 副本与原哨兵错误视为同一个错误
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	if !ok {
		return false
	}
	return e.Kind == t.Kind && e.Title == t.Title
}

func (e *Error) HTTPStatus() int {
	if e.Status != 0 {
		return e.Status
	}
	return StatusOf(e.Kind)
}

func StatusOf(kind Kind) int {
	switch kind {
	case Validation:
		return http.StatusBadRequest
	case AuthRequired:
		return http.StatusUnauthorized
	case Forbidden:
		return http.StatusForbidden
	case NotFound:
		return http.StatusNotFound
	case Conflict:
		return http.StatusConflict
	case InsufficientCredits:
		return http.StatusPaymentRequired
	case Upstream:
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}

// Invalid 构造一次性的参数错误
func Invalid(message string) *Error {
	return New(Validation, "Invalid input", message)
}

// As 取出链上的 *Error
func As(err error) (*Error, bool) {
	var ae *Error
	if errors.As(err, &ae) {
		return ae, true
	}
	return nil, false
}
