package apperror

import (
	"errors"
	"fmt"
	"net/http"
)

type ErrorCode string

const (
	ErrCodeUnauthenticated   ErrorCode = "UNAUTHENTICATED"
	ErrCodeUnauthorized      ErrorCode = "UNAUTHORIZED"
	ErrCodeNotFound          ErrorCode = "NOT_FOUND"
	ErrCodeInvalidTransition ErrorCode = "INVALID_TRANSITION"
	ErrCodeAlreadyDisputed   ErrorCode = "ALREADY_DISPUTED"
	ErrCodeDisputeClosed     ErrorCode = "DISPUTE_CLOSED"
	ErrCodeValidation        ErrorCode = "VALIDATION_ERROR"
	ErrCodeConflictRace      ErrorCode = "CONFLICT_RACE"
	ErrCodeBadRequest        ErrorCode = "BAD_REQUEST"
	ErrCodeInternal          ErrorCode = "INTERNAL_ERROR"
)

// AppError: доменная ошибка с кодом, HTTP статусом и контекстом для клиента.
type AppError struct {
	Code       ErrorCode
	Message    string
	HTTPStatus int
	Cause      error
	Details    map[string]string
}

func (e *AppError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s: %s (caused by: %v)", e.Code, e.Message, e.Cause)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

func (e *AppError) Unwrap() error {
	return e.Cause
}

// Is сравнивает ошибки по коду, чтобы errors.Is работал с шаблонными ошибками.
func (e *AppError) Is(target error) bool {
	var t *AppError
	if !errors.As(target, &t) {
		return false
	}
	return t.Code == e.Code
}

// WithDetail возвращает копию ошибки с дополнительным полем контекста.
func (e *AppError) WithDetail(key, value string) *AppError {
	details := make(map[string]string, len(e.Details)+1)
	for k, v := range e.Details {
		details[k] = v
	}
	details[key] = value

	cp := *e
	cp.Details = details
	return &cp
}

func New(code ErrorCode, message string) *AppError {
	return &AppError{
		Code:       code,
		Message:    message,
		HTTPStatus: codeToHTTPStatus(code),
	}
}

func Wrap(err error, code ErrorCode, message string) *AppError {
	return &AppError{
		Code:       code,
		Message:    message,
		HTTPStatus: codeToHTTPStatus(code),
		Cause:      err,
	}
}

// Internal оборачивает ошибку хранилища, не раскрывая её клиенту.
func Internal(err error, message string) *AppError {
	return Wrap(err, ErrCodeInternal, message)
}

// InvalidTransition описывает недопустимый переход с текущим и запрошенным статусом.
func InvalidTransition(current, requested, reason string) *AppError {
	return New(ErrCodeInvalidTransition, reason).
		WithDetail("current_status", current).
		WithDetail("requested_status", requested)
}

// Unauthorized сообщает, какая роль требуется для действия.
func Unauthorized(requiredRole, message string) *AppError {
	return New(ErrCodeUnauthorized, message).WithDetail("required_role", requiredRole)
}

func Validation(message string) *AppError {
	return New(ErrCodeValidation, message)
}

func codeToHTTPStatus(code ErrorCode) int {
	switch code {
	case ErrCodeNotFound:
		return http.StatusNotFound
	case ErrCodeUnauthenticated:
		return http.StatusUnauthorized
	case ErrCodeUnauthorized:
		return http.StatusForbidden
	case ErrCodeBadRequest, ErrCodeValidation:
		return http.StatusBadRequest
	case ErrCodeInvalidTransition, ErrCodeAlreadyDisputed, ErrCodeDisputeClosed, ErrCodeConflictRace:
		return http.StatusConflict
	default:
		return http.StatusInternalServerError
	}
}

// CodeOf возвращает код ошибки; всё, что не AppError, считается внутренней ошибкой.
func CodeOf(err error) ErrorCode {
	var appErr *AppError
	if errors.As(err, &appErr) {
		return appErr.Code
	}
	return ErrCodeInternal
}

func IsNotFound(err error) bool {
	return err != nil && CodeOf(err) == ErrCodeNotFound
}

func IsUnauthorized(err error) bool {
	return err != nil && CodeOf(err) == ErrCodeUnauthorized
}

func IsValidation(err error) bool {
	return err != nil && CodeOf(err) == ErrCodeValidation
}

func IsInvalidTransition(err error) bool {
	return err != nil && CodeOf(err) == ErrCodeInvalidTransition
}

func IsConflictRace(err error) bool {
	return err != nil && CodeOf(err) == ErrCodeConflictRace
}

var (
	ErrTransactionNotFound = New(ErrCodeNotFound, "сделка не найдена")
	ErrApplicationNotFound = New(ErrCodeNotFound, "заявка не найдена")
	ErrMilestoneNotFound   = New(ErrCodeNotFound, "этап не найден")
	ErrDisputeNotFound     = New(ErrCodeNotFound, "спор не найден")
	ErrUnauthenticated     = New(ErrCodeUnauthenticated, "требуется авторизация")
	ErrAlreadyDisputed     = New(ErrCodeAlreadyDisputed, "по сделке уже открыт спор")
	ErrDisputeClosed       = New(ErrCodeDisputeClosed, "спор закрыт, изменения невозможны")
	ErrConflictRace        = New(ErrCodeConflictRace, "данные изменены параллельным запросом, повторите попытку")
)
