package apperror

import (
	"errors"
	"fmt"
	"net/http"
)

type ErrorCode string

const (
	ErrCodeDuplicateAccount      ErrorCode = "DUPLICATE_ACCOUNT"
	ErrCodeWeakPassword          ErrorCode = "WEAK_PASSWORD"
	ErrCodeInvalidCredentials    ErrorCode = "INVALID_CREDENTIALS"
	ErrCodeInvalidCode           ErrorCode = "INVALID_CODE"
	ErrCodeNotFound              ErrorCode = "NOT_FOUND"
	ErrCodeMissingIDToken        ErrorCode = "MISSING_ID_TOKEN"
	ErrCodeInvalidIDToken        ErrorCode = "INVALID_ID_TOKEN"
	ErrCodeInvalidSession        ErrorCode = "INVALID_SESSION"
	ErrCodeInvalidOrExpiredToken ErrorCode = "INVALID_OR_EXPIRED_TOKEN"
	ErrCodeUnauthenticated       ErrorCode = "UNAUTHENTICATED"
	ErrCodeEmailNotVerified      ErrorCode = "EMAIL_NOT_VERIFIED"
	ErrCodeAlreadyVerified       ErrorCode = "ALREADY_VERIFIED"
	ErrCodeConflict              ErrorCode = "CONFLICT"
	ErrCodeValidation            ErrorCode = "VALIDATION_ERROR"
	ErrCodeRateLimited           ErrorCode = "RATE_LIMITED"
	ErrCodeInternal              ErrorCode = "INTERNAL_ERROR"
)

// AppError ошибка с кодом и HTTP статусом, которую можно отдать клиенту.
type AppError struct {
	Code       ErrorCode
	Message    string
	HTTPStatus int
	Cause      error
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

// Is сравнивает ошибки по коду, чтобы errors.Is работал с обёрнутыми копиями.
func (e *AppError) Is(target error) bool {
	var t *AppError
	if !errors.As(target, &t) {
		return false
	}
	return t.Code == e.Code
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

// Validation оборачивает сообщение валидатора входных данных.
func Validation(message string) *AppError {
	return New(ErrCodeValidation, message)
}

func codeToHTTPStatus(code ErrorCode) int {
	switch code {
	case ErrCodeNotFound:
		return http.StatusNotFound
	case ErrCodeInvalidCredentials, ErrCodeInvalidSession, ErrCodeUnauthenticated:
		return http.StatusUnauthorized
	case ErrCodeEmailNotVerified:
		return http.StatusForbidden
	case ErrCodeConflict:
		return http.StatusConflict
	case ErrCodeRateLimited:
		return http.StatusTooManyRequests
	case ErrCodeDuplicateAccount, ErrCodeWeakPassword, ErrCodeInvalidCode,
		ErrCodeMissingIDToken, ErrCodeInvalidIDToken, ErrCodeInvalidOrExpiredToken,
		ErrCodeAlreadyVerified, ErrCodeValidation:
		return http.StatusBadRequest
	default:
		return http.StatusInternalServerError
	}
}

// From достаёт AppError из цепочки; неизвестные ошибки становятся внутренними.
func From(err error) *AppError {
	var appErr *AppError
	if errors.As(err, &appErr) {
		return appErr
	}
	return Wrap(err, ErrCodeInternal, "internal server error")
}

func IsCode(err error, code ErrorCode) bool {
	var appErr *AppError
	return errors.As(err, &appErr) && appErr.Code == code
}

var (
	ErrDuplicateAccount      = New(ErrCodeDuplicateAccount, "Email already registered")
	ErrWeakPassword          = New(ErrCodeWeakPassword, "Password must be at least 8 characters")
	ErrInvalidCredentials    = New(ErrCodeInvalidCredentials, "Invalid email or password")
	ErrInvalidCode           = New(ErrCodeInvalidCode, "Invalid or expired verification code")
	ErrAccountNotFound       = New(ErrCodeNotFound, "User not found")
	ErrMissingIDToken        = New(ErrCodeMissingIDToken, "Missing id_token")
	ErrInvalidIDToken        = New(ErrCodeInvalidIDToken, "Invalid id_token")
	ErrInvalidSession        = New(ErrCodeInvalidSession, "Invalid session")
	ErrInvalidOrExpiredToken = New(ErrCodeInvalidOrExpiredToken, "Invalid or expired reset token")
	ErrUnauthenticated       = New(ErrCodeUnauthenticated, "Not authenticated")
	ErrEmailNotVerified      = New(ErrCodeEmailNotVerified, "Email not verified")
	ErrAlreadyVerified       = New(ErrCodeAlreadyVerified, "Email already verified")
	ErrUsernameTaken         = New(ErrCodeConflict, "Username already taken")
	ErrSessionNotFound       = New(ErrCodeNotFound, "Session not found")
)
