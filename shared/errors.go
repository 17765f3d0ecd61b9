package shared

import (
	"errors"
	"fmt"
	"net/http"
)

// Stable error codes surfaced through the API envelope.
const (
	ErrCodeCredentialsMissing     = "CREDENTIALS_MISSING"
	ErrCodeCredentialsExpired     = "CREDENTIALS_EXPIRED"
	ErrCodeDriftReportNotFound    = "DRIFT_REPORT_NOT_FOUND"
	ErrCodeInvalidDriftTransition = "INVALID_DRIFT_STATUS_TRANSITION"
	ErrCodeConnectionNotFound     = "CONNECTION_NOT_FOUND"
	ErrCodeScanAlreadyRunning     = "DRIFT_SCAN_ALREADY_RUNNING"
	ErrCodeBadRequest             = "BAD_REQUEST"
	ErrCodeNotFound               = "NOT_FOUND"
	ErrCodeConflict               = "CONFLICT"
	ErrCodeForeignKeyViolation    = "FOREIGN_KEY_VIOLATION"
	ErrCodeInternal               = "INTERNAL_ERROR"
)

type AppError struct {
	StatusCode int         `json:"-"`
	Code       string      `json:"code"`
	Message    string      `json:"message"`
	Data       interface{} `json:"data,omitempty"`
	cause      error
}

func (e *AppError) Error() string {
	if e.cause != nil {
		return fmt.Sprintf("%s: %s: %v", e.Code, e.Message, e.cause)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

func (e *AppError) Unwrap() error {
	return e.cause
}

func NewAppError(statusCode int, code, message string, cause error) *AppError {
	return &AppError{StatusCode: statusCode, Code: code, Message: message, cause: cause}
}

func NewBadRequestError(cause error, message string) *AppError {
	return NewAppError(http.StatusBadRequest, ErrCodeBadRequest, message, cause)
}

func NewNotFoundError(message string) *AppError {
	return NewAppError(http.StatusNotFound, ErrCodeNotFound, message, nil)
}

func NewInternalError(cause error) *AppError {
	return NewAppError(http.StatusInternalServerError, ErrCodeInternal, "Internal Server Error", cause)
}

// NewCredentialsMissingError is returned when the full fallback chain yields
// no credential at all.
func NewCredentialsMissingError(connectionID string) *AppError {
	return NewAppError(http.StatusUnprocessableEntity, ErrCodeCredentialsMissing,
		fmt.Sprintf("no usable credential found for connection %s", connectionID), nil)
}

// NewCredentialsExpiredError is returned when a credential was found but is
// inactive or past its expiry.
func NewCredentialsExpiredError(connectionID string) *AppError {
	return NewAppError(http.StatusUnprocessableEntity, ErrCodeCredentialsExpired,
		fmt.Sprintf("credential for connection %s is expired or inactive", connectionID), nil)
}

func NewDriftReportNotFoundError(reportID string) *AppError {
	return NewAppError(http.StatusNotFound, ErrCodeDriftReportNotFound,
		fmt.Sprintf("drift report %s not found", reportID), nil)
}

func NewInvalidDriftStatusTransitionError(from, to string) *AppError {
	return NewAppError(http.StatusBadRequest, ErrCodeInvalidDriftTransition,
		fmt.Sprintf("cannot transition drift report from %s to %s", from, to), nil)
}

func GetAppError(err error) (*AppError, bool) {
	var appErr *AppError
	if errors.As(err, &appErr) {
		return appErr, true
	}
	return nil, false
}

// IsErrorCode reports whether err carries the given stable code.
func IsErrorCode(err error, code string) bool {
	appErr, ok := GetAppError(err)
	return ok && appErr.Code == code
}
