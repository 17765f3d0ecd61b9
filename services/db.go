package services

import (
	"errors"
	"net/http"
	"os"
	"strings"

	log "github.com/sirupsen/logrus"
	"gorm.io/gorm"

	"github.com/apibridge-labs/bridge_api/services/repositories"
	"github.com/apibridge-labs/bridge_api/shared"
)

// SqlService is the repository surface both database backends expose.
// Postgres is the production backend; sqlite serves local development.
type SqlService interface {
	Db() *gorm.DB
	Credentials() *repositories.CredentialRepository
	Integrations() *repositories.IntegrationRepository
	Drift() *repositories.DriftRepository
}

// DatabaseServiceID selects which backend the runtime registers and the other
// services look up.
func DatabaseServiceID() string {
	if os.Getenv("DB_DRIVER") == "sqlite" {
		return SQLITE_SVC
	}
	return POSTGRES_SVC
}

// mapStorageError translates raw gorm errors that escaped the service layer
// into the stable API error taxonomy. Errors that did not come from the
// storage layer map to nil and fall through to the caller's handling.
func mapStorageError(err error) *shared.AppError {
	if err == nil {
		return nil
	}

	var statusCode int
	var code, message string

	switch {
	case errors.Is(err, gorm.ErrRecordNotFound):
		statusCode = http.StatusNotFound
		code = shared.ErrCodeNotFound
		message = "Record not found"
	case errors.Is(err, gorm.ErrDuplicatedKey):
		statusCode = http.StatusConflict
		code = shared.ErrCodeConflict
		message = "Record already exists"
	case errors.Is(err, gorm.ErrForeignKeyViolated):
		statusCode = http.StatusBadRequest
		code = shared.ErrCodeForeignKeyViolation
		message = "Referenced record does not exist"
	case errors.Is(err, gorm.ErrInvalidTransaction):
		statusCode = http.StatusInternalServerError
		code = shared.ErrCodeInternal
		message = "Transaction failed"
	case strings.Contains(err.Error(), "duplicate key value"):
		statusCode = http.StatusConflict
		code = shared.ErrCodeConflict
		message = "Record already exists"
	default:
		return nil
	}

	logEntry := log.WithFields(log.Fields{
		"status_code": statusCode,
		"error_type":  code,
		"error":       err.Error(),
	})
	if statusCode >= 500 {
		logEntry.Error("Database error occurred")
	} else {
		logEntry.Warn("Database operation failed")
	}

	return shared.NewAppError(statusCode, code, message, err)
}
