package services

import (
	"errors"
	"fmt"
	"net/http"
	"testing"

	"gorm.io/gorm"

	"github.com/apibridge-labs/bridge_api/shared"
)

func TestMapStorageError(t *testing.T) {
	tests := []struct {
		name       string
		err        error
		statusCode int
		code       string
	}{
		{"record not found", gorm.ErrRecordNotFound, http.StatusNotFound, shared.ErrCodeNotFound},
		{"wrapped record not found", fmt.Errorf("loading report: %w", gorm.ErrRecordNotFound), http.StatusNotFound, shared.ErrCodeNotFound},
		{"duplicated key", gorm.ErrDuplicatedKey, http.StatusConflict, shared.ErrCodeConflict},
		{"postgres unique violation text", errors.New(`ERROR: duplicate key value violates unique constraint "idx_drift_fingerprint"`), http.StatusConflict, shared.ErrCodeConflict},
		{"foreign key violated", gorm.ErrForeignKeyViolated, http.StatusBadRequest, shared.ErrCodeForeignKeyViolation},
		{"invalid transaction", gorm.ErrInvalidTransaction, http.StatusInternalServerError, shared.ErrCodeInternal},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			appErr := mapStorageError(tt.err)
			if appErr == nil {
				t.Fatal("expected a mapped error")
			}
			if appErr.StatusCode != tt.statusCode || appErr.Code != tt.code {
				t.Errorf("got status=%d code=%s, want status=%d code=%s",
					appErr.StatusCode, appErr.Code, tt.statusCode, tt.code)
			}
			if !errors.Is(appErr, tt.err) {
				t.Error("mapped error must wrap the original")
			}
		})
	}
}

func TestMapStorageErrorPassesThroughNonStorageErrors(t *testing.T) {
	if got := mapStorageError(nil); got != nil {
		t.Errorf("nil error must map to nil, got %v", got)
	}
	if got := mapStorageError(errors.New("timeout talking to upstream")); got != nil {
		t.Errorf("non-storage errors must map to nil, got %v", got)
	}
}
