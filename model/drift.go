package model

import "time"

// ValidationFailure rows are written by the validation layer as it observes
// schema violations on live traffic. This subsystem only reads them.
type ValidationFailure struct {
	ID            string    `json:"id" gorm:"primaryKey;type:text;not null"`
	TenantID      string    `json:"tenant_id" gorm:"index;not null;size:64"`
	IntegrationID string    `json:"integration_id" gorm:"index;not null"`
	ActionID      string    `json:"action_id" gorm:"index;not null"`
	Direction     string    `json:"direction" gorm:"not null;size:16"`
	IssueCode     string    `json:"issue_code" gorm:"not null;size:64"`
	FieldPath     string    `json:"field_path" gorm:"not null;size:512"`
	ExpectedType  string    `json:"expected_type" gorm:"size:64"`
	ReceivedType  string    `json:"received_type" gorm:"size:64"`
	FailureCount  int       `json:"failure_count" gorm:"default:0;not null"`
	FirstSeenAt   time.Time `json:"first_seen_at" gorm:"not null"`
	LastSeenAt    time.Time `json:"last_seen_at" gorm:"not null;index"`
}

// DriftReport is the durable record of a detected drift pattern, deduplicated
// by (integration_id, fingerprint). Terminal reports are never reopened.
type DriftReport struct {
	ID            string `json:"id" gorm:"primaryKey;type:text;not null"`
	TenantID      string `json:"tenant_id" gorm:"index;not null;size:64"`
	IntegrationID string `json:"integration_id" gorm:"uniqueIndex:idx_drift_fingerprint;not null"`
	Fingerprint   string `json:"fingerprint" gorm:"uniqueIndex:idx_drift_fingerprint;not null;size:64"`

	ActionID  string `json:"action_id" gorm:"index;not null"`
	Direction string `json:"direction" gorm:"not null;size:16"`
	IssueCode string `json:"issue_code" gorm:"not null;size:64"`
	FieldPath string `json:"field_path" gorm:"not null;size:512"`

	Severity     string `json:"severity" gorm:"not null;size:16;index"`
	Status       string `json:"status" gorm:"not null;default:detected;size:16;index"`
	ExpectedType string `json:"expected_type" gorm:"size:64"`
	CurrentType  string `json:"current_type" gorm:"size:64"`
	Description  string `json:"description" gorm:"type:text"`

	FailureCount int `json:"failure_count" gorm:"default:0;not null"`
	ScanCount    int `json:"scan_count" gorm:"default:0;not null"`

	FirstDetectedAt time.Time  `json:"first_detected_at" gorm:"not null"`
	LastDetectedAt  time.Time  `json:"last_detected_at" gorm:"not null;index"`
	AcknowledgedAt  *time.Time `json:"acknowledged_at,omitempty"`
	ResolvedAt      *time.Time `json:"resolved_at,omitempty"`

	CreatedAt time.Time `json:"created_at" gorm:"not null"`
	UpdatedAt time.Time `json:"updated_at" gorm:"not null"`
}
