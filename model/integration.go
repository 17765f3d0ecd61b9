package model

import (
	"encoding/json"
	"time"
)

type Integration struct {
	ID       string `json:"id" gorm:"primaryKey;type:text;not null"`
	TenantID string `json:"tenant_id" gorm:"index;not null;size:64"`
	Name     string `json:"name" gorm:"not null;size:255"`
	BaseURL  string `json:"base_url" gorm:"size:512"`
	AuthType string `json:"auth_type" gorm:"not null;default:none;size:32"`

	// Metadata carries arbitrary per-integration settings, including the
	// optional rateLimits block consumed by the rate limiter.
	Metadata json.RawMessage `json:"metadata,omitempty" gorm:"type:jsonb"`

	// DriftConfig is the stored drift detection config blob. A missing or
	// malformed blob falls back to enabled/medium at read time.
	DriftConfig json.RawMessage `json:"drift_config,omitempty" gorm:"type:jsonb"`

	CreatedAt time.Time `json:"created_at" gorm:"not null"`
	UpdatedAt time.Time `json:"updated_at" gorm:"not null"`
}

type Connection struct {
	ID            string    `json:"id" gorm:"primaryKey;type:text;not null"`
	TenantID      string    `json:"tenant_id" gorm:"index;not null;size:64"`
	IntegrationID string    `json:"integration_id" gorm:"index;not null"`
	Name          string    `json:"name" gorm:"size:255"`
	IsDefault     bool      `json:"is_default" gorm:"default:false;not null"`
	CreatedAt     time.Time `json:"created_at" gorm:"not null"`
	UpdatedAt     time.Time `json:"updated_at" gorm:"not null"`
}
