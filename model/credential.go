package model

import "time"

// Credential is the shared, tenant/integration-scoped credential attached to
// outbound calls when no end-user credential applies. Data is stored sealed
// and only ever leaves the repository decrypted.
type Credential struct {
	ID             string     `json:"id" gorm:"primaryKey;type:text;not null"`
	TenantID       string     `json:"tenant_id" gorm:"index;not null;size:64"`
	IntegrationID  string     `json:"integration_id" gorm:"index;not null"`
	ConnectionID   string     `json:"connection_id" gorm:"index;not null"`
	CredentialType string     `json:"credential_type" gorm:"not null;size:32"`
	Data           []byte     `json:"-" gorm:"not null"`
	RefreshToken   []byte     `json:"-"`
	ExpiresAt      *time.Time `json:"expires_at,omitempty"`
	Scopes         string     `json:"scopes,omitempty" gorm:"size:1024"`
	Status         string     `json:"status" gorm:"not null;default:active;size:32;index"`
	CreatedAt      time.Time  `json:"created_at" gorm:"not null"`
	UpdatedAt      time.Time  `json:"updated_at" gorm:"not null"`
}

// UserCredential is an end-user-scoped credential tied to a connection,
// preferred over the shared credential on user-delegated invocations.
type UserCredential struct {
	ID             string     `json:"id" gorm:"primaryKey;type:text;not null"`
	ConnectionID   string     `json:"connection_id" gorm:"index:idx_user_cred,unique;not null"`
	AppUserID      string     `json:"app_user_id" gorm:"index:idx_user_cred,unique;not null"`
	CredentialType string     `json:"credential_type" gorm:"not null;size:32"`
	Data           []byte     `json:"-" gorm:"not null"`
	RefreshToken   []byte     `json:"-"`
	ExpiresAt      *time.Time `json:"expires_at,omitempty"`
	Scopes         string     `json:"scopes,omitempty" gorm:"size:1024"`
	Status         string     `json:"status" gorm:"not null;default:active;size:32;index"`
	CreatedAt      time.Time  `json:"created_at" gorm:"not null"`
	UpdatedAt      time.Time  `json:"updated_at" gorm:"not null"`
}

// AppUser maps an external app's end-user identity onto a stable internal id.
type AppUser struct {
	ID         string    `json:"id" gorm:"primaryKey;type:text;not null"`
	AppID      string    `json:"app_id" gorm:"index:idx_app_user,unique;not null"`
	ExternalID string    `json:"external_id" gorm:"index:idx_app_user,unique;not null;size:255"`
	CreatedAt  time.Time `json:"created_at" gorm:"not null"`
	UpdatedAt  time.Time `json:"updated_at" gorm:"not null"`
}
