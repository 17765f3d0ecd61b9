package dto

import "time"

// UserContext identifies the external app end-user a delegated invocation
// runs on behalf of. Absent on tenant-level invocations.
type UserContext struct {
	AppID          string `json:"app_id" validate:"required"`
	ExternalUserID string `json:"external_user_id" validate:"required"`
}

// PreflightRequest is the execution pipeline's single call before dispatching
// an outbound request: resolve the credential, check admission, record on allow.
type PreflightRequest struct {
	IntegrationID string       `json:"integration_id" validate:"required"`
	ConnectionID  string       `json:"connection_id"`
	UserContext   *UserContext `json:"user_context,omitempty"`
}

func (r PreflightRequest) Validate() error {
	return GetValidator().Struct(r)
}

// ResolvedCredential is the credential material attached to the outbound
// call, adapted into a single shape regardless of which fallback tier won.
type ResolvedCredential struct {
	CredentialType string                 `json:"credential_type"`
	Data           map[string]interface{} `json:"data"`
	RefreshToken   string                 `json:"refresh_token,omitempty"`
	ExpiresAt      *time.Time             `json:"expires_at,omitempty"`
	Scopes         []string               `json:"scopes,omitempty"`
	Source         string                 `json:"source"`
}

type PreflightResponse struct {
	ConnectionID string              `json:"connection_id"`
	Credential   *ResolvedCredential `json:"credential,omitempty"`
	RateLimit    RateLimitDecision   `json:"rate_limit"`
}
