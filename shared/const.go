package shared

const (
	TenantID = "tenant_id"

	// Credential statuses
	CredentialStatusActive      = "active"
	CredentialStatusExpired     = "expired"
	CredentialStatusNeedsReauth = "needs_reauth"
	CredentialStatusRevoked     = "revoked"

	// Credential sources
	CredentialSourceUser   = "user"
	CredentialSourceShared = "shared"

	// Integration auth types
	AuthTypeNone   = "none"
	AuthTypeAPIKey = "api_key"
	AuthTypeOAuth2 = "oauth2"
	AuthTypeBasic  = "basic"

	// Validation directions
	DirectionInput  = "input"
	DirectionOutput = "output"

	// Drift severities
	SeverityInfo     = "info"
	SeverityWarning  = "warning"
	SeverityBreaking = "breaking"

	// Drift report statuses
	DriftStatusDetected     = "detected"
	DriftStatusAcknowledged = "acknowledged"
	DriftStatusResolved     = "resolved"
	DriftStatusDismissed    = "dismissed"

	// Drift sensitivities
	SensitivityLow    = "low"
	SensitivityMedium = "medium"
	SensitivityHigh   = "high"

	// Validation issue codes
	IssueMissingRequiredField = "missing_required_field"
	IssueTypeMismatch         = "type_mismatch"
	IssueUnknownField         = "unknown_field"
	IssueEnumValueChanged     = "enum_value_changed"
	IssueFormatChanged        = "format_changed"
)
