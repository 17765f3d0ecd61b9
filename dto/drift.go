package dto

import "time"

// DriftConfig is the per-integration drift detection tuning. Stored as JSON
// on the integration row; absent or malformed blobs read as the defaults.
type DriftConfig struct {
	Enabled          bool     `json:"enabled"`
	Sensitivity      string   `json:"sensitivity"`
	IgnoreFieldPaths []string `json:"ignore_field_paths,omitempty"`
}

func DefaultDriftConfig() DriftConfig {
	return DriftConfig{
		Enabled:     true,
		Sensitivity: "medium",
	}
}

// UpdateDriftConfigRequest merges into the stored config; nil fields keep
// their current values.
type UpdateDriftConfigRequest struct {
	Enabled          *bool     `json:"enabled,omitempty"`
	Sensitivity      *string   `json:"sensitivity,omitempty" validate:"omitempty,oneof=low medium high"`
	IgnoreFieldPaths *[]string `json:"ignore_field_paths,omitempty"`
}

func (r UpdateDriftConfigRequest) Validate() error {
	return GetValidator().Struct(r)
}

type UpdateDriftStatusRequest struct {
	Status string `json:"status" validate:"required,oneof=acknowledged resolved dismissed"`
}

func (r UpdateDriftStatusRequest) Validate() error {
	return GetValidator().Struct(r)
}

// ListDriftReportsQuery filters the cursor-paginated report listing.
type ListDriftReportsQuery struct {
	IntegrationID string `query:"integration_id"`
	Severity      string `query:"severity" validate:"omitempty,oneof=info warning breaking"`
	Status        string `query:"status" validate:"omitempty,oneof=detected acknowledged resolved dismissed"`
	ActionID      string `query:"action_id"`
	Cursor        string `query:"cursor"`
	Limit         int    `query:"limit" validate:"omitempty,min=1,max=200"`
}

func (q ListDriftReportsQuery) Validate() error {
	return GetValidator().Struct(q)
}

type DriftReportResponse struct {
	ID              string     `json:"id"`
	IntegrationID   string     `json:"integration_id"`
	ActionID        string     `json:"action_id"`
	Direction       string     `json:"direction"`
	IssueCode       string     `json:"issue_code"`
	FieldPath       string     `json:"field_path"`
	Fingerprint     string     `json:"fingerprint"`
	Severity        string     `json:"severity"`
	Status          string     `json:"status"`
	ExpectedType    string     `json:"expected_type,omitempty"`
	CurrentType     string     `json:"current_type,omitempty"`
	Description     string     `json:"description"`
	FailureCount    int        `json:"failure_count"`
	ScanCount       int        `json:"scan_count"`
	FirstDetectedAt time.Time  `json:"first_detected_at"`
	LastDetectedAt  time.Time  `json:"last_detected_at"`
	AcknowledgedAt  *time.Time `json:"acknowledged_at,omitempty"`
	ResolvedAt      *time.Time `json:"resolved_at,omitempty"`
}

type DriftReportListResponse struct {
	Reports    []DriftReportResponse `json:"reports"`
	NextCursor string                `json:"next_cursor,omitempty"`
}

// DriftSummaryResponse counts unresolved (detected or acknowledged) reports
// grouped by severity.
type DriftSummaryResponse struct {
	IntegrationID string           `json:"integration_id,omitempty"`
	Total         int64            `json:"total"`
	BySeverity    map[string]int64 `json:"by_severity"`
}

// DriftScanResult is the outcome of analyzing a single integration.
type DriftScanResult struct {
	IntegrationID  string `json:"integration_id"`
	ReportsCreated int    `json:"reports_created"`
	ReportsUpdated int    `json:"reports_updated"`
	Skipped        bool   `json:"skipped,omitempty"`
}

// DriftBatchResult aggregates a full schema_drift run.
type DriftBatchResult struct {
	IntegrationsScanned int       `json:"integrations_scanned"`
	ReportsCreated      int       `json:"reports_created"`
	ReportsUpdated      int       `json:"reports_updated"`
	Errors              []string  `json:"errors,omitempty"`
	StartedAt           time.Time `json:"started_at"`
	FinishedAt          time.Time `json:"finished_at"`
}

type BulkResolveResponse struct {
	ActionID      string `json:"action_id"`
	ReportsClosed int64  `json:"reports_closed"`
}

type DriftExportResponse struct {
	ObjectKey   string `json:"object_key"`
	ReportCount int    `json:"report_count"`
}
