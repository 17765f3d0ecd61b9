package repositories

import (
	"errors"
	"time"

	"gorm.io/gorm"

	"github.com/apibridge-labs/bridge_api/model"
	"github.com/apibridge-labs/bridge_api/shared"
)

type DriftRepository struct {
	BaseRepository
}

func NewDriftRepository(db *gorm.DB) *DriftRepository {
	return &DriftRepository{BaseRepository: NewBaseRepository(db)}
}

// FailurePattern is one aggregated validation-failure group, the analyzer's
// unit of work.
type FailurePattern struct {
	ActionID     string    `json:"action_id"`
	Direction    string    `json:"direction"`
	IssueCode    string    `json:"issue_code"`
	FieldPath    string    `json:"field_path"`
	ExpectedType string    `json:"expected_type"`
	ReceivedType string    `json:"received_type"`
	FailureCount int       `json:"failure_count"`
	LastSeenAt   time.Time `json:"last_seen_at"`
}

// FailurePatterns groups validation failures by (action, direction, issue,
// field path) within the time window, keeping only groups at or above the
// failure threshold.
func (r *DriftRepository) FailurePatterns(integrationID, tenantID string, since time.Time, minFailures int) ([]FailurePattern, error) {
	var patterns []FailurePattern
	err := r.db.Model(&model.ValidationFailure{}).
		Select("action_id, direction, issue_code, field_path, "+
			"MAX(expected_type) AS expected_type, MAX(received_type) AS received_type, "+
			"SUM(failure_count) AS failure_count, MAX(last_seen_at) AS last_seen_at").
		Where("integration_id = ? AND tenant_id = ? AND last_seen_at >= ?", integrationID, tenantID, since).
		Group("action_id, direction, issue_code, field_path").
		Having("SUM(failure_count) >= ?", minFailures).
		Order("action_id, direction, issue_code, field_path").
		Scan(&patterns).Error
	return patterns, err
}

// FindReportByFingerprint returns the report for the natural key, or nil.
func (r *DriftRepository) FindReportByFingerprint(integrationID, fingerprint string) (*model.DriftReport, error) {
	var report model.DriftReport
	err := r.db.Where("integration_id = ? AND fingerprint = ?", integrationID, fingerprint).
		First(&report).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &report, nil
}

func (r *DriftRepository) CreateReport(report *model.DriftReport) error {
	return r.db.Create(report).Error
}

func (r *DriftRepository) SaveReport(report *model.DriftReport) error {
	return r.db.Save(report).Error
}

func (r *DriftRepository) GetReport(reportID, tenantID string) (*model.DriftReport, error) {
	var report model.DriftReport
	err := r.db.Where("id = ? AND tenant_id = ?", reportID, tenantID).First(&report).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &report, nil
}

// ReportFilter narrows ListReports; zero values mean "no filter".
type ReportFilter struct {
	IntegrationID string
	Severity      string
	Status        string
	ActionID      string
	Cursor        string
	Limit         int
}

// ListReports returns a page ordered by last_detected_at DESC, id DESC. The
// cursor is the id of the last row of the previous page.
func (r *DriftRepository) ListReports(tenantID string, filter ReportFilter) ([]model.DriftReport, error) {
	q := r.db.Where("tenant_id = ?", tenantID)

	if filter.IntegrationID != "" {
		q = q.Where("integration_id = ?", filter.IntegrationID)
	}
	if filter.Severity != "" {
		q = q.Where("severity = ?", filter.Severity)
	}
	if filter.Status != "" {
		q = q.Where("status = ?", filter.Status)
	}
	if filter.ActionID != "" {
		q = q.Where("action_id = ?", filter.ActionID)
	}

	if filter.Cursor != "" {
		var anchor model.DriftReport
		err := r.db.Where("id = ? AND tenant_id = ?", filter.Cursor, tenantID).First(&anchor).Error
		if err != nil && !errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, err
		}
		if err == nil {
			q = q.Where("(last_detected_at < ?) OR (last_detected_at = ? AND id < ?)",
				anchor.LastDetectedAt, anchor.LastDetectedAt, anchor.ID)
		}
	}

	limit := filter.Limit
	if limit <= 0 {
		limit = 50
	}

	var reports []model.DriftReport
	err := q.Order("last_detected_at DESC, id DESC").Limit(limit).Find(&reports).Error
	return reports, err
}

type SeverityCount struct {
	Severity string `json:"severity"`
	Count    int64  `json:"count"`
}

// UnresolvedCounts groups non-terminal reports by severity, optionally scoped
// to one integration.
func (r *DriftRepository) UnresolvedCounts(tenantID, integrationID string) ([]SeverityCount, error) {
	q := r.db.Model(&model.DriftReport{}).
		Select("severity, COUNT(*) AS count").
		Where("tenant_id = ? AND status IN ?", tenantID,
			[]string{shared.DriftStatusDetected, shared.DriftStatusAcknowledged})

	if integrationID != "" {
		q = q.Where("integration_id = ?", integrationID)
	}

	var counts []SeverityCount
	err := q.Group("severity").Scan(&counts).Error
	return counts, err
}

// BulkResolveByAction terminal-resolves every non-terminal report tied to an
// action in one statement, returning the number of rows closed.
func (r *DriftRepository) BulkResolveByAction(tenantID, actionID string, now time.Time) (int64, error) {
	res := r.db.Model(&model.DriftReport{}).
		Where("tenant_id = ? AND action_id = ? AND status IN ?", tenantID, actionID,
			[]string{shared.DriftStatusDetected, shared.DriftStatusAcknowledged}).
		Updates(map[string]interface{}{
			"status":      shared.DriftStatusResolved,
			"resolved_at": now,
			"updated_at":  now,
		})
	return res.RowsAffected, res.Error
}

// ReportsForExport returns every report for a tenant, newest first.
func (r *DriftRepository) ReportsForExport(tenantID string) ([]model.DriftReport, error) {
	var reports []model.DriftReport
	err := r.db.Where("tenant_id = ?", tenantID).
		Order("last_detected_at DESC, id DESC").Find(&reports).Error
	return reports, err
}
