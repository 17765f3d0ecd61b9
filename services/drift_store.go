package services

import (
	gocontext "context"
	"fmt"
	"time"

	"github.com/alphabatem/common/context"
	"github.com/bytedance/sonic"
	"github.com/google/uuid"
	log "github.com/sirupsen/logrus"

	"github.com/apibridge-labs/bridge_api/dto"
	"github.com/apibridge-labs/bridge_api/model"
	"github.com/apibridge-labs/bridge_api/services/repositories"
	"github.com/apibridge-labs/bridge_api/shared"
)

// DriftStoreService owns the drift report lifecycle: listing, tenant-verified
// reads, validated status transitions, summaries, bulk resolution, and the
// per-integration drift config boundary.
type DriftStoreService struct {
	context.DefaultService

	repo         *repositories.DriftRepository
	integrations *repositories.IntegrationRepository
	redisSvc     *RedisService

	now func() time.Time
}

const DRIFT_STORE_SVC = "drift_store_svc"

func (svc DriftStoreService) Id() string {
	return DRIFT_STORE_SVC
}

func (svc *DriftStoreService) Configure(ctx *context.Context) error {
	svc.now = time.Now
	return svc.DefaultService.Configure(ctx)
}

func (svc *DriftStoreService) Start() error {
	sqlSvc := svc.Service(DatabaseServiceID()).(SqlService)
	svc.repo = sqlSvc.Drift()
	svc.integrations = sqlSvc.Integrations()
	svc.redisSvc = svc.Service(REDIS_SVC).(*RedisService)
	return nil
}

// driftStatusTransitions is the strict allow-list; resolved and dismissed are
// terminal.
var driftStatusTransitions = map[string][]string{
	shared.DriftStatusDetected:     {shared.DriftStatusAcknowledged, shared.DriftStatusResolved, shared.DriftStatusDismissed},
	shared.DriftStatusAcknowledged: {shared.DriftStatusResolved, shared.DriftStatusDismissed},
	shared.DriftStatusResolved:     {},
	shared.DriftStatusDismissed:    {},
}

func canTransitionDriftStatus(from, to string) bool {
	for _, allowed := range driftStatusTransitions[from] {
		if allowed == to {
			return true
		}
	}
	return false
}

func (svc *DriftStoreService) ListReports(tenantID string, query dto.ListDriftReportsQuery) (*dto.DriftReportListResponse, error) {
	reports, err := svc.repo.ListReports(tenantID, repositories.ReportFilter{
		IntegrationID: query.IntegrationID,
		Severity:      query.Severity,
		Status:        query.Status,
		ActionID:      query.ActionID,
		Cursor:        query.Cursor,
		Limit:         query.Limit,
	})
	if err != nil {
		return nil, err
	}

	resp := &dto.DriftReportListResponse{
		Reports: make([]dto.DriftReportResponse, len(reports)),
	}
	for i := range reports {
		resp.Reports[i] = mapReportToResponse(&reports[i])
	}

	limit := query.Limit
	if limit <= 0 {
		limit = 50
	}
	if len(reports) == limit {
		resp.NextCursor = reports[len(reports)-1].ID
	}

	return resp, nil
}

func (svc *DriftStoreService) GetReport(tenantID, reportID string) (*dto.DriftReportResponse, error) {
	report, err := svc.repo.GetReport(reportID, tenantID)
	if err != nil {
		return nil, err
	}
	if report == nil {
		return nil, shared.NewDriftReportNotFoundError(reportID)
	}

	resp := mapReportToResponse(report)
	return &resp, nil
}

// UpdateStatus applies one validated transition, stamping acknowledgedAt or
// resolvedAt as appropriate. Transitions out of terminal states are rejected.
func (svc *DriftStoreService) UpdateStatus(tenantID, reportID string, req dto.UpdateDriftStatusRequest) (*dto.DriftReportResponse, error) {
	report, err := svc.repo.GetReport(reportID, tenantID)
	if err != nil {
		return nil, err
	}
	if report == nil {
		return nil, shared.NewDriftReportNotFoundError(reportID)
	}

	if !canTransitionDriftStatus(report.Status, req.Status) {
		return nil, shared.NewInvalidDriftStatusTransitionError(report.Status, req.Status)
	}

	now := svc.now()
	report.Status = req.Status
	report.UpdatedAt = now

	switch req.Status {
	case shared.DriftStatusAcknowledged:
		report.AcknowledgedAt = &now
	case shared.DriftStatusResolved:
		report.ResolvedAt = &now
	}

	if err := svc.repo.SaveReport(report); err != nil {
		return nil, err
	}

	log.WithFields(log.Fields{
		"report_id": reportID,
		"status":    req.Status,
	}).Info("Drift report status updated")

	resp := mapReportToResponse(report)
	return &resp, nil
}

// Summary counts unresolved reports by severity, per integration or across
// the tenant when integrationID is empty.
func (svc *DriftStoreService) Summary(tenantID, integrationID string) (*dto.DriftSummaryResponse, error) {
	counts, err := svc.repo.UnresolvedCounts(tenantID, integrationID)
	if err != nil {
		return nil, err
	}

	resp := &dto.DriftSummaryResponse{
		IntegrationID: integrationID,
		BySeverity:    make(map[string]int64, len(counts)),
	}
	for _, c := range counts {
		resp.BySeverity[c.Severity] = c.Count
		resp.Total += c.Count
	}

	return resp, nil
}

// BulkResolveByAction terminal-resolves every non-terminal report tied to an
// action, used when the action's schema has been fixed.
func (svc *DriftStoreService) BulkResolveByAction(tenantID, actionID string) (int64, error) {
	closed, err := svc.repo.BulkResolveByAction(tenantID, actionID, svc.now())
	if err != nil {
		return 0, err
	}

	if closed > 0 {
		log.WithFields(log.Fields{
			"action_id": actionID,
			"closed":    closed,
		}).Info("Drift reports bulk-resolved for action")
	}

	return closed, nil
}

func (svc *DriftStoreService) GetDriftConfig(tenantID, integrationID string) (*dto.DriftConfig, error) {
	integration, err := svc.integrations.GetIntegration(integrationID, tenantID)
	if err != nil {
		return nil, err
	}

	cfg := parseDriftConfig(integration.DriftConfig)
	return &cfg, nil
}

// UpdateDriftConfig merges the request into the stored config and invalidates
// the analyzer's cache. Malformed input is rejected at this boundary.
func (svc *DriftStoreService) UpdateDriftConfig(tenantID, integrationID string, req dto.UpdateDriftConfigRequest) (*dto.DriftConfig, error) {
	integration, err := svc.integrations.GetIntegration(integrationID, tenantID)
	if err != nil {
		return nil, err
	}

	cfg := parseDriftConfig(integration.DriftConfig)
	if req.Enabled != nil {
		cfg.Enabled = *req.Enabled
	}
	if req.Sensitivity != nil {
		cfg.Sensitivity = *req.Sensitivity
	}
	if req.IgnoreFieldPaths != nil {
		cfg.IgnoreFieldPaths = *req.IgnoreFieldPaths
	}

	blob, err := sonic.Marshal(cfg)
	if err != nil {
		return nil, err
	}
	if err := svc.integrations.UpdateDriftConfig(integrationID, tenantID, blob); err != nil {
		return nil, err
	}

	if svc.redisSvc != nil {
		cacheKey := fmt.Sprintf(driftConfigCacheKeyFmt, tenantID, integrationID)
		if err := svc.redisSvc.Delete(gocontext.Background(), cacheKey); err != nil {
			log.WithField("integration_id", integrationID).Debug("Drift config cache invalidation failed")
		}
	}

	return &cfg, nil
}

func mapReportToResponse(report *model.DriftReport) dto.DriftReportResponse {
	return dto.DriftReportResponse{
		ID:              report.ID,
		IntegrationID:   report.IntegrationID,
		ActionID:        report.ActionID,
		Direction:       report.Direction,
		IssueCode:       report.IssueCode,
		FieldPath:       report.FieldPath,
		Fingerprint:     report.Fingerprint,
		Severity:        report.Severity,
		Status:          report.Status,
		ExpectedType:    report.ExpectedType,
		CurrentType:     report.CurrentType,
		Description:     report.Description,
		FailureCount:    report.FailureCount,
		ScanCount:       report.ScanCount,
		FirstDetectedAt: report.FirstDetectedAt,
		LastDetectedAt:  report.LastDetectedAt,
		AcknowledgedAt:  report.AcknowledgedAt,
		ResolvedAt:      report.ResolvedAt,
	}
}

func newID() string {
	return uuid.NewString()
}
