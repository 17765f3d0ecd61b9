package handlers

import (
	"github.com/apibridge-labs/bridge_api/dto"
)

type GatewayServiceInterface interface {
	Preflight(tenantID string, req dto.PreflightRequest) (*dto.PreflightResponse, error)
}

type DriftStoreInterface interface {
	ListReports(tenantID string, query dto.ListDriftReportsQuery) (*dto.DriftReportListResponse, error)
	GetReport(tenantID, reportID string) (*dto.DriftReportResponse, error)
	UpdateStatus(tenantID, reportID string, req dto.UpdateDriftStatusRequest) (*dto.DriftReportResponse, error)
	Summary(tenantID, integrationID string) (*dto.DriftSummaryResponse, error)
	BulkResolveByAction(tenantID, actionID string) (int64, error)
	GetDriftConfig(tenantID, integrationID string) (*dto.DriftConfig, error)
	UpdateDriftConfig(tenantID, integrationID string, req dto.UpdateDriftConfigRequest) (*dto.DriftConfig, error)
}

type DriftAnalyzerInterface interface {
	AnalyzeIntegration(integrationID, tenantID string) (*dto.DriftScanResult, error)
	RunBatch() (*dto.DriftBatchResult, error)
}

type RateLimitAdminInterface interface {
	Stats() dto.RateLimitStats
	ResetAllCounters()
}

type ExportServiceInterface interface {
	ExportReports(tenantID string) (*dto.DriftExportResponse, error)
}
