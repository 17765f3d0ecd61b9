package handlers

import (
	"github.com/gofiber/fiber/v2"

	"github.com/apibridge-labs/bridge_api/dto"
	"github.com/apibridge-labs/bridge_api/shared"
)

type DriftHandler struct {
	storeSvc    DriftStoreInterface
	analyzerSvc DriftAnalyzerInterface
	exportSvc   ExportServiceInterface
}

func NewDriftHandler(storeSvc DriftStoreInterface, analyzerSvc DriftAnalyzerInterface, exportSvc ExportServiceInterface) *DriftHandler {
	return &DriftHandler{
		storeSvc:    storeSvc,
		analyzerSvc: analyzerSvc,
		exportSvc:   exportSvc,
	}
}

// @Summary List Drift Reports
// @Description List drift reports with filters and cursor pagination, newest first
// @Tags drift
// @Accept json
// @Produce json
// @Param integration_id query string false "Filter by integration"
// @Param severity query string false "Filter by severity" Enums(info, warning, breaking)
// @Param status query string false "Filter by status" Enums(detected, acknowledged, resolved, dismissed)
// @Param action_id query string false "Filter by action"
// @Param cursor query string false "Pagination cursor from a previous page"
// @Param limit query int false "Page size, 1-200 (default 50)"
// @Success 200 {object} shared.Response{data=dto.DriftReportListResponse}
// @Router /api/v1/gateway/drift/reports [get]
func (h *DriftHandler) ListReports(c *fiber.Ctx) error {
	tenantID := c.Locals(shared.TenantID).(string)

	var query dto.ListDriftReportsQuery
	if err := c.QueryParser(&query); err != nil {
		return shared.NewBadRequestError(err, "Invalid query parameters")
	}

	if err := query.Validate(); err != nil {
		validationResp := dto.CreateValidationErrorResponse(err)
		return c.Status(fiber.StatusBadRequest).JSON(validationResp)
	}

	reports, err := h.storeSvc.ListReports(tenantID, query)
	if err != nil {
		return err
	}

	return shared.ResponseJSON(c, fiber.StatusOK, "Success", reports)
}

// @Summary Get Drift Report
// @Description Get a single drift report
// @Tags drift
// @Accept json
// @Produce json
// @Param reportId path string true "Report ID"
// @Success 200 {object} shared.Response{data=dto.DriftReportResponse}
// @Failure 404 {object} shared.Response
// @Router /api/v1/gateway/drift/reports/{reportId} [get]
func (h *DriftHandler) GetReport(c *fiber.Ctx) error {
	tenantID := c.Locals(shared.TenantID).(string)
	reportID := c.Params("reportId")

	report, err := h.storeSvc.GetReport(tenantID, reportID)
	if err != nil {
		return err
	}

	return shared.ResponseJSON(c, fiber.StatusOK, "Success", report)
}

// @Summary Update Drift Report Status
// @Description Move a drift report through its lifecycle; resolved and dismissed are terminal
// @Tags drift
// @Accept json
// @Produce json
// @Param reportId path string true "Report ID"
// @Param statusRequest body dto.UpdateDriftStatusRequest true "Target status"
// @Success 200 {object} shared.Response{data=dto.DriftReportResponse}
// @Failure 400 {object} shared.Response
// @Failure 404 {object} shared.Response
// @Router /api/v1/gateway/drift/reports/{reportId}/status [patch]
func (h *DriftHandler) UpdateStatus(c *fiber.Ctx) error {
	tenantID := c.Locals(shared.TenantID).(string)
	reportID := c.Params("reportId")

	var req dto.UpdateDriftStatusRequest
	if err := c.BodyParser(&req); err != nil {
		return shared.NewBadRequestError(err, "Invalid request")
	}

	if err := req.Validate(); err != nil {
		validationResp := dto.CreateValidationErrorResponse(err)
		return c.Status(fiber.StatusBadRequest).JSON(validationResp)
	}

	report, err := h.storeSvc.UpdateStatus(tenantID, reportID, req)
	if err != nil {
		return err
	}

	return shared.ResponseJSON(c, fiber.StatusOK, "Success", report)
}

// @Summary Drift Summary
// @Description Count unresolved drift reports by severity
// @Tags drift
// @Accept json
// @Produce json
// @Param integration_id query string false "Scope to one integration"
// @Success 200 {object} shared.Response{data=dto.DriftSummaryResponse}
// @Router /api/v1/gateway/drift/summary [get]
func (h *DriftHandler) Summary(c *fiber.Ctx) error {
	tenantID := c.Locals(shared.TenantID).(string)
	integrationID := c.Query("integration_id")

	summary, err := h.storeSvc.Summary(tenantID, integrationID)
	if err != nil {
		return err
	}

	return shared.ResponseJSON(c, fiber.StatusOK, "Success", summary)
}

// @Summary Bulk Resolve By Action
// @Description Resolve every open drift report tied to an action
// @Tags drift
// @Accept json
// @Produce json
// @Param actionId path string true "Action ID"
// @Success 200 {object} shared.Response{data=dto.BulkResolveResponse}
// @Router /api/v1/gateway/drift/actions/{actionId}/resolve [post]
func (h *DriftHandler) BulkResolve(c *fiber.Ctx) error {
	tenantID := c.Locals(shared.TenantID).(string)
	actionID := c.Params("actionId")

	closed, err := h.storeSvc.BulkResolveByAction(tenantID, actionID)
	if err != nil {
		return err
	}

	return shared.ResponseJSON(c, fiber.StatusOK, "Success", dto.BulkResolveResponse{
		ActionID:      actionID,
		ReportsClosed: closed,
	})
}

// @Summary Run Drift Scan
// @Description Trigger the schema drift batch scan across all integrations
// @Tags drift
// @Accept json
// @Produce json
// @Success 200 {object} shared.Response{data=dto.DriftBatchResult}
// @Failure 409 {object} shared.Response
// @Router /api/v1/gateway/drift/analyze [post]
func (h *DriftHandler) Analyze(c *fiber.Ctx) error {
	result, err := h.analyzerSvc.RunBatch()
	if err != nil {
		return err
	}

	return shared.ResponseJSON(c, fiber.StatusOK, "Success", result)
}

// @Summary Analyze Integration
// @Description Run the drift scan for a single integration
// @Tags drift
// @Accept json
// @Produce json
// @Param integrationId path string true "Integration ID"
// @Success 200 {object} shared.Response{data=dto.DriftScanResult}
// @Router /api/v1/gateway/drift/integrations/{integrationId}/analyze [post]
func (h *DriftHandler) AnalyzeIntegration(c *fiber.Ctx) error {
	tenantID := c.Locals(shared.TenantID).(string)
	integrationID := c.Params("integrationId")

	result, err := h.analyzerSvc.AnalyzeIntegration(integrationID, tenantID)
	if err != nil {
		return err
	}

	return shared.ResponseJSON(c, fiber.StatusOK, "Success", result)
}

// @Summary Export Drift Reports
// @Description Snapshot the tenant's drift reports to object storage
// @Tags drift
// @Accept json
// @Produce json
// @Success 200 {object} shared.Response{data=dto.DriftExportResponse}
// @Router /api/v1/gateway/drift/export [post]
func (h *DriftHandler) Export(c *fiber.Ctx) error {
	tenantID := c.Locals(shared.TenantID).(string)

	result, err := h.exportSvc.ExportReports(tenantID)
	if err != nil {
		return err
	}

	return shared.ResponseJSON(c, fiber.StatusOK, "Success", result)
}

// @Summary Get Drift Config
// @Description Read an integration's drift detection config
// @Tags drift
// @Accept json
// @Produce json
// @Param integrationId path string true "Integration ID"
// @Success 200 {object} shared.Response{data=dto.DriftConfig}
// @Router /api/v1/gateway/drift/integrations/{integrationId}/config [get]
func (h *DriftHandler) GetConfig(c *fiber.Ctx) error {
	tenantID := c.Locals(shared.TenantID).(string)
	integrationID := c.Params("integrationId")

	cfg, err := h.storeSvc.GetDriftConfig(tenantID, integrationID)
	if err != nil {
		return err
	}

	return shared.ResponseJSON(c, fiber.StatusOK, "Success", cfg)
}

// @Summary Update Drift Config
// @Description Merge changes into an integration's drift detection config
// @Tags drift
// @Accept json
// @Produce json
// @Param integrationId path string true "Integration ID"
// @Param configRequest body dto.UpdateDriftConfigRequest true "Config changes"
// @Success 200 {object} shared.Response{data=dto.DriftConfig}
// @Router /api/v1/gateway/drift/integrations/{integrationId}/config [put]
func (h *DriftHandler) UpdateConfig(c *fiber.Ctx) error {
	tenantID := c.Locals(shared.TenantID).(string)
	integrationID := c.Params("integrationId")

	var req dto.UpdateDriftConfigRequest
	if err := c.BodyParser(&req); err != nil {
		return shared.NewBadRequestError(err, "Invalid request")
	}

	if err := req.Validate(); err != nil {
		validationResp := dto.CreateValidationErrorResponse(err)
		return c.Status(fiber.StatusBadRequest).JSON(validationResp)
	}

	cfg, err := h.storeSvc.UpdateDriftConfig(tenantID, integrationID, req)
	if err != nil {
		return err
	}

	return shared.ResponseJSON(c, fiber.StatusOK, "Success", cfg)
}
