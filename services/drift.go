package services

import (
	gocontext "context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/alphabatem/common/context"
	"github.com/bytedance/sonic"
	log "github.com/sirupsen/logrus"

	"github.com/apibridge-labs/bridge_api/dto"
	"github.com/apibridge-labs/bridge_api/model"
	"github.com/apibridge-labs/bridge_api/services/repositories"
	"github.com/apibridge-labs/bridge_api/shared"
)

// driftAnalysisStore is the slice of the drift repository the analyzer needs.
type driftAnalysisStore interface {
	FailurePatterns(integrationID, tenantID string, since time.Time, minFailures int) ([]repositories.FailurePattern, error)
	FindReportByFingerprint(integrationID, fingerprint string) (*model.DriftReport, error)
	CreateReport(report *model.DriftReport) error
	SaveReport(report *model.DriftReport) error
}

type integrationLister interface {
	GetIntegration(integrationID, tenantID string) (*model.Integration, error)
	ListIntegrations() ([]model.Integration, error)
}

// scanCoordinator is the slice of the redis service the analyzer uses for
// cross-process coordination: the advisory scan lock and the config cache.
type scanCoordinator interface {
	Get(ctx gocontext.Context, key string) (string, error)
	Set(ctx gocontext.Context, key string, value interface{}, expiration time.Duration) error
	AcquireLock(ctx gocontext.Context, key string, ttl time.Duration) (bool, error)
	ReleaseLock(ctx gocontext.Context, key string) error
}

// DriftAnalyzerService mines aggregated validation-failure statistics for
// evidence that an integration's upstream API contract has drifted. It makes
// no network calls of its own; all signal comes from stored failures.
type DriftAnalyzerService struct {
	context.DefaultService

	repo         driftAnalysisStore
	integrations integrationLister
	redisSvc     scanCoordinator

	now func() time.Time

	batchRunning atomic.Bool

	// Serializes same-integration analysis within this process; the
	// read-then-write upsert is not atomic across the check/create boundary.
	scanMu    sync.Mutex
	scanLocks map[string]*sync.Mutex
}

const DRIFT_ANALYZER_SVC = "drift_analyzer_svc"

const (
	driftScanLockKeyPrefix = "drift:scan:"
	driftConfigCacheKeyFmt = "drift:cfg:%s:%s"
	driftScanLockTTL       = 5 * time.Minute
	driftConfigCacheTTL    = time.Minute
	schemaDriftJobName     = "schema_drift"
)

func (svc DriftAnalyzerService) Id() string {
	return DRIFT_ANALYZER_SVC
}

func (svc *DriftAnalyzerService) Configure(ctx *context.Context) error {
	svc.now = time.Now
	svc.scanLocks = make(map[string]*sync.Mutex)
	return svc.DefaultService.Configure(ctx)
}

func (svc *DriftAnalyzerService) Start() error {
	sqlSvc := svc.Service(DatabaseServiceID()).(SqlService)
	svc.repo = sqlSvc.Drift()
	svc.integrations = sqlSvc.Integrations()
	svc.redisSvc = svc.Service(REDIS_SVC).(*RedisService)
	return nil
}

// sensitivityThresholds maps sensitivity to the minimum aggregated failures
// and trailing time window that qualify a pattern as drift.
type sensitivityThresholds struct {
	MinFailures     int
	TimeWindowHours int
}

var sensitivityTable = map[string]sensitivityThresholds{
	shared.SensitivityHigh:   {MinFailures: 3, TimeWindowHours: 24},
	shared.SensitivityMedium: {MinFailures: 5, TimeWindowHours: 24},
	shared.SensitivityLow:    {MinFailures: 10, TimeWindowHours: 48},
}

func thresholdsFor(sensitivity string) sensitivityThresholds {
	if t, ok := sensitivityTable[sensitivity]; ok {
		return t
	}
	return sensitivityTable[shared.SensitivityMedium]
}

var issueSeverities = map[string]string{
	shared.IssueMissingRequiredField: shared.SeverityBreaking,
	shared.IssueTypeMismatch:         shared.SeverityWarning,
	shared.IssueUnknownField:         shared.SeverityInfo,
	shared.IssueEnumValueChanged:     shared.SeverityWarning,
	shared.IssueFormatChanged:        shared.SeverityInfo,
}

// classifySeverity ranks a pattern. Input-direction failures of required
// fields or types make invocation impossible and are always breaking.
func classifySeverity(direction, issueCode string) string {
	if direction == shared.DirectionInput &&
		(issueCode == shared.IssueMissingRequiredField || issueCode == shared.IssueTypeMismatch) {
		return shared.SeverityBreaking
	}
	if severity, ok := issueSeverities[issueCode]; ok {
		return severity
	}
	return shared.SeverityWarning
}

// buildFingerprint hashes the pattern's natural key. Identical inputs always
// yield identical fingerprints; changing any one input changes the result.
func buildFingerprint(actionID, direction, issueCode, fieldPath string) string {
	sum := sha256.Sum256([]byte(actionID + "|" + direction + "|" + issueCode + "|" + fieldPath))
	return hex.EncodeToString(sum[:])
}

func describePattern(p repositories.FailurePattern) string {
	var description string

	switch p.IssueCode {
	case shared.IssueTypeMismatch:
		description = fmt.Sprintf("Field '%s' type changed from %s to %s", p.FieldPath, p.ExpectedType, p.ReceivedType)
	case shared.IssueMissingRequiredField:
		description = fmt.Sprintf("Required field '%s' is missing from recent payloads", p.FieldPath)
	case shared.IssueUnknownField:
		description = fmt.Sprintf("Unrecognized field '%s' appeared in recent payloads", p.FieldPath)
	case shared.IssueEnumValueChanged:
		description = fmt.Sprintf("Field '%s' returned values outside the known enum set", p.FieldPath)
	case shared.IssueFormatChanged:
		description = fmt.Sprintf("Field '%s' format changed from %s to %s", p.FieldPath, p.ExpectedType, p.ReceivedType)
	default:
		description = fmt.Sprintf("Field '%s' failed validation repeatedly (%s)", p.FieldPath, p.IssueCode)
	}

	if p.Direction == shared.DirectionInput {
		description = "[Input] " + description
	}
	return description
}

// parseDriftConfig tolerantly reads a stored config blob. Absent or malformed
// blobs read as the defaults rather than failing analysis.
func parseDriftConfig(blob []byte) dto.DriftConfig {
	cfg := dto.DefaultDriftConfig()
	if len(blob) == 0 {
		return cfg
	}

	var stored dto.DriftConfig
	if err := sonic.Unmarshal(blob, &stored); err != nil {
		log.WithField("error", err.Error()).Warn("Malformed drift config, using defaults")
		return cfg
	}

	if _, ok := sensitivityTable[stored.Sensitivity]; !ok {
		stored.Sensitivity = shared.SensitivityMedium
	}
	return stored
}

// driftConfig loads the integration's config, preferring the short-lived
// redis cache over the integration row. The cache key carries the tenant so a
// warm entry never satisfies a lookup by a tenant that does not own the
// integration.
func (svc *DriftAnalyzerService) driftConfig(integrationID, tenantID string) (dto.DriftConfig, error) {
	cacheKey := fmt.Sprintf(driftConfigCacheKeyFmt, tenantID, integrationID)

	if svc.redisSvc != nil {
		raw, err := svc.redisSvc.Get(gocontext.Background(), cacheKey)
		if err == nil && raw != "" {
			return parseDriftConfig([]byte(raw)), nil
		}
	}

	integration, err := svc.integrations.GetIntegration(integrationID, tenantID)
	if err != nil {
		return dto.DriftConfig{}, err
	}

	if svc.redisSvc != nil && len(integration.DriftConfig) > 0 {
		if err := svc.redisSvc.Set(gocontext.Background(), cacheKey, []byte(integration.DriftConfig), driftConfigCacheTTL); err != nil {
			log.WithField("integration_id", integrationID).Debug("Drift config cache write failed")
		}
	}

	return parseDriftConfig(integration.DriftConfig), nil
}

// AnalyzeIntegration runs one drift scan for a single integration. Concurrent
// scans of the same integration are serialized; a scan already in flight
// elsewhere yields a skipped result.
func (svc *DriftAnalyzerService) AnalyzeIntegration(integrationID, tenantID string) (*dto.DriftScanResult, error) {
	result := &dto.DriftScanResult{IntegrationID: integrationID}

	cfg, err := svc.driftConfig(integrationID, tenantID)
	if err != nil {
		return nil, err
	}
	if !cfg.Enabled {
		result.Skipped = true
		return result, nil
	}

	unlock, acquired := svc.lockIntegration(integrationID)
	if !acquired {
		result.Skipped = true
		return result, nil
	}
	defer unlock()

	thresholds := thresholdsFor(cfg.Sensitivity)
	now := svc.now()
	since := now.Add(-time.Duration(thresholds.TimeWindowHours) * time.Hour)

	patterns, err := svc.repo.FailurePatterns(integrationID, tenantID, since, thresholds.MinFailures)
	if err != nil {
		return nil, err
	}

	ignored := make(map[string]struct{}, len(cfg.IgnoreFieldPaths))
	for _, path := range cfg.IgnoreFieldPaths {
		ignored[path] = struct{}{}
	}

	for _, pattern := range patterns {
		if _, skip := ignored[pattern.FieldPath]; skip {
			continue
		}

		created, err := svc.upsertReport(integrationID, tenantID, pattern, now)
		if err != nil {
			return nil, err
		}
		switch created {
		case upsertCreated:
			result.ReportsCreated++
		case upsertUpdated:
			result.ReportsUpdated++
		}
	}

	log.WithFields(log.Fields{
		"integration_id":  integrationID,
		"patterns":        len(patterns),
		"reports_created": result.ReportsCreated,
		"reports_updated": result.ReportsUpdated,
	}).Info("Drift scan completed")

	return result, nil
}

type upsertOutcome int

const (
	upsertSkipped upsertOutcome = iota
	upsertCreated
	upsertUpdated
)

// upsertReport applies the terminal-skip upsert: terminal reports are never
// reopened, non-terminal reports are refreshed in place, new patterns create
// a detected report.
func (svc *DriftAnalyzerService) upsertReport(integrationID, tenantID string, pattern repositories.FailurePattern, now time.Time) (upsertOutcome, error) {
	fingerprint := buildFingerprint(pattern.ActionID, pattern.Direction, pattern.IssueCode, pattern.FieldPath)

	existing, err := svc.repo.FindReportByFingerprint(integrationID, fingerprint)
	if err != nil {
		return upsertSkipped, err
	}

	if existing != nil {
		if isTerminalDriftStatus(existing.Status) {
			return upsertSkipped, nil
		}

		existing.LastDetectedAt = now
		existing.ScanCount++
		existing.FailureCount = pattern.FailureCount
		existing.ExpectedType = pattern.ExpectedType
		existing.CurrentType = pattern.ReceivedType
		existing.Description = describePattern(pattern)
		existing.UpdatedAt = now

		if err := svc.repo.SaveReport(existing); err != nil {
			return upsertSkipped, err
		}
		driftReportsTotal.WithLabelValues(existing.Severity, "updated").Inc()
		return upsertUpdated, nil
	}

	report := &model.DriftReport{
		ID:              newID(),
		TenantID:        tenantID,
		IntegrationID:   integrationID,
		Fingerprint:     fingerprint,
		ActionID:        pattern.ActionID,
		Direction:       pattern.Direction,
		IssueCode:       pattern.IssueCode,
		FieldPath:       pattern.FieldPath,
		Severity:        classifySeverity(pattern.Direction, pattern.IssueCode),
		Status:          shared.DriftStatusDetected,
		ExpectedType:    pattern.ExpectedType,
		CurrentType:     pattern.ReceivedType,
		Description:     describePattern(pattern),
		FailureCount:    pattern.FailureCount,
		ScanCount:       1,
		FirstDetectedAt: now,
		LastDetectedAt:  now,
		CreatedAt:       now,
		UpdatedAt:       now,
	}

	if err := svc.repo.CreateReport(report); err != nil {
		return upsertSkipped, err
	}
	driftReportsTotal.WithLabelValues(report.Severity, "created").Inc()
	return upsertCreated, nil
}

// RunBatch analyzes every integration, collecting per-integration errors
// without aborting the batch. Only one batch runs per process at a time.
func (svc *DriftAnalyzerService) RunBatch() (*dto.DriftBatchResult, error) {
	if !svc.batchRunning.CompareAndSwap(false, true) {
		return nil, shared.NewAppError(409, shared.ErrCodeScanAlreadyRunning,
			"schema drift scan already in progress", nil)
	}
	defer svc.batchRunning.Store(false)

	result := &dto.DriftBatchResult{StartedAt: svc.now()}
	timer := time.Now()

	integrations, err := svc.integrations.ListIntegrations()
	if err != nil {
		return nil, err
	}

	for i, integration := range integrations {
		scan, err := svc.AnalyzeIntegration(integration.ID, integration.TenantID)
		if err != nil {
			log.WithFields(log.Fields{
				"integration_id": integration.ID,
				"error":          err.Error(),
			}).Error("Drift scan failed for integration")
			result.Errors = append(result.Errors, fmt.Sprintf("%s: %v", integration.ID, err))
			continue
		}

		result.IntegrationsScanned++
		result.ReportsCreated += scan.ReportsCreated
		result.ReportsUpdated += scan.ReportsUpdated

		log.WithFields(log.Fields{
			"job":       schemaDriftJobName,
			"processed": i + 1,
			"total":     len(integrations),
		}).Debug("Drift batch progress")
	}

	result.FinishedAt = svc.now()
	driftScanDurationSeconds.Observe(time.Since(timer).Seconds())

	log.WithFields(log.Fields{
		"job":             schemaDriftJobName,
		"integrations":    result.IntegrationsScanned,
		"reports_created": result.ReportsCreated,
		"reports_updated": result.ReportsUpdated,
		"errors":          len(result.Errors),
	}).Info("Drift batch completed")

	return result, nil
}

// lockIntegration serializes same-integration scans: a blocking in-process
// mutex, plus a redis advisory lock so concurrent processes skip rather than
// race the upsert. Redis being unreachable degrades to in-process locking.
func (svc *DriftAnalyzerService) lockIntegration(integrationID string) (func(), bool) {
	svc.scanMu.Lock()
	mu, ok := svc.scanLocks[integrationID]
	if !ok {
		mu = &sync.Mutex{}
		svc.scanLocks[integrationID] = mu
	}
	svc.scanMu.Unlock()

	mu.Lock()

	if svc.redisSvc == nil {
		return mu.Unlock, true
	}

	lockKey := driftScanLockKeyPrefix + integrationID
	acquired, err := svc.redisSvc.AcquireLock(gocontext.Background(), lockKey, driftScanLockTTL)
	if err != nil {
		log.WithField("integration_id", integrationID).Debug("Redis scan lock unavailable, using local lock only")
		return mu.Unlock, true
	}
	if !acquired {
		mu.Unlock()
		return nil, false
	}

	return func() {
		if err := svc.redisSvc.ReleaseLock(gocontext.Background(), lockKey); err != nil {
			log.WithField("integration_id", integrationID).Warn("Failed to release redis scan lock")
		}
		mu.Unlock()
	}, true
}

func isTerminalDriftStatus(status string) bool {
	return status == shared.DriftStatusResolved || status == shared.DriftStatusDismissed
}
