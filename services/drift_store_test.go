package services

import (
	"fmt"
	"testing"
	"time"

	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/apibridge-labs/bridge_api/dto"
	"github.com/apibridge-labs/bridge_api/model"
	"github.com/apibridge-labs/bridge_api/services/repositories"
	"github.com/apibridge-labs/bridge_api/shared"
)

func newStoreTestDB(t *testing.T) *gorm.DB {
	t.Helper()

	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	if err != nil {
		t.Fatalf("failed to open sqlite: %v", err)
	}
	if err := db.AutoMigrate(&model.DriftReport{}, &model.Integration{}); err != nil {
		t.Fatalf("failed to migrate: %v", err)
	}
	return db
}

func newTestDriftStore(t *testing.T, now time.Time) (*DriftStoreService, *gorm.DB) {
	t.Helper()
	db := newStoreTestDB(t)
	svc := &DriftStoreService{
		repo:         repositories.NewDriftRepository(db),
		integrations: repositories.NewIntegrationRepository(db),
		now:          func() time.Time { return now },
	}
	return svc, db
}

func storeSeedReport(t *testing.T, db *gorm.DB, id, status string, lastDetected time.Time) {
	t.Helper()
	report := model.DriftReport{
		ID:              id,
		TenantID:        "t-1",
		IntegrationID:   "int-1",
		Fingerprint:     "fp-" + id,
		ActionID:        "act-1",
		Direction:       shared.DirectionOutput,
		IssueCode:       shared.IssueTypeMismatch,
		FieldPath:       "data.total",
		Severity:        shared.SeverityWarning,
		Status:          status,
		FirstDetectedAt: lastDetected,
		LastDetectedAt:  lastDetected,
		CreatedAt:       lastDetected,
		UpdatedAt:       lastDetected,
	}
	if err := db.Create(&report).Error; err != nil {
		t.Fatalf("failed to seed report: %v", err)
	}
}

func TestUpdateStatusTransitionTable(t *testing.T) {
	tests := []struct {
		from    string
		to      string
		allowed bool
	}{
		{shared.DriftStatusDetected, shared.DriftStatusAcknowledged, true},
		{shared.DriftStatusDetected, shared.DriftStatusResolved, true},
		{shared.DriftStatusDetected, shared.DriftStatusDismissed, true},
		{shared.DriftStatusAcknowledged, shared.DriftStatusResolved, true},
		{shared.DriftStatusAcknowledged, shared.DriftStatusDismissed, true},
		{shared.DriftStatusAcknowledged, shared.DriftStatusAcknowledged, false},
		{shared.DriftStatusResolved, shared.DriftStatusAcknowledged, false},
		{shared.DriftStatusResolved, shared.DriftStatusDismissed, false},
		{shared.DriftStatusResolved, shared.DriftStatusResolved, false},
		{shared.DriftStatusDismissed, shared.DriftStatusAcknowledged, false},
		{shared.DriftStatusDismissed, shared.DriftStatusResolved, false},
		{shared.DriftStatusDismissed, shared.DriftStatusDismissed, false},
	}

	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	for _, tt := range tests {
		t.Run(fmt.Sprintf("%s_to_%s", tt.from, tt.to), func(t *testing.T) {
			svc, db := newTestDriftStore(t, now)
			storeSeedReport(t, db, "rep-1", tt.from, now.Add(-time.Hour))

			resp, err := svc.UpdateStatus("t-1", "rep-1", dto.UpdateDriftStatusRequest{Status: tt.to})

			if tt.allowed {
				if err != nil {
					t.Fatalf("expected transition allowed, got %v", err)
				}
				if resp.Status != tt.to {
					t.Errorf("expected status %s, got %s", tt.to, resp.Status)
				}
			} else {
				if !shared.IsErrorCode(err, shared.ErrCodeInvalidDriftTransition) {
					t.Fatalf("expected INVALID_DRIFT_STATUS_TRANSITION, got %v", err)
				}
			}
		})
	}
}

func TestUpdateStatusStampsTimestamps(t *testing.T) {
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

	t.Run("acknowledged stamps acknowledgedAt", func(t *testing.T) {
		svc, db := newTestDriftStore(t, now)
		storeSeedReport(t, db, "rep-1", shared.DriftStatusDetected, now.Add(-time.Hour))

		resp, err := svc.UpdateStatus("t-1", "rep-1", dto.UpdateDriftStatusRequest{Status: shared.DriftStatusAcknowledged})
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if resp.AcknowledgedAt == nil || !resp.AcknowledgedAt.Equal(now) {
			t.Errorf("expected acknowledgedAt %v, got %v", now, resp.AcknowledgedAt)
		}
		if resp.ResolvedAt != nil {
			t.Errorf("resolvedAt must stay empty, got %v", resp.ResolvedAt)
		}
	})

	t.Run("resolved stamps resolvedAt", func(t *testing.T) {
		svc, db := newTestDriftStore(t, now)
		storeSeedReport(t, db, "rep-1", shared.DriftStatusAcknowledged, now.Add(-time.Hour))

		resp, err := svc.UpdateStatus("t-1", "rep-1", dto.UpdateDriftStatusRequest{Status: shared.DriftStatusResolved})
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if resp.ResolvedAt == nil || !resp.ResolvedAt.Equal(now) {
			t.Errorf("expected resolvedAt %v, got %v", now, resp.ResolvedAt)
		}
	})

	t.Run("dismissed stamps neither", func(t *testing.T) {
		svc, db := newTestDriftStore(t, now)
		storeSeedReport(t, db, "rep-1", shared.DriftStatusDetected, now.Add(-time.Hour))

		resp, err := svc.UpdateStatus("t-1", "rep-1", dto.UpdateDriftStatusRequest{Status: shared.DriftStatusDismissed})
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if resp.AcknowledgedAt != nil || resp.ResolvedAt != nil {
			t.Errorf("dismissal must not stamp lifecycle timestamps: %+v", resp)
		}
	})
}

func TestUpdateStatusUnknownReport(t *testing.T) {
	svc, _ := newTestDriftStore(t, time.Now())

	_, err := svc.UpdateStatus("t-1", "rep-missing", dto.UpdateDriftStatusRequest{Status: shared.DriftStatusResolved})
	if !shared.IsErrorCode(err, shared.ErrCodeDriftReportNotFound) {
		t.Fatalf("expected DRIFT_REPORT_NOT_FOUND, got %v", err)
	}
}

func TestGetReportCrossTenant(t *testing.T) {
	now := time.Now().UTC()
	svc, db := newTestDriftStore(t, now)
	storeSeedReport(t, db, "rep-1", shared.DriftStatusDetected, now)

	_, err := svc.GetReport("t-other", "rep-1")
	if !shared.IsErrorCode(err, shared.ErrCodeDriftReportNotFound) {
		t.Fatalf("expected DRIFT_REPORT_NOT_FOUND across tenants, got %v", err)
	}
}

func TestListReportsNextCursor(t *testing.T) {
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	svc, db := newTestDriftStore(t, now)

	for i := 0; i < 3; i++ {
		storeSeedReport(t, db, fmt.Sprintf("rep-%d", i), shared.DriftStatusDetected, now.Add(time.Duration(i)*time.Minute))
	}

	page, err := svc.ListReports("t-1", dto.ListDriftReportsQuery{Limit: 2})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(page.Reports) != 2 {
		t.Fatalf("expected 2 reports, got %d", len(page.Reports))
	}
	if page.NextCursor != page.Reports[1].ID {
		t.Errorf("nextCursor should be the last row id, got %q", page.NextCursor)
	}

	last, err := svc.ListReports("t-1", dto.ListDriftReportsQuery{Limit: 2, Cursor: page.NextCursor})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(last.Reports) != 1 {
		t.Fatalf("expected 1 report on final page, got %d", len(last.Reports))
	}
	if last.NextCursor != "" {
		t.Errorf("short page must not advertise a cursor, got %q", last.NextCursor)
	}
}

func TestSummary(t *testing.T) {
	now := time.Now().UTC()
	svc, db := newTestDriftStore(t, now)

	seed := func(id, severity, status string) {
		report := model.DriftReport{
			ID: id, TenantID: "t-1", IntegrationID: "int-1",
			Fingerprint: "fp-" + id, ActionID: "act-1",
			Direction: shared.DirectionOutput, IssueCode: shared.IssueUnknownField,
			FieldPath: "data.x", Severity: severity, Status: status,
			FirstDetectedAt: now, LastDetectedAt: now, CreatedAt: now, UpdatedAt: now,
		}
		if err := db.Create(&report).Error; err != nil {
			t.Fatalf("seed: %v", err)
		}
	}

	seed("rep-1", shared.SeverityBreaking, shared.DriftStatusDetected)
	seed("rep-2", shared.SeverityWarning, shared.DriftStatusAcknowledged)
	seed("rep-3", shared.SeverityWarning, shared.DriftStatusResolved)

	summary, err := svc.Summary("t-1", "")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if summary.Total != 2 {
		t.Errorf("expected total 2 unresolved, got %d", summary.Total)
	}
	if summary.BySeverity[shared.SeverityBreaking] != 1 || summary.BySeverity[shared.SeverityWarning] != 1 {
		t.Errorf("unexpected severity breakdown: %+v", summary.BySeverity)
	}
}

func TestUpdateDriftConfigMerge(t *testing.T) {
	now := time.Now().UTC()
	svc, db := newTestDriftStore(t, now)

	integration := model.Integration{
		ID:          "int-1",
		TenantID:    "t-1",
		Name:        "crm",
		AuthType:    shared.AuthTypeOAuth2,
		DriftConfig: []byte(`{"enabled":true,"sensitivity":"medium","ignore_field_paths":["data.noise"]}`),
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	if err := db.Create(&integration).Error; err != nil {
		t.Fatalf("seed integration: %v", err)
	}

	high := shared.SensitivityHigh
	cfg, err := svc.UpdateDriftConfig("t-1", "int-1", dto.UpdateDriftConfigRequest{Sensitivity: &high})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if cfg.Sensitivity != shared.SensitivityHigh {
		t.Errorf("expected sensitivity updated, got %s", cfg.Sensitivity)
	}
	if !cfg.Enabled {
		t.Error("untouched fields must keep their values")
	}
	if len(cfg.IgnoreFieldPaths) != 1 || cfg.IgnoreFieldPaths[0] != "data.noise" {
		t.Errorf("ignore paths must survive the merge, got %v", cfg.IgnoreFieldPaths)
	}

	// Round-trip: the persisted blob reflects the merge.
	stored, err := svc.GetDriftConfig("t-1", "int-1")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if stored.Sensitivity != shared.SensitivityHigh {
		t.Errorf("expected persisted sensitivity high, got %s", stored.Sensitivity)
	}
}
