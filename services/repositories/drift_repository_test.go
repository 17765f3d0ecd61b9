package repositories

import (
	"fmt"
	"testing"
	"time"

	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/apibridge-labs/bridge_api/model"
	"github.com/apibridge-labs/bridge_api/shared"
)

func newTestDB(t *testing.T) *gorm.DB {
	t.Helper()

	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	if err != nil {
		t.Fatalf("failed to open sqlite: %v", err)
	}

	if err := db.AutoMigrate(&model.ValidationFailure{}, &model.DriftReport{}, &model.Integration{}, &model.Connection{}); err != nil {
		t.Fatalf("failed to migrate: %v", err)
	}
	return db
}

func seedFailure(t *testing.T, db *gorm.DB, id, actionID, issueCode, fieldPath string, count int, lastSeen time.Time) {
	t.Helper()
	failure := model.ValidationFailure{
		ID:            id,
		TenantID:      "t-1",
		IntegrationID: "int-1",
		ActionID:      actionID,
		Direction:     shared.DirectionOutput,
		IssueCode:     issueCode,
		FieldPath:     fieldPath,
		ExpectedType:  "number",
		ReceivedType:  "string",
		FailureCount:  count,
		FirstSeenAt:   lastSeen.Add(-time.Hour),
		LastSeenAt:    lastSeen,
	}
	if err := db.Create(&failure).Error; err != nil {
		t.Fatalf("failed to seed failure: %v", err)
	}
}

func seedReport(t *testing.T, db *gorm.DB, repo *DriftRepository, id, actionID, severity, status string, lastDetected time.Time) *model.DriftReport {
	t.Helper()
	report := &model.DriftReport{
		ID:              id,
		TenantID:        "t-1",
		IntegrationID:   "int-1",
		Fingerprint:     "fp-" + id,
		ActionID:        actionID,
		Direction:       shared.DirectionOutput,
		IssueCode:       shared.IssueTypeMismatch,
		FieldPath:       "data.total",
		Severity:        severity,
		Status:          status,
		FailureCount:    5,
		ScanCount:       1,
		FirstDetectedAt: lastDetected,
		LastDetectedAt:  lastDetected,
		CreatedAt:       lastDetected,
		UpdatedAt:       lastDetected,
	}
	if err := repo.CreateReport(report); err != nil {
		t.Fatalf("failed to seed report: %v", err)
	}
	return report
}

func TestFailurePatternsAggregation(t *testing.T) {
	db := newTestDB(t)
	repo := NewDriftRepository(db)
	now := time.Now().UTC()

	// Two rows for the same pattern sum to 6; one lone row stays below the
	// threshold; one row is outside the window.
	seedFailure(t, db, "vf-1", "act-1", shared.IssueTypeMismatch, "data.total", 4, now.Add(-2*time.Hour))
	seedFailure(t, db, "vf-2", "act-1", shared.IssueTypeMismatch, "data.total", 2, now.Add(-time.Hour))
	seedFailure(t, db, "vf-3", "act-1", shared.IssueUnknownField, "data.extra", 3, now.Add(-time.Hour))
	seedFailure(t, db, "vf-4", "act-1", shared.IssueMissingRequiredField, "data.old", 50, now.Add(-72*time.Hour))

	patterns, err := repo.FailurePatterns("int-1", "t-1", now.Add(-24*time.Hour), 5)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(patterns) != 1 {
		t.Fatalf("expected 1 qualifying pattern, got %d: %+v", len(patterns), patterns)
	}

	p := patterns[0]
	if p.FailureCount != 6 {
		t.Errorf("expected summed count 6, got %d", p.FailureCount)
	}
	if p.FieldPath != "data.total" || p.IssueCode != shared.IssueTypeMismatch {
		t.Errorf("wrong pattern: %+v", p)
	}
}

func TestFailurePatternsTenantScoping(t *testing.T) {
	db := newTestDB(t)
	repo := NewDriftRepository(db)
	now := time.Now().UTC()

	seedFailure(t, db, "vf-1", "act-1", shared.IssueTypeMismatch, "data.total", 10, now)

	patterns, err := repo.FailurePatterns("int-1", "t-other", now.Add(-24*time.Hour), 1)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(patterns) != 0 {
		t.Errorf("expected no cross-tenant patterns, got %d", len(patterns))
	}
}

func TestFindReportByFingerprint(t *testing.T) {
	db := newTestDB(t)
	repo := NewDriftRepository(db)
	seedReport(t, db, repo, "rep-1", "act-1", shared.SeverityWarning, shared.DriftStatusDetected, time.Now().UTC())

	found, err := repo.FindReportByFingerprint("int-1", "fp-rep-1")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if found == nil || found.ID != "rep-1" {
		t.Errorf("expected rep-1, got %+v", found)
	}

	missing, err := repo.FindReportByFingerprint("int-1", "fp-nope")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if missing != nil {
		t.Errorf("expected nil for unknown fingerprint, got %+v", missing)
	}
}

func TestGetReportTenantScoping(t *testing.T) {
	db := newTestDB(t)
	repo := NewDriftRepository(db)
	seedReport(t, db, repo, "rep-1", "act-1", shared.SeverityWarning, shared.DriftStatusDetected, time.Now().UTC())

	report, err := repo.GetReport("rep-1", "t-other")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if report != nil {
		t.Errorf("cross-tenant read must return nil, got %+v", report)
	}
}

func TestListReportsFiltersAndOrder(t *testing.T) {
	db := newTestDB(t)
	repo := NewDriftRepository(db)
	base := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

	seedReport(t, db, repo, "rep-1", "act-1", shared.SeverityBreaking, shared.DriftStatusDetected, base.Add(-3*time.Hour))
	seedReport(t, db, repo, "rep-2", "act-1", shared.SeverityWarning, shared.DriftStatusAcknowledged, base.Add(-2*time.Hour))
	seedReport(t, db, repo, "rep-3", "act-2", shared.SeverityWarning, shared.DriftStatusResolved, base.Add(-time.Hour))

	all, err := repo.ListReports("t-1", ReportFilter{})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(all) != 3 {
		t.Fatalf("expected 3 reports, got %d", len(all))
	}
	if all[0].ID != "rep-3" || all[2].ID != "rep-1" {
		t.Errorf("expected newest first, got %s..%s", all[0].ID, all[2].ID)
	}

	warnings, err := repo.ListReports("t-1", ReportFilter{Severity: shared.SeverityWarning})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(warnings) != 2 {
		t.Errorf("expected 2 warnings, got %d", len(warnings))
	}

	detected, err := repo.ListReports("t-1", ReportFilter{Status: shared.DriftStatusDetected})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(detected) != 1 || detected[0].ID != "rep-1" {
		t.Errorf("expected only rep-1 detected, got %+v", detected)
	}

	byAction, err := repo.ListReports("t-1", ReportFilter{ActionID: "act-2"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(byAction) != 1 || byAction[0].ID != "rep-3" {
		t.Errorf("expected only rep-3 for act-2, got %+v", byAction)
	}
}

func TestListReportsCursorPagination(t *testing.T) {
	db := newTestDB(t)
	repo := NewDriftRepository(db)
	base := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

	for i := 0; i < 5; i++ {
		seedReport(t, db, repo, fmt.Sprintf("rep-%d", i), "act-1",
			shared.SeverityWarning, shared.DriftStatusDetected, base.Add(time.Duration(i)*time.Hour))
	}

	page1, err := repo.ListReports("t-1", ReportFilter{Limit: 2})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(page1) != 2 || page1[0].ID != "rep-4" || page1[1].ID != "rep-3" {
		t.Fatalf("unexpected first page: %+v", page1)
	}

	page2, err := repo.ListReports("t-1", ReportFilter{Limit: 2, Cursor: page1[1].ID})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(page2) != 2 || page2[0].ID != "rep-2" || page2[1].ID != "rep-1" {
		t.Fatalf("unexpected second page: %+v", page2)
	}

	page3, err := repo.ListReports("t-1", ReportFilter{Limit: 2, Cursor: page2[1].ID})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(page3) != 1 || page3[0].ID != "rep-0" {
		t.Fatalf("unexpected final page: %+v", page3)
	}
}

func TestListReportsCursorTiesOnLastDetectedAt(t *testing.T) {
	db := newTestDB(t)
	repo := NewDriftRepository(db)
	ts := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

	// All rows share one timestamp; ordering falls back to id DESC.
	for _, id := range []string{"a", "b", "c"} {
		seedReport(t, db, repo, id, "act-1", shared.SeverityInfo, shared.DriftStatusDetected, ts)
	}

	page1, err := repo.ListReports("t-1", ReportFilter{Limit: 2})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(page1) != 2 || page1[0].ID != "c" || page1[1].ID != "b" {
		t.Fatalf("unexpected first page: %+v", page1)
	}

	page2, err := repo.ListReports("t-1", ReportFilter{Limit: 2, Cursor: "b"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(page2) != 1 || page2[0].ID != "a" {
		t.Fatalf("unexpected second page: %+v", page2)
	}
}

func TestUnresolvedCounts(t *testing.T) {
	db := newTestDB(t)
	repo := NewDriftRepository(db)
	now := time.Now().UTC()

	seedReport(t, db, repo, "rep-1", "act-1", shared.SeverityBreaking, shared.DriftStatusDetected, now)
	seedReport(t, db, repo, "rep-2", "act-1", shared.SeverityBreaking, shared.DriftStatusAcknowledged, now)
	seedReport(t, db, repo, "rep-3", "act-1", shared.SeverityWarning, shared.DriftStatusDetected, now)
	seedReport(t, db, repo, "rep-4", "act-1", shared.SeverityWarning, shared.DriftStatusResolved, now)
	seedReport(t, db, repo, "rep-5", "act-1", shared.SeverityInfo, shared.DriftStatusDismissed, now)

	counts, err := repo.UnresolvedCounts("t-1", "")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	bySeverity := make(map[string]int64)
	for _, c := range counts {
		bySeverity[c.Severity] = c.Count
	}
	if bySeverity[shared.SeverityBreaking] != 2 {
		t.Errorf("expected 2 breaking, got %d", bySeverity[shared.SeverityBreaking])
	}
	if bySeverity[shared.SeverityWarning] != 1 {
		t.Errorf("expected 1 warning, got %d", bySeverity[shared.SeverityWarning])
	}
	if _, ok := bySeverity[shared.SeverityInfo]; ok {
		t.Error("terminal reports must not be counted")
	}
}

func TestBulkResolveByAction(t *testing.T) {
	db := newTestDB(t)
	repo := NewDriftRepository(db)
	now := time.Now().UTC().Truncate(time.Second)

	seedReport(t, db, repo, "rep-1", "act-1", shared.SeverityWarning, shared.DriftStatusDetected, now)
	seedReport(t, db, repo, "rep-2", "act-1", shared.SeverityWarning, shared.DriftStatusAcknowledged, now)
	seedReport(t, db, repo, "rep-3", "act-1", shared.SeverityWarning, shared.DriftStatusDismissed, now)
	seedReport(t, db, repo, "rep-4", "act-2", shared.SeverityWarning, shared.DriftStatusDetected, now)

	closed, err := repo.BulkResolveByAction("t-1", "act-1", now)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if closed != 2 {
		t.Fatalf("expected 2 rows closed, got %d", closed)
	}

	rep1, _ := repo.GetReport("rep-1", "t-1")
	if rep1.Status != shared.DriftStatusResolved {
		t.Errorf("rep-1 should be resolved, got %s", rep1.Status)
	}
	if rep1.ResolvedAt == nil {
		t.Error("rep-1 should have resolvedAt stamped")
	}

	rep3, _ := repo.GetReport("rep-3", "t-1")
	if rep3.Status != shared.DriftStatusDismissed {
		t.Errorf("dismissed reports must stay dismissed, got %s", rep3.Status)
	}

	rep4, _ := repo.GetReport("rep-4", "t-1")
	if rep4.Status != shared.DriftStatusDetected {
		t.Errorf("other actions must be untouched, got %s", rep4.Status)
	}
}

func TestFingerprintUniqueness(t *testing.T) {
	db := newTestDB(t)
	repo := NewDriftRepository(db)
	now := time.Now().UTC()

	first := seedReport(t, db, repo, "rep-1", "act-1", shared.SeverityWarning, shared.DriftStatusDetected, now)

	dup := *first
	dup.ID = "rep-dup"
	if err := repo.CreateReport(&dup); err == nil {
		t.Error("expected unique index violation for duplicate (integration, fingerprint)")
	}
}
