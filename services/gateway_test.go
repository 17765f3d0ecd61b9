package services

import (
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

// newTestGateway wires a gateway over a real integration repository (sqlite)
// and a fake credential store, the same seams the container wires in Start.
func newTestGateway(t *testing.T, store *fakeCredentialStore, maxPerMinute string) *GatewayService {
	t.Helper()

	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	if err != nil {
		t.Fatalf("failed to open sqlite: %v", err)
	}
	if err := db.AutoMigrate(&model.Integration{}, &model.Connection{}); err != nil {
		t.Fatalf("failed to migrate: %v", err)
	}

	now := time.Now().UTC()
	integration := model.Integration{
		ID:        "int-1",
		TenantID:  "t-1",
		Name:      "crm",
		AuthType:  shared.AuthTypeAPIKey,
		Metadata:  []byte(`{"rateLimits":{"maxRequestsPerMinute":` + maxPerMinute + `}}`),
		CreatedAt: now,
		UpdatedAt: now,
	}
	connection := model.Connection{
		ID:            "conn-1",
		TenantID:      "t-1",
		IntegrationID: "int-1",
		IsDefault:     true,
		CreatedAt:     now,
		UpdatedAt:     now,
	}
	if err := db.Create(&integration).Error; err != nil {
		t.Fatalf("seed integration: %v", err)
	}
	if err := db.Create(&connection).Error; err != nil {
		t.Fatalf("seed connection: %v", err)
	}

	integrationRepo := repositories.NewIntegrationRepository(db)

	resolver := &CredentialResolverService{
		store:        store,
		directory:    &fakeDirectory{},
		integrations: integrationRepo,
	}

	rate := &RateLimitService{
		windows: make(map[string]map[string][]time.Time),
		now:     time.Now,
	}

	return &GatewayService{
		resolverSvc:  resolver,
		rateSvc:      rate,
		integrations: integrationRepo,
	}
}

func TestPreflightAllowsAndRecords(t *testing.T) {
	svc := newTestGateway(t, &fakeCredentialStore{sharedCred: activeSharedCred()}, "10")

	resp, err := svc.Preflight("t-1", dto.PreflightRequest{IntegrationID: "int-1"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if resp.ConnectionID != "conn-1" {
		t.Errorf("expected default connection resolved, got %s", resp.ConnectionID)
	}
	if resp.Credential == nil || resp.Credential.Source != shared.CredentialSourceShared {
		t.Errorf("expected shared credential attached, got %+v", resp.Credential)
	}
	if !resp.RateLimit.Allowed {
		t.Errorf("first request should be admitted, got %+v", resp.RateLimit)
	}

	// The allowed request was recorded.
	second, err := svc.Preflight("t-1", dto.PreflightRequest{IntegrationID: "int-1"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if second.RateLimit.TotalCount != 1 {
		t.Errorf("expected the first request counted, got %d", second.RateLimit.TotalCount)
	}
}

func TestPreflightDenialIsNotRecorded(t *testing.T) {
	svc := newTestGateway(t, &fakeCredentialStore{sharedCred: activeSharedCred()}, "2")

	for i := 0; i < 2; i++ {
		resp, err := svc.Preflight("t-1", dto.PreflightRequest{IntegrationID: "int-1"})
		if err != nil {
			t.Fatalf("request %d: unexpected error: %v", i, err)
		}
		if !resp.RateLimit.Allowed {
			t.Fatalf("request %d should be admitted", i)
		}
	}

	denied, err := svc.Preflight("t-1", dto.PreflightRequest{IntegrationID: "int-1"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if denied.RateLimit.Allowed {
		t.Fatal("third request should be denied")
	}
	if denied.RateLimit.RetryAfterMs < minRetryAfterMs {
		t.Errorf("expected RetryAfterMs >= %d, got %d", minRetryAfterMs, denied.RateLimit.RetryAfterMs)
	}

	// Denied requests never consume budget: the count stays at 2.
	again, err := svc.Preflight("t-1", dto.PreflightRequest{IntegrationID: "int-1"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if again.RateLimit.TotalCount != 2 {
		t.Errorf("denials must not be recorded, got totalCount %d", again.RateLimit.TotalCount)
	}
}

func TestPreflightExplicitConnectionMissing(t *testing.T) {
	svc := newTestGateway(t, &fakeCredentialStore{sharedCred: activeSharedCred()}, "10")

	_, err := svc.Preflight("t-1", dto.PreflightRequest{IntegrationID: "int-1", ConnectionID: "conn-unknown"})
	if !shared.IsErrorCode(err, shared.ErrCodeConnectionNotFound) {
		t.Fatalf("expected CONNECTION_NOT_FOUND, got %v", err)
	}
}

func TestPreflightCredentialErrorPropagates(t *testing.T) {
	svc := newTestGateway(t, &fakeCredentialStore{}, "10")

	_, err := svc.Preflight("t-1", dto.PreflightRequest{IntegrationID: "int-1"})
	if !shared.IsErrorCode(err, shared.ErrCodeCredentialsMissing) {
		t.Fatalf("expected CREDENTIALS_MISSING, got %v", err)
	}
}

func TestPreflightUserScopedWindows(t *testing.T) {
	svc := newTestGateway(t, &fakeCredentialStore{sharedCred: activeSharedCred()}, "100")

	userA := &dto.UserContext{AppID: "app-1", ExternalUserID: "alice"}
	userB := &dto.UserContext{AppID: "app-1", ExternalUserID: "bob"}

	respA, err := svc.Preflight("t-1", dto.PreflightRequest{IntegrationID: "int-1", UserContext: userA})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if respA.RateLimit.UserCount != 0 {
		t.Errorf("alice's first check sees an empty window, got %d", respA.RateLimit.UserCount)
	}

	respB, err := svc.Preflight("t-1", dto.PreflightRequest{IntegrationID: "int-1", UserContext: userB})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if respB.RateLimit.UserCount != 0 {
		t.Errorf("bob's window is separate from alice's, got %d", respB.RateLimit.UserCount)
	}
	if respB.RateLimit.TotalCount != 1 {
		t.Errorf("connection total includes alice's request, got %d", respB.RateLimit.TotalCount)
	}
}
