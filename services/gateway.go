package services

import (
	"github.com/alphabatem/common/context"

	"github.com/apibridge-labs/bridge_api/dto"
	"github.com/apibridge-labs/bridge_api/services/repositories"
	"github.com/apibridge-labs/bridge_api/shared"
)

// GatewayService is the pipeline-facing preflight: resolve the connection and
// credential, check admission, and record the request when allowed.
type GatewayService struct {
	context.DefaultService

	resolverSvc  *CredentialResolverService
	rateSvc      *RateLimitService
	integrations *repositories.IntegrationRepository
}

const GATEWAY_SVC = "gateway_svc"

func (svc GatewayService) Id() string {
	return GATEWAY_SVC
}

func (svc *GatewayService) Configure(ctx *context.Context) error {
	return svc.DefaultService.Configure(ctx)
}

func (svc *GatewayService) Start() error {
	svc.resolverSvc = svc.Service(CREDENTIAL_RESOLVER_SVC).(*CredentialResolverService)
	svc.rateSvc = svc.Service(RATE_LIMIT_SVC).(*RateLimitService)
	svc.integrations = svc.Service(DatabaseServiceID()).(SqlService).Integrations()
	return nil
}

// rateLimitUserKey namespaces the end-user identity by app so two apps with
// colliding external user ids never share a window.
func rateLimitUserKey(userCtx *dto.UserContext) string {
	if userCtx == nil {
		return ""
	}
	return userCtx.AppID + ":" + userCtx.ExternalUserID
}

func (svc *GatewayService) Preflight(tenantID string, req dto.PreflightRequest) (*dto.PreflightResponse, error) {
	conn, err := svc.resolverSvc.ResolveConnection(tenantID, req.IntegrationID, req.ConnectionID)
	if err != nil {
		return nil, err
	}

	cred, err := svc.resolverSvc.Resolve(conn.ID, tenantID, req.IntegrationID, req.UserContext)
	if err != nil {
		if appErr, ok := shared.GetAppError(err); ok {
			credentialResolutionsTotal.WithLabelValues("none", appErr.Code).Inc()
		}
		return nil, err
	}
	if cred != nil {
		credentialResolutionsTotal.WithLabelValues(cred.Source, "ok").Inc()
	}

	integration, err := svc.integrations.GetIntegration(req.IntegrationID, tenantID)
	if err != nil {
		return nil, err
	}

	config := svc.rateSvc.ResolveRateLimitConfig(integration.Metadata)
	userKey := rateLimitUserKey(req.UserContext)

	decision := svc.rateSvc.CheckRateLimit(conn.ID, userKey, config)
	if decision.Allowed {
		svc.rateSvc.RecordRequest(conn.ID, userKey)
		rateLimitDecisionsTotal.WithLabelValues("allowed").Inc()
	} else {
		rateLimitDecisionsTotal.WithLabelValues("denied").Inc()
	}

	return &dto.PreflightResponse{
		ConnectionID: conn.ID,
		Credential:   cred,
		RateLimit:    decision,
	}, nil
}
