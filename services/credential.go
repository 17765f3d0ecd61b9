package services

import (
	"strings"
	"time"

	"github.com/alphabatem/common/context"
	"github.com/bytedance/sonic"
	log "github.com/sirupsen/logrus"

	"github.com/apibridge-labs/bridge_api/dto"
	"github.com/apibridge-labs/bridge_api/model"
	"github.com/apibridge-labs/bridge_api/services/repositories"
	"github.com/apibridge-labs/bridge_api/shared"
)

// CredentialSource is the decrypted-credential store the resolver reads from.
type CredentialSource interface {
	GetDecryptedCredential(integrationID, tenantID, connectionID string) (*model.Credential, error)
	GetDecryptedUserCredential(connectionID, appUserID string) (*model.UserCredential, error)
}

// AppUserDirectory maps external app user identities to internal records.
type AppUserDirectory interface {
	ResolveAppUser(appID, externalUserID string) (*model.AppUser, error)
}

// IntegrationSource provides the integration and connection lookups the
// resolver needs for auth-type checks and connection precedence.
type IntegrationSource interface {
	GetIntegration(integrationID, tenantID string) (*model.Integration, error)
	GetConnection(connectionID, tenantID string) (*model.Connection, error)
	DefaultConnection(integrationID, tenantID string) (*model.Connection, error)
}

// CredentialResolverService selects exactly one usable credential per
// invocation: the end-user credential when the invocation is user-delegated,
// falling back to the shared credential on any miss or failure along the way.
type CredentialResolverService struct {
	context.DefaultService

	store        CredentialSource
	directory    AppUserDirectory
	integrations IntegrationSource
}

const CREDENTIAL_RESOLVER_SVC = "credential_resolver_svc"

func (svc CredentialResolverService) Id() string {
	return CREDENTIAL_RESOLVER_SVC
}

func (svc *CredentialResolverService) Configure(ctx *context.Context) error {
	return svc.DefaultService.Configure(ctx)
}

func (svc *CredentialResolverService) Start() error {
	sqlSvc := svc.Service(DatabaseServiceID()).(SqlService)
	svc.store = sqlSvc.Credentials()
	svc.directory = sqlSvc.Credentials()
	svc.integrations = sqlSvc.Integrations()
	return nil
}

// candidate is a credential selected by one tier of the chain, before final
// validity checks. Keeping status/expiry alongside the adapted form lets an
// unusable shared credential surface CREDENTIALS_EXPIRED rather than a miss.
type candidate struct {
	resolved  *dto.ResolvedCredential
	status    string
	expiresAt *time.Time
}

// credentialStrategy is one tier of the fallback chain. A tier that fails in
// any way reports a miss; errors never escape a tier.
type credentialStrategy func() *candidate

// Resolve walks the fallback chain and validates the winning credential.
// Integrations with authType "none" skip resolution entirely (nil, nil).
func (svc *CredentialResolverService) Resolve(connectionID, tenantID, integrationID string, userCtx *dto.UserContext) (*dto.ResolvedCredential, error) {
	integration, err := svc.integrations.GetIntegration(integrationID, tenantID)
	if err != nil {
		return nil, err
	}
	if integration.AuthType == shared.AuthTypeNone {
		return nil, nil
	}

	strategies := []credentialStrategy{
		func() *candidate { return svc.userCredential(connectionID, userCtx) },
		func() *candidate { return svc.sharedCredential(connectionID, tenantID, integrationID) },
	}

	var selected *candidate
	for _, attempt := range strategies {
		if selected = attempt(); selected != nil {
			break
		}
	}

	if selected == nil {
		return nil, shared.NewCredentialsMissingError(connectionID)
	}
	if !repositories.IsCredentialUsable(selected.status, selected.expiresAt) {
		return nil, shared.NewCredentialsExpiredError(connectionID)
	}

	return selected.resolved, nil
}

// ResolveConnection applies connection precedence: an explicit connection id
// wins over the integration's default connection.
func (svc *CredentialResolverService) ResolveConnection(tenantID, integrationID, explicitConnectionID string) (*model.Connection, error) {
	if explicitConnectionID != "" {
		conn, err := svc.integrations.GetConnection(explicitConnectionID, tenantID)
		if err != nil {
			return nil, err
		}
		if conn == nil {
			return nil, shared.NewAppError(404, shared.ErrCodeConnectionNotFound,
				"connection "+explicitConnectionID+" not found", nil)
		}
		return conn, nil
	}

	conn, err := svc.integrations.DefaultConnection(integrationID, tenantID)
	if err != nil {
		return nil, err
	}
	if conn == nil {
		return nil, shared.NewAppError(404, shared.ErrCodeConnectionNotFound,
			"integration "+integrationID+" has no default connection", nil)
	}
	return conn, nil
}

// userCredential resolves the end-user tier. Any failure along the way -
// missing app user, missing or unusable credential, a store exception - is a
// miss, never an error: the shared tier is the safety net.
func (svc *CredentialResolverService) userCredential(connectionID string, userCtx *dto.UserContext) *candidate {
	if userCtx == nil {
		return nil
	}

	appUser, err := svc.directory.ResolveAppUser(userCtx.AppID, userCtx.ExternalUserID)
	if err != nil {
		log.WithFields(log.Fields{
			"app_id":  userCtx.AppID,
			"user_id": userCtx.ExternalUserID,
			"error":   err.Error(),
		}).Debug("App user lookup failed, falling back to shared credential")
		return nil
	}
	if appUser == nil {
		return nil
	}

	cred, err := svc.store.GetDecryptedUserCredential(connectionID, appUser.ID)
	if err != nil {
		log.WithFields(log.Fields{
			"connection_id": connectionID,
			"app_user_id":   appUser.ID,
			"error":         err.Error(),
		}).Debug("User credential fetch failed, falling back to shared credential")
		return nil
	}
	if cred == nil || !repositories.IsCredentialUsable(cred.Status, cred.ExpiresAt) {
		return nil
	}

	return &candidate{
		resolved:  adaptCredential(cred.CredentialType, cred.Data, cred.RefreshToken, cred.ExpiresAt, cred.Scopes, shared.CredentialSourceUser),
		status:    cred.Status,
		expiresAt: cred.ExpiresAt,
	}
}

// sharedCredential resolves the tenant/integration tier. Unlike the user
// tier, an unusable credential is still returned as the selected candidate so
// final validation reports CREDENTIALS_EXPIRED instead of a generic miss.
func (svc *CredentialResolverService) sharedCredential(connectionID, tenantID, integrationID string) *candidate {
	cred, err := svc.store.GetDecryptedCredential(integrationID, tenantID, connectionID)
	if err != nil {
		log.WithFields(log.Fields{
			"connection_id":  connectionID,
			"integration_id": integrationID,
			"error":          err.Error(),
		}).Warn("Shared credential fetch failed")
		return nil
	}
	if cred == nil {
		return nil
	}

	return &candidate{
		resolved:  adaptCredential(cred.CredentialType, cred.Data, cred.RefreshToken, cred.ExpiresAt, cred.Scopes, shared.CredentialSourceShared),
		status:    cred.Status,
		expiresAt: cred.ExpiresAt,
	}
}

// adaptCredential maps either credential shape into the single resolved form
// the pipeline consumes.
func adaptCredential(credType string, data, refreshToken []byte, expiresAt *time.Time, scopes, source string) *dto.ResolvedCredential {
	resolved := &dto.ResolvedCredential{
		CredentialType: credType,
		RefreshToken:   string(refreshToken),
		ExpiresAt:      expiresAt,
		Scopes:         strings.Fields(scopes),
		Source:         source,
	}

	if err := sonic.Unmarshal(data, &resolved.Data); err != nil {
		resolved.Data = map[string]interface{}{}
	}

	return resolved
}
