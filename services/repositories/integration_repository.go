package repositories

import (
	"errors"

	"gorm.io/gorm"

	"github.com/apibridge-labs/bridge_api/model"
)

type IntegrationRepository struct {
	BaseRepository
}

func NewIntegrationRepository(db *gorm.DB) *IntegrationRepository {
	return &IntegrationRepository{BaseRepository: NewBaseRepository(db)}
}

func (r *IntegrationRepository) GetIntegration(integrationID, tenantID string) (*model.Integration, error) {
	var integration model.Integration
	err := r.db.Where("id = ? AND tenant_id = ?", integrationID, tenantID).First(&integration).Error
	if err != nil {
		return nil, err
	}
	return &integration, nil
}

// ListIntegrations returns every integration across tenants, ordered by id so
// batch progress is stable between runs.
func (r *IntegrationRepository) ListIntegrations() ([]model.Integration, error) {
	var integrations []model.Integration
	err := r.db.Order("id").Find(&integrations).Error
	return integrations, err
}

func (r *IntegrationRepository) GetConnection(connectionID, tenantID string) (*model.Connection, error) {
	var conn model.Connection
	err := r.db.Where("id = ? AND tenant_id = ?", connectionID, tenantID).First(&conn).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &conn, nil
}

// DefaultConnection returns the integration's default connection, or nil when
// none is flagged.
func (r *IntegrationRepository) DefaultConnection(integrationID, tenantID string) (*model.Connection, error) {
	var conn model.Connection
	err := r.db.Where("integration_id = ? AND tenant_id = ? AND is_default = ?", integrationID, tenantID, true).
		First(&conn).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &conn, nil
}

func (r *IntegrationRepository) UpdateDriftConfig(integrationID, tenantID string, configJSON []byte) error {
	return r.db.Model(&model.Integration{}).
		Where("id = ? AND tenant_id = ?", integrationID, tenantID).
		Update("drift_config", configJSON).Error
}
