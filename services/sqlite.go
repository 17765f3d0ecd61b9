package services

import (
	"os"

	"github.com/alphabatem/common/context"
	log "github.com/sirupsen/logrus"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/apibridge-labs/bridge_api/model"
	"github.com/apibridge-labs/bridge_api/services/repositories"
)

// SqliteService is the single-file database backend used for local
// development; the service surface mirrors PostgresService.
type SqliteService struct {
	context.DefaultService
	db *gorm.DB

	database  string
	masterKey string

	credentials  *repositories.CredentialRepository
	integrations *repositories.IntegrationRepository
	drift        *repositories.DriftRepository
}

const SQLITE_SVC = "sqlite_svc"

// Id returns Service ID
func (ds SqliteService) Id() string {
	return SQLITE_SVC
}

// Db Access to raw SqliteService db
func (ds SqliteService) Db() *gorm.DB {
	return ds.db
}

func (ds *SqliteService) Credentials() *repositories.CredentialRepository {
	return ds.credentials
}

func (ds *SqliteService) Integrations() *repositories.IntegrationRepository {
	return ds.integrations
}

func (ds *SqliteService) Drift() *repositories.DriftRepository {
	return ds.drift
}

// Configure the service
func (ds *SqliteService) Configure(ctx *context.Context) error {
	ds.database = os.Getenv("DB_DATABASE")
	ds.masterKey = os.Getenv("CREDENTIAL_MASTER_KEY")

	return ds.DefaultService.Configure(ctx)
}

// Start the service and open connection to the database
// Migrate any tables that have changed since last runtime
func (ds *SqliteService) Start() (err error) {
	ds.db, err = gorm.Open(sqlite.Open(ds.database), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Error),
	})
	if err != nil {
		return err
	}

	models := []interface{}{
		&model.Integration{},
		&model.Connection{},
		&model.Credential{},
		&model.UserCredential{},
		&model.AppUser{},
		&model.ValidationFailure{},
		&model.DriftReport{},
	}

	err = ds.db.AutoMigrate(models...)
	if err != nil {
		log.Printf("Failed to migrate database: %v", err)
		return err
	}

	if ds.credentials, err = repositories.NewCredentialRepository(ds.db, ds.masterKey); err != nil {
		return err
	}
	ds.integrations = repositories.NewIntegrationRepository(ds.db)
	ds.drift = repositories.NewDriftRepository(ds.db)

	log.Println("Database connected and migrated successfully")
	return nil
}

func (ds *SqliteService) Shutdown() {
}
