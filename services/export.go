package services

import (
	"bytes"
	gocontext "context"
	"fmt"
	"os"
	"time"

	appContext "github.com/alphabatem/common/context"
	"github.com/bytedance/sonic"
	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"
	log "github.com/sirupsen/logrus"

	"github.com/apibridge-labs/bridge_api/dto"
	"github.com/apibridge-labs/bridge_api/services/repositories"
)

// ExportService writes operator-triggered drift report snapshots to object
// storage.
type ExportService struct {
	appContext.DefaultService

	client     *minio.Client
	bucketName string
	endpoint   string
	accessKey  string
	secretKey  string
	useSSL     bool

	drift *repositories.DriftRepository
}

const EXPORT_SVC = "export_svc"

func (svc ExportService) Id() string {
	return EXPORT_SVC
}

func (svc *ExportService) Configure(ctx *appContext.Context) error {
	svc.endpoint = os.Getenv("MINIO_ENDPOINT")
	if svc.endpoint == "" {
		svc.endpoint = "localhost:9000"
	}

	svc.accessKey = os.Getenv("MINIO_ACCESS_KEY")
	if svc.accessKey == "" {
		svc.accessKey = "admin"
	}

	svc.secretKey = os.Getenv("MINIO_SECRET_KEY")
	if svc.secretKey == "" {
		svc.secretKey = "password123"
	}

	svc.useSSL = os.Getenv("MINIO_USE_SSL") == "true"

	svc.bucketName = os.Getenv("MINIO_BUCKET_NAME")
	if svc.bucketName == "" {
		svc.bucketName = "bridge-drift-exports"
	}

	return svc.DefaultService.Configure(ctx)
}

func (svc *ExportService) Start() error {
	client, err := minio.New(svc.endpoint, &minio.Options{
		Creds:  credentials.NewStaticV4(svc.accessKey, svc.secretKey, ""),
		Secure: svc.useSSL,
	})
	if err != nil {
		return fmt.Errorf("failed to create MinIO client: %v", err)
	}

	svc.client = client
	svc.drift = svc.Service(DatabaseServiceID()).(SqlService).Drift()

	if err := svc.ensureBucket(); err != nil {
		return fmt.Errorf("failed to ensure bucket exists: %v", err)
	}

	log.Printf("Export service started successfully with endpoint: %s", svc.endpoint)
	return nil
}

func (svc *ExportService) ensureBucket() error {
	ctx := gocontext.Background()

	exists, err := svc.client.BucketExists(ctx, svc.bucketName)
	if err != nil {
		return fmt.Errorf("failed to check bucket existence: %v", err)
	}

	if !exists {
		err = svc.client.MakeBucket(ctx, svc.bucketName, minio.MakeBucketOptions{})
		if err != nil {
			return fmt.Errorf("failed to create bucket: %v", err)
		}
	}

	return nil
}

// ExportReports snapshots the tenant's drift reports into object storage and
// returns the object key.
func (svc *ExportService) ExportReports(tenantID string) (*dto.DriftExportResponse, error) {
	reports, err := svc.drift.ReportsForExport(tenantID)
	if err != nil {
		return nil, err
	}

	body, err := sonic.Marshal(map[string]interface{}{
		"tenant_id":   tenantID,
		"exported_at": time.Now().UTC(),
		"reports":     reports,
	})
	if err != nil {
		return nil, err
	}

	objectKey := fmt.Sprintf("drift-exports/%s/%s.json", tenantID, time.Now().UTC().Format("20060102T150405Z"))

	_, err = svc.client.PutObject(gocontext.Background(), svc.bucketName, objectKey,
		bytes.NewReader(body), int64(len(body)), minio.PutObjectOptions{ContentType: "application/json"})
	if err != nil {
		return nil, fmt.Errorf("failed to upload export: %w", err)
	}

	log.WithFields(log.Fields{
		"tenant_id":  tenantID,
		"object_key": objectKey,
		"reports":    len(reports),
	}).Info("Drift report export uploaded")

	return &dto.DriftExportResponse{
		ObjectKey:   objectKey,
		ReportCount: len(reports),
	}, nil
}
