package services

import (
	"os"
	"time"

	"github.com/alphabatem/common/context"
	log "github.com/sirupsen/logrus"

	"github.com/apibridge-labs/bridge_api/shared"
)

// SchedulerService drives the background jobs: the schema_drift batch scan
// and the rate limiter's window sweep. Neither job ever blocks the request
// path.
type SchedulerService struct {
	context.DefaultService

	rateSvc  *RateLimitService
	driftSvc *DriftAnalyzerService

	scanInterval  time.Duration
	sweepInterval time.Duration

	stop chan struct{}
}

const SCHEDULER_SVC = "scheduler_svc"

func (svc SchedulerService) Id() string {
	return SCHEDULER_SVC
}

func (svc *SchedulerService) Configure(ctx *context.Context) error {
	svc.scanInterval = envDuration("DRIFT_SCAN_INTERVAL", time.Hour)
	svc.sweepInterval = envDuration("RATE_LIMIT_SWEEP_INTERVAL", 30*time.Second)
	svc.stop = make(chan struct{})
	return svc.DefaultService.Configure(ctx)
}

func (svc *SchedulerService) Start() error {
	svc.rateSvc = svc.Service(RATE_LIMIT_SVC).(*RateLimitService)
	svc.driftSvc = svc.Service(DRIFT_ANALYZER_SVC).(*DriftAnalyzerService)

	go svc.runSweepJob()
	go svc.runDriftJob()

	log.WithFields(log.Fields{
		"drift_scan_interval": svc.scanInterval.String(),
		"sweep_interval":      svc.sweepInterval.String(),
	}).Info("Scheduler started")

	return nil
}

func (svc *SchedulerService) Shutdown() {
	close(svc.stop)
}

func (svc *SchedulerService) runSweepJob() {
	ticker := time.NewTicker(svc.sweepInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			svc.rateSvc.CleanupExpiredEntries()
		case <-svc.stop:
			return
		}
	}
}

func (svc *SchedulerService) runDriftJob() {
	ticker := time.NewTicker(svc.scanInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			if _, err := svc.driftSvc.RunBatch(); err != nil {
				// An overlapping trigger is expected when an operator kicked
				// off a manual run; anything else is a real failure.
				if shared.IsErrorCode(err, shared.ErrCodeScanAlreadyRunning) {
					log.Debug("Skipping scheduled drift scan, one is already running")
				} else {
					log.Printf("Scheduled drift scan failed: %v", err)
				}
			}
		case <-svc.stop:
			return
		}
	}
}

func envDuration(key string, fallback time.Duration) time.Duration {
	if raw := os.Getenv(key); raw != "" {
		if d, err := time.ParseDuration(raw); err == nil && d > 0 {
			return d
		}
		log.Printf("Invalid duration for %s: %s, using %s", key, raw, fallback)
	}
	return fallback
}
