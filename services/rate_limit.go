package services

import (
	"math"
	"sync"
	"time"

	"github.com/alphabatem/common/context"
	"github.com/bytedance/sonic"
	log "github.com/sirupsen/logrus"

	"github.com/apibridge-labs/bridge_api/dto"
)

// RateLimitService bounds throughput per connection with a sliding 60-second
// window while giving every active end-user a fair share of spare capacity.
// All state is in-memory and lost on restart; counters reset cleanly.
type RateLimitService struct {
	context.DefaultService

	mutex sync.Mutex
	// connectionID -> user key -> request timestamps inside the window
	windows map[string]map[string][]time.Time

	now func() time.Time
}

const RATE_LIMIT_SVC = "rate_limit_svc"

const (
	rateWindow = 60 * time.Second

	// Below this share of the budget, fair-share enforcement is suspended
	// and a single user may burst up to the full budget.
	burstThreshold = 0.80

	minRetryAfterMs = int64(1000)

	// Key for tenant-level (non-delegated) invocations on a connection.
	sharedUserKey = "shared"

	// Fair share reported when no budget applies.
	unlimitedFairShare = math.MaxInt32
)

func (svc RateLimitService) Id() string {
	return RATE_LIMIT_SVC
}

func (svc *RateLimitService) Configure(ctx *context.Context) error {
	svc.windows = make(map[string]map[string][]time.Time)
	svc.now = time.Now
	return svc.DefaultService.Configure(ctx)
}

func (svc *RateLimitService) Start() error {
	return nil
}

func userKey(userID string) string {
	if userID == "" {
		return sharedUserKey
	}
	return userID
}

// CheckRateLimit decides admission for one invocation. It is a pure read: it
// neither records the request nor prunes expired timestamps.
func (svc *RateLimitService) CheckRateLimit(connectionID, userID string, config *dto.RateLimitConfig) dto.RateLimitDecision {
	svc.mutex.Lock()
	defer svc.mutex.Unlock()

	now := svc.now()
	cutoff := now.Add(-rateWindow)
	key := userKey(userID)

	userCount, totalCount, activeUsers, oldest := svc.countLocked(connectionID, key, cutoff)

	// The requesting user counts as active even before their first request.
	if userCount == 0 {
		activeUsers++
	}

	if config == nil || config.MaxRequestsPerMinute <= 0 {
		return dto.RateLimitDecision{
			Allowed:     true,
			UserCount:   userCount,
			TotalCount:  totalCount,
			FairShare:   unlimitedFairShare,
			ActiveUsers: activeUsers,
		}
	}

	budget := config.MaxRequestsPerMinute
	fairShare := budget / activeUsers
	if fairShare < 1 {
		fairShare = 1
	}

	decision := dto.RateLimitDecision{
		UserCount:   userCount,
		TotalCount:  totalCount,
		FairShare:   fairShare,
		ActiveUsers: activeUsers,
	}

	// Under the burst threshold the connection is not contended; any single
	// user may consume past their nominal share.
	if float64(totalCount) < burstThreshold*float64(budget) {
		decision.Allowed = true
		return decision
	}

	if totalCount < budget && userCount < fairShare {
		decision.Allowed = true
		return decision
	}

	decision.Allowed = false
	decision.RetryAfterMs = retryAfterMs(oldest, now)
	return decision
}

// RecordRequest appends the current timestamp to the caller's window. Callers
// must only record after CheckRateLimit allowed the request.
func (svc *RateLimitService) RecordRequest(connectionID, userID string) {
	svc.mutex.Lock()
	defer svc.mutex.Unlock()

	users, ok := svc.windows[connectionID]
	if !ok {
		users = make(map[string][]time.Time)
		svc.windows[connectionID] = users
	}

	key := userKey(userID)
	users[key] = append(users[key], svc.now())
}

// ResolveRateLimitConfig extracts rateLimits.maxRequestsPerMinute from
// arbitrary integration metadata. Returns nil unless the value is a finite
// number greater than zero.
func (svc *RateLimitService) ResolveRateLimitConfig(metadata []byte) *dto.RateLimitConfig {
	if len(metadata) == 0 {
		return nil
	}

	var meta struct {
		RateLimits struct {
			MaxRequestsPerMinute *float64 `json:"maxRequestsPerMinute"`
		} `json:"rateLimits"`
	}
	if err := sonic.Unmarshal(metadata, &meta); err != nil {
		return nil
	}

	v := meta.RateLimits.MaxRequestsPerMinute
	if v == nil || math.IsNaN(*v) || math.IsInf(*v, 0) || *v <= 0 {
		return nil
	}

	return &dto.RateLimitConfig{MaxRequestsPerMinute: int(*v)}
}

// CleanupExpiredEntries prunes timestamps older than the window and drops
// empty keys entirely to bound memory. Runs on a periodic timer independent
// of request traffic.
func (svc *RateLimitService) CleanupExpiredEntries() {
	svc.mutex.Lock()
	defer svc.mutex.Unlock()

	cutoff := svc.now().Add(-rateWindow)
	pruned := 0

	for connectionID, users := range svc.windows {
		for key, timestamps := range users {
			live := timestamps[:0]
			for _, ts := range timestamps {
				if ts.After(cutoff) {
					live = append(live, ts)
				}
			}
			pruned += len(timestamps) - len(live)
			if len(live) == 0 {
				delete(users, key)
			} else {
				users[key] = live
			}
		}
		if len(users) == 0 {
			delete(svc.windows, connectionID)
		}
	}

	if pruned > 0 {
		log.WithField("pruned", pruned).Debug("Rate limit window sweep completed")
	}
}

// ResetAllCounters clears all admission state.
func (svc *RateLimitService) ResetAllCounters() {
	svc.mutex.Lock()
	defer svc.mutex.Unlock()

	svc.windows = make(map[string]map[string][]time.Time)
}

// Stats reports tracked key counts for the admin surface.
func (svc *RateLimitService) Stats() dto.RateLimitStats {
	svc.mutex.Lock()
	defer svc.mutex.Unlock()

	stats := dto.RateLimitStats{
		Connections: len(svc.windows),
		Timestamp:   svc.now().Unix(),
	}
	for _, users := range svc.windows {
		stats.TrackedKeys += len(users)
		for _, timestamps := range users {
			stats.TotalTracked += len(timestamps)
		}
	}
	return stats
}

// countLocked tallies non-expired timestamps for the connection: the caller's
// count, the connection-wide total, the number of distinct active user keys,
// and the oldest live timestamp. Caller must hold the mutex.
func (svc *RateLimitService) countLocked(connectionID, key string, cutoff time.Time) (userCount, totalCount, activeUsers int, oldest time.Time) {
	users, ok := svc.windows[connectionID]
	if !ok {
		return 0, 0, 0, time.Time{}
	}

	for k, timestamps := range users {
		live := 0
		for _, ts := range timestamps {
			if !ts.After(cutoff) {
				continue
			}
			live++
			if oldest.IsZero() || ts.Before(oldest) {
				oldest = ts
			}
		}
		if live == 0 {
			continue
		}
		activeUsers++
		totalCount += live
		if k == key {
			userCount = live
		}
	}

	return userCount, totalCount, activeUsers, oldest
}

func retryAfterMs(oldest, now time.Time) int64 {
	if oldest.IsZero() {
		return minRetryAfterMs
	}

	ms := oldest.Add(rateWindow).Sub(now).Milliseconds()
	if ms < minRetryAfterMs {
		return minRetryAfterMs
	}
	return ms
}
