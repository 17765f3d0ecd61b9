package dto

// RateLimitConfig is the per-integration admission budget extracted from
// integration metadata. A nil config means unlimited.
type RateLimitConfig struct {
	MaxRequestsPerMinute int `json:"max_requests_per_minute"`
}

// RateLimitDecision is the structured result of an admission check. Denial is
// not an error; RetryAfterMs is advisory back-pressure for the caller.
type RateLimitDecision struct {
	Allowed      bool  `json:"allowed"`
	UserCount    int   `json:"user_count"`
	TotalCount   int   `json:"total_count"`
	FairShare    int   `json:"fair_share"`
	ActiveUsers  int   `json:"active_users"`
	RetryAfterMs int64 `json:"retry_after_ms,omitempty"`
}

type RateLimitStats struct {
	Connections  int   `json:"connections"`
	TrackedKeys  int   `json:"tracked_keys"`
	TotalTracked int   `json:"total_tracked"`
	Timestamp    int64 `json:"timestamp"`
}
