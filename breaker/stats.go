package breaker

import "time"

// BreakerStats 单个熔断器的统计快照
// 快照在熔断器锁内一次性构建，内部一致
type BreakerStats struct {
	BreakerID            string  `json:"breaker_id"`
	State                string  `json:"state"`
	StateDurationSeconds float64 `json:"state_duration_seconds"`

	TotalCalls           int64   `json:"total_calls"`
	TotalSuccesses       int64   `json:"total_successes"`
	TotalFailures        int64   `json:"total_failures"`
	ConsecutiveFailures  int     `json:"consecutive_failures"`
	ConsecutiveSuccesses int     `json:"consecutive_successes"`

	// FailureRate 滑动窗口失败率，非全量失败率
	FailureRate    float64 `json:"failure_rate"`
	WindowObserved int     `json:"window_observed"`
	WindowCapacity int     `json:"window_capacity"`

	TotalTrips               int64   `json:"total_trips"`
	CurrentCooldownSeconds   float64 `json:"current_cooldown_seconds"`
	CooldownRemainingSeconds float64 `json:"cooldown_remaining_seconds"`

	HalfOpenAttempts         int `json:"half_open_attempts"`
	HalfOpenSuccesses        int `json:"half_open_successes"`
	HalfOpenMaxAttempts      int `json:"half_open_max_attempts"`
	HalfOpenSuccessThreshold int `json:"half_open_success_threshold"`

	LastSuccessTime     time.Time `json:"last_success_time"`
	LastFailureTime     time.Time `json:"last_failure_time"`
	LastStateChangeTime time.Time `json:"last_state_change_time"`
}

// StateCounts 各状态的熔断器数量
type StateCounts struct {
	Closed   int `json:"closed"`
	HalfOpen int `json:"half_open"`
	Open     int `json:"open"`
}

// AggregateStats 所有熔断器的调用量汇总
type AggregateStats struct {
	TotalCalls     int64   `json:"total_calls"`
	TotalSuccesses int64   `json:"total_successes"`
	TotalFailures  int64   `json:"total_failures"`
	SuccessRate    float64 `json:"success_rate"`
}

// ManagerStats 管理器级别的聚合统计快照
//
// 各熔断器快照彼此独立采集，聚合值在高并发下允许轻微滞后。
type ManagerStats struct {
	TotalBreakers       int     `json:"total_breakers"`
	TotalProtectedCalls int64   `json:"total_protected_calls"`
	TotalRejectedCalls  int64   `json:"total_rejected_calls"`
	TotalTrips          int64   `json:"total_trips"`
	UptimeSeconds       float64 `json:"uptime_seconds"`

	States    StateCounts    `json:"states"`
	Aggregate AggregateStats `json:"aggregate"`

	Breakers []BreakerStats `json:"breakers"`
}
