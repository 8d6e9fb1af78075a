package breaker

// 监控指标名称
const (
	// MetricRequestsTotal 受保护调用总数
	MetricRequestsTotal = "breaker_requests_total"
	// MetricSuccessesTotal 成功调用总数
	MetricSuccessesTotal = "breaker_successes_total"
	// MetricFailuresTotal 计入熔断判定的失败总数
	MetricFailuresTotal = "breaker_failures_total"
	// MetricRejectsTotal 熔断打开被拒绝的调用总数
	MetricRejectsTotal = "breaker_rejects_total"
	// MetricStateChangesTotal 状态转移总数
	MetricStateChangesTotal = "breaker_state_changes_total"
	// MetricCallDuration 受保护调用耗时（秒）
	MetricCallDuration = "breaker_call_duration_seconds"
)

// 指标标签名称
const (
	// LabelKey 熔断键
	LabelKey = "key"
	// LabelCategory 错误类别
	LabelCategory = "category"
	// LabelFromState 转移前状态
	LabelFromState = "from_state"
	// LabelToState 转移后状态
	LabelToState = "to_state"
)
