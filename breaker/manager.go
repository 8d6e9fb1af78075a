package breaker

import (
	"context"
	"sort"
	"sync"
	"sync/atomic"
	"time"

	"github.com/codingjam/bridge-mcp/clog"
	"github.com/codingjam/bridge-mcp/metrics"
)

// manager Manager 接口的实现
//
// 锁的职责边界：manager 的读写锁只保护 breakers 与 overrides 两个
// map；每个熔断器的状态由其自身的互斥锁保护。被保护的调用执行
// 期间不持有任何锁。锁序固定为 manager 锁 → breaker 锁，从不反向。
type manager struct {
	defaultCfg *Config
	logger     clog.Logger
	meter      metrics.Meter
	classify   Classifier
	clock      Clock
	createdAt  time.Time

	mu        sync.RWMutex
	breakers  map[string]*Breaker
	overrides map[string]*Config

	protectedCalls atomic.Int64
	rejectedCalls  atomic.Int64
	trips          atomic.Int64

	requestsCounter metrics.Counter
	successCounter  metrics.Counter
	failureCounter  metrics.Counter
	rejectCounter   metrics.Counter
	stateCounter    metrics.Counter
	durationHist    metrics.Histogram
}

func newManager(defaultCfg *Config, opt *options) *manager {
	m := &manager{
		defaultCfg: defaultCfg.clone(),
		logger:     opt.logger,
		meter:      opt.meter,
		classify:   opt.classifier,
		clock:      opt.clock,
		createdAt:  opt.clock.Now(),
		breakers:   make(map[string]*Breaker),
		overrides:  make(map[string]*Config),
	}
	m.initMetrics()
	return m
}

// initMetrics 预创建指标，meter 未配置时全部保持 nil
func (m *manager) initMetrics() {
	if m.meter == nil {
		return
	}
	m.requestsCounter, _ = m.meter.Counter(MetricRequestsTotal, "Total protected calls")
	m.successCounter, _ = m.meter.Counter(MetricSuccessesTotal, "Total successful calls")
	m.failureCounter, _ = m.meter.Counter(MetricFailuresTotal, "Total failed calls counted against the breaker")
	m.rejectCounter, _ = m.meter.Counter(MetricRejectsTotal, "Total calls rejected by an open circuit")
	m.stateCounter, _ = m.meter.Counter(MetricStateChangesTotal, "Total breaker state transitions")
	m.durationHist, _ = m.meter.Histogram(MetricCallDuration, "Protected call duration", metrics.WithUnit("s"))
}

// Execute 执行受熔断保护的函数
func (m *manager) Execute(ctx context.Context, key string, op Operation) (any, error) {
	if key == "" {
		return nil, ErrKeyEmpty
	}
	if op == nil {
		return nil, ErrNilOperation
	}

	brk := m.getOrCreate(key)
	m.protectedCalls.Add(1)
	if m.requestsCounter != nil {
		m.requestsCounter.Inc(ctx, metrics.L(LabelKey, key))
	}

	if !brk.Allow() {
		m.rejectedCalls.Add(1)
		if m.rejectCounter != nil {
			m.rejectCounter.Inc(ctx, metrics.L(LabelKey, key))
		}
		// 错误元信息与日志取自同一份快照，避免多次取锁读到不一致的值
		stats := brk.Stats()
		m.logger.Warn("call rejected, circuit open",
			clog.String("key", key),
			clog.Float64("cooldown_remaining_seconds", stats.CooldownRemainingSeconds),
			clog.Float64("failure_rate", stats.FailureRate))
		return nil, &OpenError{
			Key:               key,
			CooldownRemaining: time.Duration(stats.CooldownRemainingSeconds * float64(time.Second)),
			FailureRate:       stats.FailureRate,
			TotalFailures:     stats.TotalFailures,
			LastFailure:       stats.LastFailureTime,
		}
	}

	start := m.clock.Now()
	result, err := op(ctx)
	elapsed := m.clock.Now().Sub(start)

	if m.durationHist != nil {
		m.durationHist.Record(ctx, elapsed.Seconds(), metrics.L(LabelKey, key))
	}

	if err == nil {
		brk.RecordSuccess(elapsed)
		if m.successCounter != nil {
			m.successCounter.Inc(ctx, metrics.L(LabelKey, key))
		}
		return result, nil
	}

	category := m.classify(err)
	if category == CategoryCancelled {
		// 取消反映调用方意图，不作为下游健康信号，状态机完全不感知
		m.logger.Debug("call cancelled by caller, not recorded",
			clog.String("key", key))
		return nil, err
	}

	before := brk.State()
	brk.RecordFailure(err, category)
	after := brk.State()

	if m.failureCounter != nil {
		m.failureCounter.Inc(ctx, metrics.L(LabelKey, key), metrics.L(LabelCategory, category))
	}
	if after != before {
		if after == StateOpen {
			m.trips.Add(1)
		}
		if m.stateCounter != nil {
			m.stateCounter.Inc(ctx,
				metrics.L(LabelKey, key),
				metrics.L(LabelFromState, before.String()),
				metrics.L(LabelToState, after.String()))
		}
	}

	return nil, err
}

// getOrCreate 获取或惰性创建熔断器，并发调用返回同一实例
func (m *manager) getOrCreate(key string) *Breaker {
	m.mu.RLock()
	brk, ok := m.breakers[key]
	m.mu.RUnlock()
	if ok {
		return brk
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	if brk, ok := m.breakers[key]; ok {
		return brk
	}

	cfg := m.defaultCfg
	if override, ok := m.overrides[key]; ok {
		cfg = override
	}
	brk = newBreaker(key, cfg, m.clock, m.logger)
	m.breakers[key] = brk

	m.logger.Info("circuit breaker created",
		clog.String("key", key),
		clog.Int("total_breakers", len(m.breakers)))
	return brk
}

// GetBreaker 获取指定键的熔断器，不存在时惰性创建
func (m *manager) GetBreaker(key string) (*Breaker, error) {
	if key == "" {
		return nil, ErrKeyEmpty
	}
	return m.getOrCreate(key), nil
}

// PeekBreaker 获取指定键的熔断器，不存在时不创建
func (m *manager) PeekBreaker(key string) (*Breaker, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	brk, ok := m.breakers[key]
	return brk, ok
}

// Keys 返回当前所有熔断器的键，按字典序排序
func (m *manager) Keys() []string {
	m.mu.RLock()
	defer m.mu.RUnlock()

	keys := make([]string, 0, len(m.breakers))
	for key := range m.breakers {
		keys = append(keys, key)
	}
	sort.Strings(keys)
	return keys
}

// SetServerConfig 设置指定服务的覆盖配置，已存在的熔断器立即生效
func (m *manager) SetServerConfig(key string, cfg *Config) error {
	if key == "" {
		return ErrKeyEmpty
	}
	if cfg == nil {
		return ErrInvalidConfig
	}
	if err := cfg.Validate(); err != nil {
		return err
	}
	cfg = cfg.clone()

	m.mu.Lock()
	m.overrides[key] = cfg
	brk, ok := m.breakers[key]
	m.mu.Unlock()

	if ok {
		if err := brk.UpdateConfig(cfg); err != nil {
			return err
		}
	}

	m.logger.Info("server breaker config updated",
		clog.String("key", key),
		clog.Bool("applied_live", ok))
	return nil
}

// ResetBreaker 手动重置指定熔断器
func (m *manager) ResetBreaker(key string) bool {
	brk, ok := m.PeekBreaker(key)
	if !ok {
		return false
	}
	brk.Reset()
	return true
}

// ResetAllBreakers 重置所有非闭合的熔断器
func (m *manager) ResetAllBreakers() int {
	m.mu.RLock()
	breakers := make([]*Breaker, 0, len(m.breakers))
	for _, brk := range m.breakers {
		breakers = append(breakers, brk)
	}
	m.mu.RUnlock()

	count := 0
	for _, brk := range breakers {
		if brk.State() != StateClosed {
			brk.Reset()
			count++
		}
	}
	if count > 0 {
		m.logger.Info("all circuit breakers reset",
			clog.Int("reset_count", count))
	}
	return count
}

// CleanupInactive 清理空闲超过 idleFor 的熔断器
// 空闲判定取最近一次成功、失败、状态转移三者中的最新时间
func (m *manager) CleanupInactive(idleFor time.Duration) int {
	deadline := m.clock.Now().Add(-idleFor)

	m.mu.Lock()
	defer m.mu.Unlock()

	removed := 0
	for key, brk := range m.breakers {
		if brk.lastActivity().Before(deadline) {
			delete(m.breakers, key)
			delete(m.overrides, key)
			removed++
		}
	}
	if removed > 0 {
		m.logger.Info("cleaned up inactive circuit breakers",
			clog.Int("removed", removed),
			clog.Int("remaining", len(m.breakers)))
	}
	return removed
}

// BreakerStats 返回所有熔断器的统计快照，按键排序
func (m *manager) BreakerStats() []BreakerStats {
	m.mu.RLock()
	breakers := make([]*Breaker, 0, len(m.breakers))
	for _, brk := range m.breakers {
		breakers = append(breakers, brk)
	}
	m.mu.RUnlock()

	stats := make([]BreakerStats, 0, len(breakers))
	for _, brk := range breakers {
		stats = append(stats, brk.Stats())
	}
	sort.Slice(stats, func(i, j int) bool {
		return stats[i].BreakerID < stats[j].BreakerID
	})
	return stats
}

// Stats 返回管理器级别的聚合统计
func (m *manager) Stats() ManagerStats {
	snapshots := m.BreakerStats()

	out := ManagerStats{
		TotalBreakers:       len(snapshots),
		TotalProtectedCalls: m.protectedCalls.Load(),
		TotalRejectedCalls:  m.rejectedCalls.Load(),
		TotalTrips:          m.trips.Load(),
		UptimeSeconds:       m.clock.Now().Sub(m.createdAt).Seconds(),
		Breakers:            snapshots,
	}
	for _, s := range snapshots {
		out.Aggregate.TotalCalls += s.TotalCalls
		out.Aggregate.TotalSuccesses += s.TotalSuccesses
		out.Aggregate.TotalFailures += s.TotalFailures
		switch s.State {
		case StateClosed.String():
			out.States.Closed++
		case StateHalfOpen.String():
			out.States.HalfOpen++
		case StateOpen.String():
			out.States.Open++
		}
	}
	if out.Aggregate.TotalCalls > 0 {
		out.Aggregate.SuccessRate = float64(out.Aggregate.TotalSuccesses) / float64(out.Aggregate.TotalCalls)
	}
	return out
}

// Shutdown 丢弃所有熔断器状态并记录最终统计
func (m *manager) Shutdown() {
	stats := m.Stats()

	m.mu.Lock()
	m.breakers = make(map[string]*Breaker)
	m.overrides = make(map[string]*Config)
	m.mu.Unlock()

	m.logger.Info("circuit breaker manager shut down",
		clog.Int("total_breakers", stats.TotalBreakers),
		clog.Int64("total_protected_calls", stats.TotalProtectedCalls),
		clog.Int64("total_trips", stats.TotalTrips))
}
