package breaker

import (
	"fmt"
	"sync"
	"time"

	"github.com/codingjam/bridge-mcp/clog"
)

// Breaker 单个目标服务的熔断器状态机
//
// 状态转移：
//
//	Closed ──触发条件──▶ Open ──冷却到期──▶ HalfOpen ──探测达标──▶ Closed
//	                      ▲                     │
//	                      └─────探测失败─────────┘ (冷却时长 × multiplier)
//
// 熔断器自身不执行调用：调用方先 Allow()，执行后按结果调用
// RecordSuccess / RecordFailure。所有方法并发安全，内部互斥锁
// 覆盖完整的判定 + 转移临界区，锁从不跨越被保护的调用本身。
type Breaker struct {
	id string

	mu        sync.Mutex
	cfg       *Config
	tripSet   map[string]struct{}
	ignoreSet map[string]struct{}

	state   State
	history *window

	consecutiveFailures  int
	consecutiveSuccesses int

	currentCooldown time.Duration
	cooldownUntil   time.Time

	halfOpenAttempts  int
	halfOpenSuccesses int

	totalCalls     int64
	totalSuccesses int64
	totalFailures  int64
	totalTrips     int64

	lastSuccess    time.Time
	lastFailure    time.Time
	lastTransition time.Time

	clock  Clock
	logger clog.Logger
}

// NewBreaker 创建独立的熔断器实例
// 一般通过 Manager 惰性创建，直接构造用于不需要按键管理的场景
func NewBreaker(id string, cfg *Config, opts ...Option) (*Breaker, error) {
	if id == "" {
		return nil, ErrKeyEmpty
	}
	if cfg == nil {
		cfg = DefaultConfig()
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	opt := applyOptions(opts...)
	return newBreaker(id, cfg, opt.clock, opt.logger), nil
}

// newBreaker 内部构造函数，cfg 必须已通过校验
func newBreaker(id string, cfg *Config, clock Clock, logger clog.Logger) *Breaker {
	cfg = cfg.clone()
	return &Breaker{
		id:              id,
		cfg:             cfg,
		tripSet:         categorySet(cfg.TripOn),
		ignoreSet:       categorySet(cfg.Ignore),
		state:           StateClosed,
		history:         newWindow(cfg.RollingWindowSize),
		currentCooldown: cfg.BaseCooldown,
		lastTransition:  clock.Now(),
		clock:           clock,
		logger:          logger,
	}
}

// ID 返回熔断键
func (b *Breaker) ID() string {
	return b.id
}

// Allow 判断当前是否允许发起调用
//
// Open 状态下冷却到期时，本次判定会原子地转入 HalfOpen 并占用
// 第一个探测名额；并发调用中恰好 HalfOpenMaxAttempts 个获准。
// Allow 返回 true 后调用方必须以 RecordSuccess 或 RecordFailure
// 之一上报结果，否则半开名额不会归还。
func (b *Breaker) Allow() bool {
	b.mu.Lock()
	defer b.mu.Unlock()

	now := b.clock.Now()
	if b.state == StateOpen {
		if now.Before(b.cooldownUntil) {
			return false
		}
		b.toHalfOpen(now)
	}

	if b.state == StateHalfOpen {
		if b.halfOpenAttempts >= b.cfg.HalfOpenMaxAttempts {
			return false
		}
		b.halfOpenAttempts++
		return true
	}

	return true
}

// RecordSuccess 上报一次成功调用
//
// 半开状态下累计探测成功，达到阈值后闭合并回落冷却时长。
// 打开状态下收到成功（Allow 之后其他并发调用触发了熔断）视为
// 下游恢复信号，转入 HalfOpen 重新探测。
func (b *Breaker) RecordSuccess(latency time.Duration) {
	b.mu.Lock()
	defer b.mu.Unlock()

	now := b.clock.Now()
	b.totalCalls++
	b.totalSuccesses++
	b.lastSuccess = now
	b.history.record(true)
	b.consecutiveFailures = 0
	b.consecutiveSuccesses++

	switch b.state {
	case StateHalfOpen:
		b.halfOpenSuccesses++
		b.logger.Debug("half-open probe succeeded",
			clog.String("breaker_id", b.id),
			clog.Int("successes", b.halfOpenSuccesses),
			clog.Int("required", b.cfg.HalfOpenSuccessThreshold),
			clog.Duration("latency", latency))
		if b.halfOpenSuccesses >= b.cfg.HalfOpenSuccessThreshold {
			b.close(now)
		}
	case StateOpen:
		b.logger.Warn("success recorded while circuit open, re-probing",
			clog.String("breaker_id", b.id))
		b.toHalfOpen(now)
	}
}

// RecordFailure 上报一次失败调用
//
// category 为空时按错误的具体类型名分类。被忽略的类别（如客户端
// 错误）计入调用总量并在窗口中记为成功，永不触发熔断；其余失败
// 推进连续失败计数与窗口失败率，满足任一触发条件即打开熔断。
// 半开状态下任何计入的失败立即重新打开并放大冷却时长。
func (b *Breaker) RecordFailure(err error, category string) {
	b.mu.Lock()
	defer b.mu.Unlock()

	if category == "" {
		category = fmt.Sprintf("%T", err)
	}

	now := b.clock.Now()
	b.totalCalls++
	b.totalFailures++
	b.lastFailure = now

	if b.isIgnored(category) {
		// 客户端侧错误不代表下游不健康，窗口记为成功以免拉高失败率
		b.history.record(true)
		b.logger.Debug("ignoring failure category",
			clog.String("breaker_id", b.id),
			clog.String("category", category),
			clog.Error(err))
		return
	}

	b.history.record(false)
	b.consecutiveFailures++
	b.consecutiveSuccesses = 0

	b.logger.Warn("failure recorded",
		clog.String("breaker_id", b.id),
		clog.String("category", category),
		clog.Int("consecutive_failures", b.consecutiveFailures),
		clog.Float64("failure_rate", b.history.failureRate()),
		clog.Error(err))

	switch b.state {
	case StateHalfOpen:
		// 探测失败：重新打开并放大冷却
		b.open(now, true)
	case StateClosed:
		if b.shouldTrip() {
			b.open(now, false)
		}
	}
}

// isIgnored 判断类别是否被忽略，TripOn 列表优先级高于 Ignore
func (b *Breaker) isIgnored(category string) bool {
	if _, ok := b.tripSet[category]; ok {
		return false
	}
	_, ok := b.ignoreSet[category]
	return ok
}

// shouldTrip 判定是否满足熔断触发条件，调用方必须持有锁
func (b *Breaker) shouldTrip() bool {
	if b.consecutiveFailures >= b.cfg.FailureThreshold {
		return true
	}
	if b.history.observed() >= b.cfg.minSamples() &&
		b.history.failureRate() >= b.cfg.FailureRateThreshold {
		return true
	}
	return false
}

// open 打开熔断，extend 为 true 时放大冷却时长（探测失败场景）
func (b *Breaker) open(now time.Time, extend bool) {
	from := b.state
	b.state = StateOpen
	b.totalTrips++
	b.lastTransition = now

	if extend {
		extended := time.Duration(float64(b.currentCooldown) * b.cfg.CooldownMultiplier)
		if extended > b.cfg.MaxCooldown {
			extended = b.cfg.MaxCooldown
		}
		b.currentCooldown = extended
	}
	b.cooldownUntil = now.Add(b.currentCooldown)

	b.logger.Warn("circuit opened",
		clog.String("breaker_id", b.id),
		clog.String("from_state", from.String()),
		clog.Duration("cooldown", b.currentCooldown),
		clog.Int64("total_trips", b.totalTrips),
		clog.Bool("cooldown_extended", extend))
}

// toHalfOpen 转入半开状态，探测计数清零
func (b *Breaker) toHalfOpen(now time.Time) {
	from := b.state
	b.state = StateHalfOpen
	b.halfOpenAttempts = 0
	b.halfOpenSuccesses = 0
	b.lastTransition = now

	b.logger.Info("circuit half-open, probing recovery",
		clog.String("breaker_id", b.id),
		clog.String("from_state", from.String()),
		clog.Int("max_attempts", b.cfg.HalfOpenMaxAttempts))
}

// close 闭合熔断并回落冷却时长，奖励成功恢复
func (b *Breaker) close(now time.Time) {
	from := b.state
	b.state = StateClosed
	b.consecutiveFailures = 0
	b.halfOpenAttempts = 0
	b.halfOpenSuccesses = 0
	b.lastTransition = now

	eased := time.Duration(float64(b.currentCooldown) / b.cfg.CooldownMultiplier)
	if eased < b.cfg.BaseCooldown {
		eased = b.cfg.BaseCooldown
	}
	b.currentCooldown = eased

	b.logger.Info("circuit closed, service recovered",
		clog.String("breaker_id", b.id),
		clog.String("from_state", from.String()),
		clog.Duration("cooldown", b.currentCooldown))
}

// State 返回当前状态
// 只读查询，不触发 Open → HalfOpen 的惰性转移（由 Allow 负责）
func (b *Breaker) State() State {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.state
}

// FailureRate 返回滑动窗口失败率
func (b *Breaker) FailureRate() float64 {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.history.failureRate()
}

// CooldownRemaining 返回剩余冷却时长，非 Open 状态为 0
func (b *Breaker) CooldownRemaining() time.Duration {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.cooldownRemainingLocked(b.clock.Now())
}

func (b *Breaker) cooldownRemainingLocked(now time.Time) time.Duration {
	if b.state != StateOpen {
		return 0
	}
	remaining := b.cooldownUntil.Sub(now)
	if remaining < 0 {
		return 0
	}
	return remaining
}

// Reset 手动重置熔断器为闭合状态，清空所有计数与历史
func (b *Breaker) Reset() {
	b.mu.Lock()
	defer b.mu.Unlock()

	now := b.clock.Now()
	from := b.state
	b.state = StateClosed
	b.history.reset()
	b.consecutiveFailures = 0
	b.consecutiveSuccesses = 0
	b.currentCooldown = b.cfg.BaseCooldown
	b.cooldownUntil = time.Time{}
	b.halfOpenAttempts = 0
	b.halfOpenSuccesses = 0
	b.totalCalls = 0
	b.totalSuccesses = 0
	b.totalFailures = 0
	b.totalTrips = 0
	b.lastSuccess = time.Time{}
	b.lastFailure = time.Time{}
	b.lastTransition = now

	b.logger.Info("circuit manually reset",
		clog.String("breaker_id", b.id),
		clog.String("from_state", from.String()))
}

// UpdateConfig 原子替换熔断配置
// 校验失败时原配置保持生效；窗口容量变化时重建窗口（历史清空）
func (b *Breaker) UpdateConfig(cfg *Config) error {
	if cfg == nil {
		return ErrInvalidConfig
	}
	if err := cfg.Validate(); err != nil {
		return err
	}
	cfg = cfg.clone()

	b.mu.Lock()
	defer b.mu.Unlock()

	if cfg.RollingWindowSize != b.cfg.RollingWindowSize {
		b.history = newWindow(cfg.RollingWindowSize)
	}
	b.cfg = cfg
	b.tripSet = categorySet(cfg.TripOn)
	b.ignoreSet = categorySet(cfg.Ignore)
	if b.currentCooldown < cfg.BaseCooldown {
		b.currentCooldown = cfg.BaseCooldown
	}
	if b.currentCooldown > cfg.MaxCooldown {
		b.currentCooldown = cfg.MaxCooldown
	}

	b.logger.Info("breaker config updated",
		clog.String("breaker_id", b.id),
		clog.Int("failure_threshold", cfg.FailureThreshold),
		clog.Float64("failure_rate_threshold", cfg.FailureRateThreshold))
	return nil
}

// Stats 返回统计快照，锁内一次性构建保证内部一致
func (b *Breaker) Stats() BreakerStats {
	b.mu.Lock()
	defer b.mu.Unlock()

	now := b.clock.Now()
	return BreakerStats{
		BreakerID:            b.id,
		State:                b.state.String(),
		StateDurationSeconds: now.Sub(b.lastTransition).Seconds(),

		TotalCalls:           b.totalCalls,
		TotalSuccesses:       b.totalSuccesses,
		TotalFailures:        b.totalFailures,
		ConsecutiveFailures:  b.consecutiveFailures,
		ConsecutiveSuccesses: b.consecutiveSuccesses,

		FailureRate:    b.history.failureRate(),
		WindowObserved: b.history.observed(),
		WindowCapacity: b.cfg.RollingWindowSize,

		TotalTrips:               b.totalTrips,
		CurrentCooldownSeconds:   b.currentCooldown.Seconds(),
		CooldownRemainingSeconds: b.cooldownRemainingLocked(now).Seconds(),

		HalfOpenAttempts:         b.halfOpenAttempts,
		HalfOpenSuccesses:        b.halfOpenSuccesses,
		HalfOpenMaxAttempts:      b.cfg.HalfOpenMaxAttempts,
		HalfOpenSuccessThreshold: b.cfg.HalfOpenSuccessThreshold,

		LastSuccessTime:     b.lastSuccess,
		LastFailureTime:     b.lastFailure,
		LastStateChangeTime: b.lastTransition,
	}
}

// lastActivity 返回熔断器最近一次活动时间，供空闲清理判定
func (b *Breaker) lastActivity() time.Time {
	b.mu.Lock()
	defer b.mu.Unlock()

	latest := b.lastTransition
	if b.lastSuccess.After(latest) {
		latest = b.lastSuccess
	}
	if b.lastFailure.After(latest) {
		latest = b.lastFailure
	}
	return latest
}
