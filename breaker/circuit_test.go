package breaker

import (
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakeClock 可手动推进的时钟，测试中精确控制冷却到期
type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func newFakeClock() *fakeClock {
	return &fakeClock{now: time.Unix(1700000000, 0)}
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	c.now = c.now.Add(d)
	c.mu.Unlock()
}

func testConfig() *Config {
	cfg := DefaultConfig()
	cfg.FailureThreshold = 3
	cfg.FailureRateThreshold = 0.5
	cfg.RollingWindowSize = 10
	cfg.BaseCooldown = 5 * time.Second
	cfg.MaxCooldown = 60 * time.Second
	cfg.CooldownMultiplier = 2.0
	cfg.HalfOpenMaxAttempts = 3
	cfg.HalfOpenSuccessThreshold = 2
	return cfg
}

func newTestBreaker(t *testing.T, cfg *Config, clock Clock) *Breaker {
	t.Helper()
	brk, err := NewBreaker("mcp-test", cfg, WithClock(clock))
	require.NoError(t, err)
	return brk
}

var errDown = errors.New("connection refused")

// failN 记录 n 次计入熔断的失败
func failN(brk *Breaker, n int) {
	for i := 0; i < n; i++ {
		brk.RecordFailure(errDown, CategoryConnection)
	}
}

func TestBreakerStartsClosed(t *testing.T) {
	brk := newTestBreaker(t, testConfig(), newFakeClock())
	assert.Equal(t, StateClosed, brk.State())
	assert.True(t, brk.Allow())
}

func TestConsecutiveFailuresTrip(t *testing.T) {
	brk := newTestBreaker(t, testConfig(), newFakeClock())

	failN(brk, 2)
	assert.Equal(t, StateClosed, brk.State(), "below threshold must stay closed")
	assert.True(t, brk.Allow())

	failN(brk, 1)
	assert.Equal(t, StateOpen, brk.State())
	assert.False(t, brk.Allow())
}

func TestSuccessResetsConsecutiveFailures(t *testing.T) {
	brk := newTestBreaker(t, testConfig(), newFakeClock())

	failN(brk, 2)
	brk.RecordSuccess(time.Millisecond)
	failN(brk, 2)
	assert.Equal(t, StateClosed, brk.State())
}

func TestFailureRateTrip(t *testing.T) {
	cfg := testConfig()
	cfg.FailureThreshold = 100 // 连续失败条件不可达，只测失败率触发
	brk := newTestBreaker(t, cfg, newFakeClock())

	// 窗口 10，最小样本 5；成功失败交错避免连续失败累积
	brk.RecordSuccess(0)
	failN(brk, 1)
	brk.RecordSuccess(0)
	failN(brk, 1)
	assert.Equal(t, StateClosed, brk.State(), "4 samples below min sample gate")

	failN(brk, 1)
	// 5 个样本中 3 个失败，失败率 0.6 >= 0.5
	assert.Equal(t, StateOpen, brk.State())
}

func TestMinSampleGate(t *testing.T) {
	cfg := testConfig()
	cfg.FailureThreshold = 100
	cfg.RollingWindowSize = 20 // 最小样本 min(10, 20/2) = 10
	brk := newTestBreaker(t, cfg, newFakeClock())

	failN(brk, 9)
	assert.Equal(t, StateClosed, brk.State(), "9 samples must not trigger the rate condition")

	failN(brk, 1)
	assert.Equal(t, StateOpen, brk.State())
}

func TestIgnoredCategoryNeverTrips(t *testing.T) {
	brk := newTestBreaker(t, testConfig(), newFakeClock())

	for i := 0; i < 50; i++ {
		brk.RecordFailure(errors.New("bad request"), CategoryClientError)
	}
	assert.Equal(t, StateClosed, brk.State())
	assert.True(t, brk.Allow())

	stats := brk.Stats()
	assert.Equal(t, int64(50), stats.TotalCalls)
	assert.Equal(t, int64(50), stats.TotalFailures)
	assert.Equal(t, 0, stats.ConsecutiveFailures)
	assert.Equal(t, 0.0, stats.FailureRate, "ignored failures count as window successes")
}

func TestTripOnOverridesIgnore(t *testing.T) {
	cfg := testConfig()
	cfg.Ignore = []string{"RateLimitError"}
	cfg.TripOn = []string{"RateLimitError"}
	brk := newTestBreaker(t, cfg, newFakeClock())

	for i := 0; i < cfg.FailureThreshold; i++ {
		brk.RecordFailure(errors.New("quota exceeded"), "RateLimitError")
	}
	assert.Equal(t, StateOpen, brk.State())
}

func TestUnknownCategoryCounts(t *testing.T) {
	brk := newTestBreaker(t, testConfig(), newFakeClock())
	failN(brk, 2)
	brk.RecordFailure(errors.New("boom"), "SomethingNew")
	assert.Equal(t, StateOpen, brk.State())
}

func TestCooldownThenHalfOpen(t *testing.T) {
	clock := newFakeClock()
	brk := newTestBreaker(t, testConfig(), clock)

	failN(brk, 3)
	require.Equal(t, StateOpen, brk.State())
	assert.Equal(t, 5*time.Second, brk.CooldownRemaining())

	clock.Advance(4 * time.Second)
	assert.False(t, brk.Allow(), "cooldown not yet elapsed")
	assert.Equal(t, StateOpen, brk.State())
	assert.Equal(t, time.Second, brk.CooldownRemaining())

	clock.Advance(time.Second)
	assert.True(t, brk.Allow(), "first probe after cooldown must pass")
	assert.Equal(t, StateHalfOpen, brk.State())
}

func TestHalfOpenProbeBudget(t *testing.T) {
	clock := newFakeClock()
	brk := newTestBreaker(t, testConfig(), clock)

	failN(brk, 3)
	clock.Advance(5 * time.Second)

	assert.True(t, brk.Allow())
	assert.True(t, brk.Allow())
	assert.True(t, brk.Allow())
	assert.False(t, brk.Allow(), "probe budget exhausted")
}

func TestHalfOpenRecoveryCloses(t *testing.T) {
	clock := newFakeClock()
	brk := newTestBreaker(t, testConfig(), clock)

	failN(brk, 3)
	clock.Advance(5 * time.Second)

	require.True(t, brk.Allow())
	brk.RecordSuccess(time.Millisecond)
	assert.Equal(t, StateHalfOpen, brk.State(), "one success below the close threshold")

	require.True(t, brk.Allow())
	brk.RecordSuccess(time.Millisecond)
	assert.Equal(t, StateClosed, brk.State())
	assert.True(t, brk.Allow())
}

func TestHalfOpenFailureExtendsCooldown(t *testing.T) {
	clock := newFakeClock()
	brk := newTestBreaker(t, testConfig(), clock)

	failN(brk, 3)
	assert.Equal(t, 5.0, brk.Stats().CurrentCooldownSeconds)

	clock.Advance(5 * time.Second)
	require.True(t, brk.Allow())
	brk.RecordFailure(errDown, CategoryConnection)

	assert.Equal(t, StateOpen, brk.State())
	assert.Equal(t, 10.0, brk.Stats().CurrentCooldownSeconds)

	clock.Advance(9 * time.Second)
	assert.False(t, brk.Allow(), "extended cooldown must be honored")
	clock.Advance(time.Second)
	assert.True(t, brk.Allow())
}

func TestCooldownCappedAtMax(t *testing.T) {
	cfg := testConfig()
	cfg.MaxCooldown = 12 * time.Second
	clock := newFakeClock()
	brk := newTestBreaker(t, cfg, clock)

	failN(brk, 3)
	// 反复探测失败: 5s → 10s → 12s(封顶) → 12s
	for _, want := range []float64{10, 12, 12} {
		clock.Advance(cfg.MaxCooldown)
		require.True(t, brk.Allow())
		brk.RecordFailure(errDown, CategoryConnection)
		assert.Equal(t, want, brk.Stats().CurrentCooldownSeconds)
	}
}

func TestRecoveryEasesCooldown(t *testing.T) {
	clock := newFakeClock()
	brk := newTestBreaker(t, testConfig(), clock)

	// 两次探测失败把冷却推到 20s
	failN(brk, 3)
	for i := 0; i < 2; i++ {
		clock.Advance(time.Minute)
		require.True(t, brk.Allow())
		brk.RecordFailure(errDown, CategoryConnection)
	}
	require.Equal(t, 20.0, brk.Stats().CurrentCooldownSeconds)

	// 恢复成功后冷却回落一档
	clock.Advance(time.Minute)
	require.True(t, brk.Allow())
	brk.RecordSuccess(0)
	require.True(t, brk.Allow())
	brk.RecordSuccess(0)
	require.Equal(t, StateClosed, brk.State())
	assert.Equal(t, 10.0, brk.Stats().CurrentCooldownSeconds)

	// 再次恢复回落到基础值，不会低于基础值
	failN(brk, 3)
	clock.Advance(time.Minute)
	require.True(t, brk.Allow())
	brk.RecordSuccess(0)
	require.True(t, brk.Allow())
	brk.RecordSuccess(0)
	assert.Equal(t, 5.0, brk.Stats().CurrentCooldownSeconds)
}

func TestSuccessWhileOpenReprobes(t *testing.T) {
	clock := newFakeClock()
	brk := newTestBreaker(t, testConfig(), clock)

	failN(brk, 3)
	require.Equal(t, StateOpen, brk.State())

	// Allow 之后其他并发调用打开了熔断，迟到的成功作为恢复信号
	brk.RecordSuccess(time.Millisecond)
	assert.Equal(t, StateHalfOpen, brk.State())
	assert.True(t, brk.Allow())
}

func TestReset(t *testing.T) {
	clock := newFakeClock()
	brk := newTestBreaker(t, testConfig(), clock)

	failN(brk, 3)
	require.Equal(t, StateOpen, brk.State())

	brk.Reset()
	assert.Equal(t, StateClosed, brk.State())
	assert.True(t, brk.Allow())

	stats := brk.Stats()
	assert.Equal(t, int64(0), stats.TotalCalls)
	assert.Equal(t, int64(0), stats.TotalTrips)
	assert.Equal(t, 0.0, stats.FailureRate)
	assert.Equal(t, 5.0, stats.CurrentCooldownSeconds, "cooldown back to base")
}

func TestStatsSnapshot(t *testing.T) {
	clock := newFakeClock()
	brk := newTestBreaker(t, testConfig(), clock)

	brk.RecordSuccess(time.Millisecond)
	failN(brk, 2)

	stats := brk.Stats()
	assert.Equal(t, "mcp-test", stats.BreakerID)
	assert.Equal(t, "closed", stats.State)
	assert.Equal(t, int64(3), stats.TotalCalls)
	assert.Equal(t, int64(1), stats.TotalSuccesses)
	assert.Equal(t, int64(2), stats.TotalFailures)
	assert.Equal(t, 2, stats.ConsecutiveFailures)
	assert.Equal(t, 3, stats.WindowObserved)
	assert.Equal(t, 10, stats.WindowCapacity)
	assert.InDelta(t, 2.0/3.0, stats.FailureRate, 1e-9)
	assert.Equal(t, clock.Now(), stats.LastFailureTime)
}

func TestConfigValidate(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Config)
		field  string
	}{
		{"zero failure threshold", func(c *Config) { c.FailureThreshold = 0 }, "failure_threshold"},
		{"negative rate", func(c *Config) { c.FailureRateThreshold = -0.1 }, "failure_rate_threshold"},
		{"rate too high", func(c *Config) { c.FailureRateThreshold = 1.5 }, "failure_rate_threshold"},
		{"zero window", func(c *Config) { c.RollingWindowSize = 0 }, "rolling_window_size"},
		{"zero base cooldown", func(c *Config) { c.BaseCooldown = 0 }, "base_cooldown"},
		{"max below base", func(c *Config) { c.MaxCooldown = time.Second }, "max_cooldown"},
		{"multiplier below one", func(c *Config) { c.CooldownMultiplier = 0.5 }, "cooldown_multiplier"},
		{"multiplier at one disables backoff", func(c *Config) { c.CooldownMultiplier = 1.0 }, "cooldown_multiplier"},
		{"zero half-open attempts", func(c *Config) { c.HalfOpenMaxAttempts = 0 }, "half_open_max_attempts"},
		{"zero success threshold", func(c *Config) { c.HalfOpenSuccessThreshold = 0 }, "half_open_success_threshold"},
		{"success threshold above attempts", func(c *Config) { c.HalfOpenSuccessThreshold = 5 }, "half_open_success_threshold"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := testConfig()
			tt.mutate(cfg)
			err := cfg.Validate()
			require.Error(t, err)
			assert.ErrorIs(t, err, ErrInvalidConfig)

			var cfgErr *ConfigError
			require.ErrorAs(t, err, &cfgErr)
			assert.Equal(t, tt.field, cfgErr.Field)
		})
	}

	assert.NoError(t, DefaultConfig().Validate())

	// 失败率阈值的两个端点都合法
	edge := testConfig()
	edge.FailureRateThreshold = 0.0
	assert.NoError(t, edge.Validate())
	edge.FailureRateThreshold = 1.0
	assert.NoError(t, edge.Validate())
}

func TestUpdateConfig(t *testing.T) {
	clock := newFakeClock()
	brk := newTestBreaker(t, testConfig(), clock)

	bad := testConfig()
	bad.FailureThreshold = 0
	err := brk.UpdateConfig(bad)
	require.ErrorIs(t, err, ErrInvalidConfig)

	// 校验失败后原配置继续生效
	failN(brk, 3)
	assert.Equal(t, StateOpen, brk.State())

	brk.Reset()
	tight := testConfig()
	tight.FailureThreshold = 1
	require.NoError(t, brk.UpdateConfig(tight))

	failN(brk, 1)
	assert.Equal(t, StateOpen, brk.State())
}

func TestUpdateConfigResizesWindow(t *testing.T) {
	clock := newFakeClock()
	brk := newTestBreaker(t, testConfig(), clock)

	failN(brk, 2)
	require.Equal(t, 2, brk.Stats().WindowObserved)

	resized := testConfig()
	resized.RollingWindowSize = 50
	require.NoError(t, brk.UpdateConfig(resized))

	stats := brk.Stats()
	assert.Equal(t, 50, stats.WindowCapacity)
	assert.Equal(t, 0, stats.WindowObserved, "resize rebuilds the window")
}

func TestNewBreakerValidation(t *testing.T) {
	_, err := NewBreaker("", testConfig())
	assert.ErrorIs(t, err, ErrKeyEmpty)

	bad := testConfig()
	bad.RollingWindowSize = -1
	_, err = NewBreaker("x", bad)
	assert.ErrorIs(t, err, ErrInvalidConfig)

	brk, err := NewBreaker("x", nil)
	require.NoError(t, err)
	assert.Equal(t, StateClosed, brk.State())
}

func TestStateString(t *testing.T) {
	assert.Equal(t, "closed", StateClosed.String())
	assert.Equal(t, "half_open", StateHalfOpen.String())
	assert.Equal(t, "open", StateOpen.String())
	assert.Equal(t, "unknown", State(99).String())
}

func TestBreakerConcurrentRecording(t *testing.T) {
	// 失败全部使用被忽略的类别，保证熔断器始终闭合，只验证计数守恒
	brk := newTestBreaker(t, testConfig(), newFakeClock())

	const goroutines = 8
	const perG = 500

	var wg sync.WaitGroup
	for g := 0; g < goroutines; g++ {
		wg.Add(1)
		go func(g int) {
			defer wg.Done()
			for i := 0; i < perG; i++ {
				assert.True(t, brk.Allow())
				if (g+i)%2 == 0 {
					brk.RecordSuccess(0)
				} else {
					brk.RecordFailure(errDown, CategoryClientError)
				}
			}
		}(g)
	}
	wg.Wait()

	stats := brk.Stats()
	assert.Equal(t, StateClosed, brk.State())
	assert.Equal(t, int64(goroutines*perG), stats.TotalCalls)
	assert.Equal(t, stats.TotalCalls, stats.TotalSuccesses+stats.TotalFailures)
}
