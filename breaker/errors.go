package breaker

import (
	"fmt"
	"net/http"
	"time"

	"github.com/codingjam/bridge-mcp/xerrors"
)

// 预定义错误
var (
	// ErrOpenState 熔断器处于打开状态，调用被拒绝
	ErrOpenState = xerrors.New("breaker: circuit is open")
	// ErrInvalidConfig 配置不合法
	ErrInvalidConfig = xerrors.New("breaker: invalid config")
	// ErrKeyEmpty 熔断键为空
	ErrKeyEmpty = xerrors.New("breaker: key cannot be empty")
	// ErrNilOperation 被保护的函数为 nil
	ErrNilOperation = xerrors.New("breaker: operation cannot be nil")
)

// OpenError 熔断打开时 Execute 返回的错误，携带重试元信息
//
// 网关可据此构造 503 响应和 Retry-After 响应头：
//
//	var openErr *breaker.OpenError
//	if errors.As(err, &openErr) {
//		w.Header().Set("Retry-After", strconv.Itoa(int(openErr.RetryAfter().Seconds())))
//		w.WriteHeader(openErr.HTTPStatus())
//	}
type OpenError struct {
	// Key 触发熔断的服务键
	Key string
	// CooldownRemaining 距离下次探测机会的剩余时长
	CooldownRemaining time.Duration
	// FailureRate 当前滑动窗口失败率
	FailureRate float64
	// TotalFailures 累计失败次数
	TotalFailures int64
	// LastFailure 最近一次失败时间，零值表示尚未失败过
	LastFailure time.Time
}

// Error 实现 error 接口
func (e *OpenError) Error() string {
	return fmt.Sprintf("breaker: circuit open for %q, retry after %s (failure rate %.2f)",
		e.Key, e.RetryAfter().Round(time.Millisecond), e.FailureRate)
}

// Unwrap 支持 errors.Is(err, ErrOpenState)
func (e *OpenError) Unwrap() error {
	return ErrOpenState
}

// RetryAfter 返回建议的重试等待时长，冷却已过期时为 0
func (e *OpenError) RetryAfter() time.Duration {
	if e.CooldownRemaining < 0 {
		return 0
	}
	return e.CooldownRemaining
}

// HTTPStatus 返回对应的 HTTP 状态码 (503)
func (e *OpenError) HTTPStatus() int {
	return http.StatusServiceUnavailable
}

// IsOpen 判断错误是否由熔断打开导致
func IsOpen(err error) bool {
	return xerrors.Is(err, ErrOpenState)
}

// ConfigError 配置校验错误，指明第一个不合法的字段
type ConfigError struct {
	// Field 字段名（与配置文件中的键一致）
	Field string
	// Value 不合法的字段值
	Value any
	// Reason 不合法的原因
	Reason string
}

func newConfigError(field string, value any, reason string) *ConfigError {
	return &ConfigError{Field: field, Value: value, Reason: reason}
}

// Error 实现 error 接口
func (e *ConfigError) Error() string {
	return fmt.Sprintf("breaker: invalid config field %s (=%v): %s", e.Field, e.Value, e.Reason)
}

// Unwrap 支持 errors.Is(err, ErrInvalidConfig)
func (e *ConfigError) Unwrap() error {
	return ErrInvalidConfig
}
