package breaker

import "time"

// Clock 时间源抽象，测试中可注入假时钟精确控制冷却推进
type Clock interface {
	Now() time.Time
}

type realClock struct{}

func (realClock) Now() time.Time {
	return time.Now()
}
