// Package breaker 用 gobreaker 保护远端计数存储的点查询.
// Redis 不可用时分类快速失败，由分片重试接管，而不是让每个特征查询各自超时.
package breaker

import (
	"errors"

	"github.com/sony/gobreaker"

	"github.com/wyfcoding/bayes/config"
	"github.com/wyfcoding/bayes/logging"
	"github.com/wyfcoding/bayes/metrics"
	"github.com/wyfcoding/bayes/xerrors"
)

// ErrServiceUnavailable 熔断器处于打开或半开限流状态.
var ErrServiceUnavailable = xerrors.New(xerrors.ErrUnavailable, 503701, "service unavailable", "circuit breaker is open", nil)

const (
	defaultFailureRatio = 0.5
	defaultMinRequests  = 5
)

// Settings 熔断器参数，Config.Enabled 为 false 时 Breaker 直接放行.
type Settings struct {
	Name         string
	Config       config.CircuitBreakerConfig
	FailureRatio float64
	MinRequests  uint32
	// IsSuccessful 判定某个错误是否不计入失败.
	IsSuccessful func(err error) bool
	Logger       *logging.Logger
}

// Breaker 可为 nil，nil 或未启用时等同于直接调用.
type Breaker struct {
	name string
	cb   *gobreaker.CircuitBreaker
}

// NewBreaker 按 Settings 创建熔断器，状态变化写入日志与 bayes_breaker_state 指标.
func NewBreaker(st Settings, m *metrics.Metrics) *Breaker {
	b := &Breaker{name: st.Name}
	if !st.Config.Enabled {
		return b
	}
	logger := st.Logger
	if logger == nil {
		logger = logging.Default()
	}

	b.cb = gobreaker.NewCircuitBreaker(gobreaker.Settings{
		Name:         st.Name,
		MaxRequests:  st.Config.MaxRequests,
		Interval:     st.Config.Interval,
		Timeout:      st.Config.Timeout,
		IsSuccessful: st.IsSuccessful,
		ReadyToTrip:  tripOnRatio(st.FailureRatio, st.MinRequests),
		OnStateChange: func(name string, from, to gobreaker.State) {
			logger.Warn("circuit breaker state changed", "name", name, "from", from.String(), "to", to.String())
			m.ObserveBreakerState(name, int(to))
		},
	})
	return b
}

// tripOnRatio 在窗口内请求数达到 minRequests 且失败率不低于 ratio 时打开熔断.
func tripOnRatio(ratio float64, minRequests uint32) func(gobreaker.Counts) bool {
	if ratio <= 0 {
		ratio = defaultFailureRatio
	}
	if minRequests == 0 {
		minRequests = defaultMinRequests
	}
	return func(c gobreaker.Counts) bool {
		return c.Requests >= minRequests && float64(c.TotalFailures)/float64(c.Requests) >= ratio
	}
}

// State 返回当前状态，未启用时视为关闭.
func (b *Breaker) State() gobreaker.State {
	if b == nil || b.cb == nil {
		return gobreaker.StateClosed
	}
	return b.cb.State()
}

// Execute 在熔断保护下执行 fn，被拒绝的调用返回 ErrServiceUnavailable.
func Execute[T any](b *Breaker, fn func() (T, error)) (T, error) {
	if b == nil || b.cb == nil {
		return fn()
	}

	var out T
	_, err := b.cb.Execute(func() (any, error) {
		v, err := fn()
		out = v
		return nil, err
	})
	switch {
	case errors.Is(err, gobreaker.ErrOpenState), errors.Is(err, gobreaker.ErrTooManyRequests):
		var zero T
		return zero, ErrServiceUnavailable.WithDetail("breaker %q", b.name).WithCause(err)
	case err != nil:
		var zero T
		return zero, err
	}
	return out, nil
}
