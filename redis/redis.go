// Package redis 创建远端计数存储使用的 go-redis 客户端.
// 每条命令都会记录指标与 Span，慢命令额外输出告警日志.
package redis

import (
	"context"
	"errors"
	"net"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/wyfcoding/bayes/config"
	"github.com/wyfcoding/bayes/logging"
	"github.com/wyfcoding/bayes/metrics"
	"github.com/wyfcoding/bayes/tracing"
	"github.com/wyfcoding/bayes/xerrors"
)

// Client 是 redis.Client 的别名.
type Client = redis.Client

// ErrUnavailable Redis 无法连接.
var ErrUnavailable = xerrors.New(xerrors.ErrUnavailable, 503901, "redis unavailable", "", nil)

// SlowCommand 超过该耗时的命令记为慢命令.
const SlowCommand = 50 * time.Millisecond

// observer 为计数查询记录指标与追踪.
type observer struct {
	metrics *metrics.Metrics
	logger  *logging.Logger
}

func (o *observer) DialHook(next redis.DialHook) redis.DialHook {
	return func(ctx context.Context, network, addr string) (net.Conn, error) {
		conn, err := next(ctx, network, addr)
		if err != nil {
			o.logger.WarnContext(ctx, "redis dial failed", "addr", addr, "error", err)
		}
		return conn, err
	}
}

func (o *observer) ProcessHook(next redis.ProcessHook) redis.ProcessHook {
	return func(ctx context.Context, cmd redis.Cmder) (err error) {
		ctx, span := tracing.StartSpan(ctx, "redis."+cmd.Name())
		defer func() {
			if status(err) == "error" {
				tracing.SetError(span, err)
			}
			span.End()
		}()
		start := time.Now()
		err = next(ctx, cmd)
		o.observe(ctx, cmd.Name(), err, time.Since(start))
		return err
	}
}

func (o *observer) ProcessPipelineHook(next redis.ProcessPipelineHook) redis.ProcessPipelineHook {
	return func(ctx context.Context, cmds []redis.Cmder) error {
		start := time.Now()
		err := next(ctx, cmds)
		o.observe(ctx, "pipeline", err, time.Since(start))
		return err
	}
}

func (o *observer) observe(ctx context.Context, name string, err error, elapsed time.Duration) {
	o.metrics.ObserveRedis(name, status(err), elapsed)
	if elapsed > SlowCommand {
		o.logger.WarnContext(ctx, "slow redis command", "command", name, "duration", elapsed)
	}
}

// status 把 redis.Nil 视为成功：缺失的计数就是 0.
func status(err error) string {
	if err != nil && !errors.Is(err, redis.Nil) {
		return "error"
	}
	return "success"
}

// NewClient 按配置连接 Redis 并确认可用，返回客户端与关闭函数.
func NewClient(ctx context.Context, cfg config.RedisConfig, m *metrics.Metrics, logger *logging.Logger) (*redis.Client, func(), error) {
	if cfg.Addr == "" {
		return nil, nil, config.ErrMissingKey.WithDetail("redis addr is required")
	}
	if logger == nil {
		logger = logging.Default()
	}
	logger = logger.WithModule("redis")

	client := redis.NewClient(&redis.Options{
		Addr:         cfg.Addr,
		Password:     cfg.Password,
		DB:           cfg.DB,
		PoolSize:     cfg.PoolSize,
		ReadTimeout:  cfg.ReadTimeout,
		WriteTimeout: cfg.WriteTimeout,
	})
	client.AddHook(&observer{metrics: m, logger: logger})

	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := client.Ping(pingCtx).Err(); err != nil {
		_ = client.Close()
		return nil, nil, ErrUnavailable.WithDetail("ping %s", cfg.Addr).WithCause(err)
	}
	logger.InfoContext(ctx, "connected to redis", "addr", cfg.Addr, "db", cfg.DB)

	return client, func() {
		if err := client.Close(); err != nil {
			logger.Error("close redis client", "error", err)
		}
	}, nil
}
