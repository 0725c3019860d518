// Package bootstrap 按配置初始化命令行作业所需的基础设施：日志、指标、链路追踪，
// 以及 dataSource 对应的模型存储后端和语料存储.
package bootstrap

import (
	"context"
	"path/filepath"
	"slices"

	"github.com/wyfcoding/bayes/breaker"
	"github.com/wyfcoding/bayes/cache"
	"github.com/wyfcoding/bayes/config"
	"github.com/wyfcoding/bayes/logging"
	"github.com/wyfcoding/bayes/metrics"
	"github.com/wyfcoding/bayes/modelstore"
	"github.com/wyfcoding/bayes/redis"
	"github.com/wyfcoding/bayes/storage"
	"github.com/wyfcoding/bayes/tracing"
)

// Runtime 持有一次作业的基础设施，Close 按初始化的逆序释放资源.
type Runtime struct {
	Service string
	Version string
	Config  *config.Config
	Logger  *logging.Logger
	Metrics *metrics.Metrics

	minio   *storage.MinIOClient
	closers []func()
}

// New 根据已加载的配置初始化日志、指标与追踪.
func New(ctx context.Context, service, version string, cfg *config.Config) (*Runtime, error) {
	logging.InitLogger(cfg.LoggingConfig(service))
	r := &Runtime{
		Service: service,
		Version: version,
		Config:  cfg,
		Logger:  logging.Default().WithModule("bootstrap"),
		Metrics: metrics.NewMetrics(service),
	}
	r.Metrics.RegisterBuildInfo(version, cfg.Bayes.ClassifierType)

	if cfg.Metrics.Enabled && cfg.Metrics.Port != "" {
		r.closers = append(r.closers, r.Metrics.ExposeHttp(cfg.Metrics.Port))
		r.Logger.InfoContext(ctx, "metrics endpoint exposed", "port", cfg.Metrics.Port)
	}

	tc := cfg.Tracing
	if tc.ServiceName == "" {
		tc.ServiceName = service
	}
	shutdown, err := tracing.InitTracer(ctx, tc)
	if err != nil {
		r.Logger.ErrorContext(ctx, "failed to init tracer", "error", err)
	} else {
		r.closers = append(r.closers, func() {
			if err := shutdown(context.Background()); err != nil {
				r.Logger.Error("failed to shutdown tracer", "error", err)
			}
		})
	}
	return r, nil
}

// Objects 返回语料与分片结果所在的存储：dataSource 为 minio 时使用对象存储，
// 否则为以根目录为起点的本机文件系统.
func (r *Runtime) Objects() (storage.Storage, error) {
	if r.Config.Bayes.DataSource != "minio" {
		return storage.NewFileStorage(nil, "/"), nil
	}
	if r.minio == nil {
		c, err := storage.NewMinIOClient(r.Config.Minio)
		if err != nil {
			return nil, err
		}
		storage.RegisterReloadHook(c)
		r.minio = c
	}
	return r.minio, nil
}

// Path 把本地相对路径解析为绝对路径，对象存储路径原样返回.
func (r *Runtime) Path(p string) string {
	if p == "" || r.Config.Bayes.DataSource == "minio" {
		return p
	}
	abs, err := filepath.Abs(p)
	if err != nil {
		return p
	}
	return filepath.ToSlash(abs)
}

// Store 按 dataSource 创建模型存储后端.
func (r *Runtime) Store(ctx context.Context, params *config.Parameters) (modelstore.Store, error) {
	deps := modelstore.Deps{Logger: logging.Default().WithModule("modelstore")}

	switch params.StringOr(config.KeyDataSource, "file") {
	case "file":
		params.Set(config.KeyBasePath, r.Path(params.StringOr(config.KeyBasePath, "")))
	case "minio":
		objects, err := r.Objects()
		if err != nil {
			return nil, err
		}
		deps.Objects = objects
	case "redis":
		client, cleanup, err := redis.NewClient(ctx, r.Config.Redis, r.Metrics, deps.Logger)
		if err != nil {
			return nil, err
		}
		r.closers = append(r.closers, cleanup)

		counts, err := cache.NewCountCache(ctx, r.Config.BigCache, r.Metrics)
		if err != nil {
			return nil, err
		}
		r.closers = append(r.closers, func() { _ = counts.Close() })

		deps.Redis = client
		deps.Cache = counts
		deps.Breaker = breaker.NewBreaker(breaker.Settings{
			Name:   "redis-datastore",
			Config: r.Config.CircuitBreaker,
			Logger: deps.Logger,
		}, r.Metrics)
	}
	return modelstore.New(params, deps)
}

// Close 释放全部资源.
func (r *Runtime) Close() {
	for _, c := range slices.Backward(r.closers) {
		c()
	}
	r.closers = nil
}
