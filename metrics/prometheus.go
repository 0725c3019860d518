// Package metrics 封装分类器的 Prometheus 指标注册表与预定义采集器.
package metrics

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics 封装了独立的 Prometheus 注册表及训练、分类、评估阶段的标准指标。
// 所有方法对 nil 接收者安全，未注入指标时调用方无需判空.
type Metrics struct {
	registry *prometheus.Registry // 内部独立的 Prometheus 注册中心

	DocumentsTrained    *prometheus.CounterVec   // 训练文档数 (维度: label)
	DocumentsClassified *prometheus.CounterVec   // 分类文档数 (维度: algorithm)
	ClassifyDuration    *prometheus.HistogramVec // 单文档分类耗时 (维度: algorithm)
	ShardDuration       *prometheus.HistogramVec // 分片分类耗时 (维度: status)
	ShardAttempts       *prometheus.CounterVec   // 分片执行次数 (维度: status)
	ConfusionInstances  *prometheus.CounterVec   // 混淆矩阵记录数 (维度: outcome)
	BreakerState        *prometheus.GaugeVec     // 熔断器状态 (维度: name)
	CacheRequests       *prometheus.CounterVec   // 本地计数缓存查询 (维度: result)
	RedisCommands       *prometheus.CounterVec   // Redis 命令数 (维度: command, status)
	RedisDuration       *prometheus.HistogramVec // Redis 命令耗时 (维度: command)
	BuildInfo           *prometheus.GaugeVec
}

// NewMetrics 初始化并返回一个新的指标采集器，自动注册 Go 运行时与进程指标。
func NewMetrics(serviceName string) *Metrics {
	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector())
	reg.MustRegister(collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))

	m := &Metrics{registry: reg}

	m.DocumentsTrained = m.NewCounterVec(prometheus.CounterOpts{
		Name: "bayes_documents_trained_total",
		Help: "Total number of documents consumed by training",
	}, []string{"label"})

	m.DocumentsClassified = m.NewCounterVec(prometheus.CounterOpts{
		Name: "bayes_documents_classified_total",
		Help: "Total number of documents classified",
	}, []string{"algorithm"})

	m.ClassifyDuration = m.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "bayes_classify_duration_seconds",
		Help:    "Per-document classification latency in seconds",
		Buckets: prometheus.ExponentialBuckets(0.00005, 4, 8),
	}, []string{"algorithm"})

	m.ShardDuration = m.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "bayes_shard_duration_seconds",
		Help:    "Time spent classifying one shard",
		Buckets: prometheus.DefBuckets,
	}, []string{"status"})

	m.ShardAttempts = m.NewCounterVec(prometheus.CounterOpts{
		Name: "bayes_shard_attempts_total",
		Help: "Shard classification attempts by outcome",
	}, []string{"status"})

	m.ConfusionInstances = m.NewCounterVec(prometheus.CounterOpts{
		Name: "bayes_confusion_instances_total",
		Help: "Instances recorded by the result analyzer",
	}, []string{"outcome"})

	m.BreakerState = m.NewGaugeVec(prometheus.GaugeOpts{
		Name: "bayes_circuit_breaker_state",
		Help: "Circuit breaker state (0: Closed, 1: Half-Open, 2: Open)",
	}, []string{"name"})

	m.CacheRequests = m.NewCounterVec(prometheus.CounterOpts{
		Name: "bayes_count_cache_requests_total",
		Help: "Local count cache lookups by result",
	}, []string{"result"})

	m.RedisCommands = m.NewCounterVec(prometheus.CounterOpts{
		Name: "bayes_redis_commands_total",
		Help: "Redis commands issued by the remote datastore",
	}, []string{"command", "status"})

	m.RedisDuration = m.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "bayes_redis_command_duration_seconds",
		Help:    "Redis command latency in seconds",
		Buckets: prometheus.DefBuckets,
	}, []string{"command"})

	slog.Info("classifier metrics registry initialized", "service", serviceName)
	return m
}

// NewCounterVec 创建并注册一个新的计数器指标。
func (m *Metrics) NewCounterVec(opts prometheus.CounterOpts, labelNames []string) *prometheus.CounterVec {
	cv := prometheus.NewCounterVec(opts, labelNames)
	m.registry.MustRegister(cv)
	return cv
}

// NewGaugeVec 创建并注册一个新的仪表盘指标。
func (m *Metrics) NewGaugeVec(opts prometheus.GaugeOpts, labelNames []string) *prometheus.GaugeVec {
	gv := prometheus.NewGaugeVec(opts, labelNames)
	m.registry.MustRegister(gv)
	return gv
}

// NewHistogramVec 创建并注册一个新的直方图指标。
func (m *Metrics) NewHistogramVec(opts prometheus.HistogramOpts, labelNames []string) *prometheus.HistogramVec {
	hv := prometheus.NewHistogramVec(opts, labelNames)
	m.registry.MustRegister(hv)
	return hv
}

// Registry 返回底层注册表，测试中用于读取指标值.
func (m *Metrics) Registry() *prometheus.Registry {
	return m.registry
}

// ObserveTrained 记录一篇训练文档.
func (m *Metrics) ObserveTrained(label string) {
	if m == nil {
		return
	}
	m.DocumentsTrained.WithLabelValues(label).Inc()
}

// ObserveClassified 记录一次分类及其耗时.
func (m *Metrics) ObserveClassified(algorithm string, elapsed time.Duration) {
	if m == nil {
		return
	}
	m.DocumentsClassified.WithLabelValues(algorithm).Inc()
	m.ClassifyDuration.WithLabelValues(algorithm).Observe(elapsed.Seconds())
}

// ObserveShard 记录一次分片执行.
func (m *Metrics) ObserveShard(status string, elapsed time.Duration) {
	if m == nil {
		return
	}
	m.ShardAttempts.WithLabelValues(status).Inc()
	m.ShardDuration.WithLabelValues(status).Observe(elapsed.Seconds())
}

// ObserveInstance 记录一条评估实例，outcome 为 correct 或 incorrect.
func (m *Metrics) ObserveInstance(outcome string) {
	if m == nil {
		return
	}
	m.ConfusionInstances.WithLabelValues(outcome).Inc()
}

// ObserveBreakerState 记录熔断器状态变化.
func (m *Metrics) ObserveBreakerState(name string, state int) {
	if m == nil {
		return
	}
	m.BreakerState.WithLabelValues(name).Set(float64(state))
}

// ObserveCache 记录一次本地缓存查询，hit 为是否命中.
func (m *Metrics) ObserveCache(hit bool) {
	if m == nil {
		return
	}
	result := "miss"
	if hit {
		result = "hit"
	}
	m.CacheRequests.WithLabelValues(result).Inc()
}

// ObserveRedis 记录一次 Redis 命令.
func (m *Metrics) ObserveRedis(command, status string, elapsed time.Duration) {
	if m == nil {
		return
	}
	m.RedisCommands.WithLabelValues(command, status).Inc()
	m.RedisDuration.WithLabelValues(command).Observe(elapsed.Seconds())
}

// Handler 返回用于暴露指标的 HTTP 处理器。
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

// ExposeHttp 在指定端口启动一个独立的 HTTP 服务器用于暴露指标数据。
// 返回一个清理函数用于优雅关闭该服务器。
func (m *Metrics) ExposeHttp(port string) func() {
	srv := &http.Server{
		Addr:              ":" + port,
		Handler:           m.Handler(),
		ReadHeaderTimeout: 5 * time.Second,
	}
	go func() {
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			slog.Error("metrics server error", "error", err)
		}
	}()
	return func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := srv.Shutdown(ctx); err != nil {
			slog.Error("failed to shutdown metrics server", "error", err)
		}
	}
}
