// Package driver 把语料读取、训练、评分与评估串成完整的作业：
// 从语料训练并写出模型，按分片并行分类测试集，合并各分片的混淆矩阵.
package driver

import (
	"context"

	"github.com/wyfcoding/bayes/bayes"
	"github.com/wyfcoding/bayes/config"
	"github.com/wyfcoding/bayes/logging"
	"github.com/wyfcoding/bayes/metrics"
	"github.com/wyfcoding/bayes/retry"
)

// OutputSuffix 分片结果目录相对测试目录的后缀.
const OutputSuffix = "-output"

type options struct {
	logger  *logging.Logger
	metrics *metrics.Metrics
	retry   retry.Config
	sink    Sink
}

// Option 定义作业配置选项.
type Option func(*options)

// WithLogger 设置日志.
func WithLogger(l *logging.Logger) Option {
	return func(o *options) {
		if l != nil {
			o.logger = l
		}
	}
}

// WithMetrics 设置指标采集器.
func WithMetrics(m *metrics.Metrics) Option {
	return func(o *options) { o.metrics = m }
}

// WithRetryConfig 覆盖分片重试的退避策略，MaxRetries 仍由 shardRetries 参数决定.
func WithRetryConfig(cfg retry.Config) Option {
	return func(o *options) { o.retry = cfg }
}

// WithSink 在写分片文件的同时把部分结果推送到 sink.
func WithSink(s Sink) Option {
	return func(o *options) { o.sink = s }
}

func newOptions(opts []Option) *options {
	o := &options{logger: logging.Default(), retry: retry.DefaultRetryConfig()}
	for _, opt := range opts {
		opt(o)
	}
	return o
}

// algorithmFromParams 按 classifierType、alpha_i 与 unknownFeatures 构造评分算法.
func algorithmFromParams(params *config.Parameters) (bayes.Algorithm, bayes.Mode, error) {
	mode, err := bayes.ParseMode(params.StringOr(config.KeyClassifierType, "bayes"))
	if err != nil {
		return nil, mode, err
	}
	alpha, err := params.Float(config.KeyAlpha)
	if err != nil {
		return nil, mode, err
	}
	policy, err := bayes.ParseUnknownFeaturePolicy(params.StringOr(config.KeyUnknownFeatures, "skip"))
	if err != nil {
		return nil, mode, err
	}
	alg, err := bayes.NewAlgorithm(mode, alpha, bayes.WithUnknownFeatures(policy))
	return alg, mode, err
}

// NewClassifierContext 按参数表构造评分算法并返回已初始化的分类上下文.
func NewClassifierContext(ctx context.Context, params *config.Parameters, ds bayes.Datastore, opts ...Option) (*bayes.ClassifierContext, error) {
	o := newOptions(opts)
	alg, _, err := algorithmFromParams(params)
	if err != nil {
		return nil, err
	}
	cc := bayes.NewClassifierContext(alg, ds, bayes.WithLogger(o.logger), bayes.WithMetrics(o.metrics))
	if err := cc.Initialize(ctx); err != nil {
		return nil, err
	}
	return cc, nil
}
