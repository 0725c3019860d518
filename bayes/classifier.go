package bayes

import (
	"context"
	"fmt"
	"slices"
	"sync"
	"sync/atomic"
	"time"

	"github.com/wyfcoding/bayes/logging"
	"github.com/wyfcoding/bayes/metrics"
)

// ClassifierResult 一次分类的结果：预测类别及其分数.
type ClassifierResult struct {
	Label string  `json:"label"`
	Score float64 `json:"score"`
}

func (r ClassifierResult) String() string {
	return fmt.Sprintf("ClassifierResult{category=%s, score=%g}", r.Label, r.Score)
}

// ClassifierContext 调度评分：对每个已知类别调用 Algorithm 并按其方向排序.
// 生命周期为 未初始化 -> 就绪；Initialize 之后可被多个 goroutine 并发使用.
type ClassifierContext struct {
	algorithm Algorithm
	datastore Datastore

	mu     sync.Mutex
	ready  atomic.Bool
	labels []string

	logger  *logging.Logger
	metrics *metrics.Metrics
}

// ContextOption 定义分类上下文配置选项.
type ContextOption func(*ClassifierContext)

// WithLogger 设置分类日志.
func WithLogger(l *logging.Logger) ContextOption {
	return func(c *ClassifierContext) {
		if l != nil {
			c.logger = l
		}
	}
}

// WithMetrics 注入指标采集器.
func WithMetrics(m *metrics.Metrics) ContextOption {
	return func(c *ClassifierContext) {
		c.metrics = m
	}
}

// NewClassifierContext 绑定评分算法与只读数据存储。调用方仍需执行 Initialize.
func NewClassifierContext(algorithm Algorithm, datastore Datastore, opts ...ContextOption) *ClassifierContext {
	c := &ClassifierContext{
		algorithm: algorithm,
		datastore: datastore,
		logger:    logging.Default(),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Initialize 从数据存储读取完整类别集合，只能调用一次.
func (c *ClassifierContext) Initialize(ctx context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.ready.Load() {
		return ErrAlreadyInitialized
	}
	if c.algorithm == nil || c.datastore == nil {
		return ErrInvalidDatastore.WithDetail("algorithm and datastore are required")
	}
	labels, err := c.datastore.Labels(ctx)
	if err != nil {
		return fmt.Errorf("load labels: %w", err)
	}
	if len(labels) == 0 {
		return ErrInvalidDatastore.WithDetail("datastore has no labels")
	}
	c.labels = labels
	c.ready.Store(true)

	c.logger.DebugContext(ctx, "classifier context initialized", "algorithm", c.algorithm.Name(), "labels", len(labels))
	return nil
}

// Labels 返回已知类别的副本，顺序即枚举顺序.
func (c *ClassifierContext) Labels() ([]string, error) {
	if !c.ready.Load() {
		return nil, ErrInvalidDatastore.WithDetail("classifier context is not initialized")
	}
	return slices.Clone(c.labels), nil
}

// Algorithm 返回绑定的评分算法.
func (c *ClassifierContext) Algorithm() Algorithm {
	return c.algorithm
}

// ClassifyDocument 返回最匹配的类别。特征为空时返回默认类别与算法的哨兵分数.
// 分数相同时取枚举顺序靠前的类别.
func (c *ClassifierContext) ClassifyDocument(ctx context.Context, features []string, defaultCategory string) (ClassifierResult, error) {
	if !c.ready.Load() {
		return ClassifierResult{}, ErrInvalidDatastore.WithDetail("classifier context is not initialized")
	}
	if len(features) == 0 {
		return ClassifierResult{Label: defaultCategory, Score: c.algorithm.Worst()}, nil
	}

	start := time.Now()
	dir := c.algorithm.Direction()
	best := ClassifierResult{Label: defaultCategory, Score: c.algorithm.Worst()}
	found := false
	for _, label := range c.labels {
		score, err := c.algorithm.Score(ctx, c.datastore, label, features)
		if err != nil {
			return ClassifierResult{}, fmt.Errorf("score label %q: %w", label, err)
		}
		if !found || dir.Better(score, best.Score) {
			best = ClassifierResult{Label: label, Score: score}
			found = true
		}
	}
	c.metrics.ObserveClassified(c.algorithm.Name(), time.Since(start))
	return best, nil
}

// ClassifyDocumentTopK 返回按算法方向排序的前 k 个结果.
// k 超过类别数时返回全部类别；分数相同时保持类别枚举顺序.
func (c *ClassifierContext) ClassifyDocumentTopK(ctx context.Context, features []string, defaultCategory string, k int) ([]ClassifierResult, error) {
	if !c.ready.Load() {
		return nil, ErrInvalidDatastore.WithDetail("classifier context is not initialized")
	}
	if k < 1 {
		return nil, ErrInvalidInput.WithDetail("k must be positive, got %d", k)
	}
	if len(features) == 0 {
		return []ClassifierResult{{Label: defaultCategory, Score: c.algorithm.Worst()}}, nil
	}

	start := time.Now()
	results := make([]ClassifierResult, 0, len(c.labels))
	for _, label := range c.labels {
		score, err := c.algorithm.Score(ctx, c.datastore, label, features)
		if err != nil {
			return nil, fmt.Errorf("score label %q: %w", label, err)
		}
		results = append(results, ClassifierResult{Label: label, Score: score})
	}

	dir := c.algorithm.Direction()
	slices.SortStableFunc(results, func(a, b ClassifierResult) int {
		return dir.Compare(a.Score, b.Score)
	})
	c.metrics.ObserveClassified(c.algorithm.Name(), time.Since(start))

	if k < len(results) {
		results = results[:k]
	}
	return results, nil
}
