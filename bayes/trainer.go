package bayes

import (
	"context"
	"iter"
	"slices"

	"github.com/wyfcoding/bayes/logging"
	"github.com/wyfcoding/bayes/metrics"
)

// Trainer 单遍累计带标签的特征序列，Finish 后冻结为 Model.
// Trainer 不是并发安全的，每个训练会话独占一个实例.
type Trainer struct {
	mode  Mode
	alpha float64

	labels        []string
	labelIndex    map[string]int
	docCounts     []int64
	features      []string
	vocab         map[string]int
	featureTotals []int64
	counts        []map[int]int64
	classTotals   []int64
	corpusWords   int64
	totalDocs     int64
	finished      bool

	logger  *logging.Logger
	metrics *metrics.Metrics
}

// TrainerOption 定义训练器配置选项.
type TrainerOption func(*Trainer)

// WithTrainerLogger 设置训练日志.
func WithTrainerLogger(l *logging.Logger) TrainerOption {
	return func(t *Trainer) {
		if l != nil {
			t.logger = l
		}
	}
}

// WithTrainerMetrics 注入指标采集器.
func WithTrainerMetrics(m *metrics.Metrics) TrainerOption {
	return func(t *Trainer) {
		t.metrics = m
	}
}

// NewTrainer 创建指定模式的训练器.
func NewTrainer(mode Mode, alpha float64, opts ...TrainerOption) (*Trainer, error) {
	if !(alpha > 0) {
		return nil, ErrInvalidAlpha.WithContext("alpha", alpha)
	}
	t := &Trainer{
		mode:       mode,
		alpha:      alpha,
		labelIndex: make(map[string]int),
		vocab:      make(map[string]int),
		logger:     logging.Default(),
	}
	for _, opt := range opts {
		opt(t)
	}
	return t, nil
}

// Add 累计一篇文档。没有特征的文档只计入文档数.
func (t *Trainer) Add(label string, features []string) error {
	if t.finished {
		return ErrTrainerFinished
	}
	if label == "" {
		return ErrInvalidInput.WithDetail("document label must not be empty")
	}

	c, ok := t.labelIndex[label]
	if !ok {
		c = len(t.labels)
		t.labelIndex[label] = c
		t.labels = append(t.labels, label)
		t.docCounts = append(t.docCounts, 0)
		t.counts = append(t.counts, make(map[int]int64))
		t.classTotals = append(t.classTotals, 0)
	}

	t.docCounts[c]++
	t.totalDocs++
	for _, feature := range features {
		f, ok := t.vocab[feature]
		if !ok {
			f = len(t.features)
			t.vocab[feature] = f
			t.features = append(t.features, feature)
			t.featureTotals = append(t.featureTotals, 0)
		}
		t.counts[c][f]++
		t.featureTotals[f]++
		t.classTotals[c]++
	}
	t.corpusWords += int64(len(features))
	t.metrics.ObserveTrained(label)
	return nil
}

// Train 消费一个 (label, features) 序列，遇到错误或 ctx 取消时停止.
func (t *Trainer) Train(ctx context.Context, docs iter.Seq2[string, []string]) error {
	for label, features := range docs {
		if err := ctx.Err(); err != nil {
			return err
		}
		if err := t.Add(label, features); err != nil {
			return err
		}
	}
	return nil
}

// Finish 计算先验并冻结模型。类别按字典序排列，作为稳定的枚举顺序.
func (t *Trainer) Finish() (*Model, error) {
	if t.finished {
		return nil, ErrTrainerFinished
	}
	if t.totalDocs == 0 {
		return nil, ErrEmptyCorpus
	}
	t.finished = true

	order := make([]int, len(t.labels))
	for i := range order {
		order[i] = i
	}
	slices.SortFunc(order, func(a, b int) int {
		switch {
		case t.labels[a] < t.labels[b]:
			return -1
		case t.labels[a] > t.labels[b]:
			return 1
		}
		return 0
	})

	m := &Model{
		mode:          t.mode,
		alpha:         t.alpha,
		labels:        make([]string, len(order)),
		labelIndex:    make(map[string]int, len(order)),
		docCounts:     make([]int64, len(order)),
		totalDocs:     t.totalDocs,
		features:      t.features,
		vocab:         t.vocab,
		featureTotals: t.featureTotals,
		counts:        make([]map[int]int64, len(order)),
		classTotals:   make([]int64, len(order)),
		corpusWords:   t.corpusWords,
		priors:        make([]float64, len(order)),
	}
	for to, from := range order {
		m.labels[to] = t.labels[from]
		m.labelIndex[t.labels[from]] = to
		m.docCounts[to] = t.docCounts[from]
		m.counts[to] = t.counts[from]
		m.classTotals[to] = t.classTotals[from]
		m.priors[to] = float64(t.docCounts[from]) / float64(t.totalDocs)
	}

	t.logger.Info("training finished",
		"mode", t.mode.String(),
		"labels", len(m.labels),
		"documents", m.totalDocs,
		"vocabulary", len(m.features),
		"words", m.corpusWords)
	return m, nil
}
