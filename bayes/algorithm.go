package bayes

import (
	"context"
	"math"
)

// Direction 描述某个算法下分数的优劣方向.
type Direction int

const (
	// HigherIsBetter 分数越大越匹配（对数似然）.
	HigherIsBetter Direction = iota
	// LowerIsBetter 分数越小越匹配（补集对数似然）.
	LowerIsBetter
)

// Compare 以"更优在前"的顺序比较两个分数，可直接用于 slices.SortStableFunc.
// 相等时返回 0，由稳定排序保留类别枚举顺序.
func (d Direction) Compare(a, b float64) int {
	switch {
	case a == b:
		return 0
	case (a > b) == (d == HigherIsBetter):
		return -1
	default:
		return 1
	}
}

// Better 报告 a 是否严格优于 b.
func (d Direction) Better(a, b float64) bool {
	return d.Compare(a, b) < 0
}

// UnknownFeaturePolicy 决定词表外特征如何参与评分.
type UnknownFeaturePolicy int

const (
	// SkipUnknown 跳过词表外特征，既不奖励也不惩罚.
	SkipUnknown UnknownFeaturePolicy = iota
	// SmoothUnknown 按计数 0 参与平滑，贡献 log(alpha/denominator).
	SmoothUnknown
)

// ParseUnknownFeaturePolicy 解析 unknownFeatures 配置值（skip 或 smooth）.
func ParseUnknownFeaturePolicy(s string) (UnknownFeaturePolicy, error) {
	switch s {
	case "", "skip":
		return SkipUnknown, nil
	case "smooth":
		return SmoothUnknown, nil
	default:
		return SkipUnknown, ErrInvalidInput.WithDetail("unknownFeatures must be skip or smooth, got %q", s)
	}
}

// Algorithm 是评分策略。每个实现自行声明分数方向，调用方不做推断.
type Algorithm interface {
	// Name 返回与 classifierType 一致的名称.
	Name() string
	// Score 计算特征序列对某个类别的分数.
	Score(ctx context.Context, ds Datastore, label string, features []string) (float64, error)
	// Direction 返回分数优劣方向.
	Direction() Direction
	// Worst 返回该方向下最差的分数，作为默认类别的哨兵分数.
	Worst() float64
}

// AlgorithmOption 定义评分算法配置选项.
type AlgorithmOption func(*scoring)

// WithUnknownFeatures 设置词表外特征策略.
func WithUnknownFeatures(p UnknownFeaturePolicy) AlgorithmOption {
	return func(s *scoring) {
		s.unknown = p
	}
}

type scoring struct {
	alpha   float64
	unknown UnknownFeaturePolicy
}

func newScoring(alpha float64, opts []AlgorithmOption) (scoring, error) {
	if !(alpha > 0) {
		return scoring{}, ErrInvalidAlpha.WithContext("alpha", alpha)
	}
	s := scoring{alpha: alpha}
	for _, opt := range opts {
		opt(&s)
	}
	return s, nil
}

// sumLogs 累加 log((count(f)+alpha)/denominator)，词表外特征按策略跳过或以计数 0 参与.
func (s scoring) sumLogs(ctx context.Context, ds Datastore, features []string, denominator float64,
	count func(feature string) (int64, error)) (float64, error) {
	var sum float64
	for _, feature := range features {
		known, err := ds.FeatureCount(ctx, feature)
		if err != nil {
			return 0, err
		}
		var n int64
		if known > 0 {
			if n, err = count(feature); err != nil {
				return 0, err
			}
		} else if s.unknown == SkipUnknown {
			continue
		}
		sum += math.Log((float64(n) + s.alpha) / denominator)
	}
	return sum, nil
}

// StandardBayes 标准多项式朴素贝叶斯:
//
//	score(c) = log P(c) + Σ log((count(f,c)+α) / (total(c)+α|V|))
//
// 分数越大越匹配.
type StandardBayes struct {
	scoring
}

// NewStandardBayes 创建标准贝叶斯评分器.
func NewStandardBayes(alpha float64, opts ...AlgorithmOption) (*StandardBayes, error) {
	s, err := newScoring(alpha, opts)
	if err != nil {
		return nil, err
	}
	return &StandardBayes{scoring: s}, nil
}

func (a *StandardBayes) Name() string         { return ModeStandard.String() }
func (a *StandardBayes) Direction() Direction { return HigherIsBetter }
func (a *StandardBayes) Worst() float64       { return math.Inf(-1) }

// Score 实现 Algorithm.
func (a *StandardBayes) Score(ctx context.Context, ds Datastore, label string, features []string) (float64, error) {
	total, err := ds.TotalWordCount(ctx, label)
	if err != nil {
		return 0, err
	}
	if total == 0 {
		return 0, ErrEmptyClass.WithDetail("label %q", label)
	}
	vocab, err := ds.VocabularySize(ctx)
	if err != nil {
		return 0, err
	}
	prior, err := ds.Prior(ctx, label)
	if err != nil {
		return 0, err
	}
	if !(prior > 0) {
		return 0, ErrInvalidDatastore.WithDetail("label %q has non-positive prior %v", label, prior)
	}

	denominator := float64(total) + a.alpha*float64(vocab)
	sum, err := a.sumLogs(ctx, ds, features, denominator, func(feature string) (int64, error) {
		return ds.WordCount(ctx, label, feature)
	})
	if err != nil {
		return 0, err
	}
	return math.Log(prior) + sum, nil
}

// ComplementBayes 补集朴素贝叶斯，用其余全部类别的统计量评估文档:
//
//	score(c) = Σ log((ccount(f,c)+α) / (ctotal(c)+α|V|))
//
// 文档与补集越不相符分数越小，因此分数越小越匹配；不计先验，以抵消类别规模不均衡.
type ComplementBayes struct {
	scoring
}

// NewComplementBayes 创建补集贝叶斯评分器，要求数据存储以补集模式训练.
func NewComplementBayes(alpha float64, opts ...AlgorithmOption) (*ComplementBayes, error) {
	s, err := newScoring(alpha, opts)
	if err != nil {
		return nil, err
	}
	return &ComplementBayes{scoring: s}, nil
}

func (a *ComplementBayes) Name() string         { return ModeComplement.String() }
func (a *ComplementBayes) Direction() Direction { return LowerIsBetter }
func (a *ComplementBayes) Worst() float64       { return math.Inf(1) }

// Score 实现 Algorithm.
func (a *ComplementBayes) Score(ctx context.Context, ds Datastore, label string, features []string) (float64, error) {
	total, err := ds.TotalWordCount(ctx, label)
	if err != nil {
		return 0, err
	}
	if total == 0 {
		return 0, ErrEmptyClass.WithDetail("label %q", label)
	}
	ctotal, err := ds.ComplementTotalWordCount(ctx, label)
	if err != nil {
		return 0, err
	}
	if ctotal == 0 {
		return 0, ErrEmptyClass.WithDetail("complement of %q has no features", label)
	}
	vocab, err := ds.VocabularySize(ctx)
	if err != nil {
		return 0, err
	}

	denominator := float64(ctotal) + a.alpha*float64(vocab)
	return a.sumLogs(ctx, ds, features, denominator, func(feature string) (int64, error) {
		return ds.ComplementWordCount(ctx, label, feature)
	})
}

// NewAlgorithm 按 classifierType 创建评分器.
func NewAlgorithm(mode Mode, alpha float64, opts ...AlgorithmOption) (Algorithm, error) {
	switch mode {
	case ModeStandard:
		a, err := NewStandardBayes(alpha, opts...)
		if err != nil {
			return nil, err
		}
		return a, nil
	case ModeComplement:
		a, err := NewComplementBayes(alpha, opts...)
		if err != nil {
			return nil, err
		}
		return a, nil
	default:
		return nil, ErrUnknownAlgorithm.WithDetail("mode %d", mode)
	}
}
