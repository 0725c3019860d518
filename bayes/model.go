// Package bayes 实现了基于 n-gram 特征的朴素贝叶斯与补集朴素贝叶斯文本分类.
//
// 训练由 Trainer 单遍累计词频并冻结为不可变的 Model；分类由 ClassifierContext 调度，
// 通过 Algorithm 的两种策略（StandardBayes、ComplementBayes）对每个类别评分.
// Model 训练完成后只读，可被任意数量的并发分类器共享而无需加锁.
package bayes

import (
	"context"
	"iter"
	"slices"
	"strings"
)

// Mode 训练模式，决定模型是否携带补集统计量.
type Mode uint8

const (
	// ModeStandard 标准朴素贝叶斯训练.
	ModeStandard Mode = iota
	// ModeComplement 补集朴素贝叶斯训练，额外提供每个 (类别, 特征) 的补集计数.
	ModeComplement
)

// String 返回与 classifierType 配置值一致的名称.
func (m Mode) String() string {
	if m == ModeComplement {
		return "cbayes"
	}
	return "bayes"
}

// ParseMode 解析 classifierType 配置值.
func ParseMode(s string) (Mode, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "bayes", "":
		return ModeStandard, nil
	case "cbayes":
		return ModeComplement, nil
	default:
		return ModeStandard, ErrUnknownAlgorithm.WithDetail("unsupported classifier type %q", s)
	}
}

// Datastore 是评分所需统计量的只读访问能力.
// 本地 Model 与远端存储（如 Redis）都实现该接口，因此所有方法都接受 context.
type Datastore interface {
	// Labels 返回全部类别，顺序即类别枚举顺序.
	Labels(ctx context.Context) ([]string, error)
	// WordCount 返回特征在类别中的出现次数.
	WordCount(ctx context.Context, label, feature string) (int64, error)
	// TotalWordCount 返回类别的词总数.
	TotalWordCount(ctx context.Context, label string) (int64, error)
	// FeatureCount 返回特征在整个语料中的出现次数，0 表示不在词表中.
	FeatureCount(ctx context.Context, feature string) (int64, error)
	// ComplementWordCount 返回特征在除该类别外所有类别中的出现次数，仅补集模式可用.
	ComplementWordCount(ctx context.Context, label, feature string) (int64, error)
	// ComplementTotalWordCount 返回除该类别外所有类别的词总数，仅补集模式可用.
	ComplementTotalWordCount(ctx context.Context, label string) (int64, error)
	// Prior 返回类别先验概率.
	Prior(ctx context.Context, label string) (float64, error)
	// VocabularySize 返回词表大小（不同特征数）.
	VocabularySize(ctx context.Context) (int64, error)
}

// ModelWriter 是 Datastore 的可写对应物，训练结束后接收完整模型.
type ModelWriter interface {
	WriteModel(ctx context.Context, m *Model) error
}

// Model 是训练产出的不可变统计快照.
// 计数按 (类别下标, 特征下标) 寻址：features 为下标到特征的映射，counts[c] 为类别 c 的稀疏计数.
type Model struct {
	mode          Mode
	alpha         float64
	labels        []string
	labelIndex    map[string]int
	docCounts     []int64
	totalDocs     int64
	features      []string
	vocab         map[string]int
	featureTotals []int64
	counts        []map[int]int64
	classTotals   []int64
	corpusWords   int64
	priors        []float64
}

var _ Datastore = (*Model)(nil)

// Mode 返回模型的训练模式.
func (m *Model) Mode() Mode { return m.mode }

// Alpha 返回训练时使用的平滑系数.
func (m *Model) Alpha() float64 { return m.alpha }

// TotalDocuments 返回训练文档总数.
func (m *Model) TotalDocuments() int64 { return m.totalDocs }

// CorpusWordCount 返回全部类别的词总数.
func (m *Model) CorpusWordCount() int64 { return m.corpusWords }

// LabelList 返回类别列表的副本.
func (m *Model) LabelList() []string { return slices.Clone(m.labels) }

// DocumentCount 返回类别的训练文档数，未知类别返回 0.
func (m *Model) DocumentCount(label string) int64 {
	c, ok := m.labelIndex[label]
	if !ok {
		return 0
	}
	return m.docCounts[c]
}

// SmoothingDenominator 返回 total(c) + alpha*|V|.
func (m *Model) SmoothingDenominator(label string) (float64, error) {
	c, err := m.index(label)
	if err != nil {
		return 0, err
	}
	return float64(m.classTotals[c]) + m.alpha*float64(len(m.features)), nil
}

// Features 按词表下标顺序遍历全部特征及其语料计数.
func (m *Model) Features() iter.Seq2[string, int64] {
	return func(yield func(string, int64) bool) {
		for i, f := range m.features {
			if !yield(f, m.featureTotals[i]) {
				return
			}
		}
	}
}

// Counts 遍历类别内全部非零特征计数，顺序按特征下标.
func (m *Model) Counts(label string) iter.Seq2[string, int64] {
	return func(yield func(string, int64) bool) {
		c, ok := m.labelIndex[label]
		if !ok {
			return
		}
		idx := make([]int, 0, len(m.counts[c]))
		for i := range m.counts[c] {
			idx = append(idx, i)
		}
		slices.Sort(idx)
		for _, i := range idx {
			if !yield(m.features[i], m.counts[c][i]) {
				return
			}
		}
	}
}

func (m *Model) index(label string) (int, error) {
	c, ok := m.labelIndex[label]
	if !ok {
		return 0, ErrUnknownLabel.WithDetail("label %q", label)
	}
	return c, nil
}

// Labels 实现 Datastore.
func (m *Model) Labels(context.Context) ([]string, error) {
	return slices.Clone(m.labels), nil
}

// WordCount 实现 Datastore.
func (m *Model) WordCount(_ context.Context, label, feature string) (int64, error) {
	c, err := m.index(label)
	if err != nil {
		return 0, err
	}
	f, ok := m.vocab[feature]
	if !ok {
		return 0, nil
	}
	return m.counts[c][f], nil
}

// TotalWordCount 实现 Datastore.
func (m *Model) TotalWordCount(_ context.Context, label string) (int64, error) {
	c, err := m.index(label)
	if err != nil {
		return 0, err
	}
	return m.classTotals[c], nil
}

// FeatureCount 实现 Datastore.
func (m *Model) FeatureCount(_ context.Context, feature string) (int64, error) {
	f, ok := m.vocab[feature]
	if !ok {
		return 0, nil
	}
	return m.featureTotals[f], nil
}

// ComplementWordCount 实现 Datastore.
func (m *Model) ComplementWordCount(_ context.Context, label, feature string) (int64, error) {
	if m.mode != ModeComplement {
		return 0, ErrInvalidDatastore.WithDetail("model was trained without complement statistics")
	}
	c, err := m.index(label)
	if err != nil {
		return 0, err
	}
	f, ok := m.vocab[feature]
	if !ok {
		return 0, nil
	}
	return m.featureTotals[f] - m.counts[c][f], nil
}

// ComplementTotalWordCount 实现 Datastore.
func (m *Model) ComplementTotalWordCount(_ context.Context, label string) (int64, error) {
	if m.mode != ModeComplement {
		return 0, ErrInvalidDatastore.WithDetail("model was trained without complement statistics")
	}
	c, err := m.index(label)
	if err != nil {
		return 0, err
	}
	return m.corpusWords - m.classTotals[c], nil
}

// Prior 实现 Datastore.
func (m *Model) Prior(_ context.Context, label string) (float64, error) {
	c, err := m.index(label)
	if err != nil {
		return 0, err
	}
	return m.priors[c], nil
}

// VocabularySize 实现 Datastore.
func (m *Model) VocabularySize(context.Context) (int64, error) {
	return int64(len(m.features)), nil
}
