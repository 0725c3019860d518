package evaluation

import (
	"fmt"
	"strings"

	"github.com/tatsushid/go-prettytable"
	"github.com/wyfcoding/bayes/bayes"
	"github.com/wyfcoding/bayes/metrics"
)

// ResultAnalyzer 累计分类结果并生成汇总报告.
// 正确数一律取混淆矩阵对角线之和，逐条累计与归并后的矩阵得到相同结论.
type ResultAnalyzer struct {
	matrix  *ConfusionMatrix
	metrics *metrics.Metrics
}

// AnalyzerOption 定义分析器配置选项.
type AnalyzerOption func(*ResultAnalyzer)

// WithAnalyzerMetrics 注入指标采集器.
func WithAnalyzerMetrics(m *metrics.Metrics) AnalyzerOption {
	return func(a *ResultAnalyzer) {
		a.metrics = m
	}
}

// NewResultAnalyzer 创建空分析器.
func NewResultAnalyzer(labels []string, defaultLabel string, opts ...AnalyzerOption) *ResultAnalyzer {
	a := &ResultAnalyzer{matrix: NewConfusionMatrix(labels, defaultLabel)}
	for _, opt := range opts {
		opt(a)
	}
	return a
}

// AnalyzerFromMatrix 基于已归并的矩阵构造分析器.
func AnalyzerFromMatrix(m *ConfusionMatrix) *ResultAnalyzer {
	return &ResultAnalyzer{matrix: m.clone()}
}

// AddInstance 记录一条分类结果。两个类别落在同一行列槽位即算正确，
// 未知的真实类别被预测为默认类别时也计为正确.
func (a *ResultAnalyzer) AddInstance(actual string, result bayes.ClassifierResult) {
	outcome := "incorrect"
	if a.matrix.Agrees(actual, result.Label) {
		outcome = "correct"
	}
	a.matrix.AddInstance(actual, result.Label)
	a.metrics.ObserveInstance(outcome)
}

// ConfusionMatrix 返回内部矩阵，调用方可用于归并.
func (a *ResultAnalyzer) ConfusionMatrix() *ConfusionMatrix {
	return a.matrix
}

// LabelSummary 单个类别的评估指标.
type LabelSummary struct {
	Label     string  `json:"label"`
	Precision float64 `json:"precision"`
	Recall    float64 `json:"recall"`
	F1        float64 `json:"f1"`
	Support   int64   `json:"support"`
}

// Summary 整体评估结果.
type Summary struct {
	Correct   int64          `json:"correct"`
	Incorrect int64          `json:"incorrect"`
	Total     int64          `json:"total"`
	Accuracy  float64        `json:"accuracy"`
	Kappa     float64        `json:"kappa"`
	PerLabel  []LabelSummary `json:"perLabel"`
}

// Summary 计算准确率、Cohen's kappa 及每个类别的精确率、召回率与 F1.
// 分母为 0 的比值记为 0.
func (a *ResultAnalyzer) Summary() Summary {
	cells := a.matrix.cells
	n := len(cells)
	rowSums := make([]int64, n)
	colSums := make([]int64, n)
	var total, diag int64
	for i := range cells {
		for j, v := range cells[i] {
			rowSums[i] += v
			colSums[j] += v
			total += v
		}
		diag += cells[i][i]
	}

	s := Summary{
		Correct:   diag,
		Incorrect: total - diag,
		Total:     total,
		Accuracy:  ratio(diag, total),
		PerLabel:  make([]LabelSummary, n),
	}

	if total > 0 {
		po := float64(diag) / float64(total)
		var pe float64
		for i := range n {
			pe += float64(rowSums[i]) * float64(colSums[i])
		}
		pe /= float64(total) * float64(total)
		if pe < 1 {
			s.Kappa = (po - pe) / (1 - pe)
		} else if po == 1 {
			s.Kappa = 1
		}
	}

	for i, l := range a.matrix.labels {
		tp := cells[i][i]
		ls := LabelSummary{
			Label:     l,
			Precision: ratio(tp, colSums[i]),
			Recall:    ratio(tp, rowSums[i]),
			Support:   rowSums[i],
		}
		if ls.Precision+ls.Recall > 0 {
			ls.F1 = 2 * ls.Precision * ls.Recall / (ls.Precision + ls.Recall)
		}
		s.PerLabel[i] = ls
	}
	return s
}

func ratio(a, b int64) float64 {
	if b == 0 {
		return 0
	}
	return float64(a) / float64(b)
}

const rule = "======================================================="

// String 输出汇总、混淆矩阵与分类别统计的文本报告.
func (a *ResultAnalyzer) String() string {
	s := a.Summary()
	var b strings.Builder

	b.WriteString(rule + "\nSummary\n" + strings.Repeat("-", len(rule)) + "\n")
	fmt.Fprintf(&b, "%-40s: %10d\t%6.2f%%\n", "Correctly Classified Instances", s.Correct, 100*s.Accuracy)
	fmt.Fprintf(&b, "%-40s: %10d\t%6.2f%%\n", "Incorrectly Classified Instances", s.Incorrect, 100*ratio(s.Incorrect, s.Total))
	fmt.Fprintf(&b, "%-40s: %10d\n", "Total Classified Instances", s.Total)
	fmt.Fprintf(&b, "%-40s: %10.4f\n", "Kappa", s.Kappa)

	b.WriteString(rule + "\nConfusion Matrix\n" + strings.Repeat("-", len(rule)) + "\n")
	b.WriteString(a.matrix.String())
	b.WriteString("\n")

	b.WriteString(rule + "\nPer Label\n" + strings.Repeat("-", len(rule)) + "\n")
	table, err := prettytable.NewTable(
		prettytable.Column{Header: "Label"},
		prettytable.Column{Header: "Precision", AlignRight: true},
		prettytable.Column{Header: "Recall", AlignRight: true},
		prettytable.Column{Header: "F1", AlignRight: true},
		prettytable.Column{Header: "Support", AlignRight: true},
	)
	if err != nil {
		return b.String()
	}
	table.Separator = " | "
	for _, ls := range s.PerLabel {
		_ = table.AddRow(ls.Label,
			fmt.Sprintf("%.4f", ls.Precision),
			fmt.Sprintf("%.4f", ls.Recall),
			fmt.Sprintf("%.4f", ls.F1),
			ls.Support)
	}
	b.WriteString(table.String())
	return b.String()
}
