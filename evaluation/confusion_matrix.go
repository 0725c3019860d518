// Package evaluation 提供分类结果的混淆矩阵与汇总分析.
//
// 每个工作协程持有独立的 ConfusionMatrix，分片结束后通过 Merge/Reduce 显式归并，
// 矩阵本身不做并发保护.
package evaluation

import (
	"encoding/json"
	"fmt"
	"slices"
	"strings"

	"github.com/tatsushid/go-prettytable"
	"github.com/wyfcoding/bayes/xerrors"
)

var (
	// ErrLabelMismatch 两个矩阵的类别集合或顺序不一致，无法归并。
	ErrLabelMismatch = xerrors.New(xerrors.ErrInvalidArg, 400301, "confusion matrix label mismatch", "matrices must share labels and default label in the same order", nil)
	// ErrNoMatrices 归并时没有任何矩阵。
	ErrNoMatrices = xerrors.New(xerrors.ErrInvalidArg, 400302, "nothing to reduce", "at least one confusion matrix is required", nil)
	// ErrInvalidMatrix 反序列化得到的矩阵形状不合法。
	ErrInvalidMatrix = xerrors.New(xerrors.ErrData, 422301, "invalid confusion matrix", "", nil)
)

// ConfusionMatrix 以 (真实类别, 预测类别) 为坐标的计数矩阵.
// 行列顺序即构造时给定的类别顺序，默认类别在缺失时追加到末尾.
type ConfusionMatrix struct {
	labels       []string
	index        map[string]int
	defaultLabel string
	cells        [][]int64 // cells[actual][predicted]
}

// NewConfusionMatrix 创建空矩阵。重复的类别只保留首次出现的位置.
func NewConfusionMatrix(labels []string, defaultLabel string) *ConfusionMatrix {
	m := &ConfusionMatrix{
		index:        make(map[string]int, len(labels)+1),
		defaultLabel: defaultLabel,
	}
	for _, l := range labels {
		m.addLabel(l)
	}
	m.addLabel(defaultLabel)

	m.cells = make([][]int64, len(m.labels))
	for i := range m.cells {
		m.cells[i] = make([]int64, len(m.labels))
	}
	return m
}

func (m *ConfusionMatrix) addLabel(l string) {
	if _, ok := m.index[l]; ok {
		return
	}
	m.index[l] = len(m.labels)
	m.labels = append(m.labels, l)
}

func (m *ConfusionMatrix) slot(label string) int {
	if i, ok := m.index[label]; ok {
		return i
	}
	return m.index[m.defaultLabel]
}

// AddInstance 记录一条 (真实, 预测) 结果，未知类别归入默认类别.
func (m *ConfusionMatrix) AddInstance(actual, predicted string) {
	m.cells[m.slot(actual)][m.slot(predicted)]++
}

// Agrees 判断 (actual, predicted) 是否会记在对角线上.
func (m *ConfusionMatrix) Agrees(actual, predicted string) bool {
	return m.slot(actual) == m.slot(predicted)
}

// Get 返回单元格计数，未知类别按默认类别读取.
func (m *ConfusionMatrix) Get(actual, predicted string) int64 {
	return m.cells[m.slot(actual)][m.slot(predicted)]
}

// Labels 返回行列顺序的副本.
func (m *ConfusionMatrix) Labels() []string {
	return slices.Clone(m.labels)
}

// DefaultLabel 返回默认类别.
func (m *ConfusionMatrix) DefaultLabel() string {
	return m.defaultLabel
}

// Matrix 返回单元格的快照副本.
func (m *ConfusionMatrix) Matrix() [][]int64 {
	out := make([][]int64, len(m.cells))
	for i, row := range m.cells {
		out[i] = slices.Clone(row)
	}
	return out
}

// Total 返回记录的实例总数.
func (m *ConfusionMatrix) Total() int64 {
	var n int64
	for _, row := range m.cells {
		for _, v := range row {
			n += v
		}
	}
	return n
}

// Correct 返回对角线之和.
func (m *ConfusionMatrix) Correct() int64 {
	var n int64
	for i := range m.cells {
		n += m.cells[i][i]
	}
	return n
}

func (m *ConfusionMatrix) compatible(o *ConfusionMatrix) bool {
	return m.defaultLabel == o.defaultLabel && slices.Equal(m.labels, o.labels)
}

// Equal 报告两个矩阵的类别与全部单元格是否相同.
func (m *ConfusionMatrix) Equal(o *ConfusionMatrix) bool {
	if m == nil || o == nil {
		return m == o
	}
	if !m.compatible(o) {
		return false
	}
	for i := range m.cells {
		if !slices.Equal(m.cells[i], o.cells[i]) {
			return false
		}
	}
	return true
}

// Add 将 o 的计数就地累加到 m.
func (m *ConfusionMatrix) Add(o *ConfusionMatrix) error {
	if !m.compatible(o) {
		return ErrLabelMismatch.WithDetail("labels %v vs %v", m.labels, o.labels)
	}
	for i := range m.cells {
		for j := range m.cells[i] {
			m.cells[i][j] += o.cells[i][j]
		}
	}
	return nil
}

func (m *ConfusionMatrix) clone() *ConfusionMatrix {
	c := NewConfusionMatrix(m.labels, m.defaultLabel)
	for i := range m.cells {
		copy(c.cells[i], m.cells[i])
	}
	return c
}

// Merge 返回 a 与 b 的逐格之和，不修改输入。该运算满足交换律与结合律.
func Merge(a, b *ConfusionMatrix) (*ConfusionMatrix, error) {
	out := a.clone()
	if err := out.Add(b); err != nil {
		return nil, err
	}
	return out, nil
}

// Reduce 折叠一组分片矩阵，nil 元素被忽略.
func Reduce(parts ...*ConfusionMatrix) (*ConfusionMatrix, error) {
	var out *ConfusionMatrix
	for _, p := range parts {
		if p == nil {
			continue
		}
		if out == nil {
			out = p.clone()
			continue
		}
		if err := out.Add(p); err != nil {
			return nil, err
		}
	}
	if out == nil {
		return nil, ErrNoMatrices
	}
	return out, nil
}

type matrixJSON struct {
	Labels       []string  `json:"labels"`
	DefaultLabel string    `json:"defaultLabel"`
	Matrix       [][]int64 `json:"matrix"`
}

// MarshalJSON 实现 json.Marshaler，用于跨工作进程传递分片结果.
func (m *ConfusionMatrix) MarshalJSON() ([]byte, error) {
	return json.Marshal(matrixJSON{
		Labels:       m.labels,
		DefaultLabel: m.defaultLabel,
		Matrix:       m.cells,
	})
}

// UnmarshalJSON 实现 json.Unmarshaler，并校验矩阵形状.
func (m *ConfusionMatrix) UnmarshalJSON(data []byte) error {
	var raw matrixJSON
	if err := json.Unmarshal(data, &raw); err != nil {
		return ErrInvalidMatrix.WithCause(err)
	}
	fresh := NewConfusionMatrix(raw.Labels, raw.DefaultLabel)
	if len(fresh.labels) != len(raw.Labels) {
		return ErrInvalidMatrix.WithDetail("labels %v must be unique and include default %q", raw.Labels, raw.DefaultLabel)
	}
	if len(raw.Matrix) != len(fresh.labels) {
		return ErrInvalidMatrix.WithDetail("expected %d rows, got %d", len(fresh.labels), len(raw.Matrix))
	}
	for i, row := range raw.Matrix {
		if len(row) != len(fresh.labels) {
			return ErrInvalidMatrix.WithDetail("row %d has %d columns", i, len(row))
		}
		for _, v := range row {
			if v < 0 {
				return ErrInvalidMatrix.WithDetail("row %d has negative cell", i)
			}
		}
		copy(fresh.cells[i], row)
	}
	*m = *fresh
	return nil
}

// String 以表格形式输出矩阵，行为真实类别，列为预测类别.
func (m *ConfusionMatrix) String() string {
	cols := []prettytable.Column{{Header: "actual \\ predicted"}}
	for _, l := range m.labels {
		cols = append(cols, prettytable.Column{Header: l, AlignRight: true})
	}
	cols = append(cols, prettytable.Column{Header: "<total>", AlignRight: true})

	table, err := prettytable.NewTable(cols...)
	if err != nil {
		return fmt.Sprintf("confusion matrix: %v", err)
	}
	table.Separator = " | "
	for i, l := range m.labels {
		row := make([]any, 0, len(cols))
		row = append(row, l)
		var sum int64
		for _, v := range m.cells[i] {
			row = append(row, v)
			sum += v
		}
		row = append(row, sum)
		_ = table.AddRow(row...)
	}
	return strings.TrimRight(table.String(), "\n")
}
