// Package ngram 将文档文本切分为 n-gram 特征序列，供训练与分类共用.
package ngram

import (
	"iter"
	"strings"

	"github.com/wyfcoding/bayes/xerrors"
)

// Separator 连接同一个 n-gram 内各词元的分隔符.
const Separator = " "

// ErrMissingLabel 输入行缺少前导类别标签.
var ErrMissingLabel = xerrors.New(xerrors.ErrInvalidArg, 400101, "missing label", "line must have the form label<TAB>text", nil)

// NGrams 对一行文本生成 1..GramSize 的连续词窗口.
// 该类型只读取构造时传入的文本，可被多次遍历.
type NGrams struct {
	line     string
	gramSize int
}

// New 创建一个 n-gram 生成器。gramSize 小于 1 时按 1 处理.
func New(line string, gramSize int) *NGrams {
	if gramSize < 1 {
		gramSize = 1
	}
	return &NGrams{line: line, gramSize: gramSize}
}

// GramSize 返回生效的窗口上限.
func (n *NGrams) GramSize() int {
	return n.gramSize
}

// All 惰性地产出整行文本的全部 n-gram.
// 顺序：先从左到右的全部 1-gram，再从左到右的全部 2-gram，依此类推.
func (n *NGrams) All() iter.Seq[string] {
	return Seq(strings.Fields(n.line), n.gramSize)
}

// WithoutLabel 与 All 相同，但当行形如 label<TAB>text 时先去掉前导标签.
func (n *NGrams) WithoutLabel() iter.Seq[string] {
	_, text, ok := SplitLabeled(n.line)
	if !ok {
		text = n.line
	}
	return Seq(strings.Fields(text), n.gramSize)
}

// GenerateWithoutLabel 返回去掉标签后的全部特征.
func (n *NGrams) GenerateWithoutLabel() []string {
	return Collect(n.WithoutLabel())
}

// Generate 解析带标签的行，返回标签与其文本的全部特征.
// 没有制表符时以第一个空白分隔的词元作为标签.
func (n *NGrams) Generate() (string, []string, error) {
	label, text, ok := SplitLabeled(n.line)
	if !ok {
		fields := strings.Fields(n.line)
		if len(fields) == 0 {
			return "", nil, ErrMissingLabel
		}
		return fields[0], Collect(Seq(fields[1:], n.gramSize)), nil
	}
	if label == "" {
		return "", nil, ErrMissingLabel
	}
	return label, Collect(Seq(strings.Fields(text), n.gramSize)), nil
}

// SplitLabeled 按第一个制表符拆分 label<TAB>text.
func SplitLabeled(line string) (label, text string, ok bool) {
	label, text, ok = strings.Cut(line, "\t")
	if !ok {
		return "", line, false
	}
	return strings.TrimSpace(label), text, true
}

// Seq 在已切分好的词元上产出 1..gramSize 的 n-gram.
func Seq(tokens []string, gramSize int) iter.Seq[string] {
	return func(yield func(string) bool) {
		for size := 1; size <= gramSize; size++ {
			for start := 0; start+size <= len(tokens); start++ {
				var gram string
				if size == 1 {
					gram = tokens[start]
				} else {
					gram = strings.Join(tokens[start:start+size], Separator)
				}
				if !yield(gram) {
					return
				}
			}
		}
	}
}

// Count 返回 len(tokens) 个词元在 gramSize 下产生的特征数.
func Count(tokens, gramSize int) int {
	total := 0
	for size := 1; size <= gramSize && size <= tokens; size++ {
		total += tokens - size + 1
	}
	return total
}

// Collect 物化一个特征序列；空序列返回 nil.
func Collect(seq iter.Seq[string]) []string {
	var out []string
	for f := range seq {
		out = append(out, f)
	}
	return out
}
