// Package corpus 读取每行一篇文档的带标签语料，并按配置的字符编码解码为 UTF-8.
//
// 行格式为 label<TAB>text；没有制表符时第一个空白分隔的词元为标签。空行被跳过.
package corpus

import (
	"bufio"
	"io"
	"iter"
	"strings"

	"golang.org/x/text/encoding/htmlindex"
	"golang.org/x/text/transform"

	"github.com/wyfcoding/bayes/ngram"
	"github.com/wyfcoding/bayes/xerrors"
)

// ErrUnsupportedEncoding 无法识别的字符编码名称。
var ErrUnsupportedEncoding = xerrors.New(xerrors.ErrConfig, 400601, "unsupported encoding", "", nil)

// maxLineBytes 单行文档的最大长度.
const maxLineBytes = 4 << 20

// Document 一行带标签的文档.
type Document struct {
	Label    string
	Features []string
	Line     int
}

// Decoder 按 WHATWG 编码名（如 UTF-8、GBK、ISO-8859-1）返回解码后的 UTF-8 流.
func Decoder(r io.Reader, name string) (io.Reader, error) {
	if name == "" {
		return r, nil
	}
	enc, err := htmlindex.Get(name)
	if err != nil {
		return nil, ErrUnsupportedEncoding.WithDetail("encoding %q", name).WithCause(err)
	}
	return transform.NewReader(r, enc.NewDecoder()), nil
}

// Reader 逐行解析语料。用法与 bufio.Scanner 相同：循环 Scan，结束后检查 Err.
type Reader struct {
	sc       *bufio.Scanner
	gramSize int
	line     int
	doc      Document
	err      error
}

// NewReader 创建语料读取器，gramSize 决定特征的 n-gram 窗口.
func NewReader(r io.Reader, encodingName string, gramSize int) (*Reader, error) {
	dec, err := Decoder(r, encodingName)
	if err != nil {
		return nil, err
	}
	sc := bufio.NewScanner(dec)
	sc.Buffer(make([]byte, 0, 64*1024), maxLineBytes)
	return &Reader{sc: sc, gramSize: gramSize}, nil
}

// Scan 前进到下一篇文档，读完或出错时返回 false.
func (r *Reader) Scan() bool {
	if r.err != nil {
		return false
	}
	for r.sc.Scan() {
		r.line++
		line := strings.TrimRight(r.sc.Text(), "\r")
		if strings.TrimSpace(line) == "" {
			continue
		}
		label, features, err := ngram.New(line, r.gramSize).Generate()
		if err != nil {
			r.err = xerrors.Wrap(err, xerrors.ErrData, "parse corpus line").WithContext("line", r.line)
			return false
		}
		r.doc = Document{Label: label, Features: features, Line: r.line}
		return true
	}
	if err := r.sc.Err(); err != nil {
		r.err = xerrors.Wrap(err, xerrors.ErrData, "read corpus").WithContext("line", r.line)
	}
	return false
}

// Document 返回最近一次 Scan 得到的文档.
func (r *Reader) Document() Document {
	return r.doc
}

// Err 返回读取过程中的第一个错误.
func (r *Reader) Err() error {
	return r.err
}

// Labeled 以 (label, features) 序列暴露剩余文档，可直接交给 bayes.Trainer.Train.
// 序列结束后仍需检查 Err.
func (r *Reader) Labeled() iter.Seq2[string, []string] {
	return func(yield func(string, []string) bool) {
		for r.Scan() {
			if !yield(r.doc.Label, r.doc.Features) {
				return
			}
		}
	}
}
