package config

import (
	"iter"
	"maps"
	"slices"
	"strconv"

	"github.com/wyfcoding/bayes/xerrors"
)

// 分类器识别的参数键.
const (
	KeyAlpha           = "alpha_i"
	KeyDataSource      = "dataSource"
	KeyClassifierType  = "classifierType"
	KeyDefaultCat      = "defaultCat"
	KeyEncoding        = "encoding"
	KeyGramSize        = "gramSize"
	KeyVerbose         = "verbose"
	KeyBasePath        = "basePath"
	KeyTestDirPath     = "testDirPath"
	KeyUnknownFeatures = "unknownFeatures"
	KeyWorkers         = "workers"
	KeyShardRetries    = "shardRetries"
	KeyShardLines      = "shardLines"
)

var (
	// ErrMissingKey 必需的参数未设置。
	ErrMissingKey = xerrors.New(xerrors.ErrConfig, 400401, "missing configuration key", "", nil)
	// ErrInvalidValue 参数值无法解析或不合法。
	ErrInvalidValue = xerrors.New(xerrors.ErrConfig, 400402, "invalid configuration value", "", nil)
)

var defaults = map[string]string{
	KeyAlpha:           "1.0",
	KeyDataSource:      "file",
	KeyClassifierType:  "bayes",
	KeyDefaultCat:      "unknown",
	KeyEncoding:        "UTF-8",
	KeyGramSize:        "1",
	KeyVerbose:         "false",
	KeyUnknownFeatures: "skip",
	KeyWorkers:         "4",
	KeyShardRetries:    "3",
	KeyShardLines:      "0",
}

// Parameters 是分类核心读取的扁平 key -> string 参数表.
// 核心只按名称读取值，不关心参数的来源（配置文件、命令行或测试）.
type Parameters struct {
	values map[string]string
}

// NewParameters 返回带默认值的参数表，overrides 中的键覆盖默认值.
func NewParameters(overrides map[string]string) *Parameters {
	p := &Parameters{values: maps.Clone(defaults)}
	maps.Copy(p.values, overrides)
	return p
}

// Parameters 将结构化配置展开为扁平参数表.
func (b BayesConfig) Parameters() *Parameters {
	return NewParameters(map[string]string{
		KeyAlpha:           strconv.FormatFloat(b.Alpha, 'g', -1, 64),
		KeyDataSource:      b.DataSource,
		KeyClassifierType:  b.ClassifierType,
		KeyDefaultCat:      b.DefaultCat,
		KeyEncoding:        b.Encoding,
		KeyGramSize:        strconv.Itoa(b.GramSize),
		KeyVerbose:         strconv.FormatBool(b.Verbose),
		KeyBasePath:        b.BasePath,
		KeyTestDirPath:     b.TestDirPath,
		KeyUnknownFeatures: b.UnknownFeatures,
		KeyWorkers:         strconv.Itoa(b.Workers),
		KeyShardRetries:    strconv.Itoa(b.ShardRetries),
		KeyShardLines:      strconv.Itoa(b.ShardLines),
	})
}

// Get 返回原始字符串值.
func (p *Parameters) Get(key string) (string, bool) {
	v, ok := p.values[key]
	return v, ok
}

// Set 设置参数值.
func (p *Parameters) Set(key, value string) {
	p.values[key] = value
}

// All 按键名顺序遍历全部参数.
func (p *Parameters) All() iter.Seq2[string, string] {
	return func(yield func(string, string) bool) {
		for _, k := range slices.Sorted(maps.Keys(p.values)) {
			if !yield(k, p.values[k]) {
				return
			}
		}
	}
}

// String 返回非空字符串值，缺失或为空时返回 ErrMissingKey.
func (p *Parameters) String(key string) (string, error) {
	v, ok := p.values[key]
	if !ok || v == "" {
		return "", ErrMissingKey.WithDetail("key %q", key)
	}
	return v, nil
}

// StringOr 返回字符串值，缺失时返回 fallback.
func (p *Parameters) StringOr(key, fallback string) string {
	if v, ok := p.values[key]; ok && v != "" {
		return v
	}
	return fallback
}

// Int 解析整数值.
func (p *Parameters) Int(key string) (int, error) {
	v, err := p.String(key)
	if err != nil {
		return 0, err
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return 0, ErrInvalidValue.WithDetail("%s=%q is not an integer", key, v).WithCause(err)
	}
	return n, nil
}

// Float 解析浮点值.
func (p *Parameters) Float(key string) (float64, error) {
	v, err := p.String(key)
	if err != nil {
		return 0, err
	}
	f, err := strconv.ParseFloat(v, 64)
	if err != nil {
		return 0, ErrInvalidValue.WithDetail("%s=%q is not a number", key, v).WithCause(err)
	}
	return f, nil
}

// Bool 解析布尔值，缺失时为 false.
func (p *Parameters) Bool(key string) (bool, error) {
	v, ok := p.values[key]
	if !ok || v == "" {
		return false, nil
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		return false, ErrInvalidValue.WithDetail("%s=%q is not a boolean", key, v).WithCause(err)
	}
	return b, nil
}
