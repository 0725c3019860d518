package modelstore

import (
	"context"
	"errors"
	"maps"
	"slices"
	"strconv"
	"sync/atomic"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/wyfcoding/bayes/bayes"
	"github.com/wyfcoding/bayes/breaker"
	"github.com/wyfcoding/bayes/cache"
	"github.com/wyfcoding/bayes/logging"
)

// hsetChunk 单次 HSET 写入的最大字段数.
const hsetChunk = 1000

// HashClient 是 RedisDatastore 使用的 Redis 命令子集，*redis.Client 满足该接口.
type HashClient interface {
	Get(ctx context.Context, key string) *redis.StringCmd
	Set(ctx context.Context, key string, value any, expiration time.Duration) *redis.StatusCmd
	Del(ctx context.Context, keys ...string) *redis.IntCmd
	HGet(ctx context.Context, key, field string) *redis.StringCmd
	HGetAll(ctx context.Context, key string) *redis.MapStringStringCmd
	HSet(ctx context.Context, key string, values ...any) *redis.IntCmd
}

// redisSummary 一个模型版本的类别级统计量，Load 时整体读入.
type redisSummary struct {
	version     string
	mode        bayes.Mode
	alpha       float64
	labels      []string
	docs        map[string]int64
	totals      map[string]int64
	totalDocs   int64
	corpusWords int64
	vocabulary  int64
}

// RedisDatastore 把模型计数保存在 Redis 哈希表中.
//
// 每次 WriteModel 写入一个新版本（键前缀 <prefix>:<version>），写完后切换 <prefix>:current
// 并删除旧版本，读者要么看到旧模型要么看到新模型。类别级统计量在 Load 时读入内存，
// (类别, 特征) 计数按需点查，经 bigcache 缓存并受熔断器保护.
type RedisDatastore struct {
	client  HashClient
	prefix  string
	cache   *cache.CountCache
	breaker *breaker.Breaker
	logger  *logging.Logger
	summary atomic.Pointer[redisSummary]
}

var (
	_ Store           = (*RedisDatastore)(nil)
	_ bayes.Datastore = (*RedisDatastore)(nil)
)

// RedisOption 定义 Redis 后端配置选项.
type RedisOption func(*RedisDatastore)

// WithCache 设置本地计数缓存.
func WithCache(c *cache.CountCache) RedisOption {
	return func(d *RedisDatastore) { d.cache = c }
}

// WithBreaker 设置点查询熔断器.
func WithBreaker(b *breaker.Breaker) RedisOption {
	return func(d *RedisDatastore) { d.breaker = b }
}

// WithRedisLogger 设置日志.
func WithRedisLogger(l *logging.Logger) RedisOption {
	return func(d *RedisDatastore) {
		if l != nil {
			d.logger = l
		}
	}
}

// NewRedisDatastore 创建 Redis 后端，prefix 为全部键的前缀.
func NewRedisDatastore(client HashClient, prefix string, opts ...RedisOption) *RedisDatastore {
	d := &RedisDatastore{client: client, prefix: prefix, logger: logging.Default()}
	for _, opt := range opts {
		opt(d)
	}
	return d
}

func (d *RedisDatastore) currentKey() string { return d.prefix + ":current" }

func (d *RedisDatastore) key(version, part string) string {
	return d.prefix + ":" + version + ":" + part
}

func (d *RedisDatastore) countsKey(version, label string) string {
	return d.key(version, "counts:"+label)
}

func (d *RedisDatastore) hset(ctx context.Context, key string, fields map[string]any) error {
	if len(fields) == 0 {
		return nil
	}
	return d.client.HSet(ctx, key, fields).Err()
}

func (d *RedisDatastore) hsetSeq(ctx context.Context, key string, seq func(yield func(string, int64) bool)) error {
	chunk := make(map[string]any, hsetChunk)
	for field, n := range seq {
		chunk[field] = n
		if len(chunk) == hsetChunk {
			if err := d.hset(ctx, key, chunk); err != nil {
				return err
			}
			chunk = make(map[string]any, hsetChunk)
		}
	}
	return d.hset(ctx, key, chunk)
}

// WriteModel 写入新版本并切换当前版本指针.
func (d *RedisDatastore) WriteModel(ctx context.Context, m *bayes.Model) error {
	version := strconv.FormatInt(time.Now().UnixNano(), 36)
	labels := m.LabelList()

	meta := map[string]any{
		"mode":       m.Mode().String(),
		"alpha":      strconv.FormatFloat(m.Alpha(), 'g', -1, 64),
		"documents":  m.TotalDocuments(),
		"words":      m.CorpusWordCount(),
		"vocabulary": 0,
	}
	docs := make(map[string]any, len(labels))
	totals := make(map[string]any, len(labels))
	for _, l := range labels {
		docs[l] = m.DocumentCount(l)
		total, err := m.TotalWordCount(ctx, l)
		if err != nil {
			return err
		}
		totals[l] = total
	}
	vocab, _ := m.VocabularySize(ctx)
	meta["vocabulary"] = vocab

	if err := d.hsetSeq(ctx, d.key(version, "features"), m.Features()); err != nil {
		return err
	}
	for _, l := range labels {
		if err := d.hsetSeq(ctx, d.countsKey(version, l), m.Counts(l)); err != nil {
			return err
		}
	}
	if err := d.hset(ctx, d.key(version, "docs"), docs); err != nil {
		return err
	}
	if err := d.hset(ctx, d.key(version, "totals"), totals); err != nil {
		return err
	}
	if err := d.hset(ctx, d.key(version, "meta"), meta); err != nil {
		return err
	}

	previous, err := d.client.Get(ctx, d.currentKey()).Result()
	if err != nil && !errors.Is(err, redis.Nil) {
		return err
	}
	if err := d.client.Set(ctx, d.currentKey(), version, 0).Err(); err != nil {
		return err
	}
	d.logger.InfoContext(ctx, "model written to redis", "prefix", d.prefix, "version", version, "labels", len(labels), "vocabulary", vocab)

	if previous != "" && previous != version {
		if err := d.dropVersion(ctx, previous); err != nil {
			d.logger.WarnContext(ctx, "failed to drop previous model version", "version", previous, "error", err)
		}
	}
	return nil
}

func (d *RedisDatastore) dropVersion(ctx context.Context, version string) error {
	docs, err := d.client.HGetAll(ctx, d.key(version, "docs")).Result()
	if err != nil {
		return err
	}
	keys := []string{
		d.key(version, "meta"),
		d.key(version, "docs"),
		d.key(version, "totals"),
		d.key(version, "features"),
	}
	for label := range docs {
		keys = append(keys, d.countsKey(version, label))
	}
	return d.client.Del(ctx, keys...).Err()
}

// Load 读取当前版本的类别级统计量，并清空本地计数缓存.
func (d *RedisDatastore) Load(ctx context.Context) error {
	version, err := d.client.Get(ctx, d.currentKey()).Result()
	if errors.Is(err, redis.Nil) {
		return ErrModelNotFound.WithDetail("no model under redis prefix %q", d.prefix)
	}
	if err != nil {
		return err
	}

	meta, err := d.client.HGetAll(ctx, d.key(version, "meta")).Result()
	if err != nil {
		return err
	}
	docs, err := d.client.HGetAll(ctx, d.key(version, "docs")).Result()
	if err != nil {
		return err
	}
	totals, err := d.client.HGetAll(ctx, d.key(version, "totals")).Result()
	if err != nil {
		return err
	}

	s := &redisSummary{
		version: version,
		docs:    make(map[string]int64, len(docs)),
		totals:  make(map[string]int64, len(totals)),
	}
	if s.mode, err = bayes.ParseMode(meta["mode"]); err != nil {
		return ErrCorruptModel.WithDetail("version %s", version).WithCause(err)
	}
	if s.alpha, err = strconv.ParseFloat(meta["alpha"], 64); err != nil {
		return ErrCorruptModel.WithDetail("version %s alpha", version).WithCause(err)
	}
	for field, dst := range map[string]*int64{"documents": &s.totalDocs, "words": &s.corpusWords, "vocabulary": &s.vocabulary} {
		if *dst, err = strconv.ParseInt(meta[field], 10, 64); err != nil {
			return ErrCorruptModel.WithDetail("version %s %s", version, field).WithCause(err)
		}
	}
	for label, v := range docs {
		n, err := strconv.ParseInt(v, 10, 64)
		if err != nil {
			return ErrCorruptModel.WithDetail("document count of %q", label).WithCause(err)
		}
		s.docs[label] = n
		t, err := strconv.ParseInt(totals[label], 10, 64)
		if err != nil {
			return ErrCorruptModel.WithDetail("word total of %q", label).WithCause(err)
		}
		s.totals[label] = t
	}
	if len(s.docs) == 0 || s.totalDocs == 0 {
		return ErrCorruptModel.WithDetail("version %s has no labels", version)
	}
	s.labels = slices.Sorted(maps.Keys(s.docs))

	evicted := d.cache.Len()
	if err := d.cache.Reset(); err != nil {
		return err
	}
	d.summary.Store(s)
	d.logger.DebugContext(ctx, "redis model loaded", "prefix", d.prefix, "version", version,
		"labels", len(s.labels), "evicted_counts", evicted)
	return nil
}

// Datastore 实现 Store.
func (d *RedisDatastore) Datastore(ctx context.Context) (bayes.Datastore, error) {
	if err := d.Load(ctx); err != nil {
		return nil, err
	}
	return d, nil
}

func (d *RedisDatastore) loaded() (*redisSummary, error) {
	s := d.summary.Load()
	if s == nil {
		return nil, bayes.ErrInvalidDatastore.WithDetail("redis datastore is not loaded")
	}
	return s, nil
}

func (d *RedisDatastore) label(label string) (*redisSummary, error) {
	s, err := d.loaded()
	if err != nil {
		return nil, err
	}
	if _, ok := s.docs[label]; !ok {
		return nil, bayes.ErrUnknownLabel.WithDetail("label %q", label)
	}
	return s, nil
}

// count 读取一个哈希字段，先查本地缓存，未命中时经熔断器访问 Redis.
func (d *RedisDatastore) count(ctx context.Context, key, field string) (int64, error) {
	ck := key + "\x00" + field
	if n, ok := d.cache.Get(ck); ok {
		return n, nil
	}
	n, err := breaker.Execute(d.breaker, func() (int64, error) {
		n, err := d.client.HGet(ctx, key, field).Int64()
		if errors.Is(err, redis.Nil) {
			return 0, nil
		}
		return n, err
	})
	if err != nil {
		return 0, err
	}
	if err := d.cache.Set(ck, n); err != nil {
		d.logger.DebugContext(ctx, "count cache set failed", "error", err)
	}
	return n, nil
}

// Labels 实现 bayes.Datastore.
func (d *RedisDatastore) Labels(context.Context) ([]string, error) {
	s, err := d.loaded()
	if err != nil {
		return nil, err
	}
	return slices.Clone(s.labels), nil
}

// WordCount 实现 bayes.Datastore.
func (d *RedisDatastore) WordCount(ctx context.Context, label, feature string) (int64, error) {
	s, err := d.label(label)
	if err != nil {
		return 0, err
	}
	return d.count(ctx, d.countsKey(s.version, label), feature)
}

// TotalWordCount 实现 bayes.Datastore.
func (d *RedisDatastore) TotalWordCount(_ context.Context, label string) (int64, error) {
	s, err := d.label(label)
	if err != nil {
		return 0, err
	}
	return s.totals[label], nil
}

// FeatureCount 实现 bayes.Datastore.
func (d *RedisDatastore) FeatureCount(ctx context.Context, feature string) (int64, error) {
	s, err := d.loaded()
	if err != nil {
		return 0, err
	}
	return d.count(ctx, d.key(s.version, "features"), feature)
}

// ComplementWordCount 实现 bayes.Datastore.
func (d *RedisDatastore) ComplementWordCount(ctx context.Context, label, feature string) (int64, error) {
	s, err := d.label(label)
	if err != nil {
		return 0, err
	}
	if s.mode != bayes.ModeComplement {
		return 0, bayes.ErrInvalidDatastore.WithDetail("model was trained without complement statistics")
	}
	total, err := d.FeatureCount(ctx, feature)
	if err != nil || total == 0 {
		return 0, err
	}
	own, err := d.WordCount(ctx, label, feature)
	if err != nil {
		return 0, err
	}
	return total - own, nil
}

// ComplementTotalWordCount 实现 bayes.Datastore.
func (d *RedisDatastore) ComplementTotalWordCount(_ context.Context, label string) (int64, error) {
	s, err := d.label(label)
	if err != nil {
		return 0, err
	}
	if s.mode != bayes.ModeComplement {
		return 0, bayes.ErrInvalidDatastore.WithDetail("model was trained without complement statistics")
	}
	return s.corpusWords - s.totals[label], nil
}

// Prior 实现 bayes.Datastore.
func (d *RedisDatastore) Prior(_ context.Context, label string) (float64, error) {
	s, err := d.label(label)
	if err != nil {
		return 0, err
	}
	return float64(s.docs[label]) / float64(s.totalDocs), nil
}

// VocabularySize 实现 bayes.Datastore.
func (d *RedisDatastore) VocabularySize(context.Context) (int64, error) {
	s, err := d.loaded()
	if err != nil {
		return 0, err
	}
	return s.vocabulary, nil
}
