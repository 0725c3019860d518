package driver

import (
	"context"
	"encoding/json"
	"io"
	"strings"
	"time"

	"github.com/sourcegraph/conc/pool"

	"github.com/wyfcoding/bayes/bayes"
	"github.com/wyfcoding/bayes/config"
	"github.com/wyfcoding/bayes/corpus"
	"github.com/wyfcoding/bayes/evaluation"
	"github.com/wyfcoding/bayes/retry"
	"github.com/wyfcoding/bayes/storage"
	"github.com/wyfcoding/bayes/tracing"
	"github.com/wyfcoding/bayes/xerrors"
)

// job 一次分类作业共享的只读状态.
type job struct {
	objects    storage.Storage
	datastore  bayes.Datastore
	algorithm  bayes.Algorithm
	labels     []string
	defaultCat string
	encoding   string
	gramSize   int
	outputDir  string
	o          *options
}

func newJob(ctx context.Context, objects storage.Storage, params *config.Parameters, ds bayes.Datastore, o *options) (*job, error) {
	gramSize, err := params.Int(config.KeyGramSize)
	if err != nil {
		return nil, err
	}
	alg, _, err := algorithmFromParams(params)
	if err != nil {
		return nil, err
	}
	labels, err := ds.Labels(ctx)
	if err != nil {
		return nil, err
	}
	return &job{
		objects:    objects,
		datastore:  ds,
		algorithm:  alg,
		labels:     labels,
		defaultCat: params.StringOr(config.KeyDefaultCat, "unknown"),
		encoding:   params.StringOr(config.KeyEncoding, "UTF-8"),
		gramSize:   gramSize,
		o:          o,
	}, nil
}

// OutputDir 返回测试目录对应的分片结果目录.
func OutputDir(testDir string) string {
	return strings.TrimRight(testDir, "/") + OutputSuffix
}

// ClassifyParallel 对 testDirPath 下的测试集按分片并行分类。每个分片使用独立的
// ClassifierContext 与混淆矩阵，结果写入 <testDirPath>-output/part-NNNNN；失败的分片
// 整体重跑并覆盖旧结果。全部分片完成后合并并返回总混淆矩阵.
func ClassifyParallel(ctx context.Context, objects storage.Storage, params *config.Parameters,
	ds bayes.Datastore, opts ...Option,
) (*evaluation.ConfusionMatrix, error) {
	o := newOptions(opts)
	testDir, err := params.String(config.KeyTestDirPath)
	if err != nil {
		return nil, err
	}
	workers, err := params.Int(config.KeyWorkers)
	if err != nil {
		return nil, err
	}
	retries, err := params.Int(config.KeyShardRetries)
	if err != nil {
		return nil, err
	}
	shardLines, err := params.Int(config.KeyShardLines)
	if err != nil {
		return nil, err
	}
	j, err := newJob(ctx, objects, params, ds, o)
	if err != nil {
		return nil, err
	}
	j.outputDir = OutputDir(testDir)

	ctx, span := tracing.StartSpan(ctx, "driver.ClassifyParallel",
		tracing.PrefixKey.String(testDir),
		tracing.AlgorithmKey.String(j.algorithm.Name()),
	)
	defer span.End()

	shards, err := PlanShards(ctx, objects, testDir, shardLines)
	if err != nil {
		tracing.SetError(span, err)
		return nil, err
	}
	if len(shards) == 0 {
		err := config.ErrInvalidValue.WithDetail("no test files under %q", testDir)
		tracing.SetError(span, err)
		return nil, err
	}

	stale, err := clearParts(ctx, objects, j.outputDir)
	if err != nil {
		tracing.SetError(span, err)
		return nil, err
	}
	if stale > 0 {
		o.logger.InfoContext(ctx, "removed stale shard results", "output", j.outputDir, "parts", stale)
	}

	rc := o.retry
	rc.MaxRetries = retries

	start := time.Now()
	p := pool.New().WithContext(ctx).WithMaxGoroutines(max(workers, 1)).WithCancelOnError().WithFirstError()
	for _, sh := range shards {
		p.Go(func(ctx context.Context) error {
			return j.runShard(ctx, sh, rc)
		})
	}
	if err := p.Wait(); err != nil {
		tracing.SetError(span, err)
		return nil, err
	}

	names := make([]string, len(shards))
	for i, sh := range shards {
		names[i] = sh.PartName(j.outputDir)
	}
	total, err := ReadParts(ctx, objects, names)
	if err != nil {
		tracing.SetError(span, err)
		return nil, err
	}
	o.logger.InfoContext(ctx, "parallel classification finished",
		"shards", len(shards),
		"workers", workers,
		"instances", total.Total(),
		"correct", total.Correct(),
		"duration", time.Since(start),
	)
	return total, nil
}

// runShard 在重试策略下执行一个分片，每次尝试都从头重新计数.
func (j *job) runShard(ctx context.Context, sh Shard, rc retry.Config) error {
	rc.OnRetry = func(attempt int, err error) {
		j.o.logger.WarnContext(ctx, "shard failed, retrying", "shard", sh.ID, "object", sh.Object, "attempt", attempt, "error", err)
	}
	return retry.Retry(ctx, func(ctx context.Context, attempt int) error {
		start := time.Now()
		err := j.attempt(ctx, sh, attempt)
		status := "success"
		if err != nil {
			status = "failed"
		}
		j.o.metrics.ObserveShard(status, time.Since(start))
		if err != nil && permanent(err) {
			return retry.Permanent(err)
		}
		return err
	}, rc)
}

func (j *job) attempt(ctx context.Context, sh Shard, attempt int) (err error) {
	ctx, span := tracing.StartSpan(ctx, "driver.ClassifyShard", tracing.Shard(sh.ID, sh.Object, attempt)...)
	defer tracing.End(span, &err)
	defer j.o.logger.LogDuration(ctx, "shard attempt", "shard", sh.ID, "object", sh.Object, "attempt", attempt)()

	m, err := j.classifyShard(ctx, sh)
	if err != nil {
		return err
	}
	data, err := json.Marshal(m)
	if err != nil {
		return xerrors.WrapInternal(err, "encode shard result")
	}
	if err := storage.PutBytes(ctx, j.objects, sh.PartName(j.outputDir), data); err != nil {
		return err
	}
	if j.o.sink != nil {
		if err := j.o.sink.Publish(ctx, PartialResult{Shard: sh.ID, Attempt: attempt, Matrix: m}); err != nil {
			return err
		}
	}
	j.o.logger.DebugContext(ctx, "shard classified", "shard", sh.ID, "object", sh.Object, "instances", m.Total())
	return nil
}

func (j *job) classifyShard(ctx context.Context, sh Shard) (*evaluation.ConfusionMatrix, error) {
	rc, err := j.objects.Get(ctx, sh.Object)
	if err != nil {
		return nil, err
	}
	defer rc.Close()
	a, err := j.classify(ctx, rc, sh)
	if err != nil {
		return nil, err
	}
	return a.ConfusionMatrix(), nil
}

// classify 对语料流中落在分片行区间内的文档逐篇分类.
func (j *job) classify(ctx context.Context, src io.Reader, sh Shard) (*evaluation.ResultAnalyzer, error) {
	cc := bayes.NewClassifierContext(j.algorithm, j.datastore,
		bayes.WithLogger(j.o.logger),
		bayes.WithMetrics(j.o.metrics),
	)
	if err := cc.Initialize(ctx); err != nil {
		return nil, err
	}
	analyzer := evaluation.NewResultAnalyzer(j.labels, j.defaultCat, evaluation.WithAnalyzerMetrics(j.o.metrics))

	r, err := corpus.NewReader(src, j.encoding, j.gramSize)
	if err != nil {
		return nil, err
	}
	for r.Scan() {
		doc := r.Document()
		if !sh.contains(doc.Line) {
			if sh.Last != 0 && doc.Line > sh.Last {
				break
			}
			continue
		}
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		result, err := cc.ClassifyDocument(ctx, doc.Features, j.defaultCat)
		if err != nil {
			return nil, err
		}
		analyzer.AddInstance(doc.Label, result)
	}
	if err := r.Err(); err != nil {
		return nil, err
	}
	return analyzer, nil
}

// ClassifyCorpus 顺序分类一个带标签的语料流并返回评估结果.
func ClassifyCorpus(ctx context.Context, src io.Reader, params *config.Parameters, ds bayes.Datastore,
	opts ...Option,
) (*evaluation.ResultAnalyzer, error) {
	j, err := newJob(ctx, nil, params, ds, newOptions(opts))
	if err != nil {
		return nil, err
	}
	return j.classify(ctx, src, Shard{First: 1})
}

// permanent 报告错误是否源于配置或数据问题，这类错误重跑也不会成功.
func permanent(err error) bool {
	e, ok := xerrors.FromError(err)
	if !ok {
		return false
	}
	switch e.Type {
	case xerrors.ErrConfig, xerrors.ErrData, xerrors.ErrInvalidArg:
		return true
	}
	return false
}
