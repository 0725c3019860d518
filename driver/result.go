package driver

import (
	"context"
	"encoding/json"

	"golang.org/x/sync/errgroup"

	"github.com/wyfcoding/bayes/evaluation"
	"github.com/wyfcoding/bayes/storage"
	"github.com/wyfcoding/bayes/xerrors"
)

// fetchConcurrency 并发读取分片结果的上限.
const fetchConcurrency = 8

// ReadResult 读取 prefix 目录下全部 part-* 分片结果并合并为一个混淆矩阵.
// 没有任何分片时返回 evaluation.ErrNoMatrices.
func ReadResult(ctx context.Context, objects storage.Storage, prefix string) (*evaluation.ConfusionMatrix, error) {
	names, err := partNames(ctx, objects, prefix)
	if err != nil {
		return nil, err
	}
	return ReadParts(ctx, objects, names)
}

func partNames(ctx context.Context, objects storage.Storage, prefix string) ([]string, error) {
	return objects.List(ctx, dirPrefix(prefix)+"part-")
}

// clearParts 删除 prefix 目录下已有的分片结果，新一轮作业不会读到上一轮遗留的文件.
func clearParts(ctx context.Context, objects storage.Storage, prefix string) (int, error) {
	names, err := partNames(ctx, objects, prefix)
	if err != nil {
		return 0, err
	}
	for _, name := range names {
		if err := objects.Delete(ctx, name); err != nil {
			return 0, err
		}
	}
	return len(names), nil
}

// ReadParts 并发读取给定的分片结果对象并按给定顺序归并，每个对象只计入一次.
func ReadParts(ctx context.Context, objects storage.Storage, names []string) (*evaluation.ConfusionMatrix, error) {
	parts := make([]*evaluation.ConfusionMatrix, len(names))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(fetchConcurrency)
	for i, name := range names {
		g.Go(func() error {
			data, err := storage.ReadAll(gctx, objects, name)
			if err != nil {
				return err
			}
			var m evaluation.ConfusionMatrix
			if err := json.Unmarshal(data, &m); err != nil {
				return xerrors.Wrap(err, xerrors.ErrData, "decode shard result").WithContext("object", name)
			}
			parts[i] = &m
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return evaluation.Reduce(parts...)
}
