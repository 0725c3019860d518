package driver

import (
	"bytes"
	"context"
	"fmt"
	"path"

	"github.com/wyfcoding/bayes/storage"
)

// Shard 一个分类任务单元：一个测试文件，或大文件中的一段连续行.
type Shard struct {
	ID     int
	Object string
	// First 与 Last 为 1 起始的行号闭区间，Last 为 0 表示读到文件末尾.
	First int
	Last  int
}

// PartName 返回分片结果在输出目录中的对象名.
func (s Shard) PartName(outputDir string) string {
	return path.Join(outputDir, fmt.Sprintf("part-%05d", s.ID))
}

func (s Shard) contains(line int) bool {
	return line >= s.First && (s.Last == 0 || line <= s.Last)
}

// PlanShards 为 testDir 下的每个文件生成分片；shardLines > 0 时按行数切分大文件.
// 分片编号在多次规划之间保持稳定，重跑的分片覆盖同名结果.
func PlanShards(ctx context.Context, objects storage.Storage, testDir string, shardLines int) ([]Shard, error) {
	names, err := objects.List(ctx, dirPrefix(testDir))
	if err != nil {
		return nil, err
	}

	var shards []Shard
	for _, name := range names {
		if shardLines <= 0 {
			shards = append(shards, Shard{ID: len(shards), Object: name, First: 1})
			continue
		}
		data, err := storage.ReadAll(ctx, objects, name)
		if err != nil {
			return nil, err
		}
		lines := countLines(data)
		if lines == 0 {
			continue
		}
		for first := 1; first <= lines; first += shardLines {
			last := min(first+shardLines-1, lines)
			shards = append(shards, Shard{ID: len(shards), Object: name, First: first, Last: last})
		}
	}
	return shards, nil
}

func countLines(data []byte) int {
	if len(data) == 0 {
		return 0
	}
	n := bytes.Count(data, []byte{'\n'})
	if data[len(data)-1] != '\n' {
		n++
	}
	return n
}
