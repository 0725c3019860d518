package driver

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"
	"sync"
	"testing"
	"time"

	kafkago "github.com/segmentio/kafka-go"
	"github.com/spf13/afero"

	"github.com/wyfcoding/bayes/bayes"
	"github.com/wyfcoding/bayes/config"
	"github.com/wyfcoding/bayes/corpus"
	"github.com/wyfcoding/bayes/evaluation"
	"github.com/wyfcoding/bayes/logging"
	"github.com/wyfcoding/bayes/modelstore"
	"github.com/wyfcoding/bayes/retry"
	"github.com/wyfcoding/bayes/storage"
)

var classes = map[string][]string{
	"mahout": {
		"mahout scalable machine learning libraries algorithms",
		"clustering classification collaborative filtering mahout mapreduce",
		"mahout distributed recommender vectors scalable training",
		"mahout community mailing lists learning clustering",
	},
	"lucene": {
		"lucene search engine library indexing queries",
		"lucene fulltext search analyzers tokens scoring",
		"lucene inverted index segments merging queries",
		"lucene highlighting faceting search relevance ranking",
	},
	"redhat": {
		"redhat enterprise linux server platform subscription",
		"redhat kernel packages rpm yum support",
		"redhat openshift containers enterprise cloud platform",
		"redhat fedora upstream kernel distribution releases",
	},
}

func classFile(label string) string {
	var b strings.Builder
	for _, doc := range classes[label] {
		fmt.Fprintf(&b, "%s\t%s\n", label, doc)
	}
	return b.String()
}

// newWorkspace 在内存文件系统中准备 train/ 与 test/ 两个目录，内容相同.
func newWorkspace(t *testing.T) *storage.FileStorage {
	t.Helper()
	ctx := context.Background()
	objects := storage.NewFileStorage(afero.NewMemMapFs(), "/work")
	for label := range classes {
		for _, dir := range []string{"train", "test"} {
			if err := storage.PutBytes(ctx, objects, dir+"/"+label+".txt", []byte(classFile(label))); err != nil {
				t.Fatalf("PutBytes() error = %v", err)
			}
		}
	}
	return objects
}

func newParams(mode bayes.Mode, overrides map[string]string) *config.Parameters {
	p := config.NewParameters(map[string]string{
		config.KeyClassifierType: mode.String(),
		config.KeyTestDirPath:    "test",
		config.KeyWorkers:        "2",
		config.KeyDefaultCat:     "unknown",
	})
	for k, v := range overrides {
		p.Set(k, v)
	}
	return p
}

var fastRetry = WithRetryConfig(retry.Config{InitialBackoff: time.Millisecond, MaxBackoff: time.Millisecond, Multiplier: 1})

func trainFromWorkspace(t *testing.T, objects storage.Storage, params *config.Parameters) *bayes.Model {
	t.Helper()
	store := modelstore.NewMemoryStore()
	m, err := TrainFromStorage(context.Background(), objects, "train", params, store, WithLogger(logging.Discard()))
	if err != nil {
		t.Fatalf("TrainFromStorage() error = %v", err)
	}
	if _, err := store.Datastore(context.Background()); err != nil {
		t.Fatalf("model not written to store: %v", err)
	}
	return m
}

func assertDiagonal(t *testing.T, m *evaluation.ConfusionMatrix) {
	t.Helper()
	for label := range classes {
		if got := m.Get(label, label); got != 4 {
			t.Errorf("matrix[%s][%s] = %d, want 4", label, label, got)
		}
	}
	if m.Total() != 12 || m.Correct() != 12 {
		t.Errorf("total/correct = %d/%d, want 12/12\n%s", m.Total(), m.Correct(), m)
	}
}

func TestTrainFromCorpus(t *testing.T) {
	params := newParams(bayes.ModeComplement, nil)
	m, err := TrainFromCorpus(context.Background(), strings.NewReader(classFile("mahout")+classFile("redhat")), params,
		WithLogger(logging.Discard()))
	if err != nil {
		t.Fatalf("TrainFromCorpus() error = %v", err)
	}
	if m.Mode() != bayes.ModeComplement {
		t.Errorf("Mode() = %v, want cbayes", m.Mode())
	}
	if m.TotalDocuments() != 8 || len(m.LabelList()) != 2 {
		t.Errorf("documents/labels = %d/%d, want 8/2", m.TotalDocuments(), len(m.LabelList()))
	}

	bad := newParams(bayes.ModeStandard, map[string]string{config.KeyAlpha: "abc"})
	if _, err := TrainFromCorpus(context.Background(), strings.NewReader(""), bad); !errors.Is(err, config.ErrInvalidValue) {
		t.Errorf("TrainFromCorpus(bad alpha) error = %v, want ErrInvalidValue", err)
	}
}

func TestClassifyParallelMatchesSequential(t *testing.T) {
	for _, mode := range []bayes.Mode{bayes.ModeStandard, bayes.ModeComplement} {
		t.Run(mode.String(), func(t *testing.T) {
			ctx := context.Background()
			objects := newWorkspace(t)
			params := newParams(mode, nil)
			m := trainFromWorkspace(t, objects, params)

			parallel, err := ClassifyParallel(ctx, objects, params, m, WithLogger(logging.Discard()), fastRetry)
			if err != nil {
				t.Fatalf("ClassifyParallel() error = %v", err)
			}
			assertDiagonal(t, parallel)

			all := classFile("lucene") + classFile("mahout") + classFile("redhat")
			seq, err := ClassifyCorpus(ctx, strings.NewReader(all), params, m, WithLogger(logging.Discard()))
			if err != nil {
				t.Fatalf("ClassifyCorpus() error = %v", err)
			}
			if !seq.ConfusionMatrix().Equal(parallel) {
				t.Errorf("parallel matrix differs from sequential\nparallel:\n%s\nsequential:\n%s", parallel, seq.ConfusionMatrix())
			}

			parts, err := objects.List(ctx, "test-output/part-")
			if err != nil {
				t.Fatalf("List() error = %v", err)
			}
			if len(parts) != 3 {
				t.Errorf("part files = %v, want 3", parts)
			}
		})
	}
}

func TestClassifyParallelSplitsLargeFiles(t *testing.T) {
	ctx := context.Background()
	objects := newWorkspace(t)
	params := newParams(bayes.ModeStandard, map[string]string{config.KeyShardLines: "3", config.KeyWorkers: "4"})
	m := trainFromWorkspace(t, objects, params)

	got, err := ClassifyParallel(ctx, objects, params, m, WithLogger(logging.Discard()), fastRetry)
	if err != nil {
		t.Fatalf("ClassifyParallel() error = %v", err)
	}
	assertDiagonal(t, got)

	parts, _ := objects.List(ctx, "test-output/part-")
	if len(parts) != 6 {
		t.Errorf("part files = %d, want 6 (two per file)", len(parts))
	}
}

func TestClassifyParallelIgnoresStaleParts(t *testing.T) {
	ctx := context.Background()
	objects := newWorkspace(t)
	fine := newParams(bayes.ModeStandard, map[string]string{config.KeyShardLines: "1"})
	m := trainFromWorkspace(t, objects, fine)

	first, err := ClassifyParallel(ctx, objects, fine, m, WithLogger(logging.Discard()), fastRetry)
	if err != nil {
		t.Fatalf("first run error = %v", err)
	}
	if first.Total() != 12 {
		t.Fatalf("first run total = %d, want 12", first.Total())
	}

	coarse := newParams(bayes.ModeStandard, map[string]string{config.KeyShardLines: "0"})
	second, err := ClassifyParallel(ctx, objects, coarse, m, WithLogger(logging.Discard()), fastRetry)
	if err != nil {
		t.Fatalf("second run error = %v", err)
	}
	if second.Total() != 12 {
		t.Errorf("second run total = %d, want 12", second.Total())
	}
	assertDiagonal(t, second)

	parts, _ := objects.List(ctx, "test-output/part-")
	if len(parts) != 3 {
		t.Errorf("part files after second run = %v, want 3", parts)
	}
	merged, err := ReadResult(ctx, objects, "test-output")
	if err != nil || !merged.Equal(second) {
		t.Errorf("ReadResult() = %v, %v; want the second run's matrix", merged, err)
	}
}

// flakyStorage 让指定对象的前几次读取失败.
type flakyStorage struct {
	storage.Storage
	mu       sync.Mutex
	target   string
	failures int
}

func (f *flakyStorage) Get(ctx context.Context, name string) (io.ReadCloser, error) {
	f.mu.Lock()
	if name == f.target && f.failures > 0 {
		f.failures--
		f.mu.Unlock()
		return nil, storage.ErrStorageUnavailable.WithDetail("injected failure for %s", name)
	}
	f.mu.Unlock()
	return f.Storage.Get(ctx, name)
}

func TestClassifyParallelRetriesFailedShard(t *testing.T) {
	ctx := context.Background()
	objects := newWorkspace(t)
	params := newParams(bayes.ModeStandard, map[string]string{config.KeyShardRetries: "2"})
	m := trainFromWorkspace(t, objects, params)

	flaky := &flakyStorage{Storage: objects, target: "test/redhat.txt", failures: 2}
	got, err := ClassifyParallel(ctx, flaky, params, m, WithLogger(logging.Discard()), fastRetry)
	if err != nil {
		t.Fatalf("ClassifyParallel() error = %v", err)
	}
	assertDiagonal(t, got)

	flaky = &flakyStorage{Storage: objects, target: "test/redhat.txt", failures: 3}
	if _, err := ClassifyParallel(ctx, flaky, params, m, WithLogger(logging.Discard()), fastRetry); !errors.Is(err, storage.ErrStorageUnavailable) {
		t.Errorf("ClassifyParallel() with exhausted retries error = %v, want ErrStorageUnavailable", err)
	}
}

func TestClassifyParallelPermanentError(t *testing.T) {
	ctx := context.Background()
	objects := newWorkspace(t)
	params := newParams(bayes.ModeStandard, nil)
	m := trainFromWorkspace(t, objects, params)

	params.Set(config.KeyEncoding, "no-such-charset")
	if _, err := ClassifyParallel(ctx, objects, params, m, WithLogger(logging.Discard()), fastRetry); !errors.Is(err, corpus.ErrUnsupportedEncoding) {
		t.Errorf("ClassifyParallel() error = %v, want ErrUnsupportedEncoding", err)
	}

	params = newParams(bayes.ModeStandard, map[string]string{config.KeyTestDirPath: "missing"})
	if _, err := ClassifyParallel(ctx, objects, params, m, WithLogger(logging.Discard())); !errors.Is(err, config.ErrInvalidValue) {
		t.Errorf("ClassifyParallel(empty dir) error = %v, want ErrInvalidValue", err)
	}
}

func TestReadResultEmpty(t *testing.T) {
	objects := storage.NewFileStorage(afero.NewMemMapFs(), "/empty")
	if _, err := ReadResult(context.Background(), objects, "test-output"); !errors.Is(err, evaluation.ErrNoMatrices) {
		t.Errorf("ReadResult() error = %v, want ErrNoMatrices", err)
	}
}

func TestPlanShards(t *testing.T) {
	ctx := context.Background()
	objects := storage.NewFileStorage(afero.NewMemMapFs(), "/plan")
	_ = storage.PutBytes(ctx, objects, "test/a.txt", []byte("a\tx\na\ty\na\tz"))
	_ = storage.PutBytes(ctx, objects, "test/b.txt", []byte(""))
	_ = storage.PutBytes(ctx, objects, "test-output/part-00000", []byte("{}"))

	shards, err := PlanShards(ctx, objects, "test", 2)
	if err != nil {
		t.Fatalf("PlanShards() error = %v", err)
	}
	want := []Shard{
		{ID: 0, Object: "test/a.txt", First: 1, Last: 2},
		{ID: 1, Object: "test/a.txt", First: 3, Last: 3},
	}
	if len(shards) != len(want) {
		t.Fatalf("PlanShards() = %+v, want %+v", shards, want)
	}
	for i := range want {
		if shards[i] != want[i] {
			t.Errorf("shard %d = %+v, want %+v", i, shards[i], want[i])
		}
	}

	whole, _ := PlanShards(ctx, objects, "test", 0)
	if len(whole) != 2 {
		t.Errorf("PlanShards(0) = %d shards, want one per file", len(whole))
	}
	if got := whole[1].PartName("test-output"); got != "test-output/part-00001" {
		t.Errorf("PartName() = %q", got)
	}
}

// fakeKafka 把写入的消息按顺序交给读端.
type fakeKafka struct {
	mu        sync.Mutex
	messages  []kafkago.Message
	next      int
	committed int
}

func (f *fakeKafka) WriteMessages(_ context.Context, msgs ...kafkago.Message) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.messages = append(f.messages, msgs...)
	return nil
}

func (f *fakeKafka) Close() error { return nil }

func (f *fakeKafka) FetchMessage(ctx context.Context) (kafkago.Message, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.next >= len(f.messages) {
		return kafkago.Message{}, io.EOF
	}
	msg := f.messages[f.next]
	msg.Offset = int64(f.next)
	f.next++
	return msg, ctx.Err()
}

func (f *fakeKafka) CommitMessages(_ context.Context, msgs ...kafkago.Message) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.committed += len(msgs)
	return nil
}

func TestKafkaSinkAndCollect(t *testing.T) {
	ctx := context.Background()
	objects := newWorkspace(t)
	params := newParams(bayes.ModeComplement, nil)
	m := trainFromWorkspace(t, objects, params)

	bus := &fakeKafka{}
	sink := NewKafkaSink(bus, logging.Discard())
	want, err := ClassifyParallel(ctx, objects, params, m, WithLogger(logging.Discard()), WithSink(sink), fastRetry)
	if err != nil {
		t.Fatalf("ClassifyParallel() error = %v", err)
	}
	if len(bus.messages) != 3 {
		t.Fatalf("published %d messages, want 3", len(bus.messages))
	}

	// 重跑分片 0：重复消息不能被重复计数.
	first := bus.messages[0]
	bus.messages = append([]kafkago.Message{first}, bus.messages...)

	got, err := CollectFromKafka(ctx, bus, 3, logging.Discard())
	if err != nil {
		t.Fatalf("CollectFromKafka() error = %v", err)
	}
	if !got.Equal(want) {
		t.Errorf("collected matrix differs\ngot:\n%s\nwant:\n%s", got, want)
	}
	if bus.committed != 4 {
		t.Errorf("committed = %d, want 4", bus.committed)
	}

	if _, err := CollectFromKafka(ctx, &fakeKafka{}, 1, logging.Discard()); !errors.Is(err, io.EOF) {
		t.Errorf("CollectFromKafka(empty) error = %v, want io.EOF", err)
	}
}
