package modelstore

import (
	"bytes"
	"context"
	"errors"
	"sync"

	"github.com/wyfcoding/bayes/bayes"
	"github.com/wyfcoding/bayes/logging"
	"github.com/wyfcoding/bayes/storage"
)

// ObjectStore 把模型保存为对象存储中的单个 JSON 对象.
type ObjectStore struct {
	objects storage.Storage
	name    string
	logger  *logging.Logger
}

// NewObjectStore 创建对象存储后端，name 为模型对象名.
func NewObjectStore(objects storage.Storage, name string, logger *logging.Logger) *ObjectStore {
	if logger == nil {
		logger = logging.Default()
	}
	return &ObjectStore{objects: objects, name: name, logger: logger}
}

// WriteModel 编码并整体覆盖模型对象.
func (s *ObjectStore) WriteModel(ctx context.Context, m *bayes.Model) error {
	var buf bytes.Buffer
	if err := Encode(&buf, m); err != nil {
		return err
	}
	if err := storage.PutBytes(ctx, s.objects, s.name, buf.Bytes()); err != nil {
		return err
	}
	s.logger.InfoContext(ctx, "model written", "object", s.name, "bytes", buf.Len(), "labels", len(m.LabelList()))
	return nil
}

// Load 读取并解码模型.
func (s *ObjectStore) Load(ctx context.Context) (*bayes.Model, error) {
	rc, err := s.objects.Get(ctx, s.name)
	if errors.Is(err, storage.ErrObjectNotFound) {
		return nil, ErrModelNotFound.WithDetail("object %q", s.name)
	}
	if err != nil {
		return nil, err
	}
	defer rc.Close()
	return Decode(rc)
}

// Datastore 实现 Store，返回加载到内存的模型.
func (s *ObjectStore) Datastore(ctx context.Context) (bayes.Datastore, error) {
	m, err := s.Load(ctx)
	if err != nil {
		return nil, err
	}
	return m, nil
}

// MemoryStore 仅在进程内保存最近一次写入的模型.
type MemoryStore struct {
	mu    sync.RWMutex
	model *bayes.Model
}

// NewMemoryStore 创建空的内存后端.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{}
}

// WriteModel 实现 bayes.ModelWriter.
func (s *MemoryStore) WriteModel(_ context.Context, m *bayes.Model) error {
	s.mu.Lock()
	s.model = m
	s.mu.Unlock()
	return nil
}

// Datastore 实现 Store.
func (s *MemoryStore) Datastore(context.Context) (bayes.Datastore, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.model == nil {
		return nil, ErrModelNotFound.WithDetail("memory store is empty")
	}
	return s.model, nil
}
