// Package modelstore 负责训练结果的持久化，并按 dataSource 为分类提供 bayes.Datastore.
//
// file 与 minio 后端把整个模型编码为一个 JSON 对象，分类前整体加载到内存；
// redis 后端把计数写入哈希表，分类时逐项点查并经本地缓存加速；memory 仅在进程内保存.
package modelstore

import (
	"context"
	"path"

	"github.com/spf13/afero"

	"github.com/wyfcoding/bayes/bayes"
	"github.com/wyfcoding/bayes/breaker"
	"github.com/wyfcoding/bayes/cache"
	"github.com/wyfcoding/bayes/config"
	"github.com/wyfcoding/bayes/logging"
	"github.com/wyfcoding/bayes/storage"
	"github.com/wyfcoding/bayes/xerrors"
)

// ModelObject 模型在对象存储中的文件名.
const ModelObject = "model.json"

var (
	// ErrModelNotFound 指定位置没有已训练的模型。
	ErrModelNotFound = xerrors.New(xerrors.ErrNotFound, 404801, "model not found", "train a model first", nil)
	// ErrCorruptModel 模型数据无法解析。
	ErrCorruptModel = xerrors.New(xerrors.ErrData, 422801, "corrupt model", "", nil)
	// ErrUnknownDataSource 不支持的 dataSource。
	ErrUnknownDataSource = xerrors.New(xerrors.ErrConfig, 400801, "unknown data source", "supported: file, minio, redis, memory", nil)
)

// Store 是一个模型存储后端：训练后写入，分类前打开为 Datastore.
type Store interface {
	bayes.ModelWriter
	// Datastore 返回可供评分的只读统计量.
	Datastore(ctx context.Context) (bayes.Datastore, error)
}

// Deps 汇集各后端需要的外部依赖，由调用方按配置构造.
type Deps struct {
	Fs      afero.Fs        // file 后端的文件系统，为空时使用本机文件系统
	Objects storage.Storage // minio 后端的对象存储
	Redis   HashClient      // redis 后端的客户端
	Cache   *cache.CountCache
	Breaker *breaker.Breaker
	Logger  *logging.Logger
}

// New 按参数表中的 dataSource 与 basePath 创建存储后端.
func New(params *config.Parameters, deps Deps) (Store, error) {
	source := params.StringOr(config.KeyDataSource, "file")
	basePath := params.StringOr(config.KeyBasePath, "")

	switch source {
	case "file":
		if basePath == "" {
			return nil, config.ErrMissingKey.WithDetail("key %q is required for the file data source", config.KeyBasePath)
		}
		return NewObjectStore(storage.NewFileStorage(deps.Fs, basePath), ModelObject, deps.Logger), nil
	case "minio":
		if deps.Objects == nil {
			return nil, config.ErrMissingKey.WithDetail("minio data source requires an object storage client")
		}
		return NewObjectStore(deps.Objects, path.Join(basePath, ModelObject), deps.Logger), nil
	case "redis":
		if deps.Redis == nil {
			return nil, config.ErrMissingKey.WithDetail("redis data source requires a redis client")
		}
		prefix := basePath
		if prefix == "" {
			prefix = "bayes"
		}
		return NewRedisDatastore(deps.Redis, prefix,
			WithCache(deps.Cache),
			WithBreaker(deps.Breaker),
			WithRedisLogger(deps.Logger),
		), nil
	case "memory":
		return NewMemoryStore(), nil
	default:
		return nil, ErrUnknownDataSource.WithDetail("dataSource %q", source)
	}
}
