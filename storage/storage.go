// Package storage 定义模型与分片结果的对象存储接口，提供本地文件系统与 MinIO 两种驱动.
// 对象名统一使用 "/" 分隔，List 按名称前缀匹配并返回字典序结果.
package storage

import (
	"bytes"
	"context"
	"io"

	"github.com/wyfcoding/bayes/xerrors"
)

var (
	// ErrObjectNotFound 对象不存在。
	ErrObjectNotFound = xerrors.New(xerrors.ErrNotFound, 404501, "object not found", "", nil)
	// ErrStorageUnavailable 存储后端不可用。
	ErrStorageUnavailable = xerrors.New(xerrors.ErrUnavailable, 503501, "storage unavailable", "", nil)
)

// Storage 定义了对象存储的通用接口，支持多驱动扩展。
type Storage interface {
	// Put 写入对象，已存在时整体覆盖
	Put(ctx context.Context, name string, r io.Reader, size int64) error
	// Get 读取对象，不存在时返回 ErrObjectNotFound
	Get(ctx context.Context, name string) (io.ReadCloser, error)
	// List 返回以 prefix 开头的全部对象名，按字典序排列
	List(ctx context.Context, prefix string) ([]string, error)
	// Delete 删除对象，对象不存在时不报错
	Delete(ctx context.Context, name string) error
	// Exists 检查对象是否存在
	Exists(ctx context.Context, name string) (bool, error)
}

// PutBytes 写入一段内存数据.
func PutBytes(ctx context.Context, s Storage, name string, data []byte) error {
	return s.Put(ctx, name, bytes.NewReader(data), int64(len(data)))
}

// ReadAll 读取整个对象.
func ReadAll(ctx context.Context, s Storage, name string) ([]byte, error) {
	rc, err := s.Get(ctx, name)
	if err != nil {
		return nil, err
	}
	defer rc.Close()
	return io.ReadAll(rc)
}
