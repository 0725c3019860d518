package storage

import (
	"context"
	"errors"
	"io"
	"io/fs"
	"os"
	"path"
	"path/filepath"
	"slices"
	"strings"

	"github.com/spf13/afero"
)

// FileStorage 以目录树模拟对象存储，底层文件系统可替换（测试中使用 afero.NewMemMapFs）.
type FileStorage struct {
	fs   afero.Fs
	root string
}

// NewFileStorage 在 fsys 的 root 目录下创建存储，fsys 为 nil 时使用本机文件系统.
func NewFileStorage(fsys afero.Fs, root string) *FileStorage {
	if fsys == nil {
		fsys = afero.NewOsFs()
	}
	return &FileStorage{fs: fsys, root: filepath.Clean(root)}
}

// Fs 返回底层文件系统.
func (s *FileStorage) Fs() afero.Fs {
	return s.fs
}

func (s *FileStorage) path(name string) string {
	return filepath.Join(s.root, filepath.FromSlash(path.Clean("/"+name)))
}

// Put 先写临时文件再重命名，读者不会看到写了一半的对象.
func (s *FileStorage) Put(ctx context.Context, name string, r io.Reader, _ int64) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	target := s.path(name)
	if err := s.fs.MkdirAll(filepath.Dir(target), 0o755); err != nil {
		return ErrStorageUnavailable.WithDetail("mkdir for %s", name).WithCause(err)
	}

	tmp := target + ".tmp"
	f, err := s.fs.OpenFile(tmp, os.O_CREATE|os.O_TRUNC|os.O_WRONLY, 0o644)
	if err != nil {
		return ErrStorageUnavailable.WithDetail("create %s", name).WithCause(err)
	}
	if _, err := io.Copy(f, r); err != nil {
		_ = f.Close()
		_ = s.fs.Remove(tmp)
		return ErrStorageUnavailable.WithDetail("write %s", name).WithCause(err)
	}
	if err := f.Close(); err != nil {
		_ = s.fs.Remove(tmp)
		return ErrStorageUnavailable.WithDetail("close %s", name).WithCause(err)
	}
	if err := s.fs.Rename(tmp, target); err != nil {
		return ErrStorageUnavailable.WithDetail("rename %s", name).WithCause(err)
	}
	return nil
}

// Get 打开对象文件.
func (s *FileStorage) Get(ctx context.Context, name string) (io.ReadCloser, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	f, err := s.fs.Open(s.path(name))
	if errors.Is(err, fs.ErrNotExist) {
		return nil, ErrObjectNotFound.WithDetail("object %q", name)
	}
	if err != nil {
		return nil, ErrStorageUnavailable.WithDetail("open %s", name).WithCause(err)
	}
	return f, nil
}

// List 返回名称以 prefix 开头的普通文件。只遍历 prefix 所在的目录，
// 根目录为 "/" 时也不会扫描整个文件系统；目录不存在时返回空列表.
func (s *FileStorage) List(ctx context.Context, prefix string) ([]string, error) {
	start := s.path(prefix[:strings.LastIndex(prefix, "/")+1])
	ok, err := afero.DirExists(s.fs, start)
	if err != nil {
		return nil, ErrStorageUnavailable.WithDetail("stat %s", start).WithCause(err)
	}
	if !ok {
		return nil, nil
	}

	var names []string
	err = afero.Walk(s.fs, start, func(p string, info os.FileInfo, err error) error {
		if err != nil {
			if errors.Is(err, fs.ErrNotExist) {
				return nil
			}
			return err
		}
		if ctxErr := ctx.Err(); ctxErr != nil {
			return ctxErr
		}
		if info.IsDir() || strings.HasSuffix(p, ".tmp") {
			return nil
		}
		rel, err := filepath.Rel(s.root, p)
		if err != nil {
			return err
		}
		name := filepath.ToSlash(rel)
		if strings.HasPrefix(name, prefix) {
			names = append(names, name)
		}
		return nil
	})
	if err != nil {
		return nil, ErrStorageUnavailable.WithDetail("list %q", prefix).WithCause(err)
	}
	slices.Sort(names)
	return names, nil
}

// Delete 删除对象文件.
func (s *FileStorage) Delete(_ context.Context, name string) error {
	err := s.fs.Remove(s.path(name))
	if err != nil && !errors.Is(err, fs.ErrNotExist) {
		return ErrStorageUnavailable.WithDetail("delete %s", name).WithCause(err)
	}
	return nil
}

// Exists 检查对象文件是否存在.
func (s *FileStorage) Exists(_ context.Context, name string) (bool, error) {
	ok, err := afero.Exists(s.fs, s.path(name))
	if err != nil {
		return false, ErrStorageUnavailable.WithDetail("stat %s", name).WithCause(err)
	}
	return ok, nil
}
