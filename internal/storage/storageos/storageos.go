// Package storageos implements an OS-backed storage bucket rooted at a
// directory, used to present proto source roots and dependency roots to the
// aggregator.
//
// Grounded on the teacher's internal/pkg/storage/storageos package: only
// regular files are handled, Walk does not follow symlinks, and Put creates
// parent directories as needed.
package storageos

import (
	"context"
	"errors"
	"fmt"
	"io"
	"math"
	"os"
	"path/filepath"

	"github.com/protocgen/core/internal/normalpath"
	"github.com/protocgen/core/internal/storage"
)

// errNotDir is returned when a bucket root (or a Put target's parent) exists
// but is not a directory.
var errNotDir = errors.New("storageos: not a directory")

type bucket struct {
	rootPath string
	closed   bool
}

// NewReadWriteBucketCloser returns a bucket rooted at rootPath, which must
// already exist and be a directory.
func NewReadWriteBucketCloser(rootPath string) (storage.ReadWriteBucketCloser, error) {
	return newBucket(rootPath)
}

// NewReadBucketCloser returns a read-only view of NewReadWriteBucketCloser's
// bucket, so callers that should never write can be given a narrower type.
func NewReadBucketCloser(rootPath string) (storage.ReadBucketCloser, error) {
	return newBucket(rootPath)
}

func newBucket(rootPath string) (*bucket, error) {
	info, err := os.Stat(rootPath)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, storage.NewNotExistError(rootPath)
		}
		return nil, err
	}
	if !info.IsDir() {
		return nil, fmt.Errorf("%w: %s", errNotDir, rootPath)
	}
	return &bucket{rootPath: normalpath.Normalize(rootPath)}, nil
}

func (b *bucket) resolve(path string) (string, error) {
	path, err := normalpath.NormalizeAndValidate(path)
	if err != nil {
		return "", err
	}
	if path == "." {
		return "", errors.New("storageos: cannot access root directly")
	}
	return normalpath.Unnormalize(normalpath.Join(b.rootPath, path)), nil
}

func (b *bucket) Get(ctx context.Context, path string) (storage.ReadObject, error) {
	if b.closed {
		return nil, storage.ErrClosed
	}
	actual, err := b.resolve(path)
	if err != nil {
		return nil, err
	}
	info, err := os.Stat(actual)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, storage.NewNotExistError(path)
		}
		return nil, err
	}
	if !info.Mode().IsRegular() {
		return nil, fmt.Errorf("storageos: %q is not a regular file", path)
	}
	if info.Size() > int64(math.MaxUint32) {
		return nil, fmt.Errorf("storageos: file too large: %d", info.Size())
	}
	file, err := os.Open(actual)
	if err != nil {
		return nil, err
	}
	return &readObject{File: file, size: uint32(info.Size())}, nil
}

func (b *bucket) Stat(ctx context.Context, path string) (storage.ObjectInfo, error) {
	if b.closed {
		return nil, storage.ErrClosed
	}
	actual, err := b.resolve(path)
	if err != nil {
		return nil, err
	}
	info, err := os.Stat(actual)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, storage.NewNotExistError(path)
		}
		return nil, err
	}
	return storage.NewObjectInfo(uint32(info.Size())), nil
}

func (b *bucket) Walk(ctx context.Context, prefix string, f func(string) error) error {
	if b.closed {
		return storage.ErrClosed
	}
	prefix, err := normalpath.NormalizeAndValidate(prefix)
	if err != nil {
		return err
	}
	root := normalpath.Unnormalize(normalpath.Join(b.rootPath, prefix))
	return filepath.Walk(root, func(path string, info os.FileInfo, err error) error {
		if err != nil {
			if os.IsNotExist(err) {
				return nil
			}
			return err
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		default:
		}
		if !info.Mode().IsRegular() {
			return nil
		}
		rel, err := normalpath.Rel(b.rootPath, normalpath.Normalize(path))
		if err != nil {
			return err
		}
		return f(rel)
	})
}

func (b *bucket) Put(ctx context.Context, path string, size uint32) (storage.WriteObject, error) {
	if b.closed {
		return nil, storage.ErrClosed
	}
	actual, err := b.resolve(path)
	if err != nil {
		return nil, err
	}
	dir := filepath.Dir(actual)
	if info, err := os.Stat(dir); err != nil {
		if !os.IsNotExist(err) {
			return nil, err
		}
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, err
		}
	} else if !info.IsDir() {
		return nil, fmt.Errorf("%w: %s", errNotDir, dir)
	}
	file, err := os.Create(actual)
	if err != nil {
		return nil, err
	}
	return &writeObject{File: file, declared: size}, nil
}

func (b *bucket) Close() error {
	if b.closed {
		return storage.ErrClosed
	}
	b.closed = true
	return nil
}

type readObject struct {
	*os.File
	size uint32
}

func (r *readObject) Info() storage.ObjectInfo { return storage.NewObjectInfo(r.size) }

type writeObject struct {
	*os.File
	declared uint32
	written  uint32
}

func (w *writeObject) Write(p []byte) (int, error) {
	n, err := w.File.Write(p)
	w.written += uint32(n)
	return n, err
}

func (w *writeObject) Close() error {
	err := w.File.Close()
	if w.written != w.declared {
		return fmt.Errorf("%w: declared %d, wrote %d", storage.ErrIncompleteWrite, w.declared, w.written)
	}
	return err
}

var _ io.Closer = (*bucket)(nil)
