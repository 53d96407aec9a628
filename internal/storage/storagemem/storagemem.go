// Package storagemem implements an in-memory storage bucket, used to hold
// extracted archive contents. The contents stay in memory; nothing is
// written under the execution's scratch space.
package storagemem

import (
	"bytes"
	"context"
	"fmt"
	"sort"
	"sync"

	"github.com/protocgen/core/internal/normalpath"
	"github.com/protocgen/core/internal/storage"
)

type bucket struct {
	mu      sync.RWMutex
	objects map[string][]byte
	closed  bool
}

// New returns a new, empty in-memory ReadWriteBucketCloser.
func New() storage.ReadWriteBucketCloser {
	return &bucket{objects: make(map[string][]byte)}
}

func (b *bucket) Get(ctx context.Context, path string) (storage.ReadObject, error) {
	path, err := normalpath.NormalizeAndValidate(path)
	if err != nil {
		return nil, err
	}
	b.mu.RLock()
	defer b.mu.RUnlock()
	if b.closed {
		return nil, storage.ErrClosed
	}
	data, ok := b.objects[path]
	if !ok {
		return nil, storage.NewNotExistError(path)
	}
	return &readObject{Reader: bytes.NewReader(data), size: uint32(len(data))}, nil
}

func (b *bucket) Stat(ctx context.Context, path string) (storage.ObjectInfo, error) {
	path, err := normalpath.NormalizeAndValidate(path)
	if err != nil {
		return nil, err
	}
	b.mu.RLock()
	defer b.mu.RUnlock()
	if b.closed {
		return nil, storage.ErrClosed
	}
	data, ok := b.objects[path]
	if !ok {
		return nil, storage.NewNotExistError(path)
	}
	return storage.NewObjectInfo(uint32(len(data))), nil
}

func (b *bucket) Walk(ctx context.Context, prefix string, f func(string) error) error {
	prefix, err := normalpath.NormalizeAndValidate(prefix)
	if err != nil {
		return err
	}
	b.mu.RLock()
	if b.closed {
		b.mu.RUnlock()
		return storage.ErrClosed
	}
	paths := make([]string, 0, len(b.objects))
	for p := range b.objects {
		if prefix == "." || p == prefix || bytes.HasPrefix([]byte(p), []byte(prefix+"/")) {
			paths = append(paths, p)
		}
	}
	b.mu.RUnlock()
	sort.Strings(paths)
	for _, p := range paths {
		select {
		case <-ctx.Done():
			return ctx.Err()
		default:
		}
		if err := f(p); err != nil {
			return err
		}
	}
	return nil
}

func (b *bucket) Put(ctx context.Context, path string, size uint32) (storage.WriteObject, error) {
	path, err := normalpath.NormalizeAndValidate(path)
	if err != nil {
		return nil, err
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.closed {
		return nil, storage.ErrClosed
	}
	return &writeObject{bucket: b, path: path, declared: size}, nil
}

func (b *bucket) Close() error {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.closed {
		return storage.ErrClosed
	}
	b.closed = true
	return nil
}

type readObject struct {
	*bytes.Reader
	size uint32
}

func (r *readObject) Close() error                 { return nil }
func (r *readObject) Info() storage.ObjectInfo      { return storage.NewObjectInfo(r.size) }

type writeObject struct {
	bucket   *bucket
	path     string
	declared uint32
	buf      bytes.Buffer
}

func (w *writeObject) Write(p []byte) (int, error) {
	return w.buf.Write(p)
}

func (w *writeObject) Close() error {
	if uint32(w.buf.Len()) != w.declared {
		return fmt.Errorf("%w: declared %d, wrote %d", storage.ErrIncompleteWrite, w.declared, w.buf.Len())
	}
	w.bucket.mu.Lock()
	defer w.bucket.mu.Unlock()
	w.bucket.objects[w.path] = append([]byte(nil), w.buf.Bytes()...)
	return nil
}
