// Package storage defines the read/write bucket abstraction used by the
// source/archive aggregator to present directory roots, archive contents,
// and in-memory staging areas through a single interface.
//
// Grounded on the teacher's internal/pkg/storage package.
package storage

import (
	"context"
	"errors"
	"fmt"
	"io"
)

// ErrClosed is returned by any Bucket method called after Close.
var ErrClosed = errors.New("storage: bucket closed")

// ErrIncompleteWrite is returned by WriteObject.Close if fewer bytes were
// written than declared to Put.
var ErrIncompleteWrite = errors.New("storage: incomplete write")

// NotExistError is returned when a path does not exist within a bucket.
type NotExistError struct {
	Path string
}

func (e *NotExistError) Error() string {
	return fmt.Sprintf("storage: %q does not exist", e.Path)
}

// NewNotExistError constructs a NotExistError for path.
func NewNotExistError(path string) error {
	return &NotExistError{Path: path}
}

// IsNotExist reports whether err is (or wraps) a *NotExistError.
func IsNotExist(err error) bool {
	var e *NotExistError
	return errors.As(err, &e)
}

// ObjectInfo describes a stored object.
type ObjectInfo interface {
	Size() uint32
}

type objectInfo struct{ size uint32 }

func (o objectInfo) Size() uint32 { return o.size }

// NewObjectInfo constructs an ObjectInfo with the given size.
func NewObjectInfo(size uint32) ObjectInfo { return objectInfo{size: size} }

// ReadObject is a handle to a readable stored object.
type ReadObject interface {
	io.ReadCloser
	Info() ObjectInfo
}

// WriteObject is a handle to a writable stored object. Close fails with
// ErrIncompleteWrite if fewer bytes were written than declared to Put.
type WriteObject interface {
	io.WriteCloser
}

// ReadBucket is a read-only view over a set of paths, each a normalized,
// slash-separated relative path.
type ReadBucket interface {
	Get(ctx context.Context, path string) (ReadObject, error)
	Stat(ctx context.Context, path string) (ObjectInfo, error)
	// Walk calls f once per regular file under prefix, in unspecified order.
	Walk(ctx context.Context, prefix string, f func(path string) error) error
}

// WriteBucket is a write-only view over a set of paths.
type WriteBucket interface {
	Put(ctx context.Context, path string, size uint32) (WriteObject, error)
}

// ReadWriteBucket combines ReadBucket and WriteBucket.
type ReadWriteBucket interface {
	ReadBucket
	WriteBucket
}

// ReadBucketCloser is a ReadBucket that must be closed after use.
type ReadBucketCloser interface {
	ReadBucket
	io.Closer
}

// ReadWriteBucketCloser is a ReadWriteBucket that must be closed after use.
type ReadWriteBucketCloser interface {
	ReadWriteBucket
	io.Closer
}

// CopyPaths copies every regular file under prefix from src to dst.
func CopyPaths(ctx context.Context, dst WriteBucket, src ReadBucket, prefix string) (int, error) {
	count := 0
	err := src.Walk(ctx, prefix, func(path string) error {
		readObject, err := src.Get(ctx, path)
		if err != nil {
			return err
		}
		defer readObject.Close()
		writeObject, err := dst.Put(ctx, path, readObject.Info().Size())
		if err != nil {
			return err
		}
		defer writeObject.Close()
		if _, err := io.Copy(writeObject, readObject); err != nil {
			return err
		}
		count++
		return nil
	})
	return count, err
}
