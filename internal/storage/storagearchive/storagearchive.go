// Package storagearchive extracts zip/jar archives into a storage bucket,
// used by the aggregator to expand archive-type dependency roots.
//
// Grounded on the teacher's internal/pkg/storage/storagearchive package,
// adapted to drop the Tar/Zip writer side (out of scope: this module only
// ever consumes archives, it never produces them).
package storagearchive

import (
	"context"
	"errors"
	"fmt"
	"io"

	"github.com/klauspost/compress/zip"

	"github.com/protocgen/core/internal/normalpath"
	"github.com/protocgen/core/internal/storage"
)

// NotAnArchiveError is returned when the supplied reader is not a valid zip
// central directory.
type NotAnArchiveError struct {
	cause error
}

func (e *NotAnArchiveError) Error() string { return fmt.Sprintf("not a valid archive: %v", e.cause) }
func (e *NotAnArchiveError) Unwrap() error  { return e.cause }

// Unzip extracts every regular file from the zip archive in readerAt (size
// bytes long) into readWriteBucket, applying normalpath.TransformerOptions
// to each entry's path (e.g. to strip a common "jar-root/" prefix or filter
// to *.proto only).
func Unzip(
	ctx context.Context,
	readerAt io.ReaderAt,
	size int64,
	readWriteBucket storage.ReadWriteBucket,
	options ...normalpath.TransformerOption,
) error {
	if size < 0 {
		return fmt.Errorf("storagearchive: unknown archive size: %d", size)
	}
	if size == 0 {
		return nil
	}
	transformer := normalpath.NewTransformer(options...)
	zipReader, err := zip.NewReader(readerAt, size)
	if err != nil {
		return &NotAnArchiveError{cause: err}
	}
	for _, zipFile := range zipReader.File {
		select {
		case <-ctx.Done():
			return ctx.Err()
		default:
		}
		if zipFile.Name == "" {
			return errors.New("storagearchive: empty entry name")
		}
		path, err := normalpath.NormalizeAndValidate(zipFile.Name)
		if err != nil {
			return err
		}
		if path == "." {
			continue
		}
		path, ok := transformer.Transform(path)
		if !ok {
			continue
		}
		if !zipFile.FileInfo().Mode().IsRegular() {
			continue
		}
		if err := extractOne(ctx, zipFile, path, readWriteBucket); err != nil {
			return err
		}
	}
	return nil
}

func extractOne(ctx context.Context, zipFile *zip.File, path string, bucket storage.ReadWriteBucket) error {
	readCloser, err := zipFile.Open()
	if err != nil {
		return err
	}
	defer readCloser.Close()
	writeObject, err := bucket.Put(ctx, path, uint32(zipFile.UncompressedSize64))
	if err != nil {
		return err
	}
	_, copyErr := io.Copy(writeObject, readCloser)
	closeErr := writeObject.Close()
	if copyErr != nil {
		return copyErr
	}
	return closeErr
}
