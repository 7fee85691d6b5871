package storage

import (
	"context"
	"errors"
	"fmt"
	"io"
	"path"
	"strings"

	gcs "cloud.google.com/go/storage"
	"github.com/cyclopcam/logs"
	"google.golang.org/api/iterator"
	"google.golang.org/api/option"
)

// StorageGCS is a Google Cloud Storage-based store.
// All names are placed under 'prefix' inside the bucket.
type StorageGCS struct {
	client     *gcs.Client
	bucketName string
	prefix     string
	bucket     *gcs.BucketHandle
	log        logs.Log
}

// You must Close the store when finished, to release the client
func NewStorageGCS(log logs.Log, bucketName, prefix string, opts ...option.ClientOption) (*StorageGCS, error) {
	ctx := context.Background()
	client, err := gcs.NewClient(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("Failed to create GCS client: %w", err)
	}
	return &StorageGCS{
		client:     client,
		bucketName: bucketName,
		prefix:     prefix,
		bucket:     client.Bucket(bucketName),
		log:        log,
	}, nil
}

func (s *StorageGCS) objectName(name string) string {
	if s.prefix == "" {
		return name
	}
	return path.Join(s.prefix, name)
}

func (s *StorageGCS) WriteFile(name string) (io.WriteCloser, error) {
	if err := validName(name); err != nil {
		return nil, err
	}
	ctx, cancel := context.WithCancel(context.Background())
	return &gcsWriter{
		Writer: s.bucket.Object(s.objectName(name)).NewWriter(ctx),
		cancel: cancel,
	}, nil
}

// An object only becomes visible when its upload is closed.
// Cancelling the upload's context discards it.
type gcsWriter struct {
	*gcs.Writer
	cancel context.CancelFunc
}

func (w *gcsWriter) Close() error {
	defer w.cancel()
	return w.Writer.Close()
}

func (w *gcsWriter) Abort() error {
	w.cancel()
	w.Writer.Close()
	return nil
}

func (s *StorageGCS) ReadFile(name string) (*File, error) {
	if err := validName(name); err != nil {
		return nil, err
	}
	r, err := s.bucket.Object(s.objectName(name)).NewReader(context.Background())
	if errors.Is(err, gcs.ErrObjectNotExist) {
		return nil, fmt.Errorf("%w: %v", ErrNotExist, name)
	} else if err != nil {
		return nil, err
	}
	return &File{
		Reader:     r,
		ModifiedAt: r.Attrs.LastModified,
		Size:       r.Attrs.Size,
	}, nil
}

func (s *StorageGCS) Stat(name string) (*FileInfo, error) {
	if err := validName(name); err != nil {
		return nil, err
	}
	attrs, err := s.bucket.Object(s.objectName(name)).Attrs(context.Background())
	if errors.Is(err, gcs.ErrObjectNotExist) {
		return nil, fmt.Errorf("%w: %v", ErrNotExist, name)
	} else if err != nil {
		return nil, err
	}
	return &FileInfo{
		ModifiedAt: attrs.Updated,
		Size:       attrs.Size,
		MD5:        attrs.MD5,
	}, nil
}

func (s *StorageGCS) ListFiles(dir string) ([]string, error) {
	if err := validName(dir); err != nil {
		return nil, err
	}
	prefix := s.objectName(dir) + "/"
	it := s.bucket.Objects(context.Background(), &gcs.Query{Prefix: prefix, Delimiter: "/"})
	names := []string{}
	for {
		attrs, err := it.Next()
		if err == iterator.Done {
			break
		} else if err != nil {
			return nil, err
		}
		// Entries with only Prefix set are sub-directories
		if attrs.Name != "" {
			names = append(names, strings.TrimPrefix(attrs.Name, prefix))
		}
	}
	if len(names) == 0 {
		// GCS has no directories, so an empty listing is the same as a missing one
		return nil, fmt.Errorf("%w: %v", ErrNotExist, dir)
	}
	return names, nil
}

func (s *StorageGCS) Close() error {
	return s.client.Close()
}

func (s *StorageGCS) DeleteFile(name string) error {
	if err := validName(name); err != nil {
		return err
	}
	s.log.Infof("Deleting gs://%v/%v", s.bucketName, s.objectName(name))
	return s.bucket.Object(s.objectName(name)).Delete(context.Background())
}

func (s *StorageGCS) String() string {
	return "gs://" + path.Join(s.bucketName, s.prefix)
}
