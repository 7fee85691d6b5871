package storage

import (
	"errors"
	"fmt"
	"io"
	"io/fs"
	"strings"
	"time"

	"github.com/cyclopcam/logs"
)

var ErrNotExist = errors.New("File does not exist")
var ErrInvalidName = errors.New("Invalid file name")

// Storage is an abstraction of the place where a merged dataset is written.
// Names are always slash-separated and relative to the root of the store.
type Storage interface {
	// When finished, you must close the WriteCloser
	WriteFile(name string) (io.WriteCloser, error)

	// When finished, you must close File.Reader
	ReadFile(name string) (*File, error)

	// Returns ErrNotExist if there is no such file
	Stat(name string) (*FileInfo, error)

	// ListFiles returns the names of the files directly inside dir (not their full paths).
	ListFiles(dir string) ([]string, error)

	DeleteFile(name string) error

	Close() error
}

// Aborter is implemented by the writers of stores that can discard an unfinished write.
// After Abort, the previous content of the file (if any) is still in place.
type Aborter interface {
	Abort() error
}

// File is an element in storage, opened for reading.
type File struct {
	Reader     io.ReadCloser
	ModifiedAt time.Time
	Size       int64
}

type FileInfo struct {
	ModifiedAt time.Time
	Size       int64
	MD5        []byte // nil if the store doesn't know the hash
}

// Open a Storage for 'dest', which is either a local directory, or a GCS
// location of the form gs://bucket/prefix
func Open(log logs.Log, dest string) (Storage, error) {
	if strings.HasPrefix(dest, "gs://") {
		bucket, prefix, _ := strings.Cut(strings.TrimPrefix(dest, "gs://"), "/")
		if bucket == "" {
			return nil, fmt.Errorf("Invalid GCS destination '%v'", dest)
		}
		return NewStorageGCS(log, bucket, prefix)
	}
	return NewStorageFS(log, dest)
}

// Names must be relative, slash-separated, and may not climb out of the root with a ".." element.
// Dots elsewhere in a name (eg "img..v2.jpg") are fine.
func validName(name string) error {
	if !fs.ValidPath(name) || name == "." {
		return fmt.Errorf("%w %v", ErrInvalidName, name)
	}
	return nil
}

// WriteFile copies content into name. If the copy fails, and the store supports it,
// the write is aborted so that no partial file is left behind.
func WriteFile(s Storage, name string, content io.Reader) error {
	f, err := s.WriteFile(name)
	if err != nil {
		return err
	}
	if _, err := io.Copy(f, content); err != nil {
		if a, ok := f.(Aborter); ok {
			a.Abort()
		} else {
			f.Close()
		}
		return err
	}
	return f.Close()
}

func ReadFile(s Storage, name string) ([]byte, error) {
	f, err := s.ReadFile(name)
	if err != nil {
		return nil, err
	}
	defer f.Reader.Close()
	return io.ReadAll(f.Reader)
}

// Exists returns true if 'name' exists in the store
func Exists(s Storage, name string) (bool, error) {
	_, err := s.Stat(name)
	if errors.Is(err, ErrNotExist) {
		return false, nil
	}
	return err == nil, err
}
