package storage

import (
	"crypto/md5"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"

	"github.com/cyclopcam/fieldsight/pkg/iox"
	"github.com/cyclopcam/logs"
)

// StorageFS is a filesystem-based store
type StorageFS struct {
	Root string
	log  logs.Log
}

func NewStorageFS(log logs.Log, root string) (*StorageFS, error) {
	absRoot, err := filepath.Abs(root)
	if err != nil {
		return nil, err
	}
	if err := os.MkdirAll(absRoot, 0755); err != nil {
		return nil, fmt.Errorf("Failed to create root directory %v (relative path %v): %w", absRoot, root, err)
	}
	return &StorageFS{
		Root: absRoot,
		log:  log,
	}, nil
}

func (s *StorageFS) fullPath(name string) string {
	return filepath.Join(s.Root, filepath.FromSlash(name))
}

func (s *StorageFS) WriteFile(name string) (io.WriteCloser, error) {
	if err := validName(name); err != nil {
		return nil, err
	}
	fullPath := s.fullPath(name)
	if err := os.MkdirAll(filepath.Dir(fullPath), 0755); err != nil {
		return nil, err
	}
	return iox.CreateAtomic(fullPath)
}

func (s *StorageFS) ReadFile(name string) (*File, error) {
	if err := validName(name); err != nil {
		return nil, err
	}
	file, err := os.Open(s.fullPath(name))
	if errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("%w: %v", ErrNotExist, name)
	} else if err != nil {
		return nil, err
	}
	st, err := file.Stat()
	if err != nil {
		file.Close()
		return nil, err
	}
	return &File{
		Reader:     file,
		ModifiedAt: st.ModTime(),
		Size:       st.Size(),
	}, nil
}

func (s *StorageFS) Stat(name string) (*FileInfo, error) {
	if err := validName(name); err != nil {
		return nil, err
	}
	st, err := os.Stat(s.fullPath(name))
	if errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("%w: %v", ErrNotExist, name)
	} else if err != nil {
		return nil, err
	}
	if st.IsDir() {
		return nil, fmt.Errorf("%w: %v is a directory", ErrNotExist, name)
	}
	sum, err := fileMD5(s.fullPath(name))
	if err != nil {
		return nil, err
	}
	return &FileInfo{
		ModifiedAt: st.ModTime(),
		Size:       st.Size(),
		MD5:        sum,
	}, nil
}

func fileMD5(filename string) ([]byte, error) {
	f, err := os.Open(filename)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	h := md5.New()
	if _, err := io.Copy(h, f); err != nil {
		return nil, err
	}
	return h.Sum(nil), nil
}

func (s *StorageFS) ListFiles(dir string) ([]string, error) {
	if err := validName(dir); err != nil {
		return nil, err
	}
	entries, err := os.ReadDir(s.fullPath(dir))
	if errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("%w: %v", ErrNotExist, dir)
	} else if err != nil {
		return nil, err
	}
	names := []string{}
	for _, e := range entries {
		if e.Type().IsRegular() {
			names = append(names, e.Name())
		}
	}
	return names, nil
}

func (s *StorageFS) Close() error {
	return nil
}

func (s *StorageFS) DeleteFile(name string) error {
	if err := validName(name); err != nil {
		return err
	}
	s.log.Infof("Deleting file %v", name)
	return os.Remove(s.fullPath(name))
}

func (s *StorageFS) String() string {
	return s.Root
}
