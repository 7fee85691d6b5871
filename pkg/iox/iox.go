package iox

import (
	"errors"
	"io"
	"io/fs"
	"os"
	"path/filepath"
)

// DefaultFileMode is the permission of files that did not exist before they were written
const DefaultFileMode fs.FileMode = 0644

// AtomicFile is written to a temporary file next to its destination, and only
// appears under the destination name once Close succeeds.
// If the destination already exists, its permissions are carried over.
type AtomicFile struct {
	tmp  *os.File
	dst  string
	perm fs.FileMode
	done bool
}

// CreateAtomic starts writing dstFilename. You must call Close (to commit) or Abort.
func CreateAtomic(dstFilename string) (*AtomicFile, error) {
	perm := DefaultFileMode
	if st, err := os.Stat(dstFilename); err == nil {
		perm = st.Mode().Perm()
	} else if !errors.Is(err, fs.ErrNotExist) {
		return nil, err
	}
	tmp, err := os.CreateTemp(filepath.Dir(dstFilename), "."+filepath.Base(dstFilename)+".*.tmp")
	if err != nil {
		return nil, err
	}
	return &AtomicFile{
		tmp:  tmp,
		dst:  dstFilename,
		perm: perm,
	}, nil
}

func (a *AtomicFile) Write(p []byte) (int, error) {
	return a.tmp.Write(p)
}

// Close renames the temporary file over the destination
func (a *AtomicFile) Close() error {
	if a.done {
		return nil
	}
	a.done = true
	err := a.tmp.Chmod(a.perm)
	if errClose := a.tmp.Close(); err == nil {
		err = errClose
	}
	if err == nil {
		err = os.Rename(a.tmp.Name(), a.dst)
	}
	if err != nil {
		os.Remove(a.tmp.Name())
	}
	return err
}

// Abort discards everything written so far. The destination is left untouched.
func (a *AtomicFile) Abort() error {
	if a.done {
		return nil
	}
	a.done = true
	a.tmp.Close()
	return os.Remove(a.tmp.Name())
}

// WriteStreamToFile writes src into a temporary file next to dstFilename,
// and renames it over dstFilename once the copy has succeeded.
// A failed copy never leaves a partial dstFilename behind.
func WriteStreamToFile(dstFilename string, src io.Reader) error {
	f, err := CreateAtomic(dstFilename)
	if err != nil {
		return err
	}
	if _, err := io.Copy(f, src); err != nil {
		f.Abort()
		return err
	}
	return f.Close()
}
