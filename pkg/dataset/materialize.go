package dataset

import (
	"bytes"
	"context"
	"crypto/md5"
	"errors"
	"fmt"
	"io"
	"os"
	"path"
	"path/filepath"

	"github.com/cyclopcam/fieldsight/pkg/storage"
	"github.com/cyclopcam/logs"
)

type MaterializeOptions struct {
	// Skip a file if the destination already holds identical content (same size and MD5).
	// This lets an interrupted run be resumed without copying everything again.
	SkipExisting bool
}

type MaterializeStats struct {
	Copied  int // Number of files copied
	Skipped int // Number of files skipped because they were already present
}

// ImagesPath returns the destination directory of a split's images, eg "train/images"
func ImagesPath(split string) string {
	return path.Join(split, ImagesDir)
}

// LabelsPath returns the destination directory of a split's labels, eg "train/labels"
func LabelsPath(split string) string {
	return path.Join(split, LabelsDir)
}

// Materialize copies every sample of every split into dest, as
// <split>/images/<image filename> and <split>/labels/<label filename>.
// The first failure aborts the run. File contents are copied verbatim.
// A sample is committed whole or not at all: if its label cannot be copied,
// the image that was just copied for it is deleted again.
// Two samples that would land on the same destination name are rejected
// with ErrConfig, instead of silently overwriting one another.
func Materialize(ctx context.Context, log logs.Log, splits Splits, dest storage.Storage, opts MaterializeOptions) (MaterializeStats, error) {
	stats := MaterializeStats{}
	claimed := map[string]string{}
	claim := func(src, dst string) error {
		if prev, ok := claimed[dst]; ok && prev != src {
			return fmt.Errorf("%w: %v and %v both map to %v", ErrConfig, prev, src, dst)
		}
		claimed[dst] = src
		return nil
	}
	count := func(copied bool) {
		if copied {
			stats.Copied++
		} else {
			stats.Skipped++
		}
	}

	for _, part := range splits.Parts() {
		for _, s := range part.Samples {
			if err := ctx.Err(); err != nil {
				return stats, err
			}
			imageDst := path.Join(ImagesPath(part.Name), filepath.Base(s.Image))
			labelDst := path.Join(LabelsPath(part.Name), filepath.Base(s.Label))
			if err := claim(s.Image, imageDst); err != nil {
				return stats, err
			}
			if err := claim(s.Label, labelDst); err != nil {
				return stats, err
			}

			imageCopied, err := copyToStorage(dest, imageDst, s.Image, opts.SkipExisting)
			if err != nil {
				return stats, fmt.Errorf("Failed to copy %v to %v: %w", s.Image, imageDst, err)
			}
			labelCopied, err := copyToStorage(dest, labelDst, s.Label, opts.SkipExisting)
			if err != nil {
				if imageCopied {
					if errDel := dest.DeleteFile(imageDst); errDel != nil {
						log.Warnf("Failed to remove %v after its label failed to copy: %v", imageDst, errDel)
					}
				}
				return stats, fmt.Errorf("Failed to copy %v to %v: %w", s.Label, labelDst, err)
			}
			count(imageCopied)
			count(labelCopied)
		}
		log.Infof("Materialized %v split: %v samples", part.Name, len(part.Samples))
	}
	return stats, nil
}

// Returns true if the file was copied, or false if it was skipped
func copyToStorage(dest storage.Storage, dstName, srcFilename string, skipExisting bool) (bool, error) {
	file, err := os.Open(srcFilename)
	if err != nil {
		return false, err
	}
	defer file.Close()

	if skipExisting {
		same, err := sameContent(dest, dstName, file)
		if err != nil {
			return false, err
		}
		if same {
			return false, nil
		}
		if _, err := file.Seek(0, io.SeekStart); err != nil {
			return false, err
		}
	}

	return true, storage.WriteFile(dest, dstName, file)
}

// sameContent returns true if dstName already holds exactly the content of src
func sameContent(dest storage.Storage, dstName string, src *os.File) (bool, error) {
	existing, err := dest.Stat(dstName)
	if errors.Is(err, storage.ErrNotExist) {
		return false, nil
	} else if err != nil {
		return false, err
	}
	st, err := src.Stat()
	if err != nil {
		return false, err
	}
	if existing.Size != st.Size() || existing.MD5 == nil {
		return false, nil
	}
	h := md5.New()
	if _, err := io.Copy(h, src); err != nil {
		return false, err
	}
	return bytes.Equal(h.Sum(nil), existing.MD5), nil
}
