package dataset

import (
	"errors"
	"fmt"
	"io/fs"
	"iter"
	"os"
	"path/filepath"
	"strings"
)

// Directory names and extensions of a YOLO-style dataset tree
const (
	ImagesDir = "images"
	LabelsDir = "labels"
	ImageExt  = ".jpg"
	LabelExt  = ".txt"
)

// Sample is one image, and the annotation file that describes it
type Sample struct {
	Image string `json:"image"`
	Label string `json:"label"`
}

// LabelPathFor returns the annotation path of an image, by replacing the image's
// parent "images" directory with a sibling "labels" directory, and the image
// extension with ".txt".
// Returns false if the image does not live inside an "images" directory.
func LabelPathFor(imagePath string) (string, bool) {
	dir := filepath.Dir(imagePath)
	if filepath.Base(dir) != ImagesDir {
		return "", false
	}
	base := filepath.Base(imagePath)
	stem := strings.TrimSuffix(base, filepath.Ext(base))
	return filepath.Join(filepath.Dir(dir), LabelsDir, stem+LabelExt), true
}

func isImage(path string) bool {
	return strings.EqualFold(filepath.Ext(path), ImageExt)
}

func isRegularFile(path string) bool {
	st, err := os.Stat(path)
	return err == nil && st.Mode().IsRegular()
}

// CollectPairs walks root recursively, and yields every image whose annotation file exists.
// The sequence is evaluated lazily, and each iteration walks the filesystem again.
// A walk error (eg root does not exist) is yielded once, and ends the sequence.
func CollectPairs(root string) iter.Seq2[Sample, error] {
	return func(yield func(Sample, error) bool) {
		stopped := false
		err := filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
			if err != nil {
				return err
			}
			if d.IsDir() || !isImage(path) {
				return nil
			}
			label, ok := LabelPathFor(path)
			if !ok || !isRegularFile(path) || !isRegularFile(label) {
				return nil
			}
			if !yield(Sample{Image: path, Label: label}, nil) {
				stopped = true
				return filepath.SkipAll
			}
			return nil
		})
		if err != nil && !stopped {
			yield(Sample{}, err)
		}
	}
}

// CollectPairsSlice gathers the whole of CollectPairs(root) into a slice.
// A missing root is reported as ErrConfig.
func CollectPairsSlice(root string) ([]Sample, error) {
	st, err := os.Stat(root)
	if errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("%w: source directory %v does not exist", ErrConfig, root)
	} else if err != nil {
		return nil, err
	} else if !st.IsDir() {
		return nil, fmt.Errorf("%w: source %v is not a directory", ErrConfig, root)
	}
	samples := []Sample{}
	for s, err := range CollectPairs(root) {
		if err != nil {
			return nil, fmt.Errorf("Failed to scan %v: %w", root, err)
		}
		samples = append(samples, s)
	}
	return samples, nil
}
