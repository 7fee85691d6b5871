package dataset

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"path"
	"strings"

	"github.com/cyclopcam/fieldsight/pkg/storage"
)

// SplitCount is the number of images in a split, and how many of them contain each class
type SplitCount struct {
	Split   string
	Total   int         // Number of annotation files
	ByClass map[int]int // class id -> number of annotation files with at least one record of that class
}

// CountClasses inspects <split>/labels/*.txt inside src.
// An image counts towards a class if at least one valid record in its annotation file has that class.
// Malformed lines are ignored.
func CountClasses(src storage.Storage, split string) (SplitCount, error) {
	count := SplitCount{
		Split:   split,
		ByClass: map[int]int{},
	}
	dir := LabelsPath(split)
	names, err := src.ListFiles(dir)
	if errors.Is(err, storage.ErrNotExist) {
		return count, fmt.Errorf("%w: %v does not exist in %v", ErrConfig, dir, src)
	} else if err != nil {
		return count, err
	}
	for _, name := range names {
		if !strings.HasSuffix(name, LabelExt) {
			continue
		}
		fn := path.Join(dir, name)
		classes, err := classesInFile(src, fn)
		if err != nil {
			return count, fmt.Errorf("Failed to read %v: %w", fn, err)
		}
		count.Total++
		for c := range classes {
			count.ByClass[c]++
		}
	}
	return count, nil
}

func classesInFile(src storage.Storage, name string) (map[int]bool, error) {
	f, err := src.ReadFile(name)
	if err != nil {
		return nil, err
	}
	defer f.Reader.Close()
	return classesIn(f.Reader)
}

func classesIn(r io.Reader) (map[int]bool, error) {
	classes := map[int]bool{}
	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 0, 64*1024), maxLineLength)
	for scanner.Scan() {
		if rec, err := ParseRecord(scanner.Text()); err == nil {
			classes[rec.ClassID] = true
		}
	}
	return classes, scanner.Err()
}
