package dataset

import (
	"bufio"
	"bytes"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"

	"github.com/cyclopcam/fieldsight/pkg/iox"
)

// MinRecordTokens is the smallest number of whitespace-separated tokens on a valid
// annotation line: the class id, followed by at least 4 geometry values (cx cy w h).
// Segmentation polygons have more.
const MinRecordTokens = 5

// Polygon annotations can produce very long lines
const maxLineLength = 4 * 1024 * 1024

// Record is one line of an annotation file.
// Geometry is kept as the original text tokens, so that it passes through
// a rewrite without any change in formatting or precision.
type Record struct {
	ClassID  int
	Geometry []string
}

// ParseRecord parses a single annotation line.
// Blank lines, lines with a non-integer or negative class, and lines with fewer than
// MinRecordTokens tokens return ErrMalformed.
func ParseRecord(line string) (Record, error) {
	fields := strings.Fields(line)
	if len(fields) < MinRecordTokens {
		return Record{}, fmt.Errorf("%w: '%v' has %v tokens", ErrMalformed, line, len(fields))
	}
	classID, err := strconv.Atoi(fields[0])
	if err != nil || classID < 0 {
		return Record{}, fmt.Errorf("%w: invalid class '%v'", ErrMalformed, fields[0])
	}
	return Record{
		ClassID:  classID,
		Geometry: fields[1:],
	}, nil
}

func (r Record) String() string {
	return strconv.Itoa(r.ClassID) + " " + strings.Join(r.Geometry, " ")
}

// RemapStats counts what happened to the lines of one or more annotation files
type RemapStats struct {
	Files    int // Number of annotation files rewritten
	Lines    int // Number of valid lines written
	Remapped int // Number of lines whose class was changed
	Dropped  int // Number of malformed lines dropped
}

func (s *RemapStats) add(b RemapStats) {
	s.Files += b.Files
	s.Lines += b.Lines
	s.Remapped += b.Remapped
	s.Dropped += b.Dropped
}

// RemapLines reads annotation lines from r, changes the class of every record
// whose class is 'from' into 'to', and writes the result to w, one record per line.
// Malformed lines (see ParseRecord) are dropped, and counted in RemapStats.Dropped.
// Only lines that were 'from' on input are changed, so applying the same remap
// twice is the same as applying it once.
func RemapLines(r io.Reader, w io.Writer, from, to int) (RemapStats, error) {
	stats := RemapStats{}
	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 0, 64*1024), maxLineLength)
	bw := bufio.NewWriter(w)
	for scanner.Scan() {
		rec, err := ParseRecord(scanner.Text())
		if err != nil {
			stats.Dropped++
			continue
		}
		if rec.ClassID == from && from != to {
			rec.ClassID = to
			stats.Remapped++
		}
		stats.Lines++
		if _, err := bw.WriteString(rec.String() + "\n"); err != nil {
			return stats, err
		}
	}
	if err := scanner.Err(); err != nil {
		return stats, err
	}
	return stats, bw.Flush()
}

// RemapFile applies RemapLines to a single annotation file, replacing it atomically
func RemapFile(filename string, from, to int) (RemapStats, error) {
	raw, err := os.ReadFile(filename)
	if err != nil {
		return RemapStats{}, err
	}
	var out bytes.Buffer
	stats, err := RemapLines(bytes.NewReader(raw), &out, from, to)
	if err != nil {
		return stats, fmt.Errorf("Failed to remap %v: %w", filename, err)
	}
	if err := iox.WriteStreamToFile(filename, &out); err != nil {
		return stats, fmt.Errorf("Failed to write %v: %w", filename, err)
	}
	stats.Files = 1
	return stats, nil
}

// RemapClass rewrites the annotation file of every sample in place, changing class 'from' into 'to'.
// Each annotation file is rewritten once, even if it appears in more than one sample.
func RemapClass(samples []Sample, from, to int) (RemapStats, error) {
	total := RemapStats{}
	seen := map[string]bool{}
	for _, s := range samples {
		if seen[s.Label] {
			continue
		}
		seen[s.Label] = true
		stats, err := RemapFile(s.Label, from, to)
		if err != nil {
			return total, err
		}
		total.add(stats)
	}
	return total, nil
}
