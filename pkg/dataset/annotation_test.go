package dataset

import (
	"bytes"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestParseRecord(t *testing.T) {
	rec, err := ParseRecord("  3 0.1 0.2\t0.3 0.4  ")
	require.NoError(t, err)
	require.Equal(t, 3, rec.ClassID)
	require.Equal(t, []string{"0.1", "0.2", "0.3", "0.4"}, rec.Geometry)
	require.Equal(t, "3 0.1 0.2 0.3 0.4", rec.String())

	for _, bad := range []string{"", "   ", "garbled", "0 0.1 0.2 0.3", "x 0.1 0.2 0.3 0.4", "-1 0.1 0.2 0.3 0.4", "1.5 0.1 0.2 0.3 0.4"} {
		_, err := ParseRecord(bad)
		require.ErrorIs(t, err, ErrMalformed, "line '%v'", bad)
	}

	// Polygon geometry passes through untouched
	rec, err = ParseRecord("0 0.1 0.2 0.3 0.4 0.5 0.6 0.7000")
	require.NoError(t, err)
	require.Equal(t, "0 0.1 0.2 0.3 0.4 0.5 0.6 0.7000", rec.String())
}

func remapString(t *testing.T, in string, from, to int) (string, RemapStats) {
	var out bytes.Buffer
	stats, err := RemapLines(strings.NewReader(in), &out, from, to)
	require.NoError(t, err)
	return out.String(), stats
}

func TestRemapLines(t *testing.T) {
	out, stats := remapString(t, "0 0.1 0.2 0.3 0.4\ngarbled\n", 0, 1)
	require.Equal(t, "1 0.1 0.2 0.3 0.4\n", out)
	require.Equal(t, RemapStats{Lines: 1, Remapped: 1, Dropped: 1}, stats)

	// Other classes are untouched, order is preserved
	out, stats = remapString(t, "2 1 1 1 1\n0 0.5 0.5 0.1 0.1\n1 0.3 0.3 0.2 0.2", 0, 1)
	require.Equal(t, "2 1 1 1 1\n1 0.5 0.5 0.1 0.1\n1 0.3 0.3 0.2 0.2\n", out)
	require.Equal(t, 1, stats.Remapped)

	out, stats = remapString(t, "", 0, 1)
	require.Equal(t, "", out)
	require.Equal(t, RemapStats{}, stats)
}

func TestRemapIsIdempotent(t *testing.T) {
	in := "0 0.1 0.2 0.3 0.4\n0 0.5 0.5 0.5 0.5\n1 0.2 0.2 0.2 0.2\n"
	once, _ := remapString(t, in, 0, 1)
	twice, stats := remapString(t, once, 0, 1)
	require.Equal(t, once, twice)
	require.Equal(t, 0, stats.Remapped)

	for _, line := range strings.Split(strings.TrimSpace(twice), "\n") {
		rec, err := ParseRecord(line)
		require.NoError(t, err)
		require.Less(t, rec.ClassID, 2)
		require.Equal(t, 1, rec.ClassID)
	}
}

func TestRemapClass(t *testing.T) {
	root := t.TempDir()
	samples := makeSource(t, root, "train", "s", 4, 0)
	require.NoError(t, os.WriteFile(samples[0].Label, []byte("0 0.1 0.2 0.3 0.4\ngarbled\n0 0.5 0.5 0.5 0.5\n"), 0644))

	// Duplicate samples are only rewritten once
	stats, err := RemapClass(append(samples, samples[1]), 0, 1)
	require.NoError(t, err)
	require.Equal(t, RemapStats{Files: 4, Lines: 5, Remapped: 5, Dropped: 1}, stats)

	raw, err := os.ReadFile(samples[0].Label)
	require.NoError(t, err)
	require.Equal(t, "1 0.1 0.2 0.3 0.4\n1 0.5 0.5 0.5 0.5\n", string(raw))

	// Rewritten files keep their permissions
	for _, s := range samples {
		st, err := os.Stat(s.Label)
		require.NoError(t, err)
		require.Equal(t, os.FileMode(0644), st.Mode().Perm(), s.Label)
	}

	// Running it again changes nothing
	stats, err = RemapClass(samples, 0, 1)
	require.NoError(t, err)
	require.Equal(t, 0, stats.Remapped)

	_, err = RemapClass([]Sample{{Label: filepath.Join(root, "missing.txt")}}, 0, 1)
	require.Error(t, err)
}
