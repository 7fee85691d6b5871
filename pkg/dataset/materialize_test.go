package dataset

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/cyclopcam/fieldsight/pkg/storage"
	"github.com/cyclopcam/logs"
	"github.com/stretchr/testify/require"
)

func TestMaterialize(t *testing.T) {
	log := logs.NewTestingLog(t)
	src := t.TempDir()
	samples := makeSource(t, src, "train", "m", 10, 0)
	splits, err := Split(samples, NewRNG(3), 0.6, 0.2)
	require.NoError(t, err)

	destDir := t.TempDir()
	dest, err := storage.NewStorageFS(log, destDir)
	require.NoError(t, err)

	stats, err := Materialize(context.Background(), log, splits, dest, MaterializeOptions{})
	require.NoError(t, err)
	require.Equal(t, MaterializeStats{Copied: 20}, stats)

	for _, part := range splits.Parts() {
		imgs, _ := filepath.Glob(filepath.Join(destDir, part.Name, ImagesDir, "*.jpg"))
		lbls, _ := filepath.Glob(filepath.Join(destDir, part.Name, LabelsDir, "*.txt"))
		require.Len(t, imgs, len(part.Samples))
		require.Len(t, lbls, len(part.Samples))
		for _, s := range part.Samples {
			raw, err := os.ReadFile(filepath.Join(destDir, part.Name, ImagesDir, filepath.Base(s.Image)))
			require.NoError(t, err)
			orig, _ := os.ReadFile(s.Image)
			require.Equal(t, orig, raw)
		}
	}

	// Resume: nothing needs to be copied a second time
	stats, err = Materialize(context.Background(), log, splits, dest, MaterializeOptions{SkipExisting: true})
	require.NoError(t, err)
	require.Equal(t, MaterializeStats{Skipped: 20}, stats)
}

func TestMaterializeNameCollision(t *testing.T) {
	log := logs.NewTestingLog(t)
	a := makeSource(t, t.TempDir(), "train", "same", 1, 0)
	b := makeSource(t, t.TempDir(), "train", "same", 1, 1)
	splits := Splits{Train: []Sample{a[0], b[0]}}
	dest, err := storage.NewStorageFS(log, t.TempDir())
	require.NoError(t, err)
	_, err = Materialize(context.Background(), log, splits, dest, MaterializeOptions{})
	require.ErrorIs(t, err, ErrConfig)
}

func TestMaterializeMissingSource(t *testing.T) {
	log := logs.NewTestingLog(t)
	dest, err := storage.NewStorageFS(log, t.TempDir())
	require.NoError(t, err)
	splits := Splits{Train: fakeSamples("nowhere", 1)}
	_, err = Materialize(context.Background(), log, splits, dest, MaterializeOptions{})
	require.Error(t, err)
	require.True(t, strings.Contains(err.Error(), "Failed to copy"))
}

func TestMaterializeDotsInNames(t *testing.T) {
	log := logs.NewTestingLog(t)
	samples := makeSource(t, t.TempDir(), "train", "img..v2", 2, 0)
	destDir := t.TempDir()
	dest, err := storage.NewStorageFS(log, destDir)
	require.NoError(t, err)
	_, err = Materialize(context.Background(), log, Splits{Train: samples}, dest, MaterializeOptions{})
	require.NoError(t, err)
	_, err = os.Stat(filepath.Join(destDir, "train", LabelsDir, "img..v2_001.txt"))
	require.NoError(t, err)
}

func TestMaterializeResumeDetectsChangedContent(t *testing.T) {
	log := logs.NewTestingLog(t)
	samples := makeSource(t, t.TempDir(), "train", "r", 3, 0)
	destDir := t.TempDir()
	dest, err := storage.NewStorageFS(log, destDir)
	require.NoError(t, err)
	splits := Splits{Train: samples}
	_, err = Materialize(context.Background(), log, splits, dest, MaterializeOptions{})
	require.NoError(t, err)

	// Same size, different class
	require.NoError(t, os.WriteFile(samples[1].Label, []byte("1 0.5 0.5 0.2 0.2\n"), 0644))
	stats, err := Materialize(context.Background(), log, splits, dest, MaterializeOptions{SkipExisting: true})
	require.NoError(t, err)
	require.Equal(t, MaterializeStats{Copied: 1, Skipped: 5}, stats)
	raw, err := os.ReadFile(filepath.Join(destDir, "train", LabelsDir, filepath.Base(samples[1].Label)))
	require.NoError(t, err)
	require.Equal(t, "1 0.5 0.5 0.2 0.2\n", string(raw))
}

func TestMaterializeNoOrphanImage(t *testing.T) {
	log := logs.NewTestingLog(t)
	samples := makeSource(t, t.TempDir(), "train", "o", 2, 0)
	require.NoError(t, os.Remove(samples[1].Label))
	destDir := t.TempDir()
	dest, err := storage.NewStorageFS(log, destDir)
	require.NoError(t, err)

	stats, err := Materialize(context.Background(), log, Splits{Train: samples}, dest, MaterializeOptions{})
	require.Error(t, err)
	require.Equal(t, MaterializeStats{Copied: 2}, stats)

	// The first sample is complete, the second left nothing behind
	imgs, _ := filepath.Glob(filepath.Join(destDir, "train", ImagesDir, "*"))
	lbls, _ := filepath.Glob(filepath.Join(destDir, "train", LabelsDir, "*"))
	require.Equal(t, []string{filepath.Join(destDir, "train", ImagesDir, "o_000.jpg")}, imgs)
	require.Equal(t, []string{filepath.Join(destDir, "train", LabelsDir, "o_000.txt")}, lbls)
}

func TestManifest(t *testing.T) {
	log := logs.NewTestingLog(t)
	destDir := t.TempDir()
	dest, err := storage.NewStorageFS(log, destDir)
	require.NoError(t, err)

	require.NoError(t, WriteManifest(dest, []string{"civilian", "soldier"}))
	raw, err := os.ReadFile(filepath.Join(destDir, ManifestName))
	require.NoError(t, err)
	expect := `train: ./train/images
val: ./valid/images
test: ./test/images
nc: 2
names:
  0: civilian
  1: soldier
`
	require.Equal(t, expect, string(raw))

	m, err := ReadManifest(dest)
	require.NoError(t, err)
	names, err := m.ClassNames()
	require.NoError(t, err)
	require.Equal(t, []string{"civilian", "soldier"}, names)

	require.ErrorIs(t, WriteManifest(dest, nil), ErrConfig)

	bad, err := ParseManifest([]byte("names:\n  0: a\n  5: b\n"))
	require.NoError(t, err)
	_, err = bad.ClassNames()
	require.Error(t, err)
}
