package dataset

import (
	"fmt"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
)

// Create n image/label pairs under root/<subset>/{images,labels}, named <prefix>_<i>
func makeSource(t *testing.T, root, subset, prefix string, n, classID int) []Sample {
	imgDir := filepath.Join(root, subset, ImagesDir)
	lblDir := filepath.Join(root, subset, LabelsDir)
	require.NoError(t, os.MkdirAll(imgDir, 0755))
	require.NoError(t, os.MkdirAll(lblDir, 0755))
	samples := []Sample{}
	for i := 0; i < n; i++ {
		name := fmt.Sprintf("%v_%03d", prefix, i)
		img := filepath.Join(imgDir, name+".jpg")
		lbl := filepath.Join(lblDir, name+".txt")
		require.NoError(t, os.WriteFile(img, []byte("jpeg "+name), 0644))
		require.NoError(t, os.WriteFile(lbl, []byte(fmt.Sprintf("%v 0.5 0.5 0.2 0.2\n", classID)), 0644))
		samples = append(samples, Sample{Image: img, Label: lbl})
	}
	return samples
}

// Fake samples that don't exist on disk, for the pure algorithms
func fakeSamples(prefix string, n int) []Sample {
	s := make([]Sample, n)
	for i := range s {
		s[i] = Sample{
			Image: fmt.Sprintf("/%v/images/%03d.jpg", prefix, i),
			Label: fmt.Sprintf("/%v/labels/%03d.txt", prefix, i),
		}
	}
	return s
}
