package nn

import (
	"errors"
	"fmt"
	"image"
	"image/png"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
)

type fakeDetector struct {
	config  ModelConfig
	objects []ObjectDetection
}

func (f *fakeDetector) Close() {}

func (f *fakeDetector) DetectObjects(img image.Image, params *DetectionParams) ([]ObjectDetection, error) {
	return f.objects, nil
}

func (f *fakeDetector) Config() *ModelConfig {
	return &f.config
}

func TestRunInference(t *testing.T) {
	model := &fakeDetector{
		config: ModelConfig{Classes: []string{"person", "soldier", "civilian"}},
		objects: []ObjectDetection{
			{Class: 0, Confidence: 0.9, Box: Rect{Width: 50, Height: 50}}, // class not requested
			{Class: 1, Confidence: 0.9, Box: Rect{Width: 50, Height: 50}}, // soldier
			{Class: 2, Confidence: 0.8, Box: Rect{Width: 5, Height: 40}},  // civilian
			{Class: 2, Confidence: 0.2, Box: Rect{Width: 50, Height: 50}}, // below threshold
			{Class: 1, Confidence: 0.9, Box: Rect{Width: 10, Height: 10}}, // too small
		},
	}
	img := image.NewRGBA(image.Rect(0, 0, 320, 240))
	labels, err := RunInference(model, img, InferenceOptions{
		MinSize: 20,
		Classes: ClassNames,
	})
	require.NoError(t, err)
	require.Equal(t, 320, labels.Width)
	require.Equal(t, 240, labels.Height)
	require.Len(t, labels.Objects, 2)
	require.Equal(t, int(ClassSoldier), labels.Objects[0].Class)
	require.Equal(t, int(ClassCivilian), labels.Objects[1].Class)

	_, err = RunInference(model, img, InferenceOptions{Classes: []string{"tank"}})
	require.Error(t, err)
	_, err = RunInference(model, img, InferenceOptions{})
	require.Error(t, err)
}

func writeFrames(t *testing.T, n int) []string {
	dir := t.TempDir()
	frames := []string{}
	for i := 0; i < n; i++ {
		fn := filepath.Join(dir, fmt.Sprintf("frame_%06d.png", i+1))
		f, err := os.Create(fn)
		require.NoError(t, err)
		require.NoError(t, png.Encode(f, image.NewRGBA(image.Rect(0, 0, 64, 48))))
		require.NoError(t, f.Close())
		frames = append(frames, fn)
	}
	return frames
}

func TestRunInferenceOnFrames(t *testing.T) {
	model := &fakeDetector{
		config:  ModelConfig{Classes: ClassNames},
		objects: []ObjectDetection{{Class: 1, Confidence: 0.9, Box: Rect{X: 1, Y: 2, Width: 30, Height: 30}}},
	}
	frames := writeFrames(t, 5)

	visited := []int{}
	labels, err := RunInferenceOnFrames(model, frames, InferenceOptions{Classes: ClassNames, StartFrame: 2, EndFrame: 4},
		func(img image.Image, l *ImageLabels) error {
			require.Equal(t, 64, img.Bounds().Dx())
			visited = append(visited, l.Frame)
			return nil
		})
	require.NoError(t, err)
	require.Equal(t, []int{2, 3, 4}, visited)
	require.Equal(t, ClassNames, labels.Classes)
	require.Len(t, labels.Frames, 3)
	require.Equal(t, frames[1], labels.Frames[0].Image)
	require.Equal(t, 48, labels.Frames[0].Height)

	// Frames without objects are left out, unless asked for
	model.objects = nil
	labels, err = RunInferenceOnFrames(model, frames, InferenceOptions{Classes: ClassNames}, nil)
	require.NoError(t, err)
	require.Empty(t, labels.Frames)
	labels, err = RunInferenceOnFrames(model, frames, InferenceOptions{Classes: ClassNames, KeepEmpty: true}, nil)
	require.NoError(t, err)
	require.Len(t, labels.Frames, 5)

	stop := errors.New("stop")
	_, err = RunInferenceOnFrames(model, frames, InferenceOptions{Classes: ClassNames}, func(image.Image, *ImageLabels) error { return stop })
	require.ErrorIs(t, err, stop)

	_, err = RunInferenceOnFrames(model, []string{frames[0] + ".missing"}, InferenceOptions{Classes: ClassNames}, nil)
	require.Error(t, err)
}
