package labeler

import (
	"errors"
	"fmt"
	"image"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"github.com/cyclopcam/fieldsight/pkg/dataset"
	"github.com/cyclopcam/fieldsight/pkg/nn"
	"github.com/cyclopcam/fieldsight/pkg/onnxdet"
	"github.com/cyclopcam/fieldsight/pkg/videox"
	"github.com/cyclopcam/logs"
	"github.com/up-zero/gotool/imageutil"
)

// Options control what is written for every labelled frame, besides the returned labels
type Options struct {
	AnnotatedDir string  // If not empty, write a copy of every frame with its detections drawn on it
	LabelsDir    string  // If not empty, write an annotation file for every frame
	Evaluate     bool    // Compare detections against the frame's ground truth annotation file, where there is one
	MatchIOU     float32 // Overlap needed for a detection to count as correct. Zero uses nn.DefaultMatchIOU.
	Quality      int     // JPEG quality of annotated frames. Zero uses 90.
}

// Labeler runs a detector over images or sequences of frames.
// Evaluation results accumulate over every call.
type Labeler struct {
	Log       logs.Log
	Model     nn.ObjectDetector
	Inference nn.InferenceOptions
	Options   Options

	Stats          nn.MatchStats // Totals over all frames that had ground truth
	EvaluatedCount int           // Number of frames that had ground truth
}

func New(log logs.Log, model nn.ObjectDetector, inference nn.InferenceOptions, options Options) (*Labeler, error) {
	for _, dir := range []string{options.AnnotatedDir, options.LabelsDir} {
		if dir == "" {
			continue
		}
		if err := os.MkdirAll(dir, 0755); err != nil {
			return nil, err
		}
	}
	if options.MatchIOU == 0 {
		options.MatchIOU = nn.DefaultMatchIOU
	}
	if options.Quality == 0 {
		options.Quality = 90
	}
	return &Labeler{
		Log:       log,
		Model:     model,
		Inference: inference,
		Options:   options,
	}, nil
}

// LabelImage runs the detector on a single image file.
// The decoded image is returned along with its labels.
func (l *Labeler) LabelImage(filename string) (image.Image, *nn.ImageLabels, error) {
	img, labels, err := nn.RunInferenceOnImageFile(l.Model, filename, l.Inference)
	if err != nil {
		return nil, nil, err
	}
	if err := l.frameDone(img, labels); err != nil {
		return nil, nil, err
	}
	return img, labels, nil
}

// SaveAnnotated writes a copy of img with its detections drawn on it.
// The format follows the extension of filename (.jpg or .png).
func (l *Labeler) SaveAnnotated(filename string, img image.Image, labels *nn.ImageLabels) error {
	if !videox.IsFrameFile(filename) {
		return fmt.Errorf("Unsupported image format '%v' (use .jpg or .png)", filepath.Ext(filename))
	}
	return imageutil.Save(filename, onnxdet.Annotate(img, labels.Objects, l.Inference.Classes), l.Options.Quality)
}

// LabelFrames runs the detector on every frame of a sequence, in order
func (l *Labeler) LabelFrames(frames []string) (*nn.VideoLabels, error) {
	return nn.RunInferenceOnFrames(l.Model, frames, l.Inference, l.frameDone)
}

func (l *Labeler) frameDone(img image.Image, labels *nn.ImageLabels) error {
	base := filepath.Base(labels.Image)
	stem := strings.TrimSuffix(base, filepath.Ext(base))

	if l.Options.AnnotatedDir != "" {
		out := filepath.Join(l.Options.AnnotatedDir, base)
		if err := l.SaveAnnotated(out, img, labels); err != nil {
			return fmt.Errorf("Failed to save %v: %w", out, err)
		}
	}
	if l.Options.LabelsDir != "" {
		out := filepath.Join(l.Options.LabelsDir, stem+dataset.LabelExt)
		if err := dataset.WriteAnnotationFile(out, labels); err != nil {
			return fmt.Errorf("Failed to write %v: %w", out, err)
		}
	}
	if l.Options.Evaluate {
		if err := l.evaluate(labels); err != nil {
			return err
		}
	}
	if labels.Frame != 0 {
		l.Log.Debugf("Frame %v: %v objects", labels.Frame, len(labels.Objects))
	}
	return nil
}

// Ground truth lives in the sibling labels directory of a dataset split (see dataset.LabelPathFor).
// Frames without ground truth are not evaluated.
func (l *Labeler) evaluate(labels *nn.ImageLabels) error {
	truthFile, ok := dataset.LabelPathFor(labels.Image)
	if !ok {
		return nil
	}
	truth, err := dataset.ReadAnnotationFile(truthFile, labels.Width, labels.Height)
	if errors.Is(err, fs.ErrNotExist) {
		return nil
	} else if err != nil {
		return fmt.Errorf("Failed to read ground truth %v: %w", truthFile, err)
	}
	l.Stats.Add(nn.Match(truth, labels.Objects, l.Options.MatchIOU))
	l.EvaluatedCount++
	return nil
}
