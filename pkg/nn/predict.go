package nn

import (
	"errors"
	"fmt"
	"image"

	"github.com/up-zero/gotool/imageutil"
)

type InferenceOptions struct {
	MinSize    int      // Minimum size of object, in pixels. If max(width, height) >= MinSize, then use the object
	Classes    []string // List of class names to detect (eg ["civilian", "soldier"]). Any classes not included in the list are ignored.
	Params     *DetectionParams
	StartFrame int  // Start processing at frame (0 = start at beginning)
	EndFrame   int  // Stop processing at frame (0 = process to end)
	KeepEmpty  bool // Emit frames with no objects (otherwise they are left out of VideoLabels)
}

// classMap maps model class indices to indices in options.Classes
func classMap(model ObjectDetector, options InferenceOptions) (map[int]int, error) {
	if len(options.Classes) == 0 {
		return nil, errors.New("No classes specified")
	}

	nnClassToIndex := map[string]int{}
	for i, class := range model.Config().Classes {
		nnClassToIndex[class] = i
	}

	nnClassToOutputClass := map[int]int{}
	for iOut, class := range options.Classes {
		iIn, ok := nnClassToIndex[class]
		if !ok {
			return nil, fmt.Errorf("Class '%v' not found in model", class)
		}
		nnClassToOutputClass[iIn] = iOut
	}
	return nnClassToOutputClass, nil
}

// RunInference runs the model on a single image, and keeps only the objects
// whose class is in options.Classes, renumbered to match that list.
func RunInference(model ObjectDetector, img image.Image, options InferenceOptions) (*ImageLabels, error) {
	nnClassToOutputClass, err := classMap(model, options)
	if err != nil {
		return nil, err
	}
	params := options.Params
	if params == nil {
		params = NewDetectionParams()
	}

	objects, err := model.DetectObjects(img, params)
	if err != nil {
		return nil, err
	}

	labels := &ImageLabels{
		Width:   img.Bounds().Dx(),
		Height:  img.Bounds().Dy(),
		Objects: []ObjectDetection{},
	}
	for _, obj := range FilterByConfidence(objects, params) {
		outClass, ok := nnClassToOutputClass[obj.Class]
		if ok &&
			(obj.Box.Width >= options.MinSize || obj.Box.Height >= options.MinSize) {
			obj.Class = outClass
			labels.Objects = append(labels.Objects, obj)
		}
	}
	return labels, nil
}

// RunInferenceOnImageFile decodes an image file and runs the model on it.
// The decoded image is returned too, for drawing on.
func RunInferenceOnImageFile(model ObjectDetector, inputFile string, options InferenceOptions) (image.Image, *ImageLabels, error) {
	img, err := imageutil.Open(inputFile)
	if err != nil {
		return nil, nil, fmt.Errorf("Failed to open image %v: %w", inputFile, err)
	}
	labels, err := RunInference(model, img, options)
	if err != nil {
		return nil, nil, err
	}
	labels.Image = inputFile
	return img, labels, nil
}

// FrameFunc is called after each frame has been labelled. img is the decoded frame.
type FrameFunc func(img image.Image, labels *ImageLabels) error

// RunInferenceOnFrames runs the model on a sequence of image files, which are the frames
// of a video, in order. Frame numbers start at 1. If onFrame is not nil, it is called
// for every processed frame (including empty ones), and an error from it stops the run.
func RunInferenceOnFrames(model ObjectDetector, frames []string, options InferenceOptions, onFrame FrameFunc) (*VideoLabels, error) {
	videoLabels := &VideoLabels{
		Classes: options.Classes,
		Frames:  []*ImageLabels{},
	}
	for i, fn := range frames {
		frameIdx := i + 1
		if frameIdx < options.StartFrame {
			continue
		}
		if options.EndFrame > 0 && frameIdx > options.EndFrame {
			break
		}
		img, labels, err := RunInferenceOnImageFile(model, fn, options)
		if err != nil {
			return nil, err
		}
		labels.Frame = frameIdx
		if onFrame != nil {
			if err := onFrame(img, labels); err != nil {
				return nil, err
			}
		}
		if len(labels.Objects) != 0 || options.KeepEmpty {
			videoLabels.Frames = append(videoLabels.Frames, labels)
		}
	}
	return videoLabels, nil
}
