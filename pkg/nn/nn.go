package nn

import (
	"bufio"
	"encoding/json"
	"image"
	"os"
	"strings"
)

// Package nn is the interface layer between our tools and an object detector.
// The detector itself (network, inference, NMS) lives outside of this repo.
// To run a real model, use the onnxdet package.

const DefaultProbabilityThreshold = 0.5

// NN object detection parameters
type DetectionParams struct {
	ProbabilityThreshold float32 // Value between 0 and 1. Lower values will find more objects. Zero value will use the default.
}

// Create a default DetectionParams object
func NewDetectionParams() *DetectionParams {
	return &DetectionParams{
		ProbabilityThreshold: DefaultProbabilityThreshold,
	}
}

// Threshold returns the effective probability threshold
func (p *DetectionParams) Threshold() float32 {
	if p == nil || p.ProbabilityThreshold == 0 {
		return DefaultProbabilityThreshold
	}
	return p.ProbabilityThreshold
}

// ObjectDetector is given an image, and returns zero or more detected objects
type ObjectDetector interface {
	// Close releases the detector (you MUST call this when finished, because there are C objects underneath)
	Close()

	// DetectObjects returns an unordered list of objects detected in the image.
	// Boxes are in the pixel coordinates of img.
	// You can create a default DetectionParams with NewDetectionParams()
	DetectObjects(img image.Image, params *DetectionParams) ([]ObjectDetection, error)

	// Model Config.
	// Callers assume that ModelConfig will remain constant, so don't change it
	// once the detector has been created.
	Config() *ModelConfig
}

// ModelConfig is saved in a JSON file along with the weights of the NN model
type ModelConfig struct {
	Architecture string   `json:"architecture"` // eg "yolov8"
	Width        int      `json:"width"`        // eg 640
	Height       int      `json:"height"`       // eg 640
	Classes      []string `json:"classes"`      // eg ["civilian", "soldier"]
}

// Load model config from a JSON file
func LoadModelConfig(filename string) (*ModelConfig, error) {
	b, err := os.ReadFile(filename)
	if err != nil {
		return nil, err
	}
	config := &ModelConfig{}
	err = json.Unmarshal(b, config)
	if err != nil {
		return nil, err
	}
	return config, nil
}

// Load a text file with class names on each line
func LoadClassFile(filename string) ([]string, error) {
	f, err := os.Open(filename)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	classes := []string{}
	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line != "" {
			classes = append(classes, line)
		}
	}
	return classes, scanner.Err()
}

// FilterByConfidence returns the objects whose confidence is at least the threshold in params
func FilterByConfidence(objects []ObjectDetection, params *DetectionParams) []ObjectDetection {
	threshold := params.Threshold()
	out := make([]ObjectDetection, 0, len(objects))
	for _, obj := range objects {
		if obj.Confidence >= threshold {
			out = append(out, obj)
		}
	}
	return out
}
