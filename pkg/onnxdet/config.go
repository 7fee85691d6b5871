package onnxdet

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"runtime"
	"slices"
	"strings"

	"github.com/cyclopcam/fieldsight/pkg/nn"
)

// Config of the detector
type Config struct {
	ModelPath   string // ONNX model exported with NMS included (output [1, MaxDetections, 6])
	LibraryPath string // Path of the onnxruntime shared library

	InputSize     int      // Square model input, default 640
	MaxDetections int      // Rows in the model output, default 300
	Classes       []string // Class names, indexed by model class id

	UseCuda    bool // (optional) run on the CUDA execution provider
	NumThreads int  // (optional) intra-op threads. Zero lets onnxruntime decide.
}

func DefaultConfig() Config {
	return Config{
		ModelPath:     "./weights/civilian_soldier_yolov8n.onnx",
		LibraryPath:   DefaultLibraryPath(),
		InputSize:     640,
		MaxDetections: 300,
		Classes:       slices.Clone(nn.ClassNames),
	}
}

// ModelConfigPath returns the JSON description that sits next to the weights,
// eg "weights/model.onnx" -> "weights/model.json"
func ModelConfigPath(modelPath string) string {
	return strings.TrimSuffix(modelPath, filepath.Ext(modelPath)) + ".json"
}

// LoadModelConfig applies the model's JSON description on top of c, if the file exists.
// The description's class list and input size take precedence over the defaults.
func (c *Config) LoadModelConfig() error {
	fn := ModelConfigPath(c.ModelPath)
	if _, err := os.Stat(fn); errors.Is(err, fs.ErrNotExist) {
		return nil
	}
	mc, err := nn.LoadModelConfig(fn)
	if err != nil {
		return fmt.Errorf("Failed to load model config %v: %w", fn, err)
	}
	if mc.Width != mc.Height {
		return fmt.Errorf("Model %v has a non-square input %vx%v", c.ModelPath, mc.Width, mc.Height)
	}
	if mc.Width != 0 {
		c.InputSize = mc.Width
	}
	if len(mc.Classes) != 0 {
		c.Classes = slices.Clone(mc.Classes)
	}
	return nil
}

// LoadClassFile replaces the class names with the lines of a text file (one name per line, in model order)
func (c *Config) LoadClassFile(filename string) error {
	classes, err := nn.LoadClassFile(filename)
	if err != nil {
		return err
	}
	if len(classes) == 0 {
		return fmt.Errorf("No classes in %v", filename)
	}
	c.Classes = classes
	return nil
}

// DefaultLibraryPath picks the onnxruntime library for this OS and architecture, inside ./lib/
func DefaultLibraryPath() string {
	baseDir := "./lib/"
	libName := "onnxruntime"

	if runtime.GOOS == "windows" {
		return baseDir + libName + ".dll"
	}

	var ext string
	switch runtime.GOOS {
	case "darwin":
		ext = "dylib"
	case "linux":
		ext = "so"
	default:
		return baseDir + libName + "_amd64.so"
	}

	// eg ./lib/onnxruntime_arm64.so
	return fmt.Sprintf("%s%s_%s.%s", baseDir, libName, runtime.GOARCH, ext)
}

// Scale between the original image and the model input
type imageParams struct {
	origW, origH int
	scale        float32
}
