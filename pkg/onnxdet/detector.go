package onnxdet

import (
	"errors"
	"fmt"
	"image"
	"sync"

	"github.com/cyclopcam/fieldsight/pkg/nn"
	"github.com/up-zero/gotool/imageutil"
	ort "github.com/yalue/onnxruntime_go"
)

// Values per row of the model output: x1, y1, x2, y2, score, class
const outputStride = 6

var (
	initErr  error
	initOnce sync.Once
)

func initEnvironment(libraryPath string) error {
	initOnce.Do(func() {
		ort.SetSharedLibraryPath(libraryPath)
		initErr = ort.InitializeEnvironment()
	})
	if initErr != nil {
		return fmt.Errorf("Failed to initialize onnxruntime: %w", initErr)
	}
	return nil
}

// Detector runs a YOLO detection model through onnxruntime.
// Non-max suppression is part of the exported model, so the output rows are final detections.
type Detector struct {
	config      Config
	modelConfig nn.ModelConfig

	lock    sync.Mutex // Run() uses the bound input/output tensors, so only one inference at a time
	session *ort.AdvancedSession
	input   *ort.Tensor[float32]
	output  *ort.Tensor[float32]
}

// New loads the model. You must call Close() when finished.
func New(cfg Config) (*Detector, error) {
	if cfg.ModelPath == "" {
		return nil, errors.New("ModelPath is required")
	}
	if cfg.InputSize <= 0 || cfg.MaxDetections <= 0 || len(cfg.Classes) == 0 {
		return nil, fmt.Errorf("Invalid detector config: InputSize %v, MaxDetections %v, %v classes", cfg.InputSize, cfg.MaxDetections, len(cfg.Classes))
	}
	if err := initEnvironment(cfg.LibraryPath); err != nil {
		return nil, err
	}

	options, err := ort.NewSessionOptions()
	if err != nil {
		return nil, err
	}
	defer options.Destroy()
	if cfg.NumThreads > 0 {
		if err := options.SetIntraOpNumThreads(cfg.NumThreads); err != nil {
			return nil, err
		}
	}
	if cfg.UseCuda {
		cudaOptions, err := ort.NewCUDAProviderOptions()
		if err != nil {
			return nil, fmt.Errorf("Failed to create CUDA provider options: %w", err)
		}
		defer cudaOptions.Destroy()
		if err := options.AppendExecutionProviderCUDA(cudaOptions); err != nil {
			return nil, fmt.Errorf("Failed to add CUDA execution provider: %w", err)
		}
	}

	size := int64(cfg.InputSize)
	input, err := ort.NewEmptyTensor[float32](ort.NewShape(1, 3, size, size))
	if err != nil {
		return nil, err
	}
	output, err := ort.NewEmptyTensor[float32](ort.NewShape(1, int64(cfg.MaxDetections), outputStride))
	if err != nil {
		input.Destroy()
		return nil, err
	}
	session, err := ort.NewAdvancedSession(cfg.ModelPath,
		[]string{"images"}, []string{"output0"},
		[]ort.Value{input}, []ort.Value{output}, options)
	if err != nil {
		input.Destroy()
		output.Destroy()
		return nil, fmt.Errorf("Failed to create onnx session for %v: %w", cfg.ModelPath, err)
	}

	return &Detector{
		config: cfg,
		modelConfig: nn.ModelConfig{
			Architecture: "yolov8",
			Width:        cfg.InputSize,
			Height:       cfg.InputSize,
			Classes:      cfg.Classes,
		},
		session: session,
		input:   input,
		output:  output,
	}, nil
}

func (d *Detector) Close() {
	d.lock.Lock()
	defer d.lock.Unlock()
	if d.session != nil {
		d.session.Destroy()
		d.input.Destroy()
		d.output.Destroy()
		d.session = nil
	}
}

func (d *Detector) Config() *nn.ModelConfig {
	return &d.modelConfig
}

func (d *Detector) DetectObjects(img image.Image, params *nn.DetectionParams) ([]nn.ObjectDetection, error) {
	d.lock.Lock()
	defer d.lock.Unlock()
	if d.session == nil {
		return nil, errors.New("Detector is closed")
	}

	imgParams := preprocess(img, d.config.InputSize, d.input.GetData())
	if err := d.session.Run(); err != nil {
		return nil, fmt.Errorf("Inference failed: %w", err)
	}
	return postprocess(d.output.GetData(), imgParams, params.Threshold(), len(d.config.Classes)), nil
}

// preprocess scales img so that its longest side is inputSize, places it at the top left
// of the model input, and writes it as planar RGB in [0,1] into dst.
func preprocess(img image.Image, inputSize int, dst []float32) imageParams {
	bounds := img.Bounds()
	params := imageParams{
		origW: bounds.Dx(),
		origH: bounds.Dy(),
	}
	params.scale = float32(inputSize) / float32(max(params.origW, params.origH))

	newW := min(inputSize, int(float32(params.origW)*params.scale))
	newH := min(inputSize, int(float32(params.origH)*params.scale))
	resized := imageutil.Resize(img, newW, newH)
	rb := resized.Bounds()

	clear(dst)
	plane := inputSize * inputSize
	for y := 0; y < newH; y++ {
		for x := 0; x < newW; x++ {
			r, g, b, _ := resized.At(rb.Min.X+x, rb.Min.Y+y).RGBA()
			idx := y*inputSize + x
			dst[idx] = float32(r) / 65535.0
			dst[plane+idx] = float32(g) / 65535.0
			dst[2*plane+idx] = float32(b) / 65535.0
		}
	}
	return params
}

// postprocess converts the [N,6] model output into detections in original image coordinates
func postprocess(data []float32, params imageParams, threshold float32, numClasses int) []nn.ObjectDetection {
	results := []nn.ObjectDetection{}
	for offset := 0; offset+outputStride <= len(data); offset += outputStride {
		score := data[offset+4]
		classID := int(data[offset+5])
		if score < threshold || classID < 0 || classID >= numClasses {
			continue
		}
		x1 := int(data[offset+0] / params.scale)
		y1 := int(data[offset+1] / params.scale)
		x2 := int(data[offset+2] / params.scale)
		y2 := int(data[offset+3] / params.scale)
		box := nn.Rect{X: x1, Y: y1, Width: x2 - x1, Height: y2 - y1}.Clip(params.origW, params.origH)
		if box.Area() == 0 {
			continue
		}
		results = append(results, nn.ObjectDetection{
			Class:      classID,
			Confidence: score,
			Box:        box,
		})
	}
	return results
}
