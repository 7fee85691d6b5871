package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"os/signal"
	"strings"

	"github.com/akamensky/argparse"
	"github.com/cyclopcam/fieldsight/pkg/labeler"
	"github.com/cyclopcam/fieldsight/pkg/nn"
	"github.com/cyclopcam/fieldsight/pkg/onnxdet"
	"github.com/cyclopcam/fieldsight/pkg/videox"
	"github.com/cyclopcam/logs"
	"github.com/pterm/pterm"
)

func check(err error) {
	if err != nil {
		panic(err)
	}
}

func main() {
	def := onnxdet.DefaultConfig()
	parser := argparse.NewParser("predict", "Detect civilians and soldiers in an image, a directory of frames, or a video")
	input := parser.String("i", "input", &argparse.Options{Help: "Input image file, directory of frames, or video file", Required: true})
	output := parser.File("o", "output", os.O_RDWR|os.O_CREATE|os.O_TRUNC, 0664, &argparse.Options{Help: "Output label file (JSON)", Required: true})
	annotated := parser.String("a", "annotated", &argparse.Options{Help: "Annotated copy of the image (a directory, for frames or video)", Default: ""})
	yoloDir := parser.String("y", "yolo", &argparse.Options{Help: "Write an annotation file per image into this directory", Default: ""})
	evaluate := parser.Flag("e", "evaluate", &argparse.Options{Help: "Compare detections against the ground truth of dataset images (<split>/labels)", Default: false})
	iou := parser.Float("", "iou", &argparse.Options{Help: "Overlap at which a detection matches ground truth", Default: float64(nn.DefaultMatchIOU)})
	minSize := parser.Int("m", "minsize", &argparse.Options{Help: "Minimum size of object, in pixels", Default: 0})
	threshold := parser.Float("t", "threshold", &argparse.Options{Help: "Minimum confidence", Default: float64(nn.DefaultProbabilityThreshold)})
	classes := parser.String("c", "classes", &argparse.Options{Help: "Comma-separated list of named classes to detect (default: all classes of the model)", Default: ""})
	modelFile := parser.String("n", "model", &argparse.Options{Help: "Path to ONNX model file. A .json description next to it is loaded if present.", Default: def.ModelPath})
	classFile := parser.String("", "classfile", &argparse.Options{Help: "Text file with the model's class names, one per line", Default: ""})
	libFile := parser.String("", "ort", &argparse.Options{Help: "Path to onnxruntime shared library", Default: def.LibraryPath})
	inputSize := parser.Int("", "imgsz", &argparse.Options{Help: "Model input size (0 = from the model description, or 640)", Default: 0})
	useCuda := parser.Flag("", "cuda", &argparse.Options{Help: "Use the CUDA execution provider", Default: false})
	fps := parser.Float("", "fps", &argparse.Options{Help: "Video only: resample to this frame rate (0 = every frame)", Default: 0.0})
	vheight := parser.Int("", "vheight", &argparse.Options{Help: "Video only: if the video is taller than this, scale it down", Default: 0})
	startFrame := parser.Int("", "startframe", &argparse.Options{Help: "Start processing at frame", Default: 0})
	endFrame := parser.Int("", "endframe", &argparse.Options{Help: "Stop processing at frame", Default: 0})
	err := parser.Parse(os.Args)
	if err != nil {
		fmt.Print(parser.Usage(err))
		os.Exit(1)
	}
	defer output.Close()

	logger, _ := logs.NewLog()

	cfg := def
	cfg.ModelPath = *modelFile
	cfg.LibraryPath = *libFile
	cfg.UseCuda = *useCuda
	check(cfg.LoadModelConfig())
	if *classFile != "" {
		check(cfg.LoadClassFile(*classFile))
	}
	if *inputSize != 0 {
		cfg.InputSize = *inputSize
	}
	model, err := onnxdet.New(cfg)
	check(err)
	defer model.Close()

	inference := nn.InferenceOptions{
		MinSize:    *minSize,
		Classes:    cfg.Classes,
		Params:     &nn.DetectionParams{ProbabilityThreshold: float32(*threshold)},
		StartFrame: *startFrame,
		EndFrame:   *endFrame,
	}
	if *classes != "" {
		inference.Classes = strings.Split(*classes, ",")
	}

	st, err := os.Stat(*input)
	check(err)
	isSequence := st.IsDir() || videox.IsVideoFile(*input)

	opt := labeler.Options{
		LabelsDir: *yoloDir,
		Evaluate:  *evaluate,
		MatchIOU:  float32(*iou),
	}
	if isSequence {
		opt.AnnotatedDir = *annotated
	}
	lab, err := labeler.New(logger, model, inference, opt)
	check(err)

	var result any
	if !isSequence {
		img, labels, err := lab.LabelImage(*input)
		check(err)
		logger.Infof("Found %v objects in %v", len(labels.Objects), *input)
		if *annotated != "" {
			// For a single image, -a names the output file
			check(lab.SaveAnnotated(*annotated, img, labels))
		}
		result = labels
	} else {
		var frames []string
		if st.IsDir() {
			frames, err = videox.ListFrames(*input)
			check(err)
		} else {
			ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt)
			defer cancel()
			tmpDir, err := os.MkdirTemp("", "fieldsight-frames-")
			check(err)
			defer os.RemoveAll(tmpDir)
			logger.Infof("Decoding %v", *input)
			frames, err = videox.ExtractFrames(ctx, *input, tmpDir, videox.ExtractOptions{FPS: *fps, MaxHeight: *vheight})
			check(err)
		}
		logger.Infof("Labelling %v frames", len(frames))
		video, err := lab.LabelFrames(frames)
		check(err)
		logger.Infof("Found objects in %v frames", len(video.Frames))
		result = video
	}

	encoder := json.NewEncoder(output)
	encoder.SetIndent("", "  ")
	check(encoder.Encode(result))

	if *evaluate {
		if lab.EvaluatedCount == 0 {
			pterm.Warning.Printfln("No ground truth found next to %v", *input)
		} else {
			pterm.Info.Printfln("Evaluated %v images at IoU %.2f", lab.EvaluatedCount, *iou)
			pterm.Printfln("Precision: %.3f  Recall: %.3f  (TP %v, FP %v, FN %v)",
				lab.Stats.Precision(), lab.Stats.Recall(),
				lab.Stats.TruePositives, lab.Stats.FalsePositives, lab.Stats.FalseNegatives)
		}
	}
}
