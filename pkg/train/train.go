package train

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strconv"
	"strings"

	"github.com/cyclopcam/fieldsight/pkg/shell"
	"github.com/cyclopcam/logs"
	"github.com/kballard/go-shellquote"
)

// Options are the hyperparameters handed to the external training entry point.
// The defaults match the model we ship (a lightweight yolov8n fine-tune).
type Options struct {
	Executable string // The training CLI, eg "yolo"
	Model      string // Starting weights, eg "yolov8n.pt"
	Data       string // Path to the manifest (data.yaml) of a merged dataset
	Epochs     int
	ImageSize  int
	Batch      int
	Name       string   // Name of the run, which determines the output directory
	Device     string   // Optional, eg "0" or "cpu"
	Extra      []string // Additional key=value arguments, passed through verbatim
}

func NewOptions() Options {
	return Options{
		Executable: "yolo",
		Model:      "yolov8n.pt",
		Data:       "merged_dataset/data.yaml",
		Epochs:     30,
		ImageSize:  640,
		Batch:      16,
		Name:       "civilian_soldier_yolov8",
	}
}

func (o *Options) Validate() error {
	if o.Executable == "" || o.Model == "" || o.Data == "" || o.Name == "" {
		return errors.New("Executable, Model, Data and Name are required")
	}
	if o.Epochs <= 0 || o.ImageSize <= 0 || o.Batch <= 0 {
		return fmt.Errorf("Epochs (%v), ImageSize (%v) and Batch (%v) must be positive", o.Epochs, o.ImageSize, o.Batch)
	}
	return nil
}

// Args returns the command line arguments of the training entry point
func (o *Options) Args() []string {
	args := []string{
		"detect",
		"train",
		"model=" + o.Model,
		"data=" + o.Data,
		"epochs=" + strconv.Itoa(o.Epochs),
		"imgsz=" + strconv.Itoa(o.ImageSize),
		"batch=" + strconv.Itoa(o.Batch),
		"name=" + o.Name,
	}
	if o.Device != "" {
		args = append(args, "device="+o.Device)
	}
	return append(args, o.Extra...)
}

// ParseExtra splits a shell-style string such as "lr0=0.01 project='my runs'"
// into individual trainer arguments.
func ParseExtra(s string) ([]string, error) {
	args, err := shellquote.Split(s)
	if err != nil {
		return nil, fmt.Errorf("Invalid extra training arguments '%v': %w", s, err)
	}
	for _, a := range args {
		if !strings.Contains(a, "=") {
			return nil, fmt.Errorf("Extra training argument '%v' is not of the form key=value", a)
		}
	}
	return args, nil
}

// Run launches training, and blocks until it finishes.
// The trained weights are written by the external tool, into its own run directory.
func Run(ctx context.Context, log logs.Log, opt Options) error {
	if err := opt.Validate(); err != nil {
		return err
	}
	if _, err := os.Stat(opt.Data); errors.Is(err, fs.ErrNotExist) {
		return fmt.Errorf("Dataset manifest %v does not exist", opt.Data)
	}
	args := opt.Args()
	log.Infof("Training: %v", shellquote.Join(append([]string{opt.Executable}, args...)...))
	if err := shell.RunStreaming(ctx, log, opt.Executable, args...); err != nil {
		return fmt.Errorf("Training failed: %w", err)
	}
	log.Infof("Training run '%v' finished", opt.Name)
	return nil
}
