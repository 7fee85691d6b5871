package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"

	"github.com/akamensky/argparse"
	"github.com/cyclopcam/fieldsight/pkg/train"
	"github.com/cyclopcam/logs"
)

func main() {
	def := train.NewOptions()
	parser := argparse.NewParser("train", "Train the civilian/soldier detector on a merged dataset")
	data := parser.String("d", "data", &argparse.Options{Help: "Dataset manifest", Default: def.Data})
	model := parser.String("m", "model", &argparse.Options{Help: "Starting weights", Default: def.Model})
	epochs := parser.Int("e", "epochs", &argparse.Options{Help: "Number of training epochs", Default: def.Epochs})
	imgsz := parser.Int("", "imgsz", &argparse.Options{Help: "Training image size", Default: def.ImageSize})
	batch := parser.Int("b", "batch", &argparse.Options{Help: "Batch size (reduce if your GPU runs out of memory)", Default: def.Batch})
	name := parser.String("n", "name", &argparse.Options{Help: "Name of the training run", Default: def.Name})
	device := parser.String("", "device", &argparse.Options{Help: "Training device, eg 0 or cpu", Default: ""})
	extra := parser.String("x", "extra", &argparse.Options{Help: "Additional trainer arguments, eg \"lr0=0.01 patience=10\"", Default: ""})
	executable := parser.String("", "yolo", &argparse.Options{Help: "Training entry point executable", Default: def.Executable})
	err := parser.Parse(os.Args)
	if err != nil {
		fmt.Print(parser.Usage(err))
		os.Exit(1)
	}

	logger, err := logs.NewLog()
	if err != nil {
		fmt.Printf("Failed to create logger: %v\n", err)
		os.Exit(1)
	}

	opt := train.Options{
		Executable: *executable,
		Model:      *model,
		Data:       *data,
		Epochs:     *epochs,
		ImageSize:  *imgsz,
		Batch:      *batch,
		Name:       *name,
		Device:     *device,
	}

	if opt.Extra, err = train.ParseExtra(*extra); err != nil {
		logger.Errorf("%v", err)
		os.Exit(1)
	}

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt)
	defer cancel()

	if err := train.Run(ctx, logger, opt); err != nil {
		logger.Errorf("%v", err)
		os.Exit(1)
	}
}
