package main

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"os/signal"

	"github.com/akamensky/argparse"
	"github.com/cyclopcam/fieldsight/pkg/config"
	"github.com/cyclopcam/fieldsight/pkg/dataset"
	"github.com/cyclopcam/fieldsight/pkg/storage"
	"github.com/cyclopcam/logs"
	"github.com/pterm/pterm"
)

func main() {
	parser := argparse.NewParser("mergeset", "Merge a civilian and a soldier dataset into one balanced, split, two-class dataset")
	configFile := parser.String("c", "config", &argparse.Options{Help: "JSON configuration file (default " + config.DefaultFilename + ", if present)", Default: ""})
	civilian := parser.String("", "civilian", &argparse.Options{Help: "Civilian source: directory, or URL of a zipped YOLO export", Default: ""})
	soldier := parser.String("", "soldier", &argparse.Options{Help: "Soldier source: directory, or URL of a zipped YOLO export", Default: ""})
	dest := parser.String("o", "output", &argparse.Options{Help: "Output directory, or gs://bucket/prefix", Default: ""})
	cacheDir := parser.String("", "cache", &argparse.Options{Help: "Directory for downloaded sources", Default: ""})
	seed := parser.Int("s", "seed", &argparse.Options{Help: "Random seed (negative = use config)", Default: -1})
	trainFrac := parser.Float("", "train", &argparse.Options{Help: "Fraction of samples for training (negative = use config)", Default: -1.0})
	validFrac := parser.Float("", "valid", &argparse.Options{Help: "Fraction of samples for validation (negative = use config)", Default: -1.0})
	resume := parser.Flag("", "resume", &argparse.Options{Help: "Skip files that have already been copied", Default: false})
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

	cfg, err := loadConfig(*configFile)
	if err != nil {
		logger.Errorf("%v", err)
		os.Exit(1)
	}
	if *civilian != "" {
		cfg.CivilianSource = *civilian
	}
	if *soldier != "" {
		cfg.SoldierSource = *soldier
	}
	if *dest != "" {
		cfg.Destination = *dest
	}
	if *cacheDir != "" {
		cfg.CacheDir = *cacheDir
	}
	if *seed >= 0 {
		cfg.Seed = int64(*seed)
	}
	if *trainFrac >= 0 {
		cfg.TrainFraction = *trainFrac
	}
	if *validFrac >= 0 {
		cfg.ValidFraction = *validFrac
	}
	if *resume {
		cfg.SkipExisting = true
	}
	if err := cfg.Validate(); err != nil {
		logger.Errorf("%v", err)
		os.Exit(1)
	}

	store, err := storage.Open(logger, cfg.Destination)
	if err != nil {
		logger.Errorf("Failed to open destination %v: %v", cfg.Destination, err)
		os.Exit(1)
	}

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt)
	defer cancel()

	builder := dataset.NewBuilder(logger, cfg.BuildOptions(), store)
	result, err := builder.Run(ctx)
	if errClose := store.Close(); errClose != nil {
		logger.Warnf("Failed to close %v: %v", cfg.Destination, errClose)
	}
	if err != nil {
		logger.Errorf("Dataset build failed: %v", err)
		os.Exit(1)
	}

	logger.Infof("Raw pairs: %v civilian, %v soldier. Copied %v files, skipped %v.",
		result.CivilianRaw, result.SoldierRaw, result.Materialized.Copied, result.Materialized.Skipped)
	pterm.Success.Printfln("Balanced merged dataset created in: %v", cfg.Destination)
	pterm.Printfln("Balanced pairs per class: %v", result.Splits.Len()/2)
	pterm.Printfln("Train set: %v images", len(result.Splits.Train))
	pterm.Printfln("Validation set: %v images", len(result.Splits.Valid))
	pterm.Printfln("Test set: %v images", len(result.Splits.Test))
}

// Load the explicit config file, or the default file if it exists, or else the defaults
func loadConfig(filename string) (*config.Config, error) {
	if filename != "" {
		return config.LoadConfig(filename)
	}
	if _, err := os.Stat(config.DefaultFilename); errors.Is(err, fs.ErrNotExist) {
		return config.DefaultConfig(), nil
	}
	return config.LoadConfig(config.DefaultFilename)
}
