package config

import (
	"encoding/json"
	"fmt"
	"os"
	"slices"

	"github.com/cyclopcam/fieldsight/pkg/dataset"
	"github.com/cyclopcam/fieldsight/pkg/nn"
)

// DefaultFilename is loaded by the commands when no config file is specified, if it exists
const DefaultFilename = "fieldsight.json"

// Config describes how to build a merged dataset
type Config struct {
	CivilianSource     string   `json:"civilianSource"`     // Directory, or http(s) URL of a zipped YOLO export
	SoldierSource      string   `json:"soldierSource"`      // Directory, or http(s) URL of a zipped YOLO export
	Destination        string   `json:"destination"`        // Directory, or gs://bucket/prefix
	CacheDir           string   `json:"cacheDir"`           // Where downloaded sources are unpacked
	Seed               int64    `json:"seed"`               // Drives balancing and splitting
	TrainFraction      float64  `json:"trainFraction"`      // eg 0.8
	ValidFraction      float64  `json:"validFraction"`      // eg 0.1. Test receives the remainder.
	ClassNames         []string `json:"classNames"`         // Index = class id
	SoldierSourceClass int      `json:"soldierSourceClass"` // Class id of soldiers in their own source
	SkipExisting       bool     `json:"skipExisting"`       // Resume an interrupted build
}

func DefaultConfig() *Config {
	return &Config{
		Destination:   "merged_dataset",
		CacheDir:      "datasets_cache",
		Seed:          dataset.DefaultSeed,
		TrainFraction: dataset.DefaultTrainFraction,
		ValidFraction: dataset.DefaultValidFraction,
		ClassNames:    slices.Clone(nn.ClassNames),
	}
}

// LoadConfig reads a JSON config file. Fields that are absent keep their default values.
func LoadConfig(filename string) (*Config, error) {
	if filename == "" {
		filename = DefaultFilename
	}
	raw, err := os.ReadFile(filename)
	if err != nil {
		return nil, fmt.Errorf("Error loading %v: %w", filename, err)
	}
	cfg := DefaultConfig()
	if err := json.Unmarshal(raw, cfg); err != nil {
		return nil, fmt.Errorf("Error loading as JSON %v: %w", filename, err)
	}
	return cfg, nil
}

// Validate returns an error wrapping dataset.ErrConfig if the config cannot produce a dataset
func (c *Config) Validate() error {
	if c.CivilianSource == "" || c.SoldierSource == "" {
		return fmt.Errorf("%w: civilianSource and soldierSource are required", dataset.ErrConfig)
	}
	if c.Destination == "" {
		return fmt.Errorf("%w: destination is required", dataset.ErrConfig)
	}
	if c.TrainFraction < 0 || c.ValidFraction < 0 || c.TrainFraction+c.ValidFraction > 1 {
		return fmt.Errorf("%w: invalid split fractions train=%v valid=%v", dataset.ErrConfig, c.TrainFraction, c.ValidFraction)
	}
	if len(c.ClassNames) <= int(nn.ClassSoldier) {
		return fmt.Errorf("%w: classNames must name at least %v classes", dataset.ErrConfig, int(nn.ClassSoldier)+1)
	}
	if c.SoldierSourceClass < 0 {
		return fmt.Errorf("%w: soldierSourceClass must not be negative", dataset.ErrConfig)
	}
	return nil
}

func (c *Config) BuildOptions() dataset.BuildOptions {
	return dataset.BuildOptions{
		CivilianSource:     c.CivilianSource,
		SoldierSource:      c.SoldierSource,
		CacheDir:           c.CacheDir,
		Seed:               c.Seed,
		TrainFraction:      c.TrainFraction,
		ValidFraction:      c.ValidFraction,
		ClassNames:         c.ClassNames,
		SoldierSourceClass: c.SoldierSourceClass,
		SkipExisting:       c.SkipExisting,
	}
}
