package dataset

import (
	"context"
	"fmt"
	"slices"

	"github.com/cyclopcam/fieldsight/pkg/nn"
	"github.com/cyclopcam/fieldsight/pkg/storage"
	"github.com/cyclopcam/logs"
)

// BuildOptions describe one merge of a civilian source and a soldier source
type BuildOptions struct {
	CivilianSource     string   // Local directory, or http(s) URL of a zipped export
	SoldierSource      string   // Local directory, or http(s) URL of a zipped export
	CacheDir           string   // Where remote sources are unpacked
	Seed               int64    // Seed of the one RNG that drives balancing and splitting
	TrainFraction      float64  // eg 0.8
	ValidFraction      float64  // eg 0.1. Test receives the remainder.
	ClassNames         []string // Written into the manifest. Index = class id.
	SoldierSourceClass int      // The class id that soldiers carry in their own source (remapped to nn.ClassSoldier)
	SkipExisting       bool     // Resume an interrupted run
}

func NewBuildOptions() BuildOptions {
	return BuildOptions{
		Seed:               DefaultSeed,
		TrainFraction:      DefaultTrainFraction,
		ValidFraction:      DefaultValidFraction,
		ClassNames:         slices.Clone(nn.ClassNames),
		SoldierSourceClass: 0,
	}
}

// BuildResult summarizes a completed build
type BuildResult struct {
	CivilianRaw  int // Number of valid civilian samples found
	SoldierRaw   int // Number of valid soldier samples found
	Splits       Splits
	Remap        RemapStats
	Materialized MaterializeStats
}

// Builder produces a balanced, split, two-class dataset from two raw sources
type Builder struct {
	Log     logs.Log
	Options BuildOptions
	Dest    storage.Storage
}

func NewBuilder(log logs.Log, options BuildOptions, dest storage.Storage) *Builder {
	return &Builder{
		Log:     log,
		Options: options,
		Dest:    dest,
	}
}

// Run executes the whole pipeline:
// collect both sources, balance them, remap the soldier labels, split,
// copy everything into Dest, and write the manifest.
// Note that the soldier remap rewrites the selected source annotation files in place.
func (b *Builder) Run(ctx context.Context) (*BuildResult, error) {
	opt := b.Options
	if len(opt.ClassNames) <= int(nn.ClassSoldier) {
		return nil, fmt.Errorf("%w: need at least %v class names", ErrConfig, int(nn.ClassSoldier)+1)
	}

	// One RNG for the whole run, shared by Balance and Split
	rng := NewRNG(opt.Seed)

	civilianDir, err := FetchSource(ctx, b.Log, opt.CivilianSource, opt.CacheDir)
	if err != nil {
		return nil, err
	}
	soldierDir, err := FetchSource(ctx, b.Log, opt.SoldierSource, opt.CacheDir)
	if err != nil {
		return nil, err
	}

	civilian, err := CollectPairsSlice(civilianDir)
	if err != nil {
		return nil, err
	}
	soldier, err := CollectPairsSlice(soldierDir)
	if err != nil {
		return nil, err
	}
	b.Log.Infof("Found %v civilian and %v soldier samples", len(civilian), len(soldier))

	civilianBal, soldierBal, err := Balance(civilian, soldier, rng)
	if err != nil {
		return nil, err
	}
	b.Log.Infof("Balanced to %v civilian and %v soldier samples", len(civilianBal), len(soldierBal))

	remap, err := RemapClass(soldierBal, opt.SoldierSourceClass, int(nn.ClassSoldier))
	if err != nil {
		return nil, err
	}
	if remap.Dropped != 0 {
		b.Log.Warnf("Dropped %v malformed lines while remapping soldier labels", remap.Dropped)
	}
	b.Log.Infof("Remapped %v soldier records from class %v to %v", remap.Remapped, opt.SoldierSourceClass, int(nn.ClassSoldier))

	combined := make([]Sample, 0, len(civilianBal)+len(soldierBal))
	combined = append(combined, civilianBal...)
	combined = append(combined, soldierBal...)
	splits, err := Split(combined, rng, opt.TrainFraction, opt.ValidFraction)
	if err != nil {
		return nil, err
	}

	materialized, err := Materialize(ctx, b.Log, splits, b.Dest, MaterializeOptions{SkipExisting: opt.SkipExisting})
	if err != nil {
		return nil, err
	}
	if err := WriteManifest(b.Dest, opt.ClassNames); err != nil {
		return nil, fmt.Errorf("Failed to write manifest: %w", err)
	}

	return &BuildResult{
		CivilianRaw:  len(civilian),
		SoldierRaw:   len(soldier),
		Splits:       splits,
		Remap:        remap,
		Materialized: materialized,
	}, nil
}
