package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/cyclopcam/fieldsight/pkg/dataset"
	"github.com/stretchr/testify/require"
)

func TestLoadConfig(t *testing.T) {
	fn := filepath.Join(t.TempDir(), "fieldsight.json")
	require.NoError(t, os.WriteFile(fn, []byte(`{
		"civilianSource": "raw/humandrone1",
		"soldierSource": "https://example.com/uav-mai.zip",
		"seed": 7,
		"skipExisting": true
	}`), 0644))

	cfg, err := LoadConfig(fn)
	require.NoError(t, err)
	require.NoError(t, cfg.Validate())
	require.Equal(t, "raw/humandrone1", cfg.CivilianSource)
	require.EqualValues(t, 7, cfg.Seed)
	require.True(t, cfg.SkipExisting)
	// Defaults survive
	require.Equal(t, 0.8, cfg.TrainFraction)
	require.Equal(t, "merged_dataset", cfg.Destination)
	require.Equal(t, []string{"civilian", "soldier"}, cfg.ClassNames)

	opt := cfg.BuildOptions()
	require.Equal(t, cfg.SoldierSource, opt.SoldierSource)
	require.EqualValues(t, 7, opt.Seed)
	require.True(t, opt.SkipExisting)
}

func TestLoadConfigErrors(t *testing.T) {
	dir := t.TempDir()
	_, err := LoadConfig(filepath.Join(dir, "missing.json"))
	require.Error(t, err)

	fn := filepath.Join(dir, "bad.json")
	require.NoError(t, os.WriteFile(fn, []byte("{"), 0644))
	_, err = LoadConfig(fn)
	require.Error(t, err)
}

func TestValidate(t *testing.T) {
	cfg := DefaultConfig()
	require.ErrorIs(t, cfg.Validate(), dataset.ErrConfig)

	cfg.CivilianSource = "a"
	cfg.SoldierSource = "b"
	require.NoError(t, cfg.Validate())

	cfg.TrainFraction = 0.95
	require.ErrorIs(t, cfg.Validate(), dataset.ErrConfig)

	cfg = DefaultConfig()
	cfg.CivilianSource = "a"
	cfg.SoldierSource = "b"
	cfg.ClassNames = []string{"civilian"}
	require.ErrorIs(t, cfg.Validate(), dataset.ErrConfig)
}

func TestDefaultConfigOwnsClassNames(t *testing.T) {
	cfg := DefaultConfig()
	cfg.ClassNames[1] = "combatant"
	require.Equal(t, "soldier", DefaultConfig().ClassNames[1])
}
