package dataset

import (
	"bytes"
	"fmt"

	"github.com/cyclopcam/fieldsight/pkg/storage"
	"gopkg.in/yaml.v3"
)

// ManifestName is the file name of the manifest, at the root of a merged dataset
const ManifestName = "data.yaml"

// Manifest points a training entry point at the split directories, and names the classes.
// Paths are relative to the directory that holds the manifest.
type Manifest struct {
	Train string         `yaml:"train"`
	Val   string         `yaml:"val"`
	Test  string         `yaml:"test"`
	NC    int            `yaml:"nc"`
	Names map[int]string `yaml:"names"`
}

// NewManifest creates the manifest of a merged dataset with the given class names.
// Class ids are the indices into classNames.
func NewManifest(classNames []string) *Manifest {
	m := &Manifest{
		Train: "./" + ImagesPath(SplitTrain),
		Val:   "./" + ImagesPath(SplitValid),
		Test:  "./" + ImagesPath(SplitTest),
		NC:    len(classNames),
		Names: map[int]string{},
	}
	for i, name := range classNames {
		m.Names[i] = name
	}
	return m
}

// ClassNames returns the class names ordered by id.
// Returns an error if the ids are not exactly 0..nc-1.
func (m *Manifest) ClassNames() ([]string, error) {
	names := make([]string, len(m.Names))
	for id, name := range m.Names {
		if id < 0 || id >= len(names) {
			return nil, fmt.Errorf("Manifest class id %v is out of range", id)
		}
		names[id] = name
	}
	if m.NC != 0 && m.NC != len(names) {
		return nil, fmt.Errorf("Manifest nc is %v, but %v names are listed", m.NC, len(names))
	}
	return names, nil
}

func (m *Manifest) Marshal() ([]byte, error) {
	var buf bytes.Buffer
	enc := yaml.NewEncoder(&buf)
	enc.SetIndent(2)
	if err := enc.Encode(m); err != nil {
		return nil, err
	}
	if err := enc.Close(); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

func ParseManifest(raw []byte) (*Manifest, error) {
	m := &Manifest{}
	if err := yaml.Unmarshal(raw, m); err != nil {
		return nil, fmt.Errorf("Failed to parse manifest: %w", err)
	}
	return m, nil
}

// WriteManifest writes data.yaml into the root of dest
func WriteManifest(dest storage.Storage, classNames []string) error {
	if len(classNames) == 0 {
		return fmt.Errorf("%w: no class names", ErrConfig)
	}
	raw, err := NewManifest(classNames).Marshal()
	if err != nil {
		return err
	}
	return storage.WriteFile(dest, ManifestName, bytes.NewReader(raw))
}

// ReadManifest reads data.yaml from the root of src
func ReadManifest(src storage.Storage) (*Manifest, error) {
	raw, err := storage.ReadFile(src, ManifestName)
	if err != nil {
		return nil, err
	}
	return ParseManifest(raw)
}
