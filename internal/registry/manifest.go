package registry

import (
	"context"
	"fmt"
	"os"

	"github.com/mvp-joe/static-reflection/internal/reflection"
	"gopkg.in/yaml.v3"
)

// ManifestClass describes one class in a manifest.
type ManifestClass struct {
	Kind       reflection.Kind `yaml:"kind"`
	Parents    []string        `yaml:"parents"`
	Interfaces []string        `yaml:"interfaces"`
}

type manifestFile struct {
	Classes map[string]ManifestClass `yaml:"classes"`
}

// ManifestLookup answers ancestor queries from YAML manifests, for classes
// that have no project source such as PHP built-ins.
//
//	classes:
//	  ArrayIterator:
//	    kind: class
//	    interfaces: [SeekableIterator, Countable]
type ManifestLookup struct {
	classes map[string]ManifestClass
}

// LoadManifests reads and merges manifest files. Later files override
// classes defined by earlier ones.
func LoadManifests(paths ...string) (*ManifestLookup, error) {
	m := &ManifestLookup{classes: map[string]ManifestClass{}}
	for _, path := range paths {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("failed to read manifest %s: %w", path, err)
		}
		if err := m.add(data); err != nil {
			return nil, fmt.Errorf("failed to parse manifest %s: %w", path, err)
		}
	}
	return m, nil
}

// ParseManifest builds a lookup from manifest YAML.
func ParseManifest(data []byte) (*ManifestLookup, error) {
	m := &ManifestLookup{classes: map[string]ManifestClass{}}
	if err := m.add(data); err != nil {
		return nil, err
	}
	return m, nil
}

func (m *ManifestLookup) add(data []byte) error {
	var file manifestFile
	if err := yaml.Unmarshal(data, &file); err != nil {
		return err
	}
	for name, class := range file.Classes {
		if class.Kind == reflection.KindUnknown {
			class.Kind = reflection.KindClass
		}
		m.classes[trimName(name)] = class
	}
	return nil
}

// Len returns the number of classes described.
func (m *ManifestLookup) Len() int {
	return len(m.classes)
}

// Class returns the manifest entry for name.
func (m *ManifestLookup) Class(name string) (ManifestClass, bool) {
	class, ok := m.classes[trimName(name)]
	return class, ok
}

func (m *ManifestLookup) Parents(ctx context.Context, name string) ([]string, error) {
	class, ok := m.Class(name)
	if !ok {
		return nil, reflection.ErrUnknownClass
	}
	return append([]string(nil), class.Parents...), nil
}

func (m *ManifestLookup) Interfaces(ctx context.Context, name string) ([]string, error) {
	class, ok := m.Class(name)
	if !ok {
		return nil, reflection.ErrUnknownClass
	}
	return append([]string(nil), class.Interfaces...), nil
}
