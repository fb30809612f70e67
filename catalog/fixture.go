package catalog

import (
	"context"
	"fmt"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/Sayiza/orapgsync/metadata"
)

// Snapshot is the YAML form of a metadata extract. The extract command
// writes it; transform jobs can run from it with no Oracle connection.
type Snapshot struct {
	Schemas          []string                   `yaml:"schemas"`
	Tables           []metadata.Table           `yaml:"tables"`
	Synonyms         []metadata.Synonym         `yaml:"synonyms,omitempty"`
	PackageFunctions []metadata.PackageFunction `yaml:"package_functions,omitempty"`
	TypeMethods      []metadata.TypeMethod      `yaml:"type_methods,omitempty"`
}

// FixtureSource serves a Snapshot through the ingestion interface.
type FixtureSource struct {
	snap Snapshot
}

// LoadFixture reads a YAML snapshot file.
func LoadFixture(path string) (*FixtureSource, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read fixture: %w", err)
	}
	return ParseFixture(data)
}

// ParseFixture decodes snapshot YAML.
func ParseFixture(data []byte) (*FixtureSource, error) {
	var snap Snapshot
	if err := yaml.Unmarshal(data, &snap); err != nil {
		return nil, fmt.Errorf("decode fixture: %w", err)
	}
	return &FixtureSource{snap: snap}, nil
}

// Schemas returns the snapshot's schema list.
func (f *FixtureSource) Schemas() []string { return f.snap.Schemas }

func (f *FixtureSource) ListTables(ctx context.Context, schemas []string) ([]metadata.Table, error) {
	return filterBySchema(f.snap.Tables, schemas, func(t metadata.Table) string { return t.Schema }), nil
}

func (f *FixtureSource) ListSynonyms(ctx context.Context, schemas []string) ([]metadata.Synonym, error) {
	with := append(append([]string{}, schemas...), "public", "PUBLIC")
	return filterBySchema(f.snap.Synonyms, with, func(s metadata.Synonym) string { return s.Owner }), nil
}

func (f *FixtureSource) ListPackageFunctions(ctx context.Context, schemas []string) ([]metadata.PackageFunction, error) {
	return filterBySchema(f.snap.PackageFunctions, schemas, func(p metadata.PackageFunction) string { return p.Schema }), nil
}

func (f *FixtureSource) ListTypeMethods(ctx context.Context, schemas []string) ([]metadata.TypeMethod, error) {
	return filterBySchema(f.snap.TypeMethods, schemas, func(m metadata.TypeMethod) string { return m.Schema }), nil
}

func filterBySchema[T any](items []T, schemas []string, key func(T) string) []T {
	want := make(map[string]bool, len(schemas))
	for _, s := range schemas {
		want[lower(s)] = true
	}
	var out []T
	for _, item := range items {
		if want[lower(key(item))] {
			out = append(out, item)
		}
	}
	return out
}

func lower(s string) string {
	b := []byte(s)
	for i := range b {
		if b[i] >= 'A' && b[i] <= 'Z' {
			b[i] += 'a' - 'A'
		}
	}
	return string(b)
}

// WriteSnapshot serializes a snapshot to YAML.
func WriteSnapshot(path string, snap Snapshot) error {
	data, err := yaml.Marshal(snap)
	if err != nil {
		return fmt.Errorf("encode snapshot: %w", err)
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("write snapshot: %w", err)
	}
	return nil
}
