// Package registry maps namespaced identifiers to numeric protocol IDs and back.
package registry

import (
	"errors"
	"fmt"
	"os"
	"sort"
	"strings"

	"gopkg.in/yaml.v3"
)

var ErrDuplicateID = errors.New("registry: duplicate id")

// Lookup resolves identifiers to IDs and back. Implementations must be safe for concurrent reads.
type Lookup interface {
	IDFor(identifier string) (int32, bool)
	IdentifierFor(id int32) (string, bool)
}

// Table is an immutable two-way Lookup.
type Table struct {
	byName map[string]int32
	byID   map[int32]string
}

func NewTable(entries map[string]int32) (*Table, error) {
	t := &Table{
		byName: make(map[string]int32, len(entries)),
		byID:   make(map[int32]string, len(entries)),
	}
	for _, name := range sortedKeys(entries) {
		id := entries[name]
		if other, ok := t.byID[id]; ok {
			return nil, fmt.Errorf("%w: %d used by %s and %s", ErrDuplicateID, id, other, name)
		}
		t.byName[name] = id
		t.byID[id] = name
	}
	return t, nil
}

func (t *Table) IDFor(identifier string) (int32, bool) {
	id, ok := t.byName[identifier]
	return id, ok
}

func (t *Table) IdentifierFor(id int32) (string, bool) {
	name, ok := t.byID[id]
	return name, ok
}

func (t *Table) Len() int {
	return len(t.byName)
}

// Set is a set of known identifiers, used for block entity types.
type Set map[string]struct{}

func NewSet(ids []string) Set {
	s := make(Set, len(ids))
	for _, id := range ids {
		s[id] = struct{}{}
	}
	return s
}

func (s Set) Has(id string) bool {
	_, ok := s[id]
	return ok
}

// StateKey renders a block state as name[k=v,...] with properties sorted by key,
// or just name when there are none.
func StateKey(name string, properties map[string]string) string {
	if len(properties) == 0 {
		return name
	}
	keys := make([]string, 0, len(properties))
	for k := range properties {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	var b strings.Builder
	b.WriteString(name)
	b.WriteByte('[')
	for i, k := range keys {
		if i > 0 {
			b.WriteByte(',')
		}
		b.WriteString(k)
		b.WriteByte('=')
		b.WriteString(properties[k])
	}
	b.WriteByte(']')
	return b.String()
}

// File is the YAML form of a set of registries.
type File struct {
	Blocks        map[string]int32 `yaml:"blocks"`
	Biomes        map[string]int32 `yaml:"biomes"`
	BlockEntities []string         `yaml:"block_entities"`
}

type Registries struct {
	Blocks        *Table
	Biomes        *Table
	BlockEntities Set
}

func (f File) Build() (*Registries, error) {
	blocks, err := NewTable(f.Blocks)
	if err != nil {
		return nil, fmt.Errorf("blocks: %w", err)
	}
	biomes, err := NewTable(f.Biomes)
	if err != nil {
		return nil, fmt.Errorf("biomes: %w", err)
	}
	return &Registries{
		Blocks:        blocks,
		Biomes:        biomes,
		BlockEntities: NewSet(f.BlockEntities),
	}, nil
}

// Load reads a registry YAML file.
func Load(path string) (*Registries, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	var f File
	if err := yaml.Unmarshal(raw, &f); err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return f.Build()
}

func sortedKeys(m map[string]int32) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
