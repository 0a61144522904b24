package seed

import (
	"bytes"
	"context"
	_ "embed"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/brayobiz/campus-hub-sub000/internal/backend"
	"github.com/brayobiz/campus-hub-sub000/internal/cache"
	"github.com/brayobiz/campus-hub-sub000/internal/models"
	"gopkg.in/yaml.v3"
)

//go:embed campuses.yaml
var builtInCatalog []byte

// CampusEntry is one institution in a catalogue file.
type CampusEntry struct {
	Name      string `yaml:"name"`
	ShortName string `yaml:"short_name"`
	Location  string `yaml:"location"`
}

// Catalog is the YAML document listing the campuses users can pick from.
type Catalog struct {
	Campuses []CampusEntry `yaml:"campuses"`
}

// ParseCatalog decodes and checks a catalogue document.
func ParseCatalog(r io.Reader) (*Catalog, error) {
	var c Catalog
	dec := yaml.NewDecoder(r)
	dec.KnownFields(true)
	if err := dec.Decode(&c); err != nil {
		return nil, fmt.Errorf("decode campus catalog: %w", err)
	}
	seen := make(map[string]bool, len(c.Campuses))
	for i, entry := range c.Campuses {
		name := strings.TrimSpace(entry.Name)
		if name == "" || strings.TrimSpace(entry.ShortName) == "" {
			return nil, fmt.Errorf("campus catalog entry %d: name and short_name are required", i)
		}
		key := strings.ToLower(name)
		if seen[key] {
			return nil, fmt.Errorf("campus catalog: duplicate campus %q", name)
		}
		seen[key] = true
	}
	return &c, nil
}

// BuiltInCatalog returns the catalogue compiled into the binary.
func BuiltInCatalog() *Catalog {
	c, err := ParseCatalog(bytes.NewReader(builtInCatalog))
	if err != nil {
		panic(err)
	}
	return c
}

// LoadCatalog reads a catalogue file, or the built-in one when path is empty.
func LoadCatalog(path string) (*Catalog, error) {
	if path == "" {
		return BuiltInCatalog(), nil
	}
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open campus catalog: %w", err)
	}
	defer func() { _ = f.Close() }()
	return ParseCatalog(f)
}

// Campuses inserts every catalogue campus that is not stored yet, matched by
// name, and returns the full stored set in catalogue order.
func Campuses(ctx context.Context, tables backend.Tables, catalog *Catalog) ([]models.Campus, error) {
	var existing []models.Campus
	if err := tables.Select(ctx, backend.Query{Table: models.TableCampuses}, &existing); err != nil {
		return nil, fmt.Errorf("list campuses: %w", err)
	}
	byName := make(map[string]models.Campus, len(existing))
	for _, c := range existing {
		byName[strings.ToLower(c.Name)] = c
	}

	out := make([]models.Campus, 0, len(catalog.Campuses))
	inserted := 0
	for _, entry := range catalog.Campuses {
		if c, ok := byName[strings.ToLower(strings.TrimSpace(entry.Name))]; ok {
			out = append(out, c)
			continue
		}
		c := models.Campus{
			Name:      strings.TrimSpace(entry.Name),
			ShortName: strings.TrimSpace(entry.ShortName),
			Location:  strings.TrimSpace(entry.Location),
		}
		if err := tables.Insert(ctx, models.TableCampuses, &c); err != nil {
			return nil, fmt.Errorf("seed campus %s: %w", entry.ShortName, err)
		}
		inserted++
		out = append(out, c)
	}
	if inserted > 0 {
		cache.InvalidateCampuses(ctx)
	}
	return out, nil
}
