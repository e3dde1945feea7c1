package testplan

import (
	"bytes"
	"errors"
	"fmt"
	"io/fs"
	"math"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"gopkg.in/yaml.v3"
)

// TestSet is a standardized, reusable bundle of test items with a fixed
// hour budget. Catalogues are declarative YAML so QA can maintain them
// without a deploy.
type TestSet struct {
	ID          string   `yaml:"id" json:"id"`
	Name        string   `yaml:"name" json:"name"`
	Description string   `yaml:"description,omitempty" json:"description,omitempty"`
	Hours       int      `yaml:"hours" json:"hours"`
	Items       []string `yaml:"items" json:"items"`
}

// Validate checks the template is usable for derivation.
func (s TestSet) Validate() error {
	if strings.TrimSpace(s.ID) == "" {
		return fmt.Errorf("testplan: test set id is required")
	}
	if strings.TrimSpace(s.Name) == "" {
		return fmt.Errorf("testplan: test set name is required for %s", s.ID)
	}
	if s.Hours <= 0 {
		return fmt.Errorf("testplan: test set hours must be > 0 for %s", s.ID)
	}
	if len(s.Items) == 0 {
		return fmt.Errorf("testplan: test set %s has no items", s.ID)
	}
	return nil
}

func (s TestSet) hoursPerItem() int {
	if len(s.Items) == 0 {
		return 0
	}
	return int(math.Ceil(float64(s.Hours) / float64(len(s.Items))))
}

// defaultCatalogueYAML seeds deployments that have not customized the
// template directory yet.
const defaultCatalogueYAML = `test_sets:
  - id: regression-core
    name: Core Regression Suite
    description: Smoke and regression coverage for release-blocking paths.
    hours: 8
    items:
      - Login and session handling
      - Critical CRUD flows
      - Permission boundaries
      - Error page rendering
  - id: api-contract
    name: API Contract Suite
    description: Request/response contract checks against the published API.
    hours: 6
    items:
      - Response envelope shape
      - Status code coverage
      - Pagination behavior
  - id: load-baseline
    name: Load Baseline Suite
    description: Baseline load and soak verification.
    hours: 10
    items:
      - Sustained load at expected peak
      - Burst traffic recovery
`

type catalogueFile struct {
	TestSets []TestSet `yaml:"test_sets"`
}

// Catalogue holds the available standardized test sets keyed by ID.
type Catalogue struct {
	sets map[string]TestSet
}

// DefaultCatalogue parses the embedded template catalogue.
func DefaultCatalogue() *Catalogue {
	cat, err := parseCatalogue([]byte(defaultCatalogueYAML))
	if err != nil {
		// The embedded catalogue is part of the build; a parse failure is
		// a programming error.
		panic(err)
	}
	return cat
}

// LoadCatalogue scans dir for *.yaml catalogue files. A missing or empty
// directory falls back to the embedded defaults.
func LoadCatalogue(dir string) (*Catalogue, error) {
	trimmed := strings.TrimSpace(dir)
	if trimmed == "" {
		return DefaultCatalogue(), nil
	}
	entries, err := os.ReadDir(trimmed)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return DefaultCatalogue(), nil
		}
		return nil, fmt.Errorf("testplan: read %s: %w", trimmed, err)
	}
	merged := &Catalogue{sets: map[string]TestSet{}}
	for _, entry := range entries {
		if entry.IsDir() || !isYAMLFile(entry.Name()) {
			continue
		}
		path := filepath.Join(trimmed, entry.Name())
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("testplan: read %s: %w", path, err)
		}
		cat, err := parseCatalogue(data)
		if err != nil {
			return nil, fmt.Errorf("testplan: %s: %w", path, err)
		}
		for id, set := range cat.sets {
			merged.sets[id] = set
		}
	}
	if len(merged.sets) == 0 {
		return DefaultCatalogue(), nil
	}
	return merged, nil
}

func parseCatalogue(data []byte) (*Catalogue, error) {
	if len(bytes.TrimSpace(data)) == 0 {
		return nil, fmt.Errorf("testplan: catalogue payload is empty")
	}
	var file catalogueFile
	if err := yaml.Unmarshal(data, &file); err != nil {
		return nil, fmt.Errorf("testplan: decode catalogue: %w", err)
	}
	cat := &Catalogue{sets: make(map[string]TestSet, len(file.TestSets))}
	for _, set := range file.TestSets {
		set.ID = strings.TrimSpace(set.ID)
		set.Name = strings.TrimSpace(set.Name)
		if err := set.Validate(); err != nil {
			return nil, err
		}
		cat.sets[set.ID] = set
	}
	return cat, nil
}

// Get resolves one test set by ID.
func (c *Catalogue) Get(id string) (TestSet, bool) {
	set, ok := c.sets[strings.TrimSpace(id)]
	return set, ok
}

// Resolve maps a list of set IDs to their templates, rejecting unknown IDs.
func (c *Catalogue) Resolve(ids []string) ([]TestSet, error) {
	out := make([]TestSet, 0, len(ids))
	for _, id := range ids {
		set, ok := c.Get(id)
		if !ok {
			return nil, fmt.Errorf("testplan: unknown test set %q", id)
		}
		out = append(out, set)
	}
	return out, nil
}

// All returns every template sorted by ID.
func (c *Catalogue) All() []TestSet {
	out := make([]TestSet, 0, len(c.sets))
	for _, set := range c.sets {
		out = append(out, set)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

func isYAMLFile(name string) bool {
	lower := strings.ToLower(name)
	return strings.HasSuffix(lower, ".yaml") || strings.HasSuffix(lower, ".yml")
}
