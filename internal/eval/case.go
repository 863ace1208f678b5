package eval

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/openrounds/rounds/pkg/models"
)

// TestCase is one expected-outcome fixture, loaded from YAML.
type TestCase struct {
	// ID identifies the case in reports. Defaults to the file name.
	ID string `yaml:"id"`
	// Name is a human-readable title.
	Name string `yaml:"name"`
	// Query is the user question to evaluate against.
	Query string `yaml:"query"`
	// ExpectedComplexity is the complexity the classifier should assign.
	ExpectedComplexity string `yaml:"expected_complexity"`
	// ExpectedSpecialists lists the specialists that should be selected.
	ExpectedSpecialists []string `yaml:"expected_specialists"`
	// Notes carries free-form author commentary, unused by scoring.
	Notes string `yaml:"notes,omitempty"`
}

// Validate checks the fields scoring depends on.
func (c *TestCase) Validate() error {
	if c.Query == "" {
		return fmt.Errorf("test case %s: query is required", c.ID)
	}
	if c.ExpectedComplexity != "" {
		if _, ok := models.ParseComplexity(c.ExpectedComplexity); !ok {
			return fmt.Errorf("test case %s: unknown complexity %q", c.ID, c.ExpectedComplexity)
		}
	}
	for _, s := range c.ExpectedSpecialists {
		if _, ok := models.ParseSpecialist(s); !ok {
			return fmt.Errorf("test case %s: unknown specialist %q", c.ID, s)
		}
	}
	return nil
}

// LoadCase reads one test case from a YAML file.
func LoadCase(path string) (*TestCase, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read test case: %w", err)
	}
	var c TestCase
	if err := yaml.Unmarshal(raw, &c); err != nil {
		return nil, fmt.Errorf("parse test case %s: %w", path, err)
	}
	if c.ID == "" {
		c.ID = strings.TrimSuffix(filepath.Base(path), filepath.Ext(path))
	}
	if err := c.Validate(); err != nil {
		return nil, err
	}
	return &c, nil
}

// LoadDir reads every .yaml/.yml file in a directory as a test case, sorted
// by file name for stable suite ordering.
func LoadDir(dir string) ([]*TestCase, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, fmt.Errorf("read case directory: %w", err)
	}

	var paths []string
	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		ext := filepath.Ext(entry.Name())
		if ext == ".yaml" || ext == ".yml" {
			paths = append(paths, filepath.Join(dir, entry.Name()))
		}
	}
	sort.Strings(paths)
	if len(paths) == 0 {
		return nil, fmt.Errorf("no test cases in %s", dir)
	}

	cases := make([]*TestCase, 0, len(paths))
	for _, path := range paths {
		c, err := LoadCase(path)
		if err != nil {
			return nil, err
		}
		cases = append(cases, c)
	}
	return cases, nil
}
