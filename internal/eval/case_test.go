package eval

import (
	"os"
	"path/filepath"
	"testing"
)

const sampleCase = `name: Heart health check
query: how is my heart health?
expected_complexity: standard
expected_specialists:
  - cardiology
  - nutrition
`

func TestLoadCase(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "heart-check.yaml")
	if err := os.WriteFile(path, []byte(sampleCase), 0o644); err != nil {
		t.Fatal(err)
	}

	c, err := LoadCase(path)
	if err != nil {
		t.Fatalf("LoadCase: %v", err)
	}
	if c.ID != "heart-check" {
		t.Errorf("id = %q, want file-derived default", c.ID)
	}
	if c.ExpectedComplexity != "standard" || len(c.ExpectedSpecialists) != 2 {
		t.Errorf("case = %+v", c)
	}
}

func TestLoadCaseRejectsUnknownSpecialist(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "bad.yaml")
	body := "query: q\nexpected_specialists: [astrology]\n"
	if err := os.WriteFile(path, []byte(body), 0o644); err != nil {
		t.Fatal(err)
	}
	if _, err := LoadCase(path); err == nil {
		t.Fatal("expected error for unknown specialist")
	}
}

func TestLoadCaseRequiresQuery(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "empty.yaml")
	if err := os.WriteFile(path, []byte("name: no query\n"), 0o644); err != nil {
		t.Fatal(err)
	}
	if _, err := LoadCase(path); err == nil {
		t.Fatal("expected error for missing query")
	}
}

func TestLoadDirSortsAndFilters(t *testing.T) {
	dir := t.TempDir()
	files := map[string]string{
		"b-case.yaml": "query: second\n",
		"a-case.yml":  "query: first\n",
		"notes.txt":   "not a case",
	}
	for name, body := range files {
		if err := os.WriteFile(filepath.Join(dir, name), []byte(body), 0o644); err != nil {
			t.Fatal(err)
		}
	}

	cases, err := LoadDir(dir)
	if err != nil {
		t.Fatalf("LoadDir: %v", err)
	}
	if len(cases) != 2 {
		t.Fatalf("cases = %d, want 2", len(cases))
	}
	if cases[0].ID != "a-case" || cases[1].ID != "b-case" {
		t.Errorf("order = %s, %s", cases[0].ID, cases[1].ID)
	}
}

func TestLoadDirEmpty(t *testing.T) {
	if _, err := LoadDir(t.TempDir()); err == nil {
		t.Fatal("expected error for empty directory")
	}
}
