package diagnosis

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/diagnose/diagnose/internal/domain/rules"
)

func TestLoadCatalog_EmptyPath(t *testing.T) {
	c, err := LoadCatalog("")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got := c.DiagnosisName("P01"); got != "P01" {
		t.Errorf("expected raw code fallback, got %q", got)
	}
	if len(c.SymptomList()) != 0 {
		t.Error("expected empty symptom list")
	}
}

func TestLoadCatalog_JSON(t *testing.T) {
	path := filepath.Join(t.TempDir(), "catalog.json")
	data := `{"diagnoses":{"P01":"Influenza"},"symptoms":{"G02":"Cough","G01":"Fever"}}`
	if err := os.WriteFile(path, []byte(data), 0o644); err != nil {
		t.Fatal(err)
	}

	c, err := LoadCatalog(path)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got := c.DiagnosisName("P01"); got != "Influenza" {
		t.Errorf("expected Influenza, got %q", got)
	}
	list := c.SymptomList()
	if len(list) != 2 || list[0].Code != "G01" || list[1].Code != "G02" {
		t.Errorf("expected symptoms sorted by code, got %+v", list)
	}
}

func TestLoadCatalog_YAML(t *testing.T) {
	path := filepath.Join(t.TempDir(), "catalog.yaml")
	data := "diagnoses:\n  P01: Influenza\nsymptoms:\n  G01: Fever\n"
	if err := os.WriteFile(path, []byte(data), 0o644); err != nil {
		t.Fatal(err)
	}

	c, err := LoadCatalog(path)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got := c.SymptomName("G01"); got != "Fever" {
		t.Errorf("expected Fever, got %q", got)
	}
}

func TestLoadCatalog_Missing(t *testing.T) {
	if _, err := LoadCatalog(filepath.Join(t.TempDir(), "nope.json")); err == nil {
		t.Error("expected error for missing catalog")
	}
}

func TestLoadCatalog_Malformed(t *testing.T) {
	path := filepath.Join(t.TempDir(), "catalog.json")
	if err := os.WriteFile(path, []byte(`{"diagnoses":`), 0o644); err != nil {
		t.Fatal(err)
	}
	if _, err := LoadCatalog(path); err == nil {
		t.Error("expected parse error")
	}
}

func TestCatalog_NilSafe(t *testing.T) {
	var c *Catalog
	if got := c.DiagnosisName("P01"); got != "P01" {
		t.Errorf("expected P01, got %q", got)
	}
	if got := c.SymptomName("G01"); got != "G01" {
		t.Errorf("expected G01, got %q", got)
	}
	if got := c.SymptomList(); got == nil || len(got) != 0 {
		t.Errorf("expected empty list, got %v", got)
	}
}

func TestCatalog_BlankNameFallsBack(t *testing.T) {
	c := &Catalog{Diagnoses: map[rules.DiagnosisCode]string{"P01": ""}}
	if got := c.DiagnosisName("P01"); got != "P01" {
		t.Errorf("expected fallback for blank label, got %q", got)
	}
}
