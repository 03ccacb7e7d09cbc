package diagnosis

import (
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"sort"

	"gopkg.in/yaml.v3"

	"github.com/diagnose/diagnose/internal/domain/rules"
)

// Catalog maps codes to display labels. It is read-only after loading.
type Catalog struct {
	Diagnoses map[rules.DiagnosisCode]string `json:"diagnoses" yaml:"diagnoses"`
	Symptoms  map[rules.SymptomCode]string   `json:"symptoms" yaml:"symptoms"`
}

// Symptom is one selectable entry of the symptom checklist.
type Symptom struct {
	Code rules.SymptomCode `json:"code"`
	Name string            `json:"name"`
}

// LoadCatalog reads a JSON or YAML catalog. An empty path yields an empty
// catalog, in which case every label falls back to its raw code.
func LoadCatalog(path string) (*Catalog, error) {
	c := &Catalog{}
	if path == "" {
		return c, nil
	}
	b, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, fmt.Errorf("catalog %s not found: %w", path, err)
		}
		return nil, fmt.Errorf("read catalog: %w", err)
	}

	switch rules.FormatFromPath(path) {
	case rules.FormatYAML:
		err = yaml.Unmarshal(b, c)
	default:
		err = json.Unmarshal(b, c)
	}
	if err != nil {
		return nil, fmt.Errorf("parse catalog %s: %w", path, err)
	}
	return c, nil
}

// DiagnosisName returns the display label for code, or the code itself when
// the catalog has no entry.
func (c *Catalog) DiagnosisName(code rules.DiagnosisCode) string {
	if c != nil {
		if name, ok := c.Diagnoses[code]; ok && name != "" {
			return name
		}
	}
	return string(code)
}

// SymptomName returns the display label for code, falling back to the code.
func (c *Catalog) SymptomName(code rules.SymptomCode) string {
	if c != nil {
		if name, ok := c.Symptoms[code]; ok && name != "" {
			return name
		}
	}
	return string(code)
}

// SymptomList returns the symptom checklist sorted by code.
func (c *Catalog) SymptomList() []Symptom {
	if c == nil {
		return []Symptom{}
	}
	out := make([]Symptom, 0, len(c.Symptoms))
	for code, name := range c.Symptoms {
		out = append(out, Symptom{Code: code, Name: name})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Code < out[j].Code })
	return out
}
