package diagnosis

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/diagnose/diagnose/internal/domain/rules"
)

// NoDiagnosisMessage is rendered when no rule fired.
const NoDiagnosisMessage = "No diagnosis matches the selected symptoms."

// Entry is one rendered row of an EvidenceMap.
type Entry struct {
	Code       rules.DiagnosisCode `json:"code"`
	Name       string              `json:"name"`
	Confidence float64             `json:"confidence"`
}

// Line renders the entry as "<name>: <percent>%".
func (e Entry) Line() string {
	return fmt.Sprintf("%s: %.2f%%", e.Name, e.Confidence*100)
}

// Rank converts an EvidenceMap into entries ordered by confidence, highest
// first, with the diagnosis code breaking ties.
func Rank(em EvidenceMap, catalog *Catalog) []Entry {
	out := make([]Entry, 0, len(em))
	for code, cf := range em {
		out = append(out, Entry{Code: code, Name: catalog.DiagnosisName(code), Confidence: cf})
	}
	sort.SliceStable(out, func(i, j int) bool {
		if out[i].Confidence != out[j].Confidence {
			return out[i].Confidence > out[j].Confidence
		}
		return out[i].Code < out[j].Code
	})
	return out
}

// Format renders entries one per line. An empty slice renders as
// NoDiagnosisMessage.
func Format(entries []Entry) string {
	if len(entries) == 0 {
		return NoDiagnosisMessage
	}
	var b strings.Builder
	for _, e := range entries {
		b.WriteString(e.Line())
		b.WriteByte('\n')
	}
	return strings.TrimRight(b.String(), " \t\r\n")
}

// WriteReport exports a result to path. Paths ending in .json receive the
// full result as JSON; anything else receives the rendered text.
func WriteReport(path string, res *Result) error {
	if dir := filepath.Dir(path); dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create report dir: %w", err)
		}
	}

	var data []byte
	if strings.EqualFold(filepath.Ext(path), ".json") {
		b, err := json.MarshalIndent(res, "", "  ")
		if err != nil {
			return fmt.Errorf("marshal report: %w", err)
		}
		data = append(b, '\n')
	} else {
		data = []byte(res.Summary + "\n")
	}

	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("write report: %w", err)
	}
	return nil
}
