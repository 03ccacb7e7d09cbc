package diagnosis

import (
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/diagnose/diagnose/internal/domain/rules"
)

func TestRank_OrdersByConfidenceThenCode(t *testing.T) {
	em := EvidenceMap{"P03": 0.4, "P01": 0.9, "P02": 0.4}
	got := Rank(em, nil)
	want := []string{"P01", "P02", "P03"}
	if len(got) != len(want) {
		t.Fatalf("expected %d entries, got %d", len(want), len(got))
	}
	for i, code := range want {
		if string(got[i].Code) != code {
			t.Errorf("position %d: expected %s, got %s", i, code, got[i].Code)
		}
	}
}

func TestEntry_Line(t *testing.T) {
	tests := []struct {
		entry Entry
		want  string
	}{
		{Entry{Name: "Influenza", Confidence: 0.9}, "Influenza: 90.00%"},
		{Entry{Name: "P02", Confidence: 0.8}, "P02: 80.00%"},
		{Entry{Name: "Cold", Confidence: 0.12345}, "Cold: 12.35%"},
		{Entry{Name: "X", Confidence: 0}, "X: 0.00%"},
	}
	for _, tc := range tests {
		if got := tc.entry.Line(); got != tc.want {
			t.Errorf("expected %q, got %q", tc.want, got)
		}
	}
}

func TestFormat_UsesCatalogNames(t *testing.T) {
	catalog := &Catalog{Diagnoses: map[rules.DiagnosisCode]string{"P01": "Influenza"}}
	out := Format(Rank(EvidenceMap{"P01": 0.9, "P02": 0.5}, catalog))
	if out != "Influenza: 90.00%\nP02: 50.00%" {
		t.Errorf("unexpected output %q", out)
	}
	if strings.HasSuffix(out, "\n") {
		t.Error("expected trailing newline trimmed")
	}
}

func TestFormat_Empty(t *testing.T) {
	if got := Format(nil); got != NoDiagnosisMessage {
		t.Errorf("expected %q, got %q", NoDiagnosisMessage, got)
	}
}

func TestWriteReport_Text(t *testing.T) {
	path := filepath.Join(t.TempDir(), "out", "report.txt")
	res := &Result{Summary: "P01: 90.00%"}
	if err := WriteReport(path, res); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	b, err := os.ReadFile(path)
	if err != nil {
		t.Fatal(err)
	}
	if string(b) != "P01: 90.00%\n" {
		t.Errorf("unexpected report %q", string(b))
	}
}

func TestWriteReport_JSON(t *testing.T) {
	path := filepath.Join(t.TempDir(), "report.json")
	res := &Result{
		Evidence: EvidenceMap{"P01": 0.9},
		Ranked:   []Entry{{Code: "P01", Name: "P01", Confidence: 0.9}},
		Summary:  "P01: 90.00%",
	}
	if err := WriteReport(path, res); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	b, err := os.ReadFile(path)
	if err != nil {
		t.Fatal(err)
	}
	var got Result
	if err := json.Unmarshal(b, &got); err != nil {
		t.Fatalf("report is not JSON: %v", err)
	}
	if got.Evidence["P01"] != 0.9 || got.Summary != res.Summary {
		t.Errorf("unexpected report contents: %+v", got)
	}
}
