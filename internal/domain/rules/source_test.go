package rules

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"
)

func writeFile(t *testing.T, dir, name, content string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("write %s: %v", name, err)
	}
	return path
}

func TestDecode_JSON(t *testing.T) {
	data := `[
		{"if": ["G01", "G02"], "then": "P01", "cf": 0.6},
		{"if": ["G05"], "then": "P02", "cf": 0.9, "note": "ignored"}
	]`
	rs, err := Decode("rules.json", []byte(data), FormatJSON)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(rs) != 2 {
		t.Fatalf("expected 2 rules, got %d", len(rs))
	}
	if rs[0].Conclusion != "P01" || rs[0].Confidence != 0.6 {
		t.Errorf("unexpected first rule: %+v", rs[0])
	}
	if len(rs[0].Conditions) != 2 || rs[0].Conditions[1] != "G02" {
		t.Errorf("unexpected conditions: %v", rs[0].Conditions)
	}
	if rs[1].Conclusion != "P02" {
		t.Errorf("expected source order to be preserved, got %s second", rs[1].Conclusion)
	}
}

func TestDecode_YAML(t *testing.T) {
	data := `
- if: [G01]
  then: P01
  cf: 0.4
- if: []
  then: P09
  cf: 1
`
	rs, err := Decode("rules.yaml", []byte(data), FormatYAML)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(rs) != 2 {
		t.Fatalf("expected 2 rules, got %d", len(rs))
	}
	if !rs[1].Unconditional() {
		t.Error("expected second rule to be unconditional")
	}
	if rs[1].Confidence != 1 {
		t.Errorf("expected cf 1, got %v", rs[1].Confidence)
	}
}

func TestDecode_TrimsCodes(t *testing.T) {
	tests := []struct {
		name   string
		format Format
		data   string
	}{
		{"json", FormatJSON, `[{"if": [" G01", "G02\t"], "then": " P01 ", "cf": 0.5}]`},
		{"yaml", FormatYAML, "- if: [\" G01\", \"G02\\t\"]\n  then: \" P01 \"\n  cf: 0.5\n"},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			rs, err := Decode("rules", []byte(tc.data), tc.format)
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			r := rs[0]
			if r.Conclusion != "P01" {
				t.Errorf("expected trimmed conclusion, got %q", r.Conclusion)
			}
			if len(r.Conditions) != 2 || r.Conditions[0] != "G01" || r.Conditions[1] != "G02" {
				t.Errorf("expected trimmed conditions, got %q", r.Conditions)
			}
		})
	}
}

func TestDecode_EmptyList(t *testing.T) {
	for _, tc := range []struct {
		format Format
		data   string
	}{
		{FormatJSON, "[]"},
		{FormatYAML, "[]"},
	} {
		rs, err := Decode("rules", []byte(tc.data), tc.format)
		if err != nil {
			t.Fatalf("%s: unexpected error: %v", tc.format, err)
		}
		if len(rs) != 0 {
			t.Errorf("%s: expected no rules, got %d", tc.format, len(rs))
		}
	}
}

func TestDecode_FormatErrors(t *testing.T) {
	tests := []struct {
		name   string
		format Format
		data   string
		index  int
		field  string
	}{
		{"empty document", FormatJSON, "  ", -1, ""},
		{"json object instead of list", FormatJSON, `{"if":["A"],"then":"X","cf":0.5}`, -1, ""},
		{"json null", FormatJSON, `null`, -1, ""},
		{"json syntax", FormatJSON, `[{"if": ["A"]`, -1, ""},
		{"missing if", FormatJSON, `[{"then":"X","cf":0.5}]`, 0, "if"},
		{"missing then", FormatJSON, `[{"if":["A"],"cf":0.5}]`, 0, "then"},
		{"missing cf", FormatJSON, `[{"if":["A"],"then":"X"},{"if":[],"then":"Y"}]`, 0, "cf"},
		{"blank then", FormatJSON, `[{"if":["A"],"then":" ","cf":0.5}]`, 0, "then"},
		{"cf as string", FormatJSON, `[{"if":["A"],"then":"X","cf":0.1},{"if":["A"],"then":"X","cf":"0.5"}]`, 1, ""},
		{"cf above one", FormatJSON, `[{"if":["A"],"then":"X","cf":1.5}]`, 0, "cf"},
		{"cf negative", FormatJSON, `[{"if":["A"],"then":"X","cf":-0.1}]`, 0, "cf"},
		{"if not a list", FormatJSON, `[{"if":"A","then":"X","cf":0.5}]`, 0, ""},
		{"blank condition", FormatJSON, `[{"if":["A",""],"then":"X","cf":0.5}]`, 0, "if"},
		{"record not an object", FormatJSON, `[42]`, 0, ""},
		{"yaml mapping", FormatYAML, "rules:\n  - if: [A]\n", -1, ""},
		{"yaml missing cf", FormatYAML, "- if: [A]\n  then: X\n", 0, "cf"},
		{"yaml nan cf", FormatYAML, "- if: [A]\n  then: X\n  cf: .nan\n", 0, "cf"},
		{"yaml cf string", FormatYAML, "- if: [A]\n  then: X\n  cf: high\n", 0, ""},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			_, err := Decode("rules", []byte(tc.data), tc.format)
			var fe *FormatError
			if !errors.As(err, &fe) {
				t.Fatalf("expected *FormatError, got %T (%v)", err, err)
			}
			if fe.Index != tc.index {
				t.Errorf("expected index %d, got %d", tc.index, fe.Index)
			}
			if fe.Field != tc.field {
				t.Errorf("expected field %q, got %q", tc.field, fe.Field)
			}
			if fe.Error() == "" {
				t.Error("expected non-empty error message")
			}
		})
	}
}

func TestParseFormat(t *testing.T) {
	for in, want := range map[string]Format{"json": FormatJSON, "YAML": FormatYAML, " yml ": FormatYAML} {
		got, err := ParseFormat(in)
		if err != nil {
			t.Fatalf("ParseFormat(%q) error: %v", in, err)
		}
		if got != want {
			t.Errorf("ParseFormat(%q) = %q, want %q", in, got, want)
		}
	}
	if _, err := ParseFormat("toml"); err == nil {
		t.Error("expected error for unsupported format")
	}
}

func TestFormatFromPath(t *testing.T) {
	if FormatFromPath("rules.yml") != FormatYAML {
		t.Error("expected yaml for .yml")
	}
	if FormatFromPath("/etc/rules.YAML") != FormatYAML {
		t.Error("expected yaml for .YAML")
	}
	if FormatFromPath("rules.json") != FormatJSON {
		t.Error("expected json for .json")
	}
	if FormatFromPath("rules") != FormatJSON {
		t.Error("expected json default")
	}
}

func TestFileSource_Load(t *testing.T) {
	dir := t.TempDir()
	path := writeFile(t, dir, "rules.json", `[{"if":["G05"],"then":"P01","cf":0.9}]`)

	src := NewFileSource(path, "")
	rs, err := src.Load(context.Background())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(rs) != 1 || rs[0].Conclusion != "P01" {
		t.Errorf("unexpected rules: %+v", rs)
	}
	if src.Name() != path {
		t.Errorf("expected name %s, got %s", path, src.Name())
	}
}

func TestFileSource_YAMLByExtension(t *testing.T) {
	dir := t.TempDir()
	path := writeFile(t, dir, "rules.yaml", "- if: [G05]\n  then: P01\n  cf: 0.9\n")

	rs, err := NewFileSource(path, "").Load(context.Background())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(rs) != 1 {
		t.Fatalf("expected 1 rule, got %d", len(rs))
	}
}

func TestFileSource_NotFound(t *testing.T) {
	src := NewFileSource(filepath.Join(t.TempDir(), "missing.json"), "")
	_, err := src.Load(context.Background())
	var nf *NotFoundError
	if !errors.As(err, &nf) {
		t.Fatalf("expected *NotFoundError, got %T (%v)", err, err)
	}
	if !errors.Is(err, os.ErrNotExist) {
		t.Error("expected NotFoundError to unwrap to os.ErrNotExist")
	}
}

func TestFileSource_Malformed(t *testing.T) {
	dir := t.TempDir()
	path := writeFile(t, dir, "rules.json", `not json`)

	_, err := NewFileSource(path, "").Load(context.Background())
	var fe *FormatError
	if !errors.As(err, &fe) {
		t.Fatalf("expected *FormatError, got %T (%v)", err, err)
	}
}

func TestFileSource_CancelledContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := NewFileSource("rules.json", "").Load(ctx)
	if !errors.Is(err, context.Canceled) {
		t.Errorf("expected context.Canceled, got %v", err)
	}
}
