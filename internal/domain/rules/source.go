package rules

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"
)

// Source loads an ordered rule sequence. Implementations return a
// *NotFoundError when the backing source is absent and a *FormatError when it
// cannot be parsed.
type Source interface {
	Load(ctx context.Context) ([]Rule, error)
	// Name identifies the source in logs and errors.
	Name() string
}

// Format selects the encoding of a declarative rule document.
type Format string

const (
	FormatJSON Format = "json"
	FormatYAML Format = "yaml"
)

// ParseFormat accepts "json", "yaml" or "yml", case-insensitively.
func ParseFormat(s string) (Format, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "json":
		return FormatJSON, nil
	case "yaml", "yml":
		return FormatYAML, nil
	default:
		return "", fmt.Errorf("unsupported rule format %q", s)
	}
}

// FormatFromPath infers the format from the file extension, defaulting to JSON.
func FormatFromPath(path string) Format {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		return FormatYAML
	default:
		return FormatJSON
	}
}

// record mirrors one declarative rule. Pointer fields distinguish a missing
// key from a zero value.
type record struct {
	If   *[]string `json:"if" yaml:"if"`
	Then *string   `json:"then" yaml:"then"`
	CF   *float64  `json:"cf" yaml:"cf"`
}

// Decode parses a rule document. source names the document in errors.
func Decode(source string, data []byte, format Format) ([]Rule, error) {
	if len(bytes.TrimSpace(data)) == 0 {
		return nil, &FormatError{Source: source, Index: -1, Err: errors.New("document is empty")}
	}
	switch format {
	case FormatYAML:
		return decodeYAML(source, data)
	case FormatJSON, "":
		return decodeJSON(source, data)
	default:
		return nil, fmt.Errorf("unsupported rule format %q", format)
	}
}

func decodeJSON(source string, data []byte) ([]Rule, error) {
	var raw []json.RawMessage
	if err := json.Unmarshal(data, &raw); err != nil {
		return nil, &FormatError{Source: source, Index: -1, Err: fmt.Errorf("expected a list of rules: %w", err)}
	}
	if raw == nil {
		return nil, &FormatError{Source: source, Index: -1, Err: errors.New("expected a list of rules, got null")}
	}

	out := make([]Rule, 0, len(raw))
	for i, msg := range raw {
		var rec record
		if err := json.Unmarshal(msg, &rec); err != nil {
			return nil, &FormatError{Source: source, Index: i, Err: err}
		}
		r, err := rec.rule(source, i)
		if err != nil {
			return nil, err
		}
		out = append(out, r)
	}
	return out, nil
}

func decodeYAML(source string, data []byte) ([]Rule, error) {
	var doc yaml.Node
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return nil, &FormatError{Source: source, Index: -1, Err: err}
	}
	if doc.Kind != yaml.DocumentNode || len(doc.Content) == 0 || doc.Content[0].Kind != yaml.SequenceNode {
		return nil, &FormatError{Source: source, Index: -1, Err: errors.New("expected a list of rules")}
	}

	items := doc.Content[0].Content
	out := make([]Rule, 0, len(items))
	for i, item := range items {
		var rec record
		if err := item.Decode(&rec); err != nil {
			return nil, &FormatError{Source: source, Index: i, Err: err}
		}
		r, err := rec.rule(source, i)
		if err != nil {
			return nil, err
		}
		out = append(out, r)
	}
	return out, nil
}

func (rec record) rule(source string, index int) (Rule, error) {
	if rec.If == nil {
		return Rule{}, &FormatError{Source: source, Index: index, Field: "if", Err: errors.New("is required")}
	}
	if rec.Then == nil {
		return Rule{}, &FormatError{Source: source, Index: index, Field: "then", Err: errors.New("is required")}
	}
	if rec.CF == nil {
		return Rule{}, &FormatError{Source: source, Index: index, Field: "cf", Err: errors.New("is required")}
	}
	return newRule(source, index, *rec.If, *rec.Then, *rec.CF)
}

// newRule validates decoded values and trims surrounding whitespace from
// codes, matching how observed symptoms are normalized. Shared by the file
// and database sources.
func newRule(source string, index int, conditions []string, conclusion string, cf float64) (Rule, error) {
	conclusion = strings.TrimSpace(conclusion)
	if conclusion == "" {
		return Rule{}, &FormatError{Source: source, Index: index, Field: "then", Err: errors.New("must not be empty")}
	}
	// Written as a negated range so NaN is rejected as well.
	if !(cf >= 0 && cf <= 1) {
		return Rule{}, &FormatError{Source: source, Index: index, Field: "cf", Err: fmt.Errorf("%v is outside [0,1]", cf)}
	}

	conds := make([]SymptomCode, 0, len(conditions))
	for _, c := range conditions {
		c = strings.TrimSpace(c)
		if c == "" {
			return Rule{}, &FormatError{Source: source, Index: index, Field: "if", Err: errors.New("contains an empty symptom code")}
		}
		conds = append(conds, SymptomCode(c))
	}
	return Rule{Conditions: conds, Conclusion: DiagnosisCode(conclusion), Confidence: cf}, nil
}
