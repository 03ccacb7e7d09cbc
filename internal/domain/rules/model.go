package rules

// SymptomCode identifies an observable symptom. The engine treats it as opaque.
type SymptomCode string

// DiagnosisCode identifies a candidate diagnosis. Display names live in a
// separate catalog.
type DiagnosisCode string

// Rule concludes a diagnosis with a base certainty factor when all of its
// conditions are observed.
type Rule struct {
	Conditions []SymptomCode `json:"if" yaml:"if"`
	Conclusion DiagnosisCode `json:"then" yaml:"then"`
	Confidence float64       `json:"cf" yaml:"cf"`
}

// Unconditional reports whether the rule has no conditions and therefore
// fires for every observation, including an empty one.
func (r Rule) Unconditional() bool {
	return len(r.Conditions) == 0
}

// clone returns a deep copy so a loaded snapshot never aliases caller memory.
func (r Rule) clone() Rule {
	conds := make([]SymptomCode, len(r.Conditions))
	copy(conds, r.Conditions)
	return Rule{Conditions: conds, Conclusion: r.Conclusion, Confidence: r.Confidence}
}
