package diagnosis

import "github.com/diagnose/diagnose/internal/domain/rules"

// EvidenceMap holds the aggregated certainty factor per diagnosis. A missing
// key means no rule concluding that diagnosis fired, which is different from
// a present entry of 0.
type EvidenceMap map[rules.DiagnosisCode]float64

// Combine merges two certainty factors for the same conclusion using parallel
// combination. For inputs in [0,1] the result is in [0,1], is symmetric and
// does not depend on grouping, so fold order never changes the final value.
func Combine(prev, next float64) float64 {
	return prev + next*(1-prev)
}

// Fires reports whether every condition of r is present in observed. A rule
// with no conditions always fires.
func Fires(r rules.Rule, observed map[rules.SymptomCode]struct{}) bool {
	for _, c := range r.Conditions {
		if _, ok := observed[c]; !ok {
			return false
		}
	}
	return true
}

// ObservedSet builds the lookup set used by Fires.
func ObservedSet(codes []rules.SymptomCode) map[rules.SymptomCode]struct{} {
	set := make(map[rules.SymptomCode]struct{}, len(codes))
	for _, c := range codes {
		set[c] = struct{}{}
	}
	return set
}

// Infer evaluates every rule once, in order, and aggregates the confidences
// of the rules that fire. It performs no I/O and never fails; callers own the
// returned map.
func Infer(observed []rules.SymptomCode, rs []rules.Rule) EvidenceMap {
	set := ObservedSet(observed)
	out := make(EvidenceMap)
	for _, r := range rs {
		if !Fires(r, set) {
			continue
		}
		if prev, ok := out[r.Conclusion]; ok {
			out[r.Conclusion] = Combine(prev, r.Confidence)
		} else {
			out[r.Conclusion] = r.Confidence
		}
	}
	return out
}
