package diagnosis

import (
	"context"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/diagnose/diagnose/internal/domain/rules"
)

// RuleStore is the subset of *rules.Store the service depends on.
type RuleStore interface {
	Snapshot() *rules.Snapshot
	Reload(ctx context.Context) (*rules.Snapshot, error)
}

// Result is the outcome of one inference call. Nothing about it is persisted.
type Result struct {
	ID           uuid.UUID           `json:"id"`
	Symptoms     []rules.SymptomCode `json:"symptoms"`
	Evidence     EvidenceMap         `json:"evidence"`
	Ranked       []Entry             `json:"ranked"`
	Summary      string              `json:"summary"`
	RuleCount    int                 `json:"rule_count"`
	RulesVersion uint64              `json:"rules_version"`
	GeneratedAt  time.Time           `json:"generated_at"`
}

type Service struct {
	store   RuleStore
	catalog *Catalog
	logger  zerolog.Logger
	onInfer []func(*Result)
}

type ServiceOption func(*Service)

// WithInferenceHook registers fn to observe every completed inference.
func WithInferenceHook(fn func(*Result)) ServiceOption {
	return func(s *Service) { s.onInfer = append(s.onInfer, fn) }
}

func NewService(store RuleStore, catalog *Catalog, logger zerolog.Logger, opts ...ServiceOption) *Service {
	if catalog == nil {
		catalog = &Catalog{}
	}
	s := &Service{
		store:   store,
		catalog: catalog,
		logger:  logger.With().Str("component", "diagnosis").Logger(),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Diagnose runs inference over the current rule snapshot. Codes are trimmed,
// blanks dropped and duplicates removed; an empty selection is valid.
func (s *Service) Diagnose(ctx context.Context, symptoms []string) (*Result, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	observed := NormalizeSymptoms(symptoms)
	snap := s.store.Snapshot()
	em := Infer(observed, snap.Rules)
	ranked := Rank(em, s.catalog)

	res := &Result{
		ID:           uuid.New(),
		Symptoms:     observed,
		Evidence:     em,
		Ranked:       ranked,
		Summary:      Format(ranked),
		RuleCount:    len(snap.Rules),
		RulesVersion: snap.Version,
		GeneratedAt:  time.Now().UTC(),
	}

	s.logger.Debug().
		Str("result_id", res.ID.String()).
		Int("symptoms", len(observed)).
		Int("diagnoses", len(em)).
		Uint64("rules_version", snap.Version).
		Msg("inference complete")
	for _, fn := range s.onInfer {
		fn(res)
	}
	return res, nil
}

// Rules returns a page of the current rule snapshot and its total size.
func (s *Service) Rules(limit, offset int) ([]rules.Rule, int) {
	all := s.store.Snapshot().Rules
	total := len(all)
	if offset < 0 {
		offset = 0
	}
	if limit <= 0 {
		limit = total
	}
	if offset >= total {
		return []rules.Rule{}, total
	}
	end := offset + limit
	if end > total {
		end = total
	}
	return all[offset:end], total
}

// Reload re-reads the rule source. Errors are the store's errors unmodified.
func (s *Service) Reload(ctx context.Context) (*rules.Snapshot, error) {
	return s.store.Reload(ctx)
}

// Snapshot returns the rule generation currently served.
func (s *Service) Snapshot() *rules.Snapshot {
	return s.store.Snapshot()
}

// Symptoms returns the selectable symptom checklist.
func (s *Service) Symptoms() []Symptom {
	return s.catalog.SymptomList()
}

// NormalizeSymptoms trims codes, drops blanks and removes duplicates while
// keeping first-seen order.
func NormalizeSymptoms(in []string) []rules.SymptomCode {
	out := make([]rules.SymptomCode, 0, len(in))
	seen := make(map[string]struct{}, len(in))
	for _, raw := range in {
		code := strings.TrimSpace(raw)
		if code == "" {
			continue
		}
		if _, dup := seen[code]; dup {
			continue
		}
		seen[code] = struct{}{}
		out = append(out, rules.SymptomCode(code))
	}
	return out
}
