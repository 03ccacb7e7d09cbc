package diagnosis

import (
	"context"
	"errors"
	"io"
	"math"
	"testing"
	"time"

	"github.com/rs/zerolog"

	"github.com/diagnose/diagnose/internal/domain/rules"
)

type stubStore struct {
	snap      *rules.Snapshot
	reloadErr error
	reloads   int
}

func (s *stubStore) Snapshot() *rules.Snapshot { return s.snap }

func (s *stubStore) Reload(ctx context.Context) (*rules.Snapshot, error) {
	s.reloads++
	if s.reloadErr != nil {
		return nil, s.reloadErr
	}
	next := *s.snap
	next.Version++
	s.snap = &next
	return s.snap, nil
}

func sampleRules() []rules.Rule {
	return []rules.Rule{
		rule("P01", 0.9, "G05"),
		rule("P02", 0.6, "G01"),
		rule("P02", 0.5, "G02"),
		rule("P03", 0.3, "G01", "G03"),
	}
}

func newTestService() (*Service, *stubStore) {
	store := &stubStore{snap: &rules.Snapshot{
		Rules:    sampleRules(),
		Source:   "test",
		Version:  1,
		LoadedAt: time.Now(),
	}}
	catalog := &Catalog{
		Diagnoses: map[rules.DiagnosisCode]string{"P01": "Influenza"},
		Symptoms:  map[rules.SymptomCode]string{"G01": "Fever", "G02": "Cough", "G05": "Headache"},
	}
	return NewService(store, catalog, zerolog.New(io.Discard)), store
}

func TestService_Diagnose(t *testing.T) {
	svc, _ := newTestService()

	res, err := svc.Diagnose(context.Background(), []string{"G01", " G02 ", "G01", ""})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(res.Symptoms) != 2 {
		t.Errorf("expected 2 normalized symptoms, got %v", res.Symptoms)
	}
	if math.Abs(res.Evidence["P02"]-0.8) > epsilon {
		t.Errorf("expected P02 0.8, got %v", res.Evidence["P02"])
	}
	if res.Summary != "P02: 80.00%" {
		t.Errorf("unexpected summary %q", res.Summary)
	}
	if res.RuleCount != 4 || res.RulesVersion != 1 {
		t.Errorf("unexpected rule metadata: count=%d version=%d", res.RuleCount, res.RulesVersion)
	}
	if res.ID.String() == "" || res.GeneratedAt.IsZero() {
		t.Error("expected id and timestamp to be set")
	}
}

func TestService_Diagnose_NoMatch(t *testing.T) {
	svc, _ := newTestService()

	res, err := svc.Diagnose(context.Background(), nil)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(res.Evidence) != 0 || len(res.Ranked) != 0 {
		t.Errorf("expected no evidence, got %v", res.Evidence)
	}
	if res.Summary != NoDiagnosisMessage {
		t.Errorf("expected %q, got %q", NoDiagnosisMessage, res.Summary)
	}
}

func TestService_Diagnose_CancelledContext(t *testing.T) {
	svc, _ := newTestService()
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	if _, err := svc.Diagnose(ctx, []string{"G05"}); !errors.Is(err, context.Canceled) {
		t.Errorf("expected context.Canceled, got %v", err)
	}
}

func TestService_Rules_Paging(t *testing.T) {
	svc, _ := newTestService()

	tests := []struct {
		name          string
		limit, offset int
		want          int
	}{
		{"first page", 2, 0, 2},
		{"last partial page", 3, 3, 1},
		{"past end", 10, 10, 0},
		{"negative offset", 2, -1, 2},
		{"no limit", 0, 0, 4},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			items, total := svc.Rules(tc.limit, tc.offset)
			if total != 4 {
				t.Errorf("expected total 4, got %d", total)
			}
			if len(items) != tc.want {
				t.Errorf("expected %d items, got %d", tc.want, len(items))
			}
		})
	}
}

func TestService_Reload(t *testing.T) {
	svc, store := newTestService()

	snap, err := svc.Reload(context.Background())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if snap.Version != 2 || svc.Snapshot().Version != 2 {
		t.Errorf("expected version 2, got %d", snap.Version)
	}

	want := &rules.NotFoundError{Source: "rules.json", Err: errors.New("missing")}
	store.reloadErr = want
	_, err = svc.Reload(context.Background())
	var nf *rules.NotFoundError
	if !errors.As(err, &nf) || nf != want {
		t.Errorf("expected store error passed through, got %v", err)
	}
}

func TestService_Symptoms(t *testing.T) {
	svc, _ := newTestService()
	list := svc.Symptoms()
	if len(list) != 3 || list[0].Code != "G01" || list[0].Name != "Fever" {
		t.Errorf("unexpected symptom list %+v", list)
	}
}

func TestNewService_NilCatalog(t *testing.T) {
	store := &stubStore{snap: &rules.Snapshot{Rules: sampleRules()}}
	svc := NewService(store, nil, zerolog.New(io.Discard))
	res, err := svc.Diagnose(context.Background(), []string{"G05"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if res.Summary != "P01: 90.00%" {
		t.Errorf("expected raw code label, got %q", res.Summary)
	}
}

func TestNormalizeSymptoms(t *testing.T) {
	got := NormalizeSymptoms([]string{" G02", "G01", "", "  ", "G02"})
	if len(got) != 2 || got[0] != "G02" || got[1] != "G01" {
		t.Errorf("unexpected normalized codes %v", got)
	}
	if got := NormalizeSymptoms(nil); got == nil || len(got) != 0 {
		t.Errorf("expected empty non-nil slice, got %v", got)
	}
}

func TestService_InferenceHook(t *testing.T) {
	store := &stubStore{snap: &rules.Snapshot{Rules: sampleRules(), Version: 3}}
	var seen []*Result
	svc := NewService(store, nil, zerolog.New(io.Discard), WithInferenceHook(func(r *Result) {
		seen = append(seen, r)
	}))

	res, err := svc.Diagnose(context.Background(), []string{"G05"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(seen) != 1 || seen[0] != res {
		t.Errorf("expected hook to receive the result once, got %v", seen)
	}
}

func TestService_Diagnose_PaddedCodesInRuleFile(t *testing.T) {
	rs, err := rules.Decode("rules.json", []byte(`[{"if": [" G01"], "then": "P01 ", "cf": 0.5}]`), rules.FormatJSON)
	if err != nil {
		t.Fatal(err)
	}
	store := &stubStore{snap: &rules.Snapshot{Rules: rs, Version: 1}}
	svc := NewService(store, nil, zerolog.New(io.Discard))

	for _, input := range [][]string{{"G01"}, {" G01"}} {
		res, err := svc.Diagnose(context.Background(), input)
		if err != nil {
			t.Fatal(err)
		}
		if cf, ok := res.Evidence["P01"]; !ok || cf != 0.5 {
			t.Errorf("input %q: expected P01=0.5, got %v", input, res.Evidence)
		}
	}
}
