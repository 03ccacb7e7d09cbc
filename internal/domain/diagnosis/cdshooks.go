package diagnosis

import (
	"context"
	"fmt"
	"strings"

	"github.com/google/uuid"

	"github.com/diagnose/diagnose/internal/platform/auth"
	"github.com/diagnose/diagnose/internal/platform/cdshooks"
)

const (
	HookServiceID = "symptom-diagnosis"
	hookName      = "patient-view"
	hookContext   = "symptoms"
	cardSource    = "Certainty-factor diagnosis"
)

// IndicatorFor maps an aggregated confidence to a card indicator.
func IndicatorFor(cf float64) string {
	switch {
	case cf >= 0.8:
		return cdshooks.IndicatorCritical
	case cf >= 0.5:
		return cdshooks.IndicatorWarning
	default:
		return cdshooks.IndicatorInfo
	}
}

// RegisterHooks exposes the service as a CDS Hooks service reading symptom
// codes from context.symptoms.
func (s *Service) RegisterHooks(h *cdshooks.Handler) {
	h.RegisterService(cdshooks.Service{
		Hook:        hookName,
		Title:       "Symptom Diagnosis",
		Description: "Scores candidate diagnoses from observed symptom codes using certainty factors",
		ID:          HookServiceID,
	}, s.handleHook)

	h.RegisterFeedbackHandler(HookServiceID, func(ctx context.Context, id string, fb cdshooks.Feedback) error {
		s.logger.Info().
			Str("service", id).
			Str("client", auth.SubjectFromContext(ctx)).
			Str("card", fb.Card).
			Str("outcome", fb.Outcome).
			Msg("card feedback")
		return nil
	})
}

func (s *Service) handleHook(ctx context.Context, req cdshooks.Request) (*cdshooks.Response, error) {
	codes, err := req.StringList(hookContext)
	if err != nil {
		return nil, err
	}
	res, err := s.Diagnose(ctx, codes)
	if err != nil {
		return nil, err
	}

	cards := make([]cdshooks.Card, 0, len(res.Ranked))
	for _, e := range res.Ranked {
		cards = append(cards, cdshooks.Card{
			UUID:      uuid.NewString(),
			Summary:   e.Line(),
			Detail:    fmt.Sprintf("Observed symptoms: %s", s.symptomLabels(res)),
			Indicator: IndicatorFor(e.Confidence),
			Source:    cdshooks.Source{Label: cardSource},
		})
	}
	return &cdshooks.Response{Cards: cards}, nil
}

func (s *Service) symptomLabels(res *Result) string {
	if len(res.Symptoms) == 0 {
		return "none"
	}
	names := make([]string, 0, len(res.Symptoms))
	for _, c := range res.Symptoms {
		names = append(names, s.catalog.SymptomName(c))
	}
	return strings.Join(names, ", ")
}
