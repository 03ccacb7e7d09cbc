package cdshooks

// OperationOutcome is the error body returned by hook endpoints.
type OperationOutcome struct {
	ResourceType string  `json:"resourceType"`
	Issue        []Issue `json:"issue"`
}

type Issue struct {
	Severity    string `json:"severity"`
	Code        string `json:"code"`
	Diagnostics string `json:"diagnostics,omitempty"`
}

func newOutcome(severity, code, diagnostics string) *OperationOutcome {
	return &OperationOutcome{
		ResourceType: "OperationOutcome",
		Issue:        []Issue{{Severity: severity, Code: code, Diagnostics: diagnostics}},
	}
}

func errorOutcome(diagnostics string) *OperationOutcome {
	return newOutcome("error", "processing", diagnostics)
}

func notFoundOutcome(serviceID string) *OperationOutcome {
	return newOutcome("error", "not-found", "CDS service "+serviceID+" not found")
}

func internalErrorOutcome(diagnostics string) *OperationOutcome {
	return newOutcome("fatal", "exception", diagnostics)
}
