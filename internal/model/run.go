package model

import "time"

// StepStatus is the state of a single pipeline step.
type StepStatus string

const (
	StepIdle    StepStatus = "idle"
	StepRunning StepStatus = "running"
	StepDone    StepStatus = "done"
	StepError   StepStatus = "error"
	StepSkipped StepStatus = "skipped"
)

// Terminal reports whether the step has finished (successfully or not).
func (s StepStatus) Terminal() bool {
	return s == StepDone || s == StepError || s == StepSkipped
}

// StepName identifies one of the fixed pipeline steps.
type StepName string

const (
	StepAddress   StepName = "address_validation"
	StepProperty  StepName = "property_data"
	StepOwnership StepName = "ownership_chain"
	StepPrincipal StepName = "principal_discovery"
	StepContacts  StepName = "contact_enrichment"
	StepFranchise StepName = "franchise_detection"
	StepSummary   StepName = "ai_summary"
)

// StepOrder is the fixed execution order of the enrichment pipeline.
var StepOrder = []StepName{
	StepAddress,
	StepProperty,
	StepOwnership,
	StepPrincipal,
	StepContacts,
	StepFranchise,
	StepSummary,
}

// StepState tracks one step's progress within a run.
type StepState struct {
	Name       StepName   `json:"name"`
	Status     StepStatus `json:"status"`
	Error      string     `json:"error,omitempty"`
	Providers  []string   `json:"providers,omitempty"`
	DurationMS int64      `json:"duration_ms,omitempty"`
}

// RunStatus is the derived overall status of a pipeline run.
type RunStatus string

const (
	RunComplete RunStatus = "complete"
	RunFailed   RunStatus = "failed"
	RunPartial  RunStatus = "partial"
)

// PipelineState is the live progress record for one enrichment run.
type PipelineState struct {
	RunID     string      `json:"run_id"`
	Subject   Subject     `json:"subject"`
	Steps     []StepState `json:"steps"`
	StartedAt time.Time   `json:"started_at"`
}

// NewPipelineState creates a run state with every step idle, in the fixed
// pipeline order.
func NewPipelineState(runID string, subject Subject) *PipelineState {
	steps := make([]StepState, len(StepOrder))
	for i, name := range StepOrder {
		steps[i] = StepState{Name: name, Status: StepIdle}
	}
	return &PipelineState{
		RunID:     runID,
		Subject:   subject,
		Steps:     steps,
		StartedAt: time.Now().UTC(),
	}
}

// Step returns a pointer to the named step's state, or nil.
func (ps *PipelineState) Step(name StepName) *StepState {
	for i := range ps.Steps {
		if ps.Steps[i].Name == name {
			return &ps.Steps[i]
		}
	}
	return nil
}

// OverallStatus derives the run status from step states: complete iff every
// step is done, failed iff every step errored, partial otherwise.
func (ps *PipelineState) OverallStatus() RunStatus {
	allDone := true
	allError := true
	for _, s := range ps.Steps {
		if s.Status != StepDone {
			allDone = false
		}
		if s.Status != StepError {
			allError = false
		}
	}
	switch {
	case allDone:
		return RunComplete
	case allError:
		return RunFailed
	default:
		return RunPartial
	}
}

// ProviderOutcome labels how a single provider contributed to a run.
type ProviderOutcome string

const (
	OutcomeSuccess  ProviderOutcome = "success"
	OutcomeCached   ProviderOutcome = "cached"
	OutcomeError    ProviderOutcome = "error"
	OutcomeStale    ProviderOutcome = "stale"
	OutcomeFallback ProviderOutcome = "fallback"
)

// ProviderReport is the caller-facing per-provider status attached to every
// enrichment response.
type ProviderReport struct {
	Provider     string          `json:"provider"`
	Outcome      ProviderOutcome `json:"outcome"`
	Freshness    string          `json:"freshness"`
	RetryOffered bool            `json:"retry_offered,omitempty"`
	RetryStep    StepName        `json:"retry_step,omitempty"`
}
