// Package enrich orchestrates the dossier pipeline: seven fixed steps that
// assemble a commercial-property-owner dossier from the provider clients,
// under quota enforcement and resilience wrapping.
package enrich

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/sells-group/dossier-cli/internal/fusion"
	"github.com/sells-group/dossier-cli/internal/model"
	"github.com/sells-group/dossier-cli/internal/ownership"
	"github.com/sells-group/dossier-cli/internal/provider"
	"github.com/sells-group/dossier-cli/internal/resilience"
	"github.com/sells-group/dossier-cli/internal/usage"
	"github.com/sells-group/dossier-cli/pkg/anthropic"
	"github.com/sells-group/dossier-cli/pkg/attom"
	"github.com/sells-group/dossier-cli/pkg/endato"
	"github.com/sells-group/dossier-cli/pkg/pdl"
	"github.com/sells-group/dossier-cli/pkg/smarty"
)

const (
	defaultSummaryModel      = "claude-sonnet-4-5-20250929"
	defaultMaxChainDepth     = 3
	defaultMaxContactTargets = 3
)

// Sink persists completed runs. Implementations live in internal/store; a
// nil sink disables persistence.
type Sink interface {
	SaveRun(ctx context.Context, state *model.PipelineState, status model.RunStatus) error
	SaveDossier(ctx context.Context, d *model.Dossier) error
}

// Result is everything one enrichment run produces.
type Result struct {
	RunID     string                 `json:"run_id"`
	Status    model.RunStatus        `json:"status"`
	State     *model.PipelineState   `json:"state"`
	Dossier   *model.Dossier         `json:"dossier"`
	Providers []model.ProviderReport `json:"providers"`
}

// Pipeline runs the seven enrichment steps for one subject at a time. It is
// safe for concurrent Runs; all shared state lives in the caller, ledger,
// and health tracker.
type Pipeline struct {
	address  smarty.Client
	property attom.Client
	contacts endato.Client
	people   pdl.Client
	resolver *ownership.Resolver
	ai       anthropic.Client

	fuser    *fusion.Engine
	enforcer *usage.Enforcer
	caller   *resilience.Caller
	sink     Sink

	summaryModel      string
	maxChainDepth     int
	maxContactTargets int
	runBudget         time.Duration
}

// New creates a Pipeline with all dependencies. Any client may be nil; the
// corresponding step is then skipped and the run degrades to partial.
func New(
	addressClient smarty.Client,
	propertyClient attom.Client,
	contactsClient endato.Client,
	peopleClient pdl.Client,
	resolver *ownership.Resolver,
	aiClient anthropic.Client,
	fuser *fusion.Engine,
	enforcer *usage.Enforcer,
	caller *resilience.Caller,
	sink Sink,
) *Pipeline {
	if fuser == nil {
		fuser = fusion.NewEngine(fusion.DefaultThresholds())
	}
	if enforcer == nil {
		registry := provider.NewRegistry(provider.DefaultDescriptors(), nil)
		enforcer = usage.NewEnforcer(usage.NewLedger(usage.NewMemoryStore(), registry), nil)
	}
	if caller == nil {
		caller = resilience.NewCaller(nil, nil, resilience.DefaultRetryConfig(), 0)
	}
	return &Pipeline{
		address:           addressClient,
		property:          propertyClient,
		contacts:          contactsClient,
		people:            peopleClient,
		resolver:          resolver,
		ai:                aiClient,
		fuser:             fuser,
		enforcer:          enforcer,
		caller:            caller,
		sink:              sink,
		summaryModel:      defaultSummaryModel,
		maxChainDepth:     defaultMaxChainDepth,
		maxContactTargets: defaultMaxContactTargets,
	}
}

// WithSummaryModel overrides the model used for the AI summary step.
func (p *Pipeline) WithSummaryModel(model string) *Pipeline {
	if model != "" {
		p.summaryModel = model
	}
	return p
}

// WithChainDepth overrides the maximum ownership chain depth.
func (p *Pipeline) WithChainDepth(depth int) *Pipeline {
	if depth > 0 {
		p.maxChainDepth = depth
	}
	return p
}

// WithRunBudget caps the wall-clock time of a single run. Steps that have
// not started when the budget expires are skipped and the run reports
// partial. Zero disables the cap.
func (p *Pipeline) WithRunBudget(d time.Duration) *Pipeline {
	p.runBudget = d
	return p
}

// Run executes the full pipeline for a single subject. Step failures are
// recorded and never halt the run; Run itself only fails when the subject
// is unusable.
func (p *Pipeline) Run(ctx context.Context, subject model.Subject) *Result {
	runID := uuid.NewString()
	state := model.NewPipelineState(runID, subject)
	log := zap.L().With(
		zap.String("run_id", runID),
		zap.String("subject", subject.Name),
	)
	log.Info("enrich: starting run")

	if p.runBudget > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, p.runBudget)
		defer cancel()
	}

	dossier := &model.Dossier{
		SubjectID: subject.ID,
		Subject:   subject,
		CreatedAt: time.Now().UTC(),
	}
	trace := newRunTrace()

	trackStep := func(name model.StepName, fn func(ctx context.Context) ([]string, error)) {
		step := state.Step(name)
		if ctx.Err() != nil {
			step.Status = model.StepSkipped
			step.Error = "run budget exhausted"
			log.Warn("enrich: step skipped", zap.String("step", string(name)))
			return
		}

		step.Status = model.StepRunning
		start := time.Now()
		providers, err := fn(ctx)
		step.DurationMS = time.Since(start).Milliseconds()
		step.Providers = providers

		if errors.Is(err, errNotConfigured) {
			step.Status = model.StepSkipped
			step.Error = err.Error()
			log.Info("enrich: step skipped",
				zap.String("step", string(name)),
				zap.String("reason", err.Error()),
			)
			return
		}
		if err != nil {
			step.Status = model.StepError
			step.Error = err.Error()
			log.Error("enrich: step failed",
				zap.String("step", string(name)),
				zap.Int64("duration_ms", step.DurationMS),
				zap.Error(err),
			)
			return
		}
		step.Status = model.StepDone
		log.Info("enrich: step done",
			zap.String("step", string(name)),
			zap.Int64("duration_ms", step.DurationMS),
		)
	}

	trackStep(model.StepAddress, func(ctx context.Context) ([]string, error) {
		return p.runAddress(ctx, subject, dossier, trace)
	})
	trackStep(model.StepProperty, func(ctx context.Context) ([]string, error) {
		return p.runProperty(ctx, subject, dossier, trace)
	})
	trackStep(model.StepOwnership, func(ctx context.Context) ([]string, error) {
		return p.runOwnership(ctx, subject, dossier, trace)
	})
	trackStep(model.StepPrincipal, func(ctx context.Context) ([]string, error) {
		return p.runPrincipals(ctx, subject, dossier, trace)
	})
	trackStep(model.StepContacts, func(ctx context.Context) ([]string, error) {
		return p.runContacts(ctx, subject, dossier, trace)
	})
	trackStep(model.StepFranchise, func(ctx context.Context) ([]string, error) {
		return p.runFranchise(ctx, subject, dossier)
	})
	trackStep(model.StepSummary, func(ctx context.Context) ([]string, error) {
		return p.runSummary(ctx, subject, dossier, trace)
	})

	dossier.SourcesUsed = trace.sources()
	dossier.Score = dossierScore(dossier)

	status := state.OverallStatus()
	result := &Result{
		RunID:     runID,
		Status:    status,
		State:     state,
		Dossier:   dossier,
		Providers: trace.reports(p.caller.Health),
	}

	if p.sink != nil {
		// Persistence is best-effort; the caller already has the result.
		persistCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 10*time.Second)
		defer cancel()
		if err := p.sink.SaveDossier(persistCtx, dossier); err != nil {
			log.Warn("enrich: failed to persist dossier", zap.Error(err))
		}
		if err := p.sink.SaveRun(persistCtx, state, status); err != nil {
			log.Warn("enrich: failed to persist run", zap.Error(err))
		}
	}

	log.Info("enrich: run finished",
		zap.String("status", string(status)),
		zap.Float64("score", dossier.Score),
	)
	return result
}

// dossierScore is a 0-100 composite over whichever sections the run filled.
// Missing sections simply do not contribute.
func dossierScore(d *model.Dossier) float64 {
	var sum float64
	var n int
	add := func(v float64) {
		sum += v
		n++
	}

	if d.Address != nil {
		add(d.Address.MatchScore * 100)
	}
	if d.Property != nil {
		add(d.Property.Confidence)
	}
	if len(d.Phones) > 0 {
		add(d.Phones[0].Confidence)
	}
	if len(d.Emails) > 0 {
		add(d.Emails[0].Confidence)
	}
	if len(d.Principals) > 0 {
		best := 0.0
		for _, pr := range d.Principals {
			if pr.Confidence > best {
				best = pr.Confidence
			}
		}
		add(best)
	}

	if n == 0 {
		return 0
	}
	return sum / float64(n)
}
