package main

import (
	"context"
	"time"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/sells-group/dossier-cli/internal/config"
	"github.com/sells-group/dossier-cli/internal/enrich"
	"github.com/sells-group/dossier-cli/internal/fusion"
	"github.com/sells-group/dossier-cli/internal/ownership"
	"github.com/sells-group/dossier-cli/internal/provider"
	"github.com/sells-group/dossier-cli/internal/resilience"
	"github.com/sells-group/dossier-cli/internal/store"
	"github.com/sells-group/dossier-cli/internal/usage"
	anthropicpkg "github.com/sells-group/dossier-cli/pkg/anthropic"
	"github.com/sells-group/dossier-cli/pkg/attom"
	"github.com/sells-group/dossier-cli/pkg/endato"
	"github.com/sells-group/dossier-cli/pkg/opencorp"
	"github.com/sells-group/dossier-cli/pkg/pdl"
	"github.com/sells-group/dossier-cli/pkg/perplexity"
	"github.com/sells-group/dossier-cli/pkg/smarty"
)

// ratesFile optionally replaces the built-in provider rate table.
var ratesFile string

func init() {
	rootCmd.PersistentFlags().StringVar(&ratesFile, "rates", "", "path to a provider rate table YAML (default: built-in)")
}

// pipelineEnv bundles everything a command needs to run enrichments.
type pipelineEnv struct {
	Pipeline *enrich.Pipeline
	Store    store.Store
	Ledger   *usage.Ledger
	Registry *provider.Registry
	Journal  *usage.Journal

	stopJournal context.CancelFunc
}

func (e *pipelineEnv) Close() {
	if e.Journal != nil {
		e.Journal.Flush()
		e.stopJournal()
		e.Journal.Wait()
	}
	if e.Store != nil {
		_ = e.Store.Close()
	}
}

func initStore(ctx context.Context) (store.Store, error) {
	switch cfg.Store.Driver {
	case "sqlite":
		dsn := cfg.Store.DatabaseURL
		if dsn == "" {
			dsn = "dossier.db"
		}
		return store.NewSQLite(dsn)
	case "postgres":
		return store.NewPostgres(ctx, cfg.Store.DatabaseURL, nil)
	default:
		return nil, eris.Errorf("unsupported store driver: %s", cfg.Store.Driver)
	}
}

func buildRegistry() (*provider.Registry, error) {
	descriptors := provider.DefaultDescriptors()
	if ratesFile != "" {
		loaded, err := provider.LoadDescriptors(ratesFile)
		if err != nil {
			return nil, err
		}
		descriptors = loaded
	}
	return provider.NewRegistry(descriptors, cfg.Providers), nil
}

func buildCaller(rc config.ResilienceConfig) *resilience.Caller {
	limiter := resilience.NewLimiter(resilience.LimiterConfig{
		MaxInFlight:       int64(rc.MaxInFlight),
		RequestsPerSecond: rc.RequestsPerSecond,
	})
	health := resilience.NewHealthTracker(resilience.HealthConfig{
		WindowSize:          rc.HealthWindowSize,
		StaleFailureRate:    rc.StaleFailureRate,
		FallbackConsecutive: rc.FallbackConsecutive,
		RecoveryAge:         time.Duration(rc.RecoveryAgeSecs) * time.Second,
	})
	retry := resilience.RetryConfig{
		MaxAttempts:    rc.MaxAttempts,
		InitialBackoff: time.Duration(rc.InitialBackoffMs) * time.Millisecond,
		MaxBackoff:     time.Duration(rc.MaxBackoffMs) * time.Millisecond,
		Multiplier:     rc.BackoffMultiplier,
		JitterFraction: rc.JitterFraction,
	}
	return resilience.NewCaller(limiter, health, retry, time.Duration(rc.CallTimeoutSecs)*time.Second)
}

// providerClients holds one client per external provider; a nil field means
// that provider has no credentials and its pipeline steps are skipped.
type providerClients struct {
	address  smarty.Client
	property attom.Client
	registry opencorp.Client
	contacts endato.Client
	people   pdl.Client
	research perplexity.Client
	ai       anthropicpkg.Client
}

// buildClients constructs a client for every provider with credentials.
// Unconfigured providers stay nil rather than issuing doomed calls that would
// surface as step errors and poison the health tracker.
func buildClients(c *config.Config) providerClients {
	var pc providerClients
	if c.Smarty.AuthID != "" && c.Smarty.AuthToken != "" {
		pc.address = smarty.NewClient(c.Smarty.AuthID, c.Smarty.AuthToken, smarty.WithBaseURL(c.Smarty.BaseURL))
	}
	if c.Attom.Key != "" {
		pc.property = attom.NewClient(c.Attom.Key, attom.WithBaseURL(c.Attom.BaseURL))
	}
	if c.OpenCorp.Key != "" {
		pc.registry = opencorp.NewClient(c.OpenCorp.Key, opencorp.WithBaseURL(c.OpenCorp.BaseURL))
	}
	if c.Endato.KeyName != "" && c.Endato.KeyValue != "" {
		pc.contacts = endato.NewClient(c.Endato.KeyName, c.Endato.KeyValue, endato.WithBaseURL(c.Endato.BaseURL))
	}
	if c.PDL.Key != "" {
		pc.people = pdl.NewClient(c.PDL.Key, pdl.WithBaseURL(c.PDL.BaseURL))
	}
	if c.Perplexity.Key != "" {
		pc.research = perplexity.NewClient(c.Perplexity.Key,
			perplexity.WithBaseURL(c.Perplexity.BaseURL),
			perplexity.WithModel(c.Perplexity.Model),
		)
	}
	if c.Anthropic.Key != "" {
		pc.ai = anthropicpkg.NewClient(c.Anthropic.Key)
	}
	return pc
}

// initPipeline assembles the full enrichment environment: store, quota
// layers, resilience knobs, provider clients, and the pipeline itself.
func initPipeline(ctx context.Context) (*pipelineEnv, error) {
	st, err := initStore(ctx)
	if err != nil {
		return nil, err
	}
	if err := st.Migrate(ctx); err != nil {
		st.Close()
		return nil, eris.Wrap(err, "migrate store")
	}

	registry, err := buildRegistry()
	if err != nil {
		st.Close()
		return nil, err
	}

	// Seed in-memory counters from the last persisted snapshot so a restart
	// does not forget today's spend.
	counters := usage.NewMemoryStore()
	if snap, takenAt, err := st.LatestUsageSnapshot(ctx); err != nil {
		zap.L().Warn("usage snapshot restore failed", zap.Error(err))
	} else if snap != nil {
		for name, c := range snap {
			c := c
			counters.Update(name, func(cur *usage.Counter) { *cur = c })
		}
		zap.L().Info("usage counters restored",
			zap.Int("providers", len(snap)),
			zap.Time("taken_at", takenAt),
		)
	}

	ledger := usage.NewLedger(counters, registry)

	var accounts *usage.Accounts
	if cfg.Quotas.FirmMonthly > 0 || cfg.Quotas.UserMonthly > 0 {
		accounts = usage.NewAccounts(cfg.Quotas.FirmMonthly, cfg.Quotas.UserMonthly)
	}
	enforcer := usage.NewEnforcer(ledger, accounts)

	journalCtx, stopJournal := context.WithCancel(context.Background())
	journal := usage.NewJournal(ledger, st)
	journal.Start(journalCtx)

	caller := buildCaller(cfg.Resilience)
	fuser := fusion.NewEngine(fusion.Thresholds{
		HighMatch:       cfg.Fusion.HighMatch,
		AcceptableMatch: cfg.Fusion.AcceptableMatch,
	})

	clients := buildClients(cfg)
	var resolver *ownership.Resolver
	if clients.registry != nil {
		resolver = ownership.NewResolver(clients.registry, clients.research, caller)
	}

	p := enrich.New(
		clients.address, clients.property, clients.contacts, clients.people,
		resolver, clients.ai,
		fuser, enforcer, caller, st,
	).
		WithSummaryModel(cfg.Anthropic.SummaryModel).
		WithChainDepth(cfg.Pipeline.MaxChainDepth).
		WithRunBudget(time.Duration(cfg.Pipeline.RunBudgetSecs) * time.Second)

	return &pipelineEnv{
		Pipeline:    p,
		Store:       st,
		Ledger:      ledger,
		Registry:    registry,
		Journal:     journal,
		stopJournal: stopJournal,
	}, nil
}
