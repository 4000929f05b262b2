package ownership

import (
	"context"
	"strings"

	"go.uber.org/zap"

	"github.com/sells-group/dossier-cli/internal/model"
	"github.com/sells-group/dossier-cli/internal/resilience"
	"github.com/sells-group/dossier-cli/pkg/opencorp"
	"github.com/sells-group/dossier-cli/pkg/perplexity"
)

// commonJurisdictions are probed after the caller's hint: the registries
// where commercial property entities are most often incorporated.
var commonJurisdictions = []string{"us_de", "us_nv", "us_wy", "us_fl", "us_tx"}

// maxCrossJurisdictionProbes bounds how many alternate registrations the
// resolver inspects when the primary filing is privacy-protected.
const maxCrossJurisdictionProbes = 5

// Officer confidence by provenance. Registry filings outrank parent-filing
// merges, which outrank AI inference.
const (
	confRegistryOfficer = 85.0
	confParentOfficer   = 70.0
)

const registryProviderName = "opencorp"

// Resolver produces the best-known OwnershipResult for a single entity —
// one hop only; multi-hop chain assembly belongs to the pipeline.
type Resolver struct {
	registry opencorp.Client
	research perplexity.Client // nil when no AI fallback is configured
	caller   *resilience.Caller
}

// NewResolver creates a resolver. research may be nil to disable the AI
// fallback.
func NewResolver(registry opencorp.Client, research perplexity.Client, caller *resilience.Caller) *Resolver {
	if caller == nil {
		caller = resilience.NewCaller(nil, nil, resilience.DefaultRetryConfig(), 0)
	}
	return &Resolver{registry: registry, research: research, caller: caller}
}

// Resolve finds the entity's best-known officers/owners. Failures at any
// individual step degrade to an empty partial; Resolve always returns the
// best result accumulated so far, never an error.
func (r *Resolver) Resolve(ctx context.Context, entityName, jurisdictionHint string) *model.OwnershipResult {
	result := &model.OwnershipResult{Entity: entityName}
	log := zap.L().With(zap.String("entity", entityName))

	// Step 1: registry lookup, first jurisdiction with any match wins.
	company := r.findFiling(ctx, entityName, jurisdictionHint)
	if company == nil {
		log.Info("ownership: no registry filing found")
		return result
	}

	r.applyFiling(result, company, confRegistryOfficer)
	result.Sources = append(result.Sources, registryProviderName)

	// Step 3: single-hop branch following when the filing conceals or
	// lacks officers.
	if (result.IsPrivacyProtected || len(result.Officers) == 0) && company.Home != nil {
		r.followBranch(ctx, result, company.Home, log)
	}

	// Step 4: cross-jurisdiction retry for alternate registrations.
	if result.IsPrivacyProtected {
		r.crossJurisdictionRetry(ctx, result, entityName, company.Jurisdiction, log)
	}

	// Step 5: AI research fallback.
	if result.IsPrivacyProtected {
		r.aiFallback(ctx, result, log)
	}

	return result
}

// findFiling probes jurisdictions in fixed order — hint, common set, any —
// and returns the detail record of the first match.
func (r *Resolver) findFiling(ctx context.Context, entityName, hint string) *opencorp.Company {
	jurisdictions := searchOrder(hint)

	for _, j := range jurisdictions {
		jur := j
		matches := resilience.Fetch(ctx, r.caller, registryProviderName, "search", func(ctx context.Context) (*[]opencorp.Company, error) {
			out, err := r.registry.SearchCompanies(ctx, entityName, jur)
			if err != nil {
				return nil, err
			}
			return &out, nil
		})
		if matches == nil || len(*matches) == 0 {
			continue
		}

		// First match wins; there is deliberately no better-match ranking
		// beyond the fixed search order.
		first := (*matches)[0]
		detail := r.fetchDetail(ctx, first.Jurisdiction, first.RegistryID)
		if detail != nil {
			return detail
		}
		return &first
	}
	return nil
}

func searchOrder(hint string) []string {
	var out []string
	seen := map[string]bool{}
	add := func(j string) {
		if j != "" && !seen[j] {
			seen[j] = true
			out = append(out, j)
		}
	}
	add(hint)
	for _, j := range commonJurisdictions {
		add(j)
	}
	out = append(out, "") // unfiltered
	return out
}

func (r *Resolver) fetchDetail(ctx context.Context, jurisdiction, registryID string) *opencorp.Company {
	return resilience.Fetch(ctx, r.caller, registryProviderName, "detail", func(ctx context.Context) (*opencorp.Company, error) {
		return r.registry.GetCompany(ctx, jurisdiction, registryID)
	})
}

// applyFiling fills the result from a filing: filtered officers, privacy
// flag, agent/address context for the AI fallback.
func (r *Resolver) applyFiling(result *model.OwnershipResult, company *opencorp.Company, confidence float64) {
	result.Jurisdiction = company.Jurisdiction
	result.RegistryID = company.RegistryID
	result.RegisteredAddress = company.RegisteredAddress
	if company.RegisteredAgent != "" {
		result.RegisteredAgent = company.RegisteredAgent
	} else {
		for _, o := range company.Officers {
			if IsAgentRole(o.Position) {
				result.RegisteredAgent = o.Name
				break
			}
		}
	}

	// Entity-typed officers stay in the node list so chain assembly can
	// follow them; the privacy heuristic counts humans only.
	result.Officers = result.Officers[:0]
	humans := 0
	for _, o := range keepOfficers(company.Officers) {
		typ := ClassifyOwner(o.Name)
		if typ == model.OwnerIndividual {
			humans++
		}
		result.Officers = append(result.Officers, model.OwnershipNode{
			Name:         o.Name,
			Type:         typ,
			Jurisdiction: company.Jurisdiction,
			Role:         o.Position,
			Confidence:   confidence,
		})
	}
	result.IsPrivacyProtected = humans == 0
}

// keepOfficers drops registry plumbing (agents, corporate-service
// providers) but keeps entity officers for chain traversal.
func keepOfficers(officers []opencorp.Officer) []opencorp.Officer {
	var out []opencorp.Officer
	for _, o := range officers {
		if IsAgentRole(o.Position) || IsServiceProvider(o.Name) || strings.TrimSpace(o.Name) == "" {
			continue
		}
		out = append(out, o)
	}
	return out
}

// followBranch fetches the parent filing of a branch registration once and
// merges its officers in. One hop, never recursive.
func (r *Resolver) followBranch(ctx context.Context, result *model.OwnershipResult, home *opencorp.HomeCompany, log *zap.Logger) {
	result.Parent = &model.ParentRef{
		Name:         home.Name,
		Jurisdiction: home.Jurisdiction,
		RegistryID:   home.RegistryID,
	}

	parent := r.fetchDetail(ctx, home.Jurisdiction, home.RegistryID)
	if parent == nil {
		log.Info("ownership: parent filing unavailable", zap.String("parent", home.Name))
		return
	}

	for _, o := range keepOfficers(parent.Officers) {
		typ := ClassifyOwner(o.Name)
		if typ == model.OwnerIndividual {
			result.IsPrivacyProtected = false
		}
		result.Officers = append(result.Officers, model.OwnershipNode{
			Name:         o.Name,
			Type:         typ,
			Jurisdiction: parent.Jurisdiction,
			Role:         o.Position,
			Confidence:   confParentOfficer,
		})
	}
}

// crossJurisdictionRetry re-searches without a jurisdiction filter and
// probes a bounded number of alternate registrations for the first one with
// a non-protected officer list. First match wins, explicitly not best match.
func (r *Resolver) crossJurisdictionRetry(ctx context.Context, result *model.OwnershipResult, entityName, excludeJurisdiction string, log *zap.Logger) {
	matches := resilience.Fetch(ctx, r.caller, registryProviderName, "search", func(ctx context.Context) (*[]opencorp.Company, error) {
		out, err := r.registry.SearchCompanies(ctx, entityName, "")
		if err != nil {
			return nil, err
		}
		return &out, nil
	})
	if matches == nil {
		return
	}

	probed := 0
	for _, m := range *matches {
		if probed >= maxCrossJurisdictionProbes {
			break
		}
		if m.Jurisdiction == excludeJurisdiction && m.RegistryID == result.RegistryID {
			continue
		}
		probed++

		detail := r.fetchDetail(ctx, m.Jurisdiction, m.RegistryID)
		if detail == nil {
			continue
		}
		if len(FilterOfficers(detail.Officers)) == 0 {
			continue
		}

		log.Info("ownership: alternate registration with real officers",
			zap.String("jurisdiction", detail.Jurisdiction),
			zap.String("registry_id", detail.RegistryID),
		)
		r.applyFiling(result, detail, confRegistryOfficer)
		return
	}
}
