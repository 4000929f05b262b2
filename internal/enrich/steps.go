package enrich

import (
	"context"
	"encoding/json"
	"fmt"
	"regexp"
	"strings"
	"time"

	"github.com/rotisserie/eris"

	"github.com/sells-group/dossier-cli/internal/fusion"
	"github.com/sells-group/dossier-cli/internal/model"
	"github.com/sells-group/dossier-cli/internal/ownership"
	"github.com/sells-group/dossier-cli/internal/resilience"
	"github.com/sells-group/dossier-cli/internal/usage"
	"github.com/sells-group/dossier-cli/pkg/anthropic"
	"github.com/sells-group/dossier-cli/pkg/attom"
	"github.com/sells-group/dossier-cli/pkg/endato"
	"github.com/sells-group/dossier-cli/pkg/pdl"
	"github.com/sells-group/dossier-cli/pkg/smarty"
)

var errProviderUnavailable = eris.New("enrich: provider call failed")

// errNotConfigured marks a step whose providers carry no credentials. The
// run records such steps as skipped, never failed: an unintegrated provider
// is invisible to the caller and to the health tracker.
var errNotConfigured = eris.New("provider not configured")

// callProvider is the single path every billable provider call takes:
// quota pre-check, resilience-wrapped execution, usage recording on success,
// and run-trace bookkeeping either way.
func callProvider[T any](ctx context.Context, p *Pipeline, subject model.Subject, providerName, operation string, step model.StepName, trace *runTrace, fn func(ctx context.Context) (*T, error)) (*T, error) {
	val, err := usage.WithQuotaEnforcement(ctx, p.enforcer, subject.FirmID, subject.UserID, providerName, 1, func(ctx context.Context) (*T, error) {
		v := resilience.Fetch(ctx, p.caller, providerName, operation, fn)
		if v == nil {
			return nil, eris.Wrapf(errProviderUnavailable, "%s %s", providerName, operation)
		}
		return v, nil
	})
	if err != nil {
		trace.failure(providerName, step)
		return nil, err
	}
	trace.success(providerName)
	return val, nil
}

func (p *Pipeline) runAddress(ctx context.Context, subject model.Subject, d *model.Dossier, trace *runTrace) ([]string, error) {
	if p.address == nil {
		return nil, eris.Wrap(errNotConfigured, "address")
	}
	if strings.TrimSpace(subject.Street) == "" {
		return nil, eris.New("subject has no street address")
	}

	v, err := callProvider(ctx, p, subject, "smarty", "verify_address", model.StepAddress, trace, func(ctx context.Context) (*smarty.Verification, error) {
		res, err := p.address.VerifyAddress(ctx, subject.Street, subject.City, subject.State, subject.Zip)
		if err != nil {
			return nil, err
		}
		if res == nil {
			return nil, eris.New("smarty: no matching address")
		}
		return res, nil
	})
	if err != nil {
		return []string{"smarty"}, err
	}

	d.Address = &model.ValidatedAddress{
		Line1:       v.Line1,
		City:        v.City,
		State:       v.State,
		Zip:         v.Zip,
		Latitude:    v.Latitude,
		Longitude:   v.Longitude,
		Deliverable: v.Deliverable,
		MatchScore:  v.MatchScore,
		Source:      "smarty",
	}
	return []string{"smarty"}, nil
}

func (p *Pipeline) runProperty(ctx context.Context, subject model.Subject, d *model.Dossier, trace *runTrace) ([]string, error) {
	if p.property == nil {
		return nil, eris.Wrap(errNotConfigured, "property")
	}

	line1, city, st, zip := subject.Street, subject.City, subject.State, subject.Zip
	if d.Address != nil {
		line1, city, st, zip = d.Address.Line1, d.Address.City, d.Address.State, d.Address.Zip
	}
	if strings.TrimSpace(line1) == "" {
		return nil, eris.New("no address to look up")
	}

	prop, err := callProvider(ctx, p, subject, "attom", "property_detail", model.StepProperty, trace, func(ctx context.Context) (*attom.Property, error) {
		res, err := p.property.PropertyDetail(ctx, line1, city, st, zip)
		if err != nil {
			return nil, err
		}
		if res == nil {
			return nil, eris.New("attom: no parcel record")
		}
		return res, nil
	})
	if err != nil {
		return []string{"attom"}, err
	}

	d.Property = p.fuseProperty(prop)
	return []string{"attom"}, nil
}

// fuseProperty runs parcel fields through the fusion engine so additional
// property sources can be merged in without changing the step.
func (p *Pipeline) fuseProperty(prop *attom.Property) *model.PropertyRecord {
	signals := fusion.PropertySignals{
		GeocodeMatch:        prop.MatchScore,
		Authoritative:       true, // assessor-of-record data
		MonthsSinceVerified: monthsSince(prop.AsOfDate),
	}

	facts := []fusion.PropertyFact{
		{Field: "parcel_id", Value: prop.ParcelID, Source: "attom", Signals: signals},
		{Field: "owner_name", Value: prop.OwnerName, Source: "attom", Signals: signals},
		{Field: "owner_mailing", Value: prop.OwnerMailing, Source: "attom", Signals: signals},
		{Field: "use_code", Value: prop.UseCode, Source: "attom", Signals: signals},
	}
	resolved := p.fuser.FuseProperty(facts)

	record := &model.PropertyRecord{
		YearBuilt:    prop.YearBuilt,
		SqFt:         prop.SqFt,
		AssessedUSD:  prop.AssessedUSD,
		LastSaleUSD:  prop.LastSaleUSD,
		LastSaleDate: prop.LastSaleDate,
		Confidence:   p.fuser.PropertyConfidence(signals),
	}
	sources := map[string]bool{}
	for _, f := range resolved {
		switch f.Field {
		case "parcel_id":
			record.ParcelID, _ = f.Value.(string)
		case "owner_name":
			record.OwnerName, _ = f.Value.(string)
		case "owner_mailing":
			record.OwnerMailing, _ = f.Value.(string)
		case "use_code":
			record.UseCode, _ = f.Value.(string)
		}
		if f.Confidence < record.Confidence {
			record.Confidence = f.Confidence
		}
		for _, s := range f.Sources {
			sources[s] = true
		}
	}
	for s := range sources {
		record.Sources = append(record.Sources, s)
	}
	return record
}

func (p *Pipeline) runOwnership(ctx context.Context, subject model.Subject, d *model.Dossier, trace *runTrace) ([]string, error) {
	if p.resolver == nil {
		return nil, eris.Wrap(errNotConfigured, "ownership registry")
	}

	entity := subject.Name
	if d.Property != nil && d.Property.OwnerName != "" && ownership.IsEntityName(d.Property.OwnerName) {
		entity = d.Property.OwnerName
	}
	if strings.TrimSpace(entity) == "" {
		return nil, eris.New("no entity to resolve")
	}

	chain, err := WalkChain(ctx, p.resolver, p.enforcer, subject, entity, subject.Jurisdiction, p.maxChainDepth)
	providers := []string{"opencorp"}
	for _, res := range chain {
		if len(res.InferredOwners) > 0 {
			providers = append(providers, "perplexity")
			trace.fallback("perplexity")
			break
		}
	}
	d.Ownership = chain

	if err != nil {
		trace.failure("opencorp", model.StepOwnership)
		return providers, err
	}
	if len(chain) == 0 {
		trace.failure("opencorp", model.StepOwnership)
		return providers, eris.New("no ownership records found")
	}
	trace.success("opencorp")
	return providers, nil
}

// Tier-to-confidence mapping for AI-inferred owners when promoted to
// principals.
func tierConfidence(t model.ConfidenceTier) float64 {
	switch t {
	case model.TierHigh:
		return 80
	case model.TierMedium:
		return 65
	default:
		return 50
	}
}

func (p *Pipeline) runPrincipals(ctx context.Context, subject model.Subject, d *model.Dossier, trace *runTrace) ([]string, error) {
	seen := map[string]bool{}
	var principals []model.Principal
	addPrincipal := func(pr model.Principal) {
		key := strings.ToUpper(strings.TrimSpace(pr.Name))
		if key == "" || seen[key] {
			return
		}
		seen[key] = true
		principals = append(principals, pr)
	}

	for _, res := range d.Ownership {
		for _, node := range res.Officers {
			if node.Type != model.OwnerIndividual {
				continue
			}
			addPrincipal(model.Principal{
				Name:       node.Name,
				Role:       node.Role,
				Entity:     res.Entity,
				Confidence: node.Confidence,
				Source:     "opencorp",
			})
		}
		for _, inf := range res.InferredOwners {
			addPrincipal(model.Principal{
				Name:       inf.Name,
				Entity:     res.Entity,
				Confidence: tierConfidence(inf.Tier),
				Source:     "perplexity",
			})
		}
	}

	if len(principals) == 0 {
		d.Principals = nil
		return nil, eris.New("no principals discovered")
	}

	// Fill missing roles from the person-enrichment provider, bounded so a
	// long officer list cannot burn quota.
	var providers []string
	if p.people != nil {
		enriched := 0
		for i := range principals {
			if principals[i].Role != "" || enriched >= p.maxContactTargets {
				continue
			}
			enriched++
			name := principals[i].Name
			entity := principals[i].Entity
			resp, err := callProvider(ctx, p, subject, "pdl", "enrich_person", model.StepPrincipal, trace, func(ctx context.Context) (*pdl.EnrichResponse, error) {
				res, err := p.people.EnrichPerson(ctx, pdl.EnrichRequest{
					Name:    name,
					Company: entity,
					City:    subject.City,
					State:   subject.State,
				})
				if err != nil {
					return nil, err
				}
				if res == nil {
					return nil, eris.New("pdl: no person record")
				}
				return res, nil
			})
			if err != nil {
				continue
			}
			if len(providers) == 0 {
				providers = []string{"pdl"}
			}
			if resp.Person.JobTitle != "" {
				principals[i].Role = resp.Person.JobTitle
			}
		}
	}

	d.Principals = principals
	return providers, nil
}

func (p *Pipeline) runContacts(ctx context.Context, subject model.Subject, d *model.Dossier, trace *runTrace) ([]string, error) {
	if p.contacts == nil && p.people == nil {
		return nil, eris.Wrap(errNotConfigured, "contacts")
	}

	targets := contactTargets(subject, d.Principals, p.maxContactTargets)
	if len(targets) == 0 {
		return nil, eris.New("no contact targets")
	}

	var candidates []model.ContactCandidate
	providerSet := map[string]bool{}

	for _, target := range targets {
		if p.contacts != nil {
			name := target
			resp, err := callProvider(ctx, p, subject, "endato", "contact_search", model.StepContacts, trace, func(ctx context.Context) (*endato.ContactSearchResponse, error) {
				return p.contacts.ContactSearch(ctx, endato.ContactSearchRequest{
					Name:   name,
					Street: subject.Street,
					City:   subject.City,
					State:  subject.State,
					Zip:    subject.Zip,
				})
			})
			if err == nil && resp != nil {
				providerSet["endato"] = true
				candidates = append(candidates, endatoCandidates(p.fuser, resp)...)
			}
		}

		if p.people != nil {
			name := target
			resp, err := callProvider(ctx, p, subject, "pdl", "enrich_person", model.StepContacts, trace, func(ctx context.Context) (*pdl.EnrichResponse, error) {
				res, err := p.people.EnrichPerson(ctx, pdl.EnrichRequest{
					Name:  name,
					City:  subject.City,
					State: subject.State,
				})
				if err != nil {
					return nil, err
				}
				if res == nil {
					return nil, eris.New("pdl: no person record")
				}
				return res, nil
			})
			if err == nil && resp != nil {
				providerSet["pdl"] = true
				candidates = append(candidates, pdlCandidates(p.fuser, subject, resp)...)
			}
		}
	}

	var providers []string
	for _, name := range []string{"endato", "pdl"} {
		if providerSet[name] {
			providers = append(providers, name)
		}
	}

	if len(candidates) == 0 {
		return providers, eris.New("no contact candidates returned")
	}

	d.Phones = p.fuser.FuseContacts(model.FactPhone, candidates)
	d.Emails = p.fuser.FuseContacts(model.FactEmail, candidates)
	return providers, nil
}

// contactTargets picks who to skip-trace: the highest-confidence principals
// first, the subject itself when nobody else is known.
func contactTargets(subject model.Subject, principals []model.Principal, max int) []string {
	if max <= 0 {
		max = defaultMaxContactTargets
	}
	var out []string
	for _, pr := range principals {
		if len(out) >= max {
			break
		}
		out = append(out, pr.Name)
	}
	if len(out) == 0 && strings.TrimSpace(subject.Name) != "" {
		out = append(out, subject.Name)
	}
	return out
}

func endatoCandidates(fuser *fusion.Engine, resp *endato.ContactSearchResponse) []model.ContactCandidate {
	out := make([]model.ContactCandidate, 0, len(resp.Phones)+len(resp.Emails))
	for _, ph := range resp.Phones {
		out = append(out, fuser.NewCandidate(model.FactPhone, ph.Number, "endato", model.MatchSignals{
			NameMatch:           ph.NameMatchScore,
			LocationMatch:       ph.AddressMatch,
			Authoritative:       ph.IsConnected,
			MonthsSinceVerified: monthsSince(ph.LastReportedDate),
			AssociationAgeYears: yearsSince(ph.FirstReportedDate),
		}))
	}
	for _, em := range resp.Emails {
		out = append(out, fuser.NewCandidate(model.FactEmail, em.Address, "endato", model.MatchSignals{
			NameMatch:           em.NameMatchScore,
			LocationMatch:       em.AddressMatch,
			Authoritative:       em.IsValidated,
			MonthsSinceVerified: monthsSince(em.LastReportedDate),
		}))
	}
	return out
}

func pdlCandidates(fuser *fusion.Engine, subject model.Subject, resp *pdl.EnrichResponse) []model.ContactCandidate {
	signals := model.MatchSignals{
		NameMatch:           float64(resp.Likelihood) / 10,
		LocationMatch:       pdlLocationMatch(subject, resp.Person),
		MonthsSinceVerified: -1, // PDL does not report verification dates
	}

	var out []model.ContactCandidate
	if resp.Person.MobilePhone != "" {
		out = append(out, fuser.NewCandidate(model.FactPhone, resp.Person.MobilePhone, "pdl", signals))
	}
	for _, num := range resp.Person.PhoneNumbers {
		out = append(out, fuser.NewCandidate(model.FactPhone, num, "pdl", signals))
	}
	for _, em := range resp.Person.Emails {
		out = append(out, fuser.NewCandidate(model.FactEmail, em.Address, "pdl", signals))
	}
	return out
}

func pdlLocationMatch(subject model.Subject, person pdl.Person) float64 {
	sameState := strings.EqualFold(person.LocationState, subject.State) && subject.State != ""
	sameCity := strings.EqualFold(person.LocationCity, subject.City) && subject.City != ""
	switch {
	case sameState && sameCity:
		return 0.9
	case sameState:
		return 0.6
	default:
		return 0.3
	}
}

// Franchise markers: a store/unit number in the trade name, or a corporate
// parent registered in a different jurisdiction than the operating entity.
var storeNumberPattern = regexp.MustCompile(`(?i)(#\s?\d{2,}|\bstore\s+\d+\b|\bunit\s+\d+\b)`)

func (p *Pipeline) runFranchise(_ context.Context, subject model.Subject, d *model.Dossier) ([]string, error) {
	signal := &model.FranchiseSignal{}

	if m := storeNumberPattern.FindString(subject.Name); m != "" {
		signal.IsFranchise = true
		signal.Brand = strings.TrimSpace(storeNumberPattern.ReplaceAllString(subject.Name, ""))
		signal.Confidence = 0.8
		signal.Reasoning = fmt.Sprintf("trade name carries a unit number (%s)", strings.TrimSpace(m))
	} else if parent := chainParent(d.Ownership); parent != nil {
		signal.IsFranchise = true
		signal.Brand = parent.Name
		signal.Confidence = 0.6
		signal.Reasoning = fmt.Sprintf("operating entity is a branch of %s (%s)", parent.Name, parent.Jurisdiction)
	} else {
		signal.Confidence = 0.7
		signal.Reasoning = "no franchise markers in name or ownership chain"
	}

	d.Franchise = signal
	return nil, nil
}

// chainParent returns the first cross-jurisdiction parent in the ownership
// chain, if any.
func chainParent(chain []model.OwnershipResult) *model.ParentRef {
	for _, res := range chain {
		if res.Parent != nil && res.Parent.Jurisdiction != res.Jurisdiction {
			return res.Parent
		}
	}
	return nil
}

const summarySystemPrompt = `You are a commercial real estate analyst. Write a concise dossier summary (3-5 sentences) of the property owner described by the JSON the user provides: who owns the property, how reachable they are, and anything notable about the ownership structure. Plain prose, no headings.`

func (p *Pipeline) runSummary(ctx context.Context, subject model.Subject, d *model.Dossier, trace *runTrace) ([]string, error) {
	if p.ai == nil {
		return nil, eris.Wrap(errNotConfigured, "summary")
	}

	payload, err := json.Marshal(summaryInput(d))
	if err != nil {
		return nil, eris.Wrap(err, "marshal summary input")
	}

	resp, err := callProvider(ctx, p, subject, "anthropic", "summary", model.StepSummary, trace, func(ctx context.Context) (*anthropic.MessageResponse, error) {
		return p.ai.CreateMessage(ctx, anthropic.MessageRequest{
			Model:     p.summaryModel,
			MaxTokens: 1024,
			System:    summarySystemPrompt,
			Messages:  []anthropic.Message{{Role: "user", Content: string(payload)}},
		})
	})
	if err != nil {
		return []string{"anthropic"}, err
	}

	resp.Usage.LogCost(p.summaryModel, string(model.StepSummary))
	d.Summary = strings.TrimSpace(resp.Text)
	return []string{"anthropic"}, nil
}

// summaryInput trims the dossier to what the model needs, keeping prompts
// small and stable.
func summaryInput(d *model.Dossier) map[string]any {
	in := map[string]any{
		"subject": d.Subject,
	}
	if d.Address != nil {
		in["address"] = d.Address
	}
	if d.Property != nil {
		in["property"] = d.Property
	}
	if len(d.Ownership) > 0 {
		in["ownership"] = d.Ownership
	}
	if len(d.Principals) > 0 {
		in["principals"] = d.Principals
	}
	if len(d.Phones) > 0 {
		in["top_phone"] = d.Phones[0]
	}
	if len(d.Emails) > 0 {
		in["top_email"] = d.Emails[0]
	}
	if d.Franchise != nil {
		in["franchise"] = d.Franchise
	}
	return in
}

// monthsSince converts a YYYY-MM-DD date into whole months before now.
// Unparsable or empty dates report -1 (never verified).
func monthsSince(date string) int {
	t, err := time.Parse("2006-01-02", date)
	if err != nil {
		return -1
	}
	months := int(time.Since(t).Hours() / (24 * 30))
	if months < 0 {
		return 0
	}
	return months
}

func yearsSince(date string) float64 {
	t, err := time.Parse("2006-01-02", date)
	if err != nil {
		return 0
	}
	years := time.Since(t).Hours() / (24 * 365)
	if years < 0 {
		return 0
	}
	return years
}
