// Package ownership resolves the best-known officers/owners of a corporate
// entity, detecting registries that conceal ownership behind registered
// agents and escalating to AI research as a last resort.
package ownership

import (
	"regexp"
	"strings"

	"github.com/sells-group/dossier-cli/internal/model"
	"github.com/sells-group/dossier-cli/pkg/opencorp"
)

// agentRoles are officer positions that identify registry plumbing rather
// than actual ownership.
var agentRoles = map[string]bool{
	"registered agent":  true,
	"agent":             true,
	"resident agent":    true,
	"statutory agent":   true,
	"agent for service": true,
}

// servicePatterns match the names of known corporate-service providers that
// file as officers on behalf of anonymous owners.
var servicePatterns = []*regexp.Regexp{
	regexp.MustCompile(`(?i)\bregistered\s+agents?\b`),
	regexp.MustCompile(`(?i)\bcorporation\s+service\b`),
	regexp.MustCompile(`(?i)\bcorporate\s+(creations|services|filings)\b`),
	regexp.MustCompile(`(?i)\bct\s+corporation\b`),
	regexp.MustCompile(`(?i)\bcogency\s+global\b`),
	regexp.MustCompile(`(?i)\bnorthwest\s+registered\b`),
	regexp.MustCompile(`(?i)\bincorp\s+services\b`),
	regexp.MustCompile(`(?i)\bharvard\s+business\s+services\b`),
	regexp.MustCompile(`(?i)\bvcorp\b`),
	regexp.MustCompile(`(?i)\bparacorp\b`),
}

// entitySuffix matches generic corporate-suffix patterns; an "officer" with
// one of these in its name is another entity, not a human owner.
var entitySuffix = regexp.MustCompile(`(?i)\b(inc|incorporated|llc|l\.l\.c|llp|ltd|limited|corp|corporation|co|company|trust|trustee|services|holdings|group|partners|lp|plc|pllc|pc|gmbh)\b\.?`)

// IsAgentRole reports whether an officer position is registry plumbing.
func IsAgentRole(position string) bool {
	return agentRoles[strings.ToLower(strings.TrimSpace(position))]
}

// IsServiceProvider reports whether an officer name matches a known
// corporate-service-provider pattern.
func IsServiceProvider(name string) bool {
	for _, p := range servicePatterns {
		if p.MatchString(name) {
			return true
		}
	}
	return false
}

// IsEntityName reports whether a name carries a generic corporate suffix.
func IsEntityName(name string) bool {
	return entitySuffix.MatchString(name)
}

// FilterOfficers removes registered agents, corporate-service providers,
// and corporate-suffix entries from an officer list, returning the
// remaining likely-human officers. An empty result means the filing is
// privacy-protected.
func FilterOfficers(officers []opencorp.Officer) []opencorp.Officer {
	var out []opencorp.Officer
	for _, o := range officers {
		if IsAgentRole(o.Position) {
			continue
		}
		if IsServiceProvider(o.Name) {
			continue
		}
		if IsEntityName(o.Name) {
			continue
		}
		if strings.TrimSpace(o.Name) == "" {
			continue
		}
		out = append(out, o)
	}
	return out
}

// ClassifyOwner types an ownership node from its name.
func ClassifyOwner(name string) model.OwnerType {
	if IsEntityName(name) {
		return model.OwnerEntity
	}
	return model.OwnerIndividual
}
