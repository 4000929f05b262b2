package ownership

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"go.uber.org/zap"

	"github.com/sells-group/dossier-cli/internal/model"
	"github.com/sells-group/dossier-cli/internal/resilience"
	"github.com/sells-group/dossier-cli/pkg/perplexity"
)

const researchProviderName = "perplexity"

const researchSystemPrompt = `You are a corporate ownership researcher. Given a privacy-protected business filing, identify the likely human owners from public records, news, court filings, and business directories. Respond with ONLY a JSON object of the shape:
{"owners":[{"name":"...","confidence":"high|medium|low","reasoning":"..."}]}
Return {"owners":[]} if nothing credible is found. Do not include entities, only people.`

// inferredOwnersPayload is the bounded shape we accept from the research
// model. Anything outside it is ignored.
type inferredOwnersPayload struct {
	Owners []struct {
		Name       string `json:"name"`
		Confidence string `json:"confidence"`
		Reasoning  string `json:"reasoning"`
	} `json:"owners"`
}

// aiFallback issues one structured research request for a privacy-protected
// entity. Malformed output degrades to an empty inferred-owner list; it
// never fails the resolution.
func (r *Resolver) aiFallback(ctx context.Context, result *model.OwnershipResult, log *zap.Logger) {
	if r.research == nil {
		return
	}

	prompt := researchPrompt(result)
	resp := resilience.Fetch(ctx, r.caller, researchProviderName, "ownership_research", func(ctx context.Context) (*perplexity.ChatCompletionResponse, error) {
		return r.research.ChatCompletion(ctx, perplexity.ChatCompletionRequest{
			Messages: []perplexity.Message{
				{Role: "system", Content: researchSystemPrompt},
				{Role: "user", Content: prompt},
			},
		})
	})
	if resp == nil {
		return
	}

	owners, ok := ParseInferredOwners(resp.Text())
	if !ok {
		log.Warn("ownership: unparsable research response")
		return
	}
	for i := range owners {
		owners[i].Citations = resp.Citations
	}
	result.InferredOwners = owners
	if len(owners) > 0 {
		result.Sources = append(result.Sources, researchProviderName)
	}
}

func researchPrompt(result *model.OwnershipResult) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Who are the human owners of %q?", result.Entity)
	if result.Jurisdiction != "" {
		fmt.Fprintf(&b, " The entity is registered in %s.", result.Jurisdiction)
	}
	if result.RegisteredAddress != "" {
		fmt.Fprintf(&b, " Registered address: %s.", result.RegisteredAddress)
	}
	if result.RegisteredAgent != "" {
		fmt.Fprintf(&b, " The filing lists only a registered agent: %s.", result.RegisteredAgent)
	}
	return b.String()
}

// ParseInferredOwners extracts inferred owners from a research response.
// The model sometimes wraps JSON in prose or code fences; we take the first
// top-level JSON object. Returns ok=false only when no valid payload exists.
func ParseInferredOwners(text string) ([]model.InferredOwner, bool) {
	raw := extractJSONObject(text)
	if raw == "" {
		return nil, false
	}

	var payload inferredOwnersPayload
	if err := json.Unmarshal([]byte(raw), &payload); err != nil {
		return nil, false
	}

	out := make([]model.InferredOwner, 0, len(payload.Owners))
	for _, o := range payload.Owners {
		name := strings.TrimSpace(o.Name)
		if name == "" {
			continue
		}
		out = append(out, model.InferredOwner{
			Name:      name,
			Tier:      parseTier(o.Confidence),
			Reasoning: o.Reasoning,
		})
	}
	return out, true
}

func parseTier(s string) model.ConfidenceTier {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "high":
		return model.TierHigh
	case "medium":
		return model.TierMedium
	default:
		return model.TierLow
	}
}

// extractJSONObject returns the first balanced top-level {...} in text.
func extractJSONObject(text string) string {
	start := strings.Index(text, "{")
	if start < 0 {
		return ""
	}
	depth := 0
	inString := false
	escaped := false
	for i := start; i < len(text); i++ {
		ch := text[i]
		if inString {
			switch {
			case escaped:
				escaped = false
			case ch == '\\':
				escaped = true
			case ch == '"':
				inString = false
			}
			continue
		}
		switch ch {
		case '"':
			inString = true
		case '{':
			depth++
		case '}':
			depth--
			if depth == 0 {
				return text[start : i+1]
			}
		}
	}
	return ""
}
