package enrich

import (
	"context"
	"strings"

	"go.uber.org/zap"

	"github.com/sells-group/dossier-cli/internal/model"
	"github.com/sells-group/dossier-cli/internal/ownership"
	"github.com/sells-group/dossier-cli/internal/usage"
)

// maxChainEntities bounds the total number of entities resolved in one
// chain regardless of depth, so a wide holding structure cannot fan out
// unbounded registry calls.
const maxChainEntities = 10

// WalkChain resolves the ownership chain starting at entity: breadth-first
// over entity-typed officers and branch parents, one registry resolution
// per entity, cycle-safe via a visited set. Each hop is quota-enforced as
// one registry call; a quota block stops extension and returns the chain
// accumulated so far along with the block error.
func WalkChain(ctx context.Context, resolver *ownership.Resolver, enforcer *usage.Enforcer, subject model.Subject, entity, jurisdictionHint string, maxDepth int) ([]model.OwnershipResult, error) {
	if maxDepth <= 0 {
		maxDepth = defaultMaxChainDepth
	}

	type workItem struct {
		name  string
		hint  string
		depth int
	}

	visited := map[string]bool{chainKey(entity): true}
	queue := []workItem{{name: entity, hint: jurisdictionHint}}
	var chain []model.OwnershipResult

	for len(queue) > 0 && len(chain) < maxChainEntities {
		item := queue[0]
		queue = queue[1:]

		res, err := resolveHop(ctx, resolver, enforcer, subject, item.name, item.hint)
		if err != nil {
			return chain, err
		}
		if res == nil {
			continue
		}
		for i := range res.Officers {
			res.Officers[i].Depth = item.depth
		}
		chain = append(chain, *res)

		if item.depth >= maxDepth {
			continue
		}
		for _, next := range nextHops(res) {
			key := chainKey(next.name)
			if visited[key] {
				continue
			}
			visited[key] = true
			queue = append(queue, workItem{name: next.name, hint: next.hint, depth: item.depth + 1})
		}
	}

	return chain, nil
}

type hop struct {
	name string
	hint string
}

// nextHops lists the entities worth resolving from a result: entity-typed
// officers and the branch parent when it was not already merged in.
func nextHops(res *model.OwnershipResult) []hop {
	var out []hop
	for _, node := range res.Officers {
		if node.Type == model.OwnerEntity {
			out = append(out, hop{name: node.Name, hint: node.Jurisdiction})
		}
	}
	if res.Parent != nil {
		out = append(out, hop{name: res.Parent.Name, hint: res.Parent.Jurisdiction})
	}
	return out
}

func resolveHop(ctx context.Context, resolver *ownership.Resolver, enforcer *usage.Enforcer, subject model.Subject, name, hint string) (*model.OwnershipResult, error) {
	if enforcer == nil {
		return resolver.Resolve(ctx, name, hint), nil
	}
	res, err := usage.WithQuotaEnforcement(ctx, enforcer, subject.FirmID, subject.UserID, "opencorp", 1, func(ctx context.Context) (*model.OwnershipResult, error) {
		return resolver.Resolve(ctx, name, hint), nil
	})
	if err != nil {
		zap.L().Warn("enrich: chain hop blocked by quota",
			zap.String("entity", name),
			zap.Error(err),
		)
		return nil, err
	}
	return res, nil
}

func chainKey(name string) string {
	return strings.ToUpper(strings.Join(strings.Fields(name), " "))
}
