package actions

import (
	"fmt"

	"github.com/scenariq/scenariq/internal/core"
)

// ExecutionOrder returns the plan's action IDs in dependency order using a
// topological sort with a deterministic tie-break (input order). Dependency
// cycles and references to unknown actions do not fail the plan: the affected
// actions are appended in input order and the problem is reported in the
// returned diagnostics.
func ExecutionOrder(plan *core.ActionPlan) ([]string, []string) {
	if plan == nil || len(plan.Actions) == 0 {
		return nil, nil
	}

	ids := make([]string, 0, len(plan.Actions))
	known := make(map[string]bool, len(plan.Actions))
	for _, a := range plan.Actions {
		ids = append(ids, a.ActionID)
		known[a.ActionID] = true
	}

	var diagnostics []string

	// In-degree counts over known actions only
	indegree := make(map[string]int, len(ids))
	dependents := make(map[string][]string)
	for _, id := range ids {
		for _, dep := range plan.Dependencies[id] {
			if !known[dep] {
				diagnostics = append(diagnostics,
					fmt.Sprintf("action %s depends on unknown action %s; dependency ignored", id, dep))
				continue
			}
			indegree[id]++
			dependents[dep] = append(dependents[dep], id)
		}
	}

	order := make([]string, 0, len(ids))
	placed := make(map[string]bool, len(ids))

	// Kahn's algorithm, always scanning in input order for determinism
	for len(order) < len(ids) {
		progressed := false
		for _, id := range ids {
			if placed[id] || indegree[id] > 0 {
				continue
			}
			order = append(order, id)
			placed[id] = true
			progressed = true
			for _, dep := range dependents[id] {
				indegree[dep]--
			}
		}
		if !progressed {
			// Remaining actions form a cycle; run them in input order
			var cyclic []string
			for _, id := range ids {
				if !placed[id] {
					cyclic = append(cyclic, id)
					order = append(order, id)
					placed[id] = true
				}
			}
			diagnostics = append(diagnostics,
				fmt.Sprintf("dependency cycle among %v; executing in input order", cyclic))
			break
		}
	}

	return order, diagnostics
}
