// Package actions extracts recommended actions from simulation results,
// classifies them for automation, and assembles ordered action plans.
package actions

import (
	"sort"
	"time"

	"github.com/scenariq/scenariq/internal/core"
)

// DefaultConfidenceThreshold is the extraction cut-off applied when the
// caller does not supply one.
const DefaultConfidenceThreshold = 0.7

// Policy is the automation rule. An action is automated iff its risk level
// is low AND its confidence score exceeds MinAutomationConfidence. This pair
// is the single named configuration point for automation behavior; changing
// it changes what runs without human sign-off.
type Policy struct {
	MaxAutomatedRisk        core.RiskLevel `json:"max_automated_risk"`
	MinAutomationConfidence float64        `json:"min_automation_confidence"`
}

// DefaultPolicy returns the production automation policy
func DefaultPolicy() Policy {
	return Policy{
		MaxAutomatedRisk:        core.RiskLow,
		MinAutomationConfidence: 0.85,
	}
}

// Automatable applies the policy to a single action
func (p Policy) Automatable(action core.RecommendedAction) bool {
	return action.RiskLevel == p.MaxAutomatedRisk && action.ConfidenceScore > p.MinAutomationConfidence
}

// Extractor filters and classifies recommended actions
type Extractor struct {
	policy Policy
}

// NewExtractor creates an extractor with the given policy
func NewExtractor(policy Policy) *Extractor {
	return &Extractor{policy: policy}
}

// Extract returns the result's recommended actions whose success probability
// meets the threshold, sorted descending by success probability. A
// threshold <= 0 falls back to the default. Actions missing a confidence
// score have already been defaulted to 0.5 by normalization.
func (e *Extractor) Extract(result *core.SimulationResult, threshold float64) []core.RecommendedAction {
	if result == nil {
		return nil
	}
	if threshold <= 0 {
		threshold = DefaultConfidenceThreshold
	}

	extracted := make([]core.RecommendedAction, 0, len(result.Metrics.RecommendedActions))
	for _, action := range result.Metrics.RecommendedActions {
		if action.SuccessProbability >= threshold {
			extracted = append(extracted, action)
		}
	}

	sort.SliceStable(extracted, func(i, j int) bool {
		return extracted[i].SuccessProbability > extracted[j].SuccessProbability
	})
	return extracted
}

// Classified splits actions by the automation policy. Every action lands in
// exactly one of the two lists.
type Classified struct {
	Automated     []core.RecommendedAction `json:"automated"`
	NeedsApproval []core.RecommendedAction `json:"needs_approval"`
}

// Classify partitions actions into automated and approval-required sets
func (e *Extractor) Classify(actions []core.RecommendedAction) Classified {
	c := Classified{
		Automated:     []core.RecommendedAction{},
		NeedsApproval: []core.RecommendedAction{},
	}
	for _, action := range actions {
		if e.policy.Automatable(action) {
			c.Automated = append(c.Automated, action)
		} else {
			c.NeedsApproval = append(c.NeedsApproval, action)
		}
	}
	return c
}

// BuildPlan assembles an ActionPlan from extracted actions. deps maps an
// action ID to the IDs it depends on; unknown IDs in deps are kept and
// surfaced by ExecutionOrder as diagnostics.
func BuildPlan(simulationID core.SimulationID, templateID string, acts []core.RecommendedAction, deps map[string][]string) *core.ActionPlan {
	probs := make(map[string]float64, len(acts))
	for _, a := range acts {
		probs[a.ActionID] = a.SuccessProbability
	}
	return &core.ActionPlan{
		TemplateID:    templateID,
		SimulationID:  simulationID,
		Actions:       acts,
		Probabilities: probs,
		Dependencies:  deps,
		CreatedAt:     time.Now(),
	}
}
