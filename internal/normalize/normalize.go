// Package normalize converts raw simulation payloads of whatever shape into
// the canonical SimulationResult. It never fails: unrecognized or partial
// payloads degrade to a minimal valid result with a diagnostic risk entry so
// the downstream pipeline keeps moving.
package normalize

import (
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/scenariq/scenariq/internal/core"
	"github.com/scenariq/scenariq/internal/simulation"
)

// InsufficientDataMitigation is the mitigation text attached when a payload
// carries nothing recognizable. Callers test for it to detect degraded runs.
const InsufficientDataMitigation = "insufficient data: re-run the simulation with a recognized payload shape"

// Normalizer builds canonical SimulationResults from raw payloads
type Normalizer struct{}

// New creates a normalizer
func New() *Normalizer {
	return &Normalizer{}
}

// FromOutput converts the engine's own typed output into a canonical result
func (n *Normalizer) FromOutput(out *simulation.Output, params simulation.Params) *core.SimulationResult {
	result := newResult(params.Name, params.Type)
	if out == nil {
		result.Metrics.RiskAssessment = append(result.Metrics.RiskAssessment, insufficientData("empty engine output"))
		return result
	}

	result.Scenarios = out.Scenarios
	result.Metrics.ExpectedValue = out.Metrics.Mean
	result.Metrics.ConfidenceIntervals = out.ConfidenceIntervals
	result.Metrics.ProbabilityDistribution = out.Distribution
	result.Metrics.SensitivityAnalysis = out.Sensitivity
	result.Metrics.RecommendedActions = deriveActions(out, params)
	result.Metrics.RiskAssessment = deriveRisks(params)
	result.Metrics.Insights = SeriesInsights(out.Outcomes, 0)
	return result
}

// Normalize converts a raw payload into a canonical result. templateID is
// optional and recorded on the result name when the payload has none.
// Every nested access is defensive; missing fields get explicit defaults.
func (n *Normalizer) Normalize(raw map[string]interface{}, templateID string) *core.SimulationResult {
	name, _ := getString(raw, "name")
	if name == "" {
		name = templateID
	}
	simType := core.SimulationTypeGeneric
	if s, ok := getString(raw, "simulation_type"); ok && s != "" {
		simType = core.SimulationType(s)
	} else if s, ok := getString(raw, "simulationType"); ok && s != "" {
		simType = core.SimulationType(s)
	}

	result := newResult(name, simType)
	result.RawResult = raw

	recognized := false

	if scenarios, ok := getSlice(raw, "scenarios"); ok {
		result.Scenarios = decodeScenarios(scenarios)
		recognized = recognized || len(result.Scenarios) > 0
	}

	metrics, metricsOK := getMap(raw, "aggregate_metrics")
	if !metricsOK {
		metrics, metricsOK = getMap(raw, "metrics")
	}
	if !metricsOK {
		metrics, metricsOK = getMap(raw, "results")
	}
	if metricsOK {
		recognized = true
		decodeMetrics(metrics, &result.Metrics)
	}

	// Actions can live at the top level or under the metrics block
	if actions, ok := getSlice(raw, "recommended_actions"); ok {
		result.Metrics.RecommendedActions = decodeActions(actions)
		recognized = recognized || len(result.Metrics.RecommendedActions) > 0
	}

	// Raw engine shape: bare outcomes with metrics alongside
	if outcomes, ok := getFloatSlice(raw, "outcomes"); ok && len(outcomes) > 0 {
		recognized = true
		result.Metrics.ExpectedValue = simulation.Mean(outcomes)
		if len(result.Metrics.ConfidenceIntervals) == 0 {
			result.Metrics.ConfidenceIntervals = simulation.ConfidenceIntervals(outcomes, []float64{0.90, 0.95})
		}
		if len(result.Metrics.ProbabilityDistribution) == 0 {
			result.Metrics.ProbabilityDistribution = simulation.Histogram(outcomes, 10)
		}
	}

	// Time-series shaped input gets statistical insights
	if series, ok := getFloatSlice(raw, "series"); ok && len(series) >= 4 {
		recognized = true
		period := 0
		if p, ok := getFloat(raw, "period"); ok {
			period = int(p)
		}
		result.Metrics.Insights = SeriesInsights(series, period)
	}

	if !recognized {
		result.Metrics.RiskAssessment = append(result.Metrics.RiskAssessment,
			insufficientData("payload shape not recognized"))
	}

	return result
}

func newResult(name string, simType core.SimulationType) *core.SimulationResult {
	if name == "" {
		name = "unnamed simulation"
	}
	if simType == "" {
		simType = core.SimulationTypeGeneric
	}
	return &core.SimulationResult{
		ID:        core.SimulationID(uuid.NewString()),
		Name:      name,
		Type:      simType,
		CreatedAt: time.Now(),
		Scenarios: []core.Scenario{},
		Metrics: core.AggregateMetrics{
			ConfidenceIntervals:     []core.ConfidenceInterval{},
			ProbabilityDistribution: []core.DistributionBin{},
			RecommendedActions:      []core.RecommendedAction{},
			SensitivityAnalysis:     []core.SensitivityEntry{},
			RiskAssessment:          []core.RiskAssessment{},
		},
	}
}

func insufficientData(detail string) core.RiskAssessment {
	return core.RiskAssessment{
		Category:           "data_quality",
		Probability:        1,
		Impact:             detail,
		MitigationStrategy: InsufficientDataMitigation,
	}
}

// decodeMetrics fills dst from a metrics-shaped map, defaulting every
// missing field rather than failing
func decodeMetrics(m map[string]interface{}, dst *core.AggregateMetrics) {
	if v, ok := getFloat(m, "expected_value"); ok {
		dst.ExpectedValue = v
	} else if v, ok := getFloat(m, "mean"); ok {
		dst.ExpectedValue = v
	}

	if intervals, ok := getSlice(m, "confidence_intervals"); ok {
		for _, item := range intervals {
			ci, ok := asMap(item)
			if !ok {
				continue
			}
			lower, _ := getFloat(ci, "lower")
			upper, _ := getFloat(ci, "upper")
			level, levelOK := getFloat(ci, "confidence_level")
			if !levelOK {
				level, _ = getFloat(ci, "level")
			}
			dst.ConfidenceIntervals = append(dst.ConfidenceIntervals, core.ConfidenceInterval{
				Lower: lower, Upper: upper, ConfidenceLevel: level,
			})
		}
	}

	if bins, ok := getSlice(m, "probability_distribution"); ok {
		for _, item := range bins {
			bin, ok := asMap(item)
			if !ok {
				continue
			}
			lower, _ := getFloat(bin, "lower")
			upper, _ := getFloat(bin, "upper")
			prob, _ := getFloat(bin, "probability")
			dst.ProbabilityDistribution = append(dst.ProbabilityDistribution, core.DistributionBin{
				Lower: lower, Upper: upper, Probability: prob,
			})
		}
	}

	if actions, ok := getSlice(m, "recommended_actions"); ok {
		dst.RecommendedActions = decodeActions(actions)
	}

	if entries, ok := getSlice(m, "sensitivity_analysis"); ok {
		for _, item := range entries {
			e, ok := asMap(item)
			if !ok {
				continue
			}
			param, _ := getString(e, "parameter")
			impact, _ := getFloat(e, "impact")
			dst.SensitivityAnalysis = append(dst.SensitivityAnalysis, core.SensitivityEntry{
				Parameter: param, Impact: impact,
			})
		}
	}

	if risks, ok := getSlice(m, "risk_assessment"); ok {
		for _, item := range risks {
			r, ok := asMap(item)
			if !ok {
				continue
			}
			category, _ := getString(r, "category")
			prob, _ := getFloat(r, "probability")
			impact, _ := getString(r, "impact")
			mitigation, _ := getString(r, "mitigation_strategy")
			dst.RiskAssessment = append(dst.RiskAssessment, core.RiskAssessment{
				Category: category, Probability: prob, Impact: impact, MitigationStrategy: mitigation,
			})
		}
	}
}

func decodeScenarios(items []interface{}) []core.Scenario {
	scenarios := make([]core.Scenario, 0, len(items))
	for i, item := range items {
		m, ok := asMap(item)
		if !ok {
			continue
		}
		id, _ := getString(m, "id")
		if id == "" {
			id = fmt.Sprintf("scenario-%d", i)
		}
		name, _ := getString(m, "name")
		prob, _ := getFloat(m, "probability")
		metrics, _ := getMap(m, "metrics")
		if metrics == nil {
			metrics = map[string]interface{}{}
		}
		scenarios = append(scenarios, core.Scenario{
			ID: id, Name: name, Probability: clamp01(prob), Metrics: metrics,
		})
	}
	return scenarios
}

func decodeActions(items []interface{}) []core.RecommendedAction {
	actions := make([]core.RecommendedAction, 0, len(items))
	for i, item := range items {
		m, ok := asMap(item)
		if !ok {
			continue
		}
		action := core.RecommendedAction{
			ConfidenceScore: 0.5, // neutral default when absent
			RiskLevel:       core.RiskMedium,
		}
		action.ActionID, _ = getString(m, "action_id")
		if action.ActionID == "" {
			action.ActionID, _ = getString(m, "id")
		}
		if action.ActionID == "" {
			action.ActionID = fmt.Sprintf("action-%d", i)
		}
		action.Name, _ = getString(m, "name")
		action.Description, _ = getString(m, "description")
		action.ExpectedOutcome, _ = getString(m, "expected_outcome")
		if v, ok := getFloat(m, "success_probability"); ok {
			action.SuccessProbability = clamp01(v)
		}
		if v, ok := getFloat(m, "confidence_score"); ok {
			action.ConfidenceScore = clamp01(v)
		}
		if s, ok := getString(m, "risk_level"); ok {
			switch core.RiskLevel(s) {
			case core.RiskLow, core.RiskMedium, core.RiskHigh:
				action.RiskLevel = core.RiskLevel(s)
			}
		}
		if steps, ok := getStringSlice(m, "implementation_steps"); ok {
			action.ImplementationSteps = steps
		}
		if resources, ok := getStringSlice(m, "required_resources"); ok {
			action.RequiredResources = resources
		}
		action.TimeRequirement, _ = getString(m, "time_requirement")
		actions = append(actions, action)
	}
	return actions
}

// deriveActions turns an engine run into recommended actions based on the
// spread between the expected and pessimistic scenarios
func deriveActions(out *simulation.Output, params simulation.Params) []core.RecommendedAction {
	var actions []core.RecommendedAction

	downside := out.Metrics.Mean - simulation.Percentile(out.Outcomes, 0.10)
	if out.Metrics.Mean > 0 && downside/out.Metrics.Mean > 0.15 {
		actions = append(actions, core.RecommendedAction{
			ActionID:           "hedge-downside",
			Name:               "Hedge downside exposure",
			Description:        fmt.Sprintf("Downside spread is %.0f (%.0f%% of expected value)", downside, 100*downside/out.Metrics.Mean),
			ExpectedOutcome:    "reduced variance in pessimistic scenarios",
			SuccessProbability: 0.7,
			ConfidenceScore:    0.6,
			RiskLevel:          core.RiskMedium,
		})
	}

	for _, rf := range params.RiskFactors {
		if rf.Impact < -0.1 && rf.Probability > 0.2 {
			actions = append(actions, core.RecommendedAction{
				ActionID:           "mitigate-" + rf.Name,
				Name:               fmt.Sprintf("Mitigate %s", rf.Name),
				Description:        fmt.Sprintf("Risk factor %q fires with probability %.0f%% and impact %.0f%%", rf.Name, rf.Probability*100, rf.Impact*100),
				ExpectedOutcome:    "reduced probability-weighted loss",
				SuccessProbability: 1 - rf.Probability,
				ConfidenceScore:    0.7,
				RiskLevel:          riskFromImpact(rf.Impact),
			})
		}
	}
	return actions
}

func deriveRisks(params simulation.Params) []core.RiskAssessment {
	risks := make([]core.RiskAssessment, 0, len(params.RiskFactors))
	for _, rf := range params.RiskFactors {
		if rf.Impact >= 0 {
			continue
		}
		risks = append(risks, core.RiskAssessment{
			Category:           rf.Name,
			Probability:        rf.Probability,
			Impact:             fmt.Sprintf("%.0f%% revenue impact", rf.Impact*100),
			MitigationStrategy: fmt.Sprintf("monitor %s and prepare contingency", rf.Name),
		})
	}
	return risks
}

func riskFromImpact(impact float64) core.RiskLevel {
	if impact < 0 {
		impact = -impact
	}
	switch {
	case impact > 0.3:
		return core.RiskHigh
	case impact > 0.1:
		return core.RiskMedium
	}
	return core.RiskLow
}

func clamp01(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}
