package normalize

import (
	"strings"
	"testing"

	"github.com/scenariq/scenariq/internal/core"
	"github.com/scenariq/scenariq/internal/simulation"
)

func TestNormalize_EmptyPayload(t *testing.T) {
	n := New()

	result := n.Normalize(map[string]interface{}{}, "")
	if result == nil {
		t.Fatal("normalize must never return nil")
	}
	if result.Scenarios == nil || len(result.Scenarios) != 0 {
		t.Errorf("expected empty scenarios, got %v", result.Scenarios)
	}
	if len(result.Metrics.RecommendedActions) != 0 {
		t.Errorf("expected no actions, got %d", len(result.Metrics.RecommendedActions))
	}
	if len(result.Metrics.RiskAssessment) != 1 {
		t.Fatalf("expected one risk entry, got %d", len(result.Metrics.RiskAssessment))
	}
	if !strings.Contains(result.Metrics.RiskAssessment[0].MitigationStrategy, "insufficient data") {
		t.Errorf("mitigation should mention insufficient data: %q",
			result.Metrics.RiskAssessment[0].MitigationStrategy)
	}
}

func TestNormalize_NilPayload(t *testing.T) {
	n := New()

	result := n.Normalize(nil, "tmpl-7")
	if result == nil {
		t.Fatal("normalize must never return nil")
	}
	if result.Name != "tmpl-7" {
		t.Errorf("expected template id as name, got %q", result.Name)
	}
}

func TestNormalize_ExternalPayload(t *testing.T) {
	n := New()

	raw := map[string]interface{}{
		"name":            "Q3 marketing push",
		"simulation_type": "marketing",
		"scenarios": []interface{}{
			map[string]interface{}{
				"name":        "optimistic",
				"probability": 0.2,
				"metrics":     map[string]interface{}{"value": 120000.0},
			},
			map[string]interface{}{
				"name":        "expected",
				"probability": 0.6,
			},
		},
		"aggregate_metrics": map[string]interface{}{
			"expected_value": 95000.0,
			"confidence_intervals": []interface{}{
				map[string]interface{}{"lower": 80000.0, "upper": 110000.0, "confidence_level": 0.95},
			},
		},
		"recommended_actions": []interface{}{
			map[string]interface{}{
				"name":                "Increase ad spend",
				"success_probability": 0.8,
				"risk_level":          "low",
			},
		},
	}

	result := n.Normalize(raw, "")
	if result.Name != "Q3 marketing push" {
		t.Errorf("wrong name: %q", result.Name)
	}
	if result.Type != core.SimulationTypeMarketing {
		t.Errorf("wrong type: %q", result.Type)
	}
	if len(result.Scenarios) != 2 {
		t.Fatalf("expected 2 scenarios, got %d", len(result.Scenarios))
	}
	if result.Scenarios[1].Metrics == nil {
		t.Error("missing scenario metrics should default to an empty map")
	}
	if result.Metrics.ExpectedValue != 95000 {
		t.Errorf("wrong expected value: %f", result.Metrics.ExpectedValue)
	}
	if len(result.Metrics.ConfidenceIntervals) != 1 {
		t.Fatalf("expected 1 interval, got %d", len(result.Metrics.ConfidenceIntervals))
	}

	if len(result.Metrics.RecommendedActions) != 1 {
		t.Fatalf("expected 1 action, got %d", len(result.Metrics.RecommendedActions))
	}
	action := result.Metrics.RecommendedActions[0]
	if action.ConfidenceScore != 0.5 {
		t.Errorf("absent confidence score should default to 0.5, got %f", action.ConfidenceScore)
	}
	if action.RiskLevel != core.RiskLow {
		t.Errorf("wrong risk level: %q", action.RiskLevel)
	}
	if action.ActionID == "" {
		t.Error("action id should be synthesized when absent")
	}

	// No crash path left a diagnostic
	for _, r := range result.Metrics.RiskAssessment {
		if strings.Contains(r.MitigationStrategy, "insufficient data") {
			t.Error("recognized payload should not carry the insufficient-data entry")
		}
	}
}

func TestNormalize_MalformedNestedValues(t *testing.T) {
	n := New()

	raw := map[string]interface{}{
		"scenarios": []interface{}{
			"not a map",
			42,
			map[string]interface{}{"name": "ok"},
		},
		"recommended_actions": []interface{}{
			nil,
			map[string]interface{}{"name": "valid"},
		},
	}

	result := n.Normalize(raw, "")
	if len(result.Scenarios) != 1 {
		t.Errorf("expected only the valid scenario, got %d", len(result.Scenarios))
	}
	if len(result.Metrics.RecommendedActions) != 1 {
		t.Errorf("expected only the valid action, got %d", len(result.Metrics.RecommendedActions))
	}
}

func TestNormalize_TimeSeriesInsights(t *testing.T) {
	n := New()

	series := make([]interface{}, 0, 24)
	for i := 0; i < 24; i++ {
		base := 100.0
		if i%4 == 0 {
			base = 160.0 // every 4th period spikes
		}
		series = append(series, base)
	}

	result := n.Normalize(map[string]interface{}{
		"series": series,
		"period": 4.0,
	}, "")

	if len(result.Metrics.Insights) == 0 {
		t.Fatal("expected insights for time-series payload")
	}
	joined := strings.Join(result.Metrics.Insights, "\n")
	if !strings.Contains(joined, "seasonality") {
		t.Errorf("expected a seasonality insight, got: %s", joined)
	}
}

func TestFromOutput(t *testing.T) {
	n := New()
	engine := simulation.NewEngineWithSeed(11)

	params := simulation.Params{
		Name:        "inventory check",
		Type:        core.SimulationTypeInventory,
		Iterations:  300,
		BaseRevenue: 50000,
		MinRevenue:  0,
		MaxRevenue:  100000,
		RiskFactors: []simulation.RiskFactor{
			{Name: "stockout", Impact: -0.5, Probability: 0.3},
		},
	}
	out, err := engine.Run(params)
	if err != nil {
		t.Fatalf("Run failed: %v", err)
	}

	result := n.FromOutput(out, params)
	if result.Type != core.SimulationTypeInventory {
		t.Errorf("wrong type: %q", result.Type)
	}
	if len(result.Scenarios) != 3 {
		t.Errorf("expected 3 scenarios, got %d", len(result.Scenarios))
	}
	if result.Metrics.ExpectedValue == 0 {
		t.Error("expected value should be set")
	}
	// stockout is frequent and large; it must surface as both a risk and an action
	if len(result.Metrics.RiskAssessment) == 0 {
		t.Error("expected a risk assessment entry for the stockout factor")
	}
	if len(result.Metrics.RecommendedActions) == 0 {
		t.Error("expected at least one recommended action")
	}
}

func TestTrend_CenteredMovingAverage(t *testing.T) {
	series := []float64{1, 2, 3, 4, 5}

	trend := Trend(series, 3)
	want := []float64{2, 3, 4}
	if len(trend) != len(want) {
		t.Fatalf("expected %d points, got %d", len(want), len(trend))
	}
	for i := range want {
		if trend[i] != want[i] {
			t.Errorf("trend[%d] = %f, want %f", i, trend[i], want[i])
		}
	}
}

func TestAutocorrelation(t *testing.T) {
	// Strictly increasing series: near-perfect lag-1 correlation
	increasing := []float64{1, 2, 3, 4, 5, 6, 7, 8}
	if ac := Autocorrelation(increasing, 1); ac < 0.99 {
		t.Errorf("expected ~1.0 for increasing series, got %f", ac)
	}

	// Alternating series: strong negative lag-1 correlation
	alternating := []float64{1, -1, 1, -1, 1, -1, 1, -1}
	if ac := Autocorrelation(alternating, 1); ac > -0.99 {
		t.Errorf("expected ~-1.0 for alternating series, got %f", ac)
	}

	// Constant series: zero by convention
	constant := []float64{5, 5, 5, 5, 5}
	if ac := Autocorrelation(constant, 1); ac != 0 {
		t.Errorf("expected 0 for constant series, got %f", ac)
	}
}

func TestSeasonalIndex(t *testing.T) {
	// Period-2 series: alternating high/low around a flat trend
	series := []float64{150, 50, 150, 50, 150, 50, 150, 50}

	index := SeasonalIndex(series, 2)
	if len(index) != 2 {
		t.Fatalf("expected 2 phases, got %d", len(index))
	}
	if index[0] <= 1 {
		t.Errorf("high phase index should exceed 1, got %f", index[0])
	}
	if index[1] >= 1 {
		t.Errorf("low phase index should be below 1, got %f", index[1])
	}
}
