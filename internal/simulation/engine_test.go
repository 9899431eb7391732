package simulation

import (
	"errors"
	"math/rand"
	"testing"

	"github.com/scenariq/scenariq/internal/core"
)

func TestEngine_Run_OutcomeCountAndBounds(t *testing.T) {
	engine := NewEngineWithSeed(42)

	params := Params{
		Name:        "bounds check",
		Type:        core.SimulationTypeRevenue,
		Iterations:  500,
		BaseRevenue: 100000,
		MinRevenue:  50000,
		MaxRevenue:  150000,
		RiskFactors: []RiskFactor{
			{Name: "supply shock", Impact: -0.4, Probability: 0.3},
			{Name: "new contract", Impact: 0.6, Probability: 0.2},
		},
	}

	out, err := engine.Run(params)
	if err != nil {
		t.Fatalf("Run failed: %v", err)
	}

	if len(out.Outcomes) != params.Iterations {
		t.Fatalf("expected %d outcomes, got %d", params.Iterations, len(out.Outcomes))
	}
	for i, v := range out.Outcomes {
		if v < params.MinRevenue || v > params.MaxRevenue {
			t.Errorf("outcome %d = %.2f outside [%.2f, %.2f]", i, v, params.MinRevenue, params.MaxRevenue)
		}
	}
}

func TestEngine_Run_RecessionScenario(t *testing.T) {
	engine := NewEngineWithSeed(7)

	params := Params{
		Iterations:  1000,
		BaseRevenue: 100000,
		MinRevenue:  0,
		MaxRevenue:  200000,
		RiskFactors: []RiskFactor{
			{Name: "recession", Impact: -0.2, Probability: 0.1},
		},
	}

	out, err := engine.Run(params)
	if err != nil {
		t.Fatalf("Run failed: %v", err)
	}

	// 10% chance of a -20% hit: mean should land between 90k and 100k
	if out.Metrics.Mean < 90000 || out.Metrics.Mean > 100000 {
		t.Errorf("expected mean in [90000, 100000], got %.2f", out.Metrics.Mean)
	}

	var pessimistic, expected float64
	for _, s := range out.Scenarios {
		switch s.Name {
		case "pessimistic":
			pessimistic = s.Metrics["value"].(float64)
		case "expected":
			expected = s.Metrics["value"].(float64)
		}
	}
	if pessimistic >= expected {
		t.Errorf("pessimistic %.2f should be < expected %.2f", pessimistic, expected)
	}
}

func TestEngine_Run_InvalidParams(t *testing.T) {
	engine := NewEngineWithSeed(1)

	tests := []struct {
		name   string
		params Params
	}{
		{"zero iterations", Params{Iterations: 0, MinRevenue: 0, MaxRevenue: 100}},
		{"negative iterations", Params{Iterations: -5, MinRevenue: 0, MaxRevenue: 100}},
		{"inverted bounds", Params{Iterations: 10, MinRevenue: 200, MaxRevenue: 100}},
		{"impact out of range", Params{
			Iterations: 10, MinRevenue: 0, MaxRevenue: 100,
			RiskFactors: []RiskFactor{{Name: "bad", Impact: 1.5, Probability: 0.5}},
		}},
		{"probability out of range", Params{
			Iterations: 10, MinRevenue: 0, MaxRevenue: 100,
			RiskFactors: []RiskFactor{{Name: "bad", Impact: 0.5, Probability: 1.5}},
		}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			out, err := engine.Run(tt.params)
			if !errors.Is(err, core.ErrInvalidParams) {
				t.Errorf("expected ErrInvalidParams, got %v", err)
			}
			if out != nil {
				t.Error("expected no partial result on invalid params")
			}
		})
	}
}

func TestEngine_Run_DependencyAdjustment(t *testing.T) {
	engine := NewEngineWithSeed(3)

	params := Params{
		Iterations:  200,
		BaseRevenue: 1000,
		MinRevenue:  0,
		MaxRevenue:  10000,
		Dependencies: []ExternalDependency{
			{Name: "fx rate", Weight: 100, Sample: func(rng *rand.Rand) float64 { return 1 }},
		},
	}

	out, err := engine.Run(params)
	if err != nil {
		t.Fatalf("Run failed: %v", err)
	}
	// Constant draw of 1 shifts every outcome by the weight
	for _, v := range out.Outcomes {
		if v != 1100 {
			t.Fatalf("expected 1100, got %.2f", v)
		}
	}
}

func TestPercentile_Monotonic(t *testing.T) {
	values := []float64{12, 7, 99, 42, 3, 18, 56, 71, 5, 30}

	p10 := Percentile(values, 0.1)
	p50 := Percentile(values, 0.5)
	p90 := Percentile(values, 0.9)

	if p10 > p50 || p50 > p90 {
		t.Errorf("percentiles not monotonic: p10=%.2f p50=%.2f p90=%.2f", p10, p50, p90)
	}

	// Idempotent: same input, same result
	if Percentile(values, 0.5) != p50 {
		t.Error("percentile is not deterministic")
	}
}

func TestPercentile_Interpolation(t *testing.T) {
	values := []float64{10, 20, 30, 40}

	// rank = 0.5 * 3 = 1.5 -> halfway between 20 and 30
	if got := Percentile(values, 0.5); got != 25 {
		t.Errorf("expected 25, got %.2f", got)
	}
	if got := Percentile(values, 0); got != 10 {
		t.Errorf("expected 10, got %.2f", got)
	}
	if got := Percentile(values, 1); got != 40 {
		t.Errorf("expected 40, got %.2f", got)
	}
}

func TestStdDev_SampleDenominator(t *testing.T) {
	values := []float64{2, 4, 4, 4, 5, 5, 7, 9}

	// Population stddev of this set is exactly 2
	if got := StdDev(values, false); got < 1.99 || got > 2.01 {
		t.Errorf("population stddev: expected 2, got %.4f", got)
	}
	sample := StdDev(values, true)
	if sample <= 2 {
		t.Errorf("sample stddev should exceed population stddev, got %.4f", sample)
	}
}

func TestConfidenceIntervals_Empirical(t *testing.T) {
	values := make([]float64, 100)
	for i := range values {
		values[i] = float64(i + 1) // 1..100
	}

	cis := ConfidenceIntervals(values, []float64{0.9})
	if len(cis) != 1 {
		t.Fatalf("expected 1 interval, got %d", len(cis))
	}
	ci := cis[0]
	if ci.ConfidenceLevel != 0.9 {
		t.Errorf("wrong level: %f", ci.ConfidenceLevel)
	}
	// 90% interval over 1..100: roughly [5.95, 95.05]
	if ci.Lower < 5 || ci.Lower > 7 {
		t.Errorf("lower bound out of range: %.2f", ci.Lower)
	}
	if ci.Upper < 94 || ci.Upper > 96 {
		t.Errorf("upper bound out of range: %.2f", ci.Upper)
	}
	if ci.Lower >= ci.Upper {
		t.Errorf("lower %.2f >= upper %.2f", ci.Lower, ci.Upper)
	}
}

func TestHistogram_ProbabilitiesSumToOne(t *testing.T) {
	values := []float64{1, 2, 3, 4, 5, 6, 7, 8, 9, 10}

	bins := Histogram(values, 5)
	if len(bins) != 5 {
		t.Fatalf("expected 5 bins, got %d", len(bins))
	}
	var total float64
	for _, b := range bins {
		total += b.Probability
	}
	if total < 0.999 || total > 1.001 {
		t.Errorf("probabilities should sum to 1, got %.4f", total)
	}
}

func TestHistogram_Degenerate(t *testing.T) {
	bins := Histogram([]float64{5, 5, 5}, 10)
	if len(bins) != 1 {
		t.Fatalf("expected single bin for degenerate distribution, got %d", len(bins))
	}
	if bins[0].Probability != 1 {
		t.Errorf("expected probability 1, got %.2f", bins[0].Probability)
	}
}
