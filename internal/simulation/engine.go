// Package simulation implements the Monte Carlo engine that turns risk
// factors and revenue bounds into outcome distributions and scenarios.
package simulation

import (
	"fmt"
	"math/rand"
	"sort"
	"time"

	"github.com/scenariq/scenariq/internal/core"
)

// RiskFactor is one probabilistic event that can move an outcome
type RiskFactor struct {
	Name        string  `json:"name"`
	Impact      float64 `json:"impact"`      // multiplier delta in [-1, 1]
	Probability float64 `json:"probability"` // chance of occurring per iteration, [0, 1]
}

// ExternalDependency adjusts each iteration by weight times a per-iteration
// draw. Sample overrides the draw when set; otherwise a normal draw scaled by
// Volatility is used.
type ExternalDependency struct {
	Name       string  `json:"name"`
	Weight     float64 `json:"weight"`
	Volatility float64 `json:"volatility,omitempty"`

	Sample func(rng *rand.Rand) float64 `json:"-"`
}

// Params configures one Monte Carlo run
type Params struct {
	Name             string               `json:"name"`
	Type             core.SimulationType  `json:"simulation_type"`
	Iterations       int                  `json:"iterations"`
	BaseRevenue      float64              `json:"base_revenue"`
	MinRevenue       float64              `json:"min_revenue"`
	MaxRevenue       float64              `json:"max_revenue"`
	RiskFactors      []RiskFactor         `json:"risk_factors"`
	Dependencies     []ExternalDependency `json:"dependencies,omitempty"`
	ConfidenceLevels []float64            `json:"confidence_levels,omitempty"` // defaults to 0.90, 0.95
	HistogramBins    int                  `json:"histogram_bins,omitempty"`    // defaults to 10
}

// Validate checks the input constraints. Invalid params fail fast; no
// partial simulation is ever produced.
func (p *Params) Validate() error {
	if p.Iterations < 1 {
		return fmt.Errorf("%w: iterations must be >= 1, got %d", core.ErrInvalidParams, p.Iterations)
	}
	if p.MinRevenue > p.MaxRevenue {
		return fmt.Errorf("%w: minRevenue %.2f > maxRevenue %.2f", core.ErrInvalidParams, p.MinRevenue, p.MaxRevenue)
	}
	for _, rf := range p.RiskFactors {
		if rf.Impact < -1 || rf.Impact > 1 {
			return fmt.Errorf("%w: risk factor %q impact %.2f outside [-1,1]", core.ErrInvalidParams, rf.Name, rf.Impact)
		}
		if rf.Probability < 0 || rf.Probability > 1 {
			return fmt.Errorf("%w: risk factor %q probability %.2f outside [0,1]", core.ErrInvalidParams, rf.Name, rf.Probability)
		}
	}
	return nil
}

// Metrics summarizes one run's outcome sample
type Metrics struct {
	Mean   float64 `json:"mean"`
	Median float64 `json:"median"`
	StdDev float64 `json:"std_dev"` // sample (n-1) standard deviation
	Min    float64 `json:"min"`
	Max    float64 `json:"max"`
}

// Output is the raw result of one engine run
type Output struct {
	Outcomes            []float64                 `json:"outcomes"`
	Metrics             Metrics                   `json:"metrics"`
	Scenarios           []core.Scenario           `json:"scenarios"`
	ConfidenceIntervals []core.ConfidenceInterval `json:"confidence_intervals"`
	Distribution        []core.DistributionBin    `json:"distribution"`
	Sensitivity         []core.SensitivityEntry   `json:"sensitivity"`
}

// Engine runs Monte Carlo simulations. It holds only its RNG; each Run is a
// pure function of its params plus that RNG.
type Engine struct {
	rng *rand.Rand
}

// NewEngine creates an engine seeded from the current time
func NewEngine() *Engine {
	return NewEngineWithSeed(time.Now().UnixNano())
}

// NewEngineWithSeed creates an engine with a fixed seed (for reproducible runs)
func NewEngineWithSeed(seed int64) *Engine {
	return &Engine{rng: rand.New(rand.NewSource(seed))}
}

// Run executes the simulation and derives metrics and scenarios.
// Per iteration: start from baseRevenue; each risk factor that fires
// multiplies the running value by (1+impact); each dependency adds
// weight * draw; the result is clamped to [minRevenue, maxRevenue].
func (e *Engine) Run(params Params) (*Output, error) {
	if err := params.Validate(); err != nil {
		return nil, err
	}

	levels := params.ConfidenceLevels
	if len(levels) == 0 {
		levels = []float64{0.90, 0.95}
	}
	bins := params.HistogramBins
	if bins <= 0 {
		bins = 10
	}

	outcomes := make([]float64, params.Iterations)
	for i := 0; i < params.Iterations; i++ {
		value := params.BaseRevenue

		for _, rf := range params.RiskFactors {
			if e.rng.Float64() < rf.Probability {
				value *= 1 + rf.Impact
			}
		}

		for _, dep := range params.Dependencies {
			draw := dep.Volatility * e.rng.NormFloat64()
			if dep.Sample != nil {
				draw = dep.Sample(e.rng)
			}
			value += dep.Weight * draw
		}

		if value < params.MinRevenue {
			value = params.MinRevenue
		} else if value > params.MaxRevenue {
			value = params.MaxRevenue
		}
		outcomes[i] = value
	}

	metrics := Metrics{
		Mean:   Mean(outcomes),
		Median: Median(outcomes),
		StdDev: StdDev(outcomes, true),
		Min:    Percentile(outcomes, 0),
		Max:    Percentile(outcomes, 1),
	}

	return &Output{
		Outcomes:            outcomes,
		Metrics:             metrics,
		Scenarios:           deriveScenarios(outcomes, params.RiskFactors),
		ConfidenceIntervals: ConfidenceIntervals(outcomes, levels),
		Distribution:        Histogram(outcomes, bins),
		Sensitivity:         sensitivity(params),
	}, nil
}

// deriveScenarios builds the three canonical scenarios from percentile bands:
// optimistic P90, expected P50, pessimistic P10. Each carries the risk
// factors that plausibly generate it.
func deriveScenarios(outcomes []float64, factors []RiskFactor) []core.Scenario {
	sorted := make([]float64, len(outcomes))
	copy(sorted, outcomes)
	sort.Float64s(sorted)

	positive, negative, ranked := tagFactors(factors)

	return []core.Scenario{
		{
			ID:          "optimistic",
			Name:        "optimistic",
			Probability: 0.10,
			Metrics: map[string]interface{}{
				"value":        percentileSorted(sorted, 0.90),
				"percentile":   90,
				"risk_factors": positive,
			},
		},
		{
			ID:          "expected",
			Name:        "expected",
			Probability: 0.80,
			Metrics: map[string]interface{}{
				"value":        percentileSorted(sorted, 0.50),
				"percentile":   50,
				"risk_factors": ranked,
			},
		},
		{
			ID:          "pessimistic",
			Name:        "pessimistic",
			Probability: 0.10,
			Metrics: map[string]interface{}{
				"value":        percentileSorted(sorted, 0.10),
				"percentile":   10,
				"risk_factors": negative,
			},
		},
	}
}

// tagFactors splits factor names into positive-impact, negative-impact, and
// absolute-impact-ranked lists
func tagFactors(factors []RiskFactor) (positive, negative, ranked []string) {
	byImpact := make([]RiskFactor, len(factors))
	copy(byImpact, factors)
	sort.SliceStable(byImpact, func(i, j int) bool {
		ai, aj := byImpact[i].Impact, byImpact[j].Impact
		if ai < 0 {
			ai = -ai
		}
		if aj < 0 {
			aj = -aj
		}
		return ai > aj
	})

	for _, f := range byImpact {
		ranked = append(ranked, f.Name)
		if f.Impact > 0 {
			positive = append(positive, f.Name)
		} else if f.Impact < 0 {
			negative = append(negative, f.Name)
		}
	}
	return positive, negative, ranked
}

// sensitivity estimates each input's outcome impact as the expected
// multiplier shift it contributes (impact * probability * base), plus the
// weighted volatility of each dependency.
func sensitivity(params Params) []core.SensitivityEntry {
	var entries []core.SensitivityEntry
	for _, rf := range params.RiskFactors {
		entries = append(entries, core.SensitivityEntry{
			Parameter: rf.Name,
			Impact:    rf.Impact * rf.Probability * params.BaseRevenue,
		})
	}
	for _, dep := range params.Dependencies {
		entries = append(entries, core.SensitivityEntry{
			Parameter: dep.Name,
			Impact:    dep.Weight * dep.Volatility,
		})
	}
	sort.SliceStable(entries, func(i, j int) bool {
		ai, aj := entries[i].Impact, entries[j].Impact
		if ai < 0 {
			ai = -ai
		}
		if aj < 0 {
			aj = -aj
		}
		return ai > aj
	})
	return entries
}
