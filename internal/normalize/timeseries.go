package normalize

import (
	"fmt"
	"math"

	"github.com/scenariq/scenariq/internal/simulation"
)

// Trend returns the centered moving average of series with the given window.
// The result has len(series)-window+1 points. Windows larger than the series
// (or < 1) yield nil.
func Trend(series []float64, window int) []float64 {
	if window < 1 || window > len(series) {
		return nil
	}
	out := make([]float64, 0, len(series)-window+1)
	var sum float64
	for i, v := range series {
		sum += v
		if i >= window {
			sum -= series[i-window]
		}
		if i >= window-1 {
			out = append(out, sum/float64(window))
		}
	}
	return out
}

// SeasonalIndex computes the per-phase seasonal index for the given period by
// detrending the series with a period-length moving average and averaging the
// detrended ratios phase by phase. Index 1.0 means no seasonal effect.
func SeasonalIndex(series []float64, period int) []float64 {
	if period < 2 || len(series) < 2*period {
		return nil
	}

	trend := Trend(series, period)
	offset := (period - 1) / 2

	sums := make([]float64, period)
	counts := make([]int, period)
	for i, t := range trend {
		if t == 0 {
			continue
		}
		pos := i + offset
		if pos >= len(series) {
			break
		}
		phase := pos % period
		sums[phase] += series[pos] / t
		counts[phase]++
	}

	index := make([]float64, period)
	for i := range index {
		if counts[i] > 0 {
			index[i] = sums[i] / float64(counts[i])
		} else {
			index[i] = 1
		}
	}
	return index
}

// Autocorrelation returns the Pearson correlation of series against its
// lag-k shift. Returns 0 when the series is too short or constant.
func Autocorrelation(series []float64, lag int) float64 {
	if lag < 1 || len(series) <= lag+1 {
		return 0
	}
	a := series[:len(series)-lag]
	b := series[lag:]

	meanA := simulation.Mean(a)
	meanB := simulation.Mean(b)

	var cov, varA, varB float64
	for i := range a {
		da := a[i] - meanA
		db := b[i] - meanB
		cov += da * db
		varA += da * da
		varB += db * db
	}
	if varA == 0 || varB == 0 {
		return 0
	}
	return cov / math.Sqrt(varA*varB)
}

// seasonalityStrength is the mean absolute deviation of the seasonal index
// from 1.0 — how far the phases swing around the trend
func seasonalityStrength(index []float64) float64 {
	if len(index) == 0 {
		return 0
	}
	var sum float64
	for _, v := range index {
		sum += math.Abs(v - 1)
	}
	return sum / float64(len(index))
}

// SeriesInsights derives textual business insights from a numeric series.
// period <= 0 disables the seasonal analysis. Thresholds are fixed:
// seasonality strength >0.3 strong / >0.1 moderate / else low; coefficient
// of variation <0.1 excellent consistency / <0.3 good / else high variability.
func SeriesInsights(series []float64, period int) []string {
	if len(series) < 2 {
		return nil
	}
	var insights []string

	mean := simulation.Mean(series)
	if mean != 0 {
		cv := simulation.StdDev(series, true) / math.Abs(mean)
		switch {
		case cv < 0.1:
			insights = append(insights, fmt.Sprintf("excellent consistency (coefficient of variation %.2f)", cv))
		case cv < 0.3:
			insights = append(insights, fmt.Sprintf("good consistency (coefficient of variation %.2f)", cv))
		default:
			insights = append(insights, fmt.Sprintf("high variability (coefficient of variation %.2f)", cv))
		}
	}

	if period > 1 {
		if index := SeasonalIndex(series, period); index != nil {
			strength := seasonalityStrength(index)
			switch {
			case strength > 0.3:
				insights = append(insights, fmt.Sprintf("strong seasonality over period %d (strength %.2f)", period, strength))
			case strength > 0.1:
				insights = append(insights, fmt.Sprintf("moderate seasonality over period %d (strength %.2f)", period, strength))
			default:
				insights = append(insights, fmt.Sprintf("low seasonality over period %d (strength %.2f)", period, strength))
			}
		}
	}

	if ac := Autocorrelation(series, 1); math.Abs(ac) > 0.5 {
		direction := "positive"
		if ac < 0 {
			direction = "negative"
		}
		insights = append(insights, fmt.Sprintf("%s lag-1 autocorrelation (%.2f): adjacent periods move together", direction, ac))
	}

	if trend := Trend(series, minInt(4, len(series))); len(trend) >= 2 {
		first, last := trend[0], trend[len(trend)-1]
		if first != 0 {
			change := (last - first) / math.Abs(first)
			if change > 0.05 {
				insights = append(insights, fmt.Sprintf("upward trend (%.0f%% over the series)", change*100))
			} else if change < -0.05 {
				insights = append(insights, fmt.Sprintf("downward trend (%.0f%% over the series)", change*100))
			}
		}
	}

	return insights
}

func minInt(a, b int) int {
	if a < b {
		return a
	}
	return b
}
