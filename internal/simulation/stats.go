package simulation

import (
	"math"
	"sort"

	"github.com/scenariq/scenariq/internal/core"
)

// Mean returns the arithmetic mean of values, 0 for an empty slice
func Mean(values []float64) float64 {
	if len(values) == 0 {
		return 0
	}
	var sum float64
	for _, v := range values {
		sum += v
	}
	return sum / float64(len(values))
}

// Median returns the 50th percentile of values
func Median(values []float64) float64 {
	return Percentile(values, 0.5)
}

// StdDev returns the standard deviation of values. With sample=true the
// n-1 denominator is used; otherwise the population denominator n.
func StdDev(values []float64, sample bool) float64 {
	n := len(values)
	if n < 2 {
		return 0
	}
	mean := Mean(values)
	var sum float64
	for _, v := range values {
		d := v - mean
		sum += d * d
	}
	denom := float64(n)
	if sample {
		denom = float64(n - 1)
	}
	return math.Sqrt(sum / denom)
}

// Percentile returns the p-th percentile (p in [0,1]) of values using linear
// interpolation between order statistics. Returns 0 for an empty slice.
func Percentile(values []float64, p float64) float64 {
	if len(values) == 0 {
		return 0
	}
	sorted := make([]float64, len(values))
	copy(sorted, values)
	sort.Float64s(sorted)
	return percentileSorted(sorted, p)
}

// percentileSorted is Percentile over an already-sorted slice
func percentileSorted(sorted []float64, p float64) float64 {
	if len(sorted) == 0 {
		return 0
	}
	if p <= 0 {
		return sorted[0]
	}
	if p >= 1 {
		return sorted[len(sorted)-1]
	}

	rank := p * float64(len(sorted)-1)
	lo := int(math.Floor(rank))
	hi := int(math.Ceil(rank))
	if lo == hi {
		return sorted[lo]
	}
	frac := rank - float64(lo)
	return sorted[lo] + (sorted[hi]-sorted[lo])*frac
}

// ConfidenceIntervals computes empirical percentile intervals for the given
// confidence levels (e.g. 0.95 -> [P2.5, P97.5]). The empirical method stays
// valid for skewed outcome distributions where a normal approximation would
// not.
func ConfidenceIntervals(values []float64, levels []float64) []core.ConfidenceInterval {
	if len(values) == 0 || len(levels) == 0 {
		return nil
	}
	sorted := make([]float64, len(values))
	copy(sorted, values)
	sort.Float64s(sorted)

	intervals := make([]core.ConfidenceInterval, 0, len(levels))
	for _, level := range levels {
		if level <= 0 || level >= 1 {
			continue
		}
		tail := (1 - level) / 2
		intervals = append(intervals, core.ConfidenceInterval{
			Lower:           percentileSorted(sorted, tail),
			Upper:           percentileSorted(sorted, 1-tail),
			ConfidenceLevel: level,
		})
	}
	return intervals
}

// Histogram bins values into count equal-width bins and returns each bin's
// empirical probability. Degenerate distributions (all values equal) collapse
// into a single bin with probability 1.
func Histogram(values []float64, count int) []core.DistributionBin {
	if len(values) == 0 || count <= 0 {
		return nil
	}

	min, max := values[0], values[0]
	for _, v := range values {
		if v < min {
			min = v
		}
		if v > max {
			max = v
		}
	}

	if min == max {
		return []core.DistributionBin{{Lower: min, Upper: max, Probability: 1}}
	}

	width := (max - min) / float64(count)
	counts := make([]int, count)
	for _, v := range values {
		idx := int((v - min) / width)
		if idx >= count {
			idx = count - 1
		}
		counts[idx]++
	}

	bins := make([]core.DistributionBin, count)
	for i, c := range counts {
		bins[i] = core.DistributionBin{
			Lower:       min + float64(i)*width,
			Upper:       min + float64(i+1)*width,
			Probability: float64(c) / float64(len(values)),
		}
	}
	return bins
}
