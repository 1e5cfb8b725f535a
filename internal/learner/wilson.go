package learner

import "math"

// wilsonZ is the z-value for a 95% confidence interval.
const wilsonZ = 1.96

// WilsonInterval returns the Wilson score interval on a binomial win rate,
// clamped to [0,1]. Zero samples yield the uninformative (0,1) interval.
func WilsonInterval(wins, samples int) (low, high float64) {
	if samples == 0 {
		return 0.0, 1.0
	}

	n := float64(samples)
	p := float64(wins) / n
	z2 := wilsonZ * wilsonZ

	center := p + z2/(2*n)
	spread := wilsonZ * math.Sqrt((p*(1-p)+z2/(4*n))/n)
	denom := 1 + z2/n

	low = (center - spread) / denom
	high = (center + spread) / denom

	return clamp01(low), clamp01(high)
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
