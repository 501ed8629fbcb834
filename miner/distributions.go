package miner

import (
	"math"
	"math/rand"
	"sort"
)

// piecewise is a piecewise-constant distribution over equally wide bins
// starting at zero.
type piecewise struct {
	width      float64
	cumulative []float64
}

func newPiecewise(width float64, weights []float64) *piecewise {
	p := &piecewise{width: width, cumulative: make([]float64, len(weights))}
	total := 0.0
	for i, w := range weights {
		total += w
		p.cumulative[i] = total
	}
	for i := range p.cumulative {
		p.cumulative[i] /= total
	}
	return p
}

// sample draws a bin by weight and a uniform value inside it.
func (p *piecewise) sample(r *rand.Rand) float64 {
	u := r.Float64()
	bin := sort.SearchFloat64s(p.cumulative, u)
	if bin >= len(p.cumulative) {
		bin = len(p.cumulative) - 1
	}
	return (float64(bin) + r.Float64()) * p.width
}

// geometric returns the number of failures before the first success of a
// Bernoulli trial with probability p.
func geometric(r *rand.Rand, p float64) float64 {
	if p >= 1 {
		return 0
	}
	u := 1 - r.Float64()
	return math.Floor(math.Log(u) / math.Log1p(-p))
}

// Block size histograms in KB: Bitcoin bins are 5 KB wide up to 1000 KB,
// Litecoin and Dogecoin bins 0.5 KB wide up to 100 KB.
var (
	bitcoinWeights = []float64{
		4.96, 0.21, 0.17, 0.25, 0.27, 0.3, 0.34, 0.26, 0.26, 0.33, 0.35, 0.49, 0.42, 0.42, 0.48, 0.41,
		0.46, 0.45, 0.58, 0.58, 0.57, 0.52, 0.54, 0.47, 0.53, 0.56, 0.5, 0.48, 0.53, 0.54, 0.49, 0.51,
		0.56, 0.53, 0.56, 0.5, 0.47, 0.45, 0.52, 0.43, 0.46, 0.47, 0.6, 0.53, 0.42, 0.48, 0.55, 0.49,
		0.63, 2.38, 0.47, 0.53, 0.43, 0.51, 0.44, 0.46, 0.44, 0.41, 0.47, 0.46, 0.45, 0.37, 0.49, 0.4,
		0.41, 0.41, 0.41, 0.37, 0.43, 0.47, 0.48, 0.37, 0.4, 0.46, 0.34, 0.35, 0.37, 0.36, 0.37, 0.31,
		0.35, 0.39, 0.34, 0.38, 0.29, 0.41, 0.37, 0.34, 0.36, 0.34, 0.29, 0.3, 0.36, 0.26, 0.29, 0.31,
		0.3, 0.29, 0.35, 0.5, 0.28, 0.37, 0.31, 0.33, 0.32, 0.28, 0.34, 0.31, 0.26, 0.24, 0.22, 0.25,
		0.24, 0.25, 0.26, 0.25, 0.24, 0.33, 0.24, 0.23, 0.2, 0.24, 0.26, 0.27, 0.27, 0.21, 0.22, 0.3,
		0.25, 0.21, 0.26, 0.21, 0.21, 0.21, 0.23, 0.48, 0.2, 0.19, 0.21, 0.2, 0.17, 0.19, 0.21, 0.22,
		0.24, 0.25, 0.23, 0.31, 0.46, 8.32, 0.22, 0.11, 0.13, 0.17, 0.12, 0.16, 0.15, 0.16, 0.19, 0.21,
		0.18, 0.24, 0.19, 0.2, 0.16, 0.17, 0.19, 0.17, 0.22, 0.33, 0.17, 0.22, 0.25, 0.19, 0.2, 0.17,
		0.28, 0.25, 0.24, 0.25, 0.3, 0.34, 0.46, 0.49, 0.67, 3.13, 2.94, 0.14, 0.36, 3.88, 0.07, 0.11,
		0.11, 0.11, 0.26, 0.12, 0.13, 0.88, 5.84, 4.11,
	}
	litecoinWeights = []float64{
		38.91, 5.76, 4.97, 4.11, 3.4, 3.13, 2.77, 2.36, 2.24, 2.04, 1.85, 1.74, 1.55, 1.47, 1.32, 1.19,
		1.1, 1.0, 0.89, 0.87, 0.82, 0.75, 0.73, 0.63, 0.61, 0.61, 0.53, 0.52, 0.52, 0.56, 0.47, 0.48,
		0.45, 0.39, 0.4, 0.37, 0.37, 0.34, 0.32, 0.34, 0.32, 0.27, 0.32, 0.32, 0.3, 0.26, 0.25, 0.35,
		0.89, 0.18, 0.12, 0.11, 0.1, 0.1, 0.09, 0.1, 0.09, 0.1, 0.09, 0.1, 0.08, 0.08, 0.07, 0.07,
		0.05, 0.07, 0.07, 0.06, 0.06, 0.06, 0.05, 0.05, 0.04, 0.05, 0.03, 0.05, 0.04, 0.04, 0.04, 0.04,
		0.04, 0.05, 0.03, 0.03, 0.04, 0.02, 0.03, 0.02, 0.02, 0.03, 0.03, 0.03, 0.03, 0.03, 0.03, 0.02,
		0.05, 0.09, 0.01, 0.02, 0.02, 0.02, 0.01, 0.01, 0.01, 0.02, 0.01, 0.01, 0.02, 0.01, 0.01, 0.01,
		0.01, 0.01, 0.01, 0.01, 0.02, 0.01, 0.01, 0.01, 0.01, 0.02, 0.0, 0.01, 0.01, 0.01, 0.01, 0.01,
		0.01, 0.0, 0.01, 0.01, 0.01, 0.01, 0.01, 0.01, 0.01, 0.01, 0.0, 0.01, 0.01, 0.0, 0.0, 0.01,
		0.01, 0.01, 0.0, 0.0, 0.0, 0.01, 0.01, 0.01, 0.01, 0.01, 0.0, 0.0, 0.0, 0.01, 0.0, 0.01,
		0.0, 0.0, 0.01, 0.0, 0.0, 0.0, 0.01, 0.01, 0.0, 0.0, 0.0, 0.0, 0.0, 0.0, 0.0, 0.0,
		0.01, 0.0, 0.01, 0.0, 0.0, 0.0, 0.0, 0.0, 0.0, 0.0, 0.0, 0.0, 0.0, 0.0, 0.0, 0.01,
		0.0, 0.0, 0.0, 0.0, 0.01, 0.0, 0.0, 0.24,
	}
	dogecoinWeights = []float64{
		16.38, 9.75, 7.9, 6.45, 5.51, 4.78, 4.13, 3.52, 3.12, 2.76, 2.48, 2.2, 1.88, 1.77, 1.59, 1.47,
		1.31, 1.22, 1.11, 1.02, 0.92, 0.86, 0.76, 0.73, 0.68, 0.61, 0.6, 0.56, 0.53, 0.5, 0.52, 0.51,
		0.51, 0.47, 0.46, 0.43, 0.41, 0.4, 0.38, 0.36, 0.34, 0.33, 0.3, 0.29, 0.27, 0.25, 0.27, 0.24,
		0.23, 0.2, 0.2, 0.19, 0.17, 0.16, 0.16, 0.15, 0.14, 0.12, 0.14, 0.13, 0.11, 0.13, 0.11, 0.11,
		0.09, 0.1, 0.08, 0.08, 0.07, 0.07, 0.07, 0.07, 0.06, 0.07, 0.07, 0.05, 0.06, 0.06, 0.05, 0.06,
		0.06, 0.05, 0.04, 0.04, 0.04, 0.04, 0.04, 0.03, 0.04, 0.04, 0.03, 0.03, 0.03, 0.03, 0.03, 0.03,
		0.03, 0.04, 0.04, 0.03, 0.02, 0.02, 0.02, 0.02, 0.02, 0.02, 0.02, 0.02, 0.02, 0.02, 0.02, 0.02,
		0.02, 0.02, 0.02, 0.01, 0.02, 0.02, 0.02, 0.02, 0.02, 0.02, 0.02, 0.02, 0.02, 0.02, 0.02, 0.02,
		0.02, 0.01, 0.02, 0.01, 0.02, 0.01, 0.01, 0.01, 0.01, 0.02, 0.01, 0.02, 0.02, 0.02, 0.02, 0.01,
		0.01, 0.02, 0.01, 0.01, 0.02, 0.01, 0.02, 0.01, 0.01, 0.01, 0.01, 0.01, 0.01, 0.01, 0.01, 0.01,
		0.01, 0.01, 0.01, 0.01, 0.01, 0.01, 0.01, 0.01, 0.01, 0.01, 0.01, 0.01, 0.01, 0.01, 0.01, 0.01,
		0.01, 0.01, 0.01, 0.01, 0.01, 0.01, 0.01, 0.01, 0.01, 0.01, 0.01, 0.01, 0.01, 0.01, 0.01, 0.01,
		0.01, 0.01, 0.01, 0.01, 0.01, 0.01, 0.02, 0.41,
	}
	attackerWeights = []float64{
		3.58, 0.33, 0.35, 0.4, 0.38, 0.4, 0.53, 0.46, 0.43, 0.48, 0.56, 0.69, 0.62, 0.62, 0.63, 0.62,
		0.62, 0.63, 0.73, 1.96, 0.75, 0.76, 0.73, 0.64, 0.66, 0.66, 0.66, 0.7, 0.66, 0.73, 0.68, 0.66,
		0.67, 0.66, 0.72, 0.68, 0.64, 0.61, 0.63, 0.58, 0.66, 0.6, 0.7, 0.62, 0.49, 0.59, 0.58, 0.59,
		0.63, 1.59, 0.6, 0.58, 0.54, 0.62, 0.55, 0.54, 0.52, 0.5, 0.53, 0.55, 0.49, 0.47, 0.51, 0.49,
		0.52, 0.49, 0.49, 0.49, 0.56, 0.75, 0.51, 0.42, 0.46, 0.47, 0.43, 0.38, 0.39, 0.39, 0.41, 0.43,
		0.38, 0.41, 0.36, 0.41, 0.38, 0.42, 0.42, 0.37, 0.41, 0.41, 0.34, 0.32, 0.37, 0.32, 0.34, 0.34,
		0.34, 0.32, 0.41, 0.62, 0.33, 0.4, 0.32, 0.32, 0.29, 0.35, 0.32, 0.32, 0.28, 0.26, 0.25, 0.29,
		0.26, 0.27, 0.27, 0.24, 0.28, 0.3, 0.27, 0.23, 0.23, 0.28, 0.25, 0.29, 0.24, 0.21, 0.26, 0.29,
		0.23, 0.2, 0.24, 0.25, 0.23, 0.21, 0.26, 0.38, 0.24, 0.21, 0.25, 0.23, 0.22, 0.22, 0.24, 0.23,
		0.23, 0.26, 0.24, 0.28, 0.64, 9.96, 0.15, 0.11, 0.11, 0.1, 0.1, 0.1, 0.11, 0.11, 0.12, 0.13,
		0.12, 0.16, 0.12, 0.13, 0.12, 0.1, 0.13, 0.13, 0.13, 0.25, 0.1, 0.14, 0.14, 0.12, 0.14, 0.14,
		0.17, 0.15, 0.19, 0.38, 0.2, 0.19, 0.24, 0.26, 0.36, 1.58, 1.49, 0.1, 0.2, 1.98, 0.05, 0.08,
		0.07, 0.07, 0.14, 0.08, 0.08, 0.53, 3.06, 3.31,
	}
)

func sizeDistribution(c Cryptocurrency, attacker bool) *piecewise {
	switch {
	case attacker:
		return newPiecewise(5, attackerWeights)
	case c == Litecoin:
		return newPiecewise(0.5, litecoinWeights)
	case c == Dogecoin:
		return newPiecewise(0.5, dogecoinWeights)
	default:
		return newPiecewise(5, bitcoinWeights)
	}
}
