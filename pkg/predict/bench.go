package predict

import (
	"go.uber.org/zap"

	"gapscan/pkg/primes"
)

// BenchConfig describes one benchmark window.
type BenchConfig struct {
	// Start is the first sequence index benchmarked.
	Start int
	// Count is the number of primes predicted.
	Count int
	// Candidates is the pool size per prediction. Zero means
	// DefaultCandidates.
	Candidates    int
	ProgressEvery int
	Logger        *zap.Logger
}

// BenchResult tallies a benchmark run.
type BenchResult struct {
	Predictions uint64 `json:"predictions"`
	Hits        uint64 `json:"hits"`
	Overrides   uint64 `json:"overrides,omitempty"`
}

// HitRate is the fraction of predictions that named the true successor.
func (r BenchResult) HitRate() float64 {
	if r.Predictions == 0 {
		return 0
	}
	return float64(r.Hits) / float64(r.Predictions)
}

type overrideCounter interface {
	OverrideCount() uint64
}

// Run benchmarks p over cfg's window of seq. For each index i the pool
// is the next Candidates primes after seq[i] and the truth is seq[i+1].
// The window plus the pool must fit in the sequence, with two indexes of
// slack, or primes.ErrInsufficientData is returned before any work.
func Run(seq *primes.Sequence, p Predictor, cfg BenchConfig) (BenchResult, error) {
	pool := cfg.Candidates
	if pool <= 0 {
		pool = DefaultCandidates
	}
	if err := seq.EnsureWindow(cfg.Start, cfg.Count, pool+2); err != nil {
		return BenchResult{}, err
	}

	var res BenchResult
	end := cfg.Start + cfg.Count
	candidates := make([]uint64, pool)
	for i := cfg.Start; i < end; i++ {
		pn := seq.At(i)
		truth := seq.At(i + 1)
		for j := 0; j < pool; j++ {
			candidates[j] = seq.At(i + 1 + j)
		}
		obs := Observation{P: pn, Candidates: candidates, NextGap: truth - pn}

		res.Predictions++
		if p.Predict(obs) == truth {
			res.Hits++
		}

		if cfg.Logger != nil && cfg.ProgressEvery > 0 {
			done := i - cfg.Start + 1
			if done%cfg.ProgressEvery == 0 {
				cfg.Logger.Info("bench progress",
					zap.String("predictor", p.Name()),
					zap.Int("done", done),
					zap.Int("total", cfg.Count),
					zap.Float64("hit_rate", res.HitRate()))
			}
		}
	}
	if oc, ok := p.(overrideCounter); ok {
		res.Overrides = oc.OverrideCount()
	}
	return res, nil
}
