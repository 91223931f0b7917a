// Package predict implements the successor predictors layered on the
// scoring engine and a benchmark harness that measures their hit rate
// over a window of a prime sequence.
package predict

import (
	"fmt"
	"sort"

	"gapscan/pkg/bucket"
	"gapscan/pkg/engine"
	"gapscan/pkg/freqmap"
)

// Default thresholds for the signature predictors, as fractions. The
// historical values were 3% and 20% residue failure rate.
const (
	DefaultCleanThreshold = 0.03
	DefaultMessyThreshold = 0.20
)

// DefaultSignatureDepth bounds how far down the ranking the chained
// signature looks for a messy candidate (ranks 2 through depth).
const DefaultSignatureDepth = 4

// DefaultCandidates is the size of the candidate pool handed to a
// predictor: the next N primes after p_n.
const DefaultCandidates = 10

// Observation is one prediction problem: a prime, the candidate pool for
// its successor, and the gap to the true successor. NextGap drives only
// the adaptive strategy switch; value predictors must not consult it.
type Observation struct {
	P          uint64
	Candidates []uint64
	NextGap    uint64
}

// Predictor picks the presumed successor of obs.P from the candidate
// pool.
type Predictor interface {
	Name() string
	Predict(obs Observation) uint64
}

// Candidate is one ranked pool entry.
type Candidate struct {
	Value    uint64
	Weighted float64
	Rate     freqmap.Rate
}

// rank scores every candidate with the weighted formula against the
// residue table and sorts ascending, smaller candidate first on ties.
func rank(t *engine.Table, p uint64, pool []uint64) []Candidate {
	ranked := make([]Candidate, 0, len(pool))
	for _, q := range pool {
		anchor := p + q
		gap := q - p
		rate, err := t.Score(anchor, gap)
		if err != nil {
			rate = freqmap.Infinite()
		}
		ranked = append(ranked, Candidate{
			Value:    q,
			Weighted: engine.Weighted(rate, gap),
			Rate:     rate,
		})
	}
	sort.Slice(ranked, func(i, j int) bool {
		if ranked[i].Weighted != ranked[j].Weighted {
			return ranked[i].Weighted < ranked[j].Weighted
		}
		return ranked[i].Value < ranked[j].Value
	})
	return ranked
}

// Weighted is the baseline predictor: lowest weighted score wins.
type Weighted struct {
	Residues *engine.Table
}

func (w *Weighted) Name() string { return "weighted" }

func (w *Weighted) Predict(obs Observation) uint64 {
	return rank(w.Residues, obs.P, obs.Candidates)[0].Value
}

// Signature starts from the weighted winner and overrides it with the
// rank-2 candidate when rank-1 looks clean and rank-2 looks messy.
type Signature struct {
	Residues  *engine.Table
	Clean     float64
	Messy     float64
	overrides uint64
}

func (s *Signature) Name() string { return "signature" }

// OverrideCount reports how many predictions the override rule changed.
func (s *Signature) OverrideCount() uint64 { return s.overrides }

func (s *Signature) Predict(obs Observation) uint64 {
	ranked := rank(s.Residues, obs.P, obs.Candidates)
	winner := ranked[0].Value
	if len(ranked) < 2 {
		return winner
	}
	if float64(ranked[0].Rate) < s.Clean && float64(ranked[1].Rate) > s.Messy {
		s.overrides++
		return ranked[1].Value
	}
	return winner
}

// ChainedSignature generalizes Signature: when rank-1 is clean, the
// first messy candidate among ranks 2..Depth takes the prediction.
type ChainedSignature struct {
	Residues  *engine.Table
	Clean     float64
	Messy     float64
	Depth     int
	overrides uint64
}

func (c *ChainedSignature) Name() string { return "chained-signature" }

// OverrideCount reports how many predictions the chain changed.
func (c *ChainedSignature) OverrideCount() uint64 { return c.overrides }

func (c *ChainedSignature) Predict(obs Observation) uint64 {
	ranked := rank(c.Residues, obs.P, obs.Candidates)
	winner := ranked[0].Value
	if float64(ranked[0].Rate) >= c.Clean {
		return winner
	}
	depth := c.Depth
	if depth <= 0 {
		depth = DefaultSignatureDepth
	}
	for i := 1; i < depth && i < len(ranked); i++ {
		if float64(ranked[i].Rate) > c.Messy {
			c.overrides++
			return ranked[i].Value
		}
	}
	return winner
}

// TieBreak sorts the pool by (coarse residue rate, fine residue rate,
// gap) and takes the lexicographic minimum. The fine table resolves ties
// the coarse modulus cannot see.
type TieBreak struct {
	Coarse *engine.Table
	Fine   *engine.Table
}

func (t *TieBreak) Name() string { return "tie-break" }

func (t *TieBreak) Predict(obs Observation) uint64 {
	type entry struct {
		value   uint64
		primary engine.ScoreTuple
		gap     float64
	}
	entries := make([]entry, 0, len(obs.Candidates))
	for _, q := range obs.Candidates {
		anchor := obs.P + q
		gap := q - obs.P
		coarse, err := t.Coarse.Score(anchor, gap)
		if err != nil {
			coarse = freqmap.Infinite()
		}
		fine, err := t.Fine.Score(anchor, gap)
		if err != nil {
			fine = freqmap.Infinite()
		}
		entries = append(entries, entry{
			value:   q,
			primary: engine.ScoreTuple{Primary: float64(coarse), Secondary: float64(fine)},
			gap:     float64(gap),
		})
	}
	sort.Slice(entries, func(i, j int) bool {
		if entries[i].primary != entries[j].primary {
			return entries[i].primary.Less(entries[j].primary)
		}
		return entries[i].gap < entries[j].gap
	})
	return entries[0].value
}

// Recursive scores every candidate against the tier matching its gap
// and sorts by (tiered rate, gap): cleanliness under the right modulus
// first, closeness as the tie-break.
type Recursive struct {
	Tiers *engine.Tiered
}

func (r *Recursive) Name() string { return "recursive" }

func (r *Recursive) Predict(obs Observation) uint64 {
	type entry struct {
		value uint64
		score engine.ScoreTuple
	}
	entries := make([]entry, 0, len(obs.Candidates))
	for _, q := range obs.Candidates {
		anchor := obs.P + q
		gap := q - obs.P
		rate, err := r.Tiers.Score(anchor, gap)
		if err != nil {
			rate = freqmap.Infinite()
		}
		entries = append(entries, entry{
			value: q,
			score: engine.ScoreTuple{Primary: float64(rate), Secondary: float64(gap)},
		})
	}
	sort.Slice(entries, func(i, j int) bool {
		if entries[i].score != entries[j].score {
			return entries[i].score.Less(entries[j].score)
		}
		return entries[i].value < entries[j].value
	})
	return entries[0].value
}

// Adaptive dispatches on the gap category of the observation: Large and
// Medium gaps go to the chained-signature solver, Small gaps to the
// tie-break solver.
type Adaptive struct {
	Gaps     bucket.Thresholds
	LargeGap Predictor
	SmallGap Predictor
}

func (a *Adaptive) Name() string { return "adaptive" }

func (a *Adaptive) Predict(obs Observation) uint64 {
	if a.Gaps.Categorize(obs.NextGap) == bucket.Small {
		return a.SmallGap.Predict(obs)
	}
	return a.LargeGap.Predict(obs)
}

// NewSignature builds a Signature with the default thresholds.
func NewSignature(residues *engine.Table) *Signature {
	return &Signature{Residues: residues, Clean: DefaultCleanThreshold, Messy: DefaultMessyThreshold}
}

// NewChainedSignature builds a ChainedSignature with defaults.
func NewChainedSignature(residues *engine.Table) *ChainedSignature {
	return &ChainedSignature{
		Residues: residues,
		Clean:    DefaultCleanThreshold,
		Messy:    DefaultMessyThreshold,
		Depth:    DefaultSignatureDepth,
	}
}

// ByName constructs a predictor from its wire/CLI name. The fine table
// may be nil for strategies that do not use it.
func ByName(name string, coarse, fine *engine.Table) (Predictor, error) {
	switch name {
	case "weighted", "":
		return &Weighted{Residues: coarse}, nil
	case "signature":
		return NewSignature(coarse), nil
	case "chained-signature":
		return NewChainedSignature(coarse), nil
	case "tie-break":
		if fine == nil {
			return nil, fmt.Errorf("predictor %q needs a fine-modulus table", name)
		}
		return &TieBreak{Coarse: coarse, Fine: fine}, nil
	case "recursive":
		if fine == nil {
			return nil, fmt.Errorf("predictor %q needs a fine-modulus table", name)
		}
		// A map serves the gaps exceeding its own modulus; everything
		// else falls back to the coarse table.
		tiered, err := engine.NewTiered([]engine.Tier{
			{MinGap: fine.Scheme().Modulus, Table: fine},
		}, coarse)
		if err != nil {
			return nil, err
		}
		return &Recursive{Tiers: tiered}, nil
	case "adaptive":
		if fine == nil {
			return nil, fmt.Errorf("predictor %q needs a fine-modulus table", name)
		}
		return &Adaptive{
			Gaps:     bucket.DefaultThresholds(),
			LargeGap: NewChainedSignature(coarse),
			SmallGap: &TieBreak{Coarse: coarse, Fine: fine},
		}, nil
	default:
		return nil, fmt.Errorf("unknown predictor %q", name)
	}
}
