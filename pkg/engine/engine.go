// Package engine wraps loaded frequency maps behind scoring lookups: a
// single table per scheme, plus a tiered selector that picks a table by
// gap magnitude.
package engine

import (
	"errors"
	"math"

	"gapscan/pkg/bucket"
	"gapscan/pkg/freqmap"
)

// ErrNotLoaded reports a score lookup against an engine whose backing map
// was never loaded. This is a programmer error and is never papered over
// with a default rate.
var ErrNotLoaded = errors.New("engine: score map not loaded")

// Table is one loaded score map. Lookups are read-only and side-effect
// free; a bucket absent from the backing data scores as infinity, the
// same sentinel an impossible residue class carries by construction.
type Table struct {
	scheme bucket.Scheme
	scores map[bucket.Key]freqmap.Rate
}

// NewTable wraps an already decoded score map.
func NewTable(scheme bucket.Scheme, scores map[bucket.Key]freqmap.Rate) (*Table, error) {
	if len(scores) == 0 {
		return nil, ErrNotLoaded
	}
	return &Table{scheme: scheme, scores: scores}, nil
}

// FromMap wraps a freshly built frequency map.
func FromMap(m *freqmap.Map) (*Table, error) {
	scores := make(map[bucket.Key]freqmap.Rate, len(m.Buckets))
	for k, b := range m.Buckets {
		scores[k] = b.Rate()
	}
	return NewTable(m.Scheme, scores)
}

// LoadScoreFile reads a persisted score file into a table.
func LoadScoreFile(path string, scheme bucket.Scheme) (*Table, error) {
	scores, err := freqmap.ReadScoreFile(path)
	if err != nil {
		return nil, err
	}
	return NewTable(scheme, scores)
}

// Scheme returns the classification the table was built under.
func (t *Table) Scheme() bucket.Scheme { return t.scheme }

// Score resolves an anchor (and, for a compound scheme, its gap) to a
// bucket and returns that bucket's failure rate, possibly infinite.
func (t *Table) Score(anchor, gap uint64) (freqmap.Rate, error) {
	if t == nil || t.scores == nil {
		return 0, ErrNotLoaded
	}
	key := t.scheme.Classify(anchor, gap)
	r, ok := t.scores[key]
	if !ok {
		return freqmap.Infinite(), nil
	}
	return r, nil
}

// Weighted combines a residue rate with the candidate gap into the
// finite, sortable form downstream rankers order by: (rate + 1) * gap.
// The +1 keeps a perfectly clean bucket from collapsing every candidate
// to zero. An infinite rate stays infinite.
func Weighted(rate freqmap.Rate, gap uint64) float64 {
	if rate.IsInfinite() {
		return math.Inf(1)
	}
	return (float64(rate) + 1.0) * float64(gap)
}

// ScoreTuple is a two-part score with a total ordering: primary
// ascending, secondary ascending as the tie-break.
type ScoreTuple struct {
	Primary   float64
	Secondary float64
}

// Less orders tuples lexicographically ascending.
func (s ScoreTuple) Less(o ScoreTuple) bool {
	if s.Primary != o.Primary {
		return s.Primary < o.Primary
	}
	return s.Secondary < o.Secondary
}

// Tier pairs a gap threshold with the table deployed above it.
type Tier struct {
	MinGap uint64
	Table  *Table
}

// Tiered selects among several tables by gap magnitude: tiers are
// evaluated top-down and the first tier whose MinGap the gap exceeds
// wins; the fallback table serves everything else. The production
// configuration is mod 210 above gap 210, mod 30 above gap 30, mod 6
// otherwise.
type Tiered struct {
	tiers    []Tier
	fallback *Table
}

// NewTiered builds a tiered engine. The fallback is required.
func NewTiered(tiers []Tier, fallback *Table) (*Tiered, error) {
	if fallback == nil {
		return nil, ErrNotLoaded
	}
	for _, tier := range tiers {
		if tier.Table == nil {
			return nil, ErrNotLoaded
		}
	}
	return &Tiered{tiers: tiers, fallback: fallback}, nil
}

// Score resolves the gap to a tier and scores the anchor against that
// tier's table.
func (t *Tiered) Score(anchor, gap uint64) (freqmap.Rate, error) {
	if t == nil || t.fallback == nil {
		return 0, ErrNotLoaded
	}
	for _, tier := range t.tiers {
		if gap > tier.MinGap {
			return tier.Table.Score(anchor, gap)
		}
	}
	return t.fallback.Score(anchor, gap)
}
