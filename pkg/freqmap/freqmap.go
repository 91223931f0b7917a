// Package freqmap builds and serializes residue/gap frequency maps: the
// per-bucket anchor and failure counters accumulated in one pass over a
// prime sequence, and the failure rates derived from them.
package freqmap

import (
	"encoding/json"
	"fmt"
	"os"

	"go.uber.org/zap"

	"gapscan/pkg/bucket"
	"gapscan/pkg/primes"
)

// DefaultSearchBound is the maximum radius of the nearest-prime search
// used by the failure criterion.
const DefaultSearchBound = 2000

// Bucket holds the raw counters for one bucket key.
type Bucket struct {
	Anchors  uint64 `json:"anchors"`
	Failures uint64 `json:"failures"`
}

// Rate derives the failure rate: failures/anchors, or the infinity
// sentinel when the bucket never saw an anchor. Division happens here,
// once, so accumulation stays purely integral and deterministic.
func (b Bucket) Rate() Rate {
	if b.Anchors == 0 {
		return Infinite()
	}
	return Rate(float64(b.Failures) / float64(b.Anchors))
}

// Map is a built frequency map. Buckets covers the scheme's full domain:
// every key is present even when its counters are zero, so downstream
// lookups never hit a missing key.
type Map struct {
	Scheme  bucket.Scheme
	Buckets map[bucket.Key]Bucket
	Skipped uint64
}

// Rate returns the failure rate for key k.
func (m *Map) Rate(k bucket.Key) Rate {
	return m.Buckets[k].Rate()
}

// Scores flattens the map into its string-keyed score form, the shape
// score files carry.
func (m *Map) Scores() map[string]Rate {
	out := make(map[string]Rate, len(m.Buckets))
	for k, b := range m.Buckets {
		out[k.String()] = b.Rate()
	}
	return out
}

// Config parameterizes one build pass.
type Config struct {
	Scheme bucket.Scheme
	// Start is the first pair index scanned; the conventional production
	// value is 10, which keeps the lone odd anchor 2+3=5 out of the data.
	Start int
	// Count is the number of consecutive pairs to scan.
	Count int
	// SearchBound caps the nearest-prime search radius. Zero means
	// DefaultSearchBound.
	SearchBound uint64
	// ProgressEvery emits a progress log line every N pairs when a logger
	// is set. Zero disables progress logging.
	ProgressEvery int
	Logger        *zap.Logger
}

func (c Config) searchBound() uint64 {
	if c.SearchBound == 0 {
		return DefaultSearchBound
	}
	return c.SearchBound
}

// Build scans count pairs of seq starting at index Start and accumulates
// anchor and failure counters per bucket. The window precondition is
// checked before any work: Start + Count plus a lookahead margin of
// SearchBound+1 indexes must fit in the sequence, otherwise
// primes.ErrInsufficientData is returned and nothing is produced.
//
// A pair whose nearest-prime search exceeds the bound is skipped
// entirely: it counts toward neither anchors nor failures, only toward
// the Skipped tally on the result.
func Build(seq *primes.Sequence, cfg Config) (*Map, error) {
	if cfg.Scheme.Modulus == 0 {
		return nil, fmt.Errorf("build: scheme modulus must be positive")
	}
	if cfg.Start < 0 {
		return nil, fmt.Errorf("build: start index must be non-negative, got %d", cfg.Start)
	}
	if cfg.Count <= 0 {
		return nil, fmt.Errorf("build: pair count must be positive, got %d", cfg.Count)
	}
	bound := cfg.searchBound()
	margin := int(bound) + 1
	if err := seq.EnsureWindow(cfg.Start, cfg.Count, margin); err != nil {
		return nil, err
	}

	m := &Map{
		Scheme:  cfg.Scheme,
		Buckets: make(map[bucket.Key]Bucket, cfg.Scheme.Size()),
	}
	for _, k := range cfg.Scheme.Domain() {
		m.Buckets[k] = Bucket{}
	}

	log := cfg.Logger
	end := cfg.Start + cfg.Count
	for i := cfg.Start; i < end; i++ {
		pn := seq.At(i)
		pn1 := seq.At(i + 1)
		anchor := pn + pn1
		gap := pn1 - pn

		failure, found := seq.IsFailure(anchor, bound)
		if !found {
			m.Skipped++
			if log != nil {
				log.Debug("nearest-prime search exceeded bound, pair skipped",
					zap.Int("index", i), zap.Uint64("anchor", anchor))
			}
			continue
		}

		key := cfg.Scheme.Classify(anchor, gap)
		b := m.Buckets[key]
		b.Anchors++
		if failure {
			b.Failures++
		}
		m.Buckets[key] = b

		if log != nil && cfg.ProgressEvery > 0 {
			done := i - cfg.Start + 1
			if done%cfg.ProgressEvery == 0 {
				log.Info("scan progress",
					zap.Int("pairs", done),
					zap.Int("total", cfg.Count),
					zap.Uint64("skipped", m.Skipped))
			}
		}
	}
	return m, nil
}

// EncodeScores serializes the score form as JSON. encoding/json writes
// map keys in sorted order, so identical maps always encode to identical
// bytes.
func (m *Map) EncodeScores() ([]byte, error) {
	return json.MarshalIndent(m.Scores(), "", "  ")
}

// WriteScoreFile persists the score form to path.
func (m *Map) WriteScoreFile(path string) error {
	data, err := m.EncodeScores()
	if err != nil {
		return fmt.Errorf("encode score map: %w", err)
	}
	if err := os.WriteFile(path, append(data, '\n'), 0o644); err != nil {
		return fmt.Errorf("write score map: %w", err)
	}
	return nil
}

// DecodeScores parses the score form back into typed keys and rates.
func DecodeScores(data []byte) (map[bucket.Key]Rate, error) {
	var raw map[string]Rate
	if err := json.Unmarshal(data, &raw); err != nil {
		return nil, fmt.Errorf("decode score map: %w", err)
	}
	out := make(map[bucket.Key]Rate, len(raw))
	for ks, r := range raw {
		k, err := bucket.ParseKey(ks)
		if err != nil {
			return nil, err
		}
		out[k] = r
	}
	return out, nil
}

// ReadScoreFile loads a persisted score file.
func ReadScoreFile(path string) (map[bucket.Key]Rate, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read score map: %w", err)
	}
	return DecodeScores(data)
}
