// Package primes loads an ordered prime list into memory and answers the
// membership and nearest-prime queries the anchor analysis depends on.
package primes

import (
	"bufio"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strconv"
)

var (
	// ErrMissingInput reports that the prime input file does not exist.
	ErrMissingInput = errors.New("prime input file not found")

	// ErrInsufficientData reports that the loaded sequence is shorter than
	// a requested scan window requires.
	ErrInsufficientData = errors.New("prime sequence too small for requested window")
)

// Sequence is an immutable, strictly increasing list of primes together
// with a hash-set index of the same values for O(1) membership checks.
// Both structures stay resident for the lifetime of the sequence; for a
// 100M-prime file expect roughly 3x the raw array size in memory.
type Sequence struct {
	values []uint64
	member map[uint64]struct{}
}

// LoadFile reads a text file with one base-10 prime per line into a
// Sequence. The whole file is loaded; other components index it randomly.
func LoadFile(path string) (*Sequence, error) {
	f, err := os.Open(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, fmt.Errorf("%w: %s", ErrMissingInput, path)
		}
		return nil, fmt.Errorf("open prime file: %w", err)
	}
	defer f.Close()

	var values []uint64
	sc := bufio.NewScanner(f)
	sc.Buffer(make([]byte, 64*1024), 64*1024)
	line := 0
	for sc.Scan() {
		line++
		v, err := strconv.ParseUint(sc.Text(), 10, 64)
		if err != nil {
			return nil, fmt.Errorf("parse prime file %s line %d: %w", path, line, err)
		}
		values = append(values, v)
	}
	if err := sc.Err(); err != nil {
		return nil, fmt.Errorf("read prime file %s: %w", path, err)
	}
	return FromValues(values)
}

// FromValues builds a Sequence from an already ordered slice. The slice is
// not copied; callers must not mutate it afterwards.
func FromValues(values []uint64) (*Sequence, error) {
	member := make(map[uint64]struct{}, len(values))
	for i, v := range values {
		if i > 0 && v <= values[i-1] {
			return nil, fmt.Errorf("sequence not strictly increasing at index %d: %d after %d", i, v, values[i-1])
		}
		member[v] = struct{}{}
	}
	return &Sequence{values: values, member: member}, nil
}

// Len returns the number of primes loaded.
func (s *Sequence) Len() int { return len(s.values) }

// At returns the prime at index i.
func (s *Sequence) At(i int) uint64 { return s.values[i] }

// Contains reports whether v is one of the loaded primes.
func (s *Sequence) Contains(v uint64) bool {
	_, ok := s.member[v]
	return ok
}

// EnsureWindow verifies that a scan of count pairs starting at start, with
// margin indexes of slack past the window, fits inside the sequence.
func (s *Sequence) EnsureWindow(start, count, margin int) error {
	need := start + count + margin
	if need > len(s.values) {
		return fmt.Errorf("%w: need %d primes, have %d", ErrInsufficientData, need, len(s.values))
	}
	return nil
}

// NearestPrimeOffset searches outward from anchor for the minimal k >= 1
// with anchor-k or anchor+k in the sequence. The search stops after bound
// steps; found is false when the bound is exceeded, which callers must
// treat as inconclusive rather than as a classification.
func (s *Sequence) NearestPrimeOffset(anchor, bound uint64) (k uint64, found bool) {
	for d := uint64(1); d <= bound; d++ {
		if anchor > d && s.Contains(anchor-d) {
			return d, true
		}
		if s.Contains(anchor + d) {
			return d, true
		}
	}
	return 0, false
}

// IsFailure evaluates the failure criterion for an anchor: the anchor is a
// failure iff its nearest prime sits at a composite offset k (k > 1 and k
// not itself prime). found is false when the bounded search was
// inconclusive, in which case failure carries no meaning.
func (s *Sequence) IsFailure(anchor, bound uint64) (failure, found bool) {
	k, ok := s.NearestPrimeOffset(anchor, bound)
	if !ok {
		return false, false
	}
	return k > 1 && !s.Contains(k), true
}
