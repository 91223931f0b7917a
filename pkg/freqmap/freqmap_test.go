package freqmap

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"gapscan/pkg/bucket"
	"gapscan/pkg/primes"
)

// First 20 primes: enough for a window of 6 pairs starting at index 3
// with a search bound of 10 (margin 11).
var smallPrimes = []uint64{2, 3, 5, 7, 11, 13, 17, 19, 23, 29, 31, 37, 41, 43, 47, 53, 59, 61, 67, 71}

func mustSequence(t *testing.T, values []uint64) *primes.Sequence {
	t.Helper()
	seq, err := primes.FromValues(values)
	require.NoError(t, err)
	return seq
}

func TestBuildPrefixScenario(t *testing.T) {
	seq := mustSequence(t, smallPrimes)

	m, err := Build(seq, Config{
		Scheme:      bucket.Scheme{Modulus: 6},
		Start:       3,
		Count:       6,
		SearchBound: 10,
	})
	require.NoError(t, err)

	// Pairs (7,11)..(23,29): anchors 18, 24, 30, 36, 42 land in residue 0
	// and 52 in residue 4. Every anchor has a prime neighbor at offset 1,
	// so there are no failures.
	require.Len(t, m.Buckets, 6)
	assert.Equal(t, Bucket{Anchors: 5, Failures: 0}, m.Buckets[bucket.Key{Residue: 0}])
	assert.Equal(t, Bucket{Anchors: 1, Failures: 0}, m.Buckets[bucket.Key{Residue: 4}])
	assert.Equal(t, uint64(0), m.Skipped)

	assert.Equal(t, Rate(0), m.Rate(bucket.Key{Residue: 0}))
	assert.Equal(t, Rate(0), m.Rate(bucket.Key{Residue: 4}))

	// The sum of two odd primes is even: the odd residues never appear
	// and carry the infinity sentinel, as does the unseen residue 2.
	for _, r := range []uint64{1, 2, 3, 5} {
		b := m.Buckets[bucket.Key{Residue: r}]
		assert.Equal(t, uint64(0), b.Anchors, "residue %d", r)
		assert.True(t, m.Rate(bucket.Key{Residue: r}).IsInfinite(), "residue %d", r)
	}
}

func TestBuildBoundaryPair(t *testing.T) {
	// Scanning from index 0 includes the pair (2,3), the single odd
	// anchor 5. Production scans start at index 10 or later to exclude it.
	seq := mustSequence(t, smallPrimes)

	m, err := Build(seq, Config{
		Scheme:      bucket.Scheme{Modulus: 6},
		Start:       0,
		Count:       3,
		SearchBound: 10,
	})
	require.NoError(t, err)
	assert.Equal(t, uint64(1), m.Buckets[bucket.Key{Residue: 5}].Anchors)
}

func TestBuildExactHalfRate(t *testing.T) {
	// Engineered sequence: residue 0 mod 6 sees exactly the anchors 12
	// and 120. Anchor 12 reaches 9 at offset 3 (3 is in the set: clean);
	// anchor 120 reaches 122 at offset 2 (2 is not in the set: failure).
	values := []uint64{3, 9, 20, 33, 40, 57, 63, 70, 81, 90, 101, 110, 122, 130, 141, 150, 161}
	seq := mustSequence(t, values)

	m, err := Build(seq, Config{
		Scheme:      bucket.Scheme{Modulus: 6},
		Start:       0,
		Count:       6,
		SearchBound: 10,
	})
	require.NoError(t, err)

	b := m.Buckets[bucket.Key{Residue: 0}]
	assert.Equal(t, Bucket{Anchors: 2, Failures: 1}, b)
	assert.Equal(t, Rate(0.5), b.Rate())
	assert.Equal(t, uint64(0), m.Skipped)
}

func TestBuildCompoundDomain(t *testing.T) {
	seq := mustSequence(t, smallPrimes)
	th := bucket.DefaultThresholds()

	m, err := Build(seq, Config{
		Scheme:      bucket.Scheme{Modulus: 6, Gaps: &th},
		Start:       3,
		Count:       6,
		SearchBound: 10,
	})
	require.NoError(t, err)

	require.Len(t, m.Buckets, 18)
	var anchors, failures uint64
	for k, b := range m.Buckets {
		assert.LessOrEqual(t, b.Failures, b.Anchors, k.String())
		anchors += b.Anchors
		failures += b.Failures
	}
	assert.Equal(t, uint64(6), anchors)
	assert.Equal(t, uint64(0), failures)

	// All six gaps are below 18: everything lands in the Small column.
	small := m.Buckets[bucket.Key{Residue: 0, Category: bucket.Small}]
	assert.Equal(t, uint64(5), small.Anchors)
	assert.True(t, m.Rate(bucket.Key{Residue: 0, Category: bucket.Large}).IsInfinite())
}

func TestBuildSkipsUnresolvableAnchors(t *testing.T) {
	// With a search bound of 2 no anchor of this sparse sequence finds a
	// member value, so every pair is skipped and nothing is counted.
	values := []uint64{3, 9, 20, 33, 40, 57, 63}
	seq := mustSequence(t, values)

	m, err := Build(seq, Config{
		Scheme:      bucket.Scheme{Modulus: 6},
		Start:       0,
		Count:       4,
		SearchBound: 2,
	})
	require.NoError(t, err)

	assert.Equal(t, uint64(4), m.Skipped)
	for _, k := range m.Scheme.Domain() {
		assert.Equal(t, uint64(0), m.Buckets[k].Anchors)
		assert.True(t, m.Rate(k).IsInfinite())
	}
}

func TestBuildNegativeStart(t *testing.T) {
	seq := mustSequence(t, smallPrimes)

	_, err := Build(seq, Config{
		Scheme:      bucket.Scheme{Modulus: 6},
		Start:       -1,
		Count:       2,
		SearchBound: 10,
	})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "non-negative")
}

func TestBuildInsufficientData(t *testing.T) {
	seq := mustSequence(t, smallPrimes)

	_, err := Build(seq, Config{
		Scheme:      bucket.Scheme{Modulus: 6},
		Start:       3,
		Count:       7, // 3 + 7 + 11 > 20
		SearchBound: 10,
	})
	require.ErrorIs(t, err, primes.ErrInsufficientData)
}

func TestBuildDeterministic(t *testing.T) {
	seq := mustSequence(t, smallPrimes)
	cfg := Config{
		Scheme:      bucket.Scheme{Modulus: 30},
		Start:       3,
		Count:       6,
		SearchBound: 10,
	}

	m1, err := Build(seq, cfg)
	require.NoError(t, err)
	m2, err := Build(seq, cfg)
	require.NoError(t, err)

	b1, err := m1.EncodeScores()
	require.NoError(t, err)
	b2, err := m2.EncodeScores()
	require.NoError(t, err)
	assert.Equal(t, b1, b2)
}

func TestScoreFileRoundTrip(t *testing.T) {
	seq := mustSequence(t, smallPrimes)
	th := bucket.DefaultThresholds()

	m, err := Build(seq, Config{
		Scheme:      bucket.Scheme{Modulus: 6, Gaps: &th},
		Start:       3,
		Count:       6,
		SearchBound: 10,
	})
	require.NoError(t, err)

	path := filepath.Join(t.TempDir(), "map.json")
	require.NoError(t, m.WriteScoreFile(path))

	loaded, err := ReadScoreFile(path)
	require.NoError(t, err)

	require.Len(t, loaded, 18)
	for k, b := range m.Buckets {
		got, ok := loaded[k]
		require.True(t, ok, k.String())
		if b.Rate().IsInfinite() {
			assert.True(t, got.IsInfinite(), k.String())
		} else {
			assert.Equal(t, b.Rate(), got, k.String())
		}
	}
}
