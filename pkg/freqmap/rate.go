package freqmap

import (
	"fmt"
	"math"
	"strconv"
)

// InfinitySentinel is the wire token for a bucket that never saw an
// anchor. Plain JSON cannot carry +Inf, so score files and the sqlite
// store both use this string form.
const InfinitySentinel = "Infinity"

// Rate is a bucket failure rate in [0, 1], or +Inf for a bucket whose
// residue class never appeared in the scan. The infinite value is a
// deliberate sentinel: "never observed, treat as maximally unpredictable"
// must stay distinguishable from a finite 0.0 rate.
type Rate float64

// Infinite returns the sentinel rate.
func Infinite() Rate { return Rate(math.Inf(1)) }

// IsInfinite reports whether r is the sentinel.
func (r Rate) IsInfinite() bool { return math.IsInf(float64(r), 1) }

// MarshalJSON encodes finite rates as JSON numbers and the sentinel as
// the string "Infinity".
func (r Rate) MarshalJSON() ([]byte, error) {
	if r.IsInfinite() {
		return []byte(`"` + InfinitySentinel + `"`), nil
	}
	return []byte(strconv.FormatFloat(float64(r), 'g', -1, 64)), nil
}

// UnmarshalJSON inverts MarshalJSON.
func (r *Rate) UnmarshalJSON(data []byte) error {
	s := string(data)
	if s == `"`+InfinitySentinel+`"` {
		*r = Infinite()
		return nil
	}
	v, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return fmt.Errorf("rate %s: %w", s, err)
	}
	*r = Rate(v)
	return nil
}

// FormatRate renders a rate for text storage, using the same sentinel as
// the JSON form.
func FormatRate(r Rate) string {
	if r.IsInfinite() {
		return InfinitySentinel
	}
	return strconv.FormatFloat(float64(r), 'g', -1, 64)
}

// ParseRate inverts FormatRate.
func ParseRate(s string) (Rate, error) {
	if s == InfinitySentinel {
		return Infinite(), nil
	}
	v, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return 0, fmt.Errorf("rate %q: %w", s, err)
	}
	return Rate(v), nil
}
