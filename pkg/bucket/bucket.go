// Package bucket classifies anchor pairs into discrete buckets along a
// residue axis and an optional gap-category axis, and round-trips the
// string key encoding used by the persisted score files.
package bucket

import (
	"fmt"
	"strconv"
	"strings"
)

// GapCategory is the 3-way discretization of a prime gap.
type GapCategory string

const (
	Small  GapCategory = "Small"
	Medium GapCategory = "Medium"
	Large  GapCategory = "Large"
)

// Categories lists the gap categories in canonical order.
var Categories = []GapCategory{Small, Medium, Large}

// Thresholds holds the two fixed cutoffs for gap categorization. They are
// empirical constants from a prior full scan (average gap ~19.649), not
// recomputed at runtime.
type Thresholds struct {
	Small float64 `yaml:"small" json:"small"`
	Large float64 `yaml:"large" json:"large"`
}

// DefaultThresholds returns the cutoffs used by the production maps.
func DefaultThresholds() Thresholds {
	return Thresholds{Small: 18.0, Large: 22.0}
}

// Categorize buckets a gap: Small below the small cutoff, Large at or
// above the large cutoff, Medium otherwise.
func (t Thresholds) Categorize(gap uint64) GapCategory {
	g := float64(gap)
	switch {
	case g < t.Small:
		return Small
	case g >= t.Large:
		return Large
	default:
		return Medium
	}
}

// Key identifies one bucket. Category is empty for single-axis schemes.
type Key struct {
	Residue  uint64
	Category GapCategory
}

// String encodes the key the way score files do: "<residue>" for a
// single-axis key, "<residue>,<Category>" for a compound key.
func (k Key) String() string {
	if k.Category == "" {
		return strconv.FormatUint(k.Residue, 10)
	}
	return strconv.FormatUint(k.Residue, 10) + "," + string(k.Category)
}

// ParseKey inverts String. The residue component must be a base-10
// integer and the category component, if present, one of Small, Medium,
// Large.
func ParseKey(s string) (Key, error) {
	residuePart, categoryPart, compound := strings.Cut(s, ",")
	residue, err := strconv.ParseUint(residuePart, 10, 64)
	if err != nil {
		return Key{}, fmt.Errorf("bucket key %q: bad residue: %w", s, err)
	}
	if !compound {
		return Key{Residue: residue}, nil
	}
	switch GapCategory(categoryPart) {
	case Small, Medium, Large:
		return Key{Residue: residue, Category: GapCategory(categoryPart)}, nil
	default:
		return Key{}, fmt.Errorf("bucket key %q: unknown gap category %q", s, categoryPart)
	}
}

// Scheme is a full bucket classification: a modulus for the residue axis
// and, when Gaps is non-nil, thresholds for the gap axis.
type Scheme struct {
	Modulus uint64
	Gaps    *Thresholds
}

// Compound reports whether the scheme carries the gap axis.
func (s Scheme) Compound() bool { return s.Gaps != nil }

// Classify maps an anchor pair onto its bucket key.
func (s Scheme) Classify(anchor, gap uint64) Key {
	k := Key{Residue: anchor % s.Modulus}
	if s.Gaps != nil {
		k.Category = s.Gaps.Categorize(gap)
	}
	return k
}

// Size returns the number of keys in the scheme's full domain.
func (s Scheme) Size() int {
	n := int(s.Modulus)
	if s.Gaps != nil {
		n *= len(Categories)
	}
	return n
}

// Domain enumerates every key of the scheme in canonical order: residues
// ascending, categories in Small, Medium, Large order within a residue.
func (s Scheme) Domain() []Key {
	keys := make([]Key, 0, s.Size())
	for r := uint64(0); r < s.Modulus; r++ {
		if s.Gaps == nil {
			keys = append(keys, Key{Residue: r})
			continue
		}
		for _, c := range Categories {
			keys = append(keys, Key{Residue: r, Category: c})
		}
	}
	return keys
}

// Name is a short label for storage and logs, e.g. "mod30" or "mod6+gap".
func (s Scheme) Name() string {
	name := "mod" + strconv.FormatUint(s.Modulus, 10)
	if s.Gaps != nil {
		name += "+gap"
	}
	return name
}
