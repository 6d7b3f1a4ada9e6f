package pattern

import (
	"fmt"
	"sort"
)

// Tier is the fixed priority rank of a target. Lower is more urgent.
// Defensive patterns are always corrected before build patterns.
type Tier int

const (
	TierDefensivePrimary Tier = iota
	TierDefensiveSecondary
	TierBuild1
	TierBuild2
	TierBuild3
)

func (t Tier) String() string {
	switch t {
	case TierDefensivePrimary:
		return "defensive1"
	case TierDefensiveSecondary:
		return "defensive2"
	case TierBuild1:
		return "build1"
	case TierBuild2:
		return "build2"
	case TierBuild3:
		return "build3"
	default:
		return fmt.Sprintf("tier(%d)", int(t))
	}
}

// PixelSpec is one pattern-relative pixel: offset from the pattern origin
// plus the desired palette color.
type PixelSpec struct {
	DX    int
	DY    int
	Color uint8
}

// Pattern is an ordered pixel list anchored at absolute canvas coordinates.
// Immutable after load; declared pixel order is the within-pattern
// correction order.
type Pattern struct {
	OriginX int
	OriginY int
	Pixels  []PixelSpec
}

// Target binds a pattern to its priority tier.
type Target struct {
	Tier    Tier
	Pattern Pattern
}

// Set is the ordered collection of targets, sorted by tier once at
// construction and never reordered afterwards.
type Set struct {
	targets []Target
}

// NewSet builds a Set from the configured targets. Exactly one
// defensive-primary target is required; every tier may appear at most once.
func NewSet(targets []Target) (*Set, error) {
	seen := map[Tier]bool{}
	for _, tg := range targets {
		if seen[tg.Tier] {
			return nil, fmt.Errorf("duplicate target for %s", tg.Tier)
		}
		seen[tg.Tier] = true
		if len(tg.Pattern.Pixels) == 0 {
			return nil, fmt.Errorf("%s: pattern has no pixels", tg.Tier)
		}
	}
	if !seen[TierDefensivePrimary] {
		return nil, fmt.Errorf("missing mandatory %s target", TierDefensivePrimary)
	}

	out := make([]Target, len(targets))
	copy(out, targets)
	sort.SliceStable(out, func(i, j int) bool { return out[i].Tier < out[j].Tier })
	return &Set{targets: out}, nil
}

// Targets returns the targets in tier order. The returned slice aliases the
// set; callers must not modify it.
func (s *Set) Targets() []Target {
	return s.targets
}

func (s *Set) Len() int { return len(s.targets) }
