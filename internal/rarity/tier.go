package rarity

// Tier is a discrete rarity label derived from a percentile.
type Tier string

const (
	TierLegendary Tier = "legendary"
	TierEpic      Tier = "epic"
	TierRare      Tier = "rare"
	TierUncommon  Tier = "uncommon"
	TierCommon    Tier = "common"
)

// Upper percentile bounds (inclusive) for each tier.
const (
	legendaryMaxPercentile = 1
	epicMaxPercentile      = 5
	rareMaxPercentile      = 15
	uncommonMaxPercentile  = 40
)

// AllTiers returns all tiers ordered from rarest to most common.
func AllTiers() []Tier {
	return []Tier{TierLegendary, TierEpic, TierRare, TierUncommon, TierCommon}
}

// TierForPercentile maps a percentile in (0, 100] to its tier.
// Bounds are inclusive: exactly 1 is legendary, anything above is epic.
func TierForPercentile(p float64) Tier {
	switch {
	case p <= legendaryMaxPercentile:
		return TierLegendary
	case p <= epicMaxPercentile:
		return TierEpic
	case p <= rareMaxPercentile:
		return TierRare
	case p <= uncommonMaxPercentile:
		return TierUncommon
	default:
		return TierCommon
	}
}

// ParseTier returns the tier named by s.
func ParseTier(s string) (Tier, bool) {
	for _, t := range AllTiers() {
		if string(t) == s {
			return t, true
		}
	}
	return "", false
}

// DisplayName returns a human-readable label for the tier.
func (t Tier) DisplayName() string {
	switch t {
	case TierLegendary:
		return "Legendary"
	case TierEpic:
		return "Epic"
	case TierRare:
		return "Rare"
	case TierUncommon:
		return "Uncommon"
	case TierCommon:
		return "Common"
	default:
		return string(t)
	}
}
