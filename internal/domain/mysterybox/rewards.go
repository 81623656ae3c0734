package mysterybox

// Tier is one possible mystery box reward.
type Tier struct {
	Type        string
	AmountMinor int64
	Probability float64
	MinPoints   int
}

// DefaultTiers are ordered from the smallest to the largest reward.
var DefaultTiers = []Tier{
	{Type: "small", AmountMinor: 100, Probability: 0.50, MinPoints: 50},
	{Type: "medium", AmountMinor: 500, Probability: 0.30, MinPoints: 100},
	{Type: "large", AmountMinor: 2000, Probability: 0.15, MinPoints: 200},
	{Type: "jackpot", AmountMinor: 10000, Probability: 0.05, MinPoints: 500},
}

// MinPoints is the smallest spend that can win anything.
func MinPoints(tiers []Tier) int {
	if len(tiers) == 0 {
		return 0
	}
	m := tiers[0].MinPoints
	for _, t := range tiers[1:] {
		m = min(m, t.MinPoints)
	}
	return m
}

// Affordable returns the tiers a spend of points qualifies for.
func Affordable(tiers []Tier, points int) []Tier {
	var out []Tier
	for _, t := range tiers {
		if points >= t.MinPoints {
			out = append(out, t)
		}
	}
	return out
}

// Select picks a tier with probabilities renormalised over tiers. roll is uniform in [0,1).
// It returns false when tiers is empty.
func Select(tiers []Tier, roll float64) (Tier, bool) {
	if len(tiers) == 0 {
		return Tier{}, false
	}
	var total float64
	for _, t := range tiers {
		total += t.Probability
	}
	var cumulative float64
	for _, t := range tiers {
		cumulative += t.Probability / total
		if roll < cumulative {
			return t, true
		}
	}
	return tiers[len(tiers)-1], true
}
