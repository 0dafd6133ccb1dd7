package reputation

// Tier is one of five static reputation bands. The stake multiplier sizes
// the minimum stake a submission must carry (low-reputation engines post
// more collateral); the reward bonus is advertised on profiles and the
// leaderboard.
type Tier struct {
	Name               string
	MinReputation      int
	StakeMultiplierPct int
	RewardBonusPct     int
}

var tiers = [5]Tier{
	{Name: "novice", MinReputation: 0, StakeMultiplierPct: 200, RewardBonusPct: 0},
	{Name: "apprentice", MinReputation: 200, StakeMultiplierPct: 150, RewardBonusPct: 5},
	{Name: "established", MinReputation: 400, StakeMultiplierPct: 100, RewardBonusPct: 10},
	{Name: "expert", MinReputation: 600, StakeMultiplierPct: 75, RewardBonusPct: 15},
	{Name: "elite", MinReputation: 800, StakeMultiplierPct: 50, RewardBonusPct: 25},
}

// TierFor returns the highest tier whose MinReputation does not exceed score.
func TierFor(score int) Tier {
	t := tiers[0]
	for _, candidate := range tiers {
		if score >= candidate.MinReputation {
			t = candidate
		}
	}
	return t
}

// Tiers returns the static tier table, lowest band first.
func Tiers() []Tier {
	out := make([]Tier, len(tiers))
	copy(out, tiers[:])
	return out
}

// MinStakeFor scales the base minimum stake by the tier multiplier of the
// given score, rounding up. Multipliers only ever raise the requirement:
// the absolute minimum stake stays the floor for every tier.
func MinStakeFor(baseMinStake int64, score int) int64 {
	t := TierFor(score)
	required := (baseMinStake*int64(t.StakeMultiplierPct) + 99) / 100
	if required < baseMinStake {
		required = baseMinStake
	}
	if required < 1 {
		required = 1
	}
	return required
}
