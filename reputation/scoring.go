package reputation

// Score bounds and formula constants.
const (
	ScoreMin     = 0
	ScoreMax     = 1000
	ScoreInitial = 100

	// MinSubmissionsForRating is the observation count below which the
	// accuracy component falls back to 50, avoiding early over- or
	// under-confidence.
	MinSubmissionsForRating = 10

	baseGain = 5
	baseLoss = 10
)

// Snapshot captures the aggregates the scoring formula reads, taken before
// the event being scored.
type Snapshot struct {
	TotalSubmissions   int
	CorrectSubmissions int
	Streak             int
	MaxStreak          int
}

// Outcome is the result of scoring one resolved submission.
type Outcome struct {
	WeightedBase int
	Delta        int
	NewScore     int
}

// ScoreResolution computes the post-resolution score for an engine. The
// new score is a recomputed weighted base (accuracy 70%, participation
// 20%, consistency 10%) adjusted by an event delta, saturating at the
// [ScoreMin, ScoreMax] bounds. The streak read here is the streak before
// this event.
func ScoreResolution(s Snapshot, correct bool, confidence int, stake int64) Outcome {
	accuracy := 50
	if s.TotalSubmissions >= MinSubmissionsForRating {
		accuracy = s.CorrectSubmissions * 100 / s.TotalSubmissions
	}
	participation := min(s.TotalSubmissions, 100)
	consistency := min(s.MaxStreak, 100)

	base := (accuracy*70 + participation*20 + consistency*10) / 100

	var out Outcome
	out.WeightedBase = base

	if correct {
		stakeBonus := min(int(stake/1000), 10)
		out.Delta = baseGain + confidence/20 + s.Streak/5 + stakeBonus
		out.NewScore = min(base+out.Delta, ScoreMax)
		return out
	}

	stakePenalty := min(int(stake/500), 15)
	out.Delta = baseLoss + confidence/10 + stakePenalty
	out.NewScore = max(base-out.Delta, ScoreMin)
	return out
}

// DecayScore applies the 5% inactivity reduction, clamped at ScoreMin.
func DecayScore(score int) int {
	return max(score-score*5/100, ScoreMin)
}
