package reputation

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestScoreResolutionNewEngineCorrect(t *testing.T) {
	// Below the rating floor the accuracy component sits at 50, so the base
	// is 35 regardless of the (empty) record.
	s := Snapshot{TotalSubmissions: 0, CorrectSubmissions: 0, Streak: 0, MaxStreak: 0}

	out := ScoreResolution(s, true, 100, 2000)
	require.Equal(t, 35, out.WeightedBase)
	require.Equal(t, 12, out.Delta) // 5 + 100/20 + 0 + min(2000/1000, 10)
	require.Equal(t, 47, out.NewScore)
}

func TestScoreResolutionEstablishedEngineCorrect(t *testing.T) {
	s := Snapshot{TotalSubmissions: 100, CorrectSubmissions: 80, Streak: 10, MaxStreak: 20}

	out := ScoreResolution(s, true, 80, 10000)
	// accuracy 80, participation 100, consistency 20 -> base 78.
	require.Equal(t, 78, out.WeightedBase)
	require.Equal(t, 21, out.Delta) // 5 + 4 + 2 + 10 (stake bonus capped)
	require.Equal(t, 99, out.NewScore)
}

func TestScoreResolutionIncorrect(t *testing.T) {
	s := Snapshot{TotalSubmissions: 100, CorrectSubmissions: 80, Streak: 10, MaxStreak: 20}

	out := ScoreResolution(s, false, 90, 4000)
	require.Equal(t, 78, out.WeightedBase)
	require.Equal(t, 27, out.Delta) // 10 + 9 + min(4000/500, 15) capped at 8
	require.Equal(t, 51, out.NewScore)
}

func TestScoreResolutionPenaltyCaps(t *testing.T) {
	s := Snapshot{TotalSubmissions: 0}

	out := ScoreResolution(s, false, 100, 1_000_000)
	require.Equal(t, 35, out.WeightedBase)
	require.Equal(t, 35, out.Delta) // 10 + 10 + 15: both caps hit
	require.Equal(t, 0, out.NewScore)
}

func TestScoreResolutionClampsAtMax(t *testing.T) {
	s := Snapshot{TotalSubmissions: 5000, CorrectSubmissions: 5000, Streak: 5000, MaxStreak: 5000}

	out := ScoreResolution(s, true, 100, 100000)
	require.Equal(t, 100, out.WeightedBase)
	require.Equal(t, ScoreMax, out.NewScore)
}

func TestDecayScore(t *testing.T) {
	require.Equal(t, 950, DecayScore(1000))
	require.Equal(t, 95, DecayScore(100))
	// Integer truncation: 5% of small scores rounds to zero reduction.
	require.Equal(t, 10, DecayScore(10))
	require.Equal(t, 0, DecayScore(0))
}
