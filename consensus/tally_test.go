package consensus

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestTallySupermajorityMalicious(t *testing.T) {
	ballots := []Ballot{
		{Malicious: true, Confidence: 100, Stake: 100},
		{Malicious: true, Confidence: 100, Stake: 100},
		{Malicious: false, Confidence: 50, Stake: 100},
	}

	r := Tally(ballots, 70)
	require.Equal(t, int64(20000), r.MaliciousWeight)
	require.Equal(t, int64(5000), r.BenignWeight)
	require.Equal(t, VerdictMalicious, r.Verdict)

	winning := r.Winning()
	require.NotNil(t, winning)
	require.True(t, *winning)
}

func TestTallySupermajorityBenign(t *testing.T) {
	ballots := []Ballot{
		{Malicious: false, Confidence: 90, Stake: 500},
		{Malicious: true, Confidence: 60, Stake: 100},
	}

	r := Tally(ballots, 70)
	require.Equal(t, VerdictBenign, r.Verdict)

	winning := r.Winning()
	require.NotNil(t, winning)
	require.False(t, *winning)
}

func TestTallyEvenSplitIsPending(t *testing.T) {
	ballots := []Ballot{
		{Malicious: true, Confidence: 80, Stake: 250},
		{Malicious: false, Confidence: 80, Stake: 250},
	}

	r := Tally(ballots, 70)
	require.Equal(t, VerdictPending, r.Verdict)
	require.Nil(t, r.Winning())
}

func TestTallyExactThresholdWins(t *testing.T) {
	// 700 of 1000 total weight is exactly 70%.
	ballots := []Ballot{
		{Malicious: true, Confidence: 1, Stake: 700},
		{Malicious: false, Confidence: 1, Stake: 300},
	}

	r := Tally(ballots, 70)
	require.Equal(t, VerdictMalicious, r.Verdict)
}

func TestTallyJustBelowThresholdIsPending(t *testing.T) {
	ballots := []Ballot{
		{Malicious: true, Confidence: 1, Stake: 699},
		{Malicious: false, Confidence: 1, Stake: 301},
	}

	r := Tally(ballots, 70)
	require.Equal(t, VerdictPending, r.Verdict)
}

func TestTallyEmptyIsPending(t *testing.T) {
	r := Tally(nil, 70)
	require.Equal(t, VerdictPending, r.Verdict)
	require.Zero(t, r.TotalWeight)
	require.Nil(t, r.Winning())
}

func TestTallyOrderIndependent(t *testing.T) {
	ballots := []Ballot{
		{Malicious: true, Confidence: 95, Stake: 120},
		{Malicious: false, Confidence: 40, Stake: 900},
		{Malicious: true, Confidence: 70, Stake: 450},
		{Malicious: false, Confidence: 85, Stake: 60},
	}
	want := Tally(ballots, 70)

	permutations := [][]int{
		{3, 2, 1, 0},
		{1, 3, 0, 2},
		{2, 0, 3, 1},
	}
	for _, perm := range permutations {
		shuffled := make([]Ballot, len(ballots))
		for i, j := range perm {
			shuffled[i] = ballots[j]
		}
		require.Equal(t, want, Tally(shuffled, 70))
	}
}
