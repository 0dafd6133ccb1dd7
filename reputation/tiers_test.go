package reputation

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestTierForBandEdges(t *testing.T) {
	cases := []struct {
		score int
		want  string
	}{
		{0, "novice"},
		{199, "novice"},
		{200, "apprentice"},
		{399, "apprentice"},
		{400, "established"},
		{599, "established"},
		{600, "expert"},
		{799, "expert"},
		{800, "elite"},
		{1000, "elite"},
	}

	for _, tc := range cases {
		require.Equal(t, tc.want, TierFor(tc.score).Name, "score %d", tc.score)
	}
}

func TestMinStakeFor(t *testing.T) {
	// Base 10 across the bands: 200% / 150% / 100% / 75% / 50%. The bands
	// below 100% clamp to the absolute floor.
	require.Equal(t, int64(20), MinStakeFor(10, 0))
	require.Equal(t, int64(15), MinStakeFor(10, 200))
	require.Equal(t, int64(10), MinStakeFor(10, 400))
	require.Equal(t, int64(10), MinStakeFor(10, 600))
	require.Equal(t, int64(10), MinStakeFor(10, 800))
}

func TestMinStakeForRoundsUp(t *testing.T) {
	// 150% of 9 is 13.5; the requirement rounds up, never down.
	require.Equal(t, int64(14), MinStakeFor(9, 200))
}

func TestMinStakeForNeverBelowOne(t *testing.T) {
	require.Equal(t, int64(1), MinStakeFor(1, 800)) // 0.5 rounds up to 1
	require.Equal(t, int64(1), MinStakeFor(0, 0))
}

func TestTiersReturnsCopy(t *testing.T) {
	got := Tiers()
	require.Len(t, got, 5)
	got[0].Name = "mutated"
	require.Equal(t, "novice", Tiers()[0].Name)
}
