package reward

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func winning(v bool) *bool { return &v }

func TestBuildPlanWinnersSplitPool(t *testing.T) {
	in := PlanInput{
		Reward:         1000,
		FeePct:         5,
		CreatorAccount: "creator",
		Winning:        winning(true),
		Stakes: []Stake{
			{SubmissionID: "s1", EngineID: "e1", Malicious: true, Amount: 100},
			{SubmissionID: "s2", EngineID: "e2", Malicious: true, Amount: 100},
			{SubmissionID: "s3", EngineID: "e3", Malicious: false, Amount: 100},
		},
	}

	plan := BuildPlan(in)
	require.NoError(t, plan.Check())

	// Fee 5% of 1000; pool = 950 + 100 slashed = 1050, split two ways.
	require.Equal(t, int64(50), plan.Fee)
	require.Zero(t, plan.CreatorRefund)
	require.Len(t, plan.Entries, 3)

	require.Equal(t, Entry{SubmissionID: "s1", EngineID: "e1", Refund: 100, Reward: 525}, plan.Entries[0])
	require.Equal(t, Entry{SubmissionID: "s2", EngineID: "e2", Refund: 100, Reward: 525}, plan.Entries[1])
	require.Equal(t, Entry{SubmissionID: "s3", EngineID: "e3", Slashed: 100}, plan.Entries[2])
	require.Equal(t, int64(1300), plan.TotalIn())
}

func TestBuildPlanRemainderGoesToFee(t *testing.T) {
	in := PlanInput{
		Reward:  1000,
		FeePct:  5,
		Winning: winning(true),
		Stakes: []Stake{
			{SubmissionID: "s1", EngineID: "e1", Malicious: true, Amount: 100},
			{SubmissionID: "s2", EngineID: "e2", Malicious: true, Amount: 100},
			{SubmissionID: "s3", EngineID: "e3", Malicious: true, Amount: 100},
			{SubmissionID: "s4", EngineID: "e4", Malicious: false, Amount: 50},
		},
	}

	plan := BuildPlan(in)
	require.NoError(t, plan.Check())

	// Pool = 950 + 50 = 1000; 1000/3 = 333 each, remainder 1 folds into the
	// fee so the plan still balances.
	require.Equal(t, int64(51), plan.Fee)
	for _, e := range plan.Entries[:3] {
		require.Equal(t, int64(333), e.Reward)
		require.Equal(t, int64(100), e.Refund)
	}
}

func TestBuildPlanNoConsensusRefundsEveryone(t *testing.T) {
	in := PlanInput{
		Reward:         1000,
		FeePct:         5,
		CreatorAccount: "creator",
		Winning:        nil,
		Stakes: []Stake{
			{SubmissionID: "s1", EngineID: "e1", Malicious: true, Amount: 200},
			{SubmissionID: "s2", EngineID: "e2", Malicious: false, Amount: 300},
		},
	}

	plan := BuildPlan(in)
	require.NoError(t, plan.Check())

	require.Equal(t, int64(50), plan.Fee)
	require.Equal(t, int64(950), plan.CreatorRefund)
	for _, e := range plan.Entries {
		require.Zero(t, e.Reward)
		require.Zero(t, e.Slashed)
	}
	require.Equal(t, int64(200), plan.Entries[0].Refund)
	require.Equal(t, int64(300), plan.Entries[1].Refund)
}

func TestBuildPlanVerdictWithoutWinnersRefunds(t *testing.T) {
	// A winning side nobody backed settles like no-consensus.
	in := PlanInput{
		Reward:  500,
		FeePct:  5,
		Winning: winning(true),
		Stakes: []Stake{
			{SubmissionID: "s1", EngineID: "e1", Malicious: false, Amount: 100},
		},
	}

	plan := BuildPlan(in)
	require.NoError(t, plan.Check())
	require.Equal(t, int64(25), plan.Fee)
	require.Equal(t, int64(475), plan.CreatorRefund)
	require.Equal(t, int64(100), plan.Entries[0].Refund)
	require.Zero(t, plan.Entries[0].Slashed)
}

func TestBuildPlanRewardAlreadyDistributed(t *testing.T) {
	// Re-resolution after a dispute: only stakes are on the table.
	in := PlanInput{
		Reward:            1000,
		FeePct:            5,
		RewardDistributed: true,
		Winning:           winning(false),
		Stakes: []Stake{
			{SubmissionID: "s1", EngineID: "e1", Malicious: false, Amount: 100},
			{SubmissionID: "s2", EngineID: "e2", Malicious: true, Amount: 60},
		},
	}

	plan := BuildPlan(in)
	require.NoError(t, plan.Check())

	require.Equal(t, int64(160), plan.TotalIn())
	require.Zero(t, plan.CreatorRefund)
	require.Equal(t, Entry{SubmissionID: "s1", EngineID: "e1", Refund: 100, Reward: 60}, plan.Entries[0])
	require.Equal(t, Entry{SubmissionID: "s2", EngineID: "e2", Slashed: 60}, plan.Entries[1])
	require.Zero(t, plan.Fee)
}

func TestBuildPlanDeterministicOrdering(t *testing.T) {
	stakes := []Stake{
		{SubmissionID: "s3", EngineID: "e3", Malicious: true, Amount: 10},
		{SubmissionID: "s1", EngineID: "e1", Malicious: true, Amount: 20},
		{SubmissionID: "s2", EngineID: "e2", Malicious: false, Amount: 30},
	}
	reversed := []Stake{stakes[2], stakes[1], stakes[0]}

	a := BuildPlan(PlanInput{Reward: 100, FeePct: 5, Winning: winning(true), Stakes: stakes})
	b := BuildPlan(PlanInput{Reward: 100, FeePct: 5, Winning: winning(true), Stakes: reversed})
	require.Equal(t, a, b)
	require.Equal(t, "s1", a.Entries[0].SubmissionID)
}

func TestPlanCheckCatchesImbalance(t *testing.T) {
	plan := BuildPlan(PlanInput{
		Reward:  100,
		FeePct:  5,
		Winning: winning(true),
		Stakes:  []Stake{{SubmissionID: "s1", EngineID: "e1", Malicious: true, Amount: 50}},
	})
	require.NoError(t, plan.Check())

	plan.Fee++
	require.ErrorIs(t, plan.Check(), ErrUnbalancedPlan)
}
