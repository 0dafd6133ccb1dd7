// Package reward settles a resolved bounty: fee extraction, slashing of
// losing stakes, and proportional payout to winners. The full plan is
// computed and sum-checked as a pure function before any ledger transfer
// runs, so a settlement either applies completely or not at all.
package reward

import (
	"errors"
	"fmt"
	"sort"
)

var ErrUnbalancedPlan = errors.New("reward: plan does not conserve value")

// Stake is one unresolved submission's settlement input.
type Stake struct {
	SubmissionID string
	EngineID     string
	Malicious    bool
	Amount       int64
}

// PlanInput describes everything the settlement depends on. Winning is nil
// when no supermajority was reached (verdict Pending).
type PlanInput struct {
	Reward         int64
	FeePct         int64
	CreatorAccount string
	// RewardDistributed is true when a reopened bounty already paid out its
	// base reward; re-resolution then settles stakes only.
	RewardDistributed bool
	Winning           *bool
	Stakes            []Stake
}

// Entry is the settlement for one submission.
type Entry struct {
	SubmissionID string
	EngineID     string
	// Refund is the engine's own stake coming back (winners and no-consensus).
	Refund int64
	// Reward is the engine's share of the pool (winners only).
	Reward int64
	// Slashed is the stake forfeited into the pool (losers only).
	Slashed int64
}

// Plan is a fully computed settlement. Apply-side code must not do any
// arithmetic of its own: everything is decided here.
type Plan struct {
	// Fee goes to the fee account: the platform cut plus the integer
	// remainder of the winner split.
	Fee int64
	// CreatorRefund returns the fee-adjusted reward to the creator when no
	// verdict was reached.
	CreatorRefund int64
	Entries       []Entry

	totalIn int64
}

// BuildPlan computes the settlement for a resolution. Entries are ordered
// by submission id so identical inputs always produce the identical plan.
func BuildPlan(in PlanInput) Plan {
	stakes := make([]Stake, len(in.Stakes))
	copy(stakes, in.Stakes)
	sort.Slice(stakes, func(i, j int) bool { return stakes[i].SubmissionID < stakes[j].SubmissionID })

	rewardPortion := in.Reward
	if in.RewardDistributed {
		rewardPortion = 0
	}

	var stakeTotal int64
	winners := 0
	for _, s := range stakes {
		stakeTotal += s.Amount
		if in.Winning != nil && s.Malicious == *in.Winning {
			winners++
		}
	}

	plan := Plan{
		Fee:     rewardPortion * in.FeePct / 100,
		Entries: make([]Entry, 0, len(stakes)),
		totalIn: rewardPortion + stakeTotal,
	}

	if in.Winning == nil || winners == 0 {
		// No supermajority: everyone gets their own stake back; the fee is
		// still extracted and the rest of the reward returns to the creator.
		plan.CreatorRefund = rewardPortion - plan.Fee
		for _, s := range stakes {
			plan.Entries = append(plan.Entries, Entry{
				SubmissionID: s.SubmissionID,
				EngineID:     s.EngineID,
				Refund:       s.Amount,
			})
		}
		return plan
	}

	var slashed int64
	for _, s := range stakes {
		if s.Malicious != *in.Winning {
			slashed += s.Amount
		}
	}

	pool := rewardPortion - plan.Fee + slashed
	perWinner := pool / int64(winners)
	// The split remainder folds into the fee so no value is lost.
	plan.Fee += pool - perWinner*int64(winners)

	for _, s := range stakes {
		e := Entry{SubmissionID: s.SubmissionID, EngineID: s.EngineID}
		if s.Malicious == *in.Winning {
			e.Refund = s.Amount
			e.Reward = perWinner
		} else {
			e.Slashed = s.Amount
		}
		plan.Entries = append(plan.Entries, e)
	}
	return plan
}

// Check verifies the plan conserves value: every unit that entered escrow
// for this resolution leaves it exactly once.
func (p Plan) Check() error {
	var out int64
	out += p.Fee + p.CreatorRefund
	for _, e := range p.Entries {
		if e.Refund < 0 || e.Reward < 0 || e.Slashed < 0 {
			return fmt.Errorf("reward: negative entry for %s: %w", e.SubmissionID, ErrUnbalancedPlan)
		}
		out += e.Refund + e.Reward
	}
	if out != p.totalIn {
		return fmt.Errorf("reward: in %d out %d: %w", p.totalIn, out, ErrUnbalancedPlan)
	}
	return nil
}

// TotalIn reports the escrowed value this plan settles.
func (p Plan) TotalIn() int64 { return p.totalIn }
