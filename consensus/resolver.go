package consensus

import (
	"context"
	"errors"
	"fmt"
	"log"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/deep60/Nexus-Security-sub000/auth"
	"github.com/deep60/Nexus-Security-sub000/config"
	"github.com/deep60/Nexus-Security-sub000/events"
	"github.com/deep60/Nexus-Security-sub000/ledger"
	"github.com/deep60/Nexus-Security-sub000/reputation"
	"github.com/deep60/Nexus-Security-sub000/reward"
)

var (
	ErrBountyNotFound = errors.New("consensus: bounty not found")
	ErrNotResolvable  = errors.New("consensus: bounty is not resolvable")
)

// Resolver decides and settles bounties. All resolution work for one
// bounty happens inside a single transaction holding the bounty row lock,
// so a resolution either commits whole or leaves no trace.
type Resolver struct {
	pool       *pgxpool.Pool
	ledger     ledger.Ledger
	rewards    *reward.Engine
	reputation *reputation.Service
	params     config.Engine
}

func NewResolver(pool *pgxpool.Pool, l ledger.Ledger, rewards *reward.Engine, rep *reputation.Service, params config.Engine) *Resolver {
	return &Resolver{
		pool:       pool,
		ledger:     l,
		rewards:    rewards,
		reputation: rep,
		params:     params,
	}
}

// ShouldResolve is the trigger policy: enough analyses accumulated, or the
// deadline has passed.
func (r *Resolver) ShouldResolve(analysisCount int, deadline, now time.Time) bool {
	return analysisCount >= 2*r.params.MinAnalysesToResolve || !now.Before(deadline)
}

// Resolve settles one Active bounty. Operator-gated, and bound to the
// same trigger policy as the submission path: the bounty must have
// accumulated enough analyses or passed its deadline. The submission
// trigger path uses ResolveInTx directly inside the submission's own
// transaction instead.
func (r *Resolver) Resolve(ctx context.Context, caller auth.Caller, bountyID string) error {
	if err := caller.Require(auth.CanOperateBounties); err != nil {
		return err
	}

	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("consensus: begin tx: %w", err)
	}
	defer tx.Rollback(ctx)

	var (
		status        string
		deadline      time.Time
		analysisCount int
	)
	err = tx.QueryRow(ctx, `
        SELECT status::text, deadline, analysis_count
        FROM bounties WHERE id = $1 FOR UPDATE
    `, bountyID).Scan(&status, &deadline, &analysisCount)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return ErrBountyNotFound
		}
		return fmt.Errorf("consensus: lock bounty: %w", err)
	}
	if status != "active" {
		return ErrNotResolvable
	}
	if !r.ShouldResolve(analysisCount, deadline, time.Now()) {
		return fmt.Errorf("consensus: trigger not met: %w", ErrNotResolvable)
	}

	if err := r.ResolveInTx(ctx, tx, bountyID); err != nil {
		return err
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("consensus: commit resolution: %w", err)
	}
	return nil
}

// ResolveInTx runs the full resolution for a bounty whose row the caller
// already holds FOR UPDATE: tally, settlement plan, transfers, submission
// marking, reputation updates and status transition.
func (r *Resolver) ResolveInTx(ctx context.Context, tx pgx.Tx, bountyID string) error {
	var (
		creator           string
		rewardAmount      int64
		rewardDistributed bool
	)
	err := tx.QueryRow(ctx, `
        SELECT creator_account, reward, reward_distributed
        FROM bounties WHERE id = $1
    `, bountyID).Scan(&creator, &rewardAmount, &rewardDistributed)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return ErrBountyNotFound
		}
		return fmt.Errorf("consensus: fetch bounty: %w", err)
	}

	subs, err := loadUnresolved(ctx, tx, bountyID)
	if err != nil {
		return err
	}

	if len(subs) == 0 && !rewardDistributed {
		return r.cancelUnanswered(ctx, tx, bountyID, creator, rewardAmount)
	}

	ballots := make([]Ballot, len(subs))
	for i, s := range subs {
		ballots[i] = Ballot{Malicious: s.malicious, Confidence: s.confidence, Stake: s.stake}
	}
	result := Tally(ballots, r.params.ConsensusThresholdPct)

	stakes := make([]reward.Stake, len(subs))
	for i, s := range subs {
		stakes[i] = reward.Stake{
			SubmissionID: s.id,
			EngineID:     s.engineID,
			Malicious:    s.malicious,
			Amount:       s.stake,
		}
	}
	plan := reward.BuildPlan(reward.PlanInput{
		Reward:            rewardAmount,
		FeePct:            r.params.PlatformFeePct,
		CreatorAccount:    creator,
		RewardDistributed: rewardDistributed,
		Winning:           result.Winning(),
		Stakes:            stakes,
	})
	if err := r.rewards.ApplyTx(ctx, tx, bountyID, plan); err != nil {
		return err
	}

	rewardBySubmission := make(map[string]int64, len(plan.Entries))
	for _, e := range plan.Entries {
		rewardBySubmission[e.SubmissionID] = e.Reward
	}

	winning := result.Winning()
	for _, s := range subs {
		var actual any
		if winning != nil {
			actual = *winning
		}
		if _, err := tx.Exec(ctx, `
            UPDATE submissions SET resolved = true, actual_result = $2
            WHERE id = $1
        `, s.id, actual); err != nil {
			return fmt.Errorf("consensus: mark submission %s: %w", s.id, err)
		}

		// Pending resolutions carry no right answer, so reputation is
		// untouched.
		if winning == nil {
			continue
		}
		if err := r.reputation.ApplyResolutionTx(ctx, tx, reputation.ResolutionUpdate{
			EngineID:         s.engineID,
			BountyID:         bountyID,
			Correct:          s.malicious == *winning,
			Confidence:       s.confidence,
			Stake:            s.stake,
			RewardPaid:       rewardBySubmission[s.id],
			VerdictMalicious: *winning,
		}); err != nil {
			return err
		}
	}

	if err := transitionBounty(ctx, tx, bountyID, "resolved", string(result.Verdict)); err != nil {
		return err
	}

	return events.Enqueue(ctx, tx, events.TopicBountyResolved, map[string]any{
		"bounty_id":        bountyID,
		"verdict":          string(result.Verdict),
		"malicious_weight": result.MaliciousWeight,
		"benign_weight":    result.BenignWeight,
		"submissions":      len(subs),
	})
}

// cancelUnanswered terminates a bounty that hit its trigger with zero
// submissions: full reward back to the creator, no reputation impact.
func (r *Resolver) cancelUnanswered(ctx context.Context, tx pgx.Tx, bountyID, creator string, rewardAmount int64) error {
	if err := r.ledger.Payout(ctx, tx, creator, rewardAmount); err != nil {
		return fmt.Errorf("consensus: refund creator: %w", err)
	}
	if err := transitionBounty(ctx, tx, bountyID, "cancelled", string(VerdictPending)); err != nil {
		return err
	}
	return events.Enqueue(ctx, tx, events.TopicBountyResolved, map[string]any{
		"bounty_id":   bountyID,
		"verdict":     string(VerdictPending),
		"cancelled":   true,
		"submissions": 0,
	})
}

// SweepExpired resolves every Active bounty whose deadline has passed.
// Each bounty is settled in its own transaction; SKIP LOCKED lets
// concurrent sweepers divide the work.
func (r *Resolver) SweepExpired(ctx context.Context, caller auth.Caller, now time.Time) (int, error) {
	if err := caller.Require(auth.CanOperateBounties); err != nil {
		return 0, err
	}

	rows, err := r.pool.Query(ctx, `
        SELECT id FROM bounties WHERE status = 'active' AND deadline <= $1
    `, now)
	if err != nil {
		return 0, fmt.Errorf("consensus: select expired: %w", err)
	}
	var ids []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			rows.Close()
			return 0, fmt.Errorf("consensus: scan expired: %w", err)
		}
		ids = append(ids, id)
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return 0, fmt.Errorf("consensus: iterate expired: %w", err)
	}

	resolved := 0
	for _, id := range ids {
		if err := r.sweepOne(ctx, id, now); err != nil {
			log.Printf("sweep: bounty %s: %v", id, err)
			continue
		}
		resolved++
	}
	return resolved, nil
}

func (r *Resolver) sweepOne(ctx context.Context, bountyID string, now time.Time) error {
	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("consensus: begin sweep tx: %w", err)
	}
	defer tx.Rollback(ctx)

	var status string
	var deadline time.Time
	err = tx.QueryRow(ctx, `
        SELECT status::text, deadline FROM bounties WHERE id = $1 FOR UPDATE SKIP LOCKED
    `, bountyID).Scan(&status, &deadline)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil // raced: locked elsewhere or gone
		}
		return fmt.Errorf("consensus: lock for sweep: %w", err)
	}
	if status != "active" || deadline.After(now) {
		return nil
	}

	if err := r.ResolveInTx(ctx, tx, bountyID); err != nil {
		return err
	}
	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("consensus: commit sweep: %w", err)
	}
	return nil
}

type submissionRow struct {
	id         string
	engineID   string
	malicious  bool
	confidence int
	stake      int64
}

// loadUnresolved orders by engine id, which is unique per bounty, so
// concurrent resolutions of different bounties sharing engines take their
// engine row locks in the same order.
func loadUnresolved(ctx context.Context, tx pgx.Tx, bountyID string) ([]submissionRow, error) {
	rows, err := tx.Query(ctx, `
        SELECT id, engine_id, malicious, confidence, stake
        FROM submissions
        WHERE bounty_id = $1 AND NOT resolved
        ORDER BY engine_id
    `, bountyID)
	if err != nil {
		return nil, fmt.Errorf("consensus: load submissions: %w", err)
	}
	defer rows.Close()

	var subs []submissionRow
	for rows.Next() {
		var s submissionRow
		if err := rows.Scan(&s.id, &s.engineID, &s.malicious, &s.confidence, &s.stake); err != nil {
			return nil, fmt.Errorf("consensus: scan submission: %w", err)
		}
		subs = append(subs, s)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("consensus: iterate submissions: %w", err)
	}
	return subs, nil
}

func transitionBounty(ctx context.Context, tx pgx.Tx, bountyID, next, verdict string) error {
	var current string
	if err := tx.QueryRow(ctx, `SELECT status::text FROM bounties WHERE id = $1`, bountyID).Scan(&current); err != nil {
		return fmt.Errorf("consensus: fetch status: %w", err)
	}

	var ok bool
	if err := tx.QueryRow(ctx, `SELECT bounty_validate_transition($1::bounty_status, $2::bounty_status)`, current, next).Scan(&ok); err != nil {
		return fmt.Errorf("consensus: validate transition: %w", err)
	}
	if !ok {
		return fmt.Errorf("consensus: invalid transition %s -> %s: %w", current, next, ErrNotResolvable)
	}

	if _, err := tx.Exec(ctx, `
        UPDATE bounties
        SET status = $2::bounty_status,
            verdict = $3::bounty_verdict,
            reward_distributed = true,
            resolved_at = get_tx_timestamp()
        WHERE id = $1
    `, bountyID, next, verdict); err != nil {
		return fmt.Errorf("consensus: update bounty: %w", err)
	}
	return nil
}
