// Package oracles holds SQL invariant checks run against the database
// after (and during) stress epochs. Each check returns an error describing
// the first violation it finds.
package oracles

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"
)

// CheckConservation verifies that no value was created or destroyed: the
// sum of all account balances must equal the total externally deposited.
func CheckConservation(ctx context.Context, pool *pgxpool.Pool, minted int64) error {
	var total int64
	if err := pool.QueryRow(ctx, `SELECT COALESCE(SUM(balance), 0) FROM accounts`).Scan(&total); err != nil {
		return fmt.Errorf("sum balances: %w", err)
	}
	if total != minted {
		return fmt.Errorf("conservation violated: minted %d, ledger holds %d", minted, total)
	}
	return nil
}

// CheckReputationBounds verifies every score sits inside [0, 1000] and that
// history rows stay inside the same bounds.
func CheckReputationBounds(ctx context.Context, pool *pgxpool.Pool) error {
	var n int
	if err := pool.QueryRow(ctx, `SELECT COUNT(*) FROM engines WHERE reputation < 0 OR reputation > 1000`).Scan(&n); err != nil {
		return fmt.Errorf("scan engines: %w", err)
	}
	if n > 0 {
		return fmt.Errorf("%d engines outside reputation bounds", n)
	}
	if err := pool.QueryRow(ctx, `SELECT COUNT(*) FROM reputation_history WHERE new_score < 0 OR new_score > 1000`).Scan(&n); err != nil {
		return fmt.Errorf("scan history: %w", err)
	}
	if n > 0 {
		return fmt.Errorf("%d history rows outside reputation bounds", n)
	}
	return nil
}

// CheckSettledBounties verifies terminal bounties are fully settled: a
// resolution timestamp, the reward flag set, and no submission left
// unresolved behind a resolved bounty.
func CheckSettledBounties(ctx context.Context, pool *pgxpool.Pool) error {
	var n int
	err := pool.QueryRow(ctx, `
        SELECT COUNT(*) FROM bounties
        WHERE status IN ('resolved', 'cancelled')
          AND (resolved_at IS NULL OR NOT reward_distributed)
    `).Scan(&n)
	if err != nil {
		return fmt.Errorf("scan terminal bounties: %w", err)
	}
	if n > 0 {
		return fmt.Errorf("%d terminal bounties missing settlement markers", n)
	}

	err = pool.QueryRow(ctx, `
        SELECT COUNT(*) FROM submissions s
        JOIN bounties b ON b.id = s.bounty_id
        WHERE b.status = 'resolved' AND NOT s.resolved
    `).Scan(&n)
	if err != nil {
		return fmt.Errorf("scan dangling submissions: %w", err)
	}
	if n > 0 {
		return fmt.Errorf("%d unresolved submissions behind resolved bounties", n)
	}
	return nil
}

// CheckSubmissionCounters verifies the denormalized bounty counters agree
// with the submissions actually recorded.
func CheckSubmissionCounters(ctx context.Context, pool *pgxpool.Pool) error {
	var n int
	err := pool.QueryRow(ctx, `
        SELECT COUNT(*) FROM bounties b
        WHERE b.analysis_count <> (SELECT COUNT(*) FROM submissions s WHERE s.bounty_id = b.id)
           OR b.total_staked <> (SELECT COALESCE(SUM(s.stake), 0) FROM submissions s WHERE s.bounty_id = b.id)
    `).Scan(&n)
	if err != nil {
		return fmt.Errorf("scan counters: %w", err)
	}
	if n > 0 {
		return fmt.Errorf("%d bounties with drifted counters", n)
	}
	return nil
}

// CheckSingleOpenDispute verifies no bounty carries more than one active
// dispute. The partial unique index enforces this; the oracle catches a
// broken migration.
func CheckSingleOpenDispute(ctx context.Context, pool *pgxpool.Pool) error {
	var n int
	err := pool.QueryRow(ctx, `
        SELECT COUNT(*) FROM (
            SELECT bounty_id FROM disputes WHERE status = 'active'
            GROUP BY bounty_id HAVING COUNT(*) > 1
        ) dup
    `).Scan(&n)
	if err != nil {
		return fmt.Errorf("scan disputes: %w", err)
	}
	if n > 0 {
		return fmt.Errorf("%d bounties with multiple open disputes", n)
	}
	return nil
}

// CheckAll runs every oracle.
func CheckAll(ctx context.Context, pool *pgxpool.Pool, minted int64) error {
	checks := []func() error{
		func() error { return CheckConservation(ctx, pool, minted) },
		func() error { return CheckReputationBounds(ctx, pool) },
		func() error { return CheckSettledBounties(ctx, pool) },
		func() error { return CheckSubmissionCounters(ctx, pool) },
		func() error { return CheckSingleOpenDispute(ctx, pool) },
	}
	for _, check := range checks {
		if err := check(); err != nil {
			return err
		}
	}
	return nil
}
