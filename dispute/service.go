package dispute

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/deep60/Nexus-Security-sub000/auth"
	"github.com/deep60/Nexus-Security-sub000/config"
	"github.com/deep60/Nexus-Security-sub000/events"
	"github.com/deep60/Nexus-Security-sub000/ledger"
)

// Service arbitrates challenges against resolved bounties. An accepted
// dispute reopens the bounty with a fresh submission window so new
// analyses can overturn the verdict; payouts already made are never
// clawed back and settled submissions are never re-tallied.
type Service struct {
	pool   *pgxpool.Pool
	ledger ledger.Ledger
	params config.Engine
}

func NewService(pool *pgxpool.Pool, l ledger.Ledger, params config.Engine) *Service {
	return &Service{pool: pool, ledger: l, params: params}
}

// Create opens a dispute against a Resolved bounty. The challenger's
// stake is escrowed; the partial unique index keeps a bounty to one open
// dispute at a time.
func (s *Service) Create(ctx context.Context, caller auth.Caller, p CreateParams) (Dispute, error) {
	if caller.ID == "" {
		return Dispute{}, auth.ErrUnauthorized
	}
	if p.Reason == "" {
		return Dispute{}, fmt.Errorf("dispute: reason required")
	}
	if p.Stake < s.params.MinDisputeStake {
		return Dispute{}, fmt.Errorf("dispute: need at least %d: %w", s.params.MinDisputeStake, ErrStakeTooLow)
	}

	now := time.Now()

	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return Dispute{}, fmt.Errorf("dispute: begin tx: %w", err)
	}
	defer tx.Rollback(ctx)

	var (
		status   string
		deadline time.Time
	)
	err = tx.QueryRow(ctx, `
        SELECT status::text, deadline
        FROM bounties WHERE id = $1 FOR UPDATE
    `, p.BountyID).Scan(&status, &deadline)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Dispute{}, ErrNotFound
		}
		return Dispute{}, fmt.Errorf("dispute: lock bounty: %w", err)
	}
	if status != "resolved" {
		return Dispute{}, ErrNotDisputable
	}
	if now.After(deadline.Add(s.params.DisputePeriod())) {
		return Dispute{}, ErrWindowClosed
	}

	const insertSQL = `
        INSERT INTO disputes (bounty_id, challenger, reason, stake)
        VALUES ($1, $2, $3, $4)
        RETURNING ` + disputeColumns

	d, err := scanDispute(tx.QueryRow(ctx, insertSQL, p.BountyID, caller.ID, p.Reason, p.Stake))
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == "23505" {
			return Dispute{}, ErrAlreadyDisputed
		}
		return Dispute{}, fmt.Errorf("dispute: insert: %w", err)
	}

	if err := s.ledger.Escrow(ctx, tx, caller.ID, p.Stake); err != nil {
		return Dispute{}, err
	}

	if err := transitionBounty(ctx, tx, p.BountyID, "disputed", true, time.Time{}); err != nil {
		return Dispute{}, err
	}

	if err := events.Enqueue(ctx, tx, events.TopicDisputeCreated, map[string]any{
		"dispute_id": d.ID,
		"bounty_id":  p.BountyID,
		"challenger": caller.ID,
		"stake":      p.Stake,
	}); err != nil {
		return Dispute{}, err
	}

	if err := tx.Commit(ctx); err != nil {
		return Dispute{}, fmt.Errorf("dispute: commit create: %w", err)
	}
	return d, nil
}

// Resolve concludes an open dispute. Accepted: the challenger gets the
// stake back plus a half-stake bonus drawn from the fee account, and the
// bounty reopens with a Pending verdict and a reanalysis window during
// which engines that have not yet analyzed it may submit; their tally
// decides the final verdict. Rejected: the stake is forfeited to the fee
// account and the bounty returns to Resolved.
func (s *Service) Resolve(ctx context.Context, caller auth.Caller, disputeID string, accept bool) (Dispute, error) {
	if err := caller.Require(auth.CanArbitrateDisputes); err != nil {
		return Dispute{}, err
	}

	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return Dispute{}, fmt.Errorf("dispute: begin tx: %w", err)
	}
	defer tx.Rollback(ctx)

	d, err := scanDispute(tx.QueryRow(ctx, `SELECT `+disputeColumns+` FROM disputes WHERE id = $1 FOR UPDATE`, disputeID))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Dispute{}, ErrNotFound
		}
		return Dispute{}, fmt.Errorf("dispute: lock: %w", err)
	}
	if d.Status != StatusActive {
		return Dispute{}, ErrAlreadyConcluded
	}

	// Lock the bounty before touching it; dispute creation locked it in
	// the same order.
	var bountyStatus string
	if err := tx.QueryRow(ctx, `SELECT status::text FROM bounties WHERE id = $1 FOR UPDATE`, d.BountyID).Scan(&bountyStatus); err != nil {
		return Dispute{}, fmt.Errorf("dispute: lock bounty: %w", err)
	}
	if bountyStatus != "disputed" {
		return Dispute{}, ErrNotDisputable
	}

	next := StatusRejected
	if accept {
		next = StatusResolved
	}

	if accept {
		if err := s.ledger.Payout(ctx, tx, d.Challenger, d.Stake); err != nil {
			return Dispute{}, err
		}
		if err := s.ledger.Transfer(ctx, tx, ledger.FeeAccount, d.Challenger, d.Stake/2); err != nil {
			return Dispute{}, err
		}
		reopenUntil := time.Now().Add(s.params.ReanalysisWindow())
		if err := transitionBounty(ctx, tx, d.BountyID, "active", false, reopenUntil); err != nil {
			return Dispute{}, err
		}
	} else {
		if err := s.ledger.Transfer(ctx, tx, ledger.EscrowAccount, ledger.FeeAccount, d.Stake); err != nil {
			return Dispute{}, err
		}
		if err := transitionBounty(ctx, tx, d.BountyID, "resolved", false, time.Time{}); err != nil {
			return Dispute{}, err
		}
	}

	d, err = scanDispute(tx.QueryRow(ctx, `
        UPDATE disputes
        SET status = $2::dispute_status, resolver_id = $3, resolved_at = get_tx_timestamp()
        WHERE id = $1
        RETURNING `+disputeColumns, disputeID, string(next), caller.ID))
	if err != nil {
		return Dispute{}, fmt.Errorf("dispute: conclude: %w", err)
	}

	if err := events.Enqueue(ctx, tx, events.TopicDisputeResolved, map[string]any{
		"dispute_id": d.ID,
		"bounty_id":  d.BountyID,
		"accepted":   accept,
		"resolver":   caller.ID,
	}); err != nil {
		return Dispute{}, err
	}

	if err := tx.Commit(ctx); err != nil {
		return Dispute{}, fmt.Errorf("dispute: commit resolution: %w", err)
	}
	return d, nil
}

// Get returns one dispute.
func (s *Service) Get(ctx context.Context, id string) (Dispute, error) {
	d, err := scanDispute(s.pool.QueryRow(ctx, `SELECT `+disputeColumns+` FROM disputes WHERE id = $1`, id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Dispute{}, ErrNotFound
		}
		return Dispute{}, fmt.Errorf("dispute: get: %w", err)
	}
	return d, nil
}

// ListForBounty returns every dispute raised against a bounty, newest first.
func (s *Service) ListForBounty(ctx context.Context, bountyID string) ([]Dispute, error) {
	rows, err := s.pool.Query(ctx, `SELECT `+disputeColumns+` FROM disputes WHERE bounty_id = $1 ORDER BY created_at DESC`, bountyID)
	if err != nil {
		return nil, fmt.Errorf("dispute: list: %w", err)
	}
	defer rows.Close()

	out := []Dispute{}
	for rows.Next() {
		d, err := scanDisputeRows(rows)
		if err != nil {
			return nil, fmt.Errorf("dispute: scan: %w", err)
		}
		out = append(out, d)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("dispute: iterate: %w", err)
	}
	return out, nil
}

// transitionBounty validates and applies a dispute-driven status change.
// Reopening resets the verdict and pushes the deadline to reopenUntil so
// engines that have not yet analyzed the bounty get a fresh window; the
// already-settled submissions stay settled and out of the next tally.
func transitionBounty(ctx context.Context, tx pgx.Tx, bountyID, next string, disputed bool, reopenUntil time.Time) error {
	var current string
	if err := tx.QueryRow(ctx, `SELECT status::text FROM bounties WHERE id = $1`, bountyID).Scan(&current); err != nil {
		return fmt.Errorf("dispute: fetch status: %w", err)
	}

	var ok bool
	if err := tx.QueryRow(ctx, `SELECT bounty_validate_transition($1::bounty_status, $2::bounty_status)`, current, next).Scan(&ok); err != nil {
		return fmt.Errorf("dispute: validate transition: %w", err)
	}
	if !ok {
		return fmt.Errorf("dispute: invalid transition %s -> %s: %w", current, next, ErrNotDisputable)
	}

	if next == "active" {
		if _, err := tx.Exec(ctx, `
            UPDATE bounties
            SET status = 'active', is_disputed = $2, verdict = 'pending',
                resolved_at = NULL, deadline = $3
            WHERE id = $1
        `, bountyID, disputed, reopenUntil); err != nil {
			return fmt.Errorf("dispute: reopen bounty: %w", err)
		}
		return nil
	}

	if _, err := tx.Exec(ctx, `
        UPDATE bounties SET status = $2::bounty_status, is_disputed = $3
        WHERE id = $1
    `, bountyID, next, disputed); err != nil {
		return fmt.Errorf("dispute: update bounty: %w", err)
	}
	return nil
}

const disputeColumns = `
    id, bounty_id, challenger, reason, stake, status::text,
    resolver_id::text, created_at, resolved_at
`

type rowScanner interface {
	Scan(dest ...any) error
}

func scanDispute(row pgx.Row) (Dispute, error) {
	return scanDisputeRows(row)
}

func scanDisputeRows(row rowScanner) (Dispute, error) {
	var d Dispute
	err := row.Scan(
		&d.ID,
		&d.BountyID,
		&d.Challenger,
		&d.Reason,
		&d.Stake,
		&d.Status,
		&d.ResolverID,
		&d.CreatedAt,
		&d.ResolvedAt,
	)
	if err != nil {
		return Dispute{}, err
	}
	return d, nil
}
