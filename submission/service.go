package submission

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
	"github.com/deep60/Nexus-Security-sub000/consensus"
	"github.com/deep60/Nexus-Security-sub000/events"
	"github.com/deep60/Nexus-Security-sub000/ledger"
	"github.com/deep60/Nexus-Security-sub000/reputation"
)

// Service records analyses. A submission, its stake escrow, the bounty
// counters, and a possible consensus resolution all commit in one
// transaction, so the trigger check can never re-enter a half-applied
// state.
type Service struct {
	pool     *pgxpool.Pool
	ledger   ledger.Ledger
	resolver *consensus.Resolver
	params   config.Engine
}

func NewService(pool *pgxpool.Pool, l ledger.Ledger, resolver *consensus.Resolver, params config.Engine) *Service {
	return &Service{pool: pool, ledger: l, resolver: resolver, params: params}
}

// Submit validates eligibility, escrows the stake, records the analysis
// and runs the consensus trigger check.
func (s *Service) Submit(ctx context.Context, caller auth.Caller, p SubmitParams) (Submission, error) {
	if err := caller.Require(auth.CanSubmit); err != nil {
		return Submission{}, err
	}
	if p.Confidence < 1 || p.Confidence > 100 {
		return Submission{}, ErrInvalidConfidence
	}
	if p.BountyID == "" || p.EngineID == "" {
		return Submission{}, fmt.Errorf("submission: bounty and engine ids required")
	}

	now := time.Now()

	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return Submission{}, fmt.Errorf("submission: begin tx: %w", err)
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
    `, p.BountyID).Scan(&status, &deadline, &analysisCount)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Submission{}, ErrBountyInactive
		}
		return Submission{}, fmt.Errorf("submission: lock bounty: %w", err)
	}
	if status != "active" || !now.Before(deadline) {
		return Submission{}, ErrBountyInactive
	}

	var (
		owner    *string
		active   bool
		repScore int
	)
	err = tx.QueryRow(ctx, `
        SELECT owner_user_id::text, active, reputation
        FROM engines WHERE id = $1 FOR UPDATE
    `, p.EngineID).Scan(&owner, &active, &repScore)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Submission{}, reputation.ErrEngineNotFound
		}
		return Submission{}, fmt.Errorf("submission: lock engine: %w", err)
	}
	if owner == nil || *owner != caller.ID {
		return Submission{}, auth.ErrUnauthorized
	}
	if !active {
		return Submission{}, reputation.ErrEngineInactive
	}
	if repScore < s.params.MinReputationToSubmit {
		return Submission{}, auth.ErrUnauthorized
	}

	// Low-reputation tiers post more collateral.
	required := reputation.MinStakeFor(s.params.MinStake, repScore)
	if p.Stake < required {
		return Submission{}, fmt.Errorf("submission: need at least %d: %w", required, ErrStakeTooLow)
	}

	const insertSQL = `
        INSERT INTO submissions (bounty_id, engine_id, malicious, confidence, stake, evidence_ref)
        VALUES ($1, $2, $3, $4, $5, $6)
        RETURNING id, bounty_id, engine_id, malicious, confidence, stake, evidence_ref,
                  actual_result, resolved, rewarded, created_at
    `
	sub, err := scanSubmission(tx.QueryRow(ctx, insertSQL,
		p.BountyID, p.EngineID, p.Malicious, p.Confidence, p.Stake, p.EvidenceRef))
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == "23505" {
			return Submission{}, ErrAlreadySubmitted
		}
		return Submission{}, fmt.Errorf("submission: insert: %w", err)
	}

	if err := s.ledger.Escrow(ctx, tx, p.EngineID, p.Stake); err != nil {
		return Submission{}, err
	}

	if _, err := tx.Exec(ctx, `
        UPDATE bounties
        SET total_staked = total_staked + $2, analysis_count = analysis_count + 1
        WHERE id = $1
    `, p.BountyID, p.Stake); err != nil {
		return Submission{}, fmt.Errorf("submission: bump bounty: %w", err)
	}

	if _, err := tx.Exec(ctx, `
        UPDATE engines
        SET total_staked = total_staked + $2, last_activity_at = get_tx_timestamp(), updated_at = get_tx_timestamp()
        WHERE id = $1
    `, p.EngineID, p.Stake); err != nil {
		return Submission{}, fmt.Errorf("submission: bump engine: %w", err)
	}

	if err := events.Enqueue(ctx, tx, events.TopicSubmissionRecorded, map[string]any{
		"bounty_id":     p.BountyID,
		"submission_id": sub.ID,
		"engine_id":     p.EngineID,
		"confidence":    p.Confidence,
		"stake":         p.Stake,
	}); err != nil {
		return Submission{}, err
	}

	// Trigger check runs to completion inside this same transaction; the
	// bounty row lock taken above makes re-entry impossible.
	if s.resolver.ShouldResolve(analysisCount+1, deadline, now) {
		if err := s.resolver.ResolveInTx(ctx, tx, p.BountyID); err != nil {
			return Submission{}, err
		}
	}

	if err := tx.Commit(ctx); err != nil {
		return Submission{}, fmt.Errorf("submission: commit: %w", err)
	}
	return sub, nil
}

// List pages submissions for a bounty or an engine.
func (s *Service) List(ctx context.Context, filters ListFilters) ([]Submission, error) {
	if filters.Page <= 0 {
		filters.Page = 1
	}
	if filters.PageSize <= 0 || filters.PageSize > 100 {
		filters.PageSize = 20
	}

	where := ` WHERE 1=1`
	args := []any{}
	if filters.BountyID != "" {
		args = append(args, filters.BountyID)
		where += fmt.Sprintf(" AND bounty_id = $%d", len(args))
	}
	if filters.EngineID != "" {
		args = append(args, filters.EngineID)
		where += fmt.Sprintf(" AND engine_id = $%d", len(args))
	}
	args = append(args, filters.PageSize, (filters.Page-1)*filters.PageSize)

	query := `
        SELECT id, bounty_id, engine_id, malicious, confidence, stake, evidence_ref,
               actual_result, resolved, rewarded, created_at
        FROM submissions` + where +
		fmt.Sprintf(" ORDER BY created_at DESC LIMIT $%d OFFSET $%d", len(args)-1, len(args))

	rows, err := s.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("submission: list: %w", err)
	}
	defer rows.Close()

	out := []Submission{}
	for rows.Next() {
		sub, err := scanSubmissionRows(rows)
		if err != nil {
			return nil, fmt.Errorf("submission: scan: %w", err)
		}
		out = append(out, sub)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("submission: iterate: %w", err)
	}
	return out, nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanSubmission(row pgx.Row) (Submission, error) {
	return scanSubmissionRows(row)
}

func scanSubmissionRows(row rowScanner) (Submission, error) {
	var sub Submission
	err := row.Scan(
		&sub.ID,
		&sub.BountyID,
		&sub.EngineID,
		&sub.Malicious,
		&sub.Confidence,
		&sub.Stake,
		&sub.EvidenceRef,
		&sub.ActualResult,
		&sub.Resolved,
		&sub.Rewarded,
		&sub.CreatedAt,
	)
	if err != nil {
		return Submission{}, err
	}
	return sub, nil
}
