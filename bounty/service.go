package bounty

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/deep60/Nexus-Security-sub000/auth"
	"github.com/deep60/Nexus-Security-sub000/config"
	"github.com/deep60/Nexus-Security-sub000/events"
	"github.com/deep60/Nexus-Security-sub000/ledger"
)

// Service owns the bounty lifecycle: creation with reward escrow, reads,
// and cancellation. Resolution belongs to the consensus resolver.
type Service struct {
	pool   *pgxpool.Pool
	ledger ledger.Ledger
	params config.Engine
}

func NewService(pool *pgxpool.Pool, l ledger.Ledger, params config.Engine) *Service {
	return &Service{pool: pool, ledger: l, params: params}
}

// Create registers a bounty and escrows its reward from the creator's
// account; both happen in one transaction.
func (s *Service) Create(ctx context.Context, caller auth.Caller, params CreateParams) (Bounty, error) {
	if caller.ID == "" {
		return Bounty{}, auth.ErrUnauthorized
	}
	if params.Reward <= 0 {
		return Bounty{}, ErrInvalidReward
	}
	if params.ArtifactRef == "" {
		return Bounty{}, fmt.Errorf("bounty: artifact reference required")
	}
	if params.Deadline.Before(time.Now().Add(s.params.MinBountyLeadTime())) {
		return Bounty{}, ErrDeadlineTooSoon
	}

	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return Bounty{}, fmt.Errorf("bounty: begin tx: %w", err)
	}
	defer tx.Rollback(ctx)

	const insertSQL = `
        INSERT INTO bounties (creator_account, artifact_ref, description, reward, deadline)
        VALUES ($1, $2, $3, $4, $5)
        RETURNING ` + bountyColumns

	b, err := scanBounty(tx.QueryRow(ctx, insertSQL,
		caller.ID, params.ArtifactRef, params.Description, params.Reward, params.Deadline))
	if err != nil {
		return Bounty{}, fmt.Errorf("bounty: insert: %w", err)
	}

	if err := s.ledger.Escrow(ctx, tx, caller.ID, params.Reward); err != nil {
		return Bounty{}, err
	}

	if err := events.Enqueue(ctx, tx, events.TopicBountyCreated, map[string]any{
		"bounty_id":    b.ID,
		"creator":      b.CreatorAccount,
		"artifact_ref": b.ArtifactRef,
		"reward":       b.Reward,
		"deadline":     b.Deadline.UTC(),
	}); err != nil {
		return Bounty{}, err
	}

	if err := tx.Commit(ctx); err != nil {
		return Bounty{}, fmt.Errorf("bounty: commit create: %w", err)
	}
	return b, nil
}

// Get returns one bounty.
func (s *Service) Get(ctx context.Context, id string) (Bounty, error) {
	b, err := scanBounty(s.pool.QueryRow(ctx, `SELECT `+bountyColumns+` FROM bounties WHERE id = $1`, id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Bounty{}, ErrNotFound
		}
		return Bounty{}, fmt.Errorf("bounty: get: %w", err)
	}
	return b, nil
}

// Analysts lists the engines that submitted for a bounty.
func (s *Service) Analysts(ctx context.Context, id string) ([]Analyst, error) {
	var exists bool
	if err := s.pool.QueryRow(ctx, `SELECT EXISTS (SELECT 1 FROM bounties WHERE id = $1)`, id).Scan(&exists); err != nil {
		return nil, fmt.Errorf("bounty: check exists: %w", err)
	}
	if !exists {
		return nil, ErrNotFound
	}

	rows, err := s.pool.Query(ctx, `
        SELECT s.engine_id, e.display_name, s.malicious, s.confidence, s.stake, s.created_at
        FROM submissions s
        JOIN engines e ON e.id = s.engine_id
        WHERE s.bounty_id = $1
        ORDER BY s.created_at
    `, id)
	if err != nil {
		return nil, fmt.Errorf("bounty: analysts: %w", err)
	}
	defer rows.Close()

	out := make([]Analyst, 0, 8)
	for rows.Next() {
		var a Analyst
		if err := rows.Scan(&a.EngineID, &a.DisplayName, &a.Malicious, &a.Confidence, &a.Stake, &a.SubmittedAt); err != nil {
			return nil, fmt.Errorf("bounty: scan analyst: %w", err)
		}
		out = append(out, a)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("bounty: iterate analysts: %w", err)
	}
	return out, nil
}

// List pages bounties, optionally narrowed by creator or status.
func (s *Service) List(ctx context.Context, filters ListFilters) ([]Bounty, int, error) {
	if filters.Page <= 0 {
		filters.Page = 1
	}
	if filters.PageSize <= 0 || filters.PageSize > 100 {
		filters.PageSize = 20
	}

	where := ` WHERE 1=1`
	args := []any{}
	if filters.CreatorAccount != "" {
		args = append(args, filters.CreatorAccount)
		where += fmt.Sprintf(" AND creator_account = $%d", len(args))
	}
	if filters.Status != "" {
		args = append(args, string(filters.Status))
		where += fmt.Sprintf(" AND status = $%d::bounty_status", len(args))
	}

	countArgs := make([]any, len(args))
	copy(countArgs, args)

	args = append(args, filters.PageSize, (filters.Page-1)*filters.PageSize)
	query := `SELECT ` + bountyColumns + ` FROM bounties` + where +
		fmt.Sprintf(" ORDER BY created_at DESC LIMIT $%d OFFSET $%d", len(args)-1, len(args))

	rows, err := s.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, 0, fmt.Errorf("bounty: list: %w", err)
	}
	defer rows.Close()

	records := []Bounty{}
	for rows.Next() {
		b, err := scanBountyRows(rows)
		if err != nil {
			return nil, 0, fmt.Errorf("bounty: scan: %w", err)
		}
		records = append(records, b)
	}
	if err := rows.Err(); err != nil {
		return nil, 0, fmt.Errorf("bounty: iterate: %w", err)
	}

	var total int
	if err := s.pool.QueryRow(ctx, `SELECT COUNT(*) FROM bounties`+where, countArgs...).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("bounty: count: %w", err)
	}
	return records, total, nil
}

// Cancel terminates an Active bounty that attracted no submissions and
// refunds the escrowed reward. Allowed for the creator or an operator.
func (s *Service) Cancel(ctx context.Context, caller auth.Caller, id string) error {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("bounty: begin tx: %w", err)
	}
	defer tx.Rollback(ctx)

	var (
		creator       string
		status        string
		rewardAmount  int64
		analysisCount int
	)
	err = tx.QueryRow(ctx, `
        SELECT creator_account, status::text, reward, analysis_count
        FROM bounties WHERE id = $1 FOR UPDATE
    `, id).Scan(&creator, &status, &rewardAmount, &analysisCount)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return ErrNotFound
		}
		return fmt.Errorf("bounty: lock: %w", err)
	}

	if caller.ID != creator && !caller.Can(auth.CanOperateBounties) {
		return auth.ErrUnauthorized
	}
	if status != string(StatusActive) || analysisCount > 0 {
		return ErrNotCancellable
	}

	var ok bool
	if err := tx.QueryRow(ctx, `SELECT bounty_validate_transition($1::bounty_status, 'cancelled')`, status).Scan(&ok); err != nil {
		return fmt.Errorf("bounty: validate transition: %w", err)
	}
	if !ok {
		return ErrNotCancellable
	}

	if _, err := tx.Exec(ctx, `
        UPDATE bounties
        SET status = 'cancelled', reward_distributed = true, resolved_at = get_tx_timestamp()
        WHERE id = $1
    `, id); err != nil {
		return fmt.Errorf("bounty: cancel: %w", err)
	}

	if err := s.ledger.Payout(ctx, tx, creator, rewardAmount); err != nil {
		return err
	}

	if err := events.Enqueue(ctx, tx, events.TopicBountyCancelled, map[string]any{
		"bounty_id": id,
		"creator":   creator,
		"refund":    rewardAmount,
	}); err != nil {
		return err
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("bounty: commit cancel: %w", err)
	}
	return nil
}

const bountyColumns = `
    id, creator_account, artifact_ref, description, reward, deadline,
    status::text, verdict::text, total_staked, analysis_count,
    is_disputed, reward_distributed, created_at, resolved_at
`

type rowScanner interface {
	Scan(dest ...any) error
}

func scanBounty(row pgx.Row) (Bounty, error) {
	return scanBountyRows(row)
}

func scanBountyRows(row rowScanner) (Bounty, error) {
	var b Bounty
	err := row.Scan(
		&b.ID,
		&b.CreatorAccount,
		&b.ArtifactRef,
		&b.Description,
		&b.Reward,
		&b.Deadline,
		&b.Status,
		&b.Verdict,
		&b.TotalStaked,
		&b.AnalysisCount,
		&b.IsDisputed,
		&b.RewardDistributed,
		&b.CreatedAt,
		&b.ResolvedAt,
	)
	if err != nil {
		return Bounty{}, err
	}
	return b, nil
}
