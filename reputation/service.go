package reputation

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/deep60/Nexus-Security-sub000/auth"
	"github.com/deep60/Nexus-Security-sub000/events"
	"github.com/deep60/Nexus-Security-sub000/ledger"
)

const (
	decayWindow        = 30 * 24 * time.Hour
	inactivityHorizon  = 30 * 24 * time.Hour
	defaultTopNLimit   = 20
	maxTopNLimit       = 100
	maxHistoryPageSize = 200
)

// Service owns engine profiles: registration, scoring, decay, tiers and
// ranking.
type Service struct {
	pool *pgxpool.Pool
}

func NewService(pool *pgxpool.Pool) *Service {
	return &Service{pool: pool}
}

// Register creates an engine profile with the initial score and a
// zero-balance ledger account. Requires the administer capability.
func (s *Service) Register(ctx context.Context, caller auth.Caller, params RegisterParams) (Profile, error) {
	if err := caller.Require(auth.CanAdminister); err != nil {
		return Profile{}, err
	}
	if params.DisplayName == "" {
		return Profile{}, fmt.Errorf("reputation: display name required")
	}
	switch params.Category {
	case CategoryHuman, CategoryAutomated, CategoryHybrid:
	default:
		return Profile{}, fmt.Errorf("reputation: invalid category %q", params.Category)
	}

	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return Profile{}, fmt.Errorf("reputation: begin tx: %w", err)
	}
	defer tx.Rollback(ctx)

	var owner any
	if params.OwnerUserID != "" {
		owner = params.OwnerUserID
	}

	const insertSQL = `
        INSERT INTO engines (owner_user_id, display_name, category, reputation)
        VALUES ($1, $2, $3, $4)
        RETURNING id, owner_user_id::text, display_name, category, reputation,
                  total_submissions, correct_submissions, false_positives, false_negatives,
                  total_staked, total_rewards, streak, max_streak, active,
                  last_activity_at, created_at, updated_at
    `
	profile, err := scanProfile(tx.QueryRow(ctx, insertSQL, owner, params.DisplayName, params.Category, ScoreInitial))
	if err != nil {
		return Profile{}, fmt.Errorf("reputation: insert engine: %w", err)
	}

	if err := ledger.CreateAccount(ctx, tx, profile.ID); err != nil {
		return Profile{}, err
	}

	if err := appendHistory(ctx, tx, profile.ID, nil, ScoreMin, ScoreInitial, ReasonRegistered); err != nil {
		return Profile{}, err
	}

	if err := events.Enqueue(ctx, tx, events.TopicEngineRegistered, map[string]any{
		"engine_id": profile.ID,
		"category":  string(profile.Category),
	}); err != nil {
		return Profile{}, err
	}

	if err := tx.Commit(ctx); err != nil {
		return Profile{}, fmt.Errorf("reputation: commit register: %w", err)
	}
	return profile, nil
}

// SetActive flips the active flag. Profiles are never deleted; an inactive
// engine cannot submit until reactivated.
func (s *Service) SetActive(ctx context.Context, caller auth.Caller, engineID string, active bool) error {
	if err := caller.Require(auth.CanAdminister); err != nil {
		return err
	}

	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("reputation: begin tx: %w", err)
	}
	defer tx.Rollback(ctx)

	tag, err := tx.Exec(ctx, `
        UPDATE engines SET active = $2, updated_at = get_tx_timestamp()
        WHERE id = $1 AND active <> $2
    `, engineID, active)
	if err != nil {
		return fmt.Errorf("reputation: set active: %w", err)
	}
	if tag.RowsAffected() == 0 {
		var exists bool
		if err := tx.QueryRow(ctx, `SELECT EXISTS (SELECT 1 FROM engines WHERE id = $1)`, engineID).Scan(&exists); err != nil {
			return fmt.Errorf("reputation: check engine: %w", err)
		}
		if !exists {
			return ErrEngineNotFound
		}
		return tx.Commit(ctx) // already in the requested state
	}

	if !active {
		if err := events.Enqueue(ctx, tx, events.TopicEngineDeactivated, map[string]any{"engine_id": engineID}); err != nil {
			return err
		}
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("reputation: commit set active: %w", err)
	}
	return nil
}

// ResolutionUpdate is one engine's scoring input at bounty resolution.
type ResolutionUpdate struct {
	EngineID         string
	BountyID         string
	Correct          bool
	Confidence       int
	Stake            int64
	RewardPaid       int64
	VerdictMalicious bool
}

// ApplyResolutionTx scores one resolved submission inside the caller's
// transaction. It locks the engine row, recomputes the weighted score,
// updates streaks and error classification, and appends the history row.
// Only active profiles are scored; inactive ones keep their state.
func (s *Service) ApplyResolutionTx(ctx context.Context, tx pgx.Tx, u ResolutionUpdate) error {
	var (
		snap   Snapshot
		score  int
		active bool
	)
	err := tx.QueryRow(ctx, `
        SELECT reputation, total_submissions, correct_submissions, streak, max_streak, active
        FROM engines WHERE id = $1 FOR UPDATE
    `, u.EngineID).Scan(&score, &snap.TotalSubmissions, &snap.CorrectSubmissions, &snap.Streak, &snap.MaxStreak, &active)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return ErrEngineNotFound
		}
		return fmt.Errorf("reputation: lock engine %s: %w", u.EngineID, err)
	}
	if !active {
		return nil
	}

	out := ScoreResolution(snap, u.Correct, u.Confidence, u.Stake)

	newStreak := 0
	newMaxStreak := snap.MaxStreak
	correctDelta := 0
	fpDelta, fnDelta := 0, 0
	reason := ReasonIncorrect
	if u.Correct {
		reason = ReasonCorrect
		correctDelta = 1
		newStreak = snap.Streak + 1
		if newStreak > newMaxStreak {
			newMaxStreak = newStreak
		}
	} else if u.VerdictMalicious {
		// Consensus said malicious, the engine said benign.
		fnDelta = 1
	} else {
		fpDelta = 1
	}

	_, err = tx.Exec(ctx, `
        UPDATE engines
        SET reputation = $2,
            total_submissions = total_submissions + 1,
            correct_submissions = correct_submissions + $3,
            false_positives = false_positives + $4,
            false_negatives = false_negatives + $5,
            total_rewards = total_rewards + $6,
            streak = $7,
            max_streak = $8,
            updated_at = get_tx_timestamp()
        WHERE id = $1
    `, u.EngineID, out.NewScore, correctDelta, fpDelta, fnDelta, u.RewardPaid, newStreak, newMaxStreak)
	if err != nil {
		return fmt.Errorf("reputation: update engine %s: %w", u.EngineID, err)
	}

	bountyID := u.BountyID
	if err := appendHistory(ctx, tx, u.EngineID, &bountyID, score, out.NewScore, reason); err != nil {
		return err
	}

	return events.Enqueue(ctx, tx, events.TopicReputationUpdated, map[string]any{
		"engine_id": u.EngineID,
		"bounty_id": u.BountyID,
		"old_score": score,
		"new_score": out.NewScore,
		"reason":    reason,
	})
}

// RunDecay applies the 5% inactivity reduction to engines idle for the
// inactivity horizon. It is gated to at most one run per decay window by
// the singleton decay_runs row; a premature call returns ErrDecayTooSoon
// and changes nothing.
func (s *Service) RunDecay(ctx context.Context, caller auth.Caller, now time.Time) (int, error) {
	if err := caller.Require(auth.CanAdminister); err != nil {
		return 0, err
	}

	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return 0, fmt.Errorf("reputation: begin tx: %w", err)
	}
	defer tx.Rollback(ctx)

	var lastRun *time.Time
	if err := tx.QueryRow(ctx, `SELECT last_run_at FROM decay_runs WHERE singleton FOR UPDATE`).Scan(&lastRun); err != nil {
		return 0, fmt.Errorf("reputation: lock decay gate: %w", err)
	}
	if lastRun != nil && now.Before(lastRun.Add(decayWindow)) {
		return 0, ErrDecayTooSoon
	}

	rows, err := tx.Query(ctx, `
        SELECT id, reputation FROM engines
        WHERE active AND last_activity_at < $1 AND reputation > $2
        ORDER BY id
        FOR UPDATE
    `, now.Add(-inactivityHorizon), ScoreMin)
	if err != nil {
		return 0, fmt.Errorf("reputation: select idle engines: %w", err)
	}

	type decayed struct {
		id       string
		old, new int
	}
	var updates []decayed
	for rows.Next() {
		var d decayed
		if err := rows.Scan(&d.id, &d.old); err != nil {
			rows.Close()
			return 0, fmt.Errorf("reputation: scan idle engine: %w", err)
		}
		d.new = DecayScore(d.old)
		if d.new != d.old {
			updates = append(updates, d)
		}
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return 0, fmt.Errorf("reputation: iterate idle engines: %w", err)
	}

	for _, d := range updates {
		if _, err := tx.Exec(ctx, `UPDATE engines SET reputation = $2, updated_at = get_tx_timestamp() WHERE id = $1`, d.id, d.new); err != nil {
			return 0, fmt.Errorf("reputation: decay engine %s: %w", d.id, err)
		}
		if err := appendHistory(ctx, tx, d.id, nil, d.old, d.new, ReasonDecay); err != nil {
			return 0, err
		}
		if err := events.Enqueue(ctx, tx, events.TopicReputationDecayed, map[string]any{
			"engine_id": d.id,
			"old_score": d.old,
			"new_score": d.new,
		}); err != nil {
			return 0, err
		}
	}

	if _, err := tx.Exec(ctx, `UPDATE decay_runs SET last_run_at = $1 WHERE singleton`, now); err != nil {
		return 0, fmt.Errorf("reputation: stamp decay run: %w", err)
	}

	if err := tx.Commit(ctx); err != nil {
		return 0, fmt.Errorf("reputation: commit decay: %w", err)
	}
	return len(updates), nil
}

// Get returns one engine profile.
func (s *Service) Get(ctx context.Context, engineID string) (Profile, error) {
	profile, err := scanProfile(s.pool.QueryRow(ctx, selectProfileSQL+` WHERE id = $1`, engineID))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Profile{}, ErrEngineNotFound
		}
		return Profile{}, fmt.Errorf("reputation: get engine: %w", err)
	}
	return profile, nil
}

// TopN returns the limit highest-reputation active engines, best first.
// Ties break on id so the ranking is deterministic.
func (s *Service) TopN(ctx context.Context, limit int) ([]Profile, error) {
	if limit <= 0 {
		limit = defaultTopNLimit
	}
	if limit > maxTopNLimit {
		limit = maxTopNLimit
	}

	rows, err := s.pool.Query(ctx, selectProfileSQL+`
        WHERE active
        ORDER BY reputation DESC, id
        LIMIT $1
    `, limit)
	if err != nil {
		return nil, fmt.Errorf("reputation: top n: %w", err)
	}
	defer rows.Close()

	out := make([]Profile, 0, limit)
	for rows.Next() {
		p, err := scanProfileRows(rows)
		if err != nil {
			return nil, fmt.Errorf("reputation: scan profile: %w", err)
		}
		out = append(out, p)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("reputation: iterate profiles: %w", err)
	}
	return out, nil
}

// History returns the most recent reputation changes for an engine.
func (s *Service) History(ctx context.Context, engineID string, limit int) ([]HistoryEntry, error) {
	if limit <= 0 || limit > maxHistoryPageSize {
		limit = maxHistoryPageSize
	}

	rows, err := s.pool.Query(ctx, `
        SELECT id, engine_id, bounty_id::text, old_score, new_score, reason, created_at
        FROM reputation_history
        WHERE engine_id = $1
        ORDER BY id DESC
        LIMIT $2
    `, engineID, limit)
	if err != nil {
		return nil, fmt.Errorf("reputation: history: %w", err)
	}
	defer rows.Close()

	out := make([]HistoryEntry, 0, limit)
	for rows.Next() {
		var e HistoryEntry
		if err := rows.Scan(&e.ID, &e.EngineID, &e.BountyID, &e.OldScore, &e.NewScore, &e.Reason, &e.CreatedAt); err != nil {
			return nil, fmt.Errorf("reputation: scan history: %w", err)
		}
		out = append(out, e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("reputation: iterate history: %w", err)
	}
	return out, nil
}

const selectProfileSQL = `
    SELECT id, owner_user_id::text, display_name, category, reputation,
           total_submissions, correct_submissions, false_positives, false_negatives,
           total_staked, total_rewards, streak, max_streak, active,
           last_activity_at, created_at, updated_at
    FROM engines
`

func appendHistory(ctx context.Context, tx pgx.Tx, engineID string, bountyID *string, oldScore, newScore int, reason string) error {
	var bounty any
	if bountyID != nil && *bountyID != "" {
		bounty = *bountyID
	}
	if _, err := tx.Exec(ctx, `
        INSERT INTO reputation_history (engine_id, bounty_id, old_score, new_score, reason)
        VALUES ($1, $2, $3, $4, $5)
    `, engineID, bounty, oldScore, newScore, reason); err != nil {
		return fmt.Errorf("reputation: append history: %w", err)
	}
	return nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanProfile(row pgx.Row) (Profile, error) {
	return scanProfileRows(row)
}

func scanProfileRows(row rowScanner) (Profile, error) {
	var p Profile
	err := row.Scan(
		&p.ID,
		&p.OwnerUserID,
		&p.DisplayName,
		&p.Category,
		&p.Reputation,
		&p.TotalSubmissions,
		&p.CorrectSubmissions,
		&p.FalsePositives,
		&p.FalseNegatives,
		&p.TotalStaked,
		&p.TotalRewards,
		&p.Streak,
		&p.MaxStreak,
		&p.Active,
		&p.LastActivityAt,
		&p.CreatedAt,
		&p.UpdatedAt,
	)
	if err != nil {
		return Profile{}, err
	}
	return p, nil
}
