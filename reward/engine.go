package reward

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"

	"github.com/deep60/Nexus-Security-sub000/events"
	"github.com/deep60/Nexus-Security-sub000/ledger"
)

// Engine applies a computed Plan inside the caller's transaction. Every
// transfer hits the accounts table in the same transaction as the bounty
// state change, so a failed payout aborts the whole resolution.
type Engine struct {
	ledger ledger.Ledger
}

func NewEngine(l ledger.Ledger) *Engine {
	return &Engine{ledger: l}
}

// ApplyTx validates and executes the plan for one bounty. Winning
// submissions are flagged rewarded; the flag update is guarded on the
// previous value so a submission can never be paid twice.
func (e *Engine) ApplyTx(ctx context.Context, tx pgx.Tx, bountyID string, plan Plan) error {
	if err := plan.Check(); err != nil {
		return err
	}

	if plan.Fee > 0 {
		if err := e.ledger.Payout(ctx, tx, ledger.FeeAccount, plan.Fee); err != nil {
			return fmt.Errorf("reward: pay fee for bounty %s: %w", bountyID, err)
		}
	}
	if plan.CreatorRefund > 0 {
		var creator string
		if err := tx.QueryRow(ctx, `SELECT creator_account FROM bounties WHERE id = $1`, bountyID).Scan(&creator); err != nil {
			return fmt.Errorf("reward: fetch creator for bounty %s: %w", bountyID, err)
		}
		if err := e.ledger.Payout(ctx, tx, creator, plan.CreatorRefund); err != nil {
			return fmt.Errorf("reward: refund creator for bounty %s: %w", bountyID, err)
		}
	}

	for _, entry := range plan.Entries {
		switch {
		case entry.Slashed > 0:
			// Slashed stakes stay in escrow; they fund the winner pool.
			if err := events.Enqueue(ctx, tx, events.TopicStakeSlashed, map[string]any{
				"bounty_id":     bountyID,
				"submission_id": entry.SubmissionID,
				"engine_id":     entry.EngineID,
				"amount":        entry.Slashed,
			}); err != nil {
				return err
			}
		default:
			if err := e.ledger.Payout(ctx, tx, entry.EngineID, entry.Refund+entry.Reward); err != nil {
				return fmt.Errorf("reward: pay engine %s: %w", entry.EngineID, err)
			}
			if entry.Reward > 0 {
				tag, err := tx.Exec(ctx, `
                    UPDATE submissions SET rewarded = true
                    WHERE id = $1 AND NOT rewarded
                `, entry.SubmissionID)
				if err != nil {
					return fmt.Errorf("reward: flag submission %s: %w", entry.SubmissionID, err)
				}
				if tag.RowsAffected() == 0 {
					return fmt.Errorf("reward: submission %s already rewarded", entry.SubmissionID)
				}
				if err := events.Enqueue(ctx, tx, events.TopicRewardDistributed, map[string]any{
					"bounty_id":     bountyID,
					"submission_id": entry.SubmissionID,
					"engine_id":     entry.EngineID,
					"refund":        entry.Refund,
					"reward":        entry.Reward,
				}); err != nil {
					return err
				}
			}
		}
	}

	return nil
}
