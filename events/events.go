// Package events implements the transactional outbox every mutating
// operation writes its observable events through. Rows are published by an
// external relay; nothing in this module consumes them.
package events

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
)

const (
	TopicBountyCreated      = "bounty.created"
	TopicBountyCancelled    = "bounty.cancelled"
	TopicBountyResolved     = "bounty.resolved"
	TopicSubmissionRecorded = "submission.recorded"
	TopicStakeSlashed       = "stake.slashed"
	TopicRewardDistributed  = "reward.distributed"
	TopicReputationUpdated  = "reputation.updated"
	TopicReputationDecayed  = "reputation.decayed"
	TopicEngineRegistered   = "engine.registered"
	TopicEngineDeactivated  = "engine.deactivated"
	TopicDisputeCreated     = "dispute.created"
	TopicDisputeResolved    = "dispute.resolved"
)

// Enqueue writes an enveloped event into the outbox inside the caller's
// transaction, so the event commits or aborts with the state change that
// produced it.
func Enqueue(ctx context.Context, tx pgx.Tx, topic string, payload map[string]any) error {
	if payload == nil {
		payload = make(map[string]any, 2)
	}
	payload["event_id"] = uuid.NewString()
	payload["emitted_at"] = time.Now().UTC().Format(time.RFC3339Nano)

	body, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("events: marshal %s payload: %w", topic, err)
	}

	if _, err := tx.Exec(ctx, `INSERT INTO outbox (topic, payload) VALUES ($1, $2::jsonb)`, topic, body); err != nil {
		return fmt.Errorf("events: enqueue %s: %w", topic, err)
	}
	return nil
}
