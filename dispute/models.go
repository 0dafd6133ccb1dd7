package dispute

import (
	"errors"
	"time"
)

type Status string

const (
	StatusActive   Status = "active"
	StatusResolved Status = "resolved"
	StatusRejected Status = "rejected"
)

var (
	ErrNotFound         = errors.New("dispute: not found")
	ErrNotDisputable    = errors.New("dispute: bounty is not disputable")
	ErrWindowClosed     = errors.New("dispute: dispute window has closed")
	ErrAlreadyDisputed  = errors.New("dispute: bounty already has an open dispute")
	ErrStakeTooLow      = errors.New("dispute: stake below the required minimum")
	ErrAlreadyConcluded = errors.New("dispute: already concluded")
)

// Dispute mirrors the disputes table.
type Dispute struct {
	ID         string
	BountyID   string
	Challenger string
	Reason     string
	Stake      int64
	Status     Status
	ResolverID *string
	CreatedAt  time.Time
	ResolvedAt *time.Time
}

// CreateParams contains the challenger-supplied dispute fields.
type CreateParams struct {
	BountyID string
	Reason   string
	Stake    int64
}
