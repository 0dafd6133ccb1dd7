package bounty

import (
	"errors"
	"time"

	"github.com/deep60/Nexus-Security-sub000/consensus"
)

// Status values match the bounty_status enum. Bounties are never deleted,
// only status-transitioned; the schema enforces both.
type Status string

const (
	StatusActive    Status = "active"
	StatusResolved  Status = "resolved"
	StatusDisputed  Status = "disputed"
	StatusCancelled Status = "cancelled"
)

var (
	ErrNotFound        = errors.New("bounty: not found")
	ErrInvalidReward   = errors.New("bounty: reward must be positive")
	ErrDeadlineTooSoon = errors.New("bounty: deadline too soon")
	ErrNotCancellable  = errors.New("bounty: not cancellable")
)

// Bounty mirrors the bounties table.
type Bounty struct {
	ID                string
	CreatorAccount    string
	ArtifactRef       string
	Description       string
	Reward            int64
	Deadline          time.Time
	Status            Status
	Verdict           consensus.Verdict
	TotalStaked       int64
	AnalysisCount     int
	IsDisputed        bool
	RewardDistributed bool
	CreatedAt         time.Time
	ResolvedAt        *time.Time
}

// CreateParams contains the caller-supplied bounty fields.
type CreateParams struct {
	ArtifactRef string
	Description string
	Reward      int64
	Deadline    time.Time
}

// Analyst is one engine that submitted an analysis for a bounty.
type Analyst struct {
	EngineID    string
	DisplayName string
	Malicious   bool
	Confidence  int
	Stake       int64
	SubmittedAt time.Time
}

// ListFilters narrows and pages List results.
type ListFilters struct {
	CreatorAccount string
	Status         Status
	Page           int
	PageSize       int
}
