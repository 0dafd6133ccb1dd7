package submission

import (
	"errors"
	"time"
)

var (
	ErrAlreadySubmitted  = errors.New("submission: engine already submitted for this bounty")
	ErrStakeTooLow       = errors.New("submission: stake below required minimum")
	ErrBountyInactive    = errors.New("submission: bounty is not accepting analyses")
	ErrInvalidConfidence = errors.New("submission: confidence must be within [1,100]")
)

// Submission mirrors the submissions table. ActualResult is nil until the
// bounty resolves with a non-Pending verdict.
type Submission struct {
	ID           string
	BountyID     string
	EngineID     string
	Malicious    bool
	Confidence   int
	Stake        int64
	EvidenceRef  string
	ActualResult *bool
	Resolved     bool
	Rewarded     bool
	CreatedAt    time.Time
}

// SubmitParams is one analysis being recorded.
type SubmitParams struct {
	BountyID    string
	EngineID    string
	Malicious   bool
	Confidence  int
	Stake       int64
	EvidenceRef string
}

// ListFilters narrows List results.
type ListFilters struct {
	BountyID string
	EngineID string
	Page     int
	PageSize int
}
