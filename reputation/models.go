package reputation

import (
	"errors"
	"time"
)

type Category string

const (
	CategoryHuman     Category = "human"
	CategoryAutomated Category = "automated"
	CategoryHybrid    Category = "hybrid"
)

// History entry reasons. The reputation_history table is append-only and
// enforced write-once at the schema level.
const (
	ReasonRegistered = "registered"
	ReasonCorrect    = "correct_verdict"
	ReasonIncorrect  = "incorrect_verdict"
	ReasonDecay      = "decay"
)

var (
	ErrEngineNotFound = errors.New("reputation: engine not found")
	ErrEngineInactive = errors.New("reputation: engine inactive")
	// ErrDecayTooSoon signals the 30-day decay window has not elapsed.
	ErrDecayTooSoon = errors.New("reputation: decay window not elapsed")
)

// Profile mirrors the engines table.
type Profile struct {
	ID                 string
	OwnerUserID        *string
	DisplayName        string
	Category           Category
	Reputation         int
	TotalSubmissions   int
	CorrectSubmissions int
	FalsePositives     int
	FalseNegatives     int
	TotalStaked        int64
	TotalRewards       int64
	Streak             int
	MaxStreak          int
	Active             bool
	LastActivityAt     time.Time
	CreatedAt          time.Time
	UpdatedAt          time.Time
}

// HistoryEntry is one append-only reputation change record.
type HistoryEntry struct {
	ID        int64
	EngineID  string
	BountyID  *string
	OldScore  int
	NewScore  int
	Reason    string
	CreatedAt time.Time
}

// RegisterParams contains write parameters for registering an engine.
type RegisterParams struct {
	OwnerUserID string
	DisplayName string
	Category    Category
}
