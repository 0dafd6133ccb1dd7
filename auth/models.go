package auth

import "time"

type Role string

const (
	// RoleAnalyst may submit analyses through engines it owns.
	RoleAnalyst Role = "analyst"
	// RoleOperator orchestrates bounty lifecycle: cancellation and
	// deadline-driven resolution sweeps.
	RoleOperator Role = "operator"
	// RoleArbiter adjudicates disputes.
	RoleArbiter Role = "arbiter"
	// RoleAdmin administers engine registration and reputation decay.
	RoleAdmin Role = "admin"
)

// Capability gates a class of engine operations. Operations check
// capabilities, not roles, so the role→capability mapping can evolve
// without touching the domain services.
type Capability string

const (
	CanSubmit            Capability = "submit"
	CanOperateBounties   Capability = "operate_bounties"
	CanAdminister        Capability = "administer"
	CanArbitrateDisputes Capability = "arbitrate_disputes"
)

var roleCapabilities = map[Role][]Capability{
	RoleAnalyst:  {CanSubmit},
	RoleOperator: {CanOperateBounties},
	RoleArbiter:  {CanArbitrateDisputes},
	RoleAdmin:    {CanAdminister, CanOperateBounties},
}

// User is the domain representation of an authenticated user. It mirrors
// the users table and carries no JSON annotations so it can be reused by
// different presentation layers.
type User struct {
	ID           string
	Email        string
	FullName     string
	PasswordHash string
	Role         Role
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

// RegisterRequest contains user registration data supplied by callers.
type RegisterRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
	FullName string `json:"full_name"`
	Role     Role   `json:"role"`
}

// LoginRequest contains user login credentials.
type LoginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}
