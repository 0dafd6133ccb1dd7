package auth

import "errors"

// ErrUnauthorized signals a capability or eligibility failure. It is
// returned before any state change.
var ErrUnauthorized = errors.New("auth: unauthorized")

// Caller identifies who is invoking an operation and what it may do.
// Every mutating service operation takes one explicitly; nothing is
// derived from ambient state.
type Caller struct {
	ID           string
	Role         Role
	capabilities map[Capability]struct{}
}

// NewCaller builds a Caller with the capability set of its role.
func NewCaller(id string, role Role) Caller {
	caps := make(map[Capability]struct{}, 2)
	for _, c := range roleCapabilities[role] {
		caps[c] = struct{}{}
	}
	return Caller{ID: id, Role: role, capabilities: caps}
}

// SystemCaller carries every capability. Used by in-process schedulers
// (deadline sweep, decay job), never minted from a token.
func SystemCaller() Caller {
	c := Caller{ID: "system", Role: RoleAdmin, capabilities: make(map[Capability]struct{}, 4)}
	for _, caps := range roleCapabilities {
		for _, capability := range caps {
			c.capabilities[capability] = struct{}{}
		}
	}
	return c
}

func (c Caller) Can(capability Capability) bool {
	_, ok := c.capabilities[capability]
	return ok
}

// Require returns ErrUnauthorized unless the caller holds the capability.
func (c Caller) Require(capability Capability) error {
	if !c.Can(capability) {
		return ErrUnauthorized
	}
	return nil
}
