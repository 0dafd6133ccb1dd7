package dispute

import (
	"context"
	"errors"
	"testing"

	"github.com/deep60/Nexus-Security-sub000/auth"
	"github.com/deep60/Nexus-Security-sub000/config"
)

func TestCreateValidation(t *testing.T) {
	svc := NewService(nil, nil, config.Default().Engine)
	challenger := auth.NewCaller("user-1", auth.RoleAnalyst)

	t.Run("missing caller", func(t *testing.T) {
		_, err := svc.Create(context.Background(), auth.Caller{}, CreateParams{
			BountyID: "b1", Reason: "verdict wrong", Stake: 100,
		})
		if !errors.Is(err, auth.ErrUnauthorized) {
			t.Fatalf("expected ErrUnauthorized, got %v", err)
		}
	})

	t.Run("missing reason", func(t *testing.T) {
		if _, err := svc.Create(context.Background(), challenger, CreateParams{
			BountyID: "b1", Stake: 100,
		}); err == nil {
			t.Fatal("expected error for missing reason")
		}
	})

	t.Run("stake below minimum", func(t *testing.T) {
		_, err := svc.Create(context.Background(), challenger, CreateParams{
			BountyID: "b1", Reason: "verdict wrong", Stake: 99,
		})
		if !errors.Is(err, ErrStakeTooLow) {
			t.Fatalf("expected ErrStakeTooLow, got %v", err)
		}
	})
}

func TestResolveRequiresArbiter(t *testing.T) {
	svc := NewService(nil, nil, config.Default().Engine)

	for _, role := range []auth.Role{auth.RoleAnalyst, auth.RoleOperator} {
		caller := auth.NewCaller("user-1", role)
		_, err := svc.Resolve(context.Background(), caller, "d1", true)
		if !errors.Is(err, auth.ErrUnauthorized) {
			t.Fatalf("%s: expected ErrUnauthorized, got %v", role, err)
		}
	}
}
