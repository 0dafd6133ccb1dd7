package bounty

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/deep60/Nexus-Security-sub000/auth"
	"github.com/deep60/Nexus-Security-sub000/config"
)

// Validation runs before any transaction starts, so these paths need no
// database.
func TestCreateValidation(t *testing.T) {
	svc := NewService(nil, nil, config.Default().Engine)
	caller := auth.NewCaller("user-1", auth.RoleAnalyst)
	farFuture := time.Now().Add(48 * time.Hour)

	cases := []struct {
		name   string
		caller auth.Caller
		params CreateParams
		want   error
	}{
		{
			name:   "missing caller",
			caller: auth.Caller{},
			params: CreateParams{ArtifactRef: "sha256:abc", Reward: 100, Deadline: farFuture},
			want:   auth.ErrUnauthorized,
		},
		{
			name:   "zero reward",
			caller: caller,
			params: CreateParams{ArtifactRef: "sha256:abc", Reward: 0, Deadline: farFuture},
			want:   ErrInvalidReward,
		},
		{
			name:   "negative reward",
			caller: caller,
			params: CreateParams{ArtifactRef: "sha256:abc", Reward: -5, Deadline: farFuture},
			want:   ErrInvalidReward,
		},
		{
			name:   "deadline inside lead time",
			caller: caller,
			params: CreateParams{ArtifactRef: "sha256:abc", Reward: 100, Deadline: time.Now().Add(time.Minute)},
			want:   ErrDeadlineTooSoon,
		},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := svc.Create(context.Background(), tc.caller, tc.params)
			if !errors.Is(err, tc.want) {
				t.Fatalf("expected %v, got %v", tc.want, err)
			}
		})
	}

	if _, err := svc.Create(context.Background(), caller, CreateParams{
		Reward:   100,
		Deadline: farFuture,
	}); err == nil {
		t.Fatal("expected error for missing artifact reference")
	}
}
