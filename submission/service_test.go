package submission

import (
	"context"
	"errors"
	"testing"

	"github.com/deep60/Nexus-Security-sub000/auth"
	"github.com/deep60/Nexus-Security-sub000/config"
)

func TestSubmitValidation(t *testing.T) {
	svc := NewService(nil, nil, nil, config.Default().Engine)
	analyst := auth.NewCaller("user-1", auth.RoleAnalyst)

	valid := SubmitParams{
		BountyID:   "b1",
		EngineID:   "e1",
		Malicious:  true,
		Confidence: 80,
		Stake:      50,
	}

	t.Run("requires submit capability", func(t *testing.T) {
		operator := auth.NewCaller("user-2", auth.RoleOperator)
		_, err := svc.Submit(context.Background(), operator, valid)
		if !errors.Is(err, auth.ErrUnauthorized) {
			t.Fatalf("expected ErrUnauthorized, got %v", err)
		}
	})

	t.Run("confidence bounds", func(t *testing.T) {
		for _, confidence := range []int{0, -1, 101} {
			p := valid
			p.Confidence = confidence
			_, err := svc.Submit(context.Background(), analyst, p)
			if !errors.Is(err, ErrInvalidConfidence) {
				t.Fatalf("confidence %d: expected ErrInvalidConfidence, got %v", confidence, err)
			}
		}
	})

	t.Run("missing ids", func(t *testing.T) {
		p := valid
		p.EngineID = ""
		if _, err := svc.Submit(context.Background(), analyst, p); err == nil {
			t.Fatal("expected error for missing engine id")
		}
	})
}
