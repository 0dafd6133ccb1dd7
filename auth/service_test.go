package auth

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"testing"
	"time"
)

func TestService_RegisterAndLogin(t *testing.T) {
	repo := newFakeRepository()
	svc := NewService(repo, "test-secret", time.Hour)

	req := RegisterRequest{
		Email:    "alice@example.com",
		Password: "supersafe",
		FullName: "Alice Analyst",
	}

	ctx := context.Background()
	user, err := svc.Register(ctx, req)
	if err != nil {
		t.Fatalf("register: unexpected error: %v", err)
	}

	if user.Email != req.Email {
		t.Fatalf("expected email %q got %q", req.Email, user.Email)
	}
	if user.Role != RoleAnalyst {
		t.Fatalf("register: expected default role %s got %s", RoleAnalyst, user.Role)
	}

	resp, err := svc.Login(ctx, LoginRequest{Email: req.Email, Password: req.Password})
	if err != nil {
		t.Fatalf("login: unexpected error: %v", err)
	}
	if resp.Token == "" {
		t.Fatal("login: expected token, got empty string")
	}
	if resp.User.ID != user.ID {
		t.Fatalf("login: expected user id %q got %q", user.ID, resp.User.ID)
	}

	caller, err := svc.CallerFromToken(resp.Token)
	if err != nil {
		t.Fatalf("caller from token: %v", err)
	}
	if caller.ID != user.ID {
		t.Fatalf("caller from token: expected %q got %q", user.ID, caller.ID)
	}
	if !caller.Can(CanSubmit) {
		t.Fatal("analyst caller should hold CanSubmit")
	}
	if caller.Can(CanAdminister) {
		t.Fatal("analyst caller should not hold CanAdminister")
	}
}

func TestService_RegisterValidation(t *testing.T) {
	repo := newFakeRepository()
	svc := NewService(repo, "test-secret", time.Hour)

	_, err := svc.Register(context.Background(), RegisterRequest{
		Email:    "alice@example.com",
		Password: "short",
		FullName: "Alice Analyst",
	})
	if !errors.Is(err, ErrWeakPassword) {
		t.Fatalf("expected ErrWeakPassword, got %v", err)
	}

	if _, err := svc.Register(context.Background(), RegisterRequest{
		Email:    "",
		Password: "strongpassword",
		FullName: "",
	}); err == nil {
		t.Fatal("expected validation error for missing fields")
	}
}

func TestService_DuplicateEmail(t *testing.T) {
	repo := newFakeRepository()
	svc := NewService(repo, "test-secret", time.Hour)

	req := RegisterRequest{
		Email:    "alice@example.com",
		Password: "strongpassword",
		FullName: "Alice Analyst",
	}
	if _, err := svc.Register(context.Background(), req); err != nil {
		t.Fatalf("first register failed: %v", err)
	}

	if _, err := svc.Register(context.Background(), req); !errors.Is(err, ErrDuplicateEmail) {
		t.Fatalf("expected ErrDuplicateEmail, got %v", err)
	}
}

func TestService_LoginInvalidCredentials(t *testing.T) {
	repo := newFakeRepository()
	svc := NewService(repo, "test-secret", time.Hour)

	_, err := svc.Login(context.Background(), LoginRequest{
		Email:    "unknown@example.com",
		Password: "irrelevant",
	})
	if !errors.Is(err, ErrInvalidCredentials) {
		t.Fatalf("expected ErrInvalidCredentials, got %v", err)
	}
}

func TestCallerCapabilities(t *testing.T) {
	cases := []struct {
		role    Role
		allowed []Capability
		denied  []Capability
	}{
		{RoleAnalyst, []Capability{CanSubmit}, []Capability{CanOperateBounties, CanAdminister, CanArbitrateDisputes}},
		{RoleOperator, []Capability{CanOperateBounties}, []Capability{CanSubmit, CanAdminister, CanArbitrateDisputes}},
		{RoleArbiter, []Capability{CanArbitrateDisputes}, []Capability{CanSubmit, CanOperateBounties, CanAdminister}},
		{RoleAdmin, []Capability{CanAdminister, CanOperateBounties}, []Capability{CanSubmit, CanArbitrateDisputes}},
	}

	for _, tc := range cases {
		caller := NewCaller("u1", tc.role)
		for _, c := range tc.allowed {
			if err := caller.Require(c); err != nil {
				t.Errorf("%s: expected %s allowed, got %v", tc.role, c, err)
			}
		}
		for _, c := range tc.denied {
			if err := caller.Require(c); !errors.Is(err, ErrUnauthorized) {
				t.Errorf("%s: expected %s denied, got %v", tc.role, c, err)
			}
		}
	}

	system := SystemCaller()
	for _, c := range []Capability{CanSubmit, CanOperateBounties, CanAdminister, CanArbitrateDisputes} {
		if !system.Can(c) {
			t.Errorf("system caller missing %s", c)
		}
	}
}

type fakeRepository struct {
	usersByEmail map[string]User
	usersByID    map[string]User
	nextID       int
}

func newFakeRepository() *fakeRepository {
	return &fakeRepository{
		usersByEmail: make(map[string]User),
		usersByID:    make(map[string]User),
		nextID:       1,
	}
}

func (f *fakeRepository) CreateUser(ctx context.Context, params CreateUserParams) (User, error) {
	if _, exists := f.usersByEmail[strings.ToLower(params.Email)]; exists {
		return User{}, ErrDuplicateEmail
	}

	id := fmt.Sprintf("user-%d", f.nextID)
	f.nextID++
	role := params.Role
	if role == "" {
		role = RoleAnalyst
	}

	user := User{
		ID:           id,
		Email:        params.Email,
		FullName:     params.FullName,
		PasswordHash: params.PasswordHash,
		Role:         role,
		CreatedAt:    time.Now().UTC(),
		UpdatedAt:    time.Now().UTC(),
	}

	f.usersByEmail[strings.ToLower(user.Email)] = user
	f.usersByID[user.ID] = user

	return user, nil
}

func (f *fakeRepository) GetUserByEmail(ctx context.Context, email string) (User, error) {
	user, ok := f.usersByEmail[strings.ToLower(email)]
	if !ok {
		return User{}, ErrUserNotFound
	}
	return user, nil
}

func (f *fakeRepository) GetUserByID(ctx context.Context, userID string) (User, error) {
	user, ok := f.usersByID[userID]
	if !ok {
		return User{}, ErrUserNotFound
	}
	return user, nil
}
