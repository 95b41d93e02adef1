package services

import (
	"context"
	"errors"
	"testing"
)

func TestCreateUser(t *testing.T) {
	env := newTestEnv(t, nil)
	ctx := context.Background()

	user, err := env.users.CreateUser(ctx, "  Alice ")
	if err != nil {
		t.Fatalf("CreateUser() error = %v", err)
	}
	if user.Name != "Alice" || len(user.Code) != codeLength || user.Token == "" {
		t.Errorf("user = %+v", user)
	}

	id, err := env.users.ValidateJWT(user.Token)
	if err != nil {
		t.Fatalf("ValidateJWT() error = %v", err)
	}
	if id != user.ID {
		t.Errorf("ValidateJWT() = %s, want %s", id, user.ID)
	}

	stored, err := env.users.GetUser(ctx, user.ID)
	if err != nil {
		t.Fatalf("GetUser() error = %v", err)
	}
	if stored.Token != "" {
		t.Error("token must not be persisted")
	}
	if byCode, err := env.userRepo.GetByCode(ctx, user.Code); err != nil || byCode.ID != user.ID {
		t.Errorf("GetByCode() = %v, %v", byCode, err)
	}
}

func TestCreateUser_RejectsEmptyName(t *testing.T) {
	env := newTestEnv(t, nil)
	if _, err := env.users.CreateUser(context.Background(), "   "); !errors.Is(err, ErrInvalidInput) {
		t.Fatalf("CreateUser() error = %v, want ErrInvalidInput", err)
	}
}

func TestValidateJWT_RejectsForeignSecret(t *testing.T) {
	env := newTestEnv(t, nil)
	other := NewUserService(env.userRepo, "another-secret-0123456789", 30)

	token, err := other.GenerateJWT("someone")
	if err != nil {
		t.Fatalf("GenerateJWT() error = %v", err)
	}
	if _, err := env.users.ValidateJWT(token); err == nil {
		t.Fatal("ValidateJWT() accepted a token signed with another secret")
	}
}

func TestGetUser_NotFound(t *testing.T) {
	env := newTestEnv(t, nil)
	if _, err := env.users.GetUser(context.Background(), "nobody"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("GetUser() error = %v, want ErrNotFound", err)
	}
}

func TestUpdatePushToken(t *testing.T) {
	env := newTestEnv(t, nil)
	ctx := context.Background()
	user := env.createUsers(t, 1)[0]

	token := "abcdef"
	if err := env.users.UpdatePushToken(ctx, user.ID, &token); err != nil {
		t.Fatalf("UpdatePushToken() error = %v", err)
	}
	got, _ := env.users.GetUser(ctx, user.ID)
	if got.PushToken == nil || *got.PushToken != token {
		t.Fatalf("PushToken = %v, want %s", got.PushToken, token)
	}

	blank := " "
	if err := env.users.UpdatePushToken(ctx, user.ID, &blank); err != nil {
		t.Fatalf("UpdatePushToken(blank) error = %v", err)
	}
	got, _ = env.users.GetUser(ctx, user.ID)
	if got.PushToken != nil {
		t.Errorf("PushToken = %v, want cleared", *got.PushToken)
	}

	if err := env.users.UpdatePushToken(ctx, "nobody", &token); !errors.Is(err, ErrNotFound) {
		t.Errorf("UpdatePushToken(unknown) error = %v, want ErrNotFound", err)
	}
}
