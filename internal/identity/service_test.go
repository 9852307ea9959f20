package identity

import (
	"context"
	"testing"
)

func TestRegisterAndAuthenticate(t *testing.T) {
	svc := NewService(NewMemoryRepository())
	ctx := context.Background()

	user, err := svc.Register(ctx, Credentials{Email: "Ada@Example.com", Password: "s3cretpass", Name: "Ada"})
	if err != nil {
		t.Fatalf("Register: %v", err)
	}
	if user.Email != "ada@example.com" {
		t.Fatalf("email = %q, want lowercased", user.Email)
	}
	if user.Role != RoleCustomer {
		t.Fatalf("role = %q, want customer", user.Role)
	}
	if string(user.PasswordHash) == "s3cretpass" {
		t.Fatal("password stored in plaintext")
	}

	authed, err := svc.Authenticate(ctx, Credentials{Email: "ada@example.com", Password: "s3cretpass"})
	if err != nil {
		t.Fatalf("Authenticate: %v", err)
	}
	if authed.ID != user.ID {
		t.Fatalf("authenticated id = %q, want %q", authed.ID, user.ID)
	}
	if authed.LastLogin.IsZero() {
		t.Fatal("last login not recorded")
	}
}

func TestRegisterRejectsWeakInput(t *testing.T) {
	svc := NewService(NewMemoryRepository())
	ctx := context.Background()

	if _, err := svc.Register(ctx, Credentials{Email: "not-an-email", Password: "s3cretpass"}); err == nil {
		t.Fatal("expected error for invalid email")
	}
	if _, err := svc.Register(ctx, Credentials{Email: "ada@example.com", Password: "short"}); err == nil {
		t.Fatal("expected error for short password")
	}
}

func TestRegisterDuplicateEmail(t *testing.T) {
	svc := NewService(NewMemoryRepository())
	ctx := context.Background()

	if _, err := svc.Register(ctx, Credentials{Email: "ada@example.com", Password: "s3cretpass"}); err != nil {
		t.Fatalf("Register: %v", err)
	}
	if _, err := svc.Register(ctx, Credentials{Email: "ADA@example.com", Password: "an0therpass"}); err == nil {
		t.Fatal("expected error for duplicate email")
	}
}

func TestAuthenticateWrongPassword(t *testing.T) {
	svc := NewService(NewMemoryRepository())
	ctx := context.Background()

	if _, err := svc.Register(ctx, Credentials{Email: "ada@example.com", Password: "s3cretpass"}); err != nil {
		t.Fatalf("Register: %v", err)
	}

	_, err := svc.Authenticate(ctx, Credentials{Email: "ada@example.com", Password: "wrongpass"})
	if err == nil {
		t.Fatal("expected error for wrong password")
	}
	// Same generic message for unknown email and wrong password.
	_, err2 := svc.Authenticate(ctx, Credentials{Email: "ghost@example.com", Password: "wrongpass"})
	if err2 == nil || err2.Error() != err.Error() {
		t.Fatalf("error messages differ: %v vs %v", err, err2)
	}
}
