package auth

import (
	"context"
	"testing"
	"time"

	"github.com/topup-ng/topup_ng/internal/config"
	"github.com/topup-ng/topup_ng/internal/identity"
)

func testConfig() config.Config {
	return config.Config{
		JWTSecret:       "test-access-secret",
		RefreshSecret:   "test-refresh-secret",
		AccessTokenTTL:  time.Minute,
		RefreshTokenTTL: time.Hour,
	}
}

func registerUser(t *testing.T, repo identity.Repository) identity.User {
	t.Helper()
	user, err := identity.NewService(repo).Register(context.Background(), identity.Credentials{
		Email:    "ada@example.com",
		Password: "s3cretpass",
		Name:     "Ada",
	})
	if err != nil {
		t.Fatalf("Register: %v", err)
	}
	return user
}

func TestLoginIssuesVerifiableTokens(t *testing.T) {
	repo := identity.NewMemoryRepository()
	user := registerUser(t, repo)
	svc := NewService(testConfig(), repo)

	pair, err := svc.Login(user)
	if err != nil {
		t.Fatalf("Login: %v", err)
	}

	claims, err := svc.ParseAccess(pair.AccessToken)
	if err != nil {
		t.Fatalf("ParseAccess: %v", err)
	}
	if claims.Subject != user.ID || claims.Role != identity.RoleCustomer {
		t.Fatalf("claims = %+v", claims)
	}

	// Refresh token is signed with a different secret.
	if _, err := svc.ParseAccess(pair.RefreshToken); err == nil {
		t.Fatal("refresh token accepted as access token")
	}
}

func TestRefreshRotatesAccessToken(t *testing.T) {
	repo := identity.NewMemoryRepository()
	user := registerUser(t, repo)
	svc := NewService(testConfig(), repo)

	pair, err := svc.Login(user)
	if err != nil {
		t.Fatalf("Login: %v", err)
	}

	access, expiresIn, err := svc.Refresh(context.Background(), pair.RefreshToken)
	if err != nil {
		t.Fatalf("Refresh: %v", err)
	}
	if expiresIn <= 0 {
		t.Fatalf("expires_in = %d", expiresIn)
	}
	if _, err := svc.ParseAccess(access); err != nil {
		t.Fatalf("ParseAccess on refreshed token: %v", err)
	}
}

func TestLogoutInvalidatesRefreshTokens(t *testing.T) {
	repo := identity.NewMemoryRepository()
	user := registerUser(t, repo)
	svc := NewService(testConfig(), repo)

	pair, err := svc.Login(user)
	if err != nil {
		t.Fatalf("Login: %v", err)
	}

	if err := svc.Logout(context.Background(), user.ID); err != nil {
		t.Fatalf("Logout: %v", err)
	}

	if _, _, err := svc.Refresh(context.Background(), pair.RefreshToken); err == nil {
		t.Fatal("refresh token still valid after logout")
	}
}

func TestParseRejectsTamperedToken(t *testing.T) {
	repo := identity.NewMemoryRepository()
	user := registerUser(t, repo)
	svc := NewService(testConfig(), repo)

	pair, err := svc.Login(user)
	if err != nil {
		t.Fatalf("Login: %v", err)
	}

	if _, err := Parse(pair.AccessToken, "wrong-secret"); err == nil {
		t.Fatal("token verified with wrong secret")
	}
	if _, err := Parse(pair.AccessToken+"x", "test-access-secret"); err == nil {
		t.Fatal("tampered token verified")
	}
}
