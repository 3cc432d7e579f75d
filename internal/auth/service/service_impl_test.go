package service

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/glebarez/sqlite"
	"github.com/smallops/dealdesk/internal/auth/domain"
	authrepository "github.com/smallops/dealdesk/internal/auth/repository"
	"github.com/smallops/dealdesk/internal/clock"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

type authFixture struct {
	svc   domain.Service
	db    *gorm.DB
	node  *snowflake.Node
	clock *clock.FakeClock
}

func setupAuthService(t *testing.T) *authFixture {
	t.Helper()

	dsn := fmt.Sprintf("file:%s?mode=memory&cache=shared&_loc=auto", t.Name())
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{})
	if err != nil {
		t.Fatalf("open db: %v", err)
	}
	sqlDB, err := db.DB()
	if err != nil {
		t.Fatalf("db handle: %v", err)
	}
	sqlDB.SetMaxOpenConns(1)
	sqlDB.SetMaxIdleConns(1)

	if err := db.AutoMigrate(&domain.User{}, &domain.Session{}); err != nil {
		t.Fatalf("migrate: %v", err)
	}

	node, err := snowflake.NewNode(1)
	if err != nil {
		t.Fatalf("new node: %v", err)
	}
	clk := clock.NewFakeClock(time.Date(2024, 3, 1, 10, 0, 0, 0, time.UTC))

	repo, sessionRepo := authrepository.New(db)
	return &authFixture{
		svc:   New(zap.NewNop(), repo, sessionRepo, node, clk),
		db:    db,
		node:  node,
		clock: clk,
	}
}

func (f *authFixture) createUser(t *testing.T, email, pass string) *domain.User {
	t.Helper()
	user, err := f.svc.CreateUser(context.Background(), domain.CreateUserRequest{
		Email:    email,
		Password: pass,
	})
	if err != nil {
		t.Fatalf("create user %s: %v", email, err)
	}
	return user
}

func (f *authFixture) login(t *testing.T, email, pass string) *domain.LoginResult {
	t.Helper()
	result, err := f.svc.Login(context.Background(), domain.LoginRequest{
		Email:     email,
		Password:  pass,
		UserAgent: "go-test",
		IPAddress: "127.0.0.1",
	})
	if err != nil {
		t.Fatalf("login %s: %v", email, err)
	}
	return result
}

func TestCreateUserNormalizesEmail(t *testing.T) {
	f := setupAuthService(t)

	user := f.createUser(t, "  Ada.Lovelace@Example.COM ", "correct horse battery")
	if user.Email != "ada.lovelace@example.com" {
		t.Fatalf("email = %q", user.Email)
	}
	if user.DisplayName != "ada.lovelace" {
		t.Fatalf("display name = %q", user.DisplayName)
	}
	if user.PasswordHash == nil || *user.PasswordHash == "correct horse battery" {
		t.Fatal("password stored unhashed")
	}
	if user.ExternalID == "" {
		t.Fatal("external id not assigned")
	}
}

func TestCreateUserValidation(t *testing.T) {
	f := setupAuthService(t)

	cases := []domain.CreateUserRequest{
		{Email: "not-an-email", Password: "long enough password"},
		{Email: "ada@example.com", Password: "short"},
	}
	for _, req := range cases {
		if _, err := f.svc.CreateUser(context.Background(), req); !errors.Is(err, domain.ErrInvalidCredentials) {
			t.Fatalf("CreateUser(%q) err = %v, want ErrInvalidCredentials", req.Email, err)
		}
	}

	f.createUser(t, "ada@example.com", "correct horse battery")
	_, err := f.svc.CreateUser(context.Background(), domain.CreateUserRequest{
		Email:    "ADA@example.com",
		Password: "another password",
	})
	if !errors.Is(err, domain.ErrUserExists) {
		t.Fatalf("duplicate email err = %v, want ErrUserExists", err)
	}
}

func TestLoginIssuesSession(t *testing.T) {
	f := setupAuthService(t)
	user := f.createUser(t, "ada@example.com", "correct horse battery")

	result := f.login(t, "ada@example.com", "correct horse battery")
	if result.User.ID != user.ID {
		t.Fatalf("login resolved wrong user: %s", result.User.ID)
	}
	if result.RawToken == "" {
		t.Fatal("no session token issued")
	}
	if want := f.clock.Now().Add(7 * 24 * time.Hour); !result.ExpiresAt.Equal(want) {
		t.Fatalf("expires_at = %v, want %v", result.ExpiresAt, want)
	}

	var session domain.Session
	if err := f.db.First(&session, "id = ?", result.SessionID).Error; err != nil {
		t.Fatalf("load session: %v", err)
	}
	if session.SessionTokenHash == result.RawToken {
		t.Fatal("raw token persisted instead of hash")
	}
	if session.UserAgent != "go-test" || session.IPAddress != "127.0.0.1" {
		t.Fatalf("session metadata = %q / %q", session.UserAgent, session.IPAddress)
	}
}

func TestLoginRejectsBadCredentials(t *testing.T) {
	f := setupAuthService(t)
	f.createUser(t, "ada@example.com", "correct horse battery")

	cases := []struct{ email, pass string }{
		{"ada@example.com", "wrong password"},
		{"nobody@example.com", "correct horse battery"},
		{"ada@example.com", ""},
		{"", "correct horse battery"},
	}
	for _, tc := range cases {
		_, err := f.svc.Login(context.Background(), domain.LoginRequest{Email: tc.email, Password: tc.pass})
		if !errors.Is(err, domain.ErrInvalidCredentials) {
			t.Fatalf("Login(%q) err = %v, want ErrInvalidCredentials", tc.email, err)
		}
	}
}

func TestAuthenticateValidSession(t *testing.T) {
	f := setupAuthService(t)
	user := f.createUser(t, "ada@example.com", "correct horse battery")
	result := f.login(t, "ada@example.com", "correct horse battery")

	f.clock.Advance(time.Hour)
	session, err := f.svc.Authenticate(context.Background(), result.RawToken)
	if err != nil {
		t.Fatalf("authenticate: %v", err)
	}
	if session.UserID != user.ID {
		t.Fatalf("session user = %s, want %s", session.UserID, user.ID)
	}

	var stored domain.Session
	if err := f.db.First(&stored, "id = ?", session.ID).Error; err != nil {
		t.Fatalf("load session: %v", err)
	}
	if !stored.LastSeenAt.Equal(f.clock.Now()) {
		t.Fatalf("last_seen_at = %v, want %v", stored.LastSeenAt, f.clock.Now())
	}
}

func TestAuthenticateRejectsInvalidTokens(t *testing.T) {
	f := setupAuthService(t)

	for _, token := range []string{"", "   ", "never-issued"} {
		if _, err := f.svc.Authenticate(context.Background(), token); !errors.Is(err, domain.ErrInvalidSession) {
			t.Fatalf("Authenticate(%q) err = %v, want ErrInvalidSession", token, err)
		}
	}
}

func TestAuthenticateExpiredSession(t *testing.T) {
	f := setupAuthService(t)
	f.createUser(t, "ada@example.com", "correct horse battery")
	result := f.login(t, "ada@example.com", "correct horse battery")

	f.clock.Advance(7*24*time.Hour + time.Minute)
	_, err := f.svc.Authenticate(context.Background(), result.RawToken)
	if !errors.Is(err, domain.ErrSessionExpired) {
		t.Fatalf("err = %v, want ErrSessionExpired", err)
	}
}

func TestLogoutRevokesSession(t *testing.T) {
	f := setupAuthService(t)
	f.createUser(t, "ada@example.com", "correct horse battery")
	result := f.login(t, "ada@example.com", "correct horse battery")

	if err := f.svc.Logout(context.Background(), result.RawToken); err != nil {
		t.Fatalf("logout: %v", err)
	}

	_, err := f.svc.Authenticate(context.Background(), result.RawToken)
	if !errors.Is(err, domain.ErrSessionRevoked) {
		t.Fatalf("err = %v, want ErrSessionRevoked", err)
	}

	if err := f.svc.Logout(context.Background(), "never-issued"); !errors.Is(err, domain.ErrInvalidSession) {
		t.Fatalf("unknown token logout err = %v, want ErrInvalidSession", err)
	}
}

func TestChangePassword(t *testing.T) {
	f := setupAuthService(t)
	user := f.createUser(t, "ada@example.com", "correct horse battery")

	err := f.svc.ChangePassword(context.Background(), user.ID, "wrong password", "a brand new password")
	if !errors.Is(err, domain.ErrInvalidCredentials) {
		t.Fatalf("wrong current password err = %v, want ErrInvalidCredentials", err)
	}

	err = f.svc.ChangePassword(context.Background(), user.ID, "correct horse battery", "short")
	if !errors.Is(err, domain.ErrInvalidCredentials) {
		t.Fatalf("weak new password err = %v, want ErrInvalidCredentials", err)
	}

	if err := f.svc.ChangePassword(context.Background(), user.ID, "correct horse battery", "a brand new password"); err != nil {
		t.Fatalf("change password: %v", err)
	}

	if _, err := f.svc.Login(context.Background(), domain.LoginRequest{
		Email:    "ada@example.com",
		Password: "correct horse battery",
	}); !errors.Is(err, domain.ErrInvalidCredentials) {
		t.Fatalf("old password still accepted: %v", err)
	}
	f.login(t, "ada@example.com", "a brand new password")
}
