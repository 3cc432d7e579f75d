package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"testing"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/glebarez/sqlite"
	"github.com/smallops/dealdesk/internal/apikey/domain"
	apikeyrepository "github.com/smallops/dealdesk/internal/apikey/repository"
	auditdomain "github.com/smallops/dealdesk/internal/audit/domain"
	auditrepository "github.com/smallops/dealdesk/internal/audit/repository"
	auditservice "github.com/smallops/dealdesk/internal/audit/service"
	"github.com/smallops/dealdesk/internal/clock"
	"github.com/smallops/dealdesk/internal/orgcontext"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

type apiKeyFixture struct {
	svc   domain.Service
	db    *gorm.DB
	node  *snowflake.Node
	clock *clock.FakeClock
	orgID snowflake.ID
}

func setupAPIKeyService(t *testing.T) *apiKeyFixture {
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

	if err := db.AutoMigrate(&domain.APIKey{}, &auditdomain.AuditLog{}); err != nil {
		t.Fatalf("migrate: %v", err)
	}

	node, err := snowflake.NewNode(1)
	if err != nil {
		t.Fatalf("new node: %v", err)
	}
	clk := clock.NewFakeClock(time.Date(2024, 3, 1, 10, 0, 0, 0, time.UTC))

	auditSvc := auditservice.New(auditservice.Params{
		DB:    db,
		Log:   zap.NewNop(),
		GenID: node,
		Clock: clk,
		Repo:  auditrepository.Provide(),
	})

	svc := New(Params{
		DB:    db,
		Log:   zap.NewNop(),
		GenID: node,
		Clock: clk,
		Repo:  apikeyrepository.Provide(),
		Audit: auditSvc,
	})

	return &apiKeyFixture{
		svc:   svc,
		db:    db,
		node:  node,
		clock: clk,
		orgID: node.Generate(),
	}
}

func (f *apiKeyFixture) ctx() context.Context {
	return orgcontext.WithOrg(context.Background(), f.orgID, "northwind")
}

func TestCreateAPIKeyReturnsPlaintextOnce(t *testing.T) {
	f := setupAPIKeyService(t)

	result, err := f.svc.Create(f.ctx(), domain.CreateAPIKeyRequest{
		Name:   "  CI deploys  ",
		Scopes: []string{"invoices:read", " ", "quotes:read"},
	})
	if err != nil {
		t.Fatalf("create key: %v", err)
	}

	if !strings.HasPrefix(result.Plaintext, domain.KeyPrefix) {
		t.Fatalf("plaintext %q missing prefix %q", result.Plaintext, domain.KeyPrefix)
	}
	if result.Key.Name != "CI deploys" {
		t.Fatalf("name not trimmed: %q", result.Key.Name)
	}
	want := result.Plaintext[:len(domain.KeyPrefix)+4]
	if result.Key.DisplayPrefix != want {
		t.Fatalf("display prefix = %q, want %q", result.Key.DisplayPrefix, want)
	}
	if len(result.Key.Scopes) != 2 {
		t.Fatalf("scopes = %v, blank entries should be dropped", result.Key.Scopes)
	}
	if result.Key.KeyHash == result.Plaintext {
		t.Fatal("plaintext stored as hash")
	}
	if strings.Contains(result.Key.KeyHash, domain.KeyPrefix) {
		t.Fatalf("hash %q leaks key material", result.Key.KeyHash)
	}

	var stored domain.APIKey
	if err := f.db.First(&stored, "id = ?", result.Key.ID).Error; err != nil {
		t.Fatalf("load key: %v", err)
	}
	if stored.KeyHash != result.Key.KeyHash {
		t.Fatalf("stored hash mismatch")
	}
}

func TestCreateAPIKeyRequiresName(t *testing.T) {
	f := setupAPIKeyService(t)

	_, err := f.svc.Create(f.ctx(), domain.CreateAPIKeyRequest{Name: "   "})
	if !errors.Is(err, domain.ErrInvalidName) {
		t.Fatalf("err = %v, want ErrInvalidName", err)
	}
}

func TestCreateAPIKeyRequiresOrgContext(t *testing.T) {
	f := setupAPIKeyService(t)

	_, err := f.svc.Create(context.Background(), domain.CreateAPIKeyRequest{Name: "no org"})
	if !errors.Is(err, domain.ErrInvalidOrganization) {
		t.Fatalf("err = %v, want ErrInvalidOrganization", err)
	}
}

func TestAPIKeySerializationMasksHash(t *testing.T) {
	f := setupAPIKeyService(t)

	result, err := f.svc.Create(f.ctx(), domain.CreateAPIKeyRequest{Name: "billing export"})
	if err != nil {
		t.Fatalf("create key: %v", err)
	}

	payload, err := json.Marshal(result.Key)
	if err != nil {
		t.Fatalf("marshal key: %v", err)
	}
	if strings.Contains(string(payload), result.Key.KeyHash) {
		t.Fatalf("response exposes key hash: %s", payload)
	}
	if !strings.Contains(string(payload), result.Key.DisplayPrefix) {
		t.Fatalf("response missing display prefix: %s", payload)
	}
}

func TestListAPIKeysNewestFirstAndScoped(t *testing.T) {
	f := setupAPIKeyService(t)

	for _, name := range []string{"first", "second", "third"} {
		if _, err := f.svc.Create(f.ctx(), domain.CreateAPIKeyRequest{Name: name}); err != nil {
			t.Fatalf("create %s: %v", name, err)
		}
		f.clock.Advance(time.Minute)
	}

	otherCtx := orgcontext.WithOrg(context.Background(), f.node.Generate(), "acme")
	if _, err := f.svc.Create(otherCtx, domain.CreateAPIKeyRequest{Name: "foreign"}); err != nil {
		t.Fatalf("create foreign key: %v", err)
	}

	keys, err := f.svc.List(f.ctx())
	if err != nil {
		t.Fatalf("list keys: %v", err)
	}
	if len(keys) != 3 {
		t.Fatalf("len(keys) = %d, want 3", len(keys))
	}
	if keys[0].Name != "third" || keys[2].Name != "first" {
		t.Fatalf("keys not newest-first: %s, %s, %s", keys[0].Name, keys[1].Name, keys[2].Name)
	}
}

func TestVerifyRoundTrip(t *testing.T) {
	f := setupAPIKeyService(t)

	result, err := f.svc.Create(f.ctx(), domain.CreateAPIKeyRequest{Name: "integration"})
	if err != nil {
		t.Fatalf("create key: %v", err)
	}

	key, err := f.svc.Verify(context.Background(), result.Plaintext)
	if err != nil {
		t.Fatalf("verify: %v", err)
	}
	if key.ID != result.Key.ID {
		t.Fatalf("verified wrong key: %s", key.ID)
	}
	if key.LastUsedAt == nil || !key.LastUsedAt.Equal(f.clock.Now()) {
		t.Fatalf("last_used_at not stamped: %v", key.LastUsedAt)
	}
}

func TestVerifyRejectsMalformedKey(t *testing.T) {
	f := setupAPIKeyService(t)

	for _, plaintext := range []string{"", "sk_live_abc123", "dd_live_key_doesnotexist"} {
		_, err := f.svc.Verify(context.Background(), plaintext)
		if !errors.Is(err, domain.ErrInvalidKey) {
			t.Fatalf("Verify(%q) = %v, want ErrInvalidKey", plaintext, err)
		}
	}
}

func TestVerifyRejectsRevokedKey(t *testing.T) {
	f := setupAPIKeyService(t)

	result, err := f.svc.Create(f.ctx(), domain.CreateAPIKeyRequest{Name: "short lived"})
	if err != nil {
		t.Fatalf("create key: %v", err)
	}
	if err := f.svc.Revoke(f.ctx(), result.Key.ID.String()); err != nil {
		t.Fatalf("revoke: %v", err)
	}

	_, err = f.svc.Verify(context.Background(), result.Plaintext)
	if !errors.Is(err, domain.ErrRevoked) {
		t.Fatalf("err = %v, want ErrRevoked", err)
	}
}

func TestRevokeIsIdempotent(t *testing.T) {
	f := setupAPIKeyService(t)

	result, err := f.svc.Create(f.ctx(), domain.CreateAPIKeyRequest{Name: "rotated"})
	if err != nil {
		t.Fatalf("create key: %v", err)
	}

	if err := f.svc.Revoke(f.ctx(), result.Key.ID.String()); err != nil {
		t.Fatalf("first revoke: %v", err)
	}
	if err := f.svc.Revoke(f.ctx(), result.Key.ID.String()); err != nil {
		t.Fatalf("second revoke: %v", err)
	}

	var revokeEntries int64
	if err := f.db.Model(&auditdomain.AuditLog{}).
		Where("action = ?", "apikey.revoked").
		Count(&revokeEntries).Error; err != nil {
		t.Fatalf("count audit entries: %v", err)
	}
	if revokeEntries != 1 {
		t.Fatalf("revoke audit entries = %d, want 1", revokeEntries)
	}
}

func TestRevokeUnknownKey(t *testing.T) {
	f := setupAPIKeyService(t)

	if err := f.svc.Revoke(f.ctx(), "not-a-snowflake"); !errors.Is(err, domain.ErrNotFound) {
		t.Fatalf("err = %v, want ErrNotFound", err)
	}
	if err := f.svc.Revoke(f.ctx(), f.node.Generate().String()); !errors.Is(err, domain.ErrNotFound) {
		t.Fatalf("err = %v, want ErrNotFound", err)
	}
}

func TestRevokeScopedToOrg(t *testing.T) {
	f := setupAPIKeyService(t)

	result, err := f.svc.Create(f.ctx(), domain.CreateAPIKeyRequest{Name: "scoped"})
	if err != nil {
		t.Fatalf("create key: %v", err)
	}

	otherCtx := orgcontext.WithOrg(context.Background(), f.node.Generate(), "acme")
	if err := f.svc.Revoke(otherCtx, result.Key.ID.String()); !errors.Is(err, domain.ErrNotFound) {
		t.Fatalf("cross-org revoke err = %v, want ErrNotFound", err)
	}

	if _, err := f.svc.Verify(context.Background(), result.Plaintext); err != nil {
		t.Fatalf("key should still verify: %v", err)
	}
}
