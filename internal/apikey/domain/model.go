// Package domain contains API key models. Keys are stored hashed;
// the plaintext is returned exactly once at creation time.
package domain

import (
	"context"
	"errors"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/lib/pq"
	"gorm.io/gorm"
)

// KeyPrefix marks every issued key. The display prefix shown in
// listings keeps a few characters past it so operators can tell
// keys apart without exposing secret material.
const KeyPrefix = "dd_live_key_"

type APIKey struct {
	ID            snowflake.ID   `gorm:"primaryKey" json:"id"`
	OrgID         snowflake.ID   `gorm:"not null;index" json:"organization_id"`
	Name          string         `gorm:"type:text;not null" json:"name"`
	KeyHash       string         `gorm:"column:key_hash;type:text;not null;uniqueIndex:ux_api_keys_hash" json:"-"`
	DisplayPrefix string         `gorm:"column:display_prefix;type:text;not null" json:"display_prefix"`
	Scopes        pq.StringArray `gorm:"type:text[]" json:"scopes"`
	LastUsedAt    *time.Time     `json:"last_used_at,omitempty"`
	RevokedAt     *time.Time     `json:"revoked_at,omitempty"`
	CreatedAt     time.Time      `gorm:"not null;default:CURRENT_TIMESTAMP" json:"created_at"`
}

func (APIKey) TableName() string { return "api_keys" }

// Active reports whether the key can still authenticate requests.
func (k APIKey) Active() bool { return k.RevokedAt == nil }

type CreateAPIKeyRequest struct {
	Name   string   `json:"name"`
	Scopes []string `json:"scopes"`
}

// CreateAPIKeyResult carries the plaintext key alongside the stored
// record. The plaintext is never persisted or logged.
type CreateAPIKeyResult struct {
	Key       APIKey `json:"key"`
	Plaintext string `json:"api_key"`
}

type Repository interface {
	Insert(ctx context.Context, db *gorm.DB, key *APIKey) error
	FindByID(ctx context.Context, db *gorm.DB, orgID, id snowflake.ID) (*APIKey, error)
	FindByHash(ctx context.Context, db *gorm.DB, hash string) (*APIKey, error)
	Update(ctx context.Context, db *gorm.DB, key *APIKey) error
	List(ctx context.Context, db *gorm.DB, orgID snowflake.ID) ([]APIKey, error)
}

type Service interface {
	Create(ctx context.Context, req CreateAPIKeyRequest) (CreateAPIKeyResult, error)
	List(ctx context.Context) ([]APIKey, error)
	Revoke(ctx context.Context, id string) error
	// Verify authenticates a plaintext key and returns its record.
	Verify(ctx context.Context, plaintext string) (APIKey, error)
}

var (
	ErrInvalidOrganization = errors.New("invalid_organization")
	ErrNotFound            = errors.New("api key not found")
	ErrInvalidName         = errors.New("API key name is required")
	ErrInvalidKey          = errors.New("invalid api key")
	ErrRevoked             = errors.New("api key revoked")
)
