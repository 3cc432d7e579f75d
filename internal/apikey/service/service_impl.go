package service

import (
	"context"
	"crypto/rand"
	"crypto/sha256"
	"encoding/base64"
	"encoding/hex"
	"strings"

	"github.com/bwmarrin/snowflake"
	"github.com/smallops/dealdesk/internal/apikey/domain"
	auditdomain "github.com/smallops/dealdesk/internal/audit/domain"
	"github.com/smallops/dealdesk/internal/clock"
	"github.com/smallops/dealdesk/internal/orgcontext"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

const (
	keySecretBytes = 32
	// displayPrefixLen keeps the key prefix plus four secret chars,
	// enough to tell keys apart in a listing.
	displayPrefixLen = len(domain.KeyPrefix) + 4
)

type Params struct {
	fx.In

	DB    *gorm.DB
	Log   *zap.Logger
	GenID *snowflake.Node
	Clock clock.Clock
	Repo  domain.Repository
	Audit auditdomain.Service
}

type Service struct {
	db    *gorm.DB
	log   *zap.Logger
	genID *snowflake.Node
	clock clock.Clock
	repo  domain.Repository
	audit auditdomain.Service
}

func New(p Params) domain.Service {
	return &Service{
		db:    p.DB,
		log:   p.Log.Named("apikey.service"),
		genID: p.GenID,
		clock: p.Clock,
		repo:  p.Repo,
		audit: p.Audit,
	}
}

func (s *Service) Create(ctx context.Context, req domain.CreateAPIKeyRequest) (domain.CreateAPIKeyResult, error) {
	orgID, ok := orgcontext.OrgIDFromContext(ctx)
	if !ok || orgID == 0 {
		return domain.CreateAPIKeyResult{}, domain.ErrInvalidOrganization
	}

	name := strings.TrimSpace(req.Name)
	if name == "" {
		return domain.CreateAPIKeyResult{}, domain.ErrInvalidName
	}

	plaintext, err := newKey()
	if err != nil {
		return domain.CreateAPIKeyResult{}, err
	}

	scopes := make([]string, 0, len(req.Scopes))
	for _, scope := range req.Scopes {
		if trimmed := strings.TrimSpace(scope); trimmed != "" {
			scopes = append(scopes, trimmed)
		}
	}

	key := domain.APIKey{
		ID:            s.genID.Generate(),
		OrgID:         orgID,
		Name:          name,
		KeyHash:       hashKey(plaintext),
		DisplayPrefix: plaintext[:displayPrefixLen],
		Scopes:        scopes,
		CreatedAt:     s.clock.Now(),
	}

	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := s.repo.Insert(ctx, tx, &key); err != nil {
			return err
		}
		return s.audit.Record(ctx, tx, auditdomain.Entry{
			OrgID:      orgID,
			Action:     "apikey.created",
			TargetType: "api_key",
			TargetID:   key.ID.String(),
			Metadata:   map[string]any{"name": key.Name},
		})
	})
	if err != nil {
		return domain.CreateAPIKeyResult{}, err
	}

	return domain.CreateAPIKeyResult{Key: key, Plaintext: plaintext}, nil
}

func (s *Service) List(ctx context.Context) ([]domain.APIKey, error) {
	orgID, ok := orgcontext.OrgIDFromContext(ctx)
	if !ok || orgID == 0 {
		return nil, domain.ErrInvalidOrganization
	}
	return s.repo.List(ctx, s.db, orgID)
}

func (s *Service) Revoke(ctx context.Context, id string) error {
	orgID, ok := orgcontext.OrgIDFromContext(ctx)
	if !ok || orgID == 0 {
		return domain.ErrInvalidOrganization
	}

	parsed, err := snowflake.ParseString(strings.TrimSpace(id))
	if err != nil {
		return domain.ErrNotFound
	}

	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		key, err := s.repo.FindByID(ctx, tx, orgID, parsed)
		if err != nil {
			return err
		}
		if key == nil {
			return domain.ErrNotFound
		}
		if key.RevokedAt != nil {
			return nil
		}

		now := s.clock.Now()
		key.RevokedAt = &now
		if err := s.repo.Update(ctx, tx, key); err != nil {
			return err
		}
		return s.audit.Record(ctx, tx, auditdomain.Entry{
			OrgID:      orgID,
			Action:     "apikey.revoked",
			TargetType: "api_key",
			TargetID:   key.ID.String(),
			Metadata:   map[string]any{"name": key.Name},
		})
	})
}

func (s *Service) Verify(ctx context.Context, plaintext string) (domain.APIKey, error) {
	plaintext = strings.TrimSpace(plaintext)
	if !strings.HasPrefix(plaintext, domain.KeyPrefix) {
		return domain.APIKey{}, domain.ErrInvalidKey
	}

	key, err := s.repo.FindByHash(ctx, s.db, hashKey(plaintext))
	if err != nil {
		return domain.APIKey{}, err
	}
	if key == nil {
		return domain.APIKey{}, domain.ErrInvalidKey
	}
	if key.RevokedAt != nil {
		return domain.APIKey{}, domain.ErrRevoked
	}

	now := s.clock.Now()
	key.LastUsedAt = &now
	if err := s.repo.Update(ctx, s.db, key); err != nil {
		s.log.Warn("failed to update key last_used_at", zap.Error(err))
	}
	return *key, nil
}

func newKey() (string, error) {
	buf := make([]byte, keySecretBytes)
	if _, err := rand.Read(buf); err != nil {
		return "", err
	}
	return domain.KeyPrefix + base64.RawURLEncoding.EncodeToString(buf), nil
}

func hashKey(plaintext string) string {
	sum := sha256.Sum256([]byte(plaintext))
	return hex.EncodeToString(sum[:])
}
