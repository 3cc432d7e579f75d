package service

import (
	"context"
	"strings"

	"github.com/bwmarrin/snowflake"
	"github.com/gosimple/slug"
	"github.com/smallops/dealdesk/internal/clock"
	"github.com/smallops/dealdesk/internal/organization/domain"
	"github.com/smallops/dealdesk/internal/organization/repository"
	"github.com/smallops/dealdesk/pkg/db"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

type service struct {
	db    *gorm.DB
	log   *zap.Logger
	repo  repository.Repository
	genID *snowflake.Node
	clock clock.Clock
}

func New(gdb *gorm.DB, log *zap.Logger, repo repository.Repository, genID *snowflake.Node, clk clock.Clock) domain.Service {
	return &service{
		db:    gdb,
		log:   log.Named("organization.service"),
		repo:  repo,
		genID: genID,
		clock: clk,
	}
}

func (s *service) Create(ctx context.Context, req domain.CreateOrganizationRequest) (*domain.Organization, error) {
	name := strings.TrimSpace(req.Name)
	if name == "" {
		return nil, domain.ErrInvalidName
	}
	if req.OwnerUserID == 0 {
		return nil, domain.ErrInvalidUser
	}

	now := s.clock.Now()
	org := domain.Organization{
		ID:           s.genID.Generate(),
		Name:         name,
		Slug:         slug.Make(name),
		SupportEmail: strings.TrimSpace(req.SupportEmail),
		CreatedAt:    now,
		UpdatedAt:    now,
	}

	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		repo := s.repo.WithTx(tx)
		if err := repo.CreateOrganization(ctx, org); err != nil {
			return err
		}

		return repo.AddMember(ctx, domain.OrganizationMember{
			ID:          s.genID.Generate(),
			OrgID:       org.ID,
			UserID:      req.OwnerUserID,
			Role:        domain.RoleOwner,
			DisplayName: strings.TrimSpace(req.OwnerName),
			Email:       strings.TrimSpace(req.OwnerEmail),
			CreatedAt:   now,
		})
	})
	if err != nil {
		if db.IsDuplicateKeyErr(err) {
			return nil, domain.ErrSlugTaken
		}
		return nil, err
	}

	s.log.Info("organization created",
		zap.String("org_id", org.ID.String()),
		zap.String("slug", org.Slug),
	)
	return &org, nil
}

func (s *service) GetByID(ctx context.Context, orgID snowflake.ID) (*domain.Organization, error) {
	if orgID == 0 {
		return nil, domain.ErrNotFound
	}
	return s.repo.GetByID(ctx, orgID)
}

func (s *service) ResolveSlug(ctx context.Context, rawSlug string) (*domain.Organization, error) {
	value := strings.ToLower(strings.TrimSpace(rawSlug))
	if value == "" {
		return nil, domain.ErrNotFound
	}
	return s.repo.GetBySlug(ctx, value)
}

func (s *service) AddMember(ctx context.Context, member domain.OrganizationMember) error {
	if member.OrgID == 0 || member.UserID == 0 {
		return domain.ErrInvalidUser
	}
	if member.ID == 0 {
		member.ID = s.genID.Generate()
	}
	if member.Role == "" {
		member.Role = domain.RoleMember
	}
	if member.CreatedAt.IsZero() {
		member.CreatedAt = s.clock.Now()
	}
	return s.repo.AddMember(ctx, member)
}

func (s *service) ListMembers(ctx context.Context, orgID snowflake.ID, search string) ([]domain.OrganizationMember, error) {
	if orgID == 0 {
		return nil, domain.ErrNotFound
	}
	return s.repo.ListMembers(ctx, orgID, search)
}

func (s *service) IsMember(ctx context.Context, orgID snowflake.ID, userID snowflake.ID) (bool, error) {
	if orgID == 0 || userID == 0 {
		return false, nil
	}
	return s.repo.IsMember(ctx, orgID, userID)
}
