package domain

import (
	"context"
	"errors"

	"github.com/bwmarrin/snowflake"
)

const (
	RoleOwner  = "OWNER"
	RoleAdmin  = "ADMIN"
	RoleMember = "MEMBER"
)

type Service interface {
	Create(ctx context.Context, req CreateOrganizationRequest) (*Organization, error)
	GetByID(ctx context.Context, orgID snowflake.ID) (*Organization, error)
	// ResolveSlug maps a routable tenant slug to its organization.
	// Callers resolve once per request and propagate the ID.
	ResolveSlug(ctx context.Context, slug string) (*Organization, error)
	AddMember(ctx context.Context, member OrganizationMember) error
	ListMembers(ctx context.Context, orgID snowflake.ID, search string) ([]OrganizationMember, error)
	IsMember(ctx context.Context, orgID snowflake.ID, userID snowflake.ID) (bool, error)
}

type CreateOrganizationRequest struct {
	Name         string
	SupportEmail string
	OwnerUserID  snowflake.ID
	OwnerName    string
	OwnerEmail   string
}

var (
	ErrNotFound    = errors.New("organization not found")
	ErrInvalidName = errors.New("invalid_name")
	ErrInvalidUser = errors.New("invalid_user")
	ErrSlugTaken   = errors.New("slug_taken")
)
