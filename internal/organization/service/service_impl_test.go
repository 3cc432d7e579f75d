package service

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/glebarez/sqlite"
	"github.com/smallops/dealdesk/internal/clock"
	"github.com/smallops/dealdesk/internal/organization/domain"
	"github.com/smallops/dealdesk/internal/organization/repository"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

type orgFixture struct {
	svc   domain.Service
	db    *gorm.DB
	node  *snowflake.Node
	clock *clock.FakeClock
}

func setupOrganizationService(t *testing.T) *orgFixture {
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

	if err := db.AutoMigrate(&domain.Organization{}, &domain.OrganizationMember{}); err != nil {
		t.Fatalf("migrate: %v", err)
	}

	node, err := snowflake.NewNode(1)
	if err != nil {
		t.Fatalf("new node: %v", err)
	}
	clk := clock.NewFakeClock(time.Date(2024, 3, 1, 10, 0, 0, 0, time.UTC))

	return &orgFixture{
		svc:   New(db, zap.NewNop(), repository.Provide(db), node, clk),
		db:    db,
		node:  node,
		clock: clk,
	}
}

func (f *orgFixture) createOrg(t *testing.T, name string) *domain.Organization {
	t.Helper()
	org, err := f.svc.Create(context.Background(), domain.CreateOrganizationRequest{
		Name:        name,
		OwnerUserID: f.node.Generate(),
		OwnerName:   "Ada Owner",
		OwnerEmail:  "ada@" + name + ".example",
	})
	if err != nil {
		t.Fatalf("create org %q: %v", name, err)
	}
	return org
}

func TestCreateOrganizationSlugsNameAndAddsOwner(t *testing.T) {
	f := setupOrganizationService(t)

	org := f.createOrg(t, "Northwind Traders")
	if org.Slug != "northwind-traders" {
		t.Fatalf("slug = %q, want northwind-traders", org.Slug)
	}

	members, err := f.svc.ListMembers(context.Background(), org.ID, "")
	if err != nil {
		t.Fatalf("list members: %v", err)
	}
	if len(members) != 1 {
		t.Fatalf("len(members) = %d, want 1", len(members))
	}
	if members[0].Role != domain.RoleOwner {
		t.Fatalf("owner role = %q", members[0].Role)
	}
}

func TestCreateOrganizationValidation(t *testing.T) {
	f := setupOrganizationService(t)

	_, err := f.svc.Create(context.Background(), domain.CreateOrganizationRequest{Name: "  ", OwnerUserID: 1})
	if !errors.Is(err, domain.ErrInvalidName) {
		t.Fatalf("blank name err = %v, want ErrInvalidName", err)
	}

	_, err = f.svc.Create(context.Background(), domain.CreateOrganizationRequest{Name: "No Owner"})
	if !errors.Is(err, domain.ErrInvalidUser) {
		t.Fatalf("missing owner err = %v, want ErrInvalidUser", err)
	}
}

func TestCreateOrganizationRejectsDuplicateSlug(t *testing.T) {
	f := setupOrganizationService(t)

	f.createOrg(t, "Acme Fabrication")
	_, err := f.svc.Create(context.Background(), domain.CreateOrganizationRequest{
		Name:        "ACME Fabrication",
		OwnerUserID: f.node.Generate(),
	})
	if !errors.Is(err, domain.ErrSlugTaken) {
		t.Fatalf("err = %v, want ErrSlugTaken", err)
	}
}

func TestResolveSlug(t *testing.T) {
	f := setupOrganizationService(t)
	org := f.createOrg(t, "Northwind Traders")

	for _, raw := range []string{"northwind-traders", "  Northwind-Traders  "} {
		resolved, err := f.svc.ResolveSlug(context.Background(), raw)
		if err != nil {
			t.Fatalf("ResolveSlug(%q): %v", raw, err)
		}
		if resolved.ID != org.ID {
			t.Fatalf("ResolveSlug(%q) resolved wrong org", raw)
		}
	}

	if _, err := f.svc.ResolveSlug(context.Background(), "no-such-org"); !errors.Is(err, domain.ErrNotFound) {
		t.Fatalf("unknown slug err = %v, want ErrNotFound", err)
	}
	if _, err := f.svc.ResolveSlug(context.Background(), "   "); !errors.Is(err, domain.ErrNotFound) {
		t.Fatalf("blank slug err = %v, want ErrNotFound", err)
	}
}

func TestIsMember(t *testing.T) {
	f := setupOrganizationService(t)
	org := f.createOrg(t, "Northwind Traders")

	userID := f.node.Generate()
	ok, err := f.svc.IsMember(context.Background(), org.ID, userID)
	if err != nil {
		t.Fatalf("is member: %v", err)
	}
	if ok {
		t.Fatal("non-member reported as member")
	}

	err = f.svc.AddMember(context.Background(), domain.OrganizationMember{
		OrgID:       org.ID,
		UserID:      userID,
		DisplayName: "Grace Member",
		Email:       "grace@northwind.example",
	})
	if err != nil {
		t.Fatalf("add member: %v", err)
	}

	ok, err = f.svc.IsMember(context.Background(), org.ID, userID)
	if err != nil {
		t.Fatalf("is member: %v", err)
	}
	if !ok {
		t.Fatal("member not recognized")
	}
}

func TestAddMemberDefaultsRole(t *testing.T) {
	f := setupOrganizationService(t)
	org := f.createOrg(t, "Northwind Traders")

	userID := f.node.Generate()
	err := f.svc.AddMember(context.Background(), domain.OrganizationMember{
		OrgID:       org.ID,
		UserID:      userID,
		DisplayName: "Sam Support",
		Email:       "sam@northwind.example",
	})
	if err != nil {
		t.Fatalf("add member: %v", err)
	}

	members, err := f.svc.ListMembers(context.Background(), org.ID, "sam")
	if err != nil {
		t.Fatalf("list members: %v", err)
	}
	if len(members) != 1 {
		t.Fatalf("len(members) = %d, want 1", len(members))
	}
	if members[0].Role != domain.RoleMember {
		t.Fatalf("role = %q, want %q", members[0].Role, domain.RoleMember)
	}
}

func TestListMembersSearch(t *testing.T) {
	f := setupOrganizationService(t)
	org := f.createOrg(t, "Northwind Traders")

	people := []struct{ name, email string }{
		{"Grace Hopper", "grace@northwind.example"},
		{"Alan Kay", "alan@northwind.example"},
		{"Barbara Liskov", "barbara@northwind.example"},
	}
	for _, p := range people {
		err := f.svc.AddMember(context.Background(), domain.OrganizationMember{
			OrgID:       org.ID,
			UserID:      f.node.Generate(),
			DisplayName: p.name,
			Email:       p.email,
		})
		if err != nil {
			t.Fatalf("add %s: %v", p.name, err)
		}
		f.clock.Advance(time.Minute)
	}

	members, err := f.svc.ListMembers(context.Background(), org.ID, "GRACE")
	if err != nil {
		t.Fatalf("search by name: %v", err)
	}
	if len(members) != 1 || members[0].DisplayName != "Grace Hopper" {
		t.Fatalf("search by name returned %v", members)
	}

	members, err = f.svc.ListMembers(context.Background(), org.ID, "barbara@")
	if err != nil {
		t.Fatalf("search by email: %v", err)
	}
	if len(members) != 1 || members[0].DisplayName != "Barbara Liskov" {
		t.Fatalf("search by email returned %v", members)
	}

	members, err = f.svc.ListMembers(context.Background(), org.ID, "")
	if err != nil {
		t.Fatalf("list all: %v", err)
	}
	if len(members) != 4 {
		t.Fatalf("len(members) = %d, want owner plus 3", len(members))
	}
}
