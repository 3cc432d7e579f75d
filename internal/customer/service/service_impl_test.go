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
	"github.com/smallops/dealdesk/internal/customer/domain"
	customerrepository "github.com/smallops/dealdesk/internal/customer/repository"
	"github.com/smallops/dealdesk/internal/orgcontext"
	"github.com/smallops/dealdesk/pkg/db/pagination"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

type customerFixture struct {
	svc   domain.Service
	db    *gorm.DB
	node  *snowflake.Node
	clock *clock.FakeClock
	orgID snowflake.ID
}

func setupCustomerService(t *testing.T) *customerFixture {
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

	if err := db.AutoMigrate(&domain.Customer{}); err != nil {
		t.Fatalf("migrate: %v", err)
	}

	node, err := snowflake.NewNode(1)
	if err != nil {
		t.Fatalf("new node: %v", err)
	}
	clk := clock.NewFakeClock(time.Date(2024, 3, 1, 10, 0, 0, 0, time.UTC))

	svc := New(Params{
		DB:    db,
		Log:   zap.NewNop(),
		GenID: node,
		Clock: clk,
		Repo:  customerrepository.Provide(),
	})

	return &customerFixture{
		svc:   svc,
		db:    db,
		node:  node,
		clock: clk,
		orgID: node.Generate(),
	}
}

func (f *customerFixture) ctx() context.Context {
	return orgcontext.WithOrg(context.Background(), f.orgID, "northwind")
}

func (f *customerFixture) create(t *testing.T, name, email string, status *string) domain.Customer {
	t.Helper()
	customer, err := f.svc.Create(f.ctx(), domain.CreateCustomerRequest{
		Name:               name,
		Email:              email,
		AddressLine1:       "12 Quay Street",
		City:               "Portsmouth",
		PostalCode:         "PO1 3AX",
		Country:            "GB",
		SubscriptionStatus: status,
	})
	if err != nil {
		t.Fatalf("create customer %q: %v", name, err)
	}
	return customer
}

func strptr(s string) *string { return &s }

func TestCreateCustomerTrimsFields(t *testing.T) {
	f := setupCustomerService(t)

	customer, err := f.svc.Create(f.ctx(), domain.CreateCustomerRequest{
		Name:    "  Northwind Traders  ",
		Email:   "  billing@northwind.example ",
		Country: " GB ",
	})
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	if customer.Name != "Northwind Traders" {
		t.Fatalf("name = %q", customer.Name)
	}
	if customer.Email != "billing@northwind.example" {
		t.Fatalf("email = %q", customer.Email)
	}
	if customer.Country != "GB" {
		t.Fatalf("country = %q", customer.Country)
	}
	if !customer.CreatedAt.Equal(f.clock.Now()) {
		t.Fatalf("created_at = %v", customer.CreatedAt)
	}
}

func TestCreateCustomerValidation(t *testing.T) {
	f := setupCustomerService(t)

	cases := []struct {
		name string
		req  domain.CreateCustomerRequest
		want error
	}{
		{"blank name", domain.CreateCustomerRequest{Name: " ", Email: "a@b.example"}, domain.ErrInvalidName},
		{"blank email", domain.CreateCustomerRequest{Name: "Acme", Email: ""}, domain.ErrInvalidEmail},
		{"malformed email", domain.CreateCustomerRequest{Name: "Acme", Email: "not-an-email"}, domain.ErrInvalidEmail},
		{"bad status", domain.CreateCustomerRequest{Name: "Acme", Email: "a@b.example", SubscriptionStatus: strptr("frozen")}, domain.ErrInvalidStatus},
	}
	for _, tc := range cases {
		if _, err := f.svc.Create(f.ctx(), tc.req); !errors.Is(err, tc.want) {
			t.Fatalf("%s: err = %v, want %v", tc.name, err, tc.want)
		}
	}

	_, err := f.svc.Create(context.Background(), domain.CreateCustomerRequest{Name: "Acme", Email: "a@b.example"})
	if !errors.Is(err, domain.ErrInvalidOrganization) {
		t.Fatalf("missing org err = %v, want ErrInvalidOrganization", err)
	}
}

func TestUpdateCustomerPartialFields(t *testing.T) {
	f := setupCustomerService(t)
	customer := f.create(t, "Acme Fabrication", "ap@acme.example", nil)

	f.clock.Advance(time.Hour)
	updated, err := f.svc.Update(f.ctx(), domain.UpdateCustomerRequest{
		ID:                 customer.ID.String(),
		Email:              strptr("finance@acme.example"),
		SubscriptionStatus: strptr(domain.SubscriptionActive),
	})
	if err != nil {
		t.Fatalf("update: %v", err)
	}
	if updated.Name != "Acme Fabrication" {
		t.Fatalf("name changed unexpectedly: %q", updated.Name)
	}
	if updated.Email != "finance@acme.example" {
		t.Fatalf("email = %q", updated.Email)
	}
	if updated.SubscriptionStatus == nil || *updated.SubscriptionStatus != domain.SubscriptionActive {
		t.Fatalf("subscription_status = %v", updated.SubscriptionStatus)
	}
	if !updated.UpdatedAt.After(updated.CreatedAt) {
		t.Fatalf("updated_at not advanced: %v", updated.UpdatedAt)
	}
}

func TestUpdateCustomerValidation(t *testing.T) {
	f := setupCustomerService(t)
	customer := f.create(t, "Acme Fabrication", "ap@acme.example", nil)

	_, err := f.svc.Update(f.ctx(), domain.UpdateCustomerRequest{ID: customer.ID.String(), Name: strptr("  ")})
	if !errors.Is(err, domain.ErrInvalidName) {
		t.Fatalf("blank name err = %v", err)
	}
	_, err = f.svc.Update(f.ctx(), domain.UpdateCustomerRequest{ID: customer.ID.String(), Email: strptr("nope")})
	if !errors.Is(err, domain.ErrInvalidEmail) {
		t.Fatalf("bad email err = %v", err)
	}
	_, err = f.svc.Update(f.ctx(), domain.UpdateCustomerRequest{ID: "garbage"})
	if !errors.Is(err, domain.ErrInvalidID) {
		t.Fatalf("bad id err = %v", err)
	}
	_, err = f.svc.Update(f.ctx(), domain.UpdateCustomerRequest{ID: f.node.Generate().String()})
	if !errors.Is(err, domain.ErrNotFound) {
		t.Fatalf("unknown id err = %v", err)
	}
}

func TestGetCustomerScopedToOrg(t *testing.T) {
	f := setupCustomerService(t)
	customer := f.create(t, "Acme Fabrication", "ap@acme.example", nil)

	otherCtx := orgcontext.WithOrg(context.Background(), f.node.Generate(), "acme")
	if _, err := f.svc.GetByID(otherCtx, customer.ID.String()); !errors.Is(err, domain.ErrNotFound) {
		t.Fatalf("cross-org get err = %v, want ErrNotFound", err)
	}

	got, err := f.svc.GetByID(f.ctx(), customer.ID.String())
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if got.ID != customer.ID {
		t.Fatalf("got wrong customer: %s", got.ID)
	}
}

func TestListCustomersSearchAndStatusFilter(t *testing.T) {
	f := setupCustomerService(t)

	f.create(t, "Northwind Traders", "billing@northwind.example", strptr(domain.SubscriptionActive))
	f.clock.Advance(time.Minute)
	f.create(t, "Acme Fabrication", "ap@acme.example", strptr(domain.SubscriptionPastDue))
	f.clock.Advance(time.Minute)
	f.create(t, "Wayne Industries", "accounts@wayne.example", nil)

	resp, err := f.svc.List(f.ctx(), domain.ListCustomerRequest{Search: "acme"})
	if err != nil {
		t.Fatalf("search list: %v", err)
	}
	if len(resp.Customers) != 1 || resp.Customers[0].Name != "Acme Fabrication" {
		t.Fatalf("search returned %v", resp.Customers)
	}

	resp, err = f.svc.List(f.ctx(), domain.ListCustomerRequest{SubscriptionStatus: domain.SubscriptionActive})
	if err != nil {
		t.Fatalf("status list: %v", err)
	}
	if len(resp.Customers) != 1 || resp.Customers[0].Name != "Northwind Traders" {
		t.Fatalf("status filter returned %v", resp.Customers)
	}

	if _, err := f.svc.List(f.ctx(), domain.ListCustomerRequest{SubscriptionStatus: "frozen"}); !errors.Is(err, domain.ErrInvalidStatus) {
		t.Fatalf("bad status err = %v, want ErrInvalidStatus", err)
	}
}

func TestListCustomersPagination(t *testing.T) {
	f := setupCustomerService(t)

	for i := 0; i < 5; i++ {
		f.create(t, fmt.Sprintf("Customer %d", i), fmt.Sprintf("c%d@example.com", i), nil)
		f.clock.Advance(time.Minute)
	}

	seen := map[string]bool{}
	var token string
	for page := 0; page < 4; page++ {
		resp, err := f.svc.List(f.ctx(), domain.ListCustomerRequest{
			Pagination: pagination.Pagination{PageSize: 2, PageToken: token},
		})
		if err != nil {
			t.Fatalf("page %d: %v", page, err)
		}
		for _, customer := range resp.Customers {
			if seen[customer.ID.String()] {
				t.Fatalf("customer %s returned twice", customer.ID)
			}
			seen[customer.ID.String()] = true
		}
		if !resp.HasMore {
			break
		}
		token = resp.NextPageToken
	}
	if len(seen) != 5 {
		t.Fatalf("paginated through %d customers, want 5", len(seen))
	}

	if _, err := f.svc.List(f.ctx(), domain.ListCustomerRequest{
		Pagination: pagination.Pagination{PageToken: "%%%bad%%%"},
	}); !errors.Is(err, domain.ErrInvalidID) {
		t.Fatalf("bad cursor err = %v, want ErrInvalidID", err)
	}
}
