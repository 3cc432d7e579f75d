// Package seed provisions a demo organization so a fresh install has
// something to log into.
package seed

import (
	"errors"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/google/uuid"
	authdomain "github.com/smallops/dealdesk/internal/auth/domain"
	"github.com/smallops/dealdesk/internal/auth/password"
	customerdomain "github.com/smallops/dealdesk/internal/customer/domain"
	orgdomain "github.com/smallops/dealdesk/internal/organization/domain"
	productdomain "github.com/smallops/dealdesk/internal/product/domain"
	gosimpleslug "github.com/gosimple/slug"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

const (
	demoOrgName   = "Demo Workshop"
	demoUserEmail = "demo@dealdesk.local"
	// DemoPassword is the seeded login credential, meant for local
	// environments only.
	DemoPassword = "demo-password"
)

// EnsureDemoData creates the demo organization, owner user, customers
// and plans. Idempotent: a second run is a no-op.
func EnsureDemoData(db *gorm.DB, node *snowflake.Node) error {
	demoSlug := gosimpleslug.Make(demoOrgName)

	var existing orgdomain.Organization
	err := db.Where("slug = ?", demoSlug).First(&existing).Error
	if err == nil {
		return nil
	}
	if !errors.Is(err, gorm.ErrRecordNotFound) {
		return err
	}

	hash, err := password.Hash(DemoPassword)
	if err != nil {
		return err
	}

	now := time.Now().UTC()
	return db.Transaction(func(tx *gorm.DB) error {
		user := authdomain.User{
			ID:           node.Generate(),
			ExternalID:   uuid.NewString(),
			DisplayName:  "Demo Owner",
			Email:        demoUserEmail,
			PasswordHash: &hash,
			Metadata:     datatypes.JSONMap{},
			CreatedAt:    now,
			UpdatedAt:    now,
		}
		if err := tx.Create(&user).Error; err != nil {
			return err
		}

		org := orgdomain.Organization{
			ID:           node.Generate(),
			Name:         demoOrgName,
			Slug:         demoSlug,
			SupportEmail: demoUserEmail,
			Metadata:     datatypes.JSONMap{},
			CreatedAt:    now,
			UpdatedAt:    now,
		}
		if err := tx.Create(&org).Error; err != nil {
			return err
		}

		member := orgdomain.OrganizationMember{
			ID:          node.Generate(),
			OrgID:       org.ID,
			UserID:      user.ID,
			Role:        orgdomain.RoleOwner,
			DisplayName: user.DisplayName,
			Email:       user.Email,
			CreatedAt:   now,
		}
		if err := tx.Create(&member).Error; err != nil {
			return err
		}

		active := customerdomain.SubscriptionActive
		customers := []customerdomain.Customer{
			{
				ID:                 node.Generate(),
				OrgID:              org.ID,
				Name:               "Northwind Traders",
				Email:              "billing@northwind.example",
				AddressLine1:       "1 Harbor Way",
				City:               "Portsmouth",
				Country:            "US",
				SubscriptionStatus: &active,
				Metadata:           datatypes.JSONMap{},
				CreatedAt:          now,
				UpdatedAt:          now,
			},
			{
				ID:        node.Generate(),
				OrgID:     org.ID,
				Name:      "Fabrikam Inc",
				Email:     "accounts@fabrikam.example",
				Metadata:  datatypes.JSONMap{},
				CreatedAt: now,
				UpdatedAt: now,
			},
		}
		if err := tx.Create(&customers).Error; err != nil {
			return err
		}

		plans := []productdomain.Plan{
			{
				ID:        node.Generate(),
				OrgID:     org.ID,
				Code:      "starter",
				Name:      "Starter",
				Interval:  "month",
				Amount:    2900,
				Currency:  "USD",
				IsActive:  true,
				Metadata:  datatypes.JSONMap{},
				CreatedAt: now,
				UpdatedAt: now,
			},
			{
				ID:        node.Generate(),
				OrgID:     org.ID,
				Code:      "growth",
				Name:      "Growth",
				Interval:  "month",
				Amount:    9900,
				Currency:  "USD",
				IsActive:  true,
				Metadata:  datatypes.JSONMap{},
				CreatedAt: now,
				UpdatedAt: now,
			},
		}
		return tx.Create(&plans).Error
	})
}
