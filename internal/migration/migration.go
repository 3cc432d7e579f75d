// Package migration creates the schema on startup so the service is
// usable out of the box for local and self-hosted environments.
package migration

import (
	"database/sql"
	"errors"
	"fmt"
	"io/fs"

	"github.com/golang-migrate/migrate/v4"
	"github.com/golang-migrate/migrate/v4/database/postgres"
	"github.com/golang-migrate/migrate/v4/source/iofs"
	apikeydomain "github.com/smallops/dealdesk/internal/apikey/domain"
	auditdomain "github.com/smallops/dealdesk/internal/audit/domain"
	authdomain "github.com/smallops/dealdesk/internal/auth/domain"
	customerdomain "github.com/smallops/dealdesk/internal/customer/domain"
	invoicedomain "github.com/smallops/dealdesk/internal/invoice/domain"
	orgdomain "github.com/smallops/dealdesk/internal/organization/domain"
	productdomain "github.com/smallops/dealdesk/internal/product/domain"
	quotedomain "github.com/smallops/dealdesk/internal/quote/domain"
	subscriptiondomain "github.com/smallops/dealdesk/internal/subscription/domain"
	"gorm.io/gorm"
)

// RunMigrations applies the embedded SQL against postgres.
func RunMigrations(db *sql.DB) error {
	if db == nil {
		return errors.New("migration database handle is required")
	}

	sub, err := fs.Sub(embeddedMigrations, migrationsDir)
	if err != nil {
		return fmt.Errorf("open migrations: %w", err)
	}

	source, err := iofs.New(sub, ".")
	if err != nil {
		return fmt.Errorf("create migration source: %w", err)
	}

	driver, err := postgres.WithInstance(db, &postgres.Config{})
	if err != nil {
		return fmt.Errorf("create migration driver: %w", err)
	}

	migrator, err := migrate.NewWithInstance("iofs", source, "postgres", driver)
	if err != nil {
		return fmt.Errorf("create migrator: %w", err)
	}

	upErr := migrator.Up()
	if upErr != nil && !errors.Is(upErr, migrate.ErrNoChange) {
		return fmt.Errorf("apply migrations: %w", upErr)
	}
	// Do not close the migrator; that would close the shared *sql.DB.

	return nil
}

// AutoMigrate builds the schema from the models. Used for sqlite and
// mysql, where the embedded postgres DDL does not apply.
func AutoMigrate(db *gorm.DB) error {
	return db.AutoMigrate(
		&authdomain.User{},
		&authdomain.Session{},
		&orgdomain.Organization{},
		&orgdomain.OrganizationMember{},
		&customerdomain.Customer{},
		&quotedomain.Quote{},
		&quotedomain.QuoteItem{},
		&invoicedomain.Invoice{},
		&invoicedomain.InvoiceItem{},
		&invoicedomain.DocumentSequence{},
		&productdomain.Plan{},
		&subscriptiondomain.Subscription{},
		&apikeydomain.APIKey{},
		&auditdomain.AuditLog{},
	)
}
