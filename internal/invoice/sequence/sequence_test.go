package sequence

import (
	"context"
	"fmt"
	"testing"

	"github.com/bwmarrin/snowflake"
	"github.com/glebarez/sqlite"
	"github.com/smallops/dealdesk/internal/config"
	invoicedomain "github.com/smallops/dealdesk/internal/invoice/domain"
	"gorm.io/gorm"
)

func setupAllocator(t *testing.T) (*Allocator, *gorm.DB) {
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

	if err := db.AutoMigrate(&invoicedomain.DocumentSequence{}); err != nil {
		t.Fatalf("migrate: %v", err)
	}

	docs := config.NewStaticDocumentsConfigHolder(config.DefaultDocumentsConfig())
	return NewAllocator(docs), db
}

func mustNode(t *testing.T) *snowflake.Node {
	t.Helper()
	node, err := snowflake.NewNode(1)
	if err != nil {
		t.Fatalf("new node: %v", err)
	}
	return node
}

func TestNextInvoiceStartsAboveSeed(t *testing.T) {
	allocator, db := setupAllocator(t)
	orgID := mustNode(t).Generate()

	var got int64
	err := db.Transaction(func(tx *gorm.DB) error {
		seq, err := allocator.NextInvoice(context.Background(), tx, orgID)
		got = seq
		return err
	})
	if err != nil {
		t.Fatalf("allocate: %v", err)
	}
	if got != 1001 {
		t.Fatalf("expected first invoice sequence 1001, got %d", got)
	}
}

func TestNextInvoiceIncrements(t *testing.T) {
	allocator, db := setupAllocator(t)
	orgID := mustNode(t).Generate()

	var values []int64
	for i := 0; i < 3; i++ {
		err := db.Transaction(func(tx *gorm.DB) error {
			seq, err := allocator.NextInvoice(context.Background(), tx, orgID)
			values = append(values, seq)
			return err
		})
		if err != nil {
			t.Fatalf("allocate %d: %v", i, err)
		}
	}

	for i, want := range []int64{1001, 1002, 1003} {
		if values[i] != want {
			t.Fatalf("allocation %d: expected %d, got %d", i, want, values[i])
		}
	}
}

func TestSequencesIndependentPerOrg(t *testing.T) {
	allocator, db := setupAllocator(t)
	node := mustNode(t)
	orgA := node.Generate()
	orgB := node.Generate()

	allocate := func(orgID snowflake.ID) int64 {
		var got int64
		err := db.Transaction(func(tx *gorm.DB) error {
			seq, err := allocator.NextInvoice(context.Background(), tx, orgID)
			got = seq
			return err
		})
		if err != nil {
			t.Fatalf("allocate org %s: %v", orgID, err)
		}
		return got
	}

	allocate(orgA)
	allocate(orgA)
	if got := allocate(orgB); got != 1001 {
		t.Fatalf("expected org B to start at 1001, got %d", got)
	}
}

func TestInvoiceAndQuoteSequencesIndependent(t *testing.T) {
	allocator, db := setupAllocator(t)
	orgID := mustNode(t).Generate()

	err := db.Transaction(func(tx *gorm.DB) error {
		inv, err := allocator.NextInvoice(context.Background(), tx, orgID)
		if err != nil {
			return err
		}
		quo, err := allocator.NextQuote(context.Background(), tx, orgID)
		if err != nil {
			return err
		}
		if inv != 1001 || quo != 1001 {
			t.Fatalf("expected both counters to start at 1001, got invoice=%d quote=%d", inv, quo)
		}
		return nil
	})
	if err != nil {
		t.Fatalf("allocate: %v", err)
	}
}
