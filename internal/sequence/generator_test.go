package sequence

import (
	"context"
	"fmt"
	"testing"

	"gorm.io/driver/sqlite"
	"gorm.io/gorm"

	"github.com/panelcraft/panelcraft-backend/pkg/db/models"
	pkgerrors "github.com/panelcraft/panelcraft-backend/pkg/errors"
)

func newTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	dsn := fmt.Sprintf("file:%s?mode=memory&cache=shared", t.Name())
	conn, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{SkipDefaultTransaction: true})
	if err != nil {
		t.Fatalf("open sqlite: %v", err)
	}
	if err := conn.AutoMigrate(&models.SequenceCounter{}); err != nil {
		t.Fatalf("migrate: %v", err)
	}
	return conn
}

func TestNextStartsAtOneAndIncrements(t *testing.T) {
	conn := newTestDB(t)
	gen := NewGenerator()
	ctx := context.Background()

	first, err := gen.Next(ctx, conn, PrefixOrder)
	if err != nil {
		t.Fatalf("next: %v", err)
	}
	if first != "ORD000001" {
		t.Fatalf("expected ORD000001, got %s", first)
	}

	second, err := gen.Next(ctx, conn, PrefixOrder)
	if err != nil {
		t.Fatalf("next: %v", err)
	}
	if second != "ORD000002" {
		t.Fatalf("expected ORD000002, got %s", second)
	}
}

func TestNextKeepsPrefixesIndependent(t *testing.T) {
	conn := newTestDB(t)
	gen := NewGenerator()
	ctx := context.Background()

	if _, err := gen.Next(ctx, conn, PrefixOrder); err != nil {
		t.Fatalf("next order: %v", err)
	}
	got, err := gen.Next(ctx, conn, PrefixInvoice)
	if err != nil {
		t.Fatalf("next invoice: %v", err)
	}
	if got != "INV000001" {
		t.Fatalf("expected INV000001, got %s", got)
	}
}

func TestQuotePrefixWidth(t *testing.T) {
	conn := newTestDB(t)
	gen := NewGenerator()

	got, err := gen.Next(context.Background(), conn, PrefixQuote)
	if err != nil {
		t.Fatalf("next quote: %v", err)
	}
	if got != "Q-00001" {
		t.Fatalf("expected Q-00001, got %s", got)
	}
}

func TestSeedAdvancesCounter(t *testing.T) {
	conn := newTestDB(t)
	gen := NewGenerator()
	ctx := context.Background()

	if err := gen.Seed(ctx, conn, PrefixOrder, "ORD000041"); err != nil {
		t.Fatalf("seed: %v", err)
	}

	got, err := gen.Next(ctx, conn, PrefixOrder)
	if err != nil {
		t.Fatalf("next: %v", err)
	}
	if got != "ORD000042" {
		t.Fatalf("expected ORD000042, got %s", got)
	}

	// Seeding backwards must not rewind the counter.
	if err := gen.Seed(ctx, conn, PrefixOrder, "ORD000005"); err != nil {
		t.Fatalf("seed backwards: %v", err)
	}
	got, err = gen.Next(ctx, conn, PrefixOrder)
	if err != nil {
		t.Fatalf("next: %v", err)
	}
	if got != "ORD000043" {
		t.Fatalf("expected ORD000043, got %s", got)
	}
}

func TestSeedFromDocumentsContinuesNumbering(t *testing.T) {
	conn := newTestDB(t)
	gen := NewGenerator()
	ctx := context.Background()

	stmts := []string{
		"CREATE TABLE orders (order_number TEXT)",
		"CREATE TABLE invoices (invoice_number TEXT)",
		"CREATE TABLE credit_notes (credit_note_number TEXT)",
		"CREATE TABLE purchase_orders (order_number TEXT)",
		"CREATE TABLE quotes (quote_number TEXT)",
		"INSERT INTO orders VALUES ('ORD000007'), ('ORD000019')",
		"INSERT INTO quotes VALUES ('Q-00003')",
	}
	for _, stmt := range stmts {
		if err := conn.Exec(stmt).Error; err != nil {
			t.Fatalf("exec %q: %v", stmt, err)
		}
	}

	if err := gen.SeedFromDocuments(ctx, conn); err != nil {
		t.Fatalf("seed from documents: %v", err)
	}

	got, err := gen.Next(ctx, conn, PrefixOrder)
	if err != nil {
		t.Fatalf("next order: %v", err)
	}
	if got != "ORD000020" {
		t.Fatalf("expected ORD000020, got %s", got)
	}

	got, err = gen.Next(ctx, conn, PrefixQuote)
	if err != nil {
		t.Fatalf("next quote: %v", err)
	}
	if got != "Q-00004" {
		t.Fatalf("expected Q-00004, got %s", got)
	}

	// Tables without imported documents start from scratch.
	got, err = gen.Next(ctx, conn, PrefixInvoice)
	if err != nil {
		t.Fatalf("next invoice: %v", err)
	}
	if got != "INV000001" {
		t.Fatalf("expected INV000001, got %s", got)
	}
}

func TestSeedRejectsCorruptNumbers(t *testing.T) {
	conn := newTestDB(t)
	gen := NewGenerator()
	ctx := context.Background()

	for _, number := range []string{"XXX000001", "ORDabc", "ORD000000", ""} {
		err := gen.Seed(ctx, conn, PrefixOrder, number)
		if err == nil {
			t.Fatalf("expected corrupt sequence error for %q", number)
		}
		coded := pkgerrors.As(err)
		if coded == nil || coded.Code() != pkgerrors.CodeInternal {
			t.Fatalf("expected internal error for %q, got %v", number, err)
		}
	}
}

func TestFormat(t *testing.T) {
	if got := PrefixInvoice.Format(7); got != "INV000007" {
		t.Fatalf("expected INV000007, got %s", got)
	}
	if got := PrefixCreditNote.Format(12); got != "CN000012" {
		t.Fatalf("expected CN000012, got %s", got)
	}
}
