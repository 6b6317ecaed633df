package migrate_test

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func TestCatalogMigrationContainsSchemas(t *testing.T) {
	matches, err := filepath.Glob(filepath.Join("migrations", "*_create_catalog.sql"))
	if err != nil {
		t.Fatalf("glob migrations: %v", err)
	}
	if len(matches) == 0 {
		t.Fatalf("no catalog migration file found")
	}

	data, err := os.ReadFile(matches[0])
	if err != nil {
		t.Fatalf("read migration file: %v", err)
	}
	content := string(data)

	checks := []string{
		"CREATE TABLE IF NOT EXISTS categories",
		"CREATE TABLE IF NOT EXISTS products",
		"CREATE TABLE IF NOT EXISTS product_reviews",
		"CREATE INDEX IF NOT EXISTS idx_products_category",
		"CONSTRAINT idx_product_reviews_product_user UNIQUE (product_id, user_id)",
		"CHECK (rating BETWEEN 1 AND 5)",
		"CHECK (price > 0)",
		"CHECK (stock_quantity >= 0)",
		"DROP TABLE IF EXISTS products",
	}

	for _, sub := range checks {
		if !strings.Contains(content, sub) {
			t.Errorf("missing expected statement %q", sub)
		}
	}
}

func TestOrdersMigrationCoversLifecycleStatuses(t *testing.T) {
	matches, err := filepath.Glob(filepath.Join("migrations", "*_create_orders.sql"))
	if err != nil {
		t.Fatalf("glob migrations: %v", err)
	}
	if len(matches) == 0 {
		t.Fatalf("no orders migration file found")
	}

	data, err := os.ReadFile(matches[0])
	if err != nil {
		t.Fatalf("read migration file: %v", err)
	}
	content := string(data)

	checks := []string{
		"CREATE TABLE IF NOT EXISTS orders",
		"CREATE TABLE IF NOT EXISTS order_items",
		"CREATE TABLE IF NOT EXISTS delivery_status_updates",
		"CONSTRAINT orders_number_unique UNIQUE (order_number)",
		"'pending', 'confirmed', 'in_production', 'ready_for_delivery', 'in_transit', 'delivered', 'cancelled'",
		"FOREIGN KEY (order_id) REFERENCES orders(id) ON DELETE CASCADE",
		"DROP TABLE IF EXISTS orders",
	}

	for _, sub := range checks {
		if !strings.Contains(content, sub) {
			t.Errorf("missing expected statement %q", sub)
		}
	}
}

func TestBillingMigrationEnforcesOneInvoicePerOrder(t *testing.T) {
	matches, err := filepath.Glob(filepath.Join("migrations", "*_create_billing.sql"))
	if err != nil {
		t.Fatalf("glob migrations: %v", err)
	}
	if len(matches) == 0 {
		t.Fatalf("no billing migration file found")
	}

	data, err := os.ReadFile(matches[0])
	if err != nil {
		t.Fatalf("read migration file: %v", err)
	}
	content := string(data)

	checks := []string{
		"CREATE TABLE IF NOT EXISTS invoices",
		"CREATE TABLE IF NOT EXISTS payments",
		"CREATE TABLE IF NOT EXISTS credit_notes",
		"CONSTRAINT invoices_order_unique UNIQUE (order_id)",
		"CHECK (amount > 0)",
		"CHECK (payment_method IN ('bank_transfer', 'credit_card', 'check', 'cash'))",
		"DROP TABLE IF EXISTS invoices",
	}

	for _, sub := range checks {
		if !strings.Contains(content, sub) {
			t.Errorf("missing expected statement %q", sub)
		}
	}
}
