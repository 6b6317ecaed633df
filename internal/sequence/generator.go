package sequence

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/panelcraft/panelcraft-backend/pkg/db/models"
	pkgerrors "github.com/panelcraft/panelcraft-backend/pkg/errors"
)

// Prefix identifies one document numbering sequence.
type Prefix struct {
	Code  string
	Width int
}

var (
	PrefixOrder         = Prefix{Code: "ORD", Width: 6}
	PrefixInvoice       = Prefix{Code: "INV", Width: 6}
	PrefixCreditNote    = Prefix{Code: "CN", Width: 6}
	PrefixPurchaseOrder = Prefix{Code: "PO", Width: 6}
	PrefixQuote         = Prefix{Code: "Q-", Width: 5}
)

// Format renders the n-th number of the sequence, e.g. ORD000001.
func (p Prefix) Format(n int64) string {
	return fmt.Sprintf("%s%0*d", p.Code, p.Width, n)
}

// ParseValue extracts the numeric suffix of a document number issued for this
// prefix. Malformed numbers are rejected rather than coerced.
func (p Prefix) ParseValue(number string) (int64, error) {
	suffix, ok := strings.CutPrefix(number, p.Code)
	if !ok {
		return 0, corruptSequenceError(p, number)
	}
	value, err := strconv.ParseInt(suffix, 10, 64)
	if err != nil || value < 1 {
		return 0, corruptSequenceError(p, number)
	}
	return value, nil
}

func corruptSequenceError(p Prefix, number string) error {
	return pkgerrors.New(pkgerrors.CodeInternal, "corrupt sequence number").WithDetails(map[string]string{
		"prefix": p.Code,
		"number": number,
	})
}

// Generator issues monotonic document numbers backed by one counter row per
// prefix. Callers pass the transaction that writes the document itself, so a
// number is only consumed when the document commits.
type Generator struct{}

func NewGenerator() *Generator {
	return &Generator{}
}

// Next locks the counter row for the prefix, increments it and returns the
// formatted number. Concurrent callers serialize on the row lock.
func (g *Generator) Next(ctx context.Context, tx *gorm.DB, prefix Prefix) (string, error) {
	var counter models.SequenceCounter
	err := tx.WithContext(ctx).
		Clauses(clause.Locking{Strength: "UPDATE"}).
		Where("prefix = ?", prefix.Code).
		First(&counter).Error
	switch {
	case err == nil:
	case errors.Is(err, gorm.ErrRecordNotFound):
		counter = models.SequenceCounter{Prefix: prefix.Code}
		if createErr := tx.WithContext(ctx).Create(&counter).Error; createErr != nil {
			return "", pkgerrors.Wrap(pkgerrors.CodeDependency, createErr, "create sequence counter")
		}
	default:
		return "", pkgerrors.Wrap(pkgerrors.CodeDependency, err, "lock sequence counter")
	}

	counter.LastValue++
	if err := tx.WithContext(ctx).
		Model(&models.SequenceCounter{}).
		Where("prefix = ?", prefix.Code).
		Update("last_value", counter.LastValue).Error; err != nil {
		return "", pkgerrors.Wrap(pkgerrors.CodeDependency, err, "advance sequence counter")
	}

	return prefix.Format(counter.LastValue), nil
}

// documentSources maps each prefix to the table and column that hold numbers
// issued before this system took over the books.
var documentSources = []struct {
	prefix Prefix
	table  string
	column string
}{
	{PrefixOrder, "orders", "order_number"},
	{PrefixInvoice, "invoices", "invoice_number"},
	{PrefixCreditNote, "credit_notes", "credit_note_number"},
	{PrefixPurchaseOrder, "purchase_orders", "order_number"},
	{PrefixQuote, "quotes", "quote_number"},
}

// SeedFromDocuments backfills every counter from the highest document number
// already on file, so numbering continues where imported data left off.
// Numbers are zero padded, so the lexicographic maximum is the numeric one.
func (g *Generator) SeedFromDocuments(ctx context.Context, tx *gorm.DB) error {
	for _, src := range documentSources {
		var number string
		err := tx.WithContext(ctx).
			Table(src.table).
			Select(src.column).
			Where(src.column+" LIKE ?", src.prefix.Code+"%").
			Order(src.column + " DESC").
			Limit(1).
			Scan(&number).Error
		if err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "scan "+src.table)
		}
		if number == "" {
			continue
		}
		if err := g.Seed(ctx, tx, src.prefix, number); err != nil {
			return err
		}
	}
	return nil
}

// Seed advances the counter to at least the value embedded in an existing
// document number. Used when adopting documents numbered by a previous system;
// a malformed number fails loudly instead of silently restarting the sequence.
func (g *Generator) Seed(ctx context.Context, tx *gorm.DB, prefix Prefix, number string) error {
	value, err := prefix.ParseValue(number)
	if err != nil {
		return err
	}

	var counter models.SequenceCounter
	findErr := tx.WithContext(ctx).
		Clauses(clause.Locking{Strength: "UPDATE"}).
		Where("prefix = ?", prefix.Code).
		First(&counter).Error
	switch {
	case findErr == nil:
	case errors.Is(findErr, gorm.ErrRecordNotFound):
		counter = models.SequenceCounter{Prefix: prefix.Code}
		if createErr := tx.WithContext(ctx).Create(&counter).Error; createErr != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, createErr, "create sequence counter")
		}
	default:
		return pkgerrors.Wrap(pkgerrors.CodeDependency, findErr, "lock sequence counter")
	}

	if value <= counter.LastValue {
		return nil
	}

	if err := tx.WithContext(ctx).
		Model(&models.SequenceCounter{}).
		Where("prefix = ?", prefix.Code).
		Update("last_value", value).Error; err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "seed sequence counter")
	}
	return nil
}
