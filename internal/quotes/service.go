package quotes

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"go.uber.org/multierr"
	"gorm.io/gorm"

	"github.com/panelcraft/panelcraft-backend/internal/orders"
	"github.com/panelcraft/panelcraft-backend/internal/sequence"
	"github.com/panelcraft/panelcraft-backend/pkg/config"
	"github.com/panelcraft/panelcraft-backend/pkg/db/models"
	"github.com/panelcraft/panelcraft-backend/pkg/enums"
	pkgerrors "github.com/panelcraft/panelcraft-backend/pkg/errors"
)

type txRunner interface {
	WithTx(ctx context.Context, fn func(tx *gorm.DB) error) error
}

type numberGenerator interface {
	Next(ctx context.Context, tx *gorm.DB, prefix sequence.Prefix) (string, error)
}

// CustomerDirectory resolves the customer snapshot stored on the quote.
type CustomerDirectory interface {
	FindUserByID(ctx context.Context, id uuid.UUID) (*models.User, error)
}

// ProductCatalog resolves product snapshots for quote lines.
type ProductCatalog interface {
	GetProduct(ctx context.Context, id uuid.UUID) (*models.Product, error)
}

// OrderCreator places the order produced by a quote conversion inside the
// conversion's transaction.
type OrderCreator interface {
	CreateInTx(ctx context.Context, tx *gorm.DB, input orders.CreateOrderInput) (*models.Order, error)
}

// Service defines commercial quoting operations.
type Service interface {
	Create(ctx context.Context, input CreateQuoteInput) (*models.Quote, error)
	Update(ctx context.Context, input UpdateQuoteInput) (*models.Quote, error)
	Get(ctx context.Context, id uuid.UUID) (*models.Quote, error)
	List(ctx context.Context, filter ListQuotesFilter) ([]models.Quote, error)
	Transition(ctx context.Context, input TransitionInput) (*models.Quote, error)
	ConvertToOrder(ctx context.Context, input ConvertInput) (*models.Quote, *models.Order, error)
	ExpireStale(ctx context.Context) (int, error)
}

type service struct {
	repo      Repository
	tx        txRunner
	seq       numberGenerator
	customers CustomerDirectory
	catalog   ProductCatalog
	orders    OrderCreator
	cfg       config.CommercialConfig
}

// NewService builds a quotes service with the required dependencies.
func NewService(repo Repository, tx txRunner, seq numberGenerator, customers CustomerDirectory, catalog ProductCatalog, orderCreator OrderCreator, cfg config.CommercialConfig) (Service, error) {
	if repo == nil {
		return nil, fmt.Errorf("quotes repository required")
	}
	if tx == nil {
		return nil, fmt.Errorf("transaction runner required")
	}
	if seq == nil {
		return nil, fmt.Errorf("number generator required")
	}
	if customers == nil {
		return nil, fmt.Errorf("customer directory required")
	}
	if catalog == nil {
		return nil, fmt.Errorf("product catalog required")
	}
	if orderCreator == nil {
		return nil, fmt.Errorf("order creator required")
	}
	if cfg.QuoteValidityDays <= 0 {
		return nil, fmt.Errorf("quote validity days must be positive")
	}
	return &service{
		repo:      repo,
		tx:        tx,
		seq:       seq,
		customers: customers,
		catalog:   catalog,
		orders:    orderCreator,
		cfg:       cfg,
	}, nil
}

// QuoteItemInput is one proposed product line. UnitPrice defaults to the
// current catalog price when omitted.
type QuoteItemInput struct {
	ProductID uuid.UUID
	Quantity  int
	UnitPrice *decimal.Decimal
	Discount  decimal.Decimal
}

// CreateQuoteInput captures the data required to draft a quote.
type CreateQuoteInput struct {
	CustomerID uuid.UUID
	ValidUntil *time.Time
	Discount   decimal.Decimal
	Tax        decimal.Decimal
	Notes      *string
	Items      []QuoteItemInput
}

// UpdateQuoteInput carries the draft fields to change. Items, when present,
// replace the existing lines entirely and totals are recomputed.
type UpdateQuoteInput struct {
	QuoteID    uuid.UUID
	ValidUntil *time.Time
	Discount   *decimal.Decimal
	Tax        *decimal.Decimal
	Notes      *string
	Items      []QuoteItemInput
}

// TransitionInput moves a quote to a new status.
type TransitionInput struct {
	QuoteID   uuid.UUID
	NewStatus enums.QuoteStatus
}

// ConvertInput turns an accepted quote into an order.
type ConvertInput struct {
	QuoteID         uuid.UUID
	ShippingAddress string
	DeliveryNotes   *string
	ActorID         uuid.UUID
}

// quoteTransitions lists the allowed status walks. Converted is only
// reachable through ConvertToOrder.
var quoteTransitions = map[enums.QuoteStatus][]enums.QuoteStatus{
	enums.QuoteStatusDraft: {enums.QuoteStatusSent},
	enums.QuoteStatusSent:  {enums.QuoteStatusAccepted, enums.QuoteStatusRejected, enums.QuoteStatusExpired},
}

func (s *service) Create(ctx context.Context, input CreateQuoteInput) (*models.Quote, error) {
	if len(input.Items) == 0 {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "quote must contain at least one item")
	}
	if input.Discount.IsNegative() || input.Tax.IsNegative() {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "discount and tax must not be negative")
	}

	customer, err := s.customers.FindUserByID(ctx, input.CustomerID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, pkgerrors.New(pkgerrors.CodeNotFound, "customer not found")
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load customer")
	}

	items, subtotal, err := s.buildItems(ctx, input.Items)
	if err != nil {
		return nil, err
	}

	total := subtotal.Sub(input.Discount).Add(input.Tax)
	if total.IsNegative() {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "discount exceeds quote amount")
	}

	validUntil := time.Now().AddDate(0, 0, s.cfg.QuoteValidityDays)
	if input.ValidUntil != nil {
		validUntil = *input.ValidUntil
	}

	var created *models.Quote
	err = s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		number, err := s.seq.Next(ctx, tx, sequence.PrefixQuote)
		if err != nil {
			return err
		}

		quote := &models.Quote{
			QuoteNumber:  number,
			CustomerID:   customer.ID,
			CustomerName: fmt.Sprintf("%s %s", customer.FirstName, customer.LastName),
			ValidUntil:   validUntil,
			Status:       enums.QuoteStatusDraft,
			Subtotal:     subtotal,
			Discount:     input.Discount,
			Tax:          input.Tax,
			Total:        total,
			Notes:        input.Notes,
			Items:        items,
		}
		if err := s.repo.WithTx(tx).CreateQuote(ctx, quote); err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "create quote")
		}
		created = quote
		return nil
	})
	if err != nil {
		return nil, err
	}
	return created, nil
}

// buildItems resolves product snapshots and line totals for quote lines.
func (s *service) buildItems(ctx context.Context, inputs []QuoteItemInput) ([]models.QuoteItem, decimal.Decimal, error) {
	var invalid error
	for i, item := range inputs {
		if item.Quantity <= 0 {
			invalid = multierr.Append(invalid, fmt.Errorf("item %d: quantity must be positive", i))
		}
		if item.Discount.IsNegative() {
			invalid = multierr.Append(invalid, fmt.Errorf("item %d: discount must not be negative", i))
		}
	}
	if invalid != nil {
		return nil, decimal.Zero, pkgerrors.Wrap(pkgerrors.CodeValidation, invalid, "invalid quote items")
	}

	subtotal := decimal.Zero
	items := make([]models.QuoteItem, 0, len(inputs))
	for _, item := range inputs {
		product, err := s.catalog.GetProduct(ctx, item.ProductID)
		if err != nil {
			return nil, decimal.Zero, err
		}

		unitPrice := product.Price
		if item.UnitPrice != nil {
			unitPrice = *item.UnitPrice
		}
		lineTotal := unitPrice.Mul(decimal.NewFromInt(int64(item.Quantity))).Sub(item.Discount)
		if lineTotal.IsNegative() {
			return nil, decimal.Zero, pkgerrors.New(pkgerrors.CodeValidation, "item discount exceeds line amount")
		}

		items = append(items, models.QuoteItem{
			ProductID:   item.ProductID,
			ProductName: product.Name,
			Quantity:    item.Quantity,
			UnitPrice:   unitPrice,
			Discount:    item.Discount,
			Total:       lineTotal,
		})
		subtotal = subtotal.Add(lineTotal)
	}
	return items, subtotal, nil
}

// Update edits a draft quote. Sent and later quotes are frozen; corrections
// happen by issuing a new quote.
func (s *service) Update(ctx context.Context, input UpdateQuoteInput) (*models.Quote, error) {
	if input.Discount != nil && input.Discount.IsNegative() {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "discount must not be negative")
	}
	if input.Tax != nil && input.Tax.IsNegative() {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "tax must not be negative")
	}

	var items []models.QuoteItem
	var subtotal decimal.Decimal
	if input.Items != nil {
		if len(input.Items) == 0 {
			return nil, pkgerrors.New(pkgerrors.CodeValidation, "quote must contain at least one item")
		}
		var err error
		items, subtotal, err = s.buildItems(ctx, input.Items)
		if err != nil {
			return nil, err
		}
	}

	var updated *models.Quote
	err := s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		repo := s.repo.WithTx(tx)

		quote, err := repo.LockQuoteForUpdate(ctx, input.QuoteID)
		if err != nil {
			return quoteNotFoundOr(err)
		}
		if quote.Status != enums.QuoteStatusDraft {
			return pkgerrors.New(pkgerrors.CodeStateConflict, "only draft quotes can be edited").WithDetails(map[string]string{
				"status": string(quote.Status),
			})
		}

		if input.ValidUntil != nil {
			quote.ValidUntil = *input.ValidUntil
		}
		if input.Discount != nil {
			quote.Discount = *input.Discount
		}
		if input.Tax != nil {
			quote.Tax = *input.Tax
		}
		if input.Notes != nil {
			quote.Notes = input.Notes
		}
		if input.Items != nil {
			for i := range items {
				items[i].QuoteID = quote.ID
			}
			if err := repo.ReplaceQuoteItems(ctx, quote.ID, items); err != nil {
				return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "replace quote items")
			}
			quote.Items = items
			quote.Subtotal = subtotal
		}

		quote.Total = quote.Subtotal.Sub(quote.Discount).Add(quote.Tax)
		if quote.Total.IsNegative() {
			return pkgerrors.New(pkgerrors.CodeValidation, "discount exceeds quote amount")
		}

		if err := repo.UpdateQuote(ctx, quote); err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "update quote")
		}
		updated = quote
		return nil
	})
	if err != nil {
		return nil, err
	}
	return updated, nil
}

func (s *service) Get(ctx context.Context, id uuid.UUID) (*models.Quote, error) {
	quote, err := s.repo.FindQuoteByID(ctx, id)
	if err != nil {
		return nil, quoteNotFoundOr(err)
	}
	return quote, nil
}

func (s *service) List(ctx context.Context, filter ListQuotesFilter) ([]models.Quote, error) {
	quotes, err := s.repo.ListQuotes(ctx, filter)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "list quotes")
	}
	return quotes, nil
}

func (s *service) Transition(ctx context.Context, input TransitionInput) (*models.Quote, error) {
	if !input.NewStatus.IsValid() {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "invalid quote status")
	}
	if input.NewStatus == enums.QuoteStatusConverted {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "quotes convert through the convert operation")
	}

	var updated *models.Quote
	err := s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		repo := s.repo.WithTx(tx)

		quote, err := repo.LockQuoteForUpdate(ctx, input.QuoteID)
		if err != nil {
			return quoteNotFoundOr(err)
		}
		if quote.Status == input.NewStatus {
			updated = quote
			return nil
		}
		if !transitionAllowed(quote.Status, input.NewStatus) {
			return pkgerrors.New(pkgerrors.CodeStateConflict, "illegal quote transition").WithDetails(map[string]string{
				"from": string(quote.Status),
				"to":   string(input.NewStatus),
			})
		}
		if err := repo.UpdateQuoteStatus(ctx, quote.ID, input.NewStatus); err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "update quote status")
		}
		quote.Status = input.NewStatus
		updated = quote
		return nil
	})
	if err != nil {
		return nil, err
	}
	return updated, nil
}

// ConvertToOrder places an order from an accepted quote and marks the quote
// converted, all in one transaction under a row lock. The order snapshots
// current catalog prices and decrements stock, so conversion fails if any
// quoted product is out of stock, and a failed conversion leaves no order
// behind. The lock makes concurrent converts of the same quote serialize; the
// loser sees the converted status and gets a state conflict.
func (s *service) ConvertToOrder(ctx context.Context, input ConvertInput) (*models.Quote, *models.Order, error) {
	if input.ShippingAddress == "" {
		return nil, nil, pkgerrors.New(pkgerrors.CodeValidation, "shipping address is required")
	}

	var (
		converted *models.Quote
		order     *models.Order
	)
	err := s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		repo := s.repo.WithTx(tx)

		quote, err := repo.LockQuoteForUpdate(ctx, input.QuoteID)
		if err != nil {
			return quoteNotFoundOr(err)
		}
		if quote.Status != enums.QuoteStatusAccepted {
			return pkgerrors.New(pkgerrors.CodeStateConflict, "only accepted quotes can convert").WithDetails(map[string]string{
				"status": string(quote.Status),
			})
		}

		orderItems := make([]orders.OrderItemInput, 0, len(quote.Items))
		for _, item := range quote.Items {
			orderItems = append(orderItems, orders.OrderItemInput{
				ProductID: item.ProductID,
				Quantity:  item.Quantity,
			})
		}

		placed, err := s.orders.CreateInTx(ctx, tx, orders.CreateOrderInput{
			ClientID:        quote.CustomerID,
			ShippingAddress: input.ShippingAddress,
			DeliveryNotes:   input.DeliveryNotes,
			Items:           orderItems,
			ActorID:         input.ActorID,
		})
		if err != nil {
			return err
		}

		if err := repo.UpdateQuoteStatus(ctx, quote.ID, enums.QuoteStatusConverted); err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "mark quote converted")
		}
		quote.Status = enums.QuoteStatusConverted
		converted = quote
		order = placed
		return nil
	})
	if err != nil {
		return nil, nil, err
	}
	return converted, order, nil
}

// ExpireStale flips sent quotes past their validity date to expired, and
// reports how many were affected. The status check lives in the UPDATE's
// WHERE clause, so quotes accepted concurrently are untouched.
func (s *service) ExpireStale(ctx context.Context) (int, error) {
	expired, err := s.repo.ExpireSentQuotes(ctx, time.Now())
	if err != nil {
		return 0, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "expire quotes")
	}
	return int(expired), nil
}

func transitionAllowed(from, to enums.QuoteStatus) bool {
	for _, allowed := range quoteTransitions[from] {
		if allowed == to {
			return true
		}
	}
	return false
}

func quoteNotFoundOr(err error) error {
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return pkgerrors.New(pkgerrors.CodeNotFound, "quote not found")
	}
	return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load quote")
}
