package quotes

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	"github.com/panelcraft/panelcraft-backend/internal/orders"
	"github.com/panelcraft/panelcraft-backend/internal/sequence"
	"github.com/panelcraft/panelcraft-backend/pkg/config"
	"github.com/panelcraft/panelcraft-backend/pkg/db/models"
	"github.com/panelcraft/panelcraft-backend/pkg/enums"
	pkgerrors "github.com/panelcraft/panelcraft-backend/pkg/errors"
)

type stubQuotesRepo struct {
	quotes map[uuid.UUID]*models.Quote
}

func (s *stubQuotesRepo) WithTx(tx *gorm.DB) Repository {
	return s
}

func (s *stubQuotesRepo) CreateQuote(ctx context.Context, quote *models.Quote) error {
	if quote.ID == uuid.Nil {
		quote.ID = uuid.New()
	}
	if s.quotes == nil {
		s.quotes = make(map[uuid.UUID]*models.Quote)
	}
	s.quotes[quote.ID] = quote
	return nil
}

func (s *stubQuotesRepo) FindQuoteByID(ctx context.Context, id uuid.UUID) (*models.Quote, error) {
	quote, ok := s.quotes[id]
	if !ok {
		return nil, gorm.ErrRecordNotFound
	}
	return quote, nil
}

func (s *stubQuotesRepo) LockQuoteForUpdate(ctx context.Context, id uuid.UUID) (*models.Quote, error) {
	return s.FindQuoteByID(ctx, id)
}

func (s *stubQuotesRepo) ListQuotes(ctx context.Context, filter ListQuotesFilter) ([]models.Quote, error) {
	var out []models.Quote
	for _, quote := range s.quotes {
		if filter.Status != nil && quote.Status != *filter.Status {
			continue
		}
		out = append(out, *quote)
	}
	return out, nil
}

func (s *stubQuotesRepo) UpdateQuote(ctx context.Context, quote *models.Quote) error {
	if _, ok := s.quotes[quote.ID]; !ok {
		return gorm.ErrRecordNotFound
	}
	s.quotes[quote.ID] = quote
	return nil
}

func (s *stubQuotesRepo) UpdateQuoteStatus(ctx context.Context, id uuid.UUID, status enums.QuoteStatus) error {
	quote, ok := s.quotes[id]
	if !ok {
		return gorm.ErrRecordNotFound
	}
	quote.Status = status
	return nil
}

func (s *stubQuotesRepo) ReplaceQuoteItems(ctx context.Context, quoteID uuid.UUID, items []models.QuoteItem) error {
	quote, ok := s.quotes[quoteID]
	if !ok {
		return gorm.ErrRecordNotFound
	}
	quote.Items = items
	return nil
}

func (s *stubQuotesRepo) ExpireSentQuotes(ctx context.Context, asOf time.Time) (int64, error) {
	var expired int64
	for _, quote := range s.quotes {
		if quote.Status != enums.QuoteStatusSent || quote.ValidUntil.After(asOf) {
			continue
		}
		quote.Status = enums.QuoteStatusExpired
		expired++
	}
	return expired, nil
}

type stubCustomerDirectory struct {
	users map[uuid.UUID]*models.User
}

func (s *stubCustomerDirectory) FindUserByID(ctx context.Context, id uuid.UUID) (*models.User, error) {
	user, ok := s.users[id]
	if !ok {
		return nil, gorm.ErrRecordNotFound
	}
	return user, nil
}

type stubProductCatalog struct {
	products map[uuid.UUID]*models.Product
}

func (s *stubProductCatalog) GetProduct(ctx context.Context, id uuid.UUID) (*models.Product, error) {
	product, ok := s.products[id]
	if !ok {
		return nil, pkgerrors.New(pkgerrors.CodeNotFound, "product not found")
	}
	return product, nil
}

type stubOrderCreator struct {
	input orders.CreateOrderInput
	tx    *gorm.DB
	order *models.Order
	err   error
	calls int
}

func (s *stubOrderCreator) CreateInTx(ctx context.Context, tx *gorm.DB, input orders.CreateOrderInput) (*models.Order, error) {
	s.calls++
	s.tx = tx
	if s.err != nil {
		return nil, s.err
	}
	s.input = input
	if s.order == nil {
		s.order = &models.Order{ID: uuid.New(), OrderNumber: "ORD000001", ClientID: input.ClientID}
	}
	return s.order, nil
}

type stubNumberGenerator struct {
	counts map[string]int
}

func (s *stubNumberGenerator) Next(ctx context.Context, tx *gorm.DB, prefix sequence.Prefix) (string, error) {
	if s.counts == nil {
		s.counts = make(map[string]int)
	}
	s.counts[prefix.Code]++
	return prefix.Format(int64(s.counts[prefix.Code])), nil
}

type stubTxRunner struct{}

func (stubTxRunner) WithTx(ctx context.Context, fn func(tx *gorm.DB) error) error {
	return fn(nil)
}

// sentinelTxRunner hands every callback the same tx value and remembers
// whether the callback failed, i.e. whether the transaction would roll back.
type sentinelTxRunner struct {
	tx    *gorm.DB
	fnErr error
}

func (r *sentinelTxRunner) WithTx(ctx context.Context, fn func(tx *gorm.DB) error) error {
	r.fnErr = fn(r.tx)
	return r.fnErr
}

type flakyStatusRepo struct {
	*stubQuotesRepo
	statusErr error
}

func (r *flakyStatusRepo) WithTx(tx *gorm.DB) Repository { return r }

func (r *flakyStatusRepo) UpdateQuoteStatus(ctx context.Context, id uuid.UUID, status enums.QuoteStatus) error {
	if r.statusErr != nil {
		err := r.statusErr
		r.statusErr = nil
		return err
	}
	return r.stubQuotesRepo.UpdateQuoteStatus(ctx, id, status)
}

func dec(s string) decimal.Decimal {
	d, err := decimal.NewFromString(s)
	if err != nil {
		panic(err)
	}
	return d
}

type quoteFixture struct {
	repo      *stubQuotesRepo
	customers *stubCustomerDirectory
	catalog   *stubProductCatalog
	orders    *stubOrderCreator
	svc       Service
	customer  *models.User
	product   *models.Product
}

func newQuoteFixture(t *testing.T) *quoteFixture {
	t.Helper()

	customer := &models.User{
		ID:        uuid.New(),
		FirstName: "Claire",
		LastName:  "Moreau",
		Role:      enums.UserRoleClient,
	}
	product := &models.Product{
		ID:    uuid.New(),
		Name:  "MDF Hydrofuge 18mm",
		Price: dec("45.00"),
	}

	f := &quoteFixture{
		repo:      &stubQuotesRepo{},
		customers: &stubCustomerDirectory{users: map[uuid.UUID]*models.User{customer.ID: customer}},
		catalog:   &stubProductCatalog{products: map[uuid.UUID]*models.Product{product.ID: product}},
		orders:    &stubOrderCreator{},
		customer:  customer,
		product:   product,
	}

	svc, err := NewService(f.repo, stubTxRunner{}, &stubNumberGenerator{}, f.customers, f.catalog, f.orders, config.CommercialConfig{QuoteValidityDays: 30})
	if err != nil {
		t.Fatalf("service constructor failed: %v", err)
	}
	f.svc = svc
	return f
}

func TestCreateQuoteComputesTotals(t *testing.T) {
	f := newQuoteFixture(t)

	unitPrice := dec("40.00")
	quote, err := f.svc.Create(context.Background(), CreateQuoteInput{
		CustomerID: f.customer.ID,
		Discount:   dec("5.00"),
		Tax:        dec("15.00"),
		Items: []QuoteItemInput{
			{ProductID: f.product.ID, Quantity: 2, UnitPrice: &unitPrice, Discount: dec("4.00")},
		},
	})
	if err != nil {
		t.Fatalf("expected success got %v", err)
	}

	if quote.QuoteNumber != "Q-00001" {
		t.Fatalf("unexpected quote number %s", quote.QuoteNumber)
	}
	if quote.Status != enums.QuoteStatusDraft {
		t.Fatalf("expected draft got %s", quote.Status)
	}
	if quote.CustomerName != "Claire Moreau" {
		t.Fatalf("unexpected customer name %s", quote.CustomerName)
	}
	// 2 * 40.00 - 4.00 = 76.00
	if !quote.Subtotal.Equal(dec("76.00")) {
		t.Fatalf("expected subtotal 76.00 got %s", quote.Subtotal)
	}
	// 76.00 - 5.00 + 15.00 = 86.00
	if !quote.Total.Equal(dec("86.00")) {
		t.Fatalf("expected total 86.00 got %s", quote.Total)
	}
	if len(quote.Items) != 1 || quote.Items[0].ProductName != "MDF Hydrofuge 18mm" {
		t.Fatalf("expected product name snapshot got %+v", quote.Items)
	}
}

func TestCreateQuoteDefaultsToCatalogPrice(t *testing.T) {
	f := newQuoteFixture(t)

	quote, err := f.svc.Create(context.Background(), CreateQuoteInput{
		CustomerID: f.customer.ID,
		Items:      []QuoteItemInput{{ProductID: f.product.ID, Quantity: 3}},
	})
	if err != nil {
		t.Fatalf("expected success got %v", err)
	}
	if !quote.Items[0].UnitPrice.Equal(dec("45.00")) {
		t.Fatalf("expected catalog price 45.00 got %s", quote.Items[0].UnitPrice)
	}
	if !quote.Subtotal.Equal(dec("135.00")) {
		t.Fatalf("expected subtotal 135.00 got %s", quote.Subtotal)
	}
}

func TestCreateQuoteRejectsEmptyItems(t *testing.T) {
	f := newQuoteFixture(t)

	_, err := f.svc.Create(context.Background(), CreateQuoteInput{CustomerID: f.customer.ID})
	coded := pkgerrors.As(err)
	if coded == nil || coded.Code() != pkgerrors.CodeValidation {
		t.Fatalf("expected validation error got %v", err)
	}
}

func TestCreateQuoteUnknownCustomer(t *testing.T) {
	f := newQuoteFixture(t)

	_, err := f.svc.Create(context.Background(), CreateQuoteInput{
		CustomerID: uuid.New(),
		Items:      []QuoteItemInput{{ProductID: f.product.ID, Quantity: 1}},
	})
	coded := pkgerrors.As(err)
	if coded == nil || coded.Code() != pkgerrors.CodeNotFound {
		t.Fatalf("expected not found got %v", err)
	}
}

func TestUpdateQuoteRecomputesTotals(t *testing.T) {
	f := newQuoteFixture(t)

	quote, err := f.svc.Create(context.Background(), CreateQuoteInput{
		CustomerID: f.customer.ID,
		Items:      []QuoteItemInput{{ProductID: f.product.ID, Quantity: 1}},
	})
	if err != nil {
		t.Fatalf("create quote: %v", err)
	}

	discount := dec("10.00")
	tax := dec("20.00")
	updated, err := f.svc.Update(context.Background(), UpdateQuoteInput{
		QuoteID:  quote.ID,
		Discount: &discount,
		Tax:      &tax,
		Items:    []QuoteItemInput{{ProductID: f.product.ID, Quantity: 4}},
	})
	if err != nil {
		t.Fatalf("expected success got %v", err)
	}

	// 4 * 45.00 = 180.00
	if !updated.Subtotal.Equal(dec("180.00")) {
		t.Fatalf("expected subtotal 180.00 got %s", updated.Subtotal)
	}
	// 180.00 - 10.00 + 20.00 = 190.00
	if !updated.Total.Equal(dec("190.00")) {
		t.Fatalf("expected total 190.00 got %s", updated.Total)
	}
	if len(updated.Items) != 1 || updated.Items[0].Quantity != 4 {
		t.Fatalf("expected replaced items got %+v", updated.Items)
	}
	if updated.QuoteNumber != quote.QuoteNumber {
		t.Fatalf("quote number must not change got %s", updated.QuoteNumber)
	}
}

func TestUpdateQuoteKeepsItemsWhenOmitted(t *testing.T) {
	f := newQuoteFixture(t)

	quote, _ := f.svc.Create(context.Background(), CreateQuoteInput{
		CustomerID: f.customer.ID,
		Items:      []QuoteItemInput{{ProductID: f.product.ID, Quantity: 2}},
	})

	discount := dec("5.00")
	updated, err := f.svc.Update(context.Background(), UpdateQuoteInput{
		QuoteID:  quote.ID,
		Discount: &discount,
	})
	if err != nil {
		t.Fatalf("expected success got %v", err)
	}
	if len(updated.Items) != 1 || updated.Items[0].Quantity != 2 {
		t.Fatalf("items must survive a field-only edit got %+v", updated.Items)
	}
	// 90.00 - 5.00 = 85.00
	if !updated.Total.Equal(dec("85.00")) {
		t.Fatalf("expected total 85.00 got %s", updated.Total)
	}
}

func TestUpdateQuoteRejectsNonDraft(t *testing.T) {
	f := newQuoteFixture(t)

	quote, _ := f.svc.Create(context.Background(), CreateQuoteInput{
		CustomerID: f.customer.ID,
		Items:      []QuoteItemInput{{ProductID: f.product.ID, Quantity: 1}},
	})
	quote.Status = enums.QuoteStatusSent

	notes := "revised"
	_, err := f.svc.Update(context.Background(), UpdateQuoteInput{QuoteID: quote.ID, Notes: &notes})
	coded := pkgerrors.As(err)
	if coded == nil || coded.Code() != pkgerrors.CodeStateConflict {
		t.Fatalf("expected state conflict got %v", err)
	}
}

func TestQuoteTransitionWalk(t *testing.T) {
	f := newQuoteFixture(t)

	quote, err := f.svc.Create(context.Background(), CreateQuoteInput{
		CustomerID: f.customer.ID,
		Items:      []QuoteItemInput{{ProductID: f.product.ID, Quantity: 1}},
	})
	if err != nil {
		t.Fatalf("create quote: %v", err)
	}

	// Draft cannot jump straight to accepted.
	_, err = f.svc.Transition(context.Background(), TransitionInput{QuoteID: quote.ID, NewStatus: enums.QuoteStatusAccepted})
	coded := pkgerrors.As(err)
	if coded == nil || coded.Code() != pkgerrors.CodeStateConflict {
		t.Fatalf("expected state conflict got %v", err)
	}

	for _, status := range []enums.QuoteStatus{enums.QuoteStatusSent, enums.QuoteStatusAccepted} {
		updated, err := f.svc.Transition(context.Background(), TransitionInput{QuoteID: quote.ID, NewStatus: status})
		if err != nil {
			t.Fatalf("transition to %s: %v", status, err)
		}
		if updated.Status != status {
			t.Fatalf("expected %s got %s", status, updated.Status)
		}
	}
}

func TestTransitionRejectsConvertedTarget(t *testing.T) {
	f := newQuoteFixture(t)

	quote, _ := f.svc.Create(context.Background(), CreateQuoteInput{
		CustomerID: f.customer.ID,
		Items:      []QuoteItemInput{{ProductID: f.product.ID, Quantity: 1}},
	})

	_, err := f.svc.Transition(context.Background(), TransitionInput{QuoteID: quote.ID, NewStatus: enums.QuoteStatusConverted})
	coded := pkgerrors.As(err)
	if coded == nil || coded.Code() != pkgerrors.CodeValidation {
		t.Fatalf("expected validation error got %v", err)
	}
}

func TestConvertToOrderRequiresAccepted(t *testing.T) {
	f := newQuoteFixture(t)

	quote, _ := f.svc.Create(context.Background(), CreateQuoteInput{
		CustomerID: f.customer.ID,
		Items:      []QuoteItemInput{{ProductID: f.product.ID, Quantity: 2}},
	})

	_, _, err := f.svc.ConvertToOrder(context.Background(), ConvertInput{
		QuoteID:         quote.ID,
		ShippingAddress: "12 Rue des Panneaux, Lyon",
	})
	coded := pkgerrors.As(err)
	if coded == nil || coded.Code() != pkgerrors.CodeStateConflict {
		t.Fatalf("expected state conflict got %v", err)
	}
	if f.orders.calls != 0 {
		t.Fatal("no order must be placed for a non-accepted quote")
	}
}

func TestConvertToOrderPlacesOrderAndMarksConverted(t *testing.T) {
	f := newQuoteFixture(t)

	quote, _ := f.svc.Create(context.Background(), CreateQuoteInput{
		CustomerID: f.customer.ID,
		Items:      []QuoteItemInput{{ProductID: f.product.ID, Quantity: 2}},
	})
	quote.Status = enums.QuoteStatusAccepted

	converted, order, err := f.svc.ConvertToOrder(context.Background(), ConvertInput{
		QuoteID:         quote.ID,
		ShippingAddress: "12 Rue des Panneaux, Lyon",
		ActorID:         uuid.New(),
	})
	if err != nil {
		t.Fatalf("expected success got %v", err)
	}
	if converted.Status != enums.QuoteStatusConverted {
		t.Fatalf("expected converted got %s", converted.Status)
	}
	if order == nil || order.ClientID != f.customer.ID {
		t.Fatalf("unexpected order %+v", order)
	}
	if len(f.orders.input.Items) != 1 || f.orders.input.Items[0].Quantity != 2 {
		t.Fatalf("unexpected order items %+v", f.orders.input.Items)
	}

	// Converted quotes cannot convert again.
	_, _, err = f.svc.ConvertToOrder(context.Background(), ConvertInput{
		QuoteID:         quote.ID,
		ShippingAddress: "12 Rue des Panneaux, Lyon",
	})
	coded := pkgerrors.As(err)
	if coded == nil || coded.Code() != pkgerrors.CodeStateConflict {
		t.Fatalf("expected state conflict got %v", err)
	}
}

func TestConvertRunsInOneTransaction(t *testing.T) {
	customer := &models.User{ID: uuid.New(), FirstName: "Claire", LastName: "Moreau", Role: enums.UserRoleClient}
	product := &models.Product{ID: uuid.New(), Name: "MDF Hydrofuge 18mm", Price: dec("45.00")}
	repo := &flakyStatusRepo{
		stubQuotesRepo: &stubQuotesRepo{},
		statusErr:      errors.New("connection reset"),
	}
	creator := &stubOrderCreator{}
	runner := &sentinelTxRunner{tx: &gorm.DB{}}

	svc, err := NewService(repo, runner, &stubNumberGenerator{},
		&stubCustomerDirectory{users: map[uuid.UUID]*models.User{customer.ID: customer}},
		&stubProductCatalog{products: map[uuid.UUID]*models.Product{product.ID: product}},
		creator, config.CommercialConfig{QuoteValidityDays: 30})
	if err != nil {
		t.Fatalf("service constructor failed: %v", err)
	}

	quote, err := svc.Create(context.Background(), CreateQuoteInput{
		CustomerID: customer.ID,
		Items:      []QuoteItemInput{{ProductID: product.ID, Quantity: 2}},
	})
	if err != nil {
		t.Fatalf("create quote: %v", err)
	}
	quote.Status = enums.QuoteStatusAccepted

	_, _, err = svc.ConvertToOrder(context.Background(), ConvertInput{
		QuoteID:         quote.ID,
		ShippingAddress: "12 Rue des Panneaux, Lyon",
	})
	coded := pkgerrors.As(err)
	if coded == nil || coded.Code() != pkgerrors.CodeDependency {
		t.Fatalf("expected dependency error got %v", err)
	}
	if creator.calls != 1 || creator.tx != runner.tx {
		t.Fatal("order must be placed inside the conversion transaction")
	}
	if runner.fnErr == nil {
		t.Fatal("failed status flip must abort the transaction so the order rolls back with it")
	}
	if repo.quotes[quote.ID].Status != enums.QuoteStatusAccepted {
		t.Fatalf("quote must stay accepted after a failed convert got %s", repo.quotes[quote.ID].Status)
	}

	// Once the flake clears, a retry converts normally.
	converted, order, err := svc.ConvertToOrder(context.Background(), ConvertInput{
		QuoteID:         quote.ID,
		ShippingAddress: "12 Rue des Panneaux, Lyon",
	})
	if err != nil {
		t.Fatalf("retry convert: %v", err)
	}
	if converted.Status != enums.QuoteStatusConverted || order == nil {
		t.Fatalf("expected converted quote with order got %s", converted.Status)
	}

	// The converted status now blocks any further convert under the lock.
	_, _, err = svc.ConvertToOrder(context.Background(), ConvertInput{
		QuoteID:         quote.ID,
		ShippingAddress: "12 Rue des Panneaux, Lyon",
	})
	coded = pkgerrors.As(err)
	if coded == nil || coded.Code() != pkgerrors.CodeStateConflict {
		t.Fatalf("expected state conflict got %v", err)
	}
}

func TestExpireStale(t *testing.T) {
	f := newQuoteFixture(t)

	fresh, _ := f.svc.Create(context.Background(), CreateQuoteInput{
		CustomerID: f.customer.ID,
		Items:      []QuoteItemInput{{ProductID: f.product.ID, Quantity: 1}},
	})
	past := time.Now().AddDate(0, 0, -1)
	stale, _ := f.svc.Create(context.Background(), CreateQuoteInput{
		CustomerID: f.customer.ID,
		ValidUntil: &past,
		Items:      []QuoteItemInput{{ProductID: f.product.ID, Quantity: 1}},
	})
	accepted, _ := f.svc.Create(context.Background(), CreateQuoteInput{
		CustomerID: f.customer.ID,
		ValidUntil: &past,
		Items:      []QuoteItemInput{{ProductID: f.product.ID, Quantity: 1}},
	})
	fresh.Status = enums.QuoteStatusSent
	stale.Status = enums.QuoteStatusSent
	accepted.Status = enums.QuoteStatusAccepted

	expired, err := f.svc.ExpireStale(context.Background())
	if err != nil {
		t.Fatalf("expected success got %v", err)
	}
	if expired != 1 {
		t.Fatalf("expected 1 expired got %d", expired)
	}
	if f.repo.quotes[stale.ID].Status != enums.QuoteStatusExpired {
		t.Fatalf("expected stale quote expired got %s", f.repo.quotes[stale.ID].Status)
	}
	if f.repo.quotes[fresh.ID].Status != enums.QuoteStatusSent {
		t.Fatalf("fresh quote must stay sent got %s", f.repo.quotes[fresh.ID].Status)
	}
	// Past validity but no longer sent, so the sweep leaves it alone.
	if f.repo.quotes[accepted.ID].Status != enums.QuoteStatusAccepted {
		t.Fatalf("accepted quote must stay accepted got %s", f.repo.quotes[accepted.ID].Status)
	}
}
