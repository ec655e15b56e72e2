package checkout

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"

	"github.com/tillpoint/tillpoint-backend/internal/cart"
	"github.com/tillpoint/tillpoint-backend/internal/stock"
	"github.com/tillpoint/tillpoint-backend/internal/transactions"
	"github.com/tillpoint/tillpoint-backend/pkg/db/models"
	"github.com/tillpoint/tillpoint-backend/pkg/enums"
	pkgerrors "github.com/tillpoint/tillpoint-backend/pkg/errors"
)

type fixture struct {
	db     *gorm.DB
	stocks stock.Service
	txRepo transactions.Repository
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	dsn := "file:checkout_" + uuid.NewString() + "?mode=memory&cache=shared"
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{})
	if err != nil {
		t.Fatalf("open db: %v", err)
	}
	if err := db.AutoMigrate(&models.InventoryItem{}, &models.Transaction{}, &models.TransactionItem{}); err != nil {
		t.Fatalf("migrate: %v", err)
	}
	sqlDB, err := db.DB()
	if err != nil {
		t.Fatalf("sql db: %v", err)
	}
	sqlDB.SetMaxOpenConns(1)

	stocks, err := stock.NewService(stock.NewRepository(db), nil)
	if err != nil {
		t.Fatalf("stock service: %v", err)
	}
	return &fixture{db: db, stocks: stocks, txRepo: transactions.NewRepository(db)}
}

type gormTxRunner struct {
	db *gorm.DB
}

func (r gormTxRunner) WithTx(ctx context.Context, fn func(tx *gorm.DB) error) error {
	return r.db.WithContext(ctx).Transaction(fn)
}

func (f *fixture) service(t *testing.T) Service {
	t.Helper()
	svc, err := NewService(gormTxRunner{db: f.db}, f.stocks, f.txRepo, nil, nil)
	if err != nil {
		t.Fatalf("checkout service: %v", err)
	}
	return svc
}

func (f *fixture) seedStock(t *testing.T, sku string, qty int) {
	t.Helper()
	if err := f.db.Create(&models.InventoryItem{SKU: sku, AvailableQty: qty}).Error; err != nil {
		t.Fatalf("seed %s: %v", sku, err)
	}
}

func (f *fixture) availableQty(t *testing.T, sku string) int {
	t.Helper()
	var item models.InventoryItem
	if err := f.db.First(&item, "sku = ?", sku).Error; err != nil {
		t.Fatalf("load %s: %v", sku, err)
	}
	return item.AvailableQty
}

func strPtr(s string) *string { return &s }

func newProduct(name, sku, price string) *models.Product {
	return &models.Product{
		ID:    uuid.New(),
		Name:  name,
		SKU:   strPtr(sku),
		Price: decimal.RequireFromString(price),
	}
}

func cartWith(t *testing.T, product *models.Product, qty int) *cart.Cart {
	t.Helper()
	c := cart.New(nil)
	ctx := context.Background()
	if err := c.Add(ctx, product, nil); err != nil {
		t.Fatalf("add: %v", err)
	}
	if qty > 1 {
		if err := c.SetQuantity(ctx, cart.Key{ProductID: product.ID}, qty); err != nil {
			t.Fatalf("set quantity: %v", err)
		}
	}
	return c
}

func TestCommitCreatesTransactionAndDecrementsStock(t *testing.T) {
	f := newFixture(t)
	svc := f.service(t)
	ctx := context.Background()
	f.seedStock(t, "WID-1", 10)

	c := cartWith(t, newProduct("Widget", "WID-1", "10.00"), 2)
	rules := cart.TaxRules{DefaultRate: decimal.RequireFromString("0.08")}

	transaction, err := svc.Commit(ctx, c, nil, enums.PaymentMethodCash, rules)
	if err != nil {
		t.Fatalf("commit: %v", err)
	}
	if !transaction.Subtotal.Equal(decimal.RequireFromString("20.00")) ||
		!transaction.Tax.Equal(decimal.RequireFromString("1.60")) ||
		!transaction.Total.Equal(decimal.RequireFromString("21.60")) {
		t.Fatalf("unexpected totals: %s / %s / %s", transaction.Subtotal, transaction.Tax, transaction.Total)
	}
	if transaction.Status != enums.TransactionStatusCompleted {
		t.Fatalf("expected completed, got %s", transaction.Status)
	}
	if transaction.CompletedAt == nil {
		t.Fatal("completed_at not stamped")
	}
	if got := f.availableQty(t, "WID-1"); got != 8 {
		t.Fatalf("expected stock 8 after commit, got %d", got)
	}

	persisted, err := f.txRepo.FindByID(ctx, transaction.ID)
	if err != nil {
		t.Fatalf("reload: %v", err)
	}
	if len(persisted.Items) != 1 || persisted.Items[0].SKU != "WID-1" || persisted.Items[0].Quantity != 2 {
		t.Fatalf("unexpected items: %+v", persisted.Items)
	}
}

func TestCommitTabStaysOpen(t *testing.T) {
	f := newFixture(t)
	svc := f.service(t)
	f.seedStock(t, "WID-1", 5)

	c := cartWith(t, newProduct("Widget", "WID-1", "10.00"), 1)
	transaction, err := svc.Commit(context.Background(), c, nil, enums.PaymentMethodTab, cart.TaxRules{})
	if err != nil {
		t.Fatalf("commit: %v", err)
	}
	if transaction.Status != enums.TransactionStatusOpen {
		t.Fatalf("tab tender must leave the transaction open, got %s", transaction.Status)
	}
	if transaction.CompletedAt != nil {
		t.Fatal("open transaction must not carry completed_at")
	}
}

func TestCommitInsufficientStockRestoresEarlierReservations(t *testing.T) {
	f := newFixture(t)
	svc := f.service(t)
	ctx := context.Background()
	f.seedStock(t, "SKU-A", 5)
	f.seedStock(t, "SKU-B", 1)

	c := cart.New(nil)
	productA := newProduct("A", "SKU-A", "1.00")
	productB := newProduct("B", "SKU-B", "2.00")
	if err := c.Add(ctx, productA, nil); err != nil {
		t.Fatalf("add A: %v", err)
	}
	if err := c.Add(ctx, productB, nil); err != nil {
		t.Fatalf("add B: %v", err)
	}
	if err := c.SetQuantity(ctx, cart.Key{ProductID: productB.ID}, 3); err != nil {
		t.Fatalf("set quantity: %v", err)
	}

	_, err := svc.Commit(ctx, c, nil, enums.PaymentMethodCash, cart.TaxRules{})
	if !pkgerrors.IsCode(err, pkgerrors.CodeInsufficientStock) {
		t.Fatalf("expected insufficient stock, got %v", err)
	}
	if got := f.availableQty(t, "SKU-A"); got != 5 {
		t.Fatalf("SKU-A must be restored, got %d", got)
	}
	if got := f.availableQty(t, "SKU-B"); got != 1 {
		t.Fatalf("SKU-B must be unchanged, got %d", got)
	}
}

type failingTxRepo struct {
	transactions.Repository
}

func (r *failingTxRepo) WithTx(*gorm.DB) transactions.Repository {
	return r
}

func (r *failingTxRepo) Create(context.Context, *models.Transaction) error {
	return errors.New("write timeout")
}

func TestCommitPersistenceFailureRestoresAllReservations(t *testing.T) {
	f := newFixture(t)
	svc, err := NewService(gormTxRunner{db: f.db}, f.stocks, &failingTxRepo{Repository: f.txRepo}, nil, nil)
	if err != nil {
		t.Fatalf("checkout service: %v", err)
	}
	ctx := context.Background()
	f.seedStock(t, "SKU-A", 4)
	f.seedStock(t, "SKU-B", 2)

	c := cart.New(nil)
	if err := c.Add(ctx, newProduct("A", "SKU-A", "1.00"), nil); err != nil {
		t.Fatalf("add A: %v", err)
	}
	if err := c.Add(ctx, newProduct("B", "SKU-B", "2.00"), nil); err != nil {
		t.Fatalf("add B: %v", err)
	}

	_, err = svc.Commit(ctx, c, nil, enums.PaymentMethodCard, cart.TaxRules{})
	if !pkgerrors.IsCode(err, pkgerrors.CodeDependency) {
		t.Fatalf("expected dependency error, got %v", err)
	}
	if got := f.availableQty(t, "SKU-A"); got != 4 {
		t.Fatalf("SKU-A not restored, got %d", got)
	}
	if got := f.availableQty(t, "SKU-B"); got != 2 {
		t.Fatalf("SKU-B not restored, got %d", got)
	}

	var count int64
	if err := f.db.Model(&models.Transaction{}).Count(&count).Error; err != nil {
		t.Fatalf("count transactions: %v", err)
	}
	if count != 0 {
		t.Fatalf("a failed persist must roll back, found %d rows", count)
	}
}

func TestConcurrentCommitsLastUnitHasOneWinner(t *testing.T) {
	f := newFixture(t)
	svc := f.service(t)
	ctx := context.Background()
	f.seedStock(t, "LAST-1", 1)

	product := newProduct("Last", "LAST-1", "10.00")
	results := make([]error, 2)
	var wg sync.WaitGroup
	for i := 0; i < 2; i++ {
		wg.Add(1)
		go func(slot int) {
			defer wg.Done()
			c := cart.New(nil)
			if err := c.Add(ctx, product, nil); err != nil {
				results[slot] = err
				return
			}
			_, results[slot] = svc.Commit(ctx, c, nil, enums.PaymentMethodCash, cart.TaxRules{})
		}(i)
	}
	wg.Wait()

	winners, losers := 0, 0
	for _, err := range results {
		switch {
		case err == nil:
			winners++
		case pkgerrors.IsCode(err, pkgerrors.CodeInsufficientStock):
			losers++
			detail, ok := pkgerrors.As(err).Details().(stock.InsufficientStockDetail)
			if !ok || detail.Requested != 1 || detail.Available != 0 {
				t.Fatalf("unexpected rejection detail: %+v", pkgerrors.As(err).Details())
			}
		default:
			t.Fatalf("unexpected error: %v", err)
		}
	}
	if winners != 1 || losers != 1 {
		t.Fatalf("expected one winner and one loser, got %d/%d", winners, losers)
	}
	if got := f.availableQty(t, "LAST-1"); got != 0 {
		t.Fatalf("expected stock 0, got %d", got)
	}
}

func TestCommitValidation(t *testing.T) {
	f := newFixture(t)
	svc := f.service(t)
	ctx := context.Background()

	if _, err := svc.Commit(ctx, cart.New(nil), nil, enums.PaymentMethodCash, cart.TaxRules{}); !pkgerrors.IsCode(err, pkgerrors.CodeValidation) {
		t.Fatalf("expected validation error for empty cart, got %v", err)
	}

	f.seedStock(t, "WID-1", 5)
	c := cartWith(t, newProduct("Widget", "WID-1", "10.00"), 1)
	if _, err := svc.Commit(ctx, c, nil, enums.PaymentMethod("barter"), cart.TaxRules{}); !pkgerrors.IsCode(err, pkgerrors.CodeValidation) {
		t.Fatalf("expected validation error for unknown tender, got %v", err)
	}
	if got := f.availableQty(t, "WID-1"); got != 5 {
		t.Fatalf("validation failures must not touch the ledger, got %d", got)
	}
}
