package cart

import (
	"context"
	"testing"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/tillpoint/tillpoint-backend/internal/stock"
	"github.com/tillpoint/tillpoint-backend/pkg/db/models"
	pkgerrors "github.com/tillpoint/tillpoint-backend/pkg/errors"
)

type fakeStocks struct {
	available map[string]int
}

func (f *fakeStocks) GetAvailable(_ context.Context, sku string) (stock.Availability, error) {
	qty, ok := f.available[sku]
	if !ok {
		return stock.Availability{Tracked: false}, nil
	}
	return stock.Availability{Quantity: qty, Tracked: true}, nil
}

func strPtr(s string) *string { return &s }

func testProduct(name, sku, price string) *models.Product {
	return &models.Product{
		ID:    uuid.New(),
		Name:  name,
		SKU:   strPtr(sku),
		Price: decimal.RequireFromString(price),
	}
}

func TestAddIncrementsExistingLine(t *testing.T) {
	c := New(nil)
	ctx := context.Background()
	product := testProduct("Widget", "WID-1", "10.00")

	if err := c.Add(ctx, product, nil); err != nil {
		t.Fatalf("add: %v", err)
	}
	if err := c.Add(ctx, product, nil); err != nil {
		t.Fatalf("add again: %v", err)
	}

	if c.Len() != 1 {
		t.Fatalf("expected one line, got %d", c.Len())
	}
	if got := c.Lines()[0].Quantity; got != 2 {
		t.Fatalf("expected quantity 2, got %d", got)
	}
}

func TestAddUsesVariantPriceAndSKU(t *testing.T) {
	c := New(nil)
	ctx := context.Background()
	product := testProduct("Tee", "TEE", "10.00")
	product.HasVariants = true
	variant := &models.ProductVariant{
		ID:        uuid.New(),
		ProductID: product.ID,
		SKU:       strPtr("TEE-RED-M"),
		Price:     decimal.RequireFromString("12.00"),
	}

	if err := c.Add(ctx, product, variant); err != nil {
		t.Fatalf("add variant: %v", err)
	}
	line := c.Lines()[0]
	if line.SKU != "TEE-RED-M" {
		t.Fatalf("expected variant sku, got %s", line.SKU)
	}
	if !line.UnitPrice.Equal(decimal.RequireFromString("12.00")) {
		t.Fatalf("variant price must win, got %s", line.UnitPrice)
	}

	if err := c.Add(ctx, product, nil); !pkgerrors.IsCode(err, pkgerrors.CodeValidation) {
		t.Fatalf("variant-tracked product requires a selection, got %v", err)
	}
	foreign := &models.ProductVariant{ID: uuid.New(), ProductID: uuid.New(), Price: decimal.Zero}
	if err := c.Add(ctx, product, foreign); !pkgerrors.IsCode(err, pkgerrors.CodeValidation) {
		t.Fatalf("foreign variant must be rejected, got %v", err)
	}
}

func TestAdvisoryCeilingBlocksAdd(t *testing.T) {
	stocks := &fakeStocks{available: map[string]int{"WID-1": 1}}
	c := New(stocks)
	ctx := context.Background()
	product := testProduct("Widget", "WID-1", "10.00")

	if err := c.Add(ctx, product, nil); err != nil {
		t.Fatalf("first unit fits: %v", err)
	}
	err := c.Add(ctx, product, nil)
	if !pkgerrors.IsCode(err, pkgerrors.CodeInsufficientStock) {
		t.Fatalf("expected insufficient stock, got %v", err)
	}
	if got := c.Lines()[0].Quantity; got != 1 {
		t.Fatalf("rejected add must not change quantity, got %d", got)
	}

	// Untracked SKUs have no ceiling.
	loose := testProduct("Bulk", "BULK-9", "1.00")
	for i := 0; i < 50; i++ {
		if err := c.Add(ctx, loose, nil); err != nil {
			t.Fatalf("untracked add %d: %v", i, err)
		}
	}
}

func TestSetQuantity(t *testing.T) {
	stocks := &fakeStocks{available: map[string]int{"WID-1": 5}}
	c := New(stocks)
	ctx := context.Background()
	product := testProduct("Widget", "WID-1", "10.00")
	if err := c.Add(ctx, product, nil); err != nil {
		t.Fatalf("add: %v", err)
	}
	key := c.Lines()[0].Key

	if err := c.SetQuantity(ctx, key, 5); err != nil {
		t.Fatalf("set quantity: %v", err)
	}
	if err := c.SetQuantity(ctx, key, 6); !pkgerrors.IsCode(err, pkgerrors.CodeInsufficientStock) {
		t.Fatalf("expected insufficient stock, got %v", err)
	}
	if got := c.Lines()[0].Quantity; got != 5 {
		t.Fatalf("rejected update must not apply, got %d", got)
	}

	if err := c.SetQuantity(ctx, key, 0); err != nil {
		t.Fatalf("zero removes: %v", err)
	}
	if c.Len() != 0 {
		t.Fatalf("expected empty cart, got %d lines", c.Len())
	}

	if err := c.SetQuantity(ctx, key, 1); !pkgerrors.IsCode(err, pkgerrors.CodeNotFound) {
		t.Fatalf("expected not found for removed line, got %v", err)
	}
}

func TestInsertionOrderSurvivesRemoval(t *testing.T) {
	c := New(nil)
	ctx := context.Background()
	first := testProduct("A", "SKU-A", "1.00")
	second := testProduct("B", "SKU-B", "2.00")
	third := testProduct("C", "SKU-C", "3.00")
	for _, p := range []*models.Product{first, second, third} {
		if err := c.Add(ctx, p, nil); err != nil {
			t.Fatalf("add %s: %v", p.Name, err)
		}
	}

	c.Remove(Key{ProductID: second.ID})
	lines := c.Lines()
	if len(lines) != 2 || lines[0].Name != "A" || lines[1].Name != "C" {
		t.Fatalf("unexpected order after removal: %+v", lines)
	}
}

func TestTotalsWithCategoryRates(t *testing.T) {
	c := New(nil)
	ctx := context.Background()

	plain := testProduct("Widget", "WID-1", "10.00")
	if err := c.Add(ctx, plain, nil); err != nil {
		t.Fatalf("add: %v", err)
	}
	if err := c.SetQuantity(ctx, Key{ProductID: plain.ID}, 2); err != nil {
		t.Fatalf("set quantity: %v", err)
	}

	rules := TaxRules{DefaultRate: decimal.RequireFromString("0.08")}
	if got := c.Subtotal(); !got.Equal(decimal.RequireFromString("20.00")) {
		t.Fatalf("expected subtotal 20.00, got %s", got)
	}
	if got := c.Tax(rules); !got.Equal(decimal.RequireFromString("1.60")) {
		t.Fatalf("expected tax 1.60, got %s", got)
	}
	if got := c.Total(rules); !got.Equal(decimal.RequireFromString("21.60")) {
		t.Fatalf("expected total 21.60, got %s", got)
	}

	// Category rule overrides the default for matching lines only.
	grocery := testProduct("Milk", "MLK-1", "4.00")
	grocery.Category = strPtr("grocery")
	if err := c.Add(ctx, grocery, nil); err != nil {
		t.Fatalf("add grocery: %v", err)
	}
	rules.ByCategory = map[string]decimal.Decimal{"grocery": decimal.Zero}
	if got := c.Tax(rules); !got.Equal(decimal.RequireFromString("1.60")) {
		t.Fatalf("grocery should be untaxed, got %s", got)
	}
	if got := c.Total(rules); !got.Equal(decimal.RequireFromString("25.60")) {
		t.Fatalf("expected total 25.60, got %s", got)
	}
}

func TestClear(t *testing.T) {
	c := New(nil)
	ctx := context.Background()
	if err := c.Add(ctx, testProduct("A", "SKU-A", "1.00"), nil); err != nil {
		t.Fatalf("add: %v", err)
	}
	c.Clear()
	if c.Len() != 0 || !c.Subtotal().IsZero() {
		t.Fatalf("cart not cleared: %s", c)
	}
}
