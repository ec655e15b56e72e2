package cart

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/tillpoint/tillpoint-backend/internal/stock"
	"github.com/tillpoint/tillpoint-backend/pkg/db/models"
	pkgerrors "github.com/tillpoint/tillpoint-backend/pkg/errors"
)

// stockReader provides the advisory availability snapshot used while the
// cart is edited. Reads are best effort and never authoritative; the
// ledger enforces the real ceiling at commit.
type stockReader interface {
	GetAvailable(ctx context.Context, sku string) (stock.Availability, error)
}

// Key identifies a cart line. VariantID is uuid.Nil for variant-less
// products.
type Key struct {
	ProductID uuid.UUID `json:"product_id"`
	VariantID uuid.UUID `json:"variant_id"`
}

// Line is one cart entry. UnitPrice is copied from the variant when one is
// selected, else from the product, at the moment of addition. The display
// fields are denormalized copies for presentation.
type Line struct {
	Key       Key             `json:"key"`
	SKU       string          `json:"sku"`
	Name      string          `json:"name"`
	Category  *string         `json:"category,omitempty"`
	ImageURL  *string         `json:"image_url,omitempty"`
	UnitPrice decimal.Decimal `json:"unit_price"`
	Quantity  int             `json:"quantity"`
}

// Subtotal is the line's unit price times its quantity.
func (l Line) Subtotal() decimal.Decimal {
	return l.UnitPrice.Mul(decimal.NewFromInt(int64(l.Quantity)))
}

// Cart is a single-session, insertion-ordered set of lines keyed by
// (product, variant). It is owned by one checkout session and never
// shared across goroutines.
type Cart struct {
	lines      []*Line
	index      map[Key]*Line
	customerID *uuid.UUID
	stocks     stockReader
}

// New builds an empty cart. The stock reader is optional; without one no
// advisory checks are performed.
func New(stocks stockReader) *Cart {
	return &Cart{index: make(map[Key]*Line), stocks: stocks}
}

// SetCustomer associates the cart with a customer.
func (c *Cart) SetCustomer(id *uuid.UUID) {
	c.customerID = id
}

// CustomerID returns the associated customer, if any.
func (c *Cart) CustomerID() *uuid.UUID {
	return c.customerID
}

// Add puts one unit of the product (or of the selected variant) in the
// cart. Adding an already-present key increments its quantity instead of
// duplicating the line. The new total is checked against the advisory
// stock snapshot; on rejection the cart is unchanged.
func (c *Cart) Add(ctx context.Context, product *models.Product, variant *models.ProductVariant) error {
	if product == nil {
		return pkgerrors.New(pkgerrors.CodeValidation, "product is required")
	}
	if variant != nil && variant.ProductID != product.ID {
		return pkgerrors.New(pkgerrors.CodeValidation, "variant does not belong to product")
	}
	if product.HasVariants && variant == nil {
		return pkgerrors.New(pkgerrors.CodeValidation, "product requires a variant selection")
	}

	key := Key{ProductID: product.ID}
	sku := product.LedgerSKU()
	price := product.Price
	if variant != nil {
		key.VariantID = variant.ID
		sku = variant.LedgerSKU()
		price = variant.Price
	}

	if line, ok := c.index[key]; ok {
		if err := c.checkCeiling(ctx, sku, line.Quantity+1); err != nil {
			return err
		}
		line.Quantity++
		return nil
	}

	if err := c.checkCeiling(ctx, sku, 1); err != nil {
		return err
	}
	line := &Line{
		Key:       key,
		SKU:       sku,
		Name:      product.Name,
		Category:  product.Category,
		ImageURL:  product.ImageURL,
		UnitPrice: price,
		Quantity:  1,
	}
	c.lines = append(c.lines, line)
	c.index[key] = line
	return nil
}

// SetQuantity sets a line's quantity. Zero or negative removes the line;
// otherwise the new quantity is checked against the advisory snapshot.
func (c *Cart) SetQuantity(ctx context.Context, key Key, qty int) error {
	line, ok := c.index[key]
	if !ok {
		return pkgerrors.New(pkgerrors.CodeNotFound, "cart line not found")
	}
	if qty <= 0 {
		c.Remove(key)
		return nil
	}
	if err := c.checkCeiling(ctx, line.SKU, qty); err != nil {
		return err
	}
	line.Quantity = qty
	return nil
}

// Remove drops a line. Removing an absent key is a no-op.
func (c *Cart) Remove(key Key) {
	if _, ok := c.index[key]; !ok {
		return
	}
	delete(c.index, key)
	for i, line := range c.lines {
		if line.Key == key {
			c.lines = append(c.lines[:i], c.lines[i+1:]...)
			return
		}
	}
}

// Clear empties the cart.
func (c *Cart) Clear() {
	c.lines = nil
	c.index = make(map[Key]*Line)
}

// Lines returns the lines in insertion order. The returned slice is a
// snapshot; mutating it does not affect the cart.
func (c *Cart) Lines() []Line {
	out := make([]Line, len(c.lines))
	for i, line := range c.lines {
		out[i] = *line
	}
	return out
}

// Len returns the number of distinct lines.
func (c *Cart) Len() int {
	return len(c.lines)
}

// Subtotal sums unit price times quantity over all lines.
func (c *Cart) Subtotal() decimal.Decimal {
	total := decimal.Zero
	for _, line := range c.lines {
		total = total.Add(line.Subtotal())
	}
	return total
}

// Tax sums per-line tax. Each line is taxed at its category's rate when a
// rule matches, else at the default rate. Per-line amounts are rounded to
// cents before summing.
func (c *Cart) Tax(rules TaxRules) decimal.Decimal {
	total := decimal.Zero
	for _, line := range c.lines {
		rate := rules.RateFor(line.Category)
		total = total.Add(line.Subtotal().Mul(rate).Round(2))
	}
	return total
}

// Total is subtotal plus tax under the given rules.
func (c *Cart) Total(rules TaxRules) decimal.Decimal {
	return c.Subtotal().Add(c.Tax(rules))
}

func (c *Cart) checkCeiling(ctx context.Context, sku string, wantQty int) error {
	if wantQty <= 0 {
		return pkgerrors.New(pkgerrors.CodeValidation, "quantity must be positive")
	}
	if c.stocks == nil {
		return nil
	}
	av, err := c.stocks.GetAvailable(ctx, sku)
	if err != nil {
		// Advisory only: an unreadable snapshot never blocks the cart.
		return nil
	}
	if av.Tracked && wantQty > av.Quantity {
		return stock.ErrInsufficientStock(sku, wantQty, av.Quantity)
	}
	return nil
}

// String renders a short human-readable summary, used in logs.
func (c *Cart) String() string {
	return fmt.Sprintf("cart{lines: %d, subtotal: %s}", len(c.lines), c.Subtotal().StringFixed(2))
}
