package models

import (
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// TransactionItem is a frozen snapshot of one cart line at commit time.
// Position preserves the cart's insertion order.
type TransactionItem struct {
	ID            uuid.UUID       `gorm:"column:id;type:uuid;default:(gen_random_uuid());primaryKey"`
	TransactionID uuid.UUID       `gorm:"column:transaction_id;type:uuid;not null"`
	ProductID     uuid.UUID       `gorm:"column:product_id;type:uuid;not null"`
	VariantID     *uuid.UUID      `gorm:"column:variant_id;type:uuid"`
	SKU           string          `gorm:"column:sku;not null"`
	Name          string          `gorm:"column:name;not null"`
	Category      *string         `gorm:"column:category"`
	ImageURL      *string         `gorm:"column:image_url"`
	Quantity      int             `gorm:"column:quantity;not null"`
	UnitPrice     decimal.Decimal `gorm:"column:unit_price;type:numeric(10,2);not null"`
	LineTotal     decimal.Decimal `gorm:"column:line_total;type:numeric(10,2);not null"`
	Position      int             `gorm:"column:position;not null;default:0"`
}
