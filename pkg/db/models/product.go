package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// Product represents a catalog listing. When HasVariants is set, price and
// stock are tracked on the variant rows and the flat Stock field is not
// authoritative.
type Product struct {
	ID          uuid.UUID        `gorm:"column:id;type:uuid;default:(gen_random_uuid());primaryKey"`
	Name        string           `gorm:"column:name;not null"`
	SKU         *string          `gorm:"column:sku;uniqueIndex"`
	Barcode     *string          `gorm:"column:barcode"`
	Price       decimal.Decimal  `gorm:"column:price;type:numeric(10,2);not null"`
	Cost        *decimal.Decimal `gorm:"column:cost;type:numeric(10,2)"`
	Stock       *int             `gorm:"column:stock"`
	Category    *string          `gorm:"column:category"`
	CategoryID  *uuid.UUID       `gorm:"column:category_id;type:uuid"`
	ImageURL    *string          `gorm:"column:image_url"`
	HasVariants bool             `gorm:"column:has_variants;not null;default:false"`
	Variants    []ProductVariant `gorm:"foreignKey:ProductID;constraint:OnDelete:CASCADE"`
	CreatedAt   time.Time        `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt   time.Time        `gorm:"column:updated_at;autoUpdateTime"`
}

// LedgerSKU returns the stock-ledger key for a variant-less sale of this
// product: the product SKU when present, else the product id.
func (p Product) LedgerSKU() string {
	if p.SKU != nil && *p.SKU != "" {
		return *p.SKU
	}
	return p.ID.String()
}
