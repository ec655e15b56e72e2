package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/tillpoint/tillpoint-backend/pkg/types"
)

// ProductVariant is one concrete attribute combination of a product. The
// Signature column is the canonical sorted axis=value form of Attributes;
// it is unique per product so no two variants share an attribute set.
// Color/Size/Flavor are convenience columns kept in sync with Attributes
// on every write.
type ProductVariant struct {
	ID         uuid.UUID          `gorm:"column:id;type:uuid;default:(gen_random_uuid());primaryKey"`
	ProductID  uuid.UUID          `gorm:"column:product_id;type:uuid;not null;uniqueIndex:ux_variants_product_signature"`
	SKU        *string            `gorm:"column:sku"`
	Price      decimal.Decimal    `gorm:"column:price;type:numeric(10,2);not null"`
	StockCount *int               `gorm:"column:stock_count"`
	Color      *string            `gorm:"column:color"`
	Size       *string            `gorm:"column:size"`
	Flavor     *string            `gorm:"column:flavor"`
	Attributes types.AttributeMap `gorm:"column:variant_attributes;type:jsonb;serializer:json"`
	Signature  string             `gorm:"column:signature;not null;uniqueIndex:ux_variants_product_signature"`
	CreatedAt  time.Time          `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt  time.Time          `gorm:"column:updated_at;autoUpdateTime"`
}

// LedgerSKU returns the stock-ledger key for this variant: the variant SKU
// when present, else the variant id.
func (v ProductVariant) LedgerSKU() string {
	if v.SKU != nil && *v.SKU != "" {
		return *v.SKU
	}
	return v.ID.String()
}
