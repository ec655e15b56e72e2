package models

import "time"

// InventoryItem is the authoritative available-quantity row for one SKU
// (a variant-less product or a specific variant). A SKU with no row is
// untracked: no stock ceiling applies.
type InventoryItem struct {
	SKU          string    `gorm:"column:sku;primaryKey"`
	AvailableQty int       `gorm:"column:available_qty;not null;default:0"`
	UpdatedAt    time.Time `gorm:"column:updated_at;autoUpdateTime"`
}
