package stock

import (
	"context"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/tillpoint/tillpoint-backend/pkg/db/models"
)

// Repository manages persistence for per-SKU inventory rows.
type Repository interface {
	Find(ctx context.Context, sku string) (*models.InventoryItem, error)
	DecrementIfAvailable(ctx context.Context, sku string, qty int) (bool, error)
	Increment(ctx context.Context, sku string, delta int) (bool, error)
	Upsert(ctx context.Context, sku string, qty int) error
}

type repository struct {
	db *gorm.DB
}

// NewRepository returns an inventory repository bound to the provided database.
func NewRepository(db *gorm.DB) Repository {
	return &repository{db: db}
}

func (r *repository) Find(ctx context.Context, sku string) (*models.InventoryItem, error) {
	var item models.InventoryItem
	if err := r.db.WithContext(ctx).First(&item, "sku = ?", sku).Error; err != nil {
		return nil, err
	}
	return &item, nil
}

// DecrementIfAvailable performs the check and the decrement as one
// conditional UPDATE, so no other caller can observe the row between them.
// It reports whether a row was decremented.
func (r *repository) DecrementIfAvailable(ctx context.Context, sku string, qty int) (bool, error) {
	res := r.db.WithContext(ctx).
		Model(&models.InventoryItem{}).
		Where("sku = ? AND available_qty >= ?", sku, qty).
		Update("available_qty", gorm.Expr("available_qty - ?", qty))
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected > 0, nil
}

// Increment atomically raises the available quantity for a tracked SKU.
// It reports whether a row existed.
func (r *repository) Increment(ctx context.Context, sku string, delta int) (bool, error) {
	res := r.db.WithContext(ctx).
		Model(&models.InventoryItem{}).
		Where("sku = ?", sku).
		Update("available_qty", gorm.Expr("available_qty + ?", delta))
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected > 0, nil
}

// Upsert overwrites the available quantity for a SKU, creating the row if
// the SKU was previously untracked.
func (r *repository) Upsert(ctx context.Context, sku string, qty int) error {
	item := models.InventoryItem{SKU: sku, AvailableQty: qty}
	return r.db.WithContext(ctx).
		Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "sku"}},
			DoUpdates: clause.AssignmentColumns([]string{"available_qty", "updated_at"}),
		}).
		Create(&item).Error
}
