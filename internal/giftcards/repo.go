package giftcards

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	"github.com/tillpoint/tillpoint-backend/pkg/db/models"
)

// Repository manages persistence for gift card rows.
type Repository interface {
	Create(ctx context.Context, card *models.GiftCard) error
	FindByCode(ctx context.Context, code string) (*models.GiftCard, error)
	FindByID(ctx context.Context, id uuid.UUID) (*models.GiftCard, error)
	DecrementIfCovered(ctx context.Context, code string, amount decimal.Decimal, redeemedAt time.Time) (bool, error)
	Deactivate(ctx context.Context, id uuid.UUID) (bool, error)
}

type repository struct {
	db *gorm.DB
}

// NewRepository returns a gift card repository bound to the provided database.
func NewRepository(db *gorm.DB) Repository {
	return &repository{db: db}
}

func (r *repository) Create(ctx context.Context, card *models.GiftCard) error {
	return r.db.WithContext(ctx).Create(card).Error
}

func (r *repository) FindByCode(ctx context.Context, code string) (*models.GiftCard, error) {
	var card models.GiftCard
	if err := r.db.WithContext(ctx).First(&card, "code = ?", code).Error; err != nil {
		return nil, err
	}
	return &card, nil
}

func (r *repository) FindByID(ctx context.Context, id uuid.UUID) (*models.GiftCard, error) {
	var card models.GiftCard
	if err := r.db.WithContext(ctx).First(&card, "id = ?", id).Error; err != nil {
		return nil, err
	}
	return &card, nil
}

// DecrementIfCovered subtracts amount from the card's balance only while the
// card is active and the balance covers the amount, as one conditional
// UPDATE. It reports whether a row was decremented.
func (r *repository) DecrementIfCovered(ctx context.Context, code string, amount decimal.Decimal, redeemedAt time.Time) (bool, error) {
	res := r.db.WithContext(ctx).
		Model(&models.GiftCard{}).
		Where("code = ? AND is_active = ? AND current_value >= ?", code, true, amount).
		Updates(map[string]any{
			"current_value": gorm.Expr("current_value - ?", amount),
			"redeemed_at":   redeemedAt,
		})
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected > 0, nil
}

// Deactivate flips is_active to false for an active card. It reports whether
// a row changed, so the caller can distinguish already-inactive cards.
func (r *repository) Deactivate(ctx context.Context, id uuid.UUID) (bool, error) {
	res := r.db.WithContext(ctx).
		Model(&models.GiftCard{}).
		Where("id = ? AND is_active = ?", id, true).
		Update("is_active", false)
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected > 0, nil
}
