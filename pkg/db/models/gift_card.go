package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// GiftCard tracks a stored-value card. CurrentValue never exceeds
// InitialValue and never goes below zero; once IsActive is false the card
// can never be redeemed or reactivated.
type GiftCard struct {
	ID           uuid.UUID       `gorm:"column:id;type:uuid;default:(gen_random_uuid());primaryKey"`
	Code         string          `gorm:"column:code;not null;uniqueIndex"`
	InitialValue decimal.Decimal `gorm:"column:initial_value;type:numeric(10,2);not null"`
	CurrentValue decimal.Decimal `gorm:"column:current_value;type:numeric(10,2);not null"`
	CustomerID   *uuid.UUID      `gorm:"column:customer_id;type:uuid"`
	IsActive     bool            `gorm:"column:is_active;not null;default:true"`
	ExpiresAt    *time.Time      `gorm:"column:expires_at"`
	RedeemedAt   *time.Time      `gorm:"column:redeemed_at"`
	CreatedAt    time.Time       `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt    time.Time       `gorm:"column:updated_at;autoUpdateTime"`
}

// Expired reports whether the card is past its expiry at the given time.
func (g GiftCard) Expired(now time.Time) bool {
	return g.ExpiresAt != nil && now.After(*g.ExpiresAt)
}
