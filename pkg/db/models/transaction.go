package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/tillpoint/tillpoint-backend/pkg/enums"
)

// Transaction is an immutable sale record. Totals are computed once at
// commit from the cart snapshot and never recomputed afterward.
type Transaction struct {
	ID            uuid.UUID               `gorm:"column:id;type:uuid;default:(gen_random_uuid());primaryKey"`
	CustomerID    *uuid.UUID              `gorm:"column:customer_id;type:uuid"`
	Subtotal      decimal.Decimal         `gorm:"column:subtotal;type:numeric(10,2);not null"`
	Tax           decimal.Decimal         `gorm:"column:tax;type:numeric(10,2);not null"`
	Total         decimal.Decimal         `gorm:"column:total;type:numeric(10,2);not null"`
	Status        enums.TransactionStatus `gorm:"column:status;type:text;not null;default:'completed'"`
	PaymentMethod *enums.PaymentMethod    `gorm:"column:payment_method;type:text"`
	RefundAmount  *decimal.Decimal        `gorm:"column:refund_amount;type:numeric(10,2)"`
	RefundDate    *time.Time              `gorm:"column:refund_date"`
	Items         []TransactionItem       `gorm:"foreignKey:TransactionID;constraint:OnDelete:CASCADE"`
	CreatedAt     time.Time               `gorm:"column:created_at;autoCreateTime"`
	CompletedAt   *time.Time              `gorm:"column:completed_at"`
	UpdatedAt     time.Time               `gorm:"column:updated_at;autoUpdateTime"`
}
