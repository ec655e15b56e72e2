package giftcards

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	pkgerrors "github.com/tillpoint/tillpoint-backend/pkg/errors"
	"github.com/tillpoint/tillpoint-backend/pkg/metrics"

	"github.com/tillpoint/tillpoint-backend/pkg/db/models"
)

// InsufficientBalanceDetail names the card and the shortfall.
type InsufficientBalanceDetail struct {
	Code      string          `json:"code"`
	Requested decimal.Decimal `json:"requested"`
	Balance   decimal.Decimal `json:"balance"`
}

// Service is the stored-value card ledger. Redeem is the only operation
// used by the sale path; Issue and Deactivate are administrative.
type Service interface {
	Issue(ctx context.Context, code string, value decimal.Decimal, customerID *uuid.UUID, expiresAt *time.Time) (*models.GiftCard, error)
	Find(ctx context.Context, code string) (*models.GiftCard, error)
	Redeem(ctx context.Context, code string, amount decimal.Decimal) (decimal.Decimal, error)
	Deactivate(ctx context.Context, id uuid.UUID) error
}

type service struct {
	repo    Repository
	metrics *metrics.CheckoutMetrics
}

// NewService wires a gift card service. Metrics are optional.
func NewService(repo Repository, m *metrics.CheckoutMetrics) (Service, error) {
	if repo == nil {
		return nil, fmt.Errorf("gift card repository required")
	}
	return &service{repo: repo, metrics: m}, nil
}

// Issue creates a new card with the full value available.
func (s *service) Issue(ctx context.Context, code string, value decimal.Decimal, customerID *uuid.UUID, expiresAt *time.Time) (*models.GiftCard, error) {
	if code == "" {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "code is required")
	}
	if value.LessThanOrEqual(decimal.Zero) {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "value must be positive")
	}

	card := &models.GiftCard{
		ID:           uuid.New(),
		Code:         code,
		InitialValue: value,
		CurrentValue: value,
		CustomerID:   customerID,
		IsActive:     true,
		ExpiresAt:    expiresAt,
	}
	if err := s.repo.Create(ctx, card); err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "issue gift card")
	}
	return card, nil
}

// Find loads a card by its code for balance display.
func (s *service) Find(ctx context.Context, code string) (*models.GiftCard, error) {
	if code == "" {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "code is required")
	}
	card, err := s.repo.FindByCode(ctx, code)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, pkgerrors.New(pkgerrors.CodeNotFound, "gift card not found")
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load gift card")
	}
	return card, nil
}

// Redeem subtracts amount from the card's balance and returns the new
// balance. Rejections are classified in a fixed order: unknown code, then
// inactive or expired card, then insufficient balance. Redeeming the exact
// remaining balance leaves the card active at zero.
func (s *service) Redeem(ctx context.Context, code string, amount decimal.Decimal) (decimal.Decimal, error) {
	if code == "" {
		return decimal.Zero, pkgerrors.New(pkgerrors.CodeValidation, "code is required")
	}
	if amount.LessThanOrEqual(decimal.Zero) {
		return decimal.Zero, pkgerrors.New(pkgerrors.CodeValidation, "redemption amount must be positive")
	}

	card, err := s.Find(ctx, code)
	if err != nil {
		s.metrics.IncRedemption("rejected")
		return decimal.Zero, err
	}
	if rejection := s.classify(card, amount); rejection != nil {
		s.metrics.IncRedemption("rejected")
		return decimal.Zero, rejection
	}

	decremented, err := s.repo.DecrementIfCovered(ctx, code, amount, time.Now().UTC())
	if err != nil {
		s.metrics.IncRedemption("error")
		return decimal.Zero, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "redeem gift card")
	}
	if !decremented {
		// Lost a race since the pre-read. Re-read so the rejection
		// reflects the card's actual state.
		card, err = s.Find(ctx, code)
		if err != nil {
			s.metrics.IncRedemption("rejected")
			return decimal.Zero, err
		}
		s.metrics.IncRedemption("rejected")
		if rejection := s.classify(card, amount); rejection != nil {
			return decimal.Zero, rejection
		}
		return decimal.Zero, pkgerrors.New(pkgerrors.CodeConflict, "gift card redemption conflicted, retry")
	}

	s.metrics.IncRedemption("redeemed")
	fresh, err := s.Find(ctx, code)
	if err != nil {
		// The decrement already committed; the computed balance is the
		// best answer available when the re-read fails.
		return card.CurrentValue.Sub(amount), nil
	}
	return fresh.CurrentValue, nil
}

// Deactivate permanently disables a card. Any remaining balance is
// forfeited; there is no reactivation path.
func (s *service) Deactivate(ctx context.Context, id uuid.UUID) error {
	if id == uuid.Nil {
		return pkgerrors.New(pkgerrors.CodeValidation, "gift card id is required")
	}

	changed, err := s.repo.Deactivate(ctx, id)
	if err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "deactivate gift card")
	}
	if changed {
		return nil
	}

	if _, err := s.repo.FindByID(ctx, id); err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return pkgerrors.New(pkgerrors.CodeNotFound, "gift card not found")
		}
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load gift card")
	}
	return pkgerrors.New(pkgerrors.CodeStateConflict, "gift card is already inactive")
}

func (s *service) classify(card *models.GiftCard, amount decimal.Decimal) *pkgerrors.Error {
	if !card.IsActive || card.Expired(time.Now().UTC()) {
		return pkgerrors.New(pkgerrors.CodeGiftCardInactive, "gift card is inactive")
	}
	if card.CurrentValue.LessThan(amount) {
		msg := fmt.Sprintf("insufficient balance on %s: requested %s, only %s available",
			card.Code, amount.StringFixed(2), card.CurrentValue.StringFixed(2))
		return pkgerrors.New(pkgerrors.CodeInsufficientBalance, msg).WithDetails(InsufficientBalanceDetail{
			Code:      card.Code,
			Requested: amount,
			Balance:   card.CurrentValue,
		})
	}
	return nil
}
