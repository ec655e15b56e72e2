package transactions

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	"github.com/tillpoint/tillpoint-backend/pkg/db/models"
	"github.com/tillpoint/tillpoint-backend/pkg/enums"
	pkgerrors "github.com/tillpoint/tillpoint-backend/pkg/errors"
)

const defaultListLimit = 50

// Service exposes the read and lifecycle operations on committed
// transactions. Creation happens through checkout, not here.
type Service interface {
	Get(ctx context.Context, id uuid.UUID) (*models.Transaction, error)
	List(ctx context.Context, limit int, status *enums.TransactionStatus) ([]models.Transaction, error)
	Refund(ctx context.Context, id uuid.UUID, amount decimal.Decimal) (*models.Transaction, error)
	Settle(ctx context.Context, id uuid.UUID, payment enums.PaymentMethod) (*models.Transaction, error)
}

type service struct {
	repo Repository
}

// NewService wires a transaction service.
func NewService(repo Repository) (Service, error) {
	if repo == nil {
		return nil, fmt.Errorf("transaction repository required")
	}
	return &service{repo: repo}, nil
}

func (s *service) Get(ctx context.Context, id uuid.UUID) (*models.Transaction, error) {
	if id == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "transaction id is required")
	}
	return s.load(ctx, id)
}

// List returns the most recent transactions, optionally narrowed to one
// lifecycle status (open tabs, completed sales, refunds).
func (s *service) List(ctx context.Context, limit int, status *enums.TransactionStatus) ([]models.Transaction, error) {
	if limit <= 0 || limit > 500 {
		limit = defaultListLimit
	}
	if status != nil && !status.IsValid() {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "unknown transaction status")
	}
	transactions, err := s.repo.List(ctx, limit, status)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "list transactions")
	}
	return transactions, nil
}

// Refund records a financial reversal on a completed transaction. The
// amount must be positive and no more than the transaction's total. Stock
// is not restored; a refund is a financial event, not an inventory event.
func (s *service) Refund(ctx context.Context, id uuid.UUID, amount decimal.Decimal) (*models.Transaction, error) {
	if id == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "transaction id is required")
	}
	if amount.LessThanOrEqual(decimal.Zero) {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "refund amount must be positive")
	}

	transaction, err := s.load(ctx, id)
	if err != nil {
		return nil, err
	}
	if amount.GreaterThan(transaction.Total) {
		msg := fmt.Sprintf("refund amount %s exceeds transaction total %s",
			amount.StringFixed(2), transaction.Total.StringFixed(2))
		return nil, pkgerrors.New(pkgerrors.CodeValidation, msg)
	}
	if !transaction.Status.CanTransitionTo(enums.TransactionStatusRefunded) {
		return nil, s.transitionError(transaction.Status, enums.TransactionStatusRefunded)
	}

	changed, err := s.repo.MarkRefunded(ctx, id, amount, time.Now().UTC())
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "refund transaction")
	}
	if !changed {
		// Raced with another lifecycle change since the read.
		transaction, err = s.load(ctx, id)
		if err != nil {
			return nil, err
		}
		return nil, s.transitionError(transaction.Status, enums.TransactionStatusRefunded)
	}
	return s.load(ctx, id)
}

// Settle completes an open (tab) transaction with the supplied tender.
func (s *service) Settle(ctx context.Context, id uuid.UUID, payment enums.PaymentMethod) (*models.Transaction, error) {
	if id == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "transaction id is required")
	}
	if !payment.IsValid() {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "invalid payment method")
	}
	if payment.IsDeferred() {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "a tab cannot be settled onto a tab")
	}

	transaction, err := s.load(ctx, id)
	if err != nil {
		return nil, err
	}
	if !transaction.Status.CanTransitionTo(enums.TransactionStatusCompleted) {
		return nil, s.transitionError(transaction.Status, enums.TransactionStatusCompleted)
	}

	changed, err := s.repo.MarkCompleted(ctx, id, payment, time.Now().UTC())
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "settle transaction")
	}
	if !changed {
		transaction, err = s.load(ctx, id)
		if err != nil {
			return nil, err
		}
		return nil, s.transitionError(transaction.Status, enums.TransactionStatusCompleted)
	}
	return s.load(ctx, id)
}

func (s *service) load(ctx context.Context, id uuid.UUID) (*models.Transaction, error) {
	transaction, err := s.repo.FindByID(ctx, id)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, pkgerrors.New(pkgerrors.CodeNotFound, "transaction not found")
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load transaction")
	}
	return transaction, nil
}

func (s *service) transitionError(from, to enums.TransactionStatus) *pkgerrors.Error {
	msg := fmt.Sprintf("transaction cannot move from %s to %s", from, to)
	return pkgerrors.New(pkgerrors.CodeStateConflict, msg)
}
