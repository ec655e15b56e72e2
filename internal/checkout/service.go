package checkout

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/multierr"
	"gorm.io/gorm"

	"github.com/tillpoint/tillpoint-backend/internal/cart"
	"github.com/tillpoint/tillpoint-backend/internal/transactions"
	"github.com/tillpoint/tillpoint-backend/pkg/db/models"
	"github.com/tillpoint/tillpoint-backend/pkg/enums"
	pkgerrors "github.com/tillpoint/tillpoint-backend/pkg/errors"
	"github.com/tillpoint/tillpoint-backend/pkg/logger"
	"github.com/tillpoint/tillpoint-backend/pkg/metrics"
)

// stockLedger is the slice of the stock service the committer drives:
// atomic reservation and the compensating restock.
type stockLedger interface {
	Reserve(ctx context.Context, sku string, qty int) error
	Restock(ctx context.Context, sku string, delta int) error
}

// txRunner opens the database transaction the commit persists inside.
type txRunner interface {
	WithTx(ctx context.Context, fn func(tx *gorm.DB) error) error
}

// Service turns a finalized cart into an immutable transaction while
// keeping the stock ledger consistent. The cart's lifecycle stays with
// the caller; a successful commit does not clear it.
type Service interface {
	Commit(ctx context.Context, c *cart.Cart, customerID *uuid.UUID, payment enums.PaymentMethod, rules cart.TaxRules) (*models.Transaction, error)
}

type service struct {
	tx      txRunner
	stocks  stockLedger
	txRepo  transactions.Repository
	logs    *logger.Logger
	metrics *metrics.CheckoutMetrics
}

// NewService wires the transaction committer. Logger and metrics are
// optional.
func NewService(tx txRunner, stocks stockLedger, txRepo transactions.Repository, logs *logger.Logger, m *metrics.CheckoutMetrics) (Service, error) {
	if tx == nil {
		return nil, fmt.Errorf("tx runner required")
	}
	if stocks == nil {
		return nil, fmt.Errorf("stock ledger required")
	}
	if txRepo == nil {
		return nil, fmt.Errorf("transaction repository required")
	}
	return &service{tx: tx, stocks: stocks, txRepo: txRepo, logs: logs, metrics: m}, nil
}

// reservation is one successfully applied ledger decrement within a
// commit attempt, remembered so it can be compensated on later failure.
type reservation struct {
	sku string
	qty int
}

// Commit reserves stock for every distinct SKU in the cart, then persists
// the frozen transaction. Any failure after a partial reservation restores
// exactly the reservations that succeeded in this attempt before the
// error is surfaced, so the ledger never drifts from reality.
func (s *service) Commit(ctx context.Context, c *cart.Cart, customerID *uuid.UUID, payment enums.PaymentMethod, rules cart.TaxRules) (*models.Transaction, error) {
	started := time.Now()
	if c == nil || c.Len() == 0 {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "cart is empty")
	}
	if !payment.IsValid() {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "invalid payment method")
	}

	lines := c.Lines()
	reserved := make([]reservation, 0, len(lines))
	for _, want := range aggregateBySKU(lines) {
		if err := s.stocks.Reserve(ctx, want.sku, want.qty); err != nil {
			s.metrics.IncStockRejection(want.sku)
			s.metrics.IncCommit(payment.String(), "insufficient_stock")
			if compErr := s.compensate(ctx, reserved); compErr != nil {
				return nil, compErr
			}
			return nil, err
		}
		reserved = append(reserved, reservation{sku: want.sku, qty: want.qty})
	}

	// The transaction row and its items land in one database transaction;
	// a partial insert never survives.
	transaction := buildTransaction(c, lines, customerID, payment, rules)
	err := s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		return s.txRepo.WithTx(tx).Create(ctx, transaction)
	})
	if err != nil {
		s.metrics.IncCommit(payment.String(), "persistence_failure")
		if compErr := s.compensate(ctx, reserved); compErr != nil {
			return nil, compErr
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "persist transaction")
	}

	if s.logs != nil {
		s.logs.Info(s.logs.WithTransactionID(ctx, transaction.ID.String()), "transaction committed")
	}
	s.metrics.IncCommit(payment.String(), "committed")
	s.metrics.ObserveCommit(payment.String(), time.Since(started))
	return transaction, nil
}

// compensate restores the reservations that succeeded in this attempt.
// A compensation that cannot be confirmed is fatal and operator-visible;
// retrying it silently could decrement stock twice.
func (s *service) compensate(ctx context.Context, reserved []reservation) error {
	var failures error
	for _, res := range reserved {
		if err := s.stocks.Restock(ctx, res.sku, res.qty); err != nil {
			failures = multierr.Append(failures, fmt.Errorf("restock %s by %d: %w", res.sku, res.qty, err))
		}
	}
	if failures == nil {
		return nil
	}
	if s.logs != nil {
		s.logs.Error(ctx, "checkout compensation failed, ledger may be inconsistent", failures)
	}
	return pkgerrors.Wrap(pkgerrors.CodeInternal, failures, "compensating restock failed")
}

type skuWant struct {
	sku string
	qty int
}

// aggregateBySKU folds the cart lines into one reservation per distinct
// SKU, in first-seen order.
func aggregateBySKU(lines []cart.Line) []skuWant {
	index := make(map[string]int, len(lines))
	wants := make([]skuWant, 0, len(lines))
	for _, line := range lines {
		if pos, ok := index[line.SKU]; ok {
			wants[pos].qty += line.Quantity
			continue
		}
		index[line.SKU] = len(wants)
		wants = append(wants, skuWant{sku: line.SKU, qty: line.Quantity})
	}
	return wants
}

func buildTransaction(c *cart.Cart, lines []cart.Line, customerID *uuid.UUID, payment enums.PaymentMethod, rules cart.TaxRules) *models.Transaction {
	now := time.Now().UTC()
	transaction := &models.Transaction{
		ID:            uuid.New(),
		CustomerID:    customerID,
		Subtotal:      c.Subtotal(),
		Tax:           c.Tax(rules),
		Total:         c.Total(rules),
		Status:        enums.TransactionStatusCompleted,
		PaymentMethod: &payment,
		CompletedAt:   &now,
	}
	if payment.IsDeferred() {
		transaction.Status = enums.TransactionStatusOpen
		transaction.CompletedAt = nil
	}

	transaction.Items = make([]models.TransactionItem, len(lines))
	for i, line := range lines {
		var variantID *uuid.UUID
		if line.Key.VariantID != uuid.Nil {
			v := line.Key.VariantID
			variantID = &v
		}
		transaction.Items[i] = models.TransactionItem{
			ID:            uuid.New(),
			TransactionID: transaction.ID,
			ProductID:     line.Key.ProductID,
			VariantID:     variantID,
			SKU:           line.SKU,
			Name:          line.Name,
			Category:      line.Category,
			ImageURL:      line.ImageURL,
			Quantity:      line.Quantity,
			UnitPrice:     line.UnitPrice,
			LineTotal:     line.Subtotal(),
			Position:      i,
		}
	}
	return transaction
}
