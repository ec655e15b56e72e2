package stock

import (
	"context"
	"errors"
	"fmt"

	"gorm.io/gorm"

	pkgerrors "github.com/tillpoint/tillpoint-backend/pkg/errors"
)

// Availability is a point-in-time view of one SKU's ledger entry. Tracked
// is false when the SKU has no ledger row, meaning no stock ceiling applies.
type Availability struct {
	Quantity int  `json:"quantity"`
	Tracked  bool `json:"tracked"`
}

// InsufficientStockDetail names the deficient SKU and the shortfall so
// callers can present a precise message.
type InsufficientStockDetail struct {
	SKU       string `json:"sku"`
	Requested int    `json:"requested"`
	Available int    `json:"available"`
}

// ErrInsufficientStock builds the typed error returned when a reservation
// cannot be satisfied.
func ErrInsufficientStock(sku string, requested, available int) *pkgerrors.Error {
	msg := fmt.Sprintf("insufficient stock for %s: requested %d, only %d available", sku, requested, available)
	return pkgerrors.New(pkgerrors.CodeInsufficientStock, msg).WithDetails(InsufficientStockDetail{
		SKU:       sku,
		Requested: requested,
		Available: available,
	})
}

// Service is the authoritative stock ledger. Reserve and Restock are the
// only operations used by the sale path; AdjustAbsolute is administrative.
type Service interface {
	GetAvailable(ctx context.Context, sku string) (Availability, error)
	Reserve(ctx context.Context, sku string, qty int) error
	Restock(ctx context.Context, sku string, delta int) error
	AdjustAbsolute(ctx context.Context, sku string, qty int) error
}

type service struct {
	repo      Repository
	snapshots *SnapshotCache
}

// NewService wires a stock ledger service. The snapshot cache is optional
// and only serves advisory reads.
func NewService(repo Repository, snapshots *SnapshotCache) (Service, error) {
	if repo == nil {
		return nil, fmt.Errorf("stock repository required")
	}
	return &service{repo: repo, snapshots: snapshots}, nil
}

// GetAvailable returns the current ledger snapshot for a SKU. Reads go
// through the advisory cache when one is configured; cache failures fall
// through to the ledger read.
func (s *service) GetAvailable(ctx context.Context, sku string) (Availability, error) {
	if sku == "" {
		return Availability{}, pkgerrors.New(pkgerrors.CodeValidation, "sku is required")
	}

	if av, ok := s.snapshots.Get(ctx, sku); ok {
		return av, nil
	}

	av, err := s.readLedger(ctx, sku)
	if err != nil {
		return Availability{}, err
	}
	s.snapshots.Put(ctx, sku, av)
	return av, nil
}

// Reserve atomically verifies available >= qty and decrements in one
// indivisible step. Untracked SKUs always succeed.
func (s *service) Reserve(ctx context.Context, sku string, qty int) error {
	if sku == "" {
		return pkgerrors.New(pkgerrors.CodeValidation, "sku is required")
	}
	if qty <= 0 {
		return pkgerrors.New(pkgerrors.CodeValidation, "quantity must be positive")
	}

	decremented, err := s.repo.DecrementIfAvailable(ctx, sku, qty)
	if err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "reserve stock")
	}
	if decremented {
		s.snapshots.Invalidate(ctx, sku)
		return nil
	}

	item, err := s.repo.Find(ctx, sku)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			// No ledger row: untracked SKU, no ceiling to enforce.
			return nil
		}
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load inventory")
	}
	return ErrInsufficientStock(sku, qty, item.AvailableQty)
}

// Restock atomically increases available quantity (refunds, manual
// adjustment). Restocking an untracked SKU is a no-op.
func (s *service) Restock(ctx context.Context, sku string, delta int) error {
	if sku == "" {
		return pkgerrors.New(pkgerrors.CodeValidation, "sku is required")
	}
	if delta < 0 {
		return pkgerrors.New(pkgerrors.CodeValidation, "restock delta must be non-negative")
	}
	if delta == 0 {
		return nil
	}

	if _, err := s.repo.Increment(ctx, sku, delta); err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "restock")
	}
	s.snapshots.Invalidate(ctx, sku)
	return nil
}

// AdjustAbsolute overwrites the available quantity (manual inventory count
// correction). Not used by the sale path.
func (s *service) AdjustAbsolute(ctx context.Context, sku string, qty int) error {
	if sku == "" {
		return pkgerrors.New(pkgerrors.CodeValidation, "sku is required")
	}
	if qty < 0 {
		return pkgerrors.New(pkgerrors.CodeValidation, "quantity must be non-negative")
	}

	if err := s.repo.Upsert(ctx, sku, qty); err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "adjust inventory")
	}
	s.snapshots.Invalidate(ctx, sku)
	return nil
}

func (s *service) readLedger(ctx context.Context, sku string) (Availability, error) {
	item, err := s.repo.Find(ctx, sku)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return Availability{Tracked: false}, nil
		}
		return Availability{}, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load inventory")
	}
	return Availability{Quantity: item.AvailableQty, Tracked: true}, nil
}
