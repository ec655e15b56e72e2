package variants

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/tillpoint/tillpoint-backend/pkg/db"
	"github.com/tillpoint/tillpoint-backend/pkg/db/models"
	pkgerrors "github.com/tillpoint/tillpoint-backend/pkg/errors"
)

// stockWriter seeds the stock ledger when a saved combination carries a
// tracked count.
type stockWriter interface {
	AdjustAbsolute(ctx context.Context, sku string, qty int) error
}

// ApplyResult reports the outcome of one combination (or one orphan
// deletion) within a save. Error is empty on success.
type ApplyResult struct {
	Signature string    `json:"signature"`
	SKU       string    `json:"sku,omitempty"`
	VariantID uuid.UUID `json:"variant_id,omitempty"`
	Action    string    `json:"action"`
	Error     string    `json:"error,omitempty"`
}

const (
	ActionCreated = "created"
	ActionUpdated = "updated"
	ActionDeleted = "deleted"
)

// SaveResult is the per-item outcome of a combination save.
type SaveResult struct {
	Results []ApplyResult `json:"results"`
}

// Failed reports whether any item in the batch failed to apply.
func (r *SaveResult) Failed() bool {
	for _, res := range r.Results {
		if res.Error != "" {
			return true
		}
	}
	return false
}

// Service owns the variant catalog: generation previews and the
// reconciling save that upserts matching variants and deletes orphans.
type Service interface {
	Preview(ctx context.Context, productID uuid.UUID, axes []Axis, defaults Defaults) ([]Combination, error)
	SaveCombinations(ctx context.Context, productID uuid.UUID, combos []Combination) (*SaveResult, error)
	ListByProduct(ctx context.Context, productID uuid.UUID) ([]models.ProductVariant, error)
}

type service struct {
	repo      Repository
	generator *Generator
	ledger    stockWriter
}

// NewService wires a variant catalog service. The stock ledger is optional;
// when present, tracked counts on saved combinations seed ledger rows.
func NewService(repo Repository, generator *Generator, ledger stockWriter) (Service, error) {
	if repo == nil {
		return nil, fmt.Errorf("variant repository required")
	}
	if generator == nil {
		return nil, fmt.Errorf("combination generator required")
	}
	return &service{repo: repo, generator: generator, ledger: ledger}, nil
}

// Preview generates the cartesian product for the axes and merges in any
// persisted variant whose signature matches, so manual SKU/price/stock
// overrides survive regeneration. Nothing is persisted.
func (s *service) Preview(ctx context.Context, productID uuid.UUID, axes []Axis, defaults Defaults) ([]Combination, error) {
	if productID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "product id is required")
	}

	combos, err := s.generator.Generate(axes, defaults)
	if err != nil {
		return nil, err
	}
	if len(combos) == 0 {
		return nil, nil
	}

	existing, err := s.repo.ListByProduct(ctx, productID)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load variants")
	}
	bySignature := indexBySignature(existing)

	for i := range combos {
		variant, ok := bySignature[combos[i].Signature]
		if !ok {
			continue
		}
		id := variant.ID
		combos[i].VariantID = &id
		combos[i].Price = variant.Price
		combos[i].StockCount = cloneStock(variant.StockCount)
		if variant.SKU != nil && *variant.SKU != "" {
			combos[i].SKU = *variant.SKU
		}
	}
	return combos, nil
}

// SaveCombinations reconciles the submitted combinations against the
// persisted variants of the product. The update/create/delete plan is
// computed in full before any write. Failures during the apply phase are
// reported per item so the operator sees exactly which combination failed
// without losing the ones already applied.
func (s *service) SaveCombinations(ctx context.Context, productID uuid.UUID, combos []Combination) (*SaveResult, error) {
	if productID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "product id is required")
	}
	for i := range combos {
		if len(combos[i].Attributes) == 0 {
			return nil, pkgerrors.New(pkgerrors.CodeValidation, "combination attributes are required")
		}
		combos[i].Signature = Signature(combos[i].Attributes)
	}
	if dup := firstDuplicateSignature(combos); dup != "" {
		return nil, pkgerrors.New(pkgerrors.CodeConflict, "duplicate variant signature in batch: "+dup)
	}

	existing, err := s.repo.ListByProduct(ctx, productID)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load variants")
	}
	bySignature := indexBySignature(existing)

	// Plan first, write after: update matches, create the rest, delete
	// whatever the batch no longer names.
	type update struct {
		combo   Combination
		variant models.ProductVariant
	}
	var creates []Combination
	var updates []update
	matched := make(map[string]struct{}, len(combos))
	for _, combo := range combos {
		matched[combo.Signature] = struct{}{}
		if variant, ok := bySignature[combo.Signature]; ok {
			updates = append(updates, update{combo: combo, variant: variant})
		} else {
			creates = append(creates, combo)
		}
	}
	var deletes []models.ProductVariant
	for _, variant := range existing {
		if _, ok := matched[variant.Signature]; !ok {
			deletes = append(deletes, variant)
		}
	}

	result := &SaveResult{Results: make([]ApplyResult, 0, len(combos)+len(deletes))}
	for _, upd := range updates {
		variant := upd.variant
		applyCombination(&variant, upd.combo)
		res := ApplyResult{
			Signature: upd.combo.Signature,
			SKU:       upd.combo.SKU,
			VariantID: variant.ID,
			Action:    ActionUpdated,
		}
		if err := s.repo.Update(ctx, &variant); err != nil {
			res.Error = applyErrorMessage(err)
		} else {
			res.Error = s.syncLedger(ctx, variant)
		}
		result.Results = append(result.Results, res)
	}
	for _, combo := range creates {
		variant := models.ProductVariant{ID: uuid.New(), ProductID: productID}
		applyCombination(&variant, combo)
		res := ApplyResult{
			Signature: combo.Signature,
			SKU:       combo.SKU,
			VariantID: variant.ID,
			Action:    ActionCreated,
		}
		if err := s.repo.Create(ctx, &variant); err != nil {
			res.Error = applyErrorMessage(err)
		} else {
			res.Error = s.syncLedger(ctx, variant)
		}
		result.Results = append(result.Results, res)
	}
	for _, variant := range deletes {
		res := ApplyResult{
			Signature: variant.Signature,
			VariantID: variant.ID,
			Action:    ActionDeleted,
		}
		if err := s.repo.Delete(ctx, variant.ID); err != nil {
			res.Error = applyErrorMessage(err)
		}
		result.Results = append(result.Results, res)
	}
	return result, nil
}

// ListByProduct returns the persisted variants of a product.
func (s *service) ListByProduct(ctx context.Context, productID uuid.UUID) ([]models.ProductVariant, error) {
	if productID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "product id is required")
	}
	variants, err := s.repo.ListByProduct(ctx, productID)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load variants")
	}
	return variants, nil
}

func (s *service) syncLedger(ctx context.Context, variant models.ProductVariant) string {
	if s.ledger == nil || variant.StockCount == nil {
		return ""
	}
	if err := s.ledger.AdjustAbsolute(ctx, variant.LedgerSKU(), *variant.StockCount); err != nil {
		return "stock ledger sync: " + err.Error()
	}
	return ""
}

// applyCombination overwrites the variant's SKU, price, stock, and
// attribute columns from the combination. The well-known color/size/flavor
// columns stay in sync with the attribute map.
func applyCombination(variant *models.ProductVariant, combo Combination) {
	if combo.SKU != "" {
		sku := combo.SKU
		variant.SKU = &sku
	}
	variant.Price = combo.Price
	variant.StockCount = cloneStock(combo.StockCount)
	variant.Attributes = combo.Attributes.Clone()
	variant.Signature = combo.Signature
	variant.Color = wellKnownAttr(combo.Attributes, "color")
	variant.Size = wellKnownAttr(combo.Attributes, "size")
	variant.Flavor = wellKnownAttr(combo.Attributes, "flavor")
}

func wellKnownAttr(attrs map[string]string, name string) *string {
	for key, value := range attrs {
		if strings.EqualFold(key, name) {
			v := value
			return &v
		}
	}
	return nil
}

func indexBySignature(variants []models.ProductVariant) map[string]models.ProductVariant {
	out := make(map[string]models.ProductVariant, len(variants))
	for _, v := range variants {
		out[v.Signature] = v
	}
	return out
}

func firstDuplicateSignature(combos []Combination) string {
	seen := make(map[string]struct{}, len(combos))
	for _, combo := range combos {
		if _, dup := seen[combo.Signature]; dup {
			return combo.Signature
		}
		seen[combo.Signature] = struct{}{}
	}
	return ""
}

func applyErrorMessage(err error) string {
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return "variant no longer exists"
	}
	if db.IsUniqueViolation(err, "") {
		return "duplicate variant signature"
	}
	return err.Error()
}
