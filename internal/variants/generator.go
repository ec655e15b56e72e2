package variants

import (
	"sort"
	"strings"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/tillpoint/tillpoint-backend/pkg/config"
	pkgerrors "github.com/tillpoint/tillpoint-backend/pkg/errors"
	"github.com/tillpoint/tillpoint-backend/pkg/types"
)

// Axis is one operator-supplied variant attribute with its candidate
// values. Axis order and value order drive the generation order.
type Axis struct {
	Name   string   `json:"name"`
	Values []string `json:"values"`
}

// Combination is one cartesian-product tuple destined to become, or
// update, a persisted variant. VariantID carries the back-reference when
// an existing variant already matches the attribute signature.
type Combination struct {
	Attributes types.AttributeMap `json:"attributes"`
	Signature  string             `json:"signature"`
	SKU        string             `json:"sku"`
	Price      decimal.Decimal    `json:"price"`
	StockCount *int               `json:"stock_count,omitempty"`
	VariantID  *uuid.UUID         `json:"variant_id,omitempty"`
}

// Defaults seed the price and stock of freshly generated combinations.
type Defaults struct {
	Price      decimal.Decimal `json:"price"`
	StockCount *int            `json:"stock_count,omitempty"`
}

// Generator produces variant combinations with deterministically derived
// SKUs. Derivation is pure: the same axes and values always yield the
// same SKUs, so regeneration after an edit is stable for unchanged tuples.
type Generator struct {
	prefix    string
	sliceLen  int
	separator string
}

// NewGenerator builds a generator from the variant SKU settings.
func NewGenerator(cfg config.VariantsConfig) *Generator {
	g := &Generator{
		prefix:    cfg.SKUPrefix,
		sliceLen:  cfg.SKUSliceLen,
		separator: cfg.SKUSeparator,
	}
	if g.prefix == "" {
		g.prefix = "VAR"
	}
	if g.sliceLen <= 0 {
		g.sliceLen = 3
	}
	if g.separator == "" {
		g.separator = "-"
	}
	return g
}

// Generate walks the axes in the order supplied, and each axis's values in
// the order supplied, producing the full cartesian product. Zero axes, or
// any axis with no values, yields an empty set; no default combination is
// synthesized.
func (g *Generator) Generate(axes []Axis, defaults Defaults) ([]Combination, error) {
	if err := validateAxes(axes); err != nil {
		return nil, err
	}
	if len(axes) == 0 {
		return nil, nil
	}
	total := 1
	for _, axis := range axes {
		if len(axis.Values) == 0 {
			return nil, nil
		}
		total *= len(axis.Values)
	}

	combos := make([]Combination, 0, total)
	indices := make([]int, len(axes))
	for {
		attrs := make(types.AttributeMap, len(axes))
		values := make([]string, len(axes))
		for i, axis := range axes {
			attrs[axis.Name] = axis.Values[indices[i]]
			values[i] = axis.Values[indices[i]]
		}
		combos = append(combos, Combination{
			Attributes: attrs,
			Signature:  Signature(attrs),
			SKU:        g.DeriveSKU(values),
			Price:      defaults.Price,
			StockCount: cloneStock(defaults.StockCount),
		})

		// Odometer advance: rightmost axis spins fastest.
		pos := len(axes) - 1
		for pos >= 0 {
			indices[pos]++
			if indices[pos] < len(axes[pos].Values) {
				break
			}
			indices[pos] = 0
			pos--
		}
		if pos < 0 {
			return combos, nil
		}
	}
}

// DeriveSKU joins the configured prefix with a fixed-length uppercased
// slice of each value, in axis order.
func (g *Generator) DeriveSKU(values []string) string {
	parts := make([]string, 0, len(values)+1)
	parts = append(parts, g.prefix)
	for _, value := range values {
		runes := []rune(strings.TrimSpace(value))
		if len(runes) > g.sliceLen {
			runes = runes[:g.sliceLen]
		}
		parts = append(parts, strings.ToUpper(string(runes)))
	}
	return strings.Join(parts, g.separator)
}

// Signature canonicalizes an attribute map as sorted axis=value pairs
// joined with "|". Two attribute sets are the same variant exactly when
// their signatures are equal.
func Signature(attrs types.AttributeMap) string {
	keys := make([]string, 0, len(attrs))
	for k := range attrs {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	pairs := make([]string, len(keys))
	for i, k := range keys {
		pairs[i] = k + "=" + attrs[k]
	}
	return strings.Join(pairs, "|")
}

func validateAxes(axes []Axis) error {
	seen := make(map[string]struct{}, len(axes))
	for _, axis := range axes {
		if strings.TrimSpace(axis.Name) == "" {
			return pkgerrors.New(pkgerrors.CodeValidation, "axis name is required")
		}
		if _, dup := seen[axis.Name]; dup {
			return pkgerrors.New(pkgerrors.CodeValidation, "duplicate axis name: "+axis.Name)
		}
		seen[axis.Name] = struct{}{}

		values := make(map[string]struct{}, len(axis.Values))
		for _, value := range axis.Values {
			if _, dup := values[value]; dup {
				return pkgerrors.New(pkgerrors.CodeValidation, "duplicate value "+value+" on axis "+axis.Name)
			}
			values[value] = struct{}{}
		}
	}
	return nil
}

func cloneStock(stock *int) *int {
	if stock == nil {
		return nil
	}
	v := *stock
	return &v
}
