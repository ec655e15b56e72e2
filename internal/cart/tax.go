package cart

import (
	"github.com/shopspring/decimal"

	"github.com/tillpoint/tillpoint-backend/pkg/config"
)

// TaxRules carries the rates applied to a cart. Rules are passed in
// explicitly by the caller; nothing here reads ambient state.
type TaxRules struct {
	DefaultRate decimal.Decimal
	ByCategory  map[string]decimal.Decimal
}

// RulesFromConfig builds tax rules from the parsed tax settings.
func RulesFromConfig(cfg config.TaxConfig) (TaxRules, error) {
	defaultRate, err := cfg.Default()
	if err != nil {
		return TaxRules{}, err
	}
	byCategory, err := cfg.Rates()
	if err != nil {
		return TaxRules{}, err
	}
	return TaxRules{DefaultRate: defaultRate, ByCategory: byCategory}, nil
}

// RateFor returns the category's rate when a rule matches, else the
// default rate.
func (r TaxRules) RateFor(category *string) decimal.Decimal {
	if category != nil {
		if rate, ok := r.ByCategory[*category]; ok {
			return rate
		}
	}
	return r.DefaultRate
}
