package controllers

import (
	"net/http"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/tillpoint/tillpoint-backend/api/responses"
	"github.com/tillpoint/tillpoint-backend/api/validators"
	"github.com/tillpoint/tillpoint-backend/internal/variants"
	pkgerrors "github.com/tillpoint/tillpoint-backend/pkg/errors"
	"github.com/tillpoint/tillpoint-backend/pkg/logger"
	"github.com/tillpoint/tillpoint-backend/pkg/types"
)

// GenerateCombinations returns the cartesian-product preview for the
// submitted axes without persisting anything. Existing variants with
// matching signatures contribute their overrides to the preview.
func GenerateCombinations(svc variants.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "variant service unavailable"))
			return
		}

		productID, err := validators.ParseUUIDParam(r, "id")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		var payload generateRequest
		if err := validators.DecodeJSONBody(r, &payload); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		defaults, err := payload.Defaults.toDomain()
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		combos, err := svc.Preview(r.Context(), productID, payload.Axes, defaults)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, newCombinationResponses(combos))
	}
}

// SaveCombinations reconciles the submitted combinations against the
// product's persisted variants and reports per-item outcomes.
func SaveCombinations(svc variants.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "variant service unavailable"))
			return
		}

		productID, err := validators.ParseUUIDParam(r, "id")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		var payload saveCombinationsRequest
		if err := validators.DecodeJSONBody(r, &payload); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		combos := make([]variants.Combination, len(payload.Combinations))
		for i, combo := range payload.Combinations {
			domain, err := combo.toDomain()
			if err != nil {
				responses.WriteError(r.Context(), logg, w, err)
				return
			}
			combos[i] = domain
		}

		result, err := svc.SaveCombinations(r.Context(), productID, combos)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, result)
	}
}

type generateRequest struct {
	Axes     []variants.Axis `json:"axes" validate:"required,min=1,dive"`
	Defaults defaultsPayload `json:"defaults"`
}

type defaultsPayload struct {
	Price      string `json:"price,omitempty"`
	StockCount *int   `json:"stock_count,omitempty"`
}

func (p defaultsPayload) toDomain() (variants.Defaults, error) {
	defaults := variants.Defaults{StockCount: p.StockCount}
	if p.Price != "" {
		price, err := decimal.NewFromString(p.Price)
		if err != nil {
			return variants.Defaults{}, pkgerrors.New(pkgerrors.CodeValidation, "default price must be a decimal string")
		}
		defaults.Price = price
	}
	return defaults, nil
}

type saveCombinationsRequest struct {
	Combinations []combinationPayload `json:"combinations" validate:"required,min=1,dive"`
}

type combinationPayload struct {
	Attributes types.AttributeMap `json:"attributes" validate:"required,min=1"`
	SKU        string             `json:"sku,omitempty"`
	Price      string             `json:"price" validate:"required"`
	StockCount *int               `json:"stock_count,omitempty"`
}

func (p combinationPayload) toDomain() (variants.Combination, error) {
	price, err := decimal.NewFromString(p.Price)
	if err != nil {
		return variants.Combination{}, pkgerrors.New(pkgerrors.CodeValidation, "combination price must be a decimal string")
	}
	return variants.Combination{
		Attributes: p.Attributes,
		SKU:        p.SKU,
		Price:      price,
		StockCount: p.StockCount,
	}, nil
}

type combinationResponse struct {
	Attributes types.AttributeMap `json:"attributes"`
	Signature  string             `json:"signature"`
	SKU        string             `json:"sku"`
	Price      string             `json:"price"`
	StockCount *int               `json:"stock_count,omitempty"`
	VariantID  *uuid.UUID         `json:"variant_id,omitempty"`
}

func newCombinationResponses(combos []variants.Combination) []combinationResponse {
	out := make([]combinationResponse, len(combos))
	for i, combo := range combos {
		out[i] = combinationResponse{
			Attributes: combo.Attributes,
			Signature:  combo.Signature,
			SKU:        combo.SKU,
			Price:      combo.Price.StringFixed(2),
			StockCount: combo.StockCount,
			VariantID:  combo.VariantID,
		}
	}
	return out
}
