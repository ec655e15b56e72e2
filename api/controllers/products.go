package controllers

import (
	"net/http"

	"github.com/google/uuid"

	"github.com/tillpoint/tillpoint-backend/api/responses"
	"github.com/tillpoint/tillpoint-backend/api/validators"
	"github.com/tillpoint/tillpoint-backend/internal/products"
	"github.com/tillpoint/tillpoint-backend/internal/variants"
	"github.com/tillpoint/tillpoint-backend/pkg/db/models"
	pkgerrors "github.com/tillpoint/tillpoint-backend/pkg/errors"
	"github.com/tillpoint/tillpoint-backend/pkg/logger"
	"github.com/tillpoint/tillpoint-backend/pkg/types"
)

// ListProducts serves the read-only catalog listing with optional
// category, has_variants, and search filters.
func ListProducts(svc products.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "product service unavailable"))
			return
		}

		limit, err := validators.ParseQueryInt(r, "limit", 0, 1, 500)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		hasVariants, err := validators.ParseQueryBool(r, "has_variants")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		filter := products.Filter{
			HasVariants: hasVariants,
			Search:      validators.SanitizeString(r.URL.Query().Get("search"), 120),
			Limit:       limit,
		}
		if category := validators.SanitizeString(r.URL.Query().Get("category"), 120); category != "" {
			filter.Category = &category
		}

		list, err := svc.List(r.Context(), filter)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		out := make([]productResponse, len(list))
		for i, product := range list {
			out[i] = newProductResponse(product)
		}
		responses.WriteSuccess(w, out)
	}
}

// GetProduct serves one catalog entry by id.
func GetProduct(svc products.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "product service unavailable"))
			return
		}

		id, err := validators.ParseUUIDParam(r, "id")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		product, err := svc.Get(r.Context(), id)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, newProductResponse(*product))
	}
}

// ListProductVariants serves a product's persisted variants.
func ListProductVariants(svc variants.Service, logg *logger.Logger) http.HandlerFunc {
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
		list, err := svc.ListByProduct(r.Context(), productID)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		out := make([]variantResponse, len(list))
		for i, variant := range list {
			out[i] = newVariantResponse(variant)
		}
		responses.WriteSuccess(w, out)
	}
}

type productResponse struct {
	ID          uuid.UUID  `json:"id"`
	Name        string     `json:"name"`
	SKU         *string    `json:"sku,omitempty"`
	Barcode     *string    `json:"barcode,omitempty"`
	Price       string     `json:"price"`
	Stock       *int       `json:"stock,omitempty"`
	Category    *string    `json:"category,omitempty"`
	ImageURL    *string    `json:"image_url,omitempty"`
	HasVariants bool       `json:"has_variants"`
}

func newProductResponse(product models.Product) productResponse {
	return productResponse{
		ID:          product.ID,
		Name:        product.Name,
		SKU:         product.SKU,
		Barcode:     product.Barcode,
		Price:       product.Price.StringFixed(2),
		Stock:       product.Stock,
		Category:    product.Category,
		ImageURL:    product.ImageURL,
		HasVariants: product.HasVariants,
	}
}

type variantResponse struct {
	ID         uuid.UUID          `json:"id"`
	ProductID  uuid.UUID          `json:"product_id"`
	SKU        *string            `json:"sku,omitempty"`
	Price      string             `json:"price"`
	StockCount *int               `json:"stock_count,omitempty"`
	Attributes types.AttributeMap `json:"attributes,omitempty"`
	Signature  string             `json:"signature"`
}

func newVariantResponse(variant models.ProductVariant) variantResponse {
	return variantResponse{
		ID:         variant.ID,
		ProductID:  variant.ProductID,
		SKU:        variant.SKU,
		Price:      variant.Price.StringFixed(2),
		StockCount: variant.StockCount,
		Attributes: variant.Attributes,
		Signature:  variant.Signature,
	}
}
