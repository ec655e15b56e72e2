package controllers

import (
	"net/http"
	"time"

	"github.com/google/uuid"

	"github.com/tillpoint/tillpoint-backend/api/responses"
	"github.com/tillpoint/tillpoint-backend/api/validators"
	"github.com/tillpoint/tillpoint-backend/internal/cart"
	checkoutsvc "github.com/tillpoint/tillpoint-backend/internal/checkout"
	"github.com/tillpoint/tillpoint-backend/internal/products"
	"github.com/tillpoint/tillpoint-backend/pkg/db/models"
	"github.com/tillpoint/tillpoint-backend/pkg/enums"
	pkgerrors "github.com/tillpoint/tillpoint-backend/pkg/errors"
	"github.com/tillpoint/tillpoint-backend/pkg/logger"
)

// Checkout is the single commit-cart entry point. The submitted line
// payloads are rebuilt into a server-side cart against the current
// catalog, then committed; the ledger enforces stock atomically inside
// the commit, so no advisory reader is attached here.
func Checkout(svc checkoutsvc.Service, catalog products.Service, rules cart.TaxRules, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil || catalog == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "checkout service unavailable"))
			return
		}

		var payload checkoutRequest
		if err := validators.DecodeJSONBody(r, &payload); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		payment, err := enums.ParsePaymentMethod(payload.PaymentMethod)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeValidation, err.Error()))
			return
		}

		// Repeated (product, variant) lines fold into one, summing
		// quantities, so a later duplicate cannot shrink an earlier one.
		lines := make([]checkoutLine, 0, len(payload.Lines))
		index := make(map[cart.Key]int, len(payload.Lines))
		for _, line := range payload.Lines {
			key := cart.Key{ProductID: line.ProductID}
			if line.VariantID != nil {
				key.VariantID = *line.VariantID
			}
			if pos, ok := index[key]; ok {
				lines[pos].Quantity += line.Quantity
				continue
			}
			index[key] = len(lines)
			lines = append(lines, line)
		}

		c := cart.New(nil)
		c.SetCustomer(payload.CustomerID)
		for _, line := range lines {
			product, err := catalog.Get(r.Context(), line.ProductID)
			if err != nil {
				responses.WriteError(r.Context(), logg, w, err)
				return
			}
			var variant *models.ProductVariant
			if line.VariantID != nil {
				variant, err = catalog.GetVariant(r.Context(), *line.VariantID)
				if err != nil {
					responses.WriteError(r.Context(), logg, w, err)
					return
				}
			}
			if err := c.Add(r.Context(), product, variant); err != nil {
				responses.WriteError(r.Context(), logg, w, err)
				return
			}
			key := cart.Key{ProductID: product.ID}
			if variant != nil {
				key.VariantID = variant.ID
			}
			if err := c.SetQuantity(r.Context(), key, line.Quantity); err != nil {
				responses.WriteError(r.Context(), logg, w, err)
				return
			}
		}

		transaction, err := svc.Commit(r.Context(), c, payload.CustomerID, payment, rules)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		responses.WriteSuccessStatus(w, http.StatusCreated, newTransactionResponse(transaction))
	}
}

type checkoutRequest struct {
	CustomerID    *uuid.UUID     `json:"customer_id,omitempty"`
	PaymentMethod string         `json:"payment_method" validate:"required"`
	Lines         []checkoutLine `json:"lines" validate:"required,min=1,dive"`
}

type checkoutLine struct {
	ProductID uuid.UUID  `json:"product_id" validate:"required"`
	VariantID *uuid.UUID `json:"variant_id,omitempty"`
	Quantity  int        `json:"quantity" validate:"required,min=1"`
}

type transactionResponse struct {
	ID            uuid.UUID                 `json:"id"`
	CustomerID    *uuid.UUID                `json:"customer_id,omitempty"`
	Subtotal      string                    `json:"subtotal"`
	Tax           string                    `json:"tax"`
	Total         string                    `json:"total"`
	Status        string                    `json:"status"`
	PaymentMethod *string                   `json:"payment_method,omitempty"`
	RefundAmount  *string                   `json:"refund_amount,omitempty"`
	RefundDate    *time.Time                `json:"refund_date,omitempty"`
	CreatedAt     time.Time                 `json:"created_at"`
	CompletedAt   *time.Time                `json:"completed_at,omitempty"`
	Items         []transactionItemResponse `json:"items"`
}

type transactionItemResponse struct {
	ProductID uuid.UUID  `json:"product_id"`
	VariantID *uuid.UUID `json:"variant_id,omitempty"`
	SKU       string     `json:"sku"`
	Name      string     `json:"name"`
	Quantity  int        `json:"quantity"`
	UnitPrice string     `json:"unit_price"`
	LineTotal string     `json:"line_total"`
}

func newTransactionResponse(transaction *models.Transaction) transactionResponse {
	out := transactionResponse{
		ID:          transaction.ID,
		CustomerID:  transaction.CustomerID,
		Subtotal:    transaction.Subtotal.StringFixed(2),
		Tax:         transaction.Tax.StringFixed(2),
		Total:       transaction.Total.StringFixed(2),
		Status:      transaction.Status.String(),
		RefundDate:  transaction.RefundDate,
		CreatedAt:   transaction.CreatedAt,
		CompletedAt: transaction.CompletedAt,
	}
	if transaction.PaymentMethod != nil {
		method := transaction.PaymentMethod.String()
		out.PaymentMethod = &method
	}
	if transaction.RefundAmount != nil {
		amount := transaction.RefundAmount.StringFixed(2)
		out.RefundAmount = &amount
	}
	out.Items = make([]transactionItemResponse, len(transaction.Items))
	for i, item := range transaction.Items {
		out.Items[i] = transactionItemResponse{
			ProductID: item.ProductID,
			VariantID: item.VariantID,
			SKU:       item.SKU,
			Name:      item.Name,
			Quantity:  item.Quantity,
			UnitPrice: item.UnitPrice.StringFixed(2),
			LineTotal: item.LineTotal.StringFixed(2),
		}
	}
	return out
}
