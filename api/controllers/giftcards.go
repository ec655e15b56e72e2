package controllers

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/tillpoint/tillpoint-backend/api/responses"
	"github.com/tillpoint/tillpoint-backend/api/validators"
	"github.com/tillpoint/tillpoint-backend/internal/giftcards"
	"github.com/tillpoint/tillpoint-backend/pkg/db/models"
	pkgerrors "github.com/tillpoint/tillpoint-backend/pkg/errors"
	"github.com/tillpoint/tillpoint-backend/pkg/logger"
)

// IssueGiftCard creates a new stored-value card.
func IssueGiftCard(svc giftcards.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "gift card service unavailable"))
			return
		}

		var payload issueGiftCardRequest
		if err := validators.DecodeJSONBody(r, &payload); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		value, err := decimal.NewFromString(payload.Value)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeValidation, "value must be a decimal string"))
			return
		}

		card, err := svc.Issue(r.Context(), payload.Code, value, payload.CustomerID, payload.ExpiresAt)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccessStatus(w, http.StatusCreated, newGiftCardResponse(card))
	}
}

// GetGiftCard serves a card's balance by its code.
func GetGiftCard(svc giftcards.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "gift card service unavailable"))
			return
		}

		code := validators.SanitizeString(chi.URLParam(r, "code"), 64)
		card, err := svc.Find(r.Context(), code)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, newGiftCardResponse(card))
	}
}

// RedeemGiftCard is the single redemption entry point.
func RedeemGiftCard(svc giftcards.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "gift card service unavailable"))
			return
		}

		var payload redeemRequest
		if err := validators.DecodeJSONBody(r, &payload); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		amount, err := decimal.NewFromString(payload.Amount)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeValidation, "amount must be a decimal string"))
			return
		}

		balance, err := svc.Redeem(r.Context(), payload.Code, amount)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, redeemResponse{
			Code:       payload.Code,
			Redeemed:   amount.StringFixed(2),
			NewBalance: balance.StringFixed(2),
		})
	}
}

// DeactivateGiftCard permanently disables a card. The remaining balance
// is forfeited; callers are expected to confirm with the operator first.
func DeactivateGiftCard(svc giftcards.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "gift card service unavailable"))
			return
		}

		id, err := validators.ParseUUIDParam(r, "id")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		if err := svc.Deactivate(r.Context(), id); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, map[string]string{"status": "deactivated"})
	}
}

type issueGiftCardRequest struct {
	Code       string     `json:"code" validate:"required,min=4,max=64"`
	Value      string     `json:"value" validate:"required"`
	CustomerID *uuid.UUID `json:"customer_id,omitempty"`
	ExpiresAt  *time.Time `json:"expires_at,omitempty"`
}

type redeemRequest struct {
	Code   string `json:"code" validate:"required"`
	Amount string `json:"amount" validate:"required"`
}

type redeemResponse struct {
	Code       string `json:"code"`
	Redeemed   string `json:"redeemed"`
	NewBalance string `json:"new_balance"`
}

type giftCardResponse struct {
	ID           uuid.UUID  `json:"id"`
	Code         string     `json:"code"`
	InitialValue string     `json:"initial_value"`
	CurrentValue string     `json:"current_value"`
	CustomerID   *uuid.UUID `json:"customer_id,omitempty"`
	IsActive     bool       `json:"is_active"`
	ExpiresAt    *time.Time `json:"expires_at,omitempty"`
	RedeemedAt   *time.Time `json:"redeemed_at,omitempty"`
}

func newGiftCardResponse(card *models.GiftCard) giftCardResponse {
	return giftCardResponse{
		ID:           card.ID,
		Code:         card.Code,
		InitialValue: card.InitialValue.StringFixed(2),
		CurrentValue: card.CurrentValue.StringFixed(2),
		CustomerID:   card.CustomerID,
		IsActive:     card.IsActive,
		ExpiresAt:    card.ExpiresAt,
		RedeemedAt:   card.RedeemedAt,
	}
}
