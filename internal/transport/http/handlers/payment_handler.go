package handlers

import (
	"context"
	"errors"
	"net/http"
	"strconv"

	authsvc "github.com/olegbarsky/digistore/internal/services/auth"
	checkoutsvc "github.com/olegbarsky/digistore/internal/services/checkout"
	purchasesvc "github.com/olegbarsky/digistore/internal/services/purchases"
	"github.com/olegbarsky/digistore/internal/transport/http/dto"
	httperrors "github.com/olegbarsky/digistore/internal/transport/http/errors"
)

type VerifyLimiter interface {
	AllowVerify(ctx context.Context, userID int64) (int64, bool, error)
}

// PaymentHandler owns the checkout and verification surface: quoting a
// payment for a project and settling it into a completed purchase.
type PaymentHandler struct {
	checkout  *checkoutsvc.Service
	purchases *purchasesvc.Service
	limiter   VerifyLimiter
}

func NewPaymentHandler(checkout *checkoutsvc.Service, purchases *purchasesvc.Service, limiter VerifyLimiter) *PaymentHandler {
	return &PaymentHandler{
		checkout:  checkout,
		purchases: purchases,
		limiter:   limiter,
	}
}

func (h *PaymentHandler) Checkout(w http.ResponseWriter, r *http.Request) {
	_, ok := authsvc.IdentityFromContext(r.Context())
	if !ok {
		writeUnauthorized(w, "UNAUTHORIZED", "authentication required")
		return
	}
	if h.checkout == nil {
		writeInternal(w, "CHECKOUT_SERVICE_UNAVAILABLE", "checkout service is unavailable")
		return
	}

	projectID, ok := idParam(r, "projectId")
	if !ok {
		writeBadRequest(w, "VALIDATION_ERROR", "invalid project id")
		return
	}

	quote, err := h.checkout.NewQuote(r.Context(), projectID)
	if err != nil {
		switch {
		case errors.Is(err, checkoutsvc.ErrValidation):
			writeBadRequest(w, "VALIDATION_ERROR", "invalid checkout request")
		case errors.Is(err, checkoutsvc.ErrProjectNotFound):
			writeNotFound(w, "PROJECT_NOT_FOUND", "project not found")
		default:
			writeInternal(w, "INTERNAL_ERROR", "failed to create checkout")
		}
		return
	}

	httperrors.Write(w, http.StatusOK, dto.CheckoutResponse{
		CheckoutID:     quote.CheckoutID,
		ProjectID:      quote.ProjectID,
		ProjectTitle:   quote.ProjectTitle,
		Amount:         quote.Amount,
		Currency:       quote.Currency,
		PaymentAddress: quote.PaymentAddress,
		ExpiresAt:      quote.ExpiresAt,
	})
}

func (h *PaymentHandler) Verify(w http.ResponseWriter, r *http.Request) {
	identity, ok := authsvc.IdentityFromContext(r.Context())
	if !ok {
		writeUnauthorized(w, "UNAUTHORIZED", "authentication required")
		return
	}
	if h.purchases == nil {
		writeInternal(w, "PURCHASES_SERVICE_UNAVAILABLE", "purchases service is unavailable")
		return
	}

	if h.limiter != nil {
		retryAfterSec, allowed, err := h.limiter.AllowVerify(r.Context(), identity.UserID)
		if err != nil {
			writeInternal(w, "INTERNAL_ERROR", "failed to check rate limit")
			return
		}
		if !allowed {
			w.Header().Set("Retry-After", strconv.FormatInt(retryAfterSec, 10))
			httperrors.Write(w, http.StatusTooManyRequests, httperrors.RateLimitError{
				Code:          "RATE_LIMITED",
				Message:       "too many verification attempts",
				RetryAfterSec: retryAfterSec,
			})
			return
		}
	}

	var req dto.VerifyRequest
	if err := decodeJSON(r, &req); err != nil {
		writeBadRequest(w, "VALIDATION_ERROR", "invalid request body")
		return
	}

	result, err := h.purchases.Verify(r.Context(), identity.UserID, purchasesvc.VerifyInput{
		ProjectID:     req.ProjectID,
		CheckoutID:    req.CheckoutID,
		TransactionID: req.TransactionID,
	})
	if err != nil {
		switch {
		case errors.Is(err, purchasesvc.ErrValidation):
			writeBadRequest(w, "VALIDATION_ERROR", "invalid verify payload")
		case errors.Is(err, purchasesvc.ErrProjectNotFound):
			writeNotFound(w, "PROJECT_NOT_FOUND", "project not found")
		case errors.Is(err, purchasesvc.ErrUnknownUser):
			writeForbidden(w, "UNKNOWN_USER", "account is not provisioned")
		case errors.Is(err, purchasesvc.ErrAlreadyOwned):
			httperrors.Write(w, http.StatusOK, dto.VerifyResponse{
				Success: false,
				Message: "You already own this project",
			})
		default:
			writeInternal(w, "INTERNAL_ERROR", "failed to verify payment")
		}
		return
	}

	if !result.Verified {
		message := result.Message
		if message == "" {
			message = "Payment verification failed"
		}
		httperrors.Write(w, http.StatusOK, dto.VerifyResponse{Success: false, Message: message})
		return
	}

	httperrors.Write(w, http.StatusOK, dto.VerifyResponse{
		Success:     true,
		Message:     result.Message,
		PurchaseID:  result.PurchaseID,
		DownloadURL: result.DownloadURL,
	})
}
