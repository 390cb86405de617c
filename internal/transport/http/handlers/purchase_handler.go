package handlers

import (
	"context"
	"errors"
	"net/http"

	pgrepo "github.com/olegbarsky/digistore/internal/repo/postgres"
	authsvc "github.com/olegbarsky/digistore/internal/services/auth"
	purchasesvc "github.com/olegbarsky/digistore/internal/services/purchases"
	"github.com/olegbarsky/digistore/internal/transport/http/dto"
	httperrors "github.com/olegbarsky/digistore/internal/transport/http/errors"
)

type DownloadResolver interface {
	Resolve(ctx context.Context, ref string) (string, error)
}

type PurchaseHandler struct {
	purchases *purchasesvc.Service
	downloads DownloadResolver
}

func NewPurchaseHandler(purchases *purchasesvc.Service, downloads DownloadResolver) *PurchaseHandler {
	return &PurchaseHandler{
		purchases: purchases,
		downloads: downloads,
	}
}

func (h *PurchaseHandler) Create(w http.ResponseWriter, r *http.Request) {
	identity, ok := authsvc.IdentityFromContext(r.Context())
	if !ok {
		writeUnauthorized(w, "UNAUTHORIZED", "authentication required")
		return
	}
	if h.purchases == nil {
		writeInternal(w, "PURCHASES_SERVICE_UNAVAILABLE", "purchases service is unavailable")
		return
	}

	var req dto.PurchaseCreateRequest
	if err := decodeJSON(r, &req); err != nil {
		writeBadRequest(w, "VALIDATION_ERROR", "invalid request body")
		return
	}

	record, err := h.purchases.Create(r.Context(), identity.UserID, purchasesvc.CreateInput{
		ProjectID:     req.ProjectID,
		TransactionID: req.TransactionID,
		IsCompleted:   req.IsCompleted,
	})
	if err != nil {
		switch {
		case errors.Is(err, purchasesvc.ErrValidation):
			writeBadRequest(w, "VALIDATION_ERROR", "invalid purchase payload")
		case errors.Is(err, purchasesvc.ErrProjectNotFound):
			writeBadRequest(w, "PROJECT_NOT_FOUND", "Project not found")
		case errors.Is(err, purchasesvc.ErrUnknownUser):
			writeForbidden(w, "UNKNOWN_USER", "account is not provisioned")
		case errors.Is(err, purchasesvc.ErrAlreadyOwned):
			writeBadRequest(w, "ALREADY_OWNED", "You already own this project")
		default:
			writeInternal(w, "INTERNAL_ERROR", "failed to create purchase")
		}
		return
	}

	httperrors.Write(w, http.StatusCreated, dto.NewPurchaseResponse(record))
}

func (h *PurchaseHandler) Get(w http.ResponseWriter, r *http.Request) {
	identity, ok := authsvc.IdentityFromContext(r.Context())
	if !ok {
		writeUnauthorized(w, "UNAUTHORIZED", "authentication required")
		return
	}
	if h.purchases == nil {
		writeInternal(w, "PURCHASES_SERVICE_UNAVAILABLE", "purchases service is unavailable")
		return
	}

	purchaseID, ok := idParam(r, "id")
	if !ok {
		writeBadRequest(w, "VALIDATION_ERROR", "invalid purchase id")
		return
	}

	record, err := h.purchases.Get(r.Context(), identity, purchaseID)
	if err != nil {
		h.writeReadError(w, err)
		return
	}

	httperrors.Write(w, http.StatusOK, h.renderPurchase(r.Context(), record))
}

func (h *PurchaseHandler) ListMine(w http.ResponseWriter, r *http.Request) {
	identity, ok := authsvc.IdentityFromContext(r.Context())
	if !ok {
		writeUnauthorized(w, "UNAUTHORIZED", "authentication required")
		return
	}
	if h.purchases == nil {
		writeInternal(w, "PURCHASES_SERVICE_UNAVAILABLE", "purchases service is unavailable")
		return
	}

	records, err := h.purchases.ListMine(r.Context(), identity.UserID)
	if err != nil {
		h.writeReadError(w, err)
		return
	}

	out := make([]dto.PurchaseResponse, 0, len(records))
	for _, record := range records {
		out = append(out, h.renderPurchase(r.Context(), record))
	}

	httperrors.Write(w, http.StatusOK, out)
}

func (h *PurchaseHandler) ListAll(w http.ResponseWriter, r *http.Request) {
	if _, ok := authsvc.IdentityFromContext(r.Context()); !ok {
		writeUnauthorized(w, "UNAUTHORIZED", "authentication required")
		return
	}
	if h.purchases == nil {
		writeInternal(w, "PURCHASES_SERVICE_UNAVAILABLE", "purchases service is unavailable")
		return
	}

	records, err := h.purchases.ListAll(r.Context())
	if err != nil {
		writeInternal(w, "INTERNAL_ERROR", "failed to list purchases")
		return
	}

	out := make([]dto.PurchaseResponse, 0, len(records))
	for _, record := range records {
		out = append(out, dto.NewPurchaseDetailResponse(record))
	}

	httperrors.Write(w, http.StatusOK, out)
}

func (h *PurchaseHandler) Complete(w http.ResponseWriter, r *http.Request) {
	identity, ok := authsvc.IdentityFromContext(r.Context())
	if !ok {
		writeUnauthorized(w, "UNAUTHORIZED", "authentication required")
		return
	}
	if h.purchases == nil {
		writeInternal(w, "PURCHASES_SERVICE_UNAVAILABLE", "purchases service is unavailable")
		return
	}

	purchaseID, ok := idParam(r, "id")
	if !ok {
		writeBadRequest(w, "VALIDATION_ERROR", "invalid purchase id")
		return
	}

	var req dto.PurchaseCompleteRequest
	if err := decodeJSON(r, &req); err != nil {
		writeBadRequest(w, "VALIDATION_ERROR", "invalid request body")
		return
	}

	if _, err := h.purchases.Complete(r.Context(), identity, purchaseID, req.TransactionID); err != nil {
		switch {
		case errors.Is(err, purchasesvc.ErrValidation):
			writeBadRequest(w, "VALIDATION_ERROR", "invalid completion payload")
		case errors.Is(err, purchasesvc.ErrPurchaseNotFound):
			writeNotFound(w, "PURCHASE_NOT_FOUND", "purchase not found")
		case errors.Is(err, purchasesvc.ErrForbidden):
			writeForbidden(w, "FORBIDDEN", "not allowed to complete this purchase")
		case errors.Is(err, purchasesvc.ErrAlreadyOwned):
			writeBadRequest(w, "ALREADY_OWNED", "You already own this project")
		default:
			writeInternal(w, "INTERNAL_ERROR", "failed to complete purchase")
		}
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

// renderPurchase attaches the project payload; download links are only
// handed out for completed purchases.
func (h *PurchaseHandler) renderPurchase(ctx context.Context, record pgrepo.PurchaseWithProject) dto.PurchaseResponse {
	downloadURL := ""
	if record.IsCompleted {
		downloadURL = record.Project.DownloadURL
		if h.downloads != nil {
			if resolved, err := h.downloads.Resolve(ctx, record.Project.DownloadURL); err == nil {
				downloadURL = resolved
			}
		}
	}
	return dto.NewPurchaseWithProjectResponse(record, downloadURL)
}

func (h *PurchaseHandler) writeReadError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, purchasesvc.ErrValidation):
		writeBadRequest(w, "VALIDATION_ERROR", "invalid request")
	case errors.Is(err, purchasesvc.ErrPurchaseNotFound):
		writeNotFound(w, "PURCHASE_NOT_FOUND", "purchase not found")
	case errors.Is(err, purchasesvc.ErrForbidden):
		writeForbidden(w, "FORBIDDEN", "not allowed to view this purchase")
	default:
		writeInternal(w, "INTERNAL_ERROR", "failed to load purchases")
	}
}
