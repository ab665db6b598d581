package http

import (
	"context"
	"net/http"
	"time"

	"github.com/fjod/go_pickup/internal/domain"
)

type DraftService interface {
	GetDraft(ctx context.Context, customerID string) (*domain.Draft, error)
	AddLine(ctx context.Context, customerID string, line domain.CartLine) (*domain.Draft, error)
	DiscardDraft(ctx context.Context, customerID string) error
	Checkout(ctx context.Context, customerID string) (*domain.Order, error)
}

type DraftsHandler struct {
	drafts  DraftService
	timeout time.Duration
}

func NewDraftsHandler(drafts DraftService, timeout time.Duration) *DraftsHandler {
	return &DraftsHandler{
		drafts:  drafts,
		timeout: timeout,
	}
}

func (h *DraftsHandler) GetDraft(w http.ResponseWriter, r *http.Request) {
	customerID, ok := requireCustomer(w, r)
	if !ok {
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), h.timeout)
	defer cancel()

	draft, err := h.drafts.GetDraft(ctx, customerID)
	if err != nil {
		handleServiceError(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, toDraftResponse(draft))
}

func (h *DraftsHandler) AddItem(w http.ResponseWriter, r *http.Request) {
	customerID, ok := requireCustomer(w, r)
	if !ok {
		return
	}

	var req LineRequest
	if !decodeJSON(w, r, &req) {
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), h.timeout)
	defer cancel()

	draft, err := h.drafts.AddLine(ctx, customerID, req.toCartLine())
	if err != nil {
		handleServiceError(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, toDraftResponse(draft))
}

func (h *DraftsHandler) Discard(w http.ResponseWriter, r *http.Request) {
	customerID, ok := requireCustomer(w, r)
	if !ok {
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), h.timeout)
	defer cancel()

	if err := h.drafts.DiscardDraft(ctx, customerID); err != nil {
		handleServiceError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *DraftsHandler) Checkout(w http.ResponseWriter, r *http.Request) {
	customerID, ok := requireCustomer(w, r)
	if !ok {
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), h.timeout)
	defer cancel()

	order, err := h.drafts.Checkout(ctx, customerID)
	if err != nil {
		handleServiceError(w, r, err)
		return
	}
	respondJSON(w, http.StatusCreated, toOrderDTO(order, true))
}
