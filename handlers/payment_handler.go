package handlers

import (
	"errors"
	"net/http"

	"kartcis-core/internal/status"
	"kartcis-core/services"

	"github.com/pocketbase/pocketbase"
	"github.com/pocketbase/pocketbase/apis"
	"github.com/pocketbase/pocketbase/core"
)

type PaymentHandler struct {
	app      *pocketbase.PocketBase
	payments *services.PaymentService
}

func NewPaymentHandler(app *pocketbase.PocketBase, payments *services.PaymentService) *PaymentHandler {
	return &PaymentHandler{
		app:      app,
		payments: payments,
	}
}

// Notify - Source-agnostic payment confirmation webhook
func (h *PaymentHandler) Notify(e *core.RequestEvent) error {
	var req struct {
		OrderID string `json:"order_id"`
		Status  string `json:"status"`
	}
	if err := e.BindBody(&req); err != nil {
		return apis.NewBadRequestError("Invalid notification", err)
	}
	if req.OrderID == "" {
		return apis.NewBadRequestError("order_id is required", nil)
	}

	if req.Status != "success" {
		return e.JSON(http.StatusOK, map[string]any{"received": true})
	}

	tickets, err := h.payments.Confirm(e.Request.Context(), req.OrderID)
	if err != nil {
		switch {
		case errors.Is(err, status.ErrIssuanceFault):
			// Payment is recorded; the outbox will finish issuance. The
			// caller must not treat this as a completed purchase yet.
			return e.JSON(http.StatusAccepted, map[string]any{
				"order_id": req.OrderID,
				"status":   "paid",
				"tickets":  "pending",
			})
		case errors.Is(err, status.ErrOrderExpired), errors.Is(err, status.ErrInvalidTransition):
			return apis.NewApiError(http.StatusConflict, "Order is not payable", err)
		case errors.Is(err, status.ErrConfirmInFlight):
			// Another confirmation holds the claim; the provider retries.
			return apis.NewApiError(http.StatusServiceUnavailable, "Confirmation already in progress", err)
		case errors.Is(err, status.ErrStorageFault):
			return apis.NewApiError(http.StatusServiceUnavailable, "Order store unavailable", err)
		default:
			return apis.NewApiError(http.StatusInternalServerError, "Failed to process confirmation", err)
		}
	}

	return e.JSON(http.StatusOK, map[string]any{
		"order_id": req.OrderID,
		"tickets":  len(tickets),
	})
}

// SimulatePayment - Development-only payment trigger
func (h *PaymentHandler) SimulatePayment(e *core.RequestEvent) error {
	if e.Auth == nil {
		return apis.NewUnauthorizedError("Unauthorized", nil)
	}

	var req struct {
		OrderID string `json:"order_id"`
	}
	if err := e.BindBody(&req); err != nil {
		return apis.NewBadRequestError("Invalid request", err)
	}

	tickets, err := h.payments.Confirm(e.Request.Context(), req.OrderID)
	if err != nil {
		return apis.NewBadRequestError("Simulated confirmation failed", err)
	}

	return e.JSON(http.StatusOK, map[string]any{
		"order_id": req.OrderID,
		"tickets":  len(tickets),
	})
}
