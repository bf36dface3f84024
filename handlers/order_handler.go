package handlers

import (
	"errors"
	"net/http"

	"kartcis-core/internal/status"
	"kartcis-core/models"
	"kartcis-core/services"

	"github.com/pocketbase/pocketbase"
	"github.com/pocketbase/pocketbase/apis"
	"github.com/pocketbase/pocketbase/core"
)

type OrderHandler struct {
	app        *pocketbase.PocketBase
	orders     *services.OrderService
	payments   *services.PaymentService
	selections *services.SelectionService
}

func NewOrderHandler(app *pocketbase.PocketBase, orders *services.OrderService, payments *services.PaymentService, selections *services.SelectionService) *OrderHandler {
	return &OrderHandler{
		app:        app,
		orders:     orders,
		payments:   payments,
		selections: selections,
	}
}

// Checkout - Create a pending order from the session's selection
func (h *OrderHandler) Checkout(e *core.RequestEvent) error {
	if e.Auth == nil {
		return apis.NewUnauthorizedError("Unauthorized", nil)
	}

	var req struct {
		Event models.Event `json:"event"`
	}
	if err := e.BindBody(&req); err != nil {
		return apis.NewBadRequestError("Invalid request", err)
	}

	sid := sessionID(e)
	ctx := e.Request.Context()

	selection, err := h.selections.Get(ctx, sid)
	if err != nil {
		return apis.NewApiError(http.StatusServiceUnavailable, "Selection state unavailable", err)
	}

	customer := models.Customer{
		Name:  e.Auth.GetString("name"),
		Email: e.Auth.Email(),
		Phone: e.Auth.GetString("phone"),
	}

	order, err := h.orders.Create(ctx, e.Auth.Id, sid, selection, &req.Event, customer)
	if err != nil {
		switch {
		case errors.Is(err, status.ErrEmptySelection):
			return apis.NewBadRequestError("Nothing to check out", err)
		case errors.Is(err, status.ErrInsufficientStock):
			return apis.NewBadRequestError("Not enough tickets available", err)
		case errors.Is(err, status.ErrActiveOrderExists):
			return apis.NewBadRequestError("An active order already exists for this session", err)
		case errors.Is(err, status.ErrStorageFault):
			return apis.NewApiError(http.StatusServiceUnavailable, "Order store unavailable", err)
		default:
			return apis.NewBadRequestError("Failed to create order", err)
		}
	}

	// Selection is consumed by the checkout; a failure to clear it only
	// costs the user a stale cart, so it is not fatal.
	h.selections.Clear(ctx, sid)

	return e.JSON(http.StatusCreated, order)
}

// GetActiveOrder - Return the session's pending, non-expired order
func (h *OrderHandler) GetActiveOrder(e *core.RequestEvent) error {
	order, err := h.orders.GetActive(e.Request.Context(), sessionID(e))
	if err != nil {
		return apis.NewApiError(http.StatusServiceUnavailable, "Order store unavailable", err)
	}

	return e.JSON(http.StatusOK, map[string]any{"order": order})
}

// GetOrder - Return one order by id, owner-scoped
func (h *OrderHandler) GetOrder(e *core.RequestEvent) error {
	if e.Auth == nil {
		return apis.NewUnauthorizedError("Unauthorized", nil)
	}

	orderID := e.Request.PathValue("orderId")

	order, err := h.orders.GetByID(e.Request.Context(), orderID)
	if err != nil {
		return apis.NewApiError(http.StatusServiceUnavailable, "Order store unavailable", err)
	}
	if order == nil {
		return apis.NewNotFoundError("Order not found", nil)
	}
	if order.UserID != e.Auth.Id {
		return apis.NewForbiddenError("Access denied", nil)
	}

	return e.JSON(http.StatusOK, order)
}

// GetOrderStatus - Lightweight status poll used by the payment page
func (h *OrderHandler) GetOrderStatus(e *core.RequestEvent) error {
	orderID := e.Request.PathValue("orderId")

	order, err := h.orders.GetByID(e.Request.Context(), orderID)
	if err != nil {
		return apis.NewApiError(http.StatusServiceUnavailable, "Order store unavailable", err)
	}
	if order == nil {
		return apis.NewNotFoundError("Order not found", nil)
	}

	return e.JSON(http.StatusOK, map[string]any{
		"order_id": order.ID,
		"status":   order.Status,
	})
}

// CancelOrder - Explicit user cancellation of a pending order
func (h *OrderHandler) CancelOrder(e *core.RequestEvent) error {
	if e.Auth == nil {
		return apis.NewUnauthorizedError("Unauthorized", nil)
	}

	orderID := e.Request.PathValue("orderId")
	ctx := e.Request.Context()

	order, err := h.orders.GetByID(ctx, orderID)
	if err != nil {
		return apis.NewApiError(http.StatusServiceUnavailable, "Order store unavailable", err)
	}
	if order == nil {
		return apis.NewNotFoundError("Order not found", nil)
	}
	if order.UserID != e.Auth.Id {
		return apis.NewForbiddenError("Access denied", nil)
	}

	if err := h.payments.Cancel(ctx, orderID); err != nil {
		if errors.Is(err, status.ErrInvalidTransition) {
			return apis.NewBadRequestError("Order can no longer be cancelled", err)
		}
		return apis.NewApiError(http.StatusServiceUnavailable, "Failed to cancel order", err)
	}

	return e.JSON(http.StatusOK, map[string]any{"cancelled": true})
}
