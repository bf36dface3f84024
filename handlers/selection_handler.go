package handlers

import (
	"errors"
	"net/http"

	"kartcis-core/internal/status"
	"kartcis-core/models"
	"kartcis-core/services"

	"github.com/google/uuid"
	"github.com/pocketbase/pocketbase"
	"github.com/pocketbase/pocketbase/apis"
	"github.com/pocketbase/pocketbase/core"
)

type SelectionHandler struct {
	app        *pocketbase.PocketBase
	selections *services.SelectionService
}

func NewSelectionHandler(app *pocketbase.PocketBase, selections *services.SelectionService) *SelectionHandler {
	return &SelectionHandler{
		app:        app,
		selections: selections,
	}
}

// sessionID resolves the caller's browsing session: explicit header first,
// then the auth record, and a fresh id for anonymous first contact.
func sessionID(e *core.RequestEvent) string {
	if sid := e.Request.Header.Get("X-Session-Id"); sid != "" {
		return sid
	}
	if e.Auth != nil {
		return e.Auth.Id
	}
	return uuid.NewString()
}

// AdjustSelection - Apply a quantity delta for one ticket type
func (h *SelectionHandler) AdjustSelection(e *core.RequestEvent) error {
	var req struct {
		Event        models.Event `json:"event"`
		TicketTypeID string       `json:"ticket_type_id"`
		Delta        int          `json:"delta"`
	}

	if err := e.BindBody(&req); err != nil {
		return apis.NewBadRequestError("Invalid request", err)
	}
	if req.TicketTypeID == "" {
		return apis.NewBadRequestError("ticket_type_id is required", nil)
	}

	sid := sessionID(e)
	ctx := e.Request.Context()

	quantity, err := h.selections.Adjust(ctx, sid, &req.Event, req.TicketTypeID, req.Delta)
	if err != nil {
		if errors.Is(err, status.ErrSelectionClosed) {
			return apis.NewBadRequestError("Event is not open for sale", err)
		}
		return apis.NewBadRequestError("Failed to adjust selection", err)
	}

	totalQuantity, err := h.selections.TotalQuantity(ctx, sid)
	if err != nil {
		return apis.NewApiError(http.StatusServiceUnavailable, "Selection state unavailable", err)
	}
	totalPrice, err := h.selections.TotalPrice(ctx, sid, &req.Event)
	if err != nil {
		return apis.NewApiError(http.StatusServiceUnavailable, "Selection state unavailable", err)
	}

	return e.JSON(http.StatusOK, map[string]any{
		"session_id":     sid,
		"quantity":       quantity,
		"total_quantity": totalQuantity,
		"total_price":    totalPrice,
	})
}

// GetSelection - Return the session's current selection
func (h *SelectionHandler) GetSelection(e *core.RequestEvent) error {
	sid := sessionID(e)

	selection, err := h.selections.Get(e.Request.Context(), sid)
	if err != nil {
		return apis.NewApiError(http.StatusServiceUnavailable, "Selection state unavailable", err)
	}

	return e.JSON(http.StatusOK, map[string]any{
		"session_id": sid,
		"selection":  selection,
	})
}
