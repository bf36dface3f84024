package handlers

import (
	"net/http"

	"kartcis-core/services"

	"github.com/pocketbase/pocketbase"
	"github.com/pocketbase/pocketbase/apis"
	"github.com/pocketbase/pocketbase/core"
)

type TicketHandler struct {
	app     *pocketbase.PocketBase
	tickets *services.TicketService
}

func NewTicketHandler(app *pocketbase.PocketBase, tickets *services.TicketService) *TicketHandler {
	return &TicketHandler{
		app:     app,
		tickets: tickets,
	}
}

// ListMyTickets - All tickets owned by the authenticated user
func (h *TicketHandler) ListMyTickets(e *core.RequestEvent) error {
	if e.Auth == nil {
		return apis.NewUnauthorizedError("Unauthorized", nil)
	}

	tickets, err := h.tickets.GetByUser(e.Request.Context(), e.Auth.Id)
	if err != nil {
		return apis.NewApiError(http.StatusServiceUnavailable, "Ticket store unavailable", err)
	}

	return e.JSON(http.StatusOK, tickets)
}

// GetTicket - One ticket by id, owner-scoped
func (h *TicketHandler) GetTicket(e *core.RequestEvent) error {
	if e.Auth == nil {
		return apis.NewUnauthorizedError("Unauthorized", nil)
	}

	ticketID := e.Request.PathValue("ticketId")

	ticket, err := h.tickets.GetByID(e.Request.Context(), ticketID)
	if err != nil {
		return apis.NewApiError(http.StatusServiceUnavailable, "Ticket store unavailable", err)
	}
	if ticket == nil {
		return apis.NewNotFoundError("Ticket not found", nil)
	}
	if ticket.UserID != e.Auth.Id {
		return apis.NewForbiddenError("Access denied", nil)
	}

	return e.JSON(http.StatusOK, ticket)
}
