package services

import (
	"context"
	"fmt"
	"strings"
	"time"

	"kartcis-core/models"
	"kartcis-core/monitoring"
)

// TicketService materializes immutable tickets from a paid order. It is
// the only writer at creation time; afterwards only the event-status flag
// and cancellation reason may change.
type TicketService struct {
	repo TicketRepository
}

func NewTicketService(repo TicketRepository) *TicketService {
	return &TicketService{repo: repo}
}

// Issue emits one ticket per line item of a paid order. It resumes
// rather than restarts: line items whose ticket already exists are kept
// as-is and only the missing ones are written, so a retry after a
// partial failure completes the set without overwriting or renumbering
// anything.
func (s *TicketService) Issue(ctx context.Context, order *models.PendingOrder) ([]models.Ticket, error) {
	if order.UserID == "" {
		return nil, fmt.Errorf("issue order %s: no owning user", order.ID)
	}

	existing, err := s.repo.FindByOrder(ctx, order.ID)
	if err != nil {
		return nil, fmt.Errorf("check issued tickets for order %s: %w", order.ID, err)
	}
	issued := make(map[string]models.Ticket, len(existing))
	for _, ticket := range existing {
		issued[ticket.ID] = ticket
	}

	now := time.Now()
	tickets := make([]models.Ticket, 0, len(order.Items))
	created := 0

	for i, item := range order.Items {
		ticketID := fmt.Sprintf("%s-%d", order.ID, i)
		if ticket, ok := issued[ticketID]; ok {
			tickets = append(tickets, ticket)
			continue
		}

		ticket := models.Ticket{
			ID:          ticketID,
			OrderID:     order.ID,
			UserID:      order.UserID,
			EventID:     item.EventID,
			EventTitle:  item.EventTitle,
			EventDate:   item.EventDate,
			EventTime:   item.EventTime,
			Venue:       item.Venue,
			City:        item.City,
			EventImage:  item.EventImage,
			TicketType:  item.TicketType,
			Quantity:    item.Quantity,
			UnitPrice:   item.UnitPrice,
			TicketCode:  strings.ToUpper(fmt.Sprintf("TKT-%s-%d", order.ID, i)),
			IssuedAt:    now,
			EventStatus: models.TicketEventActive,
		}

		if err := s.repo.Save(ctx, &ticket); err != nil {
			return nil, fmt.Errorf("persist ticket %s: %w", ticket.ID, err)
		}
		tickets = append(tickets, ticket)
		created++
	}

	if created > 0 {
		monitoring.TrackTicketsIssued(created)
	}

	return tickets, nil
}

// GetByID returns one ticket, or (nil, nil) when absent.
func (s *TicketService) GetByID(ctx context.Context, ticketID string) (*models.Ticket, error) {
	return s.repo.FindByID(ctx, ticketID)
}

// GetByUser returns every ticket owned by a user.
func (s *TicketService) GetByUser(ctx context.Context, userID string) ([]models.Ticket, error) {
	return s.repo.FindByUser(ctx, userID)
}

// UpdateEventStatus flags an issued ticket when its source event changes
// after purchase. Identity fields stay untouched.
func (s *TicketService) UpdateEventStatus(ctx context.Context, ticketID, eventStatus, cancelReason string) error {
	ticket, err := s.repo.FindByID(ctx, ticketID)
	if err != nil {
		return err
	}
	if ticket == nil {
		return nil
	}

	ticket.EventStatus = eventStatus
	ticket.CancelReason = cancelReason
	return s.repo.Save(ctx, ticket)
}

// CancelForEvent flags every issued ticket of a cancelled event. Tickets
// are not deleted; holders keep a record with the cancellation reason.
func (s *TicketService) CancelForEvent(ctx context.Context, eventID, reason string) (int, error) {
	tickets, err := s.repo.FindByEvent(ctx, eventID)
	if err != nil {
		return 0, err
	}

	flagged := 0
	for i := range tickets {
		if tickets[i].EventStatus == models.TicketEventCancelled {
			continue
		}
		tickets[i].EventStatus = models.TicketEventCancelled
		tickets[i].CancelReason = reason
		if err := s.repo.Save(ctx, &tickets[i]); err != nil {
			return flagged, err
		}
		flagged++
	}

	return flagged, nil
}
