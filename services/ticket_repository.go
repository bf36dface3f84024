package services

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"kartcis-core/models"

	"github.com/pocketbase/dbx"
	"github.com/pocketbase/pocketbase/core"
	"github.com/shopspring/decimal"
)

// TicketRepository is the user-scoped durable collection of issued tickets.
type TicketRepository interface {
	Save(ctx context.Context, ticket *models.Ticket) error
	FindByID(ctx context.Context, ticketID string) (*models.Ticket, error)
	FindByOrder(ctx context.Context, orderID string) ([]models.Ticket, error)
	FindByUser(ctx context.Context, userID string) ([]models.Ticket, error)
	FindByEvent(ctx context.Context, eventID string) ([]models.Ticket, error)
}

type pbTicketRepository struct {
	app core.App
}

func NewTicketRepository(app core.App) TicketRepository {
	return &pbTicketRepository{app: app}
}

func (r *pbTicketRepository) Save(ctx context.Context, ticket *models.Ticket) error {
	record, err := r.app.FindFirstRecordByData("tickets", "ticket_id", ticket.ID)
	if err != nil {
		if !errors.Is(err, sql.ErrNoRows) {
			return err
		}
		collection, err := r.app.FindCollectionByNameOrId("tickets")
		if err != nil {
			return err
		}
		record = core.NewRecord(collection)
	}

	record.Set("ticket_id", ticket.ID)
	record.Set("order_id", ticket.OrderID)
	record.Set("user_id", ticket.UserID)
	record.Set("event_id", ticket.EventID)
	record.Set("event_title", ticket.EventTitle)
	record.Set("event_date", ticket.EventDate)
	record.Set("event_time", ticket.EventTime)
	record.Set("venue", ticket.Venue)
	record.Set("city", ticket.City)
	record.Set("event_image", ticket.EventImage)
	record.Set("ticket_type", ticket.TicketType)
	record.Set("quantity", ticket.Quantity)
	record.Set("unit_price", ticket.UnitPrice.String())
	record.Set("ticket_code", ticket.TicketCode)
	record.Set("issued_at", ticket.IssuedAt)
	record.Set("event_status", ticket.EventStatus)
	record.Set("cancel_reason", ticket.CancelReason)

	return r.app.Save(record)
}

func (r *pbTicketRepository) FindByID(ctx context.Context, ticketID string) (*models.Ticket, error) {
	record, err := r.app.FindFirstRecordByData("tickets", "ticket_id", ticketID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, err
	}
	ticket, err := decodeTicket(record)
	if err != nil {
		return nil, err
	}
	return &ticket, nil
}

func (r *pbTicketRepository) FindByOrder(ctx context.Context, orderID string) ([]models.Ticket, error) {
	return r.findByFilter("order_id = {:id}", dbx.Params{"id": orderID})
}

func (r *pbTicketRepository) FindByUser(ctx context.Context, userID string) ([]models.Ticket, error) {
	return r.findByFilter("user_id = {:id}", dbx.Params{"id": userID})
}

func (r *pbTicketRepository) FindByEvent(ctx context.Context, eventID string) ([]models.Ticket, error) {
	return r.findByFilter("event_id = {:id}", dbx.Params{"id": eventID})
}

func (r *pbTicketRepository) findByFilter(filter string, params dbx.Params) ([]models.Ticket, error) {
	records, err := r.app.FindRecordsByFilter("tickets", filter, "ticket_id", 0, 0, params)
	if err != nil {
		return nil, err
	}

	tickets := make([]models.Ticket, 0, len(records))
	for _, record := range records {
		ticket, err := decodeTicket(record)
		if err != nil {
			return nil, err
		}
		tickets = append(tickets, ticket)
	}
	return tickets, nil
}

func decodeTicket(record *core.Record) (models.Ticket, error) {
	// Money never leaves decimal: the column stores the exact string form.
	unitPrice, err := decimal.NewFromString(record.GetString("unit_price"))
	if err != nil {
		return models.Ticket{}, fmt.Errorf("decode ticket %s unit price: %w", record.GetString("ticket_id"), err)
	}

	return models.Ticket{
		ID:           record.GetString("ticket_id"),
		OrderID:      record.GetString("order_id"),
		UserID:       record.GetString("user_id"),
		EventID:      record.GetString("event_id"),
		EventTitle:   record.GetString("event_title"),
		EventDate:    record.GetString("event_date"),
		EventTime:    record.GetString("event_time"),
		Venue:        record.GetString("venue"),
		City:         record.GetString("city"),
		EventImage:   record.GetString("event_image"),
		TicketType:   record.GetString("ticket_type"),
		Quantity:     record.GetInt("quantity"),
		UnitPrice:    unitPrice,
		TicketCode:   record.GetString("ticket_code"),
		IssuedAt:     record.GetDateTime("issued_at").Time(),
		EventStatus:  record.GetString("event_status"),
		CancelReason: record.GetString("cancel_reason"),
	}, nil
}
