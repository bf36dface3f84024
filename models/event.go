package models

import (
	"github.com/shopspring/decimal"
)

const (
	EventPublished = "published"
	EventSoldOut   = "sold_out"
	EventCancelled = "cancelled"
	EventCompleted = "completed"
)

// Event is the catalog snapshot supplied by the external catalog service.
type Event struct {
	ID          string       `json:"id"`
	Title       string       `json:"title"`
	Date        string       `json:"date"` // YYYY-MM-DD
	Time        string       `json:"time"` // HH:mm:ss
	Venue       string       `json:"venue"`
	City        string       `json:"city"`
	Image       string       `json:"image,omitempty"`
	Status      string       `json:"status"`
	TicketTypes []TicketType `json:"ticket_types"`
}

type TicketType struct {
	ID            string           `json:"id"`
	Name          string           `json:"name"`
	Price         decimal.Decimal  `json:"price"`
	OriginalPrice *decimal.Decimal `json:"originalPrice,omitempty"` // discount display requires originalPrice > price
	Available     int              `json:"available"`
}

// OpenForSale reports whether quantity adjustments are allowed for the event.
func (e *Event) OpenForSale() bool {
	return e.Status != EventSoldOut && e.Status != EventCancelled
}

// TicketType resolves a ticket-type id against the snapshot's catalog.
func (e *Event) TicketType(id string) (TicketType, bool) {
	for _, tt := range e.TicketTypes {
		if tt.ID == id {
			return tt, true
		}
	}
	return TicketType{}, false
}

// Discounted reports whether the original price should be shown struck through.
func (t TicketType) Discounted() bool {
	return t.OriginalPrice != nil && t.OriginalPrice.GreaterThan(t.Price)
}
