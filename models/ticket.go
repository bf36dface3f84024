package models

import (
	"time"

	"github.com/shopspring/decimal"
)

const (
	TicketEventActive    = "active"
	TicketEventCancelled = "cancelled"
)

// Ticket is an issued proof of purchase. Identity fields (ID, TicketCode,
// UnitPrice, Quantity) are immutable once written; only EventStatus and
// CancelReason may change afterwards.
type Ticket struct {
	ID           string          `json:"id"` // {orderID}-{lineItemIndex}
	OrderID      string          `json:"order_id"`
	UserID       string          `json:"user_id"`
	EventID      string          `json:"event_id"`
	EventTitle   string          `json:"event_title"`
	EventDate    string          `json:"event_date"`
	EventTime    string          `json:"event_time"`
	Venue        string          `json:"venue"`
	City         string          `json:"city"`
	EventImage   string          `json:"event_image,omitempty"`
	TicketType   string          `json:"ticket_type"`
	Quantity     int             `json:"quantity"`
	UnitPrice    decimal.Decimal `json:"unit_price"`
	TicketCode   string          `json:"ticket_code"` // TKT-{ORDERID}-{i}, QR-scannable
	IssuedAt     time.Time       `json:"issued_at"`
	EventStatus  string          `json:"event_status"` // active, cancelled
	CancelReason string          `json:"cancel_reason,omitempty"`
}
