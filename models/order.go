package models

import (
	"time"

	"github.com/shopspring/decimal"
)

const (
	OrderPending   = "pending"
	OrderPaid      = "paid"
	OrderExpired   = "expired"
	OrderCancelled = "cancelled"
)

// LineItem is one ticket-type selection within an order, carrying a full
// event context snapshot so the order survives later catalog edits.
type LineItem struct {
	EventID    string          `json:"event_id"`
	EventTitle string          `json:"event_title"`
	EventDate  string          `json:"event_date"`
	EventTime  string          `json:"event_time"`
	Venue      string          `json:"venue"`
	City       string          `json:"city"`
	EventImage string          `json:"event_image,omitempty"`
	TicketType string          `json:"ticket_type"`
	Quantity   int             `json:"quantity"`
	UnitPrice  decimal.Decimal `json:"unit_price"`
}

// Subtotal is quantity x unit price.
func (li LineItem) Subtotal() decimal.Decimal {
	return li.UnitPrice.Mul(decimal.NewFromInt(int64(li.Quantity)))
}

// Customer is the buyer contact snapshot captured at checkout.
type Customer struct {
	Name  string `json:"name"`
	Email string `json:"email"`
	Phone string `json:"phone"`
}

type PendingOrder struct {
	ID            string          `json:"order_id"`
	UserID        string          `json:"user_id"`
	SessionID     string          `json:"session_id"`
	CustomerName  string          `json:"customer_name,omitempty"`
	CustomerEmail string          `json:"customer_email,omitempty"`
	CustomerPhone string          `json:"customer_phone,omitempty"`
	Items         []LineItem      `json:"items"`
	TotalAmount   decimal.Decimal `json:"total_amount"`
	Status        string          `json:"status"` // pending, paid, expired, cancelled
	CreatedAt     time.Time       `json:"created_at"`
	ExpiresAt     time.Time       `json:"expires_at"`
	PaidAt        *time.Time      `json:"paid_at,omitempty"`
}

// Expired reports whether the hold window has lapsed, regardless of the
// stored status field. Readers must self-correct on this.
func (o *PendingOrder) Expired(now time.Time) bool {
	return now.After(o.ExpiresAt)
}

// Active reports whether the order still occupies the session's single
// pending-order slot.
func (o *PendingOrder) Active(now time.Time) bool {
	return o.Status == OrderPending && !o.Expired(now)
}

// TotalQuantity is the number of ticket units across all line items.
func (o *PendingOrder) TotalQuantity() int {
	total := 0
	for _, li := range o.Items {
		total += li.Quantity
	}
	return total
}
