package models

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLineItem_Subtotal(t *testing.T) {
	item := LineItem{Quantity: 3, UnitPrice: decimal.NewFromInt(150000)}

	assert.True(t, item.Subtotal().Equal(decimal.NewFromInt(450000)))
}

func TestPendingOrder_ExpiredAndActive(t *testing.T) {
	now := time.Now()
	order := PendingOrder{Status: OrderPending, ExpiresAt: now.Add(time.Hour)}

	assert.False(t, order.Expired(now))
	assert.True(t, order.Active(now))

	// Exactly at the boundary the order is still live.
	assert.False(t, order.Expired(order.ExpiresAt))

	assert.True(t, order.Expired(now.Add(2*time.Hour)))
	assert.False(t, order.Active(now.Add(2*time.Hour)))
}

func TestPendingOrder_PaidIsNeverActive(t *testing.T) {
	now := time.Now()
	order := PendingOrder{Status: OrderPaid, ExpiresAt: now.Add(time.Hour)}

	assert.False(t, order.Active(now))
}

func TestPendingOrder_TotalQuantity(t *testing.T) {
	order := PendingOrder{
		Items: []LineItem{
			{Quantity: 2},
			{Quantity: 1},
		},
	}

	assert.Equal(t, 3, order.TotalQuantity())
}

func TestPendingOrder_JSONSerialization(t *testing.T) {
	now := time.Now()
	order := PendingOrder{
		ID:        "ORD-1",
		UserID:    "user-1",
		SessionID: "sess-1",
		Items: []LineItem{
			{EventID: "event-1", TicketType: "VIP", Quantity: 2, UnitPrice: decimal.NewFromInt(150000)},
		},
		TotalAmount: decimal.NewFromInt(300000),
		Status:      OrderPending,
		CreatedAt:   now,
		ExpiresAt:   now.Add(24 * time.Hour),
	}

	data, err := json.Marshal(order)
	require.NoError(t, err)

	var decoded PendingOrder
	require.NoError(t, json.Unmarshal(data, &decoded))

	assert.Equal(t, order.ID, decoded.ID)
	assert.Equal(t, order.Status, decoded.Status)
	require.Len(t, decoded.Items, 1)
	assert.True(t, decoded.Items[0].UnitPrice.Equal(decimal.NewFromInt(150000)))
	assert.True(t, decoded.TotalAmount.Equal(order.TotalAmount))
	assert.WithinDuration(t, order.ExpiresAt, decoded.ExpiresAt, time.Second)
	assert.Nil(t, decoded.PaidAt)
}

func TestEvent_OpenForSale(t *testing.T) {
	cases := map[string]bool{
		EventPublished: true,
		EventCompleted: true,
		EventSoldOut:   false,
		EventCancelled: false,
	}

	for eventStatus, want := range cases {
		event := Event{ID: "event-1", Status: eventStatus}
		assert.Equal(t, want, event.OpenForSale(), "status %s", eventStatus)
	}
}

func TestEvent_TicketTypeLookup(t *testing.T) {
	event := Event{
		TicketTypes: []TicketType{
			{ID: "vip", Name: "VIP"},
			{ID: "regular", Name: "Regular"},
		},
	}

	tt, ok := event.TicketType("regular")
	require.True(t, ok)
	assert.Equal(t, "Regular", tt.Name)

	_, ok = event.TicketType("ghost")
	assert.False(t, ok)
}

func TestTicketType_Discounted(t *testing.T) {
	price := decimal.NewFromInt(150000)
	higher := decimal.NewFromInt(200000)
	equal := decimal.NewFromInt(150000)

	assert.False(t, TicketType{Price: price}.Discounted())
	assert.True(t, TicketType{Price: price, OriginalPrice: &higher}.Discounted())
	assert.False(t, TicketType{Price: price, OriginalPrice: &equal}.Discounted())
}

func TestTicket_JSONSerialization(t *testing.T) {
	ticket := Ticket{
		ID:          "ORD-1-0",
		OrderID:     "ORD-1",
		UserID:      "user-1",
		EventID:     "event-1",
		TicketType:  "VIP",
		Quantity:    2,
		UnitPrice:   decimal.NewFromInt(150000),
		TicketCode:  "TKT-ORD-1-0",
		IssuedAt:    time.Now(),
		EventStatus: TicketEventActive,
	}

	data, err := json.Marshal(ticket)
	require.NoError(t, err)

	var decoded Ticket
	require.NoError(t, json.Unmarshal(data, &decoded))

	assert.Equal(t, ticket.ID, decoded.ID)
	assert.Equal(t, ticket.TicketCode, decoded.TicketCode)
	assert.Equal(t, ticket.EventStatus, decoded.EventStatus)
	assert.Empty(t, decoded.CancelReason)
}
