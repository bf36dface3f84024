package services

import (
	"testing"
	"time"

	"kartcis-core/models"

	"github.com/pocketbase/pocketbase/core"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func ticketTestCollection() *core.Collection {
	collection := core.NewBaseCollection("tickets")
	collection.Fields.Add(
		&core.TextField{Name: "ticket_id"},
		&core.TextField{Name: "order_id"},
		&core.TextField{Name: "user_id"},
		&core.TextField{Name: "event_id"},
		&core.TextField{Name: "event_title"},
		&core.TextField{Name: "ticket_type"},
		&core.NumberField{Name: "quantity", OnlyInt: true},
		&core.TextField{Name: "unit_price"},
		&core.TextField{Name: "ticket_code"},
		&core.DateField{Name: "issued_at"},
		&core.SelectField{Name: "event_status", MaxSelect: 1, Values: []string{"active", "cancelled"}},
		&core.TextField{Name: "cancel_reason"},
	)
	return collection
}

func TestDecodeTicket_KeepsExactUnitPrice(t *testing.T) {
	record := core.NewRecord(ticketTestCollection())
	record.Set("ticket_id", "ORD-1-0")
	record.Set("order_id", "ORD-1")
	record.Set("user_id", "user-1")
	record.Set("ticket_type", "VIP")
	record.Set("quantity", 2)
	record.Set("unit_price", decimal.RequireFromString("150000.75").String())
	record.Set("ticket_code", "TKT-ORD-1-0")
	record.Set("issued_at", time.Now())
	record.Set("event_status", models.TicketEventActive)

	ticket, err := decodeTicket(record)

	require.NoError(t, err)
	assert.Equal(t, "ORD-1-0", ticket.ID)
	assert.Equal(t, 2, ticket.Quantity)
	// The price survives the row byte-for-byte, no float round trip.
	assert.True(t, ticket.UnitPrice.Equal(decimal.RequireFromString("150000.75")), "got %s", ticket.UnitPrice)
	assert.Equal(t, models.TicketEventActive, ticket.EventStatus)
}

func TestDecodeTicket_RejectsCorruptUnitPrice(t *testing.T) {
	record := core.NewRecord(ticketTestCollection())
	record.Set("ticket_id", "ORD-1-0")
	record.Set("unit_price", "not-a-number")

	_, err := decodeTicket(record)

	assert.Error(t, err)
}
