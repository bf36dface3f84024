package services

import (
	"context"
	"testing"
	"time"

	"kartcis-core/config"
	"kartcis-core/internal/status"
	"kartcis-core/models"

	"github.com/go-redis/redismock/v9"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func setupTestPaymentService() (*PaymentService, *fakeOrderRepo, *fakeTicketRepo, redismock.ClientMock) {
	db, mock := redismock.NewClientMock()
	orderRepo := newFakeOrderRepo()
	ticketRepo := newFakeTicketRepo()

	orders := NewOrderService(db, orderRepo, NewReservationService(db, time.Hour), time.Hour)
	tickets := NewTicketService(ticketRepo)
	cfg := &config.Config{
		IssuanceTimeout: time.Second,
		IssuanceRetries: 2,
	}

	// PubNub stays nil so no subscription goroutine runs in tests.
	service := NewPaymentService(db, nil, orders, tickets, cfg)
	return service, orderRepo, ticketRepo, mock
}

func paidableOrder(repo *fakeOrderRepo, id string) {
	repo.Save(context.Background(), &models.PendingOrder{
		ID:        id,
		UserID:    "user-1",
		SessionID: "sess-1",
		Items: []models.LineItem{
			{
				EventID:    "event-1",
				EventTitle: "Test Concert",
				EventDate:  "2026-09-20",
				EventTime:  "19:30:00",
				Venue:      "Test Arena",
				City:       "Jakarta",
				TicketType: "VIP",
				Quantity:   2,
				UnitPrice:  decimal.NewFromInt(150000),
			},
			{
				EventID:    "event-1",
				EventTitle: "Test Concert",
				TicketType: "Regular",
				Quantity:   1,
				UnitPrice:  decimal.NewFromInt(50000),
			},
		},
		TotalAmount: decimal.NewFromInt(350000),
		Status:      models.OrderPending,
		CreatedAt:   time.Now().Add(-time.Minute),
		ExpiresAt:   time.Now().Add(time.Hour),
	})
}

func TestPaymentService_Confirm_IssuesOneTicketPerLineItem(t *testing.T) {
	service, orderRepo, ticketRepo, mock := setupTestPaymentService()
	defer mock.ClearExpect()

	paidableOrder(orderRepo, "ORD-1")

	mock.ExpectSetNX("issued:ORD-1", 1, issuanceClaimTTL).SetVal(true)
	mock.ExpectDel("active_order:sess-1").SetVal(1)

	tickets, err := service.Confirm(context.Background(), "ORD-1")

	require.NoError(t, err)
	require.Len(t, tickets, 2)

	// One record per line item; quantity 2 stays one record.
	assert.Equal(t, "ORD-1-0", tickets[0].ID)
	assert.Equal(t, "TKT-ORD-1-0", tickets[0].TicketCode)
	assert.Equal(t, 2, tickets[0].Quantity)
	assert.Equal(t, "ORD-1-1", tickets[1].ID)
	assert.Equal(t, "TKT-ORD-1-1", tickets[1].TicketCode)
	assert.Equal(t, 1, tickets[1].Quantity)

	stored, err := orderRepo.FindByID(context.Background(), "ORD-1")
	require.NoError(t, err)
	assert.Equal(t, models.OrderPaid, stored.Status)
	assert.NotNil(t, stored.PaidAt)
	assert.Equal(t, 2, ticketRepo.count())
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPaymentService_Confirm_SecondCallIssuesNothing(t *testing.T) {
	service, orderRepo, ticketRepo, mock := setupTestPaymentService()
	defer mock.ClearExpect()

	paidableOrder(orderRepo, "ORD-1")

	mock.ExpectSetNX("issued:ORD-1", 1, issuanceClaimTTL).SetVal(true)
	mock.ExpectDel("active_order:sess-1").SetVal(1)

	first, err := service.Confirm(context.Background(), "ORD-1")
	require.NoError(t, err)
	require.Len(t, first, 2)
	savesAfterFirst := ticketRepo.saves

	// Retried callback: the paid branch returns the issued set untouched.
	second, err := service.Confirm(context.Background(), "ORD-1")

	require.NoError(t, err)
	require.Len(t, second, 2)
	assert.Equal(t, first[0].TicketCode, second[0].TicketCode)
	assert.Equal(t, savesAfterFirst, ticketRepo.saves)
	assert.Equal(t, 2, ticketRepo.count())
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPaymentService_Confirm_UnknownOrder(t *testing.T) {
	service, _, _, mock := setupTestPaymentService()
	defer mock.ClearExpect()

	tickets, err := service.Confirm(context.Background(), "ORD-404")

	require.NoError(t, err)
	assert.Nil(t, tickets)
}

func TestPaymentService_Confirm_ExpiredOrder(t *testing.T) {
	service, orderRepo, ticketRepo, mock := setupTestPaymentService()
	defer mock.ClearExpect()

	paidableOrder(orderRepo, "ORD-1")
	stale, _ := orderRepo.FindByID(context.Background(), "ORD-1")
	stale.ExpiresAt = time.Now().Add(-time.Minute)
	orderRepo.Save(context.Background(), stale)

	mock.ExpectHGetAll("reservation:ORD-1").SetVal(map[string]string{})
	mock.ExpectDel("active_order:sess-1").SetVal(1)

	_, err := service.Confirm(context.Background(), "ORD-1")

	assert.ErrorIs(t, err, status.ErrOrderExpired)
	assert.Equal(t, models.OrderExpired, orderRepo.statusOf("ORD-1"))
	assert.Equal(t, 0, ticketRepo.count())
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPaymentService_Confirm_TerminalOrderRejected(t *testing.T) {
	service, orderRepo, ticketRepo, mock := setupTestPaymentService()
	defer mock.ClearExpect()

	paidableOrder(orderRepo, "ORD-1")
	cancelled, _ := orderRepo.FindByID(context.Background(), "ORD-1")
	cancelled.Status = models.OrderCancelled
	orderRepo.Save(context.Background(), cancelled)

	_, err := service.Confirm(context.Background(), "ORD-1")

	assert.ErrorIs(t, err, status.ErrInvalidTransition)
	assert.Equal(t, 0, ticketRepo.count())
}

func TestPaymentService_Confirm_IssuanceFailureGoesToOutbox(t *testing.T) {
	service, orderRepo, ticketRepo, mock := setupTestPaymentService()
	defer mock.ClearExpect()

	paidableOrder(orderRepo, "ORD-1")
	ticketRepo.failSaves = 10 // every attempt fails

	mock.ExpectSetNX("issued:ORD-1", 1, issuanceClaimTTL).SetVal(true)
	mock.ExpectDel("active_order:sess-1").SetVal(1)
	mock.ExpectLPush("issuance_outbox", "ORD-1").SetVal(1)

	_, err := service.Confirm(context.Background(), "ORD-1")

	assert.ErrorIs(t, err, status.ErrIssuanceFault)
	// The order stays paid; the obligation is recorded, not rolled back.
	assert.Equal(t, models.OrderPaid, orderRepo.statusOf("ORD-1"))
	assert.Equal(t, 0, ticketRepo.count())
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPaymentService_Confirm_ResumesPartialIssuance(t *testing.T) {
	service, orderRepo, ticketRepo, mock := setupTestPaymentService()
	defer mock.ClearExpect()

	paidableOrder(orderRepo, "ORD-1")
	// The store hiccups on the second line item's write; the retry must
	// finish the set, not report the partial one as complete.
	ticketRepo.failOnSave = 2

	mock.ExpectSetNX("issued:ORD-1", 1, issuanceClaimTTL).SetVal(true)
	mock.ExpectDel("active_order:sess-1").SetVal(1)

	tickets, err := service.Confirm(context.Background(), "ORD-1")

	require.NoError(t, err)
	require.Len(t, tickets, 2)
	assert.Equal(t, "ORD-1-0", tickets[0].ID)
	assert.Equal(t, "ORD-1-1", tickets[1].ID)
	assert.Equal(t, 2, ticketRepo.count())
	assert.Equal(t, models.OrderPaid, orderRepo.statusOf("ORD-1"))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPaymentService_Confirm_ClaimHeldElsewhere(t *testing.T) {
	service, orderRepo, ticketRepo, mock := setupTestPaymentService()
	defer mock.ClearExpect()

	paidableOrder(orderRepo, "ORD-1")

	mock.ExpectSetNX("issued:ORD-1", 1, issuanceClaimTTL).SetVal(false)

	_, err := service.Confirm(context.Background(), "ORD-1")

	// Still pending with the claim held elsewhere: the caller retries
	// instead of being told the purchase completed with no tickets.
	assert.ErrorIs(t, err, status.ErrConfirmInFlight)
	assert.Equal(t, models.OrderPending, orderRepo.statusOf("ORD-1"))
	assert.Equal(t, 0, ticketRepo.count())
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPaymentService_DrainOutbox_IssuesPendingObligations(t *testing.T) {
	service, orderRepo, ticketRepo, mock := setupTestPaymentService()
	defer mock.ClearExpect()

	paidableOrder(orderRepo, "ORD-1")
	paid, _ := orderRepo.FindByID(context.Background(), "ORD-1")
	paid.Status = models.OrderPaid
	orderRepo.Save(context.Background(), paid)

	mock.ExpectRPop("issuance_outbox").SetVal("ORD-1")
	mock.ExpectRPop("issuance_outbox").RedisNil()

	service.drainOutbox(context.Background())

	assert.Equal(t, 2, ticketRepo.count())
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPaymentService_Cancel_PendingOrder(t *testing.T) {
	service, orderRepo, ticketRepo, mock := setupTestPaymentService()
	defer mock.ClearExpect()

	paidableOrder(orderRepo, "ORD-1")

	mock.ExpectDel("active_order:sess-1").SetVal(1)
	mock.ExpectHGetAll("reservation:ORD-1").SetVal(map[string]string{
		"event_id": "event-1",
		"qty:VIP":  "2",
	})
	mock.ExpectIncrBy("stock:event-1:VIP", 2).SetVal(5)
	mock.ExpectDel("reservation:ORD-1").SetVal(1)

	err := service.Cancel(context.Background(), "ORD-1")

	require.NoError(t, err)
	assert.Empty(t, orderRepo.orders)
	assert.Equal(t, 0, ticketRepo.count())
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPaymentService_Cancel_PaidOrderRejected(t *testing.T) {
	service, orderRepo, _, mock := setupTestPaymentService()
	defer mock.ClearExpect()

	paidableOrder(orderRepo, "ORD-1")
	paid, _ := orderRepo.FindByID(context.Background(), "ORD-1")
	paid.Status = models.OrderPaid
	orderRepo.Save(context.Background(), paid)

	err := service.Cancel(context.Background(), "ORD-1")

	assert.ErrorIs(t, err, status.ErrInvalidTransition)
	assert.Equal(t, models.OrderPaid, orderRepo.statusOf("ORD-1"))
}

func TestPaymentService_Cancel_ExpiredPendingFlipsFirst(t *testing.T) {
	service, orderRepo, _, mock := setupTestPaymentService()
	defer mock.ClearExpect()

	paidableOrder(orderRepo, "ORD-1")
	stale, _ := orderRepo.FindByID(context.Background(), "ORD-1")
	stale.ExpiresAt = time.Now().Add(-time.Minute)
	orderRepo.Save(context.Background(), stale)

	mock.ExpectHGetAll("reservation:ORD-1").SetVal(map[string]string{})
	mock.ExpectDel("active_order:sess-1").SetVal(1)

	err := service.Cancel(context.Background(), "ORD-1")

	assert.ErrorIs(t, err, status.ErrInvalidTransition)
	// The row records expiry, not cancellation.
	assert.Equal(t, models.OrderExpired, orderRepo.statusOf("ORD-1"))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPaymentService_Cancel_UnknownOrderIsNoop(t *testing.T) {
	service, _, _, mock := setupTestPaymentService()
	defer mock.ClearExpect()

	require.NoError(t, service.Cancel(context.Background(), "ORD-404"))
}
