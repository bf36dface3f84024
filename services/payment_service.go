package services

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"log/slog"
	"time"

	"kartcis-core/config"
	"kartcis-core/internal/status"
	"kartcis-core/models"
	"kartcis-core/monitoring"
	"kartcis-core/utils"

	pubnub "github.com/pubnub/go/v7"
	"github.com/redis/go-redis/v9"
)

const (
	paymentChannel = "payment-notifications"
	outboxKey      = "issuance_outbox"

	// issuanceClaimTTL bounds how long a crashed claimant can wedge an
	// order: once the key expires, a retried confirmation re-claims it.
	// A claim that outlives a successful confirm is harmless, since the
	// paid branch answers before the claim is consulted.
	issuanceClaimTTL = time.Hour
)

// PaymentService drives the order state machine. Confirmation events come
// in over PubNub or the webhook handler; both funnel into Confirm, which
// is idempotent per order id.
type PaymentService struct {
	Redis   *redis.Client
	PubNub  *pubnub.PubNub
	orders  *OrderService
	tickets *TicketService
	breaker *utils.CircuitBreaker
	cfg     *config.Config
}

func NewPaymentService(redisClient *redis.Client, pn *pubnub.PubNub, orders *OrderService, tickets *TicketService, cfg *config.Config) *PaymentService {
	service := &PaymentService{
		Redis:   redisClient,
		PubNub:  pn,
		orders:  orders,
		tickets: tickets,
		breaker: utils.NewCircuitBreaker("ticket-issuance"),
		cfg:     cfg,
	}

	if pn != nil {
		go service.SubscribeToPaymentNotifications()
	}

	return service
}

func issuanceKey(orderID string) string {
	return fmt.Sprintf("issued:%s", orderID)
}

func (s *PaymentService) SubscribeToPaymentNotifications() {
	listener := pubnub.NewListener()

	s.PubNub.AddListener(listener)
	s.PubNub.Subscribe().
		Channels([]string{paymentChannel}).
		Execute()

	for message := range listener.Message {
		go s.handlePaymentNotification(message)
	}
}

func (s *PaymentService) handlePaymentNotification(message *pubnub.PNMessage) {
	var notification struct {
		OrderID string `json:"order_id"`
		Status  string `json:"status"`
	}

	data, ok := message.Message.(map[string]any)
	if !ok {
		return
	}

	jsonData, _ := json.Marshal(data)
	if err := json.Unmarshal(jsonData, &notification); err != nil {
		log.Printf("Error parsing payment notification: %v", err)
		return
	}

	if notification.Status != "success" {
		return
	}

	ctx := context.Background()
	if _, err := s.Confirm(ctx, notification.OrderID); err != nil {
		slog.Error("payment confirmation failed", "order_id", notification.OrderID, "error", err)
	}
}

// Confirm moves a pending order to paid and issues its tickets exactly
// once. A repeat confirmation for the same order id is a no-op returning
// the already-issued tickets. Issuance failure leaves the order paid,
// records the obligation in the outbox, and surfaces ErrIssuanceFault.
func (s *PaymentService) Confirm(ctx context.Context, orderID string) ([]models.Ticket, error) {
	started := time.Now()
	defer func() { monitoring.ObserveConfirmDuration(time.Since(started)) }()

	mu := s.orders.lockFor(orderID)
	mu.Lock()
	defer mu.Unlock()

	order, err := s.orders.repo.FindByID(ctx, orderID)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", status.ErrStorageFault, err)
	}
	if order == nil {
		slog.Warn("confirmation for unknown order", "order_id", orderID)
		return nil, nil
	}

	switch order.Status {
	case models.OrderPaid:
		// Retried callback after a successful confirm.
		return s.tickets.repo.FindByOrder(ctx, orderID)
	case models.OrderExpired, models.OrderCancelled:
		return nil, fmt.Errorf("%w: %s -> %s", status.ErrInvalidTransition, order.Status, models.OrderPaid)
	}

	if order.Expired(time.Now()) {
		// Lazy expiry at read time; the confirmation lost to the clock.
		s.orders.expireLocked(ctx, order)
		return nil, status.ErrOrderExpired
	}

	claimed, err := s.Redis.SetNX(ctx, issuanceKey(orderID), 1, issuanceClaimTTL).Result()
	if err != nil {
		return nil, fmt.Errorf("%w: %v", status.ErrStorageFault, err)
	}
	if !claimed {
		// The order is still pending but the claim is held elsewhere:
		// another instance is mid-confirm, or a claimant crashed before
		// committing. The caller retries; success is never reported
		// without an issued set.
		return nil, status.ErrConfirmInFlight
	}

	order, err = s.orders.UpdateStatus(ctx, orderID, models.OrderPaid)
	if err != nil {
		s.Redis.Del(ctx, issuanceKey(orderID))
		return nil, err
	}

	s.Redis.Del(ctx, activeOrderKey(order.SessionID))

	tickets, err := s.issueWithRetry(ctx, order)
	if err != nil {
		monitoring.TrackIssuanceFailure()
		if pushErr := s.Redis.LPush(ctx, outboxKey, orderID).Err(); pushErr != nil {
			slog.Error("failed to record issuance obligation", "order_id", orderID, "error", pushErr)
		}
		return nil, fmt.Errorf("%w: order %s: %v", status.ErrIssuanceFault, orderID, err)
	}

	s.notifyPaymentSuccess(order, len(tickets))

	return tickets, nil
}

// issueWithRetry awaits the durable issuance write with a bounded timeout
// per attempt, retrying transient failures through the circuit breaker.
func (s *PaymentService) issueWithRetry(ctx context.Context, order *models.PendingOrder) ([]models.Ticket, error) {
	var tickets []models.Ticket
	var lastErr error

	for attempt := 0; attempt < s.cfg.IssuanceRetries; attempt++ {
		if attempt > 0 {
			time.Sleep(time.Duration(attempt) * 100 * time.Millisecond)
		}

		attemptCtx, cancel := context.WithTimeout(ctx, s.cfg.IssuanceTimeout)
		lastErr = s.breaker.Execute(attemptCtx, func() error {
			var issueErr error
			tickets, issueErr = s.tickets.Issue(attemptCtx, order)
			return issueErr
		})
		cancel()

		if lastErr == nil {
			return tickets, nil
		}
		if errors.Is(lastErr, utils.ErrBreakerOpen) {
			break
		}
	}

	return nil, lastErr
}

// Cancel handles explicit user cancellation: legal only while pending.
// The order leaves the active slot immediately and its hold is returned.
func (s *PaymentService) Cancel(ctx context.Context, orderID string) error {
	mu := s.orders.lockFor(orderID)
	mu.Lock()
	defer mu.Unlock()

	order, err := s.orders.repo.FindByID(ctx, orderID)
	if err != nil {
		return fmt.Errorf("%w: %v", status.ErrStorageFault, err)
	}
	if order == nil {
		return nil
	}

	if order.Status != models.OrderPending {
		return fmt.Errorf("%w: %s -> %s", status.ErrInvalidTransition, order.Status, models.OrderCancelled)
	}

	if order.Expired(time.Now()) {
		s.orders.expireLocked(ctx, order)
		return fmt.Errorf("%w: %s -> %s", status.ErrInvalidTransition, models.OrderExpired, models.OrderCancelled)
	}

	monitoring.TrackOrderTransition(models.OrderPending, models.OrderCancelled)

	return s.orders.Remove(ctx, orderID)
}

// RetryIssuanceOutbox drains recorded issuance obligations until each
// durable write is acknowledged.
func (s *PaymentService) RetryIssuanceOutbox(ctx context.Context, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			s.drainOutbox(ctx)
		}
	}
}

func (s *PaymentService) drainOutbox(ctx context.Context) {
	for {
		orderID, err := s.Redis.RPop(ctx, outboxKey).Result()
		if err == redis.Nil {
			return
		}
		if err != nil {
			slog.Error("outbox read failed", "error", err)
			return
		}

		order, err := s.orders.GetByID(ctx, orderID)
		if err != nil || order == nil || order.Status != models.OrderPaid {
			if err != nil {
				s.Redis.LPush(ctx, outboxKey, orderID)
			}
			continue
		}

		tickets, err := s.tickets.Issue(ctx, order)
		if err != nil {
			slog.Error("outbox issuance retry failed", "order_id", orderID, "error", err)
			s.Redis.LPush(ctx, outboxKey, orderID)
			return
		}

		slog.Info("issued tickets from outbox", "order_id", orderID, "tickets", len(tickets))
		s.notifyPaymentSuccess(order, len(tickets))
	}
}

func (s *PaymentService) notifyPaymentSuccess(order *models.PendingOrder, ticketCount int) {
	if s.PubNub == nil {
		return
	}

	channel := fmt.Sprintf("user-%s", order.UserID)
	s.PubNub.Publish().
		Channel(channel).
		Message(map[string]any{
			"type":     "payment_success",
			"order_id": order.ID,
			"tickets":  ticketCount,
		}).
		Execute()
}
