package services

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"kartcis-core/internal/status"
	"kartcis-core/models"
	"kartcis-core/monitoring"
	"kartcis-core/utils"

	"github.com/redis/go-redis/v9"
	"github.com/shopspring/decimal"
)

// orderTransitions is the full legal transition table. pending is the only
// non-terminal state; everything else rejects further movement.
var orderTransitions = map[string][]string{
	models.OrderPending: {models.OrderPaid, models.OrderExpired, models.OrderCancelled},
}

// CanTransition reports whether from -> to is a legal order status move.
func CanTransition(from, to string) bool {
	for _, allowed := range orderTransitions[from] {
		if allowed == to {
			return true
		}
	}
	return false
}

// OrderService owns pending orders: creation from a selection, the single
// active-order slot per session, lazy expiry, and status movement.
type OrderService struct {
	Redis        *redis.Client
	repo         OrderRepository
	reservations *ReservationService
	holdWindow   time.Duration
	newOrderID   func() (string, error)

	locks sync.Map // order id -> *sync.Mutex
}

func NewOrderService(redisClient *redis.Client, repo OrderRepository, reservations *ReservationService, holdWindow time.Duration) *OrderService {
	return &OrderService{
		Redis:        redisClient,
		repo:         repo,
		reservations: reservations,
		holdWindow:   holdWindow,
		newOrderID:   utils.NewOrderNumber,
	}
}

func activeOrderKey(sessionID string) string {
	return fmt.Sprintf("active_order:%s", sessionID)
}

// lockFor returns the single-owner mutex for an order id. Every status
// transition for one order runs under this lock.
func (s *OrderService) lockFor(orderID string) *sync.Mutex {
	mu, _ := s.locks.LoadOrStore(orderID, &sync.Mutex{})
	return mu.(*sync.Mutex)
}

// Create materializes a pending order from a selection. Ticket-type ids
// with no match in the event snapshot are skipped, not errored: the
// client's snapshot may be stale. Line items follow catalog order so the
// derived ticket ids are stable.
func (s *OrderService) Create(ctx context.Context, userID, sessionID string, selection map[string]int, event *models.Event, customer models.Customer) (*models.PendingOrder, error) {
	items := make([]models.LineItem, 0, len(selection))
	quantities := make(map[string]int, len(selection))
	total := decimal.Zero

	for _, ticketType := range event.TicketTypes {
		quantity := selection[ticketType.ID]
		if quantity <= 0 {
			continue
		}

		item := models.LineItem{
			EventID:    event.ID,
			EventTitle: event.Title,
			EventDate:  event.Date,
			EventTime:  event.Time,
			Venue:      event.Venue,
			City:       event.City,
			EventImage: event.Image,
			TicketType: ticketType.Name,
			Quantity:   quantity,
			UnitPrice:  ticketType.Price,
		}
		items = append(items, item)
		quantities[ticketType.ID] = quantity
		total = total.Add(item.Subtotal())
	}

	if len(items) == 0 {
		return nil, status.ErrEmptySelection
	}

	orderID, err := s.newOrderID()
	if err != nil {
		return nil, fmt.Errorf("mint order number: %w", err)
	}

	if err := s.reservations.Reserve(ctx, orderID, event.ID, quantities); err != nil {
		return nil, err
	}

	if err := s.claimActiveSlot(ctx, sessionID, orderID); err != nil {
		s.reservations.Release(ctx, orderID)
		return nil, err
	}

	now := time.Now()
	order := &models.PendingOrder{
		ID:            orderID,
		UserID:        userID,
		SessionID:     sessionID,
		CustomerName:  customer.Name,
		CustomerEmail: customer.Email,
		CustomerPhone: customer.Phone,
		Items:         items,
		TotalAmount:   total,
		Status:        models.OrderPending,
		CreatedAt:     now,
		ExpiresAt:     now.Add(s.holdWindow),
	}

	if err := s.repo.Save(ctx, order); err != nil {
		s.reservations.Release(ctx, orderID)
		s.Redis.Del(ctx, activeOrderKey(sessionID))
		return nil, fmt.Errorf("%w: %v", status.ErrStorageFault, err)
	}

	monitoring.TrackOrderCreated()

	return order, nil
}

// claimActiveSlot enforces one active pending order per session with a
// compare-and-swap on the session slot, never read-then-write. A slot
// pointing at a dead order self-heals.
func (s *OrderService) claimActiveSlot(ctx context.Context, sessionID, orderID string) error {
	key := activeOrderKey(sessionID)

	claimed, err := s.Redis.SetNX(ctx, key, orderID, s.holdWindow).Result()
	if err != nil {
		return fmt.Errorf("%w: %v", status.ErrStorageFault, err)
	}
	if claimed {
		return nil
	}

	holder, err := s.Redis.Get(ctx, key).Result()
	if err != nil && err != redis.Nil {
		return fmt.Errorf("%w: %v", status.ErrStorageFault, err)
	}

	if holder != "" {
		existing, err := s.repo.FindByID(ctx, holder)
		if err != nil {
			return fmt.Errorf("%w: %v", status.ErrStorageFault, err)
		}
		if existing != nil && existing.Active(time.Now()) {
			return status.ErrActiveOrderExists
		}
		if existing != nil && existing.Status == models.OrderPending {
			// Stored status lags the clock. Flip it before stealing the
			// slot, under the stale order's own lock.
			mu := s.lockFor(existing.ID)
			mu.Lock()
			s.expireLocked(ctx, existing)
			mu.Unlock()
		}
	}

	s.Redis.Del(ctx, key)
	claimed, err = s.Redis.SetNX(ctx, key, orderID, s.holdWindow).Result()
	if err != nil {
		return fmt.Errorf("%w: %v", status.ErrStorageFault, err)
	}
	if !claimed {
		return status.ErrActiveOrderExists
	}
	return nil
}

// GetActive returns the session's current pending, non-expired order.
// An order past its hold window is flipped to expired on this read and
// reported as absent.
func (s *OrderService) GetActive(ctx context.Context, sessionID string) (*models.PendingOrder, error) {
	key := activeOrderKey(sessionID)

	orderID, err := s.Redis.Get(ctx, key).Result()
	if err == redis.Nil {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("%w: %v", status.ErrStorageFault, err)
	}

	order, err := s.GetByID(ctx, orderID)
	if err != nil {
		return nil, err
	}
	if order == nil || !order.Active(time.Now()) {
		s.Redis.Del(ctx, key)
		return nil, nil
	}

	return order, nil
}

// GetByID loads one order. Readers self-correct: a pending order past its
// expiry is transitioned before being returned. Absence is (nil, nil).
func (s *OrderService) GetByID(ctx context.Context, orderID string) (*models.PendingOrder, error) {
	order, err := s.repo.FindByID(ctx, orderID)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", status.ErrStorageFault, err)
	}
	if order == nil {
		return nil, nil
	}

	if order.Status == models.OrderPending && order.Expired(time.Now()) {
		mu := s.lockFor(orderID)
		mu.Lock()
		s.expireLocked(ctx, order)
		mu.Unlock()
	}

	return order, nil
}

// UpdateStatus moves an order forward through the transition table.
// Transitions out of a terminal state are rejected, and paid stamps the
// payment timestamp.
func (s *OrderService) UpdateStatus(ctx context.Context, orderID, newStatus string) (*models.PendingOrder, error) {
	order, err := s.repo.FindByID(ctx, orderID)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", status.ErrStorageFault, err)
	}
	if order == nil {
		return nil, nil
	}

	if !CanTransition(order.Status, newStatus) {
		return nil, fmt.Errorf("%w: %s -> %s", status.ErrInvalidTransition, order.Status, newStatus)
	}

	previous := order.Status
	order.Status = newStatus
	if newStatus == models.OrderPaid {
		now := time.Now()
		order.PaidAt = &now
	}

	if err := s.repo.Save(ctx, order); err != nil {
		return nil, fmt.Errorf("%w: %v", status.ErrStorageFault, err)
	}

	monitoring.TrackOrderTransition(previous, newStatus)

	return order, nil
}

// Remove hard-deletes an order, clears its session slot, and returns its
// inventory hold. Used for explicit user cancellation only.
func (s *OrderService) Remove(ctx context.Context, orderID string) error {
	order, err := s.repo.FindByID(ctx, orderID)
	if err != nil {
		return fmt.Errorf("%w: %v", status.ErrStorageFault, err)
	}
	if order == nil {
		return nil
	}

	if err := s.repo.Delete(ctx, orderID); err != nil {
		return fmt.Errorf("%w: %v", status.ErrStorageFault, err)
	}

	s.Redis.Del(ctx, activeOrderKey(order.SessionID))
	return s.reservations.Release(ctx, orderID)
}

// RunExpirySweep periodically flips stale pending rows so they don't
// accumulate while nobody reads them. Lazy read-time expiry remains the
// first line of defense.
func (s *OrderService) RunExpirySweep(ctx context.Context, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			swept, err := s.SweepExpired(ctx)
			if err != nil {
				slog.Error("expiry sweep failed", "error", err)
				continue
			}
			if swept > 0 {
				slog.Info("expired stale pending orders", "count", swept)
			}
		}
	}
}

// SweepExpired expires every pending order past its hold window and
// returns how many were flipped.
func (s *OrderService) SweepExpired(ctx context.Context) (int, error) {
	orders, err := s.repo.FindExpiredPending(ctx, time.Now(), 100)
	if err != nil {
		return 0, fmt.Errorf("%w: %v", status.ErrStorageFault, err)
	}

	swept := 0
	for _, order := range orders {
		mu := s.lockFor(order.ID)
		mu.Lock()
		// Re-read under the lock; a confirm may have won the race.
		current, err := s.repo.FindByID(ctx, order.ID)
		if err == nil && current != nil && current.Status == models.OrderPending {
			s.expireLocked(ctx, current)
			swept++
		}
		mu.Unlock()
	}

	return swept, nil
}

// expireLocked transitions a pending order to expired and returns its
// hold. Callers hold the order lock.
func (s *OrderService) expireLocked(ctx context.Context, order *models.PendingOrder) {
	order.Status = models.OrderExpired
	if err := s.repo.Save(ctx, order); err != nil {
		slog.Error("failed to persist expiry", "order_id", order.ID, "error", err)
		return
	}
	monitoring.TrackOrderTransition(models.OrderPending, models.OrderExpired)

	if err := s.reservations.Release(ctx, order.ID); err != nil {
		slog.Error("failed to release reservation on expiry", "order_id", order.ID, "error", err)
	}
	s.Redis.Del(ctx, activeOrderKey(order.SessionID))
}
