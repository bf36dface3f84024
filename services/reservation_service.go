package services

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"strconv"
	"time"

	"kartcis-core/internal/status"

	"github.com/redis/go-redis/v9"
)

// ReservationService maintains the inventory hold ledger. Stock counters
// are decremented when an order is created and restored when the order
// expires or is cancelled, so two sessions cannot hold the same unit.
type ReservationService struct {
	Redis *redis.Client
	ttl   time.Duration
}

// NewReservationService creates the ledger. ttl bounds how long a
// reservation record may outlive its order before the expiry sweep
// must have released it.
func NewReservationService(redisClient *redis.Client, ttl time.Duration) *ReservationService {
	return &ReservationService{Redis: redisClient, ttl: ttl}
}

func stockKey(eventID, ticketTypeID string) string {
	return fmt.Sprintf("stock:%s:%s", eventID, ticketTypeID)
}

func reservationKey(orderID string) string {
	return fmt.Sprintf("reservation:%s", orderID)
}

// SeedStock initializes stock counters from a catalog snapshot. Existing
// counters are left alone so in-flight reservations are not clobbered.
func (s *ReservationService) SeedStock(ctx context.Context, eventID string, available map[string]int) error {
	for ticketTypeID, count := range available {
		if err := s.Redis.SetNX(ctx, stockKey(eventID, ticketTypeID), count, 0).Err(); err != nil {
			return fmt.Errorf("%w: %v", status.ErrStorageFault, err)
		}
	}
	return nil
}

// Reserve atomically decrements stock for every line of the order. A
// counter driven negative means another session won the race; everything
// decremented so far is compensated and ErrInsufficientStock returned.
func (s *ReservationService) Reserve(ctx context.Context, orderID, eventID string, quantities map[string]int) error {
	ids := make([]string, 0, len(quantities))
	for ticketTypeID, quantity := range quantities {
		if quantity > 0 {
			ids = append(ids, ticketTypeID)
		}
	}
	sort.Strings(ids)

	reserved := make([]string, 0, len(ids))
	for _, ticketTypeID := range ids {
		quantity := quantities[ticketTypeID]
		key := stockKey(eventID, ticketTypeID)

		remaining, err := s.Redis.DecrBy(ctx, key, int64(quantity)).Result()
		if err != nil {
			s.compensate(ctx, eventID, reserved, quantities)
			return fmt.Errorf("%w: %v", status.ErrStorageFault, err)
		}
		if remaining < 0 {
			s.Redis.IncrBy(ctx, key, int64(quantity))
			s.compensate(ctx, eventID, reserved, quantities)
			return status.ErrInsufficientStock
		}

		reserved = append(reserved, ticketTypeID)
	}

	resKey := reservationKey(orderID)
	fields := []any{"event_id", eventID}
	for _, ticketTypeID := range ids {
		fields = append(fields, "qty:"+ticketTypeID, quantities[ticketTypeID])
	}
	if err := s.Redis.HSet(ctx, resKey, fields...).Err(); err != nil {
		s.compensate(ctx, eventID, reserved, quantities)
		return fmt.Errorf("%w: %v", status.ErrStorageFault, err)
	}
	s.Redis.Expire(ctx, resKey, s.ttl)

	return nil
}

// Release restores the stock held by an order. Releasing an unknown or
// already-released order is a no-op.
func (s *ReservationService) Release(ctx context.Context, orderID string) error {
	resKey := reservationKey(orderID)

	fields, err := s.Redis.HGetAll(ctx, resKey).Result()
	if err != nil {
		return fmt.Errorf("%w: %v", status.ErrStorageFault, err)
	}
	if len(fields) == 0 {
		return nil
	}

	eventID := fields["event_id"]
	for field, raw := range fields {
		if len(field) <= 4 || field[:4] != "qty:" {
			continue
		}
		quantity, err := strconv.Atoi(raw)
		if err != nil || quantity <= 0 {
			continue
		}
		if err := s.Redis.IncrBy(ctx, stockKey(eventID, field[4:]), int64(quantity)).Err(); err != nil {
			slog.Error("failed to restore stock", "order_id", orderID, "ticket_type", field[4:], "error", err)
		}
	}

	if err := s.Redis.Del(ctx, resKey).Err(); err != nil {
		return fmt.Errorf("%w: %v", status.ErrStorageFault, err)
	}

	return nil
}

// Stock reports the remaining reservable count for one ticket type.
func (s *ReservationService) Stock(ctx context.Context, eventID, ticketTypeID string) (int, error) {
	count, err := s.Redis.Get(ctx, stockKey(eventID, ticketTypeID)).Int()
	if err == redis.Nil {
		return 0, nil
	}
	if err != nil {
		return 0, fmt.Errorf("%w: %v", status.ErrStorageFault, err)
	}
	return count, nil
}

func (s *ReservationService) compensate(ctx context.Context, eventID string, reserved []string, quantities map[string]int) {
	for _, ticketTypeID := range reserved {
		s.Redis.IncrBy(ctx, stockKey(eventID, ticketTypeID), int64(quantities[ticketTypeID]))
	}
}
