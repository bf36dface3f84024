package services

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"kartcis-core/internal/status"
	"kartcis-core/models"

	"github.com/redis/go-redis/v9"
	"github.com/shopspring/decimal"
)

// SelectionService tracks a session's in-progress ticket quantity picks.
// State lives in a Redis hash per session and never touches the order store.
type SelectionService struct {
	Redis      *redis.Client
	ttl        time.Duration
	maxPerType int
}

func NewSelectionService(redisClient *redis.Client, ttl time.Duration, maxPerType int) *SelectionService {
	return &SelectionService{
		Redis:      redisClient,
		ttl:        ttl,
		maxPerType: maxPerType,
	}
}

func selectionKey(sessionID string) string {
	return fmt.Sprintf("selection:%s", sessionID)
}

// Adjust applies a quantity delta for one ticket type, clamped into
// [0, available]. A result of zero removes the entry instead of storing it.
func (s *SelectionService) Adjust(ctx context.Context, sessionID string, event *models.Event, ticketTypeID string, delta int) (int, error) {
	if !event.OpenForSale() {
		return 0, status.ErrSelectionClosed
	}

	ticketType, ok := event.TicketType(ticketTypeID)
	if !ok {
		return 0, fmt.Errorf("unknown ticket type %q for event %s", ticketTypeID, event.ID)
	}

	key := selectionKey(sessionID)

	current, err := s.Redis.HGet(ctx, key, ticketTypeID).Int()
	if err != nil && err != redis.Nil {
		return 0, fmt.Errorf("%w: %v", status.ErrStorageFault, err)
	}

	quantity := current + delta
	if quantity < 0 {
		quantity = 0
	}
	limit := ticketType.Available
	if s.maxPerType > 0 && s.maxPerType < limit {
		limit = s.maxPerType
	}
	if quantity > limit {
		quantity = limit
	}

	if quantity == 0 {
		if err := s.Redis.HDel(ctx, key, ticketTypeID).Err(); err != nil {
			return 0, fmt.Errorf("%w: %v", status.ErrStorageFault, err)
		}
		return 0, nil
	}

	if err := s.Redis.HSet(ctx, key, ticketTypeID, quantity).Err(); err != nil {
		return 0, fmt.Errorf("%w: %v", status.ErrStorageFault, err)
	}
	s.Redis.Expire(ctx, key, s.ttl)

	return quantity, nil
}

// Get returns the session's selection as ticket-type id -> quantity.
func (s *SelectionService) Get(ctx context.Context, sessionID string) (map[string]int, error) {
	fields, err := s.Redis.HGetAll(ctx, selectionKey(sessionID)).Result()
	if err != nil {
		return nil, fmt.Errorf("%w: %v", status.ErrStorageFault, err)
	}

	selection := make(map[string]int, len(fields))
	for id, raw := range fields {
		quantity, err := strconv.Atoi(raw)
		if err != nil || quantity <= 0 {
			continue
		}
		selection[id] = quantity
	}

	return selection, nil
}

// TotalQuantity is the sum of all selected quantities.
func (s *SelectionService) TotalQuantity(ctx context.Context, sessionID string) (int, error) {
	selection, err := s.Get(ctx, sessionID)
	if err != nil {
		return 0, err
	}

	total := 0
	for _, quantity := range selection {
		total += quantity
	}
	return total, nil
}

// TotalPrice sums quantity x current price for every entry resolvable
// against the event snapshot. The original price is never used here.
func (s *SelectionService) TotalPrice(ctx context.Context, sessionID string, event *models.Event) (decimal.Decimal, error) {
	selection, err := s.Get(ctx, sessionID)
	if err != nil {
		return decimal.Zero, err
	}

	total := decimal.Zero
	for id, quantity := range selection {
		ticketType, ok := event.TicketType(id)
		if !ok {
			continue
		}
		total = total.Add(ticketType.Price.Mul(decimal.NewFromInt(int64(quantity))))
	}

	return total, nil
}

// Clear drops the session's selection, e.g. after a successful checkout.
func (s *SelectionService) Clear(ctx context.Context, sessionID string) error {
	if err := s.Redis.Del(ctx, selectionKey(sessionID)).Err(); err != nil {
		return fmt.Errorf("%w: %v", status.ErrStorageFault, err)
	}
	return nil
}
