package services

import (
	"context"
	"errors"
	"sort"
	"sync"
	"time"

	"kartcis-core/models"
)

// fakeOrderRepo is an in-memory OrderRepository for service tests.
type fakeOrderRepo struct {
	mu     sync.Mutex
	orders map[string]models.PendingOrder
	saves  int
}

func newFakeOrderRepo() *fakeOrderRepo {
	return &fakeOrderRepo{orders: make(map[string]models.PendingOrder)}
}

func (r *fakeOrderRepo) Save(ctx context.Context, order *models.PendingOrder) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.orders[order.ID] = *order
	r.saves++
	return nil
}

func (r *fakeOrderRepo) FindByID(ctx context.Context, orderID string) (*models.PendingOrder, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	order, ok := r.orders[orderID]
	if !ok {
		return nil, nil
	}
	copied := order
	return &copied, nil
}

func (r *fakeOrderRepo) FindExpiredPending(ctx context.Context, cutoff time.Time, limit int) ([]*models.PendingOrder, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	ids := make([]string, 0, len(r.orders))
	for id, order := range r.orders {
		if order.Status == models.OrderPending && order.ExpiresAt.Before(cutoff) {
			ids = append(ids, id)
		}
	}
	sort.Strings(ids)

	expired := make([]*models.PendingOrder, 0, len(ids))
	for _, id := range ids {
		if limit > 0 && len(expired) >= limit {
			break
		}
		copied := r.orders[id]
		expired = append(expired, &copied)
	}
	return expired, nil
}

func (r *fakeOrderRepo) Delete(ctx context.Context, orderID string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.orders, orderID)
	return nil
}

func (r *fakeOrderRepo) statusOf(orderID string) string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.orders[orderID].Status
}

// fakeTicketRepo is an in-memory TicketRepository. Setting failSaves makes
// the next N Save calls fail; failOnSave fails exactly the Nth call
// (1-based), simulating a transient fault mid-issuance.
type fakeTicketRepo struct {
	mu         sync.Mutex
	tickets    map[string]models.Ticket
	failSaves  int
	failOnSave int
	saves      int
}

func newFakeTicketRepo() *fakeTicketRepo {
	return &fakeTicketRepo{tickets: make(map[string]models.Ticket)}
}

func (r *fakeTicketRepo) Save(ctx context.Context, ticket *models.Ticket) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.saves++
	if r.failSaves > 0 {
		r.failSaves--
		return errors.New("ticket store unavailable")
	}
	if r.failOnSave != 0 && r.saves == r.failOnSave {
		return errors.New("ticket store unavailable")
	}
	r.tickets[ticket.ID] = *ticket
	return nil
}

func (r *fakeTicketRepo) FindByID(ctx context.Context, ticketID string) (*models.Ticket, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	ticket, ok := r.tickets[ticketID]
	if !ok {
		return nil, nil
	}
	copied := ticket
	return &copied, nil
}

func (r *fakeTicketRepo) FindByOrder(ctx context.Context, orderID string) ([]models.Ticket, error) {
	return r.filter(func(t models.Ticket) bool { return t.OrderID == orderID })
}

func (r *fakeTicketRepo) FindByUser(ctx context.Context, userID string) ([]models.Ticket, error) {
	return r.filter(func(t models.Ticket) bool { return t.UserID == userID })
}

func (r *fakeTicketRepo) FindByEvent(ctx context.Context, eventID string) ([]models.Ticket, error) {
	return r.filter(func(t models.Ticket) bool { return t.EventID == eventID })
}

func (r *fakeTicketRepo) filter(keep func(models.Ticket) bool) ([]models.Ticket, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	matched := make([]models.Ticket, 0)
	for _, ticket := range r.tickets {
		if keep(ticket) {
			matched = append(matched, ticket)
		}
	}
	sort.Slice(matched, func(i, j int) bool { return matched[i].ID < matched[j].ID })
	return matched, nil
}

func (r *fakeTicketRepo) count() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.tickets)
}
