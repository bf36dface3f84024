package monitoring

import (
	"context"
	"strings"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/redis/go-redis/v9"
)

var (
	ordersCreated = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "orders_created_total",
			Help: "Total pending orders created",
		},
	)

	orderTransitions = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "order_status_transitions_total",
			Help: "Total order status transitions",
		},
		[]string{"from", "to"},
	)

	ticketsIssued = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "tickets_issued_total",
			Help: "Total ticket records issued",
		},
	)

	issuanceFailures = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "issuance_failures_total",
			Help: "Ticket issuance attempts that failed after payment",
		},
	)

	reservableStock = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "reservable_stock",
			Help: "Remaining reservable units per event and ticket type",
		},
		[]string{"event_id", "ticket_type_id"},
	)

	confirmDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "payment_confirm_duration_seconds",
			Help:    "Duration of payment confirmation including issuance",
			Buckets: prometheus.ExponentialBuckets(0.005, 2, 12),
		},
	)
)

func TrackOrderCreated() {
	ordersCreated.Inc()
}

func TrackOrderTransition(from, to string) {
	orderTransitions.WithLabelValues(from, to).Inc()
}

func TrackTicketsIssued(count int) {
	ticketsIssued.Add(float64(count))
}

func TrackIssuanceFailure() {
	issuanceFailures.Inc()
}

func ObserveConfirmDuration(d time.Duration) {
	confirmDuration.Observe(d.Seconds())
}

type Monitor struct {
	redis *redis.Client
}

func NewMonitor(redisClient *redis.Client) *Monitor {
	return &Monitor{redis: redisClient}
}

// CollectStock periodically samples the reservation ledger's stock
// counters into the stock gauge.
func (m *Monitor) CollectStock(ctx context.Context, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			m.sampleStock(ctx)
		}
	}
}

func (m *Monitor) sampleStock(ctx context.Context) {
	keys, err := m.redis.Keys(ctx, "stock:*").Result()
	if err != nil {
		return
	}

	for _, key := range keys {
		// stock:{eventID}:{ticketTypeID}
		parts := strings.SplitN(key, ":", 3)
		if len(parts) != 3 {
			continue
		}

		count, err := m.redis.Get(ctx, key).Int()
		if err != nil {
			continue
		}
		reservableStock.WithLabelValues(parts[1], parts[2]).Set(float64(count))
	}
}
