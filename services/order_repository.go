package services

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"kartcis-core/models"

	"github.com/pocketbase/dbx"
	"github.com/pocketbase/pocketbase/core"
	"github.com/shopspring/decimal"
)

// OrderRepository is the durable record of orders in flight. Absent rows
// are (nil, nil), not errors; only real storage faults surface as errors.
type OrderRepository interface {
	Save(ctx context.Context, order *models.PendingOrder) error
	FindByID(ctx context.Context, orderID string) (*models.PendingOrder, error)
	FindExpiredPending(ctx context.Context, cutoff time.Time, limit int) ([]*models.PendingOrder, error)
	Delete(ctx context.Context, orderID string) error
}

type pbOrderRepository struct {
	app core.App
}

func NewOrderRepository(app core.App) OrderRepository {
	return &pbOrderRepository{app: app}
}

func (r *pbOrderRepository) Save(ctx context.Context, order *models.PendingOrder) error {
	record, err := r.app.FindFirstRecordByData("orders", "order_number", order.ID)
	if err != nil {
		if !errors.Is(err, sql.ErrNoRows) {
			return err
		}
		collection, err := r.app.FindCollectionByNameOrId("orders")
		if err != nil {
			return err
		}
		record = core.NewRecord(collection)
	}

	items, err := json.Marshal(order.Items)
	if err != nil {
		return fmt.Errorf("encode order items: %w", err)
	}

	record.Set("order_number", order.ID)
	record.Set("user_id", order.UserID)
	record.Set("session_id", order.SessionID)
	record.Set("customer_name", order.CustomerName)
	record.Set("customer_email", order.CustomerEmail)
	record.Set("customer_phone", order.CustomerPhone)
	record.Set("items", string(items))
	record.Set("total_amount", order.TotalAmount.InexactFloat64())
	record.Set("status", order.Status)
	record.Set("created_at", order.CreatedAt)
	record.Set("expires_at", order.ExpiresAt)
	if order.PaidAt != nil {
		record.Set("paid_at", *order.PaidAt)
	}

	return r.app.Save(record)
}

func (r *pbOrderRepository) FindByID(ctx context.Context, orderID string) (*models.PendingOrder, error) {
	record, err := r.app.FindFirstRecordByData("orders", "order_number", orderID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, err
	}
	return decodeOrder(record)
}

func (r *pbOrderRepository) FindExpiredPending(ctx context.Context, cutoff time.Time, limit int) ([]*models.PendingOrder, error) {
	records, err := r.app.FindRecordsByFilter(
		"orders",
		"status = {:status} && expires_at < {:cutoff}",
		"created_at",
		limit,
		0,
		dbx.Params{"status": models.OrderPending, "cutoff": cutoff.UTC()},
	)
	if err != nil {
		return nil, err
	}

	orders := make([]*models.PendingOrder, 0, len(records))
	for _, record := range records {
		order, err := decodeOrder(record)
		if err != nil {
			return nil, err
		}
		orders = append(orders, order)
	}
	return orders, nil
}

func (r *pbOrderRepository) Delete(ctx context.Context, orderID string) error {
	record, err := r.app.FindFirstRecordByData("orders", "order_number", orderID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil
		}
		return err
	}
	return r.app.Delete(record)
}

func decodeOrder(record *core.Record) (*models.PendingOrder, error) {
	var items []models.LineItem
	if raw := record.GetString("items"); raw != "" {
		if err := json.Unmarshal([]byte(raw), &items); err != nil {
			return nil, fmt.Errorf("decode order items: %w", err)
		}
	}

	// The total is derived from the line items, never trusted from the row.
	total := decimal.Zero
	for _, item := range items {
		total = total.Add(item.Subtotal())
	}

	order := &models.PendingOrder{
		ID:            record.GetString("order_number"),
		UserID:        record.GetString("user_id"),
		SessionID:     record.GetString("session_id"),
		CustomerName:  record.GetString("customer_name"),
		CustomerEmail: record.GetString("customer_email"),
		CustomerPhone: record.GetString("customer_phone"),
		Items:         items,
		TotalAmount:   total,
		Status:        record.GetString("status"),
		CreatedAt:     record.GetDateTime("created_at").Time(),
		ExpiresAt:     record.GetDateTime("expires_at").Time(),
	}

	if paidAt := record.GetDateTime("paid_at"); !paidAt.IsZero() {
		t := paidAt.Time()
		order.PaidAt = &t
	}

	return order, nil
}
