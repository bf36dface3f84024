package migrations

import (
	"github.com/pocketbase/pocketbase/core"
	m "github.com/pocketbase/pocketbase/migrations"
)

func init() {
	m.Register(func(app core.App) error {
		collection := core.NewBaseCollection("orders")

		collection.Fields.Add(
			&core.TextField{Name: "order_number", Required: true},
			&core.TextField{Name: "user_id"},
			&core.TextField{Name: "session_id", Required: true},
			&core.TextField{Name: "customer_name"},
			&core.TextField{Name: "customer_email"},
			&core.TextField{Name: "customer_phone"},
			&core.JSONField{Name: "items", MaxSize: 1 << 20},
			&core.NumberField{Name: "total_amount"},
			&core.SelectField{
				Name:      "status",
				Required:  true,
				MaxSelect: 1,
				Values:    []string{"pending", "paid", "expired", "cancelled"},
			},
			&core.DateField{Name: "created_at", Required: true},
			&core.DateField{Name: "expires_at", Required: true},
			&core.DateField{Name: "paid_at"},
			&core.AutodateField{Name: "created", OnCreate: true},
			&core.AutodateField{Name: "updated", OnCreate: true, OnUpdate: true},
		)

		collection.AddIndex("idx_orders_order_number", true, "order_number", "")
		collection.AddIndex("idx_orders_session_status", false, "session_id, status", "")
		collection.AddIndex("idx_orders_status_expires", false, "status, expires_at", "")

		return app.Save(collection)
	}, func(app core.App) error {
		collection, err := app.FindCollectionByNameOrId("orders")
		if err != nil {
			return err
		}
		return app.Delete(collection)
	})
}
