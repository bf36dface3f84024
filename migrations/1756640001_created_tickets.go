package migrations

import (
	"github.com/pocketbase/pocketbase/core"
	m "github.com/pocketbase/pocketbase/migrations"
)

func init() {
	m.Register(func(app core.App) error {
		collection := core.NewBaseCollection("tickets")

		collection.Fields.Add(
			&core.TextField{Name: "ticket_id", Required: true},
			&core.TextField{Name: "order_id", Required: true},
			&core.TextField{Name: "user_id", Required: true},
			&core.TextField{Name: "event_id", Required: true},
			&core.TextField{Name: "event_title"},
			&core.TextField{Name: "event_date"},
			&core.TextField{Name: "event_time"},
			&core.TextField{Name: "venue"},
			&core.TextField{Name: "city"},
			&core.TextField{Name: "event_image"},
			&core.TextField{Name: "ticket_type"},
			&core.NumberField{Name: "quantity", OnlyInt: true},
			&core.TextField{Name: "unit_price", Required: true},
			&core.TextField{Name: "ticket_code", Required: true},
			&core.DateField{Name: "issued_at", Required: true},
			&core.SelectField{
				Name:      "event_status",
				Required:  true,
				MaxSelect: 1,
				Values:    []string{"active", "cancelled"},
			},
			&core.TextField{Name: "cancel_reason"},
			&core.AutodateField{Name: "created", OnCreate: true},
			&core.AutodateField{Name: "updated", OnCreate: true, OnUpdate: true},
		)

		collection.AddIndex("idx_tickets_ticket_id", true, "ticket_id", "")
		collection.AddIndex("idx_tickets_ticket_code", true, "ticket_code", "")
		collection.AddIndex("idx_tickets_user", false, "user_id", "")
		collection.AddIndex("idx_tickets_order", false, "order_id", "")
		collection.AddIndex("idx_tickets_event", false, "event_id", "")

		return app.Save(collection)
	}, func(app core.App) error {
		collection, err := app.FindCollectionByNameOrId("tickets")
		if err != nil {
			return err
		}
		return app.Delete(collection)
	})
}
