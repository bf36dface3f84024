// main.go
package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"syscall"

	"kartcis-core/config"
	"kartcis-core/handlers"
	_ "kartcis-core/migrations"
	"kartcis-core/monitoring"
	"kartcis-core/security"
	"kartcis-core/services"
	"kartcis-core/utils"

	"github.com/google/uuid"
	"github.com/pocketbase/pocketbase"
	"github.com/pocketbase/pocketbase/apis"
	"github.com/pocketbase/pocketbase/core"
	"github.com/pocketbase/pocketbase/plugins/migratecmd"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	pubnub "github.com/pubnub/go/v7"
)

func main() {
	app := pocketbase.New()

	// Load configuration
	cfg := config.LoadConfig()

	// Initialize Redis
	redisClient := utils.NewRedisClient(cfg.RedisURL, cfg.RedisPassword, cfg.RedisDB)
	defer redisClient.Close()

	// Initialize PubNub
	pnConfig := pubnub.NewConfigWithUserId(pubnub.UserId(uuid.NewString()))
	pnConfig.PublishKey = cfg.PubNubPublishKey
	pnConfig.SubscribeKey = cfg.PubNubSubscribeKey
	pnConfig.SecretKey = cfg.PubNubSecretKey

	pn := pubnub.NewPubNub(pnConfig)

	// Initialize services
	reservationService := services.NewReservationService(redisClient, cfg.HoldWindow+cfg.ExpirySweepInterval)
	selectionService := services.NewSelectionService(redisClient, cfg.SelectionTTL, cfg.MaxPerType)
	orderService := services.NewOrderService(redisClient, services.NewOrderRepository(app), reservationService, cfg.HoldWindow)
	ticketService := services.NewTicketService(services.NewTicketRepository(app))
	paymentService := services.NewPaymentService(redisClient, pn, orderService, ticketService, cfg)

	// Initialize handlers
	selectionHandler := handlers.NewSelectionHandler(app, selectionService)
	orderHandler := handlers.NewOrderHandler(app, orderService, paymentService, selectionService)
	paymentHandler := handlers.NewPaymentHandler(app, paymentService)
	ticketHandler := handlers.NewTicketHandler(app, ticketService)
	adminHandler := handlers.NewAdminHandler(app, ticketService, reservationService)

	rateLimiter := security.NewRateLimiter(redisClient)

	// Enable migrations
	migratecmd.MustRegister(app, app.RootCmd, migratecmd.Config{
		Automigrate: true,
	})

	// Create context for background tasks
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Start background tasks
	go orderService.RunExpirySweep(ctx, cfg.ExpirySweepInterval)
	go paymentService.RetryIssuanceOutbox(ctx, cfg.OutboxRetryInterval)
	if cfg.EnableMetrics {
		monitor := monitoring.NewMonitor(redisClient)
		go monitor.CollectStock(ctx, cfg.ExpirySweepInterval)
	}

	// Setup graceful shutdown
	go handleShutdown(cancel)

	// Register routes
	app.OnServe().BindFunc(func(e *core.ServeEvent) error {
		// Selection endpoints
		e.Router.POST("/api/selection/adjust", selectionHandler.AdjustSelection)
		e.Router.GET("/api/selection", selectionHandler.GetSelection)

		// Order endpoints
		e.Router.POST("/api/checkout", orderHandler.Checkout).
			BindFunc(rateLimiter.Limit("checkout", cfg.CheckoutRateLimit, cfg.CheckoutRateWindow))
		e.Router.GET("/api/orders/active", orderHandler.GetActiveOrder)
		e.Router.GET("/api/orders/{orderId}", orderHandler.GetOrder)
		e.Router.GET("/api/orders/{orderId}/status", orderHandler.GetOrderStatus)
		e.Router.POST("/api/orders/{orderId}/cancel", orderHandler.CancelOrder)

		// Payment endpoints
		e.Router.POST("/api/payment/notify", paymentHandler.Notify)

		// Ticket endpoints
		e.Router.GET("/api/tickets", ticketHandler.ListMyTickets)
		e.Router.GET("/api/tickets/{ticketId}", ticketHandler.GetTicket)

		// Admin endpoints
		e.Router.POST("/api/admin/stock/seed", adminHandler.SeedStock)
		e.Router.POST("/api/admin/events/{eventId}/cancel-tickets", adminHandler.CancelEventTickets)

		// Test endpoint for payment simulation
		if cfg.Environment == "development" {
			e.Router.POST("/api/test/simulate-payment", paymentHandler.SimulatePayment)
		}

		// Metrics
		if cfg.EnableMetrics {
			e.Router.GET("/metrics", apis.WrapStdHandler(promhttp.Handler()))
		}

		// Health check
		e.Router.GET("/health", func(e *core.RequestEvent) error {
			if err := utils.RedisHealthCheck(redisClient); err != nil {
				return e.JSON(503, map[string]string{
					"status": "unhealthy",
					"error":  err.Error(),
				})
			}
			return e.JSON(200, map[string]string{"status": "healthy"})
		})

		log.Println("Server routes registered")

		return e.Next()
	})

	// Start server
	if err := app.Start(); err != nil {
		log.Fatal(err)
	}
}

// handleShutdown handles graceful shutdown
func handleShutdown(cancel context.CancelFunc) {
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)

	<-sigChan
	log.Println("Shutdown signal received, cleaning up...")
	cancel()
}
