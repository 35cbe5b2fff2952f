package router

import (
	"context"

	"fieldserve/config"
	"fieldserve/internal/domain"
	"fieldserve/internal/handler"
	"fieldserve/internal/middleware"
	"fieldserve/internal/repository"
	"fieldserve/internal/service"
	"fieldserve/internal/ws"
	"fieldserve/pkg/cloudinary"
	"fieldserve/pkg/logger"
	"fieldserve/pkg/mq"
	"fieldserve/pkg/payment"

	"github.com/gin-gonic/gin"
	"gorm.io/gorm"
)

// EventPublisher is the slice of mq.Publisher the router needs.
type EventPublisher interface {
	PublishJSON(ctx context.Context, key string, v any) error
}

// Deps are the externally built collaborators. Cloud, FCM and Events may be nil.
type Deps struct {
	Log     logger.ILogger
	Gateway payment.Provider
	Cloud   cloudinary.Client
	FCM     *service.FCMService
	Events  EventPublisher
}

// App is the wired HTTP surface plus the background notification dispatcher,
// which the caller must run.
type App struct {
	Engine     *gin.Engine
	Dispatcher *service.Dispatcher
	Hub        *ws.Hub
	Limiter    *middleware.InMemoryRateLimiter
}

func Setup(cfg *config.Config, db *gorm.DB, deps Deps) *App {
	if cfg.Server.Env == "production" {
		gin.SetMode(gin.ReleaseMode)
	}
	log := deps.Log
	limiter := middleware.NewInMemoryRateLimiter(cfg.Server.RateLimit, cfg.Server.RateWindow)

	r := gin.New()
	r.Use(middleware.Recovery(log))
	r.Use(middleware.RequestLogger(log))

	store := repository.NewStore(db)
	hub := ws.NewHub()

	// Notifications
	dispatcher := service.NewDispatcher(cfg.Booking.NotifyQueueSize, log.With(logger.String("component", "dispatcher")))
	notifSvc := service.NewNotificationService(store, deps.FCM, log)
	dispatcher.AddSink("store", notifSvc)
	dispatcher.AddSink("websocket", service.SinkFunc(func(ctx context.Context, t service.Task) error {
		_, err := hub.Publish(t.UserID, ws.Event{Type: t.Type, BookingID: t.BookingID, Title: t.Title, Body: t.Body, Data: t.Data})
		return err
	}))
	if deps.Events != nil {
		dispatcher.AddSink("rabbitmq", service.SinkFunc(func(ctx context.Context, t service.Task) error {
			return deps.Events.PublishJSON(ctx, mq.RoutingKey(t.Type), t)
		}))
	}

	// Services
	availSvc := service.NewAvailabilityService(store, cfg.Booking, log)
	bookingSvc := service.NewBookingService(store, availSvc, dispatcher, log)
	pricingSvc := service.NewPricingService(store, dispatcher, log)
	paymentSvc := service.NewPaymentService(store, deps.Gateway, cfg.Gateway, dispatcher, log)
	reviewSvc := service.NewReviewService(store, dispatcher, log)
	complaintSvc := service.NewComplaintService(store, deps.Cloud, cfg.Cloudinary.Folder, dispatcher, log)

	// Handlers
	bookingHandler := handler.NewBookingHandler(bookingSvc, pricingSvc, paymentSvc, log)
	availHandler := handler.NewAvailabilityHandler(availSvc, reviewSvc, log)
	paymentHandler := handler.NewPaymentHandler(paymentSvc, log)
	gatewayHandler := handler.NewGatewayHandler(paymentSvc, &cfg.Gateway, log)
	reviewHandler := handler.NewReviewHandler(reviewSvc, log)
	complaintHandler := handler.NewComplaintHandler(complaintSvc, log)
	notificationHandler := handler.NewNotificationHandler(notifSvc, log)

	r.GET("/health", func(c *gin.Context) {
		c.JSON(200, gin.H{"status": "ok"})
	})

	v1 := r.Group("/api/v1")

	// Gateway callbacks carry no user token.
	gw := v1.Group("/payments/gateway")
	gw.Use(middleware.RateLimit(limiter))
	{
		gw.POST("/success", gatewayHandler.Success)
		gw.GET("/success", gatewayHandler.Success)
		gw.POST("/fail", gatewayHandler.Fail)
		gw.GET("/fail", gatewayHandler.Fail)
		gw.POST("/cancel", gatewayHandler.Cancel)
		gw.GET("/cancel", gatewayHandler.Cancel)
		gw.POST("/ipn", gatewayHandler.IPN)
	}

	v1.GET("/ws/bookings", ws.UpgradeBookingWS(&cfg.JWT, hub))

	authed := v1.Group("")
	authed.Use(middleware.AuthRequired(&cfg.JWT))
	authed.Use(middleware.RateLimit(limiter))
	authed.Use(middleware.ActiveUser(store.Users))
	{
		bookings := authed.Group("/bookings")
		bookings.POST("", middleware.RequireRole(domain.RoleClient, domain.RoleAdmin), bookingHandler.Create)
		bookings.GET("", bookingHandler.List)
		bookings.GET("/:id", bookingHandler.Get)
		bookings.PATCH("/:id/status", bookingHandler.UpdateStatus)
		bookings.PATCH("/:id/accept", middleware.RequireRole(domain.RoleWorker), bookingHandler.Accept)
		bookings.PATCH("/:id/start", middleware.RequireRole(domain.RoleWorker), bookingHandler.Start)
		bookings.PATCH("/:id/cancel", bookingHandler.Cancel)
		bookings.POST("/:id/items", middleware.RequireRole(domain.RoleWorker), bookingHandler.ProposeItems)
		bookings.GET("/:id/items", bookingHandler.ListItems)
		bookings.PATCH("/:id/items/approve", middleware.RequireRole(domain.RoleClient, domain.RoleAdmin), bookingHandler.ApproveItems)
		bookings.GET("/:id/payments", bookingHandler.ListPayments)

		authed.POST("/availability/check", availHandler.Check)
		authed.PUT("/availability", middleware.RequireRole(domain.RoleWorker), availHandler.Set)
		authed.GET("/availability/:workerId", availHandler.Get)
		authed.PATCH("/me/location", middleware.RequireRole(domain.RoleWorker), availHandler.UpdateLocation)
		authed.GET("/workers/search", availHandler.Search)
		authed.GET("/workers/:id/reviews", availHandler.Reviews)

		payments := authed.Group("/payments")
		payments.POST("/cash", middleware.RequireRole(domain.RoleClient), paymentHandler.CreateCash)
		payments.PATCH("/:id/verify", middleware.RequireRole(domain.RoleWorker, domain.RoleAdmin), paymentHandler.VerifyCash)
		payments.POST("/gateway/init", middleware.RequireRole(domain.RoleClient), paymentHandler.InitGateway)
		payments.PATCH("/:id/refund", middleware.AdminRequired(), paymentHandler.Refund)

		authed.POST("/reviews", middleware.RequireRole(domain.RoleClient), reviewHandler.Create)

		complaints := authed.Group("/complaints")
		complaints.POST("", complaintHandler.Create)
		complaints.POST("/attachments", complaintHandler.UploadAttachment)
		complaints.GET("/:id", complaintHandler.Get)
		complaints.GET("", middleware.AdminRequired(), complaintHandler.List)
		complaints.PATCH("/:id", middleware.AdminRequired(), complaintHandler.Update)

		authed.GET("/me/notifications", notificationHandler.List)
		authed.PUT("/me/notifications/:id/read", notificationHandler.MarkRead)
	}

	return &App{Engine: r, Dispatcher: dispatcher, Hub: hub, Limiter: limiter}
}
