package routes

import (
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/limiter"
	"go.uber.org/zap"
	"gorm.io/gorm"

	"github.com/example/restopos/internal/config"
	"github.com/example/restopos/internal/handlers"
	"github.com/example/restopos/internal/middleware"
	"github.com/example/restopos/internal/models"
	"github.com/example/restopos/internal/services"
)

// Register wires up all HTTP routes.
func Register(app *fiber.App, db *gorm.DB, cfg *config.Config, cache services.Cache, notifier services.Notifier, log *zap.Logger) {
	stock := services.NewStockLedger(db, cache, log.Named("stock"))
	tables := services.NewTableSync(db, cache, notifier, log.Named("tables"))
	orders := services.NewOrderService(db, stock, tables, services.NewSupervisorAuthorizer(db), cache, notifier, log.Named("orders"))
	payments := services.NewPaymentService(db, cache, notifier, log.Named("payments"))
	reports := services.NewReportService(db)

	authHandler := handlers.NewAuthHandler(db, cfg)
	catalogHandler := handlers.NewCatalogHandler(db, cache)
	productHandler := handlers.NewProductHandler(db, stock, cache, cfg.CacheTTL)
	tableHandler := handlers.NewTableHandler(db, tables, cache, cfg.CacheTTL)
	orderHandler := handlers.NewOrderHandler(orders)
	paymentHandler := handlers.NewPaymentHandler(payments)
	stockHandler := handlers.NewStockHandler(stock)
	adminHandler := handlers.NewAdminHandler(db)
	reportHandler := handlers.NewReportHandler(reports)

	staff := []string{models.RoleAdmin, models.RoleManager, models.RoleWaiter, models.RoleCashier}
	kitchen := []string{models.RoleAdmin, models.RoleManager, models.RoleWaiter, models.RoleCook}
	cashier := []string{models.RoleAdmin, models.RoleManager, models.RoleCashier}
	managers := []string{models.RoleAdmin, models.RoleManager}

	api := app.Group("/api", rateLimit(cfg.RateLimitMax, cfg.RateLimitWindow, "too many requests, try again later"))
	api.Get("/health", func(c *fiber.Ctx) error {
		return c.JSON(fiber.Map{"success": true, "status": "ok"})
	})

	// Auth routes
	auth := api.Group("/auth")
	auth.Post("/login", rateLimit(cfg.LoginRateLimitMax, cfg.RateLimitWindow, "too many login attempts, try again later"), authHandler.Login)

	protected := api.Group("", middleware.AuthMiddleware(cfg))
	protected.Get("/auth/me", authHandler.Me)

	users := protected.Group("/users", middleware.RequireRole(models.RoleAdmin))
	users.Get("/", authHandler.ListUsers)
	users.Post("/", authHandler.Register)
	users.Put("/:id", authHandler.UpdateUser)

	// Catalog routes
	protected.Get("/menu", productHandler.Menu)

	categories := protected.Group("/categories")
	categories.Get("/", catalogHandler.ListCategories)
	categories.Get("/:id", catalogHandler.GetCategory)
	categories.Post("/", middleware.RequireRole(managers...), catalogHandler.CreateCategory)
	categories.Put("/:id", middleware.RequireRole(managers...), catalogHandler.UpdateCategory)
	categories.Delete("/:id", middleware.RequireRole(managers...), catalogHandler.DeleteCategory)

	products := protected.Group("/products")
	products.Get("/", productHandler.ListProducts)
	products.Get("/:id", productHandler.GetProduct)
	products.Post("/", middleware.RequireRole(managers...), productHandler.CreateProduct)
	products.Put("/:id", middleware.RequireRole(managers...), productHandler.UpdateProduct)
	products.Delete("/:id", middleware.RequireRole(managers...), productHandler.DeleteProduct)

	// Stock routes
	stockRoutes := protected.Group("/stock", middleware.RequireRole(managers...))
	stockRoutes.Get("/", stockHandler.ListTracked)
	stockRoutes.Get("/alerts", stockHandler.Alerts)
	stockRoutes.Get("/:id/movements", stockHandler.Movements)
	stockRoutes.Post("/:id/enable", stockHandler.EnableTracking)
	stockRoutes.Post("/:id/disable", stockHandler.DisableTracking)
	stockRoutes.Put("/:id", stockHandler.Adjust)

	// Table routes
	tableRoutes := protected.Group("/tables")
	tableRoutes.Get("/", tableHandler.ListTables)
	tableRoutes.Get("/:id", tableHandler.GetTable)
	tableRoutes.Patch("/:id/status", middleware.RequireRole(staff...), tableHandler.SetTableStatus)
	tableRoutes.Post("/", middleware.RequireRole(managers...), tableHandler.CreateTable)
	tableRoutes.Put("/:id", middleware.RequireRole(managers...), tableHandler.UpdateTable)
	tableRoutes.Delete("/:id", middleware.RequireRole(managers...), tableHandler.DeleteTable)

	areas := protected.Group("/areas")
	areas.Get("/", tableHandler.ListAreas)
	areas.Post("/", middleware.RequireRole(managers...), tableHandler.CreateArea)
	areas.Put("/:id", middleware.RequireRole(managers...), tableHandler.UpdateArea)
	areas.Delete("/:id", middleware.RequireRole(managers...), tableHandler.DeleteArea)

	// Order routes
	protected.Get("/kitchen", middleware.RequireRole(kitchen...), orderHandler.KitchenQueue)

	orderRoutes := protected.Group("/orders")
	orderRoutes.Get("/", orderHandler.ListOrders)
	orderRoutes.Get("/:id", orderHandler.GetOrder)
	orderRoutes.Post("/", middleware.RequireRole(staff...), orderHandler.CreateOrder)
	orderRoutes.Post("/:id/items", middleware.RequireRole(staff...), orderHandler.AddItem)
	orderRoutes.Patch("/:id/items/:itemId/status", middleware.RequireRole(kitchen...), orderHandler.UpdateItemStatus)
	orderRoutes.Delete("/:id/items/:itemId", middleware.RequireRole(staff...), orderHandler.RemoveItem)
	orderRoutes.Put("/:id/transfer", middleware.RequireRole(staff...), orderHandler.TransferOrder)
	orderRoutes.Put("/:id/adjustments", middleware.RequireRole(cashier...), orderHandler.AdjustOrder)
	orderRoutes.Put("/:id/close", middleware.RequireRole(cashier...), orderHandler.CloseOrder)
	orderRoutes.Put("/:id/cancel", orderHandler.CancelOrder)

	// Payment routes
	paymentRoutes := protected.Group("/payments", middleware.RequireRole(cashier...))
	paymentRoutes.Get("/", paymentHandler.ListPayments)
	paymentRoutes.Get("/summary", paymentHandler.Summary)
	paymentRoutes.Post("/", paymentHandler.RecordPayment)
	paymentRoutes.Delete("/:id", paymentHandler.ReversePayment)

	// Admin routes
	admin := protected.Group("/admin", middleware.RequireRole(managers...))
	admin.Get("/dashboard", adminHandler.DashboardStats)
	admin.Get("/recent-orders", adminHandler.RecentOrders)

	// Report routes
	reportRoutes := protected.Group("/reports", middleware.RequireRole(managers...))
	reportRoutes.Get("/sales", reportHandler.Sales)
	reportRoutes.Get("/products", reportHandler.Products)
	reportRoutes.Get("/categories", reportHandler.Categories)
	reportRoutes.Get("/waiters", reportHandler.Waiters)
	reportRoutes.Get("/hours", reportHandler.Hours)
	reportRoutes.Get("/payment-methods", reportHandler.PaymentMethods)
}

// rateLimit caps requests per client IP within window. A limit of zero disables it.
func rateLimit(limit int, window time.Duration, message string) fiber.Handler {
	if limit <= 0 {
		return func(c *fiber.Ctx) error { return c.Next() }
	}
	return limiter.New(limiter.Config{
		Max:        limit,
		Expiration: window,
		LimitReached: func(c *fiber.Ctx) error {
			return fiber.NewError(fiber.StatusTooManyRequests, message)
		},
	})
}
