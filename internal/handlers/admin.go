package handlers

import (
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	"github.com/example/restopos/internal/models"
)

// AdminHandler manages manager-only reporting endpoints.
type AdminHandler struct {
	db *gorm.DB
}

// NewAdminHandler constructs AdminHandler.
func NewAdminHandler(db *gorm.DB) *AdminHandler {
	return &AdminHandler{db: db}
}

// DashboardStats returns aggregate statistics for the manager dashboard.
func (h *AdminHandler) DashboardStats(c *fiber.Ctx) error {
	db := h.db.WithContext(c.UserContext())

	type statusCount struct {
		Status string `json:"status"`
		Count  int64  `json:"count"`
	}
	var statusCounts []statusCount
	if err := db.Model(&models.Order{}).
		Select("status, count(*) as count").
		Group("status").
		Scan(&statusCounts).Error; err != nil {
		return err
	}

	ordersByStatus := make(map[string]int64)
	var totalOrders int64
	for _, sc := range statusCounts {
		ordersByStatus[sc.Status] = sc.Count
		totalOrders += sc.Count
	}

	totalRevenue := decimal.Zero
	if err := db.Model(&models.Order{}).
		Where("status = ?", models.OrderStatusPaid).
		Select("COALESCE(SUM(total), 0)").
		Row().Scan(&totalRevenue); err != nil {
		return err
	}

	now := time.Now().UTC()
	today := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, time.UTC)
	todayRevenue := decimal.Zero
	if err := db.Model(&models.Order{}).
		Where("status = ? AND closed_at >= ?", models.OrderStatusPaid, today).
		Select("COALESCE(SUM(total), 0)").
		Row().Scan(&todayRevenue); err != nil {
		return err
	}

	var occupiedTables int64
	if err := db.Model(&models.Table{}).
		Where("status = ?", models.TableStatusOccupied).
		Count(&occupiedTables).Error; err != nil {
		return err
	}

	var lowStock int64
	if err := db.Model(&models.Product{}).
		Where("stock_quantity IS NOT NULL AND stock_minimum IS NOT NULL AND stock_quantity <= stock_minimum").
		Count(&lowStock).Error; err != nil {
		return err
	}

	return c.JSON(fiber.Map{
		"success": true,
		"data": fiber.Map{
			"total_orders":     totalOrders,
			"orders_by_status": ordersByStatus,
			"total_revenue":    totalRevenue.StringFixed(2),
			"today_revenue":    todayRevenue.StringFixed(2),
			"occupied_tables":  occupiedTables,
			"low_stock":        lowStock,
		},
	})
}

// RecentOrders returns the latest orders for the dashboard.
func (h *AdminHandler) RecentOrders(c *fiber.Ctx) error {
	var orders []models.Order
	if err := h.db.WithContext(c.UserContext()).
		Preload("Table").
		Order("opened_at desc").
		Limit(c.QueryInt("limit", 5)).
		Find(&orders).Error; err != nil {
		return err
	}

	return c.JSON(fiber.Map{
		"success": true,
		"data":    orders,
	})
}
