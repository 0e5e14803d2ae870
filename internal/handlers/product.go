package handlers

import (
	"errors"
	"strings"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	"github.com/example/restopos/internal/models"
	"github.com/example/restopos/internal/services"
	"github.com/example/restopos/internal/utils"
)

// ProductHandler manages product CRUD and the cached menu.
type ProductHandler struct {
	db    *gorm.DB
	stock *services.StockLedger
	cache services.Cache
	ttl   time.Duration
}

// NewProductHandler constructs ProductHandler.
func NewProductHandler(db *gorm.DB, stock *services.StockLedger, cache services.Cache, ttl time.Duration) *ProductHandler {
	return &ProductHandler{db: db, stock: stock, cache: cache, ttl: ttl}
}

type productRequest struct {
	Code          string          `json:"code" validate:"max=40"`
	Name          string          `json:"name" validate:"required,max=120"`
	Description   string          `json:"description" validate:"max=500"`
	Price         decimal.Decimal `json:"price"`
	CategoryID    *string         `json:"category_id" validate:"omitempty,uuid"`
	Active        *bool           `json:"active"`
	StockQuantity *int            `json:"stock_quantity" validate:"omitempty,min=0"`
	StockMinimum  *int            `json:"stock_minimum" validate:"omitempty,min=0"`
}

func (r productRequest) validatePrice() error {
	if r.Price.IsNegative() {
		return services.NewError(services.ErrInvalidAmount, map[string]any{"field": "price"})
	}
	return nil
}

// ListProducts returns paginated products with optional filters.
func (h *ProductHandler) ListProducts(c *fiber.Ctx) error {
	pg := utils.ParsePagination(c, 50)
	query := h.db.Model(&models.Product{})

	categoryID, err := queryID(c, "category_id")
	if err != nil {
		return err
	}
	if categoryID != nil {
		query = query.Where("category_id = ?", *categoryID)
	}

	if search := strings.TrimSpace(c.Query("search")); search != "" {
		q := "%" + strings.ToLower(search) + "%"
		query = query.Where("LOWER(name) LIKE ? OR LOWER(code) LIKE ?", q, q)
	}

	if c.Query("active") == "true" {
		query = query.Where("active = ?", true)
	}

	var total int64
	if err := query.Count(&total).Error; err != nil {
		return err
	}

	var products []models.Product
	if err := query.Preload("Category").
		Limit(pg.Limit).Offset(pg.Offset).
		Order("name").
		Find(&products).Error; err != nil {
		return err
	}

	return c.JSON(fiber.Map{
		"success":    true,
		"data":       products,
		"pagination": pg.Meta(total),
	})
}

// Menu returns active categories with their active products.
func (h *ProductHandler) Menu(c *fiber.Ctx) error {
	ctx := c.UserContext()

	var menu []models.Category
	if h.cache.GetJSON(ctx, services.CacheKeyMenu, &menu) {
		return c.JSON(fiber.Map{"success": true, "data": menu})
	}

	if err := h.db.WithContext(ctx).
		Preload("Products", func(db *gorm.DB) *gorm.DB {
			return db.Where("active = ?", true).Order("name")
		}).
		Where("active = ?", true).
		Order("display_order, name").
		Find(&menu).Error; err != nil {
		return err
	}

	h.cache.SetJSON(ctx, services.CacheKeyMenu, menu, h.ttl)
	return c.JSON(fiber.Map{"success": true, "data": menu})
}

// GetProduct loads a product with its category.
func (h *ProductHandler) GetProduct(c *fiber.Ctx) error {
	id, err := paramID(c, "id")
	if err != nil {
		return err
	}

	var product models.Product
	if err := h.db.Preload("Category").First(&product, "id = ?", id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return services.NewError(services.ErrProductNotFound, nil)
		}
		return err
	}

	return c.JSON(fiber.Map{"success": true, "data": product})
}

// CreateProduct persists a product. Giving a stock quantity turns tracking on.
func (h *ProductHandler) CreateProduct(c *fiber.Ctx) error {
	var req productRequest
	if err := parseBody(c, &req); err != nil {
		return err
	}
	if err := req.validatePrice(); err != nil {
		return err
	}

	product := models.Product{
		Code:        strings.TrimSpace(req.Code),
		Name:        strings.TrimSpace(req.Name),
		Description: req.Description,
		Price:       req.Price.Round(2),
		Active:      true,
	}
	if req.CategoryID != nil {
		id, err := parseOptionalID(*req.CategoryID)
		if err != nil {
			return err
		}
		product.CategoryID = id
	}

	if err := h.db.Create(&product).Error; err != nil {
		return err
	}
	if req.Active != nil && !*req.Active {
		if err := h.db.Model(&product).Update("active", false).Error; err != nil {
			return err
		}
	}

	if req.StockQuantity != nil {
		minimum := 0
		if req.StockMinimum != nil {
			minimum = *req.StockMinimum
		}
		tracked, err := h.stock.EnableTracking(c.UserContext(), product.ID, *req.StockQuantity, minimum)
		if err != nil {
			return err
		}
		product.StockQuantity = tracked.StockQuantity
		product.StockMinimum = tracked.StockMinimum
	}

	h.cache.Invalidate(c.UserContext(), services.CacheKeyMenu)
	return c.Status(fiber.StatusCreated).JSON(fiber.Map{"success": true, "data": product})
}

// UpdateProduct edits catalog fields. Stock is managed through the stock endpoints;
// snapshots on existing order items are never touched.
func (h *ProductHandler) UpdateProduct(c *fiber.Ctx) error {
	id, err := paramID(c, "id")
	if err != nil {
		return err
	}

	var product models.Product
	if err := h.db.First(&product, "id = ?", id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return services.NewError(services.ErrProductNotFound, nil)
		}
		return err
	}

	var req productRequest
	if err := parseBody(c, &req); err != nil {
		return err
	}
	if err := req.validatePrice(); err != nil {
		return err
	}

	updates := map[string]any{
		"code":        strings.TrimSpace(req.Code),
		"name":        strings.TrimSpace(req.Name),
		"description": req.Description,
		"price":       req.Price.Round(2),
	}
	if req.CategoryID != nil {
		categoryID, err := parseOptionalID(*req.CategoryID)
		if err != nil {
			return err
		}
		updates["category_id"] = categoryID
	}
	if req.Active != nil {
		updates["active"] = *req.Active
	}

	if err := h.db.Model(&product).Updates(updates).Error; err != nil {
		return err
	}

	h.cache.Invalidate(c.UserContext(), services.CacheKeyMenu)
	return c.JSON(fiber.Map{"success": true, "data": product})
}

// DeleteProduct removes a product. Order items keep their name and price snapshots.
func (h *ProductHandler) DeleteProduct(c *fiber.Ctx) error {
	id, err := paramID(c, "id")
	if err != nil {
		return err
	}

	err = h.db.Transaction(func(tx *gorm.DB) error {
		if err := tx.Model(&models.OrderItem{}).Where("product_id = ?", id).Update("product_id", nil).Error; err != nil {
			return err
		}
		result := tx.Delete(&models.Product{}, "id = ?", id)
		if result.Error != nil {
			return result.Error
		}
		if result.RowsAffected == 0 {
			return services.NewError(services.ErrProductNotFound, nil)
		}
		return nil
	})
	if err != nil {
		return err
	}

	h.cache.Invalidate(c.UserContext(), services.CacheKeyMenu)
	return c.SendStatus(fiber.StatusNoContent)
}
