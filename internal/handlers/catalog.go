package handlers

import (
	"errors"

	"github.com/gofiber/fiber/v2"
	"gorm.io/gorm"

	"github.com/example/restopos/internal/models"
	"github.com/example/restopos/internal/services"
	"github.com/example/restopos/internal/utils"
)

// CatalogHandler manages menu categories.
type CatalogHandler struct {
	db    *gorm.DB
	cache services.Cache
}

// NewCatalogHandler constructs CatalogHandler.
func NewCatalogHandler(db *gorm.DB, cache services.Cache) *CatalogHandler {
	return &CatalogHandler{db: db, cache: cache}
}

type categoryRequest struct {
	Name         string `json:"name" validate:"required,max=80"`
	Description  string `json:"description" validate:"max=255"`
	DisplayOrder int    `json:"display_order"`
	Active       *bool  `json:"active"`
}

// ListCategories returns paginated categories in display order.
func (h *CatalogHandler) ListCategories(c *fiber.Ctx) error {
	pg := utils.ParsePagination(c, 50)
	var categories []models.Category
	var total int64

	if err := h.db.Model(&models.Category{}).Count(&total).Error; err != nil {
		return err
	}

	if err := h.db.Limit(pg.Limit).Offset(pg.Offset).Order("display_order, name").
		Find(&categories).Error; err != nil {
		return err
	}

	return c.JSON(fiber.Map{
		"success":    true,
		"data":       categories,
		"pagination": pg.Meta(total),
	})
}

// GetCategory returns a single category with its products.
func (h *CatalogHandler) GetCategory(c *fiber.Ctx) error {
	id, err := paramID(c, "id")
	if err != nil {
		return err
	}

	var category models.Category
	if err := h.db.Preload("Products").First(&category, "id = ?", id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return fiber.NewError(fiber.StatusNotFound, "category not found")
		}
		return err
	}

	return c.JSON(fiber.Map{"success": true, "data": category})
}

// CreateCategory persists a new category.
func (h *CatalogHandler) CreateCategory(c *fiber.Ctx) error {
	var req categoryRequest
	if err := parseBody(c, &req); err != nil {
		return err
	}

	category := models.Category{
		Name:         req.Name,
		Description:  req.Description,
		DisplayOrder: req.DisplayOrder,
		Active:       true,
	}
	if err := h.db.Create(&category).Error; err != nil {
		return err
	}
	if req.Active != nil && !*req.Active {
		if err := h.db.Model(&category).Update("active", false).Error; err != nil {
			return err
		}
	}

	h.cache.Invalidate(c.UserContext(), services.CacheKeyMenu)
	return c.Status(fiber.StatusCreated).JSON(fiber.Map{"success": true, "data": category})
}

// UpdateCategory updates an existing category.
func (h *CatalogHandler) UpdateCategory(c *fiber.Ctx) error {
	id, err := paramID(c, "id")
	if err != nil {
		return err
	}

	var category models.Category
	if err := h.db.First(&category, "id = ?", id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return fiber.NewError(fiber.StatusNotFound, "category not found")
		}
		return err
	}

	var req categoryRequest
	if err := parseBody(c, &req); err != nil {
		return err
	}

	updates := map[string]any{
		"name":          req.Name,
		"description":   req.Description,
		"display_order": req.DisplayOrder,
	}
	if req.Active != nil {
		updates["active"] = *req.Active
	}
	if err := h.db.Model(&category).Updates(updates).Error; err != nil {
		return err
	}

	h.cache.Invalidate(c.UserContext(), services.CacheKeyMenu)
	return c.JSON(fiber.Map{"success": true, "data": category})
}

// DeleteCategory removes a category by ID. Its products stay on the menu uncategorized.
func (h *CatalogHandler) DeleteCategory(c *fiber.Ctx) error {
	id, err := paramID(c, "id")
	if err != nil {
		return err
	}

	err = h.db.Transaction(func(tx *gorm.DB) error {
		if err := tx.Model(&models.Product{}).Where("category_id = ?", id).Update("category_id", nil).Error; err != nil {
			return err
		}
		return tx.Delete(&models.Category{}, "id = ?", id).Error
	})
	if err != nil {
		return err
	}

	h.cache.Invalidate(c.UserContext(), services.CacheKeyMenu)
	return c.SendStatus(fiber.StatusNoContent)
}
