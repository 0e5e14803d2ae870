package handlers

import (
	"errors"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	"github.com/example/restopos/internal/models"
	"github.com/example/restopos/internal/services"
)

// TableHandler manages dining-room tables and areas.
type TableHandler struct {
	db     *gorm.DB
	tables *services.TableSync
	cache  services.Cache
	ttl    time.Duration
}

// NewTableHandler constructs TableHandler.
func NewTableHandler(db *gorm.DB, tables *services.TableSync, cache services.Cache, ttl time.Duration) *TableHandler {
	return &TableHandler{db: db, tables: tables, cache: cache, ttl: ttl}
}

type tableRequest struct {
	Number   int        `json:"number" validate:"required,min=1"`
	Capacity int        `json:"capacity" validate:"omitempty,min=1,max=50"`
	AreaID   *uuid.UUID `json:"area_id"`
}

type tableStatusRequest struct {
	Status string `json:"status" validate:"required"`
}

type areaRequest struct {
	Name     string `json:"name" validate:"required,max=80"`
	IsActive *bool  `json:"is_active"`
}

type openOrderView struct {
	ID       uuid.UUID       `json:"id"`
	Status   string          `json:"status"`
	Total    decimal.Decimal `json:"total"`
	OpenedAt time.Time       `json:"opened_at"`
}

type tableView struct {
	models.Table
	CurrentOrder *openOrderView `json:"current_order"`
}

// ListTables returns every table with its area and current order.
func (h *TableHandler) ListTables(c *fiber.Ctx) error {
	ctx := c.UserContext()

	var views []tableView
	if h.cache.GetJSON(ctx, services.CacheKeyTables, &views) {
		return c.JSON(fiber.Map{"success": true, "data": views})
	}

	var tables []models.Table
	if err := h.db.WithContext(ctx).Preload("Area").Order("number").Find(&tables).Error; err != nil {
		return err
	}

	var active []models.Order
	if err := h.db.WithContext(ctx).
		Where("table_id IS NOT NULL AND status IN ?", models.ActiveOrderStatuses).
		Find(&active).Error; err != nil {
		return err
	}
	byTable := make(map[uuid.UUID]*openOrderView, len(active))
	for _, order := range active {
		byTable[*order.TableID] = &openOrderView{
			ID:       order.ID,
			Status:   order.Status,
			Total:    order.Total,
			OpenedAt: order.OpenedAt,
		}
	}

	views = make([]tableView, 0, len(tables))
	for _, table := range tables {
		views = append(views, tableView{Table: table, CurrentOrder: byTable[table.ID]})
	}

	h.cache.SetJSON(ctx, services.CacheKeyTables, views, h.ttl)
	return c.JSON(fiber.Map{"success": true, "data": views})
}

// GetTable returns a single table by ID.
func (h *TableHandler) GetTable(c *fiber.Ctx) error {
	id, err := paramID(c, "id")
	if err != nil {
		return err
	}

	var table models.Table
	if err := h.db.WithContext(c.UserContext()).Preload("Area").First(&table, "id = ?", id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return services.NewError(services.ErrTableNotFound, nil)
		}
		return err
	}

	return c.JSON(fiber.Map{"success": true, "data": table})
}

// CreateTable persists a new, free table.
func (h *TableHandler) CreateTable(c *fiber.Ctx) error {
	var req tableRequest
	if err := parseBody(c, &req); err != nil {
		return err
	}
	if err := h.ensureNumberFree(c, req.Number, uuid.Nil); err != nil {
		return err
	}

	table := models.Table{
		Number:   req.Number,
		Capacity: req.Capacity,
		AreaID:   req.AreaID,
		Status:   models.TableStatusFree,
	}
	if table.Capacity == 0 {
		table.Capacity = 4
	}

	if err := h.db.WithContext(c.UserContext()).Create(&table).Error; err != nil {
		return err
	}

	h.cache.Invalidate(c.UserContext(), services.CacheKeyTables)
	return c.Status(fiber.StatusCreated).JSON(fiber.Map{"success": true, "data": table})
}

// UpdateTable changes number, capacity or area. Status is never set here.
func (h *TableHandler) UpdateTable(c *fiber.Ctx) error {
	id, err := paramID(c, "id")
	if err != nil {
		return err
	}

	var req tableRequest
	if err := parseBody(c, &req); err != nil {
		return err
	}

	var table models.Table
	if err := h.db.WithContext(c.UserContext()).First(&table, "id = ?", id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return services.NewError(services.ErrTableNotFound, nil)
		}
		return err
	}
	if err := h.ensureNumberFree(c, req.Number, table.ID); err != nil {
		return err
	}

	updates := map[string]any{"number": req.Number, "area_id": req.AreaID}
	if req.Capacity > 0 {
		updates["capacity"] = req.Capacity
	}
	if err := h.db.WithContext(c.UserContext()).Model(&table).Updates(updates).Error; err != nil {
		return err
	}

	h.cache.Invalidate(c.UserContext(), services.CacheKeyTables)
	return c.JSON(fiber.Map{"success": true, "data": table})
}

// SetTableStatus is the manual free/occupied/reserved toggle.
func (h *TableHandler) SetTableStatus(c *fiber.Ctx) error {
	id, err := paramID(c, "id")
	if err != nil {
		return err
	}

	var req tableStatusRequest
	if err := parseBody(c, &req); err != nil {
		return err
	}

	table, err := h.tables.SetStatus(c.UserContext(), id, req.Status)
	if err != nil {
		return err
	}

	return c.JSON(fiber.Map{"success": true, "data": table})
}

// DeleteTable removes a table without an active order.
func (h *TableHandler) DeleteTable(c *fiber.Ctx) error {
	id, err := paramID(c, "id")
	if err != nil {
		return err
	}

	if err := h.tables.Delete(c.UserContext(), id); err != nil {
		return err
	}

	return c.SendStatus(fiber.StatusNoContent)
}

func (h *TableHandler) ensureNumberFree(c *fiber.Ctx, number int, self uuid.UUID) error {
	var existing models.Table
	err := h.db.WithContext(c.UserContext()).Where("number = ? AND id <> ?", number, self).First(&existing).Error
	if err == nil {
		return services.NewError(services.ErrDuplicateTableNumber, map[string]any{"table_id": existing.ID})
	}
	if !errors.Is(err, gorm.ErrRecordNotFound) {
		return err
	}
	return nil
}

// ListAreas returns every area with its tables.
func (h *TableHandler) ListAreas(c *fiber.Ctx) error {
	var areas []models.Area
	if err := h.db.WithContext(c.UserContext()).
		Preload("Tables", func(db *gorm.DB) *gorm.DB { return db.Order("number") }).
		Order("name").
		Find(&areas).Error; err != nil {
		return err
	}

	return c.JSON(fiber.Map{"success": true, "data": areas})
}

// CreateArea persists a new area.
func (h *TableHandler) CreateArea(c *fiber.Ctx) error {
	var req areaRequest
	if err := parseBody(c, &req); err != nil {
		return err
	}

	area := models.Area{Name: req.Name, IsActive: true}
	if err := h.db.WithContext(c.UserContext()).Create(&area).Error; err != nil {
		return err
	}
	if req.IsActive != nil && !*req.IsActive {
		if err := h.db.WithContext(c.UserContext()).Model(&area).Update("is_active", false).Error; err != nil {
			return err
		}
	}

	return c.Status(fiber.StatusCreated).JSON(fiber.Map{"success": true, "data": area})
}

// UpdateArea renames or (de)activates an area.
func (h *TableHandler) UpdateArea(c *fiber.Ctx) error {
	id, err := paramID(c, "id")
	if err != nil {
		return err
	}

	var req areaRequest
	if err := parseBody(c, &req); err != nil {
		return err
	}

	var area models.Area
	if err := h.db.WithContext(c.UserContext()).First(&area, "id = ?", id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return fiber.NewError(fiber.StatusNotFound, "area not found")
		}
		return err
	}

	updates := map[string]any{"name": req.Name}
	if req.IsActive != nil {
		updates["is_active"] = *req.IsActive
	}
	if err := h.db.WithContext(c.UserContext()).Model(&area).Updates(updates).Error; err != nil {
		return err
	}

	h.cache.Invalidate(c.UserContext(), services.CacheKeyTables)
	return c.JSON(fiber.Map{"success": true, "data": area})
}

// DeleteArea removes an area and detaches its tables.
func (h *TableHandler) DeleteArea(c *fiber.Ctx) error {
	id, err := paramID(c, "id")
	if err != nil {
		return err
	}

	err = h.db.WithContext(c.UserContext()).Transaction(func(tx *gorm.DB) error {
		if err := tx.Model(&models.Table{}).Where("area_id = ?", id).Update("area_id", nil).Error; err != nil {
			return err
		}
		return tx.Delete(&models.Area{}, "id = ?", id).Error
	})
	if err != nil {
		return err
	}

	h.cache.Invalidate(c.UserContext(), services.CacheKeyTables)
	return c.SendStatus(fiber.StatusNoContent)
}
