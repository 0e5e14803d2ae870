package services

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/example/restopos/internal/models"
)

// TableSync mirrors order lifecycle onto table status. Its tx-taking methods are
// only ever called inside the transaction of the order mutation that causes them.
type TableSync struct {
	db      *gorm.DB
	effects sideEffects
	log     *zap.Logger
}

// NewTableSync constructs a TableSync.
func NewTableSync(db *gorm.DB, cache Cache, notifier Notifier, log *zap.Logger) *TableSync {
	return &TableSync{db: db, effects: newSideEffects(cache, notifier, log), log: log}
}

func lockTable(tx *gorm.DB, tableID uuid.UUID) (*models.Table, error) {
	var table models.Table
	if err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).
		First(&table, "id = ?", tableID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, newError(ErrTableNotFound)
		}
		return nil, fmt.Errorf("lock table %s: %w", tableID, err)
	}
	return &table, nil
}

func setTableStatus(tx *gorm.DB, table *models.Table, status string) error {
	if err := tx.Model(&models.Table{}).
		Where("id = ?", table.ID).
		Update("status", status).Error; err != nil {
		return fmt.Errorf("set table %s status: %w", table.ID, err)
	}
	table.Status = status
	return nil
}

// activeOrderOnTable returns the id of the non-terminal order attached to a table, if any.
func activeOrderOnTable(tx *gorm.DB, tableID uuid.UUID, exclude *uuid.UUID) (*uuid.UUID, error) {
	query := tx.Model(&models.Order{}).
		Where("table_id = ? AND status IN ?", tableID, models.ActiveOrderStatuses)
	if exclude != nil {
		query = query.Where("id <> ?", *exclude)
	}

	var ids []uuid.UUID
	if err := query.Limit(1).Pluck("id", &ids).Error; err != nil {
		return nil, err
	}
	if len(ids) == 0 {
		return nil, nil
	}
	return &ids[0], nil
}

// Occupy locks a table for a new order. It fails with DuplicateOpenOrder when the
// table already carries a non-terminal order.
func (s *TableSync) Occupy(tx *gorm.DB, tableID uuid.UUID) (*models.Table, error) {
	table, err := lockTable(tx, tableID)
	if err != nil {
		return nil, err
	}

	existing, err := activeOrderOnTable(tx, tableID, nil)
	if err != nil {
		return nil, err
	}
	if existing != nil {
		return nil, NewError(ErrDuplicateOpenOrder, map[string]any{"order_id": *existing})
	}

	if err := setTableStatus(tx, table, models.TableStatusOccupied); err != nil {
		return nil, err
	}
	return table, nil
}

// Free releases a table when its order reaches a terminal state. A table that has
// since been deleted is ignored.
func (s *TableSync) Free(tx *gorm.DB, tableID uuid.UUID) (*models.Table, error) {
	table, err := lockTable(tx, tableID)
	if err != nil {
		if IsKind(err, KindTableNotFound) {
			return nil, nil
		}
		return nil, err
	}
	if err := setTableStatus(tx, table, models.TableStatusFree); err != nil {
		return nil, err
	}
	return table, nil
}

// Transfer moves an order from one table to another: the destination must be free,
// the source (when there is one) is freed. Tables are locked in id order.
func (s *TableSync) Transfer(tx *gorm.DB, orderID uuid.UUID, fromID *uuid.UUID, toID uuid.UUID) (from, to *models.Table, err error) {
	ids := []uuid.UUID{toID}
	if fromID != nil && *fromID != toID {
		ids = append(ids, *fromID)
	}
	sortIDs(ids)

	locked := make(map[uuid.UUID]*models.Table, len(ids))
	for _, id := range ids {
		table, err := lockTable(tx, id)
		if err != nil {
			if id != toID && IsKind(err, KindTableNotFound) {
				continue
			}
			return nil, nil, err
		}
		locked[id] = table
	}

	to = locked[toID]
	if to.Status != models.TableStatusFree {
		return nil, nil, NewError(ErrTableOccupied, map[string]any{"table_id": toID, "status": to.Status})
	}
	existing, err := activeOrderOnTable(tx, toID, &orderID)
	if err != nil {
		return nil, nil, err
	}
	if existing != nil {
		return nil, nil, NewError(ErrTableOccupied, map[string]any{"table_id": toID, "order_id": *existing})
	}

	if fromID != nil {
		if from = locked[*fromID]; from != nil {
			if err := setTableStatus(tx, from, models.TableStatusFree); err != nil {
				return nil, nil, err
			}
		}
	}
	if err := setTableStatus(tx, to, models.TableStatusOccupied); err != nil {
		return nil, nil, err
	}
	return from, to, nil
}

// SetStatus is the administrative free/occupied/reserved toggle.
func (s *TableSync) SetStatus(ctx context.Context, tableID uuid.UUID, status string) (*models.Table, error) {
	if !models.IsTableStatus(status) {
		return nil, newError(ErrInvalidStatus)
	}

	var table *models.Table
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var err error
		if table, err = lockTable(tx, tableID); err != nil {
			return err
		}
		return setTableStatus(tx, table, status)
	})
	if err != nil {
		return nil, err
	}

	s.log.Info("table status set by hand",
		zap.String("table_id", tableID.String()),
		zap.String("status", status))
	s.effects.after(ctx, []string{CacheKeyTables}, NewEvent(EventTableUpdated, table))
	return table, nil
}

// Delete removes a table that carries no active order.
func (s *TableSync) Delete(ctx context.Context, tableID uuid.UUID) error {
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if _, err := lockTable(tx, tableID); err != nil {
			return err
		}
		existing, err := activeOrderOnTable(tx, tableID, nil)
		if err != nil {
			return err
		}
		if existing != nil {
			return NewError(ErrTableInUse, map[string]any{"order_id": *existing})
		}
		return tx.Delete(&models.Table{}, "id = ?", tableID).Error
	})
	if err != nil {
		return err
	}

	s.log.Info("table deleted", zap.String("table_id", tableID.String()))
	s.effects.after(ctx, []string{CacheKeyTables})
	return nil
}
