package models

import "github.com/google/uuid"

// Stock movement kinds.
const (
	StockMovementReserve = "reserve"
	StockMovementRelease = "release"
	StockMovementAdjust  = "adjust"
)

// StockMovement records one change of a tracked product's quantity.
type StockMovement struct {
	BaseModel
	ProductID     uuid.UUID  `gorm:"type:uuid;index;not null" json:"product_id"`
	Kind          string     `gorm:"not null" json:"kind"`
	Delta         int        `gorm:"not null" json:"delta"`
	PreviousStock int        `gorm:"not null" json:"previous_stock"`
	NewStock      int        `gorm:"not null" json:"new_stock"`
	OrderID       *uuid.UUID `gorm:"type:uuid;index" json:"order_id"`
	Reason        string     `json:"reason"`
}
