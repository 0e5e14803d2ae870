package models

import (
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// Product is a catalog entry that can be ordered.
// StockQuantity == nil means stock is not tracked for the product, which is a
// different thing from a tracked count of zero.
type Product struct {
	BaseModel
	Code          string          `gorm:"index" json:"code"`
	Name          string          `gorm:"not null" json:"name"`
	Description   string          `json:"description"`
	Price         decimal.Decimal `gorm:"type:decimal(10,2);not null" json:"price"`
	Active        bool            `gorm:"not null;default:true" json:"active"`
	CategoryID    *uuid.UUID      `gorm:"type:uuid;index" json:"category_id"`
	Category      *Category       `json:"category,omitempty"`
	StockQuantity *int            `json:"stock_quantity"`
	StockMinimum  *int            `json:"stock_minimum"`
}

// IsStockTracked reports whether inventory gates orders for this product.
func (p *Product) IsStockTracked() bool {
	return p.StockQuantity != nil
}

// IsLowStock reports whether a tracked product is at or below its minimum.
func (p *Product) IsLowStock() bool {
	if p.StockQuantity == nil || p.StockMinimum == nil {
		return false
	}
	return *p.StockQuantity <= *p.StockMinimum
}
