package models

import "github.com/google/uuid"

// Table statuses.
const (
	TableStatusFree     = "free"
	TableStatusOccupied = "occupied"
	TableStatusReserved = "reserved"
)

// IsTableStatus reports whether status is a known table status.
func IsTableStatus(status string) bool {
	return status == TableStatusFree || status == TableStatusOccupied || status == TableStatusReserved
}

// Area is a section of the dining room (hall, terrace, ...).
type Area struct {
	BaseModel
	Name     string  `gorm:"not null" json:"name"`
	IsActive bool    `gorm:"not null;default:true" json:"is_active"`
	Tables   []Table `json:"tables,omitempty"`
}

// Table is a physical table. Its status mirrors the lifecycle of the order
// attached to it and is only set by hand through the admin toggle.
type Table struct {
	BaseModel
	Number   int        `gorm:"uniqueIndex;not null" json:"number"`
	Capacity int        `gorm:"not null;default:4" json:"capacity"`
	AreaID   *uuid.UUID `gorm:"type:uuid;index" json:"area_id"`
	Area     *Area      `json:"area,omitempty"`
	Status   string     `gorm:"not null;default:'free'" json:"status"`
}
