package models

// Category groups products on the menu.
type Category struct {
	BaseModel
	Name         string    `gorm:"not null" json:"name"`
	Description  string    `json:"description"`
	DisplayOrder int       `json:"display_order"`
	Active       bool      `gorm:"not null;default:true" json:"active"`
	Products     []Product `json:"products,omitempty"`
}
