package models

// User roles.
const (
	RoleAdmin   = "admin"
	RoleManager = "manager"
	RoleWaiter  = "waiter"
	RoleCook    = "cook"
	RoleCashier = "cashier"
)

// IsRole reports whether role is a known staff role.
func IsRole(role string) bool {
	switch role {
	case RoleAdmin, RoleManager, RoleWaiter, RoleCook, RoleCashier:
		return true
	}
	return false
}

// IsSupervisor reports whether the role may authorize cancellations.
func IsSupervisor(role string) bool {
	return role == RoleAdmin || role == RoleManager
}

// User represents a staff member.
type User struct {
	BaseModel
	Name         string `gorm:"not null" json:"name"`
	Email        string `gorm:"uniqueIndex;not null" json:"email"`
	PasswordHash string `json:"-"`
	Role         string `gorm:"not null;default:'waiter'" json:"role"`
	Active       bool   `gorm:"not null;default:true" json:"active"`
}
