package services

import (
	"context"
	"errors"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/example/restopos/internal/models"
	"github.com/example/restopos/internal/utils"
)

// Actor is the staff member asking for a privileged operation, together with the
// password they re-entered to confirm it.
type Actor struct {
	UserID   uuid.UUID
	Password string
}

// CancelAuthorizer decides whether an actor may cancel orders.
type CancelAuthorizer interface {
	AuthorizeCancel(ctx context.Context, actor Actor) (*models.User, error)
}

// SupervisorAuthorizer lets active admins and managers cancel orders after they
// re-enter their own password.
type SupervisorAuthorizer struct {
	db *gorm.DB
}

// NewSupervisorAuthorizer constructs a SupervisorAuthorizer.
func NewSupervisorAuthorizer(db *gorm.DB) *SupervisorAuthorizer {
	return &SupervisorAuthorizer{db: db}
}

// AuthorizeCancel returns the verified supervisor.
func (a *SupervisorAuthorizer) AuthorizeCancel(ctx context.Context, actor Actor) (*models.User, error) {
	var user models.User
	if err := a.db.WithContext(ctx).First(&user, "id = ?", actor.UserID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, newError(ErrForbiddenRole)
		}
		return nil, err
	}

	if !user.Active || !models.IsSupervisor(user.Role) {
		return nil, NewError(ErrForbiddenRole, map[string]any{"role": user.Role})
	}
	if actor.Password == "" || !utils.CheckPassword(user.PasswordHash, actor.Password) {
		return nil, newError(ErrForbiddenPassword)
	}
	return &user, nil
}
