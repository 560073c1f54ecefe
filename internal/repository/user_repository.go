package repository

import (
	"context"
	"time"

	"github.com/campuspoints/loyalty-service/internal/models"
)

type UserFilter struct {
	Name      string
	Role      models.Role
	Verified  *bool
	Activated *bool
	Page      int
	Limit     int
}

type UserRepository interface {
	Create(ctx context.Context, user *models.User) error
	GetByID(ctx context.Context, id int32) (*models.User, error)
	GetByUtorid(ctx context.Context, utorid string) (*models.User, error)
	GetByUtoridOrEmail(ctx context.Context, utorid, email string) (*models.User, error)
	List(ctx context.Context, filter UserFilter) (int, []models.User, error)
	Update(ctx context.Context, user *models.User) error
	SetPassword(ctx context.Context, userID int32, passwordHash string) error
	SetLastLogin(ctx context.Context, userID int32, at time.Time) error
	ChangeBalance(ctx context.Context, userID, delta int32) (newBalance int32, err error)
	ConsumedPromotionIDs(ctx context.Context, userID int32) ([]int32, error)
}

type ResetTokenRepository interface {
	Create(ctx context.Context, token *models.ResetToken) error
	GetByToken(ctx context.Context, token string) (*models.ResetToken, error)
	DeleteForUser(ctx context.Context, userID int32) error
	Delete(ctx context.Context, id int32) error
}
