package repository

import (
	"context"
	"time"

	"github.com/campuspoints/loyalty-service/internal/models"
)

type PromotionFilter struct {
	Name    string
	Type    models.PromotionType
	Started *bool
	Ended   *bool
	// ForUserID restricts results to currently active promotions the user
	// has not yet consumed (the regular-role view).
	ForUserID *int32
	Page      int
	Limit     int
}

type PromotionRepository interface {
	Create(ctx context.Context, promotion *models.Promotion) error
	GetByID(ctx context.Context, id int32) (*models.Promotion, error)
	List(ctx context.Context, filter PromotionFilter) (int, []models.Promotion, error)
	Update(ctx context.Context, promotion *models.Promotion) error
	Delete(ctx context.Context, id int32) error
	// ActiveAutomatic returns automatic promotions whose window covers now
	// and whose minSpending (if any) is satisfied by spent.
	ActiveAutomatic(ctx context.Context, now time.Time, spent float64) ([]models.Promotion, error)
}
