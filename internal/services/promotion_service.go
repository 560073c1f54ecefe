package service

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/campuspoints/loyalty-service/internal/models"
	"github.com/campuspoints/loyalty-service/internal/repository"
	pkgerrors "github.com/campuspoints/loyalty-service/pkg/errors"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/codes"
)

type PromotionInput struct {
	Name        string
	Description string
	Type        models.PromotionType
	StartTime   time.Time
	EndTime     time.Time
	MinSpending *float64
	Rate        *float64
	Points      *int32
}

type PromotionUpdate struct {
	Name        *string
	Description *string
	Type        *models.PromotionType
	StartTime   *time.Time
	EndTime     *time.Time
	MinSpending *float64
	Rate        *float64
	Points      *int32
}

type PromotionService interface {
	Create(ctx context.Context, input PromotionInput) (*models.Promotion, error)
	GetByID(ctx context.Context, id int32) (*models.Promotion, error)
	// GetForUser returns the promotion only if it is currently active;
	// this is the regular-role view.
	GetForUser(ctx context.Context, id int32) (*models.Promotion, error)
	List(ctx context.Context, filter repository.PromotionFilter) (int, []models.Promotion, error)
	Update(ctx context.Context, id int32, update PromotionUpdate) (*models.Promotion, error)
	Delete(ctx context.Context, id int32) error
}

type promotionService struct {
	promotionRepo repository.PromotionRepository
}

func NewPromotionService(promotionRepo repository.PromotionRepository) *promotionService {
	return &promotionService{promotionRepo: promotionRepo}
}

func validatePromotionNumbers(minSpending, rate *float64, points *int32) error {
	if minSpending != nil && *minSpending <= 0 {
		return fmt.Errorf("%w: minSpending must be a positive number", pkgerrors.ErrInvalidInput)
	}
	if rate != nil && *rate <= 0 {
		return fmt.Errorf("%w: rate must be a positive number", pkgerrors.ErrInvalidInput)
	}
	if points != nil && *points < 0 {
		return fmt.Errorf("%w: points must be a non-negative integer", pkgerrors.ErrInvalidInput)
	}
	return nil
}

func (s *promotionService) Create(ctx context.Context, input PromotionInput) (*models.Promotion, error) {
	tracer := otel.Tracer("promotion-service")
	ctx, span := tracer.Start(ctx, "CreatePromotion")
	defer span.End()

	if input.Name == "" || input.Description == "" {
		return nil, fmt.Errorf("%w: name and description are required", pkgerrors.ErrInvalidInput)
	}
	if input.Type != models.PromotionOneTime && input.Type != models.PromotionAutomatic {
		return nil, fmt.Errorf("%w: type must be automatic or onetime", pkgerrors.ErrInvalidInput)
	}
	now := time.Now()
	if input.StartTime.Before(now) {
		return nil, fmt.Errorf("%w: startTime cannot be in the past", pkgerrors.ErrInvalidInput)
	}
	if !input.EndTime.After(input.StartTime) {
		return nil, fmt.Errorf("%w: endTime must be after startTime", pkgerrors.ErrInvalidInput)
	}
	if err := validatePromotionNumbers(input.MinSpending, input.Rate, input.Points); err != nil {
		return nil, err
	}

	promotion := &models.Promotion{
		Name:        input.Name,
		Description: input.Description,
		Type:        input.Type,
		StartTime:   input.StartTime,
		EndTime:     input.EndTime,
		MinSpending: input.MinSpending,
		Rate:        input.Rate,
		Points:      input.Points,
	}
	if err := s.promotionRepo.Create(ctx, promotion); err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "promotion create failed")
		return nil, err
	}

	slog.Info("promotion created", "promotion_id", promotion.ID, "name", promotion.Name, "type", promotion.Type)
	return promotion, nil
}

func (s *promotionService) GetByID(ctx context.Context, id int32) (*models.Promotion, error) {
	return s.promotionRepo.GetByID(ctx, id)
}

func (s *promotionService) GetForUser(ctx context.Context, id int32) (*models.Promotion, error) {
	promotion, err := s.promotionRepo.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	// inactive promotions are invisible below manager clearance
	if !promotion.ActiveAt(time.Now()) {
		return nil, pkgerrors.ErrPromotionNotFound
	}
	return promotion, nil
}

func (s *promotionService) List(ctx context.Context, filter repository.PromotionFilter) (int, []models.Promotion, error) {
	if filter.Started != nil && filter.Ended != nil {
		return 0, nil, fmt.Errorf("%w: started and ended cannot both be specified", pkgerrors.ErrInvalidInput)
	}
	return s.promotionRepo.List(ctx, filter)
}

// Update applies partial edits. Once a promotion has started, only its
// endTime can still change; once it has ended, nothing can.
func (s *promotionService) Update(ctx context.Context, id int32, update PromotionUpdate) (*models.Promotion, error) {
	tracer := otel.Tracer("promotion-service")
	ctx, span := tracer.Start(ctx, "UpdatePromotion")
	defer span.End()

	promotion, err := s.promotionRepo.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}

	now := time.Now()
	started := !promotion.StartTime.After(now)
	ended := !promotion.EndTime.After(now)

	if started && (update.Name != nil || update.Description != nil || update.Type != nil ||
		update.StartTime != nil || update.MinSpending != nil || update.Rate != nil || update.Points != nil) {
		return nil, fmt.Errorf("%w: promotion has already started", pkgerrors.ErrInvalidInput)
	}
	if ended && update.EndTime != nil {
		return nil, fmt.Errorf("%w: promotion has already ended", pkgerrors.ErrInvalidInput)
	}

	if update.Name != nil {
		if *update.Name == "" {
			return nil, fmt.Errorf("%w: name cannot be empty", pkgerrors.ErrInvalidInput)
		}
		promotion.Name = *update.Name
	}
	if update.Description != nil {
		promotion.Description = *update.Description
	}
	if update.Type != nil {
		if *update.Type != models.PromotionOneTime && *update.Type != models.PromotionAutomatic {
			return nil, fmt.Errorf("%w: type must be automatic or onetime", pkgerrors.ErrInvalidInput)
		}
		promotion.Type = *update.Type
	}
	if update.StartTime != nil {
		if update.StartTime.Before(now) {
			return nil, fmt.Errorf("%w: startTime cannot be in the past", pkgerrors.ErrInvalidInput)
		}
		promotion.StartTime = *update.StartTime
	}
	if update.EndTime != nil {
		if update.EndTime.Before(now) {
			return nil, fmt.Errorf("%w: endTime cannot be in the past", pkgerrors.ErrInvalidInput)
		}
		promotion.EndTime = *update.EndTime
	}
	if !promotion.EndTime.After(promotion.StartTime) {
		return nil, fmt.Errorf("%w: endTime must be after startTime", pkgerrors.ErrInvalidInput)
	}
	if update.MinSpending != nil {
		promotion.MinSpending = update.MinSpending
	}
	if update.Rate != nil {
		promotion.Rate = update.Rate
	}
	if update.Points != nil {
		promotion.Points = update.Points
	}
	if err := validatePromotionNumbers(promotion.MinSpending, promotion.Rate, promotion.Points); err != nil {
		return nil, err
	}

	if err := s.promotionRepo.Update(ctx, promotion); err != nil {
		span.RecordError(err)
		return nil, err
	}

	slog.Info("promotion updated", "promotion_id", promotion.ID)
	return promotion, nil
}

// Delete removes a promotion that has not started yet.
func (s *promotionService) Delete(ctx context.Context, id int32) error {
	tracer := otel.Tracer("promotion-service")
	ctx, span := tracer.Start(ctx, "DeletePromotion")
	defer span.End()

	promotion, err := s.promotionRepo.GetByID(ctx, id)
	if err != nil {
		return err
	}
	if !promotion.StartTime.After(time.Now()) {
		span.SetStatus(codes.Error, "promotion already started")
		return pkgerrors.ErrForbidden
	}
	if err := s.promotionRepo.Delete(ctx, id); err != nil {
		span.RecordError(err)
		return err
	}

	slog.Info("promotion deleted", "promotion_id", id)
	return nil
}
