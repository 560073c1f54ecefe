package repository

import (
	"context"

	"github.com/campuspoints/loyalty-service/internal/models"
)

type EventFilter struct {
	Name      string
	Location  string
	Started   *bool
	Ended     *bool
	Published *bool
	HideFull  bool
	Page      int
	Limit     int
}

type EventRepository interface {
	Create(ctx context.Context, event *models.Event) error
	GetByID(ctx context.Context, id int32) (*models.Event, error)
	List(ctx context.Context, filter EventFilter) (int, []models.Event, error)
	Update(ctx context.Context, event *models.Event) error
	Delete(ctx context.Context, id int32) error
	AddOrganizer(ctx context.Context, eventID, userID int32) error
	RemoveOrganizer(ctx context.Context, eventID, userID int32) error
	IsOrganizer(ctx context.Context, eventID, userID int32) (bool, error)
	AddGuest(ctx context.Context, eventID, userID int32) error
	RemoveGuest(ctx context.Context, eventID, userID int32) error
}
