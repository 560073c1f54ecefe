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

type EventInput struct {
	Name        string
	Description string
	Location    string
	StartTime   time.Time
	EndTime     time.Time
	Capacity    *int32
	Points      int32
}

type EventUpdate struct {
	Name        *string
	Description *string
	Location    *string
	StartTime   *time.Time
	EndTime     *time.Time
	Capacity    *int32
	Points      *int32
	Published   *bool
}

type EventService interface {
	Create(ctx context.Context, input EventInput) (*models.Event, error)
	GetByID(ctx context.Context, id int32) (*models.Event, error)
	// GetPublished is the regular-role view: unpublished events do not exist.
	GetPublished(ctx context.Context, id int32) (*models.Event, error)
	List(ctx context.Context, filter repository.EventFilter) (int, []models.Event, error)
	Update(ctx context.Context, id int32, update EventUpdate, isManager bool) (*models.Event, error)
	Delete(ctx context.Context, id int32) error
	AddOrganizer(ctx context.Context, eventID int32, utorid string) (*models.Event, error)
	RemoveOrganizer(ctx context.Context, eventID, userID int32) error
	IsOrganizer(ctx context.Context, eventID, userID int32) (bool, error)
	AddGuest(ctx context.Context, eventID int32, utorid string) (*models.Event, models.EventMember, error)
	RemoveGuest(ctx context.Context, eventID, userID int32) error
	RSVP(ctx context.Context, eventID, userID int32) error
	CancelRSVP(ctx context.Context, eventID, userID int32) error
}

type eventService struct {
	eventRepo repository.EventRepository
	userRepo  repository.UserRepository
}

func NewEventService(eventRepo repository.EventRepository, userRepo repository.UserRepository) *eventService {
	return &eventService{eventRepo: eventRepo, userRepo: userRepo}
}

func (s *eventService) Create(ctx context.Context, input EventInput) (*models.Event, error) {
	tracer := otel.Tracer("event-service")
	ctx, span := tracer.Start(ctx, "CreateEvent")
	defer span.End()

	if input.Name == "" || input.Description == "" || input.Location == "" {
		return nil, fmt.Errorf("%w: name, description and location are required", pkgerrors.ErrInvalidInput)
	}
	now := time.Now()
	if input.StartTime.Before(now) {
		return nil, fmt.Errorf("%w: startTime cannot be in the past", pkgerrors.ErrInvalidInput)
	}
	if !input.EndTime.After(input.StartTime) {
		return nil, fmt.Errorf("%w: endTime must be after startTime", pkgerrors.ErrInvalidInput)
	}
	if input.Capacity != nil && *input.Capacity <= 0 {
		return nil, fmt.Errorf("%w: capacity must be a positive integer", pkgerrors.ErrInvalidInput)
	}
	if input.Points <= 0 {
		return nil, fmt.Errorf("%w: points must be a positive integer", pkgerrors.ErrInvalidInput)
	}

	event := &models.Event{
		Name:        input.Name,
		Description: input.Description,
		Location:    input.Location,
		StartTime:   input.StartTime,
		EndTime:     input.EndTime,
		Capacity:    input.Capacity,
		Points:      input.Points,
	}
	if err := s.eventRepo.Create(ctx, event); err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "event create failed")
		return nil, err
	}

	slog.Info("event created", "event_id", event.ID, "name", event.Name, "points", event.Points)
	return event, nil
}

func (s *eventService) GetByID(ctx context.Context, id int32) (*models.Event, error) {
	return s.eventRepo.GetByID(ctx, id)
}

func (s *eventService) GetPublished(ctx context.Context, id int32) (*models.Event, error) {
	event, err := s.eventRepo.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if !event.Published {
		return nil, pkgerrors.ErrEventNotFound
	}
	return event, nil
}

func (s *eventService) List(ctx context.Context, filter repository.EventFilter) (int, []models.Event, error) {
	if filter.Started != nil && filter.Ended != nil {
		return 0, nil, fmt.Errorf("%w: started and ended cannot both be specified", pkgerrors.ErrInvalidInput)
	}
	return s.eventRepo.List(ctx, filter)
}

// Update applies partial edits. Fields that shaped attendance cannot change
// once the event has started, the point pool and publication are manager
// territory, and the pool can never shrink below what is already awarded.
func (s *eventService) Update(ctx context.Context, id int32, update EventUpdate, isManager bool) (*models.Event, error) {
	tracer := otel.Tracer("event-service")
	ctx, span := tracer.Start(ctx, "UpdateEvent")
	defer span.End()

	event, err := s.eventRepo.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}

	now := time.Now()
	started := !event.StartTime.After(now)
	ended := !event.EndTime.After(now)

	if started && (update.Name != nil || update.Description != nil || update.Location != nil ||
		update.StartTime != nil || update.Capacity != nil) {
		return nil, fmt.Errorf("%w: event has already started", pkgerrors.ErrInvalidInput)
	}
	if ended && update.EndTime != nil {
		return nil, fmt.Errorf("%w: event has already ended", pkgerrors.ErrInvalidInput)
	}
	if (update.Points != nil || update.Published != nil) && !isManager {
		span.SetStatus(codes.Error, "manager-only fields")
		return nil, pkgerrors.ErrForbidden
	}

	if update.Name != nil {
		if *update.Name == "" {
			return nil, fmt.Errorf("%w: name cannot be empty", pkgerrors.ErrInvalidInput)
		}
		event.Name = *update.Name
	}
	if update.Description != nil {
		event.Description = *update.Description
	}
	if update.Location != nil {
		event.Location = *update.Location
	}
	if update.StartTime != nil {
		if update.StartTime.Before(now) {
			return nil, fmt.Errorf("%w: startTime cannot be in the past", pkgerrors.ErrInvalidInput)
		}
		event.StartTime = *update.StartTime
	}
	if update.EndTime != nil {
		if update.EndTime.Before(now) {
			return nil, fmt.Errorf("%w: endTime cannot be in the past", pkgerrors.ErrInvalidInput)
		}
		event.EndTime = *update.EndTime
	}
	if !event.EndTime.After(event.StartTime) {
		return nil, fmt.Errorf("%w: endTime must be after startTime", pkgerrors.ErrInvalidInput)
	}
	if update.Capacity != nil {
		if *update.Capacity <= 0 {
			return nil, fmt.Errorf("%w: capacity must be a positive integer", pkgerrors.ErrInvalidInput)
		}
		if int32(len(event.Guests)) > *update.Capacity {
			return nil, fmt.Errorf("%w: capacity cannot drop below the current guest count", pkgerrors.ErrInvalidInput)
		}
		event.Capacity = update.Capacity
	}
	if update.Points != nil {
		if *update.Points <= 0 {
			return nil, fmt.Errorf("%w: points must be a positive integer", pkgerrors.ErrInvalidInput)
		}
		if *update.Points < event.PointsAwarded {
			return nil, fmt.Errorf("%w: points cannot drop below what is already awarded", pkgerrors.ErrInvalidInput)
		}
		event.Points = *update.Points
	}
	if update.Published != nil {
		// publication is one-way
		if !*update.Published {
			return nil, fmt.Errorf("%w: published can only be set to true", pkgerrors.ErrInvalidInput)
		}
		event.Published = true
	}

	if err := s.eventRepo.Update(ctx, event); err != nil {
		span.RecordError(err)
		return nil, err
	}

	slog.Info("event updated", "event_id", event.ID, "published", event.Published)
	return event, nil
}

// Delete removes an event that has not been published yet.
func (s *eventService) Delete(ctx context.Context, id int32) error {
	tracer := otel.Tracer("event-service")
	ctx, span := tracer.Start(ctx, "DeleteEvent")
	defer span.End()

	event, err := s.eventRepo.GetByID(ctx, id)
	if err != nil {
		return err
	}
	if event.Published {
		span.SetStatus(codes.Error, "event is published")
		return pkgerrors.ErrEventPublished
	}
	if err := s.eventRepo.Delete(ctx, id); err != nil {
		span.RecordError(err)
		return err
	}

	slog.Info("event deleted", "event_id", id)
	return nil
}

func (s *eventService) AddOrganizer(ctx context.Context, eventID int32, utorid string) (*models.Event, error) {
	tracer := otel.Tracer("event-service")
	ctx, span := tracer.Start(ctx, "AddOrganizer")
	defer span.End()

	event, err := s.eventRepo.GetByID(ctx, eventID)
	if err != nil {
		return nil, err
	}
	if event.Ended(time.Now()) {
		return nil, pkgerrors.ErrEventEnded
	}
	user, err := s.userRepo.GetByUtorid(ctx, utorid)
	if err != nil {
		return nil, err
	}
	// a guest must leave the guest list before organizing
	if event.IsGuest(user.ID) {
		return nil, fmt.Errorf("%w: user is registered as a guest", pkgerrors.ErrInvalidInput)
	}
	if err := s.eventRepo.AddOrganizer(ctx, eventID, user.ID); err != nil {
		span.RecordError(err)
		return nil, err
	}

	slog.Info("organizer added", "event_id", eventID, "utorid", utorid)
	return s.eventRepo.GetByID(ctx, eventID)
}

func (s *eventService) RemoveOrganizer(ctx context.Context, eventID, userID int32) error {
	if _, err := s.eventRepo.GetByID(ctx, eventID); err != nil {
		return err
	}
	if err := s.eventRepo.RemoveOrganizer(ctx, eventID, userID); err != nil {
		return err
	}
	slog.Info("organizer removed", "event_id", eventID, "user_id", userID)
	return nil
}

func (s *eventService) IsOrganizer(ctx context.Context, eventID, userID int32) (bool, error) {
	return s.eventRepo.IsOrganizer(ctx, eventID, userID)
}

func (s *eventService) AddGuest(ctx context.Context, eventID int32, utorid string) (*models.Event, models.EventMember, error) {
	tracer := otel.Tracer("event-service")
	ctx, span := tracer.Start(ctx, "AddGuest")
	defer span.End()

	event, err := s.eventRepo.GetByID(ctx, eventID)
	if err != nil {
		return nil, models.EventMember{}, err
	}
	if event.Ended(time.Now()) {
		return nil, models.EventMember{}, pkgerrors.ErrEventEnded
	}
	if event.Full() {
		return nil, models.EventMember{}, pkgerrors.ErrEventFull
	}
	user, err := s.userRepo.GetByUtorid(ctx, utorid)
	if err != nil {
		return nil, models.EventMember{}, err
	}
	organizer, err := s.eventRepo.IsOrganizer(ctx, eventID, user.ID)
	if err != nil {
		return nil, models.EventMember{}, err
	}
	if organizer {
		return nil, models.EventMember{}, fmt.Errorf("%w: user is an organizer of the event", pkgerrors.ErrInvalidInput)
	}
	if err := s.eventRepo.AddGuest(ctx, eventID, user.ID); err != nil {
		span.RecordError(err)
		return nil, models.EventMember{}, err
	}

	guest := models.EventMember{UserID: user.ID, Utorid: user.Utorid, Name: user.Name}
	slog.Info("guest added", "event_id", eventID, "utorid", utorid)
	updated, err := s.eventRepo.GetByID(ctx, eventID)
	if err != nil {
		return nil, models.EventMember{}, err
	}
	return updated, guest, nil
}

func (s *eventService) RemoveGuest(ctx context.Context, eventID, userID int32) error {
	event, err := s.eventRepo.GetByID(ctx, eventID)
	if err != nil {
		return err
	}
	if !event.IsGuest(userID) {
		return pkgerrors.ErrUserNotFound
	}
	if err := s.eventRepo.RemoveGuest(ctx, eventID, userID); err != nil {
		return err
	}
	slog.Info("guest removed", "event_id", eventID, "user_id", userID)
	return nil
}

// RSVP registers the caller as a guest of a published event.
func (s *eventService) RSVP(ctx context.Context, eventID, userID int32) error {
	tracer := otel.Tracer("event-service")
	ctx, span := tracer.Start(ctx, "RSVP")
	defer span.End()

	event, err := s.eventRepo.GetByID(ctx, eventID)
	if err != nil {
		return err
	}
	if !event.Published {
		return pkgerrors.ErrEventNotFound
	}
	if event.Ended(time.Now()) {
		return pkgerrors.ErrEventEnded
	}
	if event.Full() {
		return pkgerrors.ErrEventFull
	}
	if event.IsGuest(userID) {
		return pkgerrors.ErrAlreadyGuest
	}
	if err := s.eventRepo.AddGuest(ctx, eventID, userID); err != nil {
		span.RecordError(err)
		return err
	}

	slog.Info("rsvp recorded", "event_id", eventID, "user_id", userID)
	return nil
}

func (s *eventService) CancelRSVP(ctx context.Context, eventID, userID int32) error {
	event, err := s.eventRepo.GetByID(ctx, eventID)
	if err != nil {
		return err
	}
	if event.Ended(time.Now()) {
		return pkgerrors.ErrEventEnded
	}
	if !event.IsGuest(userID) {
		return pkgerrors.ErrUserNotFound
	}
	if err := s.eventRepo.RemoveGuest(ctx, eventID, userID); err != nil {
		return err
	}
	slog.Info("rsvp cancelled", "event_id", eventID, "user_id", userID)
	return nil
}
