package service

import (
	"context"
	"testing"
	"time"

	"github.com/campuspoints/loyalty-service/internal/models"
	"github.com/campuspoints/loyalty-service/internal/repository/mocks"
	pkgerrors "github.com/campuspoints/loyalty-service/pkg/errors"
	"github.com/golang/mock/gomock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type eventFixture struct {
	eventRepo *mocks.MockEventRepository
	userRepo  *mocks.MockUserRepository
	service   EventService
}

func newEventFixture(t *testing.T) *eventFixture {
	ctrl := gomock.NewController(t)
	f := &eventFixture{
		eventRepo: mocks.NewMockEventRepository(ctrl),
		userRepo:  mocks.NewMockUserRepository(ctrl),
	}
	f.service = NewEventService(f.eventRepo, f.userRepo)
	return f
}

func int32Ptr(v int32) *int32 { return &v }

func futureEvent(published bool) *models.Event {
	now := time.Now()
	return &models.Event{
		ID:           4,
		Name:         "Hackathon",
		StartTime:    now.Add(time.Hour),
		EndTime:      now.Add(5 * time.Hour),
		Points:       100,
		PointsRemain: 100,
		Published:    published,
	}
}

func TestRSVPRejectsUnpublishedEvent(t *testing.T) {
	f := newEventFixture(t)
	ctx := context.Background()

	f.eventRepo.EXPECT().GetByID(gomock.Any(), int32(4)).Return(futureEvent(false), nil)

	err := f.service.RSVP(ctx, 4, 1)
	assert.ErrorIs(t, err, pkgerrors.ErrEventNotFound)
}

func TestRSVPRejectsFullEvent(t *testing.T) {
	f := newEventFixture(t)
	ctx := context.Background()

	event := futureEvent(true)
	event.Capacity = int32Ptr(1)
	event.Guests = []models.EventMember{{UserID: 9}}
	f.eventRepo.EXPECT().GetByID(gomock.Any(), int32(4)).Return(event, nil)

	err := f.service.RSVP(ctx, 4, 1)
	assert.ErrorIs(t, err, pkgerrors.ErrEventFull)
}

func TestRSVPRejectsEndedEvent(t *testing.T) {
	f := newEventFixture(t)
	ctx := context.Background()

	event := futureEvent(true)
	event.StartTime = time.Now().Add(-3 * time.Hour)
	event.EndTime = time.Now().Add(-time.Hour)
	f.eventRepo.EXPECT().GetByID(gomock.Any(), int32(4)).Return(event, nil)

	err := f.service.RSVP(ctx, 4, 1)
	assert.ErrorIs(t, err, pkgerrors.ErrEventEnded)
}

func TestRSVPRegistersGuestOnce(t *testing.T) {
	f := newEventFixture(t)
	ctx := context.Background()

	event := futureEvent(true)
	event.Guests = []models.EventMember{{UserID: 1}}
	f.eventRepo.EXPECT().GetByID(gomock.Any(), int32(4)).Return(event, nil)

	err := f.service.RSVP(ctx, 4, 1)
	assert.ErrorIs(t, err, pkgerrors.ErrAlreadyGuest)
}

func TestUpdateEventPointsRequiresManager(t *testing.T) {
	f := newEventFixture(t)
	ctx := context.Background()

	f.eventRepo.EXPECT().GetByID(gomock.Any(), int32(4)).Return(futureEvent(false), nil)

	_, err := f.service.Update(ctx, 4, EventUpdate{Points: int32Ptr(200)}, false)
	assert.ErrorIs(t, err, pkgerrors.ErrForbidden)
}

func TestUpdateEventPoolCannotShrinkBelowAwarded(t *testing.T) {
	f := newEventFixture(t)
	ctx := context.Background()

	event := futureEvent(false)
	event.PointsAwarded = 60
	event.PointsRemain = 40
	f.eventRepo.EXPECT().GetByID(gomock.Any(), int32(4)).Return(event, nil)

	_, err := f.service.Update(ctx, 4, EventUpdate{Points: int32Ptr(50)}, true)
	assert.ErrorIs(t, err, pkgerrors.ErrInvalidInput)
}

func TestUpdateEventCapacityCannotDropBelowGuests(t *testing.T) {
	f := newEventFixture(t)
	ctx := context.Background()

	event := futureEvent(false)
	event.Guests = []models.EventMember{{UserID: 1}, {UserID: 2}, {UserID: 3}}
	f.eventRepo.EXPECT().GetByID(gomock.Any(), int32(4)).Return(event, nil)

	_, err := f.service.Update(ctx, 4, EventUpdate{Capacity: int32Ptr(2)}, true)
	assert.ErrorIs(t, err, pkgerrors.ErrInvalidInput)
}

func TestDeletePublishedEventRejected(t *testing.T) {
	f := newEventFixture(t)
	ctx := context.Background()

	f.eventRepo.EXPECT().GetByID(gomock.Any(), int32(4)).Return(futureEvent(true), nil)

	err := f.service.Delete(ctx, 4)
	assert.ErrorIs(t, err, pkgerrors.ErrEventPublished)
}

func TestAddOrganizerRejectsGuest(t *testing.T) {
	f := newEventFixture(t)
	ctx := context.Background()

	event := futureEvent(true)
	event.Guests = []models.EventMember{{UserID: 7, Utorid: "guestone"}}
	f.eventRepo.EXPECT().GetByID(gomock.Any(), int32(4)).Return(event, nil)
	f.userRepo.EXPECT().GetByUtorid(gomock.Any(), "guestone").Return(&models.User{ID: 7, Utorid: "guestone"}, nil)

	_, err := f.service.AddOrganizer(ctx, 4, "guestone")
	assert.ErrorIs(t, err, pkgerrors.ErrInvalidInput)
}

func TestAddGuestRejectsOrganizer(t *testing.T) {
	f := newEventFixture(t)
	ctx := context.Background()

	f.eventRepo.EXPECT().GetByID(gomock.Any(), int32(4)).Return(futureEvent(true), nil)
	f.userRepo.EXPECT().GetByUtorid(gomock.Any(), "organzr1").Return(&models.User{ID: 8, Utorid: "organzr1"}, nil)
	f.eventRepo.EXPECT().IsOrganizer(gomock.Any(), int32(4), int32(8)).Return(true, nil)

	_, _, err := f.service.AddGuest(ctx, 4, "organzr1")
	assert.ErrorIs(t, err, pkgerrors.ErrInvalidInput)
}

func TestPublishIsOneWay(t *testing.T) {
	f := newEventFixture(t)
	ctx := context.Background()

	f.eventRepo.EXPECT().GetByID(gomock.Any(), int32(4)).Return(futureEvent(true), nil)

	published := false
	_, err := f.service.Update(ctx, 4, EventUpdate{Published: &published}, true)
	assert.ErrorIs(t, err, pkgerrors.ErrInvalidInput)
}

func TestCreateEventInitializesPool(t *testing.T) {
	f := newEventFixture(t)
	ctx := context.Background()

	f.eventRepo.EXPECT().
		Create(gomock.Any(), gomock.Any()).
		DoAndReturn(func(_ context.Context, e *models.Event) error {
			e.ID = 4
			e.PointsRemain = e.Points
			return nil
		})

	event, err := f.service.Create(ctx, EventInput{
		Name:        "Hackathon",
		Description: "Annual hackathon",
		Location:    "BA 2250",
		StartTime:   time.Now().Add(time.Hour),
		EndTime:     time.Now().Add(8 * time.Hour),
		Points:      500,
	})
	require.NoError(t, err)
	assert.Equal(t, int32(500), event.PointsRemain)
	assert.False(t, event.Published)
}
