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

func newPromotionFixture(t *testing.T) (*mocks.MockPromotionRepository, PromotionService) {
	ctrl := gomock.NewController(t)
	repo := mocks.NewMockPromotionRepository(ctrl)
	return repo, NewPromotionService(repo)
}

func TestCreatePromotionValidatesWindow(t *testing.T) {
	_, svc := newPromotionFixture(t)
	ctx := context.Background()

	_, err := svc.Create(ctx, PromotionInput{
		Name:        "Welcome back",
		Description: "Double points week",
		Type:        models.PromotionAutomatic,
		StartTime:   time.Now().Add(2 * time.Hour),
		EndTime:     time.Now().Add(time.Hour),
	})
	assert.ErrorIs(t, err, pkgerrors.ErrInvalidInput)
}

func TestCreatePromotionRejectsUnknownType(t *testing.T) {
	_, svc := newPromotionFixture(t)

	_, err := svc.Create(context.Background(), PromotionInput{
		Name:        "Welcome back",
		Description: "Double points week",
		Type:        "recurring",
		StartTime:   time.Now().Add(time.Hour),
		EndTime:     time.Now().Add(2 * time.Hour),
	})
	assert.ErrorIs(t, err, pkgerrors.ErrInvalidInput)
}

func TestUpdateStartedPromotionOnlyEndTimeMutable(t *testing.T) {
	repo, svc := newPromotionFixture(t)
	ctx := context.Background()

	started := &models.Promotion{
		ID:        3,
		Name:      "Welcome back",
		Type:      models.PromotionAutomatic,
		StartTime: time.Now().Add(-time.Hour),
		EndTime:   time.Now().Add(time.Hour),
	}
	repo.EXPECT().GetByID(gomock.Any(), int32(3)).Return(started, nil).Times(2)

	name := "Renamed"
	_, err := svc.Update(ctx, 3, PromotionUpdate{Name: &name})
	assert.ErrorIs(t, err, pkgerrors.ErrInvalidInput)

	repo.EXPECT().Update(gomock.Any(), gomock.Any()).Return(nil)
	newEnd := time.Now().Add(3 * time.Hour)
	updated, err := svc.Update(ctx, 3, PromotionUpdate{EndTime: &newEnd})
	require.NoError(t, err)
	assert.WithinDuration(t, newEnd, updated.EndTime, time.Second)
}

func TestDeleteStartedPromotionForbidden(t *testing.T) {
	repo, svc := newPromotionFixture(t)
	ctx := context.Background()

	repo.EXPECT().GetByID(gomock.Any(), int32(3)).Return(&models.Promotion{
		ID:        3,
		StartTime: time.Now().Add(-time.Hour),
		EndTime:   time.Now().Add(time.Hour),
	}, nil)

	err := svc.Delete(ctx, 3)
	assert.ErrorIs(t, err, pkgerrors.ErrForbidden)
}

func TestGetForUserHidesInactivePromotion(t *testing.T) {
	repo, svc := newPromotionFixture(t)
	ctx := context.Background()

	repo.EXPECT().GetByID(gomock.Any(), int32(3)).Return(&models.Promotion{
		ID:        3,
		StartTime: time.Now().Add(time.Hour),
		EndTime:   time.Now().Add(2 * time.Hour),
	}, nil)

	_, err := svc.GetForUser(ctx, 3)
	assert.ErrorIs(t, err, pkgerrors.ErrPromotionNotFound)
}
