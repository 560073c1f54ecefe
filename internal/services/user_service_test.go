package service

import (
	"context"
	"testing"

	redismocks "github.com/campuspoints/loyalty-service/internal/infrastructure/redis/mocks"
	"github.com/campuspoints/loyalty-service/internal/models"
	"github.com/campuspoints/loyalty-service/internal/repository/mocks"
	pkgerrors "github.com/campuspoints/loyalty-service/pkg/errors"
	"github.com/golang/mock/gomock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type userFixture struct {
	userRepo      *mocks.MockUserRepository
	tokenRepo     *mocks.MockResetTokenRepository
	promotionRepo *mocks.MockPromotionRepository
	redisClient   *redismocks.MockRedisClient
	service       UserService
}

func newUserFixture(t *testing.T) *userFixture {
	ctrl := gomock.NewController(t)
	f := &userFixture{
		userRepo:      mocks.NewMockUserRepository(ctrl),
		tokenRepo:     mocks.NewMockResetTokenRepository(ctrl),
		promotionRepo: mocks.NewMockPromotionRepository(ctrl),
		redisClient:   redismocks.NewMockRedisClient(ctrl),
	}
	f.service = NewUserService(f.userRepo, f.tokenRepo, f.promotionRepo, f.redisClient)
	return f
}

func TestRegisterCreatesUnverifiedRegularWithActivationToken(t *testing.T) {
	f := newUserFixture(t)
	ctx := context.Background()

	f.userRepo.EXPECT().
		Create(gomock.Any(), gomock.Any()).
		DoAndReturn(func(_ context.Context, u *models.User) error {
			u.ID = 5
			return nil
		})
	f.tokenRepo.EXPECT().Create(gomock.Any(), gomock.Any()).Return(nil)

	user, token, err := f.service.Register(ctx, RegisterRequest{
		Utorid: "clive123",
		Name:   "Clive Su",
		Email:  "clive.su@mail.utoronto.ca",
	})
	require.NoError(t, err)
	assert.Equal(t, models.RoleRegular, user.Role)
	assert.False(t, user.Verified)
	assert.NotEmpty(t, token.Token)
	assert.Equal(t, int32(5), token.UserID)
}

func TestRegisterValidatesInput(t *testing.T) {
	tests := []struct {
		name string
		req  RegisterRequest
	}{
		{"utorid too short", RegisterRequest{Utorid: "short", Name: "A", Email: "a@mail.utoronto.ca"}},
		{"utorid with symbols", RegisterRequest{Utorid: "cl!ve123", Name: "A", Email: "a@mail.utoronto.ca"}},
		{"non-utoronto email", RegisterRequest{Utorid: "clive123", Name: "A", Email: "a@gmail.com"}},
		{"empty name", RegisterRequest{Utorid: "clive123", Name: "", Email: "a@mail.utoronto.ca"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newUserFixture(t)
			_, _, err := f.service.Register(context.Background(), tt.req)
			assert.ErrorIs(t, err, pkgerrors.ErrInvalidInput)
		})
	}
}

func TestUpdateUserManagerCannotPromoteToManager(t *testing.T) {
	f := newUserFixture(t)
	ctx := context.Background()

	f.userRepo.EXPECT().GetByID(gomock.Any(), int32(5)).Return(&models.User{ID: 5, Role: models.RoleRegular}, nil)

	role := models.RoleManager
	_, err := f.service.UpdateUser(ctx, 5, UserUpdate{Role: &role}, models.RoleManager)
	assert.ErrorIs(t, err, pkgerrors.ErrForbidden)
}

func TestUpdateUserSuperuserCanPromoteToManager(t *testing.T) {
	f := newUserFixture(t)
	ctx := context.Background()

	f.userRepo.EXPECT().GetByID(gomock.Any(), int32(5)).Return(&models.User{ID: 5, Role: models.RoleRegular}, nil)
	f.userRepo.EXPECT().Update(gomock.Any(), gomock.Any()).Return(nil)

	role := models.RoleManager
	user, err := f.service.UpdateUser(ctx, 5, UserUpdate{Role: &role}, models.RoleSuperuser)
	require.NoError(t, err)
	assert.Equal(t, models.RoleManager, user.Role)
}

func TestUpdateUserPromotionToCashierClearsSuspicious(t *testing.T) {
	f := newUserFixture(t)
	ctx := context.Background()

	f.userRepo.EXPECT().GetByID(gomock.Any(), int32(5)).Return(&models.User{ID: 5, Role: models.RoleRegular, Suspicious: true}, nil)
	f.userRepo.EXPECT().Update(gomock.Any(), gomock.Any()).Return(nil)

	role := models.RoleCashier
	user, err := f.service.UpdateUser(ctx, 5, UserUpdate{Role: &role}, models.RoleManager)
	require.NoError(t, err)
	assert.False(t, user.Suspicious)
}

func TestUpdateUserVerificationIsOneWay(t *testing.T) {
	f := newUserFixture(t)
	ctx := context.Background()

	f.userRepo.EXPECT().GetByID(gomock.Any(), int32(5)).Return(&models.User{ID: 5, Verified: true}, nil)

	verified := false
	_, err := f.service.UpdateUser(ctx, 5, UserUpdate{Verified: &verified}, models.RoleManager)
	assert.ErrorIs(t, err, pkgerrors.ErrInvalidInput)
}

func TestGetBalanceServesFromCache(t *testing.T) {
	f := newUserFixture(t)
	ctx := context.Background()

	f.redisClient.EXPECT().Get(gomock.Any(), "user:1:balance").Return("420", nil)

	balance, err := f.service.GetBalance(ctx, 1)
	require.NoError(t, err)
	assert.Equal(t, int32(420), balance)
}

func TestGetBalanceFallsBackToDatabaseAndCaches(t *testing.T) {
	f := newUserFixture(t)
	ctx := context.Background()

	f.redisClient.EXPECT().Get(gomock.Any(), "user:1:balance").Return("", pkgerrors.ErrInternal)
	f.userRepo.EXPECT().GetByID(gomock.Any(), int32(1)).Return(&models.User{ID: 1, Points: 300}, nil)
	f.redisClient.EXPECT().Set(gomock.Any(), "user:1:balance", "300", gomock.Any()).Return(nil)

	balance, err := f.service.GetBalance(ctx, 1)
	require.NoError(t, err)
	assert.Equal(t, int32(300), balance)
}

func TestChangePasswordEnforcesComplexity(t *testing.T) {
	f := newUserFixture(t)

	err := f.service.ChangePassword(context.Background(), 1, "old", "weak")
	assert.ErrorIs(t, err, pkgerrors.ErrInvalidInput)
}
