package service

import (
	"context"
	"testing"
	"time"

	redismocks "github.com/campuspoints/loyalty-service/internal/infrastructure/redis/mocks"
	"github.com/campuspoints/loyalty-service/internal/models"
	"github.com/campuspoints/loyalty-service/internal/repository/mocks"
	pkgerrors "github.com/campuspoints/loyalty-service/pkg/errors"
	"github.com/golang/mock/gomock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"
)

type authFixture struct {
	userRepo    *mocks.MockUserRepository
	tokenRepo   *mocks.MockResetTokenRepository
	redisClient *redismocks.MockRedisClient
	service     AuthService
}

func newAuthFixture(t *testing.T) *authFixture {
	ctrl := gomock.NewController(t)
	f := &authFixture{
		userRepo:    mocks.NewMockUserRepository(ctrl),
		tokenRepo:   mocks.NewMockResetTokenRepository(ctrl),
		redisClient: redismocks.NewMockRedisClient(ctrl),
	}
	f.service = NewAuthService(f.userRepo, f.tokenRepo, f.redisClient, "test-secret")
	return f
}

func hashPassword(t *testing.T, password string) string {
	t.Helper()
	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.MinCost)
	require.NoError(t, err)
	return string(hash)
}

func TestLoginIssuesTokenAndRecordsLastLogin(t *testing.T) {
	f := newAuthFixture(t)
	ctx := context.Background()

	user := &models.User{
		ID:           1,
		Utorid:       "clive123",
		Role:         models.RoleRegular,
		PasswordHash: hashPassword(t, "Str0ng!pw"),
	}
	f.userRepo.EXPECT().GetByUtorid(gomock.Any(), "clive123").Return(user, nil)
	f.redisClient.EXPECT().Set(gomock.Any(), "user:1:token", gomock.Any(), 24*time.Hour).Return(nil)
	f.userRepo.EXPECT().SetLastLogin(gomock.Any(), int32(1), gomock.Any()).Return(nil)

	token, expiresAt, err := f.service.Login(ctx, "clive123", "Str0ng!pw")
	require.NoError(t, err)
	assert.NotEmpty(t, token)
	assert.True(t, expiresAt.After(time.Now()))
}

func TestLoginRejectsWrongPassword(t *testing.T) {
	f := newAuthFixture(t)
	ctx := context.Background()

	user := &models.User{ID: 1, Utorid: "clive123", PasswordHash: hashPassword(t, "Str0ng!pw")}
	f.userRepo.EXPECT().GetByUtorid(gomock.Any(), "clive123").Return(user, nil)

	_, _, err := f.service.Login(ctx, "clive123", "wrong")
	assert.ErrorIs(t, err, pkgerrors.ErrInvalidCredentials)
}

func TestLoginRejectsUnknownUserWithSameError(t *testing.T) {
	f := newAuthFixture(t)
	ctx := context.Background()

	f.userRepo.EXPECT().GetByUtorid(gomock.Any(), "nobody01").Return(nil, pkgerrors.ErrUserNotFound)

	_, _, err := f.service.Login(ctx, "nobody01", "whatever")
	assert.ErrorIs(t, err, pkgerrors.ErrInvalidCredentials)
}

func TestLoginRejectsUnactivatedAccount(t *testing.T) {
	f := newAuthFixture(t)
	ctx := context.Background()

	// registered but never set a password
	f.userRepo.EXPECT().GetByUtorid(gomock.Any(), "newuser1").Return(&models.User{ID: 2, Utorid: "newuser1"}, nil)

	_, _, err := f.service.Login(ctx, "newuser1", "anything")
	assert.ErrorIs(t, err, pkgerrors.ErrInvalidCredentials)
}

func TestRequestPasswordResetIsRateLimited(t *testing.T) {
	f := newAuthFixture(t)
	ctx := context.Background()

	f.userRepo.EXPECT().GetByUtorid(gomock.Any(), "clive123").Return(&models.User{ID: 1, Utorid: "clive123"}, nil)
	f.redisClient.EXPECT().Get(gomock.Any(), "user:1:reset-requested").Return("1", nil)

	_, err := f.service.RequestPasswordReset(ctx, "clive123")
	assert.ErrorIs(t, err, pkgerrors.ErrRateLimited)
}

func TestRequestPasswordResetReplacesOutstandingToken(t *testing.T) {
	f := newAuthFixture(t)
	ctx := context.Background()

	f.userRepo.EXPECT().GetByUtorid(gomock.Any(), "clive123").Return(&models.User{ID: 1, Utorid: "clive123"}, nil)
	f.redisClient.EXPECT().Get(gomock.Any(), "user:1:reset-requested").Return("", pkgerrors.ErrInternal)
	f.redisClient.EXPECT().Set(gomock.Any(), "user:1:reset-requested", "1", time.Minute).Return(nil)
	f.tokenRepo.EXPECT().DeleteForUser(gomock.Any(), int32(1)).Return(nil)
	f.tokenRepo.EXPECT().Create(gomock.Any(), gomock.Any()).Return(nil)

	token, err := f.service.RequestPasswordReset(ctx, "clive123")
	require.NoError(t, err)
	assert.NotEmpty(t, token.Token)
	assert.True(t, token.ExpiresAt.After(time.Now()))
}

func TestResetPasswordRejectsExpiredToken(t *testing.T) {
	f := newAuthFixture(t)
	ctx := context.Background()

	f.tokenRepo.EXPECT().GetByToken(gomock.Any(), "stale").Return(&models.ResetToken{
		ID:        1,
		Token:     "stale",
		UserID:    1,
		ExpiresAt: time.Now().Add(-time.Minute),
	}, nil)
	f.userRepo.EXPECT().GetByUtorid(gomock.Any(), "clive123").Return(&models.User{ID: 1, Utorid: "clive123"}, nil)

	err := f.service.ResetPassword(ctx, "stale", "clive123", "Str0ng!pw")
	assert.ErrorIs(t, err, pkgerrors.ErrResetTokenExpired)
}

func TestResetPasswordRejectsTokenOfAnotherUser(t *testing.T) {
	f := newAuthFixture(t)
	ctx := context.Background()

	f.tokenRepo.EXPECT().GetByToken(gomock.Any(), "tok").Return(&models.ResetToken{ID: 1, Token: "tok", UserID: 7}, nil)
	f.userRepo.EXPECT().GetByUtorid(gomock.Any(), "clive123").Return(&models.User{ID: 1, Utorid: "clive123"}, nil)

	err := f.service.ResetPassword(ctx, "tok", "clive123", "Str0ng!pw")
	assert.ErrorIs(t, err, pkgerrors.ErrInvalidCredentials)
}

func TestResetPasswordRevokesLiveSession(t *testing.T) {
	f := newAuthFixture(t)
	ctx := context.Background()

	f.tokenRepo.EXPECT().GetByToken(gomock.Any(), "tok").Return(&models.ResetToken{
		ID:        1,
		Token:     "tok",
		UserID:    1,
		ExpiresAt: time.Now().Add(time.Hour),
	}, nil)
	f.userRepo.EXPECT().GetByUtorid(gomock.Any(), "clive123").Return(&models.User{ID: 1, Utorid: "clive123"}, nil)
	f.userRepo.EXPECT().SetPassword(gomock.Any(), int32(1), gomock.Any()).Return(nil)
	f.tokenRepo.EXPECT().Delete(gomock.Any(), int32(1)).Return(nil)
	f.redisClient.EXPECT().Del(gomock.Any(), "user:1:token").Return(nil)

	err := f.service.ResetPassword(ctx, "tok", "clive123", "Str0ng!pw")
	require.NoError(t, err)
}
