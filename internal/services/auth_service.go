package service

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	stderrors "errors"

	"github.com/campuspoints/loyalty-service/internal/infrastructure/auth"
	"github.com/campuspoints/loyalty-service/internal/infrastructure/redis"
	"github.com/campuspoints/loyalty-service/internal/models"
	"github.com/campuspoints/loyalty-service/internal/repository"
	pkgerrors "github.com/campuspoints/loyalty-service/pkg/errors"
	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/codes"
	"golang.org/x/crypto/bcrypt"
)

const (
	resetTokenTTL      = time.Hour
	resetRequestWindow = time.Minute
	authTokenTTL       = 24 * time.Hour
)

type AuthService interface {
	Login(ctx context.Context, utorid, password string) (token string, expiresAt time.Time, err error)
	Logout(ctx context.Context, userID int32) error
	RequestPasswordReset(ctx context.Context, utorid string) (*models.ResetToken, error)
	ResetPassword(ctx context.Context, resetToken, utorid, newPassword string) error
}

type authService struct {
	userRepo    repository.UserRepository
	tokenRepo   repository.ResetTokenRepository
	redisClient redis.RedisClient
	jwtSecret   string
}

func NewAuthService(
	userRepo repository.UserRepository,
	tokenRepo repository.ResetTokenRepository,
	redisClient redis.RedisClient,
	jwtSecret string,
) *authService {
	return &authService{
		userRepo:    userRepo,
		tokenRepo:   tokenRepo,
		redisClient: redisClient,
		jwtSecret:   jwtSecret,
	}
}

func (s *authService) Login(ctx context.Context, utorid, password string) (string, time.Time, error) {
	tracer := otel.Tracer("auth-service")
	ctx, span := tracer.Start(ctx, "Login")
	defer span.End()

	user, err := s.userRepo.GetByUtorid(ctx, utorid)
	if err != nil {
		span.SetStatus(codes.Error, "login failed")
		// a missing account and a bad password are indistinguishable
		return "", time.Time{}, pkgerrors.ErrInvalidCredentials
	}
	if user.PasswordHash == "" {
		span.SetStatus(codes.Error, "login failed")
		return "", time.Time{}, pkgerrors.ErrInvalidCredentials
	}
	if err := bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(password)); err != nil {
		span.SetStatus(codes.Error, "login failed")
		return "", time.Time{}, pkgerrors.ErrInvalidCredentials
	}

	token, expiresAt, err := auth.GenerateToken(user, s.jwtSecret)
	if err != nil {
		span.RecordError(err)
		return "", time.Time{}, fmt.Errorf("%w: failed to issue token", pkgerrors.ErrInternal)
	}

	tokenKey := fmt.Sprintf("user:%d:token", user.ID)
	if err := s.redisClient.Set(ctx, tokenKey, token, authTokenTTL); err != nil {
		slog.Error("failed to cache auth token", "user_id", user.ID, "error", err)
		return "", time.Time{}, fmt.Errorf("%w: failed to cache token", pkgerrors.ErrInternal)
	}

	if err := s.userRepo.SetLastLogin(ctx, user.ID, time.Now()); err != nil {
		slog.Error("failed to record last login", "user_id", user.ID, "error", err)
	}

	slog.Info("user logged in", "utorid", user.Utorid, "user_id", user.ID)
	return token, expiresAt, nil
}

func (s *authService) Logout(ctx context.Context, userID int32) error {
	tokenKey := fmt.Sprintf("user:%d:token", userID)
	if err := s.redisClient.Del(ctx, tokenKey); err != nil {
		slog.Error("failed to revoke auth token", "user_id", userID, "error", err)
		return fmt.Errorf("%w: failed to revoke token", pkgerrors.ErrInternal)
	}
	slog.Info("user logged out", "user_id", userID)
	return nil
}

func (s *authService) RequestPasswordReset(ctx context.Context, utorid string) (*models.ResetToken, error) {
	tracer := otel.Tracer("auth-service")
	ctx, span := tracer.Start(ctx, "RequestPasswordReset")
	defer span.End()

	user, err := s.userRepo.GetByUtorid(ctx, utorid)
	if err != nil {
		span.SetStatus(codes.Error, "user lookup failed")
		return nil, err
	}

	// one reset request per account per minute
	rateKey := fmt.Sprintf("user:%d:reset-requested", user.ID)
	if _, err := s.redisClient.Get(ctx, rateKey); err == nil {
		span.SetStatus(codes.Error, "rate limited")
		return nil, pkgerrors.ErrRateLimited
	}
	if err := s.redisClient.Set(ctx, rateKey, "1", resetRequestWindow); err != nil {
		slog.Error("failed to set reset rate limit", "user_id", user.ID, "error", err)
	}

	// a fresh request invalidates any outstanding token for the account
	if err := s.tokenRepo.DeleteForUser(ctx, user.ID); err != nil {
		slog.Error("failed to clear previous reset tokens", "user_id", user.ID, "error", err)
		return nil, fmt.Errorf("%w: failed to clear previous reset tokens", pkgerrors.ErrInternal)
	}

	token := &models.ResetToken{
		Token:     uuid.NewString(),
		UserID:    user.ID,
		ExpiresAt: time.Now().Add(resetTokenTTL),
	}
	if err := s.tokenRepo.Create(ctx, token); err != nil {
		span.RecordError(err)
		return nil, fmt.Errorf("%w: failed to create reset token", pkgerrors.ErrInternal)
	}

	slog.Info("password reset requested", "utorid", user.Utorid, "expires_at", token.ExpiresAt)
	return token, nil
}

func (s *authService) ResetPassword(ctx context.Context, resetToken, utorid, newPassword string) error {
	tracer := otel.Tracer("auth-service")
	ctx, span := tracer.Start(ctx, "ResetPassword")
	defer span.End()

	if !validPassword(newPassword) {
		return fmt.Errorf("%w: password does not meet the complexity requirements", pkgerrors.ErrInvalidInput)
	}

	token, err := s.tokenRepo.GetByToken(ctx, resetToken)
	if err != nil {
		span.SetStatus(codes.Error, "token lookup failed")
		return err
	}

	user, err := s.userRepo.GetByUtorid(ctx, utorid)
	if err != nil || user.ID != token.UserID {
		span.SetStatus(codes.Error, "token does not belong to user")
		return pkgerrors.ErrInvalidCredentials
	}
	if time.Now().After(token.ExpiresAt) {
		span.SetStatus(codes.Error, "token expired")
		return pkgerrors.ErrResetTokenExpired
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(newPassword), bcrypt.DefaultCost)
	if err != nil {
		span.RecordError(err)
		return fmt.Errorf("%w: failed to hash password", pkgerrors.ErrInternal)
	}
	if err := s.userRepo.SetPassword(ctx, user.ID, string(hash)); err != nil {
		span.RecordError(err)
		return err
	}
	if err := s.tokenRepo.Delete(ctx, token.ID); err != nil {
		slog.Error("failed to delete used reset token", "token_id", token.ID, "error", err)
	}

	// any live session predates the new password
	tokenKey := fmt.Sprintf("user:%d:token", user.ID)
	if err := s.redisClient.Del(ctx, tokenKey); err != nil && !stderrors.Is(err, redis.ErrKeyNotFound) {
		slog.Error("failed to revoke auth token after reset", "user_id", user.ID, "error", err)
	}

	slog.Info("password reset completed", "utorid", user.Utorid)
	return nil
}
