package service

import (
	"context"
	"fmt"
	"log/slog"
	"regexp"
	"strconv"
	"time"

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
	balanceCacheTTL = 5 * time.Minute
	// tokens issued at registration last long enough for the student to
	// activate the account at their leisure
	activationTokenTTL = 7 * 24 * time.Hour
)

var (
	utoridPattern = regexp.MustCompile(`^[a-zA-Z0-9]{8}$`)
	emailPattern  = regexp.MustCompile(`^[a-zA-Z0-9._%+-]+@mail\.utoronto\.ca$`)
	// 8 to 20 chars with at least one upper, one lower, one digit and one
	// special character
	passwordChecks = []*regexp.Regexp{
		regexp.MustCompile(`[A-Z]`),
		regexp.MustCompile(`[a-z]`),
		regexp.MustCompile(`[0-9]`),
		regexp.MustCompile(`[^a-zA-Z0-9]`),
	}
)

func validPassword(password string) bool {
	if len(password) < 8 || len(password) > 20 {
		return false
	}
	for _, check := range passwordChecks {
		if !check.MatchString(password) {
			return false
		}
	}
	return true
}

type RegisterRequest struct {
	Utorid string
	Name   string
	Email  string
}

type UserUpdate struct {
	Email      *string
	Verified   *bool
	Suspicious *bool
	Role       *models.Role
}

type UserService interface {
	Register(ctx context.Context, req RegisterRequest) (*models.User, *models.ResetToken, error)
	GetByID(ctx context.Context, id int32) (*models.User, error)
	GetByUtorid(ctx context.Context, utorid string) (*models.User, error)
	List(ctx context.Context, filter repository.UserFilter) (int, []models.User, error)
	UpdateProfile(ctx context.Context, userID int32, name, email *string) (*models.User, error)
	ChangePassword(ctx context.Context, userID int32, oldPassword, newPassword string) error
	UpdateUser(ctx context.Context, id int32, update UserUpdate, actorRole models.Role) (*models.User, error)
	GetBalance(ctx context.Context, userID int32) (int32, error)
	AvailablePromotions(ctx context.Context, userID int32) ([]models.Promotion, error)
}

type userService struct {
	userRepo      repository.UserRepository
	tokenRepo     repository.ResetTokenRepository
	promotionRepo repository.PromotionRepository
	redisClient   redis.RedisClient
}

func NewUserService(
	userRepo repository.UserRepository,
	tokenRepo repository.ResetTokenRepository,
	promotionRepo repository.PromotionRepository,
	redisClient redis.RedisClient,
) *userService {
	return &userService{
		userRepo:      userRepo,
		tokenRepo:     tokenRepo,
		promotionRepo: promotionRepo,
		redisClient:   redisClient,
	}
}

// Register creates an unverified regular account and issues an activation
// token the student uses to set their first password.
func (s *userService) Register(ctx context.Context, req RegisterRequest) (*models.User, *models.ResetToken, error) {
	tracer := otel.Tracer("user-service")
	ctx, span := tracer.Start(ctx, "Register")
	defer span.End()

	if !utoridPattern.MatchString(req.Utorid) {
		span.SetStatus(codes.Error, "invalid utorid")
		return nil, nil, fmt.Errorf("%w: utorid must be 8 alphanumeric characters", pkgerrors.ErrInvalidInput)
	}
	if !emailPattern.MatchString(req.Email) {
		span.SetStatus(codes.Error, "invalid email")
		return nil, nil, fmt.Errorf("%w: email must be a valid University of Toronto address", pkgerrors.ErrInvalidInput)
	}
	if len(req.Name) < 1 || len(req.Name) > 50 {
		span.SetStatus(codes.Error, "invalid name")
		return nil, nil, fmt.Errorf("%w: name must be 1 to 50 characters", pkgerrors.ErrInvalidInput)
	}

	user := &models.User{
		Utorid: req.Utorid,
		Name:   req.Name,
		Email:  req.Email,
		Role:   models.RoleRegular,
	}
	if err := s.userRepo.Create(ctx, user); err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "user create failed")
		return nil, nil, err
	}

	token := &models.ResetToken{
		Token:     uuid.NewString(),
		UserID:    user.ID,
		ExpiresAt: time.Now().Add(activationTokenTTL),
	}
	if err := s.tokenRepo.Create(ctx, token); err != nil {
		span.RecordError(err)
		return nil, nil, fmt.Errorf("%w: failed to create activation token", pkgerrors.ErrInternal)
	}

	slog.Info("user registered", "utorid", user.Utorid, "user_id", user.ID)
	return user, token, nil
}

func (s *userService) GetByID(ctx context.Context, id int32) (*models.User, error) {
	return s.userRepo.GetByID(ctx, id)
}

func (s *userService) GetByUtorid(ctx context.Context, utorid string) (*models.User, error) {
	return s.userRepo.GetByUtorid(ctx, utorid)
}

func (s *userService) List(ctx context.Context, filter repository.UserFilter) (int, []models.User, error) {
	return s.userRepo.List(ctx, filter)
}

func (s *userService) UpdateProfile(ctx context.Context, userID int32, name, email *string) (*models.User, error) {
	tracer := otel.Tracer("user-service")
	ctx, span := tracer.Start(ctx, "UpdateProfile")
	defer span.End()

	if name == nil && email == nil {
		return nil, fmt.Errorf("%w: no fields to update", pkgerrors.ErrInvalidInput)
	}

	user, err := s.userRepo.GetByID(ctx, userID)
	if err != nil {
		return nil, err
	}
	if name != nil {
		if len(*name) < 1 || len(*name) > 50 {
			return nil, fmt.Errorf("%w: name must be 1 to 50 characters", pkgerrors.ErrInvalidInput)
		}
		user.Name = *name
	}
	if email != nil {
		if !emailPattern.MatchString(*email) {
			return nil, fmt.Errorf("%w: email must be a valid University of Toronto address", pkgerrors.ErrInvalidInput)
		}
		user.Email = *email
	}
	if err := s.userRepo.Update(ctx, user); err != nil {
		span.RecordError(err)
		return nil, err
	}

	slog.Info("profile updated", "user_id", userID)
	return user, nil
}

func (s *userService) ChangePassword(ctx context.Context, userID int32, oldPassword, newPassword string) error {
	tracer := otel.Tracer("user-service")
	ctx, span := tracer.Start(ctx, "ChangePassword")
	defer span.End()

	if !validPassword(newPassword) {
		return fmt.Errorf("%w: password does not meet the complexity requirements", pkgerrors.ErrInvalidInput)
	}

	user, err := s.userRepo.GetByID(ctx, userID)
	if err != nil {
		return err
	}
	if err := bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(oldPassword)); err != nil {
		span.SetStatus(codes.Error, "old password mismatch")
		return pkgerrors.ErrInvalidCredentials
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(newPassword), bcrypt.DefaultCost)
	if err != nil {
		return fmt.Errorf("%w: failed to hash password", pkgerrors.ErrInternal)
	}
	if err := s.userRepo.SetPassword(ctx, userID, string(hash)); err != nil {
		return err
	}

	slog.Info("password changed", "user_id", userID)
	return nil
}

// UpdateUser applies the manager-facing account updates. Managers can verify
// accounts, toggle the suspicious flag and assign the regular or cashier
// roles; only a superuser can hand out manager or superuser.
func (s *userService) UpdateUser(ctx context.Context, id int32, update UserUpdate, actorRole models.Role) (*models.User, error) {
	tracer := otel.Tracer("user-service")
	ctx, span := tracer.Start(ctx, "UpdateUser")
	defer span.End()

	if update.Email == nil && update.Verified == nil && update.Suspicious == nil && update.Role == nil {
		return nil, fmt.Errorf("%w: no fields to update", pkgerrors.ErrInvalidInput)
	}

	user, err := s.userRepo.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}

	if update.Email != nil {
		if !emailPattern.MatchString(*update.Email) {
			return nil, fmt.Errorf("%w: email must be a valid University of Toronto address", pkgerrors.ErrInvalidInput)
		}
		user.Email = *update.Email
	}
	if update.Verified != nil {
		// verification is one-way
		if !*update.Verified {
			return nil, fmt.Errorf("%w: verified can only be set to true", pkgerrors.ErrInvalidInput)
		}
		user.Verified = true
	}
	if update.Suspicious != nil {
		user.Suspicious = *update.Suspicious
	}
	if update.Role != nil {
		role := *update.Role
		if !role.Valid() {
			return nil, fmt.Errorf("%w: unknown role %q", pkgerrors.ErrInvalidInput, string(role))
		}
		if (role == models.RoleManager || role == models.RoleSuperuser) && actorRole != models.RoleSuperuser {
			span.SetStatus(codes.Error, "role assignment above clearance")
			return nil, pkgerrors.ErrForbidden
		}
		// a fresh cashier starts with a clean slate
		if role == models.RoleCashier && user.Role != models.RoleCashier {
			user.Suspicious = false
		}
		user.Role = role
	}

	if err := s.userRepo.Update(ctx, user); err != nil {
		span.RecordError(err)
		return nil, err
	}

	slog.Info("user updated",
		"user_id", user.ID,
		"role", user.Role,
		"verified", user.Verified,
		"suspicious", user.Suspicious)
	return user, nil
}

// GetBalance serves the point balance from the Redis cache when possible,
// falling back to the database. The cache entry is dropped whenever the
// transaction engine touches the balance.
func (s *userService) GetBalance(ctx context.Context, userID int32) (int32, error) {
	tracer := otel.Tracer("user-service")
	ctx, span := tracer.Start(ctx, "GetBalance")
	defer span.End()

	key := fmt.Sprintf("user:%d:balance", userID)
	if cached, err := s.redisClient.Get(ctx, key); err == nil {
		if balance, parseErr := strconv.ParseInt(cached, 10, 32); parseErr == nil {
			return int32(balance), nil
		}
	}

	user, err := s.userRepo.GetByID(ctx, userID)
	if err != nil {
		return 0, err
	}
	if err := s.redisClient.Set(ctx, key, strconv.FormatInt(int64(user.Points), 10), balanceCacheTTL); err != nil {
		slog.Error("failed to cache balance", "user_id", userID, "error", err)
	}
	return user.Points, nil
}

// AvailablePromotions lists the one-time promotions the user can still apply.
func (s *userService) AvailablePromotions(ctx context.Context, userID int32) ([]models.Promotion, error) {
	_, promotions, err := s.promotionRepo.List(ctx, repository.PromotionFilter{
		Type:      models.PromotionOneTime,
		ForUserID: &userID,
	})
	if err != nil {
		return nil, err
	}
	return promotions, nil
}
