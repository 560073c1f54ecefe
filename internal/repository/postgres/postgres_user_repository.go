package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/campuspoints/loyalty-service/internal/models"
	"github.com/campuspoints/loyalty-service/internal/repository"
	pkgerrors "github.com/campuspoints/loyalty-service/pkg/errors"
	"github.com/lib/pq"
)

type PostgresUserRepository struct {
	db *sql.DB
}

func NewPostgresUserRepository(db *sql.DB) *PostgresUserRepository {
	return &PostgresUserRepository{db: db}
}

const userColumns = `id, utorid, name, email, COALESCE(password_hash, ''), points, verified, suspicious, role, last_login, created_at`

func scanUser(row interface{ Scan(dest ...any) error }) (*models.User, error) {
	var user models.User
	var lastLogin sql.NullTime
	err := row.Scan(
		&user.ID,
		&user.Utorid,
		&user.Name,
		&user.Email,
		&user.PasswordHash,
		&user.Points,
		&user.Verified,
		&user.Suspicious,
		&user.Role,
		&lastLogin,
		&user.CreatedAt,
	)
	if err != nil {
		return nil, err
	}
	if lastLogin.Valid {
		user.LastLogin = &lastLogin.Time
	}
	return &user, nil
}

func (r *PostgresUserRepository) Create(ctx context.Context, user *models.User) error {
	if user == nil {
		return fmt.Errorf("%w: user is nil", pkgerrors.ErrInvalidInput)
	}
	if user.Utorid == "" || user.Name == "" || user.Email == "" {
		return fmt.Errorf("%w: utorid, name and email are required", pkgerrors.ErrInvalidInput)
	}
	if user.Role == "" {
		user.Role = models.RoleRegular
	}

	query := `
	INSERT INTO users (utorid, name, email, password_hash, verified, role)
	VALUES ($1, $2, $3, NULLIF($4, ''), $5, $6)
	RETURNING id, created_at
	`
	err := r.db.QueryRowContext(
		ctx,
		query,
		user.Utorid,
		user.Name,
		user.Email,
		user.PasswordHash,
		user.Verified,
		user.Role,
	).Scan(&user.ID, &user.CreatedAt)

	var pqErr *pq.Error
	if errors.As(err, &pqErr) && pqErr.Code == "23505" {
		return pkgerrors.ErrUserAlreadyExists
	}
	if err != nil {
		return fmt.Errorf("failed to create user: %w", err)
	}
	return nil
}

func (r *PostgresUserRepository) GetByID(ctx context.Context, id int32) (*models.User, error) {
	query := `SELECT ` + userColumns + ` FROM users WHERE id = $1`
	user, err := scanUser(r.db.QueryRowContext(ctx, query, id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, pkgerrors.ErrUserNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get user by id: %w", err)
	}
	return user, nil
}

func (r *PostgresUserRepository) GetByUtorid(ctx context.Context, utorid string) (*models.User, error) {
	if utorid == "" {
		return nil, fmt.Errorf("%w: utorid cannot be empty", pkgerrors.ErrInvalidInput)
	}
	query := `SELECT ` + userColumns + ` FROM users WHERE utorid = $1`
	user, err := scanUser(r.db.QueryRowContext(ctx, query, utorid))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, pkgerrors.ErrUserNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get user by utorid: %w", err)
	}
	return user, nil
}

func (r *PostgresUserRepository) GetByUtoridOrEmail(ctx context.Context, utorid, email string) (*models.User, error) {
	query := `SELECT ` + userColumns + ` FROM users WHERE utorid = $1 OR email = $2`
	user, err := scanUser(r.db.QueryRowContext(ctx, query, utorid, email))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, pkgerrors.ErrUserNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get user by utorid or email: %w", err)
	}
	return user, nil
}

func (r *PostgresUserRepository) List(ctx context.Context, filter repository.UserFilter) (int, []models.User, error) {
	conditions := []string{}
	args := []any{}

	if filter.Name != "" {
		args = append(args, "%"+filter.Name+"%")
		conditions = append(conditions, fmt.Sprintf("(name ILIKE $%d OR utorid ILIKE $%d)", len(args), len(args)))
	}
	if filter.Role != "" {
		args = append(args, filter.Role)
		conditions = append(conditions, fmt.Sprintf("role = $%d", len(args)))
	}
	if filter.Verified != nil {
		args = append(args, *filter.Verified)
		conditions = append(conditions, fmt.Sprintf("verified = $%d", len(args)))
	}
	if filter.Activated != nil {
		if *filter.Activated {
			conditions = append(conditions, "last_login IS NOT NULL")
		} else {
			conditions = append(conditions, "last_login IS NULL")
		}
	}

	where := ""
	if len(conditions) > 0 {
		where = " WHERE " + strings.Join(conditions, " AND ")
	}

	var count int
	if err := r.db.QueryRowContext(ctx, "SELECT COUNT(*) FROM users"+where, args...).Scan(&count); err != nil {
		return 0, nil, fmt.Errorf("failed to count users: %w", err)
	}

	page, limit := normalizePage(filter.Page, filter.Limit)
	args = append(args, limit, (page-1)*limit)
	query := fmt.Sprintf("SELECT %s FROM users%s ORDER BY id LIMIT $%d OFFSET $%d",
		userColumns, where, len(args)-1, len(args))

	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return 0, nil, fmt.Errorf("failed to list users: %w", err)
	}
	defer rows.Close()

	var users []models.User
	for rows.Next() {
		user, err := scanUser(rows)
		if err != nil {
			return 0, nil, fmt.Errorf("failed to scan user: %w", err)
		}
		users = append(users, *user)
	}
	if err := rows.Err(); err != nil {
		return 0, nil, fmt.Errorf("failed to list users: %w", err)
	}
	return count, users, nil
}

func (r *PostgresUserRepository) Update(ctx context.Context, user *models.User) error {
	if user == nil {
		return fmt.Errorf("%w: user is nil", pkgerrors.ErrInvalidInput)
	}
	query := `
	UPDATE users
	SET name = $1, email = $2, verified = $3, suspicious = $4, role = $5
	WHERE id = $6
	`
	res, err := r.db.ExecContext(ctx, query, user.Name, user.Email, user.Verified, user.Suspicious, user.Role, user.ID)
	if err != nil {
		return fmt.Errorf("failed to update user: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to update user: %w", err)
	}
	if affected == 0 {
		return pkgerrors.ErrUserNotFound
	}
	return nil
}

func (r *PostgresUserRepository) SetPassword(ctx context.Context, userID int32, passwordHash string) error {
	res, err := r.db.ExecContext(ctx, `UPDATE users SET password_hash = $1 WHERE id = $2`, passwordHash, userID)
	if err != nil {
		return fmt.Errorf("failed to set password: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to set password: %w", err)
	}
	if affected == 0 {
		return pkgerrors.ErrUserNotFound
	}
	return nil
}

func (r *PostgresUserRepository) SetLastLogin(ctx context.Context, userID int32, at time.Time) error {
	_, err := r.db.ExecContext(ctx, `UPDATE users SET last_login = $1 WHERE id = $2`, at, userID)
	if err != nil {
		return fmt.Errorf("failed to set last login: %w", err)
	}
	return nil
}

// ChangeBalance applies delta atomically, refusing changes that would take
// the balance below zero.
func (r *PostgresUserRepository) ChangeBalance(ctx context.Context, userID, delta int32) (newBalance int32, err error) {
	query := `
		UPDATE users
		SET points = points + $1
		WHERE id = $2
		AND (points + $1) >= 0
		RETURNING points
		`
	err = r.db.QueryRowContext(ctx, query, delta, userID).Scan(&newBalance)
	if errors.Is(err, sql.ErrNoRows) {
		return 0, pkgerrors.ErrInsufficientPoints
	}
	if err != nil {
		return 0, fmt.Errorf("failed to change balance: %w", err)
	}
	return newBalance, nil
}

func (r *PostgresUserRepository) ConsumedPromotionIDs(ctx context.Context, userID int32) ([]int32, error) {
	rows, err := r.db.QueryContext(ctx, `SELECT promotion_id FROM user_promotions WHERE user_id = $1`, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to get consumed promotions: %w", err)
	}
	defer rows.Close()

	var ids []int32
	for rows.Next() {
		var id int32
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("failed to scan promotion id: %w", err)
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}

func normalizePage(page, limit int) (int, int) {
	if page < 1 {
		page = 1
	}
	if limit < 1 {
		limit = 10
	}
	return page, limit
}
