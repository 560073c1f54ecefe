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
)

type PostgresPromotionRepository struct {
	db *sql.DB
}

func NewPostgresPromotionRepository(db *sql.DB) *PostgresPromotionRepository {
	return &PostgresPromotionRepository{db: db}
}

const promotionColumns = `id, name, description, type, start_time, end_time, min_spending, rate, points`

func scanPromotion(row interface{ Scan(dest ...any) error }) (*models.Promotion, error) {
	var p models.Promotion
	var minSpending, rate sql.NullFloat64
	var points sql.NullInt32
	err := row.Scan(
		&p.ID,
		&p.Name,
		&p.Description,
		&p.Type,
		&p.StartTime,
		&p.EndTime,
		&minSpending,
		&rate,
		&points,
	)
	if err != nil {
		return nil, err
	}
	if minSpending.Valid {
		p.MinSpending = &minSpending.Float64
	}
	if rate.Valid {
		p.Rate = &rate.Float64
	}
	if points.Valid {
		p.Points = &points.Int32
	}
	return &p, nil
}

func (r *PostgresPromotionRepository) Create(ctx context.Context, promotion *models.Promotion) error {
	if promotion == nil {
		return fmt.Errorf("%w: promotion is nil", pkgerrors.ErrInvalidInput)
	}
	query := `
	INSERT INTO promotions (name, description, type, start_time, end_time, min_spending, rate, points)
	VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
	RETURNING id
	`
	err := r.db.QueryRowContext(
		ctx,
		query,
		promotion.Name,
		promotion.Description,
		promotion.Type,
		promotion.StartTime,
		promotion.EndTime,
		promotion.MinSpending,
		promotion.Rate,
		promotion.Points,
	).Scan(&promotion.ID)
	if err != nil {
		return fmt.Errorf("failed to create promotion: %w", err)
	}
	return nil
}

func (r *PostgresPromotionRepository) GetByID(ctx context.Context, id int32) (*models.Promotion, error) {
	query := `SELECT ` + promotionColumns + ` FROM promotions WHERE id = $1`
	p, err := scanPromotion(r.db.QueryRowContext(ctx, query, id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, pkgerrors.ErrPromotionNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get promotion: %w", err)
	}
	return p, nil
}

func (r *PostgresPromotionRepository) List(ctx context.Context, filter repository.PromotionFilter) (int, []models.Promotion, error) {
	conditions := []string{}
	args := []any{}
	now := time.Now()

	if filter.Name != "" {
		args = append(args, "%"+filter.Name+"%")
		conditions = append(conditions, fmt.Sprintf("name ILIKE $%d", len(args)))
	}
	if filter.Type != "" {
		args = append(args, filter.Type)
		conditions = append(conditions, fmt.Sprintf("type = $%d", len(args)))
	}
	if filter.ForUserID != nil {
		// regular view: active window, not yet consumed by this user
		args = append(args, now)
		conditions = append(conditions, fmt.Sprintf("start_time <= $%d", len(args)))
		args = append(args, now)
		conditions = append(conditions, fmt.Sprintf("end_time > $%d", len(args)))
		args = append(args, *filter.ForUserID)
		conditions = append(conditions, fmt.Sprintf(
			"id NOT IN (SELECT promotion_id FROM user_promotions WHERE user_id = $%d)", len(args)))
	} else {
		if filter.Started != nil {
			args = append(args, now)
			if *filter.Started {
				conditions = append(conditions, fmt.Sprintf("start_time <= $%d", len(args)))
			} else {
				conditions = append(conditions, fmt.Sprintf("start_time > $%d", len(args)))
			}
		}
		if filter.Ended != nil {
			args = append(args, now)
			if *filter.Ended {
				conditions = append(conditions, fmt.Sprintf("end_time < $%d", len(args)))
			} else {
				conditions = append(conditions, fmt.Sprintf("end_time >= $%d", len(args)))
			}
		}
	}

	where := ""
	if len(conditions) > 0 {
		where = " WHERE " + strings.Join(conditions, " AND ")
	}

	var count int
	if err := r.db.QueryRowContext(ctx, "SELECT COUNT(*) FROM promotions"+where, args...).Scan(&count); err != nil {
		return 0, nil, fmt.Errorf("failed to count promotions: %w", err)
	}

	page, limit := normalizePage(filter.Page, filter.Limit)
	args = append(args, limit, (page-1)*limit)
	query := fmt.Sprintf("SELECT %s FROM promotions%s ORDER BY id LIMIT $%d OFFSET $%d",
		promotionColumns, where, len(args)-1, len(args))

	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return 0, nil, fmt.Errorf("failed to list promotions: %w", err)
	}
	defer rows.Close()

	var promotions []models.Promotion
	for rows.Next() {
		p, err := scanPromotion(rows)
		if err != nil {
			return 0, nil, fmt.Errorf("failed to scan promotion: %w", err)
		}
		promotions = append(promotions, *p)
	}
	return count, promotions, rows.Err()
}

func (r *PostgresPromotionRepository) Update(ctx context.Context, promotion *models.Promotion) error {
	if promotion == nil {
		return fmt.Errorf("%w: promotion is nil", pkgerrors.ErrInvalidInput)
	}
	query := `
	UPDATE promotions
	SET name = $1, description = $2, type = $3, start_time = $4, end_time = $5,
		min_spending = $6, rate = $7, points = $8
	WHERE id = $9
	`
	res, err := r.db.ExecContext(ctx, query,
		promotion.Name,
		promotion.Description,
		promotion.Type,
		promotion.StartTime,
		promotion.EndTime,
		promotion.MinSpending,
		promotion.Rate,
		promotion.Points,
		promotion.ID,
	)
	if err != nil {
		return fmt.Errorf("failed to update promotion: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to update promotion: %w", err)
	}
	if affected == 0 {
		return pkgerrors.ErrPromotionNotFound
	}
	return nil
}

func (r *PostgresPromotionRepository) Delete(ctx context.Context, id int32) error {
	res, err := r.db.ExecContext(ctx, `DELETE FROM promotions WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("failed to delete promotion: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to delete promotion: %w", err)
	}
	if affected == 0 {
		return pkgerrors.ErrPromotionNotFound
	}
	return nil
}

func (r *PostgresPromotionRepository) ActiveAutomatic(ctx context.Context, now time.Time, spent float64) ([]models.Promotion, error) {
	query := `
	SELECT ` + promotionColumns + `
	FROM promotions
	WHERE type = $1
	AND start_time <= $2
	AND end_time > $2
	AND (min_spending IS NULL OR min_spending <= $3)
	ORDER BY id
	`
	rows, err := r.db.QueryContext(ctx, query, models.PromotionAutomatic, now, spent)
	if err != nil {
		return nil, fmt.Errorf("failed to get automatic promotions: %w", err)
	}
	defer rows.Close()

	var promotions []models.Promotion
	for rows.Next() {
		p, err := scanPromotion(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan promotion: %w", err)
		}
		promotions = append(promotions, *p)
	}
	return promotions, rows.Err()
}
