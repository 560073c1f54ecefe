package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/campuspoints/loyalty-service/internal/models"
	pkgerrors "github.com/campuspoints/loyalty-service/pkg/errors"
)

type PostgresResetTokenRepository struct {
	db *sql.DB
}

func NewPostgresResetTokenRepository(db *sql.DB) *PostgresResetTokenRepository {
	return &PostgresResetTokenRepository{db: db}
}

func (r *PostgresResetTokenRepository) Create(ctx context.Context, token *models.ResetToken) error {
	query := `INSERT INTO reset_tokens (token, user_id, expires_at) VALUES ($1, $2, $3) RETURNING id`
	if err := r.db.QueryRowContext(ctx, query, token.Token, token.UserID, token.ExpiresAt).Scan(&token.ID); err != nil {
		return fmt.Errorf("failed to create reset token: %w", err)
	}
	return nil
}

func (r *PostgresResetTokenRepository) GetByToken(ctx context.Context, token string) (*models.ResetToken, error) {
	query := `SELECT id, token, user_id, expires_at FROM reset_tokens WHERE token = $1`
	var rt models.ResetToken
	err := r.db.QueryRowContext(ctx, query, token).Scan(&rt.ID, &rt.Token, &rt.UserID, &rt.ExpiresAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, pkgerrors.ErrResetTokenNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get reset token: %w", err)
	}
	return &rt, nil
}

func (r *PostgresResetTokenRepository) DeleteForUser(ctx context.Context, userID int32) error {
	if _, err := r.db.ExecContext(ctx, `DELETE FROM reset_tokens WHERE user_id = $1`, userID); err != nil {
		return fmt.Errorf("failed to delete reset tokens: %w", err)
	}
	return nil
}

func (r *PostgresResetTokenRepository) Delete(ctx context.Context, id int32) error {
	if _, err := r.db.ExecContext(ctx, `DELETE FROM reset_tokens WHERE id = $1`, id); err != nil {
		return fmt.Errorf("failed to delete reset token: %w", err)
	}
	return nil
}
