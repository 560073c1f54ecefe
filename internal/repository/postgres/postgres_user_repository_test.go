package repository

import (
	"context"
	"regexp"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/campuspoints/loyalty-service/internal/models"
	pkgerrors "github.com/campuspoints/loyalty-service/pkg/errors"
	"github.com/lib/pq"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCreateUserReportsDuplicates(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()
	repo := NewPostgresUserRepository(db)

	mock.ExpectQuery(regexp.QuoteMeta(`INSERT INTO users`)).
		WithArgs("johndoe1", "John Doe", "john.doe@mail.utoronto.ca", "", false, models.RoleRegular).
		WillReturnError(&pq.Error{Code: "23505"})

	err = repo.Create(context.Background(), &models.User{
		Utorid: "johndoe1",
		Name:   "John Doe",
		Email:  "john.doe@mail.utoronto.ca",
	})
	assert.ErrorIs(t, err, pkgerrors.ErrUserAlreadyExists)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestCreateUserDefaultsToRegularRole(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()
	repo := NewPostgresUserRepository(db)

	mock.ExpectQuery(regexp.QuoteMeta(`INSERT INTO users`)).
		WithArgs("johndoe1", "John Doe", "john.doe@mail.utoronto.ca", "", false, models.RoleRegular).
		WillReturnRows(sqlmock.NewRows([]string{"id", "created_at"}).AddRow(7, time.Now()))

	user := &models.User{
		Utorid: "johndoe1",
		Name:   "John Doe",
		Email:  "john.doe@mail.utoronto.ca",
	}
	require.NoError(t, repo.Create(context.Background(), user))
	assert.Equal(t, int32(7), user.ID)
	assert.Equal(t, models.RoleRegular, user.Role)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestChangeBalanceReturnsNewBalance(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()
	repo := NewPostgresUserRepository(db)

	mock.ExpectQuery(regexp.QuoteMeta(`UPDATE users`)).
		WithArgs(int32(-30), int32(1)).
		WillReturnRows(sqlmock.NewRows([]string{"points"}).AddRow(70))

	balance, err := repo.ChangeBalance(context.Background(), 1, -30)
	require.NoError(t, err)
	assert.Equal(t, int32(70), balance)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestChangeBalanceRejectsOverdraw(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()
	repo := NewPostgresUserRepository(db)

	// the guarded update matches no row, so RETURNING yields nothing
	mock.ExpectQuery(regexp.QuoteMeta(`UPDATE users`)).
		WithArgs(int32(-500), int32(1)).
		WillReturnRows(sqlmock.NewRows([]string{"points"}))

	_, err = repo.ChangeBalance(context.Background(), 1, -500)
	assert.ErrorIs(t, err, pkgerrors.ErrInsufficientPoints)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestGetByUtoridMapsMissingRow(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()
	repo := NewPostgresUserRepository(db)

	mock.ExpectQuery(regexp.QuoteMeta(`SELECT`)).
		WithArgs("ghostuser").
		WillReturnRows(sqlmock.NewRows([]string{"id"}))

	_, err = repo.GetByUtorid(context.Background(), "ghostuser")
	assert.ErrorIs(t, err, pkgerrors.ErrUserNotFound)
	assert.NoError(t, mock.ExpectationsWereMet())
}
