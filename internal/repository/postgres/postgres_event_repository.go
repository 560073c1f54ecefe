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

type PostgresEventRepository struct {
	db *sql.DB
}

func NewPostgresEventRepository(db *sql.DB) *PostgresEventRepository {
	return &PostgresEventRepository{db: db}
}

const eventColumns = `id, name, description, location, start_time, end_time, capacity, points, points_remain, points_awarded, published`

func scanEvent(row interface{ Scan(dest ...any) error }) (*models.Event, error) {
	var e models.Event
	var capacity sql.NullInt32
	err := row.Scan(
		&e.ID,
		&e.Name,
		&e.Description,
		&e.Location,
		&e.StartTime,
		&e.EndTime,
		&capacity,
		&e.Points,
		&e.PointsRemain,
		&e.PointsAwarded,
		&e.Published,
	)
	if err != nil {
		return nil, err
	}
	if capacity.Valid {
		e.Capacity = &capacity.Int32
	}
	return &e, nil
}

func (r *PostgresEventRepository) Create(ctx context.Context, event *models.Event) error {
	if event == nil {
		return fmt.Errorf("%w: event is nil", pkgerrors.ErrInvalidInput)
	}
	query := `
	INSERT INTO events (name, description, location, start_time, end_time, capacity, points, points_remain, points_awarded, published)
	VALUES ($1, $2, $3, $4, $5, $6, $7, $7, 0, FALSE)
	RETURNING id
	`
	err := r.db.QueryRowContext(
		ctx,
		query,
		event.Name,
		event.Description,
		event.Location,
		event.StartTime,
		event.EndTime,
		event.Capacity,
		event.Points,
	).Scan(&event.ID)
	if err != nil {
		return fmt.Errorf("failed to create event: %w", err)
	}
	event.PointsRemain = event.Points
	event.PointsAwarded = 0
	event.Published = false
	return nil
}

func (r *PostgresEventRepository) GetByID(ctx context.Context, id int32) (*models.Event, error) {
	query := `SELECT ` + eventColumns + ` FROM events WHERE id = $1`
	event, err := scanEvent(r.db.QueryRowContext(ctx, query, id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, pkgerrors.ErrEventNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get event: %w", err)
	}

	event.Guests, err = r.members(ctx, id, "event_guests")
	if err != nil {
		return nil, err
	}
	event.Organizers, err = r.members(ctx, id, "event_organizers")
	if err != nil {
		return nil, err
	}
	return event, nil
}

func (r *PostgresEventRepository) members(ctx context.Context, eventID int32, table string) ([]models.EventMember, error) {
	query := fmt.Sprintf(`
		SELECT u.id, u.utorid, u.name
		FROM %s m JOIN users u ON u.id = m.user_id
		WHERE m.event_id = $1
		ORDER BY u.id`, table)
	rows, err := r.db.QueryContext(ctx, query, eventID)
	if err != nil {
		return nil, fmt.Errorf("failed to get event members: %w", err)
	}
	defer rows.Close()

	var members []models.EventMember
	for rows.Next() {
		var m models.EventMember
		if err := rows.Scan(&m.UserID, &m.Utorid, &m.Name); err != nil {
			return nil, fmt.Errorf("failed to scan event member: %w", err)
		}
		members = append(members, m)
	}
	return members, rows.Err()
}

func (r *PostgresEventRepository) List(ctx context.Context, filter repository.EventFilter) (int, []models.Event, error) {
	conditions := []string{}
	args := []any{}
	now := time.Now()

	if filter.Name != "" {
		args = append(args, "%"+filter.Name+"%")
		conditions = append(conditions, fmt.Sprintf("name ILIKE $%d", len(args)))
	}
	if filter.Location != "" {
		args = append(args, "%"+filter.Location+"%")
		conditions = append(conditions, fmt.Sprintf("location ILIKE $%d", len(args)))
	}
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
			conditions = append(conditions, fmt.Sprintf("end_time <= $%d", len(args)))
		} else {
			conditions = append(conditions, fmt.Sprintf("end_time > $%d", len(args)))
		}
	}
	if filter.Published != nil {
		args = append(args, *filter.Published)
		conditions = append(conditions, fmt.Sprintf("published = $%d", len(args)))
	}
	if filter.HideFull {
		conditions = append(conditions,
			"(capacity IS NULL OR capacity > (SELECT COUNT(*) FROM event_guests g WHERE g.event_id = events.id))")
	}

	where := ""
	if len(conditions) > 0 {
		where = " WHERE " + strings.Join(conditions, " AND ")
	}

	var count int
	if err := r.db.QueryRowContext(ctx, "SELECT COUNT(*) FROM events"+where, args...).Scan(&count); err != nil {
		return 0, nil, fmt.Errorf("failed to count events: %w", err)
	}

	page, limit := normalizePage(filter.Page, filter.Limit)
	args = append(args, limit, (page-1)*limit)
	query := fmt.Sprintf("SELECT %s FROM events%s ORDER BY id LIMIT $%d OFFSET $%d",
		eventColumns, where, len(args)-1, len(args))

	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return 0, nil, fmt.Errorf("failed to list events: %w", err)
	}
	defer rows.Close()

	var events []models.Event
	for rows.Next() {
		e, err := scanEvent(rows)
		if err != nil {
			return 0, nil, fmt.Errorf("failed to scan event: %w", err)
		}
		events = append(events, *e)
	}
	return count, events, rows.Err()
}

// Update writes the mutable event fields. A points change moves the
// difference into points_remain so remain + awarded stays equal to the pool.
func (r *PostgresEventRepository) Update(ctx context.Context, event *models.Event) error {
	if event == nil {
		return fmt.Errorf("%w: event is nil", pkgerrors.ErrInvalidInput)
	}
	query := `
	UPDATE events
	SET name = $1, description = $2, location = $3, start_time = $4, end_time = $5,
		capacity = $6, points_remain = points_remain + ($7 - points), points = $7, published = $8
	WHERE id = $9
	`
	res, err := r.db.ExecContext(ctx, query,
		event.Name,
		event.Description,
		event.Location,
		event.StartTime,
		event.EndTime,
		event.Capacity,
		event.Points,
		event.Published,
		event.ID,
	)
	if err != nil {
		return fmt.Errorf("failed to update event: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to update event: %w", err)
	}
	if affected == 0 {
		return pkgerrors.ErrEventNotFound
	}
	return nil
}

func (r *PostgresEventRepository) Delete(ctx context.Context, id int32) error {
	res, err := r.db.ExecContext(ctx, `DELETE FROM events WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("failed to delete event: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to delete event: %w", err)
	}
	if affected == 0 {
		return pkgerrors.ErrEventNotFound
	}
	return nil
}

func (r *PostgresEventRepository) AddOrganizer(ctx context.Context, eventID, userID int32) error {
	return r.addMember(ctx, "event_organizers", eventID, userID)
}

func (r *PostgresEventRepository) RemoveOrganizer(ctx context.Context, eventID, userID int32) error {
	return r.removeMember(ctx, "event_organizers", eventID, userID)
}

func (r *PostgresEventRepository) AddGuest(ctx context.Context, eventID, userID int32) error {
	return r.addMember(ctx, "event_guests", eventID, userID)
}

func (r *PostgresEventRepository) RemoveGuest(ctx context.Context, eventID, userID int32) error {
	return r.removeMember(ctx, "event_guests", eventID, userID)
}

func (r *PostgresEventRepository) IsOrganizer(ctx context.Context, eventID, userID int32) (bool, error) {
	var exists bool
	query := `SELECT EXISTS(SELECT 1 FROM event_organizers WHERE event_id = $1 AND user_id = $2)`
	if err := r.db.QueryRowContext(ctx, query, eventID, userID).Scan(&exists); err != nil {
		return false, fmt.Errorf("failed to check organizer: %w", err)
	}
	return exists, nil
}

func (r *PostgresEventRepository) addMember(ctx context.Context, table string, eventID, userID int32) error {
	query := fmt.Sprintf(`INSERT INTO %s (event_id, user_id) VALUES ($1, $2)`, table)
	_, err := r.db.ExecContext(ctx, query, eventID, userID)
	var pqErr *pq.Error
	if errors.As(err, &pqErr) && pqErr.Code == "23505" {
		return pkgerrors.ErrAlreadyGuest
	}
	if err != nil {
		return fmt.Errorf("failed to add event member: %w", err)
	}
	return nil
}

func (r *PostgresEventRepository) removeMember(ctx context.Context, table string, eventID, userID int32) error {
	query := fmt.Sprintf(`DELETE FROM %s WHERE event_id = $1 AND user_id = $2`, table)
	res, err := r.db.ExecContext(ctx, query, eventID, userID)
	if err != nil {
		return fmt.Errorf("failed to remove event member: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to remove event member: %w", err)
	}
	if affected == 0 {
		return pkgerrors.ErrUserNotFound
	}
	return nil
}
