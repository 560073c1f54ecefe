package repository

import (
	"context"
	"database/sql"
	stderrors "errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/campuspoints/loyalty-service/internal/infrastructure/observability"
	"github.com/campuspoints/loyalty-service/internal/models"
	pkgerrors "github.com/campuspoints/loyalty-service/pkg/errors"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

// PostgresTransactionRepository persists transaction records. Every mutating
// method runs as one database transaction: balance and pool checks share the
// unit with the writes they guard, so concurrent requests serialize on the
// touched rows instead of racing a stale read.
type PostgresTransactionRepository struct {
	db *sql.DB
}

func NewPostgresTransactionRepository(db *sql.DB) *PostgresTransactionRepository {
	return &PostgresTransactionRepository{db: db}
}

func (r *PostgresTransactionRepository) instrument(ctx context.Context, method string, errp *error) (context.Context, func()) {
	tracer := otel.Tracer("transaction-repository")
	ctx, span := tracer.Start(ctx, method)
	start := time.Now()
	return ctx, func() {
		status := "success"
		if *errp != nil {
			status = "error"
			span.RecordError(*errp)
			span.SetStatus(codes.Error, (*errp).Error())
		}
		span.End()
		observability.RepositoryCalls.WithLabelValues(method, status).Inc()
		observability.RepositoryDuration.WithLabelValues(method).Observe(time.Since(start).Seconds())
	}
}

const transactionColumns = `id, type, user_id, created_by, amount, spent, related_id, event_id, suspicious, processed, processed_by, remark, created_at`

const transactionColumnsT = `t.id, t.type, t.user_id, t.created_by, t.amount, t.spent, t.related_id, t.event_id, t.suspicious, t.processed, t.processed_by, t.remark, t.created_at`

func scanTransaction(row interface{ Scan(dest ...any) error }) (*models.Transaction, error) {
	var t models.Transaction
	var spent sql.NullFloat64
	var relatedID, eventID, processedBy sql.NullInt32
	err := row.Scan(
		&t.ID,
		&t.Type,
		&t.UserID,
		&t.CreatedByID,
		&t.Amount,
		&spent,
		&relatedID,
		&eventID,
		&t.Suspicious,
		&t.Processed,
		&processedBy,
		&t.Remark,
		&t.CreatedAt,
	)
	if err != nil {
		return nil, err
	}
	if spent.Valid {
		t.Spent = &spent.Float64
	}
	if relatedID.Valid {
		t.RelatedID = &relatedID.Int32
	}
	if eventID.Valid {
		t.EventID = &eventID.Int32
	}
	if processedBy.Valid {
		t.ProcessedBy = &processedBy.Int32
	}
	return &t, nil
}

// insertTransaction writes the record and its applied-promotion links inside
// the caller's database transaction.
func insertTransaction(ctx context.Context, dbTx *sql.Tx, t *models.Transaction) error {
	query := `
	INSERT INTO transactions (type, user_id, created_by, amount, spent, related_id, event_id, suspicious, processed, processed_by, remark)
	VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)
	RETURNING id, created_at
	`
	err := dbTx.QueryRowContext(ctx, query,
		t.Type, t.UserID, t.CreatedByID, t.Amount, t.Spent, t.RelatedID, t.EventID,
		t.Suspicious, t.Processed, t.ProcessedBy, t.Remark,
	).Scan(&t.ID, &t.CreatedAt)
	if err != nil {
		return fmt.Errorf("failed to insert transaction: %w", err)
	}

	for _, pid := range t.PromotionIDs {
		if _, err := dbTx.ExecContext(ctx,
			`INSERT INTO transaction_promotions (transaction_id, promotion_id) VALUES ($1, $2)`,
			t.ID, pid); err != nil {
			return fmt.Errorf("failed to link promotion %d: %w", pid, err)
		}
	}
	return nil
}

// consumeOneTime registers one-time-promotion consumption. ON CONFLICT makes
// the reuse check and the write one statement: of two concurrent consumers,
// exactly one inserts a row and the other fails here.
func consumeOneTime(ctx context.Context, dbTx *sql.Tx, userID int32, promotionIDs []int32) error {
	for _, pid := range promotionIDs {
		res, err := dbTx.ExecContext(ctx,
			`INSERT INTO user_promotions (user_id, promotion_id) VALUES ($1, $2) ON CONFLICT DO NOTHING`,
			userID, pid)
		if err != nil {
			return fmt.Errorf("failed to consume promotion %d: %w", pid, err)
		}
		affected, err := res.RowsAffected()
		if err != nil {
			return fmt.Errorf("failed to consume promotion %d: %w", pid, err)
		}
		if affected == 0 {
			return fmt.Errorf("%w: promotion %d", pkgerrors.ErrPromotionAlreadyUsed, pid)
		}
	}
	return nil
}

// changeBalance applies delta inside the caller's database transaction.
// When guarded, changes that would take the balance below zero fail with
// ErrInsufficientPoints.
func changeBalance(ctx context.Context, dbTx *sql.Tx, userID, delta int32, guarded bool) error {
	query := `UPDATE users SET points = points + $1 WHERE id = $2`
	if guarded {
		query += ` AND (points + $1) >= 0`
	}
	res, err := dbTx.ExecContext(ctx, query, delta, userID)
	if err != nil {
		return fmt.Errorf("failed to change balance: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to change balance: %w", err)
	}
	if affected == 0 {
		if guarded {
			return pkgerrors.ErrInsufficientPoints
		}
		return pkgerrors.ErrUserNotFound
	}
	return nil
}

func (r *PostgresTransactionRepository) atomically(ctx context.Context, fn func(*sql.Tx) error) error {
	dbTx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	if err := fn(dbTx); err != nil {
		if rbErr := dbTx.Rollback(); rbErr != nil {
			slog.Error("rollback failed", "error", rbErr)
		}
		return err
	}
	if err := dbTx.Commit(); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}
	return nil
}

func (r *PostgresTransactionRepository) CreatePurchase(ctx context.Context, t *models.Transaction, consume []int32) (id int32, err error) {
	ctx, done := r.instrument(ctx, "CreatePurchase", &err)
	defer done()

	if t == nil || t.Type != models.TypePurchase {
		err = fmt.Errorf("%w: not a purchase transaction", pkgerrors.ErrInvalidInput)
		return 0, err
	}
	trace.SpanFromContext(ctx).SetAttributes(
		attribute.Int("user_id", int(t.UserID)),
		attribute.Int("amount", int(t.Amount)),
	)

	err = r.atomically(ctx, func(dbTx *sql.Tx) error {
		if err := consumeOneTime(ctx, dbTx, t.UserID, consume); err != nil {
			return err
		}
		if t.Amount != 0 {
			if err := changeBalance(ctx, dbTx, t.UserID, t.Amount, false); err != nil {
				return err
			}
		}
		return insertTransaction(ctx, dbTx, t)
	})
	if err != nil {
		slog.Error("failed to create purchase", "user_id", t.UserID, "error", err)
		return 0, err
	}

	observability.TransactionsCreated.WithLabelValues(string(models.TypePurchase)).Inc()
	slog.Info("purchase created", "id", t.ID, "user_id", t.UserID, "amount", t.Amount)
	return t.ID, nil
}

func (r *PostgresTransactionRepository) CreateAdjustment(ctx context.Context, t *models.Transaction, consume []int32) (id int32, err error) {
	ctx, done := r.instrument(ctx, "CreateAdjustment", &err)
	defer done()

	if t == nil || t.Type != models.TypeAdjustment {
		err = fmt.Errorf("%w: not an adjustment transaction", pkgerrors.ErrInvalidInput)
		return 0, err
	}

	// adjustments are a manager override: the signed delta is applied
	// without the zero floor
	err = r.atomically(ctx, func(dbTx *sql.Tx) error {
		if err := consumeOneTime(ctx, dbTx, t.UserID, consume); err != nil {
			return err
		}
		if err := changeBalance(ctx, dbTx, t.UserID, t.Amount, false); err != nil {
			return err
		}
		return insertTransaction(ctx, dbTx, t)
	})
	if err != nil {
		slog.Error("failed to create adjustment", "user_id", t.UserID, "error", err)
		return 0, err
	}

	observability.TransactionsCreated.WithLabelValues(string(models.TypeAdjustment)).Inc()
	slog.Info("adjustment created", "id", t.ID, "user_id", t.UserID, "amount", t.Amount)
	return t.ID, nil
}

func (r *PostgresTransactionRepository) CreateTransfer(ctx context.Context, sender, recipient *models.Transaction) (senderID, recipientID int32, err error) {
	ctx, done := r.instrument(ctx, "CreateTransfer", &err)
	defer done()

	if sender == nil || recipient == nil || sender.Type != models.TypeTransfer || recipient.Type != models.TypeTransfer {
		err = fmt.Errorf("%w: not a transfer transaction pair", pkgerrors.ErrInvalidInput)
		return 0, 0, err
	}
	if sender.Amount <= 0 || sender.Amount != recipient.Amount {
		err = fmt.Errorf("%w: transfer amount must be positive and shared", pkgerrors.ErrInvalidInput)
		return 0, 0, err
	}

	err = r.atomically(ctx, func(dbTx *sql.Tx) error {
		if err := changeBalance(ctx, dbTx, sender.UserID, -sender.Amount, true); err != nil {
			return err
		}
		if err := changeBalance(ctx, dbTx, recipient.UserID, recipient.Amount, false); err != nil {
			return err
		}
		if err := insertTransaction(ctx, dbTx, sender); err != nil {
			return err
		}
		return insertTransaction(ctx, dbTx, recipient)
	})
	if err != nil {
		slog.Error("failed to create transfer", "from_user_id", sender.UserID, "to_user_id", recipient.UserID, "error", err)
		return 0, 0, err
	}

	observability.TransactionsCreated.WithLabelValues(string(models.TypeTransfer)).Inc()
	slog.Info("transfer created",
		"sender_transaction_id", sender.ID,
		"recipient_transaction_id", recipient.ID,
		"amount", sender.Amount)
	return sender.ID, recipient.ID, nil
}

func (r *PostgresTransactionRepository) CreateRedemption(ctx context.Context, t *models.Transaction) (id int32, err error) {
	ctx, done := r.instrument(ctx, "CreateRedemption", &err)
	defer done()

	if t == nil || t.Type != models.TypeRedemption {
		err = fmt.Errorf("%w: not a redemption transaction", pkgerrors.ErrInvalidInput)
		return 0, err
	}

	// the balance is untouched here: the debit happens at processing time
	t.Processed = false
	err = r.atomically(ctx, func(dbTx *sql.Tx) error {
		return insertTransaction(ctx, dbTx, t)
	})
	if err != nil {
		slog.Error("failed to create redemption", "user_id", t.UserID, "error", err)
		return 0, err
	}

	observability.TransactionsCreated.WithLabelValues(string(models.TypeRedemption)).Inc()
	slog.Info("redemption created", "id", t.ID, "user_id", t.UserID, "amount", t.Amount)
	return t.ID, nil
}

func (r *PostgresTransactionRepository) MarkProcessed(ctx context.Context, id, processedBy int32) (t *models.Transaction, err error) {
	ctx, done := r.instrument(ctx, "MarkProcessed", &err)
	defer done()

	err = r.atomically(ctx, func(dbTx *sql.Tx) error {
		// lock the row so two concurrent process calls serialize; the
		// second sees processed=true and fails
		row := dbTx.QueryRowContext(ctx,
			`SELECT `+transactionColumns+` FROM transactions WHERE id = $1 FOR UPDATE`, id)
		t, err = scanTransaction(row)
		if stderrors.Is(err, sql.ErrNoRows) {
			return pkgerrors.ErrTransactionNotFound
		}
		if err != nil {
			return fmt.Errorf("failed to load transaction: %w", err)
		}
		if t.Type != models.TypeRedemption {
			return pkgerrors.ErrNotRedemption
		}
		if t.Processed {
			return pkgerrors.ErrAlreadyProcessed
		}

		if err := changeBalance(ctx, dbTx, t.UserID, -t.Amount, true); err != nil {
			return err
		}
		if _, err := dbTx.ExecContext(ctx,
			`UPDATE transactions SET processed = TRUE, processed_by = $1 WHERE id = $2`,
			processedBy, id); err != nil {
			return fmt.Errorf("failed to mark processed: %w", err)
		}
		t.Processed = true
		t.ProcessedBy = &processedBy
		return nil
	})
	if err != nil {
		slog.Error("failed to process redemption", "transaction_id", id, "error", err)
		return nil, err
	}

	slog.Info("redemption processed", "transaction_id", id, "processed_by", processedBy)
	return t, nil
}

func (r *PostgresTransactionRepository) SetSuspicious(ctx context.Context, id int32, suspicious bool) (t *models.Transaction, err error) {
	ctx, done := r.instrument(ctx, "SetSuspicious", &err)
	defer done()

	err = r.atomically(ctx, func(dbTx *sql.Tx) error {
		row := dbTx.QueryRowContext(ctx,
			`SELECT `+transactionColumns+` FROM transactions WHERE id = $1 FOR UPDATE`, id)
		t, err = scanTransaction(row)
		if stderrors.Is(err, sql.ErrNoRows) {
			return pkgerrors.ErrTransactionNotFound
		}
		if err != nil {
			return fmt.Errorf("failed to load transaction: %w", err)
		}
		if t.Suspicious == suspicious {
			return nil // no-op
		}

		// the amount is in effect exactly when suspicious is false; an
		// unprocessed redemption has no effect yet, so there is nothing
		// to reverse. Processed redemptions and sender-side transfers
		// store a positive amount, so flagging them suspicious debits the
		// balance a second time instead of restoring it.
		applied := !(t.Type == models.TypeRedemption && !t.Processed)
		if applied {
			delta := t.Amount
			if suspicious {
				delta = -delta
			}
			if err := changeBalance(ctx, dbTx, t.UserID, delta, false); err != nil {
				return err
			}
		}

		if _, err := dbTx.ExecContext(ctx,
			`UPDATE transactions SET suspicious = $1 WHERE id = $2`, suspicious, id); err != nil {
			return fmt.Errorf("failed to set suspicious: %w", err)
		}
		t.Suspicious = suspicious
		return nil
	})
	if err != nil {
		slog.Error("failed to set suspicious flag", "transaction_id", id, "error", err)
		return nil, err
	}

	slog.Info("suspicious flag updated", "transaction_id", id, "suspicious", suspicious)
	return t, nil
}

func (r *PostgresTransactionRepository) CreateEventAward(ctx context.Context, t *models.Transaction) (id int32, err error) {
	ctx, done := r.instrument(ctx, "CreateEventAward", &err)
	defer done()

	if t == nil || t.Type != models.TypeEvent || t.EventID == nil {
		err = fmt.Errorf("%w: not an event transaction", pkgerrors.ErrInvalidInput)
		return 0, err
	}

	err = r.atomically(ctx, func(dbTx *sql.Tx) error {
		// the pool check and decrement are one guarded statement:
		// remain + awarded stays equal to the allocation and remain
		// cannot go negative under concurrent awards
		res, err := dbTx.ExecContext(ctx, `
			UPDATE events
			SET points_remain = points_remain - $1, points_awarded = points_awarded + $1
			WHERE id = $2 AND points_remain >= $1`,
			t.Amount, *t.EventID)
		if err != nil {
			return fmt.Errorf("failed to debit event pool: %w", err)
		}
		affected, err := res.RowsAffected()
		if err != nil {
			return fmt.Errorf("failed to debit event pool: %w", err)
		}
		if affected == 0 {
			return pkgerrors.ErrInsufficientEventPoints
		}

		if err := changeBalance(ctx, dbTx, t.UserID, t.Amount, false); err != nil {
			return err
		}
		return insertTransaction(ctx, dbTx, t)
	})
	if err != nil {
		slog.Error("failed to create event award", "event_id", *t.EventID, "user_id", t.UserID, "error", err)
		return 0, err
	}

	observability.TransactionsCreated.WithLabelValues(string(models.TypeEvent)).Inc()
	slog.Info("event award created", "id", t.ID, "event_id", *t.EventID, "user_id", t.UserID, "amount", t.Amount)
	return t.ID, nil
}

func (r *PostgresTransactionRepository) GetByID(ctx context.Context, id int32) (t *models.Transaction, err error) {
	ctx, done := r.instrument(ctx, "GetTransactionByID", &err)
	defer done()

	query := `SELECT ` + transactionColumns + ` FROM transactions WHERE id = $1`
	t, err = scanTransaction(r.db.QueryRowContext(ctx, query, id))
	if stderrors.Is(err, sql.ErrNoRows) {
		err = pkgerrors.ErrTransactionNotFound
		return nil, err
	}
	if err != nil {
		err = fmt.Errorf("failed to get transaction: %w", err)
		return nil, err
	}

	t.PromotionIDs, err = r.promotionIDs(ctx, t.ID)
	if err != nil {
		return nil, err
	}
	return t, nil
}

func (r *PostgresTransactionRepository) promotionIDs(ctx context.Context, transactionID int32) ([]int32, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT promotion_id FROM transaction_promotions WHERE transaction_id = $1 ORDER BY promotion_id`,
		transactionID)
	if err != nil {
		return nil, fmt.Errorf("failed to get transaction promotions: %w", err)
	}
	defer rows.Close()

	ids := []int32{}
	for rows.Next() {
		var pid int32
		if err := rows.Scan(&pid); err != nil {
			return nil, fmt.Errorf("failed to scan promotion id: %w", err)
		}
		ids = append(ids, pid)
	}
	return ids, rows.Err()
}

func (r *PostgresTransactionRepository) List(ctx context.Context, filter models.TransactionFilter) (count int, transactions []models.Transaction, err error) {
	ctx, done := r.instrument(ctx, "ListTransactions", &err)
	defer done()

	conditions := []string{}
	args := []any{}

	if filter.UserID != nil {
		args = append(args, *filter.UserID)
		conditions = append(conditions, fmt.Sprintf("t.user_id = $%d", len(args)))
	}
	if filter.Name != "" {
		args = append(args, filter.Name)
		conditions = append(conditions, fmt.Sprintf(
			"t.user_id IN (SELECT id FROM users WHERE utorid = $%d OR name = $%d)", len(args), len(args)))
	}
	if filter.CreatedBy != "" {
		args = append(args, filter.CreatedBy)
		conditions = append(conditions, fmt.Sprintf(
			"t.created_by IN (SELECT id FROM users WHERE utorid = $%d OR name = $%d)", len(args), len(args)))
	}
	if filter.Suspicious != nil {
		args = append(args, *filter.Suspicious)
		conditions = append(conditions, fmt.Sprintf("t.suspicious = $%d", len(args)))
	}
	if filter.PromotionID != nil {
		args = append(args, *filter.PromotionID)
		conditions = append(conditions, fmt.Sprintf(
			"t.id IN (SELECT transaction_id FROM transaction_promotions WHERE promotion_id = $%d)", len(args)))
	}
	if filter.Type != "" {
		args = append(args, filter.Type)
		conditions = append(conditions, fmt.Sprintf("t.type = $%d", len(args)))
	}

	if filter.RelatedID != nil {
		if filter.Type == "" {
			err = fmt.Errorf("%w: relatedId must be used together with type", pkgerrors.ErrInvalidInput)
			return 0, nil, err
		}
		// relatedId is interpreted per transaction type
		switch filter.Type {
		case models.TypeEvent:
			args = append(args, *filter.RelatedID)
			conditions = append(conditions, fmt.Sprintf("t.event_id = $%d", len(args)))
		case models.TypeRedemption:
			// the cashier who processed the redemption
			args = append(args, *filter.RelatedID)
			conditions = append(conditions, fmt.Sprintf("t.processed_by = $%d", len(args)))
		case models.TypeTransfer:
			// the other party
			args = append(args, *filter.RelatedID)
			conditions = append(conditions, fmt.Sprintf("t.related_id = $%d", len(args)))
		case models.TypeAdjustment:
			// the adjusted transaction id is not part of the filter
			// contract; preserved as unsupported
			err = pkgerrors.ErrUnsupportedFilter
			return 0, nil, err
		default:
			args = append(args, *filter.RelatedID)
			conditions = append(conditions, fmt.Sprintf(
				"(t.user_id = $%d OR t.created_by = $%d OR t.event_id = $%d)", len(args), len(args), len(args)))
		}
	}

	if filter.Amount != nil {
		switch filter.Operator {
		case "gte":
			args = append(args, *filter.Amount)
			conditions = append(conditions, fmt.Sprintf("t.amount >= $%d", len(args)))
		case "lte":
			args = append(args, *filter.Amount)
			conditions = append(conditions, fmt.Sprintf("t.amount <= $%d", len(args)))
		default:
			err = fmt.Errorf("%w: operator must be 'gte' or 'lte' when amount is provided", pkgerrors.ErrInvalidInput)
			return 0, nil, err
		}
	}

	where := ""
	if len(conditions) > 0 {
		where = " WHERE " + strings.Join(conditions, " AND ")
	}

	if err = r.db.QueryRowContext(ctx, "SELECT COUNT(*) FROM transactions t"+where, args...).Scan(&count); err != nil {
		err = fmt.Errorf("failed to count transactions: %w", err)
		return 0, nil, err
	}

	page, limit := normalizePage(filter.Page, filter.Limit)
	args = append(args, limit, (page-1)*limit)
	query := fmt.Sprintf(
		"SELECT %s FROM transactions t%s ORDER BY t.created_at ASC, t.id ASC LIMIT $%d OFFSET $%d",
		transactionColumnsT, where, len(args)-1, len(args))

	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		err = fmt.Errorf("failed to list transactions: %w", err)
		return 0, nil, err
	}
	defer rows.Close()

	for rows.Next() {
		t, scanErr := scanTransaction(rows)
		if scanErr != nil {
			err = fmt.Errorf("failed to scan transaction: %w", scanErr)
			return 0, nil, err
		}
		transactions = append(transactions, *t)
	}
	if err = rows.Err(); err != nil {
		return 0, nil, err
	}

	for i := range transactions {
		transactions[i].PromotionIDs, err = r.promotionIDs(ctx, transactions[i].ID)
		if err != nil {
			return 0, nil, err
		}
	}
	return count, transactions, nil
}
