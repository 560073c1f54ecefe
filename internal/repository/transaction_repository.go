package repository

import (
	"context"

	"github.com/campuspoints/loyalty-service/internal/models"
)

// TransactionRepository persists transaction records. Every mutating method
// is a single atomic unit against the backing store: the record insert, the
// balance or pool change, and any one-time-promotion consumption either all
// commit or none do. Check-then-write sequences (balance floor, event pool,
// one-time reuse) are guarded inside the same database transaction with row
// locks, so concurrent callers cannot both pass a stale check.
type TransactionRepository interface {
	// CreatePurchase credits t.Amount to t.UserID, records the transaction,
	// and consumes the given one-time promotions. Fails with
	// ErrPromotionAlreadyUsed if any one-time promotion was consumed
	// concurrently.
	CreatePurchase(ctx context.Context, t *models.Transaction, consumeOneTime []int32) (int32, error)
	// CreateAdjustment applies the signed t.Amount without a floor check
	// (manager override) and consumes the given one-time promotions.
	CreateAdjustment(ctx context.Context, t *models.Transaction, consumeOneTime []int32) (int32, error)
	// CreateTransfer debits the sender (floor-guarded), credits the
	// recipient, and records both sides cross-referencing each other.
	CreateTransfer(ctx context.Context, sender, recipient *models.Transaction) (int32, int32, error)
	// CreateRedemption records the request without touching the balance.
	CreateRedemption(ctx context.Context, t *models.Transaction) (int32, error)
	// MarkProcessed transitions a redemption to processed exactly once,
	// debiting the balance as the sole transition side effect.
	MarkProcessed(ctx context.Context, id, processedBy int32) (*models.Transaction, error)
	// SetSuspicious toggles the flag, reversing (false->true) or
	// re-applying (true->false) the amount's balance effect. Setting the
	// current value is a no-op.
	SetSuspicious(ctx context.Context, id int32, suspicious bool) (*models.Transaction, error)
	// CreateEventAward debits the event pool (remain-guarded), credits the
	// recipient, and records the transaction.
	CreateEventAward(ctx context.Context, t *models.Transaction) (int32, error)

	GetByID(ctx context.Context, id int32) (*models.Transaction, error)
	List(ctx context.Context, filter models.TransactionFilter) (int, []models.Transaction, error)
}
