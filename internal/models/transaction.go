package models

import "time"

// Transaction is an immutable record of a point-affecting action. Only the
// Suspicious and Processed flags may change after creation; amount and type
// never do. The amount counts toward the user's balance exactly when
// Suspicious is false (and, for redemptions, once Processed is true).
type Transaction struct {
	ID           int32           `json:"id"`
	Type         TransactionType `json:"type"`
	UserID       int32           `json:"userId"`
	CreatedByID  int32           `json:"createdById"`
	Amount       int32           `json:"amount"`
	Spent        *float64        `json:"spent,omitempty"`
	RelatedID    *int32          `json:"relatedId,omitempty"`
	EventID      *int32          `json:"eventId,omitempty"`
	Suspicious   bool            `json:"suspicious"`
	Processed    bool            `json:"processed"`
	ProcessedBy  *int32          `json:"processedBy,omitempty"`
	Remark       string          `json:"remark"`
	PromotionIDs []int32         `json:"promotionIds"`
	CreatedAt    time.Time       `json:"createdAt"`
}

type TransactionType string

const (
	TypePurchase   TransactionType = "purchase"
	TypeAdjustment TransactionType = "adjustment"
	TypeTransfer   TransactionType = "transfer"
	TypeRedemption TransactionType = "redemption"
	TypeEvent      TransactionType = "event"
)

func (t TransactionType) Valid() bool {
	switch t {
	case TypePurchase, TypeAdjustment, TypeTransfer, TypeRedemption, TypeEvent:
		return true
	}
	return false
}

// TransactionFilter narrows ListTransactions results. Zero-valued fields are
// ignored. RelatedID is interpreted per Type: the event for event
// transactions, the processing cashier for redemptions, the other party for
// transfers. Adjustments do not support RelatedID filtering.
type TransactionFilter struct {
	UserID      *int32
	Name        string
	CreatedBy   string
	Suspicious  *bool
	PromotionID *int32
	Type        TransactionType
	RelatedID   *int32
	Amount      *int32
	Operator    string // "gte" or "lte", required with Amount
	Page        int
	Limit       int
}
