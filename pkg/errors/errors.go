package errors

import "errors"

var (
	// lookup failures
	ErrUserNotFound        = errors.New("user not found")
	ErrPromotionNotFound   = errors.New("promotion not found")
	ErrEventNotFound       = errors.New("event not found")
	ErrTransactionNotFound = errors.New("transaction not found")
	ErrRelatedNotFound     = errors.New("related transaction not found")
	ErrResetTokenNotFound  = errors.New("reset token not found")

	// validation failures
	ErrInvalidInput         = errors.New("invalid input")
	ErrPromotionInactive    = errors.New("promotion is not active")
	ErrPromotionAlreadyUsed = errors.New("promotion has already been used")
	ErrNotVerified          = errors.New("user is not verified")
	ErrRecipientNotGuest    = errors.New("user is not a guest of the event")
	ErrUnsupportedFilter    = errors.New("filter is not supported for this transaction type")

	// balance and pool floors
	ErrInsufficientPoints      = errors.New("insufficient points")
	ErrInsufficientEventPoints = errors.New("insufficient event points remaining")

	// redemption state machine
	ErrAlreadyProcessed = errors.New("transaction already processed")
	ErrNotRedemption    = errors.New("only redemption transactions can be processed")

	// auth and user management
	ErrInvalidCredentials = errors.New("invalid credentials")
	ErrUserAlreadyExists  = errors.New("user already exists")
	ErrForbidden          = errors.New("insufficient clearance")
	ErrResetTokenExpired  = errors.New("reset token expired")
	ErrRateLimited        = errors.New("too many requests")

	// events
	ErrEventFull      = errors.New("event capacity reached")
	ErrEventEnded     = errors.New("event has already ended")
	ErrAlreadyGuest   = errors.New("user is already a guest of the event")
	ErrEventPublished = errors.New("published events cannot be deleted")

	ErrInternal = errors.New("internal error")
)
