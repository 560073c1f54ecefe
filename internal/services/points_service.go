package service

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"math"
	"time"

	stderrors "errors"

	"github.com/campuspoints/loyalty-service/internal/infrastructure/kafka"
	"github.com/campuspoints/loyalty-service/internal/infrastructure/redis"
	"github.com/campuspoints/loyalty-service/internal/models"
	"github.com/campuspoints/loyalty-service/internal/repository"
	pkgerrors "github.com/campuspoints/loyalty-service/pkg/errors"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/codes"
)

// baseEarnRate is the purchase earn rate: 4 points per dollar spent,
// i.e. one point per $0.25.
const baseEarnRate = 4.0

type PurchaseRequest struct {
	Utorid       string
	Spent        float64
	PromotionIDs []int32
	Remark       string
	CashierID    int32
}

type AdjustmentRequest struct {
	Utorid       string
	Amount       int32
	RelatedID    int32
	PromotionIDs []int32
	Remark       string
	CreatedByID  int32
}

type EventAwardRequest struct {
	EventID int32
	// Utorid selects a single guest; empty awards every guest.
	Utorid      string
	Amount      int32
	Remark      string
	CreatedByID int32
}

// PointsService is the transaction engine: it computes point deltas, applies
// promotion rules, enforces the balance and pool invariants, and persists
// each transaction atomically through the transaction repository.
type PointsService interface {
	CreatePurchase(ctx context.Context, req PurchaseRequest) (*models.Transaction, error)
	CreateAdjustment(ctx context.Context, req AdjustmentRequest) (*models.Transaction, error)
	CreateTransfer(ctx context.Context, senderID, recipientID, amount int32, remark string) (*models.Transaction, error)
	CreateRedemption(ctx context.Context, userID, amount int32, remark string) (*models.Transaction, error)
	ProcessRedemption(ctx context.Context, transactionID, processedByID int32) (*models.Transaction, error)
	CreateEventAward(ctx context.Context, req EventAwardRequest) ([]models.Transaction, error)
	SetTransactionSuspicious(ctx context.Context, transactionID int32, suspicious bool) (*models.Transaction, error)
	ListTransactions(ctx context.Context, filter models.TransactionFilter) (int, []models.Transaction, error)
	ListUserTransactions(ctx context.Context, utorid string, filter models.TransactionFilter) (int, []models.Transaction, error)
	GetTransaction(ctx context.Context, id int32) (*models.Transaction, error)
}

type pointsService struct {
	userRepo        repository.UserRepository
	promotionRepo   repository.PromotionRepository
	eventRepo       repository.EventRepository
	transactionRepo repository.TransactionRepository
	redisClient     redis.RedisClient
	kafkaProducer   kafka.KafkaProducer
}

func NewPointsService(
	userRepo repository.UserRepository,
	promotionRepo repository.PromotionRepository,
	eventRepo repository.EventRepository,
	transactionRepo repository.TransactionRepository,
	redisClient redis.RedisClient,
	kafkaProducer kafka.KafkaProducer,
) *pointsService {
	return &pointsService{
		userRepo:        userRepo,
		promotionRepo:   promotionRepo,
		eventRepo:       eventRepo,
		transactionRepo: transactionRepo,
		redisClient:     redisClient,
		kafkaProducer:   kafkaProducer,
	}
}

func (s *pointsService) CreatePurchase(ctx context.Context, req PurchaseRequest) (*models.Transaction, error) {
	tracer := otel.Tracer("points-service")
	ctx, span := tracer.Start(ctx, "CreatePurchase")
	defer span.End()

	if req.Spent <= 0 {
		span.SetStatus(codes.Error, "invalid spent amount")
		return nil, fmt.Errorf("%w: spent must be positive", pkgerrors.ErrInvalidInput)
	}

	customer, err := s.userRepo.GetByUtorid(ctx, req.Utorid)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "customer lookup failed")
		return nil, err
	}
	cashier, err := s.userRepo.GetByID(ctx, req.CashierID)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "cashier lookup failed")
		return nil, err
	}

	consumed, err := s.userRepo.ConsumedPromotionIDs(ctx, customer.ID)
	if err != nil {
		slog.Error("failed to load consumed promotions", "user_id", customer.ID, "error", err)
		return nil, fmt.Errorf("%w: failed to load consumed promotions", pkgerrors.ErrInternal)
	}
	consumedSet := make(map[int32]bool, len(consumed))
	for _, id := range consumed {
		consumedSet[id] = true
	}

	now := time.Now()
	var rateIncrease float64
	var applied, consume []int32
	appliedSet := make(map[int32]bool)

	for _, pid := range req.PromotionIDs {
		if appliedSet[pid] {
			continue
		}
		promo, err := s.promotionRepo.GetByID(ctx, pid)
		if err != nil {
			span.SetStatus(codes.Error, "promotion not found")
			return nil, fmt.Errorf("%w: id %d", pkgerrors.ErrPromotionNotFound, pid)
		}
		if !promo.ActiveAt(now) {
			span.SetStatus(codes.Error, "promotion not active")
			return nil, fmt.Errorf("%w: id %d", pkgerrors.ErrPromotionInactive, pid)
		}
		// below the spending threshold the promotion is silently skipped
		if !promo.MeetsMinSpending(req.Spent) {
			continue
		}
		if promo.Type == models.PromotionOneTime {
			if consumedSet[pid] {
				span.SetStatus(codes.Error, "promotion already used")
				return nil, fmt.Errorf("%w: id %d", pkgerrors.ErrPromotionAlreadyUsed, pid)
			}
			consumedSet[pid] = true
			consume = append(consume, pid)
		}
		if promo.Rate != nil {
			rateIncrease += *promo.Rate * 100
		}
		appliedSet[pid] = true
		applied = append(applied, pid)
	}

	// every currently active automatic promotion whose minSpending is met
	// applies whether or not it was requested; one named explicitly is
	// linked once but its rate still counts here a second time
	automatic, err := s.promotionRepo.ActiveAutomatic(ctx, now, req.Spent)
	if err != nil {
		slog.Error("failed to load automatic promotions", "error", err)
		return nil, fmt.Errorf("%w: failed to load automatic promotions", pkgerrors.ErrInternal)
	}
	for _, promo := range automatic {
		if !appliedSet[promo.ID] {
			appliedSet[promo.ID] = true
			applied = append(applied, promo.ID)
		}
		if promo.Rate != nil {
			rateIncrease += *promo.Rate * 100
		}
	}

	raw := math.Round(req.Spent * (baseEarnRate + rateIncrease))
	if raw > math.MaxInt32 {
		raw = math.MaxInt32
	}
	earned := int32(raw)

	// a suspicious cashier earns the customer nothing, but the record and
	// the promotion consumption still go through
	if cashier.Suspicious {
		earned = 0
	}

	spent := req.Spent
	t := &models.Transaction{
		Type:         models.TypePurchase,
		UserID:       customer.ID,
		CreatedByID:  cashier.ID,
		Amount:       earned,
		Spent:        &spent,
		Processed:    true,
		Remark:       req.Remark,
		PromotionIDs: applied,
	}
	if _, err := s.transactionRepo.CreatePurchase(ctx, t, consume); err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "purchase persist failed")
		return nil, err
	}

	s.invalidateBalance(ctx, customer.ID)
	s.publishTransactionEvent(ctx, "transaction_created", t, 0)

	slog.Info("purchase transaction created",
		"transaction_id", t.ID,
		"utorid", customer.Utorid,
		"spent", req.Spent,
		"earned", earned,
		"promotions", applied)
	return t, nil
}

func (s *pointsService) CreateAdjustment(ctx context.Context, req AdjustmentRequest) (*models.Transaction, error) {
	tracer := otel.Tracer("points-service")
	ctx, span := tracer.Start(ctx, "CreateAdjustment")
	defer span.End()

	customer, err := s.userRepo.GetByUtorid(ctx, req.Utorid)
	if err != nil {
		span.SetStatus(codes.Error, "customer lookup failed")
		return nil, err
	}

	if _, err := s.transactionRepo.GetByID(ctx, req.RelatedID); err != nil {
		if stderrors.Is(err, pkgerrors.ErrTransactionNotFound) {
			span.SetStatus(codes.Error, "related transaction not found")
			return nil, pkgerrors.ErrRelatedNotFound
		}
		return nil, err
	}

	consumed, err := s.userRepo.ConsumedPromotionIDs(ctx, customer.ID)
	if err != nil {
		return nil, fmt.Errorf("%w: failed to load consumed promotions", pkgerrors.ErrInternal)
	}
	consumedSet := make(map[int32]bool, len(consumed))
	for _, id := range consumed {
		consumedSet[id] = true
	}

	// adjustments only honor explicitly supplied promotions; minSpending
	// and automatic application do not apply
	now := time.Now()
	var applied, consume []int32
	seen := make(map[int32]bool)
	for _, pid := range req.PromotionIDs {
		if seen[pid] {
			continue
		}
		promo, err := s.promotionRepo.GetByID(ctx, pid)
		if err != nil {
			return nil, fmt.Errorf("%w: id %d", pkgerrors.ErrPromotionNotFound, pid)
		}
		if !promo.ActiveAt(now) {
			return nil, fmt.Errorf("%w: id %d", pkgerrors.ErrPromotionInactive, pid)
		}
		if promo.Type == models.PromotionOneTime {
			if consumedSet[pid] {
				return nil, fmt.Errorf("%w: id %d", pkgerrors.ErrPromotionAlreadyUsed, pid)
			}
			consumedSet[pid] = true
			consume = append(consume, pid)
		}
		seen[pid] = true
		applied = append(applied, pid)
	}

	relatedID := req.RelatedID
	t := &models.Transaction{
		Type:         models.TypeAdjustment,
		UserID:       customer.ID,
		CreatedByID:  req.CreatedByID,
		Amount:       req.Amount,
		RelatedID:    &relatedID,
		Processed:    true,
		Remark:       req.Remark,
		PromotionIDs: applied,
	}
	if _, err := s.transactionRepo.CreateAdjustment(ctx, t, consume); err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "adjustment persist failed")
		return nil, err
	}

	s.invalidateBalance(ctx, customer.ID)
	s.publishTransactionEvent(ctx, "transaction_created", t, 0)

	slog.Info("adjustment transaction created",
		"transaction_id", t.ID,
		"utorid", customer.Utorid,
		"amount", req.Amount,
		"related_id", req.RelatedID)
	return t, nil
}

func (s *pointsService) CreateTransfer(ctx context.Context, senderID, recipientID, amount int32, remark string) (*models.Transaction, error) {
	tracer := otel.Tracer("points-service")
	ctx, span := tracer.Start(ctx, "CreateTransfer")
	defer span.End()

	if amount <= 0 {
		span.SetStatus(codes.Error, "invalid amount")
		return nil, fmt.Errorf("%w: amount must be positive", pkgerrors.ErrInvalidInput)
	}

	sender, err := s.userRepo.GetByID(ctx, senderID)
	if err != nil {
		span.SetStatus(codes.Error, "sender not found")
		return nil, err
	}
	if !sender.Verified {
		span.SetStatus(codes.Error, "sender not verified")
		return nil, pkgerrors.ErrNotVerified
	}
	recipient, err := s.userRepo.GetByID(ctx, recipientID)
	if err != nil {
		span.SetStatus(codes.Error, "recipient not found")
		return nil, err
	}
	if sender.Points < amount {
		span.SetStatus(codes.Error, "insufficient points")
		return nil, pkgerrors.ErrInsufficientPoints
	}

	senderTx := &models.Transaction{
		Type:        models.TypeTransfer,
		UserID:      sender.ID,
		CreatedByID: sender.ID,
		Amount:      amount,
		RelatedID:   &recipient.ID,
		Processed:   true,
		Remark:      remark,
	}
	recipientTx := &models.Transaction{
		Type:        models.TypeTransfer,
		UserID:      recipient.ID,
		CreatedByID: sender.ID,
		Amount:      amount,
		RelatedID:   &sender.ID,
		Processed:   true,
		Remark:      remark,
	}
	if _, _, err := s.transactionRepo.CreateTransfer(ctx, senderTx, recipientTx); err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "transfer persist failed")
		return nil, err
	}

	s.invalidateBalance(ctx, sender.ID)
	s.invalidateBalance(ctx, recipient.ID)
	s.publishTransactionEvent(ctx, "transaction_created", senderTx, recipient.ID)

	slog.Info("transfer created",
		"sender", sender.Utorid,
		"recipient", recipient.Utorid,
		"amount", amount,
		"sender_transaction_id", senderTx.ID,
		"recipient_transaction_id", recipientTx.ID)
	return senderTx, nil
}

func (s *pointsService) CreateRedemption(ctx context.Context, userID, amount int32, remark string) (*models.Transaction, error) {
	tracer := otel.Tracer("points-service")
	ctx, span := tracer.Start(ctx, "CreateRedemption")
	defer span.End()

	if amount <= 0 {
		span.SetStatus(codes.Error, "invalid amount")
		return nil, fmt.Errorf("%w: amount must be positive", pkgerrors.ErrInvalidInput)
	}

	user, err := s.userRepo.GetByID(ctx, userID)
	if err != nil {
		span.SetStatus(codes.Error, "user not found")
		return nil, err
	}
	if !user.Verified {
		span.SetStatus(codes.Error, "user not verified")
		return nil, pkgerrors.ErrNotVerified
	}
	if user.Points < amount {
		span.SetStatus(codes.Error, "insufficient points")
		return nil, pkgerrors.ErrInsufficientPoints
	}

	// the balance is only reserved implicitly; the debit happens when a
	// cashier processes the redemption
	t := &models.Transaction{
		Type:        models.TypeRedemption,
		UserID:      user.ID,
		CreatedByID: user.ID,
		Amount:      amount,
		Processed:   false,
		Remark:      remark,
	}
	if _, err := s.transactionRepo.CreateRedemption(ctx, t); err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "redemption persist failed")
		return nil, err
	}

	s.publishTransactionEvent(ctx, "transaction_created", t, 0)

	slog.Info("redemption requested", "transaction_id", t.ID, "utorid", user.Utorid, "amount", amount)
	return t, nil
}

func (s *pointsService) ProcessRedemption(ctx context.Context, transactionID, processedByID int32) (*models.Transaction, error) {
	tracer := otel.Tracer("points-service")
	ctx, span := tracer.Start(ctx, "ProcessRedemption")
	defer span.End()

	t, err := s.transactionRepo.MarkProcessed(ctx, transactionID, processedByID)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "process redemption failed")
		return nil, err
	}

	s.invalidateBalance(ctx, t.UserID)
	s.publishTransactionEvent(ctx, "transaction_processed", t, 0)

	slog.Info("redemption processed",
		"transaction_id", t.ID,
		"user_id", t.UserID,
		"processed_by", processedByID,
		"redeemed", t.Amount)
	return t, nil
}

func (s *pointsService) CreateEventAward(ctx context.Context, req EventAwardRequest) ([]models.Transaction, error) {
	tracer := otel.Tracer("points-service")
	ctx, span := tracer.Start(ctx, "CreateEventAward")
	defer span.End()

	if req.Amount <= 0 {
		span.SetStatus(codes.Error, "invalid amount")
		return nil, fmt.Errorf("%w: amount must be a positive integer", pkgerrors.ErrInvalidInput)
	}

	event, err := s.eventRepo.GetByID(ctx, req.EventID)
	if err != nil {
		span.SetStatus(codes.Error, "event not found")
		return nil, err
	}

	remark := req.Remark
	if remark == "" {
		remark = event.Name
	}

	var recipients []models.EventMember
	if req.Utorid != "" {
		guest, ok := event.GuestByUtorid(req.Utorid)
		if !ok {
			span.SetStatus(codes.Error, "recipient not a guest")
			return nil, pkgerrors.ErrRecipientNotGuest
		}
		recipients = []models.EventMember{guest}
	} else {
		recipients = event.Guests
	}

	// the pre-check keeps obviously oversized awards from starting; the
	// pool is still guarded row-by-row inside the repository so
	// concurrent awards cannot overshoot it
	total := req.Amount * int32(len(recipients))
	if event.PointsRemain < total {
		span.SetStatus(codes.Error, "insufficient event points")
		return nil, pkgerrors.ErrInsufficientEventPoints
	}

	eventID := req.EventID
	transactions := make([]models.Transaction, 0, len(recipients))
	for _, guest := range recipients {
		t := &models.Transaction{
			Type:        models.TypeEvent,
			UserID:      guest.UserID,
			CreatedByID: req.CreatedByID,
			Amount:      req.Amount,
			RelatedID:   &eventID,
			EventID:     &eventID,
			Processed:   true,
			Remark:      remark,
		}
		if _, err := s.transactionRepo.CreateEventAward(ctx, t); err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, "event award persist failed")
			return nil, err
		}
		s.invalidateBalance(ctx, guest.UserID)
		s.publishTransactionEvent(ctx, "transaction_created", t, 0)
		transactions = append(transactions, *t)
	}

	slog.Info("event points awarded",
		"event_id", req.EventID,
		"recipients", len(recipients),
		"amount_each", req.Amount,
		"total", total)
	return transactions, nil
}

func (s *pointsService) SetTransactionSuspicious(ctx context.Context, transactionID int32, suspicious bool) (*models.Transaction, error) {
	tracer := otel.Tracer("points-service")
	ctx, span := tracer.Start(ctx, "SetTransactionSuspicious")
	defer span.End()

	t, err := s.transactionRepo.SetSuspicious(ctx, transactionID, suspicious)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "set suspicious failed")
		return nil, err
	}

	s.invalidateBalance(ctx, t.UserID)
	s.publishTransactionEvent(ctx, "transaction_flagged", t, 0)

	slog.Info("transaction suspicious flag set",
		"transaction_id", t.ID,
		"suspicious", suspicious,
		"user_id", t.UserID)
	return t, nil
}

func (s *pointsService) ListTransactions(ctx context.Context, filter models.TransactionFilter) (int, []models.Transaction, error) {
	tracer := otel.Tracer("points-service")
	ctx, span := tracer.Start(ctx, "ListTransactions")
	defer span.End()

	count, transactions, err := s.transactionRepo.List(ctx, filter)
	if err != nil {
		span.RecordError(err)
		return 0, nil, err
	}
	return count, transactions, nil
}

func (s *pointsService) ListUserTransactions(ctx context.Context, utorid string, filter models.TransactionFilter) (int, []models.Transaction, error) {
	tracer := otel.Tracer("points-service")
	ctx, span := tracer.Start(ctx, "ListUserTransactions")
	defer span.End()

	user, err := s.userRepo.GetByUtorid(ctx, utorid)
	if err != nil {
		return 0, nil, err
	}
	filter.UserID = &user.ID
	return s.transactionRepo.List(ctx, filter)
}

func (s *pointsService) GetTransaction(ctx context.Context, id int32) (*models.Transaction, error) {
	tracer := otel.Tracer("points-service")
	ctx, span := tracer.Start(ctx, "GetTransaction")
	defer span.End()

	return s.transactionRepo.GetByID(ctx, id)
}

func (s *pointsService) invalidateBalance(ctx context.Context, userID int32) {
	key := fmt.Sprintf("user:%d:balance", userID)
	if err := s.redisClient.Del(ctx, key); err != nil {
		slog.Error("failed to invalidate balance cache", "user_id", userID, "error", err)
	}
}

func (s *pointsService) publishTransactionEvent(ctx context.Context, eventType string, t *models.Transaction, relatedUserID int32) {
	event := kafka.TransactionEvent{
		EventType:     eventType,
		TransactionID: t.ID,
		Type:          string(t.Type),
		UserID:        t.UserID,
		RelatedUserID: relatedUserID,
		Amount:        t.Amount,
		Suspicious:    t.Suspicious,
		Processed:     t.Processed,
		CreatedAt:     time.Now().UTC().Format(time.RFC3339),
	}
	eventBytes, err := json.Marshal(event)
	if err != nil {
		slog.Error("failed to marshal transaction event", "transaction_id", t.ID, "error", err)
		return
	}
	if err := s.kafkaProducer.Send(ctx, "transactions", int64(t.ID), eventBytes); err != nil {
		slog.Error("failed to publish transaction event", "transaction_id", t.ID, "error", err)
	}
}
