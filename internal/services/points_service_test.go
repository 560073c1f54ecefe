package service

import (
	"context"
	"math"
	"testing"
	"time"

	kafkamocks "github.com/campuspoints/loyalty-service/internal/infrastructure/kafka/mocks"
	redismocks "github.com/campuspoints/loyalty-service/internal/infrastructure/redis/mocks"
	"github.com/campuspoints/loyalty-service/internal/models"
	"github.com/campuspoints/loyalty-service/internal/repository/mocks"
	pkgerrors "github.com/campuspoints/loyalty-service/pkg/errors"
	"github.com/golang/mock/gomock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type pointsFixture struct {
	userRepo        *mocks.MockUserRepository
	promotionRepo   *mocks.MockPromotionRepository
	eventRepo       *mocks.MockEventRepository
	transactionRepo *mocks.MockTransactionRepository
	redisClient     *redismocks.MockRedisClient
	producer        *kafkamocks.MockKafkaProducer
	service         PointsService
}

func newPointsFixture(t *testing.T) *pointsFixture {
	ctrl := gomock.NewController(t)
	f := &pointsFixture{
		userRepo:        mocks.NewMockUserRepository(ctrl),
		promotionRepo:   mocks.NewMockPromotionRepository(ctrl),
		eventRepo:       mocks.NewMockEventRepository(ctrl),
		transactionRepo: mocks.NewMockTransactionRepository(ctrl),
		redisClient:     redismocks.NewMockRedisClient(ctrl),
		producer:        kafkamocks.NewMockKafkaProducer(ctrl),
	}
	f.service = NewPointsService(f.userRepo, f.promotionRepo, f.eventRepo, f.transactionRepo, f.redisClient, f.producer)
	return f
}

func (f *pointsFixture) expectSideEffects() {
	f.redisClient.EXPECT().Del(gomock.Any(), gomock.Any()).Return(nil).AnyTimes()
	f.producer.EXPECT().Send(gomock.Any(), gomock.Any(), gomock.Any(), gomock.Any()).Return(nil).AnyTimes()
}

func floatPtr(v float64) *float64 { return &v }

func TestCreatePurchaseEarnsBaseRatePlusAutomaticPromotion(t *testing.T) {
	f := newPointsFixture(t)
	ctx := context.Background()

	customer := &models.User{ID: 1, Utorid: "clive123", Points: 0}
	cashier := &models.User{ID: 2, Utorid: "cashier1", Role: models.RoleCashier}
	promo := models.Promotion{ID: 7, Type: models.PromotionAutomatic, Rate: floatPtr(0.05)}

	f.userRepo.EXPECT().GetByUtorid(gomock.Any(), "clive123").Return(customer, nil)
	f.userRepo.EXPECT().GetByID(gomock.Any(), int32(2)).Return(cashier, nil)
	f.userRepo.EXPECT().ConsumedPromotionIDs(gomock.Any(), int32(1)).Return(nil, nil)
	f.promotionRepo.EXPECT().ActiveAutomatic(gomock.Any(), gomock.Any(), 40.0).Return([]models.Promotion{promo}, nil)

	var created *models.Transaction
	f.transactionRepo.EXPECT().
		CreatePurchase(gomock.Any(), gomock.Any(), gomock.Nil()).
		DoAndReturn(func(_ context.Context, tx *models.Transaction, _ []int32) (int32, error) {
			created = tx
			tx.ID = 10
			return 10, nil
		})
	f.expectSideEffects()

	result, err := f.service.CreatePurchase(ctx, PurchaseRequest{
		Utorid:    "clive123",
		Spent:     40,
		CashierID: 2,
	})
	require.NoError(t, err)

	// 40 * (4 + 0.05*100) = 360
	assert.Equal(t, int32(360), result.Amount)
	assert.Equal(t, []int32{7}, created.PromotionIDs)
	assert.True(t, created.Processed)
	require.NotNil(t, created.Spent)
	assert.Equal(t, 40.0, *created.Spent)
}

func TestCreatePurchaseExplicitAutomaticPromotionLinkedOnce(t *testing.T) {
	f := newPointsFixture(t)
	ctx := context.Background()

	now := time.Now()
	promo := models.Promotion{
		ID:        7,
		Type:      models.PromotionAutomatic,
		Rate:      floatPtr(0.05),
		StartTime: now.Add(-time.Hour),
		EndTime:   now.Add(time.Hour),
	}

	f.userRepo.EXPECT().GetByUtorid(gomock.Any(), "clive123").Return(&models.User{ID: 1, Utorid: "clive123"}, nil)
	f.userRepo.EXPECT().GetByID(gomock.Any(), int32(2)).Return(&models.User{ID: 2}, nil)
	f.userRepo.EXPECT().ConsumedPromotionIDs(gomock.Any(), int32(1)).Return(nil, nil)
	f.promotionRepo.EXPECT().GetByID(gomock.Any(), int32(7)).Return(&promo, nil)
	f.promotionRepo.EXPECT().ActiveAutomatic(gomock.Any(), gomock.Any(), 40.0).Return([]models.Promotion{promo}, nil)

	var created *models.Transaction
	f.transactionRepo.EXPECT().
		CreatePurchase(gomock.Any(), gomock.Any(), gomock.Nil()).
		DoAndReturn(func(_ context.Context, tx *models.Transaction, _ []int32) (int32, error) {
			created = tx
			return 10, nil
		})
	f.expectSideEffects()

	result, err := f.service.CreatePurchase(ctx, PurchaseRequest{
		Utorid:       "clive123",
		Spent:        40,
		PromotionIDs: []int32{7},
		CashierID:    2,
	})
	require.NoError(t, err)

	// the rate counts for the explicit request and again for the automatic
	// pass: 40 * (4 + 5 + 5) = 560, but the link is recorded once
	assert.Equal(t, int32(560), result.Amount)
	assert.Equal(t, []int32{7}, created.PromotionIDs)
}

func TestCreatePurchaseRoundsToNearestPoint(t *testing.T) {
	f := newPointsFixture(t)
	ctx := context.Background()

	f.userRepo.EXPECT().GetByUtorid(gomock.Any(), "clive123").Return(&models.User{ID: 1, Utorid: "clive123"}, nil)
	f.userRepo.EXPECT().GetByID(gomock.Any(), int32(2)).Return(&models.User{ID: 2}, nil)
	f.userRepo.EXPECT().ConsumedPromotionIDs(gomock.Any(), int32(1)).Return(nil, nil)
	f.promotionRepo.EXPECT().ActiveAutomatic(gomock.Any(), gomock.Any(), 9.99).Return(nil, nil)
	f.transactionRepo.EXPECT().CreatePurchase(gomock.Any(), gomock.Any(), gomock.Nil()).Return(int32(1), nil)
	f.expectSideEffects()

	result, err := f.service.CreatePurchase(ctx, PurchaseRequest{Utorid: "clive123", Spent: 9.99, CashierID: 2})
	require.NoError(t, err)
	// 9.99 * 4 = 39.96, rounds to 40
	assert.Equal(t, int32(40), result.Amount)
}

func TestCreatePurchaseClampsEarnAtInt32Max(t *testing.T) {
	f := newPointsFixture(t)
	ctx := context.Background()

	f.userRepo.EXPECT().GetByUtorid(gomock.Any(), "clive123").Return(&models.User{ID: 1, Utorid: "clive123"}, nil)
	f.userRepo.EXPECT().GetByID(gomock.Any(), int32(2)).Return(&models.User{ID: 2}, nil)
	f.userRepo.EXPECT().ConsumedPromotionIDs(gomock.Any(), int32(1)).Return(nil, nil)
	f.promotionRepo.EXPECT().ActiveAutomatic(gomock.Any(), gomock.Any(), 1e12).Return(nil, nil)
	f.transactionRepo.EXPECT().CreatePurchase(gomock.Any(), gomock.Any(), gomock.Nil()).Return(int32(1), nil)
	f.expectSideEffects()

	result, err := f.service.CreatePurchase(ctx, PurchaseRequest{Utorid: "clive123", Spent: 1e12, CashierID: 2})
	require.NoError(t, err)
	assert.Equal(t, int32(math.MaxInt32), result.Amount)
}

func TestCreatePurchaseSuspiciousCashierEarnsNothing(t *testing.T) {
	f := newPointsFixture(t)
	ctx := context.Background()

	now := time.Now()
	oneTime := &models.Promotion{
		ID:        3,
		Type:      models.PromotionOneTime,
		Rate:      floatPtr(0.01),
		StartTime: now.Add(-time.Hour),
		EndTime:   now.Add(time.Hour),
	}

	f.userRepo.EXPECT().GetByUtorid(gomock.Any(), "clive123").Return(&models.User{ID: 1, Utorid: "clive123"}, nil)
	f.userRepo.EXPECT().GetByID(gomock.Any(), int32(2)).Return(&models.User{ID: 2, Suspicious: true}, nil)
	f.userRepo.EXPECT().ConsumedPromotionIDs(gomock.Any(), int32(1)).Return(nil, nil)
	f.promotionRepo.EXPECT().GetByID(gomock.Any(), int32(3)).Return(oneTime, nil)
	f.promotionRepo.EXPECT().ActiveAutomatic(gomock.Any(), gomock.Any(), 10.0).Return(nil, nil)

	var created *models.Transaction
	var consumed []int32
	f.transactionRepo.EXPECT().
		CreatePurchase(gomock.Any(), gomock.Any(), gomock.Any()).
		DoAndReturn(func(_ context.Context, tx *models.Transaction, consume []int32) (int32, error) {
			created = tx
			consumed = consume
			return 1, nil
		})
	f.expectSideEffects()

	result, err := f.service.CreatePurchase(ctx, PurchaseRequest{
		Utorid:       "clive123",
		Spent:        10,
		PromotionIDs: []int32{3},
		CashierID:    2,
	})
	require.NoError(t, err)

	// the record and the promotion consumption still go through
	assert.Equal(t, int32(0), result.Amount)
	assert.Equal(t, []int32{3}, created.PromotionIDs)
	assert.Equal(t, []int32{3}, consumed)
}

func TestCreatePurchaseRejectsConsumedOneTimePromotion(t *testing.T) {
	f := newPointsFixture(t)
	ctx := context.Background()

	now := time.Now()
	oneTime := &models.Promotion{
		ID:        3,
		Type:      models.PromotionOneTime,
		StartTime: now.Add(-time.Hour),
		EndTime:   now.Add(time.Hour),
	}

	f.userRepo.EXPECT().GetByUtorid(gomock.Any(), "clive123").Return(&models.User{ID: 1}, nil)
	f.userRepo.EXPECT().GetByID(gomock.Any(), int32(2)).Return(&models.User{ID: 2}, nil)
	f.userRepo.EXPECT().ConsumedPromotionIDs(gomock.Any(), int32(1)).Return([]int32{3}, nil)
	f.promotionRepo.EXPECT().GetByID(gomock.Any(), int32(3)).Return(oneTime, nil)

	_, err := f.service.CreatePurchase(ctx, PurchaseRequest{
		Utorid:       "clive123",
		Spent:        10,
		PromotionIDs: []int32{3},
		CashierID:    2,
	})
	assert.ErrorIs(t, err, pkgerrors.ErrPromotionAlreadyUsed)
}

func TestCreatePurchaseSkipsPromotionBelowMinSpending(t *testing.T) {
	f := newPointsFixture(t)
	ctx := context.Background()

	now := time.Now()
	promo := &models.Promotion{
		ID:          3,
		Type:        models.PromotionOneTime,
		Rate:        floatPtr(0.1),
		MinSpending: floatPtr(50),
		StartTime:   now.Add(-time.Hour),
		EndTime:     now.Add(time.Hour),
	}

	f.userRepo.EXPECT().GetByUtorid(gomock.Any(), "clive123").Return(&models.User{ID: 1}, nil)
	f.userRepo.EXPECT().GetByID(gomock.Any(), int32(2)).Return(&models.User{ID: 2}, nil)
	f.userRepo.EXPECT().ConsumedPromotionIDs(gomock.Any(), int32(1)).Return(nil, nil)
	f.promotionRepo.EXPECT().GetByID(gomock.Any(), int32(3)).Return(promo, nil)
	f.promotionRepo.EXPECT().ActiveAutomatic(gomock.Any(), gomock.Any(), 10.0).Return(nil, nil)

	var created *models.Transaction
	f.transactionRepo.EXPECT().
		CreatePurchase(gomock.Any(), gomock.Any(), gomock.Nil()).
		DoAndReturn(func(_ context.Context, tx *models.Transaction, _ []int32) (int32, error) {
			created = tx
			return 1, nil
		})
	f.expectSideEffects()

	result, err := f.service.CreatePurchase(ctx, PurchaseRequest{
		Utorid:       "clive123",
		Spent:        10,
		PromotionIDs: []int32{3},
		CashierID:    2,
	})
	require.NoError(t, err)

	// not an error: the promotion just does not apply
	assert.Equal(t, int32(40), result.Amount)
	assert.Empty(t, created.PromotionIDs)
}

func TestCreatePurchaseRejectsInactivePromotion(t *testing.T) {
	f := newPointsFixture(t)
	ctx := context.Background()

	now := time.Now()
	expired := &models.Promotion{
		ID:        3,
		Type:      models.PromotionAutomatic,
		StartTime: now.Add(-2 * time.Hour),
		EndTime:   now.Add(-time.Hour),
	}

	f.userRepo.EXPECT().GetByUtorid(gomock.Any(), "clive123").Return(&models.User{ID: 1}, nil)
	f.userRepo.EXPECT().GetByID(gomock.Any(), int32(2)).Return(&models.User{ID: 2}, nil)
	f.userRepo.EXPECT().ConsumedPromotionIDs(gomock.Any(), int32(1)).Return(nil, nil)
	f.promotionRepo.EXPECT().GetByID(gomock.Any(), int32(3)).Return(expired, nil)

	_, err := f.service.CreatePurchase(ctx, PurchaseRequest{
		Utorid:       "clive123",
		Spent:        10,
		PromotionIDs: []int32{3},
		CashierID:    2,
	})
	assert.ErrorIs(t, err, pkgerrors.ErrPromotionInactive)
}

func TestCreateTransferRequiresVerifiedSender(t *testing.T) {
	f := newPointsFixture(t)
	ctx := context.Background()

	f.userRepo.EXPECT().GetByID(gomock.Any(), int32(1)).Return(&models.User{ID: 1, Verified: false, Points: 100}, nil)

	_, err := f.service.CreateTransfer(ctx, 1, 2, 50, "")
	assert.ErrorIs(t, err, pkgerrors.ErrNotVerified)
}

func TestCreateTransferRejectsInsufficientBalance(t *testing.T) {
	f := newPointsFixture(t)
	ctx := context.Background()

	f.userRepo.EXPECT().GetByID(gomock.Any(), int32(1)).Return(&models.User{ID: 1, Verified: true, Points: 30}, nil)
	f.userRepo.EXPECT().GetByID(gomock.Any(), int32(2)).Return(&models.User{ID: 2}, nil)

	_, err := f.service.CreateTransfer(ctx, 1, 2, 50, "")
	assert.ErrorIs(t, err, pkgerrors.ErrInsufficientPoints)
}

func TestCreateTransferRecordsBothSides(t *testing.T) {
	f := newPointsFixture(t)
	ctx := context.Background()

	f.userRepo.EXPECT().GetByID(gomock.Any(), int32(1)).Return(&models.User{ID: 1, Utorid: "senderxx", Verified: true, Points: 100}, nil)
	f.userRepo.EXPECT().GetByID(gomock.Any(), int32(2)).Return(&models.User{ID: 2, Utorid: "receiver"}, nil)

	f.transactionRepo.EXPECT().
		CreateTransfer(gomock.Any(), gomock.Any(), gomock.Any()).
		DoAndReturn(func(_ context.Context, sender, recipient *models.Transaction) (int32, int32, error) {
			require.NotNil(t, sender.RelatedID)
			require.NotNil(t, recipient.RelatedID)
			assert.Equal(t, int32(2), *sender.RelatedID)
			assert.Equal(t, int32(1), *recipient.RelatedID)
			assert.Equal(t, int32(50), sender.Amount)
			assert.Equal(t, int32(50), recipient.Amount)
			assert.Equal(t, int32(1), sender.CreatedByID)
			assert.Equal(t, int32(1), recipient.CreatedByID)
			return 10, 11, nil
		})
	f.expectSideEffects()

	_, err := f.service.CreateTransfer(ctx, 1, 2, 50, "lunch")
	require.NoError(t, err)
}

func TestCreateRedemptionDoesNotTouchBalance(t *testing.T) {
	f := newPointsFixture(t)
	ctx := context.Background()

	f.userRepo.EXPECT().GetByID(gomock.Any(), int32(1)).Return(&models.User{ID: 1, Verified: true, Points: 100}, nil)

	var created *models.Transaction
	f.transactionRepo.EXPECT().
		CreateRedemption(gomock.Any(), gomock.Any()).
		DoAndReturn(func(_ context.Context, tx *models.Transaction) (int32, error) {
			created = tx
			return 5, nil
		})
	// no balance invalidation: nothing changed yet
	f.producer.EXPECT().Send(gomock.Any(), gomock.Any(), gomock.Any(), gomock.Any()).Return(nil)

	result, err := f.service.CreateRedemption(ctx, 1, 60, "")
	require.NoError(t, err)
	assert.False(t, result.Processed)
	assert.Equal(t, int32(60), created.Amount)
}

func TestCreateRedemptionRejectsOverdraw(t *testing.T) {
	f := newPointsFixture(t)
	ctx := context.Background()

	f.userRepo.EXPECT().GetByID(gomock.Any(), int32(1)).Return(&models.User{ID: 1, Verified: true, Points: 30}, nil)

	_, err := f.service.CreateRedemption(ctx, 1, 60, "")
	assert.ErrorIs(t, err, pkgerrors.ErrInsufficientPoints)
}

func TestProcessRedemptionDebitsOnProcessing(t *testing.T) {
	f := newPointsFixture(t)
	ctx := context.Background()

	processedBy := int32(9)
	f.transactionRepo.EXPECT().
		MarkProcessed(gomock.Any(), int32(5), processedBy).
		Return(&models.Transaction{ID: 5, Type: models.TypeRedemption, UserID: 1, Amount: 60, Processed: true, ProcessedBy: &processedBy}, nil)
	f.expectSideEffects()

	result, err := f.service.ProcessRedemption(ctx, 5, 9)
	require.NoError(t, err)
	assert.True(t, result.Processed)
	require.NotNil(t, result.ProcessedBy)
	assert.Equal(t, int32(9), *result.ProcessedBy)
}

func TestCreateAdjustmentRequiresRelatedTransaction(t *testing.T) {
	f := newPointsFixture(t)
	ctx := context.Background()

	f.userRepo.EXPECT().GetByUtorid(gomock.Any(), "clive123").Return(&models.User{ID: 1}, nil)
	f.transactionRepo.EXPECT().GetByID(gomock.Any(), int32(99)).Return(nil, pkgerrors.ErrTransactionNotFound)

	_, err := f.service.CreateAdjustment(ctx, AdjustmentRequest{
		Utorid:      "clive123",
		Amount:      -50,
		RelatedID:   99,
		CreatedByID: 2,
	})
	assert.ErrorIs(t, err, pkgerrors.ErrRelatedNotFound)
}

func TestCreateAdjustmentAppliesNegativeDelta(t *testing.T) {
	f := newPointsFixture(t)
	ctx := context.Background()

	f.userRepo.EXPECT().GetByUtorid(gomock.Any(), "clive123").Return(&models.User{ID: 1}, nil)
	f.transactionRepo.EXPECT().GetByID(gomock.Any(), int32(42)).Return(&models.Transaction{ID: 42, Type: models.TypePurchase}, nil)
	f.userRepo.EXPECT().ConsumedPromotionIDs(gomock.Any(), int32(1)).Return(nil, nil)

	var created *models.Transaction
	f.transactionRepo.EXPECT().
		CreateAdjustment(gomock.Any(), gomock.Any(), gomock.Nil()).
		DoAndReturn(func(_ context.Context, tx *models.Transaction, _ []int32) (int32, error) {
			created = tx
			return 43, nil
		})
	f.expectSideEffects()

	_, err := f.service.CreateAdjustment(ctx, AdjustmentRequest{
		Utorid:      "clive123",
		Amount:      -120,
		RelatedID:   42,
		CreatedByID: 2,
	})
	require.NoError(t, err)
	assert.Equal(t, int32(-120), created.Amount)
	require.NotNil(t, created.RelatedID)
	assert.Equal(t, int32(42), *created.RelatedID)
}

func TestCreateAdjustmentIgnoresRepeatedPromotionIDs(t *testing.T) {
	f := newPointsFixture(t)
	ctx := context.Background()

	now := time.Now()
	promo := &models.Promotion{
		ID:        7,
		Type:      models.PromotionAutomatic,
		StartTime: now.Add(-time.Hour),
		EndTime:   now.Add(time.Hour),
	}

	f.userRepo.EXPECT().GetByUtorid(gomock.Any(), "clive123").Return(&models.User{ID: 1}, nil)
	f.transactionRepo.EXPECT().GetByID(gomock.Any(), int32(42)).Return(&models.Transaction{ID: 42, Type: models.TypePurchase}, nil)
	f.userRepo.EXPECT().ConsumedPromotionIDs(gomock.Any(), int32(1)).Return(nil, nil)
	f.promotionRepo.EXPECT().GetByID(gomock.Any(), int32(7)).Return(promo, nil).Times(1)

	var created *models.Transaction
	f.transactionRepo.EXPECT().
		CreateAdjustment(gomock.Any(), gomock.Any(), gomock.Nil()).
		DoAndReturn(func(_ context.Context, tx *models.Transaction, _ []int32) (int32, error) {
			created = tx
			return 43, nil
		})
	f.expectSideEffects()

	_, err := f.service.CreateAdjustment(ctx, AdjustmentRequest{
		Utorid:       "clive123",
		Amount:       50,
		RelatedID:    42,
		PromotionIDs: []int32{7, 7},
		CreatedByID:  2,
	})
	require.NoError(t, err)
	assert.Equal(t, []int32{7}, created.PromotionIDs)
}

func TestCreateEventAwardToAllGuests(t *testing.T) {
	f := newPointsFixture(t)
	ctx := context.Background()

	event := &models.Event{
		ID:           4,
		Name:         "Hackathon",
		Points:       100,
		PointsRemain: 100,
		Guests: []models.EventMember{
			{UserID: 1, Utorid: "guestone"},
			{UserID: 2, Utorid: "guesttwo"},
			{UserID: 3, Utorid: "guestthr"},
		},
	}
	f.eventRepo.EXPECT().GetByID(gomock.Any(), int32(4)).Return(event, nil)
	f.transactionRepo.EXPECT().CreateEventAward(gomock.Any(), gomock.Any()).Return(int32(1), nil).Times(3)
	f.expectSideEffects()

	transactions, err := f.service.CreateEventAward(ctx, EventAwardRequest{
		EventID:     4,
		Amount:      8,
		CreatedByID: 9,
	})
	require.NoError(t, err)
	require.Len(t, transactions, 3)
	for _, tx := range transactions {
		assert.Equal(t, int32(8), tx.Amount)
		assert.Equal(t, models.TypeEvent, tx.Type)
		assert.Equal(t, "Hackathon", tx.Remark)
	}
}

func TestCreateEventAwardRejectsPoolOverdraw(t *testing.T) {
	f := newPointsFixture(t)
	ctx := context.Background()

	guests := make([]models.EventMember, 10)
	for i := range guests {
		guests[i] = models.EventMember{UserID: int32(i + 1)}
	}
	event := &models.Event{ID: 4, Points: 100, PointsRemain: 20, Guests: guests}
	f.eventRepo.EXPECT().GetByID(gomock.Any(), int32(4)).Return(event, nil)

	// 10 guests at 8 points each exceeds the 20 remaining
	_, err := f.service.CreateEventAward(ctx, EventAwardRequest{EventID: 4, Amount: 8, CreatedByID: 9})
	assert.ErrorIs(t, err, pkgerrors.ErrInsufficientEventPoints)
}

func TestCreateEventAwardSingleGuestMustBeRegistered(t *testing.T) {
	f := newPointsFixture(t)
	ctx := context.Background()

	event := &models.Event{ID: 4, PointsRemain: 50, Guests: []models.EventMember{{UserID: 1, Utorid: "guestone"}}}
	f.eventRepo.EXPECT().GetByID(gomock.Any(), int32(4)).Return(event, nil)

	_, err := f.service.CreateEventAward(ctx, EventAwardRequest{
		EventID:     4,
		Utorid:      "stranger",
		Amount:      5,
		CreatedByID: 9,
	})
	assert.ErrorIs(t, err, pkgerrors.ErrRecipientNotGuest)
}

func TestSetTransactionSuspiciousPublishesFlagEvent(t *testing.T) {
	f := newPointsFixture(t)
	ctx := context.Background()

	f.transactionRepo.EXPECT().
		SetSuspicious(gomock.Any(), int32(5), true).
		Return(&models.Transaction{ID: 5, Type: models.TypePurchase, UserID: 1, Amount: 80, Suspicious: true}, nil)
	f.expectSideEffects()

	result, err := f.service.SetTransactionSuspicious(ctx, 5, true)
	require.NoError(t, err)
	assert.True(t, result.Suspicious)
}
