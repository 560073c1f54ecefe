package handler

import (
	"net/http"

	"github.com/campuspoints/loyalty-service/internal/infrastructure/auth"
	"github.com/campuspoints/loyalty-service/internal/models"
	service "github.com/campuspoints/loyalty-service/internal/services"
	pkgerrors "github.com/campuspoints/loyalty-service/pkg/errors"
	"github.com/gorilla/mux"
)

type TransactionHandler struct {
	pointsService service.PointsService
}

func NewTransactionHandler(pointsService service.PointsService) *TransactionHandler {
	return &TransactionHandler{pointsService: pointsService}
}

type createTransactionRequest struct {
	Utorid       string   `json:"utorid"`
	Type         string   `json:"type"`
	Spent        *float64 `json:"spent"`
	Amount       *int32   `json:"amount"`
	RelatedID    *int32   `json:"relatedId"`
	PromotionIDs []int32  `json:"promotionIds"`
	Remark       string   `json:"remark"`
}

// Create handles POST /transactions. Cashiers record purchases; adjustments
// need manager clearance.
func (h *TransactionHandler) Create(w http.ResponseWriter, r *http.Request) {
	var req createTransactionRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, err)
		return
	}
	callerID, _ := auth.UserIDFrom(r.Context())

	switch req.Type {
	case string(models.TypePurchase):
		if req.Spent == nil {
			writeError(w, pkgerrors.ErrInvalidInput)
			return
		}
		t, err := h.pointsService.CreatePurchase(r.Context(), service.PurchaseRequest{
			Utorid:       req.Utorid,
			Spent:        *req.Spent,
			PromotionIDs: req.PromotionIDs,
			Remark:       req.Remark,
			CashierID:    callerID,
		})
		if err != nil {
			writeError(w, err)
			return
		}
		writeJSON(w, http.StatusCreated, t)

	case string(models.TypeAdjustment):
		role, _ := auth.RoleFrom(r.Context())
		if !role.HasClearance(models.RoleManager) {
			writeError(w, pkgerrors.ErrForbidden)
			return
		}
		if req.Amount == nil || req.RelatedID == nil {
			writeError(w, pkgerrors.ErrInvalidInput)
			return
		}
		t, err := h.pointsService.CreateAdjustment(r.Context(), service.AdjustmentRequest{
			Utorid:       req.Utorid,
			Amount:       *req.Amount,
			RelatedID:    *req.RelatedID,
			PromotionIDs: req.PromotionIDs,
			Remark:       req.Remark,
			CreatedByID:  callerID,
		})
		if err != nil {
			writeError(w, err)
			return
		}
		writeJSON(w, http.StatusCreated, t)

	default:
		writeError(w, pkgerrors.ErrInvalidInput)
	}
}

func transactionFilterFromQuery(r *http.Request) (models.TransactionFilter, error) {
	q := r.URL.Query()
	var filter models.TransactionFilter

	filter.Name = q.Get("name")
	filter.CreatedBy = q.Get("createdBy")

	suspicious, err := queryBool(q, "suspicious")
	if err != nil {
		return filter, err
	}
	filter.Suspicious = suspicious

	promotionID, err := queryInt32(q, "promotionId")
	if err != nil {
		return filter, err
	}
	filter.PromotionID = promotionID

	if raw := q.Get("type"); raw != "" {
		t := models.TransactionType(raw)
		if !t.Valid() {
			return filter, pkgerrors.ErrInvalidInput
		}
		filter.Type = t
	}

	relatedID, err := queryInt32(q, "relatedId")
	if err != nil {
		return filter, err
	}
	if relatedID != nil && filter.Type == "" {
		// relatedId means nothing without a type to interpret it against
		return filter, pkgerrors.ErrInvalidInput
	}
	filter.RelatedID = relatedID

	amount, err := queryInt32(q, "amount")
	if err != nil {
		return filter, err
	}
	filter.Amount = amount
	filter.Operator = q.Get("operator")
	if amount != nil && filter.Operator != "gte" && filter.Operator != "lte" {
		return filter, pkgerrors.ErrInvalidInput
	}

	filter.Page, filter.Limit, err = queryPage(q)
	return filter, err
}

// List handles GET /transactions.
func (h *TransactionHandler) List(w http.ResponseWriter, r *http.Request) {
	filter, err := transactionFilterFromQuery(r)
	if err != nil {
		writeError(w, err)
		return
	}
	count, transactions, err := h.pointsService.ListTransactions(r.Context(), filter)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, listResponse{Count: count, Results: transactions})
}

// Get handles GET /transactions/{transactionId}.
func (h *TransactionHandler) Get(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(mux.Vars(r)["transactionId"])
	if err != nil {
		writeError(w, err)
		return
	}
	t, err := h.pointsService.GetTransaction(r.Context(), id)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, t)
}

type suspiciousRequest struct {
	Suspicious *bool `json:"suspicious"`
}

// SetSuspicious handles PATCH /transactions/{transactionId}/suspicious.
func (h *TransactionHandler) SetSuspicious(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(mux.Vars(r)["transactionId"])
	if err != nil {
		writeError(w, err)
		return
	}
	var req suspiciousRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, err)
		return
	}
	if req.Suspicious == nil {
		writeError(w, pkgerrors.ErrInvalidInput)
		return
	}
	t, err := h.pointsService.SetTransactionSuspicious(r.Context(), id, *req.Suspicious)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, t)
}

type processedRequest struct {
	Processed *bool `json:"processed"`
}

// Process handles PATCH /transactions/{transactionId}/processed.
func (h *TransactionHandler) Process(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(mux.Vars(r)["transactionId"])
	if err != nil {
		writeError(w, err)
		return
	}
	var req processedRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, err)
		return
	}
	// processing cannot be undone, so false is never a valid payload
	if req.Processed == nil || !*req.Processed {
		writeError(w, pkgerrors.ErrInvalidInput)
		return
	}
	callerID, _ := auth.UserIDFrom(r.Context())

	t, err := h.pointsService.ProcessRedemption(r.Context(), id, callerID)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, t)
}
