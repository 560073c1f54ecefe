package handler

import (
	"net/http"
	"time"

	"github.com/campuspoints/loyalty-service/internal/infrastructure/auth"
	"github.com/campuspoints/loyalty-service/internal/models"
	"github.com/campuspoints/loyalty-service/internal/repository"
	service "github.com/campuspoints/loyalty-service/internal/services"
	pkgerrors "github.com/campuspoints/loyalty-service/pkg/errors"
	"github.com/gorilla/mux"
)

type PromotionHandler struct {
	promotionService service.PromotionService
}

func NewPromotionHandler(promotionService service.PromotionService) *PromotionHandler {
	return &PromotionHandler{promotionService: promotionService}
}

type promotionRequest struct {
	Name        string     `json:"name"`
	Description string     `json:"description"`
	Type        string     `json:"type"`
	StartTime   *time.Time `json:"startTime"`
	EndTime     *time.Time `json:"endTime"`
	MinSpending *float64   `json:"minSpending"`
	Rate        *float64   `json:"rate"`
	Points      *int32     `json:"points"`
}

// Create handles POST /promotions.
func (h *PromotionHandler) Create(w http.ResponseWriter, r *http.Request) {
	var req promotionRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, err)
		return
	}
	if req.StartTime == nil || req.EndTime == nil {
		writeError(w, pkgerrors.ErrInvalidInput)
		return
	}
	promotion, err := h.promotionService.Create(r.Context(), service.PromotionInput{
		Name:        req.Name,
		Description: req.Description,
		Type:        models.PromotionType(req.Type),
		StartTime:   *req.StartTime,
		EndTime:     *req.EndTime,
		MinSpending: req.MinSpending,
		Rate:        req.Rate,
		Points:      req.Points,
	})
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, promotion)
}

// List handles GET /promotions. Below manager clearance the listing is the
// user's own view: currently active promotions they have not yet consumed.
func (h *PromotionHandler) List(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	page, limit, err := queryPage(q)
	if err != nil {
		writeError(w, err)
		return
	}

	filter := repository.PromotionFilter{
		Name:  q.Get("name"),
		Type:  models.PromotionType(q.Get("type")),
		Page:  page,
		Limit: limit,
	}
	if filter.Type != "" && filter.Type != models.PromotionOneTime && filter.Type != models.PromotionAutomatic {
		writeError(w, pkgerrors.ErrInvalidInput)
		return
	}

	role, _ := auth.RoleFrom(r.Context())
	if role.HasClearance(models.RoleManager) {
		started, err := queryBool(q, "started")
		if err != nil {
			writeError(w, err)
			return
		}
		ended, err := queryBool(q, "ended")
		if err != nil {
			writeError(w, err)
			return
		}
		filter.Started = started
		filter.Ended = ended
	} else {
		userID, _ := auth.UserIDFrom(r.Context())
		filter.ForUserID = &userID
	}

	count, promotions, err := h.promotionService.List(r.Context(), filter)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, listResponse{Count: count, Results: promotions})
}

// Get handles GET /promotions/{promotionId}.
func (h *PromotionHandler) Get(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(mux.Vars(r)["promotionId"])
	if err != nil {
		writeError(w, err)
		return
	}

	role, _ := auth.RoleFrom(r.Context())
	var promotion *models.Promotion
	if role.HasClearance(models.RoleManager) {
		promotion, err = h.promotionService.GetByID(r.Context(), id)
	} else {
		promotion, err = h.promotionService.GetForUser(r.Context(), id)
	}
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, promotion)
}

// Update handles PATCH /promotions/{promotionId}.
func (h *PromotionHandler) Update(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(mux.Vars(r)["promotionId"])
	if err != nil {
		writeError(w, err)
		return
	}
	var req struct {
		Name        *string    `json:"name"`
		Description *string    `json:"description"`
		Type        *string    `json:"type"`
		StartTime   *time.Time `json:"startTime"`
		EndTime     *time.Time `json:"endTime"`
		MinSpending *float64   `json:"minSpending"`
		Rate        *float64   `json:"rate"`
		Points      *int32     `json:"points"`
	}
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, err)
		return
	}

	update := service.PromotionUpdate{
		Name:        req.Name,
		Description: req.Description,
		StartTime:   req.StartTime,
		EndTime:     req.EndTime,
		MinSpending: req.MinSpending,
		Rate:        req.Rate,
		Points:      req.Points,
	}
	if req.Type != nil {
		t := models.PromotionType(*req.Type)
		update.Type = &t
	}

	promotion, err := h.promotionService.Update(r.Context(), id, update)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, promotion)
}

// Delete handles DELETE /promotions/{promotionId}.
func (h *PromotionHandler) Delete(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(mux.Vars(r)["promotionId"])
	if err != nil {
		writeError(w, err)
		return
	}
	if err := h.promotionService.Delete(r.Context(), id); err != nil {
		writeError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
