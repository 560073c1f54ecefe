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

type UserHandler struct {
	userService   service.UserService
	pointsService service.PointsService
}

func NewUserHandler(userService service.UserService, pointsService service.PointsService) *UserHandler {
	return &UserHandler{userService: userService, pointsService: pointsService}
}

type registerUserRequest struct {
	Utorid string `json:"utorid"`
	Name   string `json:"name"`
	Email  string `json:"email"`
}

type registerUserResponse struct {
	ID         int32     `json:"id"`
	Utorid     string    `json:"utorid"`
	Name       string    `json:"name"`
	Email      string    `json:"email"`
	Verified   bool      `json:"verified"`
	ResetToken string    `json:"resetToken"`
	ExpiresAt  time.Time `json:"expiresAt"`
}

// Register handles POST /users.
func (h *UserHandler) Register(w http.ResponseWriter, r *http.Request) {
	var req registerUserRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, err)
		return
	}

	user, token, err := h.userService.Register(r.Context(), service.RegisterRequest{
		Utorid: req.Utorid,
		Name:   req.Name,
		Email:  req.Email,
	})
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, registerUserResponse{
		ID:         user.ID,
		Utorid:     user.Utorid,
		Name:       user.Name,
		Email:      user.Email,
		Verified:   user.Verified,
		ResetToken: token.Token,
		ExpiresAt:  token.ExpiresAt,
	})
}

type listResponse struct {
	Count   int         `json:"count"`
	Results interface{} `json:"results"`
}

// List handles GET /users.
func (h *UserHandler) List(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	verified, err := queryBool(q, "verified")
	if err != nil {
		writeError(w, err)
		return
	}
	activated, err := queryBool(q, "activated")
	if err != nil {
		writeError(w, err)
		return
	}
	page, limit, err := queryPage(q)
	if err != nil {
		writeError(w, err)
		return
	}
	role := models.Role(q.Get("role"))
	if role != "" && !role.Valid() {
		writeError(w, pkgerrors.ErrInvalidInput)
		return
	}

	count, users, err := h.userService.List(r.Context(), repository.UserFilter{
		Name:      q.Get("name"),
		Role:      role,
		Verified:  verified,
		Activated: activated,
		Page:      page,
		Limit:     limit,
	})
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, listResponse{Count: count, Results: users})
}

type cashierUserView struct {
	ID         int32              `json:"id"`
	Utorid     string             `json:"utorid"`
	Name       string             `json:"name"`
	Points     int32              `json:"points"`
	Verified   bool               `json:"verified"`
	Promotions []models.Promotion `json:"promotions"`
}

type fullUserView struct {
	models.User
	Promotions []models.Promotion `json:"promotions"`
}

// Get handles GET /users/{userId}. Cashiers see the slimmed-down view,
// managers the whole account.
func (h *UserHandler) Get(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(mux.Vars(r)["userId"])
	if err != nil {
		writeError(w, err)
		return
	}

	user, err := h.userService.GetByID(r.Context(), id)
	if err != nil {
		writeError(w, err)
		return
	}
	promotions, err := h.userService.AvailablePromotions(r.Context(), user.ID)
	if err != nil {
		writeError(w, err)
		return
	}
	if promotions == nil {
		promotions = []models.Promotion{}
	}

	role, _ := auth.RoleFrom(r.Context())
	if !role.HasClearance(models.RoleManager) {
		writeJSON(w, http.StatusOK, cashierUserView{
			ID:         user.ID,
			Utorid:     user.Utorid,
			Name:       user.Name,
			Points:     user.Points,
			Verified:   user.Verified,
			Promotions: promotions,
		})
		return
	}
	writeJSON(w, http.StatusOK, fullUserView{User: *user, Promotions: promotions})
}

type updateUserRequest struct {
	Email      *string      `json:"email"`
	Verified   *bool        `json:"verified"`
	Suspicious *bool        `json:"suspicious"`
	Role       *models.Role `json:"role"`
}

// Update handles PATCH /users/{userId}.
func (h *UserHandler) Update(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(mux.Vars(r)["userId"])
	if err != nil {
		writeError(w, err)
		return
	}
	var req updateUserRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, err)
		return
	}
	actorRole, _ := auth.RoleFrom(r.Context())

	user, err := h.userService.UpdateUser(r.Context(), id, service.UserUpdate{
		Email:      req.Email,
		Verified:   req.Verified,
		Suspicious: req.Suspicious,
		Role:       req.Role,
	}, actorRole)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, user)
}

// Me handles GET /users/me.
func (h *UserHandler) Me(w http.ResponseWriter, r *http.Request) {
	userID, _ := auth.UserIDFrom(r.Context())
	user, err := h.userService.GetByID(r.Context(), userID)
	if err != nil {
		writeError(w, err)
		return
	}
	if balance, err := h.userService.GetBalance(r.Context(), userID); err == nil {
		user.Points = balance
	}
	promotions, err := h.userService.AvailablePromotions(r.Context(), userID)
	if err != nil {
		writeError(w, err)
		return
	}
	if promotions == nil {
		promotions = []models.Promotion{}
	}
	writeJSON(w, http.StatusOK, fullUserView{User: *user, Promotions: promotions})
}

type updateProfileRequest struct {
	Name  *string `json:"name"`
	Email *string `json:"email"`
}

// UpdateMe handles PATCH /users/me.
func (h *UserHandler) UpdateMe(w http.ResponseWriter, r *http.Request) {
	userID, _ := auth.UserIDFrom(r.Context())
	var req updateProfileRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, err)
		return
	}
	user, err := h.userService.UpdateProfile(r.Context(), userID, req.Name, req.Email)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, user)
}

type changePasswordRequest struct {
	Old string `json:"old"`
	New string `json:"new"`
}

// ChangePassword handles PATCH /users/me/password.
func (h *UserHandler) ChangePassword(w http.ResponseWriter, r *http.Request) {
	userID, _ := auth.UserIDFrom(r.Context())
	var req changePasswordRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, err)
		return
	}
	if req.Old == "" || req.New == "" {
		writeError(w, pkgerrors.ErrInvalidInput)
		return
	}
	if err := h.userService.ChangePassword(r.Context(), userID, req.Old, req.New); err != nil {
		writeError(w, err)
		return
	}
	w.WriteHeader(http.StatusOK)
}

type selfTransactionRequest struct {
	Type   string `json:"type"`
	Amount int32  `json:"amount"`
	Remark string `json:"remark"`
}

// CreateRedemption handles POST /users/me/transactions.
func (h *UserHandler) CreateRedemption(w http.ResponseWriter, r *http.Request) {
	userID, _ := auth.UserIDFrom(r.Context())
	var req selfTransactionRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, err)
		return
	}
	if req.Type != string(models.TypeRedemption) {
		writeError(w, pkgerrors.ErrInvalidInput)
		return
	}

	t, err := h.pointsService.CreateRedemption(r.Context(), userID, req.Amount, req.Remark)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, t)
}

// ListMyTransactions handles GET /users/me/transactions.
func (h *UserHandler) ListMyTransactions(w http.ResponseWriter, r *http.Request) {
	utorid, _ := auth.UtoridFrom(r.Context())
	filter, err := transactionFilterFromQuery(r)
	if err != nil {
		writeError(w, err)
		return
	}
	// name and createdBy only make sense on the manager-wide listing
	filter.Name = ""
	filter.CreatedBy = ""
	filter.Suspicious = nil

	count, transactions, err := h.pointsService.ListUserTransactions(r.Context(), utorid, filter)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, listResponse{Count: count, Results: transactions})
}

type transferRequest struct {
	Type   string `json:"type"`
	Amount int32  `json:"amount"`
	Remark string `json:"remark"`
}

// CreateTransfer handles POST /users/{userId}/transactions, where the path
// id names the recipient.
func (h *UserHandler) CreateTransfer(w http.ResponseWriter, r *http.Request) {
	recipientID, err := pathID(mux.Vars(r)["userId"])
	if err != nil {
		writeError(w, err)
		return
	}
	senderID, _ := auth.UserIDFrom(r.Context())

	var req transferRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, err)
		return
	}
	if req.Type != string(models.TypeTransfer) {
		writeError(w, pkgerrors.ErrInvalidInput)
		return
	}

	t, err := h.pointsService.CreateTransfer(r.Context(), senderID, recipientID, req.Amount, req.Remark)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, t)
}
