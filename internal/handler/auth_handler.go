package handler

import (
	"net/http"
	"time"

	"github.com/campuspoints/loyalty-service/internal/infrastructure/auth"
	service "github.com/campuspoints/loyalty-service/internal/services"
	pkgerrors "github.com/campuspoints/loyalty-service/pkg/errors"
	"github.com/gorilla/mux"
)

type AuthHandler struct {
	authService service.AuthService
}

func NewAuthHandler(authService service.AuthService) *AuthHandler {
	return &AuthHandler{authService: authService}
}

type loginRequest struct {
	Utorid   string `json:"utorid"`
	Password string `json:"password"`
}

type loginResponse struct {
	Token     string    `json:"token"`
	ExpiresAt time.Time `json:"expiresAt"`
}

// Login handles POST /auth/tokens.
func (h *AuthHandler) Login(w http.ResponseWriter, r *http.Request) {
	var req loginRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, err)
		return
	}
	if req.Utorid == "" || req.Password == "" {
		writeError(w, pkgerrors.ErrInvalidInput)
		return
	}

	token, expiresAt, err := h.authService.Login(r.Context(), req.Utorid, req.Password)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, loginResponse{Token: token, ExpiresAt: expiresAt})
}

// Logout handles DELETE /auth/tokens.
func (h *AuthHandler) Logout(w http.ResponseWriter, r *http.Request) {
	userID, ok := auth.UserIDFrom(r.Context())
	if !ok {
		writeError(w, pkgerrors.ErrInvalidCredentials)
		return
	}
	if err := h.authService.Logout(r.Context(), userID); err != nil {
		writeError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

type resetRequest struct {
	Utorid string `json:"utorid"`
}

type resetRequestResponse struct {
	ResetToken string    `json:"resetToken"`
	ExpiresAt  time.Time `json:"expiresAt"`
}

// RequestReset handles POST /auth/resets.
func (h *AuthHandler) RequestReset(w http.ResponseWriter, r *http.Request) {
	var req resetRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, err)
		return
	}
	if req.Utorid == "" {
		writeError(w, pkgerrors.ErrInvalidInput)
		return
	}

	token, err := h.authService.RequestPasswordReset(r.Context(), req.Utorid)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusAccepted, resetRequestResponse{
		ResetToken: token.Token,
		ExpiresAt:  token.ExpiresAt,
	})
}

type resetPasswordRequest struct {
	Utorid   string `json:"utorid"`
	Password string `json:"password"`
}

// ResetPassword handles POST /auth/resets/{resetToken}.
func (h *AuthHandler) ResetPassword(w http.ResponseWriter, r *http.Request) {
	resetToken := mux.Vars(r)["resetToken"]

	var req resetPasswordRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, err)
		return
	}
	if req.Utorid == "" || req.Password == "" {
		writeError(w, pkgerrors.ErrInvalidInput)
		return
	}

	if err := h.authService.ResetPassword(r.Context(), resetToken, req.Utorid, req.Password); err != nil {
		writeError(w, err)
		return
	}
	w.WriteHeader(http.StatusOK)
}
