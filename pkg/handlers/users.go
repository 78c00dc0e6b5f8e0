package handlers

import (
	"encoding/json"
	"net/http"

	"go.uber.org/zap"

	"github.com/terrasurvey-io/terrasurvey-auth/pkg/auth"
	"github.com/terrasurvey-io/terrasurvey-auth/pkg/services"
)

// LoginRequest carries login credentials.
type LoginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

// UsersHandler handles account registration, login and self-service routes.
type UsersHandler struct {
	authService services.AuthService
	logger      *zap.Logger
}

// NewUsersHandler creates a new users handler.
func NewUsersHandler(authService services.AuthService, logger *zap.Logger) *UsersHandler {
	return &UsersHandler{authService: authService, logger: logger}
}

// RegisterRoutes registers the users handler's routes on the given mux.
func (h *UsersHandler) RegisterRoutes(mux *http.ServeMux, authMiddleware *auth.Middleware) {
	mux.HandleFunc("POST /api/user/register", h.Register)
	mux.HandleFunc("POST /api/user/login", h.Login)
	mux.HandleFunc("GET /api/user/", authMiddleware.RequireAuth(h.Profile))
	mux.HandleFunc("DELETE /api/user/delete", authMiddleware.RequireAuth(h.Delete))
}

// Register handles POST /api/user/register
func (h *UsersHandler) Register(w http.ResponseWriter, r *http.Request) {
	var req services.RegisterRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		if werr := ErrorResponse(w, http.StatusBadRequest, "invalid_body", "Invalid JSON body"); werr != nil {
			h.logger.Error("Failed to write error response", zap.Error(werr))
		}
		return
	}

	id, err := h.authService.Register(r.Context(), req)
	if err != nil {
		WriteServiceError(w, h.logger, err)
		return
	}

	if err := WriteJSON(w, http.StatusCreated, map[string]string{"id": id}); err != nil {
		h.logger.Error("Failed to write response", zap.Error(err))
	}
}

// Login handles POST /api/user/login
func (h *UsersHandler) Login(w http.ResponseWriter, r *http.Request) {
	var req LoginRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		if werr := ErrorResponse(w, http.StatusBadRequest, "invalid_body", "Invalid JSON body"); werr != nil {
			h.logger.Error("Failed to write error response", zap.Error(werr))
		}
		return
	}

	token, err := h.authService.Login(r.Context(), req.Email, req.Password)
	if err != nil {
		WriteServiceError(w, h.logger, err)
		return
	}

	if err := WriteJSON(w, http.StatusOK, map[string]string{"token": token}); err != nil {
		h.logger.Error("Failed to write response", zap.Error(err))
	}
}

// Profile handles GET /api/user/
func (h *UsersHandler) Profile(w http.ResponseWriter, r *http.Request) {
	claims, ok := auth.GetClaims(r.Context())
	if !ok {
		if err := ErrorResponse(w, http.StatusUnauthorized, "unauthorized", "Missing token claims"); err != nil {
			h.logger.Error("Failed to write error response", zap.Error(err))
		}
		return
	}

	user, err := h.authService.Profile(r.Context(), claims.UserID)
	if err != nil {
		WriteServiceError(w, h.logger, err)
		return
	}

	if err := WriteJSON(w, http.StatusOK, user); err != nil {
		h.logger.Error("Failed to write response", zap.Error(err))
	}
}

// Delete handles DELETE /api/user/delete
// A user may only delete their own account.
func (h *UsersHandler) Delete(w http.ResponseWriter, r *http.Request) {
	claims, ok := auth.GetClaims(r.Context())
	if !ok {
		if err := ErrorResponse(w, http.StatusUnauthorized, "unauthorized", "Missing token claims"); err != nil {
			h.logger.Error("Failed to write error response", zap.Error(err))
		}
		return
	}

	deleted, err := h.authService.DeleteAccount(r.Context(), claims.UserID)
	if err != nil {
		WriteServiceError(w, h.logger, err)
		return
	}

	if err := WriteJSON(w, http.StatusOK, deleted); err != nil {
		h.logger.Error("Failed to write response", zap.Error(err))
	}
}
