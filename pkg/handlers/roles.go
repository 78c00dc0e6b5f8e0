package handlers

import (
	"encoding/json"
	"net/http"

	"go.uber.org/zap"

	"github.com/terrasurvey-io/terrasurvey-auth/pkg/auth"
	"github.com/terrasurvey-io/terrasurvey-auth/pkg/models"
	"github.com/terrasurvey-io/terrasurvey-auth/pkg/services"
)

// GrantRequest names the account and scope for a role grant. ProjectName is
// used for manager grants, FormName for collector and analyst grants.
type GrantRequest struct {
	Email       string `json:"email"`
	ProjectName string `json:"projectName,omitempty"`
	FormName    string `json:"formName,omitempty"`
}

// RolesHandler handles role grant routes.
type RolesHandler struct {
	roleService  services.RoleService
	adminService services.AdminService
	logger       *zap.Logger
}

// NewRolesHandler creates a new roles handler.
func NewRolesHandler(roleService services.RoleService, adminService services.AdminService, logger *zap.Logger) *RolesHandler {
	return &RolesHandler{roleService: roleService, adminService: adminService, logger: logger}
}

// RegisterRoutes registers the roles handler's routes on the given mux.
func (h *RolesHandler) RegisterRoutes(mux *http.ServeMux, authMiddleware *auth.Middleware) {
	mux.HandleFunc("POST /api/user/project-manager", authMiddleware.RequireAuth(h.grant(models.RoleProjectManager)))
	mux.HandleFunc("POST /api/user/data-collector", authMiddleware.RequireAuth(h.grant(models.RoleDataCollector)))
	mux.HandleFunc("POST /api/user/analyst", authMiddleware.RequireAuth(h.grant(models.RoleAnalyst)))
	mux.HandleFunc("POST /api/admin/", authMiddleware.RequireAuth(h.GrantAdministrator))
}

func (h *RolesHandler) grant(kind models.RoleKind) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		claims, ok := auth.GetClaims(r.Context())
		if !ok {
			if err := ErrorResponse(w, http.StatusUnauthorized, "unauthorized", "Missing token claims"); err != nil {
				h.logger.Error("Failed to write error response", zap.Error(err))
			}
			return
		}

		var req GrantRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			if werr := ErrorResponse(w, http.StatusBadRequest, "invalid_body", "Invalid JSON body"); werr != nil {
				h.logger.Error("Failed to write error response", zap.Error(werr))
			}
			return
		}

		scope := req.FormName
		if kind == models.RoleProjectManager {
			scope = req.ProjectName
		}

		user, err := h.roleService.Grant(r.Context(), claims.UserID, req.Email, kind, scope)
		if err != nil {
			WriteServiceError(w, h.logger, err)
			return
		}

		if err := WriteJSON(w, http.StatusOK, user); err != nil {
			h.logger.Error("Failed to write response", zap.Error(err))
		}
	}
}

// GrantAdministrator handles POST /api/admin/
func (h *RolesHandler) GrantAdministrator(w http.ResponseWriter, r *http.Request) {
	claims, ok := auth.GetClaims(r.Context())
	if !ok {
		if err := ErrorResponse(w, http.StatusUnauthorized, "unauthorized", "Missing token claims"); err != nil {
			h.logger.Error("Failed to write error response", zap.Error(err))
		}
		return
	}

	var req GrantRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		if werr := ErrorResponse(w, http.StatusBadRequest, "invalid_body", "Invalid JSON body"); werr != nil {
			h.logger.Error("Failed to write error response", zap.Error(werr))
		}
		return
	}

	user, err := h.adminService.GrantAdministrator(r.Context(), claims.UserID, req.Email)
	if err != nil {
		WriteServiceError(w, h.logger, err)
		return
	}

	if err := WriteJSON(w, http.StatusOK, user); err != nil {
		h.logger.Error("Failed to write response", zap.Error(err))
	}
}
