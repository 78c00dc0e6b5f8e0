package handlers

import (
	"net/http"
	"strconv"

	"go.uber.org/zap"

	"github.com/terrasurvey-io/terrasurvey-auth/pkg/auth"
	"github.com/terrasurvey-io/terrasurvey-auth/pkg/services"
)

const defaultAuditLimit = 50

// AuditHandler exposes recent operational events.
type AuditHandler struct {
	auditService services.AuditService
	logger       *zap.Logger
}

// NewAuditHandler creates a new audit handler.
func NewAuditHandler(auditService services.AuditService, logger *zap.Logger) *AuditHandler {
	return &AuditHandler{auditService: auditService, logger: logger}
}

// RegisterRoutes registers the audit handler's routes on the given mux.
func (h *AuditHandler) RegisterRoutes(mux *http.ServeMux, authMiddleware *auth.Middleware) {
	mux.HandleFunc("GET /api/audit/", authMiddleware.RequireAuth(h.Recent))
}

// Recent handles GET /api/audit/?limit=N
func (h *AuditHandler) Recent(w http.ResponseWriter, r *http.Request) {
	limit := int64(defaultAuditLimit)
	if raw := r.URL.Query().Get("limit"); raw != "" {
		parsed, err := strconv.ParseInt(raw, 10, 64)
		if err != nil || parsed <= 0 {
			if werr := ErrorResponse(w, http.StatusBadRequest, "invalid_argument", "limit must be a positive integer"); werr != nil {
				h.logger.Error("Failed to write error response", zap.Error(werr))
			}
			return
		}
		limit = parsed
	}

	events, err := h.auditService.Recent(r.Context(), limit)
	if err != nil {
		WriteServiceError(w, h.logger, err)
		return
	}

	if err := WriteJSON(w, http.StatusOK, events); err != nil {
		h.logger.Error("Failed to write response", zap.Error(err))
	}
}
