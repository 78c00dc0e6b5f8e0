package handlers

import (
	"encoding/json"
	"io"
	"net/http"

	"go.uber.org/zap"

	"github.com/terrasurvey-io/terrasurvey-auth/pkg/auth"
	"github.com/terrasurvey-io/terrasurvey-auth/pkg/services"
)

// OverviewRequest optionally names one project to fetch submission counts
// for.
type OverviewRequest struct {
	ProjectName string `json:"projectName,omitempty"`
}

// MetadataHandler serves per-user project and form overviews.
type MetadataHandler struct {
	metadataService services.MetadataService
	logger          *zap.Logger
}

// NewMetadataHandler creates a new metadata handler.
func NewMetadataHandler(metadataService services.MetadataService, logger *zap.Logger) *MetadataHandler {
	return &MetadataHandler{metadataService: metadataService, logger: logger}
}

// RegisterRoutes registers the metadata handler's routes on the given mux.
func (h *MetadataHandler) RegisterRoutes(mux *http.ServeMux, authMiddleware *auth.Middleware) {
	mux.HandleFunc("POST /api/meta-data/", authMiddleware.RequireAuth(h.Overview))
}

// Overview handles POST /api/meta-data/
// An empty body is accepted; a body naming a project adds submission counts
// for that project's forms.
func (h *MetadataHandler) Overview(w http.ResponseWriter, r *http.Request) {
	claims, ok := auth.GetClaims(r.Context())
	if !ok {
		if err := ErrorResponse(w, http.StatusUnauthorized, "unauthorized", "Missing token claims"); err != nil {
			h.logger.Error("Failed to write error response", zap.Error(err))
		}
		return
	}

	var req OverviewRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil && err != io.EOF {
		if werr := ErrorResponse(w, http.StatusBadRequest, "invalid_body", "Invalid JSON body"); werr != nil {
			h.logger.Error("Failed to write error response", zap.Error(werr))
		}
		return
	}

	overview, err := h.metadataService.Overview(r.Context(), claims.UserID, req.ProjectName)
	if err != nil {
		WriteServiceError(w, h.logger, err)
		return
	}

	if err := WriteJSON(w, http.StatusOK, overview); err != nil {
		h.logger.Error("Failed to write response", zap.Error(err))
	}
}
