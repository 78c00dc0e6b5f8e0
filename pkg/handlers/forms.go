package handlers

import (
	"errors"
	"io"
	"net/http"

	"go.uber.org/zap"

	"github.com/terrasurvey-io/terrasurvey-auth/pkg/auth"
	"github.com/terrasurvey-io/terrasurvey-auth/pkg/services"
)

// FormsHandler handles the form lifecycle routes. Form definitions arrive as
// binary spreadsheet bodies with the identifying names in query parameters.
type FormsHandler struct {
	formService services.FormService
	logger      *zap.Logger
}

// NewFormsHandler creates a new forms handler.
func NewFormsHandler(formService services.FormService, logger *zap.Logger) *FormsHandler {
	return &FormsHandler{formService: formService, logger: logger}
}

// RegisterRoutes registers the forms handler's routes on the given mux.
func (h *FormsHandler) RegisterRoutes(mux *http.ServeMux, authMiddleware *auth.Middleware) {
	mux.HandleFunc("POST /api/forms/new", authMiddleware.RequireAuth(h.New))
	mux.HandleFunc("POST /api/forms/new-draft", authMiddleware.RequireAuth(h.NewDraft))
	mux.HandleFunc("POST /api/forms/publish", authMiddleware.RequireAuth(h.Publish))
}

// formParams pulls the identifying query parameters off a form request.
func formParams(r *http.Request) (projectName, formName, version string) {
	q := r.URL.Query()
	return q.Get("project_name"), q.Get("form_name"), q.Get("form_version")
}

// readDefinition reads the binary form definition body. A body over the
// configured limit surfaces as a 413 via http.MaxBytesReader.
func (h *FormsHandler) readDefinition(w http.ResponseWriter, r *http.Request) ([]byte, bool) {
	definition, err := io.ReadAll(r.Body)
	if err != nil {
		var maxErr *http.MaxBytesError
		if errors.As(err, &maxErr) {
			if werr := ErrorResponse(w, http.StatusRequestEntityTooLarge, "body_too_large", "Form definition exceeds the size limit"); werr != nil {
				h.logger.Error("Failed to write error response", zap.Error(werr))
			}
			return nil, false
		}
		if werr := ErrorResponse(w, http.StatusBadRequest, "invalid_body", "Failed to read form definition"); werr != nil {
			h.logger.Error("Failed to write error response", zap.Error(werr))
		}
		return nil, false
	}
	if len(definition) == 0 {
		if werr := ErrorResponse(w, http.StatusBadRequest, "invalid_body", "A form definition body is required"); werr != nil {
			h.logger.Error("Failed to write error response", zap.Error(werr))
		}
		return nil, false
	}
	return definition, true
}

func (h *FormsHandler) requireNames(w http.ResponseWriter, projectName, formName string) bool {
	if projectName == "" || formName == "" {
		if err := ErrorResponse(w, http.StatusBadRequest, "invalid_argument", "project_name and form_name are required"); err != nil {
			h.logger.Error("Failed to write error response", zap.Error(err))
		}
		return false
	}
	return true
}

// New handles POST /api/forms/new
func (h *FormsHandler) New(w http.ResponseWriter, r *http.Request) {
	claims, _ := auth.GetClaims(r.Context())
	projectName, formName, version := formParams(r)
	if !h.requireNames(w, projectName, formName) {
		return
	}
	definition, ok := h.readDefinition(w, r)
	if !ok {
		return
	}

	if _, err := h.formService.Create(r.Context(), claims.UserID, projectName, formName, version, definition); err != nil {
		WriteServiceError(w, h.logger, err)
		return
	}

	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("created"))
}

// NewDraft handles POST /api/forms/new-draft
func (h *FormsHandler) NewDraft(w http.ResponseWriter, r *http.Request) {
	claims, _ := auth.GetClaims(r.Context())
	projectName, formName, version := formParams(r)
	if !h.requireNames(w, projectName, formName) {
		return
	}
	definition, ok := h.readDefinition(w, r)
	if !ok {
		return
	}

	persisted, err := h.formService.UploadDraft(r.Context(), claims.UserID, projectName, formName, version, definition)
	if err != nil {
		WriteServiceError(w, h.logger, err)
		return
	}

	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte(persisted))
}

// Publish handles POST /api/forms/publish
func (h *FormsHandler) Publish(w http.ResponseWriter, r *http.Request) {
	claims, _ := auth.GetClaims(r.Context())
	projectName, formName, _ := formParams(r)
	if !h.requireNames(w, projectName, formName) {
		return
	}

	if err := h.formService.Publish(r.Context(), claims.UserID, projectName, formName); err != nil {
		WriteServiceError(w, h.logger, err)
		return
	}

	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("published"))
}
