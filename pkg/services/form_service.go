package services

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"strconv"

	"go.uber.org/zap"

	"github.com/terrasurvey-io/terrasurvey-auth/pkg/apperrors"
	"github.com/terrasurvey-io/terrasurvey-auth/pkg/central"
	"github.com/terrasurvey-io/terrasurvey-auth/pkg/models"
	"github.com/terrasurvey-io/terrasurvey-auth/pkg/repositories"
)

// collectorRoleID is the upstream role granted to the per-form app user so
// collection clients can submit against the form.
const collectorRoleID = "2"

// FormService drives the draft and live lifecycle of survey forms, keeping
// the local records mirrored against the upstream forms server.
type FormService interface {
	// Create uploads a brand new form as a draft upstream and records it
	// locally. version defaults to "1" when empty.
	Create(ctx context.Context, actorID, projectName, formName, version string, definition []byte) (*models.Form, error)

	// UploadDraft replaces the form's draft definition upstream and returns
	// the version that was persisted. An empty version auto-increments the
	// current one.
	UploadDraft(ctx context.Context, actorID, projectName, formName, version string, definition []byte) (string, error)

	// Publish promotes the form's current draft to live.
	Publish(ctx context.Context, actorID, projectName, formName string) error
}

type formService struct {
	projects   repositories.ProjectRepository
	forms      repositories.FormRepository
	users      repositories.UserRepository
	gateway    central.Gateway
	admins     AdminService
	audit      AuditService
	centralURL string
	logger     *zap.Logger
}

// NewFormService creates a new FormService.
func NewFormService(projects repositories.ProjectRepository, forms repositories.FormRepository, users repositories.UserRepository, gateway central.Gateway, admins AdminService, audit AuditService, centralURL string, logger *zap.Logger) FormService {
	return &formService{
		projects:   projects,
		forms:      forms,
		users:      users,
		gateway:    gateway,
		admins:     admins,
		audit:      audit,
		centralURL: centralURL,
		logger:     logger.Named("form-service"),
	}
}

var _ FormService = (*formService)(nil)

func (s *formService) Create(ctx context.Context, actorID, projectName, formName, version string, definition []byte) (*models.Form, error) {
	project, err := s.memberProject(ctx, actorID, projectName)
	if err != nil {
		return nil, err
	}

	// Form names are store-wide unique (role scopes refer to them by bare
	// name), so a name taken in any project is a conflict.
	if _, err := s.forms.GetByName(ctx, formName); err == nil {
		return nil, fmt.Errorf("form %q already exists: %w", formName, apperrors.ErrConflict)
	} else if !errors.Is(err, apperrors.ErrNotFound) {
		return nil, err
	}

	if version == "" {
		version = "1"
	}

	// All upstream calls happen before any local write so a failure leaves
	// no partial record behind.
	info, err := s.gateway.CreateForm(ctx, project.CentralID, formName, definition)
	if err != nil {
		return nil, err
	}
	appUser, err := s.gateway.CreateAppUser(ctx, project.CentralID, "data-collector-"+formName)
	if err != nil {
		return nil, err
	}
	if err := s.gateway.AssignAppUserRole(ctx, project.CentralID, info.XMLFormID, collectorRoleID, appUser.ID); err != nil {
		return nil, err
	}
	draft, err := s.gateway.GetDraftInfo(ctx, project.CentralID, info.XMLFormID)
	if err != nil {
		return nil, err
	}

	form := &models.Form{
		Name:                   formName,
		Project:                projectName,
		CentralID:              info.XMLFormID,
		Users:                  []string{actorID},
		Draft:                  true,
		DraftVersion:           &version,
		CollectionDetails:      s.collectSettings(formName, appUser.Token, project.CentralID, info.XMLFormID, false),
		DraftCollectionDetails: s.collectSettings(formName, draft.DraftToken, project.CentralID, info.XMLFormID, true),
	}
	if err := s.forms.Create(ctx, form); err != nil {
		return nil, err
	}

	if err := s.projects.AddForm(ctx, projectName, formName); err != nil {
		return nil, err
	}
	if err := s.users.AddRoleScopes(ctx, actorID, models.RoleDataCollector, []string{formName}); err != nil {
		return nil, err
	}
	if err := s.users.AddRoleScopes(ctx, actorID, models.RoleAnalyst, []string{formName}); err != nil {
		return nil, err
	}

	if err := s.admins.Resync(ctx); err != nil {
		s.logger.Warn("Administrator resync after form creation failed", zap.Error(err))
	}

	s.audit.Record(ctx, "forms", "form created", map[string]interface{}{
		"project": projectName,
		"form":    formName,
		"version": version,
		"by":      actorID,
	})
	return form, nil
}

func (s *formService) UploadDraft(ctx context.Context, actorID, projectName, formName, version string, definition []byte) (string, error) {
	project, err := s.memberProject(ctx, actorID, projectName)
	if err != nil {
		return "", err
	}
	form, err := s.forms.Get(ctx, projectName, formName)
	if err != nil {
		return "", err
	}

	if version == "" {
		current, err := strconv.Atoi(form.CurrentVersion())
		if err != nil {
			return "", fmt.Errorf("stored version %q is not numeric, pass an explicit version: %w", form.CurrentVersion(), apperrors.ErrInvalidArgument)
		}
		version = strconv.Itoa(current + 1)
	}

	if err := s.gateway.UploadDraft(ctx, project.CentralID, form.CentralID, definition); err != nil {
		return "", err
	}
	draft, err := s.gateway.GetDraftInfo(ctx, project.CentralID, form.CentralID)
	if err != nil {
		return "", err
	}

	details := s.collectSettings(formName, draft.DraftToken, project.CentralID, form.CentralID, true)
	if err := s.forms.SetDraft(ctx, projectName, formName, version, details); err != nil {
		if errors.Is(err, apperrors.ErrNotFound) {
			return "", fmt.Errorf("form vanished while uploading draft: %w", apperrors.ErrInconsistentState)
		}
		return "", err
	}

	s.audit.Record(ctx, "forms", "draft uploaded", map[string]interface{}{
		"project": projectName,
		"form":    formName,
		"version": version,
		"by":      actorID,
	})
	return version, nil
}

func (s *formService) Publish(ctx context.Context, actorID, projectName, formName string) error {
	project, err := s.projects.GetByName(ctx, projectName)
	if err != nil {
		return err
	}
	form, err := s.forms.Get(ctx, projectName, formName)
	if err != nil {
		return err
	}
	if !form.Draft || form.DraftVersion == nil {
		return fmt.Errorf("form %q has no draft to publish: %w", formName, apperrors.ErrInvalidState)
	}
	version := *form.DraftVersion

	if err := s.gateway.Publish(ctx, project.CentralID, form.CentralID, version); err != nil {
		return err
	}

	if err := s.forms.SetLive(ctx, projectName, formName, version); err != nil {
		if errors.Is(err, apperrors.ErrNotFound) {
			return fmt.Errorf("form vanished while publishing: %w", apperrors.ErrInconsistentState)
		}
		return err
	}

	s.audit.Record(ctx, "forms", "form published", map[string]interface{}{
		"project": projectName,
		"form":    formName,
		"version": version,
		"by":      actorID,
	})
	return nil
}

// memberProject loads the project and checks the actor belongs to it.
func (s *formService) memberProject(ctx context.Context, actorID, projectName string) (*models.Project, error) {
	project, err := s.projects.GetByName(ctx, projectName)
	if err != nil {
		return nil, err
	}
	if !slices.Contains(project.Users, actorID) {
		return nil, fmt.Errorf("not a member of project %q: %w", projectName, apperrors.ErrUnauthorized)
	}
	return project, nil
}

// collectSettings builds the QR-encodable settings a collection client needs
// to submit against either the live form or its draft.
func (s *formService) collectSettings(formName, token, centralProjectID, xmlFormID string, draft bool) *models.CollectSettings {
	name := formName
	url := fmt.Sprintf("%s/v1/key/%s/projects/%s", s.centralURL, token, centralProjectID)
	if draft {
		name = "[Draft] " + formName
		url = fmt.Sprintf("%s/v1/test/%s/projects/%s/forms/%s/draft", s.centralURL, token, centralProjectID, xmlFormID)
	}
	return &models.CollectSettings{
		General: models.CollectGeneral{
			ServerURL:      url,
			FormUpdateMode: "match_exactly",
			Autosend:       "wifi_and_cellular",
		},
		Project: models.CollectProject{Name: name},
	}
}
