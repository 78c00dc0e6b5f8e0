package services

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/terrasurvey-io/terrasurvey-auth/pkg/apperrors"
	"github.com/terrasurvey-io/terrasurvey-auth/pkg/models"
	"github.com/terrasurvey-io/terrasurvey-auth/pkg/repositories"
)

// RoleService grants scoped roles and fans their visibility out across
// projects and forms.
type RoleService interface {
	// Grant gives targetEmail the role kind over scope (a project name for
	// projectManager, a form name otherwise) and returns the updated user.
	Grant(ctx context.Context, actorID, targetEmail string, kind models.RoleKind, scope string) (*models.User, error)
}

type roleService struct {
	users    repositories.UserRepository
	projects repositories.ProjectRepository
	forms    repositories.FormRepository
	audit    AuditService
	logger   *zap.Logger
	now      func() time.Time
}

// NewRoleService creates a new RoleService.
func NewRoleService(users repositories.UserRepository, projects repositories.ProjectRepository, forms repositories.FormRepository, audit AuditService, logger *zap.Logger) RoleService {
	return &roleService{
		users:    users,
		projects: projects,
		forms:    forms,
		audit:    audit,
		logger:   logger.Named("role-service"),
		now:      time.Now,
	}
}

var _ RoleService = (*roleService)(nil)

func (s *roleService) Grant(ctx context.Context, actorID, targetEmail string, kind models.RoleKind, scope string) (*models.User, error) {
	if !models.IsScopedRoleKind(kind) {
		return nil, fmt.Errorf("unknown role %q: %w", kind, apperrors.ErrInvalidArgument)
	}
	if scope == "" {
		return nil, fmt.Errorf("a role scope is required: %w", apperrors.ErrInvalidArgument)
	}

	target, err := s.users.GetByEmail(ctx, targetEmail)
	if err != nil {
		return nil, err
	}
	if target.HoldsRole(kind, scope) {
		return nil, fmt.Errorf("user already holds %s for %q: %w", kind, scope, apperrors.ErrConflict)
	}
	if target.ID == actorID {
		return nil, fmt.Errorf("cannot grant a role to yourself: %w", apperrors.ErrInvalidArgument)
	}

	actor, err := s.users.GetByID(ctx, actorID)
	if err != nil {
		return nil, err
	}

	switch kind {
	case models.RoleProjectManager:
		if err := s.grantProjectManager(ctx, target, scope); err != nil {
			return nil, err
		}
	default:
		if err := s.grantFormRole(ctx, target, kind, scope); err != nil {
			return nil, err
		}
	}

	entry := models.LogEntry{
		Action:  fmt.Sprintf("granted %s for %s", kind, scope),
		ByEmail: actor.Email,
		Date:    s.now(),
	}
	if err := s.users.AppendLog(ctx, target.ID, entry); err != nil {
		s.logger.Warn("Failed to append user log entry", zap.Error(err), zap.String("user_id", target.ID))
	}

	s.audit.Record(ctx, "roles", "role granted", map[string]interface{}{
		"user_id": target.ID,
		"role":    string(kind),
		"scope":   scope,
		"by":      actor.Email,
	})

	return s.users.GetByID(ctx, target.ID)
}

// grantProjectManager adds the user to the project and every form under it,
// then records the manager role plus collector and analyst roles over the
// project's forms.
func (s *roleService) grantProjectManager(ctx context.Context, target *models.User, projectName string) error {
	if _, err := s.projects.GetByName(ctx, projectName); err != nil {
		return err
	}

	if err := s.projects.AddMember(ctx, projectName, target.ID); err != nil {
		return err
	}
	if err := s.forms.AddMembersByProject(ctx, projectName, target.ID); err != nil {
		return err
	}

	formNames, err := s.forms.NamesByProject(ctx, projectName)
	if err != nil {
		return err
	}

	if err := s.users.AddRoleScopes(ctx, target.ID, models.RoleProjectManager, []string{projectName}); err != nil {
		return err
	}
	if len(formNames) > 0 {
		if err := s.users.AddRoleScopes(ctx, target.ID, models.RoleDataCollector, formNames); err != nil {
			return err
		}
		if err := s.users.AddRoleScopes(ctx, target.ID, models.RoleAnalyst, formNames); err != nil {
			return err
		}
	}
	return nil
}

func (s *roleService) grantFormRole(ctx context.Context, target *models.User, kind models.RoleKind, formName string) error {
	form, err := s.forms.GetByName(ctx, formName)
	if err != nil {
		return err
	}

	if err := s.projects.AddMember(ctx, form.Project, target.ID); err != nil {
		return err
	}
	if err := s.forms.AddMember(ctx, formName, target.ID); err != nil {
		return err
	}
	return s.users.AddRoleScopes(ctx, target.ID, kind, []string{formName})
}
