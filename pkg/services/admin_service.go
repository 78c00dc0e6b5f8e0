package services

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"

	"github.com/terrasurvey-io/terrasurvey-auth/pkg/apperrors"
	"github.com/terrasurvey-io/terrasurvey-auth/pkg/models"
	"github.com/terrasurvey-io/terrasurvey-auth/pkg/repositories"
)

// AdminService maintains administrator accounts: the configured root
// administrator on startup and full visibility for every administrator as
// projects and forms come and go.
type AdminService interface {
	// Bootstrap upserts the configured administrator account and resyncs all
	// administrators. It is a no-op when no administrator email is set.
	Bootstrap(ctx context.Context) error

	// Resync replaces every administrator's role scopes and memberships with
	// the full current set of projects and forms.
	Resync(ctx context.Context) error

	// GrantAdministrator elevates targetEmail to administrator. The actor
	// must already be an administrator.
	GrantAdministrator(ctx context.Context, actorID, targetEmail string) (*models.User, error)
}

type adminService struct {
	users         repositories.UserRepository
	projects      repositories.ProjectRepository
	forms         repositories.FormRepository
	audit         AuditService
	adminEmail    string
	adminPassword string
	logger        *zap.Logger
	now           func() time.Time
}

// NewAdminService creates a new AdminService.
func NewAdminService(users repositories.UserRepository, projects repositories.ProjectRepository, forms repositories.FormRepository, audit AuditService, adminEmail, adminPassword string, logger *zap.Logger) AdminService {
	return &adminService{
		users:         users,
		projects:      projects,
		forms:         forms,
		audit:         audit,
		adminEmail:    adminEmail,
		adminPassword: adminPassword,
		logger:        logger.Named("admin-service"),
		now:           time.Now,
	}
}

var _ AdminService = (*adminService)(nil)

func (s *adminService) Bootstrap(ctx context.Context) error {
	if s.adminEmail == "" {
		s.logger.Info("No administrator configured, skipping bootstrap")
		return nil
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(s.adminPassword), bcryptCost)
	if err != nil {
		return fmt.Errorf("failed to hash administrator password: %w", err)
	}

	projectNames, err := s.projects.Names(ctx)
	if err != nil {
		return err
	}
	formNames, err := s.forms.Names(ctx)
	if err != nil {
		return err
	}

	admin := &models.User{
		ID:       uuid.NewString(),
		Email:    s.adminEmail,
		Password: string(hash),
		Roles: models.RoleSet{
			Basic:          true,
			Researcher:     true,
			Administrator:  true,
			ProjectManager: projectNames,
			DataCollector:  formNames,
			Analyst:        formNames,
		},
		Projects: projectNames,
		Forms:    formNames,
		Log: []models.LogEntry{{
			Action:  "administrator initialised on startup",
			ByEmail: s.adminEmail,
			Date:    s.now(),
		}},
	}

	if err := s.users.UpsertAdministrator(ctx, admin); err != nil {
		return err
	}
	s.logger.Info("Administrator account ensured", zap.String("email", s.adminEmail))

	return s.Resync(ctx)
}

func (s *adminService) Resync(ctx context.Context) error {
	projectNames, err := s.projects.Names(ctx)
	if err != nil {
		return err
	}
	formNames, err := s.forms.Names(ctx)
	if err != nil {
		return err
	}

	entry := models.LogEntry{
		Action:  "administrator resync",
		ByEmail: s.adminEmail,
		Date:    s.now(),
	}
	if err := s.users.SetAdministratorSets(ctx, projectNames, formNames, entry); err != nil {
		return err
	}

	ids, err := s.users.AdministratorIDs(ctx)
	if err != nil {
		return err
	}
	if len(ids) > 0 {
		if err := s.projects.AddMembersAll(ctx, ids); err != nil {
			return err
		}
		if err := s.forms.AddMembersAll(ctx, ids); err != nil {
			return err
		}
	}

	s.logger.Debug("Administrator resync complete",
		zap.Int("administrators", len(ids)),
		zap.Int("projects", len(projectNames)),
		zap.Int("forms", len(formNames)))
	s.audit.Record(ctx, "admin", "administrator resync", map[string]interface{}{
		"administrators": len(ids),
		"projects":       len(projectNames),
		"forms":          len(formNames),
	})
	return nil
}

func (s *adminService) GrantAdministrator(ctx context.Context, actorID, targetEmail string) (*models.User, error) {
	actor, err := s.users.GetByID(ctx, actorID)
	if err != nil {
		return nil, err
	}
	if !actor.Roles.Administrator {
		return nil, fmt.Errorf("only administrators may grant administrator: %w", apperrors.ErrUnauthorized)
	}

	target, err := s.users.GetByEmail(ctx, targetEmail)
	if err != nil {
		return nil, err
	}

	if err := s.users.SetAdministrator(ctx, targetEmail); err != nil {
		return nil, err
	}
	if err := s.users.AppendLog(ctx, target.ID, models.LogEntry{
		Action:  "granted administrator",
		ByEmail: actor.Email,
		Date:    s.now(),
	}); err != nil {
		s.logger.Warn("Failed to append user log entry", zap.Error(err), zap.String("user_id", target.ID))
	}

	if err := s.Resync(ctx); err != nil {
		return nil, err
	}

	s.audit.Record(ctx, "admin", "administrator granted", map[string]interface{}{
		"user_id": target.ID,
		"by":      actor.Email,
	})

	return s.users.GetByID(ctx, target.ID)
}
