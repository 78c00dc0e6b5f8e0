package services

import (
	"context"

	"go.uber.org/zap"

	"github.com/terrasurvey-io/terrasurvey-auth/pkg/central"
	"github.com/terrasurvey-io/terrasurvey-auth/pkg/models"
	"github.com/terrasurvey-io/terrasurvey-auth/pkg/repositories"
)

// SubmissionCounts reports how many submissions a form has upstream. A nil
// field means that side of the form does not exist.
type SubmissionCounts struct {
	Live  *int `json:"live,omitempty"`
	Draft *int `json:"draft,omitempty"`
}

// FormOverview is a form with optional upstream submission counts attached.
type FormOverview struct {
	*models.Form
	Submissions *SubmissionCounts `json:"submissions,omitempty"`
}

// Overview is everything a user can see: their own roles plus the projects
// and forms they belong to.
type Overview struct {
	User     *models.User      `json:"user"`
	Projects []*models.Project `json:"projects"`
	Forms    []*FormOverview   `json:"forms"`
}

// MetadataService assembles per-user overviews of projects and forms.
type MetadataService interface {
	// Overview returns the caller's visible projects and forms. When
	// projectName is set, submission counts are fetched upstream for that
	// project's forms.
	Overview(ctx context.Context, userID, projectName string) (*Overview, error)
}

type metadataService struct {
	users    repositories.UserRepository
	projects repositories.ProjectRepository
	forms    repositories.FormRepository
	gateway  central.Gateway
	logger   *zap.Logger
}

// NewMetadataService creates a new MetadataService.
func NewMetadataService(users repositories.UserRepository, projects repositories.ProjectRepository, forms repositories.FormRepository, gateway central.Gateway, logger *zap.Logger) MetadataService {
	return &metadataService{
		users:    users,
		projects: projects,
		forms:    forms,
		gateway:  gateway,
		logger:   logger.Named("metadata-service"),
	}
}

var _ MetadataService = (*metadataService)(nil)

func (s *metadataService) Overview(ctx context.Context, userID, projectName string) (*Overview, error) {
	user, err := s.users.GetByID(ctx, userID)
	if err != nil {
		return nil, err
	}
	user.Password = ""

	projects, err := s.projects.ByMember(ctx, userID)
	if err != nil {
		return nil, err
	}
	forms, err := s.forms.ByMember(ctx, userID)
	if err != nil {
		return nil, err
	}

	centralIDs := make(map[string]string, len(projects))
	for _, p := range projects {
		centralIDs[p.Name] = p.CentralID
	}

	overview := &Overview{
		User:     user,
		Projects: projects,
		Forms:    make([]*FormOverview, 0, len(forms)),
	}
	for _, form := range forms {
		fo := &FormOverview{Form: form}
		if projectName != "" && form.Project == projectName {
			fo.Submissions = s.submissionCounts(ctx, centralIDs[form.Project], form)
		}
		overview.Forms = append(overview.Forms, fo)
	}
	return overview, nil
}

// submissionCounts fetches counts for whichever sides of the form exist.
// Upstream failures degrade to missing counts rather than failing the whole
// overview.
func (s *metadataService) submissionCounts(ctx context.Context, centralProjectID string, form *models.Form) *SubmissionCounts {
	counts := &SubmissionCounts{}
	if form.Live {
		n, err := s.gateway.SubmissionCount(ctx, centralProjectID, form.CentralID, false)
		if err != nil {
			s.logger.Warn("Failed to count live submissions", zap.Error(err), zap.String("form", form.Name))
		} else {
			counts.Live = &n
		}
	}
	if form.Draft {
		n, err := s.gateway.SubmissionCount(ctx, centralProjectID, form.CentralID, true)
		if err != nil {
			s.logger.Warn("Failed to count draft submissions", zap.Error(err), zap.String("form", form.Name))
		} else {
			counts.Draft = &n
		}
	}
	if counts.Live == nil && counts.Draft == nil {
		return nil
	}
	return counts
}
