package services

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/terrasurvey-io/terrasurvey-auth/pkg/models"
	"github.com/terrasurvey-io/terrasurvey-auth/pkg/repositories"
)

// AuditService records operational events to the audit collection.
// Recording never fails the operation being audited.
type AuditService interface {
	Record(ctx context.Context, component, message string, fields map[string]interface{})
	Recent(ctx context.Context, limit int64) ([]*models.AuditEvent, error)
}

type auditService struct {
	repo   repositories.AuditRepository
	logger *zap.Logger
	now    func() time.Time
}

// NewAuditService creates a new AuditService.
func NewAuditService(repo repositories.AuditRepository, logger *zap.Logger) AuditService {
	return &auditService{
		repo:   repo,
		logger: logger.Named("audit"),
		now:    time.Now,
	}
}

var _ AuditService = (*auditService)(nil)

func (s *auditService) Record(ctx context.Context, component, message string, fields map[string]interface{}) {
	event := &models.AuditEvent{
		Time:      s.now(),
		Component: component,
		Message:   message,
		Fields:    fields,
	}
	if err := s.repo.Insert(ctx, event); err != nil {
		s.logger.Warn("Failed to record audit event",
			zap.String("component", component),
			zap.String("message", message),
			zap.Error(err))
	}
}

func (s *auditService) Recent(ctx context.Context, limit int64) ([]*models.AuditEvent, error) {
	return s.repo.Recent(ctx, limit)
}
