package services

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"

	"github.com/terrasurvey-io/terrasurvey-auth/pkg/apperrors"
	"github.com/terrasurvey-io/terrasurvey-auth/pkg/models"
	"github.com/terrasurvey-io/terrasurvey-auth/pkg/repositories"
)

// bcryptCost matches the salt rounds used for every stored password.
const bcryptCost = 10

// TokenIssuer signs session tokens for authenticated accounts.
type TokenIssuer interface {
	Sign(userID, email string) (string, error)
}

// RegisterRequest carries the fields accepted at registration.
type RegisterRequest struct {
	Title     string `json:"title"`
	FirstName string `json:"firstName"`
	Surname   string `json:"surname"`
	Email     string `json:"email"`
	Password  string `json:"password"`
}

// AuthService provides account registration, login, and self-deletion.
type AuthService interface {
	// Register creates a new basic account and returns its id.
	Register(ctx context.Context, req RegisterRequest) (string, error)

	// Login verifies credentials and returns a signed session token.
	Login(ctx context.Context, email, password string) (string, error)

	// Profile returns the caller's own account record.
	Profile(ctx context.Context, userID string) (*models.User, error)

	// DeleteAccount removes the caller's own account and returns the deleted
	// record.
	DeleteAccount(ctx context.Context, userID string) (*models.User, error)
}

type authService struct {
	users  repositories.UserRepository
	issuer TokenIssuer
	audit  AuditService
	logger *zap.Logger
	now    func() time.Time
}

// NewAuthService creates a new AuthService.
func NewAuthService(users repositories.UserRepository, issuer TokenIssuer, audit AuditService, logger *zap.Logger) AuthService {
	return &authService{
		users:  users,
		issuer: issuer,
		audit:  audit,
		logger: logger.Named("auth-service"),
		now:    time.Now,
	}
}

var _ AuthService = (*authService)(nil)

func (s *authService) Register(ctx context.Context, req RegisterRequest) (string, error) {
	email := strings.TrimSpace(strings.ToLower(req.Email))
	if email == "" || !strings.Contains(email, "@") {
		return "", fmt.Errorf("a valid email is required: %w", apperrors.ErrInvalidArgument)
	}
	if len(req.Password) < 6 {
		return "", fmt.Errorf("password must be at least 6 characters: %w", apperrors.ErrInvalidArgument)
	}

	if _, err := s.users.GetByEmail(ctx, email); err == nil {
		return "", fmt.Errorf("email already exists: %w", apperrors.ErrConflict)
	} else if !errors.Is(err, apperrors.ErrNotFound) {
		return "", err
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(req.Password), bcryptCost)
	if err != nil {
		return "", fmt.Errorf("failed to hash password: %w", err)
	}

	user := &models.User{
		ID:        uuid.NewString(),
		Title:     req.Title,
		FirstName: req.FirstName,
		Surname:   req.Surname,
		Email:     email,
		Password:  string(hash),
		Roles: models.RoleSet{
			Basic:          true,
			ProjectManager: []string{},
			DataCollector:  []string{},
			Analyst:        []string{},
		},
		Projects: []string{},
		Forms:    []string{},
		Log: []models.LogEntry{{
			Action:  "user created",
			ByEmail: email,
			Date:    s.now(),
		}},
	}

	if err := s.users.Create(ctx, user); err != nil {
		return "", err
	}

	s.logger.Info("Registered new user", zap.String("user_id", user.ID))
	s.audit.Record(ctx, "auth", "user registered", map[string]interface{}{"user_id": user.ID})

	return user.ID, nil
}

func (s *authService) Login(ctx context.Context, email, password string) (string, error) {
	email = strings.TrimSpace(strings.ToLower(email))
	if email == "" || password == "" {
		return "", fmt.Errorf("email and password are required: %w", apperrors.ErrInvalidArgument)
	}

	user, err := s.users.GetByEmail(ctx, email)
	if err != nil {
		return "", err
	}

	if err := bcrypt.CompareHashAndPassword([]byte(user.Password), []byte(password)); err != nil {
		s.logger.Debug("Password mismatch", zap.String("user_id", user.ID))
		return "", fmt.Errorf("incorrect password: %w", apperrors.ErrUnauthorized)
	}

	token, err := s.issuer.Sign(user.ID, user.Email)
	if err != nil {
		return "", err
	}

	s.audit.Record(ctx, "auth", "user logged in", map[string]interface{}{"user_id": user.ID})
	return token, nil
}

func (s *authService) Profile(ctx context.Context, userID string) (*models.User, error) {
	user, err := s.users.GetByID(ctx, userID)
	if err != nil {
		return nil, err
	}
	user.Password = ""
	return user, nil
}

func (s *authService) DeleteAccount(ctx context.Context, userID string) (*models.User, error) {
	user, err := s.users.GetByID(ctx, userID)
	if err != nil {
		return nil, err
	}

	if err := s.users.Delete(ctx, userID); err != nil {
		return nil, err
	}

	s.logger.Info("Deleted user account", zap.String("user_id", userID))
	s.audit.Record(ctx, "auth", "user deleted", map[string]interface{}{"user_id": userID})

	return user, nil
}
