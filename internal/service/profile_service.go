package service

import (
	"context"

	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"

	"github.com/noah-isme/uni-portal/internal/models"
	appErrors "github.com/noah-isme/uni-portal/pkg/errors"
)

type profileBackend interface {
	Profile(ctx context.Context) (*models.User, error)
	UpdateProfile(ctx context.Context, req models.ProfileUpdateRequest) (*models.User, error)
}

type sessionUserUpdater interface {
	UpdateUser(ctx context.Context, session *models.Session, user models.User) (*models.Session, error)
}

// ProfileService reads and edits the signed-in user's profile.
type ProfileService struct {
	backend   profileBackend
	sessions  sessionUserUpdater
	audit     auditRecorder
	validator *validator.Validate
	logger    *zap.Logger
}

// NewProfileService constructs a ProfileService.
func NewProfileService(backend profileBackend, sessions sessionUserUpdater, audit auditRecorder, validate *validator.Validate, logger *zap.Logger) *ProfileService {
	if validate == nil {
		validate = validator.New()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &ProfileService{backend: backend, sessions: sessions, audit: audit, validator: validate, logger: logger}
}

// Get returns the caller's profile from the backend.
func (s *ProfileService) Get(ctx context.Context) (*models.User, error) {
	return s.backend.Profile(ctx)
}

// Update applies req upstream and refreshes the user data cached in the session.
func (s *ProfileService) Update(ctx context.Context, session *models.Session, req models.ProfileUpdateRequest) (*models.User, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid profile payload")
	}
	user, err := s.backend.UpdateProfile(ctx, req)
	if err != nil {
		return nil, err
	}
	if _, err := s.sessions.UpdateUser(ctx, session, *user); err != nil {
		s.logger.Warn("failed to refresh session user data", zap.String("user_id", user.ID.String()), zap.Error(err))
	}
	if s.audit != nil {
		s.audit.Record(ctx, AuditEntry{UserID: user.ID.String(), Action: models.AuditActionProfileUpdate, Resource: "profile", ResourceID: user.ID.String()})
	}
	return user, nil
}
