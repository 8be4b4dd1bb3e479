package service

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"go.uber.org/zap"
	"golang.org/x/sync/singleflight"

	"github.com/noah-isme/uni-portal/internal/client"
	"github.com/noah-isme/uni-portal/internal/models"
	"github.com/noah-isme/uni-portal/internal/repository"
	appErrors "github.com/noah-isme/uni-portal/pkg/errors"
)

type authBackend interface {
	Login(ctx context.Context, email, password string) (*models.AuthTokens, error)
	RefreshToken(ctx context.Context, refreshToken string) (*models.AuthTokens, error)
	Logout(ctx context.Context, refreshToken string) error
	Profile(ctx context.Context) (*models.User, error)
}

type sessionStore interface {
	Save(ctx context.Context, session *models.Session, ttl time.Duration) error
	Load(ctx context.Context, sessionID string) (*models.Session, error)
	Delete(ctx context.Context, sessionID string) error
}

type auditRecorder interface {
	Record(ctx context.Context, entry AuditEntry)
}

// AuthService owns the portal session and its bearer token lifecycle.
type AuthService struct {
	backend    authBackend
	sessions   sessionStore
	tokens     *TokenManager
	flights    singleflight.Group
	audit      auditRecorder
	validator  *validator.Validate
	logger     *zap.Logger
	sessionTTL time.Duration
	newID      func() string
	now        func() time.Time
}

// NewAuthService constructs an AuthService instance.
func NewAuthService(backend authBackend, sessions sessionStore, tokens *TokenManager, audit auditRecorder, validate *validator.Validate, logger *zap.Logger, sessionTTL time.Duration) *AuthService {
	if logger == nil {
		logger = zap.NewNop()
	}
	if validate == nil {
		validate = validator.New()
	}
	if sessionTTL <= 0 {
		sessionTTL = 7 * 24 * time.Hour
	}
	return &AuthService{
		backend:    backend,
		sessions:   sessions,
		tokens:     tokens,
		audit:      audit,
		validator:  validate,
		logger:     logger,
		sessionTTL: sessionTTL,
		newID:      uuid.NewString,
		now:        time.Now,
	}
}

// SessionTTL is the lifetime given to new sessions and their cookie.
func (s *AuthService) SessionTTL() time.Duration {
	return s.sessionTTL
}

// Login authenticates against the backend and opens a new session.
func (s *AuthService) Login(ctx context.Context, req models.LoginRequest) (*models.Session, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid login payload")
	}

	tokens, err := s.backend.Login(ctx, req.Email, req.Password)
	if err != nil {
		if appErrors.HasCode(err, appErrors.ErrUnauthorized.Code) || appErrors.HasCode(err, appErrors.ErrValidation.Code) {
			return nil, appErrors.Clone(appErrors.ErrUnauthorized, "invalid email or password")
		}
		return nil, err
	}

	user := tokens.User
	if user == nil {
		user, err = s.backend.Profile(client.WithCredentials(ctx, staticCredentials(tokens.AccessToken)))
		if err != nil {
			return nil, err
		}
	}

	session := &models.Session{
		ID:           s.newID(),
		AccessToken:  tokens.AccessToken,
		RefreshToken: tokens.RefreshToken,
		User:         *user,
		CreatedAt:    s.now().UTC(),
	}
	if err := s.sessions.Save(ctx, session, s.sessionTTL); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to persist session")
	}

	s.recordAudit(ctx, AuditEntry{
		UserID:     user.ID.String(),
		Action:     models.AuditActionLogin,
		Resource:   "auth",
		ResourceID: user.ID.String(),
		Details:    map[string]string{"status": "success"},
	})
	return session, nil
}

// Current loads the session behind sessionID.
func (s *AuthService) Current(ctx context.Context, sessionID string) (*models.Session, error) {
	if sessionID == "" {
		return nil, appErrors.Clone(appErrors.ErrUnauthorized, "not signed in")
	}
	session, err := s.sessions.Load(ctx, sessionID)
	if err != nil {
		if errors.Is(err, repository.ErrSessionNotFound) {
			return nil, appErrors.Clone(appErrors.ErrUnauthorized, "not signed in")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load session")
	}
	return session, nil
}

// EnsureFresh refreshes the session tokens when the access token is invalid or close to expiry.
func (s *AuthService) EnsureFresh(ctx context.Context, session *models.Session) (*models.Session, error) {
	if !s.tokens.ShouldRefresh(session.AccessToken) {
		return session, nil
	}
	return s.refreshSession(ctx, session, session.AccessToken)
}

// Refresh exchanges the refresh token. When every attempt fails the session is cleared and a
// SESSION_EXPIRED error is returned.
func (s *AuthService) Refresh(ctx context.Context, session *models.Session) (*models.Session, error) {
	return s.refreshSession(ctx, session, session.AccessToken)
}

// refreshSession replaces the access token rejected for session. Callers on the same session
// share one exchange, and a caller holding an outdated copy gets the stored tokens instead of
// spending its stale refresh token.
func (s *AuthService) refreshSession(ctx context.Context, session *models.Session, rejected string) (*models.Session, error) {
	shared := context.WithoutCancel(ctx)
	ch := s.flights.DoChan(session.ID, func() (interface{}, error) {
		return s.exchange(shared, session, rejected)
	})

	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	case res := <-ch:
		if res.Err != nil {
			return nil, res.Err
		}
		updated := *res.Val.(*models.Session)
		return &updated, nil
	}
}

func (s *AuthService) exchange(ctx context.Context, session *models.Session, rejected string) (*models.Session, error) {
	current := session
	stored, err := s.sessions.Load(ctx, session.ID)
	switch {
	case err == nil:
		current = stored
	case errors.Is(err, repository.ErrSessionNotFound):
		return nil, appErrors.Clone(appErrors.ErrSessionExpired, "session no longer exists")
	default:
		s.logger.Warn("failed to reload session before refresh", zap.String("user_id", session.User.ID.String()), zap.Error(err))
	}
	if current.AccessToken != rejected {
		return current, nil
	}

	tokens, err := s.tokens.RefreshWithRetry(ctx, current.RefreshToken, s.backend.RefreshToken)
	if err != nil {
		if appErrors.HasCode(err, appErrors.ErrSessionExpired.Code) {
			s.clearCredentials(ctx, current, err)
		}
		return nil, err
	}

	updated := *current
	updated.AccessToken = tokens.AccessToken
	if tokens.RefreshToken != "" {
		updated.RefreshToken = tokens.RefreshToken
	}
	if tokens.User != nil {
		updated.User = *tokens.User
	}
	if err := s.sessions.Save(ctx, &updated, s.sessionTTL); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to persist session")
	}
	return &updated, nil
}

// UpdateUser replaces the cached user data of session, keeping the latest stored tokens.
func (s *AuthService) UpdateUser(ctx context.Context, session *models.Session, user models.User) (*models.Session, error) {
	updated := *session
	if stored, err := s.sessions.Load(ctx, session.ID); err == nil {
		updated = *stored
	}
	updated.User = user
	if err := s.sessions.Save(ctx, &updated, s.sessionTTL); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to persist session")
	}
	return &updated, nil
}

// Logout revokes the refresh token upstream on a best effort basis and deletes the session.
func (s *AuthService) Logout(ctx context.Context, session *models.Session) error {
	if err := s.backend.Logout(client.WithCredentials(ctx, staticCredentials(session.AccessToken)), session.RefreshToken); err != nil {
		s.logger.Warn("backend logout failed", zap.String("user_id", session.User.ID.String()), zap.Error(err))
	}
	if err := s.sessions.Delete(ctx, session.ID); err != nil {
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to delete session")
	}
	s.recordAudit(ctx, AuditEntry{UserID: session.User.ID.String(), Action: models.AuditActionLogout, Resource: "auth", ResourceID: session.User.ID.String()})
	return nil
}

// Credentials adapts session to the backend client's credential source.
func (s *AuthService) Credentials(session *models.Session) *SessionCredentials {
	return &SessionCredentials{auth: s, session: session}
}

func (s *AuthService) clearCredentials(ctx context.Context, session *models.Session, cause error) {
	if err := s.sessions.Delete(context.WithoutCancel(ctx), session.ID); err != nil {
		s.logger.Warn("failed to clear expired session", zap.String("user_id", session.User.ID.String()), zap.Error(err))
	}
	s.logger.Info("session cleared after refresh failure", zap.String("user_id", session.User.ID.String()), zap.Error(cause))
	s.recordAudit(ctx, AuditEntry{UserID: session.User.ID.String(), Action: models.AuditActionRefreshFailed, Resource: "auth", ResourceID: session.User.ID.String()})
}

func (s *AuthService) recordAudit(ctx context.Context, entry AuditEntry) {
	if s.audit == nil {
		return
	}
	s.audit.Record(ctx, entry)
}

// SessionCredentials hands out the current session's tokens and keeps them fresh.
type SessionCredentials struct {
	auth    *AuthService
	mu      sync.Mutex
	session *models.Session
}

// Session returns the latest session state, including refreshed tokens.
func (c *SessionCredentials) Session() *models.Session {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.session
}

// AccessToken returns a usable access token, refreshing ahead of expiry.
func (c *SessionCredentials) AccessToken(ctx context.Context) (string, error) {
	session, err := c.auth.EnsureFresh(ctx, c.Session())
	if err != nil {
		return "", err
	}
	return c.adopt(session), nil
}

// Refresh replaces the access token the backend refused. When a concurrent call has already
// rotated it, the current token is returned without an exchange.
func (c *SessionCredentials) Refresh(ctx context.Context, rejected string) (string, error) {
	session := c.Session()
	if session.AccessToken != rejected {
		return session.AccessToken, nil
	}
	session, err := c.auth.refreshSession(ctx, session, rejected)
	if err != nil {
		return "", err
	}
	return c.adopt(session), nil
}

func (c *SessionCredentials) adopt(session *models.Session) string {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.session = session
	return session.AccessToken
}

type staticCredentials string

func (t staticCredentials) AccessToken(context.Context) (string, error) {
	return string(t), nil
}

func (t staticCredentials) Refresh(context.Context, string) (string, error) {
	return "", appErrors.Clone(appErrors.ErrUnauthorized, "token rejected")
}
