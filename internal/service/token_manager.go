package service

import (
	"context"
	"encoding/json"
	"errors"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"go.uber.org/zap"
	"golang.org/x/sync/singleflight"

	"github.com/noah-isme/uni-portal/internal/models"
	appErrors "github.com/noah-isme/uni-portal/pkg/errors"
)

// RefreshFunc exchanges a refresh token for a new token pair.
type RefreshFunc func(ctx context.Context, refreshToken string) (*models.AuthTokens, error)

// TokenManagerConfig tunes refresh scheduling.
type TokenManagerConfig struct {
	RefreshThreshold time.Duration
	MaxRetries       int
	BaseDelay        time.Duration
}

// TokenManager decodes bearer tokens, answers expiry questions and coordinates refreshes.
type TokenManager struct {
	config  TokenManagerConfig
	parser  *jwt.Parser
	group   singleflight.Group
	metrics *MetricsService
	logger  *zap.Logger

	now   func() time.Time
	sleep func(ctx context.Context, d time.Duration) error
}

// NewTokenManager constructs a TokenManager, filling unset config with defaults.
func NewTokenManager(config TokenManagerConfig, metrics *MetricsService, logger *zap.Logger) *TokenManager {
	if config.RefreshThreshold <= 0 {
		config.RefreshThreshold = 300 * time.Second
	}
	if config.MaxRetries <= 0 {
		config.MaxRetries = 3
	}
	if config.BaseDelay <= 0 {
		config.BaseDelay = time.Second
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &TokenManager{
		config:  config,
		parser:  jwt.NewParser(),
		metrics: metrics,
		logger:  logger,
		now:     time.Now,
		sleep:   sleepContext,
	}
}

// Decode parses the payload segment of token. Malformed input yields false.
func (m *TokenManager) Decode(token string) (*models.TokenPayload, bool) {
	parts := strings.Split(token, ".")
	if len(parts) != 3 {
		return nil, false
	}
	raw, err := m.parser.DecodeSegment(parts[1])
	if err != nil {
		return nil, false
	}
	var payload models.TokenPayload
	if err := json.Unmarshal(raw, &payload); err != nil {
		return nil, false
	}
	return &payload, true
}

// IsExpired is true when token cannot be decoded, has no exp, or exp is not after now.
func (m *TokenManager) IsExpired(token string) bool {
	_, ok := m.remaining(token)
	return !ok
}

// IsValid requires three segments, a decodable payload and a future expiry.
func (m *TokenManager) IsValid(token string) bool {
	_, ok := m.remaining(token)
	return ok
}

// TimeUntilExpiry returns the remaining lifetime, or zero for invalid tokens.
func (m *TokenManager) TimeUntilExpiry(token string) time.Duration {
	left, ok := m.remaining(token)
	if !ok {
		return 0
	}
	return left
}

// ShouldRefresh is true for invalid tokens and for tokens within the refresh threshold.
func (m *TokenManager) ShouldRefresh(token string) bool {
	left, ok := m.remaining(token)
	return !ok || left <= m.config.RefreshThreshold
}

// remaining decodes token once against a single clock reading. ok is false for
// malformed, exp-less or expired tokens.
func (m *TokenManager) remaining(token string) (time.Duration, bool) {
	payload, ok := m.Decode(token)
	if !ok || payload.ExpiresAt == nil {
		return 0, false
	}
	left := payload.ExpiresAt.Time.Sub(m.now())
	if left <= 0 {
		return 0, false
	}
	return left, true
}

// RefreshWithRetry runs refresh with exponential backoff. Concurrent callers holding the
// same refresh token share a single in-flight exchange and its outcome.
func (m *TokenManager) RefreshWithRetry(ctx context.Context, refreshToken string, refresh RefreshFunc) (*models.AuthTokens, error) {
	if refreshToken == "" {
		return nil, appErrors.Clone(appErrors.ErrSessionExpired, "refresh token missing")
	}

	// the shared exchange must outlive any single caller that gives up waiting
	shared := context.WithoutCancel(ctx)
	ch := m.group.DoChan(refreshToken, func() (interface{}, error) {
		return m.refreshLoop(shared, refreshToken, refresh)
	})

	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	case res := <-ch:
		if res.Err != nil {
			return nil, res.Err
		}
		return res.Val.(*models.AuthTokens), nil
	}
}

func (m *TokenManager) refreshLoop(ctx context.Context, refreshToken string, refresh RefreshFunc) (*models.AuthTokens, error) {
	var lastErr error
	for attempt := 0; attempt < m.config.MaxRetries; attempt++ {
		if attempt > 0 {
			delay := m.config.BaseDelay << (attempt - 1)
			if err := m.sleep(ctx, delay); err != nil {
				lastErr = err
				break
			}
		}

		tokens, err := refresh(ctx, refreshToken)
		if err == nil && (tokens == nil || tokens.AccessToken == "") {
			err = errors.New("refresh returned no access token")
		}
		if err == nil {
			m.metrics.ObserveTokenRefresh("success", attempt+1)
			return tokens, nil
		}

		lastErr = err
		m.logger.Warn("token refresh attempt failed",
			zap.Int("attempt", attempt+1),
			zap.Int("max_attempts", m.config.MaxRetries),
			zap.Error(err),
		)
	}

	m.metrics.ObserveTokenRefresh("failure", m.config.MaxRetries)
	return nil, appErrors.Wrap(lastErr, appErrors.ErrSessionExpired.Code, appErrors.ErrSessionExpired.Status, appErrors.ErrSessionExpired.Message)
}

func sleepContext(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
