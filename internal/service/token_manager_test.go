package service

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/noah-isme/uni-portal/internal/models"
	appErrors "github.com/noah-isme/uni-portal/pkg/errors"
)

var fixedNow = time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

func newTestTokenManager(cfg TokenManagerConfig) *TokenManager {
	m := NewTokenManager(cfg, nil, zap.NewNop())
	m.now = func() time.Time { return fixedNow }
	m.sleep = func(context.Context, time.Duration) error { return nil }
	return m
}

func signedToken(t *testing.T, exp time.Time) string {
	t.Helper()
	claims := jwt.MapClaims{"sub": "user-1", "iat": fixedNow.Add(-time.Hour).Unix(), "exp": exp.Unix(), "role": "STUDENT"}
	token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte("secret"))
	require.NoError(t, err)
	return token
}

func rawToken(payload string) string {
	enc := base64.RawURLEncoding
	return enc.EncodeToString([]byte(`{"alg":"HS256"}`)) + "." + enc.EncodeToString([]byte(payload)) + ".sig"
}

func TestTokenManagerDecode(t *testing.T) {
	m := newTestTokenManager(TokenManagerConfig{})
	token := signedToken(t, fixedNow.Add(time.Hour))

	payload, ok := m.Decode(token)
	require.True(t, ok)
	assert.Equal(t, "user-1", payload.Subject)
	assert.Equal(t, models.RoleStudent, payload.Role)
	assert.Equal(t, fixedNow.Add(time.Hour).Unix(), payload.ExpiresAt.Unix())
}

func TestTokenManagerMalformedTokens(t *testing.T) {
	m := newTestTokenManager(TokenManagerConfig{})
	valid := signedToken(t, fixedNow.Add(time.Hour))

	cases := []string{
		"",
		"abc",
		"a.b",
		"a.b.c.d",
		valid + ".extra",
		"header.!!!notbase64.sig",
		rawToken(`not json`),
		rawToken(`{"exp":"tomorrow"}`),
	}
	for _, token := range cases {
		payload, ok := m.Decode(token)
		assert.False(t, ok, token)
		assert.Nil(t, payload, token)
		assert.False(t, m.IsValid(token), token)
		assert.True(t, m.IsExpired(token), token)
		assert.True(t, m.ShouldRefresh(token), token)
		assert.Zero(t, m.TimeUntilExpiry(token), token)
	}
}

func TestTokenManagerValidity(t *testing.T) {
	m := newTestTokenManager(TokenManagerConfig{})

	assert.True(t, m.IsValid(signedToken(t, fixedNow.Add(time.Second))))
	assert.True(t, m.IsValid(signedToken(t, fixedNow.Add(24*time.Hour))))
	assert.False(t, m.IsValid(signedToken(t, fixedNow)))
	assert.False(t, m.IsValid(signedToken(t, fixedNow.Add(-time.Second))))
	assert.False(t, m.IsValid(rawToken(`{"sub":"user-1"}`)))
}

func TestTokenManagerShouldRefreshThreshold(t *testing.T) {
	m := newTestTokenManager(TokenManagerConfig{RefreshThreshold: 300 * time.Second})

	assert.True(t, m.ShouldRefresh(signedToken(t, fixedNow.Add(300*time.Second))))
	assert.True(t, m.ShouldRefresh(signedToken(t, fixedNow.Add(299*time.Second))))
	assert.False(t, m.ShouldRefresh(signedToken(t, fixedNow.Add(301*time.Second))))
	assert.Equal(t, 301*time.Second, m.TimeUntilExpiry(signedToken(t, fixedNow.Add(301*time.Second))))
}

func TestTokenManagerQueriesReadClockOnce(t *testing.T) {
	m := newTestTokenManager(TokenManagerConfig{RefreshThreshold: 300 * time.Second})
	reads := 0
	m.now = func() time.Time {
		reads++
		// each read moves the clock forward so repeated decoding would disagree with itself
		return fixedNow.Add(time.Duration(reads-1) * time.Minute)
	}
	token := signedToken(t, fixedNow.Add(330*time.Second))

	assert.False(t, m.ShouldRefresh(token))
	assert.Equal(t, 1, reads)

	reads = 0
	assert.Equal(t, 330*time.Second, m.TimeUntilExpiry(token))
	assert.Equal(t, 1, reads)

	reads = 0
	assert.True(t, m.IsValid(token))
	assert.Equal(t, 1, reads)
}

func TestRefreshWithRetrySucceedsOnThirdAttempt(t *testing.T) {
	m := newTestTokenManager(TokenManagerConfig{MaxRetries: 3, BaseDelay: time.Second})
	var delays []time.Duration
	m.sleep = func(_ context.Context, d time.Duration) error {
		delays = append(delays, d)
		return nil
	}

	calls := 0
	tokens, err := m.RefreshWithRetry(context.Background(), "refresh-1", func(context.Context, string) (*models.AuthTokens, error) {
		calls++
		if calls < 3 {
			return nil, errors.New("backend down")
		}
		return &models.AuthTokens{AccessToken: "new-access", RefreshToken: "refresh-2"}, nil
	})

	require.NoError(t, err)
	assert.Equal(t, "new-access", tokens.AccessToken)
	assert.Equal(t, 3, calls)
	assert.Equal(t, []time.Duration{time.Second, 2 * time.Second}, delays)
}

func TestRefreshWithRetrySurfacesLastError(t *testing.T) {
	m := newTestTokenManager(TokenManagerConfig{MaxRetries: 2})
	last := errors.New("second failure")

	calls := 0
	_, err := m.RefreshWithRetry(context.Background(), "refresh-1", func(context.Context, string) (*models.AuthTokens, error) {
		calls++
		if calls == 1 {
			return nil, errors.New("first failure")
		}
		return nil, last
	})

	require.Error(t, err)
	assert.Equal(t, 2, calls)
	assert.ErrorIs(t, err, last)
	assert.Equal(t, appErrors.ErrSessionExpired.Code, appErrors.FromError(err).Code)
}

func TestRefreshWithRetryTreatsEmptyResultAsFailure(t *testing.T) {
	m := newTestTokenManager(TokenManagerConfig{MaxRetries: 2})

	_, err := m.RefreshWithRetry(context.Background(), "refresh-1", func(context.Context, string) (*models.AuthTokens, error) {
		return &models.AuthTokens{}, nil
	})

	require.Error(t, err)
}

func TestRefreshWithRetryRequiresRefreshToken(t *testing.T) {
	m := newTestTokenManager(TokenManagerConfig{})

	_, err := m.RefreshWithRetry(context.Background(), "", func(context.Context, string) (*models.AuthTokens, error) {
		t.Fatal("refresh must not be called")
		return nil, nil
	})

	assert.True(t, appErrors.HasCode(err, appErrors.ErrSessionExpired.Code))
}

func TestRefreshWithRetryDeduplicatesConcurrentCallers(t *testing.T) {
	m := newTestTokenManager(TokenManagerConfig{})

	var calls int32
	started := make(chan struct{})
	release := make(chan struct{})
	refresh := func(context.Context, string) (*models.AuthTokens, error) {
		if atomic.AddInt32(&calls, 1) == 1 {
			close(started)
		}
		<-release
		return &models.AuthTokens{AccessToken: "shared", RefreshToken: "next"}, nil
	}

	const callers = 8
	var wg sync.WaitGroup
	results := make([]string, callers)
	errs := make([]error, callers)

	wg.Add(1)
	go func() {
		defer wg.Done()
		tokens, err := m.RefreshWithRetry(context.Background(), "refresh-1", refresh)
		errs[0] = err
		if tokens != nil {
			results[0] = tokens.AccessToken
		}
	}()
	<-started

	for i := 1; i < callers; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			tokens, err := m.RefreshWithRetry(context.Background(), "refresh-1", refresh)
			errs[i] = err
			if tokens != nil {
				results[i] = tokens.AccessToken
			}
		}(i)
	}
	time.Sleep(50 * time.Millisecond)
	close(release)
	wg.Wait()

	assert.Equal(t, int32(1), atomic.LoadInt32(&calls))
	for i := 0; i < callers; i++ {
		assert.NoError(t, errs[i])
		assert.Equal(t, "shared", results[i])
	}
}

func TestRefreshWithRetryCallerCancellation(t *testing.T) {
	m := newTestTokenManager(TokenManagerConfig{})
	release := make(chan struct{})
	defer close(release)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := m.RefreshWithRetry(ctx, "refresh-1", func(context.Context, string) (*models.AuthTokens, error) {
		<-release
		return &models.AuthTokens{AccessToken: "late"}, nil
	})

	assert.ErrorIs(t, err, context.Canceled)
}

func TestTokenPayloadDecodesFractionalExpiry(t *testing.T) {
	raw := `{"sub":"u1","iat":1700000000,"exp":1700003600.5}`
	var payload models.TokenPayload
	require.NoError(t, json.Unmarshal([]byte(raw), &payload))
	assert.Equal(t, int64(1700000000), payload.IssuedAt.Unix())
	assert.NotNil(t, payload.ExpiresAt)
}
