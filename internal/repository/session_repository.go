package repository

import (
	"context"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	"golang.org/x/crypto/blake2b"

	"github.com/noah-isme/uni-portal/internal/models"
)

// ErrSessionNotFound is returned when no live session matches the identifier.
var ErrSessionNotFound = errors.New("session not found")

const sessionKeyPrefix = "portal:session:"

// SessionRepository stores session credentials in Redis, one hash per session.
type SessionRepository struct {
	client *redis.Client
	now    func() time.Time
}

// NewSessionRepository constructs a session repository.
func NewSessionRepository(client *redis.Client) *SessionRepository {
	return &SessionRepository{client: client, now: time.Now}
}

// SessionKey derives the Redis key for a session identifier.
func SessionKey(sessionID string) string {
	sum := blake2b.Sum256([]byte(sessionID))
	return sessionKeyPrefix + hex.EncodeToString(sum[:])
}

// Save writes the three stored values for session and resets its TTL.
func (r *SessionRepository) Save(ctx context.Context, session *models.Session, ttl time.Duration) error {
	fields, err := encodeSession(session, r.now(), ttl)
	if err != nil {
		return err
	}

	key := SessionKey(session.ID)
	_, err = r.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.Del(ctx, key)
		pipe.HSet(ctx, key, fields)
		pipe.Expire(ctx, key, ttl)
		return nil
	})
	if err != nil {
		return fmt.Errorf("save session: %w", err)
	}
	return nil
}

// Load returns the session for sessionID.
func (r *SessionRepository) Load(ctx context.Context, sessionID string) (*models.Session, error) {
	fields, err := r.client.HGetAll(ctx, SessionKey(sessionID)).Result()
	if err != nil {
		return nil, fmt.Errorf("load session: %w", err)
	}
	if len(fields) == 0 {
		return nil, ErrSessionNotFound
	}
	session, err := decodeSession(sessionID, fields, r.now())
	if err != nil {
		return nil, err
	}
	return session, nil
}

// Delete removes the session. Deleting a missing session is not an error.
func (r *SessionRepository) Delete(ctx context.Context, sessionID string) error {
	if err := r.client.Del(ctx, SessionKey(sessionID)).Err(); err != nil {
		return fmt.Errorf("delete session: %w", err)
	}
	return nil
}

func encodeSession(session *models.Session, now time.Time, ttl time.Duration) (map[string]interface{}, error) {
	userJSON, err := json.Marshal(session.User)
	if err != nil {
		return nil, fmt.Errorf("encode session user: %w", err)
	}
	expiresAt := now.Add(ttl)
	created := session.CreatedAt
	if created.IsZero() {
		created = now
	}

	values := map[string]models.StoredValue{
		models.StorageKeyAccessToken:  models.NewStoredValue(session.AccessToken, now, nil),
		models.StorageKeyRefreshToken: models.NewStoredValue(session.RefreshToken, now, &expiresAt),
		models.StorageKeyUserData:     models.NewStoredValue(string(userJSON), created, &expiresAt),
	}

	fields := make(map[string]interface{}, len(values))
	for key, value := range values {
		raw, err := json.Marshal(value)
		if err != nil {
			return nil, fmt.Errorf("encode %s: %w", key, err)
		}
		fields[key] = string(raw)
	}
	return fields, nil
}

func decodeSession(sessionID string, fields map[string]string, now time.Time) (*models.Session, error) {
	read := func(key string) (models.StoredValue, error) {
		raw, ok := fields[key]
		if !ok {
			return models.StoredValue{}, ErrSessionNotFound
		}
		var value models.StoredValue
		if err := json.Unmarshal([]byte(raw), &value); err != nil {
			return models.StoredValue{}, fmt.Errorf("decode %s: %w", key, err)
		}
		if value.Expired(now) {
			return models.StoredValue{}, ErrSessionNotFound
		}
		return value, nil
	}

	access, err := read(models.StorageKeyAccessToken)
	if err != nil {
		return nil, err
	}
	refresh, err := read(models.StorageKeyRefreshToken)
	if err != nil {
		return nil, err
	}
	userData, err := read(models.StorageKeyUserData)
	if err != nil {
		return nil, err
	}

	var user models.User
	if err := json.Unmarshal([]byte(userData.Value), &user); err != nil {
		return nil, fmt.Errorf("decode session user: %w", err)
	}

	return &models.Session{
		ID:           sessionID,
		AccessToken:  access.Value,
		RefreshToken: refresh.Value,
		User:         user,
		CreatedAt:    time.UnixMilli(userData.Timestamp).UTC(),
	}, nil
}
