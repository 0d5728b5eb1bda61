package cache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/prepforge/assessment-engine/internal/models"
)

// ErrSessionNotFound is returned when no live session exists for the id.
var ErrSessionNotFound = errors.New("live session not found")

const sessionKeyPrefix = "session:live:"

// SessionStore keeps the snapshot of every Active session so an interrupted
// process can rehydrate it. The stored record carries the remaining time and
// the save instant; LoadSession settles the countdown against the elapsed
// wall-clock time.
type SessionStore interface {
	SaveSession(ctx context.Context, session *models.TestSession) error
	LoadSession(ctx context.Context, sessionID string) (*models.TestSession, error)
	DeleteSession(ctx context.Context, sessionID string) error
}

type liveSessionRecord struct {
	Session *models.TestSession `json:"session"`
	SavedAt time.Time           `json:"saved_at"`
}

type redisSessionStore struct {
	client *redis.Client
	logger *slog.Logger
}

func NewRedisSessionStore(client *redis.Client, logger *slog.Logger) SessionStore {
	return &redisSessionStore{client: client, logger: logger}
}

func (s *redisSessionStore) SaveSession(ctx context.Context, session *models.TestSession) error {
	record := liveSessionRecord{Session: session, SavedAt: time.Now()}
	data, err := json.Marshal(record)
	if err != nil {
		return fmt.Errorf("failed to marshal live session: %w", err)
	}

	// Keep the key a little past expiry so a timed-out session can still be
	// rehydrated and auto-submitted.
	ttl := time.Duration(session.TimeRemainingSeconds)*time.Second + time.Hour

	if err := s.client.Set(ctx, sessionKeyPrefix+session.ID, data, ttl).Err(); err != nil {
		return fmt.Errorf("failed to save live session: %w", err)
	}
	return nil
}

func (s *redisSessionStore) LoadSession(ctx context.Context, sessionID string) (*models.TestSession, error) {
	data, err := s.client.Get(ctx, sessionKeyPrefix+sessionID).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, ErrSessionNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load live session: %w", err)
	}

	var record liveSessionRecord
	if err := json.Unmarshal(data, &record); err != nil {
		return nil, fmt.Errorf("failed to unmarshal live session: %w", err)
	}
	if record.Session == nil {
		return nil, fmt.Errorf("live session record %s has no session payload", sessionID)
	}

	elapsed := int(time.Since(record.SavedAt).Seconds())
	if elapsed > 0 {
		record.Session.TimeRemainingSeconds -= elapsed
		if record.Session.TimeRemainingSeconds < 0 {
			record.Session.TimeRemainingSeconds = 0
		}
	}

	return record.Session, nil
}

func (s *redisSessionStore) DeleteSession(ctx context.Context, sessionID string) error {
	if err := s.client.Del(ctx, sessionKeyPrefix+sessionID).Err(); err != nil {
		return fmt.Errorf("failed to delete live session: %w", err)
	}
	return nil
}

// MemorySessionStore is an in-memory store for tests and single-node setups.
type MemorySessionStore struct {
	sessions map[string]*models.TestSession
}

func NewMemorySessionStore() *MemorySessionStore {
	return &MemorySessionStore{sessions: make(map[string]*models.TestSession)}
}

func (s *MemorySessionStore) SaveSession(ctx context.Context, session *models.TestSession) error {
	cp := *session
	s.sessions[session.ID] = &cp
	return nil
}

func (s *MemorySessionStore) LoadSession(ctx context.Context, sessionID string) (*models.TestSession, error) {
	session, ok := s.sessions[sessionID]
	if !ok {
		return nil, ErrSessionNotFound
	}
	cp := *session
	return &cp, nil
}

func (s *MemorySessionStore) DeleteSession(ctx context.Context, sessionID string) error {
	delete(s.sessions, sessionID)
	return nil
}
