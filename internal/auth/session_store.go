package auth

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"

	"github.com/palisade-io/palisade/internal/domain"
)

// SessionStore is the narrow capability set session backends implement.
// The concrete choice (Redis in deployments, memory in tests and single-node
// setups) is injected at construction time.
type SessionStore interface {
	Store(ctx context.Context, session *domain.Session) error
	GetByID(ctx context.Context, sessionID uuid.UUID) (*domain.Session, error)
	GetByToken(ctx context.Context, token string) (*domain.Session, error)
	Remove(ctx context.Context, sessionID uuid.UUID) error
	RemoveAllForUser(ctx context.Context, userID uuid.UUID) error
	SessionIDsForUser(ctx context.Context, userID uuid.UUID) ([]uuid.UUID, error)
}

func sessionKey(sessionID uuid.UUID) string { return "session:" + sessionID.String() }
func tokenKey(token string) string          { return "token:" + token }
func userSessionsKey(userID uuid.UUID) string {
	return fmt.Sprintf("user:%s:sessions", userID)
}

// RedisSessionStore keeps sessions under three key families:
//
//	session:{sid}        -> serialized session, TTL = remaining lifetime
//	token:{token}        -> sid, same TTL
//	user:{uid}:sessions  -> set of sids, no TTL, pruned on removal
//
// Writes touching more than one family go through an atomic pipeline so the
// families never diverge. Expired sessions drop their first two keys on
// their own; the user set is pruned lazily by Remove/RemoveAllForUser.
type RedisSessionStore struct {
	client *redis.Client
}

func NewRedisSessionStore(client *redis.Client) *RedisSessionStore {
	return &RedisSessionStore{client: client}
}

func (s *RedisSessionStore) Store(ctx context.Context, session *domain.Session) error {
	ttl := session.Remaining()
	if ttl <= 0 {
		// A zero TTL on SET means "no expiry" in Redis; an already-expired
		// session must never be written at all.
		return domain.E(domain.KindInternal, "refusing to store expired session")
	}

	payload, err := json.Marshal(session)
	if err != nil {
		return domain.Wrap(domain.KindInternal, "failed to serialize session", err)
	}

	_, err = s.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.Set(ctx, sessionKey(session.ID), payload, ttl)
		pipe.Set(ctx, tokenKey(session.Token), session.ID.String(), ttl)
		pipe.SAdd(ctx, userSessionsKey(session.UserID), session.ID.String())
		return nil
	})
	if err != nil {
		return domain.Wrap(domain.KindDatabase, "failed to store session", err)
	}
	return nil
}

func (s *RedisSessionStore) GetByID(ctx context.Context, sessionID uuid.UUID) (*domain.Session, error) {
	data, err := s.client.Get(ctx, sessionKey(sessionID)).Result()
	if errors.Is(err, redis.Nil) {
		return nil, nil
	}
	if err != nil {
		return nil, domain.Wrap(domain.KindDatabase, "failed to get session", err)
	}

	var session domain.Session
	if err := json.Unmarshal([]byte(data), &session); err != nil {
		return nil, domain.Wrap(domain.KindInternal, "failed to deserialize session", err)
	}
	return &session, nil
}

func (s *RedisSessionStore) GetByToken(ctx context.Context, token string) (*domain.Session, error) {
	id, err := s.client.Get(ctx, tokenKey(token)).Result()
	if errors.Is(err, redis.Nil) {
		return nil, nil
	}
	if err != nil {
		return nil, domain.Wrap(domain.KindDatabase, "failed to get session id", err)
	}

	sessionID, err := uuid.Parse(id)
	if err != nil {
		return nil, domain.Wrap(domain.KindInternal, "invalid session id in store", err)
	}
	return s.GetByID(ctx, sessionID)
}

func (s *RedisSessionStore) Remove(ctx context.Context, sessionID uuid.UUID) error {
	session, err := s.GetByID(ctx, sessionID)
	if err != nil {
		return err
	}
	if session == nil {
		return nil
	}

	_, err = s.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.Del(ctx, sessionKey(sessionID))
		pipe.Del(ctx, tokenKey(session.Token))
		pipe.SRem(ctx, userSessionsKey(session.UserID), sessionID.String())
		return nil
	})
	if err != nil {
		return domain.Wrap(domain.KindDatabase, "failed to remove session", err)
	}
	return nil
}

func (s *RedisSessionStore) RemoveAllForUser(ctx context.Context, userID uuid.UUID) error {
	ids, err := s.SessionIDsForUser(ctx, userID)
	if err != nil {
		return err
	}

	for _, id := range ids {
		if err := s.Remove(ctx, id); err != nil {
			return err
		}
	}

	// Expired sessions leave dangling set members behind; drop the set
	// itself so the prune is complete.
	if err := s.client.Del(ctx, userSessionsKey(userID)).Err(); err != nil {
		return domain.Wrap(domain.KindDatabase, "failed to prune user sessions", err)
	}
	return nil
}

func (s *RedisSessionStore) SessionIDsForUser(ctx context.Context, userID uuid.UUID) ([]uuid.UUID, error) {
	members, err := s.client.SMembers(ctx, userSessionsKey(userID)).Result()
	if err != nil {
		return nil, domain.Wrap(domain.KindDatabase, "failed to list user sessions", err)
	}

	ids := make([]uuid.UUID, 0, len(members))
	for _, m := range members {
		id, err := uuid.Parse(m)
		if err != nil {
			continue
		}
		ids = append(ids, id)
	}
	return ids, nil
}

// MemorySessionStore is the in-process SessionStore. It backs tests and
// single-node deployments with the same key-family semantics as Redis,
// including TTL expiry (checked lazily on read).
type MemorySessionStore struct {
	mu       sync.RWMutex
	sessions map[uuid.UUID]*domain.Session
	byToken  map[string]uuid.UUID
	byUser   map[uuid.UUID]map[uuid.UUID]struct{}
}

func NewMemorySessionStore() *MemorySessionStore {
	return &MemorySessionStore{
		sessions: make(map[uuid.UUID]*domain.Session),
		byToken:  make(map[string]uuid.UUID),
		byUser:   make(map[uuid.UUID]map[uuid.UUID]struct{}),
	}
}

func (s *MemorySessionStore) Store(_ context.Context, session *domain.Session) error {
	if session.Remaining() <= 0 {
		return domain.E(domain.KindInternal, "refusing to store expired session")
	}

	copied := *session

	s.mu.Lock()
	defer s.mu.Unlock()
	s.sessions[copied.ID] = &copied
	s.byToken[copied.Token] = copied.ID
	if s.byUser[copied.UserID] == nil {
		s.byUser[copied.UserID] = make(map[uuid.UUID]struct{})
	}
	s.byUser[copied.UserID][copied.ID] = struct{}{}
	return nil
}

func (s *MemorySessionStore) GetByID(_ context.Context, sessionID uuid.UUID) (*domain.Session, error) {
	s.mu.RLock()
	session, ok := s.sessions[sessionID]
	s.mu.RUnlock()
	if !ok {
		return nil, nil
	}
	if session.Expired() {
		s.evict(sessionID)
		return nil, nil
	}
	copied := *session
	return &copied, nil
}

func (s *MemorySessionStore) GetByToken(_ context.Context, token string) (*domain.Session, error) {
	s.mu.RLock()
	id, ok := s.byToken[token]
	s.mu.RUnlock()
	if !ok {
		return nil, nil
	}
	return s.GetByID(context.Background(), id)
}

func (s *MemorySessionStore) Remove(_ context.Context, sessionID uuid.UUID) error {
	s.evict(sessionID)
	return nil
}

func (s *MemorySessionStore) RemoveAllForUser(_ context.Context, userID uuid.UUID) error {
	s.mu.Lock()
	ids := make([]uuid.UUID, 0, len(s.byUser[userID]))
	for id := range s.byUser[userID] {
		ids = append(ids, id)
	}
	s.mu.Unlock()

	for _, id := range ids {
		s.evict(id)
	}

	s.mu.Lock()
	delete(s.byUser, userID)
	s.mu.Unlock()
	return nil
}

func (s *MemorySessionStore) SessionIDsForUser(_ context.Context, userID uuid.UUID) ([]uuid.UUID, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	ids := make([]uuid.UUID, 0, len(s.byUser[userID]))
	for id := range s.byUser[userID] {
		ids = append(ids, id)
	}
	return ids, nil
}

func (s *MemorySessionStore) evict(sessionID uuid.UUID) {
	s.mu.Lock()
	defer s.mu.Unlock()
	session, ok := s.sessions[sessionID]
	if !ok {
		return
	}
	delete(s.sessions, sessionID)
	delete(s.byToken, session.Token)
	if set, ok := s.byUser[session.UserID]; ok {
		delete(set, sessionID)
		if len(set) == 0 {
			delete(s.byUser, session.UserID)
		}
	}
}
