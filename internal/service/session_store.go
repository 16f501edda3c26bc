package service

import (
	"context"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"
)

// SessionStore guarda el índice de refresh tokens y los marcadores de
// revocación por usuario.
//
// ConsumeRefresh es la operación crítica de rotación: lee y borra la entrada
// en un solo paso, de modo que ante intentos concurrentes sobre el mismo
// token exactamente uno gana.
type SessionStore interface {
	StoreRefresh(ctx context.Context, jti, userID string, ttl time.Duration) error
	ConsumeRefresh(ctx context.Context, jti string) (string, bool, error)
	DeleteRefresh(ctx context.Context, jti string) error
	MarkRevoked(ctx context.Context, userID string, at int64) error
	RevokedAt(ctx context.Context, userID string) (int64, bool, error)
}

type refreshEntry struct {
	userID    string
	expiresAt time.Time
}

type memorySessionStore struct {
	mu      sync.Mutex
	refresh map[string]refreshEntry
	revoked map[string]int64
}

func NewMemorySessionStore() SessionStore {
	return &memorySessionStore{
		refresh: make(map[string]refreshEntry),
		revoked: make(map[string]int64),
	}
}

func (s *memorySessionStore) StoreRefresh(_ context.Context, jti, userID string, ttl time.Duration) error {
	if strings.TrimSpace(jti) == "" {
		return nil
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.refresh[jti] = refreshEntry{userID: userID, expiresAt: time.Now().UTC().Add(ttl)}
	return nil
}

func (s *memorySessionStore) ConsumeRefresh(_ context.Context, jti string) (string, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	entry, ok := s.refresh[jti]
	if !ok {
		return "", false, nil
	}
	delete(s.refresh, jti)
	if time.Now().UTC().After(entry.expiresAt) {
		return "", false, nil
	}
	return entry.userID, true, nil
}

func (s *memorySessionStore) DeleteRefresh(_ context.Context, jti string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.refresh, jti)
	return nil
}

func (s *memorySessionStore) MarkRevoked(_ context.Context, userID string, at int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	// El marcador nunca retrocede.
	if current, ok := s.revoked[userID]; !ok || at > current {
		s.revoked[userID] = at
	}
	return nil
}

func (s *memorySessionStore) RevokedAt(_ context.Context, userID string) (int64, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	at, ok := s.revoked[userID]
	return at, ok, nil
}

// Script de escritura monótona: solo avanza el marcador, nunca lo retrocede,
// incluso con revocaciones concurrentes.
const redisMarkRevokedScript = `
local current = redis.call("GET", KEYS[1])
if not current or tonumber(ARGV[1]) > tonumber(current) then
  redis.call("SET", KEYS[1], ARGV[1], "EX", ARGV[2])
end
return 1
`

type redisSessionStore struct {
	client        *redis.Client
	refreshPrefix string
	revokedPrefix string
	markerTTL     time.Duration
}

// NewRedisSessionStore crea un SessionStore sobre Redis. markerTTL acota la
// vida del marcador de revocación; cualquier token anterior al marcador ya
// habrá expirado por sí mismo pasado ese plazo.
func NewRedisSessionStore(client *redis.Client, markerTTL time.Duration) SessionStore {
	if client == nil {
		return nil
	}
	if markerTTL <= 0 {
		markerTTL = 7 * 24 * time.Hour
	}
	return &redisSessionStore{
		client:        client,
		refreshPrefix: "refresh_token:",
		revokedPrefix: "revocation:",
		markerTTL:     markerTTL,
	}
}

func (s *redisSessionStore) StoreRefresh(ctx context.Context, jti, userID string, ttl time.Duration) error {
	if strings.TrimSpace(jti) == "" {
		return nil
	}
	return s.client.Set(ctx, s.refreshPrefix+jti, userID, ttl).Err()
}

func (s *redisSessionStore) ConsumeRefresh(ctx context.Context, jti string) (string, bool, error) {
	if strings.TrimSpace(jti) == "" {
		return "", false, nil
	}
	userID, err := s.client.GetDel(ctx, s.refreshPrefix+jti).Result()
	if err == redis.Nil {
		return "", false, nil
	}
	if err != nil {
		return "", false, err
	}
	return userID, true, nil
}

func (s *redisSessionStore) DeleteRefresh(ctx context.Context, jti string) error {
	if strings.TrimSpace(jti) == "" {
		return nil
	}
	return s.client.Del(ctx, s.refreshPrefix+jti).Err()
}

func (s *redisSessionStore) MarkRevoked(ctx context.Context, userID string, at int64) error {
	if strings.TrimSpace(userID) == "" {
		return nil
	}
	seconds := int(s.markerTTL.Seconds())
	return s.client.Eval(ctx, redisMarkRevokedScript, []string{s.revokedPrefix + userID}, at, seconds).Err()
}

func (s *redisSessionStore) RevokedAt(ctx context.Context, userID string) (int64, bool, error) {
	val, err := s.client.Get(ctx, s.revokedPrefix+userID).Result()
	if err == redis.Nil {
		return 0, false, nil
	}
	if err != nil {
		return 0, false, err
	}
	at, err := strconv.ParseInt(val, 10, 64)
	if err != nil {
		return 0, false, err
	}
	return at, true, nil
}
