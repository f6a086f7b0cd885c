package repository

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/goccy/go-json"
	"github.com/krobus00/order-entry/internal/entity"
	"github.com/redis/go-redis/v9"
)

const (
	defaultLockTTL  = 15 * time.Second
	defaultDraftTTL = 24 * time.Hour
)

var releaseLockScript = redis.NewScript(`
if redis.call("GET", KEYS[1]) == ARGV[1] then
    return redis.call("DEL", KEYS[1])
else
    return 0
end
`)

func draftKey(sessionID, symbol string) string {
	return fmt.Sprintf("order-entry:draft:%s:%s", sessionID, symbol)
}

func selectedSymbolKey(sessionID string) string {
	return fmt.Sprintf("order-entry:session:%s:symbol", sessionID)
}

func processingLockKey(key string) string {
	return fmt.Sprintf("%s:processing-lock", key)
}

// RedisDraftStore keeps one draft per session and instrument. Drafts expire
// with the session after ttl of inactivity.
type RedisDraftStore struct {
	client *redis.Client
	ttl    time.Duration
}

func NewRedisDraftStore(client *redis.Client, ttl time.Duration) *RedisDraftStore {
	if ttl <= 0 {
		ttl = defaultDraftTTL
	}

	return &RedisDraftStore{client: client, ttl: ttl}
}

func (s *RedisDraftStore) Load(ctx context.Context, sessionID, symbol string) (entity.OrderDraft, bool, error) {
	raw, err := s.client.Get(ctx, draftKey(sessionID, symbol)).Bytes()
	if errors.Is(err, redis.Nil) {
		return entity.OrderDraft{}, false, nil
	}
	if err != nil {
		return entity.OrderDraft{}, false, err
	}

	var draft entity.OrderDraft
	if err := json.Unmarshal(raw, &draft); err != nil {
		return entity.OrderDraft{}, false, fmt.Errorf("decode draft %s/%s: %w", sessionID, symbol, err)
	}

	return draft, true, nil
}

func (s *RedisDraftStore) Save(ctx context.Context, sessionID string, draft entity.OrderDraft) error {
	payload, err := json.Marshal(draft)
	if err != nil {
		return err
	}

	return s.client.Set(ctx, draftKey(sessionID, draft.Symbol), payload, s.ttl).Err()
}

func (s *RedisDraftStore) Delete(ctx context.Context, sessionID, symbol string) error {
	return s.client.Del(ctx, draftKey(sessionID, symbol)).Err()
}

func (s *RedisDraftStore) SelectedSymbol(ctx context.Context, sessionID string) (string, bool, error) {
	symbol, err := s.client.Get(ctx, selectedSymbolKey(sessionID)).Result()
	if errors.Is(err, redis.Nil) {
		return "", false, nil
	}
	if err != nil {
		return "", false, err
	}

	return symbol, true, nil
}

func (s *RedisDraftStore) SetSelectedSymbol(ctx context.Context, sessionID, symbol string) error {
	return s.client.Set(ctx, selectedSymbolKey(sessionID), symbol, s.ttl).Err()
}

func (s *RedisDraftStore) AcquireLock(ctx context.Context, key string, ttl time.Duration, owner string) (bool, error) {
	if ttl <= 0 {
		ttl = defaultLockTTL
	}

	return s.client.SetNX(ctx, processingLockKey(key), owner, ttl).Result()
}

func (s *RedisDraftStore) ReleaseLock(ctx context.Context, key string, owner string) error {
	_, err := releaseLockScript.Run(ctx, s.client, []string{processingLockKey(key)}, owner).Result()
	if err != nil && !errors.Is(err, redis.Nil) {
		return err
	}

	return nil
}

func (s *RedisDraftStore) Ping(ctx context.Context) error {
	return s.client.Ping(ctx).Err()
}

// MemoryDraftStore is the single-process draft store used when no redis is
// configured.
type MemoryDraftStore struct {
	mu       sync.Mutex
	drafts   map[string]entity.OrderDraft
	selected map[string]string
	locks    map[string]memoryLock
	now      func() time.Time
}

type memoryLock struct {
	owner     string
	expiresAt time.Time
}

func NewMemoryDraftStore() *MemoryDraftStore {
	return &MemoryDraftStore{
		drafts:   make(map[string]entity.OrderDraft),
		selected: make(map[string]string),
		locks:    make(map[string]memoryLock),
		now:      time.Now,
	}
}

func (s *MemoryDraftStore) Load(_ context.Context, sessionID, symbol string) (entity.OrderDraft, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	draft, ok := s.drafts[draftKey(sessionID, symbol)]
	return draft, ok, nil
}

func (s *MemoryDraftStore) Save(_ context.Context, sessionID string, draft entity.OrderDraft) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.drafts[draftKey(sessionID, draft.Symbol)] = draft
	return nil
}

func (s *MemoryDraftStore) Delete(_ context.Context, sessionID, symbol string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	delete(s.drafts, draftKey(sessionID, symbol))
	return nil
}

func (s *MemoryDraftStore) SelectedSymbol(_ context.Context, sessionID string) (string, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	symbol, ok := s.selected[sessionID]
	return symbol, ok, nil
}

func (s *MemoryDraftStore) SetSelectedSymbol(_ context.Context, sessionID, symbol string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.selected[sessionID] = symbol
	return nil
}

func (s *MemoryDraftStore) AcquireLock(_ context.Context, key string, ttl time.Duration, owner string) (bool, error) {
	if ttl <= 0 {
		ttl = defaultLockTTL
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.now()
	if lock, held := s.locks[key]; held && now.Before(lock.expiresAt) {
		return false, nil
	}

	s.locks[key] = memoryLock{owner: owner, expiresAt: now.Add(ttl)}
	return true, nil
}

func (s *MemoryDraftStore) ReleaseLock(_ context.Context, key string, owner string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if lock, held := s.locks[key]; held && lock.owner == owner {
		delete(s.locks, key)
	}

	return nil
}
