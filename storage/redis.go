package storage

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"crosspost/config"
	"crosspost/types"
)

// RedisStore persists everything in a single redis database under the
// fixed crosspost:* keys.
type RedisStore struct {
	client *redis.Client
}

// NewRedisStore connects and verifies connectivity.
func NewRedisStore(addr, password string, db int) (*RedisStore, error) {
	client := redis.NewClient(&redis.Options{
		Addr:     addr,
		Password: password,
		DB:       db,
	})
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := client.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("redis ping: %w", err)
	}
	return &RedisStore{client: client}, nil
}

// Close releases the redis connection.
func (s *RedisStore) Close() error { return s.client.Close() }

func (s *RedisStore) getJSON(ctx context.Context, key string, out any) (bool, error) {
	data, err := s.client.Get(ctx, key).Bytes()
	if err == redis.Nil {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("get %s: %w", key, err)
	}
	if err := json.Unmarshal(data, out); err != nil {
		return false, fmt.Errorf("decode %s: %w", key, err)
	}
	return true, nil
}

func (s *RedisStore) setJSON(ctx context.Context, key string, v any) error {
	data, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("encode %s: %w", key, err)
	}
	if err := s.client.Set(ctx, key, data, 0).Err(); err != nil {
		return fmt.Errorf("set %s: %w", key, err)
	}
	return nil
}

// SelectedPlatforms returns the persisted platform id selection.
func (s *RedisStore) SelectedPlatforms(ctx context.Context) ([]string, error) {
	var ids []string
	if _, err := s.getJSON(ctx, config.KeySelectedPlatforms, &ids); err != nil {
		return nil, err
	}
	return ids, nil
}

// SelectPlatform adds an id to the selection.
func (s *RedisStore) SelectPlatform(ctx context.Context, id string) error {
	ids, err := s.SelectedPlatforms(ctx)
	if err != nil {
		return err
	}
	for _, existing := range ids {
		if existing == id {
			return nil
		}
	}
	return s.setJSON(ctx, config.KeySelectedPlatforms, append(ids, id))
}

// DeselectPlatform removes an id from the selection.
func (s *RedisStore) DeselectPlatform(ctx context.Context, id string) error {
	ids, err := s.SelectedPlatforms(ctx)
	if err != nil {
		return err
	}
	out := ids[:0]
	for _, existing := range ids {
		if existing != id {
			out = append(out, existing)
		}
	}
	return s.setJSON(ctx, config.KeySelectedPlatforms, out)
}

// CMSAccounts returns the configured self-hosted destinations.
func (s *RedisStore) CMSAccounts(ctx context.Context) ([]types.CMSAccount, error) {
	var accounts []types.CMSAccount
	if _, err := s.getJSON(ctx, config.KeyCMSAccounts, &accounts); err != nil {
		return nil, err
	}
	return accounts, nil
}

// SaveCMSAccounts replaces the configured account list.
func (s *RedisStore) SaveCMSAccounts(ctx context.Context, accounts []types.CMSAccount) error {
	return s.setJSON(ctx, config.KeyCMSAccounts, accounts)
}

// History returns the sync history, newest first.
func (s *RedisStore) History(ctx context.Context) ([]types.SyncHistoryItem, error) {
	var items []types.SyncHistoryItem
	if _, err := s.getJSON(ctx, config.KeySyncHistory, &items); err != nil {
		return nil, err
	}
	return items, nil
}

// SaveHistory replaces the whole history ring.
func (s *RedisStore) SaveHistory(ctx context.Context, items []types.SyncHistoryItem) error {
	return s.setJSON(ctx, config.KeySyncHistory, items)
}

// InflightSnapshot returns the crash-recovery snapshot, nil when none.
func (s *RedisStore) InflightSnapshot(ctx context.Context) (*types.SyncHistoryItem, error) {
	var item types.SyncHistoryItem
	ok, err := s.getJSON(ctx, config.KeySyncInflight, &item)
	if err != nil || !ok {
		return nil, err
	}
	return &item, nil
}

// SaveInflightSnapshot persists the snapshot of a pass in progress.
func (s *RedisStore) SaveInflightSnapshot(ctx context.Context, item *types.SyncHistoryItem) error {
	return s.setJSON(ctx, config.KeySyncInflight, item)
}

// ClearInflightSnapshot drops the snapshot.
func (s *RedisStore) ClearInflightSnapshot(ctx context.Context) error {
	if err := s.client.Del(ctx, config.KeySyncInflight).Err(); err != nil {
		return fmt.Errorf("del %s: %w", config.KeySyncInflight, err)
	}
	return nil
}

// RedisRateLimiter gates sync passes with SET NX and a TTL window.
type RedisRateLimiter struct {
	client *redis.Client
	window time.Duration
}

// RateLimiter returns a limiter sharing this store's connection.
func (s *RedisStore) RateLimiter(window time.Duration) *RedisRateLimiter {
	return &RedisRateLimiter{client: s.client, window: window}
}

// Allow claims the rate-limit key; false means a pass ran inside the window.
func (l *RedisRateLimiter) Allow(ctx context.Context) (bool, error) {
	ok, err := l.client.SetNX(ctx, config.KeySyncRateLimit, time.Now().Unix(), l.window).Result()
	if err != nil {
		return false, fmt.Errorf("rate limit claim: %w", err)
	}
	return ok, nil
}
