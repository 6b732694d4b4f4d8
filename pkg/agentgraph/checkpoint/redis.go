package checkpoint

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"sort"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"
)

// RedisConfig configures a RedisStore.
type RedisConfig struct {
	Addr     string
	Password string
	DB       int
	// KeyPrefix namespaces every key. Default "agentgraph:".
	KeyPrefix string
	// TTL expires checkpoints after the given duration. Zero keeps them.
	TTL time.Duration
}

// RedisStore keeps checkpoints in Redis, one string key per checkpoint
// plus a sorted-set index per workflow. It lets several workers resume
// each other's runs.
type RedisStore struct {
	client    redis.UniversalClient
	keyPrefix string
	ttl       time.Duration
	ownClient bool

	mu     sync.RWMutex
	closed bool
}

// NewRedisStore connects to Redis and verifies the connection.
func NewRedisStore(ctx context.Context, cfg RedisConfig) (*RedisStore, error) {
	client := redis.NewClient(&redis.Options{
		Addr:     cfg.Addr,
		Password: cfg.Password,
		DB:       cfg.DB,
	})

	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := client.Ping(pingCtx).Err(); err != nil {
		client.Close()
		return nil, fmt.Errorf("connect to redis: %w", err)
	}

	s := NewRedisStoreWithClient(client, cfg.KeyPrefix, cfg.TTL)
	s.ownClient = true
	return s, nil
}

// NewRedisStoreWithClient wraps an existing client. Close leaves the
// client open.
func NewRedisStoreWithClient(client redis.UniversalClient, keyPrefix string, ttl time.Duration) *RedisStore {
	if keyPrefix == "" {
		keyPrefix = "agentgraph:"
	}
	return &RedisStore{
		client:    client,
		keyPrefix: keyPrefix + "checkpoint:",
		ttl:       ttl,
	}
}

// Key parts are query-escaped so ':' inside a workflow or name cannot
// make two addresses share a key.
func (s *RedisStore) dataKey(workflow, name string) string {
	return s.keyPrefix + "data:" + url.QueryEscape(workflow) + ":" + url.QueryEscape(name)
}

func (s *RedisStore) indexKey(workflow string) string {
	return s.keyPrefix + "index:" + url.QueryEscape(workflow)
}

// Save implements Store.
func (s *RedisStore) Save(ctx context.Context, workflow, name string, data []byte) (string, error) {
	if err := validateAddress(workflow, name); err != nil {
		return "", err
	}

	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.closed {
		return "", ErrStoreClosed
	}

	key := s.dataKey(workflow, name)
	now := time.Now().UTC()

	pipe := s.client.TxPipeline()
	pipe.Set(ctx, key, data, s.ttl)
	pipe.ZAdd(ctx, s.indexKey(workflow), redis.Z{Score: float64(now.UnixNano()), Member: name})
	if _, err := pipe.Exec(ctx); err != nil {
		return "", fmt.Errorf("save checkpoint: %w", err)
	}
	return "redis://" + key, nil
}

// Load implements Store.
func (s *RedisStore) Load(ctx context.Context, workflow, name string) ([]byte, error) {
	if err := validateAddress(workflow, name); err != nil {
		return nil, err
	}

	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.closed {
		return nil, ErrStoreClosed
	}

	data, err := s.client.Get(ctx, s.dataKey(workflow, name)).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("load checkpoint: %w", err)
	}
	return data, nil
}

// List implements Store. Index entries whose data key has expired are
// pruned as they are found.
func (s *RedisStore) List(ctx context.Context, workflow string) ([]Info, error) {
	if err := ValidateName(workflow); err != nil {
		return nil, err
	}

	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.closed {
		return nil, ErrStoreClosed
	}

	members, err := s.client.ZRangeWithScores(ctx, s.indexKey(workflow), 0, -1).Result()
	if err != nil {
		return nil, fmt.Errorf("list checkpoints: %w", err)
	}

	pipe := s.client.Pipeline()
	lens := make([]*redis.IntCmd, len(members))
	for i, m := range members {
		lens[i] = pipe.StrLen(ctx, s.dataKey(workflow, m.Member.(string)))
	}
	if len(members) > 0 {
		if _, err := pipe.Exec(ctx); err != nil {
			return nil, fmt.Errorf("list checkpoints: %w", err)
		}
	}

	infos := make([]Info, 0, len(members))
	var stale []any
	for i, m := range members {
		name := m.Member.(string)
		size := lens[i].Val()
		if size == 0 {
			stale = append(stale, name)
			continue
		}
		infos = append(infos, Info{
			Workflow:  workflow,
			Name:      name,
			Size:      size,
			UpdatedAt: time.Unix(0, int64(m.Score)).UTC(),
		})
	}
	if len(stale) > 0 {
		s.client.ZRem(ctx, s.indexKey(workflow), stale...)
	}

	sort.Slice(infos, func(i, j int) bool { return infos[i].Name < infos[j].Name })
	return infos, nil
}

// Delete implements Store.
func (s *RedisStore) Delete(ctx context.Context, workflow, name string) error {
	if err := validateAddress(workflow, name); err != nil {
		return err
	}

	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.closed {
		return ErrStoreClosed
	}

	pipe := s.client.TxPipeline()
	pipe.Del(ctx, s.dataKey(workflow, name))
	pipe.ZRem(ctx, s.indexKey(workflow), name)
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("delete checkpoint: %w", err)
	}
	return nil
}

// Ping checks that Redis is reachable.
func (s *RedisStore) Ping(ctx context.Context) error {
	return s.client.Ping(ctx).Err()
}

// Close implements Store.
func (s *RedisStore) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return nil
	}
	s.closed = true
	if s.ownClient {
		return s.client.Close()
	}
	return nil
}
